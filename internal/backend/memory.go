package backend

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/schema"
)

// memoryBackend keeps canonical JSON per dataset, so a stored entity is
// independent of later changes to the caller's copy.
type memoryBackend struct {
	env calib.Env

	mu   sync.RWMutex
	data map[string][]byte
}

func newMemoryBackend(env calib.Env) *memoryBackend {
	return &memoryBackend{env: env, data: make(map[string][]byte)}
}

func (b *memoryBackend) Name() string { return "memory" }

func (b *memoryBackend) Config(key, _ string) error {
	return calerr.Configuration(key, "memory backend: unknown option %q", key)
}

func (b *memoryBackend) Init(context.Context) error { return nil }

func (b *memoryBackend) Store(ctx context.Context, name string, meta *calib.MetaData, e schema.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, err := encodeDocument(name, meta, e)
	if err != nil {
		return err
	}
	data, err := schema.MarshalCanonical(doc.Value())
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.data[name] = data
	b.mu.Unlock()
	return nil
}

func (b *memoryBackend) Load(ctx context.Context, name string, meta *calib.MetaData, e schema.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	data, ok := b.data[name]
	b.mu.RUnlock()
	if !ok {
		return notFound("memory", name)
	}
	v, err := schema.UnmarshalCanonical(data)
	if err != nil {
		return err
	}
	obj, ok := v.(schema.Object)
	if !ok {
		return calerr.Incompatible(name, "stored value is %T", v)
	}
	doc, err := schema.DocumentFromValue(obj)
	if err != nil {
		return err
	}
	return decodeDocument(name, doc, meta, e)
}

func (b *memoryBackend) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Sorted(maps.Keys(b.data)), nil
}

func (b *memoryBackend) Close() error { return nil }
