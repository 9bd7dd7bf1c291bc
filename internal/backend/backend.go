// Package backend persists calibration datasets.
//
// Every dataset is a schema.Document: the entity body tagged with its kind
// and schema version, plus the MetaData it was stored with. Backends are
// chosen by name from a fixed registry:
//
//	xml     one <name>.xml file per dataset under "path"
//	binary  one <name>.dat file per dataset under "path"
//	text    one YAML <name>.txt file per dataset under "path"
//	sqlite  one database file given by "file"
//	memory  process-local, for tests
//
// Usage:
//
//	b, err := backend.Open("text", env)
//	b.Config("path", dir)
//	b.Init(ctx)
//	b.Store(ctx, backend.DatasetName(0, 280), meta, hc)
package backend

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/schema"
)

// Backend stores and loads named datasets.
type Backend interface {
	// Name is the registry name of the backend.
	Name() string

	// Config sets an option before Init. Unknown keys fail with a
	// configuration error.
	Config(key, value string) error

	// Init validates the options and opens the underlying storage.
	Init(ctx context.Context) error

	// Store writes e and meta under name, replacing an existing dataset.
	Store(ctx context.Context, name string, meta *calib.MetaData, e schema.Entity) error

	// Load reads the dataset name into meta and e. An absent name fails
	// with NotFound, a kind or newer schema version mismatch with
	// Incompatible.
	Load(ctx context.Context, name string, meta *calib.MetaData, e schema.Entity) error

	// List returns the stored dataset names in ascending order.
	List(ctx context.Context) ([]string, error)

	// Close releases the storage.
	Close() error
}

type factory func(env calib.Env) Backend

var registry = map[string]factory{
	"xml":    func(env calib.Env) Backend { return newFileBackend("xml", xmlCodec{}, env) },
	"binary": func(env calib.Env) Backend { return newFileBackend("binary", binaryCodec{}, env) },
	"text":   func(env calib.Env) Backend { return newFileBackend("text", yamlCodec{}, env) },
	"sqlite": func(env calib.Env) Backend { return newSQLiteBackend(env) },
	"memory": func(env calib.Env) Backend { return newMemoryBackend(env) },
}

// Open returns an unconfigured backend by name.
func Open(name string, env calib.Env) (Backend, error) {
	f, ok := registry[name]
	if !ok {
		return nil, calerr.Configuration(name, "unknown backend %q, available: %v", name, Names())
	}
	return f(env), nil
}

// Names lists the registered backends.
func Names() []string {
	return slices.Sorted(maps.Keys(registry))
}

// OpenConfigured opens, configures and initializes a backend.
func OpenConfigured(ctx context.Context, name string, env calib.Env, opts map[string]string) (Backend, error) {
	b, err := Open(name, env)
	if err != nil {
		return nil, err
	}
	for _, k := range slices.Sorted(maps.Keys(opts)) {
		if err := b.Config(k, opts[k]); err != nil {
			return nil, err
		}
	}
	if err := b.Init(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

// DatasetName is the conventional name of the calibration of one chip.
func DatasetName(wafer, hicann int) string {
	return fmt.Sprintf("w%d-h%d", wafer, hicann)
}

// encodeDocument builds the stored envelope of e and meta.
func encodeDocument(name string, meta *calib.MetaData, e schema.Entity) (schema.Document, error) {
	if name == "" {
		return schema.Document{}, calerr.InvalidArgument("empty dataset name")
	}
	if meta == nil {
		return schema.Document{}, calerr.InvalidArgument("%s: metadata is required", name)
	}
	m, err := schema.EncodeNested(meta)
	if err != nil {
		return schema.Document{}, fmt.Errorf("%s: %w", name, err)
	}
	doc, err := schema.NewDocument(e, m)
	if err != nil {
		return schema.Document{}, fmt.Errorf("%s: %w", name, err)
	}
	return doc, nil
}

// decodeDocument fills meta and e from a stored envelope. Neither is
// modified when the metadata fails to decode.
func decodeDocument(name string, doc schema.Document, meta *calib.MetaData, e schema.Entity) error {
	var decoded *calib.MetaData
	if meta != nil {
		decoded = calib.EmptyMetaData()
		if err := schema.DecodeNested(doc.Meta, decoded); err != nil {
			return fmt.Errorf("%s: metadata: %w", name, err)
		}
	}
	if err := doc.DecodeInto(e); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if meta != nil {
		*meta = *decoded
	}
	return nil
}

func notFound(backend, name string) error {
	return calerr.NotFound(name, "%s backend: no dataset %q", backend, name)
}
