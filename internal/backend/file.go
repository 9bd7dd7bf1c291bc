package backend

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/schema"
)

// codec serializes a whole document to one file.
type codec interface {
	ext() string
	marshal(doc schema.Document) ([]byte, error)
	unmarshal(data []byte) (schema.Document, error)
}

// fileBackend keeps one file per dataset in a directory.
type fileBackend struct {
	name  string
	codec codec
	env   calib.Env
	path  string
	ready bool
}

func newFileBackend(name string, c codec, env calib.Env) *fileBackend {
	return &fileBackend{name: name, codec: c, env: env}
}

func (b *fileBackend) Name() string { return b.name }

func (b *fileBackend) Config(key, value string) error {
	switch key {
	case "path":
		b.path = value
		b.ready = false
		return nil
	default:
		return calerr.Configuration(key, "%s backend: unknown option %q", b.name, key)
	}
}

func (b *fileBackend) Init(_ context.Context) error {
	if b.path == "" {
		return calerr.Configuration("path", "%s backend: path is not set", b.name)
	}
	fi, err := os.Stat(b.path)
	if err != nil {
		return calerr.Configuration("path", "%s backend: %v", b.name, err)
	}
	if !fi.IsDir() {
		return calerr.Configuration("path", "%s backend: %s is not a directory", b.name, b.path)
	}
	b.ready = true
	b.env.Log().Debug("backend initialized", "backend", b.name, "path", b.path)
	return nil
}

func (b *fileBackend) file(name string) (string, error) {
	if !b.ready {
		return "", calerr.Configuration("path", "%s backend: not initialized", b.name)
	}
	if err := checkFileName(name); err != nil {
		return "", err
	}
	return filepath.Join(b.path, name+b.codec.ext()), nil
}

func checkFileName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) || strings.ContainsRune(name, 0) {
		return calerr.InvalidArgument("invalid dataset name %q", name)
	}
	return nil
}

func (b *fileBackend) Store(ctx context.Context, name string, meta *calib.MetaData, e schema.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := b.file(name)
	if err != nil {
		return err
	}
	doc, err := encodeDocument(name, meta, e)
	if err != nil {
		return err
	}
	data, err := b.codec.marshal(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("%s backend: store %s: %w", b.name, name, err)
	}
	b.env.Log().Debug("dataset stored", "backend", b.name, "name", name, "kind", doc.Kind, "bytes", len(data))
	return nil
}

// writeFileAtomic replaces path so readers never observe a partial file.
func writeFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func (b *fileBackend) Load(ctx context.Context, name string, meta *calib.MetaData, e schema.Entity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := b.file(name)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return notFound(b.name, name)
	}
	if err != nil {
		return fmt.Errorf("%s backend: load %s: %w", b.name, name, err)
	}
	doc, err := b.codec.unmarshal(data)
	if err != nil {
		return fmt.Errorf("%s backend: %s: %w", b.name, name, err)
	}
	return decodeDocument(name, doc, meta, e)
}

func (b *fileBackend) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !b.ready {
		return nil, calerr.Configuration("path", "%s backend: not initialized", b.name)
	}
	entries, err := os.ReadDir(b.path)
	if err != nil {
		return nil, fmt.Errorf("%s backend: %w", b.name, err)
	}
	var names []string
	for _, de := range entries {
		n := de.Name()
		if de.IsDir() || strings.HasPrefix(n, ".") {
			continue
		}
		if base, ok := strings.CutSuffix(n, b.codec.ext()); ok && base != "" {
			names = append(names, base)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (b *fileBackend) Close() error {
	b.ready = false
	return nil
}
