package calib

import (
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/schema"
)

// Item is the constraint for collection values: persistable and comparable
// with its own type.
type Item[T any] interface {
	schema.Entity
	Equal(T) bool
}

// Collection is an ordered map from integer keys to calibration objects.
type Collection[T Item[T]] struct {
	kind    string
	newItem func() T
	items   map[int]T
}

// NewCollection creates an empty collection tagged kind. newItem builds the
// zero value that decoded entries are decoded into.
func NewCollection[T Item[T]](kind string, newItem func() T) *Collection[T] {
	return &Collection[T]{kind: kind, newItem: newItem, items: map[int]T{}}
}

// Insert adds value under key. Existing keys are not overwritten.
func (c *Collection[T]) Insert(key int, value T) error {
	if _, ok := c.items[key]; ok {
		return calerr.InvalidArgument("key already exists: %d", key)
	}
	c.items[key] = value
	return nil
}

// Put adds or replaces the value under key.
func (c *Collection[T]) Put(key int, value T) {
	c.items[key] = value
}

// At returns the value stored under key.
func (c *Collection[T]) At(key int) (T, error) {
	v, ok := c.items[key]
	if !ok {
		var zero T
		return zero, calerr.NotFound(fmt.Sprint(key), "%s: no entry at %d", c.kind, key)
	}
	return v, nil
}

func (c *Collection[T]) Exists(key int) bool {
	_, ok := c.items[key]
	return ok
}

// Erase removes key. It reports whether the key was present.
func (c *Collection[T]) Erase(key int) bool {
	_, ok := c.items[key]
	delete(c.items, key)
	return ok
}

func (c *Collection[T]) Clear() { clear(c.items) }

func (c *Collection[T]) Size() int { return len(c.items) }

// Keys returns the keys in ascending order.
func (c *Collection[T]) Keys() []int {
	return slices.Sorted(maps.Keys(c.items))
}

// Equal compares keys and values.
func (c *Collection[T]) Equal(o *Collection[T]) bool {
	if o == nil || c.kind != o.kind || len(c.items) != len(o.items) {
		return false
	}
	for k, v := range c.items {
		w, ok := o.items[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}

func (c *Collection[T]) Kind() string       { return c.kind }
func (c *Collection[T]) SchemaVersion() int { return schema.VersionCollection }

// EncodeValue stores every entry as {key, value} with the value nested
// under its own kind and version.
func (c *Collection[T]) EncodeValue() (schema.Object, error) {
	entries, err := c.EncodeEntries()
	if err != nil {
		return nil, err
	}
	return schema.Object{"entries": entries}, nil
}

// DecodeValue replaces the content with body.
func (c *Collection[T]) DecodeValue(_ int, body schema.Object) error {
	entries, err := body.List("entries")
	if err != nil {
		return err
	}
	return c.DecodeEntries(entries)
}

// EncodeEntries encodes the entries only, for collections that embed a
// Collection and add their own scalar fields.
func (c *Collection[T]) EncodeEntries() (schema.List, error) {
	entries := make(schema.List, 0, len(c.items))
	for _, k := range c.Keys() {
		enc, err := schema.EncodeNested(c.items[k])
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", c.kind, k, err)
		}
		entries = append(entries, schema.Object{"key": schema.Int(k), "value": enc})
	}
	return entries, nil
}

// DecodeEntries is the inverse of EncodeEntries.
func (c *Collection[T]) DecodeEntries(entries schema.List) error {
	items := make(map[int]T, len(entries))
	for i, e := range entries {
		entry, ok := e.(schema.Object)
		if !ok {
			return calerr.Incompatible("entries", "entry %d: expected object, got %T", i, e)
		}
		key, err := entry.Int("key")
		if err != nil {
			return err
		}
		enc, err := entry.Object("value")
		if err != nil {
			return err
		}
		item := c.newItem()
		if err := schema.DecodeNested(enc, item); err != nil {
			return fmt.Errorf("%s[%d]: %w", c.kind, key, err)
		}
		if _, dup := items[int(key)]; dup {
			return calerr.Incompatible("entries", "duplicate key %d", key)
		}
		items[int(key)] = item
	}
	c.items = items
	return nil
}
