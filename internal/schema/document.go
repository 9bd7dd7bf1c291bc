package schema

import (
	"errors"
	"fmt"

	"github.com/roach88/calibtic/internal/calerr"
)

// ErrVersionMismatch is returned when stored data was written by a newer
// schema version than this build understands. Older versions are accepted
// and upgraded by the entity decoder.
var ErrVersionMismatch = errors.New("schema version mismatch")

// Entity is implemented by every persisted calibration type.
type Entity interface {
	// Kind is the stable type tag written next to the body.
	Kind() string

	// SchemaVersion is the version EncodeValue writes.
	SchemaVersion() int

	// EncodeValue encodes the entity into a value tree.
	EncodeValue() (Object, error)

	// DecodeValue replaces the entity's content with body, which was
	// written with the given schema version (never newer than
	// SchemaVersion).
	DecodeValue(version int, body Object) error
}

// Document is the envelope persisted by every backend.
type Document struct {
	Format  int
	Kind    string
	Version int
	Meta    Object
	Body    Object
}

// NewDocument encodes e together with already encoded metadata.
func NewDocument(e Entity, meta Object) (Document, error) {
	body, err := e.EncodeValue()
	if err != nil {
		return Document{}, fmt.Errorf("encode %s: %w", e.Kind(), err)
	}
	return Document{
		Format:  FormatVersion,
		Kind:    e.Kind(),
		Version: e.SchemaVersion(),
		Meta:    meta,
		Body:    body,
	}, nil
}

// DecodeInto checks kind and version and decodes the body into e.
func (d Document) DecodeInto(e Entity) error {
	if d.Kind != e.Kind() {
		return calerr.Incompatible(d.Kind, "stored kind %q does not match requested %q", d.Kind, e.Kind())
	}
	if err := CheckVersion(d.Kind, d.Version, e.SchemaVersion()); err != nil {
		return err
	}
	if err := e.DecodeValue(d.Version, d.Body); err != nil {
		return fmt.Errorf("decode %s v%d: %w", d.Kind, d.Version, err)
	}
	return nil
}

// CheckVersion applies the version-mismatch policy: a stored version newer
// than current fails, negative versions are corrupt, anything else decodes.
func CheckVersion(kind string, stored, current int) error {
	if stored < 0 {
		return calerr.Incompatible(kind, "invalid schema version %d", stored)
	}
	if stored > current {
		return fmt.Errorf("%w: %w", ErrVersionMismatch,
			calerr.Incompatible(kind, "stored version %d is newer than supported version %d", stored, current))
	}
	return nil
}

// Value converts the document to a single object tree.
func (d Document) Value() Object {
	return Object{
		"format":  Int(d.Format),
		"kind":    String(d.Kind),
		"version": Int(d.Version),
		"meta":    d.Meta,
		"body":    d.Body,
	}
}

// DocumentFromValue is the inverse of Document.Value.
func DocumentFromValue(obj Object) (Document, error) {
	var d Document
	format, err := obj.Int("format")
	if err != nil {
		return d, err
	}
	if format > FormatVersion {
		return d, fmt.Errorf("%w: %w", ErrVersionMismatch,
			calerr.Incompatible("format", "dataset format %d is newer than supported %d", format, FormatVersion))
	}
	d.Format = int(format)
	if d.Kind, err = obj.String("kind"); err != nil {
		return d, err
	}
	version, err := obj.Int("version")
	if err != nil {
		return d, err
	}
	d.Version = int(version)
	if d.Meta, err = obj.Object("meta"); err != nil {
		return d, err
	}
	if d.Body, err = obj.Object("body"); err != nil {
		return d, err
	}
	return d, nil
}

// EncodeNested encodes a child entity with its own kind and version so it
// can evolve independently of its parent.
func EncodeNested(e Entity) (Object, error) {
	body, err := e.EncodeValue()
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", e.Kind(), err)
	}
	return Object{
		"kind":    String(e.Kind()),
		"version": Int(e.SchemaVersion()),
		"body":    body,
	}, nil
}

// DecodeNested is the inverse of EncodeNested.
func DecodeNested(obj Object, e Entity) error {
	kind, err := obj.String("kind")
	if err != nil {
		return err
	}
	version, err := obj.Int("version")
	if err != nil {
		return err
	}
	body, err := obj.Object("body")
	if err != nil {
		return err
	}
	return Document{Kind: kind, Version: int(version), Body: body}.DecodeInto(e)
}
