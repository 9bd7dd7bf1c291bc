package calib

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/schema"
)

// KindMetaData tags stored metadata.
const KindMetaData = "MetaData"

// MetaData is the provenance record stored next to every dataset.
type MetaData struct {
	ID         int
	Author     string
	Comment    string
	CreatedAt  time.Time
	ModifiedAt time.Time
	Revision   uuid.UUID
}

// NewMetaData creates metadata stamped with the env clock.
func NewMetaData(env Env, author, comment string) (*MetaData, error) {
	rev, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("revision: %w", err)
	}
	now := env.Now()
	return &MetaData{
		ID:         0,
		Author:     author,
		Comment:    comment,
		CreatedAt:  now,
		ModifiedAt: now,
		Revision:   rev,
	}, nil
}

// EmptyMetaData returns the blank record Load decodes into.
func EmptyMetaData() *MetaData {
	return &MetaData{ID: -1}
}

// Touch advances ModifiedAt and assigns a new revision.
func (m *MetaData) Touch(env Env) error {
	rev, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("revision: %w", err)
	}
	m.ModifiedAt = env.Now()
	m.Revision = rev
	return nil
}

// Check validates the record before it is stored.
func (m *MetaData) Check() error {
	var errs []error
	if m.ID < 0 {
		errs = append(errs, calerr.InvalidArgument("metadata: negative id %d", m.ID))
	}
	if m.Author == "" {
		errs = append(errs, calerr.InvalidArgument("metadata: author is required"))
	}
	if m.CreatedAt.IsZero() || m.ModifiedAt.IsZero() {
		errs = append(errs, calerr.InvalidArgument("metadata: timestamps are not set"))
	} else if m.ModifiedAt.Before(m.CreatedAt) {
		errs = append(errs, calerr.InvalidArgument("metadata: modified %s before created %s",
			m.ModifiedAt.Format(time.RFC3339), m.CreatedAt.Format(time.RFC3339)))
	}
	return errors.Join(errs...)
}

func (m *MetaData) Equal(o *MetaData) bool {
	return o != nil &&
		m.ID == o.ID &&
		m.Author == o.Author &&
		m.Comment == o.Comment &&
		m.CreatedAt.Equal(o.CreatedAt) &&
		m.ModifiedAt.Equal(o.ModifiedAt) &&
		m.Revision == o.Revision
}

func (m *MetaData) String() string {
	return fmt.Sprintf("MetaData{id: %d, author: %q, modified: %s, revision: %s}",
		m.ID, m.Author, m.ModifiedAt.Format(time.RFC3339), m.Revision)
}

func (m *MetaData) Kind() string       { return KindMetaData }
func (m *MetaData) SchemaVersion() int { return schema.VersionMetaData }

func (m *MetaData) EncodeValue() (schema.Object, error) {
	return schema.Object{
		"id":       schema.Int(m.ID),
		"author":   schema.String(m.Author),
		"comment":  schema.String(m.Comment),
		"created":  schema.String(m.CreatedAt.UTC().Format(time.RFC3339Nano)),
		"modified": schema.String(m.ModifiedAt.UTC().Format(time.RFC3339Nano)),
		"revision": schema.String(m.Revision.String()),
	}, nil
}

func (m *MetaData) DecodeValue(_ int, body schema.Object) error {
	id, err := body.Int("id")
	if err != nil {
		return err
	}
	out := MetaData{ID: int(id)}
	if out.Author, err = body.String("author"); err != nil {
		return err
	}
	if out.Comment, err = body.String("comment"); err != nil {
		return err
	}
	if out.CreatedAt, err = decodeTime(body, "created"); err != nil {
		return err
	}
	if out.ModifiedAt, err = decodeTime(body, "modified"); err != nil {
		return err
	}
	rev, err := body.String("revision")
	if err != nil {
		return err
	}
	if out.Revision, err = uuid.Parse(rev); err != nil {
		return calerr.Incompatible("revision", "invalid revision %q: %v", rev, err)
	}
	*m = out
	return nil
}

func decodeTime(body schema.Object, key string) (time.Time, error) {
	s, err := body.String(key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, calerr.Incompatible(key, "invalid timestamp %q: %v", s, err)
	}
	return t, nil
}
