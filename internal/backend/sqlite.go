package backend

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/calibtic/internal/calerr"
	"github.com/roach88/calibtic/internal/calib"
	"github.com/roach88/calibtic/internal/schema"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - datasets table only
// 1 - revisions history and kind index
const currentSchemaVersion = 1

// Revision is one past store of a dataset.
type Revision struct {
	ID       uuid.UUID
	Hash     string
	StoredAt time.Time
}

// Historian is implemented by backends that keep every stored revision.
type Historian interface {
	History(ctx context.Context, name string) ([]Revision, error)
}

// sqliteBackend stores datasets in a single SQLite file.
// Uses WAL mode so readers do not block a concurrent writer.
type sqliteBackend struct {
	env  calib.Env
	file string
	db   *sql.DB
}

var _ Historian = (*sqliteBackend)(nil)

func newSQLiteBackend(env calib.Env) *sqliteBackend {
	return &sqliteBackend{env: env}
}

func (b *sqliteBackend) Name() string { return "sqlite" }

func (b *sqliteBackend) Config(key, value string) error {
	switch key {
	case "file":
		b.file = value
		return nil
	default:
		return calerr.Configuration(key, "sqlite backend: unknown option %q", key)
	}
}

// Init creates or opens the database file and applies pragmas and
// migrations. The containing directory must exist.
func (b *sqliteBackend) Init(ctx context.Context) error {
	if b.file == "" {
		return calerr.Configuration("file", "sqlite backend: file is not set")
	}
	if fi, err := os.Stat(filepath.Dir(b.file)); err != nil || !fi.IsDir() {
		return calerr.Configuration("file", "sqlite backend: directory of %s does not exist", b.file)
	}
	if b.db != nil {
		b.db.Close()
		b.db = nil
	}

	db, err := sql.Open("sqlite3", b.file)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return calerr.Configuration("file", "sqlite backend: failed to connect to %s: %v", b.file, err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	b.db = db
	b.env.Log().Debug("backend initialized", "backend", "sqlite", "file", b.file)
	return nil
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return runMigrations(ctx, db)
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return calerr.Incompatible("user_version",
			"database schema %d is newer than supported %d", version, currentSchemaVersion)
	}
	if version < 1 {
		if err := migrateToV1(ctx, db); err != nil {
			return err
		}
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 adds the revision history. Existing datasets get one history
// row for their current revision.
func migrateToV1(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS revisions (
			seq       INTEGER PRIMARY KEY AUTOINCREMENT,
			name      TEXT NOT NULL REFERENCES datasets(name) ON DELETE CASCADE,
			revision  TEXT NOT NULL,
			hash      TEXT NOT NULL,
			stored_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_revisions_name ON revisions(name, seq);
		CREATE INDEX IF NOT EXISTS idx_datasets_kind ON datasets(kind);
		INSERT INTO revisions (name, revision, hash, stored_at)
			SELECT name, revision, hash, stored_at FROM datasets
			WHERE NOT EXISTS (SELECT 1 FROM revisions r WHERE r.name = datasets.name);
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

func (b *sqliteBackend) conn() (*sql.DB, error) {
	if b.db == nil {
		return nil, calerr.Configuration("file", "sqlite backend: not initialized")
	}
	return b.db, nil
}

// Store upserts the dataset and appends a revision row in one transaction.
func (b *sqliteBackend) Store(ctx context.Context, name string, meta *calib.MetaData, e schema.Entity) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	doc, err := encodeDocument(name, meta, e)
	if err != nil {
		return err
	}
	metaJSON, err := schema.MarshalCanonical(doc.Meta)
	if err != nil {
		return fmt.Errorf("%s: meta: %w", name, err)
	}
	bodyJSON, err := schema.MarshalCanonical(doc.Body)
	if err != nil {
		return fmt.Errorf("%s: body: %w", name, err)
	}
	hash, err := schema.ContentHash(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	rev := meta.Revision
	if rev == uuid.Nil {
		if rev, err = uuid.NewV7(); err != nil {
			return fmt.Errorf("revision: %w", err)
		}
	}
	storedAt := b.env.Now().UTC().Format(time.RFC3339Nano)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite backend: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO datasets (name, kind, version, format, meta, body, hash, revision, stored_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			kind = excluded.kind,
			version = excluded.version,
			format = excluded.format,
			meta = excluded.meta,
			body = excluded.body,
			hash = excluded.hash,
			revision = excluded.revision,
			stored_at = excluded.stored_at
	`, name, doc.Kind, doc.Version, doc.Format, string(metaJSON), string(bodyJSON), hash, rev.String(), storedAt)
	if err != nil {
		return fmt.Errorf("sqlite backend: store %s: %w", name, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO revisions (name, revision, hash, stored_at) VALUES (?, ?, ?, ?)
	`, name, rev.String(), hash, storedAt)
	if err != nil {
		return fmt.Errorf("sqlite backend: record revision of %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite backend: commit: %w", err)
	}
	b.env.Log().Debug("dataset stored", "backend", "sqlite", "name", name, "kind", doc.Kind, "hash", hash)
	return nil
}

// Load reads a dataset and verifies its content hash.
func (b *sqliteBackend) Load(ctx context.Context, name string, meta *calib.MetaData, e schema.Entity) error {
	db, err := b.conn()
	if err != nil {
		return err
	}
	var (
		doc            schema.Document
		metaJSON, body string
		storedHash     string
	)
	err = db.QueryRowContext(ctx, `
		SELECT kind, version, format, meta, body, hash FROM datasets WHERE name = ?
	`, name).Scan(&doc.Kind, &doc.Version, &doc.Format, &metaJSON, &body, &storedHash)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound("sqlite", name)
	}
	if err != nil {
		return fmt.Errorf("sqlite backend: load %s: %w", name, err)
	}
	if doc.Format > schema.FormatVersion {
		return calerr.Incompatible("format", "%s: dataset format %d is newer than supported %d",
			name, doc.Format, schema.FormatVersion)
	}
	if doc.Meta, err = decodeObjectJSON(metaJSON); err != nil {
		return fmt.Errorf("%s: meta: %w", name, err)
	}
	if doc.Body, err = decodeObjectJSON(body); err != nil {
		return fmt.Errorf("%s: body: %w", name, err)
	}
	hash, err := schema.ContentHash(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	if hash != storedHash {
		return calerr.Incompatible(name, "content hash mismatch: stored %s, computed %s", storedHash, hash)
	}
	return decodeDocument(name, doc, meta, e)
}

func decodeObjectJSON(s string) (schema.Object, error) {
	v, err := schema.UnmarshalCanonical([]byte(s))
	if err != nil {
		return nil, calerr.Incompatible("json", "%v", err)
	}
	obj, ok := v.(schema.Object)
	if !ok {
		return nil, calerr.Incompatible("json", "expected object, got %T", v)
	}
	return obj, nil
}

func (b *sqliteBackend) List(ctx context.Context) ([]string, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT name FROM datasets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("sqlite backend: list: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("sqlite backend: scan: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// History returns the stored revisions of name, oldest first.
func (b *sqliteBackend) History(ctx context.Context, name string) ([]Revision, error) {
	db, err := b.conn()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `
		SELECT revision, hash, stored_at FROM revisions WHERE name = ? ORDER BY seq
	`, name)
	if err != nil {
		return nil, fmt.Errorf("sqlite backend: history: %w", err)
	}
	defer rows.Close()

	var revs []Revision
	for rows.Next() {
		var id, hash, at string
		if err := rows.Scan(&id, &hash, &at); err != nil {
			return nil, fmt.Errorf("sqlite backend: scan: %w", err)
		}
		r := Revision{Hash: hash}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, calerr.Incompatible("revision", "%s: %v", name, err)
		}
		if r.StoredAt, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, calerr.Incompatible("stored_at", "%s: %v", name, err)
		}
		revs = append(revs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(revs) == 0 {
		return nil, notFound("sqlite", name)
	}
	return revs, nil
}

func (b *sqliteBackend) Close() error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (b *sqliteBackend) verifyPragma(name, expected string) error {
	var value string
	if err := b.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
