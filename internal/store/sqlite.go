package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/angriff36/manifest/internal/engine"
	"github.com/angriff36/manifest/internal/ir"
)

//go:embed schema.sql
var schemaSQL string

// SQLite backs both engine.Store and engine.IdempotencyStore with one
// SQLite database. WAL mode keeps reads concurrent with the single
// writer.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// SQLiteOption configures Open.
type SQLiteOption func(*SQLite)

// WithSQLiteClock overrides the store's clock, used for created/updated
// timestamps and idempotency expiry.
func WithSQLiteClock(now func() time.Time) SQLiteOption {
	return func(s *SQLite) { s.now = now }
}

// Open creates or opens a SQLite database at the given path, applying
// pragmas and the embedded schema. Idempotent: reopening an existing
// database is safe.
func Open(path string, opts ...SQLiteOption) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single pooled connection
	// avoids SQLITE_BUSY under concurrent command runs.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &SQLite{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLite) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get loads one instance.
func (s *SQLite) Get(ctx context.Context, tenantID, entity, id string) (*engine.Instance, error) {
	var props string
	var version int64
	err := s.db.QueryRowContext(ctx,
		`SELECT props, version FROM instances
		 WHERE tenant_id = ? AND entity_type = ? AND id = ?`,
		tenantID, entity, id).Scan(&props, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	bag, err := ir.DecodeObject([]byte(props))
	if err != nil {
		return nil, fmt.Errorf("decode instance props: %w", err)
	}
	return &engine.Instance{ID: id, Entity: entity, Version: version, Props: bag}, nil
}

// Put upserts one instance, enforcing optimistic versioning: an update
// only lands when the stored version is exactly one behind, and an
// insert only when the instance carries version 1.
func (s *SQLite) Put(ctx context.Context, tenantID string, inst *engine.Instance) error {
	props, err := json.Marshal(inst.Props)
	if err != nil {
		return fmt.Errorf("encode instance props: %w", err)
	}
	nowUnix := s.now().Unix()

	res, err := s.db.ExecContext(ctx,
		`UPDATE instances SET props = ?, version = ?, updated_at = ?
		 WHERE tenant_id = ? AND entity_type = ? AND id = ? AND version = ?`,
		string(props), inst.Version, nowUnix,
		tenantID, inst.Entity, inst.ID, inst.Version-1)
	if err != nil {
		return fmt.Errorf("update instance: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	if inst.Version != 1 {
		return engine.ErrVersionConflict
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO instances (tenant_id, entity_type, id, props, version, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tenantID, inst.Entity, inst.ID, string(props), inst.Version, nowUnix, nowUnix)
	if err != nil {
		// A concurrent writer got there first.
		return engine.ErrVersionConflict
	}
	return nil
}

// Delete removes one instance.
func (s *SQLite) Delete(ctx context.Context, tenantID, entity, id string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM instances WHERE tenant_id = ? AND entity_type = ? AND id = ?`,
		tenantID, entity, id)
	if err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrNotFound
	}
	return nil
}

// List returns all instances of an entity for the tenant, ordered by id.
func (s *SQLite) List(ctx context.Context, tenantID, entity string) ([]*engine.Instance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, props, version FROM instances
		 WHERE tenant_id = ? AND entity_type = ? ORDER BY id`,
		tenantID, entity)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var out []*engine.Instance
	for rows.Next() {
		var id, props string
		var version int64
		if err := rows.Scan(&id, &props, &version); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		bag, err := ir.DecodeObject([]byte(props))
		if err != nil {
			return nil, fmt.Errorf("decode instance props: %w", err)
		}
		out = append(out, &engine.Instance{ID: id, Entity: entity, Version: version, Props: bag})
	}
	return out, rows.Err()
}

// IdemGet reads a cached command result. Expired records are deleted on
// read and reported as a miss.
func (s *SQLite) IdemGet(ctx context.Context, tenantID, key string) ([]byte, bool, error) {
	var result string
	var expiresAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT result, expires_at FROM idempotency WHERE tenant_id = ? AND key = ?`,
		tenantID, key).Scan(&result, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get idempotency record: %w", err)
	}
	if expiresAt <= s.now().Unix() {
		_, _ = s.db.ExecContext(ctx,
			`DELETE FROM idempotency WHERE tenant_id = ? AND key = ?`, tenantID, key)
		return nil, false, nil
	}
	return []byte(result), true, nil
}

// IdemSet atomically upserts a cached command result with a fresh TTL.
func (s *SQLite) IdemSet(ctx context.Context, tenantID, key string, result []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = engine.DefaultIdempotencyTTL
	}
	nowUnix := s.now().Unix()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO idempotency (tenant_id, key, result, expires_at, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(tenant_id, key) DO UPDATE SET
		   result = excluded.result,
		   expires_at = excluded.expires_at`,
		tenantID, key, string(result), nowUnix+int64(ttl/time.Second), nowUnix)
	if err != nil {
		return fmt.Errorf("set idempotency record: %w", err)
	}
	return nil
}

// CleanupExpired bulk-deletes expired idempotency records across all
// tenants and reports how many went away.
func (s *SQLite) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM idempotency WHERE expires_at <= ?`, s.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency records: %w", err)
	}
	return res.RowsAffected()
}

// Idempotency adapts the store to engine.IdempotencyStore.
func (s *SQLite) Idempotency() engine.IdempotencyStore {
	return sqliteIdem{s}
}

type sqliteIdem struct{ s *SQLite }

func (a sqliteIdem) Get(ctx context.Context, tenantID, key string) ([]byte, bool, error) {
	return a.s.IdemGet(ctx, tenantID, key)
}

func (a sqliteIdem) Set(ctx context.Context, tenantID, key string, result []byte, ttl time.Duration) error {
	return a.s.IdemSet(ctx, tenantID, key, result, ttl)
}

func (a sqliteIdem) CleanupExpired(ctx context.Context) (int64, error) {
	return a.s.CleanupExpired(ctx)
}
