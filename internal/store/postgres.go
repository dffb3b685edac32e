package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/angriff36/manifest/internal/engine"
	"github.com/angriff36/manifest/internal/ir"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS instances (
    tenant_id   TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    id          TEXT NOT NULL,
    props       JSONB NOT NULL,
    version     BIGINT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (tenant_id, entity_type, id)
);

CREATE TABLE IF NOT EXISTS idempotency (
    tenant_id  TEXT NOT NULL,
    key        TEXT NOT NULL,
    result     JSONB NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (tenant_id, key)
);

CREATE INDEX IF NOT EXISTS idx_idempotency_expires ON idempotency (expires_at);
`

// Postgres backs engine.Store and engine.IdempotencyStore with a pgx
// connection pool, for deployments where multiple processes share state.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// PostgresOption configures OpenPostgres.
type PostgresOption func(*Postgres)

// WithPostgresClock overrides the store's clock.
func WithPostgresClock(now func() time.Time) PostgresOption {
	return func(p *Postgres) { p.now = now }
}

// OpenPostgres connects to the given DSN and applies the schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...PostgresOption) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	p := &Postgres{pool: pool, now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() { p.pool.Close() }

func (p *Postgres) Get(ctx context.Context, tenantID, entity, id string) (*engine.Instance, error) {
	var props []byte
	var version int64
	err := p.pool.QueryRow(ctx,
		`SELECT props, version FROM instances
		 WHERE tenant_id = $1 AND entity_type = $2 AND id = $3`,
		tenantID, entity, id).Scan(&props, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, engine.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	bag, err := ir.DecodeObject(props)
	if err != nil {
		return nil, fmt.Errorf("decode instance props: %w", err)
	}
	return &engine.Instance{ID: id, Entity: entity, Version: version, Props: bag}, nil
}

func (p *Postgres) Put(ctx context.Context, tenantID string, inst *engine.Instance) error {
	props, err := json.Marshal(inst.Props)
	if err != nil {
		return fmt.Errorf("encode instance props: %w", err)
	}
	now := p.now().UTC()

	tag, err := p.pool.Exec(ctx,
		`UPDATE instances SET props = $1, version = $2, updated_at = $3
		 WHERE tenant_id = $4 AND entity_type = $5 AND id = $6 AND version = $7`,
		props, inst.Version, now,
		tenantID, inst.Entity, inst.ID, inst.Version-1)
	if err != nil {
		return fmt.Errorf("update instance: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	if inst.Version != 1 {
		return engine.ErrVersionConflict
	}
	tag, err = p.pool.Exec(ctx,
		`INSERT INTO instances (tenant_id, entity_type, id, props, version, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (tenant_id, entity_type, id) DO NOTHING`,
		tenantID, inst.Entity, inst.ID, props, inst.Version, now, now)
	if err != nil {
		return fmt.Errorf("insert instance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrVersionConflict
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, tenantID, entity, id string) error {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM instances WHERE tenant_id = $1 AND entity_type = $2 AND id = $3`,
		tenantID, entity, id)
	if err != nil {
		return fmt.Errorf("delete instance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return engine.ErrNotFound
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, tenantID, entity string) ([]*engine.Instance, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, props, version FROM instances
		 WHERE tenant_id = $1 AND entity_type = $2 ORDER BY id`,
		tenantID, entity)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var out []*engine.Instance
	for rows.Next() {
		var id string
		var props []byte
		var version int64
		if err := rows.Scan(&id, &props, &version); err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		bag, err := ir.DecodeObject(props)
		if err != nil {
			return nil, fmt.Errorf("decode instance props: %w", err)
		}
		out = append(out, &engine.Instance{ID: id, Entity: entity, Version: version, Props: bag})
	}
	return out, rows.Err()
}

// Idempotency adapts the store to engine.IdempotencyStore.
func (p *Postgres) Idempotency() engine.IdempotencyStore {
	return postgresIdem{p}
}

type postgresIdem struct{ p *Postgres }

func (a postgresIdem) Get(ctx context.Context, tenantID, key string) ([]byte, bool, error) {
	var result []byte
	var expiresAt time.Time
	err := a.p.pool.QueryRow(ctx,
		`SELECT result, expires_at FROM idempotency WHERE tenant_id = $1 AND key = $2`,
		tenantID, key).Scan(&result, &expiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get idempotency record: %w", err)
	}
	if !expiresAt.After(a.p.now()) {
		_, _ = a.p.pool.Exec(ctx,
			`DELETE FROM idempotency WHERE tenant_id = $1 AND key = $2`, tenantID, key)
		return nil, false, nil
	}
	return result, true, nil
}

func (a postgresIdem) Set(ctx context.Context, tenantID, key string, result []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = engine.DefaultIdempotencyTTL
	}
	now := a.p.now().UTC()
	_, err := a.p.pool.Exec(ctx,
		`INSERT INTO idempotency (tenant_id, key, result, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (tenant_id, key) DO UPDATE SET
		   result = EXCLUDED.result,
		   expires_at = EXCLUDED.expires_at`,
		tenantID, key, result, now.Add(ttl), now)
	if err != nil {
		return fmt.Errorf("set idempotency record: %w", err)
	}
	return nil
}

func (a postgresIdem) CleanupExpired(ctx context.Context) (int64, error) {
	tag, err := a.p.pool.Exec(ctx,
		`DELETE FROM idempotency WHERE expires_at <= $1`, a.p.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup idempotency records: %w", err)
	}
	return tag.RowsAffected(), nil
}
