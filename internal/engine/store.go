package engine

import (
	"context"
	"time"
)

// Store persists entity instances, scoped by tenant and entity type.
// Implementations must return ErrNotFound from Get and Delete when no
// instance matches, and ErrVersionConflict from Put when the stored
// version differs from inst.Version (optimistic concurrency; a Put of a
// new instance expects version 0 stored nowhere).
type Store interface {
	Get(ctx context.Context, tenantID, entity, id string) (*Instance, error)
	Put(ctx context.Context, tenantID string, inst *Instance) error
	Delete(ctx context.Context, tenantID, entity, id string) error
	List(ctx context.Context, tenantID, entity string) ([]*Instance, error)
}

// IdempotencyStore caches serialized command results per (tenant, key).
// Get must treat expired records as absent. Implementations may delete
// expired records lazily on read; CleanupExpired sweeps the rest.
//
// Callers treat the store as advisory: errors from Get and Set are
// logged and degrade to a cache miss or a skipped write, never to a
// failed command.
type IdempotencyStore interface {
	Get(ctx context.Context, tenantID, key string) ([]byte, bool, error)
	Set(ctx context.Context, tenantID, key string, result []byte, ttl time.Duration) error
	CleanupExpired(ctx context.Context) (int64, error)
}

// DefaultIdempotencyTTL is the record lifetime used when a Set caller
// passes a non-positive TTL.
const DefaultIdempotencyTTL = 24 * time.Hour
