// Package store provides the durable backends for the engine's Store
// and IdempotencyStore interfaces: SQLite for single-node deployments
// and Postgres for shared ones. Both enforce tenant scoping and
// optimistic instance versioning at the SQL layer.
package store
