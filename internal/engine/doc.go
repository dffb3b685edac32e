// Package engine executes compiled manifest IR: instance lifecycle,
// policy and guard checks, constraint evaluation, command actions and
// event emission, with optional idempotent replay keyed per tenant.
//
// The engine owns no storage. Entity state and idempotency records go
// through the Store and IdempotencyStore interfaces; in-memory
// implementations in this package are the defaults, and the store
// package provides SQLite and Postgres backends.
package engine
