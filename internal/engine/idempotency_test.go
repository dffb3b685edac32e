package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angriff36/manifest/internal/ir"
	"github.com/angriff36/manifest/internal/testutil"
)

func TestRunCommand_IdempotentReplay(t *testing.T) {
	eng := newTestEngine(t, dishManifest, "manager")
	inst := seedDish(t, eng, 18)
	ctx := context.Background()

	first, err := eng.RunCommand(ctx, "Dish", "updatePricing",
		ir.Object{"price": ir.Number(24)}, RunOptions{InstanceID: inst.ID, IdempotencyKey: "op-1"})
	require.NoError(t, err)
	require.True(t, first.Success)

	// Same key replays the cached result without re-executing.
	second, err := eng.RunCommand(ctx, "Dish", "updatePricing",
		ir.Object{"price": ir.Number(99)}, RunOptions{InstanceID: inst.ID, IdempotencyKey: "op-1"})
	require.NoError(t, err)
	require.True(t, second.Success)
	assert.True(t, second.Replayed)
	assert.True(t, ir.Equal(ir.Number(24), second.Instance.Props["price"]),
		"replay returns the original result, not a re-execution")

	// The instance did not move past the first run.
	stored, err := eng.GetInstance(ctx, "Dish", inst.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.True(t, ir.Equal(ir.Number(24), stored.Props["price"]))
}

func TestRunCommand_BlockedResultsAreNotCached(t *testing.T) {
	eng := newTestEngine(t, dishManifest, "manager")
	inst := seedDish(t, eng, 18)
	ctx := context.Background()

	blocked, err := eng.RunCommand(ctx, "Dish", "updatePricing",
		ir.Object{"price": ir.Number(-5)}, RunOptions{InstanceID: inst.ID, IdempotencyKey: "op-2"})
	require.NoError(t, err)
	require.False(t, blocked.Success)

	// The same key executes fresh once the input is valid.
	retry, err := eng.RunCommand(ctx, "Dish", "updatePricing",
		ir.Object{"price": ir.Number(21)}, RunOptions{InstanceID: inst.ID, IdempotencyKey: "op-2"})
	require.NoError(t, err)
	require.True(t, retry.Success)
	assert.False(t, retry.Replayed)
	assert.True(t, ir.Equal(ir.Number(21), retry.Instance.Props["price"]))
}

func TestRunCommand_WarnResultsAreCached(t *testing.T) {
	eng := newTestEngine(t, dishManifest, "manager")
	inst := seedDish(t, eng, 18)
	ctx := context.Background()

	first, err := eng.RunCommand(ctx, "Dish", "updatePricing",
		ir.Object{"price": ir.Number(19.5)}, RunOptions{InstanceID: inst.ID, IdempotencyKey: "op-3"})
	require.NoError(t, err)
	require.True(t, first.Success)
	require.NotEmpty(t, first.Warnings())

	second, err := eng.RunCommand(ctx, "Dish", "updatePricing",
		ir.Object{"price": ir.Number(19.5)}, RunOptions{InstanceID: inst.ID, IdempotencyKey: "op-3"})
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	require.NotEmpty(t, second.Warnings(), "warn outcomes survive the cache round-trip")
}

func TestIdempotency_TenantIsolation(t *testing.T) {
	compiled := compileManifest(t, dishManifest)
	shared := NewMemoryIdempotencyStore(nil)
	store := NewMemoryStore()

	mkEngine := func(tenant string) *Engine {
		ids := testutil.NewIDGen()
		return New(compiled, Context{TenantID: tenant, UserID: "u1", UserRole: "manager"},
			WithIdempotencyStore(shared),
			WithStoreProvider(func(string) Store { return store }),
			WithIDGenerator(ids.Next),
		)
	}
	ctx := context.Background()

	engA := mkEngine("tenant-a")
	engB := mkEngine("tenant-b")

	instA, err := engA.CreateInstance(ctx, "Dish", ir.Object{"name": ir.String("A"), "price": ir.Number(1)})
	require.NoError(t, err)

	resA, err := engA.RunCommand(ctx, "Dish", "updatePricing",
		ir.Object{"price": ir.Number(10)}, RunOptions{InstanceID: instA.ID, IdempotencyKey: "shared-key"})
	require.NoError(t, err)
	require.True(t, resA.Success)

	// Tenant B reuses the key and still executes fresh.
	instB, err := engB.CreateInstance(ctx, "Dish", ir.Object{"name": ir.String("B"), "price": ir.Number(2)})
	require.NoError(t, err)
	resB, err := engB.RunCommand(ctx, "Dish", "updatePricing",
		ir.Object{"price": ir.Number(20)}, RunOptions{InstanceID: instB.ID, IdempotencyKey: "shared-key"})
	require.NoError(t, err)
	require.True(t, resB.Success)
	assert.False(t, resB.Replayed)
	assert.True(t, ir.Equal(ir.Number(20), resB.Instance.Props["price"]))
}

func TestMemoryIdempotencyStore_TTLBoundary(t *testing.T) {
	clock := testutil.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewMemoryIdempotencyStore(clock.Now)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "t1", "k1", []byte(`{"success":true}`), 0))

	// One second before the default 24h TTL elapses: still a hit.
	clock.Advance(DefaultIdempotencyTTL - time.Second)
	_, hit, err := store.Get(ctx, "t1", "k1")
	require.NoError(t, err)
	assert.True(t, hit)

	// At exactly the expiry instant the record is gone.
	clock.Advance(time.Second)
	_, hit, err = store.Get(ctx, "t1", "k1")
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestMemoryIdempotencyStore_CleanupExpired(t *testing.T) {
	clock := testutil.NewClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	store := NewMemoryIdempotencyStore(clock.Now)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "t1", "short", []byte(`{}`), time.Minute))
	require.NoError(t, store.Set(ctx, "t2", "short", []byte(`{}`), time.Minute))
	require.NoError(t, store.Set(ctx, "t1", "long", []byte(`{}`), time.Hour))

	clock.Advance(30 * time.Minute)
	n, err := store.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "sweep crosses tenants")

	_, hit, err := store.Get(ctx, "t1", "long")
	require.NoError(t, err)
	assert.True(t, hit)
}

// failingIdemStore simulates a broken idempotency backend.
type failingIdemStore struct{}

func (failingIdemStore) Get(context.Context, string, string) ([]byte, bool, error) {
	return nil, false, errors.New("backend down")
}

func (failingIdemStore) Set(context.Context, string, string, []byte, time.Duration) error {
	return errors.New("backend down")
}

func (failingIdemStore) CleanupExpired(context.Context) (int64, error) {
	return 0, errors.New("backend down")
}

func TestRunCommand_IdempotencyFailOpen(t *testing.T) {
	eng := newTestEngine(t, dishManifest, "manager", WithIdempotencyStore(failingIdemStore{}))
	inst := seedDish(t, eng, 18)

	result, err := eng.RunCommand(context.Background(), "Dish", "updatePricing",
		ir.Object{"price": ir.Number(24)}, RunOptions{InstanceID: inst.ID, IdempotencyKey: "op-x"})
	require.NoError(t, err, "idempotency store failures never fail the command")
	assert.True(t, result.Success)
}
