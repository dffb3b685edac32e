package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angriff36/manifest/internal/ir"
)

func ownershipFixture() *ir.IR {
	return &ir.IR{
		Entities: []ir.EntityDef{
			{Name: "Dish", Line: 2},
			{Name: "Order", Line: 10},
		},
		Commands: []ir.CommandDef{
			{Name: "updatePricing", Entity: "Dish", Line: 5},
			{Name: "close", Entity: "", Line: 12},
			{Name: "reopen", Entity: "Ghost", Line: 14},
		},
	}
}

func TestEnforceCommandOwnership_RepairsByLine(t *testing.T) {
	fixture := ownershipFixture()
	require.NoError(t, EnforceCommandOwnership(fixture, "catering"))

	// Untagged and dangling commands fall to the entity declared above.
	assert.Equal(t, "Dish", fixture.Commands[0].Entity)
	assert.Equal(t, "Order", fixture.Commands[1].Entity)
	assert.Equal(t, "Order", fixture.Commands[2].Entity)

	assert.Equal(t, []string{"updatePricing"}, fixture.Entity("Dish").Commands)
	assert.Equal(t, []string{"close", "reopen"}, fixture.Entity("Order").Commands)
	assert.Equal(t, "catering", fixture.Manifest)
}

func TestEnforceCommandOwnership_Total(t *testing.T) {
	fixture := ownershipFixture()
	before := len(fixture.Commands)
	require.NoError(t, EnforceCommandOwnership(fixture, ""))

	assert.Len(t, fixture.Commands, before, "normalization never drops commands")
	owned := 0
	for _, e := range fixture.Entities {
		owned += len(e.Commands)
	}
	assert.Equal(t, before, owned, "every command is owned by exactly one entity")
	for _, c := range fixture.Commands {
		assert.NotNil(t, fixture.Entity(c.Entity), "command %s tagged with present entity", c.Name)
	}
}

func TestEnforceCommandOwnership_Idempotent(t *testing.T) {
	fixture := ownershipFixture()
	require.NoError(t, EnforceCommandOwnership(fixture, "catering"))

	first, err := ir.MarshalDeterministic(fixture)
	require.NoError(t, err)

	require.NoError(t, EnforceCommandOwnership(fixture, "catering"))
	second, err := ir.MarshalDeterministic(fixture)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestEnforceCommandOwnership_SingleEntityFallback(t *testing.T) {
	fixture := &ir.IR{
		Entities: []ir.EntityDef{{Name: "Dish", Line: 8}},
		Commands: []ir.CommandDef{{Name: "touch", Line: 1}},
	}
	require.NoError(t, EnforceCommandOwnership(fixture, ""))
	assert.Equal(t, "Dish", fixture.Commands[0].Entity)
}

func TestEnforceCommandOwnership_Unattributable(t *testing.T) {
	fixture := &ir.IR{
		Entities: []ir.EntityDef{
			{Name: "Dish", Line: 10},
			{Name: "Order", Line: 20},
		},
		Commands: []ir.CommandDef{{Name: "orphan", Line: 2}},
	}
	err := EnforceCommandOwnership(fixture, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "orphan")
	// Failure leaves the IR untouched.
	assert.Empty(t, fixture.Commands[0].Entity)
}
