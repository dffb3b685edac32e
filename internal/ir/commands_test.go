package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveCommandManifest_SortedAndDerived(t *testing.T) {
	i := &IR{
		Commands: []CommandDef{
			{Name: "close", Entity: "Order"},
			{Name: "updatePricing", Entity: "Dish"},
			{Name: "archive", Entity: "Order"},
			{Name: "rename", Entity: "Dish"},
		},
	}

	entries := DeriveCommandManifest(i)
	require.Len(t, entries, 4)
	assert.Equal(t, []CommandManifestEntry{
		{Entity: "Dish", Command: "rename", CommandID: "Dish.rename"},
		{Entity: "Dish", Command: "updatePricing", CommandID: "Dish.updatePricing"},
		{Entity: "Order", Command: "archive", CommandID: "Order.archive"},
		{Entity: "Order", Command: "close", CommandID: "Order.close"},
	}, entries)
}

func TestMarshalCommandManifest_Deterministic(t *testing.T) {
	i := &IR{Commands: []CommandDef{
		{Name: "b", Entity: "E"},
		{Name: "a", Entity: "E"},
	}}
	first, err := MarshalCommandManifest(DeriveCommandManifest(i))
	require.NoError(t, err)
	second, err := MarshalCommandManifest(DeriveCommandManifest(i))
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Contains(t, string(first), `"commandId": "E.a"`)
}
