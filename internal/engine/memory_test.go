package engine

import (
	"context"
	"testing"

	"github.com/angriff36/manifest/internal/ir"
)

func TestMemoryStore_VersionConflict(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	inst := &Instance{ID: "d1", Entity: "Dish", Version: 1, Props: ir.Object{"price": ir.Number(5)}}
	if err := s.Put(ctx, "t1", inst); err != nil {
		t.Fatalf("initial Put failed: %v", err)
	}

	// Skipping a version is a conflict.
	stale := &Instance{ID: "d1", Entity: "Dish", Version: 3, Props: ir.Object{}}
	if err := s.Put(ctx, "t1", stale); err != ErrVersionConflict {
		t.Errorf("expected ErrVersionConflict, got %v", err)
	}

	// A fresh instance must start at version 1.
	bad := &Instance{ID: "d2", Entity: "Dish", Version: 5, Props: ir.Object{}}
	if err := s.Put(ctx, "t1", bad); err != ErrVersionConflict {
		t.Errorf("expected ErrVersionConflict for new instance at version 5, got %v", err)
	}
}

func TestMemoryStore_TenantScoping(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	inst := &Instance{ID: "d1", Entity: "Dish", Version: 1, Props: ir.Object{}}
	if err := s.Put(ctx, "t1", inst); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if _, err := s.Get(ctx, "t2", "Dish", "d1"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound for other tenant, got %v", err)
	}

	list, err := s.List(ctx, "t2", "Dish")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected empty list for other tenant, got %d", len(list))
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.Put(ctx, "t1", &Instance{ID: "d1", Entity: "Dish", Version: 1, Props: ir.Object{"n": ir.Number(1)}}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	got, err := s.Get(ctx, "t1", "Dish", "d1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got.Props["n"] = ir.Number(99)

	again, err := s.Get(ctx, "t1", "Dish", "d1")
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if !ir.Equal(ir.Number(1), again.Props["n"]) {
		t.Error("mutating a returned instance leaked into the store")
	}
}

func TestMemoryStore_ListSorted(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		if err := s.Put(ctx, "t1", &Instance{ID: id, Entity: "Dish", Version: 1, Props: ir.Object{}}); err != nil {
			t.Fatalf("Put %s failed: %v", id, err)
		}
	}
	list, err := s.List(ctx, "t1", "Dish")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	var ids []string
	for _, inst := range list {
		ids = append(ids, inst.ID)
	}
	if ids[0] != "a" || ids[1] != "b" || ids[2] != "c" {
		t.Errorf("expected sorted ids, got %v", ids)
	}
}
