package action

import (
	"context"
	"testing"

	"ticksim/server/internal/intent"
	"ticksim/server/internal/world"
)

func newTestWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New(world.Config{Width: 5, Height: 5, Seed: "test"})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	return w
}

func TestApplyCollectTransfersAvailableQuantity(t *testing.T) {
	w := newTestWorld(t)
	pos := world.Position{X: 1, Y: 1}
	if _, err := w.SpawnEntity(world.Entity{ID: "e1", Position: pos, Inventory: world.NewInventory()}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := w.AddObject(world.WorldObject{
		ID: "crate", Position: pos, ObjectType: "crate",
		State: map[string]string{"wood": "5"},
	}); err != nil {
		t.Fatalf("add object: %v", err)
	}

	reqs := []Request{{EntityID: "e1", Intent: intent.CollectIntent("crate", "wood", 3)}}
	results, changes := Apply(context.Background(), nil, 1, w, reqs)

	if len(results) != 1 || !results[0].Success {
		t.Fatalf("expected successful collect, got %+v", results)
	}
	if len(changes) != 1 || changes[0].Old != "5" || changes[0].New != "2" {
		t.Fatalf("expected object change 5->2, got %+v", changes)
	}
	e, _ := w.Entity("e1")
	if e.Inventory.Count("wood") != 3 {
		t.Fatalf("expected entity inventory to hold 3 wood, got %d", e.Inventory.Count("wood"))
	}
	obj, _ := w.Object("crate")
	if raw, _ := obj.StateField("wood"); raw != "2" {
		t.Fatalf("expected object's wood field to be 2, got %q", raw)
	}
}

func TestApplyCollectFailsWhenUndersupplied(t *testing.T) {
	w := newTestWorld(t)
	pos := world.Position{X: 1, Y: 1}
	w.SpawnEntity(world.Entity{ID: "e1", Position: pos, Inventory: world.NewInventory()})
	w.AddObject(world.WorldObject{ID: "crate", Position: pos, State: map[string]string{"wood": "1"}})

	reqs := []Request{{EntityID: "e1", Intent: intent.CollectIntent("crate", "wood", 5)}}
	results, changes := Apply(context.Background(), nil, 1, w, reqs)

	if len(results) != 1 || results[0].Success {
		t.Fatalf("expected collect to fail when undersupplied, got %+v", results)
	}
	if len(changes) != 0 {
		t.Fatalf("expected no object change on failed collect")
	}
	e, _ := w.Entity("e1")
	if e.Inventory.Count("wood") != 0 {
		t.Fatalf("expected entity inventory untouched on failed collect")
	}
}

func TestApplyCollectFailsWhenNotCoLocated(t *testing.T) {
	w := newTestWorld(t)
	w.SpawnEntity(world.Entity{ID: "e1", Position: world.Position{X: 0, Y: 0}, Inventory: world.NewInventory()})
	w.AddObject(world.WorldObject{ID: "crate", Position: world.Position{X: 4, Y: 4}, State: map[string]string{"wood": "5"}})

	reqs := []Request{{EntityID: "e1", Intent: intent.CollectIntent("crate", "wood", 1)}}
	results, _ := Apply(context.Background(), nil, 1, w, reqs)
	if results[0].Success {
		t.Fatalf("expected collect to fail when entity is not co-located with the object")
	}
	if results[0].Reason != ErrNoTarget.Error() {
		t.Fatalf("expected ErrNoTarget reason, got %q", results[0].Reason)
	}
}

func TestApplyEatConsumesInventory(t *testing.T) {
	w := newTestWorld(t)
	w.SpawnEntity(world.Entity{ID: "e1", Position: world.Position{X: 0, Y: 0}, Inventory: world.NewInventory()})
	w.MutateInventory("e1", func(inv world.Inventory) (world.Inventory, error) {
		return inv.Add("berries", 2)
	})

	reqs := []Request{{EntityID: "e1", Intent: intent.EatIntent("berries", 1)}}
	results, _ := Apply(context.Background(), nil, 1, w, reqs)
	if !results[0].Success {
		t.Fatalf("expected eat to succeed, got %+v", results[0])
	}
	e, _ := w.Entity("e1")
	if e.Inventory.Count("berries") != 1 {
		t.Fatalf("expected one berry remaining, got %d", e.Inventory.Count("berries"))
	}
}

func TestApplyEatFailsWhenUndersupplied(t *testing.T) {
	w := newTestWorld(t)
	w.SpawnEntity(world.Entity{ID: "e1", Position: world.Position{X: 0, Y: 0}, Inventory: world.NewInventory()})

	reqs := []Request{{EntityID: "e1", Intent: intent.EatIntent("berries", 1)}}
	results, _ := Apply(context.Background(), nil, 1, w, reqs)
	if results[0].Success {
		t.Fatalf("expected eat to fail when inventory is empty")
	}
}

func TestApplyReservedKindsAreNotImplemented(t *testing.T) {
	w := newTestWorld(t)
	w.SpawnEntity(world.Entity{ID: "e1", Position: world.Position{X: 0, Y: 0}, Inventory: world.NewInventory()})

	reqs := []Request{{EntityID: "e1", Intent: intent.Intent{Kind: intent.Pickup}}}
	results, _ := Apply(context.Background(), nil, 1, w, reqs)
	if results[0].Success {
		t.Fatalf("expected reserved action kind to report failure")
	}
	if results[0].Reason != ErrNotImplemented.Error() {
		t.Fatalf("expected ErrNotImplemented reason, got %q", results[0].Reason)
	}
}

func TestApplyProcessesRequestsInEntityIDOrder(t *testing.T) {
	w := newTestWorld(t)
	w.SpawnEntity(world.Entity{ID: "zebra", Position: world.Position{X: 0, Y: 0}, Inventory: world.NewInventory()})
	w.SpawnEntity(world.Entity{ID: "alpha", Position: world.Position{X: 1, Y: 1}, Inventory: world.NewInventory()})

	reqs := []Request{
		{EntityID: "zebra", Intent: intent.WaitIntent()},
		{EntityID: "alpha", Intent: intent.WaitIntent()},
	}
	results, _ := Apply(context.Background(), nil, 1, w, reqs)
	if results[0].EntityID != "alpha" || results[1].EntityID != "zebra" {
		t.Fatalf("expected results ordered by entity id, got %+v", results)
	}
}
