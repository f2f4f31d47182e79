package world

import "testing"

func newTestWorld(t *testing.T) *World {
	t.Helper()
	w, err := New(Config{Width: 5, Height: 5, Seed: "test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return w
}

func TestSpawnEntityRejectsDuplicateID(t *testing.T) {
	w := newTestWorld(t)
	e := Entity{ID: "e1", Position: Position{X: 1, Y: 1}, EntityType: "rat"}
	if _, err := w.SpawnEntity(e); err != nil {
		t.Fatalf("first spawn: %v", err)
	}
	e2 := Entity{ID: "e1", Position: Position{X: 2, Y: 2}, EntityType: "rat"}
	if _, err := w.SpawnEntity(e2); err != ErrDuplicateEntity {
		t.Fatalf("expected ErrDuplicateEntity, got %v", err)
	}
}

func TestSpawnEntityRejectsOutOfBounds(t *testing.T) {
	w := newTestWorld(t)
	e := Entity{ID: "e1", Position: Position{X: 99, Y: 99}, EntityType: "rat"}
	if _, err := w.SpawnEntity(e); err != ErrOutOfBounds {
		t.Fatalf("expected ErrOutOfBounds, got %v", err)
	}
}

func TestSpawnEntityRejectsOccupiedTile(t *testing.T) {
	w := newTestWorld(t)
	pos := Position{X: 1, Y: 1}
	if _, err := w.SpawnEntity(Entity{ID: "e1", Position: pos}); err != nil {
		t.Fatalf("first spawn: %v", err)
	}
	if _, err := w.SpawnEntity(Entity{ID: "e2", Position: pos}); err != ErrTileOccupied {
		t.Fatalf("expected ErrTileOccupied, got %v", err)
	}
}

func TestSpawnEntityAssignsCurrentTick(t *testing.T) {
	w := newTestWorld(t)
	w.AdvanceTick()
	w.AdvanceTick()
	e, err := w.SpawnEntity(Entity{ID: "e1", Position: Position{X: 0, Y: 0}})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if e.SpawnTick != 2 {
		t.Fatalf("expected SpawnTick 2, got %d", e.SpawnTick)
	}
}

func TestDespawnEntityUnknown(t *testing.T) {
	w := newTestWorld(t)
	if err := w.DespawnEntity("missing"); err != ErrUnknownEntity {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestDespawnEntityFreesPosition(t *testing.T) {
	w := newTestWorld(t)
	pos := Position{X: 1, Y: 1}
	if _, err := w.SpawnEntity(Entity{ID: "e1", Position: pos}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := w.DespawnEntity("e1"); err != nil {
		t.Fatalf("despawn: %v", err)
	}
	if _, ok := w.EntityAt(pos); ok {
		t.Fatalf("expected position to be free after despawn")
	}
	if _, err := w.SpawnEntity(Entity{ID: "e2", Position: pos}); err != nil {
		t.Fatalf("expected freed tile to be spawnable, got %v", err)
	}
}

func TestMoveEntityMaintainsIndexInvariant(t *testing.T) {
	w := newTestWorld(t)
	from := Position{X: 0, Y: 0}
	to := Position{X: 1, Y: 0}
	if _, err := w.SpawnEntity(Entity{ID: "e1", Position: from}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := w.MoveEntity("e1", to); err != nil {
		t.Fatalf("move: %v", err)
	}
	if _, ok := w.EntityAt(from); ok {
		t.Fatalf("expected old position vacated")
	}
	e, ok := w.EntityAt(to)
	if !ok || e.ID != "e1" {
		t.Fatalf("expected e1 at new position")
	}
	if err := w.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated after move: %v", err)
	}
}

func TestEnactMovesAppliesChainAtomically(t *testing.T) {
	w := newTestWorld(t)
	a := Position{X: 0, Y: 0}
	b := Position{X: 1, Y: 0}
	c := Position{X: 2, Y: 0}
	if _, err := w.SpawnEntity(Entity{ID: "A", Position: a}); err != nil {
		t.Fatalf("spawn A: %v", err)
	}
	if _, err := w.SpawnEntity(Entity{ID: "B", Position: b}); err != nil {
		t.Fatalf("spawn B: %v", err)
	}
	// A moves into B's old tile, B moves into C (empty): a linear chain.
	moves := map[EntityID]Position{"A": b, "B": c}
	if err := w.EnactMoves(moves); err != nil {
		t.Fatalf("enact moves: %v", err)
	}
	if eA, ok := w.EntityAt(b); !ok || eA.ID != "A" {
		t.Fatalf("expected A at %v", b)
	}
	if eB, ok := w.EntityAt(c); !ok || eB.ID != "B" {
		t.Fatalf("expected B at %v", c)
	}
	if err := w.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated after chain move: %v", err)
	}
}

func TestMutateInventoryLeavesStateUntouchedOnError(t *testing.T) {
	w := newTestWorld(t)
	if _, err := w.SpawnEntity(Entity{ID: "e1", Position: Position{X: 0, Y: 0}, Inventory: NewInventory()}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	err := w.MutateInventory("e1", func(inv Inventory) (Inventory, error) {
		return inv.Remove("wood", 1)
	})
	if err != ErrUndersupplied {
		t.Fatalf("expected ErrUndersupplied, got %v", err)
	}
	e, _ := w.Entity("e1")
	if e.Inventory.Count("wood") != 0 {
		t.Fatalf("expected inventory untouched on failed mutation")
	}
}

func TestObjectRegistryIndexesByTile(t *testing.T) {
	w := newTestWorld(t)
	pos := Position{X: 2, Y: 2}
	obj := WorldObject{ID: "o1", Position: pos, ObjectType: "crate", State: map[string]string{"wood": "5"}}
	if err := w.AddObject(obj); err != nil {
		t.Fatalf("add object: %v", err)
	}
	at := w.ObjectsAt(pos)
	if len(at) != 1 || at[0].ID != "o1" {
		t.Fatalf("expected one object at %v, got %v", pos, at)
	}
	oldVal, newVal, err := w.UpdateObjectField("o1", "wood", "2")
	if err != nil {
		t.Fatalf("update field: %v", err)
	}
	if oldVal != "5" || newVal != "2" {
		t.Fatalf("expected old=5 new=2, got old=%s new=%s", oldVal, newVal)
	}
	if err := w.RemoveObject("o1"); err != nil {
		t.Fatalf("remove object: %v", err)
	}
	if len(w.ObjectsAt(pos)) != 0 {
		t.Fatalf("expected tile index cleared after removal")
	}
}

func TestCheckInvariantsDetectsIndexMismatch(t *testing.T) {
	w := newTestWorld(t)
	if _, err := w.SpawnEntity(Entity{ID: "e1", Position: Position{X: 0, Y: 0}}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	// Directly corrupt the position index (white-box: same package).
	w.positions[Position{X: 3, Y: 3}] = "e1"
	if err := w.CheckInvariants(); err != ErrInvariantViolated {
		t.Fatalf("expected ErrInvariantViolated, got %v", err)
	}
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	w := newTestWorld(t)
	if _, err := w.SpawnEntity(Entity{ID: "e1", Position: Position{X: 0, Y: 0}}); err != nil {
		t.Fatalf("spawn: %v", err)
	}
	w.AdvanceTick()
	snap := w.Snapshot()

	if _, err := w.SpawnEntity(Entity{ID: "e2", Position: Position{X: 1, Y: 1}}); err != nil {
		t.Fatalf("spawn e2: %v", err)
	}
	if err := w.MoveEntity("e1", Position{X: 2, Y: 2}); err != nil {
		t.Fatalf("move: %v", err)
	}
	w.AdvanceTick()

	w.Restore(snap)

	if _, ok := w.Entity("e2"); ok {
		t.Fatalf("expected e2 to be gone after restore")
	}
	e1, ok := w.Entity("e1")
	if !ok || e1.Position != (Position{X: 0, Y: 0}) {
		t.Fatalf("expected e1 restored to origin, got %+v", e1)
	}
	if w.Tick() != snap.Tick {
		t.Fatalf("expected tick restored to %d, got %d", snap.Tick, w.Tick())
	}
	if err := w.CheckInvariants(); err != nil {
		t.Fatalf("invariants violated after restore: %v", err)
	}
}

func TestGridDefaultAndOutOfBoundsTiles(t *testing.T) {
	w := newTestWorld(t)
	if !w.Walkable(Position{X: 0, Y: 0}) {
		t.Fatalf("expected default tile to be walkable")
	}
	if w.Walkable(Position{X: 100, Y: 100}) {
		t.Fatalf("expected out-of-bounds tile to be unwalkable")
	}
	if err := w.SetTile(Position{X: 0, Y: 0}, Tile{Walkable: false, Opaque: true}); err != nil {
		t.Fatalf("set tile: %v", err)
	}
	if w.Walkable(Position{X: 0, Y: 0}) {
		t.Fatalf("expected overridden tile to be unwalkable")
	}
}
