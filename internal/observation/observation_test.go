package observation

import (
	"context"
	"testing"

	"ticksim/server/internal/world"
)

func TestChebyshevRespectsRadius(t *testing.T) {
	v := Chebyshev(2)
	origin := world.Position{X: 5, Y: 5}
	inside := world.Position{X: 7, Y: 6}  // Chebyshev distance 2
	outside := world.Position{X: 8, Y: 5} // Chebyshev distance 3
	if !v(origin, inside, world.Snapshot{}) {
		t.Fatalf("expected position at exactly radius to be visible")
	}
	if v(origin, outside, world.Snapshot{}) {
		t.Fatalf("expected position beyond radius to be invisible")
	}
}

func buildSnapshot(t *testing.T) world.Snapshot {
	t.Helper()
	w, err := world.New(world.Config{Width: 10, Height: 10, Seed: "test"})
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	if _, err := w.SpawnEntity(world.Entity{ID: "observer", Position: world.Position{X: 5, Y: 5}}); err != nil {
		t.Fatalf("spawn observer: %v", err)
	}
	if _, err := w.SpawnEntity(world.Entity{ID: "near", Position: world.Position{X: 6, Y: 5}}); err != nil {
		t.Fatalf("spawn near: %v", err)
	}
	if _, err := w.SpawnEntity(world.Entity{ID: "far", Position: world.Position{X: 9, Y: 9}}); err != nil {
		t.Fatalf("spawn far: %v", err)
	}
	return w.Snapshot()
}

func TestObserveOnlyIncludesEntitiesWithinRadius(t *testing.T) {
	snap := buildSnapshot(t)
	gen := NewGenerator(3, 3, nil)
	obs := gen.Observe(context.Background(), snap, "observer", 1000, PriorTick{})

	found := map[world.EntityID]bool{}
	for _, e := range obs.VisibleEntities {
		found[e.ID] = true
	}
	if !found["observer"] || !found["near"] {
		t.Fatalf("expected observer and near entity to be visible, got %+v", obs.VisibleEntities)
	}
	if found["far"] {
		t.Fatalf("expected far entity to be outside radius, got %+v", obs.VisibleEntities)
	}
}

func TestObserveIncludesMoveEventWhenEitherEndpointVisible(t *testing.T) {
	snap := buildSnapshot(t)
	gen := NewGenerator(3, 3, nil)
	prior := PriorTick{
		Moves: []PriorMove{
			{EntityID: "near", From: world.Position{X: 6, Y: 5}, To: world.Position{X: 9, Y: 9}, Success: true},
		},
	}
	obs := gen.Observe(context.Background(), snap, "observer", 1000, prior)
	var found bool
	for _, ev := range obs.Events {
		if ev.Kind == "entity_moved" && ev.EntityID == "near" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected entity_moved event for a move whose origin was visible, got %+v", obs.Events)
	}
}

func TestObserveDerivesEnteredAndLeftEvents(t *testing.T) {
	snap := buildSnapshot(t)
	gen := NewGenerator(3, 3, nil)
	prior := PriorTick{
		EnteredVisible: map[world.EntityID]bool{"near": true},
		LeftVisible:    map[world.EntityID]bool{"far": true},
	}
	obs := gen.Observe(context.Background(), snap, "observer", 1000, prior)

	var entered, left bool
	for _, ev := range obs.Events {
		if ev.Kind == "entity_entered" && ev.EntityID == "near" {
			entered = true
		}
		if ev.Kind == "entity_left" && ev.EntityID == "far" {
			left = true
		}
	}
	if !entered || !left {
		t.Fatalf("expected both entity_entered and entity_left events, got %+v", obs.Events)
	}
}

func TestObserveUtteranceRespectsHearingRadius(t *testing.T) {
	snap := buildSnapshot(t)
	gen := NewGenerator(3, 1, nil)
	prior := PriorTick{
		Utterances: []PriorUtterance{
			{EntityID: "far", Position: world.Position{X: 9, Y: 9}, Text: "hello", Channel: "local"},
		},
	}
	obs := gen.Observe(context.Background(), snap, "observer", 1000, prior)
	for _, ev := range obs.Events {
		if ev.Kind == "utterance" {
			t.Fatalf("expected utterance beyond hearing radius to be filtered out, got %+v", ev)
		}
	}
}

func TestVisibleTilesBoundedByRadius(t *testing.T) {
	snap := buildSnapshot(t)
	gen := NewGenerator(1, 1, nil)
	obs := gen.Observe(context.Background(), snap, "observer", 1000, PriorTick{})
	// radius 1 around (5,5), fully in-bounds: a 3x3 block == 9 tiles.
	if len(obs.VisibleTiles) != 9 {
		t.Fatalf("expected 9 visible tiles at radius 1, got %d", len(obs.VisibleTiles))
	}
}
