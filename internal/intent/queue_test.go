package intent

import (
	"testing"

	"ticksim/server/internal/world"
)

func TestSubmitBeforeOpenIsLateTick(t *testing.T) {
	q := NewQueue()
	ok, reason := q.Submit(1, "e1", WaitIntent())
	if ok {
		t.Fatalf("expected submission to fail before queue is opened")
	}
	if reason != RejectLateTick {
		t.Fatalf("expected RejectLateTick, got %q", reason)
	}
}

func TestSubmitWrongTickIsRejected(t *testing.T) {
	q := NewQueue()
	q.Open(5)
	ok, reason := q.Submit(4, "e1", WaitIntent())
	if ok {
		t.Fatalf("expected submission for wrong tick to fail")
	}
	if reason != RejectWrongTick {
		t.Fatalf("expected RejectWrongTick, got %q", reason)
	}
}

func TestSubmitLastValidWins(t *testing.T) {
	q := NewQueue()
	q.Open(1)
	if ok, _ := q.Submit(1, "e1", MoveIntent(world.DirectionN)); !ok {
		t.Fatalf("expected first submission accepted")
	}
	if ok, _ := q.Submit(1, "e1", MoveIntent(world.DirectionS)); !ok {
		t.Fatalf("expected replacement submission accepted")
	}
	drained := q.Drain()
	in, ok := drained["e1"]
	if !ok {
		t.Fatalf("expected e1 present in drained set")
	}
	if in.Direction != world.DirectionS {
		t.Fatalf("expected last submission (S) to win, got %v", in.Direction)
	}
}

func TestDrainClosesQueueAndResetsSlots(t *testing.T) {
	q := NewQueue()
	q.Open(1)
	q.Submit(1, "e1", WaitIntent())
	drained := q.Drain()
	if len(drained) != 1 {
		t.Fatalf("expected one drained entry, got %d", len(drained))
	}
	if ok, reason := q.Submit(1, "e2", WaitIntent()); ok || reason != RejectLateTick {
		t.Fatalf("expected submissions after Drain to be rejected as late, got ok=%v reason=%q", ok, reason)
	}
}

func TestIntentForDefaultsToWait(t *testing.T) {
	drained := map[world.EntityID]Intent{"e1": MoveIntent(world.DirectionE)}
	if in := IntentFor(drained, "e2"); in.Kind != Wait {
		t.Fatalf("expected missing entity to default to Wait, got %v", in.Kind)
	}
	if in := IntentFor(drained, "e1"); in.Kind != Move {
		t.Fatalf("expected e1's submitted intent to be returned, got %v", in.Kind)
	}
}

func TestShouldWarnCrossesThresholdOnce(t *testing.T) {
	if ShouldWarn(0) {
		t.Fatalf("expected no warning at zero submissions")
	}
	if ShouldWarn(255) {
		t.Fatalf("expected no warning below threshold")
	}
	if !ShouldWarn(256) {
		t.Fatalf("expected warning exactly at threshold")
	}
	if ShouldWarn(257) {
		t.Fatalf("expected no warning just past threshold")
	}
}

func TestOpenClearsPriorTickSlots(t *testing.T) {
	q := NewQueue()
	q.Open(1)
	q.Submit(1, "e1", WaitIntent())
	q.Open(2)
	if q.Accepted() != 0 {
		t.Fatalf("expected accepted count reset on reopen, got %d", q.Accepted())
	}
	drained := q.Drain()
	if _, ok := drained["e1"]; ok {
		t.Fatalf("expected stale slot from tick 1 to be cleared by Open(2)")
	}
}
