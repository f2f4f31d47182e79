package broadcast

import (
	"context"
	"testing"
)

func TestAttachObserverReplacesAndClosesPrior(t *testing.T) {
	h := NewHub(4, nil)
	first := h.AttachObserver(context.Background(), "e1")
	second := h.AttachObserver(context.Background(), "e1")

	if first == second {
		t.Fatalf("expected a fresh subscriber on re-attach")
	}
	if _, ok := <-first.Messages(); ok {
		t.Fatalf("expected prior observer's channel to be closed")
	}
	if h.ObserverCount() != 1 {
		t.Fatalf("expected exactly one observer registered, got %d", h.ObserverCount())
	}
}

func TestPublishObservationDeliversToAttachedObserver(t *testing.T) {
	h := NewHub(4, nil)
	sub := h.AttachObserver(context.Background(), "e1")
	h.PublishObservation(context.Background(), "e1", Message{Type: "observation", Data: []byte("x")})

	msg := <-sub.Messages()
	if msg.Type != "observation" {
		t.Fatalf("expected observation message, got %+v", msg)
	}
}

func TestPublishObservationIsNoOpWithoutSubscriber(t *testing.T) {
	h := NewHub(4, nil)
	// Must not panic or block.
	h.PublishObservation(context.Background(), "missing", Message{Type: "observation"})
}

func TestSendDropsOldestWhenQueueFull(t *testing.T) {
	h := NewHub(2, nil)
	sub := h.AttachObserver(context.Background(), "e1")

	h.PublishObservation(context.Background(), "e1", Message{Type: "first"})
	h.PublishObservation(context.Background(), "e1", Message{Type: "second"})
	h.PublishObservation(context.Background(), "e1", Message{Type: "third"})

	if sub.Dropped() != 1 {
		t.Fatalf("expected exactly one dropped message, got %d", sub.Dropped())
	}

	var received []string
	for i := 0; i < 2; i++ {
		msg := <-sub.Messages()
		received = append(received, msg.Type)
	}
	if received[0] != "second" || received[1] != "third" {
		t.Fatalf("expected the oldest message to be dropped, got %v", received)
	}
}

func TestAttachViewerReturnsCachedSnapshot(t *testing.T) {
	h := NewHub(4, nil)
	h.RecordSnapshot(Message{Type: "snapshot", Data: []byte("snap-1")})

	sub, snap, had := h.AttachViewer(context.Background(), "viewer-1")
	if sub == nil {
		t.Fatalf("expected a subscriber to be returned")
	}
	if !had {
		t.Fatalf("expected a cached snapshot to be available")
	}
	if string(snap.Data) != "snap-1" {
		t.Fatalf("expected cached snapshot data, got %q", snap.Data)
	}
}

func TestAttachViewerBeforeAnySnapshotReportsNone(t *testing.T) {
	h := NewHub(4, nil)
	_, _, had := h.AttachViewer(context.Background(), "viewer-1")
	if had {
		t.Fatalf("expected no cached snapshot before RecordSnapshot is ever called")
	}
}

func TestBroadcastViewersFansOutToEveryViewer(t *testing.T) {
	h := NewHub(4, nil)
	a, _, _ := h.AttachViewer(context.Background(), "viewer-a")
	b, _, _ := h.AttachViewer(context.Background(), "viewer-b")

	h.BroadcastViewers(context.Background(), Message{Type: "tick_started"})

	for _, sub := range []*Subscriber{a, b} {
		msg := <-sub.Messages()
		if msg.Type != "tick_started" {
			t.Fatalf("expected tick_started delivered to every viewer, got %+v", msg)
		}
	}
}

func TestDetachViewerClosesAndRemovesSubscriber(t *testing.T) {
	h := NewHub(4, nil)
	sub, _, _ := h.AttachViewer(context.Background(), "viewer-1")
	h.DetachViewer(context.Background(), "viewer-1", "disconnected")

	if h.ViewerCount() != 0 {
		t.Fatalf("expected viewer count to drop to zero after detach")
	}
	if _, ok := <-sub.Messages(); ok {
		t.Fatalf("expected detached viewer's channel to be closed")
	}
}

func TestDetachObserverIgnoresStaleSubscriber(t *testing.T) {
	h := NewHub(4, nil)
	stale := h.AttachObserver(context.Background(), "e1")
	current := h.AttachObserver(context.Background(), "e1")

	// Detaching with the stale (already-replaced) subscriber must not
	// touch the current one.
	h.DetachObserver(context.Background(), "e1", stale, "stale")
	if h.ObserverCount() != 1 {
		t.Fatalf("expected current observer to remain registered")
	}
	h.PublishObservation(context.Background(), "e1", Message{Type: "ping"})
	if msg, ok := <-current.Messages(); !ok || msg.Type != "ping" {
		t.Fatalf("expected current subscriber to still receive messages")
	}
}
