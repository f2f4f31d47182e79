// Package broadcast implements the broadcast hub: fan-out of tick-aligned
// events to per-agent observer streams and read-only viewer subscribers.
// A synchronous WriteMessage call per subscriber would let one stalled
// client stall the whole tick loop; this package instead gives every
// subscriber a bounded outbound queue drained by its own writer, with
// drop-oldest backpressure.
package broadcast

import (
	"context"
	"sync"
	"sync/atomic"

	broadcastevents "ticksim/server/logging/broadcast"

	"ticksim/server/logging"
)

// DefaultQueueDepth is the default per-subscriber outbound queue bound.
const DefaultQueueDepth = 128

// Message is one outbound payload, opaque to the Hub — boundary adapters
// (internal/net/ws) decide the wire encoding.
type Message struct {
	Type string
	Data []byte
}

// Subscriber is a single outbound channel with drop-oldest backpressure. A
// subscriber must be drained by exactly one consumer goroutine.
type Subscriber struct {
	ID      string
	Kind    string // "observer" | "viewer"
	queue   chan Message
	dropped atomic.Uint64
	closed  chan struct{}
	once    sync.Once
}

// Messages returns the channel to range over for delivery.
func (s *Subscriber) Messages() <-chan Message { return s.queue }

// Dropped returns the count of messages dropped for backpressure.
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }

// Close stops further delivery and releases the outbound queue. Safe to
// call more than once.
func (s *Subscriber) Close() {
	s.once.Do(func() {
		close(s.closed)
		close(s.queue)
	})
}

func (s *Subscriber) send(ctx context.Context, pub logging.Publisher, msg Message) {
	select {
	case <-s.closed:
		return
	default:
	}
	select {
	case s.queue <- msg:
		return
	default:
	}
	// Queue full: drop the oldest message, make room, then enqueue — a
	// slow subscriber must never stall the publisher.
	select {
	case <-s.queue:
		s.dropped.Add(1)
		broadcastevents.MessageDropped(ctx, pub, broadcastevents.MessageDroppedPayload{
			Kind:         s.Kind,
			SubscriberID: s.ID,
			QueueDepth:   cap(s.queue),
		})
	default:
	}
	select {
	case s.queue <- msg:
	default:
	}
}

// Hub tracks observer streams (one active per leased entity) and viewer
// subscribers, fanning out tick-aligned events with per-subscriber ordering
// preserved before tick_completed(T)
// before tick_started(T+1) for any one subscriber).
type Hub struct {
	mu          sync.RWMutex
	queueDepth  int
	observers   map[string]*Subscriber // keyed by entityID
	viewers     map[string]*Subscriber // keyed by a generated subscriber id
	lastSnapshot Message
	havSnapshot bool
	pub         logging.Publisher
}

// NewHub constructs a Hub with the given per-subscriber queue depth.
func NewHub(queueDepth int, pub logging.Publisher) *Hub {
	if queueDepth <= 0 {
		queueDepth = DefaultQueueDepth
	}
	if pub == nil {
		pub = logging.NopPublisher{}
	}
	return &Hub{
		queueDepth: queueDepth,
		observers:  make(map[string]*Subscriber),
		viewers:    make(map[string]*Subscriber),
		pub:        pub,
	}
}

// AttachObserver registers (or replaces) the observer stream for entityID:
// one active observer stream at a time per entity, bound to the current
// lease. Replacing detaches and closes any prior stream for the same
// entity.
func (h *Hub) AttachObserver(ctx context.Context, entityID string) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prior, ok := h.observers[entityID]; ok {
		prior.Close()
	}
	sub := &Subscriber{ID: entityID, Kind: "observer", queue: make(chan Message, h.queueDepth), closed: make(chan struct{})}
	h.observers[entityID] = sub
	broadcastevents.SubscriberAttached(ctx, h.pub, broadcastevents.SubscriberAttachedPayload{Kind: "observer"})
	return sub
}

// DetachObserver removes and closes the observer stream for entityID, if it
// is still the one on file (sub must match by pointer to avoid a race with
// a concurrent re-attach winning).
func (h *Hub) DetachObserver(ctx context.Context, entityID string, sub *Subscriber, reason string) {
	h.mu.Lock()
	current, ok := h.observers[entityID]
	if ok && current == sub {
		delete(h.observers, entityID)
	}
	h.mu.Unlock()
	if ok && current == sub {
		sub.Close()
		broadcastevents.SubscriberDropped(ctx, h.pub, broadcastevents.SubscriberDroppedPayload{Kind: "observer", Reason: reason})
	}
}

// PublishObservation delivers msg to entityID's observer stream, if one is
// attached. No-op otherwise.
func (h *Hub) PublishObservation(ctx context.Context, entityID string, msg Message) {
	h.mu.RLock()
	sub, ok := h.observers[entityID]
	h.mu.RUnlock()
	if ok {
		sub.send(ctx, h.pub, msg)
	}
}

// AttachViewer registers a new read-only viewer subscriber under id. The
// viewer receives a snapshot message (if one has been recorded) before
// any subsequent tick_started/tick_completed pair — the caller is
// expected to deliver the returned snapshot (ok=true) first, then range
// over Messages() for live events, preserving that ordering.
func (h *Hub) AttachViewer(ctx context.Context, id string) (*Subscriber, Message, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	sub := &Subscriber{ID: id, Kind: "viewer", queue: make(chan Message, h.queueDepth), closed: make(chan struct{})}
	h.viewers[id] = sub
	broadcastevents.SubscriberAttached(ctx, h.pub, broadcastevents.SubscriberAttachedPayload{Kind: "viewer"})
	return sub, h.lastSnapshot, h.havSnapshot
}

// DetachViewer removes and closes the viewer subscriber.
func (h *Hub) DetachViewer(ctx context.Context, id string, reason string) {
	h.mu.Lock()
	sub, ok := h.viewers[id]
	if ok {
		delete(h.viewers, id)
	}
	h.mu.Unlock()
	if ok {
		sub.Close()
		broadcastevents.SubscriberDropped(ctx, h.pub, broadcastevents.SubscriberDroppedPayload{Kind: "viewer", Reason: reason})
	}
}

// RecordSnapshot caches msg as the most recent viewer snapshot, handed to
// every viewer that attaches after this call. This keeps only the most
// recent snapshot; sequence-indexed replay is out of scope for this core.
func (h *Hub) RecordSnapshot(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastSnapshot = msg
	h.havSnapshot = true
}

// BroadcastViewers fans msg out to every attached viewer subscriber.
func (h *Hub) BroadcastViewers(ctx context.Context, msg Message) {
	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.viewers))
	for _, s := range h.viewers {
		subs = append(subs, s)
	}
	h.mu.RUnlock()
	for _, s := range subs {
		s.send(ctx, h.pub, msg)
	}
}

// ObserverCount reports the number of attached observer streams.
func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// ViewerCount reports the number of attached viewer subscribers.
func (h *Hub) ViewerCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}
