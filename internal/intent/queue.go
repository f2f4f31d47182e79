package intent

import (
	"sync"

	"ticksim/server/internal/world"
)

// RejectReason is the wire-level reason a submitted intent was rejected.
type RejectReason string

const (
	RejectWrongTick     RejectReason = "wrong_tick"
	RejectLateTick      RejectReason = "late_tick"
	RejectInvalidLease  RejectReason = "invalid_lease"
	RejectIllegalAction RejectReason = "illegal_action"
	RejectUnknownEntity RejectReason = "unknown_entity"
)

// queueWarningStep bounds warning-log frequency under backpressure: log
// once every N submissions rather than on every single one, so a runaway
// client doesn't flood the log.
const queueWarningStep = 256

// Submission is one accepted intent pending resolution.
type Submission struct {
	EntityID world.EntityID
	Intent   Intent
}

// Queue holds one slot per (tickID, entityID), open for submissions between
// OPEN_T and the tick deadline. Submitting more than once for the same
// (tick, entity) replaces the prior slot — last-valid-wins.
type Queue struct {
	mu       sync.Mutex
	tickID   uint64
	open     bool
	slots    map[world.EntityID]Intent
	accepted int
}

// NewQueue constructs an empty, closed queue.
func NewQueue() *Queue {
	return &Queue{slots: make(map[world.EntityID]Intent)}
}

// Open clears any stale slots and begins accepting submissions for tickID.
func (q *Queue) Open(tickID uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tickID = tickID
	q.open = true
	q.slots = make(map[world.EntityID]Intent)
	q.accepted = 0
}

// Submit accepts in into the queue for (tickID, entityID), validating the
// tick and deadline state. Callers are expected to have already validated
// the lease via the lease manager — Queue itself has no lease knowledge, so
// RejectInvalidLease is returned by the caller, not by Submit.
func (q *Queue) Submit(tickID uint64, entityID world.EntityID, in Intent) (bool, RejectReason) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.open {
		return false, RejectLateTick
	}
	if tickID != q.tickID {
		return false, RejectWrongTick
	}
	q.slots[entityID] = in
	q.accepted++
	return true, ""
}

// Accepted reports how many submissions have been accepted for the
// currently open tick (used for the high-water-mark warning).
func (q *Queue) Accepted() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.accepted
}

// ShouldWarn reports whether the accepted count just crossed a warning
// threshold.
func ShouldWarn(count int) bool {
	return queueWarningStep > 0 && count > 0 && count%queueWarningStep == 0
}

// Drain closes the queue and returns every submitted entity's intent.
// Entities with no submission are not present in the returned map; callers
// must treat a missing entry as an implicit Wait.
func (q *Queue) Drain() map[world.EntityID]Intent {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.open = false
	drained := q.slots
	q.slots = make(map[world.EntityID]Intent)
	return drained
}

// IntentFor returns the intent for id from a drained set, defaulting to
// Wait if the entity did not submit one.
func IntentFor(drained map[world.EntityID]Intent, id world.EntityID) Intent {
	if in, ok := drained[id]; ok {
		return in
	}
	return WaitIntent()
}
