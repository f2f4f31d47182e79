// Package sim implements the tick scheduler: the single-threaded driver
// of the IDLE -> OPEN_T -> RESOLVING_T -> ENACTING_T -> EMITTING_T ->
// IDLE state machine, a phased, deadline-gated replacement for a
// continuous-motion update loop.
package sim

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"ticksim/server/internal/action"
	"ticksim/server/internal/broadcast"
	"ticksim/server/internal/intent"
	"ticksim/server/internal/lease"
	"ticksim/server/internal/observation"
	"ticksim/server/internal/resolver"
	"ticksim/server/internal/world"

	movementevents "ticksim/server/logging/movement"
	tickevents "ticksim/server/logging/tick"

	"ticksim/server/logging"
)

// Phase names the scheduler's current state, exposed for diagnostics.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseOpen      Phase = "open"
	PhaseResolving Phase = "resolving"
	PhaseEnacting  Phase = "enacting"
	PhaseEmitting  Phase = "emitting"
)

// Scheduler drives the simulation one tick at a time. All World mutation
// happens from the single goroutine running Run. The lease manager and
// the intent queue are not owned by that goroutine: adapter goroutines
// mutate them directly through SubmitIntent, AcquireLease, RenewLease and
// ReleaseLease, and each guards its own state with its own mutex.
type Scheduler struct {
	cfg     Config
	world   *world.World
	leases  *lease.Manager
	queue   *intent.Queue
	obsGen  *observation.Generator
	hub     *broadcast.Hub
	codec   Codec
	pub     logging.Publisher
	stop    chan struct{}
	stopped sync.Once

	// ShutdownHook is invoked when an invariant violation is detected,
	// after state has been rolled back and a fatal event logged. Defaults
	// to a no-op; internal/app.Run overrides it with os.Exit.
	ShutdownHook func()

	phaseMu sync.RWMutex
	phase   Phase

	spawnMu  sync.Mutex
	spawns   []world.Entity
	despawns []world.EntityID

	prior    TickResult
	priorMu  sync.RWMutex
	visible  map[world.EntityID]map[world.EntityID]struct{}

	// snapMu guards snapshot, the most recently published point-in-time
	// read of the world. Boundary adapters run on their own goroutines and
	// must never touch *world.World directly while the tick goroutine is
	// mutating it; they read through this cached snapshot instead, per the
	// single-writer/multi-reader discipline world.World documents.
	snapMu   sync.RWMutex
	snapshot world.Snapshot

	overrunStreak  uint64
	alarmTriggered bool
}

// New constructs a Scheduler wired to the given collaborators.
func New(cfg Config, w *world.World, leases *lease.Manager, queue *intent.Queue, obsGen *observation.Generator, hub *broadcast.Hub, codec Codec, pub logging.Publisher) *Scheduler {
	if pub == nil {
		pub = logging.NopPublisher{}
	}
	if codec == nil {
		codec = NopCodec{}
	}
	s := &Scheduler{
		cfg:          cfg.Normalized(),
		world:        w,
		leases:       leases,
		queue:        queue,
		obsGen:       obsGen,
		hub:          hub,
		codec:        codec,
		pub:          pub,
		stop:         make(chan struct{}),
		ShutdownHook: func() {},
		phase:        PhaseIdle,
		visible:      make(map[world.EntityID]map[world.EntityID]struct{}),
	}
	s.refreshSnapshot()
	return s
}

// refreshSnapshot publishes the current world state for adapter goroutines
// to read. Must only be called from the tick goroutine, between mutations.
func (s *Scheduler) refreshSnapshot() {
	snap := s.world.Snapshot()
	s.snapMu.Lock()
	s.snapshot = snap
	s.snapMu.Unlock()
}

// currentSnapshot returns the most recently published snapshot. Safe to
// call from any goroutine.
func (s *Scheduler) currentSnapshot() world.Snapshot {
	s.snapMu.RLock()
	defer s.snapMu.RUnlock()
	return s.snapshot
}

// Phase reports the scheduler's current phase.
func (s *Scheduler) Phase() Phase {
	s.phaseMu.RLock()
	defer s.phaseMu.RUnlock()
	return s.phase
}

func (s *Scheduler) setPhase(p Phase) {
	s.phaseMu.Lock()
	s.phase = p
	s.phaseMu.Unlock()
}

// Stop signals the scheduler to complete any in-flight tick and exit: on
// shutdown it stops accepting new intents, completes the current tick,
// and exits. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopped.Do(func() { close(s.stop) })
}

// QueueSpawn schedules e to be spawned at the end of the current tick's
// action phase (before EMITTING_T), where it will appear in
// TickResult.Spawns and trigger an entity_spawned broadcast.
func (s *Scheduler) QueueSpawn(e world.Entity) {
	s.spawnMu.Lock()
	s.spawns = append(s.spawns, e)
	s.spawnMu.Unlock()
}

// QueueDespawn schedules id to be despawned at the end of the current
// tick's action phase.
func (s *Scheduler) QueueDespawn(id world.EntityID) {
	s.spawnMu.Lock()
	s.despawns = append(s.despawns, id)
	s.spawnMu.Unlock()
}

// SubmitIntent validates the lease and forwards in to the intent queue,
// returning an accepted/reason shape. This is the single entry point
// boundary adapters use — they never call intent.Queue directly.
func (s *Scheduler) SubmitIntent(leaseID string, entityID world.EntityID, tickID uint64, in intent.Intent) (bool, intent.RejectReason) {
	if _, ok := s.currentSnapshot().EntityByID(entityID); !ok {
		return false, intent.RejectUnknownEntity
	}
	if !s.leases.Validate(leaseID, entityID, time.Now()) {
		return false, intent.RejectInvalidLease
	}
	ok, reason := s.queue.Submit(tickID, entityID, in)
	if ok && intent.ShouldWarn(s.queue.Accepted()) {
		s.pub.Publish(context.Background(), logging.Event{
			Type:     "intent.queue_high_water",
			Tick:     tickID,
			Severity: logging.SeverityWarn,
			Category: "intent",
			Payload:  map[string]int{"accepted": s.queue.Accepted()},
		})
	}
	return ok, reason
}

// PriorResult returns a copy of the most recently emitted TickResult, used
// to seed the next tick's observations.
func (s *Scheduler) PriorResult() TickResult {
	s.priorMu.RLock()
	defer s.priorMu.RUnlock()
	return s.prior
}

// Run drives the phased tick loop at the configured cadence until Stop is
// called or ctx is cancelled. It honors the shutdown signal by finishing
// any in-flight tick before returning — no partial tick state is ever
// exposed.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.TickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			s.broadcastShutdown(ctx)
			return nil
		case <-ctx.Done():
			s.broadcastShutdown(ctx)
			return ctx.Err()
		case tickStart := <-ticker.C:
			if err := s.runTick(ctx, tickStart); err != nil {
				return err
			}
		}
	}
}

func (s *Scheduler) broadcastShutdown(ctx context.Context) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastViewers(ctx, broadcast.Message{Type: "shutdown"})
}

func (s *Scheduler) runTick(ctx context.Context, tickStart time.Time) error {
	budgetStart := time.Now()
	tickID := s.world.AdvanceTick()
	deadlineAt := tickStart.Add(s.cfg.IntentDeadline)

	s.setPhase(PhaseOpen)
	s.queue.Open(tickID)

	s.hub.BroadcastViewers(ctx, s.codec.EncodeTickStarted(tickID, tickStart.UnixMilli(), deadlineAt.UnixMilli(), s.cfg.TickDuration.Milliseconds()))
	s.pushObservations(ctx, tickID, deadlineAt)

	s.waitUntil(deadlineAt)

	s.setPhase(PhaseResolving)
	preResolution := s.world.Snapshot()
	drained := s.queue.Drain()

	claims := s.buildClaims(drained)
	res := resolver.Resolve(claims, s.occupant, s.world.Walkable)
	s.publishMovementSummary(ctx, tickID, res)

	winners := res.Winners()

	s.setPhase(PhaseEnacting)
	if err := s.world.EnactMoves(winners); err != nil {
		return s.abort(ctx, tickID, preResolution, fmt.Sprintf("enact moves: %v", err))
	}

	requests := s.buildActionRequests(drained)
	actionResults, objectChanges := action.Apply(ctx, s.pub, tickID, s.world, requests)

	spawns, despawns := s.drainSpawnQueues()
	for _, e := range spawns {
		if _, err := s.world.SpawnEntity(e); err != nil {
			return s.abort(ctx, tickID, preResolution, fmt.Sprintf("spawn entity: %v", err))
		}
	}
	for _, id := range despawns {
		if err := s.world.DespawnEntity(id); err != nil {
			return s.abort(ctx, tickID, preResolution, fmt.Sprintf("despawn entity: %v", err))
		}
	}

	s.leases.Sweep(ctx, tickID, time.Now())

	if err := s.world.CheckInvariants(); err != nil {
		return s.abort(ctx, tickID, preResolution, err.Error())
	}
	s.refreshSnapshot()

	result := TickResult{
		TickID:        tickID,
		Moves:         movesFromResolution(res),
		Actions:       actionResults,
		ObjectChanges: objectChanges,
		Spawns:        spawns,
		Despawns:      despawns,
	}

	s.setPhase(PhaseEmitting)
	s.priorMu.Lock()
	s.prior = result
	s.priorMu.Unlock()

	s.hub.BroadcastViewers(ctx, s.codec.EncodeTickCompleted(result))
	for _, e := range spawns {
		s.hub.BroadcastViewers(ctx, s.codec.EncodeEntitySpawned(tickID, e))
	}
	for _, id := range despawns {
		s.hub.BroadcastViewers(ctx, s.codec.EncodeEntityDespawned(tickID, id))
	}

	s.recordOverrun(ctx, tickID, time.Since(budgetStart))
	s.setPhase(PhaseIdle)
	return nil
}

func (s *Scheduler) abort(ctx context.Context, tickID uint64, snapshot world.Snapshot, detail string) error {
	s.world.Restore(snapshot)
	s.refreshSnapshot()
	tickevents.InvariantViolation(ctx, s.pub, tickID, tickevents.InvariantViolationPayload{
		Invariant: "world",
		Detail:    detail,
	})
	s.ShutdownHook()
	return &InvariantViolation{TickID: tickID, Detail: detail}
}

func (s *Scheduler) waitUntil(deadline time.Time) {
	d := time.Until(deadline)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-s.stop:
	}
}

func (s *Scheduler) drainSpawnQueues() ([]world.Entity, []world.EntityID) {
	s.spawnMu.Lock()
	defer s.spawnMu.Unlock()
	spawns := s.spawns
	despawns := s.despawns
	s.spawns = nil
	s.despawns = nil
	return spawns, despawns
}

func (s *Scheduler) occupant(p world.Position) (world.EntityID, bool) {
	e, ok := s.world.EntityAt(p)
	if !ok {
		return "", false
	}
	return e.ID, true
}

func (s *Scheduler) buildClaims(drained map[world.EntityID]intent.Intent) []resolver.Claim {
	claims := make([]resolver.Claim, 0, len(drained))
	for id, in := range drained {
		if in.Kind != intent.Move {
			continue
		}
		e, ok := s.world.Entity(id)
		if !ok {
			continue
		}
		to := e.Position.Add(in.Direction.Delta())
		if to == e.Position {
			continue
		}
		claims = append(claims, resolver.Claim{EntityID: id, From: e.Position, To: to})
	}
	sort.Slice(claims, func(i, j int) bool { return claims[i].EntityID < claims[j].EntityID })
	return claims
}

// buildActionRequests collects every non-movement intent. It runs after
// EnactMoves, so actions operate on post-move positions.
func (s *Scheduler) buildActionRequests(drained map[world.EntityID]intent.Intent) []action.Request {
	requests := make([]action.Request, 0, len(drained))
	for id, in := range drained {
		if in.Kind == intent.Move {
			continue
		}
		requests = append(requests, action.Request{EntityID: id, Intent: in})
	}
	return requests
}

func (s *Scheduler) publishMovementSummary(ctx context.Context, tickID uint64, res resolver.Result) {
	winners, losers := 0, 0
	reasons := make(map[string]int)
	for _, o := range res.Outcomes {
		if o.Success {
			winners++
			continue
		}
		losers++
		reasons[string(o.Reason)]++
	}
	movementevents.Resolved(ctx, s.pub, tickID, movementevents.ResolvedPayload{
		Claims:  len(res.Outcomes),
		Winners: winners,
		Losers:  losers,
		Reasons: reasons,
	})
}

func (s *Scheduler) pushObservations(ctx context.Context, tickID uint64, deadlineAt time.Time) {
	snap := s.world.Snapshot()
	prior := s.PriorResult()
	for _, e := range snap.Entities {
		newVisible := s.computeVisible(e.ID, e.Position, snap)
		s.priorMu.RLock()
		oldVisible := s.visible[e.ID]
		s.priorMu.RUnlock()

		entered := make(map[world.EntityID]bool)
		left := make(map[world.EntityID]bool)
		for id := range newVisible {
			if _, ok := oldVisible[id]; !ok {
				entered[id] = true
			}
		}
		for id := range oldVisible {
			if _, ok := newVisible[id]; !ok {
				left[id] = true
			}
		}

		s.priorMu.Lock()
		s.visible[e.ID] = newVisible
		s.priorMu.Unlock()

		obs := s.obsGen.Observe(ctx, snap, e.ID, deadlineAt.UnixMilli(), observation.PriorTick{
			Moves:          movesToPrior(prior.Moves),
			ObjectChanges:  objectChangesToPrior(prior.ObjectChanges),
			EnteredVisible: entered,
			LeftVisible:    left,
		})
		s.hub.PublishObservation(ctx, string(e.ID), s.codec.EncodeObservation(obs))
	}
}

func (s *Scheduler) computeVisible(observerID world.EntityID, selfPos world.Position, snap world.Snapshot) map[world.EntityID]struct{} {
	out := make(map[world.EntityID]struct{})
	for _, e := range snap.Entities {
		if e.ID == observerID {
			continue
		}
		if s.obsGen.Visibility(selfPos, e.Position, snap) {
			out[e.ID] = struct{}{}
		}
	}
	return out
}

func (s *Scheduler) recordOverrun(ctx context.Context, tickID uint64, duration time.Duration) {
	budget := s.cfg.TickDuration
	if budget <= 0 || duration <= budget {
		s.overrunStreak = 0
		s.alarmTriggered = false
		return
	}
	ratio := float64(duration) / float64(budget)
	s.overrunStreak++
	tickevents.Overrun(ctx, s.pub, tickID, tickevents.OverrunPayload{
		DurationMillis: duration.Milliseconds(),
		BudgetMillis:   budget.Milliseconds(),
		Ratio:          ratio,
		Streak:         s.overrunStreak,
	})
	if !s.alarmTriggered && (ratio >= overrunAlarmMinRatio || s.overrunStreak >= overrunAlarmMinStreak) {
		s.alarmTriggered = true
		tickevents.Alarm(ctx, s.pub, tickID, tickevents.AlarmPayload{Ratio: ratio, Streak: s.overrunStreak})
		if s.hub != nil {
			s.hub.RecordSnapshot(s.codec.EncodeSnapshot(s.world.Snapshot()))
		}
	}
}

func movesToPrior(moves []MoveResult) []observation.PriorMove {
	out := make([]observation.PriorMove, 0, len(moves))
	for _, m := range moves {
		out = append(out, observation.PriorMove{EntityID: m.EntityID, From: m.From, To: m.To, Success: m.Success})
	}
	return out
}

func objectChangesToPrior(changes []action.ObjectChange) []observation.PriorObjectChange {
	out := make([]observation.PriorObjectChange, 0, len(changes))
	for _, c := range changes {
		out = append(out, observation.PriorObjectChange{ObjectID: c.ObjectID, Field: c.Field, Old: c.Old, New: c.New})
	}
	return out
}
