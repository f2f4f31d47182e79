package sim

import (
	"context"
	"time"

	"ticksim/server/internal/broadcast"
	"ticksim/server/internal/lease"
	"ticksim/server/internal/world"
)

// DiscoveryEntry is one controllable entity and its current lease status.
type DiscoveryEntry struct {
	EntityID        world.EntityID
	EntityType      string
	Tags            []string
	SpawnTick       uint64
	HasActiveLease  bool
}

// Discover lists every entity in the world with its current lease status.
func (s *Scheduler) Discover() []DiscoveryEntry {
	now := time.Now()
	entities := s.currentSnapshot().Entities
	out := make([]DiscoveryEntry, 0, len(entities))
	for _, e := range entities {
		_, active := s.leases.Holder(e.ID, now)
		tags := make([]string, 0, len(e.Tags))
		for t := range e.Tags {
			tags = append(tags, t)
		}
		out = append(out, DiscoveryEntry{
			EntityID:       e.ID,
			EntityType:     e.EntityType,
			Tags:           tags,
			SpawnTick:      e.SpawnTick,
			HasActiveLease: active,
		})
	}
	return out
}

// AcquireLease acquires or renews-on-acquire a lease for entityID, gated on
// the entity actually existing in the world. Adapters never touch
// *world.World directly — this is the one blessed path.
func (s *Scheduler) AcquireLease(ctx context.Context, entityID world.EntityID, controllerID string) (lease.Lease, bool, lease.DenyReason) {
	snap := s.currentSnapshot()
	if _, ok := snap.EntityByID(entityID); !ok {
		return lease.Lease{}, false, lease.DenyUnknown
	}
	return s.leases.Acquire(ctx, snap.Tick, entityID, controllerID, time.Now())
}

// RenewLease extends an existing lease.
func (s *Scheduler) RenewLease(ctx context.Context, leaseID string) (lease.Lease, bool, lease.DenyReason) {
	return s.leases.Renew(ctx, s.currentSnapshot().Tick, leaseID, time.Now())
}

// ReleaseLease explicitly destroys a lease.
func (s *Scheduler) ReleaseLease(ctx context.Context, leaseID string) bool {
	return s.leases.Release(ctx, s.currentSnapshot().Tick, leaseID)
}

// ValidateLease reports whether leaseID currently authorizes entityID.
func (s *Scheduler) ValidateLease(leaseID string, entityID world.EntityID) bool {
	return s.leases.Validate(leaseID, entityID, time.Now())
}

// Snapshot exposes the current world snapshot for viewer-connect handling
// and diagnostics. Safe to call concurrently with the tick goroutine.
func (s *Scheduler) Snapshot() world.Snapshot {
	return s.currentSnapshot()
}

// Hub exposes the broadcast hub for boundary adapters to attach/detach
// observer streams and viewer subscribers.
func (s *Scheduler) Hub() *broadcast.Hub {
	return s.hub
}

// Entity exposes a single entity lookup for adapters building responses
// (e.g. the observation stream's initial state, discovery details). Safe
// to call concurrently with the tick goroutine.
func (s *Scheduler) Entity(id world.EntityID) (world.Entity, bool) {
	return s.currentSnapshot().EntityByID(id)
}

// Config returns the scheduler's normalized configuration.
func (s *Scheduler) Config() Config {
	return s.cfg
}
