// Package lease implements the exclusive entity-control lease manager: a
// standalone, TTL-based grant that a controller must hold before its
// intents are accepted for a given entity.
package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"ticksim/server/internal/world"
	logginglease "ticksim/server/logging"
	leaseevents "ticksim/server/logging/lease"
)

// DefaultTTL is the default lease time-to-live.
const DefaultTTL = 30 * time.Second

// DenyReason is the wire-level reason a lease acquisition was refused.
type DenyReason string

const (
	DenyAlreadyLeased DenyReason = "already_leased"
	DenyExpired       DenyReason = "expired"
	DenyUnknown       DenyReason = "unknown_lease"
)

// Lease is the time-bounded exclusive right to submit intents for one
// entity. Lease ids are genuinely fresh identifiers (uuid.NewString()) —
// unlike entity/tick ids there is no natural monotonic counter shared
// across acquire/renew.
type Lease struct {
	ID           string
	EntityID     world.EntityID
	ControllerID string
	IssuedAtMS   int64
	ExpiresAtMS  int64
}

// active reports whether the lease has not yet expired as of now.
func (l Lease) active(nowMS int64) bool {
	return nowMS < l.ExpiresAtMS
}

// Manager issues, renews, validates, and expires leases. One Manager per
// world; all methods are safe for concurrent use by adapter goroutines.
// The single-writer discipline that governs World does not extend to the
// Manager itself, which holds its own lock for concurrent adapter access.
type Manager struct {
	mu        sync.Mutex
	ttl       time.Duration
	byEntity  map[world.EntityID]Lease
	byLeaseID map[string]world.EntityID
	pub       logginglease.Publisher
}

// NewManager constructs a Manager with the given TTL. A zero or negative
// ttl falls back to DefaultTTL.
func NewManager(ttl time.Duration, pub logginglease.Publisher) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if pub == nil {
		pub = logginglease.NopPublisher{}
	}
	return &Manager{
		ttl:       ttl,
		byEntity:  make(map[world.EntityID]Lease),
		byLeaseID: make(map[string]world.EntityID),
		pub:       pub,
	}
}

// Acquire grants a lease for entityID to controllerID. It succeeds if no
// active lease exists for the entity, or if the existing active lease
// already belongs to controllerID (renewal-on-acquire keeps the same
// lease id and only bumps its expiry).
func (m *Manager) Acquire(ctx context.Context, tick uint64, entityID world.EntityID, controllerID string, now time.Time) (Lease, bool, DenyReason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	nowMS := now.UnixMilli()
	if existing, ok := m.byEntity[entityID]; ok && existing.active(nowMS) {
		if existing.ControllerID != controllerID {
			leaseevents.Denied(ctx, m.pub, tick, string(entityID), leaseevents.DeniedPayload{
				ControllerID: controllerID,
				Reason:       string(DenyAlreadyLeased),
			})
			return Lease{}, false, DenyAlreadyLeased
		}
		existing.ExpiresAtMS = nowMS + m.ttl.Milliseconds()
		m.byEntity[entityID] = existing
		leaseevents.Acquired(ctx, m.pub, tick, string(entityID), leaseevents.AcquiredPayload{
			LeaseID:      existing.ID,
			ControllerID: controllerID,
			ExpiresAtMS:  existing.ExpiresAtMS,
		})
		return existing, true, ""
	}

	l := Lease{
		ID:           uuid.NewString(),
		EntityID:     entityID,
		ControllerID: controllerID,
		IssuedAtMS:   nowMS,
		ExpiresAtMS:  nowMS + m.ttl.Milliseconds(),
	}
	m.byEntity[entityID] = l
	m.byLeaseID[l.ID] = entityID
	leaseevents.Acquired(ctx, m.pub, tick, string(entityID), leaseevents.AcquiredPayload{
		LeaseID:      l.ID,
		ControllerID: controllerID,
		ExpiresAtMS:  l.ExpiresAtMS,
	})
	return l, true, ""
}

// Renew extends leaseID's expiry to now+TTL. It fails if the lease is
// unknown or already expired — expiry is terminal; the controller must
// re-acquire.
func (m *Manager) Renew(ctx context.Context, tick uint64, leaseID string, now time.Time) (Lease, bool, DenyReason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entityID, ok := m.byLeaseID[leaseID]
	if !ok {
		return Lease{}, false, DenyUnknown
	}
	l, ok := m.byEntity[entityID]
	if !ok || l.ID != leaseID {
		return Lease{}, false, DenyUnknown
	}
	nowMS := now.UnixMilli()
	if !l.active(nowMS) {
		delete(m.byEntity, entityID)
		delete(m.byLeaseID, leaseID)
		return Lease{}, false, DenyExpired
	}
	l.ExpiresAtMS = nowMS + m.ttl.Milliseconds()
	m.byEntity[entityID] = l
	leaseevents.Renewed(ctx, m.pub, tick, string(entityID), leaseevents.RenewedPayload{
		LeaseID:     l.ID,
		ExpiresAtMS: l.ExpiresAtMS,
	})
	return l, true, ""
}

// Release explicitly destroys leaseID, if it is still the lease on file.
func (m *Manager) Release(ctx context.Context, tick uint64, leaseID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	entityID, ok := m.byLeaseID[leaseID]
	if !ok {
		return false
	}
	if l, ok := m.byEntity[entityID]; ok && l.ID == leaseID {
		delete(m.byEntity, entityID)
	}
	delete(m.byLeaseID, leaseID)
	leaseevents.Released(ctx, m.pub, tick, string(entityID), leaseevents.ReleasedPayload{LeaseID: leaseID})
	return true
}

// Validate reports whether leaseID exists, is not expired, and is bound to
// entityID.
func (m *Manager) Validate(leaseID string, entityID world.EntityID, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.byEntity[entityID]
	if !ok || l.ID != leaseID {
		return false
	}
	return l.active(now.UnixMilli())
}

// Holder returns the current lease for entityID if it is still active at
// now; an expired lease reports false — used by Discovery to report
// has_active_lease.
func (m *Manager) Holder(entityID world.EntityID, now time.Time) (Lease, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	l, ok := m.byEntity[entityID]
	if !ok || !l.active(now.UnixMilli()) {
		return Lease{}, false
	}
	return l, true
}

// Sweep reclaims every expired lease. It is called at most once per tick by
// the scheduler so expiry is not purely lazy.
func (m *Manager) Sweep(ctx context.Context, tick uint64, now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	nowMS := now.UnixMilli()
	reclaimed := 0
	for entityID, l := range m.byEntity {
		if l.active(nowMS) {
			continue
		}
		delete(m.byEntity, entityID)
		delete(m.byLeaseID, l.ID)
		reclaimed++
		leaseevents.Expired(ctx, m.pub, tick, string(entityID), leaseevents.ExpiredPayload{
			LeaseID:      l.ID,
			ControllerID: l.ControllerID,
		})
	}
	return reclaimed
}
