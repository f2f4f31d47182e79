// Package lease publishes lease-manager telemetry events.
package lease

import (
	"context"

	"ticksim/server/logging"
)

const (
	EventAcquired logging.EventType = "lease.acquired"
	EventDenied   logging.EventType = "lease.denied"
	EventRenewed  logging.EventType = "lease.renewed"
	EventExpired  logging.EventType = "lease.expired"
	EventReleased logging.EventType = "lease.released"
)

// AcquiredPayload describes a successful acquire or renewal-on-acquire.
type AcquiredPayload struct {
	LeaseID      string `json:"leaseId"`
	ControllerID string `json:"controllerId"`
	ExpiresAtMS  int64  `json:"expiresAtMs"`
}

// DeniedPayload describes a rejected acquire attempt.
type DeniedPayload struct {
	ControllerID string `json:"controllerId"`
	Reason       string `json:"reason"`
}

// RenewedPayload describes a successful renewal.
type RenewedPayload struct {
	LeaseID     string `json:"leaseId"`
	ExpiresAtMS int64  `json:"expiresAtMs"`
}

// ExpiredPayload describes a lease reclaimed after its TTL elapsed.
type ExpiredPayload struct {
	LeaseID      string `json:"leaseId"`
	ControllerID string `json:"controllerId"`
}

// ReleasedPayload describes an explicit release.
type ReleasedPayload struct {
	LeaseID string `json:"leaseId"`
}

func publish(ctx context.Context, pub logging.Publisher, tick uint64, entity string, t logging.EventType, sev logging.Severity, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     t,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: entity, Kind: "entity"},
		Severity: sev,
		Category: "lease",
		Payload:  payload,
	})
}

// Acquired publishes a successful lease acquisition.
func Acquired(ctx context.Context, pub logging.Publisher, tick uint64, entityID string, payload AcquiredPayload) {
	publish(ctx, pub, tick, entityID, EventAcquired, logging.SeverityInfo, payload)
}

// Denied publishes a rejected acquisition attempt.
func Denied(ctx context.Context, pub logging.Publisher, tick uint64, entityID string, payload DeniedPayload) {
	publish(ctx, pub, tick, entityID, EventDenied, logging.SeverityWarn, payload)
}

// Renewed publishes a successful renewal.
func Renewed(ctx context.Context, pub logging.Publisher, tick uint64, entityID string, payload RenewedPayload) {
	publish(ctx, pub, tick, entityID, EventRenewed, logging.SeverityDebug, payload)
}

// Expired publishes a passively reclaimed lease.
func Expired(ctx context.Context, pub logging.Publisher, tick uint64, entityID string, payload ExpiredPayload) {
	publish(ctx, pub, tick, entityID, EventExpired, logging.SeverityInfo, payload)
}

// Released publishes an explicit release.
func Released(ctx context.Context, pub logging.Publisher, tick uint64, entityID string, payload ReleasedPayload) {
	publish(ctx, pub, tick, entityID, EventReleased, logging.SeverityDebug, payload)
}
