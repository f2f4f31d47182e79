// Package observation publishes observation-generator telemetry events.
package observation

import (
	"context"
	"time"

	"ticksim/server/logging"
)

// EventEmitted is emitted once per observer per tick.
const EventEmitted logging.EventType = "observation.emitted"

// EmittedPayload describes one observation's shape and generation cost.
type EmittedPayload struct {
	VisibleEntities int           `json:"visibleEntities"`
	VisibleObjects  int           `json:"visibleObjects"`
	Events          int           `json:"events"`
	Latency         time.Duration `json:"latencyNs"`
}

// Emitted publishes the shape of a generated observation.
func Emitted(ctx context.Context, pub logging.Publisher, tick uint64, observerID string, payload EmittedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventEmitted,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: observerID, Kind: "entity"},
		Severity: logging.SeverityDebug,
		Category: "observation",
		Payload:  payload,
	})
}
