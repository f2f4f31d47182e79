// Package movement publishes movement-resolver telemetry events.
package movement

import (
	"context"

	"ticksim/server/logging"
)

// EventResolved is emitted once per tick with a summary of the resolver's
// conflict outcomes.
const EventResolved logging.EventType = "movement.resolved"

// ResolvedPayload summarizes a single resolution pass.
type ResolvedPayload struct {
	Claims  int            `json:"claims"`
	Winners int            `json:"winners"`
	Losers  int            `json:"losers"`
	Reasons map[string]int `json:"reasons,omitempty"`
}

// Resolved publishes the outcome of one movement resolution pass.
func Resolved(ctx context.Context, pub logging.Publisher, tick uint64, payload ResolvedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventResolved,
		Tick:     tick,
		Severity: logging.SeverityDebug,
		Category: "movement",
		Payload:  payload,
	})
}
