// Package action publishes action-applier telemetry events.
package action

import (
	"context"

	"ticksim/server/logging"
)

const (
	EventApplied  logging.EventType = "action.applied"
	EventRejected logging.EventType = "action.rejected"
)

// AppliedPayload describes a successfully applied action.
type AppliedPayload struct {
	ActionType string `json:"actionType"`
	Details    string `json:"details,omitempty"`
}

// RejectedPayload describes a rejected action.
type RejectedPayload struct {
	ActionType string `json:"actionType"`
	Reason     string `json:"reason"`
}

// Applied publishes a successful action application.
func Applied(ctx context.Context, pub logging.Publisher, tick uint64, entityID string, payload AppliedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventApplied,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: entityID, Kind: "entity"},
		Severity: logging.SeverityDebug,
		Category: "action",
		Payload:  payload,
	})
}

// Rejected publishes a rejected action application.
func Rejected(ctx context.Context, pub logging.Publisher, tick uint64, entityID string, payload RejectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventRejected,
		Tick:     tick,
		Actor:    logging.EntityRef{ID: entityID, Kind: "entity"},
		Severity: logging.SeverityWarn,
		Category: "action",
		Payload:  payload,
	})
}
