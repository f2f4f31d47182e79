// Package broadcast publishes broadcast-hub telemetry events.
package broadcast

import (
	"context"

	"ticksim/server/logging"
)

const (
	EventSubscriberAttached logging.EventType = "broadcast.subscriber_attached"
	EventSubscriberDropped  logging.EventType = "broadcast.subscriber_dropped"
	EventMessageDropped     logging.EventType = "broadcast.message_dropped"
)

// SubscriberAttachedPayload describes a newly attached subscriber.
type SubscriberAttachedPayload struct {
	Kind string `json:"kind"` // "observer" | "viewer"
}

// SubscriberDroppedPayload describes a subscriber removed from the hub.
type SubscriberDroppedPayload struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// MessageDroppedPayload describes a backpressure drop for a slow subscriber.
type MessageDroppedPayload struct {
	Kind         string `json:"kind"`
	SubscriberID string `json:"subscriberId"`
	QueueDepth   int    `json:"queueDepth"`
}

func publish(ctx context.Context, pub logging.Publisher, t logging.EventType, sev logging.Severity, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     t,
		Severity: sev,
		Category: "broadcast",
		Payload:  payload,
	})
}

// SubscriberAttached publishes a new subscriber attaching to the hub.
func SubscriberAttached(ctx context.Context, pub logging.Publisher, payload SubscriberAttachedPayload) {
	publish(ctx, pub, EventSubscriberAttached, logging.SeverityDebug, payload)
}

// SubscriberDropped publishes a subscriber being removed from the hub.
func SubscriberDropped(ctx context.Context, pub logging.Publisher, payload SubscriberDroppedPayload) {
	publish(ctx, pub, EventSubscriberDropped, logging.SeverityInfo, payload)
}

// MessageDropped publishes a backpressure drop.
func MessageDropped(ctx context.Context, pub logging.Publisher, payload MessageDroppedPayload) {
	publish(ctx, pub, EventMessageDropped, logging.SeverityWarn, payload)
}
