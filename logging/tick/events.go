// Package tick publishes tick-scheduler telemetry events.
package tick

import (
	"context"

	"ticksim/server/logging"
)

const (
	EventOverrun            logging.EventType = "tick.overrun"
	EventAlarm              logging.EventType = "tick.alarm"
	EventInvariantViolation logging.EventType = "tick.invariant_violation"
)

// OverrunPayload describes a tick that exceeded its period budget.
type OverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
}

// AlarmPayload describes a sustained or severe overrun, on which the
// scheduler re-records the cached viewer snapshot.
type AlarmPayload struct {
	Ratio  float64 `json:"ratio"`
	Streak uint64  `json:"streak"`
}

// InvariantViolationPayload describes a detected invariant break that
// aborted a tick.
type InvariantViolationPayload struct {
	Invariant string `json:"invariant"`
	Detail    string `json:"detail"`
}

func publish(ctx context.Context, pub logging.Publisher, tickID uint64, t logging.EventType, sev logging.Severity, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     t,
		Tick:     tickID,
		Severity: sev,
		Category: "tick",
		Payload:  payload,
	})
}

// Overrun publishes a tick-budget overrun.
func Overrun(ctx context.Context, pub logging.Publisher, tickID uint64, payload OverrunPayload) {
	publish(ctx, pub, tickID, EventOverrun, logging.SeverityWarn, payload)
}

// Alarm publishes a tick-budget alarm.
func Alarm(ctx context.Context, pub logging.Publisher, tickID uint64, payload AlarmPayload) {
	publish(ctx, pub, tickID, EventAlarm, logging.SeverityError, payload)
}

// InvariantViolation publishes a fatal invariant break.
func InvariantViolation(ctx context.Context, pub logging.Publisher, tickID uint64, payload InvariantViolationPayload) {
	publish(ctx, pub, tickID, EventInvariantViolation, logging.SeverityError, payload)
}
