package sim

import "time"

// Tick budget alarm thresholds: the alarm fires once an overrunning tick
// reaches this ratio of its budget, or once this many consecutive ticks
// have overrun, whichever comes first.
const (
	overrunAlarmMinRatio  = 2.0
	overrunAlarmMinStreak = 3
)

// Config captures the tick scheduler's timing parameters.
type Config struct {
	TickDuration  time.Duration
	IntentDeadline time.Duration
	ObservationRadius int
	HearingRadius     int
	BroadcastQueueDepth int
}

// DefaultConfig returns reasonable default timing parameters.
func DefaultConfig() Config {
	return Config{
		TickDuration:        1000 * time.Millisecond,
		IntentDeadline:      500 * time.Millisecond,
		ObservationRadius:   5,
		HearingRadius:       5,
		BroadcastQueueDepth: 128,
	}
}

// Normalized clamps invalid values the way internal/world.Config.Normalized
// does — defaulting rather than rejecting.
func (cfg Config) Normalized() Config {
	next := cfg
	def := DefaultConfig()
	if next.TickDuration <= 0 {
		next.TickDuration = def.TickDuration
	}
	if next.IntentDeadline <= 0 || next.IntentDeadline >= next.TickDuration {
		next.IntentDeadline = def.IntentDeadline
	}
	if next.ObservationRadius <= 0 {
		next.ObservationRadius = def.ObservationRadius
	}
	if next.HearingRadius <= 0 {
		next.HearingRadius = next.ObservationRadius
	}
	if next.BroadcastQueueDepth <= 0 {
		next.BroadcastQueueDepth = def.BroadcastQueueDepth
	}
	return next
}
