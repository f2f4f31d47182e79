package sim

import (
	"ticksim/server/internal/broadcast"
	"ticksim/server/internal/observation"
	"ticksim/server/internal/world"
)

// Codec translates the core's typed values into broadcast.Message payloads.
// The scheduler depends only on this interface; adapters own the wire
// shape and the core never does — internal/net/ws supplies the concrete
// JSON implementation.
type Codec interface {
	EncodeSnapshot(snap world.Snapshot) broadcast.Message
	EncodeTickStarted(tickID uint64, tickStartMS, deadlineMS, tickDurationMS int64) broadcast.Message
	EncodeTickCompleted(result TickResult) broadcast.Message
	EncodeObservation(obs observation.Observation) broadcast.Message
	EncodeEntitySpawned(tickID uint64, e world.Entity) broadcast.Message
	EncodeEntityDespawned(tickID uint64, id world.EntityID) broadcast.Message
}

// NopCodec discards everything; it is useful for tests that only care
// about world-state transitions, not wire output.
type NopCodec struct{}

func (NopCodec) EncodeSnapshot(world.Snapshot) broadcast.Message             { return broadcast.Message{} }
func (NopCodec) EncodeTickStarted(uint64, int64, int64, int64) broadcast.Message {
	return broadcast.Message{}
}
func (NopCodec) EncodeTickCompleted(TickResult) broadcast.Message           { return broadcast.Message{} }
func (NopCodec) EncodeObservation(observation.Observation) broadcast.Message { return broadcast.Message{} }
func (NopCodec) EncodeEntitySpawned(uint64, world.Entity) broadcast.Message  { return broadcast.Message{} }
func (NopCodec) EncodeEntityDespawned(uint64, world.EntityID) broadcast.Message {
	return broadcast.Message{}
}
