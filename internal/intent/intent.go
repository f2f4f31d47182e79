// Package intent implements the per-tick, per-entity intent inbox: a real
// queue type guarding the pending-submissions map behind a mutex.
package intent

import (
	"ticksim/server/internal/world"
)

// Kind tags which variant an Intent holds. Exactly one of the Intent's
// fields is meaningful for a given Kind; Wait has none.
type Kind int

const (
	Wait Kind = iota
	Move
	Collect
	Eat
	Pickup
	Use
	Say
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case Move:
		return "move"
	case Collect:
		return "collect"
	case Eat:
		return "eat"
	case Pickup:
		return "pickup"
	case Use:
		return "use"
	case Say:
		return "say"
	default:
		return "wait"
	}
}

// Intent is a tagged variant of exactly one request an entity makes for a
// given tick. Wait is the implicit default if no intent is submitted by the
// deadline.
type Intent struct {
	Kind Kind

	// Move
	Direction world.Direction

	// Collect
	ObjectID world.ObjectID
	ItemType string
	Quantity int

	// Eat reuses ItemType/Quantity.

	// Pickup/Use reuse ItemType/Quantity (schema-reserved, v1 no-ops or
	// ErrNotImplemented).

	// Say
	Text    string
	Channel string
}

// WaitIntent returns the implicit default intent.
func WaitIntent() Intent {
	return Intent{Kind: Wait}
}

// MoveIntent returns a movement intent in the given direction.
func MoveIntent(dir world.Direction) Intent {
	return Intent{Kind: Move, Direction: dir}
}

// CollectIntent returns an intent to collect n of itemType from an object.
func CollectIntent(objectID world.ObjectID, itemType string, n int) Intent {
	return Intent{Kind: Collect, ObjectID: objectID, ItemType: itemType, Quantity: n}
}

// EatIntent returns an intent to consume n of itemType from inventory.
func EatIntent(itemType string, n int) Intent {
	return Intent{Kind: Eat, ItemType: itemType, Quantity: n}
}
