package world

import "errors"

// Sentinel validation errors returned by World mutators. Callers use
// errors.Is to branch on these; the world is left untouched whenever one of
// these is returned.
var (
	ErrNilWorld          = errors.New("world: nil receiver")
	ErrOutOfBounds       = errors.New("world: position out of bounds")
	ErrTileOccupied      = errors.New("world: target position already occupied")
	ErrUnknownEntity     = errors.New("world: unknown entity id")
	ErrDuplicateEntity   = errors.New("world: entity id already registered")
	ErrUnknownObject     = errors.New("world: unknown object id")
	ErrDuplicateObject   = errors.New("world: object id already registered")
	ErrUndersupplied     = errors.New("world: inventory undersupplied")
	ErrNegativeQuantity  = errors.New("world: negative quantity")
	ErrInvariantViolated = errors.New("world: invariant violated")
)
