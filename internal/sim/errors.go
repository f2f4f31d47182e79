package sim

import "fmt"

// InvariantViolation signals a defect in the resolver or action applier:
// an invariant failed to hold after a mutation that should have preserved
// it. Detecting one is fatal — the tick aborts, state rolls back to the
// pre-resolution snapshot, and the process exits.
type InvariantViolation struct {
	TickID uint64
	Detail string
}

func (e *InvariantViolation) Error() string {
	return fmt.Sprintf("sim: invariant violation at tick %d: %s", e.TickID, e.Detail)
}
