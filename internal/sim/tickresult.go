package sim

import (
	"ticksim/server/internal/action"
	"ticksim/server/internal/resolver"
	"ticksim/server/internal/world"
)

// MoveResult is one entity's movement outcome for the tick.
type MoveResult struct {
	EntityID world.EntityID
	From, To world.Position
	Success  bool
	Reason   string
}

// TickResult is the single value produced once per tick, consumed by
// observation generation and broadcast.
type TickResult struct {
	TickID        uint64
	Moves         []MoveResult
	Actions       []action.Result
	ObjectChanges []action.ObjectChange
	Spawns        []world.Entity
	Despawns      []world.EntityID
}

func movesFromResolution(res resolver.Result) []MoveResult {
	out := make([]MoveResult, 0, len(res.Outcomes))
	for _, o := range res.Outcomes {
		out = append(out, MoveResult{
			EntityID: o.Claim.EntityID,
			From:     o.Claim.From,
			To:       o.Claim.To,
			Success:  o.Success,
			Reason:   string(o.Reason),
		})
	}
	return out
}
