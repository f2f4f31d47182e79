// Package resolver implements the movement conflict resolver: a pure
// function from a set of move claims to winners and losers, structured as
// a side-effect-free function over callback closures instead of a method
// on *World, so it stays testable as a pure transformation.
package resolver

import (
	"sort"

	"ticksim/server/internal/world"
)

// Reason is the machine-readable cause of a claim's rejection.
type Reason string

const (
	ReasonSwap      Reason = "swap"
	ReasonCycle     Reason = "cycle"
	ReasonContested Reason = "contested"
	ReasonBlocked   Reason = "blocked"
)

// Claim is one entity's validated intent to move from one tile to an
// adjacent one during the current tick.
type Claim struct {
	EntityID world.EntityID
	From     world.Position
	To       world.Position
}

// Outcome reports whether a claim won and, if not, why.
type Outcome struct {
	Claim   Claim
	Success bool
	Reason  Reason
}

// Result is the full resolution pass: every claim's outcome, in a
// deterministic order (sorted by entity id) so callers can assert on it
// without re-sorting.
type Result struct {
	Outcomes []Outcome
}

// Winners returns the destination each successful claim landed on, keyed by
// entity id.
func (r Result) Winners() map[world.EntityID]world.Position {
	out := make(map[world.EntityID]world.Position)
	for _, o := range r.Outcomes {
		if o.Success {
			out[o.Claim.EntityID] = o.Claim.To
		}
	}
	return out
}

// Occupant answers, for a given position, the entity id occupying it (if
// any) as of the pre-resolution snapshot. Walkable answers whether a
// position is enterable based on terrain alone (tile walkability; entity
// occupancy is handled by the resolver itself).
type Occupant func(world.Position) (world.EntityID, bool)
type Walkable func(world.Position) bool

// Resolve is the pure conflict resolver. Given identical claims, occupant,
// and walkable, it returns identical output regardless of claim order or
// time — it never reads world.World directly and holds no reference past
// the call.
func Resolve(claims []Claim, occupant Occupant, walkable Walkable) Result {
	ordered := make([]Claim, len(claims))
	copy(ordered, claims)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].EntityID < ordered[j].EntityID })

	outcomes := make(map[world.EntityID]*Outcome, len(ordered))
	var survivors []Claim

	// Validation: reject outright claims whose destination is out of the
	// movable set (off the board, non-walkable, or an uncut corner).
	for _, c := range ordered {
		if !validDestination(c, walkable) {
			outcomes[c.EntityID] = &Outcome{Claim: c, Success: false, Reason: ReasonBlocked}
			continue
		}
		survivors = append(survivors, c)
	}

	// movers/fromByMover only include claims that survived validation — a
	// claim rejected for an invalid destination never vacates its tile, so
	// later stages must not treat it as a mover.
	movers := make(map[world.EntityID]Claim, len(survivors))
	fromByMover := make(map[world.Position]world.EntityID, len(survivors))
	for _, c := range survivors {
		movers[c.EntityID] = c
		fromByMover[c.From] = c.EntityID
	}

	// Stage 1: swap — two claims trade positions directly.
	swapped := make(map[world.EntityID]bool)
	for _, c := range survivors {
		if outcomes[c.EntityID] != nil {
			continue
		}
		if otherID, ok := fromByMover[c.To]; ok {
			if other, ok := movers[otherID]; ok && other.To == c.From {
				swapped[c.EntityID] = true
				swapped[otherID] = true
			}
		}
	}
	for id := range swapped {
		outcomes[id] = &Outcome{Claim: movers[id], Success: false, Reason: ReasonSwap}
	}

	// Stage 2: cycle — a directed cycle of length >= 3 in the claim graph,
	// where every node is itself a mover. Linear chains (A->B, B->empty)
	// are not cycles and must succeed atomically.
	cycled := detectCycles(survivors, movers, outcomes)
	for id := range cycled {
		outcomes[id] = &Outcome{Claim: movers[id], Success: false, Reason: ReasonCycle}
	}

	// Remaining survivors after swap/cycle elimination, in entity-id order.
	var remaining []Claim
	for _, c := range survivors {
		if outcomes[c.EntityID] == nil {
			remaining = append(remaining, c)
		}
	}
	sort.Slice(remaining, func(i, j int) bool { return remaining[i].EntityID < remaining[j].EntityID })

	// Stage 3: same destination — lexicographically smallest entity id wins.
	byDest := make(map[world.Position][]Claim)
	for _, c := range remaining {
		byDest[c.To] = append(byDest[c.To], c)
	}
	winnerByDest := make(map[world.Position]world.EntityID)
	for dest, claims := range byDest {
		if len(claims) == 1 {
			winnerByDest[dest] = claims[0].EntityID
			continue
		}
		winner := claims[0].EntityID
		for _, c := range claims[1:] {
			if c.EntityID < winner {
				winner = c.EntityID
			}
		}
		winnerByDest[dest] = winner
		for _, c := range claims {
			if c.EntityID != winner {
				outcomes[c.EntityID] = &Outcome{Claim: c, Success: false, Reason: ReasonContested}
			}
		}
	}

	// Stage 4: a move into an occupied tile succeeds only if that tile's
	// pre-tick occupant itself ends up winning a move away. A mover whose
	// own claim was rejected (validation, swap, cycle, or lost a stage-3
	// contest) never vacates, and blocks whoever wants its tile — and that
	// block cascades up any chain behind it. resolveChain walks the
	// claimant graph (a forest once swaps/cycles are removed) to decide
	// each remaining claim's fate, memoizing via outcomes so every node is
	// visited once regardless of iteration order.
	inProgress := make(map[world.EntityID]bool)
	var resolveChain func(id world.EntityID) bool
	resolveChain = func(id world.EntityID) bool {
		if o, ok := outcomes[id]; ok {
			return o.Success
		}
		if inProgress[id] {
			// Defensive: a residual cycle should never reach here, stage 2
			// already removes them.
			outcomes[id] = &Outcome{Claim: movers[id], Success: false, Reason: ReasonCycle}
			return false
		}
		inProgress[id] = true
		c := movers[id]
		success := true
		reason := Reason("")
		if occupantID, ok := occupant(c.To); ok {
			if _, isMover := movers[occupantID]; !isMover {
				success, reason = false, ReasonBlocked
			} else if occupantID != id && !resolveChain(occupantID) {
				success, reason = false, ReasonBlocked
			}
		}
		delete(inProgress, id)
		outcomes[id] = &Outcome{Claim: c, Success: success, Reason: reason}
		return success
	}
	for _, id := range winnerByDest {
		resolveChain(id)
	}

	final := make([]Outcome, 0, len(ordered))
	for _, c := range ordered {
		if o, ok := outcomes[c.EntityID]; ok {
			final = append(final, *o)
		}
	}
	sort.Slice(final, func(i, j int) bool { return final[i].Claim.EntityID < final[j].Claim.EntityID })
	return Result{Outcomes: final}
}

func validDestination(c Claim, walkable Walkable) bool {
	if !walkable(c.To) {
		return false
	}
	delta := world.Position{X: c.To.X - c.From.X, Y: c.To.Y - c.From.Y}
	if delta.X != 0 && delta.Y != 0 {
		// Diagonal: both intervening cardinal neighbors must be walkable
		// (anti-corner-cut rule).
		if !walkable(world.Position{X: c.From.X + delta.X, Y: c.From.Y}) {
			return false
		}
		if !walkable(world.Position{X: c.From.X, Y: c.From.Y + delta.Y}) {
			return false
		}
	}
	return true
}

// detectCycles walks the claim graph (edges: claimant -> destination,
// when the destination is itself a claimant's From) looking for directed
// cycles of length >= 3. Two-node cycles are swaps and are already
// resolved by the caller before this runs; this function still tolerates
// them defensively (a 2-cycle left over would just be re-marked, which is
// harmless) by only acting on cycles it discovers among remaining nodes.
func detectCycles(survivors []Claim, movers map[world.EntityID]Claim, outcomes map[world.EntityID]*Outcome) map[world.EntityID]bool {
	cycled := make(map[world.EntityID]bool)

	next := func(id world.EntityID) (world.EntityID, bool) {
		c, ok := movers[id]
		if !ok || outcomes[id] != nil {
			return "", false
		}
		otherID, ok := destinationOwner(c.To, movers)
		return otherID, ok
	}

	visited := make(map[world.EntityID]int) // 0=unvisited,1=in-stack,2=done
	var stack []world.EntityID

	var visit func(id world.EntityID)
	visit = func(id world.EntityID) {
		if _, ok := movers[id]; !ok || outcomes[id] != nil {
			return
		}
		switch visited[id] {
		case 1:
			// Found a cycle: everything from id's position in stack onward.
			start := -1
			for i, s := range stack {
				if s == id {
					start = i
					break
				}
			}
			if start >= 0 && len(stack)-start >= 3 {
				for _, s := range stack[start:] {
					cycled[s] = true
				}
			}
			return
		case 2:
			return
		}
		visited[id] = 1
		stack = append(stack, id)
		if nid, ok := next(id); ok {
			visit(nid)
		}
		stack = stack[:len(stack)-1]
		visited[id] = 2
	}

	for _, c := range survivors {
		visit(c.EntityID)
	}
	return cycled
}

func destinationOwner(to world.Position, movers map[world.EntityID]Claim) (world.EntityID, bool) {
	for id, c := range movers {
		if c.From == to {
			return id, true
		}
	}
	return "", false
}
