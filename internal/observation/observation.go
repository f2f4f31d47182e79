// Package observation implements the observation generator: a pure-ish
// per-observer view of the world plus events since the last tick,
// structured around one observer at a time instead of a single global
// broadcast payload.
package observation

import (
	"context"
	"time"

	"ticksim/server/internal/world"
	obsevents "ticksim/server/logging/observation"

	"ticksim/server/logging"
)

// VisibilityFunc decides whether target is visible to an observer standing
// at observerPos. v1's Chebyshev implementation returns true for everything
// in radius; a future ray-traced implementation can consult snap's opaque
// tiles without changing the Generator's API.
type VisibilityFunc func(observerPos, target world.Position, snap world.Snapshot) bool

// Chebyshev returns a VisibilityFunc that is true for every position within
// radius (Chebyshev distance), ignoring opacity.
func Chebyshev(radius int) VisibilityFunc {
	return func(observerPos, target world.Position, _ world.Snapshot) bool {
		return chebyshevDistance(observerPos, target) <= radius
	}
}

func chebyshevDistance(a, b world.Position) int {
	dx := a.X - b.X
	if dx < 0 {
		dx = -dx
	}
	dy := a.Y - b.Y
	if dy < 0 {
		dy = -dy
	}
	if dx > dy {
		return dx
	}
	return dy
}

// Event is one self-contained occurrence surfaced in an Observation, built
// from the prior tick's TickResult and filtered by visibility.
type Event struct {
	Kind     string
	EntityID world.EntityID
	ObjectID world.ObjectID
	From     world.Position
	To       world.Position
	Field    string
	Old      string
	New      string
	Text     string
	Channel  string
}

// TileView is one visible tile's coordinates and terrain.
type TileView struct {
	Position world.Position
	Tile     world.Tile
}

// Observation is the per-agent, per-tick view the core emits to a
// controller. It is self-contained: observers may resynchronize without
// history.
type Observation struct {
	TickID          uint64
	DeadlineMS      int64
	Self            world.Entity
	VisibleTiles    []TileView
	VisibleEntities []world.Entity
	VisibleObjects  []world.WorldObject
	Events          []Event
}

// PriorMove/PriorAction/PriorObjectChange mirror the shapes the tick
// scheduler assembles into sim.TickResult, duplicated here (rather than
// importing internal/sim) to keep the observation generator a leaf
// package with no dependency on the scheduler.
type PriorMove struct {
	EntityID world.EntityID
	From, To world.Position
	Success  bool
}

type PriorObjectChange struct {
	ObjectID   world.ObjectID
	Field      string
	Old, New   string
}

type PriorUtterance struct {
	EntityID world.EntityID
	Position world.Position
	Text     string
	Channel  string
}

// PriorTick bundles the previous tick's outcomes the generator derives
// events from.
type PriorTick struct {
	Moves          []PriorMove
	ObjectChanges  []PriorObjectChange
	Utterances     []PriorUtterance
	EnteredVisible map[world.EntityID]bool // entities that just entered visibility
	LeftVisible    map[world.EntityID]bool // entities that just left visibility
}

// Generator produces Observations from a world snapshot. It holds no
// mutable state of its own beyond the publisher used for telemetry.
type Generator struct {
	Visibility    VisibilityFunc
	Radius        int
	HearingRadius int
	pub           logging.Publisher
}

// NewGenerator constructs a Generator using a Chebyshev visibility
// predicate of the given radius, and the given hearing radius for
// Utterance events.
func NewGenerator(radius, hearingRadius int, pub logging.Publisher) *Generator {
	if pub == nil {
		pub = logging.NopPublisher{}
	}
	return &Generator{Visibility: Chebyshev(radius), Radius: radius, HearingRadius: hearingRadius, pub: pub}
}

// Observe computes the Observation for observerID as of snap, using prior
// to derive events. deadlineMS is the advisory wall-clock time the current
// tick's intent deadline will fire.
func (g *Generator) Observe(ctx context.Context, snap world.Snapshot, observerID world.EntityID, deadlineMS int64, prior PriorTick) Observation {
	started := time.Now()

	self, _ := findEntity(snap, observerID)
	obs := Observation{TickID: snap.Tick, DeadlineMS: deadlineMS, Self: self}

	for _, e := range snap.Entities {
		if g.Visibility(self.Position, e.Position, snap) {
			obs.VisibleEntities = append(obs.VisibleEntities, e)
		}
	}
	for _, o := range snap.Objects {
		if g.Visibility(self.Position, o.Position, snap) {
			obs.VisibleObjects = append(obs.VisibleObjects, o)
		}
	}
	obs.VisibleTiles = g.visibleTiles(self.Position, snap)
	obs.Events = g.deriveEvents(self.Position, snap, prior)

	if g.pub != nil {
		obsevents.Emitted(ctx, g.pub, snap.Tick, string(observerID), obsevents.EmittedPayload{
			VisibleEntities: len(obs.VisibleEntities),
			VisibleObjects:  len(obs.VisibleObjects),
			Events:          len(obs.Events),
			Latency:         time.Since(started),
		})
	}
	return obs
}

func (g *Generator) visibleTiles(observerPos world.Position, snap world.Snapshot) []TileView {
	var tiles []TileView
	for dx := -g.Radius; dx <= g.Radius; dx++ {
		for dy := -g.Radius; dy <= g.Radius; dy++ {
			p := world.Position{X: observerPos.X + dx, Y: observerPos.Y + dy}
			if p.X < 0 || p.Y < 0 || p.X >= snap.Width || p.Y >= snap.Height {
				continue
			}
			if !g.Visibility(observerPos, p, snap) {
				continue
			}
			tiles = append(tiles, TileView{Position: p, Tile: snap.TileAt(p)})
		}
	}
	return tiles
}

func (g *Generator) deriveEvents(observerPos world.Position, snap world.Snapshot, prior PriorTick) []Event {
	var events []Event
	for _, m := range prior.Moves {
		fromVisible := g.Visibility(observerPos, m.From, snap)
		toVisible := g.Visibility(observerPos, m.To, snap)
		if fromVisible || toVisible {
			events = append(events, Event{Kind: "entity_moved", EntityID: m.EntityID, From: m.From, To: m.To})
		}
	}
	for _, oc := range prior.ObjectChanges {
		obj, ok := findObject(snap, oc.ObjectID)
		if ok && g.Visibility(observerPos, obj.Position, snap) {
			events = append(events, Event{Kind: "object_changed", ObjectID: oc.ObjectID, Field: oc.Field, Old: oc.Old, New: oc.New})
		}
	}
	for id := range prior.EnteredVisible {
		events = append(events, Event{Kind: "entity_entered", EntityID: id})
	}
	for id := range prior.LeftVisible {
		events = append(events, Event{Kind: "entity_left", EntityID: id})
	}
	for _, u := range prior.Utterances {
		if chebyshevDistance(observerPos, u.Position) <= g.HearingRadius {
			events = append(events, Event{Kind: "utterance", EntityID: u.EntityID, Text: u.Text, Channel: u.Channel})
		}
	}
	return events
}

func findEntity(snap world.Snapshot, id world.EntityID) (world.Entity, bool) {
	for _, e := range snap.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return world.Entity{}, false
}

func findObject(snap world.Snapshot, id world.ObjectID) (world.WorldObject, bool) {
	for _, o := range snap.Objects {
		if o.ID == id {
			return o, true
		}
	}
	return world.WorldObject{}, false
}
