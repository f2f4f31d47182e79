// Package ws implements the boundary adapters: two websocket endpoints,
// /agent and /viewer, built on a JSON-over-websocket envelope with a
// sync.Mutex-guarded write path and a write deadline. The two endpoints
// are split because the agent-facing surface and the read-only viewer
// push channel are logically distinct.
package ws

import (
	"encoding/json"

	"ticksim/server/internal/broadcast"
	"ticksim/server/internal/observation"
	"ticksim/server/internal/sim"
	"ticksim/server/internal/world"
)

// wirePosition/wireTileView/... are the JSON-facing shapes of the wire
// protocol; the core's typed values (world.Position, etc.) never escape
// this package directly.

type wirePosition struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func posToWire(p world.Position) wirePosition { return wirePosition{X: p.X, Y: p.Y} }

type wireEntity struct {
	EntityID   string         `json:"entityId"`
	Position   wirePosition   `json:"position"`
	EntityType string         `json:"entityType"`
	Tags       []string       `json:"tags"`
	SpawnTick  uint64         `json:"spawnTick"`
	Inventory  map[string]int `json:"inventory"`
}

func entityToWire(e world.Entity) wireEntity {
	tags := make([]string, 0, len(e.Tags))
	for t := range e.Tags {
		tags = append(tags, t)
	}
	inv := make(map[string]int, len(e.Inventory.Kinds()))
	for _, k := range e.Inventory.Kinds() {
		inv[k] = e.Inventory.Count(k)
	}
	return wireEntity{
		EntityID:   string(e.ID),
		Position:   posToWire(e.Position),
		EntityType: e.EntityType,
		Tags:       tags,
		SpawnTick:  e.SpawnTick,
		Inventory:  inv,
	}
}

type wireObject struct {
	ObjectID   string            `json:"objectId"`
	Position   wirePosition      `json:"position"`
	ObjectType string            `json:"objectType"`
	State      map[string]string `json:"state"`
	Walkable   bool              `json:"walkable"`
	Opaque     bool              `json:"opaque"`
}

func objectToWire(o world.WorldObject) wireObject {
	return wireObject{
		ObjectID:   string(o.ID),
		Position:   posToWire(o.Position),
		ObjectType: o.ObjectType,
		State:      o.State,
		Walkable:   o.Walkable,
		Opaque:     o.Opaque,
	}
}

type wireMove struct {
	EntityID string       `json:"entityId"`
	From     wirePosition `json:"from"`
	To       wirePosition `json:"to"`
	Success  bool         `json:"success"`
	Reason   string       `json:"reason,omitempty"`
}

type wireObjectChange struct {
	ObjectID string `json:"objectId"`
	Field    string `json:"field"`
	OldValue string `json:"oldValue"`
	NewValue string `json:"newValue"`
}

// --- viewer push channel messages ---

type snapshotMessage struct {
	Type            string       `json:"type"`
	TickID          uint64       `json:"tickId"`
	Entities        []wireEntity `json:"entities"`
	Objects         []wireObject `json:"objects"`
	WorldSize       worldSize    `json:"worldSize"`
	TickDurationMS  int64        `json:"tickDurationMs"`
}

type worldSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type tickStartedMessage struct {
	Type           string `json:"type"`
	TickID         uint64 `json:"tickId"`
	TickStartMS    int64  `json:"tickStartMs"`
	DeadlineMS     int64  `json:"deadlineMs"`
	TickDurationMS int64  `json:"tickDurationMs"`
}

type tickCompletedMessage struct {
	Type            string             `json:"type"`
	TickID          uint64             `json:"tickId"`
	Moves           []wireMove         `json:"moves"`
	ObjectChanges   []wireObjectChange `json:"objectChanges"`
	ActionsProcessed int               `json:"actionsProcessed"`
}

type entitySpawnedMessage struct {
	Type   string     `json:"type"`
	TickID uint64     `json:"tickId"`
	Entity wireEntity `json:"entity"`
}

type entityDespawnedMessage struct {
	Type     string `json:"type"`
	TickID   uint64 `json:"tickId"`
	EntityID string `json:"entityId"`
}

// --- agent-facing messages ---

type observationMessage struct {
	Type            string           `json:"type"`
	TickID          uint64           `json:"tickId"`
	DeadlineMS      int64            `json:"deadlineMs"`
	Self            wireEntity       `json:"self"`
	VisibleTiles    []wireTileView   `json:"visibleTiles"`
	VisibleEntities []wireEntity     `json:"visibleEntities"`
	VisibleObjects  []wireObject     `json:"visibleObjects"`
	Events          []wireEvent      `json:"events"`
}

type wireTileView struct {
	Position  wirePosition `json:"position"`
	Walkable  bool         `json:"walkable"`
	Opaque    bool         `json:"opaque"`
	FloorType string       `json:"floorType"`
}

type wireEvent struct {
	Kind     string       `json:"kind"`
	EntityID string       `json:"entityId,omitempty"`
	ObjectID string       `json:"objectId,omitempty"`
	From     wirePosition `json:"from,omitempty"`
	To       wirePosition `json:"to,omitempty"`
	Field    string       `json:"field,omitempty"`
	Old      string       `json:"old,omitempty"`
	New      string       `json:"new,omitempty"`
	Text     string       `json:"text,omitempty"`
	Channel  string       `json:"channel,omitempty"`
}

// jsonCodec implements sim.Codec by marshaling the wire shapes above.
// Marshal failures degrade to an empty payload rather than panicking — a
// malformed outbound message is a bug to fix, not something that should
// take the tick loop down with it.
type jsonCodec struct{}

// NewJSONCodec constructs the JSON wire codec.
func NewJSONCodec() sim.Codec { return jsonCodec{} }

func marshalOrEmpty(msgType string, v any) broadcast.Message {
	data, err := json.Marshal(v)
	if err != nil {
		return broadcast.Message{Type: msgType}
	}
	return broadcast.Message{Type: msgType, Data: data}
}

func (jsonCodec) EncodeSnapshot(snap world.Snapshot) broadcast.Message {
	entities := make([]wireEntity, 0, len(snap.Entities))
	for _, e := range snap.Entities {
		entities = append(entities, entityToWire(e))
	}
	objects := make([]wireObject, 0, len(snap.Objects))
	for _, o := range snap.Objects {
		objects = append(objects, objectToWire(o))
	}
	return marshalOrEmpty("snapshot", snapshotMessage{
		Type:     "snapshot",
		TickID:   snap.Tick,
		Entities: entities,
		Objects:  objects,
		WorldSize: worldSize{Width: snap.Width, Height: snap.Height},
	})
}

func (jsonCodec) EncodeTickStarted(tickID uint64, tickStartMS, deadlineMS, tickDurationMS int64) broadcast.Message {
	return marshalOrEmpty("tick_started", tickStartedMessage{
		Type:           "tick_started",
		TickID:         tickID,
		TickStartMS:    tickStartMS,
		DeadlineMS:     deadlineMS,
		TickDurationMS: tickDurationMS,
	})
}

func (jsonCodec) EncodeTickCompleted(result sim.TickResult) broadcast.Message {
	moves := make([]wireMove, 0, len(result.Moves))
	for _, m := range result.Moves {
		moves = append(moves, wireMove{
			EntityID: string(m.EntityID),
			From:     posToWire(m.From),
			To:       posToWire(m.To),
			Success:  m.Success,
			Reason:   m.Reason,
		})
	}
	changes := make([]wireObjectChange, 0, len(result.ObjectChanges))
	for _, c := range result.ObjectChanges {
		changes = append(changes, wireObjectChange{
			ObjectID: string(c.ObjectID),
			Field:    c.Field,
			OldValue: c.Old,
			NewValue: c.New,
		})
	}
	return marshalOrEmpty("tick_completed", tickCompletedMessage{
		Type:             "tick_completed",
		TickID:           result.TickID,
		Moves:            moves,
		ObjectChanges:    changes,
		ActionsProcessed: len(result.Actions),
	})
}

func (jsonCodec) EncodeObservation(obs observation.Observation) broadcast.Message {
	tiles := make([]wireTileView, 0, len(obs.VisibleTiles))
	for _, t := range obs.VisibleTiles {
		tiles = append(tiles, wireTileView{
			Position:  posToWire(t.Position),
			Walkable:  t.Tile.Walkable,
			Opaque:    t.Tile.Opaque,
			FloorType: t.Tile.FloorType,
		})
	}
	entities := make([]wireEntity, 0, len(obs.VisibleEntities))
	for _, e := range obs.VisibleEntities {
		entities = append(entities, entityToWire(e))
	}
	objects := make([]wireObject, 0, len(obs.VisibleObjects))
	for _, o := range obs.VisibleObjects {
		objects = append(objects, objectToWire(o))
	}
	events := make([]wireEvent, 0, len(obs.Events))
	for _, ev := range obs.Events {
		events = append(events, wireEvent{
			Kind:     ev.Kind,
			EntityID: string(ev.EntityID),
			ObjectID: string(ev.ObjectID),
			From:     posToWire(ev.From),
			To:       posToWire(ev.To),
			Field:    ev.Field,
			Old:      ev.Old,
			New:      ev.New,
			Text:     ev.Text,
			Channel:  ev.Channel,
		})
	}
	return marshalOrEmpty("observation", observationMessage{
		Type:            "observation",
		TickID:          obs.TickID,
		DeadlineMS:      obs.DeadlineMS,
		Self:            entityToWire(obs.Self),
		VisibleTiles:    tiles,
		VisibleEntities: entities,
		VisibleObjects:  objects,
		Events:          events,
	})
}

func (jsonCodec) EncodeEntitySpawned(tickID uint64, e world.Entity) broadcast.Message {
	return marshalOrEmpty("entity_spawned", entitySpawnedMessage{Type: "entity_spawned", TickID: tickID, Entity: entityToWire(e)})
}

func (jsonCodec) EncodeEntityDespawned(tickID uint64, id world.EntityID) broadcast.Message {
	return marshalOrEmpty("entity_despawned", entityDespawnedMessage{Type: "entity_despawned", TickID: tickID, EntityID: string(id)})
}
