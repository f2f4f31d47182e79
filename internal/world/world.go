// Package world implements the authoritative grid, entity registry, object
// registry, and inventory model of the simulation. It follows a
// constructor that normalizes configuration, a struct of registries
// guarded by the tick scheduler's single-writer discipline, and small
// accessor/mutator methods rather than one monolithic update function.
package world

// World is the aggregate grid-plus-registries that backs the whole
// simulation. Mutators are only ever invoked from the tick scheduler's
// single goroutine; queries are safe to call from other
// goroutines against a Snapshot.
type World struct {
	grid *Grid
	seed string

	entities  map[EntityID]Entity
	positions map[Position]EntityID

	objects       map[ObjectID]WorldObject
	objectsByTile map[Position]map[ObjectID]struct{}

	tick uint64
}

// New constructs a world from normalized configuration, seeding initial
// tiles, entities, and objects.
func New(cfg Config) (*World, error) {
	normalized := cfg.Normalized()

	w := &World{
		grid:          NewGrid(normalized.Width, normalized.Height),
		seed:          normalized.Seed,
		entities:      make(map[EntityID]Entity),
		positions:     make(map[Position]EntityID),
		objects:       make(map[ObjectID]WorldObject),
		objectsByTile: make(map[Position]map[ObjectID]struct{}),
	}

	for _, t := range normalized.InitialTiles {
		if err := w.SetTile(t.Position, Tile{Walkable: t.Walkable, Opaque: t.Opaque, FloorType: t.FloorType}); err != nil {
			return nil, err
		}
	}
	for _, e := range normalized.InitialEntities {
		tags := make(map[string]struct{}, len(e.Tags))
		for _, tag := range e.Tags {
			tags[tag] = struct{}{}
		}
		entity := Entity{
			ID:         e.EntityID,
			Position:   e.Position,
			EntityType: e.EntityType,
			Tags:       tags,
			Inventory:  NewInventory(),
			SpawnTick:  0,
		}
		if _, err := w.SpawnEntity(entity); err != nil {
			return nil, err
		}
	}
	for _, o := range normalized.InitialObjects {
		state := make(map[string]string, len(o.State))
		for k, v := range o.State {
			state[k] = v
		}
		object := WorldObject{
			ID:         o.ObjectID,
			Position:   o.Position,
			ObjectType: o.ObjectType,
			State:      state,
			Walkable:   o.Walkable,
			Opaque:     o.Opaque,
		}
		if err := w.AddObject(object); err != nil {
			return nil, err
		}
	}

	return w, nil
}

// Dims returns the grid width and height.
func (w *World) Dims() (int, int) {
	if w == nil || w.grid == nil {
		return 0, 0
	}
	return w.grid.Width, w.grid.Height
}

// Seed returns the deterministic seed the world was constructed with.
func (w *World) Seed() string {
	if w == nil {
		return ""
	}
	return w.seed
}

// Tick returns the world's current tick counter.
func (w *World) Tick() uint64 {
	if w == nil {
		return 0
	}
	return w.tick
}

// AdvanceTick increments and returns the tick counter. It is monotonically
// non-decreasing and never reuses an already-emitted tick id (invariant 6).
func (w *World) AdvanceTick() uint64 {
	if w == nil {
		return 0
	}
	w.tick++
	return w.tick
}

// TileAt returns the tile at p.
func (w *World) TileAt(p Position) Tile {
	if w == nil {
		return OutOfBoundsTile()
	}
	return w.grid.TileAt(p)
}

// SetTile replaces the tile entry at p.
func (w *World) SetTile(p Position, tile Tile) error {
	if w == nil {
		return ErrNilWorld
	}
	return w.grid.SetTile(p, tile)
}

// InBounds reports whether p lies within the grid's dimensions.
func (w *World) InBounds(p Position) bool {
	if w == nil {
		return false
	}
	return w.grid.InBounds(p)
}

// Walkable reports whether p can be entered based on tile terrain alone
// (it does not consider entity/object occupancy).
func (w *World) Walkable(p Position) bool {
	if w == nil {
		return false
	}
	return w.grid.Walkable(p)
}

// Entity returns the entity registered under id.
func (w *World) Entity(id EntityID) (Entity, bool) {
	if w == nil {
		return Entity{}, false
	}
	e, ok := w.entities[id]
	return e, ok
}

// EntityAt returns the entity occupying p, if any.
func (w *World) EntityAt(p Position) (Entity, bool) {
	if w == nil {
		return Entity{}, false
	}
	id, ok := w.positions[p]
	if !ok {
		return Entity{}, false
	}
	return w.entities[id], true
}

// Entities returns every registered entity. The returned slice is a fresh
// copy safe for the caller to retain.
func (w *World) Entities() []Entity {
	if w == nil {
		return nil
	}
	out := make([]Entity, 0, len(w.entities))
	for _, e := range w.entities {
		out = append(out, e)
	}
	return out
}

// SpawnEntity registers a new entity, assigning SpawnTick to the world's
// current tick. It fails if the id is already registered, the position is
// out of bounds, or the position is already occupied (invariant 1).
func (w *World) SpawnEntity(e Entity) (Entity, error) {
	if w == nil {
		return Entity{}, ErrNilWorld
	}
	if _, exists := w.entities[e.ID]; exists {
		return Entity{}, ErrDuplicateEntity
	}
	if !w.grid.InBounds(e.Position) {
		return Entity{}, ErrOutOfBounds
	}
	if _, occupied := w.positions[e.Position]; occupied {
		return Entity{}, ErrTileOccupied
	}
	e.SpawnTick = w.tick
	if e.Tags == nil {
		e.Tags = make(map[string]struct{})
	}
	w.entities[e.ID] = e
	w.positions[e.Position] = e.ID
	return e, nil
}

// DespawnEntity removes an entity from both registries atomically.
func (w *World) DespawnEntity(id EntityID) error {
	if w == nil {
		return ErrNilWorld
	}
	e, ok := w.entities[id]
	if !ok {
		return ErrUnknownEntity
	}
	delete(w.entities, id)
	if current, ok := w.positions[e.Position]; ok && current == id {
		delete(w.positions, e.Position)
	}
	return nil
}

// MoveEntity relocates an entity to a new position, keeping the id-index
// and position-index mutually consistent. It does not perform walkability
// or occupancy validation — that is the movement resolver's job; by the
// time MoveEntity is called the move has already won resolution.
func (w *World) MoveEntity(id EntityID, to Position) error {
	if w == nil {
		return ErrNilWorld
	}
	e, ok := w.entities[id]
	if !ok {
		return ErrUnknownEntity
	}
	if !w.grid.InBounds(to) {
		return ErrOutOfBounds
	}
	if occupant, occupied := w.positions[to]; occupied && occupant != id {
		return ErrTileOccupied
	}
	delete(w.positions, e.Position)
	e.Position = to
	w.entities[id] = e
	w.positions[to] = id
	return nil
}

// EnactMoves applies a batch of winning moves atomically: every mover's old
// position is cleared first, then every new position is written, so chain
// moves (A->B, B->C) complete without a transient invariant violation
//. moves must be pre-validated winners; the
// destinations must be pairwise distinct.
func (w *World) EnactMoves(moves map[EntityID]Position) error {
	if w == nil {
		return ErrNilWorld
	}
	updated := make([]Entity, 0, len(moves))
	for id, to := range moves {
		e, ok := w.entities[id]
		if !ok {
			return ErrUnknownEntity
		}
		if !w.grid.InBounds(to) {
			return ErrOutOfBounds
		}
		updated = append(updated, e)
	}
	for _, e := range updated {
		delete(w.positions, e.Position)
	}
	for _, e := range updated {
		to := moves[e.ID]
		e.Position = to
		w.entities[e.ID] = e
		w.positions[to] = e.ID
	}
	return nil
}

// MutateInventory applies fn to the entity's inventory and stores the
// result, failing the whole operation (and leaving state untouched) if fn
// returns an error.
func (w *World) MutateInventory(id EntityID, fn func(Inventory) (Inventory, error)) error {
	if w == nil {
		return ErrNilWorld
	}
	e, ok := w.entities[id]
	if !ok {
		return ErrUnknownEntity
	}
	next, err := fn(e.Inventory)
	if err != nil {
		return err
	}
	e.Inventory = next
	w.entities[id] = e
	return nil
}

// Object returns the object registered under id.
func (w *World) Object(id ObjectID) (WorldObject, bool) {
	if w == nil {
		return WorldObject{}, false
	}
	o, ok := w.objects[id]
	return o, ok
}

// ObjectsAt returns every object at p. Multiple objects may share a tile.
func (w *World) ObjectsAt(p Position) []WorldObject {
	if w == nil {
		return nil
	}
	ids := w.objectsByTile[p]
	if len(ids) == 0 {
		return nil
	}
	out := make([]WorldObject, 0, len(ids))
	for id := range ids {
		out = append(out, w.objects[id])
	}
	return out
}

// Objects returns every registered object.
func (w *World) Objects() []WorldObject {
	if w == nil {
		return nil
	}
	out := make([]WorldObject, 0, len(w.objects))
	for _, o := range w.objects {
		out = append(out, o)
	}
	return out
}

// AddObject registers a new object, indexing it by id and by position.
func (w *World) AddObject(o WorldObject) error {
	if w == nil {
		return ErrNilWorld
	}
	if _, exists := w.objects[o.ID]; exists {
		return ErrDuplicateObject
	}
	if !w.grid.InBounds(o.Position) {
		return ErrOutOfBounds
	}
	w.objects[o.ID] = o
	if w.objectsByTile[o.Position] == nil {
		w.objectsByTile[o.Position] = make(map[ObjectID]struct{})
	}
	w.objectsByTile[o.Position][o.ID] = struct{}{}
	return nil
}

// RemoveObject unregisters an object from both indexes.
func (w *World) RemoveObject(id ObjectID) error {
	if w == nil {
		return ErrNilWorld
	}
	o, ok := w.objects[id]
	if !ok {
		return ErrUnknownObject
	}
	delete(w.objects, id)
	if set, ok := w.objectsByTile[o.Position]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(w.objectsByTile, o.Position)
		}
	}
	return nil
}

// UpdateObjectField replaces a string-encoded scalar field on an object,
// returning the old and new values so callers can emit ObjectChanged
// events without a second lookup.
func (w *World) UpdateObjectField(id ObjectID, field, value string) (oldValue, newValue string, err error) {
	if w == nil {
		return "", "", ErrNilWorld
	}
	o, ok := w.objects[id]
	if !ok {
		return "", "", ErrUnknownObject
	}
	oldValue, _ = o.StateField(field)
	w.objects[id] = o.WithState(field, value)
	return oldValue, value, nil
}

// CheckInvariants verifies the world's structural invariants hold (index
// consistency, occupancy consistency, bounds, and non-negative inventory
// quantities). It is used by tests and by the scheduler's
// fatal-on-violation safety net; it never mutates state.
func (w *World) CheckInvariants() error {
	if w == nil {
		return nil
	}
	for p, id := range w.positions {
		e, ok := w.entities[id]
		if !ok {
			return ErrInvariantViolated
		}
		if e.Position != p {
			return ErrInvariantViolated
		}
	}
	for id, e := range w.entities {
		if w.positions[e.Position] != id {
			return ErrInvariantViolated
		}
		if !w.grid.InBounds(e.Position) {
			return ErrInvariantViolated
		}
		for _, count := range e.Inventory.counts {
			if count < 0 {
				return ErrInvariantViolated
			}
		}
	}
	for p, ids := range w.objectsByTile {
		for id := range ids {
			o, ok := w.objects[id]
			if !ok || o.Position != p {
				return ErrInvariantViolated
			}
		}
	}
	return nil
}

// Snapshot returns a value copy of the world's registries, safe to read
// from goroutines other than the tick scheduler's own: queries observe a
// point-in-time snapshot rather than sharing mutable state.
type Snapshot struct {
	Width, Height int
	Tick          uint64
	Entities      []Entity
	Objects       []WorldObject
	grid          *Grid
}

// TileAt returns the tile at p as of the snapshot's point in time.
func (s Snapshot) TileAt(p Position) Tile {
	return s.grid.TileAt(p)
}

// EntityByID returns the entity with the given id, as of the snapshot's
// point in time. Lets callers that only hold a Snapshot (not the live
// *World) answer existence/lookup queries without touching mutable state.
func (s Snapshot) EntityByID(id EntityID) (Entity, bool) {
	for _, e := range s.Entities {
		if e.ID == id {
			return e, true
		}
	}
	return Entity{}, false
}

// Restore replaces the world's registries with the contents of a
// previously captured Snapshot. It is used by the tick scheduler's
// invariant-violation safety net: on a detected defect the
// in-flight tick aborts and state rolls back to the pre-resolution
// snapshot rather than persisting a broken world.
func (w *World) Restore(s Snapshot) {
	if w == nil {
		return
	}
	w.grid = s.grid.Clone()
	w.tick = s.Tick
	w.entities = make(map[EntityID]Entity, len(s.Entities))
	w.positions = make(map[Position]EntityID, len(s.Entities))
	for _, e := range s.Entities {
		w.entities[e.ID] = e
		w.positions[e.Position] = e.ID
	}
	w.objects = make(map[ObjectID]WorldObject, len(s.Objects))
	w.objectsByTile = make(map[Position]map[ObjectID]struct{}, len(s.Objects))
	for _, o := range s.Objects {
		w.objects[o.ID] = o
		if w.objectsByTile[o.Position] == nil {
			w.objectsByTile[o.Position] = make(map[ObjectID]struct{})
		}
		w.objectsByTile[o.Position][o.ID] = struct{}{}
	}
}

// Snapshot captures the current world state as an immutable value.
func (w *World) Snapshot() Snapshot {
	if w == nil {
		return Snapshot{}
	}
	return Snapshot{
		Width:    w.grid.Width,
		Height:   w.grid.Height,
		Tick:     w.tick,
		Entities: w.Entities(),
		Objects:  w.Objects(),
		grid:     w.grid.Clone(),
	}
}
