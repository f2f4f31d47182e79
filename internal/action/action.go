// Package action implements the action applier: non-movement intents
// applied strictly after movement, in entity-id lexicographic order,
// using post-move positions.
package action

import (
	"context"
	"errors"
	"sort"
	"strconv"

	"ticksim/server/internal/intent"
	"ticksim/server/internal/world"
	actionevents "ticksim/server/logging/action"

	"ticksim/server/logging"
)

// Sentinel errors mirrored into ActionResult.Reason for callers that want
// errors.Is-compatible branching in addition to the string reason.
var (
	ErrNotImplemented  = errors.New("action: not implemented")
	ErrNoTarget        = errors.New("action: no co-located target")
	ErrFieldNotPresent = errors.New("action: object lacks item_type field")
	ErrUndersupplied   = errors.New("action: insufficient quantity")
	ErrUnknownEntity   = errors.New("action: unknown entity")
)

// ObjectChange records one object field mutation produced by an action, for
// inclusion in the tick's TickResult.
type ObjectChange struct {
	ObjectID world.ObjectID
	Field    string
	Old      string
	New      string
}

// Result is one entity's outcome for the tick's action phase.
type Result struct {
	EntityID   world.EntityID
	ActionType string
	Success    bool
	Reason     string
}

// Request pairs an entity with the non-movement intent it submitted this
// tick (Wait entries are harmless no-ops and may be included or omitted).
type Request struct {
	EntityID world.EntityID
	Intent   intent.Intent
}

// Apply runs every request's action against w, strictly after movement has
// already been enacted, in entity-id lexicographic order.
// It mutates w in place and returns one Result per request plus one
// ObjectChange per successful Collect.
func Apply(ctx context.Context, pub logging.Publisher, tick uint64, w *world.World, requests []Request) ([]Result, []ObjectChange) {
	if pub == nil {
		pub = logging.NopPublisher{}
	}
	ordered := make([]Request, len(requests))
	copy(ordered, requests)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].EntityID < ordered[j].EntityID })

	results := make([]Result, 0, len(ordered))
	var changes []ObjectChange

	for _, req := range ordered {
		res, change := applyOne(w, req)
		results = append(results, res)
		if change != nil {
			changes = append(changes, *change)
		}
		if res.Success {
			actionevents.Applied(ctx, pub, tick, string(req.EntityID), actionevents.AppliedPayload{ActionType: res.ActionType})
		} else if res.Reason != "" {
			actionevents.Rejected(ctx, pub, tick, string(req.EntityID), actionevents.RejectedPayload{ActionType: res.ActionType, Reason: res.Reason})
		}
	}
	return results, changes
}

func applyOne(w *world.World, req Request) (Result, *ObjectChange) {
	actionType := req.Intent.Kind.String()
	switch req.Intent.Kind {
	case intent.Wait:
		return Result{EntityID: req.EntityID, ActionType: actionType, Success: true}, nil

	case intent.Collect:
		return applyCollect(w, req)

	case intent.Eat:
		return applyEat(w, req)

	case intent.Pickup, intent.Use, intent.Say:
		// Schema-reserved: local hook point, not yet wired
		// to world mutation.
		return Result{EntityID: req.EntityID, ActionType: actionType, Success: false, Reason: ErrNotImplemented.Error()}, nil

	default:
		return Result{EntityID: req.EntityID, ActionType: actionType, Success: true}, nil
	}
}

func applyCollect(w *world.World, req Request) (Result, *ObjectChange) {
	actionType := req.Intent.Kind.String()
	entity, ok := w.Entity(req.EntityID)
	if !ok {
		return Result{EntityID: req.EntityID, ActionType: actionType, Success: false, Reason: ErrUnknownEntity.Error()}, nil
	}
	obj, ok := w.Object(req.Intent.ObjectID)
	if !ok || obj.Position != entity.Position {
		return Result{EntityID: req.EntityID, ActionType: actionType, Success: false, Reason: ErrNoTarget.Error()}, nil
	}
	raw, ok := obj.StateField(req.Intent.ItemType)
	if !ok {
		return Result{EntityID: req.EntityID, ActionType: actionType, Success: false, Reason: ErrFieldNotPresent.Error()}, nil
	}
	available, err := strconv.Atoi(raw)
	if err != nil || available < req.Intent.Quantity {
		return Result{EntityID: req.EntityID, ActionType: actionType, Success: false, Reason: ErrUndersupplied.Error()}, nil
	}

	if mErr := w.MutateInventory(req.EntityID, func(inv world.Inventory) (world.Inventory, error) {
		return inv.Add(req.Intent.ItemType, req.Intent.Quantity)
	}); mErr != nil {
		return Result{EntityID: req.EntityID, ActionType: actionType, Success: false, Reason: mErr.Error()}, nil
	}

	newValue := strconv.Itoa(available - req.Intent.Quantity)
	oldValue, _, err := w.UpdateObjectField(req.Intent.ObjectID, req.Intent.ItemType, newValue)
	if err != nil {
		return Result{EntityID: req.EntityID, ActionType: actionType, Success: false, Reason: err.Error()}, nil
	}

	return Result{EntityID: req.EntityID, ActionType: actionType, Success: true}, &ObjectChange{
		ObjectID: req.Intent.ObjectID,
		Field:    req.Intent.ItemType,
		Old:      oldValue,
		New:      newValue,
	}
}

func applyEat(w *world.World, req Request) (Result, *ObjectChange) {
	actionType := req.Intent.Kind.String()
	err := w.MutateInventory(req.EntityID, func(inv world.Inventory) (world.Inventory, error) {
		return inv.Remove(req.Intent.ItemType, req.Intent.Quantity)
	})
	if err != nil {
		return Result{EntityID: req.EntityID, ActionType: actionType, Success: false, Reason: err.Error()}, nil
	}
	return Result{EntityID: req.EntityID, ActionType: actionType, Success: true}, nil
}
