package ws

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"ticksim/server/internal/broadcast"
	"ticksim/server/internal/intent"
	"ticksim/server/internal/sim"
	"ticksim/server/internal/world"
)

// writeWait is the deadline given to every outbound websocket write.
const writeWait = 10 * time.Second

// clientMessage is the agent-facing envelope: a type-tagged RPC surface
// covering lease ops, intent submission, and discovery.
type clientMessage struct {
	Type string `json:"type"`

	// acquire / renew / release
	EntityID     string `json:"entityId,omitempty"`
	ControllerID string `json:"controllerId,omitempty"`
	LeaseID      string `json:"leaseId,omitempty"`

	// submit_intent
	TickID uint64          `json:"tickId,omitempty"`
	Intent *wireIntent     `json:"intent,omitempty"`

	// observe
	Observe bool `json:"observe,omitempty"`
}

type wireIntent struct {
	Kind      string `json:"kind"`
	Direction string `json:"direction,omitempty"`
	ObjectID  string `json:"objectId,omitempty"`
	ItemType  string `json:"itemType,omitempty"`
	Quantity  int    `json:"quantity,omitempty"`
	Text      string `json:"text,omitempty"`
	Channel   string `json:"channel,omitempty"`
}

var directionByName = map[string]world.Direction{
	"N": world.DirectionN, "NE": world.DirectionNE, "E": world.DirectionE, "SE": world.DirectionSE,
	"S": world.DirectionS, "SW": world.DirectionSW, "W": world.DirectionW, "NW": world.DirectionNW,
	"none": world.DirectionNone, "": world.DirectionNone,
}

func decodeIntent(in *wireIntent) intent.Intent {
	if in == nil {
		return intent.WaitIntent()
	}
	switch in.Kind {
	case "move":
		return intent.MoveIntent(directionByName[in.Direction])
	case "collect":
		return intent.CollectIntent(world.ObjectID(in.ObjectID), in.ItemType, in.Quantity)
	case "eat":
		return intent.EatIntent(in.ItemType, in.Quantity)
	case "pickup":
		return intent.Intent{Kind: intent.Pickup, ItemType: in.ItemType, Quantity: in.Quantity}
	case "use":
		return intent.Intent{Kind: intent.Use, ItemType: in.ItemType, Quantity: in.Quantity}
	case "say":
		return intent.Intent{Kind: intent.Say, Text: in.Text, Channel: in.Channel}
	default:
		return intent.WaitIntent()
	}
}

// serverMessage is the agent-facing reply envelope.
type serverMessage struct {
	Type         string `json:"type"`
	Success      bool   `json:"success,omitempty"`
	Accepted     bool   `json:"accepted,omitempty"`
	Reason       string `json:"reason,omitempty"`
	LeaseID      string `json:"leaseId,omitempty"`
	ExpiresAtMS  int64  `json:"expiresAtMs,omitempty"`
}

type discoveryMessage struct {
	Type     string            `json:"type"`
	Entities []discoveryEntity `json:"entities"`
}

type discoveryEntity struct {
	EntityID       string   `json:"entityId"`
	EntityType     string   `json:"entityType"`
	Tags           []string `json:"tags"`
	SpawnTick      uint64   `json:"spawnTick"`
	HasActiveLease bool     `json:"hasActiveLease"`
}

// AgentHandler builds the /agent websocket endpoint, multiplexing lease
// ops, intent submission, observation streaming, and discovery over one
// connection.
func AgentHandler(scheduler *sim.Scheduler) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			stdlog.Printf("agent upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		var writeMu sync.Mutex
		writeJSON := func(v any) error {
			writeMu.Lock()
			defer writeMu.Unlock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			return conn.WriteJSON(v)
		}

		var (
			observerEntity world.EntityID
			observerSub    *broadcast.Subscriber
		)
		detachObserver := func(reason string) {
			if observerSub != nil {
				scheduler.Hub().DetachObserver(r.Context(), string(observerEntity), observerSub, reason)
				observerSub = nil
			}
		}
		defer detachObserver("disconnected")

		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg clientMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				stdlog.Printf("agent: discarding malformed message: %v", err)
				continue
			}

			switch msg.Type {
			case "acquire":
				l, ok, reason := scheduler.AcquireLease(r.Context(), world.EntityID(msg.EntityID), msg.ControllerID)
				resp := serverMessage{Type: "acquire_result", Success: ok}
				if ok {
					resp.LeaseID = l.ID
					resp.ExpiresAtMS = l.ExpiresAtMS
				} else {
					resp.Reason = string(reason)
				}
				writeJSON(resp)

			case "renew":
				l, ok, reason := scheduler.RenewLease(r.Context(), msg.LeaseID)
				resp := serverMessage{Type: "renew_result", Success: ok}
				if ok {
					resp.LeaseID = l.ID
					resp.ExpiresAtMS = l.ExpiresAtMS
				} else {
					resp.Reason = string(reason)
				}
				writeJSON(resp)

			case "release":
				ok := scheduler.ReleaseLease(r.Context(), msg.LeaseID)
				writeJSON(serverMessage{Type: "release_result", Success: ok})

			case "submit_intent":
				accepted, reason := scheduler.SubmitIntent(msg.LeaseID, world.EntityID(msg.EntityID), msg.TickID, decodeIntent(msg.Intent))
				writeJSON(serverMessage{Type: "submit_result", Accepted: accepted, Reason: string(reason)})

			case "observe":
				if !scheduler.ValidateLease(msg.LeaseID, world.EntityID(msg.EntityID)) {
					writeJSON(serverMessage{Type: "observe_result", Success: false, Reason: "invalid_lease"})
					continue
				}
				detachObserver("replaced")
				observerEntity = world.EntityID(msg.EntityID)
				observerSub = scheduler.Hub().AttachObserver(r.Context(), string(observerEntity))
				go func(entityID world.EntityID, sub *broadcast.Subscriber) {
					for m := range sub.Messages() {
						if err := writeJSON(json.RawMessage(m.Data)); err != nil {
							scheduler.Hub().DetachObserver(r.Context(), string(entityID), sub, "write_error")
							return
						}
					}
				}(observerEntity, observerSub)
				writeJSON(serverMessage{Type: "observe_result", Success: true})

			case "discover":
				entries := scheduler.Discover()
				wire := make([]discoveryEntity, 0, len(entries))
				for _, e := range entries {
					wire = append(wire, discoveryEntity{
						EntityID:       string(e.EntityID),
						EntityType:     e.EntityType,
						Tags:           e.Tags,
						SpawnTick:      e.SpawnTick,
						HasActiveLease: e.HasActiveLease,
					})
				}
				writeJSON(discoveryMessage{Type: "discovery", Entities: wire})

			default:
				stdlog.Printf("agent: unknown message type %q", msg.Type)
			}
		}
	}
}
