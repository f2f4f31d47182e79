package ws

import (
	"fmt"
	stdlog "log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"ticksim/server/internal/sim"
)

var viewerSeq atomic.Uint64

// ViewerHandler builds the /viewer read-only push channel: on connect it
// sends a snapshot, then streams tick_started / tick_completed /
// entity_spawned / entity_despawned in tick order.
func ViewerHandler(scheduler *sim.Scheduler) http.HandlerFunc {
	codec := NewJSONCodec()
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			stdlog.Printf("viewer upgrade failed: %v", err)
			return
		}
		defer conn.Close()

		id := fmt.Sprintf("viewer-%d", viewerSeq.Add(1))
		hub := scheduler.Hub()
		sub, lastSnapshot, hadSnapshot := hub.AttachViewer(r.Context(), id)
		defer hub.DetachViewer(r.Context(), id, "disconnected")

		conn.SetWriteDeadline(time.Now().Add(writeWait))
		snapshot := lastSnapshot
		if !hadSnapshot {
			snapshot = codec.EncodeSnapshot(scheduler.Snapshot())
		}
		if err := conn.WriteMessage(websocket.TextMessage, snapshot.Data); err != nil {
			return
		}

		// A viewer connection is read-only at the protocol level but the
		// websocket must still be drained so pings/closes are observed.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					hub.DetachViewer(r.Context(), id, "read_closed")
					return
				}
			}
		}()

		for msg := range sub.Messages() {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, msg.Data); err != nil {
				return
			}
		}
	}
}
