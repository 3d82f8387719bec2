package monitor

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/skyward-data/groundtrack/internal/track"
)

const wsWriteTimeout = 5 * time.Second

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Monitoring endpoint on a trusted network; no origin policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// snapshotHub fans each published snapshot out to connected websocket
// clients. A client that cannot keep up has its oldest pending snapshot
// dropped: the stream is latest-wins, not a reliable log.
type snapshotHub struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan snapshotJSON
	done chan struct{} // closed by the hub on server shutdown
	gone chan struct{} // closed by the reader on client disconnect
}

func newSnapshotHub() *snapshotHub {
	return &snapshotHub{clients: make(map[*wsClient]struct{})}
}

// Broadcast queues the snapshot to every connected client without
// blocking. Wired to the pipeline's Publish hook.
func (h *snapshotHub) Broadcast(snap track.Snapshot) {
	payload := snapshotToJSON(snap)

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow client: drop the stale snapshot and queue the new one.
			select {
			case <-c.send:
			default:
			}
			select {
			case c.send <- payload:
			default:
			}
		}
	}
}

func (h *snapshotHub) add(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *snapshotHub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *snapshotHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		close(c.done)
		delete(h.clients, c)
	}
}

// handleWS upgrades the connection and streams snapshots until the client
// disconnects or the server shuts down.
func (ws *WebServer) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := &wsClient{
		conn: conn,
		send: make(chan snapshotJSON, 1),
		done: make(chan struct{}),
		gone: make(chan struct{}),
	}
	if !ws.hub.add(c) {
		conn.Close()
		return
	}
	log.Printf("WebSocket client connected: %s", r.RemoteAddr)

	// Reader: discard inbound messages, detect disconnect.
	go func() {
		defer close(c.gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		ws.hub.remove(c)
		conn.Close()
		log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
	}()

	for {
		select {
		case payload := <-c.send:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(payload); err != nil {
				return
			}
		case <-c.gone:
			return
		case <-c.done:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}
