package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub maintains the set of active websocket clients and broadcasts
// session-progress events to all of them.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[WS] write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades a GET /stream request to a websocket and registers the
// client to receive broadcast progress events.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[WS] upgrade failed: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	h.mutex.Unlock()

	log.Printf("[WS] client connected, total=%d", len(h.clients))

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
			log.Printf("[WS] client disconnected, total=%d", len(h.clients))
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[WS] read error: %v", err)
				}
				break
			}
		}
	}()
}

// Broadcast sends a raw JSON payload to every connected client.
func (h *Hub) Broadcast(data []byte) {
	h.broadcast <- data
}

// progressEvent is the wire shape BroadcastSessionUpdate pushes to
// subscribers. Sessions do not publish to the hub on their own: a frame is
// sent only when a caller invokes BroadcastSessionUpdate or Broadcast.
type progressEvent struct {
	SessionID        string `json:"sessionId"`
	Status           string `json:"status"`
	SearchDepth      int    `json:"searchDepth"`
	ConnectionsFound int    `json:"connectionsFound"`
}

// BroadcastSessionUpdate marshals and broadcasts one session's current
// status. Marshal failures are logged and dropped rather than propagated,
// since a missed progress frame is never fatal to the underlying session.
func (h *Hub) BroadcastSessionUpdate(sessionID, status string, searchDepth, connectionsFound int) {
	payload, err := json.Marshal(progressEvent{
		SessionID:        sessionID,
		Status:           status,
		SearchDepth:      searchDepth,
		ConnectionsFound: connectionsFound,
	})
	if err != nil {
		log.Printf("[WS] marshal progress event failed: %v", err)
		return
	}
	h.Broadcast(payload)
}
