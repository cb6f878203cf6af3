package statusapi

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
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub broadcasts progress events to every connected dashboard. Strictly
// observational: nothing read off a connection is ever acted on.
type Hub struct {
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
}

// NewHub constructs an idle hub; call Run in a goroutine to start
// dispatching.
func NewHub() *Hub {
	return &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
}

// Run drains the broadcast channel, fanning each message out to every
// connected client. Blocks; intended to run in its own goroutine for the
// lifetime of the process.
func (h *Hub) Run() {
	for message := range h.broadcast {
		h.mutex.Lock()
		for client := range h.clients {
			_ = client.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("[StatusAPI] websocket write error: %v", err)
				client.Close()
				delete(h.clients, client)
			}
		}
		h.mutex.Unlock()
	}
}

// Subscribe upgrades a GET /ws request to a websocket and registers the
// connection for broadcasts.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[StatusAPI] websocket upgrade failed: %v", err)
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	h.mutex.Unlock()

	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			h.mutex.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// Broadcast enqueues a raw message for delivery to every client.
func (h *Hub) Broadcast(data []byte) {
	h.broadcast <- data
}

// Event is the envelope published over the hub. The orchestrator publishes
// one "attack-completed" event per attack a batch ran, after the batch's
// attack sequence finishes.
type Event struct {
	Type      string    `json:"type"` // "attack-completed"
	BatchID   uint32    `json:"batchId"`
	Attack    string    `json:"attack,omitempty"`
	NewCracks int       `json:"newCracks,omitempty"`
	At        time.Time `json:"at"`
}

// PublishEvent marshals and broadcasts ev, logging rather than failing if
// it cannot be encoded.
func PublishEvent(hub *Hub, ev Event) {
	if hub == nil {
		return
	}
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[StatusAPI] failed to marshal event: %v", err)
		return
	}
	hub.Broadcast(data)
}
