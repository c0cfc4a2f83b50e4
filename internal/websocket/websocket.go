package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/abrezinsky/rafflebook/internal/logger"
	"github.com/abrezinsky/rafflebook/internal/models"
	"github.com/abrezinsky/rafflebook/internal/services"
)

// Message types pushed to clients
const (
	TypeInventoryChanged = "inventory_changed"
	TypeDrawStatus       = "draw_status"
	TypeDrawResolved     = "draw_resolved"
)

const (
	pongWait     = 60 * time.Second
	pingPeriod   = 54 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 256
	broadcastBuf = 256
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// InventorySource provides the unavailable set sent to clients when they subscribe
type InventorySource interface {
	ComputeUnavailable(ctx context.Context, drawID string) ([]int, error)
}

// Hub maintains the set of active clients and broadcasts messages to the clients
type Hub struct {
	log        logger.Logger
	clients    map[*Client]bool
	broadcast  chan models.WSMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mutex      sync.RWMutex
	inventory  InventorySource
}

// Client is a middleman between the websocket connection and the hub.
// A client with a drawID only receives messages for that draw.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan models.WSMessage
	drawID string
}

var _ services.Broadcaster = (*Hub)(nil)

// New creates a new Hub instance with injected dependencies
func New(log logger.Logger, inventory InventorySource) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan models.WSMessage, broadcastBuf),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		inventory:  inventory,
	}
}

// Start begins the hub's main loop in a goroutine; it stops when ctx is done
func (h *Hub) Start(ctx context.Context) {
	go h.run(ctx)
}

// run handles client registration/unregistration and message broadcasting
func (h *Hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client connected", "draw", client.drawID, "total_clients", total)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mutex.Unlock()
			h.log.Debug("Client disconnected", "total_clients", total)

		case message := <-h.broadcast:
			h.mutex.RLock()
			for client := range h.clients {
				if client.drawID != "" && client.drawID != message.DrawID {
					continue
				}
				select {
				case client.send <- message:
				default:
					// Client's send channel is full, unregister
					go h.drop(client)
				}
			}
			h.mutex.RUnlock()
		}
	}
}

// drop unregisters c unless the hub has stopped
func (h *Hub) drop(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// BroadcastMessage queues a message for every client subscribed to drawID.
// Messages are dropped when the queue is full.
func (h *Hub) BroadcastMessage(msgType, drawID string, payload interface{}) {
	select {
	case h.broadcast <- models.WSMessage{Type: msgType, DrawID: drawID, Payload: payload}:
	default:
		h.log.Warn("Broadcast queue full, dropping message", "type", msgType, "draw", drawID)
	}
}

// BroadcastInventory implements services.Broadcaster
func (h *Hub) BroadcastInventory(drawID string, unavailable []int) {
	h.BroadcastMessage(TypeInventoryChanged, drawID, map[string]interface{}{
		"unavailable": unavailable,
	})
}

// BroadcastDrawStatus implements services.Broadcaster
func (h *Hub) BroadcastDrawStatus(drawID string, status models.DrawStatus) {
	h.BroadcastMessage(TypeDrawStatus, drawID, map[string]interface{}{
		"status": status,
	})
}

// BroadcastDrawResolved implements services.Broadcaster
func (h *Hub) BroadcastDrawResolved(result *models.DrawResult) {
	h.BroadcastMessage(TypeDrawResolved, result.DrawID, map[string]interface{}{
		"result": result,
	})
}

// readPump pumps messages from the websocket connection to the hub
func (c *Client) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Debug("WebSocket error", "error", err)
			}
			break
		}

		// The feed is one-way; incoming frames are only logged
		var msg models.WSMessage
		if err := json.Unmarshal(message, &msg); err == nil {
			c.hub.log.Debug("Received message", "type", msg.Type)
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWs handles websocket requests from clients. The optional draw query
// parameter subscribes the client to one draw and sends its current
// unavailable set first.
func (h *Hub) ServeWs(w http.ResponseWriter, r *http.Request) {
	drawID := r.URL.Query().Get("draw")

	var snapshot *models.WSMessage
	if drawID != "" && h.inventory != nil {
		nums, err := h.inventory.ComputeUnavailable(r.Context(), drawID)
		if err != nil {
			h.log.Debug("WebSocket subscription rejected", "draw", drawID, "error", err)
			http.Error(w, "unknown draw", http.StatusNotFound)
			return
		}
		if nums == nil {
			nums = []int{}
		}
		snapshot = &models.WSMessage{
			Type:    TypeInventoryChanged,
			DrawID:  drawID,
			Payload: map[string]interface{}{"unavailable": nums},
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("WebSocket upgrade error", "error", err)
		return
	}

	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan models.WSMessage, sendBuffer),
		drawID: drawID,
	}
	if snapshot != nil {
		client.send <- *snapshot
	}
	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	// Allow collection of memory referenced by the caller by doing all work in new goroutines
	go client.writePump()
	go client.readPump()
}
