package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/chepyr/organism/shared"
	"github.com/chepyr/organism/shared/models"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	EventTaskCreated = "task_created"
	EventTaskUpdated = "task_updated"
	EventTaskDeleted = "task_deleted"
)

// WSHub fans task events out to every open socket of the task's owner.
type WSHub struct {
	connections map[uuid.UUID]map[*websocket.Conn]bool
	mutex       sync.Mutex
}

func NewWSHub() *WSHub {
	return &WSHub{connections: make(map[uuid.UUID]map[*websocket.Conn]bool)}
}

type taskEvent struct {
	Event  string       `json:"event"`
	TaskID uuid.UUID    `json:"task_id"`
	Task   *models.Task `json:"task,omitempty"`
}

func (h *WSHub) add(owner uuid.UUID, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.connections[owner] == nil {
		h.connections[owner] = make(map[*websocket.Conn]bool)
	}
	h.connections[owner][conn] = true
}

func (h *WSHub) remove(owner uuid.UUID, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	delete(h.connections[owner], conn)
	if len(h.connections[owner]) == 0 {
		delete(h.connections, owner)
	}
}

// Count is the number of open sockets for owner.
func (h *WSHub) Count(owner uuid.UUID) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections[owner])
}

// Broadcast sends an event to all sockets of owner. A nil hub is a no-op.
func (h *WSHub) Broadcast(owner uuid.UUID, event string, taskID uuid.UUID, task *models.Task) {
	if h == nil {
		return
	}
	h.mutex.Lock()
	defer h.mutex.Unlock()

	conns, exists := h.connections[owner]
	if !exists {
		return
	}

	message, err := json.Marshal(taskEvent{Event: event, TaskID: taskID, Task: task})
	if err != nil {
		log.Printf("Failed to marshal task event: %v", err)
		return
	}

	for conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("Failed to send WebSocket message: %v", err)
			delete(conns, conn)
			conn.Close()
		}
	}
}

// checkOrigin allows everything when no origins are configured.
func (h *Handler) checkOrigin(r *http.Request) bool {
	if len(h.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// GET /ws
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := UserIDFromContext(r.Context())
	if !ok {
		shared.SendError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	clientIP := shared.ClientIP(r)
	if h.RateLimiter != nil && !h.RateLimiter.Allow(clientIP) {
		shared.SendError(w, "Too many WebSocket connection attempts", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.WSHub.add(ownerID, conn)

	// clients only listen; reading detects the close
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			h.WSHub.remove(ownerID, conn)
			conn.Close()
			return
		}
	}
}
