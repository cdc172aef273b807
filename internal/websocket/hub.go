package websocket

import (
	"context"
	"sync"

	"catalog-lens/internal/pkg/logger"

	"github.com/google/uuid"
)

// Hub fans frames out to every connected UI. The kiosk runs one hub for
// notices and, in development, one for live reload.
type Hub struct {
	name string

	clients map[uuid.UUID]*Client

	register chan *Client
	done     chan struct{}

	mu sync.RWMutex

	logger logger.ILogger
}

func NewHub(name string, log logger.ILogger) *Hub {
	return &Hub{
		name:     name,
		register: make(chan *Client),
		done:     make(chan struct{}),
		clients:  make(map[uuid.UUID]*Client),
		logger:   log,
	}
}

// Run processes registrations until ctx is done, then disconnects everyone.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			h.logger.Debug("Hub", "Client registered", map[string]interface{}{"hub": h.name, "client_id": client.ID})

		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for id, client := range h.clients {
				close(client.Send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast queues data for every client. A client whose buffer is full is
// dropped rather than stalling the others.
func (h *Hub) Broadcast(data []byte) {
	var slow []*Client

	h.mu.RLock()
	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn("Hub", "Client send buffer full, dropping client", map[string]interface{}{"hub": h.name, "client_id": client.ID})
		h.remove(client)
	}
}

// add hands client to Run. It reports false once the hub has stopped.
func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.clients[client.ID]; ok && current == client {
		delete(h.clients, client.ID)
		close(client.Send)
		h.logger.Debug("Hub", "Client unregistered", map[string]interface{}{"hub": h.name, "client_id": client.ID})
	}
}
