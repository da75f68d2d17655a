package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Vasu1712/stemhub-backend/internal/models"
)

// Client is one websocket subscriber to a project's tally feed.
type Client struct {
	ProjectID string          // Project whose tally feed the client follows
	Send      chan []byte     // Outbound frames; closed by the hub
	Conn      *websocket.Conn // nil in tests
}

// Hub fans tally updates out to the subscribers of each project.
type Hub struct {
	clients    map[string]map[*Client]bool // projectID -> clients
	register   chan *Client                // Join requests, served by Run
	unregister chan *Client                // Leave requests, served by Run
	broadcast  chan BroadcastMessage       // Buffered; Run drains it
	done       chan struct{}               // closed when Run returns
	mu         sync.RWMutex                // Guards clients for ActiveClients readers
	log        *zap.Logger
}

// BroadcastMessage is an encoded frame bound for one project's subscribers.
type BroadcastMessage struct {
	ProjectID string
	Data      []byte
}

// TallyUpdate is the payload pushed to subscribers.
type TallyUpdate struct {
	ProjectID string              `json:"projectId"`
	Queue     []models.QueuedStem `json:"queue"`
}

// NewHub creates a Hub. Nothing is delivered until Run is started.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan BroadcastMessage, 256),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client's Send channel.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock() // Acquire a write lock for shutdown
			for projectID, clients := range h.clients {
				for client := range clients {
					close(client.Send)
				}
				delete(h.clients, projectID)
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.ProjectID] == nil {
				h.clients[client.ProjectID] = make(map[*Client]bool)
			}
			h.clients[client.ProjectID][client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients[msg.ProjectID] {
				select {
				case client.Send <- msg.Data:
				default:
					// Slow consumer; drop it rather than stall the hub.
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Join subscribes client. It reports false once the hub has stopped.
func (h *Hub) Join(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Leave unsubscribes client and closes its Send channel.
func (h *Hub) Leave(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// remove must be called with mu held.
func (h *Hub) remove(client *Client) {
	clients, ok := h.clients[client.ProjectID]
	if !ok {
		return
	}
	if _, ok := clients[client]; ok {
		delete(clients, client)
		close(client.Send)
	}
	if len(clients) == 0 {
		delete(h.clients, client.ProjectID)
	}
}

// ActiveClients returns the number of subscribers to a project.
func (h *Hub) ActiveClients(projectID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[projectID])
}

// PublishTally implements queue.Notifier. It never blocks: if the broadcast
// buffer is full the update is dropped, since a later one supersedes it.
func (h *Hub) PublishTally(projectID string, tally []models.QueuedStem) {
	data, err := json.Marshal(TallyUpdate{ProjectID: projectID, Queue: tally})
	if err != nil {
		h.log.Error("Failed to encode tally update", zap.String("projectID", projectID), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- BroadcastMessage{ProjectID: projectID, Data: data}:
	default:
		h.log.Warn("Tally broadcast buffer full, dropping update", zap.String("projectID", projectID))
	}
}
