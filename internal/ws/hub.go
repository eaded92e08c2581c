package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
)

// Event represents a WebSocket message to be broadcast
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// establishmentEvent is an internal struct for routing events to specific establishments
type establishmentEvent struct {
	EstablishmentID uuid.UUID
	Event           Event
}

// Hub maintains the set of active clients and broadcasts messages to them
type Hub struct {
	// Registered clients by establishment ID
	rooms map[uuid.UUID]map[*Client]bool

	// Inbound messages from clients (register/unregister)
	register   chan *Client
	unregister chan *Client

	// Outbound messages to broadcast
	broadcast chan *establishmentEvent

	// Mutex for thread-safe room access
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *establishmentEvent, 256),
	}
}

// Run starts the hub's main loop
// This should be called as a goroutine: go hub.Run()
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.rooms[client.establishmentID] == nil {
				h.rooms[client.establishmentID] = make(map[*Client]bool)
			}
			h.rooms[client.establishmentID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.rooms[client.establishmentID]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)
					// Clean up empty rooms
					if len(clients) == 0 {
						delete(h.rooms, client.establishmentID)
					}
				}
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.Lock()
			clients := h.rooms[event.EstablishmentID]

			// Marshal event to JSON once
			message, err := json.Marshal(event.Event)
			if err != nil {
				h.mu.Unlock()
				continue
			}

			// Send to all clients in this establishment's room
			for client := range clients {
				select {
				case client.send <- message:
				default:
					// Client's send buffer is full, close and unregister
					close(client.send)
					delete(h.rooms[event.EstablishmentID], client)
					if len(h.rooms[event.EstablishmentID]) == 0 {
						delete(h.rooms, event.EstablishmentID)
					}
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToEstablishment sends an event to all clients subscribed to a
// specific establishment. This is the public API for handlers to broadcast.
func (h *Hub) BroadcastToEstablishment(establishmentID uuid.UUID, event Event) {
	h.broadcast <- &establishmentEvent{
		EstablishmentID: establishmentID,
		Event:           event,
	}
}
