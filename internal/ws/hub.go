package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

type stationEvent struct {
	StationID uuid.UUID
	Message   []byte
}

// Hub fans ticket events out to kitchen displays, one room per station.
// Rooms are created on first subscribe and dropped when the last display
// disconnects.
type Hub struct {
	rooms map[uuid.UUID]map[*Client]bool

	register   chan *Client
	unregister chan *Client
	broadcast  chan *stationEvent

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[uuid.UUID]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *stationEvent, 256),
	}
}

// Run owns all room mutation. Call once: go hub.Run().
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.subscribe(client)
		case client := <-h.unregister:
			h.drop(client)
		case event := <-h.broadcast:
			h.dispatch(event)
		}
	}
}

func (h *Hub) subscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[c.stationID]
	if room == nil {
		room = make(map[*Client]bool)
		h.rooms[c.stationID] = room
	}
	room[c] = true
}

func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.stationID]
	if !ok || !room[c] {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.stationID)
	}
}

func (h *Hub) dispatch(ev *stationEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[ev.StationID]
	for client := range room {
		select {
		case client.send <- ev.Message:
		default:
			// Display stopped draining; cut it loose rather than block the hub.
			close(client.send)
			delete(room, client)
		}
	}
	if len(room) == 0 {
		delete(h.rooms, ev.StationID)
	}
}

// NotifyStation pushes an event to every display watching the station.
// Satisfies service.Notifier; safe to call from any goroutine.
func (h *Hub) NotifyStation(stationID uuid.UUID, event any) {
	message, err := json.Marshal(event)
	if err != nil {
		log.Printf("ws: dropping unmarshalable event for station %s: %v", stationID, err)
		return
	}
	h.broadcast <- &stationEvent{StationID: stationID, Message: message}
}
