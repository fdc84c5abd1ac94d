package main

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// Broadcaster pushes room events to whoever is watching. Broadcasts are
// fire-and-forget: a slow or absent listener never blocks a mutation.
type Broadcaster interface {
	Publish(roomID, event string, payload any)
}

// WSEvent is the wire shape of a hub message.
type WSEvent struct {
	Event   string `json:"event"`
	RoomID  string `json:"room_id"`
	Payload any    `json:"payload,omitempty"`
}

// Client is one websocket connection subscribed to a room.
type Client struct {
	conn    *websocket.Conn
	roomID  string
	writeMu sync.Mutex // serialize writes per connection (gorilla requirement)
}

type hubMessage struct {
	roomID string
	data   []byte
}

// Hub fans room events out to subscribed websocket clients.
type Hub struct {
	clients    map[*websocket.Conn]*Client
	broadcast  chan hubMessage
	register   chan *Client
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	done       chan struct{}
	wg         sync.WaitGroup
	log        *AppLogger
}

func NewHub(log *AppLogger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]*Client),
		broadcast:  make(chan hubMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *websocket.Conn, 64),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Stop signals the hub goroutine to exit and waits for it to finish.
func (h *Hub) Stop() {
	close(h.done)
	h.wg.Wait()
}

// Publish queues an event for every client watching the room. If the queue
// is full the event is dropped; the room snapshot endpoint is the source of
// truth, the hub is only a nudge.
func (h *Hub) Publish(roomID, event string, payload any) {
	data, err := json.Marshal(WSEvent{Event: event, RoomID: roomID, Payload: payload})
	if err != nil {
		log.Printf("hub: marshal %s for room %s: %v", event, roomID, err)
		return
	}
	h.log.LogWS("OUT", roomID, string(data))
	select {
	case h.broadcast <- hubMessage{roomID: roomID, data: data}:
	default:
		h.log.Debug("hub: dropped %s for room %s (queue full)", event, roomID)
	}
}

// Run is the hub goroutine. Start it once, stop it with Stop.
func (h *Hub) Run() {
	h.wg.Add(1)
	defer h.wg.Done()
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.conn] = client
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client connected (room %s). Total: %d", client.roomID, total)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			total := len(h.clients)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected. Total: %d", total)

		case msg := <-h.broadcast:
			h.mu.RLock()
			for conn, client := range h.clients {
				if client.roomID != msg.roomID {
					continue
				}
				client.writeMu.Lock()
				err := conn.WriteMessage(websocket.TextMessage, msg.data)
				client.writeMu.Unlock()
				if err != nil {
					log.Printf("WebSocket write error: %v", err)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// HandleWebSocket upgrades the request and subscribes it to the room in
// the path. Incoming frames are read and discarded; the socket is a
// one-way event feed.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("id")
	if roomID == "" {
		http.Error(w, "missing room id", http.StatusBadRequest)
		return
	}

	var upgrader websocket.Upgrader
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error for room %s: %v", roomID, err)
		return
	}

	client := &Client{conn: conn, roomID: roomID}
	h.register <- client

	go func() {
		defer func() {
			h.unregister <- conn
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}
