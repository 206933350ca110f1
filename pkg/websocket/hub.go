package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Room names. Each connected client is placed in the rooms its role view
// subscribes to: customers and drivers get a personal room for their own
// rides, drivers additionally see the open-offer feed, admins see all.
const (
	RoomDrivers = "drivers"
	RoomAdmins  = "admins"
)

func UserRoom(userID primitive.ObjectID) string {
	return "user_" + userID.Hex()
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	rooms      map[string]map[*Client]bool
	mutex      sync.RWMutex
}

type Message struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		rooms:      make(map[string]map[*Client]bool),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = true

	h.joinRoom(client, UserRoom(client.UserID))
	switch client.Role {
	case "driver":
		h.joinRoom(client, RoomDrivers)
	case "admin":
		h.joinRoom(client, RoomAdmins)
	}

	welcome := Message{
		Type:      "welcome",
		Timestamp: time.Now().Unix(),
	}
	h.sendToClientLocked(client, welcome)
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.dropClientLocked(client)
}

// dropClientLocked removes the client from the hub and from every room it
// joined, then closes its send channel. A client always leaves all rooms at
// once: a membership left behind would let a later send hit the closed
// channel.
func (h *Hub) dropClientLocked(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)

	for roomID, room := range h.rooms {
		if _, exists := room[client]; exists {
			delete(room, client)
			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
}

// SendToRoom delivers the message to every client in the room. Delivery to a
// single backed-up client drops that client instead of blocking the feed.
func (h *Hub) SendToRoom(roomID string, message Message) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	room, exists := h.rooms[roomID]
	if !exists {
		return
	}

	data, _ := json.Marshal(message)
	for client := range room {
		select {
		case client.send <- data:
		default:
			h.dropClientLocked(client)
		}
	}
}

func (h *Hub) SendToUser(userID primitive.ObjectID, message Message) {
	h.SendToRoom(UserRoom(userID), message)
}

func (h *Hub) sendToClientLocked(client *Client, message Message) {
	data, _ := json.Marshal(message)
	select {
	case client.send <- data:
	default:
	}
}

func (h *Hub) joinRoom(client *Client, roomID string) {
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][client] = true
}
