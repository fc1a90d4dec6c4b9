package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/config"
	"github.com/iDecide-Org/iDecide-API-sub000/chat-service/internal/metrics"
	"github.com/iDecide-Org/iDecide-API-sub000/pkg/log"
)

// Hub owns the local connection registry: every client on this instance and
// the rooms each one has joined. All methods are safe for concurrent use.
type Hub struct {
	clients map[string]*Client            // clientID -> client
	rooms   map[string]map[string]*Client // room -> clientID -> client
	mu      sync.RWMutex
	config  config.WebSocketConfig
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = 256
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.PingInterval <= 0 || cfg.PingInterval >= cfg.PongWait {
		cfg.PingInterval = cfg.PongWait * 9 / 10
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 16384
	}
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
		config:  cfg,
	}
}

// Config returns the websocket settings clients of this hub use.
func (h *Hub) Config() config.WebSocketConfig {
	return h.config
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()

	metrics.ActiveConnections.Inc()
	l := log.L()
	l.Debug().Str(log.FieldClientID, client.ID).Str(log.FieldUserID, client.UserID()).Msg("client registered")
}

// Unregister drops the client from every room and closes its send channel.
// It returns the rooms the client was still in. Safe to call more than once.
func (h *Hub) Unregister(client *Client) []string {
	h.mu.Lock()
	if _, ok := h.clients[client.ID]; !ok {
		h.mu.Unlock()
		return nil
	}

	var left []string
	for room, members := range h.rooms {
		if _, ok := members[client.ID]; !ok {
			continue
		}
		left = append(left, room)
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(h.clients, client.ID)
	close(client.Send)
	rooms := len(h.rooms)
	h.mu.Unlock()

	metrics.ActiveConnections.Dec()
	metrics.ActiveRooms.Set(float64(rooms))
	l := log.L()
	l.Debug().Str(log.FieldClientID, client.ID).Int("rooms_left", len(left)).Msg("client unregistered")
	return left
}

// Join adds a registered client to room. It returns false when the client is
// unknown or already a member.
func (h *Hub) Join(client *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return false
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[room] = members
	}
	if _, ok := members[client.ID]; ok {
		return false
	}
	members[client.ID] = client
	metrics.ActiveRooms.Set(float64(len(h.rooms)))
	return true
}

// Leave removes client from room. It returns false when it was not a member.
func (h *Hub) Leave(client *Client, room string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	if _, ok := members[client.ID]; !ok {
		return false
	}
	delete(members, client.ID)
	if len(members) == 0 {
		delete(h.rooms, room)
	}
	metrics.ActiveRooms.Set(float64(len(h.rooms)))
	return true
}

// Broadcast marshals message and delivers it to every member of room.
func (h *Hub) Broadcast(room string, message interface{}) (int, error) {
	data, err := json.Marshal(message)
	if err != nil {
		return 0, err
	}
	return h.BroadcastRaw(room, data), nil
}

// BroadcastRaw queues data for every member of room, the sender's own
// connections included, and returns how many clients accepted it. A member
// whose buffer is full misses this frame.
func (h *Hub) BroadcastRaw(room string, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for _, client := range h.rooms[room] {
		select {
		case client.Send <- data:
			delivered++
		default:
			metrics.FramesDroppedTotal.Inc()
			l := log.L()
			l.Warn().Str(log.FieldClientID, client.ID).Str(log.FieldRoom, room).Msg("client send buffer full, frame dropped")
		}
	}
	return delivered
}

// deliver queues data for a single client if it is still registered.
func (h *Hub) deliver(client *Client, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.clients[client.ID] != client {
		return false
	}
	select {
	case client.Send <- data:
		return true
	default:
		metrics.FramesDroppedTotal.Inc()
		return false
	}
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown unregisters every client, which makes their write pumps send a
// close frame and exit.
func (h *Hub) Shutdown() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		h.Unregister(c)
	}
}
