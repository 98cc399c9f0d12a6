package wshub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"raceroom/internal/metrics"
	"raceroom/internal/sim"
)

// Client represents a single WebSocket connection in the hub.
type Client struct {
	ConnID string
	RoomID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// WritePump reads from the Send channel and writes to the WebSocket
// connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// trySend queues without blocking; slow clients lose messages and resync
// later.
func (c *Client) trySend(data []byte) {
	select {
	case c.Send <- data:
	default:
	}
}

// Hub manages per-room WebSocket connections and is the live implementation
// of the simulation's hook boundary. Deliveries are fire-and-forget: the
// simulation never waits on a client.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*Client]bool

	// OnFinish, when set, receives each first-time player finish for
	// snapshotting. Invoked under the finishing room's lock.
	OnFinish func(roomID string, difficulty sim.Difficulty, p *sim.Player)
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		rooms: make(map[string]map[*Client]bool),
	}
}

// Attach moves a client into a room's observer set. A client observes at
// most one room; joining another implicitly leaves the previous one.
func (h *Hub) Attach(c *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c.RoomID != "" && c.RoomID != roomID {
		h.detachLocked(c)
	}
	c.RoomID = roomID
	set, ok := h.rooms[roomID]
	if !ok {
		set = make(map[*Client]bool)
		h.rooms[roomID] = set
	}
	set[c] = true
}

// Detach removes a client from its room and closes its Send channel.
func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detachLocked(c)
	close(c.Send)
}

func (h *Hub) detachLocked(c *Client) {
	if set, ok := h.rooms[c.RoomID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, c.RoomID)
		}
	}
	c.RoomID = ""
}

// Publish marshals a typed event and fans it out to every observer of a
// room. Non-blocking: drops if a client's channel is full.
func (h *Hub) Publish(roomID string, msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("room", roomID).Msg("marshal event")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[roomID] {
		c.trySend(data)
	}
	metrics.EventsPublished.Inc()
}

// BroadcastRoomState emits a full room snapshot to all observers.
func (h *Hub) BroadcastRoomState(snap sim.RoomSnapshot) {
	h.Publish(snap.RoomID, snap)
}

// SendToSender on the hub itself is a no-op; per-connection dispatch wraps
// the hub with sim.WithSender to route direct replies.
func (h *Hub) SendToSender(any) {}

// SubscriberCount reports how many observers hold a live connection to a
// room.
func (h *Hub) SubscriberCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// SubscribeToRoom is satisfied per-connection; the hub-level hooks used by
// room timers have no connection to subscribe.
func (h *Hub) SubscribeToRoom(string) {}

// RoomDeleted drops the observer set of an evicted room.
func (h *Hub) RoomDeleted(roomID string) {
	h.mu.Lock()
	delete(h.rooms, roomID)
	h.mu.Unlock()
	log.Info().Str("room", roomID).Msg("room evicted")
}

// ShouldDeletePlayer never vetoes on the live transport.
func (h *Hub) ShouldDeletePlayer(string, string) bool { return true }

// PlayerFinished forwards a first-time finish to the snapshot sink, if any.
func (h *Hub) PlayerFinished(roomID string, difficulty sim.Difficulty, p *sim.Player) {
	if h.OnFinish != nil {
		h.OnFinish(roomID, difficulty, p)
	}
}

// ConnHooks builds the sender-scoped hook set for one client's dispatches:
// direct replies go to that client, subscription attaches it to the room.
func (h *Hub) ConnHooks(c *Client) sim.Hooks {
	return connHooks{Hub: h, client: c}
}

type connHooks struct {
	*Hub
	client *Client
}

func (ch connHooks) SendToSender(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("marshal direct reply")
		return
	}
	ch.client.trySend(data)
}

func (ch connHooks) SubscribeToRoom(roomID string) {
	ch.Hub.Attach(ch.client, roomID)
}

var _ sim.Hooks = (*Hub)(nil)
