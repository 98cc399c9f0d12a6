// Package local is the single-process stand-in for the socket server: the
// identical room logic runs against one in-process client, for offline play.
package local

import (
	"sync"

	"raceroom/internal/sim"
)

// Transport implements the simulation's hook boundary for a single embedded
// client. Every event, broadcast or direct, lands on the same Deliver
// callback; there is nobody else to fan out to.
type Transport struct {
	mu       sync.Mutex
	deliver  func(msg any)
	attached map[string]bool
}

// New creates a transport delivering all events to the given callback. The
// callback must not block; it is invoked from simulation goroutines.
func New(deliver func(msg any)) *Transport {
	return &Transport{
		deliver:  deliver,
		attached: make(map[string]bool),
	}
}

func (t *Transport) BroadcastRoomState(snap sim.RoomSnapshot) {
	t.Publish(snap.RoomID, snap)
}

func (t *Transport) Publish(roomID string, msg any) {
	t.mu.Lock()
	ok := t.attached[roomID]
	t.mu.Unlock()
	if ok {
		t.deliver(msg)
	}
}

func (t *Transport) SendToSender(msg any) {
	t.deliver(msg)
}

func (t *Transport) SubscriberCount(roomID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.attached[roomID] {
		return 1
	}
	return 0
}

func (t *Transport) SubscribeToRoom(roomID string) {
	t.mu.Lock()
	t.attached[roomID] = true
	t.mu.Unlock()
}

// Leave detaches the embedded client from a room, e.g. when the player
// backgrounds the app.
func (t *Transport) Leave(roomID string) {
	t.mu.Lock()
	delete(t.attached, roomID)
	t.mu.Unlock()
}

func (t *Transport) RoomDeleted(roomID string) {
	t.Leave(roomID)
}

// ShouldDeletePlayer always vetoes: the lone offline player's progress must
// survive arbitrarily long disconnects.
func (t *Transport) ShouldDeletePlayer(string, string) bool { return false }

func (t *Transport) PlayerFinished(string, sim.Difficulty, *sim.Player) {}

var _ sim.Hooks = (*Transport)(nil)
