package sim

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced wall clock shared by a test registry.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// recordingHooks captures everything the core emits.
type recordingHooks struct {
	mu         sync.Mutex
	published  []any
	direct     []any
	broadcasts []RoomSnapshot
	deleted    []string
	finished   []string
	subs       int
	vetoDelete bool
}

func (r *recordingHooks) BroadcastRoomState(snap RoomSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcasts = append(r.broadcasts, snap)
}

func (r *recordingHooks) Publish(roomID string, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.published = append(r.published, msg)
}

func (r *recordingHooks) SendToSender(msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.direct = append(r.direct, msg)
}

func (r *recordingHooks) SubscriberCount(string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subs
}

func (r *recordingHooks) SubscribeToRoom(string) {}

func (r *recordingHooks) RoomDeleted(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, roomID)
}

func (r *recordingHooks) ShouldDeletePlayer(string, string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.vetoDelete
}

func (r *recordingHooks) PlayerFinished(roomID string, difficulty Difficulty, p *Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = append(r.finished, p.ID)
}

func (r *recordingHooks) lastPublished() any {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.published) == 0 {
		return nil
	}
	return r.published[len(r.published)-1]
}

func (r *recordingHooks) publishedOfType(typ string) []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []any
	for _, msg := range r.published {
		switch m := msg.(type) {
		case PlayerEvent:
			if m.Type == typ {
				out = append(out, m)
			}
		case WaypointsEvent:
			if m.Type == typ {
				out = append(out, m)
			}
		case ClockEvent:
			if m.Type == typ {
				out = append(out, m)
			}
		}
	}
	return out
}

// newTestRegistry builds a registry on a fake clock. The scheduler band is
// pushed out to hours so armed timers can never fire mid-test; tests drive
// re-evaluation by hand through reevaluate.
func newTestRegistry(t *testing.T) (*Registry, *fakeClock, *recordingHooks) {
	t.Helper()
	clock := newFakeClock()
	hooks := &recordingHooks{subs: 1}
	reg := NewRegistry(hooks, Config{
		DisconnectGrace: 60 * time.Second,
		RoomIdleGrace:   60 * time.Second,
		MinDelay:        time.Hour,
		MaxIdleDelay:    2 * time.Hour,
		DelayBuffer:     50 * time.Millisecond,
		Now:             clock.Now,
	})
	t.Cleanup(reg.Close)
	return reg, clock, hooks
}

// reevaluate runs one periodic maintenance step for the room, the way a
// fired timer would.
func (reg *Registry) reevaluate(room *Room) bool {
	now := reg.cfg.Now()
	room.mu.Lock()
	evict := reg.reevaluateLocked(reg.hooks, room, now)
	room.mu.Unlock()
	if evict {
		reg.deleteRoom(room.ID)
	}
	return evict
}

// join is shorthand for dispatching a JOIN_ROOM and returning the session.
func join(reg *Registry, h Hooks, roomID, playerID string) *Session {
	sess := &Session{}
	reg.Dispatch(h, sess, ClientMessage{Type: MsgJoinRoom, RoomID: roomID, PlayerID: playerID})
	return sess
}

// startRace readies every player and advances through the countdown into
// Running.
func startRace(t *testing.T, reg *Registry, clock *fakeClock, h Hooks, room *Room, sessions ...*Session) {
	t.Helper()
	for _, sess := range sessions {
		reg.Dispatch(h, sess, ClientMessage{Type: MsgToggleReady})
	}
	if got := roomState(room); got != StateCountdown {
		t.Fatalf("state after all ready = %v, want %v", got, StateCountdown)
	}
	clock.Advance(CountdownDuration + time.Second)
	reg.reevaluate(room)
	if got := roomState(room); got != StateRunning {
		t.Fatalf("state after countdown elapsed = %v, want %v", got, StateRunning)
	}
}

func roomState(room *Room) RoomState {
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.State
}

func virtualTime(room *Room) float64 {
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.VirtualTime
}

func playbackRate(room *Room) float64 {
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.PlaybackRate
}

func playerWaypoints(room *Room, id string) []Waypoint {
	room.mu.Lock()
	defer room.mu.Unlock()
	p := room.Players[id]
	if p == nil {
		return nil
	}
	out := make([]Waypoint, len(p.Waypoints))
	copy(out, p.Waypoints)
	return out
}
