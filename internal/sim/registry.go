package sim

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"raceroom/internal/geo"
)

// Config carries the tunable room-lifecycle knobs. Zero values fall back to
// the defaults, so tests can override just what they need.
type Config struct {
	// DisconnectGrace is how long a disconnected player survives before
	// hard removal.
	DisconnectGrace time.Duration
	// RoomIdleGrace is how long a room with zero subscribers survives
	// before eviction.
	RoomIdleGrace time.Duration

	// Scheduler clamp band and post-event buffer.
	MinDelay     time.Duration
	MaxIdleDelay time.Duration
	DelayBuffer  time.Duration

	// Now overrides the wall clock, for tests.
	Now func() time.Time
}

func DefaultConfig() Config {
	return Config{
		DisconnectGrace: 60 * time.Second,
		RoomIdleGrace:   60 * time.Second,
		MinDelay:        50 * time.Millisecond,
		MaxIdleDelay:    10 * time.Second,
		DelayBuffer:     50 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.DisconnectGrace == 0 {
		c.DisconnectGrace = d.DisconnectGrace
	}
	if c.RoomIdleGrace == 0 {
		c.RoomIdleGrace = d.RoomIdleGrace
	}
	if c.MinDelay == 0 {
		c.MinDelay = d.MinDelay
	}
	if c.MaxIdleDelay == 0 {
		c.MaxIdleDelay = d.MaxIdleDelay
	}
	if c.DelayBuffer == 0 {
		c.DelayBuffer = d.DelayBuffer
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Session is the connection-scoped identity a transport carries for each
// client. JOIN_ROOM fills it in; every later message resolves room and
// player through it.
type Session struct {
	RoomID   string
	PlayerID string
}

// Registry owns every live room in the process. It is the single entry point
// for inbound messages and for the per-room timers, and it never reaches out
// to clients except through the Hooks it was given.
type Registry struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	hooks  Hooks
	cfg    Config
	closed bool
}

// NewRegistry creates an empty registry. hooks is the transport-facing
// boundary used by the per-room timers; per-message dispatch accepts its own
// (sender-scoped) hooks.
func NewRegistry(hooks Hooks, cfg Config) *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
		hooks: hooks,
		cfg:   cfg.withDefaults(),
	}
}

// Room returns the live room with the given id, or nil.
func (reg *Registry) Room(id string) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return reg.rooms[id]
}

// RoomCount reports how many rooms are currently live.
func (reg *Registry) RoomCount() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// Close cancels every pending room timer. Rooms are left in place; the
// process is shutting down.
func (reg *Registry) Close() {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.closed = true
	for _, room := range reg.rooms {
		room.mu.Lock()
		room.timerEpoch++
		if room.timer != nil {
			room.timer.Stop()
			room.timer = nil
		}
		room.mu.Unlock()
	}
}

// getOrCreateRoom resolves a room, creating it in the Joining state on first
// reference.
func (reg *Registry) getOrCreateRoom(id string, now time.Time) *Room {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.closed {
		return nil
	}
	room, ok := reg.rooms[id]
	if !ok {
		room = NewRoom(id, now)
		reg.rooms[id] = room
	}
	return room
}

// deleteRoom evicts a room and tells the transport. The room's timer is
// already disarmed by the caller.
func (reg *Registry) deleteRoom(id string) {
	reg.mu.Lock()
	delete(reg.rooms, id)
	reg.mu.Unlock()
	reg.hooks.RoomDeleted(id)
}

// resolve looks up the sender's room and player. Either being absent makes
// the message a no-op.
func (reg *Registry) resolve(sess *Session) (*Room, string) {
	if sess == nil || sess.RoomID == "" || sess.PlayerID == "" {
		return nil, ""
	}
	return reg.Room(sess.RoomID), sess.PlayerID
}

// spawnNear places a fresh player a small random offset from the course
// start so stacked spawns stay distinguishable on the map.
func spawnNear(pos geo.Point) geo.Point {
	const jitter = 0.0005
	return geo.Point{
		X: pos.X + (rand.Float64()*2-1)*jitter,
		Y: pos.Y + (rand.Float64()*2-1)*jitter,
	}
}

// snapshotLocked builds the wire picture of a room. Callers hold the room
// lock and have already stepped the clock.
func (reg *Registry) snapshotLocked(r *Room, now time.Time, full bool) RoomSnapshot {
	snap := RoomSnapshot{
		Type:          EventRoomStateUpdate,
		RoomID:        r.ID,
		State:         r.State,
		GameStartTime: r.GameStartTime,
		StartPos:      r.StartPos,
		FinishPos:     r.FinishPos,
		Difficulty:    r.Difficulty,
		VirtualTime:   r.VirtualTime,
		RealTime:      now.UnixMilli(),
		Rate:          r.reportedRate(),
	}
	if !r.CountdownEnd.IsZero() {
		end := r.CountdownEnd.UnixMilli()
		snap.CountdownEnd = &end
	}
	if full {
		snap.Type = EventRoomState
		snap.Players = make([]*Player, 0, len(r.Players))
		for _, p := range r.Players {
			snap.Players = append(snap.Players, p)
		}
		sort.Slice(snap.Players, func(i, j int) bool {
			return snap.Players[i].ID < snap.Players[j].ID
		})
	}
	return snap
}

func (reg *Registry) broadcastRoomStateLocked(h Hooks, r *Room, now time.Time) {
	h.BroadcastRoomState(reg.snapshotLocked(r, now, false))
}
