package sim

import (
	"sync"
	"time"

	"raceroom/internal/geo"
)

// Virtual time is measured in milliseconds and advances at the room's
// playback rate. Wall-clock values stay time.Time throughout.

const (
	// NormalRate is a player's desired rate while present and watching.
	NormalRate = 1.0
	// SnoozeRate is the fast-forward sentinel a player requests while away.
	SnoozeRate = 500.0
	// RateEpsilon is the minimum rate change worth re-anchoring clients for.
	RateEpsilon = 0.01
	// BaseSpeedKmPerMs is the fallback travel pace (5 km/h) used when a
	// waypoint arrives without an explicit arrival time.
	BaseSpeedKmPerMs = 5.0 / 3_600_000.0

	// CountdownDuration is the wall-clock lead-in between all-ready and
	// the race actually starting.
	CountdownDuration = 5 * time.Second
)

// RoomState is the room lifecycle state machine. Transitions only move
// forward: Joining -> Countdown -> Running, with Countdown falling back to
// Joining if a player un-readies before the deadline. Running is terminal.
type RoomState string

const (
	StateJoining   RoomState = "JOINING"
	StateCountdown RoomState = "COUNTDOWN"
	StateRunning   RoomState = "RUNNING"
)

// Difficulty selects the course preset a room races.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

// Default course: Alexanderplatz to the Brandenburg Gate.
var (
	DefaultStartPos  = geo.Point{X: 13.4132, Y: 52.5219}
	DefaultFinishPos = geo.Point{X: 13.3777, Y: 52.5163}
)

// Waypoint is one node in a player's planned path. The window
// [StartTime, ArrivalTime) is the segment during which the player is in
// transit toward Pos, in virtual milliseconds.
type Waypoint struct {
	Pos         geo.Point `json:"pos"`
	StartTime   float64   `json:"startTime"`
	ArrivalTime float64   `json:"arrivalTime"`
	// SpeedFactor is the minimum playback rate forced while this segment
	// is active; a scheduled vehicle cannot be slowed below its own pace.
	SpeedFactor float64 `json:"speedFactor"`

	StopName   string `json:"stopName,omitempty"`
	RouteColor string `json:"routeColor,omitempty"`
	RouteShort string `json:"routeShortName,omitempty"`
	Icon       string `json:"icon,omitempty"`
	IsWalk     bool   `json:"isWalk,omitempty"`
}

// Player is one participant, owned exclusively by its Room. All access goes
// through the room lock.
type Player struct {
	ID              string     `json:"id"`
	Color           string     `json:"color"`
	IsReady         bool       `json:"isReady"`
	Waypoints       []Waypoint `json:"waypoints"`
	DesiredRate     float64    `json:"desiredRate"`
	FinishTime      *float64   `json:"finishTime,omitempty"`
	ViewingStopName *string    `json:"viewingStopName,omitempty"`

	// DisconnectedAt is zero while the player's connection is live. A
	// disconnected player is kept around for a grace period so a refresh
	// does not lose their race.
	DisconnectedAt time.Time `json:"-"`
}

// Snoozed reports whether the player currently requests the away
// fast-forward rate.
func (p *Player) Snoozed() bool {
	return p.DesiredRate >= SnoozeRate
}

// LastWaypoint returns the final waypoint, or nil for an empty path.
func (p *Player) LastWaypoint() *Waypoint {
	if len(p.Waypoints) == 0 {
		return nil
	}
	return &p.Waypoints[len(p.Waypoints)-1]
}

// Room is the authoritative shared state for one race instance. A room is a
// single-writer domain: every message handler and the periodic re-evaluation
// hold mu for their full duration, so partial mutations never interleave.
type Room struct {
	mu sync.Mutex

	ID      string
	Players map[string]*Player
	State   RoomState

	StartPos   geo.Point
	FinishPos  geo.Point
	Difficulty Difficulty

	// CountdownEnd is the wall-clock deadline for the Countdown->Running
	// transition; zero outside Countdown.
	CountdownEnd time.Time
	// EmptySince is set when the subscriber count hits zero and cleared on
	// the next join; drives room eviction.
	EmptySince time.Time
	// GameStartTime is the virtual time at which Running began; set once.
	GameStartTime float64

	// The clock triple. VirtualTime only ever advances by
	// (now - LastRealTime) * PlaybackRate, applied exactly once per
	// state-affecting operation via stepClock.
	VirtualTime  float64
	LastRealTime time.Time
	PlaybackRate float64

	// Scheduler state: the pending re-evaluation timer and the epoch it
	// was armed under. A timer that wakes up to find a newer epoch has
	// been superseded and must not touch the room.
	timer      *time.Timer
	timerEpoch uint64
}

// NewRoom creates a fresh room in the Joining state with the default course
// and its virtual clock anchored to now.
func NewRoom(id string, now time.Time) *Room {
	return &Room{
		ID:           id,
		Players:      make(map[string]*Player),
		State:        StateJoining,
		StartPos:     DefaultStartPos,
		FinishPos:    DefaultFinishPos,
		Difficulty:   DifficultyNormal,
		VirtualTime:  float64(now.UnixMilli()),
		LastRealTime: now,
		PlaybackRate: NormalRate,
	}
}

// spawnWaypoint builds the zero-duration waypoint a player occupies before
// moving: startTime == arrivalTime == the room's virtual time at spawn.
func spawnWaypoint(pos geo.Point, virtualTime float64) Waypoint {
	return Waypoint{
		Pos:         pos,
		StartTime:   virtualTime,
		ArrivalTime: virtualTime,
		SpeedFactor: NormalRate,
		StopName:    "Start",
	}
}

// presentPlayers counts players whose connection is live.
func (r *Room) presentPlayers() int {
	n := 0
	for _, p := range r.Players {
		if p.DisconnectedAt.IsZero() {
			n++
		}
	}
	return n
}

// allPresentReady reports whether every connected player is ready. False for
// a room with nobody present.
func (r *Room) allPresentReady() bool {
	present := 0
	for _, p := range r.Players {
		if !p.DisconnectedAt.IsZero() {
			continue
		}
		present++
		if !p.IsReady {
			return false
		}
	}
	return present > 0
}
