package sim

import (
	"raceroom/internal/geo"
)

// Inbound message types.
const (
	MsgSyncRequest       = "SYNC_REQUEST"
	MsgJoinRoom          = "JOIN_ROOM"
	MsgToggleReady       = "TOGGLE_READY"
	MsgUpdatePlayerColor = "UPDATE_PLAYER_COLOR"
	MsgToggleSnooze      = "TOGGLE_SNOOZE"
	MsgSetGameBounds     = "SET_GAME_BOUNDS"
	MsgSetViewingStop    = "SET_VIEWING_STOP"
	MsgAddWaypoint       = "ADD_WAYPOINT"
	MsgCancelNavigation  = "CANCEL_NAVIGATION"
	MsgStopImmediately   = "STOP_IMMEDIATELY"
	MsgPlayerFinished    = "PLAYER_FINISHED"
)

// Outbound event types.
const (
	EventSyncResponse     = "SYNC_RESPONSE"
	EventRoomState        = "ROOM_STATE"
	EventRoomStateUpdate  = "ROOM_STATE_UPDATE"
	EventPlayerJoined     = "PLAYER_JOINED"
	EventPlayerLeft       = "PLAYER_LEFT"
	EventReadyUpdate      = "READY_UPDATE"
	EventColorUpdate      = "PLAYER_COLOR_UPDATE"
	EventSnoozeUpdate     = "PLAYER_SNOOZE_UPDATE"
	EventWaypointsUpdate  = "PLAYER_WAYPOINTS_UPDATE"
	EventWaypointAdded    = "WAYPOINT_ADDED"
	EventViewUpdate       = "PLAYER_VIEW_UPDATE"
	EventFinishUpdate     = "PLAYER_FINISH_UPDATE"
	EventClockUpdate      = "CLOCK_UPDATE"
)

// ClientMessage is the JSON structure received from clients. Fields beyond
// Type are populated per message kind; the transport decodes, the handler
// ignores anything inapplicable.
type ClientMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
	Color    string `json:"color,omitempty"`

	// ADD_WAYPOINT: target position, forced segment rate, optional
	// precomputed arrival and display metadata.
	X           float64  `json:"x,omitempty"`
	Y           float64  `json:"y,omitempty"`
	SpeedFactor float64  `json:"speedFactor,omitempty"`
	ArrivalTime *float64 `json:"arrivalTime,omitempty"`
	StopName    string   `json:"stopName,omitempty"`
	RouteColor  string   `json:"routeColor,omitempty"`
	RouteShort  string   `json:"routeShortName,omitempty"`
	Icon        string   `json:"icon,omitempty"`
	IsWalk      bool     `json:"isWalk,omitempty"`

	// SET_GAME_BOUNDS.
	StartPos   *geo.Point `json:"startPos,omitempty"`
	FinishPos  *geo.Point `json:"finishPos,omitempty"`
	Difficulty string     `json:"difficulty,omitempty"`
	StartTime  *float64   `json:"startTime,omitempty"`

	// SET_VIEWING_STOP: nil clears.
	ViewingStopName *string `json:"viewingStopName,omitempty"`

	// PLAYER_FINISHED: virtual-time elapsed at the finish line.
	FinishTime float64 `json:"finishTime,omitempty"`
}

// SyncResponse re-anchors one client's clock extrapolation.
type SyncResponse struct {
	Type        string  `json:"type"`
	VirtualTime float64 `json:"virtualTime"`
	RealTime    int64   `json:"realTime"`
	Rate        float64 `json:"rate"`
}

// RoomSnapshot is the full room picture: state machine fields, course,
// clock anchor, and (for direct replies) every player.
type RoomSnapshot struct {
	Type          string     `json:"type"`
	RoomID        string     `json:"roomId"`
	State         RoomState  `json:"state"`
	CountdownEnd  *int64     `json:"countdownEnd,omitempty"`
	GameStartTime float64    `json:"gameStartTime,omitempty"`
	StartPos      geo.Point  `json:"startPos"`
	FinishPos     geo.Point  `json:"finishPos"`
	Difficulty    Difficulty `json:"difficulty"`
	VirtualTime   float64    `json:"virtualTime"`
	RealTime      int64      `json:"realTime"`
	Rate          float64    `json:"rate"`
	Players       []*Player  `json:"players,omitempty"`
}

// PlayerEvent covers the single-player broadcasts: join, leave, ready,
// color, snooze, viewing-stop and finish updates. Only the fields relevant
// to the event type are set.
type PlayerEvent struct {
	Type            string   `json:"type"`
	PlayerID        string   `json:"playerId"`
	Color           string   `json:"color,omitempty"`
	IsReady         bool     `json:"isReady,omitempty"`
	DesiredRate     float64  `json:"desiredRate,omitempty"`
	ViewingStopName *string  `json:"viewingStopName,omitempty"`
	FinishTime      *float64 `json:"finishTime,omitempty"`
	Player          *Player  `json:"player,omitempty"`
}

// WaypointsEvent replaces or extends a player's path on every observer.
type WaypointsEvent struct {
	Type      string     `json:"type"`
	PlayerID  string     `json:"playerId"`
	Waypoints []Waypoint `json:"waypoints,omitempty"`
	Waypoint  *Waypoint  `json:"waypoint,omitempty"`
}

// ClockEvent carries the re-anchoring pair broadcast on rate changes.
type ClockEvent struct {
	Type        string  `json:"type"`
	VirtualTime float64 `json:"virtualTime"`
	RealTime    int64   `json:"realTime"`
	Rate        float64 `json:"rate"`
}
