package sim

import (
	"math"
	"time"

	"raceroom/internal/geo"
	"raceroom/internal/utility"
)

// Dispatch routes one inbound client message. sess is the connection-scoped
// identity; JOIN_ROOM fills it in, everything else resolves through it.
// Messages referencing unknown rooms or players, or inapplicable to the
// room's current state, are silently dropped.
func (reg *Registry) Dispatch(h Hooks, sess *Session, msg ClientMessage) {
	switch msg.Type {
	case MsgSyncRequest:
		reg.handleSyncRequest(h, sess)
	case MsgJoinRoom:
		reg.handleJoinRoom(h, sess, msg)
	case MsgToggleReady:
		reg.handleToggleReady(h, sess)
	case MsgUpdatePlayerColor:
		reg.handleUpdateColor(h, sess, msg)
	case MsgToggleSnooze:
		reg.handleToggleSnooze(h, sess)
	case MsgSetGameBounds:
		reg.handleSetGameBounds(h, sess, msg)
	case MsgSetViewingStop:
		reg.handleSetViewingStop(h, sess, msg)
	case MsgAddWaypoint:
		reg.handleAddWaypoint(h, sess, msg)
	case MsgCancelNavigation:
		reg.handleCancelNavigation(h, sess)
	case MsgStopImmediately:
		reg.handleStopImmediately(h, sess)
	case MsgPlayerFinished:
		reg.handlePlayerFinished(h, sess, msg)
	}
}

// handleSyncRequest replies to the requester only, without mutating state:
// the current virtual/real time pair plus the rate clients should
// extrapolate with.
func (reg *Registry) handleSyncRequest(h Hooks, sess *Session) {
	room, playerID := reg.resolve(sess)
	if room == nil {
		return
	}
	now := reg.cfg.Now()
	room.mu.Lock()
	if room.Players[playerID] == nil {
		room.mu.Unlock()
		return
	}
	resp := SyncResponse{
		Type:        EventSyncResponse,
		VirtualTime: room.serverTime(now),
		RealTime:    now.UnixMilli(),
		Rate:        room.reportedRate(),
	}
	room.mu.Unlock()
	h.SendToSender(resp)
}

func (reg *Registry) handleJoinRoom(h Hooks, sess *Session, msg ClientMessage) {
	if msg.RoomID == "" || msg.PlayerID == "" {
		return
	}
	// A live connection can move between rooms (or identities): soft-remove
	// the previous player first, or the old room is held open by a ghost
	// that never disconnects and never expires.
	if sess.RoomID != "" && (sess.RoomID != msg.RoomID || sess.PlayerID != msg.PlayerID) {
		reg.Disconnect(h, sess)
	}
	now := reg.cfg.Now()
	room := reg.getOrCreateRoom(msg.RoomID, now)
	if room == nil {
		return
	}
	sess.RoomID = msg.RoomID
	sess.PlayerID = msg.PlayerID
	h.SubscribeToRoom(room.ID)

	room.mu.Lock()
	room.stepClock(now)
	room.EmptySince = time.Time{}

	p, ok := room.Players[msg.PlayerID]
	if ok {
		// Rejoin: the player is live again and no longer away.
		p.DisconnectedAt = time.Time{}
		if p.Snoozed() {
			p.DesiredRate = NormalRate
		}
		if msg.Color != "" {
			p.Color = msg.Color
		}
	} else {
		color := msg.Color
		if color == "" {
			color = utility.RandomColorHex()
		}
		p = &Player{
			ID:          msg.PlayerID,
			Color:       color,
			DesiredRate: NormalRate,
			// Late joiners of a running race spectate; they must not
			// retroactively gate a countdown that already elapsed.
			IsReady:   room.State == StateRunning,
			Waypoints: []Waypoint{spawnWaypoint(spawnNear(room.StartPos), room.VirtualTime)},
		}
		room.Players[msg.PlayerID] = p
	}

	snap := reg.snapshotLocked(room, now, true)
	h.Publish(room.ID, PlayerEvent{Type: EventPlayerJoined, PlayerID: p.ID, Player: p})
	reg.checkCountdownLocked(h, room, now)
	reg.updateRateLocked(h, room, now)
	reg.scheduleLocked(room, now)
	room.mu.Unlock()

	h.SendToSender(snap)
}

func (reg *Registry) handleToggleReady(h Hooks, sess *Session) {
	room, playerID := reg.resolve(sess)
	if room == nil {
		return
	}
	now := reg.cfg.Now()
	room.mu.Lock()
	defer room.mu.Unlock()
	p := room.Players[playerID]
	if p == nil {
		return
	}
	room.stepClock(now)
	p.IsReady = !p.IsReady
	h.Publish(room.ID, PlayerEvent{Type: EventReadyUpdate, PlayerID: p.ID, IsReady: p.IsReady})
	reg.checkCountdownLocked(h, room, now)
	reg.scheduleLocked(room, now)
}

func (reg *Registry) handleUpdateColor(h Hooks, sess *Session, msg ClientMessage) {
	room, playerID := reg.resolve(sess)
	if room == nil || msg.Color == "" {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	p := room.Players[playerID]
	if p == nil {
		return
	}
	p.Color = msg.Color
	h.Publish(room.ID, PlayerEvent{Type: EventColorUpdate, PlayerID: p.ID, Color: p.Color})
}

func (reg *Registry) handleSetViewingStop(h Hooks, sess *Session, msg ClientMessage) {
	room, playerID := reg.resolve(sess)
	if room == nil {
		return
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	p := room.Players[playerID]
	if p == nil {
		return
	}
	p.ViewingStopName = msg.ViewingStopName
	h.Publish(room.ID, PlayerEvent{Type: EventViewUpdate, PlayerID: p.ID, ViewingStopName: p.ViewingStopName})
}

func (reg *Registry) handleToggleSnooze(h Hooks, sess *Session) {
	room, playerID := reg.resolve(sess)
	if room == nil {
		return
	}
	now := reg.cfg.Now()
	room.mu.Lock()
	defer room.mu.Unlock()
	p := room.Players[playerID]
	if p == nil {
		return
	}
	room.stepClock(now)
	if p.Snoozed() {
		p.DesiredRate = NormalRate
	} else {
		p.DesiredRate = SnoozeRate
	}
	h.Publish(room.ID, PlayerEvent{Type: EventSnoozeUpdate, PlayerID: p.ID, DesiredRate: p.DesiredRate})
	reg.updateRateLocked(h, room, now)
	reg.scheduleLocked(room, now)
}

// handleSetGameBounds reconfigures the course while the room is still
// forming. Moving the start position or start time resets every player's
// path to a fresh spawn waypoint: course edits abort in-progress planning.
func (reg *Registry) handleSetGameBounds(h Hooks, sess *Session, msg ClientMessage) {
	room, playerID := reg.resolve(sess)
	if room == nil {
		return
	}
	now := reg.cfg.Now()
	room.mu.Lock()
	defer room.mu.Unlock()
	if room.Players[playerID] == nil || room.State != StateJoining {
		return
	}
	room.stepClock(now)

	reset := false
	if msg.StartPos != nil && *msg.StartPos != room.StartPos {
		room.StartPos = *msg.StartPos
		reset = true
	}
	if msg.FinishPos != nil {
		room.FinishPos = *msg.FinishPos
	}
	if msg.Difficulty != "" {
		room.Difficulty = Difficulty(msg.Difficulty)
	}
	if msg.StartTime != nil && *msg.StartTime != room.VirtualTime {
		room.VirtualTime = *msg.StartTime
		reset = true
	}

	if reset {
		for _, p := range room.Players {
			p.Waypoints = []Waypoint{spawnWaypoint(spawnNear(room.StartPos), room.VirtualTime)}
			h.Publish(room.ID, WaypointsEvent{
				Type:      EventWaypointsUpdate,
				PlayerID:  p.ID,
				Waypoints: p.Waypoints,
			})
		}
	}
	reg.broadcastRoomStateLocked(h, room, now)
	reg.scheduleLocked(room, now)
}

// handleAddWaypoint appends a travel segment to the sender's path. The
// segment can never start in the past: its start is the later of the
// previous arrival and the current virtual time.
func (reg *Registry) handleAddWaypoint(h Hooks, sess *Session, msg ClientMessage) {
	room, playerID := reg.resolve(sess)
	if room == nil {
		return
	}
	now := reg.cfg.Now()
	room.mu.Lock()
	defer room.mu.Unlock()
	p := room.Players[playerID]
	if p == nil || room.State != StateRunning {
		return
	}
	room.stepClock(now)

	prev := p.LastWaypoint()
	if prev == nil {
		return
	}
	start := prev.ArrivalTime
	if room.VirtualTime > start {
		start = room.VirtualTime
	}
	pos := geo.Point{X: msg.X, Y: msg.Y}
	arrival := start + travelDurationMs(prev.Pos, pos)
	if msg.ArrivalTime != nil && *msg.ArrivalTime >= start {
		arrival = *msg.ArrivalTime
	}
	factor := msg.SpeedFactor
	if factor <= 0 {
		factor = NormalRate
	}
	wp := Waypoint{
		Pos:         pos,
		StartTime:   start,
		ArrivalTime: arrival,
		SpeedFactor: factor,
		StopName:    msg.StopName,
		RouteColor:  msg.RouteColor,
		RouteShort:  msg.RouteShort,
		Icon:        msg.Icon,
		IsWalk:      msg.IsWalk,
	}
	p.Waypoints = append(p.Waypoints, wp)
	h.Publish(room.ID, WaypointsEvent{Type: EventWaypointAdded, PlayerID: p.ID, Waypoint: &wp})
	reg.updateRateLocked(h, room, now)
	reg.scheduleLocked(room, now)
}

// handleCancelNavigation truncates the path back to the waypoint currently
// in flight, discarding everything planned beyond it.
func (reg *Registry) handleCancelNavigation(h Hooks, sess *Session) {
	room, playerID := reg.resolve(sess)
	if room == nil {
		return
	}
	now := reg.cfg.Now()
	room.mu.Lock()
	defer room.mu.Unlock()
	p := room.Players[playerID]
	if p == nil {
		return
	}
	room.stepClock(now)

	inFlight := -1
	for i := range p.Waypoints {
		if p.Waypoints[i].ArrivalTime > room.VirtualTime {
			inFlight = i
			break
		}
	}
	if inFlight < 0 || inFlight == len(p.Waypoints)-1 {
		return
	}
	p.Waypoints = p.Waypoints[:inFlight+1]
	h.Publish(room.ID, WaypointsEvent{Type: EventWaypointsUpdate, PlayerID: p.ID, Waypoints: p.Waypoints})
	reg.updateRateLocked(h, room, now)
	reg.scheduleLocked(room, now)
}

// handleStopImmediately freezes the sender at their exact interpolated
// position: completed waypoints stay, everything in the future collapses
// into one synthetic stopped waypoint ending now. A player with no future
// waypoints is already stationary and the message is a no-op, which makes
// repeated stops idempotent.
func (reg *Registry) handleStopImmediately(h Hooks, sess *Session) {
	room, playerID := reg.resolve(sess)
	if room == nil {
		return
	}
	now := reg.cfg.Now()
	room.mu.Lock()
	defer room.mu.Unlock()
	p := room.Players[playerID]
	if p == nil {
		return
	}
	room.stepClock(now)

	last := p.LastWaypoint()
	if last == nil || last.ArrivalTime <= room.VirtualTime {
		return
	}
	pos, ok := PositionAt(p, room.VirtualTime)
	if !ok {
		return
	}
	kept := p.Waypoints[:0]
	for _, wp := range p.Waypoints {
		if wp.ArrivalTime <= room.VirtualTime {
			kept = append(kept, wp)
		}
	}
	p.Waypoints = append(kept, Waypoint{
		Pos:         pos,
		StartTime:   room.VirtualTime,
		ArrivalTime: room.VirtualTime,
		SpeedFactor: NormalRate,
		StopName:    "Stopped",
	})
	h.Publish(room.ID, WaypointsEvent{Type: EventWaypointsUpdate, PlayerID: p.ID, Waypoints: p.Waypoints})
	reg.updateRateLocked(h, room, now)
	reg.scheduleLocked(room, now)
}

// handlePlayerFinished records a finish exactly once; later submissions for
// the same player never overwrite the first.
func (reg *Registry) handlePlayerFinished(h Hooks, sess *Session, msg ClientMessage) {
	room, playerID := reg.resolve(sess)
	if room == nil {
		return
	}
	now := reg.cfg.Now()
	room.mu.Lock()
	defer room.mu.Unlock()
	p := room.Players[playerID]
	if p == nil || room.State != StateRunning || p.FinishTime != nil {
		return
	}
	room.stepClock(now)
	ft := msg.FinishTime
	p.FinishTime = &ft
	h.Publish(room.ID, PlayerEvent{Type: EventFinishUpdate, PlayerID: p.ID, FinishTime: p.FinishTime})
	h.PlayerFinished(room.ID, room.Difficulty, p)
	reg.scheduleLocked(room, now)
}

// Disconnect soft-removes the player behind a closed connection: they stay
// in the room for the grace period (a refresh should not lose the race) but
// are flipped to the away rate so the others are not held hostage.
func (reg *Registry) Disconnect(h Hooks, sess *Session) {
	room, playerID := reg.resolve(sess)
	if room == nil {
		return
	}
	now := reg.cfg.Now()
	room.mu.Lock()
	defer room.mu.Unlock()
	p := room.Players[playerID]
	if p == nil {
		return
	}
	room.stepClock(now)
	p.DisconnectedAt = now
	p.DesiredRate = SnoozeRate
	h.Publish(room.ID, PlayerEvent{Type: EventSnoozeUpdate, PlayerID: p.ID, DesiredRate: p.DesiredRate})
	reg.checkCountdownLocked(h, room, now)
	reg.updateRateLocked(h, room, now)
	reg.scheduleLocked(room, now)
}

// checkCountdownLocked drives the Joining<->Countdown edge. Countdown starts
// when everyone present is ready and falls back to Joining the moment that
// stops holding before the deadline.
func (reg *Registry) checkCountdownLocked(h Hooks, room *Room, now time.Time) {
	switch room.State {
	case StateJoining:
		if room.allPresentReady() {
			room.State = StateCountdown
			room.CountdownEnd = now.Add(CountdownDuration)
			reg.broadcastRoomStateLocked(h, room, now)
		}
	case StateCountdown:
		if !room.allPresentReady() {
			room.State = StateJoining
			room.CountdownEnd = time.Time{}
			reg.broadcastRoomStateLocked(h, room, now)
		}
	}
}

// updateRateLocked recomputes the authoritative playback rate and, when it
// moved by more than the epsilon, broadcasts the re-anchoring pair. The
// clock has already been stepped under the old rate, so the change is
// strictly forward-acting.
func (reg *Registry) updateRateLocked(h Hooks, room *Room, now time.Time) {
	if room.State != StateRunning {
		return
	}
	newRate := resolveRate(room, room.VirtualTime)
	if math.Abs(newRate-room.PlaybackRate) <= RateEpsilon {
		return
	}
	room.PlaybackRate = newRate
	h.Publish(room.ID, ClockEvent{
		Type:        EventClockUpdate,
		VirtualTime: room.VirtualTime,
		RealTime:    now.UnixMilli(),
		Rate:        newRate,
	})
}
