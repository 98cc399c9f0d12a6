package sim

import "time"

// The room does no fixed-interval ticking. After every state change it
// computes the minimal wall-clock delay until anything externally visible
// could happen next, and arms exactly one timer for it. Re-arming bumps the
// room's epoch, so a stale timer that fires after being superseded sees the
// mismatch and leaves the room untouched.

// scheduleLocked (re)arms the room's re-evaluation timer. Caller holds the
// room lock.
func (reg *Registry) scheduleLocked(room *Room, now time.Time) {
	if reg.closed {
		return
	}
	delay := reg.nextDelayLocked(room, now)
	room.timerEpoch++
	epoch := room.timerEpoch
	if room.timer != nil {
		room.timer.Stop()
	}
	id := room.ID
	room.timer = time.AfterFunc(delay, func() {
		reg.onTimer(id, epoch)
	})
}

// nextDelayLocked computes the wall-clock delay until the room's next
// possible state change, clamped to the [MinDelay, MaxIdleDelay] band so the
// room neither busy-loops nor sleeps through idle cleanup.
func (reg *Registry) nextDelayLocked(room *Room, now time.Time) time.Duration {
	delay := reg.cfg.MaxIdleDelay

	switch {
	case room.State == StateCountdown:
		delay = room.CountdownEnd.Sub(now)
	case room.State == StateRunning && room.PlaybackRate > 0:
		if b, ok := nextBoundary(room); ok {
			virtualMs := b - room.VirtualTime
			real := time.Duration(virtualMs/room.PlaybackRate) * time.Millisecond
			// Fire just after the boundary, not just before it.
			delay = real + reg.cfg.DelayBuffer
		}
	}

	// Pending cleanup deadlines can come sooner than the simulation does.
	for _, p := range room.Players {
		if p.DisconnectedAt.IsZero() {
			continue
		}
		if d := p.DisconnectedAt.Add(reg.cfg.DisconnectGrace).Sub(now); d < delay {
			delay = d
		}
	}
	if !room.EmptySince.IsZero() {
		if d := room.EmptySince.Add(reg.cfg.RoomIdleGrace).Sub(now); d < delay {
			delay = d
		}
	}

	if delay < reg.cfg.MinDelay {
		delay = reg.cfg.MinDelay
	}
	if delay > reg.cfg.MaxIdleDelay {
		delay = reg.cfg.MaxIdleDelay
	}
	return delay
}

// nextBoundary finds the nearest future waypoint boundary (segment start or
// arrival) across all players, in virtual time.
func nextBoundary(room *Room) (float64, bool) {
	best := 0.0
	found := false
	consider := func(t float64) {
		if t > room.VirtualTime && (!found || t < best) {
			best = t
			found = true
		}
	}
	for _, p := range room.Players {
		for i := range p.Waypoints {
			consider(p.Waypoints[i].StartTime)
			consider(p.Waypoints[i].ArrivalTime)
		}
	}
	return best, found
}

// onTimer is the deferred re-evaluation entry point. The epoch check under
// the room lock makes cancellation atomic with the room's serialized
// execution: a superseded timer fully yields, it never half-runs.
func (reg *Registry) onTimer(roomID string, epoch uint64) {
	room := reg.Room(roomID)
	if room == nil {
		return
	}
	now := reg.cfg.Now()
	room.mu.Lock()
	if epoch != room.timerEpoch {
		room.mu.Unlock()
		return
	}
	evict := reg.reevaluateLocked(reg.hooks, room, now)
	room.mu.Unlock()
	if evict {
		reg.deleteRoom(roomID)
	}
}

// reevaluateLocked is the periodic maintenance step: advance the clock,
// expire long-disconnected players, fire a due countdown, pause an
// unobserved room, recompute the rate, and re-arm. Returns true when the
// room has been empty past its grace period and must be evicted.
func (reg *Registry) reevaluateLocked(h Hooks, room *Room, now time.Time) bool {
	room.stepClock(now)

	removed := false
	for id, p := range room.Players {
		if p.DisconnectedAt.IsZero() {
			continue
		}
		if now.Sub(p.DisconnectedAt) < reg.cfg.DisconnectGrace {
			continue
		}
		if !h.ShouldDeletePlayer(room.ID, id) {
			continue
		}
		delete(room.Players, id)
		h.Publish(room.ID, PlayerEvent{Type: EventPlayerLeft, PlayerID: id})
		removed = true
	}
	if removed {
		reg.checkCountdownLocked(h, room, now)
	}

	if room.State == StateCountdown && !now.Before(room.CountdownEnd) {
		room.State = StateRunning
		room.GameStartTime = room.VirtualTime
		room.CountdownEnd = time.Time{}
		reg.broadcastRoomStateLocked(h, room, now)
	}

	if h.SubscriberCount(room.ID) == 0 {
		if room.EmptySince.IsZero() {
			room.EmptySince = now
		}
		// Unobserved rooms do not burn virtual time.
		room.PlaybackRate = 0
		if now.Sub(room.EmptySince) >= reg.cfg.RoomIdleGrace {
			room.timerEpoch++
			if room.timer != nil {
				room.timer.Stop()
				room.timer = nil
			}
			return true
		}
	} else {
		room.EmptySince = time.Time{}
		reg.updateRateLocked(h, room, now)
	}

	reg.scheduleLocked(room, now)
	return false
}
