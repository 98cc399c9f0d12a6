package sim

import "time"

// The virtual clock is derived, never free-running: a room stores the anchor
// triple (VirtualTime, LastRealTime, PlaybackRate) and any reading is
// anchorVirtual + elapsedWall * rate. Mutating the anchor ("stepping") is the
// only way time moves, and it happens exactly once per state-affecting
// operation, under the room lock.

// stepClock folds wall-clock time elapsed since the last step into the
// virtual clock. Paused and pre-race rooms still reset LastRealTime so they
// never accumulate phantom elapsed time, which keeps rate changes strictly
// forward-acting.
func (r *Room) stepClock(now time.Time) {
	if r.State == StateRunning {
		elapsed := float64(now.Sub(r.LastRealTime).Milliseconds())
		if elapsed > 0 {
			r.VirtualTime += elapsed * r.PlaybackRate
		}
	}
	r.LastRealTime = now
}

// serverTime returns the current virtual time without mutating the anchor.
func (r *Room) serverTime(now time.Time) float64 {
	if r.State != StateRunning {
		return r.VirtualTime
	}
	elapsed := float64(now.Sub(r.LastRealTime).Milliseconds())
	if elapsed <= 0 {
		return r.VirtualTime
	}
	return r.VirtualTime + elapsed*r.PlaybackRate
}

// reportedRate is the rate clients should extrapolate with: zero unless the
// race is actually running.
func (r *Room) reportedRate() float64 {
	if r.State != StateRunning {
		return 0
	}
	return r.PlaybackRate
}
