package sim

// currentFactor is the playback rate one player contributes to rate
// resolution: their desired rate, unless an active segment forces a higher
// minimum. A scheduled vehicle mid-journey keeps at least its own pace even
// if its rider has asked for normal speed.
func currentFactor(p *Player, virtualTime float64) float64 {
	factor := p.DesiredRate
	if seg := activeSegment(p, virtualTime); seg != nil && seg.SpeedFactor > factor {
		factor = seg.SpeedFactor
	}
	return factor
}

// resolveRate computes the room's authoritative playback rate at the given
// virtual time: the slowest player's current factor, floored at real time.
// The floor means a lone snoozed player can never drag the room below 1x.
func resolveRate(r *Room, virtualTime float64) float64 {
	rate := 0.0
	first := true
	for _, p := range r.Players {
		f := currentFactor(p, virtualTime)
		if first || f < rate {
			rate = f
			first = false
		}
	}
	if rate < NormalRate {
		rate = NormalRate
	}
	return rate
}
