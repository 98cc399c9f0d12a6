package sim

import "raceroom/internal/geo"

// PositionAt resolves a player's interpolated position at the given virtual
// time by scanning waypoint-to-waypoint segments. Before the first segment
// the player sits at the spawn point; between segments they sit at the last
// waypoint they reached; past the last arrival they sit at the final
// waypoint exactly.
func PositionAt(p *Player, virtualTime float64) (geo.Point, bool) {
	wps := p.Waypoints
	if len(wps) == 0 {
		return geo.Point{}, false
	}
	if virtualTime < wps[0].StartTime {
		return wps[0].Pos, true
	}
	for i := 1; i < len(wps); i++ {
		seg := &wps[i]
		if virtualTime < seg.StartTime {
			// Gap between segments: hold at the last reached waypoint.
			return wps[i-1].Pos, true
		}
		if virtualTime >= seg.ArrivalTime {
			continue
		}
		dur := seg.ArrivalTime - seg.StartTime
		if dur <= 0 {
			return seg.Pos, true
		}
		t := (virtualTime - seg.StartTime) / dur
		return geo.Lerp(wps[i-1].Pos, seg.Pos, t), true
	}
	return wps[len(wps)-1].Pos, true
}

// InTransit reports whether the player has a segment active at the given
// virtual time, i.e. an upcoming waypoint whose window contains it.
func InTransit(p *Player, virtualTime float64) bool {
	for i := 1; i < len(p.Waypoints); i++ {
		seg := &p.Waypoints[i]
		if virtualTime >= seg.StartTime && virtualTime < seg.ArrivalTime {
			return true
		}
	}
	return false
}

// activeSegment returns the waypoint whose transit window contains
// virtualTime, or nil.
func activeSegment(p *Player, virtualTime float64) *Waypoint {
	for i := 1; i < len(p.Waypoints); i++ {
		seg := &p.Waypoints[i]
		if virtualTime >= seg.StartTime && virtualTime < seg.ArrivalTime {
			return seg
		}
	}
	return nil
}

// travelDurationMs is the fallback segment duration when the client supplies
// no arrival time: haversine distance at the base walking pace.
func travelDurationMs(from, to geo.Point) float64 {
	return geo.HaversineKm(from, to) / BaseSpeedKmPerMs
}
