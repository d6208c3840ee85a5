package zones

import (
	"math"
	"time"
)

const (
	vehicleMotionWindow   = 8
	postImpactMemory      = 2 * time.Second
	minMeaningfulSpeed    = 2.0
	suddenStopSampleCount = 3
	suddenStopRatio       = 0.25
	suddenStopPeakMin     = 5.0
)

type vehiclePoint struct {
	cx, cy float64
	t      time.Time
}

type vehicleHistory struct {
	points     []vehiclePoint
	framesSeen int
}

// vehicleMotionAnalyzer maintains a bounded per-vehicle window of recent
// (center, timestamp) samples used by the outgate gate_accident cascade
// (spec.md §4.4.1). Entries persist for a "post-impact memory" window
// after the vehicle's last sample, so a vehicle missed for a frame or two
// keeps its history; gate_accident only scores vehicles tracked in the
// current frame, so an absent vehicle contributes no evidence.
type vehicleMotionAnalyzer struct {
	byVehicle map[int]*vehicleHistory
}

func newVehicleMotionAnalyzer() *vehicleMotionAnalyzer {
	return &vehicleMotionAnalyzer{byVehicle: make(map[int]*vehicleHistory)}
}

// update records a new sighting of vehicleID at (cx,cy,now), and prunes
// any vehicle whose most recent sample is older than the post-impact
// memory window.
func (a *vehicleMotionAnalyzer) update(vehicleID int, cx, cy float64, now time.Time) {
	h, ok := a.byVehicle[vehicleID]
	if !ok {
		h = &vehicleHistory{}
		a.byVehicle[vehicleID] = h
	}
	h.points = append(h.points, vehiclePoint{cx: cx, cy: cy, t: now})
	if len(h.points) > vehicleMotionWindow {
		h.points = h.points[len(h.points)-vehicleMotionWindow:]
	}
	h.framesSeen++

	for id, hist := range a.byVehicle {
		if len(hist.points) == 0 {
			continue
		}
		if now.Sub(hist.points[len(hist.points)-1].t) > postImpactMemory {
			delete(a.byVehicle, id)
		}
	}
}

func (a *vehicleMotionAnalyzer) history(vehicleID int) (*vehicleHistory, bool) {
	h, ok := a.byVehicle[vehicleID]
	return h, ok
}

// lastSeen returns the timestamp of the most recent recorded sample.
func (h *vehicleHistory) lastSeen() time.Time {
	return h.points[len(h.points)-1].t
}

// speed returns |Δcenter| (px/frame) and the velocity vector between the
// last two recorded samples.
func (h *vehicleHistory) speed() (speed float64, velocity [2]float64, ok bool) {
	n := len(h.points)
	if n < 2 {
		return 0, [2]float64{}, false
	}
	a, b := h.points[n-2], h.points[n-1]
	dx, dy := b.cx-a.cx, b.cy-a.cy
	return math.Hypot(dx, dy), [2]float64{dx, dy}, true
}

// suddenStop reports whether, over the last suddenStopSampleCount points,
// the current speed has dropped to under suddenStopRatio of the prior
// peak speed, and that peak itself exceeded suddenStopPeakMin.
func (h *vehicleHistory) suddenStop() bool {
	n := len(h.points)
	if n < suddenStopSampleCount+1 {
		return false
	}
	window := h.points[n-suddenStopSampleCount-1:]
	var priorPeak float64
	for i := 1; i < len(window)-1; i++ {
		d := math.Hypot(window[i].cx-window[i-1].cx, window[i].cy-window[i-1].cy)
		if d > priorPeak {
			priorPeak = d
		}
	}
	cur := math.Hypot(window[len(window)-1].cx-window[len(window)-2].cx, window[len(window)-1].cy-window[len(window)-2].cy)
	if priorPeak < suddenStopPeakMin {
		return false
	}
	return cur/priorPeak < suddenStopRatio
}

// approaching reports whether velocity points toward target (person
// center) within the spec's cosine-similarity threshold, and speed clears
// the minimum-meaningful-speed floor.
func approaching(velocity [2]float64, speed float64, from, to [2]float64) bool {
	if speed < minMeaningfulSpeed {
		return false
	}
	toVec := [2]float64{to[0] - from[0], to[1] - from[1]}
	toLen := math.Hypot(toVec[0], toVec[1])
	velLen := math.Hypot(velocity[0], velocity[1])
	if toLen == 0 || velLen == 0 {
		return false
	}
	cos := (velocity[0]*toVec[0] + velocity[1]*toVec[1]) / (toLen * velLen)
	return cos > 0.3
}
