package afterhours

import (
	"math"
	"time"
)

const (
	defaultMovementRadius   = 40.0
	defaultLoiterThreshold  = 60 * time.Second
	loiterEntryExpiry       = 10 * time.Second
)

type loiterEntry struct {
	firstSeen     time.Time
	lastSeen      time.Time
	lastCenter    [2]float64
	totalMovement float64
}

// LoiteringTracker records per-object dwell time, usable by any zone
// processor wanting to flag objects that have stayed within a small
// movement radius for an extended period (spec.md §4.6).
type LoiteringTracker struct {
	movementRadius float64
	threshold      time.Duration
	byObject       map[int]*loiterEntry
}

// NewLoiteringTracker constructs a tracker with the spec's defaults
// (40px movement radius, 60s dwell threshold, 10s entry expiry).
func NewLoiteringTracker() *LoiteringTracker {
	return &LoiteringTracker{
		movementRadius: defaultMovementRadius,
		threshold:      defaultLoiterThreshold,
		byObject:       make(map[int]*loiterEntry),
	}
}

// Update records a new sighting of objectID at (cx, cy, now), resetting
// first_seen if the object moved beyond the movement radius since its
// last sighting, and expires entries unseen for more than 10s.
func (t *LoiteringTracker) Update(objectID int, cx, cy float64, now time.Time) {
	for id, e := range t.byObject {
		if now.Sub(e.lastSeen) > loiterEntryExpiry {
			delete(t.byObject, id)
		}
	}

	e, ok := t.byObject[objectID]
	if !ok {
		t.byObject[objectID] = &loiterEntry{firstSeen: now, lastSeen: now, lastCenter: [2]float64{cx, cy}}
		return
	}

	d := math.Hypot(cx-e.lastCenter[0], cy-e.lastCenter[1])
	if d > t.movementRadius {
		e.firstSeen = now
		e.totalMovement = 0
	} else {
		e.totalMovement += d
	}
	e.lastCenter = [2]float64{cx, cy}
	e.lastSeen = now
}

// Loiterers returns the object ids currently dwelling for at least the
// configured threshold.
func (t *LoiteringTracker) Loiterers(now time.Time) []int {
	var out []int
	for id, e := range t.byObject {
		if now.Sub(e.lastSeen) > loiterEntryExpiry {
			continue
		}
		if e.lastSeen.Sub(e.firstSeen) >= t.threshold {
			out = append(out, id)
		}
	}
	return out
}
