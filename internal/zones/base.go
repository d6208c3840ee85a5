// Package zones implements the four Zone Processors (spec.md §4.4):
// outgate, corridor, school_ground, classroom. Each owns its own temporal
// buffer, suspicion map, and per-event-type cooldown map, and applies the
// shared six-step sub-detector pattern described in spec.md §4.4 via the
// base helper in this file.
package zones

import (
	"math"
	"time"

	"sentinel/internal/pipeline"
)

// evidence is the per-candidate result of a sub-detector's evidence
// computation (spec.md §4.4 step 3).
type evidence struct {
	found      bool
	confidence float64
	bboxes     []pipeline.BBox
	metadata   map[string]any
	// increment, if non-zero, overrides subDetectorParams.increment for
	// this frame (used by gate_accident, whose suspicion boost depends on
	// which cascade signal fired).
	increment float64
}

// base bundles the state shared by every concrete zone processor: a
// temporal buffer, a suspicion map, and a cooldown map, plus the fixed
// zone name and declared event types.
type base struct {
	zone       pipeline.Zone
	eventTypes []pipeline.EventType
	temporal   *pipeline.TemporalBuffer
	suspicion  *pipeline.SuspicionMap
	cooldowns  *pipeline.CooldownMap
}

func newBase(zone pipeline.Zone) base {
	return base{
		zone:       zone,
		eventTypes: pipeline.EventTypesForZone(zone),
		temporal:   pipeline.NewTemporalBuffer(),
		suspicion:  pipeline.NewSuspicionMap(),
		cooldowns:  pipeline.NewCooldownMap(),
	}
}

// ZoneName implements pipeline.ZoneProcessor.
func (b *base) ZoneName() pipeline.Zone { return b.zone }

// EventTypes implements pipeline.ZoneProcessor.
func (b *base) EventTypes() []pipeline.EventType { return b.eventTypes }

// Reset implements pipeline.ZoneProcessor.
func (b *base) Reset() {
	b.temporal = pipeline.NewTemporalBuffer()
	b.suspicion = pipeline.NewSuspicionMap()
	b.cooldowns = pipeline.NewCooldownMap()
}

// subDetectorParams configures one run of the shared six-step pattern
// (spec.md §4.4, numbered steps 1-6).
type subDetectorParams struct {
	eventType    pipeline.EventType
	now          time.Time
	cooldown     time.Duration
	minFrames    int
	threshold    float64
	increment    float64
	decay        float64
	evidenceFunc func() evidence
	metaExtra    map[string]any
	// sustainedFor, when non-zero, gates emission on the event's elapsed
	// duration (spec.md's "sustained >= N seconds" sub-detectors) in
	// addition to minFrames.
	sustainedFor time.Duration
}

// runSubDetector executes the shared cooldown-gate / evidence /
// suspicion-threshold / emission pattern common to every zone sub-
// detector. Returns nil when no event should be emitted this frame.
func (b *base) runSubDetector(p subDetectorParams) *pipeline.DetectionEvent {
	// Step 1: cooldown gate.
	if !b.cooldowns.Allow(p.eventType, p.now, 0, p.cooldown) {
		b.suspicion.Update(p.eventType, false, p.increment, p.decay)
		return nil
	}

	// Steps 2-3: preconditions + evidence (caller-supplied; preconditions
	// are expected to be folded into evidenceFunc returning found=false).
	ev := p.evidenceFunc()

	// Step 4: no evidence.
	if !ev.found {
		b.temporal.ResetEvent(p.eventType)
		b.suspicion.Update(p.eventType, false, p.increment, p.decay)
		return nil
	}

	// Step 5: accumulate.
	increment := p.increment
	if ev.increment > 0 {
		increment = ev.increment
	}
	count := b.temporal.IncrementEvent(p.eventType, p.now)
	susp := b.suspicion.Update(p.eventType, true, increment, p.decay)
	if count < p.minFrames || susp < p.threshold {
		return nil
	}
	if p.sustainedFor > 0 && b.temporal.GetEventDuration(p.eventType, p.now) < p.sustainedFor {
		return nil
	}

	// Step 6: emit.
	if !b.cooldowns.Allow(p.eventType, p.now, ev.confidence, p.cooldown) {
		return nil
	}
	b.cooldowns.MarkEmitted(p.eventType, p.now, ev.confidence)
	b.temporal.ResetEvent(p.eventType)

	meta := ev.metadata
	if meta == nil {
		meta = map[string]any{}
	}
	for k, v := range p.metaExtra {
		meta[k] = v
	}

	return &pipeline.DetectionEvent{
		EventType:     p.eventType,
		Confidence:    ev.confidence,
		BoundingBoxes: ev.bboxes,
		Metadata:      meta,
	}
}

// clusterSpread returns the mean Euclidean distance of centers from their
// centroid, used by the crowd_formation evidence computation.
func clusterSpread(centers [][2]float64) float64 {
	if len(centers) == 0 {
		return 0
	}
	var cx, cy float64
	for _, c := range centers {
		cx += c[0]
		cy += c[1]
	}
	cx /= float64(len(centers))
	cy /= float64(len(centers))

	var sum float64
	for _, c := range centers {
		sum += math.Hypot(c[0]-cx, c[1]-cy)
	}
	return sum / float64(len(centers))
}

func centerDistance(a, b [2]float64) float64 {
	return math.Hypot(a[0]-b[0], a[1]-b[1])
}

func personsOf(objects []pipeline.TrackedObject, class string) []pipeline.TrackedObject {
	out := make([]pipeline.TrackedObject, 0, len(objects))
	for _, o := range objects {
		if o.Class == class {
			out = append(out, o)
		}
	}
	return out
}

func nearestPerson(box pipeline.BBox, persons []pipeline.TrackedObject) (pipeline.TrackedObject, float64, bool) {
	var best pipeline.TrackedObject
	bestDist := math.MaxFloat64
	found := false
	bx, by := box.Center()
	for _, p := range persons {
		px, py := p.Center()
		d := math.Hypot(bx-px, by-py)
		if d < bestDist {
			bestDist = d
			best = p
			found = true
		}
	}
	return best, bestDist, found
}
