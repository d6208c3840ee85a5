package pipeline

import (
	"math"
	"time"
)

const (
	temporalBufferLen     = 15
	positionHistoryLen    = 10
	positionHistoryExpiry = 5 * time.Second
)

type frameRecord struct {
	objects   []TrackedObject
	timestamp time.Time
}

type positionSample struct {
	x, y      float64
	timestamp time.Time
}

type eventCounterState struct {
	frames    int
	startedAt time.Time
}

// TemporalBuffer is the per-zone-processor-instance, per-camera sliding
// window of recent tracked objects plus per-object position history and
// per-event-type frame counters.
type TemporalBuffer struct {
	frames    []frameRecord
	positions map[int][]positionSample
	counters  map[EventType]*eventCounterState
}

// NewTemporalBuffer constructs an empty temporal buffer.
func NewTemporalBuffer() *TemporalBuffer {
	return &TemporalBuffer{
		positions: make(map[int][]positionSample),
		counters:  make(map[EventType]*eventCounterState),
	}
}

// Push records this frame's tracked objects and updates position history.
func (b *TemporalBuffer) Push(meta FrameMetadata, objects []TrackedObject) {
	b.frames = append(b.frames, frameRecord{objects: objects, timestamp: meta.Timestamp})
	if len(b.frames) > temporalBufferLen {
		b.frames = b.frames[len(b.frames)-temporalBufferLen:]
	}

	for _, obj := range objects {
		x, y := obj.Center()
		hist := append(b.positions[obj.ObjectID], positionSample{x: x, y: y, timestamp: meta.Timestamp})
		hist = expirePositions(hist, meta.Timestamp)
		if len(hist) > positionHistoryLen {
			hist = hist[len(hist)-positionHistoryLen:]
		}
		b.positions[obj.ObjectID] = hist
	}
}

func expirePositions(hist []positionSample, now time.Time) []positionSample {
	cutoff := now.Add(-positionHistoryExpiry)
	out := hist[:0:0]
	for _, p := range hist {
		if p.timestamp.After(cutoff) {
			out = append(out, p)
		}
	}
	return out
}

// ComputeMotionIntensity returns the total path length of an object's
// position history divided by the history duration (px/second), or 0 if
// fewer than 2 points are recorded.
func (b *TemporalBuffer) ComputeMotionIntensity(objectID int) float64 {
	hist := b.positions[objectID]
	if len(hist) < 2 {
		return 0
	}
	var pathLen float64
	for i := 1; i < len(hist); i++ {
		dx := hist[i].x - hist[i-1].x
		dy := hist[i].y - hist[i-1].y
		pathLen += hypot(dx, dy)
	}
	duration := hist[len(hist)-1].timestamp.Sub(hist[0].timestamp).Seconds()
	if duration <= 0 {
		return 0
	}
	return pathLen / duration
}

// IncrementEvent increments the frame counter for event_type, stamping a
// start time on the 0→1 transition.
func (b *TemporalBuffer) IncrementEvent(eventType EventType, now time.Time) int {
	c, ok := b.counters[eventType]
	if !ok {
		c = &eventCounterState{}
		b.counters[eventType] = c
	}
	if c.frames == 0 {
		c.startedAt = now
	}
	c.frames++
	return c.frames
}

// ResetEvent clears the frame counter and start time for event_type.
func (b *TemporalBuffer) ResetEvent(eventType EventType) {
	delete(b.counters, eventType)
}

// EventFrameCount returns the current consecutive-qualifying-frame count.
func (b *TemporalBuffer) EventFrameCount(eventType EventType) int {
	if c, ok := b.counters[eventType]; ok {
		return c.frames
	}
	return 0
}

// GetEventDuration returns the seconds elapsed since the event's counter
// transitioned from 0 to 1, or 0 if the counter is not active.
func (b *TemporalBuffer) GetEventDuration(eventType EventType, now time.Time) time.Duration {
	c, ok := b.counters[eventType]
	if !ok || c.frames == 0 {
		return 0
	}
	return now.Sub(c.startedAt)
}

func hypot(dx, dy float64) float64 {
	return math.Hypot(dx, dy)
}
