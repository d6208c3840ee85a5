package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTemporalBuffer_MotionIntensityRequiresTwoPoints(t *testing.T) {
	b := NewTemporalBuffer()
	now := time.Now()
	b.Push(FrameMetadata{Timestamp: now}, []TrackedObject{{ObjectID: 1, BBox: BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}}})
	assert.Equal(t, 0.0, b.ComputeMotionIntensity(1))

	b.Push(FrameMetadata{Timestamp: now.Add(1 * time.Second)}, []TrackedObject{{ObjectID: 1, BBox: BBox{X1: 10, Y1: 0, X2: 20, Y2: 10}}})
	// Center moved from (5,5) to (15,5): 10px over 1s = 10 px/s.
	assert.InDelta(t, 10.0, b.ComputeMotionIntensity(1), 1e-6)
}

func TestTemporalBuffer_PositionHistoryExpires(t *testing.T) {
	b := NewTemporalBuffer()
	now := time.Now()
	b.Push(FrameMetadata{Timestamp: now}, []TrackedObject{{ObjectID: 1, BBox: BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}}})
	// 6 seconds later (> 5s expiry): the old sample is gone, leaving only
	// the new single sample, so motion intensity is 0 again.
	b.Push(FrameMetadata{Timestamp: now.Add(6 * time.Second)}, []TrackedObject{{ObjectID: 1, BBox: BBox{X1: 100, Y1: 0, X2: 110, Y2: 10}}})
	assert.Equal(t, 0.0, b.ComputeMotionIntensity(1))
}

func TestTemporalBuffer_EventCounterMonotonicAndResets(t *testing.T) {
	b := NewTemporalBuffer()
	now := time.Now()

	assert.Equal(t, 1, b.IncrementEvent(EventFallDetected, now))
	assert.Equal(t, 2, b.IncrementEvent(EventFallDetected, now.Add(time.Second)))
	assert.Equal(t, 2, b.EventFrameCount(EventFallDetected))

	b.ResetEvent(EventFallDetected)
	assert.Equal(t, 0, b.EventFrameCount(EventFallDetected))
	assert.Equal(t, 1, b.IncrementEvent(EventFallDetected, now))
}

func TestTemporalBuffer_EventDurationMeasuredFromFirstIncrement(t *testing.T) {
	b := NewTemporalBuffer()
	start := time.Now()
	b.IncrementEvent(EventCrowdFormation, start)
	b.IncrementEvent(EventCrowdFormation, start.Add(2*time.Second))
	assert.Equal(t, 2*time.Second, b.GetEventDuration(EventCrowdFormation, start.Add(2*time.Second)))
}
