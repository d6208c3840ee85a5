package eventengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEngine_ProcessEvent_UnknownTypeNeverIncidents(t *testing.T) {
	e := NewEngine()
	r := e.ProcessEvent("t1", "cam1", "bogus", 0.99, time.Now())
	assert.False(t, r.Incident)
}

func TestEngine_ProcessEvent_RequiresMinFramesAndThreshold(t *testing.T) {
	e := NewEngine()
	now := time.Now()

	r := e.ProcessEvent("t1", "cam1", "fight", 0.9, now)
	assert.False(t, r.Incident, "only 1 of 3 required frames")

	r = e.ProcessEvent("t1", "cam1", "fight", 0.9, now.Add(time.Second))
	assert.False(t, r.Incident)

	r = e.ProcessEvent("t1", "cam1", "fight", 0.9, now.Add(2*time.Second))
	assert.True(t, r.Incident)
	assert.Equal(t, "high", r.Priority)
	assert.Equal(t, 3, r.Timeline.FramesConsidered)
}

func TestEngine_ProcessEvent_BelowThresholdNeverIncidents(t *testing.T) {
	e := NewEngine()
	now := time.Now()
	for i := 0; i < 5; i++ {
		r := e.ProcessEvent("t1", "cam1", "fight", 0.3, now.Add(time.Duration(i)*time.Second))
		assert.False(t, r.Incident)
	}
}

func TestEngine_ProcessEvent_PrunesEntriesOutsideWindow(t *testing.T) {
	e := NewEngine()
	now := time.Now()
	// fire_smoke window is 3s; a single sample this old should fall out
	// of the window by the time the second sample is considered.
	e.ProcessEvent("t1", "cam1", "fire_smoke", 0.9, now)
	r := e.ProcessEvent("t1", "cam1", "fire_smoke", 0.9, now.Add(10*time.Second))
	assert.Equal(t, 1, r.Timeline.FramesConsidered)
}

func TestEngine_ProcessEvent_SeparateKeysDoNotInterfere(t *testing.T) {
	e := NewEngine()
	now := time.Now()
	e.ProcessEvent("t1", "cam1", "fight", 0.9, now)
	r := e.ProcessEvent("t1", "cam2", "fight", 0.9, now)
	assert.Equal(t, 1, r.Timeline.FramesConsidered)
}
