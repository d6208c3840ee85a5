package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldownMap_FirstSightingAlwaysAllowed(t *testing.T) {
	c := NewCooldownMap()
	assert.True(t, c.Allow(EventFight, time.Now(), 0.5, 8*time.Second))
}

func TestCooldownMap_SuppressesWithinWindowUnlessConfidenceJumps(t *testing.T) {
	c := NewCooldownMap()
	t0 := time.Now()
	c.MarkEmitted(EventGateAccident, t0, 0.5)

	// Within cooldown, insufficient confidence bump: suppressed.
	assert.False(t, c.Allow(EventGateAccident, t0.Add(2*time.Second), 0.54, 8*time.Second))

	// Within cooldown, confidence exceeds 110% of last: allowed.
	assert.True(t, c.Allow(EventGateAccident, t0.Add(2*time.Second), 0.56, 8*time.Second))

	// Past cooldown: allowed regardless of confidence.
	assert.True(t, c.Allow(EventGateAccident, t0.Add(9*time.Second), 0.1, 8*time.Second))
}

func TestEventCooldownManager_PerCameraIsolation(t *testing.T) {
	m := NewEventCooldownManager(nil)
	now := time.Now()

	assert.True(t, m.Allow("cam-1", EventWeaponDetected, now, 0.8))
	assert.False(t, m.Allow("cam-1", EventWeaponDetected, now.Add(1*time.Second), 0.8))
	// A different camera is unaffected by cam-1's cooldown.
	assert.True(t, m.Allow("cam-2", EventWeaponDetected, now.Add(1*time.Second), 0.8))
}

func TestEventCooldownManager_UnknownTypeUsesDefault(t *testing.T) {
	m := NewEventCooldownManager(nil)
	now := time.Now()
	assert.True(t, m.Allow("cam-1", EventAfterHoursIntrusion, now, 0.9))
	assert.False(t, m.Allow("cam-1", EventAfterHoursIntrusion, now.Add(1*time.Second), 0.9))
	assert.True(t, m.Allow("cam-1", EventAfterHoursIntrusion, now.Add(6*time.Second), 0.9))
}
