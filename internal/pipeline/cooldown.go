package pipeline

import (
	"sync"
	"time"
)

const cooldownConfidenceRatio = 1.10

type cooldownState struct {
	lastEmitTime time.Time
	lastConf     float64
}

// CooldownMap gates repeat emission of the same (camera, event_type)
// within a processor instance's per-camera cooldown state. It is NOT
// itself goroutine-safe: each ZoneProcessor instance is owned by exactly
// one worker goroutine (spec.md §5), so no internal locking is needed.
type CooldownMap struct {
	state map[EventType]cooldownState
}

// NewCooldownMap constructs an empty per-camera cooldown map.
func NewCooldownMap() *CooldownMap {
	return &CooldownMap{state: make(map[EventType]cooldownState)}
}

// Allow reports whether a candidate of eventType with confidence may be
// emitted now: true if this is the first sighting, if the cooldown has
// elapsed, or if confidence exceeds the last emitted confidence by more
// than 10%.
func (c *CooldownMap) Allow(eventType EventType, now time.Time, confidence float64, cooldown time.Duration) bool {
	st, ok := c.state[eventType]
	if !ok {
		return true
	}
	if now.Sub(st.lastEmitTime) >= cooldown {
		return true
	}
	return confidence > st.lastConf*cooldownConfidenceRatio
}

// MarkEmitted records an emission of eventType at now with confidence.
func (c *CooldownMap) MarkEmitted(eventType EventType, now time.Time, confidence float64) {
	c.state[eventType] = cooldownState{lastEmitTime: now, lastConf: confidence}
}

// EventCooldownManager is the process-wide, per-(camera,event_type)
// cooldown gate consulted by the per-camera worker before posting to the
// outbound sink (spec.md §4.8). Guarded by a single mutex; per-key updates
// are atomic, matching spec.md §5's shared-resource policy.
type EventCooldownManager struct {
	mu     sync.Mutex
	byCam  map[string]map[EventType]cooldownState
	defCD  time.Duration
	perCD  map[EventType]time.Duration
}

// DefaultCooldowns are the §4.8 per-event-type cooldown defaults, seconds.
func DefaultCooldowns() map[EventType]time.Duration {
	return map[EventType]time.Duration{
		EventWeaponDetected:    10 * time.Second,
		EventFireSmokeDetected: 10 * time.Second,
		EventFight:             8 * time.Second,
		EventGateAccident:      8 * time.Second,
		EventCrowdFormation:    6 * time.Second,
		EventFallDetected:      6 * time.Second,
		EventVehicleDetected:   5 * time.Second,
		EventMobileUsage:       4 * time.Second,
	}
}

// NewEventCooldownManager builds the manager with the given per-type
// cooldowns. A nil map selects DefaultCooldowns; any event type missing
// from the map in use gets a 5s cooldown (a non-nil map is not merged with
// DefaultCooldowns).
func NewEventCooldownManager(perType map[EventType]time.Duration) *EventCooldownManager {
	if perType == nil {
		perType = DefaultCooldowns()
	}
	return &EventCooldownManager{
		byCam: make(map[string]map[EventType]cooldownState),
		defCD: 5 * time.Second,
		perCD: perType,
	}
}

func (m *EventCooldownManager) cooldownFor(eventType EventType) time.Duration {
	if d, ok := m.perCD[eventType]; ok {
		return d
	}
	return m.defCD
}

// Allow reports whether cameraID may emit eventType now at confidence, and
// if so, records the emission. This check-and-set is performed under a
// single lock so concurrent workers never race on the same key.
func (m *EventCooldownManager) Allow(cameraID string, eventType EventType, now time.Time, confidence float64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cam, ok := m.byCam[cameraID]
	if !ok {
		cam = make(map[EventType]cooldownState)
		m.byCam[cameraID] = cam
	}
	st, seen := cam[eventType]
	allowed := !seen ||
		now.Sub(st.lastEmitTime) >= m.cooldownFor(eventType) ||
		confidence > st.lastConf*cooldownConfidenceRatio
	if allowed {
		cam[eventType] = cooldownState{lastEmitTime: now, lastConf: confidence}
	}
	return allowed
}
