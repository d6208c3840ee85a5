// Package eventengine implements the Event Engine (spec.md §4.9): a
// downstream multi-frame verifier that turns a stream of candidate
// events into incident reports, keyed by (tenant, camera, event_type).
package eventengine

import (
	"fmt"
	"sync"
	"time"
)

const dequeCap = 64

// eventConfig is one row of the static per-event-type configuration
// table (spec.md §4.9).
type eventConfig struct {
	windowSec time.Duration
	minFrames int
	threshold float64
	priority  string
	playbook  string
}

// eventConfigTable is the literal EVENT_CONFIG table.
var eventConfigTable = map[string]eventConfig{
	"fight":             {windowSec: 5 * time.Second, minFrames: 3, threshold: 0.65, priority: "high", playbook: "fight"},
	"exam_malpractice":  {windowSec: 10 * time.Second, minFrames: 2, threshold: 0.6, priority: "medium", playbook: "exam_malpractice"},
	"gate_accident":     {windowSec: 4 * time.Second, minFrames: 1, threshold: 0.8, priority: "critical", playbook: "gate_accident"},
	"intrusion":         {windowSec: 8 * time.Second, minFrames: 2, threshold: 0.7, priority: "high", playbook: "intrusion"},
	"abandoned_object":  {windowSec: 20 * time.Second, minFrames: 2, threshold: 0.65, priority: "high", playbook: "abandoned_object"},
	"fire_smoke":        {windowSec: 3 * time.Second, minFrames: 1, threshold: 0.75, priority: "critical", playbook: "fire_smoke"},
}

// sample is one (timestamp, confidence) entry in a per-key bounded deque.
type sample struct {
	ts         time.Time
	confidence float64
}

// Timeline reports the window of frames that contributed to an incident
// report's suspicion score.
type Timeline struct {
	FirstSeen       time.Time
	LastSeen        time.Time
	FramesConsidered int
}

// IncidentReport is the Event Engine's output for one process_event call.
type IncidentReport struct {
	Incident       bool
	EventType      string
	SuspicionScore float64
	Priority       string
	Playbook       string
	Timeline       Timeline
}

// Engine is the process-wide, mutex-guarded Event Engine.
type Engine struct {
	mu      sync.Mutex
	deques  map[string][]sample
}

// NewEngine constructs an empty Event Engine.
func NewEngine() *Engine {
	return &Engine{deques: make(map[string][]sample)}
}

func key(tenantID, cameraID, eventType string) string {
	return fmt.Sprintf("%s|%s|%s", tenantID, cameraID, eventType)
}

// ProcessEvent appends (ts, confidence) to the bounded deque for
// (tenantID, cameraID, eventType), prunes entries older than the event
// type's window, and evaluates whether the accumulated evidence
// constitutes an incident. Unknown event types return incident=false
// without any state update.
func (e *Engine) ProcessEvent(tenantID, cameraID, eventType string, confidence float64, ts time.Time) IncidentReport {
	cfg, ok := eventConfigTable[eventType]
	if !ok {
		return IncidentReport{Incident: false, EventType: eventType}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	k := key(tenantID, cameraID, eventType)
	deque := append(e.deques[k], sample{ts: ts, confidence: confidence})
	if len(deque) > dequeCap {
		deque = deque[len(deque)-dequeCap:]
	}

	cutoff := ts.Add(-cfg.windowSec)
	pruned := deque[:0:0]
	for _, s := range deque {
		if s.ts.After(cutoff) {
			pruned = append(pruned, s)
		}
	}
	e.deques[k] = pruned

	var sum float64
	for _, s := range pruned {
		sum += s.confidence
	}
	suspicion := 0.0
	if len(pruned) > 0 {
		suspicion = sum / float64(len(pruned))
	}

	incident := len(pruned) >= cfg.minFrames && suspicion >= cfg.threshold

	timeline := Timeline{FramesConsidered: len(pruned)}
	if len(pruned) > 0 {
		timeline.FirstSeen = pruned[0].ts
		timeline.LastSeen = pruned[len(pruned)-1].ts
	}

	return IncidentReport{
		Incident:       incident,
		EventType:      eventType,
		SuspicionScore: suspicion,
		Priority:       cfg.priority,
		Playbook:       cfg.playbook,
		Timeline:       timeline,
	}
}
