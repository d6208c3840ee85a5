package pipeline

import "time"

// ZoneProcessor is the closed-set interface dispatched at pipeline-
// construction time. The set of zones is closed: outgate, corridor,
// school_ground, classroom.
type ZoneProcessor interface {
	// ZoneName returns the zone this processor is responsible for.
	ZoneName() Zone

	// EventTypes returns the event types this processor may emit.
	EventTypes() []EventType

	// ProcessFrame consumes tracked objects and shared findings for one
	// frame and returns zero or more candidate detection events.
	ProcessFrame(meta FrameMetadata, tracked []TrackedObject, shared *SharedFindings) []DetectionEvent

	// Reset clears all per-camera state owned by this processor instance
	// (temporal buffer, suspicion map, cooldowns, event counters).
	Reset()
}

// Tracker assigns stable object ids to detections across frames.
type Tracker interface {
	// Update associates this frame's detections with existing tracks and
	// returns the resulting TrackedObjects.
	Update(detections []Detection, ts FrameMetadata) []TrackedObject

	// Reset clears all track history.
	Reset()
}

// SharedDetectorBundle runs the three stateless-per-frame shared
// detectors once per frame.
type SharedDetectorBundle interface {
	// Run executes weapon, fire/smoke and pose detection against frame
	// image bytes and returns their combined findings. Failure in any one
	// channel yields an empty list for that channel, never an error.
	Run(frameJPEG []byte, meta FrameMetadata) *SharedFindings
}

// Embedder extracts an appearance embedding for re-identification.
type Embedder interface {
	// Embed returns a unit-norm embedding for the person crop described by
	// box within frameJPEG, and whether the preferred (model-backed)
	// embedder was used (false means the HSV-histogram fallback ran).
	Embed(frameJPEG []byte, box BBox) (embedding []float64, preferred bool, err error)
}

// GenericDetector runs a zone's generic object-detection model against
// one frame (spec.md §4.1: a per-zone detector resolved by the Model &
// Tracker Registry, degrading to a baseline nano detector on load
// failure). Implementations are opaque inference-endpoint clients, out
// of this spec's core per spec.md §1.
type GenericDetector interface {
	Detect(frameJPEG []byte, meta FrameMetadata) []Detection
}

// EventFilter post-processes a zone processor's candidate events before
// they are formatted for the sink (the After-Hours Filter is the only
// implementation; spec.md §4.6).
type EventFilter interface {
	Apply(events []DetectionEvent, ts time.Time) []DetectionEvent
}

// PersonEnricher attaches cross-camera re-identification metadata to a
// formatted event (the Re-Identification Manager is the only
// implementation; spec.md §4.7).
type PersonEnricher interface {
	Enrich(event *FormattedEvent, frameJPEG []byte, personBox BBox, now time.Time) error
}
