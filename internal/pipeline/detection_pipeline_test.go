package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	detections []Detection
}

func (f *fakeDetector) Detect(frameJPEG []byte, meta FrameMetadata) []Detection {
	return f.detections
}

type fakeTracker struct {
	tracked  []TrackedObject
	received []Detection
}

func (f *fakeTracker) Update(detections []Detection, meta FrameMetadata) []TrackedObject {
	f.received = detections
	return f.tracked
}
func (f *fakeTracker) Reset() {}

type fakeShared struct {
	calls int
	out   *SharedFindings
}

func (f *fakeShared) Run(frameJPEG []byte, meta FrameMetadata) *SharedFindings {
	f.calls++
	return f.out
}

type fakeProcessor struct {
	zone   Zone
	events []DetectionEvent
}

func (f *fakeProcessor) ZoneName() Zone            { return f.zone }
func (f *fakeProcessor) EventTypes() []EventType    { return nil }
func (f *fakeProcessor) Reset()                     {}
func (f *fakeProcessor) ProcessFrame(meta FrameMetadata, tracked []TrackedObject, shared *SharedFindings) []DetectionEvent {
	return f.events
}

type fakeFilter struct {
	calls int
}

func (f *fakeFilter) Apply(events []DetectionEvent, ts time.Time) []DetectionEvent {
	f.calls++
	return events
}

type fakeEnricher struct {
	calls int
}

func (f *fakeEnricher) Enrich(event *FormattedEvent, frameJPEG []byte, personBox BBox, now time.Time) error {
	f.calls++
	id := 42
	event.GlobalPersonID = &id
	return nil
}

func TestDetectionPipeline_FiltersByAllowedClasses(t *testing.T) {
	detector := &fakeDetector{detections: []Detection{
		{Class: "person", Confidence: 0.9, BBox: BBox{X2: 1, Y2: 1}},
		{Class: "car", Confidence: 0.2, BBox: BBox{X2: 1, Y2: 1}},
	}}
	tracker := &fakeTracker{}
	processor := &fakeProcessor{zone: ZoneOutgate}

	p := &DetectionPipeline{
		CameraID:       "cam1",
		Zone:           ZoneOutgate,
		Detector:       detector,
		Tracker:        tracker,
		Processor:      processor,
		AllowedClasses: []AllowedClass{{Class: "person", MinConfidence: 0.5}},
	}
	p.ProcessFrame([]byte("frame"), FrameMetadata{CameraID: "cam1", Timestamp: time.Unix(0, 0)})

	require.Len(t, tracker.received, 1)
	assert.Equal(t, "person", tracker.received[0].Class)
}

func TestDetectionPipeline_ProcessFrame_EndToEnd(t *testing.T) {
	now := time.Unix(1000, 0)
	processor := &fakeProcessor{
		zone: ZoneOutgate,
		events: []DetectionEvent{{
			EventType:     EventGateAccident,
			Confidence:    0.8,
			BoundingBoxes: []BBox{{X1: 0, Y1: 0, X2: 10, Y2: 10}},
			Metadata:      map[string]any{"after_hours": true},
		}},
	}
	shared := &fakeShared{out: &SharedFindings{}}
	filter := &fakeFilter{}
	enricher := &fakeEnricher{}

	p := &DetectionPipeline{
		TenantID:  "tenant1",
		CameraID:  "cam1",
		Zone:      ZoneOutgate,
		Detector:  &fakeDetector{},
		Tracker:   &fakeTracker{},
		Shared:    shared,
		Processor: processor,
		Filter:    filter,
		Enricher:  enricher,
	}

	events := p.ProcessFrame([]byte("frame"), FrameMetadata{CameraID: "cam1", Timestamp: now})
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "tenant1", ev.TenantID)
	assert.Equal(t, "cam1", ev.CameraID)
	assert.Equal(t, EventGateAccident, ev.EventType)
	assert.True(t, ev.AfterHours)
	assert.Equal(t, 1, shared.calls)
	assert.Equal(t, 1, filter.calls)
	assert.Equal(t, 1, enricher.calls)
	require.NotNil(t, ev.GlobalPersonID)
	assert.Equal(t, 42, *ev.GlobalPersonID)
}

func TestDetectionPipeline_NoBoundingBoxesSkipsEnrichment(t *testing.T) {
	processor := &fakeProcessor{
		zone: ZoneOutgate,
		events: []DetectionEvent{{
			EventType: EventCrowdFormation,
			Confidence: 0.7,
		}},
	}
	enricher := &fakeEnricher{}

	p := &DetectionPipeline{
		CameraID:  "cam1",
		Zone:      ZoneOutgate,
		Detector:  &fakeDetector{},
		Tracker:   &fakeTracker{},
		Processor: processor,
		Enricher:  enricher,
	}

	events := p.ProcessFrame([]byte("frame"), FrameMetadata{CameraID: "cam1", Timestamp: time.Unix(0, 0)})
	require.Len(t, events, 1)
	assert.Nil(t, events[0].GlobalPersonID)
	assert.Equal(t, 0, enricher.calls)
}

func TestMultiZonePipeline_SharesBundleAcrossZones(t *testing.T) {
	shared := &fakeShared{out: &SharedFindings{}}

	outgateProc := &fakeProcessor{zone: ZoneOutgate, events: []DetectionEvent{{EventType: EventGateAccident, Confidence: 0.9}}}
	corridorProc := &fakeProcessor{zone: ZoneCorridor, events: []DetectionEvent{{EventType: EventCrowdFormation, Confidence: 0.9}}}

	m := &MultiZonePipeline{
		TenantID: "tenant1",
		CameraID: "cam1",
		Shared:   shared,
		Pipelines: map[Zone]*DetectionPipeline{
			ZoneOutgate:  {CameraID: "cam1", Zone: ZoneOutgate, Detector: &fakeDetector{}, Tracker: &fakeTracker{}, Processor: outgateProc},
			ZoneCorridor: {CameraID: "cam1", Zone: ZoneCorridor, Detector: &fakeDetector{}, Tracker: &fakeTracker{}, Processor: corridorProc},
		},
	}

	events := m.ProcessFrame([]byte("frame"), FrameMetadata{CameraID: "cam1", Timestamp: time.Unix(0, 0)})
	require.Len(t, events, 2)
	assert.Equal(t, 1, shared.calls) // shared bundle runs exactly once despite two zones

	byZone := map[Zone]bool{}
	for _, ev := range events {
		byZone[ev.DetectedByZone] = true
	}
	assert.True(t, byZone[ZoneOutgate])
	assert.True(t, byZone[ZoneCorridor])
}
