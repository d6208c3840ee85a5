package pipeline

import (
	"fmt"
	"log"
)

// AllowedClass is one zone's per-class detection precondition: only raw
// detections of Class at confidence >= MinConfidence are handed to the
// tracker (spec.md §4.5: "filter by zone's allowed class IDs/confidence").
type AllowedClass struct {
	Class         string
	MinConfidence float64
}

func filterByAllowedClasses(detections []Detection, allowed []AllowedClass) []Detection {
	if len(allowed) == 0 {
		return detections
	}
	min := make(map[string]float64, len(allowed))
	for _, a := range allowed {
		min[a.Class] = a.MinConfidence
	}
	out := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if threshold, ok := min[d.Class]; ok && d.Confidence >= threshold {
			out = append(out, d)
		}
	}
	return out
}

// DetectionPipeline is the per-camera, single-zone orchestrator (spec.md
// §4.5): generic detection → tracking → shared detectors → zone
// processor → after-hours filter → event formatting → re-id enrichment.
// Every collaborator is an interface so this package never imports the
// zones/afterhours/reid/registry/shareddetect packages that implement
// them — those packages depend on pipeline, not the other way around.
type DetectionPipeline struct {
	TenantID string
	CameraID string
	Zone     Zone

	Detector  GenericDetector
	Tracker   Tracker
	Shared    SharedDetectorBundle
	Processor ZoneProcessor
	Filter    EventFilter    // nil disables after-hours tagging
	Enricher  PersonEnricher // nil disables re-id enrichment

	AllowedClasses []AllowedClass

	Logger *log.Logger
}

// ProcessFrame runs one frame end to end, computing shared findings
// itself.
func (p *DetectionPipeline) ProcessFrame(frameJPEG []byte, meta FrameMetadata) []FormattedEvent {
	return p.processFrame(frameJPEG, meta, nil)
}

// ProcessFrameWithShared is identical to ProcessFrame but reuses shared
// findings computed once upstream — used by MultiZonePipeline so the
// shared detector bundle runs exactly once per frame regardless of how
// many zones observe a camera.
func (p *DetectionPipeline) ProcessFrameWithShared(frameJPEG []byte, meta FrameMetadata, shared *SharedFindings) []FormattedEvent {
	return p.processFrame(frameJPEG, meta, shared)
}

func (p *DetectionPipeline) processFrame(frameJPEG []byte, meta FrameMetadata, shared *SharedFindings) []FormattedEvent {
	var raw []Detection
	if p.Detector != nil {
		raw = p.Detector.Detect(frameJPEG, meta)
	}
	raw = filterByAllowedClasses(raw, p.AllowedClasses)

	var tracked []TrackedObject
	if p.Tracker != nil {
		tracked = p.Tracker.Update(raw, meta)
	}

	if shared == nil && p.Shared != nil {
		shared = p.Shared.Run(frameJPEG, meta)
	}

	var events []DetectionEvent
	if p.Processor != nil {
		events = p.Processor.ProcessFrame(meta, tracked, shared)
	}
	if p.Filter != nil {
		events = p.Filter.Apply(events, meta.Timestamp)
	}

	formatted := make([]FormattedEvent, 0, len(events))
	for _, ev := range events {
		fe := p.format(ev, meta)
		if p.Enricher != nil && len(ev.BoundingBoxes) > 0 {
			if err := p.Enricher.Enrich(&fe, frameJPEG, ev.BoundingBoxes[0], meta.Timestamp); err != nil && p.Logger != nil {
				p.Logger.Printf("camera %s: re-id enrichment skipped: %v", p.CameraID, err)
			}
		}
		formatted = append(formatted, fe)
	}
	return formatted
}

func (p *DetectionPipeline) format(ev DetectionEvent, meta FrameMetadata) FormattedEvent {
	afterHours, _ := ev.Metadata["after_hours"].(bool)
	return FormattedEvent{
		EventID:       fmt.Sprintf("%s-%s-%d", ev.EventType, p.CameraID, meta.Timestamp.UnixNano()),
		TenantID:      p.TenantID,
		CameraID:      p.CameraID,
		Zone:          p.Zone,
		EventType:     ev.EventType,
		Confidence:    ev.Confidence,
		Timestamp:     meta.Timestamp,
		BoundingBoxes: ev.BoundingBoxes,
		SeverityScore: ev.Confidence,
		Metadata:      ev.Metadata,
		AfterHours:    afterHours,
	}
}

// MultiZonePipeline runs every canonical zone's processor against one
// camera whose configuration names zone "all" (spec.md §2, component 5).
// The shared detector bundle runs exactly once per frame and its
// findings are handed to every sub-pipeline; emitted events are tagged
// with the zone that produced them.
type MultiZonePipeline struct {
	TenantID  string
	CameraID  string
	Shared    SharedDetectorBundle
	Pipelines map[Zone]*DetectionPipeline
}

// ProcessFrame runs the shared detector bundle once, then every
// configured zone's sub-pipeline against this frame.
func (m *MultiZonePipeline) ProcessFrame(frameJPEG []byte, meta FrameMetadata) []FormattedEvent {
	var shared *SharedFindings
	if m.Shared != nil {
		shared = m.Shared.Run(frameJPEG, meta)
	}

	var out []FormattedEvent
	for zone, sub := range m.Pipelines {
		events := sub.ProcessFrameWithShared(frameJPEG, meta, shared)
		for i := range events {
			events[i].DetectedByZone = zone
		}
		out = append(out, events...)
	}
	return out
}
