// Package afterhours implements the After-Hours Filter and Loitering
// Tracker (spec.md §4.6): confidence escalation for events observed
// outside a configured operating window, and synthesis of a companion
// after_hours_intrusion event for restricted zones.
package afterhours

import (
	"time"

	"sentinel/internal/pipeline"
)

const (
	afterHoursConfidenceBoost  = 1.5
	intrusionSynthesisConf     = 0.90
	intrusionMaxBBoxes         = 4
)

// restrictedZones are the zones in which a person-involving after-hours
// event synthesizes a companion after_hours_intrusion event.
var restrictedZones = map[pipeline.Zone]bool{
	pipeline.ZoneCorridor:     true,
	pipeline.ZoneClassroom:    true,
	pipeline.ZoneSchoolGround: true,
}

// personInvolvingEventTypes are event types whose presence, after-hours,
// triggers intrusion synthesis in a restricted zone.
var personInvolvingEventTypes = map[pipeline.EventType]bool{
	pipeline.EventFight:          true,
	pipeline.EventCrowdFormation: true,
	pipeline.EventMobileUsage:    true,
	pipeline.EventFallDetected:   true,
	pipeline.EventWeaponDetected: true,
	pipeline.EventGateAccident:   true,
}

// Window is the configured {start_time, end_time} operating window, in
// local 24h HH:MM.
type Window struct {
	Start time.Time // only Hour/Minute are consulted
	End   time.Time
}

// Filter applies the After-Hours Filter to a zone processor's candidate
// events for one frame.
type Filter struct {
	zone   pipeline.Zone
	window Window
}

// NewFilter constructs a Filter for a given zone and operating window.
func NewFilter(zone pipeline.Zone, window Window) *Filter {
	return &Filter{zone: zone, window: window}
}

// IsAfterHours reports whether ts falls outside [start, end] time-of-day.
func (f *Filter) IsAfterHours(ts time.Time) bool {
	tod := timeOfDayMinutes(ts)
	start := timeOfDayMinutes(f.window.Start)
	end := timeOfDayMinutes(f.window.End)
	return !(start <= tod && tod <= end)
}

func timeOfDayMinutes(t time.Time) int {
	return t.Hour()*60 + t.Minute()
}

// Apply stamps metadata.after_hours on every event, boosts confidence
// ×1.5 (clamped to 1.0) when after-hours, and — in restricted zones, when
// any person-involving event is present and it is after-hours — appends a
// synthesized after_hours_intrusion event combining up to 4 bboxes from
// the existing events.
func (f *Filter) Apply(events []pipeline.DetectionEvent, ts time.Time) []pipeline.DetectionEvent {
	afterHours := f.IsAfterHours(ts)

	out := make([]pipeline.DetectionEvent, len(events))
	hasPersonInvolving := false
	var combinedBBoxes []pipeline.BBox

	for i, e := range events {
		if e.Metadata == nil {
			e.Metadata = map[string]any{}
		}
		e.Metadata["after_hours"] = afterHours
		if afterHours {
			e.Confidence *= afterHoursConfidenceBoost
			if e.Confidence > 1 {
				e.Confidence = 1
			}
			if personInvolvingEventTypes[e.EventType] {
				hasPersonInvolving = true
				for _, b := range e.BoundingBoxes {
					if len(combinedBBoxes) >= intrusionMaxBBoxes {
						break
					}
					combinedBBoxes = append(combinedBBoxes, b)
				}
			}
		}
		out[i] = e
	}

	if afterHours && hasPersonInvolving && restrictedZones[f.zone] {
		out = append(out, pipeline.DetectionEvent{
			EventType:     pipeline.EventAfterHoursIntrusion,
			Confidence:    intrusionSynthesisConf,
			BoundingBoxes: combinedBBoxes,
			Metadata:      map[string]any{"after_hours": true, "synthesized": true},
		})
	}

	return out
}
