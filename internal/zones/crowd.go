package zones

import (
	"time"

	"sentinel/internal/pipeline"
)

// crowdParams configures one zone's crowd_formation sub-detector
// thresholds (spec.md §4.4.2, §4.4.3).
type crowdParams struct {
	minPersons         int
	maxSpread          float64
	sustainedDuration  time.Duration
	suspicionThreshold float64
	increment          float64
}

// runCrowdFormation executes the shared crowd_formation sub-detector
// pattern: at least minPersons clustered within maxSpread of their
// centroid, sustained for sustainedDuration.
func (b *base) runCrowdFormation(persons []pipeline.TrackedObject, p crowdParams, cooldown time.Duration, now time.Time) *pipeline.DetectionEvent {
	return b.runSubDetector(subDetectorParams{
		eventType:    pipeline.EventCrowdFormation,
		now:          now,
		cooldown:     cooldown,
		minFrames:    1,
		threshold:    p.suspicionThreshold,
		increment:    p.increment,
		decay:        0,
		sustainedFor: p.sustainedDuration,
		evidenceFunc: func() evidence {
			if len(persons) < p.minPersons {
				return evidence{}
			}
			centers := make([][2]float64, 0, len(persons))
			bboxes := make([]pipeline.BBox, 0, len(persons))
			var confSum float64
			for _, person := range persons {
				x, y := person.Center()
				centers = append(centers, [2]float64{x, y})
				bboxes = append(bboxes, person.BBox)
				confSum += person.Confidence
			}
			if clusterSpread(centers) > p.maxSpread {
				return evidence{}
			}
			return evidence{
				found:      true,
				confidence: confSum / float64(len(persons)),
				bboxes:     bboxes,
				metadata:   map[string]any{"person_count": len(persons)},
			}
		},
	})
}
