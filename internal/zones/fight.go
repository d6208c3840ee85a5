package zones

import (
	"math"
	"time"

	"sentinel/internal/pipeline"
)

const fightPoseHistoryLen = 10

// poseHistory keeps a bounded per-track window of recent pose samples,
// used to compute wrist-speed deltas for the fight sub-detector (spec.md
// §4.4.2).
type poseHistory struct {
	byTrack map[int][]pipeline.Pose
}

func newPoseHistory() *poseHistory {
	return &poseHistory{byTrack: make(map[int][]pipeline.Pose)}
}

func (h *poseHistory) push(trackID int, p pipeline.Pose) {
	s := append(h.byTrack[trackID], p)
	if len(s) > fightPoseHistoryLen {
		s = s[len(s)-fightPoseHistoryLen:]
	}
	h.byTrack[trackID] = s
}

// speedFor returns the wrist speed between the last two recorded samples
// for trackID, or (0, false) if fewer than two samples exist.
func (h *poseHistory) speedFor(trackID int) (float64, bool) {
	s := h.byTrack[trackID]
	if len(s) < 2 {
		return 0, false
	}
	return wristSpeed(s[len(s)-2], s[len(s)-1]), true
}

// fightParams configures one zone's fight sub-detector thresholds; the
// spec.md §4.4.2 logic is shared by corridor, school_ground (looser), and
// classroom.
type fightParams struct {
	wristSpeedThreshold float64
	proximity           float64
	iouThreshold        float64
	minFrames           int
	suspicionThreshold  float64
	increment           float64
	minAvgConfidence    float64
}

// fightEvidence finds the best candidate fighting pair among persons,
// preferring the pose-based wrist-speed+proximity signal and falling back
// to bbox IoU + motion intensity when pose data is unavailable (spec.md
// §4.4.2).
func (b *base) fightEvidence(persons []pipeline.TrackedObject, posesByTrack map[int]pipeline.Pose, history *poseHistory, p fightParams) evidence {
	type candidate struct {
		a, b       pipeline.TrackedObject
		score      float64
		confidence float64
	}
	var best *candidate

	for i := 0; i < len(persons); i++ {
		for j := i + 1; j < len(persons); j++ {
			pa, pb := persons[i], persons[j]
			ax, ay := pa.Center()
			bx, by := pb.Center()
			dist := centerDistance([2]float64{ax, ay}, [2]float64{bx, by})

			if poseA, ok := posesByTrack[pa.ObjectID]; ok {
				history.push(pa.ObjectID, poseA)
			}
			if poseB, ok := posesByTrack[pb.ObjectID]; ok {
				history.push(pb.ObjectID, poseB)
			}
			speedA, hasA := history.speedFor(pa.ObjectID)
			speedB, hasB := history.speedFor(pb.ObjectID)
			wristSpd := math.Max(speedA, speedB)

			var score, confidence float64
			matched := false

			if (hasA || hasB) && wristSpd > p.wristSpeedThreshold && dist < p.proximity {
				matched = true
				score = wristSpd/100 + (1 - dist/500)
				confidence = (pa.Confidence + pb.Confidence) / 2
			} else if iou := pa.BBox.IoU(pb.BBox); iou > p.iouThreshold {
				matched = true
				sumMotion := b.temporal.ComputeMotionIntensity(pa.ObjectID) + b.temporal.ComputeMotionIntensity(pb.ObjectID)
				score = iou + sumMotion/200
				confidence = (pa.Confidence + pb.Confidence) / 2
			}

			if matched && confidence >= p.minAvgConfidence && (best == nil || score > best.score) {
				best = &candidate{a: pa, b: pb, score: score, confidence: confidence}
			}
		}
	}

	if best == nil {
		return evidence{}
	}
	return evidence{
		found:      true,
		confidence: best.confidence,
		bboxes:     []pipeline.BBox{best.a.BBox, best.b.BBox},
		metadata:   map[string]any{"person_a": best.a.ObjectID, "person_b": best.b.ObjectID},
	}
}

// runFight executes the shared fight sub-detector pattern for a zone.
func (b *base) runFight(persons []pipeline.TrackedObject, posesByTrack map[int]pipeline.Pose, history *poseHistory, p fightParams, cooldown time.Duration, now time.Time) *pipeline.DetectionEvent {
	return b.runSubDetector(subDetectorParams{
		eventType: pipeline.EventFight,
		now:       now,
		cooldown:  cooldown,
		minFrames: p.minFrames,
		threshold: p.suspicionThreshold,
		increment: p.increment,
		decay:     0,
		evidenceFunc: func() evidence {
			return b.fightEvidence(persons, posesByTrack, history, p)
		},
	})
}
