package zones

import (
	"time"

	"sentinel/internal/pipeline"
)

const (
	schoolCrowdMinPersons = 4
	schoolCrowdMaxSpread  = 200.0
	schoolFightWristSpeed = 25.0
	schoolFightProximity  = 140.0
	schoolFightIoU        = 0.08
	schoolFightMinFrames  = 3
	schoolFightSuspicion  = 0.6
	schoolFightMinAvgConf = 0.5

	fallMinFrames        = 3
	fallSuspicion        = 0.6
	fallIncrement        = 0.20
	fallAspectRatio      = 1.4
	fallMaxMotion        = 60.0

	cocoWeaponFallbackConf      = 0.30
	cocoWeaponFallbackMinFrames = 2
	cocoWeaponFallbackSuspicion = 0.5
	cocoWeaponFallbackIncrement = 0.30
)

// SchoolGroundProcessor implements the school_ground zone: crowd_formation
// and fight with looser thresholds than corridor, fall_detected, and a
// COCO-fallback weapon path when the shared weapon model is unavailable
// (spec.md §4.4.3).
type SchoolGroundProcessor struct {
	base
	poses             *poseHistory
	prevCollapseRatio map[int]float64
}

// NewSchoolGroundProcessor constructs the school_ground zone processor.
func NewSchoolGroundProcessor() *SchoolGroundProcessor {
	return &SchoolGroundProcessor{
		base:              newBase(pipeline.ZoneSchoolGround),
		poses:             newPoseHistory(),
		prevCollapseRatio: make(map[int]float64),
	}
}

// ProcessFrame implements pipeline.ZoneProcessor.
func (p *SchoolGroundProcessor) ProcessFrame(meta pipeline.FrameMetadata, objects []pipeline.TrackedObject, shared *pipeline.SharedFindings) []pipeline.DetectionEvent {
	now := meta.Timestamp
	p.temporal.Push(meta, objects)
	persons := personsOf(objects, personClass)
	posesByTrack := alignPosesWithTracks(shared.SafePoses(), objects)

	var out []pipeline.DetectionEvent
	if ev := p.processSharedWeapons(shared, persons, now); ev != nil {
		out = append(out, *ev)
	} else if shared == nil || len(shared.Weapons) == 0 {
		if ev := p.cocoFallbackWeapon(objects, persons, now); ev != nil {
			out = append(out, *ev)
		}
	}
	if ev := p.processSharedFireSmoke(shared, now); ev != nil {
		out = append(out, *ev)
	}
	if ev := p.runCrowdFormation(persons, crowdParams{
		minPersons:         schoolCrowdMinPersons,
		maxSpread:          schoolCrowdMaxSpread,
		sustainedDuration:  2500 * time.Millisecond,
		suspicionThreshold: 0.6,
		increment:          0.12,
	}, pipeline.DefaultCooldowns()[pipeline.EventCrowdFormation], now); ev != nil {
		out = append(out, *ev)
	}
	if ev := p.runFight(persons, posesByTrack, p.poses, fightParams{
		wristSpeedThreshold: schoolFightWristSpeed,
		proximity:           schoolFightProximity,
		iouThreshold:        schoolFightIoU,
		minFrames:           schoolFightMinFrames,
		suspicionThreshold:  schoolFightSuspicion,
		increment:           fightIncrement,
		minAvgConfidence:    schoolFightMinAvgConf,
	}, pipeline.DefaultCooldowns()[pipeline.EventFight], now); ev != nil {
		out = append(out, *ev)
	}
	if ev := p.fallDetected(persons, posesByTrack, now); ev != nil {
		out = append(out, *ev)
	}
	return out
}

func (p *SchoolGroundProcessor) fallDetected(persons []pipeline.TrackedObject, posesByTrack map[int]pipeline.Pose, now time.Time) *pipeline.DetectionEvent {
	return p.runSubDetector(subDetectorParams{
		eventType: pipeline.EventFallDetected,
		now:       now,
		cooldown:  pipeline.DefaultCooldowns()[pipeline.EventFallDetected],
		minFrames: fallMinFrames,
		threshold: fallSuspicion,
		increment: fallIncrement,
		decay:     0,
		evidenceFunc: func() evidence {
			for _, person := range persons {
				if p.temporal.ComputeMotionIntensity(person.ObjectID) > fallMaxMotion {
					continue
				}
				fallen := false
				if pose, ok := posesByTrack[person.ObjectID]; ok {
					fallen = torsoAngleFallen(pose)
				}
				if !fallen && person.BBox.Width() > 0 && person.BBox.Height() > 0 {
					fallen = person.BBox.Width()/person.BBox.Height() > fallAspectRatio
				}
				if fallen {
					return evidence{found: true, confidence: person.Confidence, bboxes: []pipeline.BBox{person.BBox},
						metadata: map[string]any{"person_id": person.ObjectID}}
				}
			}
			return evidence{}
		},
	})
}

func (p *SchoolGroundProcessor) cocoFallbackWeapon(objects, persons []pipeline.TrackedObject, now time.Time) *pipeline.DetectionEvent {
	return p.runSubDetector(subDetectorParams{
		eventType: pipeline.EventWeaponDetected,
		now:       now,
		cooldown:  pipeline.DefaultCooldowns()[pipeline.EventWeaponDetected],
		minFrames: cocoWeaponFallbackMinFrames,
		threshold: cocoWeaponFallbackSuspicion,
		increment: cocoWeaponFallbackIncrement,
		decay:     0,
		evidenceFunc: func() evidence {
			var best *pipeline.TrackedObject
			for i := range objects {
				o := objects[i]
				if (o.Class != "knife" && o.Class != "scissors") || o.Confidence < cocoWeaponFallbackConf {
					continue
				}
				if best == nil || o.Confidence > best.Confidence {
					best = &o
				}
			}
			if best == nil {
				return evidence{}
			}
			meta := map[string]any{"weapon_type": best.Class, "near_person": false, "source": "zone_model_fallback"}
			if person, dist, found := nearestPerson(best.BBox, persons); found && dist <= weaponNearPersonDist {
				meta["near_person"] = true
				meta["person_distance"] = dist
				meta["person_id"] = person.ObjectID
			}
			return evidence{found: true, confidence: best.Confidence, bboxes: []pipeline.BBox{best.BBox}, metadata: meta}
		},
	})
}

var _ pipeline.ZoneProcessor = (*SchoolGroundProcessor)(nil)
