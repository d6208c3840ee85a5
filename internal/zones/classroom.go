package zones

import (
	"time"

	"sentinel/internal/pipeline"
)

const (
	classroomFightIoU        = 0.12
	classroomFightProximity  = 120.0
	classroomFightMinFrames  = 3
	classroomFightSuspicion  = 0.6
	classroomFightMinAvgConf = 0.5
	classroomFightWristSpeed = 25.0

	mobileUpperBodyFraction = 0.6
	mobileIoUThreshold      = 0.03
	mobileSustained         = 1500 * time.Millisecond
	mobileSuspicion         = 0.6
	mobileIncrement         = 0.15
	mobileMinAvgConf        = 0.4

	phoneClass = "cell phone"
)

// ClassroomProcessor implements the classroom zone: mobile_usage and
// fight (spec.md §4.4.4).
type ClassroomProcessor struct {
	base
	poses *poseHistory
}

// NewClassroomProcessor constructs the classroom zone processor.
func NewClassroomProcessor() *ClassroomProcessor {
	return &ClassroomProcessor{base: newBase(pipeline.ZoneClassroom), poses: newPoseHistory()}
}

// ProcessFrame implements pipeline.ZoneProcessor.
func (p *ClassroomProcessor) ProcessFrame(meta pipeline.FrameMetadata, objects []pipeline.TrackedObject, shared *pipeline.SharedFindings) []pipeline.DetectionEvent {
	now := meta.Timestamp
	p.temporal.Push(meta, objects)
	persons := personsOf(objects, personClass)
	phones := personsOf(objects, phoneClass)
	posesByTrack := alignPosesWithTracks(shared.SafePoses(), objects)

	var out []pipeline.DetectionEvent
	if ev := p.processSharedWeapons(shared, persons, now); ev != nil {
		out = append(out, *ev)
	}
	if ev := p.processSharedFireSmoke(shared, now); ev != nil {
		out = append(out, *ev)
	}
	if ev := p.mobileUsage(persons, phones, now); ev != nil {
		out = append(out, *ev)
	}
	if ev := p.runFight(persons, posesByTrack, p.poses, fightParams{
		wristSpeedThreshold: classroomFightWristSpeed,
		proximity:           classroomFightProximity,
		iouThreshold:        classroomFightIoU,
		minFrames:           classroomFightMinFrames,
		suspicionThreshold:  classroomFightSuspicion,
		increment:           fightIncrement,
		minAvgConfidence:    classroomFightMinAvgConf,
	}, pipeline.DefaultCooldowns()[pipeline.EventFight], now); ev != nil {
		out = append(out, *ev)
	}
	return out
}

func (p *ClassroomProcessor) mobileUsage(persons, phones []pipeline.TrackedObject, now time.Time) *pipeline.DetectionEvent {
	return p.runSubDetector(subDetectorParams{
		eventType:    pipeline.EventMobileUsage,
		now:          now,
		cooldown:     pipeline.DefaultCooldowns()[pipeline.EventMobileUsage],
		minFrames:    1,
		threshold:    mobileSuspicion,
		increment:    mobileIncrement,
		decay:        0,
		sustainedFor: mobileSustained,
		evidenceFunc: func() evidence {
			for _, person := range persons {
				upper := pipeline.BBox{
					X1: person.BBox.X1, Y1: person.BBox.Y1,
					X2: person.BBox.X2, Y2: person.BBox.Y1 + mobileUpperBodyFraction*person.BBox.Height(),
				}
				for _, phone := range phones {
					if phone.BBox.IoU(upper) > mobileIoUThreshold || boxFullyInside(phone.BBox, person.BBox) {
						conf := (person.Confidence + phone.Confidence) / 2
						if conf < mobileMinAvgConf {
							continue
						}
						return evidence{
							found:      true,
							confidence: conf,
							bboxes:     []pipeline.BBox{person.BBox, phone.BBox},
							metadata:   map[string]any{"person_id": person.ObjectID},
						}
					}
				}
			}
			return evidence{}
		},
	})
}

func boxFullyInside(inner, outer pipeline.BBox) bool {
	return inner.X1 >= outer.X1 && inner.Y1 >= outer.Y1 && inner.X2 <= outer.X2 && inner.Y2 <= outer.Y2
}

var _ pipeline.ZoneProcessor = (*ClassroomProcessor)(nil)
