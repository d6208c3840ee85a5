package zones

import (
	"time"

	"sentinel/internal/pipeline"
)

const (
	vehicleClass = "vehicle"
	personClass  = "person"

	vehicleMinConfidence = 0.45
	vehicleMinFrames     = 2
	vehicleSuspicion     = 0.4
	vehicleIncrement     = 0.20
	vehicleMaxBoxes      = 5

	gateAccidentMinFrames       = 3
	gateAccidentSuspicion       = 0.6
	gateAccidentMinAvgConf      = 0.35
	gateAccidentMinVehicleAge   = 2
	gateAccidentProximityHard   = 200.0
	gateAccidentProximityClose  = 100.0
	gateAccidentIoUStrong       = 0.15
	gateAccidentIoUSoft         = 0.05

	incrementStrong   = 0.30
	incrementModerate = 0.18
	incrementWeak     = 0.08
)

// gateAccidentSignal names a gate_accident cascade classification, ordered
// strongest first (spec.md §4.4.1).
type gateAccidentSignal string

const (
	signalStrongOverlap       gateAccidentSignal = "strong_overlap"
	signalSuddenStop          gateAccidentSignal = "sudden_stop"
	signalMovingVeryClose     gateAccidentSignal = "moving_very_close"
	signalApproachingProx     gateAccidentSignal = "approaching_proximate"
	signalSoftOverlapMotion   gateAccidentSignal = "soft_overlap_motion"
	signalApproachingMoving   gateAccidentSignal = "approaching_moving"
	signalProximitySoftOverlap gateAccidentSignal = "proximity_soft_overlap"
)

// OutgateProcessor implements the outgate zone: vehicle_detected and the
// four-stage gate_accident cascade (spec.md §4.4.1), plus the shared
// weapon and fire/smoke sub-detectors common to every zone.
type OutgateProcessor struct {
	base
	motion            *vehicleMotionAnalyzer
	prevCollapseRatio map[int]float64
}

// NewOutgateProcessor constructs the outgate zone processor.
func NewOutgateProcessor() *OutgateProcessor {
	return &OutgateProcessor{
		base:              newBase(pipeline.ZoneOutgate),
		motion:            newVehicleMotionAnalyzer(),
		prevCollapseRatio: make(map[int]float64),
	}
}

// ProcessFrame implements pipeline.ZoneProcessor.
func (p *OutgateProcessor) ProcessFrame(meta pipeline.FrameMetadata, objects []pipeline.TrackedObject, shared *pipeline.SharedFindings) []pipeline.DetectionEvent {
	now := meta.Timestamp
	p.temporal.Push(meta, objects)

	vehicles := personsOf(objects, vehicleClass)
	persons := personsOf(objects, personClass)
	posesByTrack := alignPosesWithTracks(shared.SafePoses(), objects)

	for _, v := range vehicles {
		cx, cy := v.Center()
		p.motion.update(v.ObjectID, cx, cy, now)
	}

	var out []pipeline.DetectionEvent

	if ev := p.processSharedWeapons(shared, persons, now); ev != nil {
		out = append(out, *ev)
	}
	if ev := p.processSharedFireSmoke(shared, now); ev != nil {
		out = append(out, *ev)
	}
	if ev := p.vehicleDetected(vehicles, now); ev != nil {
		out = append(out, *ev)
	}
	if ev := p.gateAccident(vehicles, persons, posesByTrack, now); ev != nil {
		out = append(out, *ev)
	}

	return out
}

func (p *OutgateProcessor) vehicleDetected(vehicles []pipeline.TrackedObject, now time.Time) *pipeline.DetectionEvent {
	return p.runSubDetector(subDetectorParams{
		eventType: pipeline.EventVehicleDetected,
		now:       now,
		cooldown:  pipeline.DefaultCooldowns()[pipeline.EventVehicleDetected],
		minFrames: vehicleMinFrames,
		threshold: vehicleSuspicion,
		increment: vehicleIncrement,
		decay:     0,
		evidenceFunc: func() evidence {
			var best *pipeline.TrackedObject
			for i := range vehicles {
				if vehicles[i].Confidence < vehicleMinConfidence {
					continue
				}
				if best == nil || vehicles[i].Confidence > best.Confidence {
					v := vehicles[i]
					best = &v
				}
			}
			if best == nil {
				return evidence{}
			}
			bboxes := []pipeline.BBox{best.BBox}
			for _, v := range vehicles {
				if len(bboxes) >= vehicleMaxBoxes {
					break
				}
				if v.ObjectID != best.ObjectID {
					bboxes = append(bboxes, v.BBox)
				}
			}
			return evidence{found: true, confidence: best.Confidence, bboxes: bboxes}
		},
	})
}

func (p *OutgateProcessor) gateAccident(vehicles, persons []pipeline.TrackedObject, posesByTrack map[int]pipeline.Pose, now time.Time) *pipeline.DetectionEvent {
	return p.runSubDetector(subDetectorParams{
		eventType: pipeline.EventGateAccident,
		now:       now,
		cooldown:  pipeline.DefaultCooldowns()[pipeline.EventGateAccident],
		minFrames: gateAccidentMinFrames,
		threshold: gateAccidentSuspicion,
		increment: incrementModerate,
		decay:     0,
		evidenceFunc: func() evidence {
			return p.gateAccidentEvidence(vehicles, persons, posesByTrack, now)
		},
	})
}

func (p *OutgateProcessor) gateAccidentEvidence(vehicles, persons []pipeline.TrackedObject, posesByTrack map[int]pipeline.Pose, now time.Time) evidence {
	type candidate struct {
		signal     gateAccidentSignal
		confidence float64
		bboxes     []pipeline.BBox
		increment  float64
	}
	var best *candidate

	for _, v := range vehicles {
		hist, ok := p.motion.history(v.ObjectID)
		if !ok || hist.framesSeen < gateAccidentMinVehicleAge {
			continue
		}
		speed, velocity, hasSpeed := hist.speed()
		recentlySeen := now.Sub(hist.lastSeen()) < postImpactMemory

		for _, person := range persons {
			vx, vy := v.Center()
			px, py := person.Center()
			dist := centerDistance([2]float64{vx, vy}, [2]float64{px, py})
			if dist >= gateAccidentProximityHard {
				continue
			}
			veryClose := dist < gateAccidentProximityClose
			isMoving := hasSpeed && speed >= minMeaningfulSpeed
			isApproaching := hasSpeed && approaching(velocity, speed, [2]float64{vx, vy}, [2]float64{px, py})
			iou := v.BBox.IoU(person.BBox)

			collapsed := false
			if pose, ok := posesByTrack[person.ObjectID]; ok {
				normalHeight := collapseNormalHeight(persons, personClass)
				prevRatio := p.prevCollapseRatio[person.ObjectID]
				var ratio float64
				collapsed, ratio = detectPersonCollapse(pose, normalHeight, prevRatio)
				p.prevCollapseRatio[person.ObjectID] = ratio
			}

			var signal gateAccidentSignal
			var inc float64
			switch {
			case iou > gateAccidentIoUStrong:
				signal, inc = signalStrongOverlap, incrementStrong
			case hist.suddenStop() && dist < gateAccidentProximityHard:
				signal, inc = signalSuddenStop, incrementStrong
			case isMoving && veryClose:
				signal, inc = signalMovingVeryClose, incrementStrong
			case isApproaching && dist < gateAccidentProximityHard:
				signal, inc = signalApproachingProx, incrementModerate
			case iou > gateAccidentIoUSoft && (isMoving || isApproaching):
				signal, inc = signalSoftOverlapMotion, incrementModerate
			case isApproaching && isMoving:
				signal, inc = signalApproachingMoving, incrementWeak
			case iou > gateAccidentIoUSoft:
				signal, inc = signalProximitySoftOverlap, incrementWeak
			default:
				continue
			}

			avgConf := (v.Confidence + person.Confidence) / 2
			if avgConf < gateAccidentMinAvgConf {
				continue
			}

			// A qualifying pair already exists at this point; a recent
			// skeleton collapse raises its increment to strong. Collapse
			// alone, with no qualifying vehicle-person pair, is never
			// enough to manufacture a candidate.
			if collapsed && recentlySeen {
				inc = incrementStrong
				signal = signal + "+skeleton_collapse"
			}

			if best == nil || inc > best.increment {
				best = &candidate{signal: signal, confidence: avgConf, bboxes: []pipeline.BBox{v.BBox, person.BBox}, increment: inc}
			}
		}
	}

	if best == nil {
		return evidence{}
	}
	return evidence{
		found:      true,
		confidence: best.confidence,
		bboxes:     best.bboxes,
		metadata:   map[string]any{"signal": string(best.signal)},
		increment:  best.increment,
	}
}

var _ pipeline.ZoneProcessor = (*OutgateProcessor)(nil)
