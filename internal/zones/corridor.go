package zones

import (
	"time"

	"sentinel/internal/pipeline"
)

const (
	corridorCrowdMinPersons  = 4
	corridorCrowdMaxSpread   = 160.0
	corridorFightWristSpeed  = 25.0
	corridorFightProximity   = 130.0
	corridorFightIoU         = 0.10
	corridorFightMinFrames   = 3
	corridorFightSuspicion   = 0.6
	corridorFightMinAvgConf  = 0.5
	// fightIncrement is not pinned to a specific value by the source
	// behavior spec; 0.20 matches the magnitude of the other zones'
	// per-frame suspicion increments for a 3-frame/0.6-threshold gate.
	fightIncrement = 0.20
)

// CorridorProcessor implements the corridor zone: crowd_formation and
// fight, plus the shared weapon and fire/smoke sub-detectors (spec.md
// §4.4.2).
type CorridorProcessor struct {
	base
	poses *poseHistory
}

// NewCorridorProcessor constructs the corridor zone processor.
func NewCorridorProcessor() *CorridorProcessor {
	return &CorridorProcessor{base: newBase(pipeline.ZoneCorridor), poses: newPoseHistory()}
}

// ProcessFrame implements pipeline.ZoneProcessor.
func (p *CorridorProcessor) ProcessFrame(meta pipeline.FrameMetadata, objects []pipeline.TrackedObject, shared *pipeline.SharedFindings) []pipeline.DetectionEvent {
	now := meta.Timestamp
	p.temporal.Push(meta, objects)
	persons := personsOf(objects, personClass)
	posesByTrack := alignPosesWithTracks(shared.SafePoses(), objects)

	var out []pipeline.DetectionEvent
	if ev := p.processSharedWeapons(shared, persons, now); ev != nil {
		out = append(out, *ev)
	}
	if ev := p.processSharedFireSmoke(shared, now); ev != nil {
		out = append(out, *ev)
	}
	if ev := p.runCrowdFormation(persons, crowdParams{
		minPersons:         corridorCrowdMinPersons,
		maxSpread:          corridorCrowdMaxSpread,
		sustainedDuration:  2 * time.Second,
		suspicionThreshold: 0.6,
		increment:          0.12,
	}, pipeline.DefaultCooldowns()[pipeline.EventCrowdFormation], now); ev != nil {
		out = append(out, *ev)
	}
	if ev := p.runFight(persons, posesByTrack, p.poses, fightParams{
		wristSpeedThreshold: corridorFightWristSpeed,
		proximity:           corridorFightProximity,
		iouThreshold:        corridorFightIoU,
		minFrames:           corridorFightMinFrames,
		suspicionThreshold:  corridorFightSuspicion,
		increment:           fightIncrement,
		minAvgConfidence:    corridorFightMinAvgConf,
	}, pipeline.DefaultCooldowns()[pipeline.EventFight], now); ev != nil {
		out = append(out, *ev)
	}
	return out
}

var _ pipeline.ZoneProcessor = (*CorridorProcessor)(nil)
