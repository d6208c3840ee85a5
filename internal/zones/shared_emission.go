package zones

import (
	"time"

	"sentinel/internal/pipeline"
)

// weaponThresholds are the per-zone base confidence thresholds applied to
// the shared weapon detector's output before the suspicion gate runs
// (spec.md §4.4, "Shared-weapon emission").
var weaponThresholds = map[pipeline.Zone]float64{
	pipeline.ZoneSchoolGround: 0.35,
	pipeline.ZoneCorridor:     0.55,
	pipeline.ZoneOutgate:      0.50,
	pipeline.ZoneClassroom:    0.50,
}

const (
	weaponMinFrames      = 2
	weaponSuspicionGate  = 0.5
	weaponIncrement      = 0.30
	weaponNearPersonDist = 200.0
	weaponCooldown       = 10 * time.Second

	fireSmokeThresholdZone = 0.45
	fireSmokeMinFrames     = 2
	fireSmokeSuspicionGate = 0.45
	fireSmokeIncrement     = 0.35
	fireSmokeCooldown      = 10 * time.Second
)

// processSharedWeapons is the shared-weapon sub-detector common to every
// zone processor (spec.md §4.4). persons is the zone's tracked person
// objects, used to find the nearest person to the chosen weapon.
func (b *base) processSharedWeapons(shared *pipeline.SharedFindings, persons []pipeline.TrackedObject, now time.Time) *pipeline.DetectionEvent {
	threshold, ok := weaponThresholds[b.zone]
	if !ok {
		threshold = 0.50
	}

	return b.runSubDetector(subDetectorParams{
		eventType: pipeline.EventWeaponDetected,
		now:       now,
		cooldown:  weaponCooldown,
		minFrames: weaponMinFrames,
		threshold: weaponSuspicionGate,
		increment: weaponIncrement,
		decay:     0,
		evidenceFunc: func() evidence {
			if shared == nil || len(shared.Weapons) == 0 {
				return evidence{}
			}
			best := shared.Weapons[0]
			for _, w := range shared.Weapons[1:] {
				if w.Confidence > best.Confidence {
					best = w
				}
			}
			if best.Confidence < threshold {
				return evidence{}
			}

			meta := map[string]any{
				"weapon_type": best.ClassName,
				"near_person": false,
				"source":      "weapon_model",
			}
			if person, dist, found := nearestPerson(best.BBox, persons); found && dist <= weaponNearPersonDist {
				meta["near_person"] = true
				meta["person_distance"] = dist
				meta["person_id"] = person.ObjectID
			}
			return evidence{found: true, confidence: best.Confidence, bboxes: []pipeline.BBox{best.BBox}, metadata: meta}
		},
	})
}

// processSharedFireSmoke is the shared-fire/smoke sub-detector common to
// every zone processor (spec.md §4.4).
func (b *base) processSharedFireSmoke(shared *pipeline.SharedFindings, now time.Time) *pipeline.DetectionEvent {
	return b.runSubDetector(subDetectorParams{
		eventType: pipeline.EventFireSmokeDetected,
		now:       now,
		cooldown:  fireSmokeCooldown,
		minFrames: fireSmokeMinFrames,
		threshold: fireSmokeSuspicionGate,
		increment: fireSmokeIncrement,
		decay:     0,
		evidenceFunc: func() evidence {
			if shared == nil || len(shared.FireSmoke) == 0 {
				return evidence{}
			}
			best := shared.FireSmoke[0]
			for _, f := range shared.FireSmoke[1:] {
				if f.Confidence > best.Confidence {
					best = f
				}
			}
			if best.Confidence < fireSmokeThresholdZone {
				return evidence{}
			}
			return evidence{
				found:      true,
				confidence: best.Confidence,
				bboxes:     []pipeline.BBox{best.BBox},
				metadata:   map[string]any{"class_name": best.ClassName, "source": "fire_smoke_model"},
			}
		},
	})
}
