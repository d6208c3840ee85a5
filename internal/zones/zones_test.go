package zones

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/pipeline"
)

func meta(t time.Time) pipeline.FrameMetadata {
	return pipeline.FrameMetadata{CameraID: "cam1", Timestamp: t, Width: 1920, Height: 1080}
}

func track(id int, class string, x1, y1, x2, y2, conf float64) pipeline.TrackedObject {
	return pipeline.TrackedObject{ObjectID: id, Class: class, Confidence: conf, BBox: pipeline.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2}}
}

func TestOutgateProcessor_VehicleDetectedRequiresTwoFramesAndConfidence(t *testing.T) {
	p := NewOutgateProcessor()
	base := time.Now()

	objects := []pipeline.TrackedObject{track(1, vehicleClass, 0, 0, 50, 30, 0.5)}
	got1 := p.ProcessFrame(meta(base), objects, &pipeline.SharedFindings{})
	assertNoEventType(t, got1, pipeline.EventVehicleDetected)

	got2 := p.ProcessFrame(meta(base.Add(time.Second)), objects, &pipeline.SharedFindings{})
	assertHasEventType(t, got2, pipeline.EventVehicleDetected)
}

func TestOutgateProcessor_VehicleBelowConfidenceNeverFires(t *testing.T) {
	p := NewOutgateProcessor()
	base := time.Now()
	objects := []pipeline.TrackedObject{track(1, vehicleClass, 0, 0, 50, 30, 0.2)}
	for i := 0; i < 5; i++ {
		got := p.ProcessFrame(meta(base.Add(time.Duration(i)*time.Second)), objects, &pipeline.SharedFindings{})
		assertNoEventType(t, got, pipeline.EventVehicleDetected)
	}
}

func TestCorridorProcessor_CrowdFormationRequiresSustainedDuration(t *testing.T) {
	p := NewCorridorProcessor()
	base := time.Now()
	persons := []pipeline.TrackedObject{
		track(1, personClass, 0, 0, 20, 40, 0.9),
		track(2, personClass, 10, 0, 30, 40, 0.9),
		track(3, personClass, 20, 0, 40, 40, 0.9),
		track(4, personClass, 30, 0, 50, 40, 0.9),
	}

	// increment 0.12/frame needs 5 frames to clear the 0.6 suspicion gate;
	// sustained duration (2s) clears well before that at 1s/frame.
	var last []pipeline.DetectionEvent
	for i := 0; i < 5; i++ {
		last = p.ProcessFrame(meta(base.Add(time.Duration(i)*time.Second)), persons, &pipeline.SharedFindings{})
		if i < 4 {
			assertNoEventType(t, last, pipeline.EventCrowdFormation)
		}
	}
	assertHasEventType(t, last, pipeline.EventCrowdFormation)
}

func TestCorridorProcessor_CrowdFormationRejectsSpreadTooWide(t *testing.T) {
	p := NewCorridorProcessor()
	base := time.Now()
	persons := []pipeline.TrackedObject{
		track(1, personClass, 0, 0, 20, 40, 0.9),
		track(2, personClass, 1000, 0, 1020, 40, 0.9),
		track(3, personClass, 2000, 0, 2020, 40, 0.9),
		track(4, personClass, 3000, 0, 3020, 40, 0.9),
	}
	for i := 0; i < 5; i++ {
		got := p.ProcessFrame(meta(base.Add(time.Duration(i)*time.Second)), persons, &pipeline.SharedFindings{})
		assertNoEventType(t, got, pipeline.EventCrowdFormation)
	}
}

func TestClassroomProcessor_MobileUsageDetectsOverlapAboveUpperBody(t *testing.T) {
	p := NewClassroomProcessor()
	base := time.Now()
	objects := []pipeline.TrackedObject{
		track(1, personClass, 0, 0, 100, 200, 0.9),
		track(2, phoneClass, 10, 5, 45, 35, 0.9),
	}
	// increment 0.15/frame needs 4 frames to clear the 0.6 suspicion gate;
	// sustained duration (1.5s) clears well before that at 1s/frame.
	var lastGot []pipeline.DetectionEvent
	for i := 0; i < 4; i++ {
		lastGot = p.ProcessFrame(meta(base.Add(time.Duration(i)*time.Second)), objects, &pipeline.SharedFindings{})
	}
	assertHasEventType(t, lastGot, pipeline.EventMobileUsage)
}

func TestClassroomProcessor_MobileUsageIgnoresPhoneOutsidePersonBox(t *testing.T) {
	p := NewClassroomProcessor()
	base := time.Now()
	objects := []pipeline.TrackedObject{
		track(1, personClass, 0, 0, 100, 200, 0.9),
		track(2, phoneClass, 5000, 5000, 5020, 5020, 0.9),
	}
	for i := 0; i < 3; i++ {
		got := p.ProcessFrame(meta(base.Add(time.Duration(i)*time.Second)), objects, &pipeline.SharedFindings{})
		assertNoEventType(t, got, pipeline.EventMobileUsage)
	}
}

func TestProcessSharedWeapons_EmitsAfterTwoQualifyingFramesAboveZoneThreshold(t *testing.T) {
	p := NewCorridorProcessor() // corridor threshold 0.55
	base := time.Now()
	shared := &pipeline.SharedFindings{Weapons: []pipeline.WeaponFinding{
		{ClassName: "knife", Confidence: 0.9, BBox: pipeline.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}},
	}}

	got := p.ProcessFrame(meta(base), nil, shared)
	assertNoEventType(t, got, pipeline.EventWeaponDetected)

	got = p.ProcessFrame(meta(base.Add(time.Second)), nil, shared)
	assertHasEventType(t, got, pipeline.EventWeaponDetected)
}

func TestProcessSharedWeapons_BelowZoneThresholdNeverFires(t *testing.T) {
	p := NewCorridorProcessor() // corridor threshold 0.55
	base := time.Now()
	shared := &pipeline.SharedFindings{Weapons: []pipeline.WeaponFinding{
		{ClassName: "knife", Confidence: 0.4, BBox: pipeline.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}},
	}}
	for i := 0; i < 5; i++ {
		got := p.ProcessFrame(meta(base.Add(time.Duration(i)*time.Second)), nil, shared)
		assertNoEventType(t, got, pipeline.EventWeaponDetected)
	}
}

func TestFactory_ConstructsKnownZonesAndRejectsUnknown(t *testing.T) {
	for _, z := range []pipeline.Zone{pipeline.ZoneOutgate, pipeline.ZoneCorridor, pipeline.ZoneSchoolGround, pipeline.ZoneClassroom} {
		proc, err := NewProcessor(z)
		require.NoError(t, err)
		assert.Equal(t, z, proc.ZoneName())
	}
	_, err := NewProcessor(pipeline.Zone("bogus"))
	assert.Error(t, err)
}

func assertHasEventType(t *testing.T, events []pipeline.DetectionEvent, want pipeline.EventType) {
	t.Helper()
	for _, e := range events {
		if e.EventType == want {
			return
		}
	}
	t.Fatalf("expected event type %s in %+v", want, events)
}

func assertNoEventType(t *testing.T, events []pipeline.DetectionEvent, unwanted pipeline.EventType) {
	t.Helper()
	for _, e := range events {
		if e.EventType == unwanted {
			t.Fatalf("did not expect event type %s in %+v", unwanted, events)
		}
	}
}
