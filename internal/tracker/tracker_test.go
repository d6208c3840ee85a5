package tracker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/pipeline"
)

func det(class string, x float64) pipeline.Detection {
	return pipeline.Detection{Class: class, Confidence: 0.9, BBox: pipeline.BBox{X1: x, Y1: 0, X2: x + 20, Y2: 20}}
}

func TestCentroidTracker_IdentityStabilityUnderSmallMotion(t *testing.T) {
	tr := NewCentroidTracker()
	now := time.Now()

	objs := tr.Update([]pipeline.Detection{det("person", 0)}, pipeline.FrameMetadata{Timestamp: now})
	require.Len(t, objs, 1)
	id := objs[0].ObjectID

	for i := 1; i <= 5; i++ {
		objs = tr.Update([]pipeline.Detection{det("person", float64(i*10))}, pipeline.FrameMetadata{Timestamp: now.Add(time.Duration(i) * time.Second)})
		require.Len(t, objs, 1)
		assert.Equal(t, id, objs[0].ObjectID, "object_id must remain stable across frames with small motion")
	}
}

func TestCentroidTracker_DisappearancePurgesAndReassignsNewID(t *testing.T) {
	tr := NewCentroidTracker()
	tr.MaxDisappeared = 2
	now := time.Now()

	objs := tr.Update([]pipeline.Detection{det("car", 0)}, pipeline.FrameMetadata{Timestamp: now})
	firstID := objs[0].ObjectID

	// Three empty frames: exceeds MaxDisappeared=2, track must be purged.
	tr.Update(nil, pipeline.FrameMetadata{Timestamp: now.Add(1 * time.Second)})
	tr.Update(nil, pipeline.FrameMetadata{Timestamp: now.Add(2 * time.Second)})
	tr.Update(nil, pipeline.FrameMetadata{Timestamp: now.Add(3 * time.Second)})

	objs = tr.Update([]pipeline.Detection{det("car", 0)}, pipeline.FrameMetadata{Timestamp: now.Add(4 * time.Second)})
	require.Len(t, objs, 1)
	assert.NotEqual(t, firstID, objs[0].ObjectID, "reappearance after purge must receive a new id")
}

func TestCentroidTracker_ClassChangeForcesNewTrack(t *testing.T) {
	tr := NewCentroidTracker()
	now := time.Now()

	tr.Update([]pipeline.Detection{det("person", 0)}, pipeline.FrameMetadata{Timestamp: now})
	objs := tr.Update([]pipeline.Detection{det("car", 0)}, pipeline.FrameMetadata{Timestamp: now.Add(time.Second)})
	// Different class at same location cannot match the existing person
	// track, and the stale person track is still within max_disappeared,
	// so exactly one new car track appears.
	require.Len(t, objs, 1)
	assert.Equal(t, "car", objs[0].Class)
}

func TestCentroidTracker_BeyondMaxDistanceCreatesNewTrack(t *testing.T) {
	tr := NewCentroidTracker()
	tr.MaxDistance = 50
	now := time.Now()

	objs := tr.Update([]pipeline.Detection{det("person", 0)}, pipeline.FrameMetadata{Timestamp: now})
	firstID := objs[0].ObjectID

	objs = tr.Update([]pipeline.Detection{det("person", 1000)}, pipeline.FrameMetadata{Timestamp: now.Add(time.Second)})
	require.Len(t, objs, 1, "the unmatched stale track is not reported; only the far-away detection's new track is")
	assert.NotEqual(t, firstID, objs[0].ObjectID)
}

func TestAssociationTracker_IdentityStabilityMatchesCentroidSemantics(t *testing.T) {
	tr := NewAssociationTracker()
	now := time.Now()

	objs := tr.Update([]pipeline.Detection{det("person", 0)}, pipeline.FrameMetadata{Timestamp: now})
	id := objs[0].ObjectID

	for i := 1; i <= 3; i++ {
		objs = tr.Update([]pipeline.Detection{det("person", float64(i*10))}, pipeline.FrameMetadata{Timestamp: now.Add(time.Duration(i) * time.Second)})
		require.Len(t, objs, 1)
		assert.Equal(t, id, objs[0].ObjectID)
	}
}

func TestAssociationTracker_MultiObjectOptimalAssignmentAvoidsCrossedTracks(t *testing.T) {
	tr := NewAssociationTracker()
	now := time.Now()

	// Two persons side by side.
	objs := tr.Update([]pipeline.Detection{det("person", 0), det("person", 200)}, pipeline.FrameMetadata{Timestamp: now})
	require.Len(t, objs, 2)
	var leftID, rightID int
	for _, o := range objs {
		if o.BBox.X1 < 100 {
			leftID = o.ObjectID
		} else {
			rightID = o.ObjectID
		}
	}

	// Both drift slightly toward each other but do not cross: nearest-cost
	// assignment must keep left->left, right->right.
	objs = tr.Update([]pipeline.Detection{det("person", 10), det("person", 190)}, pipeline.FrameMetadata{Timestamp: now.Add(time.Second)})
	require.Len(t, objs, 2)
	for _, o := range objs {
		if o.BBox.X1 < 100 {
			assert.Equal(t, leftID, o.ObjectID)
		} else {
			assert.Equal(t, rightID, o.ObjectID)
		}
	}
}
