package zones

import (
	"math"

	"sentinel/internal/pipeline"
)

const poseAlignIoU = 0.3

// alignPosesWithTracks maps each pose to the tracked object whose bbox it
// overlaps best (IoU > poseAlignIoU), used when the pose model does not
// emit native track ids matching the general tracker's ids (spec.md §4.2,
// §3). Returns a map from TrackedObject.ObjectID to the aligned Pose.
func alignPosesWithTracks(poses []pipeline.Pose, objects []pipeline.TrackedObject) map[int]pipeline.Pose {
	out := make(map[int]pipeline.Pose, len(poses))
	for _, p := range poses {
		bestIoU := poseAlignIoU
		bestID := -1
		found := false
		for _, o := range objects {
			iou := p.BBox.IoU(o.BBox)
			if iou > bestIoU {
				bestIoU = iou
				bestID = o.ObjectID
				found = true
			}
		}
		if found {
			out[bestID] = p
		}
	}
	return out
}

// collapseNormalHeight is a crude per-scene estimate of standing head-to-
// ankle height, derived from the tallest currently-tracked person bbox;
// good enough as a baseline against which a collapsed pose's height ratio
// is compared (spec.md §4.4.1 skeleton-collapse support).
func collapseNormalHeight(objects []pipeline.TrackedObject, personClass string) float64 {
	var maxH float64
	for _, o := range objects {
		if o.Class != personClass {
			continue
		}
		if h := o.BBox.Height(); h > maxH {
			maxH = h
		}
	}
	return maxH
}

// detectPersonCollapse implements spec.md §4.4.1's skeleton-collapse
// heuristic: collapsed=true when body height (head→ankle) falls under
// 40% of the estimated normal height, OR head-to-hip distance is under
// 30px, OR the shoulders are at or below the hips, OR the height ratio
// has dropped more than 0.3 versus the previous frame's ratio.
func detectPersonCollapse(p pipeline.Pose, normalHeight float64, prevRatio float64) (collapsed bool, ratio float64) {
	nose := p.Keypoints[pipeline.KeypointNose]
	lShoulder, rShoulder := p.Keypoints[pipeline.KeypointLeftShoulder], p.Keypoints[pipeline.KeypointRightShoulder]
	lHip, rHip := p.Keypoints[pipeline.KeypointLeftHip], p.Keypoints[pipeline.KeypointRightHip]
	lAnkle, rAnkle := p.Keypoints[pipeline.KeypointLeftAnkle], p.Keypoints[pipeline.KeypointRightAnkle]

	shoulderY := (lShoulder.Y + rShoulder.Y) / 2
	hipY := (lHip.Y + rHip.Y) / 2
	ankleY := (lAnkle.Y + rAnkle.Y) / 2

	bodyHeight := math.Abs(ankleY - nose.Y)
	if normalHeight > 0 {
		ratio = bodyHeight / normalHeight
		if ratio < 0.4 {
			return true, ratio
		}
	}

	headHipDist := math.Hypot((lHip.X+rHip.X)/2-nose.X, hipY-nose.Y)
	if headHipDist < 30 {
		return true, ratio
	}

	if shoulderY >= hipY {
		return true, ratio
	}

	if prevRatio > 0 && ratio > 0 && prevRatio-ratio > 0.3 {
		return true, ratio
	}

	return false, ratio
}

// torsoAngleFallen implements school_ground's fall_detected method A: the
// torso angle from vertical (shoulder-to-hip vector), fallen if < 45°.
func torsoAngleFallen(p pipeline.Pose) bool {
	lShoulder, rShoulder := p.Keypoints[pipeline.KeypointLeftShoulder], p.Keypoints[pipeline.KeypointRightShoulder]
	lHip, rHip := p.Keypoints[pipeline.KeypointLeftHip], p.Keypoints[pipeline.KeypointRightHip]

	sx, sy := (lShoulder.X+rShoulder.X)/2, (lShoulder.Y+rShoulder.Y)/2
	hx, hy := (lHip.X+rHip.X)/2, (lHip.Y+rHip.Y)/2

	dx, dy := hx-sx, hy-sy
	if dx == 0 && dy == 0 {
		return false
	}
	// Angle from vertical: 0 means perfectly upright.
	angle := math.Atan2(math.Abs(dx), math.Abs(dy)) * 180 / math.Pi
	return angle < 45
}

// wristSpeed computes the mean Δ of keypoints 9 and 10 (wrists) between
// two consecutive pose samples of the same person, in px/frame.
func wristSpeed(prev, cur pipeline.Pose) float64 {
	lw := math.Hypot(cur.Keypoints[pipeline.KeypointLeftWrist].X-prev.Keypoints[pipeline.KeypointLeftWrist].X,
		cur.Keypoints[pipeline.KeypointLeftWrist].Y-prev.Keypoints[pipeline.KeypointLeftWrist].Y)
	rw := math.Hypot(cur.Keypoints[pipeline.KeypointRightWrist].X-prev.Keypoints[pipeline.KeypointRightWrist].X,
		cur.Keypoints[pipeline.KeypointRightWrist].Y-prev.Keypoints[pipeline.KeypointRightWrist].Y)
	return (lw + rw) / 2
}
