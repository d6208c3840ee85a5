package shareddetect

import (
	"log"

	"sentinel/internal/pipeline"
)

const poseThreshold = 0.5

type rawPose struct {
	Confidence float64     `json:"confidence"`
	BBox       []float64   `json:"bbox"`
	TrackID    *int        `json:"track_id,omitempty"`
	Keypoints  [][3]float64 `json:"keypoints"` // [x,y,visibility] x17
}

// PoseDetector emits 17-point COCO keypoints; if the model-native track
// ids are absent, assigns negative pseudo-ids later aligned by the zone
// processor via bbox IoU (spec.md §4.2, §3).
type PoseDetector struct {
	endpoint string
	client   *inferenceClient
}

// NewPoseDetector constructs the pose detector.
func NewPoseDetector(endpoint string, logger *log.Logger) *PoseDetector {
	return &PoseDetector{endpoint: endpoint, client: newInferenceClient(endpoint, logger)}
}

// Detect returns poses at or above the fixed 0.5 confidence threshold.
func (d *PoseDetector) Detect(frameJPEG []byte) []pipeline.Pose {
	raw, err := d.detectRaw(frameJPEG)
	if err != nil {
		return nil
	}

	out := make([]pipeline.Pose, 0, len(raw))
	pseudoID := -1
	for _, r := range raw {
		if r.Confidence < poseThreshold || len(r.BBox) != 4 {
			continue
		}
		var kps [17]pipeline.Keypoint
		for i := 0; i < 17 && i < len(r.Keypoints); i++ {
			kps[i] = pipeline.Keypoint{X: r.Keypoints[i][0], Y: r.Keypoints[i][1], Visibility: r.Keypoints[i][2]}
		}

		trackID := r.TrackID
		if trackID == nil {
			id := pseudoID
			pseudoID--
			trackID = &id
		}

		out = append(out, pipeline.Pose{
			TrackID:    trackID,
			BBox:       pipeline.BBox{X1: r.BBox[0], Y1: r.BBox[1], X2: r.BBox[2], Y2: r.BBox[3]},
			Confidence: r.Confidence,
			Keypoints:  kps,
		})
	}
	return out
}

func (d *PoseDetector) detectRaw(frameJPEG []byte) ([]rawPose, error) {
	raw, err := d.client.inferPoses(frameJPEG)
	if err != nil {
		return nil, err
	}
	return raw, nil
}
