package shareddetect

import (
	"log"

	"sentinel/internal/pipeline"
)

const fireSmokeThreshold = 0.45

// FireSmokeDetector is a single-model, threshold-only shared detector: no
// fallback if the model is missing (spec.md §4.2).
type FireSmokeDetector struct {
	client *inferenceClient
}

// NewFireSmokeDetector constructs the fire/smoke detector.
func NewFireSmokeDetector(endpoint string, logger *log.Logger) *FireSmokeDetector {
	return &FireSmokeDetector{client: newInferenceClient(endpoint, logger)}
}

// Detect returns findings at or above the fixed 0.45 confidence threshold.
func (d *FireSmokeDetector) Detect(frameJPEG []byte) []pipeline.FireSmokeFinding {
	raw, err := d.client.infer(frameJPEG)
	if err != nil {
		return nil
	}

	out := make([]pipeline.FireSmokeFinding, 0, len(raw))
	for _, r := range raw {
		if r.Confidence < fireSmokeThreshold || len(r.BBox) != 4 {
			continue
		}
		out = append(out, pipeline.FireSmokeFinding{
			ClassName:  r.Class,
			Confidence: r.Confidence,
			BBox:       pipeline.BBox{X1: r.BBox[0], Y1: r.BBox[1], X2: r.BBox[2], Y2: r.BBox[3]},
		})
	}
	return out
}
