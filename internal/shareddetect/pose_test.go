package shareddetect

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoseDetector_AssignsPseudoIDsWhenTrackIDMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kps := make([][3]float64, 17)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"poses": []map[string]any{
				{"confidence": 0.9, "bbox": []float64{0, 0, 50, 100}, "keypoints": kps},
				{"confidence": 0.8, "bbox": []float64{60, 0, 110, 100}, "keypoints": kps},
			},
		})
	}))
	defer srv.Close()

	d := NewPoseDetector(srv.URL, nil)
	out := d.Detect([]byte("frame"))
	require.Len(t, out, 2)
	require.NotNil(t, out[0].TrackID)
	require.NotNil(t, out[1].TrackID)
	require.NotEqual(t, *out[0].TrackID, *out[1].TrackID)
	require.Less(t, *out[0].TrackID, 0)
}

func TestPoseDetector_FiltersBelowThresholdAndMalformedBBox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kps := make([][3]float64, 17)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"poses": []map[string]any{
				{"confidence": 0.3, "bbox": []float64{0, 0, 50, 100}, "keypoints": kps},
				{"confidence": 0.9, "bbox": []float64{0, 0, 50}, "keypoints": kps},
			},
		})
	}))
	defer srv.Close()

	d := NewPoseDetector(srv.URL, nil)
	out := d.Detect([]byte("frame"))
	require.Empty(t, out)
}
