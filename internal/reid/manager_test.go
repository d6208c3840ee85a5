package reid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/pipeline"
)

type fakeEmbedder struct {
	embedding []float64
}

func (f *fakeEmbedder) Embed(frameJPEG []byte, box pipeline.BBox) ([]float64, bool, error) {
	return f.embedding, false, nil
}

func TestManager_Enrich_SetsGlobalPersonIDAndCrossCameraMetadata(t *testing.T) {
	gallery := NewGallery()
	now := time.Now()
	gallery.MatchOrRegister([]float64{1, 0, 0}, "cam1", now)

	mgr := NewManager(&fakeEmbedder{embedding: []float64{1, 0, 0}}, gallery)
	event := &pipeline.FormattedEvent{CameraID: "cam2", SeverityScore: 0.5}

	err := mgr.Enrich(event, []byte("frame"), pipeline.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}, now.Add(time.Second))
	require.NoError(t, err)
	require.NotNil(t, event.GlobalPersonID)
	assert.Equal(t, true, event.Metadata["cross_camera"])
	assert.Greater(t, event.SeverityScore, 0.5)
}

func TestManager_Enrich_FirstSightingNoCrossCameraBoost(t *testing.T) {
	gallery := NewGallery()
	mgr := NewManager(&fakeEmbedder{embedding: []float64{1, 0, 0}}, gallery)
	event := &pipeline.FormattedEvent{CameraID: "cam1", SeverityScore: 0.5}

	err := mgr.Enrich(event, []byte("frame"), pipeline.BBox{X1: 0, Y1: 0, X2: 10, Y2: 10}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, false, event.Metadata["cross_camera"])
	assert.Equal(t, 0.5, event.SeverityScore)
}
