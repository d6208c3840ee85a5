package reid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGallery_MatchOrRegister_NewEntryOnFirstSighting(t *testing.T) {
	g := NewGallery()
	now := time.Now()
	id, sim := g.MatchOrRegister([]float64{1, 0, 0}, "cam1", now)
	assert.Equal(t, 1, id)
	assert.Equal(t, 0.0, sim)
}

func TestGallery_MatchOrRegister_MatchesSimilarEmbeddingAboveThreshold(t *testing.T) {
	g := NewGallery()
	now := time.Now()
	id1, _ := g.MatchOrRegister([]float64{1, 0, 0}, "cam1", now)
	id2, sim := g.MatchOrRegister([]float64{0.99, 0.01, 0}, "cam2", now.Add(time.Second))
	require.Equal(t, id1, id2)
	assert.Greater(t, sim, 0.65)
}

func TestGallery_MatchOrRegister_DissimilarEmbeddingRegistersNewID(t *testing.T) {
	g := NewGallery()
	now := time.Now()
	id1, _ := g.MatchOrRegister([]float64{1, 0, 0}, "cam1", now)
	id2, _ := g.MatchOrRegister([]float64{0, 1, 0}, "cam2", now.Add(time.Second))
	assert.NotEqual(t, id1, id2)
}

func TestGallery_CrossCamera_TrueAfterTwoDistinctCameras(t *testing.T) {
	g := NewGallery()
	now := time.Now()
	id, _ := g.MatchOrRegister([]float64{1, 0, 0}, "cam1", now)
	g.MatchOrRegister([]float64{1, 0, 0}, "cam2", now.Add(time.Second))

	cross, cams := g.CrossCamera(id)
	assert.True(t, cross)
	assert.ElementsMatch(t, []string{"cam1", "cam2"}, cams)
}

func TestGallery_EntriesExpireAfterTTL(t *testing.T) {
	g := NewGallery()
	now := time.Now()
	id1, _ := g.MatchOrRegister([]float64{1, 0, 0}, "cam1", now)

	// After TTL elapses, the same embedding must register as a new id
	// rather than matching the expired entry.
	id2, sim := g.MatchOrRegister([]float64{1, 0, 0}, "cam1", now.Add(defaultGalleryTTL+time.Second))
	assert.NotEqual(t, id1, id2)
	assert.Equal(t, 0.0, sim)
}

func TestSeverityBoost_ClampsToOne(t *testing.T) {
	assert.InDelta(t, 1.0, SeverityBoost(0.9, true), 0.001)
	assert.InDelta(t, 0.5, SeverityBoost(0.5, false), 0.001)
}
