package afterhours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/pipeline"
)

func window(startH, startM, endH, endM int) Window {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return Window{
		Start: base.Add(time.Duration(startH)*time.Hour + time.Duration(startM)*time.Minute),
		End:   base.Add(time.Duration(endH)*time.Hour + time.Duration(endM)*time.Minute),
	}
}

func TestFilter_IsAfterHoursOutsideWindow(t *testing.T) {
	f := NewFilter(pipeline.ZoneCorridor, window(8, 0, 18, 0))
	at := func(h, m int) time.Time { return time.Date(2026, 1, 1, h, m, 0, 0, time.UTC) }

	assert.False(t, f.IsAfterHours(at(9, 0)))
	assert.False(t, f.IsAfterHours(at(8, 0)))
	assert.False(t, f.IsAfterHours(at(18, 0)))
	assert.True(t, f.IsAfterHours(at(22, 0)))
	assert.True(t, f.IsAfterHours(at(3, 0)))
}

func TestFilter_Apply_BoostsConfidenceAndSynthesizesIntrusion(t *testing.T) {
	f := NewFilter(pipeline.ZoneCorridor, window(8, 0, 18, 0))
	ts := time.Date(2026, 1, 1, 22, 0, 0, 0, time.UTC)

	events := []pipeline.DetectionEvent{
		{EventType: pipeline.EventFight, Confidence: 0.6, BoundingBoxes: []pipeline.BBox{{X1: 0, Y1: 0, X2: 10, Y2: 10}}},
	}
	out := f.Apply(events, ts)

	require.Len(t, out, 2)
	assert.InDelta(t, 0.9, out[0].Confidence, 0.001)
	assert.Equal(t, true, out[0].Metadata["after_hours"])

	var intrusion *pipeline.DetectionEvent
	for i := range out {
		if out[i].EventType == pipeline.EventAfterHoursIntrusion {
			intrusion = &out[i]
		}
	}
	require.NotNil(t, intrusion)
	assert.InDelta(t, 0.90, intrusion.Confidence, 0.001)
}

func TestFilter_Apply_ClampsConfidenceToOne(t *testing.T) {
	f := NewFilter(pipeline.ZoneCorridor, window(8, 0, 18, 0))
	ts := time.Date(2026, 1, 1, 22, 0, 0, 0, time.UTC)
	events := []pipeline.DetectionEvent{{EventType: pipeline.EventFight, Confidence: 0.9}}
	out := f.Apply(events, ts)
	assert.Equal(t, 1.0, out[0].Confidence)
}

func TestFilter_Apply_NoSynthesisOutsideRestrictedZone(t *testing.T) {
	f := NewFilter(pipeline.ZoneOutgate, window(8, 0, 18, 0))
	ts := time.Date(2026, 1, 1, 22, 0, 0, 0, time.UTC)
	events := []pipeline.DetectionEvent{{EventType: pipeline.EventGateAccident, Confidence: 0.5}}
	out := f.Apply(events, ts)
	require.Len(t, out, 1)
}

func TestFilter_Apply_NoSynthesisDuringOperatingHours(t *testing.T) {
	f := NewFilter(pipeline.ZoneCorridor, window(8, 0, 18, 0))
	ts := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	events := []pipeline.DetectionEvent{{EventType: pipeline.EventFight, Confidence: 0.6}}
	out := f.Apply(events, ts)
	require.Len(t, out, 1)
	assert.Equal(t, false, out[0].Metadata["after_hours"])
}
