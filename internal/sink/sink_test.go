package sink

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/pipeline"
)

func TestClient_Post_SendsExpectedSchema(t *testing.T) {
	var got payload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	personID := 7
	event := pipeline.FormattedEvent{
		EventID:        "evt_fight_123",
		TenantID:       "t1",
		CameraID:       "cam1",
		Zone:           pipeline.ZoneCorridor,
		EventType:      pipeline.EventFight,
		Confidence:     0.9,
		Timestamp:      time.Unix(1700000000, 0),
		BoundingBoxes:  []pipeline.BBox{{X1: 1, Y1: 2, X2: 3, Y2: 4}},
		SeverityScore:  0.9,
		Metadata:       map[string]any{"source": "pose"},
		GlobalPersonID: &personID,
		AfterHours:     true,
	}

	c := New(srv.URL, nil)
	err := c.Post(event)
	require.NoError(t, err)

	assert.Equal(t, "evt_fight_123", got.EventID)
	assert.Equal(t, "corridor", got.Zone)
	assert.Equal(t, "fight", got.EventType)
	assert.True(t, got.AfterHours)
	require.NotNil(t, got.GlobalPersonID)
	assert.Equal(t, 7, *got.GlobalPersonID)
	require.Len(t, got.BoundingBoxes, 1)
	assert.Equal(t, [4]float64{1, 2, 3, 4}, got.BoundingBoxes[0])
}

func TestClient_Post_ErrorStatusReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	err := c.Post(pipeline.FormattedEvent{EventType: pipeline.EventFight})
	assert.Error(t, err)
}

func TestClient_Post_EmptyURLIsNoOp(t *testing.T) {
	c := New("", nil)
	err := c.Post(pipeline.FormattedEvent{EventType: pipeline.EventFight})
	assert.NoError(t, err)
}
