package broadcast

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentinel/internal/pipeline"
)

func TestHub_BroadcastEvent_ReachesSubscribedClient(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(NewHandler(hub))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events/cam1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Give the server goroutine time to register the connection.
	deadline := time.Now().Add(2 * time.Second)
	for !hub.HasClients("cam1") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, hub.HasClients("cam1"))

	hub.BroadcastEvent(&pipeline.FormattedEvent{
		EventID:   "ev1",
		CameraID:  "cam1",
		EventType: pipeline.EventFight,
		Zone:      pipeline.ZoneCorridor,
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"event_id\":\"ev1\"")
	assert.Contains(t, string(data), "\"camera_id\":\"cam1\"")
}

func TestHub_BroadcastEvent_NoClientsIsNoOp(t *testing.T) {
	hub := NewHub(nil)
	hub.BroadcastEvent(&pipeline.FormattedEvent{EventID: "ev1", CameraID: "cam-none"})
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHub_Subscribe_ForwardsBusEvents(t *testing.T) {
	hub := NewHub(nil)
	srv := httptest.NewServer(NewHandler(hub))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events/cam2"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	bus := pipeline.NewEventBus()
	unsubscribe := hub.Subscribe(bus)
	defer unsubscribe()

	deadline := time.Now().Add(2 * time.Second)
	for !hub.HasClients("cam2") && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.True(t, hub.HasClients("cam2"))

	bus.Publish(&pipeline.FormattedEvent{EventID: "ev2", CameraID: "cam2", EventType: pipeline.EventWeaponDetected})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "\"event_id\":\"ev2\"")
}
