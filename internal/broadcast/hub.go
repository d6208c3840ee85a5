// Package broadcast forwards events published on a pipeline.EventBus
// out to WebSocket clients subscribed to a single camera's feed.
package broadcast

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sentinel/internal/pipeline"
)

// EventMessage is the wire shape delivered to each WebSocket client.
type EventMessage struct {
	EventID        string         `json:"event_id"`
	CameraID       string         `json:"camera_id"`
	Zone           string         `json:"zone"`
	EventType      string         `json:"event_type"`
	Confidence     float64        `json:"confidence"`
	Timestamp      int64          `json:"timestamp_unix_ms"`
	BoundingBoxes  [][4]float64   `json:"bounding_boxes"`
	SeverityScore  float64        `json:"severity_score"`
	AfterHours     bool           `json:"after_hours"`
	GlobalPersonID *int           `json:"global_person_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

func toMessage(ev *pipeline.FormattedEvent) *EventMessage {
	boxes := make([][4]float64, 0, len(ev.BoundingBoxes))
	for _, b := range ev.BoundingBoxes {
		boxes = append(boxes, [4]float64{b.X1, b.Y1, b.X2, b.Y2})
	}
	return &EventMessage{
		EventID:        ev.EventID,
		CameraID:       ev.CameraID,
		Zone:           string(ev.Zone),
		EventType:      string(ev.EventType),
		Confidence:     ev.Confidence,
		Timestamp:      ev.Timestamp.UnixMilli(),
		BoundingBoxes:  boxes,
		SeverityScore:  ev.SeverityScore,
		AfterHours:     ev.AfterHours,
		GlobalPersonID: ev.GlobalPersonID,
		Metadata:       ev.Metadata,
	}
}

// Hub manages WebSocket connections for real-time event streaming,
// one registration set per camera (spec.md §2 data flow's final
// "alert broadcast" hop).
type Hub struct {
	clients map[string]map[*websocket.Conn]bool
	mu      sync.RWMutex
	logger  *log.Logger
}

// NewHub constructs an empty Hub.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		clients: make(map[string]map[*websocket.Conn]bool),
		logger:  logger,
	}
}

// Register adds a connection for a specific camera.
func (h *Hub) Register(cameraID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.clients[cameraID] == nil {
		h.clients[cameraID] = make(map[*websocket.Conn]bool)
	}
	h.clients[cameraID][conn] = true
	h.logger.Printf("[broadcast] client registered for camera %s (total: %d)", cameraID, len(h.clients[cameraID]))
}

// Unregister removes a connection for a specific camera.
func (h *Hub) Unregister(cameraID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conns, ok := h.clients[cameraID]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(h.clients, cameraID)
		}
	}
}

// HasClients reports whether any client is connected for cameraID.
func (h *Hub) HasClients(cameraID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	conns, ok := h.clients[cameraID]
	return ok && len(conns) > 0
}

// ClientCount returns the total number of connected clients across all
// cameras.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, conns := range h.clients {
		count += len(conns)
	}
	return count
}

// broadcastToCamera sends message to every client subscribed to cameraID,
// dropping and unregistering any connection that errors on write.
func (h *Hub) broadcastToCamera(cameraID string, message []byte) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients[cameraID]))
	for c := range h.clients[cameraID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Printf("[broadcast] write error for camera %s: %v", cameraID, err)
			h.Unregister(cameraID, conn)
			conn.Close()
		}
	}
}

// BroadcastEvent sends one formatted event to cameraID's subscribers.
func (h *Hub) BroadcastEvent(ev *pipeline.FormattedEvent) {
	if !h.HasClients(ev.CameraID) {
		return
	}
	data, err := json.Marshal(toMessage(ev))
	if err != nil {
		h.logger.Printf("[broadcast] marshal error: %v", err)
		return
	}
	h.broadcastToCamera(ev.CameraID, data)
}

// Subscribe wires this Hub up as an EventBus handler: every published
// event is forwarded to that camera's WebSocket clients.
func (h *Hub) Subscribe(bus *pipeline.EventBus) func() {
	return bus.Subscribe(h)
}

// OnEvent implements pipeline.EventHandler.
func (h *Hub) OnEvent(event *pipeline.FormattedEvent) {
	h.BroadcastEvent(event)
}
