// Package sink implements the outbound event sink client (spec.md §6):
// an HTTP POST of one FormattedEvent per call, JSON body, 5-second
// timeout, log-and-continue on failure.
package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"sentinel/internal/pipeline"
)

const postTimeout = 5 * time.Second

// Client posts FormattedEvents to the configured backend URL.
type Client struct {
	url    string
	client *http.Client
	logger *log.Logger
}

// New constructs a sink Client. An empty url makes Post a no-op that
// always succeeds, matching the "config fetch failure → no cameras, log
// and continue" posture applied to the outbound side as well.
func New(url string, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		url:    url,
		client: &http.Client{Timeout: postTimeout},
		logger: logger,
	}
}

// payload mirrors spec.md §6's outbound event sink schema exactly.
type payload struct {
	EventID         string          `json:"event_id"`
	TenantID        string          `json:"tenant_id"`
	CameraID        string          `json:"camera_id"`
	Zone            string          `json:"zone"`
	EventType       string          `json:"event_type"`
	Confidence      float64         `json:"confidence"`
	Timestamp       float64         `json:"timestamp"`
	BoundingBoxes   [][4]float64    `json:"bounding_boxes"`
	SeverityScore   float64         `json:"severity_score"`
	Metadata        map[string]any  `json:"metadata"`
	GlobalPersonID  *int            `json:"global_person_id"`
	AfterHours      bool            `json:"after_hours"`
	DetectedByZone  string          `json:"detected_by_zone,omitempty"`
}

func toPayload(event pipeline.FormattedEvent) payload {
	boxes := make([][4]float64, 0, len(event.BoundingBoxes))
	for _, b := range event.BoundingBoxes {
		boxes = append(boxes, [4]float64{b.X1, b.Y1, b.X2, b.Y2})
	}
	var detectedByZone string
	if event.DetectedByZone != "" {
		detectedByZone = string(event.DetectedByZone)
	}
	return payload{
		EventID:        event.EventID,
		TenantID:       event.TenantID,
		CameraID:       event.CameraID,
		Zone:           string(event.Zone),
		EventType:      string(event.EventType),
		Confidence:     event.Confidence,
		Timestamp:      float64(event.Timestamp.UnixNano()) / 1e9,
		BoundingBoxes:  boxes,
		SeverityScore:  event.SeverityScore,
		Metadata:       event.Metadata,
		GlobalPersonID: event.GlobalPersonID,
		AfterHours:     event.AfterHours,
		DetectedByZone: detectedByZone,
	}
}

// Post sends one event to the configured backend URL. Connection and
// timeout failures are returned to the caller (a worker), which logs and
// continues rather than crashing its loop (spec.md §7).
func (c *Client) Post(event pipeline.FormattedEvent) error {
	if c.url == "" {
		return nil
	}

	body, err := json.Marshal(toPayload(event))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("sink returned status %d", resp.StatusCode)
	}
	return nil
}

var _ interface {
	Post(pipeline.FormattedEvent) error
} = (*Client)(nil)
