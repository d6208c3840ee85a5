// Package zonedetect implements each zone's generic object detector
// (spec.md §4.1): an opaque inference endpoint resolved by the Model &
// Tracker Registry, returning the raw per-frame detections a
// DetectionPipeline hands to its tracker.
package zonedetect

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"sentinel/internal/pipeline"
	"sentinel/internal/registry"
)

const inferenceTimeout = 5 * time.Second

// Detector runs one zone's generic object-detection endpoint. Grounded
// on the same HTTP multipart-POST opaque-inference-endpoint shape as
// shareddetect's inferenceClient — the two packages don't share an
// unexported type because pipeline must not import either, and
// zonedetect must not import shareddetect (each is a leaf the pipeline
// package only knows by interface).
type Detector struct {
	endpoint string
	client   *http.Client
	logger   *log.Logger
	handle   *registry.ModelHandle
}

// New constructs a Detector for one zone. handle is consulted only for
// its Present flag (a logging signal); the endpoint itself is the
// opaque inference backend named by spec.md §1.
func New(endpoint string, handle *registry.ModelHandle, logger *log.Logger) *Detector {
	if logger == nil {
		logger = log.Default()
	}
	if handle != nil && !handle.Present {
		logger.Printf("zonedetect: model %q not found on disk, relying solely on inference endpoint %q", handle.Path, endpoint)
	}
	return &Detector{
		endpoint: endpoint,
		client:   &http.Client{Timeout: inferenceTimeout},
		logger:   logger,
		handle:   handle,
	}
}

type rawDetection struct {
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"`
}

// Detect posts frameJPEG to the zone's detection endpoint and returns the
// decoded detections. An empty endpoint or any transport/decode failure
// yields an empty slice rather than propagating an error — generic
// detection failures are treated the same as "nothing detected this
// frame" by every downstream consumer.
func (d *Detector) Detect(frameJPEG []byte, meta pipeline.FrameMetadata) []pipeline.Detection {
	if d.endpoint == "" {
		return nil
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(header)
	if err != nil {
		d.logger.Printf("zonedetect: %v", err)
		return nil
	}
	if _, err := part.Write(frameJPEG); err != nil {
		d.logger.Printf("zonedetect: %v", err)
		return nil
	}
	if err := w.Close(); err != nil {
		d.logger.Printf("zonedetect: %v", err)
		return nil
	}

	req, err := http.NewRequest(http.MethodPost, d.endpoint, &body)
	if err != nil {
		d.logger.Printf("zonedetect: %v", err)
		return nil
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.Printf("zonedetect: camera %s: %v", meta.CameraID, err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		d.logger.Printf("zonedetect: camera %s: endpoint returned status %d", meta.CameraID, resp.StatusCode)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		d.logger.Printf("zonedetect: %v", err)
		return nil
	}

	var out struct {
		Detections []rawDetection `json:"detections"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		d.logger.Printf("zonedetect: %v", err)
		return nil
	}

	detections := make([]pipeline.Detection, 0, len(out.Detections))
	for _, r := range out.Detections {
		if len(r.BBox) != 4 {
			continue
		}
		detections = append(detections, pipeline.Detection{
			Class:      r.Class,
			Confidence: r.Confidence,
			BBox:       pipeline.BBox{X1: r.BBox[0], Y1: r.BBox[1], X2: r.BBox[2], Y2: r.BBox[3]},
		})
	}
	return detections
}

var _ pipeline.GenericDetector = (*Detector)(nil)
