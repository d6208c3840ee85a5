// Package shareddetect implements the Shared Detector Bundle (spec.md
// §4.2): three stateless-per-frame detectors — weapon, fire/smoke, pose —
// run once per frame and their findings handed to every zone processor
// observing that frame.
//
// Each detector is a thin HTTP client against an opaque inference
// endpoint (spec.md §1 explicitly treats the actual models as external,
// interface-only collaborators), grounded on the teacher's own
// multipart-upload detector-client pattern.
package shareddetect

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"strconv"
	"time"

	"sentinel/internal/pipeline"
	"sentinel/internal/registry"
)

const inferenceTimeout = 5 * time.Second

// inferenceClient posts a frame to an opaque detection endpoint and
// decodes a list of raw detections back. Shared by all three detectors;
// none of them retain state across frames.
type inferenceClient struct {
	endpoint string
	client   *http.Client
	logger   *log.Logger
}

func newInferenceClient(endpoint string, logger *log.Logger) *inferenceClient {
	return &inferenceClient{
		endpoint: endpoint,
		client:   &http.Client{Timeout: inferenceTimeout},
		logger:   logger,
	}
}

type rawDetection struct {
	Class      string    `json:"class"`
	Confidence float64   `json:"confidence"`
	BBox       []float64 `json:"bbox"` // [x1,y1,x2,y2]
	TrackID    *int      `json:"track_id,omitempty"`
}

func (c *inferenceClient) infer(frameJPEG []byte) ([]rawDetection, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("no endpoint configured")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(frameJPEG); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference endpoint returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var out struct {
		Detections []rawDetection `json:"detections"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out.Detections, nil
}

// inferPoses is identical to infer except it decodes the pose-detector's
// response shape (detections carrying per-keypoint coordinates).
func (c *inferenceClient) inferPoses(frameJPEG []byte) ([]rawPose, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("no endpoint configured")
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(frameJPEG); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference endpoint returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var out struct {
		Poses []rawPose `json:"poses"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out.Poses, nil
}

// Bundle is the concrete, singleton SharedDetectorBundle implementation.
type Bundle struct {
	weapon    *WeaponDetector
	fireSmoke *FireSmokeDetector
	pose      *PoseDetector
	logger    *log.Logger
}

// Config configures the three shared detector endpoints. Any endpoint may
// be left empty, in which case that channel degrades to an always-empty
// result (spec.md §4.2: "Failure in any one yields an empty list for that
// channel").
type Config struct {
	WeaponEndpoint        string
	GunSpecialistEndpoint string
	FireSmokeEndpoint     string
	PoseEndpoint          string
}

// ConfigFromEnv builds a Config from WEAPON_ENDPOINT-style environment
// variables, matching the ambient os.Getenv configuration idiom used
// throughout this repository.
func ConfigFromEnv() Config {
	return Config{
		WeaponEndpoint:        os.Getenv("WEAPON_ENDPOINT"),
		GunSpecialistEndpoint: os.Getenv("GUN_SPECIALIST_ENDPOINT"),
		FireSmokeEndpoint:     os.Getenv("FIRE_SMOKE_ENDPOINT"),
		PoseEndpoint:          os.Getenv("POSE_ENDPOINT"),
	}
}

// NewBundle constructs the shared detector bundle, initialized once by
// the orchestrator's composition root (spec.md §4.10, §9). reg, if
// non-nil, backs the weapon detector's consecutive-failure self-disable
// policy (spec.md §4.1/§7).
func NewBundle(cfg Config, reg *registry.Registry, logger *log.Logger) *Bundle {
	if logger == nil {
		logger = log.New(os.Stderr, "[shareddetect] ", log.Ltime)
	}
	minConf := defaultWeaponMinConfidence
	if v := os.Getenv("WEAPON_MIN_CONFIDENCE"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			minConf = parsed
		}
	}
	weapon := NewWeaponDetector(cfg.WeaponEndpoint, cfg.GunSpecialistEndpoint, logger).
		WithMinConfidence(minConf).
		WithRegistry(reg)

	return &Bundle{
		weapon:    weapon,
		fireSmoke: NewFireSmokeDetector(cfg.FireSmokeEndpoint, logger),
		pose:      NewPoseDetector(cfg.PoseEndpoint, logger),
		logger:    logger,
	}
}

// Run executes all three shared detectors against one frame.
func (b *Bundle) Run(frameJPEG []byte, meta pipeline.FrameMetadata) *pipeline.SharedFindings {
	frameArea := float64(meta.Width) * float64(meta.Height)

	return &pipeline.SharedFindings{
		Weapons:   b.weapon.Detect(frameJPEG, frameArea),
		FireSmoke: b.fireSmoke.Detect(frameJPEG),
		Poses:     b.pose.Detect(frameJPEG),
	}
}

var _ pipeline.SharedDetectorBundle = (*Bundle)(nil)
