// Package orchestrator implements the Orchestrator (spec.md §4.10):
// discovers configured cameras from an external HTTP source, resolves
// each camera's video source path, spawns one worker per active camera,
// and manages graceful shutdown.
package orchestrator

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"sentinel/internal/afterhours"
	"sentinel/internal/config"
	"sentinel/internal/eventengine"
	"sentinel/internal/pipeline"
	"sentinel/internal/registry"
	"sentinel/internal/reid"
	"sentinel/internal/shareddetect"
	"sentinel/internal/sink"
	"sentinel/internal/worker"
	"sentinel/internal/zonedetect"
	"sentinel/internal/zones"
)

// cameraListResponse mirrors spec.md §6's camera-configuration schema.
type cameraListResponse struct {
	Module  string         `json:"module"`
	Cameras []cameraRecord `json:"cameras"`
}

type cameraRecord struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Zone        string `json:"zone"`
	VideoPath   string `json:"video_path"`
	URL         string `json:"url"`
	Mode        string `json:"mode"`
	WebcamIndex *int   `json:"webcam_index"`
	Active      bool   `json:"active"`
}

// FetchCameras performs the HTTP GET against configURL and decodes the
// camera list. A fetch failure is returned to the caller, which per
// spec.md §7 logs and proceeds with zero cameras rather than crashing.
func FetchCameras(configURL string) ([]pipeline.CameraConfig, error) {
	resp, err := http.Get(configURL)
	if err != nil {
		return nil, fmt.Errorf("fetch camera config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera config source returned status %d", resp.StatusCode)
	}

	var parsed cameraListResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode camera config: %w", err)
	}

	cameras := make([]pipeline.CameraConfig, 0, len(parsed.Cameras))
	for _, c := range parsed.Cameras {
		cameras = append(cameras, pipeline.CameraConfig{
			ID:          c.ID,
			Name:        c.Name,
			Zone:        pipeline.Zone(c.Zone),
			VideoPath:   c.VideoPath,
			URL:         c.URL,
			Mode:        c.Mode,
			WebcamIndex: c.WebcamIndex,
			Active:      c.Active,
		})
	}
	return cameras, nil
}

// ResolveVideoSource tries, in order: as given; relative to the worker
// directory; relative to the backend directory; relative to the project
// root; relative to the test-videos directory; finally as given even if
// it doesn't exist (spec.md §6). workerDir/backendDir/projectRoot/
// testVideosDir may be empty to skip that candidate.
func ResolveVideoSource(path, workerDir, backendDir, projectRoot, testVideosDir string) string {
	if path == "" || isNonFileSource(path) {
		return path
	}

	candidates := []string{path}
	for _, dir := range []string{workerDir, backendDir, projectRoot, testVideosDir} {
		if dir != "" {
			candidates = append(candidates, filepath.Join(dir, path))
		}
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return path
}

func isNonFileSource(path string) bool {
	if _, err := strconv.Atoi(path); err == nil {
		return true // bare webcam index
	}
	return len(path) > 7 && (path[:7] == "rtsp://" || path[:7] == "http://" || (len(path) > 8 && path[:8] == "https://"))
}

// Orchestrator owns every running Worker and the process-wide singletons
// they share.
type Orchestrator struct {
	cfg      config.Config
	registry *registry.Registry
	bundle   *shareddetect.Bundle
	cooldown *pipeline.EventCooldownManager
	engine   *eventengine.Engine
	bus      *pipeline.EventBus
	reidMgr  *reid.Manager
	logger   *log.Logger

	mu      sync.Mutex
	workers map[string]*worker.Worker
	wg      sync.WaitGroup
}

// New constructs an Orchestrator and its process-wide singletons.
func New(cfg config.Config, logger *log.Logger) *Orchestrator {
	if logger == nil {
		logger = log.Default()
	}

	reg := registry.Get(cfg.YOLOModelDir, logger)
	bundle := shareddetect.NewBundle(shareddetect.ConfigFromEnv(), reg, logger)

	embedder := reid.NewEmbedder(os.Getenv("REID_ENDPOINT"), logger)
	gallery := reid.NewGallery()
	reidMgr := reid.NewManager(embedder, gallery)

	return &Orchestrator{
		cfg:      cfg,
		registry: reg,
		bundle:   bundle,
		cooldown: pipeline.NewEventCooldownManager(nil),
		engine:   eventengine.NewEngine(),
		bus:      pipeline.NewEventBus(),
		reidMgr:  reidMgr,
		logger:   logger,
		workers:  make(map[string]*worker.Worker),
	}
}

// Bus exposes the process-wide event broadcast bus for subscribers
// (e.g. a WebSocket hub).
func (o *Orchestrator) Bus() *pipeline.EventBus { return o.bus }

func (o *Orchestrator) afterHoursWindow() afterhours.Window {
	startMin, ok1 := config.ParseClockMinutes(o.cfg.SchoolHoursStart)
	endMin, ok2 := config.ParseClockMinutes(o.cfg.SchoolHoursEnd)
	if !ok1 {
		startMin = 8 * 60
	}
	if !ok2 {
		endMin = 16 * 60
	}
	base := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	return afterhours.Window{
		Start: base.Add(time.Duration(startMin) * time.Minute),
		End:   base.Add(time.Duration(endMin) * time.Minute),
	}
}

func zoneDetectorEndpointEnv(zone pipeline.Zone) string {
	switch zone {
	case pipeline.ZoneOutgate:
		return os.Getenv("OUTGATE_ENDPOINT")
	case pipeline.ZoneCorridor:
		return os.Getenv("CORRIDOR_ENDPOINT")
	case pipeline.ZoneSchoolGround:
		return os.Getenv("SCHOOL_GROUND_ENDPOINT")
	case pipeline.ZoneClassroom:
		return os.Getenv("CLASSROOM_ENDPOINT")
	default:
		return ""
	}
}

// buildPipelineForZone constructs one canonical zone's DetectionPipeline
// for cameraID, wiring the registry's tracker and zone detector, the
// shared singleton bundle, the zone processor, the after-hours filter
// and the re-id enricher.
func (o *Orchestrator) buildPipelineForZone(tenantID, cameraID string, zone pipeline.Zone) (*pipeline.DetectionPipeline, error) {
	processor, err := zones.NewProcessor(zone)
	if err != nil {
		return nil, err
	}

	handle := o.registry.ZoneDetector(zone)
	detector := zonedetect.New(zoneDetectorEndpointEnv(zone), handle, o.logger)

	return &pipeline.DetectionPipeline{
		TenantID:  tenantID,
		CameraID:  cameraID,
		Zone:      zone,
		Detector:  detector,
		Tracker:   o.registry.GetTracker(cameraID),
		Shared:    o.bundle,
		Processor: processor,
		Filter:    afterhours.NewFilter(zone, o.afterHoursWindow()),
		Enricher:  o.reidMgr,
		Logger:    o.logger,
	}, nil
}

// buildFramePipeline constructs the camera's FramePipeline: a single
// DetectionPipeline for a named zone, or a MultiZonePipeline spanning all
// four canonical zones when the camera's configured zone is "all".
func (o *Orchestrator) buildFramePipeline(tenantID string, cam pipeline.CameraConfig) (worker.FramePipeline, error) {
	if cam.Zone != pipeline.ZoneAll {
		return o.buildPipelineForZone(tenantID, cam.ID, cam.Zone)
	}

	sub := make(map[pipeline.Zone]*pipeline.DetectionPipeline)
	for _, zone := range []pipeline.Zone{pipeline.ZoneOutgate, pipeline.ZoneCorridor, pipeline.ZoneSchoolGround, pipeline.ZoneClassroom} {
		p, err := o.buildPipelineForZone(tenantID, cam.ID, zone)
		if err != nil {
			return nil, err
		}
		// The shared bundle runs once at the MultiZonePipeline level;
		// each sub-pipeline must not also run it.
		p.Shared = nil
		sub[zone] = p
	}
	return &pipeline.MultiZonePipeline{
		TenantID:  tenantID,
		CameraID:  cam.ID,
		Shared:    o.bundle,
		Pipelines: sub,
	}, nil
}

// StartAll resolves every active camera's video source, builds its
// pipeline, and spawns a worker for it.
func (o *Orchestrator) StartAll(cameras []pipeline.CameraConfig, backendURL string) {
	for _, cam := range cameras {
		if !cam.Active {
			continue
		}
		if err := o.Start(cam, backendURL); err != nil {
			o.logger.Printf("[orchestrator] camera %s: %v", cam.ID, err)
		}
	}
}

// Start spawns one worker for cam.
func (o *Orchestrator) Start(cam pipeline.CameraConfig, backendURL string) error {
	tenantID := o.cfg.TenantID
	framePipeline, err := o.buildFramePipeline(tenantID, cam)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	device := cam.VideoPath
	if device == "" {
		device = cam.URL
	}
	if cam.Mode == "webcam" && cam.WebcamIndex != nil {
		device = strconv.Itoa(*cam.WebcamIndex)
	}
	device = ResolveVideoSource(device, "", "", "", os.Getenv("TEST_VIDEOS_DIR"))

	w := worker.New(worker.Config{
		TenantID: tenantID,
		CameraID: cam.ID,
		Device:   device,
		MaxFPS:   o.cfg.MaxFPSPerCamera,
		Width:    1280,
		Height:   720,
		Pipeline: framePipeline,
		Cooldown: o.cooldown,
		Sink:     sink.New(backendURL, o.logger),
		Engine:   o.engine,
		Bus:      o.bus,
		Logger:   o.logger,
	})

	o.mu.Lock()
	o.workers[cam.ID] = w
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		w.Run()
	}()
	o.logger.Printf("[orchestrator] started camera %s (zone=%s)", cam.ID, cam.Zone)
	return nil
}

// Shutdown signals every worker to stop (each Stop waits up to 5s for its
// worker), then waits without a timeout for every worker goroutine to
// return.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	workers := make([]*worker.Worker, 0, len(o.workers))
	for _, w := range o.workers {
		workers = append(workers, w)
	}
	o.mu.Unlock()

	for _, w := range workers {
		w.Stop()
	}
	o.wg.Wait()
	o.logger.Printf("[orchestrator] all workers stopped")
}

// Stats returns a snapshot of every running worker's counters, keyed by
// camera id.
func (o *Orchestrator) Stats() map[string]worker.Stats {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]worker.Stats, len(o.workers))
	for id, w := range o.workers {
		out[id] = w.Stats()
	}
	return out
}
