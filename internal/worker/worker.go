package worker

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentinel/internal/eventengine"
	"sentinel/internal/pipeline"
)

// FramePipeline is satisfied by both *pipeline.DetectionPipeline (single
// zone) and *pipeline.MultiZonePipeline (zone "all").
type FramePipeline interface {
	ProcessFrame(frameJPEG []byte, meta pipeline.FrameMetadata) []pipeline.FormattedEvent
}

// Sink posts one formatted event to the outbound HTTP sink.
type Sink interface {
	Post(event pipeline.FormattedEvent) error
}

// Config configures one Worker instance.
type Config struct {
	TenantID string
	CameraID string
	Device   string // file path, RTSP/HTTP URL, or webcam index as a string
	MaxFPS   int
	Width    int
	Height   int

	Pipeline FramePipeline
	Cooldown *pipeline.EventCooldownManager
	Sink     Sink
	// Engine, if non-nil, runs every cooldown-admitted event through the
	// downstream multi-frame verifier (spec.md §4.9) before it is posted;
	// the resulting incident/priority/playbook are stamped into the
	// event's metadata.
	Engine *eventengine.Engine
	// Bus, if non-nil, receives every posted event for in-process
	// broadcast (spec.md §2 data flow: "... → alert broadcast").
	Bus    *pipeline.EventBus
	Logger *log.Logger
}

// Worker owns one video source end to end (spec.md §4.8): decode at a
// bounded frame rate, run the pipeline, gate emission through the
// process-wide EventCooldownManager, and POST to the outbound sink.
type Worker struct {
	cfg    Config
	source *videoSource
	logger *log.Logger

	// instanceID disambiguates this worker's logs from a prior process's
	// worker for the same camera (e.g. across a crash/restart cycle),
	// distinct from the spec's sequential global_person_id namespace.
	instanceID string

	stopCh chan struct{}
	doneCh chan struct{}

	mu         sync.Mutex
	frameIndex uint64
	stats      Stats
}

// Stats is a snapshot of one worker's running counters.
type Stats struct {
	FramesProcessed uint64
	EventsEmitted   uint64
	EventsSuppressed uint64
}

// New constructs a Worker; call Run to start the decode loop.
func New(cfg Config) *Worker {
	if cfg.MaxFPS <= 0 {
		cfg.MaxFPS = 10
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{
		cfg:        cfg,
		source:     newVideoSource(cfg.Device, cfg.MaxFPS, cfg.Width, cfg.Height),
		logger:     logger,
		instanceID: uuid.New().String(),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Run starts the decode loop and blocks until Stop is called or the
// video source exhausts (a live stream ending). Intended to be called in
// its own goroutine by the orchestrator.
func (w *Worker) Run() {
	defer close(w.doneCh)

	w.source.start()
	defer w.source.stop()

	interval := time.Second / time.Duration(w.cfg.MaxFPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Printf("[worker %s] started (instance=%s, device=%s, max_fps=%d)", w.cfg.CameraID, w.instanceID, w.cfg.Device, w.cfg.MaxFPS)

	for {
		select {
		case <-w.stopCh:
			w.logger.Printf("[worker %s] stopping", w.cfg.CameraID)
			return
		case <-ticker.C:
			select {
			case frame, ok := <-w.source.frames:
				if !ok {
					return
				}
				w.processFrame(frame)
			default:
				// No new frame since the last tick; nothing to do.
			}
		}
	}
}

func (w *Worker) processFrame(frame frameData) {
	w.mu.Lock()
	w.frameIndex++
	idx := w.frameIndex
	w.mu.Unlock()

	meta := pipeline.FrameMetadata{
		CameraID:   w.cfg.CameraID,
		FrameIndex: idx,
		Timestamp:  frame.timestamp,
		Width:      w.cfg.Width,
		Height:     w.cfg.Height,
	}

	events := w.cfg.Pipeline.ProcessFrame(frame.data, meta)

	w.mu.Lock()
	w.stats.FramesProcessed++
	w.mu.Unlock()

	for _, ev := range events {
		if w.cfg.Cooldown != nil && !w.cfg.Cooldown.Allow(w.cfg.CameraID, ev.EventType, meta.Timestamp, ev.Confidence) {
			w.mu.Lock()
			w.stats.EventsSuppressed++
			w.mu.Unlock()
			continue
		}

		if w.cfg.Engine != nil {
			report := w.cfg.Engine.ProcessEvent(ev.TenantID, ev.CameraID, string(ev.EventType), ev.Confidence, ev.Timestamp)
			if ev.Metadata == nil {
				ev.Metadata = map[string]any{}
			}
			ev.Metadata["incident"] = report.Incident
			ev.Metadata["priority"] = report.Priority
			ev.Metadata["playbook"] = report.Playbook
			ev.Metadata["suspicion_score"] = report.SuspicionScore
		}

		if w.cfg.Sink != nil {
			if err := w.cfg.Sink.Post(ev); err != nil {
				w.logger.Printf("[worker %s] sink post failed for %s: %v", w.cfg.CameraID, ev.EventType, err)
				continue
			}
		}
		if w.cfg.Bus != nil {
			w.cfg.Bus.Publish(&ev)
		}

		w.mu.Lock()
		w.stats.EventsEmitted++
		w.mu.Unlock()
	}
}

// Stop signals the worker to shut down and waits up to 5 seconds for the
// decode loop to exit (spec.md §4.8, §5: "bounded wait (5 s join)").
func (w *Worker) Stop() {
	close(w.stopCh)
	select {
	case <-w.doneCh:
	case <-time.After(5 * time.Second):
		w.logger.Printf("[worker %s] shutdown join timed out after 5s", w.cfg.CameraID)
	}
}

// Stats returns a snapshot of this worker's running counters.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
