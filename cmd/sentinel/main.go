package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"sentinel/internal/broadcast"
	"sentinel/internal/config"
	"sentinel/internal/orchestrator"
	"sentinel/internal/pipeline"
)

// startBroadcast wires the orchestrator's EventBus to a per-camera
// WebSocket fan-out when BROADCAST_ADDR is set; returns a no-op cleanup
// otherwise.
func startBroadcast(logger *log.Logger, orch *orchestrator.Orchestrator) func() {
	addr := os.Getenv("BROADCAST_ADDR")
	if addr == "" {
		return func() {}
	}

	hub := broadcast.NewHub(logger)
	unsubscribe := hub.Subscribe(orch.Bus())

	mux := http.NewServeMux()
	mux.Handle("/events/", broadcast.NewHandler(hub))
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Printf("[broadcast] server error: %v", err)
		}
	}()
	logger.Printf("[broadcast] listening on %s", addr)

	return func() {
		unsubscribe()
		srv.Close()
	}
}

func main() {
	logger := log.New(os.Stderr, "[sentinel] ", log.Ltime)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run-all":
		runAll(logger, os.Args[2:])
	default:
		runSingle(logger, os.Args[1:])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  sentinel <zone> <video_path> [camera_id] [--no-preview]")
	fmt.Fprintln(os.Stderr, "  sentinel run-all [--module home|school|office] [--preview]")
}

// runSingle implements the single-worker CLI form: one zone, one video
// source, run until interrupted.
func runSingle(logger *log.Logger, args []string) {
	fs := flag.NewFlagSet("sentinel", flag.ExitOnError)
	noPreview := fs.Bool("no-preview", false, "disable local preview window (accepted for CLI compatibility; this build never opens one)")
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 2 {
		usage()
		os.Exit(1)
	}
	_ = noPreview

	zone := pipeline.Zone(rest[0])
	videoPath := rest[1]
	cameraID := "cam-cli"
	if len(rest) >= 3 {
		cameraID = rest[2]
	}

	cfg := config.FromEnv()
	if cfg.CameraID != "" {
		cameraID = cfg.CameraID
	}

	orch := orchestrator.New(cfg, logger)

	cam := pipeline.CameraConfig{
		ID:        cameraID,
		Name:      cameraID,
		Zone:      zone,
		VideoPath: orchestrator.ResolveVideoSource(videoPath, "", "", "", os.Getenv("TEST_VIDEOS_DIR")),
		Active:    true,
	}

	if err := orch.Start(cam, cfg.BackendURL); err != nil {
		logger.Fatalf("failed to start camera %s: %v", cameraID, err)
	}
	stopBroadcast := startBroadcast(logger, orch)

	waitForSignal(logger)
	stopBroadcast()
	orch.Shutdown()
}

// runAll implements the orchestrator CLI form: discover every active
// camera from the external config source and run them all concurrently.
func runAll(logger *log.Logger, args []string) {
	fs := flag.NewFlagSet("sentinel run-all", flag.ExitOnError)
	module := fs.String("module", "school", "deployment module: home|school|office")
	preview := fs.Bool("preview", false, "accepted for CLI compatibility; this build never opens a preview window")
	fs.Parse(args)
	_ = preview

	cfg := config.FromEnv()
	configURL := os.Getenv("CAMERA_CONFIG_URL")
	if configURL == "" {
		logger.Fatalf("CAMERA_CONFIG_URL must be set for run-all")
	}

	cameras, err := orchestrator.FetchCameras(configURL)
	if err != nil {
		logger.Printf("failed to fetch camera config: %v", err)
		cameras = nil
	}
	logger.Printf("module=%s: discovered %d camera(s)", *module, len(cameras))

	orch := orchestrator.New(cfg, logger)
	orch.StartAll(cameras, cfg.BackendURL)
	stopBroadcast := startBroadcast(logger, orch)

	waitForSignal(logger)
	stopBroadcast()
	orch.Shutdown()

	for id, stats := range orch.Stats() {
		logger.Printf("camera %s: frames=%d events=%d suppressed=%d", id, stats.FramesProcessed, stats.EventsEmitted, stats.EventsSuppressed)
	}
}

func waitForSignal(logger *log.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Printf("received %s, shutting down", sig)
}
