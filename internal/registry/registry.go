// Package registry implements the process-wide Model & Tracker Registry
// singleton (spec.md §4.1): it resolves model file paths in a fixed lookup
// order, owns shared model handles (each of which may be absent), and
// issues per-camera tracker instances.
package registry

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"sentinel/internal/pipeline"
	"sentinel/internal/tracker"
)

// ModelKind names a logical shared/zone model the registry resolves.
type ModelKind string

const (
	ModelWeapon       ModelKind = "weapon"
	ModelGunSpecialist ModelKind = "gun_specialist"
	ModelFireSmoke    ModelKind = "fire_smoke"
	ModelPose         ModelKind = "pose"
)

// modelFileNames gives each logical model a concrete standard file name,
// per the original system's model-download manifest (see SPEC_FULL.md,
// Supplemented Features).
var modelFileNames = map[ModelKind]string{
	ModelWeapon:        "weapon.pt",
	ModelGunSpecialist: "gun-specialist.pt",
	ModelFireSmoke:     "fire-smoke.pt",
	ModelPose:          "yolov8n-pose.pt",
}

// zoneDetectorFileNames gives each zone's generic detector a concrete
// model file name; falls back to a baseline nano detector on load
// failure (spec.md §4.1 failure semantics).
var zoneDetectorFileNames = map[pipeline.Zone]string{
	pipeline.ZoneOutgate:      "outgate.pt",
	pipeline.ZoneCorridor:     "corridor.pt",
	pipeline.ZoneSchoolGround: "school-ground.pt",
	pipeline.ZoneClassroom:    "classroom.pt",
}

const baselineDetectorFile = "yolov8n.pt"

// ModelHandle is an opaque resolved model reference: the resolved file
// path plus whether the model is present. Absent models return a null
// capability and the system degrades gracefully (spec.md §4.1).
type ModelHandle struct {
	Kind     string
	Path     string
	Present  bool
}

// Registry is the process-wide Model & Tracker Registry singleton.
// Exported operations are safe for concurrent use from multiple worker
// goroutines; cached entries are immutable after insertion (spec.md §5
// shared-resource policy: "read-mostly; initialization under a single
// load mutex").
type Registry struct {
	modelDirs []string
	logger    *log.Logger

	mu            sync.Mutex
	models        map[ModelKind]*ModelHandle
	zoneDetectors map[pipeline.Zone]*ModelHandle
	loggedAbsence map[ModelKind]bool

	trackMu  sync.Mutex
	trackers map[string]pipeline.Tracker
	// newTracker constructs a fresh tracker instance for a camera; it is
	// set once in newRegistry and has no setter.
	newTracker func() pipeline.Tracker

	weaponFailures int
	weaponDisabled bool
}

var (
	singleton     *Registry
	singletonOnce sync.Once
)

// Get returns the process-wide registry singleton, lazily initializing it
// under a mutex on first call (spec.md §4.1, §5). modelDir, if non-empty,
// is consulted after the default search path of the current, working and
// parent directories (mirrors YOLO_MODEL_DIR).
func Get(modelDir string, logger *log.Logger) *Registry {
	singletonOnce.Do(func() {
		singleton = newRegistry(modelDir, logger)
	})
	return singleton
}

// resetForTest clears the singleton; exercised only by package tests that
// need a fresh registry, never by production code paths.
func resetForTest() {
	singleton = nil
	singletonOnce = sync.Once{}
}

func newRegistry(modelDir string, logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.New(os.Stderr, "[registry] ", log.Ltime)
	}

	dirs := []string{"."}
	if wd, err := os.Getwd(); err == nil {
		dirs = append(dirs, wd, filepath.Dir(wd))
	}
	if modelDir != "" {
		dirs = append(dirs, modelDir)
	}

	return &Registry{
		modelDirs:     dirs,
		logger:        logger,
		models:        make(map[ModelKind]*ModelHandle),
		zoneDetectors: make(map[pipeline.Zone]*ModelHandle),
		loggedAbsence: make(map[ModelKind]bool),
		trackers:      make(map[string]pipeline.Tracker),
		newTracker:    func() pipeline.Tracker { return tracker.NewAssociationTracker() },
	}
}

// resolve walks the fixed lookup order: co-located models dir, parent
// models dir, env-configured dir, bare name. The first path that exists
// on disk wins; if none exist, the bare name is still returned with
// Present=false (auto-download is permitted for standard models upstream
// of this registry, outside the scope of this spec's core).
func (r *Registry) resolve(name string) *ModelHandle {
	for _, dir := range r.modelDirs {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return &ModelHandle{Path: candidate, Present: true}
		}
	}
	return &ModelHandle{Path: name, Present: false}
}

// Model returns the shared model handle for kind, resolving and caching
// it on first access. A model that was never found on disk still returns
// a handle (Present=false): callers treat this as a null capability.
func (r *Registry) Model(kind ModelKind) *ModelHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.models[kind]; ok {
		return h
	}
	name, ok := modelFileNames[kind]
	if !ok {
		h := &ModelHandle{Kind: string(kind), Present: false}
		r.models[kind] = h
		return h
	}
	h := r.resolve(name)
	h.Kind = string(kind)
	r.models[kind] = h
	if !h.Present && !r.loggedAbsence[kind] {
		r.logger.Printf("shared model %q not found, degrading gracefully", kind)
		r.loggedAbsence[kind] = true
	}
	return h
}

// ZoneDetector returns the generic object detector for a zone, falling
// back to the baseline nano detector if the zone-specific model failed to
// resolve (spec.md §4.1, §7).
func (r *Registry) ZoneDetector(zone pipeline.Zone) *ModelHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.zoneDetectors[zone]; ok {
		return h
	}
	name, ok := zoneDetectorFileNames[zone]
	if !ok {
		name = baselineDetectorFile
	}
	h := r.resolve(name)
	if !h.Present {
		r.logger.Printf("zone %q detector %q not found, falling back to baseline detector", zone, name)
		h = r.resolve(baselineDetectorFile)
	}
	r.zoneDetectors[zone] = h
	return h
}

// RecordWeaponFailure tracks consecutive weapon-detector inference
// failures and self-disables the detector after 3 in a row, per spec.md
// §4.1 / §7. Call ResetWeaponFailures on an explicit reset.
func (r *Registry) RecordWeaponFailure() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.weaponFailures++
	if r.weaponFailures >= 3 {
		r.weaponDisabled = true
	}
}

// ResetWeaponFailures clears the weapon-detector failure count and
// re-enables it.
func (r *Registry) ResetWeaponFailures() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.weaponFailures = 0
	r.weaponDisabled = false
}

// WeaponDisabled reports whether the weapon detector has self-disabled
// after repeated inference failures.
func (r *Registry) WeaponDisabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.weaponDisabled
}

// GetTracker returns the tracker instance for cameraID, creating one on
// demand (spec.md §4.1: "get(camera_id) (create on demand)"). The
// returned tracker is thereafter owned by exactly one worker goroutine
// and is not internally locked (spec.md §5) — only the map lookup itself
// is guarded.
func (r *Registry) GetTracker(cameraID string) pipeline.Tracker {
	r.trackMu.Lock()
	defer r.trackMu.Unlock()

	t, ok := r.trackers[cameraID]
	if !ok {
		t = r.newTracker()
		r.trackers[cameraID] = t
	}
	return t
}

// ResetTracker clears a camera's tracker history without removing the
// instance.
func (r *Registry) ResetTracker(cameraID string) {
	r.trackMu.Lock()
	defer r.trackMu.Unlock()
	if t, ok := r.trackers[cameraID]; ok {
		t.Reset()
	}
}

// RemoveTracker discards a camera's tracker entirely.
func (r *Registry) RemoveTracker(cameraID string) {
	r.trackMu.Lock()
	defer r.trackMu.Unlock()
	delete(r.trackers, cameraID)
}
