package reid

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultMatchThreshold = 0.65
	defaultGalleryTTL     = 120 * time.Second
	emaAlpha              = 0.3
	crossCameraBoost      = 1.3
	sightingRingWindow    = 30 * time.Second
)

type galleryEntry struct {
	id         int
	embedding  []float64
	lastSeen   time.Time
	cameras    map[string]bool
	sightings  []sighting
}

// sighting is one appearance in the trailing sighting ring. correlationID
// is an internal bookkeeping id (not exposed on FormattedEvent, which
// carries the sequential globalID instead) used only to cross-reference
// a sighting against worker/camera instance logs.
type sighting struct {
	cameraID      string
	at            time.Time
	correlationID string
}

// Gallery is the thread-safe global-person-id registry backing
// cross-camera re-identification (spec.md §4.7).
type Gallery struct {
	mu        sync.Mutex
	threshold float64
	ttl       time.Duration
	nextID    int
	entries   map[int]*galleryEntry
}

// NewGallery constructs a gallery with the spec's defaults (0.65 match
// threshold, 120s TTL).
func NewGallery() *Gallery {
	return &Gallery{threshold: defaultMatchThreshold, ttl: defaultGalleryTTL, entries: make(map[int]*galleryEntry)}
}

// MatchOrRegister finds the best cosine-similarity match for embedding
// among non-expired entries. If the best match is >= threshold, its
// embedding is updated by exponential moving average and this sighting's
// camera is recorded; otherwise a new global person id is registered.
func (g *Gallery) MatchOrRegister(embedding []float64, cameraID string, now time.Time) (globalID int, similarity float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.expireLocked(now)

	var best *galleryEntry
	var bestSim float64
	for _, e := range g.entries {
		sim := cosineSimilarity(embedding, e.embedding)
		if best == nil || sim > bestSim {
			best = e
			bestSim = sim
		}
	}

	if best != nil && bestSim >= g.threshold {
		best.embedding = normalize(emaUpdate(best.embedding, embedding, emaAlpha))
		best.lastSeen = now
		best.cameras[cameraID] = true
		best.sightings = append(best.sightings, sighting{cameraID: cameraID, at: now, correlationID: uuid.New().String()})
		return best.id, bestSim
	}

	g.nextID++
	id := g.nextID
	cp := make([]float64, len(embedding))
	copy(cp, embedding)
	g.entries[id] = &galleryEntry{
		id:        id,
		embedding: cp,
		lastSeen:  now,
		cameras:   map[string]bool{cameraID: true},
		sightings: []sighting{{cameraID: cameraID, at: now, correlationID: uuid.New().String()}},
	}
	return id, 0.0
}

// CrossCamera reports whether globalID has been seen across more than one
// camera, and the distinct camera ids.
func (g *Gallery) CrossCamera(globalID int) (bool, []string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	e, ok := g.entries[globalID]
	if !ok {
		return false, nil
	}
	cams := make([]string, 0, len(e.cameras))
	for c := range e.cameras {
		cams = append(cams, c)
	}
	return len(e.cameras) > 1, cams
}

// CurrentlyCrossCamera returns the global ids with sightings from more
// than one distinct camera within the trailing 30-second sighting ring.
func (g *Gallery) CurrentlyCrossCamera(now time.Time) []int {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []int
	cutoff := now.Add(-sightingRingWindow)
	for id, e := range g.entries {
		seen := map[string]bool{}
		for _, s := range e.sightings {
			if s.at.After(cutoff) {
				seen[s.cameraID] = true
			}
		}
		if len(seen) > 1 {
			out = append(out, id)
		}
	}
	return out
}

func (g *Gallery) expireLocked(now time.Time) {
	for id, e := range g.entries {
		if now.Sub(e.lastSeen) > g.ttl {
			delete(g.entries, id)
		}
	}
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot
}

func emaUpdate(prev, cur []float64, alpha float64) []float64 {
	if len(prev) != len(cur) {
		return cur
	}
	out := make([]float64, len(prev))
	for i := range prev {
		out[i] = (1-alpha)*prev[i] + alpha*cur[i]
	}
	return out
}

// SeverityBoost returns severity multiplied by crossCameraBoost (clamped
// to 1.0) when crossCamera is true, else severity unchanged.
func SeverityBoost(severity float64, crossCamera bool) float64 {
	if !crossCamera {
		return severity
	}
	boosted := severity * crossCameraBoost
	if boosted > 1 {
		boosted = 1
	}
	return boosted
}

