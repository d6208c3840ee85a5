// Package tracker implements the multi-object tracker backends named in
// the Model & Tracker Registry: a greedy nearest-neighbor centroid tracker
// (the mandated fallback) and a Hungarian-algorithm optimal-assignment
// tracker (the preferred ByteTrack-family backend).
package tracker

import (
	"math"

	"sentinel/internal/pipeline"
)

const (
	// DefaultMaxDisappeared is the number of consecutive unassociated
	// frames after which a track is purged.
	DefaultMaxDisappeared = 10
	// DefaultMaxDistance is the maximum center distance (px) at which a
	// detection may be associated with an existing track.
	DefaultMaxDistance = 100.0
)

type centroidTrack struct {
	id          int
	class       string
	bbox        pipeline.BBox
	confidence  float64
	cx, cy      float64
	prevCx      float64
	prevCy      float64
	disappeared int
}

// CentroidTracker is the spec-mandated fallback: greedy nearest-neighbor
// assignment, class-consistent, with a configurable max_disappeared and
// max_distance.
type CentroidTracker struct {
	MaxDisappeared int
	MaxDistance    float64

	nextID int
	tracks map[int]*centroidTrack
}

// NewCentroidTracker constructs a tracker with the spec defaults.
func NewCentroidTracker() *CentroidTracker {
	return &CentroidTracker{
		MaxDisappeared: DefaultMaxDisappeared,
		MaxDistance:    DefaultMaxDistance,
		nextID:         1,
		tracks:         make(map[int]*centroidTrack),
	}
}

// Reset clears all track history.
func (t *CentroidTracker) Reset() {
	t.tracks = make(map[int]*centroidTrack)
	t.nextID = 1
}

// Update associates this frame's detections with existing tracks using
// greedy nearest-neighbor matching restricted to same-class candidates,
// purges tracks that have disappeared for more than MaxDisappeared
// consecutive frames, and creates new tracks for unmatched detections.
func (t *CentroidTracker) Update(detections []pipeline.Detection, meta pipeline.FrameMetadata) []pipeline.TrackedObject {
	matchedTrack := make(map[int]bool, len(t.tracks))
	matchedDet := make(map[int]bool, len(detections))

	type candidate struct {
		trackID, detIdx int
		dist            float64
	}
	var candidates []candidate
	for id, tr := range t.tracks {
		for di, d := range detections {
			if d.Class != tr.class {
				continue
			}
			cx, cy := d.BBox.Center()
			dist := math.Hypot(cx-tr.cx, cy-tr.cy)
			if dist <= t.MaxDistance {
				candidates = append(candidates, candidate{trackID: id, detIdx: di, dist: dist})
			}
		}
	}
	// Greedy: repeatedly take the globally closest unmatched pair.
	for {
		best := -1
		bestDist := math.Inf(1)
		for i, c := range candidates {
			if matchedTrack[c.trackID] || matchedDet[c.detIdx] {
				continue
			}
			if c.dist < bestDist {
				bestDist = c.dist
				best = i
			}
		}
		if best < 0 {
			break
		}
		c := candidates[best]
		matchedTrack[c.trackID] = true
		matchedDet[c.detIdx] = true

		tr := t.tracks[c.trackID]
		d := detections[c.detIdx]
		cx, cy := d.BBox.Center()
		tr.bbox = d.BBox
		tr.confidence = d.Confidence
		tr.prevCx, tr.prevCy = tr.cx, tr.cy
		tr.cx, tr.cy = cx, cy
		tr.disappeared = 0
	}

	// Age out unmatched tracks.
	for id, tr := range t.tracks {
		if matchedTrack[id] {
			continue
		}
		tr.disappeared++
		if tr.disappeared > t.MaxDisappeared {
			delete(t.tracks, id)
		}
	}

	// New tracks for unmatched detections.
	for di, d := range detections {
		if matchedDet[di] {
			continue
		}
		cx, cy := d.BBox.Center()
		id := t.nextID
		t.nextID++
		t.tracks[id] = &centroidTrack{
			id:         id,
			class:      d.Class,
			bbox:       d.BBox,
			confidence: d.Confidence,
			cx:         cx,
			cy:         cy,
			prevCx:     cx,
			prevCy:     cy,
		}
	}

	out := make([]pipeline.TrackedObject, 0, len(t.tracks))
	for id, tr := range t.tracks {
		if tr.disappeared > 0 {
			continue
		}
		out = append(out, pipeline.TrackedObject{
			ObjectID:     id,
			Class:        tr.class,
			BBox:         tr.bbox,
			Confidence:   tr.confidence,
			MotionVector: [2]float64{tr.cx - tr.prevCx, tr.cy - tr.prevCy},
			Timestamp:    meta.Timestamp,
		})
	}
	return out
}

var _ pipeline.Tracker = (*CentroidTracker)(nil)
