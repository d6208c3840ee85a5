package tracker

import (
	"math"

	hg "github.com/charles-haynes/munkres"

	"sentinel/internal/pipeline"
)

// costInfeasible marks a (track, detection) pair the solver must never
// choose: different class, or center distance beyond MaxDistance.
const costInfeasible = 1e6

// AssociationTracker is the preferred ByteTrack-family backend: frame-to-
// frame association is solved as an optimal bipartite assignment (the
// Hungarian algorithm) over a center-distance cost matrix, rather than
// CentroidTracker's greedy nearest-neighbor heuristic. Falls back to the
// same max_disappeared/max_distance/class-consistency rules.
type AssociationTracker struct {
	MaxDisappeared int
	MaxDistance    float64

	nextID int
	tracks map[int]*centroidTrack
}

// NewAssociationTracker constructs the Hungarian-algorithm tracker with
// the spec defaults.
func NewAssociationTracker() *AssociationTracker {
	return &AssociationTracker{
		MaxDisappeared: DefaultMaxDisappeared,
		MaxDistance:    DefaultMaxDistance,
		nextID:         1,
		tracks:         make(map[int]*centroidTrack),
	}
}

// Reset clears all track history.
func (t *AssociationTracker) Reset() {
	t.tracks = make(map[int]*centroidTrack)
	t.nextID = 1
}

// Update solves the optimal frame-to-frame assignment and returns the
// resulting TrackedObjects. When there are no existing tracks or no
// detections, it degenerates to pure track-creation/ageing, same as
// CentroidTracker.
func (t *AssociationTracker) Update(detections []pipeline.Detection, meta pipeline.FrameMetadata) []pipeline.TrackedObject {
	ids := make([]int, 0, len(t.tracks))
	for id := range t.tracks {
		ids = append(ids, id)
	}

	matchedTrack := make(map[int]bool, len(ids))
	matchedDet := make(map[int]bool, len(detections))

	if len(ids) > 0 && len(detections) > 0 {
		matrix := make([][]float64, len(ids))
		for i, id := range ids {
			tr := t.tracks[id]
			row := make([]float64, len(detections))
			for j, d := range detections {
				if d.Class != tr.class {
					row[j] = costInfeasible
					continue
				}
				cx, cy := d.BBox.Center()
				dist := math.Hypot(cx-tr.cx, cy-tr.cy)
				if dist > t.MaxDistance {
					row[j] = costInfeasible
					continue
				}
				row[j] = dist
			}
			matrix[i] = row
		}

		ha, err := hg.NewHungarianAlgorithm(matrix)
		if err == nil {
			assignment := ha.Execute()
			for i, j := range assignment {
				if j < 0 || j >= len(detections) {
					continue
				}
				if matrix[i][j] >= costInfeasible {
					continue
				}
				id := ids[i]
				tr := t.tracks[id]
				d := detections[j]
				cx, cy := d.BBox.Center()
				tr.bbox = d.BBox
				tr.confidence = d.Confidence
				tr.prevCx, tr.prevCy = tr.cx, tr.cy
				tr.cx, tr.cy = cx, cy
				tr.disappeared = 0
				matchedTrack[id] = true
				matchedDet[j] = true
			}
		}
	}

	for id, tr := range t.tracks {
		if matchedTrack[id] {
			continue
		}
		tr.disappeared++
		if tr.disappeared > t.MaxDisappeared {
			delete(t.tracks, id)
		}
	}

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

var _ pipeline.Tracker = (*AssociationTracker)(nil)
