package reid

import (
	"time"

	"sentinel/internal/pipeline"
)

// Manager enriches formatted events involving a person with a
// global_person_id and cross-camera severity boost (spec.md §4.7).
type Manager struct {
	embedder pipeline.Embedder
	gallery  *Gallery
}

// NewManager constructs a re-identification manager.
func NewManager(embedder pipeline.Embedder, gallery *Gallery) *Manager {
	return &Manager{embedder: embedder, gallery: gallery}
}

// Enrich crops the person bbox from frameJPEG, computes its embedding,
// matches or registers it in the gallery, and sets the event's
// GlobalPersonID, AfterHours-independent cross-camera severity boost, and
// cross_camera/seen_in_cameras metadata.
func (m *Manager) Enrich(event *pipeline.FormattedEvent, frameJPEG []byte, personBox pipeline.BBox, now time.Time) error {
	embedding, _, err := m.embedder.Embed(frameJPEG, personBox)
	if err != nil {
		return err
	}

	globalID, _ := m.gallery.MatchOrRegister(embedding, event.CameraID, now)
	event.GlobalPersonID = &globalID

	crossCamera, cameras := m.gallery.CrossCamera(globalID)
	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}
	event.Metadata["cross_camera"] = crossCamera
	event.Metadata["seen_in_cameras"] = cameras

	if crossCamera {
		event.SeverityScore = SeverityBoost(event.SeverityScore, true)
	}
	return nil
}
