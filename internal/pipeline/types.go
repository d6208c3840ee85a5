package pipeline

import "time"

// Zone identifies a labeled category of scene determining which detectors
// and thresholds apply.
type Zone string

const (
	ZoneOutgate      Zone = "outgate"
	ZoneCorridor     Zone = "corridor"
	ZoneSchoolGround Zone = "school_ground"
	ZoneClassroom    Zone = "classroom"
	ZoneAll          Zone = "all"
)

// EventType is one of the enumerated detection event types.
type EventType string

const (
	EventVehicleDetected     EventType = "vehicle_detected"
	EventGateAccident        EventType = "gate_accident"
	EventCrowdFormation      EventType = "crowd_formation"
	EventFight               EventType = "fight"
	EventMobileUsage         EventType = "mobile_usage"
	EventWeaponDetected      EventType = "weapon_detected"
	EventFireSmokeDetected   EventType = "fire_smoke_detected"
	EventFallDetected        EventType = "fall_detected"
	EventAfterHoursIntrusion EventType = "after_hours_intrusion"
)

// EventTypesForZone lists the event types a zone processor is permitted
// to emit.
func EventTypesForZone(zone Zone) []EventType {
	switch zone {
	case ZoneOutgate:
		return []EventType{EventVehicleDetected, EventGateAccident, EventWeaponDetected, EventFireSmokeDetected, EventAfterHoursIntrusion}
	case ZoneCorridor:
		return []EventType{EventCrowdFormation, EventFight, EventWeaponDetected, EventFireSmokeDetected, EventAfterHoursIntrusion}
	case ZoneSchoolGround:
		return []EventType{EventCrowdFormation, EventFight, EventWeaponDetected, EventFallDetected, EventFireSmokeDetected, EventAfterHoursIntrusion}
	case ZoneClassroom:
		return []EventType{EventMobileUsage, EventFight, EventWeaponDetected, EventFireSmokeDetected, EventAfterHoursIntrusion}
	default:
		return nil
	}
}

// BBox is an axis-aligned box in pixel coordinates [x1,y1,x2,y2].
type BBox struct {
	X1, Y1, X2, Y2 float64
}

// Width returns the box width.
func (b BBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the box height.
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Area returns the box area; negative/degenerate boxes yield 0.
func (b BBox) Area() float64 {
	w, h := b.Width(), b.Height()
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Center returns the box center point.
func (b BBox) Center() (float64, float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// IoU returns the intersection-over-union of two boxes.
func (b BBox) IoU(o BBox) float64 {
	ix1, iy1 := max(b.X1, o.X1), max(b.Y1, o.Y1)
	ix2, iy2 := min(b.X2, o.X2), min(b.Y2, o.Y2)
	iw, ih := ix2-ix1, iy2-iy1
	if iw <= 0 || ih <= 0 {
		return 0
	}
	inter := iw * ih
	union := b.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Detection is a single raw, per-frame detection from a generic detector.
// Lifetime: one frame.
type Detection struct {
	Class      string
	Confidence float64
	BBox       BBox
}

// TrackedObject is a Detection associated across frames by a Tracker.
type TrackedObject struct {
	ObjectID   int
	Class      string
	BBox       BBox
	Confidence float64
	// MotionVector is (dx, dy) in px/frame, derived from the previous-to-
	// current center delta.
	MotionVector [2]float64
	Timestamp    time.Time
}

// Center returns the object's bbox center.
func (t TrackedObject) Center() (float64, float64) { return t.BBox.Center() }

// FrameMetadata describes the frame a pipeline run is processing.
type FrameMetadata struct {
	CameraID   string
	FrameIndex uint64
	// Timestamp is monotonic seconds since an arbitrary epoch for this
	// camera's stream; every component within a single process_frame call
	// observes the same value (see DESIGN.md, vehicle motion analyzer
	// timestamp-source decision).
	Timestamp time.Time
	Width     int
	Height    int
}

// Keypoint is a single COCO keypoint [x, y, visibility].
type Keypoint struct {
	X, Y, Visibility float64
}

// COCO keypoint indices used by pose-based behavior detectors.
const (
	KeypointNose          = 0
	KeypointLeftShoulder  = 5
	KeypointRightShoulder = 6
	KeypointLeftWrist     = 9
	KeypointRightWrist    = 10
	KeypointLeftHip       = 11
	KeypointRightHip      = 12
	KeypointLeftAnkle     = 15
	KeypointRightAnkle    = 16
)

// Pose is a detected human pose with 17 COCO keypoints.
type Pose struct {
	// TrackID is non-nil when the pose model emits native track ids;
	// otherwise a negative pseudo-id is assigned by the shared pose
	// detector and later aligned to a TrackedObject via bbox IoU.
	TrackID    *int
	BBox       BBox
	Confidence float64
	Keypoints  [17]Keypoint
}

// WeaponFinding is one shared-weapon-detector result.
type WeaponFinding struct {
	ClassName  string // gun | knife | blade | scissors
	Confidence float64
	BBox       BBox
}

// FireSmokeFinding is one shared-fire/smoke-detector result.
type FireSmokeFinding struct {
	ClassName  string // fire | smoke
	Confidence float64
	BBox       BBox
}

// SharedFindings are the per-frame outputs of the shared detector bundle,
// passed by reference to every zone processor observing this frame.
type SharedFindings struct {
	Weapons   []WeaponFinding
	FireSmoke []FireSmokeFinding
	Poses     []Pose
}

// SafePoses returns Poses, tolerating a nil receiver (e.g. when a zone
// processor is invoked before the shared bundle has run).
func (s *SharedFindings) SafePoses() []Pose {
	if s == nil {
		return nil
	}
	return s.Poses
}

// DetectionEvent is a candidate event emitted by a zone processor.
type DetectionEvent struct {
	EventType     EventType
	Confidence    float64
	BoundingBoxes []BBox
	Metadata      map[string]any
}

// FormattedEvent is the event shape posted to the outbound sink.
type FormattedEvent struct {
	EventID         string
	TenantID        string
	CameraID        string
	Zone            Zone
	EventType       EventType
	Confidence      float64
	Timestamp       time.Time
	BoundingBoxes   []BBox
	SeverityScore   float64
	Metadata        map[string]any
	GlobalPersonID  *int
	AfterHours      bool
	DetectedByZone  Zone // optional, present under multi-zone
}

// CameraConfig describes one configured camera, as returned by the
// external camera-configuration source.
type CameraConfig struct {
	ID          string
	Name        string
	Zone        Zone
	VideoPath   string
	URL         string
	Mode        string // "webcam", optional
	WebcamIndex *int
	Active      bool
}
