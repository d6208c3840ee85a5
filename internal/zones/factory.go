package zones

import (
	"fmt"

	"sentinel/internal/pipeline"
)

// NewProcessor constructs the zone processor for a closed set of zone
// names (spec.md §4.4), generalizing the teacher's detection-mode
// dispatch factory to zone-name dispatch.
func NewProcessor(zone pipeline.Zone) (pipeline.ZoneProcessor, error) {
	switch zone {
	case pipeline.ZoneOutgate:
		return NewOutgateProcessor(), nil
	case pipeline.ZoneCorridor:
		return NewCorridorProcessor(), nil
	case pipeline.ZoneSchoolGround:
		return NewSchoolGroundProcessor(), nil
	case pipeline.ZoneClassroom:
		return NewClassroomProcessor(), nil
	default:
		return nil, fmt.Errorf("unknown zone: %s", zone)
	}
}

// NewAllProcessors constructs one processor per canonical zone, used by
// the multi-zone pipeline (spec.md §4.5).
func NewAllProcessors() map[pipeline.Zone]pipeline.ZoneProcessor {
	return map[pipeline.Zone]pipeline.ZoneProcessor{
		pipeline.ZoneOutgate:      NewOutgateProcessor(),
		pipeline.ZoneCorridor:     NewCorridorProcessor(),
		pipeline.ZoneSchoolGround: NewSchoolGroundProcessor(),
		pipeline.ZoneClassroom:    NewClassroomProcessor(),
	}
}
