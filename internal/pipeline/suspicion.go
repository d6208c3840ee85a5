package pipeline

const (
	defaultSuspicionIncrement = 0.15
	defaultSuspicionDecay     = 0.08
)

// SuspicionMap is a bounded [0,1] accumulator per event type.
type SuspicionMap struct {
	scores map[EventType]float64
}

// NewSuspicionMap constructs an empty suspicion map.
func NewSuspicionMap() *SuspicionMap {
	return &SuspicionMap{scores: make(map[EventType]float64)}
}

// Update applies a detected=true/false observation. With detected=true the
// score increases by increment (clamped to 1); with detected=false it
// decreases by decay (clamped to 0). Pass increment/decay <= 0 to use the
// defaults (0.15 / 0.08).
func (s *SuspicionMap) Update(eventType EventType, detected bool, increment, decay float64) float64 {
	if increment <= 0 {
		increment = defaultSuspicionIncrement
	}
	if decay <= 0 {
		decay = defaultSuspicionDecay
	}
	score := s.scores[eventType]
	if detected {
		score += increment
		if score > 1 {
			score = 1
		}
	} else {
		score -= decay
		if score < 0 {
			score = 0
		}
	}
	s.scores[eventType] = score
	return score
}

// Get returns the current score for an event type (0 if never observed).
func (s *SuspicionMap) Get(eventType EventType) float64 {
	return s.scores[eventType]
}

// Reset clears the score for an event type.
func (s *SuspicionMap) Reset(eventType EventType) {
	delete(s.scores, eventType)
}
