package pulse

import "time"

// Reading is one retained point of a detector's rolling history: the raw
// metrics the detector compares between consecutive samples.
type Reading struct {
	Timestamp time.Time `json:"timestamp"`
	Decibels  *float64  `json:"decibels,omitempty"`
	Light     *float64  `json:"light,omitempty"`
	Score     int       `json:"score"`
	Occupancy *int      `json:"occupancy,omitempty"`
}

// History is a bounded double-ended queue of readings, evicted both by
// count and by age. Eviction is explicit so both bounds are independently
// testable. Not safe for concurrent use; each detector instance owns its
// own history.
type History struct {
	maxSamples int
	maxAge     time.Duration
	readings   []Reading
}

// NewHistory returns an empty history bounded to maxSamples readings and
// readings no older than maxAge.
func NewHistory(maxSamples int, maxAge time.Duration) *History {
	return &History{
		maxSamples: maxSamples,
		maxAge:     maxAge,
	}
}

// Push appends a reading and evicts from the front if the count bound is
// exceeded.
func (h *History) Push(r Reading) {
	h.readings = append(h.readings, r)
	if over := len(h.readings) - h.maxSamples; over > 0 {
		h.readings = h.readings[over:]
	}
}

// PruneBefore evicts readings with timestamps older than the history's
// age bound relative to now.
func (h *History) PruneBefore(now time.Time) {
	cutoff := now.Add(-h.maxAge)
	i := 0
	for i < len(h.readings) && h.readings[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		h.readings = h.readings[i:]
	}
}

// Last returns the most recent retained reading.
func (h *History) Last() (Reading, bool) {
	if len(h.readings) == 0 {
		return Reading{}, false
	}
	return h.readings[len(h.readings)-1], true
}

// Len returns the number of retained readings.
func (h *History) Len() int {
	return len(h.readings)
}

// Readings returns a copy of the retained readings, oldest first.
func (h *History) Readings() []Reading {
	out := make([]Reading, len(h.readings))
	copy(out, h.readings)
	return out
}
