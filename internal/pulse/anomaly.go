package pulse

import (
	"fmt"
	"time"

	"github.com/pulse-data/venue.report/internal/timeutil"
)

// Metric names the reading a detected anomaly applies to.
type Metric string

const (
	MetricSound     Metric = "sound"
	MetricLight     Metric = "light"
	MetricPulse     Metric = "pulse"
	MetricOccupancy Metric = "occupancy"
)

// Direction distinguishes a sudden rise from a sudden fall.
type Direction string

const (
	DirectionSpike Direction = "spike"
	DirectionDrop  Direction = "drop"
)

// Severity classifies how large a sudden change was. Thresholds are
// metric-specific; see the detect functions.
type Severity string

const (
	SeverityMinor       Severity = "minor"
	SeveritySignificant Severity = "significant"
	SeverityMajor       Severity = "major"
)

var severityRank = map[Severity]int{
	SeverityMinor:       1,
	SeveritySignificant: 2,
	SeverityMajor:       3,
}

// Anomaly is one detected sudden change between two consecutive retained
// readings.
type Anomaly struct {
	Metric        Metric    `json:"metric"`
	Timestamp     time.Time `json:"timestamp"`
	PreviousValue float64   `json:"previous_value"`
	CurrentValue  float64   `json:"current_value"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	Direction     Direction `json:"direction"`
	Severity      Severity  `json:"severity"`
	Message       string    `json:"message"`
}

// Detection thresholds. Each metric compares the new reading against the
// immediately preceding retained reading, not a longer-range baseline.
const (
	soundDeltaMinor       = 8.0  // dB change that registers at all
	soundDeltaSignificant = 10.0 // dB
	soundDeltaMajor       = 15.0 // dB

	lightRatioMinor       = 0.30 // fraction of previous value
	lightRatioSignificant = 0.35
	lightRatioMajor       = 0.50
	lightDeltaAbsolute    = 100.0 // lux, triggers regardless of ratio

	pulseDeltaMinor       = 10
	pulseDeltaSignificant = 15
	pulseDeltaMajor       = 20
)

const (
	detectorHistorySamples = 60
	detectorRetention      = 30 * time.Minute
)

// Detector maintains a bounded rolling history of readings for one venue
// and flags sudden jumps or drops in sound, light, or pulse score. One
// instance per venue; instances are not safe for concurrent use and must
// not be shared across venues.
type Detector struct {
	clock     timeutil.Clock
	history   *History
	anomalies []Anomaly
}

// NewDetector returns a detector with the stock history bounds (60
// samples, 30 minutes). A nil clock uses the real clock.
func NewDetector(clock timeutil.Clock) *Detector {
	return NewDetectorWithHistory(clock, detectorHistorySamples, detectorRetention)
}

// NewDetectorWithHistory returns a detector whose rolling history is
// bounded to maxSamples readings no older than maxAge. Non-positive
// bounds fall back to the stock values.
func NewDetectorWithHistory(clock timeutil.Clock, maxSamples int, maxAge time.Duration) *Detector {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if maxSamples <= 0 {
		maxSamples = detectorHistorySamples
	}
	if maxAge <= 0 {
		maxAge = detectorRetention
	}
	return &Detector{
		clock:   clock,
		history: NewHistory(maxSamples, maxAge),
	}
}

// Observe feeds one snapshot and its derived pulse score into the
// detector and returns the anomalies this reading triggered, if any.
// Detection compares against the immediately preceding retained reading.
func (d *Detector) Observe(snap SensorSnapshot, score int) []Anomaly {
	now := d.clock.Now()
	d.history.PruneBefore(now)

	cur := Reading{
		Timestamp: snap.Timestamp,
		Decibels:  snap.Decibels,
		Light:     snap.Light,
		Score:     score,
	}
	if snap.Occupancy != nil {
		cur.Occupancy = snap.Occupancy.Current
	}

	var found []Anomaly
	if prev, ok := d.history.Last(); ok {
		if a, ok := detectSound(prev, cur); ok {
			found = append(found, a)
		}
		if a, ok := detectLight(prev, cur); ok {
			found = append(found, a)
		}
		if a, ok := detectPulse(prev, cur); ok {
			found = append(found, a)
		}
	}

	d.history.Push(cur)
	d.anomalies = append(d.anomalies, found...)
	d.pruneAnomalies(now)
	return found
}

// Open returns the currently retained anomalies, oldest first.
func (d *Detector) Open() []Anomaly {
	out := make([]Anomaly, len(d.anomalies))
	copy(out, d.anomalies)
	return out
}

// Primary returns the most severe open anomaly, ties broken by recency.
func (d *Detector) Primary() (Anomaly, bool) {
	if len(d.anomalies) == 0 {
		return Anomaly{}, false
	}
	best := d.anomalies[0]
	for _, a := range d.anomalies[1:] {
		if severityRank[a.Severity] > severityRank[best.Severity] {
			best = a
			continue
		}
		if severityRank[a.Severity] == severityRank[best.Severity] &&
			!a.Timestamp.Before(best.Timestamp) {
			best = a
		}
	}
	return best, true
}

// HistoryLen reports how many readings the detector currently retains.
func (d *Detector) HistoryLen() int {
	return d.history.Len()
}

// pruneAnomalies evicts anomalies older than the retention window. This
// runs independently of the raw-history pruning: an anomaly can outlive
// the readings that produced it and vice versa.
func (d *Detector) pruneAnomalies(now time.Time) {
	cutoff := now.Add(-detectorRetention)
	i := 0
	for i < len(d.anomalies) && d.anomalies[i].Timestamp.Before(cutoff) {
		i++
	}
	if i > 0 {
		d.anomalies = d.anomalies[i:]
	}
}

func detectSound(prev, cur Reading) (Anomaly, bool) {
	if prev.Decibels == nil || cur.Decibels == nil {
		return Anomaly{}, false
	}
	delta := *cur.Decibels - *prev.Decibels
	abs := absFloat(delta)
	if abs < soundDeltaMinor {
		return Anomaly{}, false
	}
	severity := SeverityMinor
	switch {
	case abs >= soundDeltaMajor:
		severity = SeverityMajor
	case abs >= soundDeltaSignificant:
		severity = SeveritySignificant
	}
	return newAnomaly(MetricSound, cur.Timestamp, *prev.Decibels, *cur.Decibels, severity, "dB"), true
}

func detectLight(prev, cur Reading) (Anomaly, bool) {
	if prev.Light == nil || cur.Light == nil {
		return Anomaly{}, false
	}
	delta := *cur.Light - *prev.Light
	abs := absFloat(delta)
	ratio := 0.0
	if *prev.Light > 0 {
		ratio = abs / *prev.Light
	}
	if ratio < lightRatioMinor && abs < lightDeltaAbsolute {
		return Anomaly{}, false
	}
	severity := SeverityMinor
	switch {
	case ratio >= lightRatioMajor:
		severity = SeverityMajor
	case ratio >= lightRatioSignificant:
		severity = SeveritySignificant
	}
	return newAnomaly(MetricLight, cur.Timestamp, *prev.Light, *cur.Light, severity, "lux"), true
}

func detectPulse(prev, cur Reading) (Anomaly, bool) {
	delta := cur.Score - prev.Score
	abs := delta
	if abs < 0 {
		abs = -abs
	}
	if abs < pulseDeltaMinor {
		return Anomaly{}, false
	}
	severity := SeverityMinor
	switch {
	case abs >= pulseDeltaMajor:
		severity = SeverityMajor
	case abs >= pulseDeltaSignificant:
		severity = SeveritySignificant
	}
	return newAnomaly(MetricPulse, cur.Timestamp, float64(prev.Score), float64(cur.Score), severity, "pts"), true
}

func newAnomaly(metric Metric, ts time.Time, prev, cur float64, severity Severity, unit string) Anomaly {
	delta := cur - prev
	direction := DirectionSpike
	if delta < 0 {
		direction = DirectionDrop
	}
	pct := 0.0
	if prev != 0 {
		pct = delta / prev * 100
	}
	return Anomaly{
		Metric:        metric,
		Timestamp:     ts,
		PreviousValue: prev,
		CurrentValue:  cur,
		Change:        delta,
		ChangePercent: pct,
		Direction:     direction,
		Severity:      severity,
		Message: fmt.Sprintf("%s %s: %.1f -> %.1f %s (%+.1f)",
			metric, direction, prev, cur, unit, delta),
	}
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
