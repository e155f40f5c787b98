package pulse

import (
	"time"

	"gonum.org/v1/gonum/stat"
)

// optimalScoreThreshold is the pulse score at or above which a snapshot
// counts toward "optimal time".
const optimalScoreThreshold = 70

// PeriodMetrics is the rollup of derived values for one window of
// snapshots.
type PeriodMetrics struct {
	AvgPulseScore      float64 `json:"avg_pulse_score"`
	TotalVisitors      int     `json:"total_visitors"`
	AvgDwellTime       *int    `json:"avg_dwell_time"`
	OptimalTimePercent float64 `json:"optimal_time_percent"`
	// PeakNight is the weekday with the highest mean pulse score, empty
	// when the window held no scored snapshots.
	PeakNight string `json:"peak_night"`
	// PeakHour is the hour of day (0-23) with the highest mean pulse
	// score, -1 when the window held no scored snapshots.
	PeakHour    int `json:"peak_hour"`
	SampleCount int `json:"sample_count"`

	// Analytics factor rollup. Computed through the independent
	// FactorBreakdown path, so temperature appears here even though the
	// live composite excludes it.
	AvgSoundScore float64 `json:"avg_sound_score"`
	AvgLightScore float64 `json:"avg_light_score"`
	AvgTempScore  float64 `json:"avg_temp_score"`
}

// MetricDelta is the signed and percentage change of one metric between
// two adjacent windows. ChangePercent is 0 when the previous value is not
// positive, so a dead previous week never divides by zero.
type MetricDelta struct {
	Current       float64 `json:"current"`
	Previous      float64 `json:"previous"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
}

// Trend is the qualitative direction of the pulse-score delta.
type Trend string

const (
	TrendImproving Trend = "improving"
	TrendDeclining Trend = "declining"
	TrendSteady    Trend = "steady"
)

// steadyBand is the pulse-score delta magnitude below which the trend
// reads as steady rather than noise chasing.
const steadyBand = 3.0

// PeriodComparison holds per-metric deltas between the current window and
// the previous adjacent window of equal nominal length.
type PeriodComparison struct {
	Current     PeriodMetrics `json:"current"`
	Previous    PeriodMetrics `json:"previous"`
	PulseScore  MetricDelta   `json:"pulse_score"`
	Visitors    MetricDelta   `json:"visitors"`
	DwellTime   MetricDelta   `json:"dwell_time"`
	OptimalTime MetricDelta   `json:"optimal_time"`
	Trend       Trend         `json:"trend"`
}

// AggregatePeriod rolls one window of snapshots up into PeriodMetrics.
// Snapshots with no sound and no light reading carry no score and are
// excluded from the score means.
func (c *Calculator) AggregatePeriod(snaps []SensorSnapshot) PeriodMetrics {
	m := PeriodMetrics{PeakHour: -1}

	var scores []float64
	var soundScores, lightScores, tempScores []float64
	var optimal int
	daySums := make(map[time.Weekday]*meanAcc)
	hourSums := make(map[int]*meanAcc)

	for _, snap := range snaps {
		if !snap.HasEnvironmentalData() {
			continue
		}
		score := float64(c.Score(snap).Score)
		scores = append(scores, score)
		if score >= optimalScoreThreshold {
			optimal++
		}
		accumulate(daySums, snap.Timestamp.Weekday(), score)
		accumulate(hourSums, snap.Timestamp.Hour(), score)

		fs := c.FactorBreakdown(snap)
		soundScores = append(soundScores, float64(fs.Sound.Score))
		lightScores = append(lightScores, float64(fs.Light.Score))
		tempScores = append(tempScores, float64(fs.Temperature.Score))
	}

	m.SampleCount = len(scores)
	if len(scores) > 0 {
		m.AvgPulseScore = stat.Mean(scores, nil)
		m.OptimalTimePercent = float64(optimal) / float64(len(scores)) * 100
		m.AvgSoundScore = stat.Mean(soundScores, nil)
		m.AvgLightScore = stat.Mean(lightScores, nil)
		m.AvgTempScore = stat.Mean(tempScores, nil)

		m.PeakNight = peakWeekday(daySums).String()
		m.PeakHour = peakHour(hourSums)
	}

	flow := DeriveOccupancyFlow(snaps)
	m.TotalVisitors = flow.TotalGuests
	m.AvgDwellTime = flow.AvgStayMinutes
	return m
}

// ComparePeriods aggregates two adjacent windows and produces the
// period-over-period deltas and qualitative trend.
func (c *Calculator) ComparePeriods(current, previous []SensorSnapshot) PeriodComparison {
	cur := c.AggregatePeriod(current)
	prev := c.AggregatePeriod(previous)

	cmp := PeriodComparison{
		Current:     cur,
		Previous:    prev,
		PulseScore:  metricDelta(cur.AvgPulseScore, prev.AvgPulseScore),
		Visitors:    metricDelta(float64(cur.TotalVisitors), float64(prev.TotalVisitors)),
		DwellTime:   metricDelta(dwellValue(cur.AvgDwellTime), dwellValue(prev.AvgDwellTime)),
		OptimalTime: metricDelta(cur.OptimalTimePercent, prev.OptimalTimePercent),
	}

	switch change := cmp.PulseScore.Change; {
	case change >= steadyBand:
		cmp.Trend = TrendImproving
	case change <= -steadyBand:
		cmp.Trend = TrendDeclining
	default:
		cmp.Trend = TrendSteady
	}
	return cmp
}

func metricDelta(cur, prev float64) MetricDelta {
	d := MetricDelta{
		Current:  cur,
		Previous: prev,
		Change:   cur - prev,
	}
	if prev > 0 {
		d.ChangePercent = d.Change / prev * 100
	}
	return d
}

func dwellValue(v *int) float64 {
	if v == nil {
		return 0
	}
	return float64(*v)
}

type meanAcc struct {
	sum float64
	n   int
}

func (a *meanAcc) mean() float64 {
	if a.n == 0 {
		return 0
	}
	return a.sum / float64(a.n)
}

func accumulate[K comparable](m map[K]*meanAcc, key K, v float64) {
	acc, ok := m[key]
	if !ok {
		acc = &meanAcc{}
		m[key] = acc
	}
	acc.sum += v
	acc.n++
}

// peakWeekday picks the weekday with the highest mean score, iterating in
// weekday order so ties resolve deterministically to the earlier day.
func peakWeekday(sums map[time.Weekday]*meanAcc) time.Weekday {
	best := time.Sunday
	bestMean := -1.0
	for d := time.Sunday; d <= time.Saturday; d++ {
		acc, ok := sums[d]
		if !ok {
			continue
		}
		if m := acc.mean(); m > bestMean {
			best, bestMean = d, m
		}
	}
	return best
}

// peakHour picks the hour with the highest mean score; ties resolve to
// the earlier hour.
func peakHour(sums map[int]*meanAcc) int {
	best := -1
	bestMean := -1.0
	for h := 0; h < 24; h++ {
		acc, ok := sums[h]
		if !ok {
			continue
		}
		if m := acc.mean(); m > bestMean {
			best, bestMean = h, m
		}
	}
	return best
}
