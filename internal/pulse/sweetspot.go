package pulse

import "math"

// Variable names an environmental dimension the sweet-spot analyzer can
// bucket.
type Variable string

const (
	VariableSound       Variable = "sound"
	VariableLight       Variable = "light"
	VariableCrowd       Variable = "crowd"
	VariableTemperature Variable = "temperature"
)

// SweetSpotBucket is one range of a bucketed variable with its observed
// average estimated stay.
type SweetSpotBucket struct {
	Range          string  `json:"range"`
	AvgStayMinutes float64 `json:"avg_stay_minutes"`
	SampleCount    int     `json:"sample_count"`
	IsOptimal      bool    `json:"is_optimal"`
}

// SweetSpotResult identifies the bucketed range of a variable associated
// with the longest estimated guest stay.
type SweetSpotResult struct {
	Variable Variable          `json:"variable"`
	Buckets  []SweetSpotBucket `json:"buckets"`
	// OptimalRange is the label of the winning bucket, empty when the
	// window held no samples at all.
	OptimalRange string `json:"optimal_range"`
	// OutsideStayMinutes is the sample-weighted average stay across all
	// non-optimal buckets with data.
	OutsideStayMinutes float64 `json:"outside_stay_minutes"`
	// HitPercentage is the share of samples that fell in the optimal bucket.
	HitPercentage float64 `json:"hit_percentage"`
	TotalSamples  int     `json:"total_samples"`
}

// bucketDef is a half-open interval [min, max) with a display label.
// Bucket sets are fixed and ordered low to high.
type bucketDef struct {
	label string
	min   float64
	max   float64
}

var sweetSpotBuckets = map[Variable][]bucketDef{
	VariableSound: {
		{"<65 dB", math.Inf(-1), 65},
		{"65-70 dB", 65, 70},
		{"70-75 dB", 70, 75},
		{"75-82 dB", 75, 82},
		{"82-90 dB", 82, 90},
		{">=90 dB", 90, math.Inf(1)},
	},
	VariableLight: {
		{"<50 lux", math.Inf(-1), 50},
		{"50-150 lux", 50, 150},
		{"150-350 lux", 150, 350},
		{"350-600 lux", 350, 600},
		{">=600 lux", 600, math.Inf(1)},
	},
	// Crowd density as percent of venue capacity.
	VariableCrowd: {
		{"<20%", math.Inf(-1), 20},
		{"20-40%", 20, 40},
		{"40-60%", 40, 60},
		{"60-80%", 60, 80},
		{"80-100%", 80, 100},
		{">=100%", 100, math.Inf(1)},
	},
	VariableTemperature: {
		{"<65 F", math.Inf(-1), 65},
		{"65-68 F", 65, 68},
		{"68-72 F", 68, 72},
		{"72-76 F", 72, 76},
		{">=76 F", 76, math.Inf(1)},
	},
}

// estimatedStayMinutes converts a per-snapshot pulse score into an
// estimated dwell contribution. True per-snapshot dwell is not
// observable, so the score stands in for it. It is an approximation, not
// a measured quantity, and the bucket ranking depends on exactly this
// formula.
func estimatedStayMinutes(score int) float64 {
	return 30 + float64(score)*0.3
}

// sweetSpotValue extracts the bucketed variable's value from a snapshot,
// returning false when the reading is absent. Crowd density needs the
// venue capacity to express occupancy as a percentage.
func sweetSpotValue(snap SensorSnapshot, v Variable, capacity int) (float64, bool) {
	switch v {
	case VariableSound:
		if snap.Decibels != nil {
			return *snap.Decibels, true
		}
	case VariableLight:
		if snap.Light != nil {
			return *snap.Light, true
		}
	case VariableTemperature:
		if snap.IndoorTemp != nil {
			return *snap.IndoorTemp, true
		}
	case VariableCrowd:
		if capacity > 0 && snap.Occupancy != nil && snap.Occupancy.Current != nil {
			return float64(*snap.Occupancy.Current) / float64(capacity) * 100, true
		}
	}
	return 0, false
}

// AnalyzeSweetSpot buckets the given variable across a window of snapshots
// and identifies the range with the highest average estimated stay.
//
// A bucket is eligible to be optimal only when its sample count is at
// least max(5, 5% of total samples); this keeps a single outlier sample
// from winning. Ties resolve to the lowest-value eligible bucket. When no
// bucket clears the bar, the lowest-indexed bucket with any data is
// chosen so the result stays deterministic.
func (c *Calculator) AnalyzeSweetSpot(snaps []SensorSnapshot, v Variable, capacity int) SweetSpotResult {
	defs := sweetSpotBuckets[v]
	result := SweetSpotResult{
		Variable: v,
		Buckets:  make([]SweetSpotBucket, len(defs)),
	}
	if len(defs) == 0 {
		return result
	}

	sums := make([]float64, len(defs))
	counts := make([]int, len(defs))
	total := 0
	for _, snap := range snaps {
		val, ok := sweetSpotValue(snap, v, capacity)
		if !ok {
			continue
		}
		idx := bucketIndex(defs, val)
		if idx < 0 {
			continue
		}
		sums[idx] += estimatedStayMinutes(c.Score(snap).Score)
		counts[idx]++
		total++
	}

	for i, def := range defs {
		b := SweetSpotBucket{Range: def.label, SampleCount: counts[i]}
		if counts[i] > 0 {
			b.AvgStayMinutes = sums[i] / float64(counts[i])
		}
		result.Buckets[i] = b
	}
	result.TotalSamples = total
	if total == 0 {
		return result
	}

	minSamples := int(math.Ceil(0.05 * float64(total)))
	if minSamples < 5 {
		minSamples = 5
	}

	optimal := -1
	for i := range defs {
		if counts[i] < minSamples {
			continue
		}
		if optimal < 0 || result.Buckets[i].AvgStayMinutes > result.Buckets[optimal].AvgStayMinutes {
			optimal = i
		}
	}
	if optimal < 0 {
		// No bucket cleared the sample bar; fall back to the lowest-indexed
		// bucket that has data.
		for i := range defs {
			if counts[i] > 0 {
				optimal = i
				break
			}
		}
	}

	result.Buckets[optimal].IsOptimal = true
	result.OptimalRange = result.Buckets[optimal].Range
	result.HitPercentage = float64(counts[optimal]) / float64(total) * 100

	var outsideSum float64
	var outsideCount int
	for i := range defs {
		if i == optimal || counts[i] == 0 {
			continue
		}
		outsideSum += sums[i]
		outsideCount += counts[i]
	}
	if outsideCount > 0 {
		result.OutsideStayMinutes = outsideSum / float64(outsideCount)
	}
	return result
}

// bucketIndex finds the half-open bucket [min, max) containing val.
func bucketIndex(defs []bucketDef, val float64) int {
	for i, def := range defs {
		if val >= def.min && val < def.max {
			return i
		}
	}
	return -1
}

// Buckets returns the fixed bucket labels for a variable, in order.
func Buckets(v Variable) []string {
	defs := sweetSpotBuckets[v]
	labels := make([]string, len(defs))
	for i, def := range defs {
		labels[i] = def.label
	}
	return labels
}
