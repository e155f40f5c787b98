package pulse

import "math"

// FactorScore is the 0-100 score for one environmental dimension.
// InRange is true only when the reading fell inside the optimal range;
// a missing reading scores 0 with InRange false.
type FactorScore struct {
	Score   int  `json:"score"`
	InRange bool `json:"in_range"`
}

// FactorScores groups the per-dimension scores behind a pulse result.
type FactorScores struct {
	Sound       FactorScore `json:"sound"`
	Light       FactorScore `json:"light"`
	Temperature FactorScore `json:"temperature"`
}

// PulseResult is the composite quality score derived from one snapshot.
type PulseResult struct {
	Score   int          `json:"score"`
	Factors FactorScores `json:"factors"`
}

// Range is an inclusive optimal range for an environmental reading.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Contains reports whether v falls inside the inclusive range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Targets holds the optimal ranges and composite weights used by the
// calculator. Values are venue tunables; DefaultTargets returns the
// stock configuration.
type Targets struct {
	Sound      Range `json:"sound"`
	Light      Range `json:"light"`
	IndoorTemp Range `json:"indoor_temp"`

	// Composite weights. Temperature is scored for diagnostics but carries
	// no weight in the live composite; the analytics rollup consumes the
	// temperature factor separately (see FactorBreakdown).
	SoundWeight float64 `json:"sound_weight"`
	LightWeight float64 `json:"light_weight"`
}

// DefaultTargets returns the stock target configuration: sound 70-82 dB,
// light 50-350 lux, indoor temperature 68-74 F, weights 0.60/0.40.
func DefaultTargets() Targets {
	return Targets{
		Sound:       Range{Min: 70, Max: 82},
		Light:       Range{Min: 50, Max: 350},
		IndoorTemp:  Range{Min: 68, Max: 74},
		SoundWeight: 0.60,
		LightWeight: 0.40,
	}
}

// Calculator scores snapshots against a set of targets. The zero value is
// not usable; construct with NewCalculator.
type Calculator struct {
	targets Targets
}

// NewCalculator returns a Calculator using the given targets.
func NewCalculator(t Targets) *Calculator {
	return &Calculator{targets: t}
}

// Targets returns the calculator's target configuration.
func (c *Calculator) Targets() Targets {
	return c.targets
}

// scoreFactor scores a single reading against its optimal range. Inside
// the range scores 100. Outside, the score decays linearly to 0 over a
// tolerance window equal to half the range width, floored at 0. A nil
// reading scores 0; callers needing to distinguish "no data" from "far
// out of range" must check presence themselves.
func scoreFactor(v *float64, r Range) FactorScore {
	if v == nil {
		return FactorScore{}
	}
	if r.Contains(*v) {
		return FactorScore{Score: 100, InRange: true}
	}
	tolerance := 0.5 * (r.Max - r.Min)
	if tolerance <= 0 {
		return FactorScore{}
	}
	var deviation float64
	if *v < r.Min {
		deviation = r.Min - *v
	} else {
		deviation = *v - r.Max
	}
	score := math.Round(100 - (deviation/tolerance)*100)
	if score < 0 {
		score = 0
	}
	return FactorScore{Score: int(score)}
}

// Score derives the live pulse result from one snapshot. The composite is
// the weighted sum of the sound and light factor scores, rounded to the
// nearest integer and clamped to [0,100]. Absent readings degrade to a
// lower score rather than failing; Score never errors.
func (c *Calculator) Score(snap SensorSnapshot) PulseResult {
	sound := scoreFactor(snap.Decibels, c.targets.Sound)
	light := scoreFactor(snap.Light, c.targets.Light)
	temp := scoreFactor(snap.IndoorTemp, c.targets.IndoorTemp)

	composite := float64(sound.Score)*c.targets.SoundWeight +
		float64(light.Score)*c.targets.LightWeight
	score := int(math.Round(composite))
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	return PulseResult{
		Score: score,
		Factors: FactorScores{
			Sound:       sound,
			Light:       light,
			Temperature: temp,
		},
	}
}

// FactorBreakdown is the analytics-rollup scoring path: it scores each
// dimension independently, including temperature, without producing a
// composite. This intentionally stays a separate code path from Score;
// the live composite excludes temperature while rollups report it.
func (c *Calculator) FactorBreakdown(snap SensorSnapshot) FactorScores {
	return FactorScores{
		Sound:       scoreFactor(snap.Decibels, c.targets.Sound),
		Light:       scoreFactor(snap.Light, c.targets.Light),
		Temperature: scoreFactor(snap.IndoorTemp, c.targets.IndoorTemp),
	}
}
