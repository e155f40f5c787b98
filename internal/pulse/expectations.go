package pulse

import "time"

// Intensity is a qualitative label for expected venue activity in a
// day/time period.
type Intensity string

const (
	IntensityDead        Intensity = "dead"
	IntensitySlow        Intensity = "slow"
	IntensityBuilding    Intensity = "building"
	IntensityBusy        Intensity = "busy"
	IntensityPeak        Intensity = "peak"
	IntensityWindingDown Intensity = "winding-down"
)

// TimeExpectation is the expected pulse score and activity level for a
// (day-of-week, time-period) cell of the static expectation table.
type TimeExpectation struct {
	Day           time.Weekday `json:"day"`
	Period        string       `json:"period"`
	TargetScore   int          `json:"target_score"`
	MinAcceptable int          `json:"min_acceptable"`
	Intensity     Intensity    `json:"intensity"`
	Label         string       `json:"label"`
}

// ExpectationCheck evaluates an observed score against an expectation.
type ExpectationCheck struct {
	Score         int  `json:"score"`
	MeetsTarget   bool `json:"meets_target"`
	ExceedsTarget bool `json:"exceeds_target"`
	BelowMinimum  bool `json:"below_minimum"`
	Gap           int  `json:"gap"`
}

// UpcomingPeriod describes the next time period after a reference instant,
// for display purposes only.
type UpcomingPeriod struct {
	Period          string    `json:"period"`
	Intensity       Intensity `json:"intensity"`
	TargetScore     int       `json:"target_score"`
	StartsInMinutes int       `json:"starts_in_minutes"`
}

// timePeriod is a contiguous block of hours on an extended 02:00-26:00
// axis so late-night can wrap past midnight without a special case. The
// seven periods are non-overlapping and cover all 24 hours.
type timePeriod struct {
	name      string
	startHour int // inclusive, extended axis
	endHour   int // exclusive, extended axis
}

const (
	PeriodAfterHours   = "after-hours"
	PeriodMorning      = "morning"
	PeriodAfternoon    = "afternoon"
	PeriodPreRush      = "pre-rush"
	PeriodEarlyEvening = "early-evening"
	PeriodPeak         = "peak"
	PeriodLateNight    = "late-night"
)

var timePeriods = []timePeriod{
	{PeriodAfterHours, 2, 6},
	{PeriodMorning, 6, 11},
	{PeriodAfternoon, 11, 16},
	{PeriodPreRush, 16, 18},
	{PeriodEarlyEvening, 18, 20},
	{PeriodPeak, 20, 23},
	{PeriodLateNight, 23, 26},
}

// expectationCell is one (target, minimum, intensity) entry of the table.
type expectationCell struct {
	target    int
	min       int
	intensity Intensity
}

// expectationTable is the static day-of-week x time-period lookup. This is
// deliberately a plain editable data table, not derived or learned; tune
// it by editing the literals. Weekend after-hours cells reflect the
// previous night's spillover crowd rather than a dead room.
var expectationTable = map[time.Weekday]map[string]expectationCell{
	time.Sunday: {
		PeriodAfterHours:   {40, 20, IntensityWindingDown},
		PeriodMorning:      {30, 15, IntensitySlow},
		PeriodAfternoon:    {45, 25, IntensityBuilding},
		PeriodPreRush:      {45, 25, IntensityBuilding},
		PeriodEarlyEvening: {50, 30, IntensityBuilding},
		PeriodPeak:         {55, 35, IntensityBusy},
		PeriodLateNight:    {35, 20, IntensityWindingDown},
	},
	time.Monday: {
		PeriodAfterHours:   {15, 5, IntensityDead},
		PeriodMorning:      {25, 10, IntensitySlow},
		PeriodAfternoon:    {35, 20, IntensitySlow},
		PeriodPreRush:      {45, 25, IntensityBuilding},
		PeriodEarlyEvening: {55, 35, IntensityBuilding},
		PeriodPeak:         {60, 40, IntensityBusy},
		PeriodLateNight:    {30, 15, IntensityWindingDown},
	},
	time.Tuesday: {
		PeriodAfterHours:   {15, 5, IntensityDead},
		PeriodMorning:      {25, 10, IntensitySlow},
		PeriodAfternoon:    {35, 20, IntensitySlow},
		PeriodPreRush:      {45, 25, IntensityBuilding},
		PeriodEarlyEvening: {55, 35, IntensityBuilding},
		PeriodPeak:         {62, 40, IntensityBusy},
		PeriodLateNight:    {30, 15, IntensityWindingDown},
	},
	time.Wednesday: {
		PeriodAfterHours:   {15, 5, IntensityDead},
		PeriodMorning:      {25, 10, IntensitySlow},
		PeriodAfternoon:    {38, 20, IntensitySlow},
		PeriodPreRush:      {50, 30, IntensityBuilding},
		PeriodEarlyEvening: {60, 40, IntensityBusy},
		PeriodPeak:         {68, 45, IntensityBusy},
		PeriodLateNight:    {35, 20, IntensityWindingDown},
	},
	time.Thursday: {
		PeriodAfterHours:   {20, 10, IntensityDead},
		PeriodMorning:      {28, 12, IntensitySlow},
		PeriodAfternoon:    {40, 22, IntensitySlow},
		PeriodPreRush:      {55, 35, IntensityBuilding},
		PeriodEarlyEvening: {65, 45, IntensityBusy},
		PeriodPeak:         {75, 55, IntensityBusy},
		PeriodLateNight:    {45, 25, IntensityWindingDown},
	},
	time.Friday: {
		PeriodAfterHours:   {25, 10, IntensityDead},
		PeriodMorning:      {30, 15, IntensitySlow},
		PeriodAfternoon:    {45, 25, IntensityBuilding},
		PeriodPreRush:      {65, 45, IntensityBuilding},
		PeriodEarlyEvening: {75, 55, IntensityBusy},
		PeriodPeak:         {90, 70, IntensityPeak},
		PeriodLateNight:    {65, 45, IntensityWindingDown},
	},
	time.Saturday: {
		PeriodAfterHours:   {45, 25, IntensityWindingDown},
		PeriodMorning:      {30, 15, IntensitySlow},
		PeriodAfternoon:    {50, 30, IntensityBuilding},
		PeriodPreRush:      {65, 45, IntensityBuilding},
		PeriodEarlyEvening: {78, 58, IntensityBusy},
		PeriodPeak:         {90, 70, IntensityPeak},
		PeriodLateNight:    {70, 50, IntensityWindingDown},
	},
}

var intensityLabels = map[Intensity]string{
	IntensityDead:        "Quiet hours",
	IntensitySlow:        "Slow and steady",
	IntensityBuilding:    "Energy building",
	IntensityBusy:        "Busy stretch",
	IntensityPeak:        "Peak hours",
	IntensityWindingDown: "Winding down",
}

// periodFor resolves the time period containing the given wall-clock hour.
func periodFor(hour int) timePeriod {
	extended := hour
	if extended < 2 {
		extended += 24
	}
	for _, p := range timePeriods {
		if extended >= p.startHour && extended < p.endHour {
			return p
		}
	}
	// Unreachable: the periods cover [2, 26).
	return timePeriods[0]
}

// ExpectationAt looks up the expectation for an instant. Pure table
// lookup; the caller supplies "now" so tests and reports can evaluate any
// point in time.
func ExpectationAt(t time.Time) TimeExpectation {
	p := periodFor(t.Hour())
	cell := expectationTable[t.Weekday()][p.name]
	return TimeExpectation{
		Day:           t.Weekday(),
		Period:        p.name,
		TargetScore:   cell.target,
		MinAcceptable: cell.min,
		Intensity:     cell.intensity,
		Label:         intensityLabels[cell.intensity],
	}
}

// exceedsMargin is how far past target a score must land to count as
// exceeding it.
const exceedsMargin = 5

// Evaluate compares an observed pulse score against the expectation.
func (e TimeExpectation) Evaluate(score int) ExpectationCheck {
	return ExpectationCheck{
		Score:         score,
		MeetsTarget:   score >= e.TargetScore,
		ExceedsTarget: score >= e.TargetScore+exceedsMargin,
		BelowMinimum:  score < e.MinAcceptable,
		Gap:           score - e.TargetScore,
	}
}

// NextPeriodAfter resolves the period that starts next after t and how
// many minutes away its start is. Display-only; nothing downstream
// branches on it.
func NextPeriodAfter(t time.Time) UpcomingPeriod {
	current := periodFor(t.Hour())
	startHour := current.endHour % 24

	next := time.Date(t.Year(), t.Month(), t.Day(), startHour, 0, 0, 0, t.Location())
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}

	p := periodFor(startHour)
	cell := expectationTable[next.Weekday()][p.name]
	return UpcomingPeriod{
		Period:          p.name,
		Intensity:       cell.intensity,
		TargetScore:     cell.target,
		StartsInMinutes: int(next.Sub(t).Minutes()),
	}
}
