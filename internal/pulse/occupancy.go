package pulse

import "math"

// OccupancyFlow is the guest-flow summary for a window of snapshots.
// AvgStayMinutes is nil when the window holds too few exit events to
// estimate dwell time reliably. LowConfidence is set when a count was
// produced from a degenerate window (fewer than two counter readings), so
// callers can present "building..." instead of a hard number.
type OccupancyFlow struct {
	TotalGuests    int  `json:"total_guests"`
	AvgStayMinutes *int `json:"avg_stay_minutes"`
	LowConfidence  bool `json:"low_confidence,omitempty"`
}

// maxStayMinutes caps the dwell estimate. The estimator is a steady-state
// approximation (occupancy divided by exit throughput) and diverges for
// very low exit rates.
const maxStayMinutes = 180

// minExitsPerHour is the floor below which the dwell estimate is treated
// as undefined rather than misleadingly precise.
const minExitsPerHour = 0.5

// GuestCount extracts the number of guests over a window from the
// cumulative entries counter: the delta between the first and last
// observed value, floored at 0 to tolerate an out-of-order or reset
// sample. A delta, not a maximum: using the maximum would double count
// after a counter wrap or reporting gap. With fewer than two defined
// counter readings the single available value (or 0) is returned.
func GuestCount(snaps []SensorSnapshot) (guests int, lowConfidence bool) {
	pts := entriesPoints(sortedByTime(snaps))
	switch len(pts) {
	case 0:
		return 0, true
	case 1:
		return pts[0], true
	}
	delta := pts[len(pts)-1] - pts[0]
	if delta < 0 {
		delta = 0
	}
	return delta, false
}

// AvgStayMinutes estimates average dwell time over a window via a
// Little's-law style approximation: mean occupancy divided by exits per
// hour. Returns nil when the window has fewer than two defined exits
// counters, when exits per hour is below minExitsPerHour, or when mean
// occupancy is below 1; in each case there are too few events to
// estimate reliably.
func AvgStayMinutes(snaps []SensorSnapshot) *int {
	ordered := sortedByTime(snaps)

	var exitPts []SensorSnapshot
	for _, s := range ordered {
		if s.Occupancy != nil && s.Occupancy.Exits != nil {
			exitPts = append(exitPts, s)
		}
	}
	if len(exitPts) < 2 {
		return nil
	}

	first, last := exitPts[0], exitPts[len(exitPts)-1]
	totalExits := *last.Occupancy.Exits - *first.Occupancy.Exits
	if totalExits < 0 {
		totalExits = 0
	}
	hours := last.Timestamp.Sub(first.Timestamp).Hours()
	if hours < 1 {
		hours = 1
	}
	exitsPerHour := float64(totalExits) / hours

	avgOccupancy := meanCurrentOccupancy(ordered)
	if exitsPerHour < minExitsPerHour || avgOccupancy < 1 {
		return nil
	}

	stay := int(math.Round((avgOccupancy / exitsPerHour) * 60))
	if stay > maxStayMinutes {
		stay = maxStayMinutes
	}
	return &stay
}

// DeriveOccupancyFlow combines the guest count and dwell estimate for a
// window. Never errors: insufficient data yields 0 and nil.
func DeriveOccupancyFlow(snaps []SensorSnapshot) OccupancyFlow {
	guests, low := GuestCount(snaps)
	return OccupancyFlow{
		TotalGuests:    guests,
		AvgStayMinutes: AvgStayMinutes(snaps),
		LowConfidence:  low,
	}
}

func entriesPoints(ordered []SensorSnapshot) []int {
	var pts []int
	for _, s := range ordered {
		if s.Occupancy != nil && s.Occupancy.Entries != nil {
			pts = append(pts, *s.Occupancy.Entries)
		}
	}
	return pts
}

func meanCurrentOccupancy(snaps []SensorSnapshot) float64 {
	var sum float64
	var n int
	for _, s := range snaps {
		if s.Occupancy != nil && s.Occupancy.Current != nil {
			sum += float64(*s.Occupancy.Current)
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
