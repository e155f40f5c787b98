// Package pulse implements the analytics derivation engine for venue
// telemetry: composite scoring of environmental readings, guest-flow
// extraction from cumulative counters, sweet-spot range analysis,
// time-of-day expectations, anomaly detection, and period rollups.
//
// All transforms are pure functions over an already-materialized slice of
// snapshots; the only carried state is the Detector's bounded reading
// history. Inputs are never mutated.
package pulse

import (
	"sort"
	"time"
)

// OccupancySample holds the occupancy-related fields of one reading.
// Entries and Exits are cumulative counters that only increase within a
// single operating window; the window boundary is responsible for not
// spanning a counter reset.
type OccupancySample struct {
	Current  *int `json:"current,omitempty"`
	Entries  *int `json:"entries,omitempty"`
	Exits    *int `json:"exits,omitempty"`
	Capacity *int `json:"capacity,omitempty"`
}

// SensorSnapshot is one timestamped telemetry reading for a venue.
// Every field other than Timestamp is optional; absent readings are nil.
type SensorSnapshot struct {
	Timestamp    time.Time        `json:"timestamp"`
	Decibels     *float64         `json:"decibels,omitempty"`
	PeakDecibels *float64         `json:"peak_decibels,omitempty"`
	Light        *float64         `json:"light,omitempty"`
	IndoorTemp   *float64         `json:"indoor_temp,omitempty"`
	OutdoorTemp  *float64         `json:"outdoor_temp,omitempty"`
	Humidity     *float64         `json:"humidity,omitempty"`
	Pressure     *float64         `json:"pressure,omitempty"`
	Occupancy    *OccupancySample `json:"occupancy,omitempty"`
	CurrentSong  *string          `json:"current_song,omitempty"`
	Artist       *string          `json:"artist,omitempty"`
}

// HasEnvironmentalData reports whether the snapshot carries at least one of
// the readings that feed the composite pulse score.
func (s SensorSnapshot) HasEnvironmentalData() bool {
	return s.Decibels != nil || s.Light != nil
}

// sortedByTime returns a copy of snaps ordered by ascending timestamp.
// Callers may pass snapshots in any order; derivations that depend on
// first/last semantics sort defensively.
func sortedByTime(snaps []SensorSnapshot) []SensorSnapshot {
	out := make([]SensorSnapshot, len(snaps))
	copy(out, snaps)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}
