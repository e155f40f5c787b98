package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pulse-data/venue.report/internal/pulse"
)

// HourlyPulse is one row of the pulse_hourly rollup table.
type HourlyPulse struct {
	VenueID     int64     `json:"venue_id"`
	HourStart   time.Time `json:"hour_start"`
	AvgScore    float64   `json:"avg_score"`
	AvgDecibels *float64  `json:"avg_decibels"`
	AvgLight    *float64  `json:"avg_light"`
	SampleCount int       `json:"sample_count"`
}

// RollupHour recomputes the pulse_hourly row for the hour containing ts
// from raw snapshots, scoring each through the calculator. Idempotent:
// re-running for the same hour overwrites the previous row.
func (db *DB) RollupHour(venueID int64, ts time.Time, calc *pulse.Calculator) error {
	hourStart := ts.UTC().Truncate(time.Hour)
	snaps, err := db.SnapshotsBetween(venueID, hourStart, hourStart.Add(time.Hour))
	if err != nil {
		return err
	}

	var scoreSum, dbSum, luxSum float64
	var scored, dbCount, luxCount int
	for _, snap := range snaps {
		if snap.HasEnvironmentalData() {
			scoreSum += float64(calc.Score(snap).Score)
			scored++
		}
		if snap.Decibels != nil {
			dbSum += *snap.Decibels
			dbCount++
		}
		if snap.Light != nil {
			luxSum += *snap.Light
			luxCount++
		}
	}
	if scored == 0 {
		// Nothing to roll up; leave any existing row alone.
		return nil
	}

	var avgDB, avgLux *float64
	if dbCount > 0 {
		v := dbSum / float64(dbCount)
		avgDB = &v
	}
	if luxCount > 0 {
		v := luxSum / float64(luxCount)
		avgLux = &v
	}

	_, err = db.Exec(
		`INSERT INTO pulse_hourly (venue_id, hour_start, avg_score, avg_decibels, avg_light, sample_count)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (venue_id, hour_start) DO UPDATE SET
			avg_score = excluded.avg_score,
			avg_decibels = excluded.avg_decibels,
			avg_light = excluded.avg_light,
			sample_count = excluded.sample_count`,
		venueID, hourStart.Unix(), scoreSum/float64(scored), avgDB, avgLux, scored,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert hourly rollup: %w", err)
	}
	return nil
}

// HourlyAverages returns the rollup rows for a venue with
// start <= hour_start < end, ordered ascending.
func (db *DB) HourlyAverages(venueID int64, start, end time.Time) ([]HourlyPulse, error) {
	rows, err := db.Query(
		`SELECT venue_id, hour_start, avg_score, avg_decibels, avg_light, sample_count
		 FROM pulse_hourly
		 WHERE venue_id = ? AND hour_start >= ? AND hour_start < ?
		 ORDER BY hour_start ASC`,
		venueID, start.Unix(), end.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query hourly rollups: %w", err)
	}
	defer rows.Close()

	var out []HourlyPulse
	for rows.Next() {
		var h HourlyPulse
		var hourStart int64
		var avgDB, avgLux sql.NullFloat64
		if err := rows.Scan(&h.VenueID, &hourStart, &h.AvgScore, &avgDB, &avgLux, &h.SampleCount); err != nil {
			return nil, fmt.Errorf("failed to scan hourly rollup: %w", err)
		}
		h.HourStart = time.Unix(hourStart, 0).UTC()
		h.AvgDecibels = nullFloat(avgDB)
		h.AvgLight = nullFloat(avgLux)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return out, nil
}
