package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/pulse-data/venue.report/internal/pulse"
)

// RecordSnapshot persists one sensor snapshot for a venue. Timestamps are
// stored as unix seconds so range queries stay cheap.
func (db *DB) RecordSnapshot(venueID int64, snap pulse.SensorSnapshot) error {
	var current, entries, exits *int
	if snap.Occupancy != nil {
		current = snap.Occupancy.Current
		entries = snap.Occupancy.Entries
		exits = snap.Occupancy.Exits
	}

	_, err := db.Exec(
		`INSERT INTO snapshots (
			venue_id, timestamp, decibels, peak_decibels, light,
			indoor_temp, outdoor_temp, humidity, pressure,
			occupancy_current, entries, exits, current_song, artist
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		venueID, snap.Timestamp.Unix(),
		snap.Decibels, snap.PeakDecibels, snap.Light,
		snap.IndoorTemp, snap.OutdoorTemp, snap.Humidity, snap.Pressure,
		current, entries, exits, snap.CurrentSong, snap.Artist,
	)
	if err != nil {
		return fmt.Errorf("failed to record snapshot: %w", err)
	}
	return nil
}

const snapshotColumns = `timestamp, decibels, peak_decibels, light,
	indoor_temp, outdoor_temp, humidity, pressure,
	occupancy_current, entries, exits, current_song, artist`

// SnapshotsBetween returns a venue's snapshots with start <= timestamp < end,
// ordered by ascending timestamp.
func (db *DB) SnapshotsBetween(venueID int64, start, end time.Time) ([]pulse.SensorSnapshot, error) {
	rows, err := db.Query(
		`SELECT `+snapshotColumns+`
		 FROM snapshots
		 WHERE venue_id = ? AND timestamp >= ? AND timestamp < ?
		 ORDER BY timestamp ASC`,
		venueID, start.Unix(), end.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []pulse.SensorSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}
	return snaps, nil
}

// LatestSnapshot returns the most recent snapshot for a venue, or nil
// when the venue has none.
func (db *DB) LatestSnapshot(venueID int64) (*pulse.SensorSnapshot, error) {
	row := db.QueryRow(
		`SELECT `+snapshotColumns+`
		 FROM snapshots WHERE venue_id = ?
		 ORDER BY timestamp DESC LIMIT 1`,
		venueID,
	)
	snap, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// scanner matches both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(s scanner) (pulse.SensorSnapshot, error) {
	var ts int64
	var decibels, peak, light, indoor, outdoor, humidity, pressure sql.NullFloat64
	var current, entries, exits sql.NullInt64
	var song, artist sql.NullString

	err := s.Scan(&ts, &decibels, &peak, &light, &indoor, &outdoor,
		&humidity, &pressure, &current, &entries, &exits, &song, &artist)
	if err == sql.ErrNoRows {
		return pulse.SensorSnapshot{}, err
	}
	if err != nil {
		return pulse.SensorSnapshot{}, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	snap := pulse.SensorSnapshot{
		Timestamp:    time.Unix(ts, 0).UTC(),
		Decibels:     nullFloat(decibels),
		PeakDecibels: nullFloat(peak),
		Light:        nullFloat(light),
		IndoorTemp:   nullFloat(indoor),
		OutdoorTemp:  nullFloat(outdoor),
		Humidity:     nullFloat(humidity),
		Pressure:     nullFloat(pressure),
		CurrentSong:  nullString(song),
		Artist:       nullString(artist),
	}
	if current.Valid || entries.Valid || exits.Valid {
		snap.Occupancy = &pulse.OccupancySample{
			Current: nullInt(current),
			Entries: nullInt(entries),
			Exits:   nullInt(exits),
		}
	}
	return snap, nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
