// Package db provides sqlite persistence for venues, sensor snapshots,
// generated reports, and hourly pulse rollups.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the sql handle with venue-report specific queries.
type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the sqlite database at path and
// ensures the base schema exists. Use ":memory:" for tests.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single-writer pragmas. WAL keeps readers unblocked during ingest;
	// the busy timeout covers rollup writes racing the ingest path.
	pragmas := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	}
	for _, p := range pragmas {
		if _, err := sqlDB.Exec(p); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	_, err = sqlDB.Exec(`
		CREATE TABLE IF NOT EXISTS venues (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			name              TEXT NOT NULL UNIQUE,
			location          TEXT NOT NULL DEFAULT '',
			capacity          INTEGER NOT NULL DEFAULT 0,
			timezone          TEXT NOT NULL DEFAULT 'UTC',
			created_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS snapshots (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			venue_id          INTEGER NOT NULL REFERENCES venues(id),
			timestamp         BIGINT NOT NULL,
			decibels          DOUBLE,
			peak_decibels     DOUBLE,
			light             DOUBLE,
			indoor_temp       DOUBLE,
			outdoor_temp      DOUBLE,
			humidity          DOUBLE,
			pressure          DOUBLE,
			occupancy_current INTEGER,
			entries           BIGINT,
			exits             BIGINT,
			current_song      TEXT,
			artist            TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_snapshots_venue_time
			ON snapshots(venue_id, timestamp);
		CREATE TABLE IF NOT EXISTS venue_reports (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			venue_id          INTEGER NOT NULL REFERENCES venues(id),
			start_date        TEXT NOT NULL,
			end_date          TEXT NOT NULL,
			filepath          TEXT NOT NULL,
			filename          TEXT NOT NULL,
			run_id            TEXT NOT NULL,
			created_at        TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS pulse_hourly (
			venue_id          INTEGER NOT NULL REFERENCES venues(id),
			hour_start        BIGINT NOT NULL,
			avg_score         DOUBLE NOT NULL,
			avg_decibels      DOUBLE,
			avg_light         DOUBLE,
			sample_count      INTEGER NOT NULL,
			PRIMARY KEY (venue_id, hour_start)
		);
	`)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{sqlDB}, nil
}
