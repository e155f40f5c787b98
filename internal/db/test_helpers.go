package db

import (
	"testing"
	"time"

	"github.com/pulse-data/venue.report/internal/pulse"
)

// setupTestDB opens an in-memory database with the base schema applied.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(":memory:")
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestVenue creates a venue with sensible defaults.
func createTestVenue(t *testing.T, db *DB, name string) *Venue {
	t.Helper()
	v := &Venue{
		Name:     name,
		Location: "Main Floor",
		Capacity: 400,
		Timezone: "America/Chicago",
	}
	if err := db.CreateVenue(v); err != nil {
		t.Fatalf("CreateVenue failed: %v", err)
	}
	return v
}

func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }
func strPtr(s string) *string     { return &s }

// insertReading records a snapshot with sound/light readings at ts.
func insertReading(t *testing.T, db *DB, venueID int64, ts time.Time, decibels, light float64) {
	t.Helper()
	snap := pulse.SensorSnapshot{
		Timestamp: ts,
		Decibels:  floatPtr(decibels),
		Light:     floatPtr(light),
	}
	if err := db.RecordSnapshot(venueID, snap); err != nil {
		t.Fatalf("RecordSnapshot failed: %v", err)
	}
}
