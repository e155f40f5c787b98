package db

import (
	"testing"

	"github.com/google/uuid"
)

func createTestReport(t *testing.T, db *DB, venueID int64) *VenueReport {
	t.Helper()
	r := &VenueReport{
		VenueID:   venueID,
		StartDate: "2025-05-30",
		EndDate:   "2025-06-06",
		Filepath:  "reports/parlay",
		Filename:  "parlay-2025-06-06.html",
		RunID:     uuid.NewString(),
	}
	if err := db.CreateVenueReport(r); err != nil {
		t.Fatalf("CreateVenueReport failed: %v", err)
	}
	return r
}

func TestCreateAndGetVenueReport(t *testing.T) {
	db := setupTestDB(t)
	v := createTestVenue(t, db, "parlay")

	r := createTestReport(t, db, v.ID)
	if r.ID == 0 {
		t.Fatal("CreateVenueReport did not set ID")
	}

	got, err := db.GetVenueReport(r.ID)
	if err != nil {
		t.Fatalf("GetVenueReport failed: %v", err)
	}
	if got.RunID != r.RunID || got.Filename != r.Filename {
		t.Errorf("GetVenueReport = %+v, want %+v", got, r)
	}
}

func TestRecentVenueReportsLimit(t *testing.T) {
	db := setupTestDB(t)
	v := createTestVenue(t, db, "parlay")

	for i := 0; i < 5; i++ {
		createTestReport(t, db, v.ID)
	}

	reports, err := db.RecentVenueReports(v.ID, 3)
	if err != nil {
		t.Fatalf("RecentVenueReports failed: %v", err)
	}
	if len(reports) != 3 {
		t.Errorf("len = %d, want 3", len(reports))
	}
}

func TestDeleteVenueReport(t *testing.T) {
	db := setupTestDB(t)
	v := createTestVenue(t, db, "parlay")
	r := createTestReport(t, db, v.ID)

	if err := db.DeleteVenueReport(r.ID); err != nil {
		t.Fatalf("DeleteVenueReport failed: %v", err)
	}
	if _, err := db.GetVenueReport(r.ID); err == nil {
		t.Error("report still present after delete")
	}
	if err := db.DeleteVenueReport(r.ID); err == nil {
		t.Error("second delete did not fail")
	}
}
