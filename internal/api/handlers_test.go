package api

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pulse-data/venue.report/internal/cache"
	"github.com/pulse-data/venue.report/internal/db"
	"github.com/pulse-data/venue.report/internal/pulse"
	"github.com/pulse-data/venue.report/internal/testutil"
	"github.com/pulse-data/venue.report/internal/timeutil"
)

// Friday evening, inside the peak period.
var testNow = time.Date(2025, time.June, 6, 22, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T) (*Server, *db.DB, *timeutil.MockClock) {
	t.Helper()
	database, err := db.NewDB(":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	clock := timeutil.NewMockClock(testNow)
	return NewServer(database, nil, nil, clock), database, clock
}

func createVenue(t *testing.T, database *db.DB) *db.Venue {
	t.Helper()
	v := &db.Venue{Name: "The Basement", Location: "Chicago", Capacity: 400, Timezone: "UTC"}
	if err := database.CreateVenue(v); err != nil {
		t.Fatalf("failed to create venue: %v", err)
	}
	return v
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.ServeMux().ServeHTTP(rec, req)
	return rec
}

func ingest(t *testing.T, s *Server, body map[string]interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return serve(s, testutil.NewJSONRequest(t, http.MethodPost, "/api/snapshots", body))
}

func TestIngestSnapshot(t *testing.T) {
	s, database, _ := newTestServer(t)
	venue := createVenue(t, database)

	rec := ingest(t, s, map[string]interface{}{
		"venue_id":    venue.ID,
		"timestamp":   testNow.Format(time.RFC3339),
		"sound_level": 74.0,
		"light":       200.0,
	})
	testutil.AssertStatusCode(t, rec.Code, http.StatusCreated)

	var resp snapshotResponse
	testutil.DecodeJSON(t, rec, &resp)
	if resp.Pulse == nil {
		t.Fatal("expected a derived pulse in the response")
	}
	if resp.Pulse.Score != 100 {
		t.Errorf("pulse score = %d, want 100", resp.Pulse.Score)
	}

	// The alias field must land in the canonical decibels column.
	snap, err := database.LatestSnapshot(venue.ID)
	if err != nil {
		t.Fatalf("failed to load latest snapshot: %v", err)
	}
	if snap == nil || snap.Decibels == nil || *snap.Decibels != 74.0 {
		t.Errorf("persisted decibels = %v, want 74", snap.Decibels)
	}
}

func TestIngestSnapshotUnknownVenue(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := ingest(t, s, map[string]interface{}{"venue_id": 999, "sound_level": 74.0})
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestIngestSnapshotRejectsBadJSON(t *testing.T) {
	s, database, _ := newTestServer(t)
	createVenue(t, database)

	req := httptest.NewRequest(http.MethodPost, "/api/snapshots", nil)
	rec := serve(s, req)
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestIngestSnapshotMethodNotAllowed(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := serve(s, testutil.NewJSONRequest(t, http.MethodGet, "/api/snapshots", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusMethodNotAllowed)
}

func TestIngestSnapshotCelsiusConversion(t *testing.T) {
	s, database, _ := newTestServer(t)
	venue := createVenue(t, database)

	rec := ingest(t, s, map[string]interface{}{
		"venue_id":      venue.ID,
		"sound_level":   74.0,
		"indoor_temp_c": 22.0,
	})
	testutil.AssertStatusCode(t, rec.Code, http.StatusCreated)

	snap, err := database.LatestSnapshot(venue.ID)
	if err != nil {
		t.Fatalf("failed to load latest snapshot: %v", err)
	}
	if snap.IndoorTemp == nil || math.Abs(*snap.IndoorTemp-71.6) > 0.0001 {
		t.Errorf("persisted indoor temp = %v, want 71.6", snap.IndoorTemp)
	}
}

func TestIngestSnapshotDerivesCurrentOccupancy(t *testing.T) {
	s, database, _ := newTestServer(t)
	venue := createVenue(t, database)

	rec := ingest(t, s, map[string]interface{}{
		"venue_id":  venue.ID,
		"occupancy": map[string]int{"entries": 120, "exits": 40},
	})
	testutil.AssertStatusCode(t, rec.Code, http.StatusCreated)

	snap, err := database.LatestSnapshot(venue.ID)
	if err != nil {
		t.Fatalf("failed to load latest snapshot: %v", err)
	}
	if snap.Occupancy == nil || snap.Occupancy.Current == nil || *snap.Occupancy.Current != 80 {
		t.Errorf("derived current occupancy = %v, want 80", snap.Occupancy)
	}
}

func TestShowPulse(t *testing.T) {
	s, database, _ := newTestServer(t)
	venue := createVenue(t, database)

	ingest(t, s, map[string]interface{}{
		"venue_id":    venue.ID,
		"timestamp":   testNow.Format(time.RFC3339),
		"sound_level": 85.0,
		"light":       200.0,
	})

	rec := serve(s, testutil.NewJSONRequest(t, http.MethodGet, "/api/pulse?venue_id=1", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var lp cache.LatestPulse
	testutil.DecodeJSON(t, rec, &lp)
	if lp.VenueID != venue.ID {
		t.Errorf("venue id = %d, want %d", lp.VenueID, venue.ID)
	}
	// 85 dB is 3 dB above range with a 6 dB tolerance: sound 50, light 100.
	if lp.Result.Score != 70 {
		t.Errorf("pulse score = %d, want 70", lp.Result.Score)
	}
}

func TestShowPulseNoSnapshots(t *testing.T) {
	s, database, _ := newTestServer(t)
	createVenue(t, database)

	rec := serve(s, testutil.NewJSONRequest(t, http.MethodGet, "/api/pulse?venue_id=1", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusNotFound)
}

func TestShowPulseMissingVenueParam(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := serve(s, testutil.NewJSONRequest(t, http.MethodGet, "/api/pulse", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestShowOccupancy(t *testing.T) {
	s, database, _ := newTestServer(t)
	venue := createVenue(t, database)

	for i, entries := range []int{100, 100, 250} {
		ts := testNow.Add(time.Duration(i-3) * time.Hour)
		rec := ingest(t, s, map[string]interface{}{
			"venue_id":  venue.ID,
			"timestamp": ts.Format(time.RFC3339),
			"occupancy": map[string]int{"entries": entries, "exits": 0},
		})
		testutil.AssertStatusCode(t, rec.Code, http.StatusCreated)
	}

	rec := serve(s, testutil.NewJSONRequest(t, http.MethodGet, "/api/occupancy?venue_id=1", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp struct {
		Flow pulse.OccupancyFlow `json:"flow"`
	}
	testutil.DecodeJSON(t, rec, &resp)
	if resp.Flow.TotalGuests != 150 {
		t.Errorf("total guests = %d, want 150", resp.Flow.TotalGuests)
	}
}

func TestShowOccupancyRejectsInvertedWindow(t *testing.T) {
	s, database, _ := newTestServer(t)
	createVenue(t, database)

	url := "/api/occupancy?venue_id=1&start=2025-06-07T00:00:00Z&end=2025-06-06T00:00:00Z"
	rec := serve(s, testutil.NewJSONRequest(t, http.MethodGet, url, nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestShowSweetSpot(t *testing.T) {
	s, database, _ := newTestServer(t)
	venue := createVenue(t, database)

	// Six in-range readings and one far outside.
	for i := 0; i < 6; i++ {
		ingest(t, s, map[string]interface{}{
			"venue_id":    venue.ID,
			"timestamp":   testNow.Add(time.Duration(i-7) * time.Minute).Format(time.RFC3339),
			"sound_level": 74.0,
			"light":       200.0,
		})
	}
	ingest(t, s, map[string]interface{}{
		"venue_id":    venue.ID,
		"timestamp":   testNow.Add(-time.Minute).Format(time.RFC3339),
		"sound_level": 95.0,
		"light":       200.0,
	})

	rec := serve(s, testutil.NewJSONRequest(t, http.MethodGet, "/api/sweetspot?venue_id=1&variable=sound", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var result pulse.SweetSpotResult
	testutil.DecodeJSON(t, rec, &result)
	if result.OptimalRange != "70-75 dB" {
		t.Errorf("optimal range = %q, want 70-75 dB", result.OptimalRange)
	}
	if result.TotalSamples != 7 {
		t.Errorf("total samples = %d, want 7", result.TotalSamples)
	}
}

func TestShowSweetSpotUnknownVariable(t *testing.T) {
	s, database, _ := newTestServer(t)
	createVenue(t, database)

	rec := serve(s, testutil.NewJSONRequest(t, http.MethodGet, "/api/sweetspot?venue_id=1&variable=humidity", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestShowExpectations(t *testing.T) {
	s, database, _ := newTestServer(t)
	createVenue(t, database)

	rec := serve(s, testutil.NewJSONRequest(t, http.MethodGet, "/api/expectations?venue_id=1", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp struct {
		Expectation pulse.TimeExpectation `json:"expectation"`
		NextPeriod  pulse.UpcomingPeriod  `json:"next_period"`
	}
	testutil.DecodeJSON(t, rec, &resp)
	// Friday 22:00 sits in the peak period.
	if resp.Expectation.Period != "peak" {
		t.Errorf("period = %q, want peak", resp.Expectation.Period)
	}
	if resp.Expectation.TargetScore != 90 {
		t.Errorf("target score = %d, want 90", resp.Expectation.TargetScore)
	}
	if resp.NextPeriod.StartsInMinutes != 60 {
		t.Errorf("next period in %d minutes, want 60", resp.NextPeriod.StartsInMinutes)
	}
}

func TestShowAnomalies(t *testing.T) {
	s, database, _ := newTestServer(t)
	venue := createVenue(t, database)

	ingest(t, s, map[string]interface{}{
		"venue_id":    venue.ID,
		"timestamp":   testNow.Add(-2 * time.Minute).Format(time.RFC3339),
		"sound_level": 70.0,
		"light":       200.0,
	})
	rec := ingest(t, s, map[string]interface{}{
		"venue_id":    venue.ID,
		"timestamp":   testNow.Add(-time.Minute).Format(time.RFC3339),
		"sound_level": 82.0,
		"light":       200.0,
	})
	testutil.AssertStatusCode(t, rec.Code, http.StatusCreated)

	var ingestResp snapshotResponse
	testutil.DecodeJSON(t, rec, &ingestResp)
	if len(ingestResp.Anomalies) != 1 {
		t.Fatalf("ingest anomalies = %d, want 1", len(ingestResp.Anomalies))
	}

	rec = serve(s, testutil.NewJSONRequest(t, http.MethodGet, "/api/anomalies?venue_id=1", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp struct {
		Anomalies []pulse.Anomaly `json:"anomalies"`
		Primary   *pulse.Anomaly  `json:"primary"`
	}
	testutil.DecodeJSON(t, rec, &resp)
	if len(resp.Anomalies) != 1 {
		t.Fatalf("open anomalies = %d, want 1", len(resp.Anomalies))
	}
	if resp.Primary == nil || resp.Primary.Metric != pulse.MetricSound {
		t.Errorf("primary = %+v, want a sound anomaly", resp.Primary)
	}
}

func TestSetAnomalyWindowBoundsDetectorHistory(t *testing.T) {
	s, database, clock := newTestServer(t)
	venue := createVenue(t, database)
	s.SetAnomalyWindow(2, 30*time.Minute)

	for i := 0; i < 3; i++ {
		rec := ingest(t, s, map[string]interface{}{
			"venue_id":    venue.ID,
			"timestamp":   clock.Now().Format(time.RFC3339),
			"sound_level": 74.0,
			"light":       200.0,
		})
		testutil.AssertStatusCode(t, rec.Code, http.StatusCreated)
		clock.Advance(time.Minute)
	}

	if got := s.detector(venue.ID).HistoryLen(); got != 2 {
		t.Errorf("detector history length = %d, want 2", got)
	}
}

func TestShowComparison(t *testing.T) {
	s, database, _ := newTestServer(t)
	venue := createVenue(t, database)

	// Current window scores well; the previous window has nothing.
	ingest(t, s, map[string]interface{}{
		"venue_id":    venue.ID,
		"timestamp":   testNow.Add(-time.Hour).Format(time.RFC3339),
		"sound_level": 74.0,
		"light":       200.0,
	})

	rec := serve(s, testutil.NewJSONRequest(t, http.MethodGet, "/api/comparison?venue_id=1&days=7", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var cmp pulse.PeriodComparison
	testutil.DecodeJSON(t, rec, &cmp)
	if cmp.Current.AvgPulseScore != 100 {
		t.Errorf("current avg score = %v, want 100", cmp.Current.AvgPulseScore)
	}
	if cmp.Trend != pulse.TrendImproving {
		t.Errorf("trend = %q, want improving", cmp.Trend)
	}
}

func TestShowComparisonInvalidDays(t *testing.T) {
	s, database, _ := newTestServer(t)
	createVenue(t, database)

	rec := serve(s, testutil.NewJSONRequest(t, http.MethodGet, "/api/comparison?venue_id=1&days=0", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
}

func TestCreateVenue(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := serve(s, testutil.NewJSONRequest(t, http.MethodPost, "/api/venues", map[string]interface{}{
		"name":     "Neon Room",
		"location": "Austin",
		"capacity": 250,
		"timezone": "America/Chicago",
	}))
	testutil.AssertStatusCode(t, rec.Code, http.StatusCreated)

	var venue db.Venue
	testutil.DecodeJSON(t, rec, &venue)
	if venue.ID == 0 {
		t.Error("expected created venue to carry an id")
	}
}

func TestCreateVenueValidation(t *testing.T) {
	s, _, _ := newTestServer(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{"missing name", map[string]interface{}{"capacity": 100}},
		{"negative capacity", map[string]interface{}{"name": "X", "capacity": -1}},
		{"bad timezone", map[string]interface{}{"name": "X", "timezone": "Not/AZone"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(s, testutil.NewJSONRequest(t, http.MethodPost, "/api/venues", tt.body))
			testutil.AssertStatusCode(t, rec.Code, http.StatusBadRequest)
		})
	}
}

func TestListVenues(t *testing.T) {
	s, database, _ := newTestServer(t)
	createVenue(t, database)

	rec := serve(s, testutil.NewJSONRequest(t, http.MethodGet, "/api/venues", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var venues []db.Venue
	testutil.DecodeJSON(t, rec, &venues)
	if len(venues) != 1 || venues[0].Name != "The Basement" {
		t.Errorf("venues = %+v, want one named The Basement", venues)
	}
}

func TestHealth(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := serve(s, testutil.NewJSONRequest(t, http.MethodGet, "/api/health", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusOK)

	var resp map[string]interface{}
	testutil.DecodeJSON(t, rec, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
}

func TestLoggingMiddlewarePreservesStatus(t *testing.T) {
	handler := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))
	testutil.AssertStatusCode(t, rec.Code, http.StatusTeapot)
}
