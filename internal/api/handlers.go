package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pulse-data/venue.report/internal/cache"
	"github.com/pulse-data/venue.report/internal/db"
	"github.com/pulse-data/venue.report/internal/httputil"
	"github.com/pulse-data/venue.report/internal/monitoring"
	"github.com/pulse-data/venue.report/internal/pulse"
	"github.com/pulse-data/venue.report/internal/units"
	"github.com/pulse-data/venue.report/internal/version"
)

// snapshotRequest is the ingest payload. It accepts both the canonical
// snapshot field names and the aliases the venue publishers send
// (sound_level, light_level, indoor_temperature, indoor_temp_c).
type snapshotRequest struct {
	VenueID int64 `json:"venue_id"`
	pulse.SensorSnapshot

	SoundLevel        *float64 `json:"sound_level,omitempty"`
	LightLevel        *float64 `json:"light_level,omitempty"`
	IndoorTemperature *float64 `json:"indoor_temperature,omitempty"`
	IndoorTempC       *float64 `json:"indoor_temp_c,omitempty"`
}

// normalize folds publisher aliases into the canonical snapshot fields.
// Celsius readings are converted; the database stores Fahrenheit.
func (req *snapshotRequest) normalize(now time.Time) pulse.SensorSnapshot {
	snap := req.SensorSnapshot
	if snap.Decibels == nil && req.SoundLevel != nil {
		snap.Decibels = req.SoundLevel
	}
	if snap.Light == nil && req.LightLevel != nil {
		snap.Light = req.LightLevel
	}
	if snap.IndoorTemp == nil && req.IndoorTemperature != nil {
		snap.IndoorTemp = req.IndoorTemperature
	}
	if snap.IndoorTemp == nil && req.IndoorTempC != nil {
		f := units.CToF(*req.IndoorTempC)
		snap.IndoorTemp = &f
	}
	if snap.Timestamp.IsZero() {
		snap.Timestamp = now
	}
	// Publishers send cumulative entries/exits; derive the current count
	// when the sensor didn't report one.
	if occ := snap.Occupancy; occ != nil && occ.Current == nil && occ.Entries != nil && occ.Exits != nil {
		current := *occ.Entries - *occ.Exits
		if current < 0 {
			current = 0
		}
		o := *occ
		o.Current = &current
		snap.Occupancy = &o
	}
	return snap
}

type snapshotResponse struct {
	VenueID    int64              `json:"venue_id"`
	RecordedAt time.Time          `json:"recorded_at"`
	Pulse      *pulse.PulseResult `json:"pulse,omitempty"`
	Anomalies  []pulse.Anomaly    `json:"anomalies,omitempty"`
}

func (s *Server) ingestSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req snapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		monitoring.SnapshotsRejected.WithLabelValues("decode").Inc()
		httputil.BadRequest(w, fmt.Sprintf("invalid snapshot payload: %v", err))
		return
	}

	venue, err := s.db.GetVenue(req.VenueID)
	if err != nil {
		monitoring.SnapshotsRejected.WithLabelValues("unknown_venue").Inc()
		if isNotFound(err) {
			httputil.NotFound(w, fmt.Sprintf("venue %d not found", req.VenueID))
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to look up venue: %v", err))
		return
	}

	snap := req.normalize(s.clock.Now())
	if err := s.db.RecordSnapshot(venue.ID, snap); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to record snapshot: %v", err))
		return
	}
	monitoring.SnapshotsIngested.WithLabelValues(venue.Name).Inc()

	resp := snapshotResponse{VenueID: venue.ID, RecordedAt: snap.Timestamp}
	if snap.HasEnvironmentalData() {
		result := s.calc.Score(snap)
		resp.Pulse = &result
		monitoring.PulseScore.Observe(float64(result.Score))

		resp.Anomalies = s.detector(venue.ID).Observe(snap, result.Score)
		for _, a := range resp.Anomalies {
			monitoring.AnomaliesDetected.WithLabelValues(string(a.Metric), string(a.Severity)).Inc()
		}

		if s.cache != nil {
			lp := cache.LatestPulse{VenueID: venue.ID, Result: result, ObservedAt: snap.Timestamp}
			if err := s.cache.SetLatest(r.Context(), lp); err != nil {
				monitoring.Logf("failed to cache pulse for venue %d: %v", venue.ID, err)
			}
		}
	}

	httputil.Created(w, resp)
}

func (s *Server) showPulse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	venue, ok := s.venueFromQuery(w, r)
	if !ok {
		return
	}

	if s.cache != nil {
		if lp, err := s.cache.GetLatest(r.Context(), venue.ID); err != nil {
			monitoring.Logf("cache read failed for venue %d: %v", venue.ID, err)
		} else if lp != nil {
			httputil.WriteJSONOK(w, lp)
			return
		}
	}

	snap, err := s.db.LatestSnapshot(venue.ID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load latest snapshot: %v", err))
		return
	}
	if snap == nil || !snap.HasEnvironmentalData() {
		httputil.NotFound(w, "no scored snapshots for venue")
		return
	}

	lp := cache.LatestPulse{
		VenueID:    venue.ID,
		Result:     s.calc.Score(*snap),
		ObservedAt: snap.Timestamp,
	}
	if s.cache != nil {
		if err := s.cache.SetLatest(r.Context(), lp); err != nil {
			monitoring.Logf("failed to cache pulse for venue %d: %v", venue.ID, err)
		}
	}
	httputil.WriteJSONOK(w, lp)
}

func (s *Server) showOccupancy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	venue, ok := s.venueFromQuery(w, r)
	if !ok {
		return
	}
	start, end, ok := s.windowFromQuery(w, r)
	if !ok {
		return
	}

	snaps, err := s.db.SnapshotsBetween(venue.ID, start, end)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load snapshots: %v", err))
		return
	}

	httputil.WriteJSONOK(w, struct {
		VenueID int64               `json:"venue_id"`
		Start   time.Time           `json:"start"`
		End     time.Time           `json:"end"`
		Flow    pulse.OccupancyFlow `json:"flow"`
	}{venue.ID, start, end, pulse.DeriveOccupancyFlow(snaps)})
}

func (s *Server) showSweetSpot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	venue, ok := s.venueFromQuery(w, r)
	if !ok {
		return
	}
	start, end, ok := s.windowFromQuery(w, r)
	if !ok {
		return
	}

	variable := pulse.VariableSound
	if v := r.URL.Query().Get("variable"); v != "" {
		variable = pulse.Variable(v)
		if len(pulse.Buckets(variable)) == 0 {
			httputil.BadRequest(w, fmt.Sprintf("unknown variable %q", v))
			return
		}
	}

	snaps, err := s.db.SnapshotsBetween(venue.ID, start, end)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load snapshots: %v", err))
		return
	}

	httputil.WriteJSONOK(w, s.calc.AnalyzeSweetSpot(snaps, variable, venue.Capacity))
}

func (s *Server) showExpectations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	venue, ok := s.venueFromQuery(w, r)
	if !ok {
		return
	}

	// Expectations are wall-clock local to the venue.
	localNow, err := units.ConvertTime(s.clock.Now().UTC(), venue.Timezone)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to resolve venue timezone: %v", err))
		return
	}

	expectation := pulse.ExpectationAt(localNow)
	resp := struct {
		VenueID     int64                   `json:"venue_id"`
		LocalTime   time.Time               `json:"local_time"`
		Expectation pulse.TimeExpectation   `json:"expectation"`
		Check       *pulse.ExpectationCheck `json:"check,omitempty"`
		NextPeriod  pulse.UpcomingPeriod    `json:"next_period"`
	}{
		VenueID:     venue.ID,
		LocalTime:   localNow,
		Expectation: expectation,
		NextPeriod:  pulse.NextPeriodAfter(localNow),
	}

	if snap, err := s.db.LatestSnapshot(venue.ID); err == nil && snap != nil && snap.HasEnvironmentalData() {
		check := expectation.Evaluate(s.calc.Score(*snap).Score)
		resp.Check = &check
	}

	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showAnomalies(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	venue, ok := s.venueFromQuery(w, r)
	if !ok {
		return
	}

	d := s.detector(venue.ID)
	resp := struct {
		VenueID   int64           `json:"venue_id"`
		Anomalies []pulse.Anomaly `json:"anomalies"`
		Primary   *pulse.Anomaly  `json:"primary,omitempty"`
	}{VenueID: venue.ID, Anomalies: d.Open()}
	if primary, ok := d.Primary(); ok {
		resp.Primary = &primary
	}

	httputil.WriteJSONOK(w, resp)
}

func (s *Server) showComparison(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	venue, ok := s.venueFromQuery(w, r)
	if !ok {
		return
	}

	days := 7 // default value
	if d := r.URL.Query().Get("days"); d != "" {
		parsedDays, err := strconv.Atoi(d)
		if err != nil || parsedDays < 1 {
			httputil.BadRequest(w, "invalid 'days' parameter")
			return
		}
		days = parsedDays
	}

	end := s.clock.Now().UTC()
	start := end.AddDate(0, 0, -days)
	prevStart := start.AddDate(0, 0, -days)

	current, err := s.db.SnapshotsBetween(venue.ID, start, end)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load current window: %v", err))
		return
	}
	previous, err := s.db.SnapshotsBetween(venue.ID, prevStart, start)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load previous window: %v", err))
		return
	}

	httputil.WriteJSONOK(w, s.calc.ComparePeriods(current, previous))
}

type createVenueRequest struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Capacity int    `json:"capacity"`
	Timezone string `json:"timezone"`
}

func (s *Server) handleVenues(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		venues, err := s.db.ListVenues()
		if err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to list venues: %v", err))
			return
		}
		if venues == nil {
			venues = []db.Venue{}
		}
		httputil.WriteJSONOK(w, venues)

	case http.MethodPost:
		var req createVenueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid venue payload: %v", err))
			return
		}
		if req.Name == "" {
			httputil.BadRequest(w, "venue name is required")
			return
		}
		if req.Capacity < 0 {
			httputil.BadRequest(w, "venue capacity must be non-negative")
			return
		}
		if req.Timezone != "" && !units.IsTimezoneValid(req.Timezone) {
			httputil.BadRequest(w, fmt.Sprintf("invalid timezone %q", req.Timezone))
			return
		}

		venue := &db.Venue{
			Name:     req.Name,
			Location: req.Location,
			Capacity: req.Capacity,
			Timezone: req.Timezone,
		}
		if err := s.db.CreateVenue(venue); err != nil {
			httputil.InternalServerError(w, fmt.Sprintf("failed to create venue: %v", err))
			return
		}
		httputil.Created(w, venue)

	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) showHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"status":  "ok",
		"time":    s.clock.Now().UTC(),
		"version": version.Version,
	})
}

// venueFromQuery resolves the venue_id query parameter, writing the error
// response itself when the parameter is missing or the venue is unknown.
func (s *Server) venueFromQuery(w http.ResponseWriter, r *http.Request) (*db.Venue, bool) {
	raw := r.URL.Query().Get("venue_id")
	if raw == "" {
		httputil.BadRequest(w, "missing 'venue_id' parameter")
		return nil, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		httputil.BadRequest(w, "invalid 'venue_id' parameter")
		return nil, false
	}
	venue, err := s.db.GetVenue(id)
	if err != nil {
		if isNotFound(err) {
			httputil.NotFound(w, fmt.Sprintf("venue %d not found", id))
			return nil, false
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to look up venue: %v", err))
		return nil, false
	}
	return venue, true
}

// windowFromQuery parses optional start/end RFC3339 parameters. The
// window defaults to the 24 hours ending now.
func (s *Server) windowFromQuery(w http.ResponseWriter, r *http.Request) (start, end time.Time, ok bool) {
	end = s.clock.Now().UTC()
	if raw := r.URL.Query().Get("end"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.BadRequest(w, "invalid 'end' parameter, want RFC3339")
			return time.Time{}, time.Time{}, false
		}
		end = parsed
	}
	start = end.Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("start"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			httputil.BadRequest(w, "invalid 'start' parameter, want RFC3339")
			return time.Time{}, time.Time{}, false
		}
		start = parsed
	}
	if !start.Before(end) {
		httputil.BadRequest(w, "'start' must be before 'end'")
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}
