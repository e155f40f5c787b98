// Package api exposes the derivation engine over a JSON HTTP API: snapshot
// ingest from the venue publishers plus read endpoints for pulse, guest
// flow, sweet spots, expectations, anomalies, and period comparisons.
package api

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/pulse-data/venue.report/internal/cache"
	"github.com/pulse-data/venue.report/internal/db"
	"github.com/pulse-data/venue.report/internal/monitoring"
	"github.com/pulse-data/venue.report/internal/pulse"
	"github.com/pulse-data/venue.report/internal/timeutil"
)

// ANSI escape codes for cyan and reset
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// Server owns the HTTP surface. The cache client may be nil, in which
// case pulse reads always fall through to sqlite.
type Server struct {
	db    *db.DB
	cache *cache.Client
	calc  *pulse.Calculator
	clock timeutil.Clock

	// One detector per venue. Each detector carries its own private
	// reading history; the map lock belongs to the server, not the engine.
	mu             sync.Mutex
	detectors      map[int64]*pulse.Detector
	historySamples int
	historyAge     time.Duration
}

// NewServer builds a Server. A nil calc uses the default targets and a
// nil clock uses wall time.
func NewServer(database *db.DB, cacheClient *cache.Client, calc *pulse.Calculator, clock timeutil.Clock) *Server {
	if calc == nil {
		calc = pulse.NewCalculator(pulse.DefaultTargets())
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Server{
		db:        database,
		cache:     cacheClient,
		calc:      calc,
		clock:     clock,
		detectors: make(map[int64]*pulse.Detector),
	}
}

// SetAnomalyWindow sets the history bounds used for detectors created
// after the call. Non-positive values keep the detector defaults.
// Existing detectors are untouched.
func (s *Server) SetAnomalyWindow(samples int, age time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.historySamples = samples
	s.historyAge = age
}

// detector returns the venue's anomaly detector, creating it on first use.
func (s *Server) detector(venueID int64) *pulse.Detector {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.detectors[venueID]
	if !ok {
		d = pulse.NewDetectorWithHistory(s.clock, s.historySamples, s.historyAge)
		s.detectors[venueID] = d
	}
	return d
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// statusClass buckets a status code for the latency metric ("2xx", "4xx"...).
func statusClass(statusCode int) string {
	return strconv.Itoa(statusCode/100) + "xx"
}

// LoggingMiddleware logs method, path, query, status, and duration, and
// records the request latency histogram.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		elapsed := time.Since(start)
		monitoring.RequestDuration.WithLabelValues(r.URL.Path, statusClass(lrw.statusCode)).Observe(elapsed.Seconds())
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(elapsed.Nanoseconds())/1e6,
		)
	})
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/snapshots", s.ingestSnapshot)
	mux.HandleFunc("/api/pulse", s.showPulse)
	mux.HandleFunc("/api/occupancy", s.showOccupancy)
	mux.HandleFunc("/api/sweetspot", s.showSweetSpot)
	mux.HandleFunc("/api/expectations", s.showExpectations)
	mux.HandleFunc("/api/anomalies", s.showAnomalies)
	mux.HandleFunc("/api/comparison", s.showComparison)
	mux.HandleFunc("/api/venues", s.handleVenues)
	mux.HandleFunc("/api/health", s.showHealth)
	return mux
}
