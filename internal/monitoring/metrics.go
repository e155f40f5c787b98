package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors for the ingest and derivation pipeline. All are
// registered on the default registry and served via /metrics.
var (
	// SnapshotsIngested counts accepted sensor snapshots per venue.
	SnapshotsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "venue_report",
		Name:      "snapshots_ingested_total",
		Help:      "Sensor snapshots accepted and recorded, by venue.",
	}, []string{"venue"})

	// SnapshotsRejected counts snapshots dropped before recording.
	SnapshotsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "venue_report",
		Name:      "snapshots_rejected_total",
		Help:      "Sensor snapshots rejected during validation, by reason.",
	}, []string{"reason"})

	// AnomaliesDetected counts spikes and drops flagged by the detector.
	AnomaliesDetected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "venue_report",
		Name:      "anomalies_detected_total",
		Help:      "Anomalies flagged by the detector, by metric and severity.",
	}, []string{"metric", "severity"})

	// PulseScore tracks the distribution of derived composite scores.
	PulseScore = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "venue_report",
		Name:      "pulse_score",
		Help:      "Distribution of derived composite pulse scores.",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	})

	// RequestDuration observes HTTP handler latency by route and status.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "venue_report",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and status class.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "status"})
)
