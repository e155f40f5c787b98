package pulse

import (
	"testing"
	"time"

	"github.com/pulse-data/venue.report/internal/timeutil"
)

func newTestDetector(t *testing.T) (*Detector, *timeutil.MockClock) {
	t.Helper()
	clock := timeutil.NewMockClock(time.Date(2025, 6, 6, 21, 0, 0, 0, time.UTC))
	return NewDetector(clock), clock
}

func observeSound(d *Detector, clock *timeutil.MockClock, db float64, score int) []Anomaly {
	snap := SensorSnapshot{Timestamp: clock.Now(), Decibels: f64(db)}
	return d.Observe(snap, score)
}

func TestDetectorSoundSpike(t *testing.T) {
	d, clock := newTestDetector(t)

	if got := observeSound(d, clock, 70, 60); len(got) != 0 {
		t.Fatalf("first reading produced %d anomalies", len(got))
	}

	clock.Advance(time.Minute)
	got := observeSound(d, clock, 80, 60)

	if len(got) != 1 {
		t.Fatalf("got %d anomalies, want exactly 1", len(got))
	}
	a := got[0]
	if a.Metric != MetricSound {
		t.Errorf("metric = %q, want sound", a.Metric)
	}
	if a.Direction != DirectionSpike {
		t.Errorf("direction = %q, want spike", a.Direction)
	}
	// A 10 dB jump is significant, not major: major needs >= 15.
	if a.Severity != SeveritySignificant {
		t.Errorf("severity = %q, want significant", a.Severity)
	}
	if a.Change != 10 {
		t.Errorf("change = %v, want 10", a.Change)
	}
}

func TestDetectorSoundSeverityLadder(t *testing.T) {
	tests := []struct {
		name     string
		from, to float64
		want     Severity
		none     bool
	}{
		{"below threshold", 70, 77.9, "", true},
		{"minor at 8", 70, 78, SeverityMinor, false},
		{"significant at 10", 70, 80, SeveritySignificant, false},
		{"major at 15", 70, 85, SeverityMajor, false},
		{"drop counts the same", 85, 70, SeverityMajor, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, clock := newTestDetector(t)
			observeSound(d, clock, tt.from, 60)
			clock.Advance(time.Minute)
			got := observeSound(d, clock, tt.to, 60)

			if tt.none {
				if len(got) != 0 {
					t.Fatalf("got %d anomalies, want none", len(got))
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("got %d anomalies, want 1", len(got))
			}
			if got[0].Severity != tt.want {
				t.Errorf("severity = %q, want %q", got[0].Severity, tt.want)
			}
		})
	}
}

func TestDetectorLightRules(t *testing.T) {
	observeLight := func(d *Detector, clock *timeutil.MockClock, lux float64) []Anomaly {
		snap := SensorSnapshot{Timestamp: clock.Now(), Light: f64(lux)}
		return d.Observe(snap, 40)
	}

	tests := []struct {
		name     string
		from, to float64
		want     Severity
		none     bool
	}{
		{"small change ignored", 200, 250, "", true},
		{"thirty percent ratio triggers minor", 200, 140, SeverityMinor, false},
		{"absolute hundred lux triggers", 400, 290, SeverityMinor, false},
		{"thirty five percent significant", 200, 120, SeveritySignificant, false},
		{"fifty percent major", 200, 90, SeverityMajor, false},
		{"from dark room only absolute rule", 0, 90, "", true},
		{"from dark room large absolute", 0, 150, SeverityMinor, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, clock := newTestDetector(t)
			observeLight(d, clock, tt.from)
			clock.Advance(time.Minute)
			got := observeLight(d, clock, tt.to)

			if tt.none {
				if len(got) != 0 {
					t.Fatalf("got %v, want none", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("got %d anomalies, want 1", len(got))
			}
			if got[0].Severity != tt.want {
				t.Errorf("severity = %q, want %q", got[0].Severity, tt.want)
			}
			if got[0].Metric != MetricLight {
				t.Errorf("metric = %q, want light", got[0].Metric)
			}
		})
	}
}

func TestDetectorPulseRules(t *testing.T) {
	tests := []struct {
		name     string
		from, to int
		want     Severity
		none     bool
	}{
		{"below threshold", 50, 59, "", true},
		{"minor at 10", 50, 60, SeverityMinor, false},
		{"significant at 15", 50, 65, SeveritySignificant, false},
		{"major at 20", 50, 70, SeverityMajor, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, clock := newTestDetector(t)
			d.Observe(SensorSnapshot{Timestamp: clock.Now()}, tt.from)
			clock.Advance(time.Minute)
			got := d.Observe(SensorSnapshot{Timestamp: clock.Now()}, tt.to)

			if tt.none {
				if len(got) != 0 {
					t.Fatalf("got %v, want none", got)
				}
				return
			}
			if len(got) != 1 {
				t.Fatalf("got %d anomalies, want 1", len(got))
			}
			if got[0].Metric != MetricPulse || got[0].Severity != tt.want {
				t.Errorf("got %q/%q, want pulse/%q", got[0].Metric, got[0].Severity, tt.want)
			}
		})
	}
}

func TestDetectorPrimaryMostSevereThenRecent(t *testing.T) {
	d, clock := newTestDetector(t)

	// Reading 1 baseline, reading 2 a minor sound shift, reading 3 a major
	// pulse drop.
	d.Observe(SensorSnapshot{Timestamp: clock.Now(), Decibels: f64(70)}, 80)
	clock.Advance(time.Minute)
	d.Observe(SensorSnapshot{Timestamp: clock.Now(), Decibels: f64(78)}, 80)
	clock.Advance(time.Minute)
	d.Observe(SensorSnapshot{Timestamp: clock.Now(), Decibels: f64(78)}, 55)

	primary, ok := d.Primary()
	if !ok {
		t.Fatal("no primary anomaly")
	}
	if primary.Metric != MetricPulse || primary.Severity != SeverityMajor {
		t.Errorf("primary = %q/%q, want pulse/major", primary.Metric, primary.Severity)
	}

	// Add a second major anomaly later; recency breaks the tie.
	clock.Advance(time.Minute)
	d.Observe(SensorSnapshot{Timestamp: clock.Now(), Decibels: f64(95)}, 55)

	primary, _ = d.Primary()
	if primary.Metric != MetricSound {
		t.Errorf("primary after newer major = %q, want sound", primary.Metric)
	}
}

func TestDetectorHistoryAgeEviction(t *testing.T) {
	d, clock := newTestDetector(t)

	observeSound(d, clock, 70, 60)
	// After half an hour the retained reading ages out, so the next
	// reading has no predecessor and a large jump raises nothing.
	clock.Advance(31 * time.Minute)
	got := observeSound(d, clock, 95, 60)

	if len(got) != 0 {
		t.Errorf("comparison against evicted reading produced %v", got)
	}
	if d.HistoryLen() != 1 {
		t.Errorf("HistoryLen = %d, want 1", d.HistoryLen())
	}
}

func TestDetectorAnomalyRetention(t *testing.T) {
	d, clock := newTestDetector(t)

	observeSound(d, clock, 70, 60)
	clock.Advance(time.Minute)
	observeSound(d, clock, 85, 60)
	if len(d.Open()) != 1 {
		t.Fatalf("open anomalies = %d, want 1", len(d.Open()))
	}

	// Keep feeding quiet readings past the retention window; the anomaly
	// is evicted independently of the raw history.
	for i := 0; i < 7; i++ {
		clock.Advance(5 * time.Minute)
		observeSound(d, clock, 85, 60)
	}

	if got := d.Open(); len(got) != 0 {
		t.Errorf("open anomalies after retention window = %v", got)
	}
	if _, ok := d.Primary(); ok {
		t.Error("Primary still reports an evicted anomaly")
	}
}

func TestDetectorConfiguredHistoryBounds(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2025, 6, 6, 21, 0, 0, 0, time.UTC))

	t.Run("sample bound", func(t *testing.T) {
		d := NewDetectorWithHistory(clock, 2, 30*time.Minute)
		for i := 0; i < 3; i++ {
			observeSound(d, clock, 75, 60)
			clock.Advance(10 * time.Second)
		}
		if d.HistoryLen() != 2 {
			t.Errorf("HistoryLen = %d, want 2", d.HistoryLen())
		}
	})

	t.Run("age bound", func(t *testing.T) {
		d := NewDetectorWithHistory(clock, 60, 5*time.Minute)
		observeSound(d, clock, 70, 60)
		clock.Advance(6 * time.Minute)
		// The earlier reading aged out, so the jump has no predecessor.
		if got := observeSound(d, clock, 95, 60); len(got) != 0 {
			t.Errorf("comparison against evicted reading produced %v", got)
		}
		if d.HistoryLen() != 1 {
			t.Errorf("HistoryLen = %d, want 1", d.HistoryLen())
		}
	})

	t.Run("non-positive bounds use defaults", func(t *testing.T) {
		d := NewDetectorWithHistory(clock, 0, 0)
		for i := 0; i < 70; i++ {
			observeSound(d, clock, 75, 60)
			clock.Advance(10 * time.Second)
		}
		if d.HistoryLen() != 60 {
			t.Errorf("HistoryLen = %d, want 60", d.HistoryLen())
		}
	})
}

func TestDetectorCountBound(t *testing.T) {
	d, clock := newTestDetector(t)

	for i := 0; i < 70; i++ {
		observeSound(d, clock, 75, 60)
		clock.Advance(10 * time.Second)
	}

	if d.HistoryLen() != 60 {
		t.Errorf("HistoryLen = %d, want 60", d.HistoryLen())
	}
}
