package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPromObsMetrics(t *testing.T) {
	origReg := prometheus.DefaultRegisterer
	origGatherer := prometheus.DefaultGatherer
	t.Cleanup(func() {
		prometheus.DefaultRegisterer = origReg
		prometheus.DefaultGatherer = origGatherer
	})

	reg := prometheus.NewRegistry()
	prometheus.DefaultRegisterer = reg
	prometheus.DefaultGatherer = reg

	obs := NewPromObs()

	obs.IncCounter("armtrace_samples_recorded_total", 5)
	if got := testutil.ToFloat64(obs.counters["armtrace_samples_recorded_total"]); got != 5 {
		t.Fatalf("expected samples counter 5, got %f", got)
	}

	obs.IncCounter("armtrace_sessions_written_total", 1)
	if got := testutil.ToFloat64(obs.counters["armtrace_sessions_written_total"]); got != 1 {
		t.Fatalf("expected sessions counter 1, got %f", got)
	}

	obs.SetGauge("armtrace_session_samples", 42)
	if got := testutil.ToFloat64(obs.gauges["armtrace_session_samples"]); got != 42 {
		t.Fatalf("expected session gauge 42, got %f", got)
	}

	obs.ObserveLatency("armtrace_session_write_seconds", 0.5)
	hCollector := obs.histos["armtrace_session_write_seconds"].(prometheus.Collector)
	if samples := testutil.CollectAndCount(hCollector); samples != 1 {
		t.Fatalf("expected latency histogram to record 1 sample, got %d", samples)
	}

	// Unknown names are ignored, not registered on the fly.
	obs.IncCounter("armtrace_bogus_total", 1)
	obs.SetGauge("armtrace_bogus", 1)
	obs.ObserveLatency("armtrace_bogus_seconds", 1)
}
