package observability

import (
	"fmt"
	"log"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/PickNikRobotics/armtrace/internal/ports"
)

type PromObs struct {
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

func NewPromObs() *PromObs {
	stateMsgs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "armtrace_state_messages_total",
		Help: "Joint-state messages received from the telemetry source.",
	})
	cmdMsgs := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "armtrace_command_messages_total",
		Help: "Command messages received from the telemetry source.",
	})
	samples := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "armtrace_samples_recorded_total",
		Help: "Samples appended to session buffers across all sessions.",
	})
	written := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "armtrace_sessions_written_total",
		Help: "Sessions successfully serialized on stop.",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "armtrace_sessions_failed_total",
		Help: "Sessions whose serialization failed, empty sessions included.",
	})
	sessionSamples := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "armtrace_session_samples",
		Help: "Samples collected so far in the current session.",
	})
	stateAge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "armtrace_state_age_seconds",
		Help: "Age of the most recent state message at the last tick.",
	})
	writeLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "armtrace_session_write_seconds",
		Help:    "Time spent serializing a finished session.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})

	prometheus.MustRegister(stateMsgs, cmdMsgs, samples, written, failed,
		sessionSamples, stateAge, writeLatency)

	return &PromObs{
		counters: map[string]prometheus.Counter{
			"armtrace_state_messages_total":   stateMsgs,
			"armtrace_command_messages_total": cmdMsgs,
			"armtrace_samples_recorded_total": samples,
			"armtrace_sessions_written_total": written,
			"armtrace_sessions_failed_total":  failed,
		},
		gauges: map[string]prometheus.Gauge{
			"armtrace_session_samples":   sessionSamples,
			"armtrace_state_age_seconds": stateAge,
		},
		histos: map[string]prometheus.Observer{
			"armtrace_session_write_seconds": writeLatency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	log.Printf("INFO: %s%s", msg, formatFields(fields))
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		log.Printf("ERROR: %s: %v%s", msg, err, formatFields(fields))
		return
	}
	log.Printf("ERROR: %s%s", msg, formatFields(fields))
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func formatFields(fields []ports.Field) string {
	if len(fields) == 0 {
		return ""
	}
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	return b.String()
}

var _ ports.Observability = (*PromObs)(nil)
