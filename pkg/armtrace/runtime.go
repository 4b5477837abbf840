package armtrace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PickNikRobotics/armtrace/internal/adapters/csvsink"
	"github.com/PickNikRobotics/armtrace/internal/adapters/observability"
	"github.com/PickNikRobotics/armtrace/internal/adapters/opcua"
	"github.com/PickNikRobotics/armtrace/internal/adapters/pgsink"
	"github.com/PickNikRobotics/armtrace/internal/adapters/rosbridge"
	"github.com/PickNikRobotics/armtrace/internal/domain"
	"github.com/PickNikRobotics/armtrace/internal/ports"
	"github.com/PickNikRobotics/armtrace/internal/recorder"
)

// RuntimeOption customizes the dependencies used by Runtime.
type RuntimeOption func(*runtimeOverrides)

type runtimeOverrides struct {
	source        TelemetrySource
	sink          SessionSink
	observability Observability
	clock         Clock
}

// WithSource injects a custom telemetry source (simulators, replays, etc.).
func WithSource(src TelemetrySource) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.source = src
	}
}

// WithSink injects a custom session sink so finished sessions can go to any
// store or API instead of (or in addition to) the CSV file.
func WithSink(s SessionSink) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.sink = s
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.observability = obs
	}
}

// WithClock overrides wall time, mainly for tests.
func WithClock(c Clock) RuntimeOption {
	return func(o *runtimeOverrides) {
		o.clock = c
	}
}

// Runtime wires source → recorder → sink and exposes the recorder's two
// control operations plus lifecycle hooks for embedding armtrace inside any
// Go service.
type Runtime struct {
	cfg        *Config
	rec        *recorder.Recorder
	source     TelemetrySource
	obs        Observability
	db         *sql.DB
	metricsSrv *http.Server

	mu       sync.Mutex
	started  bool
	pumpStop chan struct{}
	pumpDone chan struct{}
}

// NewRuntime bootstraps the default adapters (rosbridge or OPC UA source by
// config, CSV sink plus optional Postgres archive, Prometheus observability).
// RuntimeOption values override any dependency.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides runtimeOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	obs := overrides.observability
	if obs == nil {
		obs = observability.NewPromObs()
	}
	clock := overrides.clock
	if clock == nil {
		clock = ports.RealClock{}
	}

	mode, err := cfg.Recording.Mode()
	if err != nil {
		return nil, err
	}

	source := overrides.source
	if source == nil {
		switch cfg.Source.Kind {
		case "opcua":
			source, err = opcua.NewSource(cfg.Source.OPCUA, mode)
		default:
			source, err = rosbridge.NewSource(cfg.Source.Rosbridge, mode)
		}
		if err != nil {
			return nil, err
		}
	}

	var db *sql.DB
	sink := overrides.sink
	if sink == nil {
		sink = csvsink.New()
		if cfg.Archive.ConnString != "" {
			db, err = sql.Open("postgres", cfg.Archive.ConnString)
			if err != nil {
				return nil, err
			}
			sink = NewMultiSink(sink, pgsink.New(db, cfg.Archive.Table))
		}
	}

	recCfg, err := cfg.RecorderConfig()
	if err != nil {
		return nil, err
	}
	rec, err := recorder.New(recCfg, sink, obs, clock)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		cfg:    cfg,
		rec:    rec,
		source: source,
		obs:    obs,
		db:     db,
	}, nil
}

// Start opens the telemetry streams and the metrics endpoint. It returns
// immediately; recording is controlled separately.
func (r *Runtime) Start() error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("runtime already started")
	}
	r.started = true
	r.pumpStop = make(chan struct{})
	r.pumpDone = make(chan struct{})
	stop, done := r.pumpStop, r.pumpDone
	r.mu.Unlock()

	states := make(chan *domain.JointSnapshot, 16)
	commands := make(chan *domain.CommandSnapshot, 16)
	if err := r.source.Start(states, commands); err != nil {
		r.mu.Lock()
		r.started = false
		r.pumpStop, r.pumpDone = nil, nil
		r.mu.Unlock()
		return err
	}

	go r.pump(states, commands, stop, done)
	r.startMetrics()
	return nil
}

// pump moves stream messages into the recorder's latest-value cache. It is
// the single writer for both slots on this side of the port boundary.
func (r *Runtime) pump(states <-chan *domain.JointSnapshot, commands <-chan *domain.CommandSnapshot, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case s := <-states:
			r.rec.UpdateState(s)
		case c := <-commands:
			r.rec.UpdateCommand(c)
		}
	}
}

// WaitReady blocks until the first state message has been received.
func (r *Runtime) WaitReady(ctx context.Context) error {
	return r.rec.WaitReady(ctx)
}

// StartRecording begins a session writing to fileName. It blocks until the
// first state message has ever arrived.
func (r *Runtime) StartRecording(ctx context.Context, fileName string) error {
	return r.rec.Start(ctx, fileName)
}

// StopRecording ends the session and serializes it.
func (r *Runtime) StopRecording() error {
	return r.rec.Stop()
}

// Recording reports whether a session is in progress.
func (r *Runtime) Recording() bool {
	return r.rec.Recording()
}

// Shutdown stops any in-flight recording, the source, the metrics server,
// and the archive DB connection.
func (r *Runtime) Shutdown(ctx context.Context) error {
	var errs []error

	if r.rec.Recording() {
		if err := r.rec.Stop(); err != nil && !errors.Is(err, ports.ErrEmptySession) {
			errs = append(errs, err)
		}
	}

	if r.metricsSrv != nil {
		if err := r.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if r.source != nil {
		if err := r.source.Stop(); err != nil {
			errs = append(errs, err)
		}
	}

	r.mu.Lock()
	stop, done := r.pumpStop, r.pumpDone
	r.pumpStop, r.pumpDone = nil, nil
	r.started = false
	r.mu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}

	if r.db != nil {
		if err := r.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (r *Runtime) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.metricsSrv = &http.Server{
		Addr:    r.cfg.Metrics.Addr,
		Handler: mux,
	}

	go func() {
		if err := r.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("metrics server exited: %v", err)
		}
	}()
}
