package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/PickNikRobotics/armtrace/internal/domain"
	"github.com/PickNikRobotics/armtrace/internal/ports"
)

const (
	// DefaultRateHz is the sampling frequency: records per second.
	DefaultRateHz = 100.0
	// DefaultStateTimeout is how long the state stream may stay silent
	// before a session auto-stops.
	DefaultStateTimeout = time.Second
)

// ErrAlreadyRecording is returned by Start while a session is in progress.
var ErrAlreadyRecording = errors.New("armtrace: recorder already recording")

// Config holds the recorder-level knobs.
type Config struct {
	RateHz       float64            `yaml:"rate_hz"`
	StateTimeout time.Duration      `yaml:"state_timeout"`
	Mode         domain.CommandMode `yaml:"-"`
}

func (c *Config) ApplyDefaults() {
	if c.RateHz <= 0 {
		c.RateHz = DefaultRateHz
	}
	if c.StateTimeout <= 0 {
		c.StateTimeout = DefaultStateTimeout
	}
}

func (c Config) Validate() error {
	if c.RateHz <= 0 {
		return errors.New("rate_hz must be positive")
	}
	if c.StateTimeout <= 0 {
		return errors.New("state_timeout must be positive")
	}
	if c.Mode != domain.PositionMode && c.Mode != domain.VelocityMode {
		return fmt.Errorf("unknown command mode %d", c.Mode)
	}
	return nil
}

// Recorder samples the latest-value cache at a fixed rate into a session
// buffer and hands the finished session to a sink on stop. State machine:
// Idle -> Recording -> Idle. Expiry of the state stream ends the session
// through the same path as an explicit Stop.
type Recorder struct {
	cfg      Config
	interval time.Duration
	cache    *LatestCache
	live     *Liveness
	sink     ports.SessionSink
	obs      ports.Observability
	clock    ports.Clock

	mu        sync.Mutex
	recording bool
	session   *domain.Session
	lastTick  time.Time
	stopCh    chan struct{}
	doneCh    chan struct{}
}

func New(cfg Config, sink ports.SessionSink, obs ports.Observability, clock ports.Clock) (*Recorder, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, errors.New("armtrace: session sink is required")
	}
	if obs == nil {
		return nil, errors.New("armtrace: observability is required")
	}
	if clock == nil {
		clock = ports.RealClock{}
	}
	cache := NewLatestCache(clock)
	return &Recorder{
		cfg:      cfg,
		interval: time.Duration(float64(time.Second) / cfg.RateHz),
		cache:    cache,
		live:     NewLiveness(clock, cache, cfg.StateTimeout),
		sink:     sink,
		obs:      obs,
		clock:    clock,
	}, nil
}

// UpdateState feeds one state message into the latest-value cache.
func (r *Recorder) UpdateState(s *domain.JointSnapshot) {
	if s == nil {
		return
	}
	r.cache.UpdateState(s)
	r.obs.IncCounter("armtrace_state_messages_total", 1)
}

// UpdateCommand feeds one command message into the latest-value cache.
func (r *Recorder) UpdateCommand(c *domain.CommandSnapshot) {
	if c == nil {
		return
	}
	r.cache.UpdateCommand(c)
	r.obs.IncCounter("armtrace_command_messages_total", 1)
}

// WaitReady blocks until the first state message has ever been cached.
func (r *Recorder) WaitReady(ctx context.Context) error {
	return r.cache.WaitFirstState(ctx)
}

// Recording reports whether a session is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Start transitions Idle -> Recording. It blocks until the first state
// message has arrived (the context is the only escape from that wait),
// clears the session buffer, and arms the sampling ticker.
func (r *Recorder) Start(ctx context.Context, fileName string) error {
	if fileName == "" {
		return errors.New("armtrace: file name is required")
	}
	if err := r.cache.WaitFirstState(ctx); err != nil {
		return err
	}
	if err := r.arm(fileName); err != nil {
		return err
	}

	r.mu.Lock()
	r.doneCh = make(chan struct{})
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	go r.run(stopCh, doneCh)
	r.obs.LogInfo("recording_started",
		ports.Field{Key: "file", Value: fileName},
		ports.Field{Key: "rate_hz", Value: r.cfg.RateHz},
		ports.Field{Key: "mode", Value: r.cfg.Mode.String()})
	return nil
}

// Stop transitions Recording -> Idle, disarms the ticker, and writes the
// session through the sink. Stopping an idle recorder is a no-op.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil
	}
	r.recording = false
	if r.stopCh != nil {
		close(r.stopCh)
		r.stopCh = nil
	}
	done := r.doneCh
	r.doneCh = nil
	r.mu.Unlock()

	if done != nil {
		<-done
	}
	return r.flush()
}

// arm resets the session buffer and moves to Recording without launching
// the ticker goroutine.
func (r *Recorder) arm(fileName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return ErrAlreadyRecording
	}
	r.recording = true
	r.session = &domain.Session{FileName: fileName, Mode: r.cfg.Mode}
	r.lastTick = time.Time{}
	r.stopCh = make(chan struct{})
	r.doneCh = nil
	return nil
}

func (r *Recorder) run(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.C:
			if r.tick(now) {
				if err := r.flush(); err != nil {
					r.obs.LogError("auto_stop_write_failed", err)
				}
				return
			}
		}
	}
}

// tick runs one sampling step. It returns true when the session must end:
// either the state stream expired or the recorder was stopped underneath us.
func (r *Recorder) tick(now time.Time) bool {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return true
	}
	last := r.lastTick
	r.lastTick = now
	r.mu.Unlock()

	// The first tick of a session has no prior tick to compare against.
	if !last.IsZero() {
		period := now.Sub(last)
		if period > r.interval*3/2 || period < r.interval/2 {
			r.obs.LogInfo("tick_period_drift",
				ports.Field{Key: "period", Value: period},
				ports.Field{Key: "want", Value: r.interval})
		}
	}

	if r.live.Expired() {
		r.obs.LogError("state_expired",
			fmt.Errorf("last state received %s ago", r.live.Age()),
			ports.Field{Key: "timeout", Value: r.cfg.StateTimeout})
		r.mu.Lock()
		r.recording = false
		r.mu.Unlock()
		return true
	}

	state := r.cache.State()
	cmd := r.cache.Command()
	if cmd == nil || cmd.Mode != r.cfg.Mode {
		// No command received yet this session: record a zero-filled
		// command row rather than inventing a hold value.
		cmd = &domain.CommandSnapshot{Mode: r.cfg.Mode}
	}

	r.mu.Lock()
	var n int
	if r.session != nil {
		r.session.Samples = append(r.session.Samples, domain.Sample{State: state, Command: cmd})
		n = len(r.session.Samples)
	}
	r.mu.Unlock()

	r.obs.IncCounter("armtrace_samples_recorded_total", 1)
	r.obs.SetGauge("armtrace_session_samples", float64(n))
	r.obs.SetGauge("armtrace_state_age_seconds", r.live.Age().Seconds())
	return false
}

// flush consumes the session buffer and writes it through the sink. The
// session is detached before writing so a concurrent Stop cannot serialize
// it twice.
func (r *Recorder) flush() error {
	r.mu.Lock()
	sess := r.session
	r.session = nil
	r.mu.Unlock()

	if sess == nil {
		return nil
	}

	start := r.clock.Now()
	if err := r.sink.WriteSession(sess); err != nil {
		r.obs.IncCounter("armtrace_sessions_failed_total", 1)
		r.obs.LogError("session_write_failed", err, ports.Field{Key: "file", Value: sess.FileName})
		return err
	}
	r.obs.ObserveLatency("armtrace_session_write_seconds", r.clock.Now().Sub(start).Seconds())
	r.obs.IncCounter("armtrace_sessions_written_total", 1)
	r.obs.LogInfo("session_written",
		ports.Field{Key: "file", Value: sess.FileName},
		ports.Field{Key: "samples", Value: len(sess.Samples)})
	return nil
}
