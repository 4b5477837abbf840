package armtrace

import (
	base "github.com/PickNikRobotics/armtrace/pkg/armtrace"
)

// Re-exported errors for convenience.
var (
	ErrEmptySession     = base.ErrEmptySession
	ErrAlreadyRecording = base.ErrAlreadyRecording
)

// Type aliases so consumers can import github.com/PickNikRobotics/armtrace directly.
type (
	Config           = base.Config
	SourceConfig     = base.SourceConfig
	RecordingConfig  = base.RecordingConfig
	ArchiveConfig    = base.ArchiveConfig
	MetricsConfig    = base.MetricsConfig
	RosbridgeConfig  = base.RosbridgeConfig
	OPCUAConfig      = base.OPCUAConfig
	OPCUAJointConfig = base.OPCUAJointConfig
	Runtime          = base.Runtime
	RuntimeOption    = base.RuntimeOption
	JointSnapshot    = base.JointSnapshot
	CommandSnapshot  = base.CommandSnapshot
	CommandMode      = base.CommandMode
	Sample           = base.Sample
	Session          = base.Session
	SessionFunc      = base.SessionFunc
	TelemetrySource  = base.TelemetrySource
	SessionSink      = base.SessionSink
	Observability    = base.Observability
	Field            = base.Field
	Clock            = base.Clock
)

const (
	PositionMode = base.PositionMode
	VelocityMode = base.VelocityMode
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

// Runtime and options.
func NewRuntime(cfg *Config, opts ...RuntimeOption) (*Runtime, error) {
	return base.NewRuntime(cfg, opts...)
}

func WithSource(src TelemetrySource) RuntimeOption {
	return base.WithSource(src)
}

func WithSink(s SessionSink) RuntimeOption {
	return base.WithSink(s)
}

func WithObservability(obs Observability) RuntimeOption {
	return base.WithObservability(obs)
}

func WithClock(c Clock) RuntimeOption {
	return base.WithClock(c)
}

// Sink adapters.
func NewCallbackSink(name string, fn SessionFunc) SessionSink {
	return base.NewCallbackSink(name, fn)
}

func NewMultiSink(sinks ...SessionSink) SessionSink {
	return base.NewMultiSink(sinks...)
}
