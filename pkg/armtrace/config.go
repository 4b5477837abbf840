package armtrace

import (
	"github.com/PickNikRobotics/armtrace/internal/adapters/opcua"
	"github.com/PickNikRobotics/armtrace/internal/adapters/rosbridge"
	"github.com/PickNikRobotics/armtrace/internal/app/config"
	"github.com/PickNikRobotics/armtrace/internal/domain"
	"github.com/PickNikRobotics/armtrace/internal/ports"
	"github.com/PickNikRobotics/armtrace/internal/recorder"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// SourceConfig selects and configures the telemetry transport.
	SourceConfig = config.SourceConfig
	// RecordingConfig holds rate, timeout and command-mode knobs.
	RecordingConfig = config.RecordingConfig
	// ArchiveConfig configures the optional Postgres session archive.
	ArchiveConfig = config.ArchiveConfig
	// MetricsConfig configures the metrics HTTP server.
	MetricsConfig = config.MetricsConfig
	// RosbridgeConfig holds rosbridge connection + topic details.
	RosbridgeConfig = rosbridge.Config
	// OPCUAConfig holds OPC UA connection details.
	OPCUAConfig = opcua.Config
	// OPCUAJointConfig binds one joint to its OPC UA nodes.
	OPCUAJointConfig = opcua.JointNodeConfig
)

type (
	// JointSnapshot is one captured joint-state message.
	JointSnapshot = domain.JointSnapshot
	// CommandSnapshot is one captured command message.
	CommandSnapshot = domain.CommandSnapshot
	// CommandMode selects the command variant of a session.
	CommandMode = domain.CommandMode
	// Sample is one sampler tick's (state, command) pair.
	Sample = domain.Sample
	// Session is one start-to-stop recording run.
	Session = domain.Session

	// TelemetrySource delivers the inbound state and command streams.
	TelemetrySource = ports.TelemetrySource
	// SessionSink persists a finished session.
	SessionSink = ports.SessionSink
	// Observability is the logging/metrics port.
	Observability = ports.Observability
	// Field is a structured log field.
	Field = ports.Field
	// Clock abstracts wall time.
	Clock = ports.Clock
)

const (
	PositionMode = domain.PositionMode
	VelocityMode = domain.VelocityMode
)

// Re-exported errors for convenience.
var (
	ErrEmptySession     = ports.ErrEmptySession
	ErrAlreadyRecording = recorder.ErrAlreadyRecording
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}
