package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/PickNikRobotics/armtrace/internal/adapters/opcua"
	"github.com/PickNikRobotics/armtrace/internal/adapters/rosbridge"
	"github.com/PickNikRobotics/armtrace/internal/domain"
	"github.com/PickNikRobotics/armtrace/internal/recorder"
)

type Config struct {
	Source    SourceConfig    `yaml:"source"`
	Recording RecordingConfig `yaml:"recording"`
	Archive   ArchiveConfig   `yaml:"archive"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type SourceConfig struct {
	Kind      string           `yaml:"kind"` // "rosbridge" or "opcua"
	Rosbridge rosbridge.Config `yaml:"rosbridge"`
	OPCUA     opcua.Config     `yaml:"opcua"`
}

type RecordingConfig struct {
	RateHz       float64       `yaml:"rate_hz"`
	StateTimeout time.Duration `yaml:"state_timeout"`
	CommandMode  string        `yaml:"command_mode"` // "position" or "velocity"
}

// ArchiveConfig enables the optional Postgres/Timescale session archive when
// a connection string is set.
type ArchiveConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	if c.Source.Kind == "" {
		c.Source.Kind = "rosbridge"
	}
	if c.Recording.RateHz == 0 {
		c.Recording.RateHz = recorder.DefaultRateHz
	}
	if c.Recording.StateTimeout == 0 {
		c.Recording.StateTimeout = recorder.DefaultStateTimeout
	}
	if c.Recording.CommandMode == "" {
		c.Recording.CommandMode = domain.PositionMode.String()
	}
	if c.Archive.Table == "" {
		c.Archive.Table = "sessions"
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}

	switch c.Source.Kind {
	case "rosbridge":
		c.Source.Rosbridge.ApplyDefaults()
	case "opcua":
		c.Source.OPCUA.ApplyDefaults()
	}
}

func (c *Config) Validate() error {
	switch c.Source.Kind {
	case "rosbridge":
		if err := c.Source.Rosbridge.Validate(); err != nil {
			return fmt.Errorf("rosbridge config: %w", err)
		}
	case "opcua":
		if err := c.Source.OPCUA.Validate(); err != nil {
			return fmt.Errorf("opcua config: %w", err)
		}
	default:
		return fmt.Errorf("unknown source kind %q", c.Source.Kind)
	}

	if c.Recording.RateHz <= 0 {
		return fmt.Errorf("recording.rate_hz must be positive")
	}
	if c.Recording.StateTimeout <= 0 {
		return fmt.Errorf("recording.state_timeout must be positive")
	}
	if _, err := c.Recording.Mode(); err != nil {
		return err
	}
	if c.Metrics.Addr == "" {
		return fmt.Errorf("metrics.addr is required")
	}
	return nil
}

// Mode resolves the configured command variant.
func (r RecordingConfig) Mode() (domain.CommandMode, error) {
	switch r.CommandMode {
	case "position", "":
		return domain.PositionMode, nil
	case "velocity":
		return domain.VelocityMode, nil
	default:
		return 0, fmt.Errorf("unknown recording.command_mode %q", r.CommandMode)
	}
}

// RecorderConfig maps the recording section onto the recorder's own config.
func (c *Config) RecorderConfig() (recorder.Config, error) {
	mode, err := c.Recording.Mode()
	if err != nil {
		return recorder.Config{}, err
	}
	return recorder.Config{
		RateHz:       c.Recording.RateHz,
		StateTimeout: c.Recording.StateTimeout,
		Mode:         mode,
	}, nil
}
