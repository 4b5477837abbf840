package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/PickNikRobotics/armtrace/internal/domain"
)

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
source:
  rosbridge:
    url: ws://robot:9090
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Source.Kind != "rosbridge" {
		t.Fatalf("expected default source kind rosbridge, got %s", cfg.Source.Kind)
	}
	if cfg.Recording.RateHz != 100 {
		t.Fatalf("expected default rate 100, got %f", cfg.Recording.RateHz)
	}
	if cfg.Recording.StateTimeout != time.Second {
		t.Fatalf("expected default state timeout 1s, got %s", cfg.Recording.StateTimeout)
	}
	if cfg.Metrics.Addr != ":9100" {
		t.Fatalf("expected default metrics addr :9100, got %s", cfg.Metrics.Addr)
	}
	if cfg.Archive.Table != "sessions" {
		t.Fatalf("expected default archive table sessions, got %s", cfg.Archive.Table)
	}
	if cfg.Source.Rosbridge.StateTopic != "/robot/limb/left/joint_states" {
		t.Fatalf("expected state topic default, got %s", cfg.Source.Rosbridge.StateTopic)
	}

	mode, err := cfg.Recording.Mode()
	if err != nil {
		t.Fatalf("mode: %v", err)
	}
	if mode != domain.PositionMode {
		t.Fatalf("expected default position mode, got %s", mode)
	}
}

func TestLoadVelocityMode(t *testing.T) {
	path := writeConfig(t, `
source:
  rosbridge:
    url: ws://robot:9090
recording:
  command_mode: velocity
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	mode, err := cfg.Recording.Mode()
	if err != nil {
		t.Fatalf("mode: %v", err)
	}
	if mode != domain.VelocityMode {
		t.Fatalf("expected velocity mode, got %s", mode)
	}
}

func TestLoadRejectsUnknownKind(t *testing.T) {
	path := writeConfig(t, `
source:
  kind: mqtt
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown source kind to fail")
	}
}

func TestLoadRejectsUnknownMode(t *testing.T) {
	path := writeConfig(t, `
source:
  rosbridge:
    url: ws://robot:9090
recording:
  command_mode: torque
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected unknown command mode to fail")
	}
}

func TestLoadRejectsMissingSourceDetails(t *testing.T) {
	path := writeConfig(t, `
source:
  kind: opcua
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("expected missing opcua endpoint to fail")
	}
}

func TestRecorderConfigMapping(t *testing.T) {
	path := writeConfig(t, `
source:
  rosbridge:
    url: ws://robot:9090
recording:
  rate_hz: 50
  command_mode: velocity
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	rc, err := cfg.RecorderConfig()
	if err != nil {
		t.Fatalf("recorder config: %v", err)
	}
	if rc.RateHz != 50 || rc.Mode != domain.VelocityMode {
		t.Fatalf("unexpected recorder config %+v", rc)
	}
}
