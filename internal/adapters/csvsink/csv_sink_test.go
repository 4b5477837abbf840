package csvsink

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/PickNikRobotics/armtrace/internal/domain"
	"github.com/PickNikRobotics/armtrace/internal/ports"
)

func makeSample(stamp time.Time, pos, vel, eff, cmd float64) domain.Sample {
	return domain.Sample{
		State: &domain.JointSnapshot{
			Stamp:      stamp,
			Names:      []string{"w1"},
			Positions:  []float64{pos},
			Velocities: []float64{vel},
			Efforts:    []float64{eff},
		},
		Command: &domain.CommandSnapshot{
			Mode:   domain.PositionMode,
			Values: []float64{cmd},
		},
	}
}

func TestWriteSessionFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.csv")

	t0 := time.Unix(1000, 0)
	sess := &domain.Session{
		FileName: path,
		Mode:     domain.PositionMode,
		Samples: []domain.Sample{
			makeSample(t0, 0.5, 0.1, 0.05, 0.6),
			makeSample(t0.Add(100*time.Millisecond), 0.52, 0.1, 0.05, 0.62),
		},
	}

	if err := New().WriteSession(sess); err != nil {
		t.Fatalf("write session: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}

	want := "timestamp,w1_pos,w1_vel,w1_eff,w1_pos_cmd,\n" +
		"0,0.5,0.1,0.05,0.6,\n" +
		"0.1,0.52,0.1,0.05,0.62,\n"
	if string(data) != want {
		t.Fatalf("output mismatch:\ngot:\n%s\nwant:\n%s", data, want)
	}
}

func TestWriteSessionVelocityModeHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.csv")

	sess := &domain.Session{
		FileName: path,
		Mode:     domain.VelocityMode,
		Samples: []domain.Sample{
			{
				State: &domain.JointSnapshot{
					Stamp:      time.Unix(1000, 0),
					Names:      []string{"e0", "e1"},
					Positions:  []float64{1, 2},
					Velocities: []float64{3, 4},
					Efforts:    []float64{5, 6},
				},
				Command: &domain.CommandSnapshot{Mode: domain.VelocityMode, Values: []float64{7, 8}},
			},
		},
	}

	if err := New().WriteSession(sess); err != nil {
		t.Fatalf("write session: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	header := strings.SplitN(string(data), "\n", 2)[0]
	want := "timestamp,e0_pos,e0_vel,e0_eff,e0_vel_cmd,e1_pos,e1_vel,e1_eff,e1_vel_cmd,"
	if header != want {
		t.Fatalf("header mismatch:\ngot  %q\nwant %q", header, want)
	}
}

func TestWriteSessionEmptyFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.csv")

	sess := &domain.Session{FileName: path, Mode: domain.PositionMode}
	if err := New().WriteSession(sess); !errors.Is(err, ports.ErrEmptySession) {
		t.Fatalf("expected ErrEmptySession, got %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("empty session must not produce a file")
	}
}

func TestWriteSessionOverwritesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.csv")
	if err := os.WriteFile(path, []byte("stale"), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	sess := &domain.Session{
		FileName: path,
		Mode:     domain.PositionMode,
		Samples:  []domain.Sample{makeSample(time.Unix(1000, 0), 1, 2, 3, 4)},
	}
	if err := New().WriteSession(sess); err != nil {
		t.Fatalf("write session: %v", err)
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "stale") {
		t.Fatalf("existing file must be overwritten")
	}
}

func TestWriteSessionJointDriftFailsFast(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.csv")

	drifted := domain.Sample{
		State: &domain.JointSnapshot{
			Stamp:      time.Unix(1001, 0),
			Names:      []string{"w1", "w2"},
			Positions:  []float64{1, 2},
			Velocities: []float64{3, 4},
			Efforts:    []float64{5, 6},
		},
		Command: &domain.CommandSnapshot{Mode: domain.PositionMode, Values: []float64{7, 8}},
	}
	sess := &domain.Session{
		FileName: path,
		Mode:     domain.PositionMode,
		Samples:  []domain.Sample{makeSample(time.Unix(1000, 0), 1, 2, 3, 4), drifted},
	}

	if err := New().WriteSession(sess); err == nil {
		t.Fatalf("expected cardinality drift to fail")
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("failed write must leave no file behind")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed write must leave no temp files, found %v", entries)
	}
}

func TestWriteSessionModeMismatchFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.csv")

	sample := makeSample(time.Unix(1000, 0), 1, 2, 3, 4)
	sess := &domain.Session{FileName: path, Mode: domain.VelocityMode, Samples: []domain.Sample{sample}}

	if err := New().WriteSession(sess); err == nil {
		t.Fatalf("expected command variant mismatch to fail")
	}
}

func TestWriteSessionZeroFillsMissingCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.csv")

	sample := makeSample(time.Unix(1000, 0), 1, 2, 3, 4)
	sample.Command = &domain.CommandSnapshot{Mode: domain.PositionMode}
	sess := &domain.Session{FileName: path, Mode: domain.PositionMode, Samples: []domain.Sample{sample}}

	if err := New().WriteSession(sess); err != nil {
		t.Fatalf("write session: %v", err)
	}
	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if lines[1] != "0,1,2,3,0," {
		t.Fatalf("expected zero-filled command column, got %q", lines[1])
	}
}

func TestWriteSessionRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "session.csv")

	t0 := time.Unix(1000, 0)
	values := [][4]float64{
		{0.123456789, -1.5, 0.000244140625, 2.7},
		{3.14159265358979, 42, -0.1, 1e-9},
	}
	sess := &domain.Session{FileName: path, Mode: domain.PositionMode}
	for i, v := range values {
		sess.Samples = append(sess.Samples,
			makeSample(t0.Add(time.Duration(i)*10*time.Millisecond), v[0], v[1], v[2], v[3]))
	}

	if err := New().WriteSession(sess); err != nil {
		t.Fatalf("write session: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != len(values)+1 {
		t.Fatalf("expected %d lines, got %d", len(values)+1, len(lines))
	}

	for i, want := range values {
		fields := strings.Split(strings.TrimSuffix(lines[i+1], ","), ",")
		if len(fields) != 5 {
			t.Fatalf("row %d: expected 5 fields, got %d", i, len(fields))
		}
		for col, wantV := range want {
			got, err := strconv.ParseFloat(fields[col+1], 64)
			if err != nil {
				t.Fatalf("row %d col %d: parse: %v", i, col, err)
			}
			if got != wantV {
				t.Fatalf("row %d col %d: got %v want %v", i, col, got, wantV)
			}
		}
	}
}
