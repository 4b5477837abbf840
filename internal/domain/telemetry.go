package domain

import (
	"fmt"
	"time"
)

// JointSnapshot is one joint-state message: parallel name/position/velocity/
// effort series plus the capture stamp carried by the message itself.
// Immutable once captured.
type JointSnapshot struct {
	Stamp      time.Time
	Names      []string
	Positions  []float64
	Velocities []float64
	Efforts    []float64
}

// Len returns the joint cardinality of the snapshot.
func (s *JointSnapshot) Len() int { return len(s.Names) }

// CommandMode selects which command variant a session records. A session
// never mixes variants.
type CommandMode int

const (
	// PositionMode records target joint angles.
	PositionMode CommandMode = iota
	// VelocityMode records target joint velocities.
	VelocityMode
)

func (m CommandMode) String() string {
	switch m {
	case PositionMode:
		return "position"
	case VelocityMode:
		return "velocity"
	default:
		return "unknown"
	}
}

// ColumnSuffix is the per-joint command column suffix used in serialized output.
func (m CommandMode) ColumnSuffix() string {
	if m == VelocityMode {
		return "_vel_cmd"
	}
	return "_pos_cmd"
}

// CommandSnapshot is the latest command message: target angles in position
// mode, target velocities in velocity mode, indexed like the session's
// joint ordering.
type CommandSnapshot struct {
	Mode   CommandMode
	Values []float64
}

// Sample pairs whatever state and command were most recently cached at one
// sampler tick. The halves are captured independently; cross-stream skew up
// to one message-arrival interval is expected, not a defect.
type Sample struct {
	State   *JointSnapshot
	Command *CommandSnapshot
}

// Session is one start-to-stop recording run: the target file name, the
// command variant, and the samples in tick order.
type Session struct {
	FileName string
	Mode     CommandMode
	Samples  []Sample
}

// JointNames returns the joint ordering fixed by the first sample, or nil
// for an empty session.
func (s *Session) JointNames() []string {
	if s == nil || len(s.Samples) == 0 {
		return nil
	}
	return s.Samples[0].State.Names
}

// Empty reports whether the session collected no samples.
func (s *Session) Empty() bool {
	return s == nil || len(s.Samples) == 0
}

// Validate checks the serialization invariants before any sink writes a byte:
// every sample carries a state snapshot with the session's joint cardinality,
// and every command matches the session's variant. The joint ordering itself
// is fixed by the first snapshot and is not re-checked name-by-name.
func (s *Session) Validate() error {
	joints := len(s.JointNames())
	for i, sample := range s.Samples {
		if sample.State == nil {
			return fmt.Errorf("sample %d has no state snapshot", i)
		}
		if got := sample.State.Len(); got != joints {
			return fmt.Errorf("sample %d has %d joints, session has %d", i, got, joints)
		}
		if len(sample.State.Positions) != joints || len(sample.State.Velocities) != joints || len(sample.State.Efforts) != joints {
			return fmt.Errorf("sample %d has ragged state series", i)
		}
		cmd := sample.Command
		if cmd == nil {
			continue
		}
		if cmd.Mode != s.Mode {
			return fmt.Errorf("sample %d command mode %s, session mode %s", i, cmd.Mode, s.Mode)
		}
		if len(cmd.Values) != 0 && len(cmd.Values) != joints {
			return fmt.Errorf("sample %d has %d command values, session has %d joints", i, len(cmd.Values), joints)
		}
	}
	return nil
}
