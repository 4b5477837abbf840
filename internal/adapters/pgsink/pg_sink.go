package pgsink

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/PickNikRobotics/armtrace/internal/domain"
	"github.com/PickNikRobotics/armtrace/internal/ports"
)

// Sink archives finished sessions to Postgres/Timescale: one row per joint
// per sample, keyed by (session_file, elapsed_s, joint). Archiving is an
// optional secondary output; the CSV file stays the primary artifact.
type Sink struct {
	db        *sql.DB
	tableName string
}

func New(db *sql.DB, table string) *Sink {
	return &Sink{db: db, tableName: table}
}

func (s *Sink) Name() string { return "timescaledb" }

func (s *Sink) WriteSession(sess *domain.Session) error {
	if sess.Empty() {
		return ports.ErrEmptySession
	}
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("archive session %s: %w", sess.FileName, err)
	}

	names := sess.JointNames()
	start := sess.Samples[0].State.Stamp

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(s.tableName)
	b.WriteString(" (session_file, ts, elapsed_s, joint, position, velocity, effort, command, command_kind) VALUES ")

	args := make([]any, 0, len(sess.Samples)*len(names)*9)
	for _, sample := range sess.Samples {
		state := sample.State
		elapsed := state.Stamp.Sub(start).Seconds()
		for j, name := range names {
			if len(args) > 0 {
				b.WriteString(",")
			}
			b.WriteString(fmt.Sprintf("($%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d,$%d)",
				len(args)+1, len(args)+2, len(args)+3, len(args)+4, len(args)+5,
				len(args)+6, len(args)+7, len(args)+8, len(args)+9))

			args = append(args,
				sess.FileName,
				state.Stamp,
				elapsed,
				name,
				state.Positions[j],
				state.Velocities[j],
				state.Efforts[j],
				commandValue(sample.Command, j),
				sess.Mode.String(),
			)
		}
	}

	b.WriteString(" ON CONFLICT (session_file, elapsed_s, joint) DO NOTHING")

	if _, err := s.db.Exec(b.String(), args...); err != nil {
		return fmt.Errorf("archive session %s: %w", sess.FileName, err)
	}
	return nil
}

func commandValue(cmd *domain.CommandSnapshot, j int) float64 {
	if cmd == nil || j >= len(cmd.Values) {
		return 0
	}
	return cmd.Values[j]
}

var _ ports.SessionSink = (*Sink)(nil)
