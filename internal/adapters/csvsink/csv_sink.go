package csvsink

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/PickNikRobotics/armtrace/internal/domain"
	"github.com/PickNikRobotics/armtrace/internal/ports"
)

// Sink renders a session to a comma-separated text file: one header line,
// one data line per sample. Every field, including the last on a line, is
// followed by a comma — downstream analysis tooling expects that exact shape.
//
// The file is written to a temp file in the target directory and renamed
// into place, so a failed write leaves no partial output. An existing file
// at the target path is overwritten without warning.
type Sink struct{}

func New() *Sink { return &Sink{} }

func (s *Sink) Name() string { return "csv" }

func (s *Sink) WriteSession(sess *domain.Session) error {
	if sess.Empty() {
		return ports.ErrEmptySession
	}
	if err := sess.Validate(); err != nil {
		return fmt.Errorf("csv sink: %w", err)
	}

	dir := filepath.Dir(sess.FileName)
	tmp, err := os.CreateTemp(dir, ".armtrace-*")
	if err != nil {
		return fmt.Errorf("csv sink: create temp: %w", err)
	}

	w := bufio.NewWriter(tmp)
	writeHeader(w, sess)
	writeRows(w, sess)
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("csv sink: write %s: %w", sess.FileName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("csv sink: close temp: %w", err)
	}
	if err := os.Rename(tmp.Name(), sess.FileName); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("csv sink: rename to %s: %w", sess.FileName, err)
	}
	return nil
}

func writeHeader(w *bufio.Writer, sess *domain.Session) {
	w.WriteString("timestamp,")
	suffix := sess.Mode.ColumnSuffix()
	for _, name := range sess.JointNames() {
		w.WriteString(name + "_pos,")
		w.WriteString(name + "_vel,")
		w.WriteString(name + "_eff,")
		w.WriteString(name + suffix + ",")
	}
	w.WriteByte('\n')
}

func writeRows(w *bufio.Writer, sess *domain.Session) {
	start := sess.Samples[0].State.Stamp
	joints := len(sess.JointNames())

	for _, sample := range sess.Samples {
		state := sample.State
		w.WriteString(formatFloat(state.Stamp.Sub(start).Seconds()))
		w.WriteByte(',')
		for j := 0; j < joints; j++ {
			w.WriteString(formatFloat(state.Positions[j]))
			w.WriteByte(',')
			w.WriteString(formatFloat(state.Velocities[j]))
			w.WriteByte(',')
			w.WriteString(formatFloat(state.Efforts[j]))
			w.WriteByte(',')
			w.WriteString(formatFloat(commandValue(sample.Command, j)))
			w.WriteByte(',')
		}
		w.WriteByte('\n')
	}
}

// commandValue pads zero for samples captured before the first command
// message of the session arrived.
func commandValue(cmd *domain.CommandSnapshot, j int) float64 {
	if cmd == nil || j >= len(cmd.Values) {
		return 0
	}
	return cmd.Values[j]
}

// formatFloat uses the shortest representation that round-trips exactly.
func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

var _ ports.SessionSink = (*Sink)(nil)
