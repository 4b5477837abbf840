package ports

import (
	"errors"

	"github.com/PickNikRobotics/armtrace/internal/domain"
)

// ErrEmptySession is returned by sinks when a session holds no samples.
// No output is produced in that case.
var ErrEmptySession = errors.New("armtrace: session has no samples")

// SessionSink persists one finished recording session.
type SessionSink interface {
	WriteSession(s *domain.Session) error
	Name() string
}
