package armtrace

import (
	"errors"
	"fmt"
)

// SessionFunc handles one finished session.
type SessionFunc func(*Session) error

// NewCallbackSink adapts a function into a full SessionSink implementation so
// callers can plug arbitrary handlers without defining structs.
func NewCallbackSink(name string, fn SessionFunc) SessionSink {
	if name == "" {
		name = "callback"
	}
	return &callbackSink{name: name, fn: fn}
}

type callbackSink struct {
	name string
	fn   SessionFunc
}

func (s *callbackSink) WriteSession(sess *Session) error {
	if s.fn == nil {
		return fmt.Errorf("callback sink %q: nil handler", s.name)
	}
	return s.fn(sess)
}

func (s *callbackSink) Name() string { return s.name }

// NewMultiSink fans a finished session out to every given sink. All sinks
// are attempted; their errors are joined.
func NewMultiSink(sinks ...SessionSink) SessionSink {
	return multiSink(sinks)
}

type multiSink []SessionSink

func (m multiSink) WriteSession(sess *Session) error {
	var errs []error
	for _, s := range m {
		if err := s.WriteSession(sess); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (m multiSink) Name() string { return "multi" }
