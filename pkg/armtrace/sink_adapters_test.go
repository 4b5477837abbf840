package armtrace

import (
	"errors"
	"testing"
	"time"
)

var errSinkBoom = errors.New("boom")

func testSession() *Session {
	return &Session{
		FileName: "run.csv",
		Mode:     PositionMode,
		Samples: []Sample{
			{
				State: &JointSnapshot{
					Stamp:      time.Unix(1000, 0),
					Names:      []string{"w1"},
					Positions:  []float64{1},
					Velocities: []float64{2},
					Efforts:    []float64{3},
				},
				Command: &CommandSnapshot{Mode: PositionMode, Values: []float64{4}},
			},
		},
	}
}

func TestCallbackSink(t *testing.T) {
	var got *Session
	sink := NewCallbackSink("", func(s *Session) error {
		got = s
		return nil
	})

	if sink.Name() != "callback" {
		t.Fatalf("expected default name callback, got %s", sink.Name())
	}

	sess := testSession()
	if err := sink.WriteSession(sess); err != nil {
		t.Fatalf("write session: %v", err)
	}
	if got != sess {
		t.Fatalf("callback did not receive the session")
	}
}

func TestCallbackSinkNilHandler(t *testing.T) {
	sink := NewCallbackSink("broken", nil)
	if err := sink.WriteSession(testSession()); err == nil {
		t.Fatalf("expected nil handler to fail")
	}
}

func TestMultiSinkWritesAllAndJoinsErrors(t *testing.T) {
	var first, second int
	ok := NewCallbackSink("ok", func(*Session) error {
		first++
		return nil
	})
	failing := NewCallbackSink("bad", func(*Session) error {
		second++
		return errSinkBoom
	})

	multi := NewMultiSink(ok, failing)
	err := multi.WriteSession(testSession())
	if !errors.Is(err, errSinkBoom) {
		t.Fatalf("expected joined sink error, got %v", err)
	}
	if first != 1 || second != 1 {
		t.Fatalf("every sink must be attempted, got %d/%d", first, second)
	}
}
