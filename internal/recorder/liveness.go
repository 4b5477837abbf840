package recorder

import (
	"time"

	"github.com/PickNikRobotics/armtrace/internal/ports"
)

// Liveness flags a state stream that has gone silent. It is only consulted
// once at least one state message has been cached (Start blocks on that),
// so a zero arrival time never reaches Expired in practice.
type Liveness struct {
	clock   ports.Clock
	cache   *LatestCache
	timeout time.Duration
}

func NewLiveness(clock ports.Clock, cache *LatestCache, timeout time.Duration) *Liveness {
	if clock == nil {
		clock = ports.RealClock{}
	}
	return &Liveness{clock: clock, cache: cache, timeout: timeout}
}

// Expired reports whether the state stream is older than the timeout.
// Strict inequality: an age exactly equal to the timeout is still live.
func (l *Liveness) Expired() bool {
	return l.Age() > l.timeout
}

// Age returns how long ago the last state message arrived.
func (l *Liveness) Age() time.Duration {
	return l.clock.Now().Sub(l.cache.LastStateArrival())
}
