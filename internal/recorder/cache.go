package recorder

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PickNikRobotics/armtrace/internal/domain"
	"github.com/PickNikRobotics/armtrace/internal/ports"
)

// LatestCache holds only the most recent snapshot of each stream. Each slot
// has exactly one writer (its stream's consumer goroutine) and one reader
// (the sampler tick); atomic pointers keep reads torn-free without a lock.
// Values overwritten between ticks are dropped, that is the sampling model.
type LatestCache struct {
	clock ports.Clock

	state   atomic.Pointer[domain.JointSnapshot]
	command atomic.Pointer[domain.CommandSnapshot]

	// stateArrival is the wall-clock receipt time of the last state message,
	// in unix nanoseconds. Zero until the first message arrives.
	stateArrival atomic.Int64

	firstState chan struct{}
	firstOnce  sync.Once
}

func NewLatestCache(clock ports.Clock) *LatestCache {
	if clock == nil {
		clock = ports.RealClock{}
	}
	return &LatestCache{
		clock:      clock,
		firstState: make(chan struct{}),
	}
}

// UpdateState overwrites the cached state snapshot and stamps its arrival
// time. The first call ever releases waiters on FirstState.
func (c *LatestCache) UpdateState(s *domain.JointSnapshot) {
	if s == nil {
		return
	}
	c.state.Store(s)
	c.stateArrival.Store(c.clock.Now().UnixNano())
	c.firstOnce.Do(func() { close(c.firstState) })
}

// UpdateCommand overwrites the cached command snapshot. Command arrivals do
// not feed liveness; only the state stream does.
func (c *LatestCache) UpdateCommand(s *domain.CommandSnapshot) {
	if s == nil {
		return
	}
	c.command.Store(s)
}

// State returns the most recently cached state snapshot, or nil before the
// first arrival.
func (c *LatestCache) State() *domain.JointSnapshot { return c.state.Load() }

// Command returns the most recently cached command snapshot, or nil before
// the first arrival.
func (c *LatestCache) Command() *domain.CommandSnapshot { return c.command.Load() }

// LastStateArrival returns the receipt time of the latest state message.
// Zero time before the first arrival.
func (c *LatestCache) LastStateArrival() time.Time {
	ns := c.stateArrival.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// FirstState is closed once the first state message has been cached.
func (c *LatestCache) FirstState() <-chan struct{} { return c.firstState }

// WaitFirstState blocks until the first state message arrives or the context
// is cancelled. The wait itself is unbounded; cancellation is the caller's
// only escape hatch.
func (c *LatestCache) WaitFirstState(ctx context.Context) error {
	select {
	case <-c.firstState:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
