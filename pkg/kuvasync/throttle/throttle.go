// Package throttle spaces out calls so that consecutive calls through the
// same Throttle start at least a minimum interval apart.
//
// A Throttle is a scheduling policy, not a queue. It never buffers or
// reorders calls; it only delays the calling goroutine.
package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultInterval is one call per second.
const DefaultInterval = time.Second

// Throttle enforces a minimum interval between call starts.
type Throttle struct {
	interval time.Duration
	clock    clockwork.Clock

	mu        sync.Mutex
	lastStart time.Time
	started   bool
}

// Option configures a Throttle.
type Option func(*Throttle)

// WithClock sets the clock used for waiting. Tests pass a fake clock.
func WithClock(c clockwork.Clock) Option {
	return func(t *Throttle) {
		t.clock = c
	}
}

// New returns a throttle with the given interval. A zero or negative
// interval disables waiting.
func New(interval time.Duration, opts ...Option) *Throttle {
	t := &Throttle{
		interval: interval,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// FromRate converts a rate in calls per second to an interval. Zero or
// negative rates mean no limit.
func FromRate(perSecond float64) time.Duration {
	if perSecond <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / perSecond)
}

// Interval returns the configured interval.
func (t *Throttle) Interval() time.Duration {
	return t.interval
}

// Do runs fn once the configured interval has passed since the start of the
// previous call.
func (t *Throttle) Do(ctx context.Context, fn func(context.Context) error) error {
	return t.DoEvery(ctx, t.interval, fn)
}

// DoEvery is like Do but uses interval for this call instead of the
// configured one.
//
// The start time is reserved under the lock before waiting, so concurrent
// callers are spaced from each other. If ctx ends while waiting, fn is not
// called and the reservation is kept.
func (t *Throttle) DoEvery(ctx context.Context, interval time.Duration, fn func(context.Context) error) error {
	wait := t.reserve(interval)

	if wait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.clock.After(wait):
		}
	} else if err := ctx.Err(); err != nil {
		return err
	}

	return fn(ctx)
}

// reserve claims the next start slot and returns how long the caller must
// wait for it.
func (t *Throttle) reserve(interval time.Duration) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	start := now
	if t.started && interval > 0 {
		if next := t.lastStart.Add(interval); next.After(now) {
			start = next
		}
	}
	if !t.started || start.After(t.lastStart) {
		t.lastStart = start
	}
	t.started = true
	return start.Sub(now)
}
