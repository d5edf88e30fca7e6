// Package admission implements the sliding-window rate limiter that gates
// outbound sends. Carriers behind kontomanager portals enforce undocumented
// per-number quotas; the counter keeps the client under a configured success
// budget and backs off after failures instead of hammering the endpoint.
//
// A Counter is not safe for concurrent mutation. The supported configuration
// has exactly one goroutine (the queue consumer, or the caller of a
// synchronous send) recording and querying at a time; see the package
// documentation of the root package for the full precondition.
package admission

import (
	"time"
)

const (
	// DefaultWindow is the retention horizon for recorded attempts.
	DefaultWindow = time.Hour
	// DefaultLimit is the maximum number of successes inside the window.
	DefaultLimit = 50
	// DefaultFailureCooldown is the fixed pause applied after a recent
	// failure while still under the success limit.
	DefaultFailureCooldown = 3 * time.Minute
	// DefaultRecentFailure is how fresh a failure must be to trigger the
	// fixed cool-down rather than a window-driven wait.
	DefaultRecentFailure = time.Minute
)

// Option customises a Counter.
type Option func(*Counter)

// WithNow overrides the clock, used by tests to pin time.
func WithNow(now func() time.Time) Option {
	return func(c *Counter) {
		if now != nil {
			c.now = now
		}
	}
}

// WithFailureBackoff tunes the failure-driven cool-down. The thresholds were
// originally calibrated against one vendor's limit, so deployments targeting
// other portals can adjust them.
func WithFailureBackoff(cooldown, recentFailure time.Duration) Option {
	return func(c *Counter) {
		if cooldown > 0 {
			c.failureCooldown = cooldown
		}
		if recentFailure > 0 {
			c.recentFailure = recentFailure
		}
	}
}

// Counter tracks send outcomes over a sliding window and answers whether a
// send may proceed now and, if not, how long to wait. Timestamps are appended
// in real-time order and lazily purged on every read; there is no background
// sweep.
type Counter struct {
	window time.Duration
	limit  int

	failureCooldown time.Duration
	recentFailure   time.Duration

	successes []time.Time
	failures  []time.Time

	now func() time.Time
}

// NewCounter creates a counter admitting at most limit successes per window.
// Non-positive arguments fall back to the defaults.
func NewCounter(window time.Duration, limit int, opts ...Option) *Counter {
	if window <= 0 {
		window = DefaultWindow
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	c := &Counter{
		window:          window,
		limit:           limit,
		failureCooldown: DefaultFailureCooldown,
		recentFailure:   DefaultRecentFailure,
		now:             time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// RecordSuccess appends a success at the current time.
func (c *Counter) RecordSuccess() {
	c.successes = append(c.successes, c.now())
}

// RecordFailure appends a failure at the current time.
func (c *Counter) RecordFailure() {
	c.failures = append(c.failures, c.now())
}

// Purge drops every timestamp older than the retention window. Calling it
// twice in a row is a no-op the second time.
func (c *Counter) Purge() {
	cutoff := c.now().Add(-c.window)
	c.successes = trimBefore(c.successes, cutoff)
	c.failures = trimBefore(c.failures, cutoff)
}

// Successes returns the number of successes inside the window.
func (c *Counter) Successes() int {
	c.Purge()
	return len(c.successes)
}

// Failures returns the number of failures inside the window.
func (c *Counter) Failures() int {
	c.Purge()
	return len(c.failures)
}

// CanSend reports whether a send may proceed now: the success count must be
// under the limit, and a run of failures since the last success must not be
// outstanding. The second clause pauses sending after consecutive failures
// even though the raw count is under budget; a single fresh success clears
// the gate.
func (c *Counter) CanSend() bool {
	c.Purge()
	if len(c.successes) >= c.limit {
		return false
	}
	if len(c.failures) == 0 {
		return true
	}
	if len(c.successes) == 0 {
		return false
	}
	return c.successes[len(c.successes)-1].After(c.failures[len(c.failures)-1])
}

// TimeUntilNextSlot returns how long the caller should wait before the next
// attempt. Zero when CanSend is true. A failure within the recent-failure
// threshold yields the fixed cool-down. At capacity, the wait runs until the
// limit-th most recent success ages out of the window. When the gate is a
// stale failure, the wait runs until that failure leaves the window.
func (c *Counter) TimeUntilNextSlot() time.Duration {
	if c.CanSend() {
		return 0
	}
	now := c.now()
	if len(c.successes) < c.limit {
		last := c.failures[len(c.failures)-1]
		if now.Sub(last) < c.recentFailure {
			return c.failureCooldown
		}
		return nonNegative(last.Add(c.window).Sub(now))
	}
	// successes are insertion-ordered, so the limit-th most recent success is
	// counted from the tail.
	gate := c.successes[len(c.successes)-c.limit]
	return nonNegative(gate.Add(c.window).Sub(now))
}

func trimBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
