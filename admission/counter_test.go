package admission

import (
	"testing"
	"time"
)

// fakeClock drives a Counter deterministically.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCounter(window time.Duration, limit int, opts ...Option) (*Counter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithNow(clock.Now)}, opts...)
	return NewCounter(window, limit, opts...), clock
}

func TestCanSendOnlyCountsEventsInsideWindow(t *testing.T) {
	c, clock := newTestCounter(time.Hour, 2)

	c.RecordSuccess()
	c.RecordSuccess()
	if c.CanSend() {
		t.Fatal("expected CanSend to be false at the limit")
	}

	// Push the first success just past the retention horizon.
	clock.advance(time.Hour + time.Second)
	c.RecordSuccess()
	if got := c.Successes(); got != 1 {
		t.Fatalf("Successes() = %d, want 1 after eviction", got)
	}
	if !c.CanSend() {
		t.Fatal("expected CanSend to be true once a slot aged out")
	}
}

func TestPurgeIsIdempotent(t *testing.T) {
	c, clock := newTestCounter(time.Hour, 5)

	c.RecordSuccess()
	c.RecordFailure()
	clock.advance(30 * time.Minute)
	c.RecordSuccess()

	c.Purge()
	succ, fail := len(c.successes), len(c.failures)
	c.Purge()
	if len(c.successes) != succ || len(c.failures) != fail {
		t.Fatalf("second Purge changed counts: %d/%d -> %d/%d",
			succ, fail, len(c.successes), len(c.failures))
	}
}

func TestCountsTrackTheWindow(t *testing.T) {
	c, clock := newTestCounter(time.Hour, 5)

	c.RecordFailure()
	clock.advance(30 * time.Minute)
	c.RecordFailure()
	c.RecordSuccess()
	if got := c.Failures(); got != 2 {
		t.Fatalf("Failures() = %d, want 2", got)
	}
	if got := c.Successes(); got != 1 {
		t.Fatalf("Successes() = %d, want 1", got)
	}

	// The first failure ages out, the rest stays.
	clock.advance(31 * time.Minute)
	if got := c.Failures(); got != 1 {
		t.Fatalf("Failures() = %d, want 1 after eviction", got)
	}
	if got := c.Successes(); got != 1 {
		t.Fatalf("Successes() = %d, want 1 after eviction", got)
	}
}

func TestAdmissionAtLimit(t *testing.T) {
	c, clock := newTestCounter(time.Hour, 3)

	for i := 0; i < 3; i++ {
		c.RecordSuccess()
		clock.advance(time.Second)
	}
	if c.CanSend() {
		t.Fatal("expected CanSend false immediately after limit successes")
	}

	// Advance until the oldest success leaves the window.
	clock.advance(time.Hour - 2*time.Second)
	if !c.CanSend() {
		t.Fatal("expected CanSend true after oldest success aged out")
	}
}

func TestSuccessAfterFailureClearsGate(t *testing.T) {
	c, clock := newTestCounter(time.Hour, 10)

	c.RecordFailure()
	if c.CanSend() {
		t.Fatal("expected CanSend false directly after a failure")
	}

	clock.advance(time.Second)
	c.RecordSuccess()
	if !c.CanSend() {
		t.Fatal("expected a success recorded after the failure to clear the gate")
	}
}

func TestFailureAfterSuccessBlocks(t *testing.T) {
	c, clock := newTestCounter(time.Hour, 10)

	c.RecordSuccess()
	clock.advance(time.Second)
	c.RecordFailure()
	if c.CanSend() {
		t.Fatal("expected CanSend false while the newest event is a failure")
	}
}

func TestTimeUntilNextSlot(t *testing.T) {
	t.Run("zero when admitted", func(t *testing.T) {
		c, _ := newTestCounter(time.Hour, 2)
		if got := c.TimeUntilNextSlot(); got != 0 {
			t.Fatalf("TimeUntilNextSlot() = %v, want 0", got)
		}
	})

	t.Run("window driven wait at capacity", func(t *testing.T) {
		c, clock := newTestCounter(time.Hour, 2)
		c.RecordSuccess()
		clock.advance(10 * time.Second)
		c.RecordSuccess()
		clock.advance(10 * time.Second)

		if c.CanSend() {
			t.Fatal("expected CanSend false at capacity")
		}
		want := time.Hour - 20*time.Second
		if got := c.TimeUntilNextSlot(); got != want {
			t.Fatalf("TimeUntilNextSlot() = %v, want %v", got, want)
		}
	})

	t.Run("fixed cooldown after recent failure", func(t *testing.T) {
		c, clock := newTestCounter(time.Hour, 50)
		c.RecordFailure()
		clock.advance(30 * time.Second)

		if got := c.TimeUntilNextSlot(); got != DefaultFailureCooldown {
			t.Fatalf("TimeUntilNextSlot() = %v, want cooldown %v", got, DefaultFailureCooldown)
		}
	})

	t.Run("stale failure waits for window eviction", func(t *testing.T) {
		c, clock := newTestCounter(time.Hour, 50)
		c.RecordFailure()
		clock.advance(5 * time.Minute)

		want := 55 * time.Minute
		if got := c.TimeUntilNextSlot(); got != want {
			t.Fatalf("TimeUntilNextSlot() = %v, want %v", got, want)
		}
	})

	t.Run("configured backoff overrides defaults", func(t *testing.T) {
		c, clock := newTestCounter(time.Hour, 50,
			WithFailureBackoff(10*time.Second, 2*time.Second))
		c.RecordFailure()
		clock.advance(time.Second)

		if got := c.TimeUntilNextSlot(); got != 10*time.Second {
			t.Fatalf("TimeUntilNextSlot() = %v, want configured cooldown", got)
		}
	})
}
