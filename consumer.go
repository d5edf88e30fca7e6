package kontomanager

import (
	"time"

	"golang.org/x/time/rate"
)

// consumeQueue is the dispatch loop: one goroutine per client, started when
// queuing is enabled, alive until Close. It drains messages in strict
// submission order, waits out the admission counter before every attempt,
// and re-drives a message while its outcome stays non-terminal.
func (c *Client) consumeQueue() {
	defer close(c.consumerDone)

	// Fixed pacing between head elements, independent of admission state.
	limiter := rate.NewLimiter(rate.Every(c.dispatchInterval), 1)

	for {
		if !c.waitForAdmission() {
			return
		}
		m, ok := c.queue.take()
		if !ok {
			return
		}

		for attempt := 1; ; attempt++ {
			res, err := c.sendWithReconnect(c.ctx, m)
			if res.Terminal() {
				c.logger.Info().
					Str("message_id", m.ID).
					Str("result", res.String()).
					Int("attempts", attempt).
					Int("pending", c.queue.pending()).
					Msg("message left the queue")
				break
			}
			c.logger.Warn().
				Str("message_id", m.ID).
				Str("result", res.String()).
				Int("attempt", attempt).
				Err(err).
				Msg("send attempt failed, message stays at queue head")

			// Pace before re-checking admission so a dead portal cannot be
			// hammered while the counter is still empty.
			if !c.sleep(c.dispatchInterval) {
				return
			}
			if !c.waitForAdmission() {
				return
			}
		}

		if err := limiter.Wait(c.ctx); err != nil {
			return
		}
	}
}

// waitForAdmission blocks until the counter admits a send or the client is
// closed. The wait duration is re-queried each round because outcomes
// recorded elsewhere can change the answer.
func (c *Client) waitForAdmission() bool {
	for !c.counter.CanSend() {
		delay := c.counter.TimeUntilNextSlot()
		c.logger.Info().
			Dur("delay", delay).
			Int("pending", c.queue.pending()).
			Msg("sending limit active, consumer waiting")
		if !c.sleep(delay) {
			return false
		}
	}
	return true
}

// sleep waits for d unless the client shuts down first.
func (c *Client) sleep(d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-c.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
