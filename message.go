package kontomanager

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// attemptBuffer bounds the outcome channel. The reconnect-and-retry path
// produces at most two notifications per pass through the queue consumer, so
// a small buffer keeps notify non-blocking even with a slow observer.
const attemptBuffer = 8

// Message is the unit of work handed to a Client. A message is owned by the
// caller; the dispatch queue only holds a transient reference while the
// message waits for delivery.
type Message struct {
	// ID identifies the message in logs and status reporting.
	ID string
	// RecipientNumber is passed to the portal verbatim. A leading "+" is
	// preserved; the expected shapes are +[country][number] or
	// 00[country][number].
	RecipientNumber string
	// Body is the message text.
	Body string

	mu       sync.Mutex
	sent     bool
	attempts chan SendResult
}

// NewMessage creates a message for the given recipient and body.
func NewMessage(recipient, body string) *Message {
	if strings.HasPrefix(recipient, "+") {
		recipient = "+" + recipient[1:]
	}
	return &Message{
		ID:              uuid.NewString(),
		RecipientNumber: recipient,
		Body:            body,
		attempts:        make(chan SendResult, attemptBuffer),
	}
}

// Sent reports whether any attempt succeeded. The flag only ever transitions
// false to true; a failed retry after a success does not reset it.
func (m *Message) Sent() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent
}

// Attempts exposes the per-attempt outcome channel. Every raw send attempt
// publishes its classification here, so a queued caller observing a single
// message sees at most two results per reconnect-and-retry pass: the failed
// first attempt and, if retried, the retry's result.
func (m *Message) Attempts() <-chan SendResult {
	return m.attempts
}

// notifyAttempt records the outcome of one raw send attempt and wakes any
// observer. Delivery is best-effort for intermediate results: an observer
// that stopped draining does not block the consumer loop. A terminal result
// is always buffered, evicting the oldest pending outcome when the channel
// is full, so a stalled observer never misses how the message ended up.
func (m *Message) notifyAttempt(res SendResult) {
	m.mu.Lock()
	if res == ResultOk {
		m.sent = true
	}
	m.mu.Unlock()

	select {
	case m.attempts <- res:
		return
	default:
	}
	if !res.Terminal() {
		return
	}
	select {
	case <-m.attempts:
	default:
	}
	select {
	case m.attempts <- res:
	default:
	}
}
