package kontomanager

import "sync"

// messageQueue is an unbounded FIFO with a one-way close signal. It backs the
// asynchronous dispatch path: SendMessage appends, the single consumer
// goroutine takes from the head.
type messageQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*Message
	closed bool
}

func newMessageQueue() *messageQueue {
	q := &messageQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push appends a message. It fails once the queue has been closed.
func (q *messageQueue) push(m *Message) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	q.items = append(q.items, m)
	q.cond.Signal()
	return nil
}

// take blocks until a message is available or the queue is closed. Closure is
// terminal: once observed, no further items are dequeued even if some remain
// buffered.
func (q *messageQueue) take() (*Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.closed {
		return nil, false
	}
	m := q.items[0]
	q.items[0] = nil
	q.items = q.items[1:]
	return m, true
}

// close transitions the queue to its terminal state and wakes all waiters.
// Safe to call more than once.
func (q *messageQueue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// pending returns the number of buffered messages, used for log context.
func (q *messageQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
