package kontomanager

import (
	"errors"
	"testing"
	"time"
)

func TestQueuePreservesOrder(t *testing.T) {
	q := newMessageQueue()

	first := NewMessage("+431", "a")
	second := NewMessage("+432", "b")
	third := NewMessage("+433", "c")
	for _, m := range []*Message{first, second, third} {
		if err := q.push(m); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	for i, want := range []*Message{first, second, third} {
		got, ok := q.take()
		if !ok {
			t.Fatalf("take %d: queue reported closed", i)
		}
		if got != want {
			t.Fatalf("take %d returned %s, want %s", i, got.RecipientNumber, want.RecipientNumber)
		}
	}
}

func TestQueueTakeBlocksUntilPush(t *testing.T) {
	q := newMessageQueue()

	done := make(chan *Message, 1)
	go func() {
		m, ok := q.take()
		if ok {
			done <- m
		}
		close(done)
	}()

	// Give the goroutine a moment to block.
	time.Sleep(10 * time.Millisecond)
	want := NewMessage("+43", "hi")
	if err := q.push(want); err != nil {
		t.Fatalf("push: %v", err)
	}

	select {
	case got := <-done:
		if got != want {
			t.Fatal("take returned a different message than pushed")
		}
	case <-time.After(time.Second):
		t.Fatal("take did not observe the push")
	}
}

func TestQueueCloseIsTerminal(t *testing.T) {
	q := newMessageQueue()
	if err := q.push(NewMessage("+43", "left behind")); err != nil {
		t.Fatalf("push: %v", err)
	}

	q.close()
	q.close() // second close must be a no-op

	if _, ok := q.take(); ok {
		t.Fatal("take after close must not dequeue buffered items")
	}
	if err := q.push(NewMessage("+43", "late")); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("push after close returned %v, want ErrQueueClosed", err)
	}
}

func TestQueueCloseWakesBlockedTaker(t *testing.T) {
	q := newMessageQueue()

	done := make(chan bool, 1)
	go func() {
		_, ok := q.take()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.close()

	select {
	case ok := <-done:
		if ok {
			t.Fatal("blocked take returned a message after close")
		}
	case <-time.After(time.Second):
		t.Fatal("close did not wake the blocked taker")
	}
}
