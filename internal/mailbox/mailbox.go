// Package mailbox implements the private message queue backing a phase
// process: an unbounded FIFO with a single consumer, any number of
// producers, a timed receive for idle-timeout handling, and a cheap
// non-blocking depth query used by the backpressure sampler.
package mailbox

import (
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Put and Take once the mailbox has been closed.
var ErrClosed = errors.New("mailbox: closed")

// Mailbox is an unbounded FIFO queue. Put never blocks; Take suspends the
// caller until a message arrives, the given timeout elapses, or the mailbox
// is closed.
type Mailbox struct {
	mu     sync.Mutex
	queue  []any
	closed bool

	// notify carries a wake-up signal to a suspended Take. Capacity 1 is
	// enough: Take re-checks the queue under the lock after every wake-up.
	notify chan struct{}
}

// New creates an empty mailbox.
func New() *Mailbox {
	return &Mailbox{notify: make(chan struct{}, 1)}
}

// Put appends a message to the queue. It never blocks the producer.
func (m *Mailbox) Put(msg any) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.queue = append(m.queue, msg)
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
	return nil
}

// Take removes and returns the oldest message. If the queue is empty it
// suspends for at most timeout; a zero or negative timeout means wait
// forever. The second return value is true when the wait timed out with no
// message available.
func (m *Mailbox) Take(timeout time.Duration) (msg any, timedOut bool, err error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			msg = m.queue[0]
			m.queue[0] = nil
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return msg, false, nil
		}
		if m.closed {
			m.mu.Unlock()
			return nil, false, ErrClosed
		}
		m.mu.Unlock()

		select {
		case <-m.notify:
		case <-deadline:
			return nil, true, nil
		}
	}
}

// Len reports the number of pending messages. It is safe to call from any
// goroutine and never blocks on the consumer.
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Close marks the mailbox closed. Pending messages can still be drained by
// Take; once empty, Take returns ErrClosed.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	select {
	case m.notify <- struct{}{}:
	default:
	}
}
