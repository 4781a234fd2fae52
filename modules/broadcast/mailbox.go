package broadcast

import "sync"

// mailbox is an unbounded FIFO queue with a single consumer.
type mailbox struct {
	mu      sync.Mutex
	queue   []Event
	signal  chan struct{}
	done    chan struct{}
	stopped bool
}

func newMailbox() *mailbox {
	return &mailbox{
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// push appends ev and wakes the consumer. It reports false once stopped.
func (b *mailbox) push(ev Event) bool {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return false
	}
	b.queue = append(b.queue, ev)
	b.mu.Unlock()

	select {
	case b.signal <- struct{}{}:
	default:
	}
	return true
}

// next blocks until an event is queued or the mailbox is stopped.
func (b *mailbox) next() (Event, bool) {
	for {
		b.mu.Lock()
		if b.stopped {
			b.mu.Unlock()
			return Event{}, false
		}
		if len(b.queue) > 0 {
			ev := b.queue[0]
			b.queue[0] = Event{}
			b.queue = b.queue[1:]
			b.mu.Unlock()
			return ev, true
		}
		b.mu.Unlock()

		select {
		case <-b.signal:
		case <-b.done:
		}
	}
}

// stop drops pending events and releases the consumer. Safe to call twice.
func (b *mailbox) stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopped {
		return
	}
	b.stopped = true
	b.queue = nil
	close(b.done)
}
