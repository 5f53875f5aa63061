package pipeline

import (
	"errors"
	"time"

	"github.com/haivivi/gizplay/pkg/buffer"
)

// Forever makes Bus.Pop wait without a deadline.
const Forever = buffer.Forever

// Bus is the queue of events posted by a graph and its elements. Post never
// blocks. Events are delivered in the order they were posted.
type Bus struct {
	q *buffer.Buffer[Event]
}

// NewBus returns an open, empty bus.
func NewBus() *Bus {
	return &Bus{q: buffer.N[Event](32)}
}

// Post queues ev. It fails with ErrBusClosed after Close.
func (b *Bus) Post(ev Event) error {
	if err := b.q.Add(ev); err != nil {
		return ErrBusClosed
	}
	return nil
}

// Pop returns the next event whose kind is in kinds, waiting at most
// timeout. Events of other kinds queued ahead of it are discarded. An empty
// set matches every kind. A negative timeout (Forever) waits until an event
// arrives or the bus is closed.
//
// On timeout Pop returns a nil event and a nil error. After Close it returns
// ErrBusClosed.
func (b *Bus) Pop(timeout time.Duration, kinds KindSet) (Event, error) {
	if kinds == 0 {
		kinds = AllKinds
	}
	ev, err := b.q.Pop(timeout, func(ev Event) bool {
		return kinds.Has(ev.Kind())
	})
	switch {
	case err == nil:
		return ev, nil
	case errors.Is(err, buffer.ErrTimeout):
		return nil, nil
	default:
		return nil, ErrBusClosed
	}
}

// Len returns the number of queued events.
func (b *Bus) Len() int {
	return b.q.Len()
}

// Flush drops every queued event.
func (b *Bus) Flush() {
	b.q.Reset()
}

// Close wakes every waiting Pop and rejects further posts.
func (b *Bus) Close() error {
	return b.q.CloseWithError(ErrBusClosed)
}
