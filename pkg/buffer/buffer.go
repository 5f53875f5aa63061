package buffer

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	// ErrIteratorDone is returned by Next and Pop when the buffer has been
	// closed for writing and every element has been consumed.
	ErrIteratorDone = errors.New("iterator done")

	// ErrTimeout is returned by Pop when no acceptable element arrived
	// before the timeout expired.
	ErrTimeout = errors.New("buffer: timeout")
)

// Forever makes Pop wait without a deadline.
const Forever time.Duration = -1

// Buffer is a thread-safe growable FIFO of T.
//
// Writers never block. Readers block until data is available, the buffer is
// closed, or (for Pop) a timeout expires. Waiting readers are woken through a
// single-slot notification channel, so a write wakes at most one reader;
// Buffer is meant for a single consumer.
type Buffer[T any] struct {
	writeNotify chan struct{}

	mu         sync.Mutex
	closeWrite bool
	closeErr   error
	buf        []T
}

// N creates a Buffer with an initial capacity of n elements. The buffer
// grows past n as needed.
func N[T any](n int) *Buffer[T] {
	return &Buffer[T]{
		writeNotify: make(chan struct{}, 1),
		buf:         make([]T, 0, n),
	}
}

// notifyLocked wakes a waiting reader, if any. Must hold b.mu.
func (b *Buffer[T]) notifyLocked() {
	select {
	case b.writeNotify <- struct{}{}:
	default:
	}
}

// Write appends p to the buffer. It returns io.ErrClosedPipe (wrapped) after
// CloseWrite and the close error after CloseWithError.
func (b *Buffer[T]) Write(p []T) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writableLocked(); err != nil {
		return 0, err
	}
	b.buf = append(b.buf, p...)
	b.notifyLocked()
	return len(p), nil
}

// Add appends a single element.
func (b *Buffer[T]) Add(t T) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.writableLocked(); err != nil {
		return err
	}
	b.buf = append(b.buf, t)
	b.notifyLocked()
	return nil
}

func (b *Buffer[T]) writableLocked() error {
	if b.closeErr != nil {
		return fmt.Errorf("buffer: write to closed buffer: %w", b.closeErr)
	}
	if b.closeWrite {
		return fmt.Errorf("buffer: write to closed buffer: %w", io.ErrClosedPipe)
	}
	return nil
}

// Read copies up to len(p) elements into p, blocking until at least one
// element is available. It returns io.EOF once the buffer is closed for
// writing and drained.
func (b *Buffer[T]) Read(p []T) (n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for len(b.buf) == 0 {
		if b.closeErr != nil {
			return 0, fmt.Errorf("buffer: read from closed buffer: %w", b.closeErr)
		}
		if b.closeWrite {
			return 0, io.EOF
		}
		b.mu.Unlock()
		<-b.writeNotify
		b.mu.Lock()
	}
	if b.closeErr != nil {
		return 0, fmt.Errorf("buffer: read from closed buffer: %w", b.closeErr)
	}
	n = copy(p, b.buf)
	b.buf = b.buf[n:]
	return n, nil
}

// Next removes and returns the oldest element, blocking until one is
// available. It returns ErrIteratorDone once the buffer is closed for
// writing and drained.
func (b *Buffer[T]) Next() (t T, err error) {
	return b.Pop(Forever, nil)
}

// Pop removes and returns the oldest element accepted by match, waiting at
// most timeout for one to arrive. A nil match accepts everything. A negative
// timeout waits forever.
//
// Elements rejected by match are dropped as Pop passes over them, so a
// filtered Pop consumes everything queued ahead of the element it returns.
//
// Pop returns ErrTimeout when the timeout expires, ErrIteratorDone when the
// buffer is closed for writing and drained, and the close error (wrapped)
// after CloseWithError.
func (b *Buffer[T]) Pop(timeout time.Duration, match func(T) bool) (t T, err error) {
	var expired <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	timedOut := false
	for {
		if b.closeErr != nil {
			return t, fmt.Errorf("buffer: read from closed buffer: %w", b.closeErr)
		}
		for len(b.buf) > 0 {
			head := b.buf[0]
			var zero T
			b.buf[0] = zero
			b.buf = b.buf[1:]
			if match == nil || match(head) {
				return head, nil
			}
		}
		if b.closeWrite {
			return t, ErrIteratorDone
		}
		// One last scan after expiry picks up a write that raced the timer.
		if timedOut {
			return t, ErrTimeout
		}

		b.mu.Unlock()
		select {
		case <-b.writeNotify:
		case <-expired:
			timedOut = true
		}
		b.mu.Lock()
	}
}

// Discard drops the next n elements. Dropping more than are queued empties
// the buffer.
func (b *Buffer[T]) Discard(n int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return fmt.Errorf("buffer: skip from closed buffer: %w", b.closeErr)
	}
	if n > len(b.buf) {
		n = len(b.buf)
	}
	b.buf = b.buf[n:]
	return nil
}

// Reset drops everything queued. It does not reopen a closed buffer.
func (b *Buffer[T]) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = b.buf[:0]
}

// Len returns the number of queued elements.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buf)
}

// CloseWrite stops further writes. Readers drain what is queued and then see
// io.EOF (Read) or ErrIteratorDone (Next, Pop).
func (b *Buffer[T]) CloseWrite() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeWrite {
		return nil
	}
	b.closeWrite = true
	close(b.writeNotify)
	return nil
}

// CloseWithError closes both ends. Queued data is dropped and every pending
// or later operation returns err. A nil err means io.ErrClosedPipe.
func (b *Buffer[T]) CloseWithError(err error) error {
	if err == nil {
		err = io.ErrClosedPipe
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closeErr != nil {
		return nil
	}
	b.closeErr = err
	b.buf = nil
	if !b.closeWrite {
		b.closeWrite = true
		close(b.writeNotify)
	}
	return nil
}

// Close is CloseWithError(io.ErrClosedPipe).
func (b *Buffer[T]) Close() error {
	return b.CloseWithError(io.ErrClosedPipe)
}

// Error returns the error the buffer was closed with, if any.
func (b *Buffer[T]) Error() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeErr
}
