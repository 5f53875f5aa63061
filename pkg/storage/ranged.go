package storage

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// fetchFunc opens the object body starting at byte off.
type fetchFunc func(ctx context.Context, off int64) (io.ReadCloser, error)

// rangeObject is an Object over a remote resource that supports ranged
// reads. The body is fetched on the first Read after Open or Seek. Close
// cancels the fetch context first, so it wakes a Read blocked on the body.
type rangeObject struct {
	ctx    context.Context
	cancel context.CancelFunc
	fetch  fetchFunc
	size   int64

	mu     sync.Mutex
	off    int64
	body   io.ReadCloser
	closed bool
}

func newRangeObject(ctx context.Context, size int64, fetch fetchFunc) *rangeObject {
	ctx, cancel := context.WithCancel(ctx)
	return &rangeObject{ctx: ctx, cancel: cancel, fetch: fetch, size: size}
}

func (o *rangeObject) Size() int64 { return o.size }

func (o *rangeObject) Read(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return 0, io.ErrClosedPipe
	}
	if o.size >= 0 && o.off >= o.size {
		return 0, io.EOF
	}
	if o.body == nil {
		body, err := o.fetch(o.ctx, o.off)
		if err != nil {
			return 0, err
		}
		o.body = body
	}
	n, err := o.body.Read(p)
	o.off += int64(n)
	return n, err
}

func (o *rangeObject) Seek(offset int64, whence int) (int64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = o.off + offset
	case io.SeekEnd:
		if o.size < 0 {
			return 0, ErrNotSeekable
		}
		abs = o.size + offset
	default:
		return 0, fmt.Errorf("storage: invalid whence %d", whence)
	}
	if abs < 0 {
		return 0, fmt.Errorf("storage: negative position %d", abs)
	}
	if abs != o.off && o.body != nil {
		o.body.Close()
		o.body = nil
	}
	o.off = abs
	return abs, nil
}

func (o *rangeObject) Close() error {
	o.cancel()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	if o.body == nil {
		return nil
	}
	err := o.body.Close()
	o.body = nil
	return err
}

var _ Object = (*rangeObject)(nil)
