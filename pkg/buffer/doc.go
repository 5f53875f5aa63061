// Package buffer provides a thread-safe growable FIFO used to hand data
// between goroutines.
//
// Buffer supports two access styles:
//
//   - Stream style: Write/Read implement io.Writer and io.Reader semantics
//     over elements of any type. This is how byte streams (for example raw
//     PCM frames arriving on a websocket) are decoupled from their reader.
//
//   - Queue style: Add/Next push and pop single elements, and Pop pops the
//     first element accepted by a predicate while honoring a timeout. This
//     is how the pipeline bus delivers events to a dispatch loop.
//
// All blocking operations are released by CloseWrite (readers drain what is
// left and then see io.EOF / ErrIteratorDone) or CloseWithError (readers see
// the error immediately).
//
// Example usage:
//
//	q := buffer.N[string](16)
//	q.Add("hello")
//
//	v, err := q.Pop(100*time.Millisecond, nil)
//	if errors.Is(err, buffer.ErrTimeout) {
//		// nothing arrived in time
//	}
package buffer
