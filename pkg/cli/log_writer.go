package cli

import (
	"io"
	"sync"
)

// LogWriter forwards log output to w, calling Before ahead of every write.
// The player's status line uses Before to end the line it redraws, so log
// records never land in the middle of it.
type LogWriter struct {
	mu     sync.Mutex
	w      io.Writer
	before func()
}

// NewLogWriter returns a LogWriter for w. before may be nil.
func NewLogWriter(w io.Writer, before func()) *LogWriter {
	return &LogWriter{w: w, before: before}
}

// SetBefore replaces the hook.
func (w *LogWriter) SetBefore(before func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.before = before
}

// Write implements io.Writer.
func (w *LogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.before != nil {
		w.before()
	}
	return w.w.Write(p)
}
