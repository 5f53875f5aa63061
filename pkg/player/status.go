package player

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/haivivi/gizplay/pkg/cli"
)

// StatusLine redraws "Position <pos> / <duration>" in place with a
// carriage return.
type StatusLine struct {
	mu     sync.Mutex
	w      io.Writer
	styles cli.Styles
	dirty  bool
}

// NewStatusLine returns a StatusLine writing to w with the default styles.
func NewStatusLine(w io.Writer) *StatusLine {
	return &StatusLine{w: w, styles: cli.NewStyles(cli.DefaultTheme)}
}

// Render redraws the line. Unknown values are drawn as dashes.
func (l *StatusLine) Render(pos time.Duration, posOK bool, dur time.Duration, durOK bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "\r%s %s / %s",
		l.styles.Label.Render("Position"),
		cli.FormatClockTime(pos, posOK),
		l.styles.Help.Render(cli.FormatClockTime(dur, durOK)),
	)
	l.dirty = true
}

// Break ends the line being redrawn so that other output starts on a fresh
// line. It does nothing if nothing was drawn since the last break.
func (l *StatusLine) Break() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.dirty {
		io.WriteString(l.w, "\n")
		l.dirty = false
	}
}

