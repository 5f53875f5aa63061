package player

import (
	"time"

	"github.com/samber/mo"

	"github.com/haivivi/gizplay/pkg/pipeline"
)

// Outcome is how a session ended.
type Outcome int

const (
	// OutcomeRunning means the session has not ended yet.
	OutcomeRunning Outcome = iota
	// OutcomeEOS means the stream played to its end.
	OutcomeEOS
	// OutcomeError means an element posted an Error event.
	OutcomeError
	// OutcomeCancelled means the caller stopped the session.
	OutcomeCancelled
	// OutcomeStartupFailed means the pipeline refused to start.
	OutcomeStartupFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRunning:
		return "running"
	case OutcomeEOS:
		return "eos"
	case OutcomeError:
		return "error"
	case OutcomeCancelled:
		return "cancelled"
	case OutcomeStartupFailed:
		return "startup-failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Session is the mutable state of one playback run. It belongs to the
// goroutine running the loop; nothing else may touch it.
type Session struct {
	// ID identifies the run in logs.
	ID string

	Playing   bool
	Terminate bool

	// SeekEnabled and the range are answered by the seeking query made on
	// every transition into Playing.
	SeekEnabled bool
	SeekStart   time.Duration
	SeekEnd     time.Duration
	// SeekDone is set once the seek policy has fired.
	SeekDone bool

	// Duration is the cached duration; None means query again.
	Duration mo.Option[time.Duration]
	// Position is the last position successfully queried.
	Position mo.Option[time.Duration]

	Outcome Outcome
	// Err and ErrSource describe the Error event that ended the session.
	Err       *pipeline.Error
	ErrSource string
}

// NewSession returns the initial state of a run.
func NewSession(id string) *Session {
	return &Session{
		ID:       id,
		Duration: mo.None[time.Duration](),
		Position: mo.None[time.Duration](),
	}
}

// end marks the session terminated with o, keeping the first outcome.
func (s *Session) end(o Outcome) {
	s.Terminate = true
	if s.Outcome == OutcomeRunning {
		s.Outcome = o
	}
}
