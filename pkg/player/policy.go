package player

import (
	"time"

	"github.com/haivivi/gizplay/pkg/pipeline"
)

// SeekRequest is a seek to perform.
type SeekRequest struct {
	Target time.Duration
	Flags  pipeline.SeekFlags
}

// SeekPolicy decides on automatic seeks. Decide is called on every poll
// while playing; the returned seek is made through Transport.SeekOnce, so a
// policy fires at most once per session.
type SeekPolicy interface {
	Decide(s *Session) (SeekRequest, bool)
}

// DefaultSeekFlags flush queued data and snap to the nearest key unit.
const DefaultSeekFlags = pipeline.SeekFlush | pipeline.SeekKeyUnit

// SeekOnce jumps to To once the position first exceeds After.
type SeekOnce struct {
	After time.Duration
	To    time.Duration
	// Flags default to DefaultSeekFlags.
	Flags pipeline.SeekFlags
}

func (p SeekOnce) Decide(s *Session) (SeekRequest, bool) {
	if !s.SeekEnabled || s.SeekDone {
		return SeekRequest{}, false
	}
	pos, ok := s.Position.Get()
	if !ok || pos <= p.After {
		return SeekRequest{}, false
	}
	return SeekRequest{Target: p.To, Flags: flagsOr(p.Flags, DefaultSeekFlags)}, true
}

// ResumeAt jumps to Position as soon as the stream is seekable.
type ResumeAt struct {
	Position time.Duration
}

func (p ResumeAt) Decide(s *Session) (SeekRequest, bool) {
	if !s.SeekEnabled || s.SeekDone || p.Position <= 0 {
		return SeekRequest{}, false
	}
	return SeekRequest{Target: p.Position, Flags: pipeline.SeekFlush | pipeline.SeekAccurate}, true
}

func flagsOr(f, def pipeline.SeekFlags) pipeline.SeekFlags {
	if f == 0 {
		return def
	}
	return f
}
