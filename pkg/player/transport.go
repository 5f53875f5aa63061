package player

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/mo"

	"github.com/haivivi/gizplay/pkg/pipeline"
)

// Transport issues queries and seeks against the pipeline and keeps their
// results in the Session.
type Transport struct {
	pipe Pipeline
	log  *slog.Logger
}

func NewTransport(p Pipeline, log *slog.Logger) *Transport {
	if log == nil {
		log = slog.Default()
	}
	return &Transport{pipe: p, log: log}
}

// QuerySeekCapability asks whether the stream can seek, and over which
// range.
func (t *Transport) QuerySeekCapability() (supported bool, start, end time.Duration) {
	r := t.pipe.QuerySeeking()
	return r.Seekable, r.Start, r.End
}

// QueryPosition queries the playback position and records it in s when it
// is known.
func (t *Transport) QueryPosition(s *Session) (time.Duration, bool) {
	pos, ok := t.pipe.QueryPosition()
	if ok {
		s.Position = mo.Some(pos)
	}
	return pos, ok
}

// QueryDuration returns the cached duration, querying the pipeline only
// when nothing is cached.
func (t *Transport) QueryDuration(s *Session) (time.Duration, bool) {
	if d, ok := s.Duration.Get(); ok {
		return d, true
	}
	d, ok := t.pipe.QueryDuration()
	if ok {
		s.Duration = mo.Some(d)
	}
	return d, ok
}

// Seek jumps to target. It is refused while not playing and for streams
// that cannot seek.
func (t *Transport) Seek(s *Session, target time.Duration, flags pipeline.SeekFlags) (time.Duration, error) {
	if !s.Playing {
		return 0, ErrNotPlaying
	}
	if !s.SeekEnabled {
		return 0, ErrSeekDisabled
	}
	pos, err := t.pipe.Seek(target, flags)
	if err != nil {
		return 0, fmt.Errorf("player: seek to %s: %w", target, err)
	}
	t.log.Info("seek done", "target", target, "position", pos, "flags", flags)
	s.Position = mo.Some(pos)
	return pos, nil
}

// SeekOnce is Seek for the session's seek policy: it fails with
// ErrSeekDone after the first attempt, whether or not that one succeeded.
func (t *Transport) SeekOnce(s *Session, target time.Duration, flags pipeline.SeekFlags) (time.Duration, error) {
	if s.SeekDone {
		return 0, ErrSeekDone
	}
	pos, err := t.Seek(s, target, flags)
	if !errors.Is(err, ErrNotPlaying) && !errors.Is(err, ErrSeekDisabled) {
		s.SeekDone = true
	}
	return pos, err
}
