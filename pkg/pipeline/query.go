package pipeline

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
)

// SeekFlags modify a seek request.
type SeekFlags uint

const (
	// SeekFlush discards data queued downstream so playback jumps at once.
	SeekFlush SeekFlags = 1 << iota
	// SeekKeyUnit snaps the target to the nearest position the source can
	// start decoding from.
	SeekKeyUnit
	// SeekAccurate asks for the exact target even if that is slower.
	SeekAccurate
)

func (f SeekFlags) Has(o SeekFlags) bool { return f&o == o }

func (f SeekFlags) String() string {
	var names []string
	if f.Has(SeekFlush) {
		names = append(names, "flush")
	}
	if f.Has(SeekKeyUnit) {
		names = append(names, "key-unit")
	}
	if f.Has(SeekAccurate) {
		names = append(names, "accurate")
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// SeekRange answers a seeking query.
type SeekRange struct {
	Seekable   bool
	Start, End time.Duration
}

// PositionQuerier is implemented by elements that know the playback
// position, usually sinks.
type PositionQuerier interface {
	QueryPosition() (time.Duration, bool)
}

// DurationQuerier is implemented by elements that know the stream length,
// usually sources.
type DurationQuerier interface {
	QueryDuration() (time.Duration, bool)
}

// SeekingQuerier is implemented by elements that can tell whether the
// stream supports seeking.
type SeekingQuerier interface {
	QuerySeeking() SeekRange
}

// Seeker is implemented by elements that can reposition their stream. Seek
// returns the position actually reached, which differs from target when
// the element snaps to a seekable unit.
type Seeker interface {
	Seek(target time.Duration, flags SeekFlags) (time.Duration, error)
}

// Flusher is implemented by elements holding data or position state that a
// seek invalidates. FlushStart is called on every flusher, sinks first,
// before the sources seek; it must stop the element from pulling more data.
// FlushStop is called afterwards, sources first, with the new position.
type Flusher interface {
	FlushStart()
	FlushStop(position time.Duration)
}

// QueryPosition asks the elements, sinks first, for the playback position.
func (g *Graph) QueryPosition() (time.Duration, bool) {
	for _, el := range g.sinksFirst() {
		if q, ok := el.(PositionQuerier); ok {
			if pos, ok := q.QueryPosition(); ok {
				return pos, true
			}
		}
	}
	return 0, false
}

// QueryDuration asks the elements, sources first, for the stream duration.
func (g *Graph) QueryDuration() (time.Duration, bool) {
	for _, el := range g.sourcesFirst() {
		if q, ok := el.(DurationQuerier); ok {
			if d, ok := q.QueryDuration(); ok {
				return d, true
			}
		}
	}
	return 0, false
}

// QuerySeeking asks the elements, sources first, whether the stream can be
// seeked. The first element able to answer decides.
func (g *Graph) QuerySeeking() SeekRange {
	for _, el := range g.sourcesFirst() {
		if q, ok := el.(SeekingQuerier); ok {
			return q.QuerySeeking()
		}
	}
	return SeekRange{}
}

// Seek repositions every Seeker in the graph. Flushers are stopped around
// the jump so no data from before it reaches the sinks afterwards. The graph
// must be at least Paused.
func (g *Graph) Seek(target time.Duration, flags SeekFlags) (time.Duration, error) {
	if st := g.State(); st < StatePaused {
		return 0, fmt.Errorf("%w: graph is %s", ErrNotSeekable, st)
	}
	if target < 0 {
		target = 0
	}
	order := g.sourcesFirst()
	var seekers []Seeker
	var flushers []Flusher
	for _, el := range order {
		if s, ok := el.(Seeker); ok {
			seekers = append(seekers, s)
		}
		if f, ok := el.(Flusher); ok {
			flushers = append(flushers, f)
		}
	}
	if len(seekers) == 0 {
		return 0, fmt.Errorf("%w: no element can seek", ErrNotSeekable)
	}

	g.log.Debug("seek", "target", target, "flags", flags)
	for _, f := range slices.Backward(flushers) {
		f.FlushStart()
	}
	reached := time.Duration(-1)
	var errs []error
	for _, s := range seekers {
		pos, err := s.Seek(target, flags)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if reached < 0 {
			reached = pos
		}
	}
	if reached < 0 {
		reached = target
	}
	g.resetEOS()
	for _, f := range flushers {
		f.FlushStop(reached)
	}
	return reached, errors.Join(errs...)
}
