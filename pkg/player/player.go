// Package player drives a pipeline through one playback session: it starts
// the pipeline, reacts to bus events, polls position and duration while
// playing, applies a seek policy, and tears the pipeline down exactly once.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/haivivi/gizplay/pkg/history"
	"github.com/haivivi/gizplay/pkg/pipeline"
)

var (
	// ErrStartup is returned when the pipeline cannot be set to Playing.
	ErrStartup = errors.New("player: unable to set the pipeline to the playing state")
	// ErrPlayback is returned when an Error event ended the session.
	ErrPlayback = errors.New("player: playback error")
	// ErrSeekDisabled is returned for seeks on streams that cannot seek.
	ErrSeekDisabled = errors.New("player: seeking is disabled")
	// ErrSeekDone is returned by Transport.SeekOnce after the first seek.
	ErrSeekDone = errors.New("player: seek already done")
	// ErrNotPlaying is returned for seeks made outside the Playing state.
	ErrNotPlaying = errors.New("player: not playing")
	// ErrFinished is returned by Player.Seek once Run has returned.
	ErrFinished = errors.New("player: session finished")
)

// DefaultPollInterval bounds how long the loop waits for an event before
// polling the position.
const DefaultPollInterval = 100 * time.Millisecond

// EventMask is the set of events the loop waits for.
var EventMask = pipeline.Kinds(
	pipeline.KindStateChanged,
	pipeline.KindError,
	pipeline.KindEOS,
	pipeline.KindDurationChanged,
)

// Pipeline is what the player needs from a graph. *pipeline.Graph
// implements it.
type Pipeline interface {
	Name() string
	Bus() *pipeline.Bus
	SetState(target pipeline.State) pipeline.StateChangeReturn
	QueryPosition() (time.Duration, bool)
	QueryDuration() (time.Duration, bool)
	QuerySeeking() pipeline.SeekRange
	Seek(target time.Duration, flags pipeline.SeekFlags) (time.Duration, error)
}

var _ Pipeline = (*pipeline.Graph)(nil)

// Options configures a Player.
type Options struct {
	// PollInterval defaults to DefaultPollInterval.
	PollInterval time.Duration
	// Policy decides on automatic seeks. Nil disables them.
	Policy SeekPolicy
	// Status, if set, is redrawn after every poll.
	Status *StatusLine
	// History, if set, receives the last position when the session ends.
	// URI is the key it is saved under.
	History history.Store
	URI     string
	Logger  *slog.Logger
}

// Result summarizes a finished session.
type Result struct {
	SessionID string        `json:"session" yaml:"session"`
	Outcome   Outcome       `json:"outcome" yaml:"outcome"`
	Position  time.Duration `json:"position" yaml:"position"`
	Duration  time.Duration `json:"duration,omitempty" yaml:"duration,omitempty"`
}

type seekCall struct {
	target time.Duration
	flags  pipeline.SeekFlags
	reply  chan seekReply
}

type seekReply struct {
	pos time.Duration
	err error
}

// Player runs one session over a pipeline. A Player is single use.
type Player struct {
	pipe      Pipeline
	opts      Options
	log       *slog.Logger
	session   *Session
	transport *Transport
	dispatch  *Dispatcher

	seeks chan seekCall
	done  chan struct{}
}

// New returns a Player for p.
func New(p Pipeline, opts Options) *Player {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	id := uuid.NewString()
	log := opts.Logger.With("session", id, "pipeline", p.Name())
	t := NewTransport(p, log)
	return &Player{
		pipe:      p,
		opts:      opts,
		log:       log,
		session:   NewSession(id),
		transport: t,
		dispatch:  NewDispatcher(p, t, log),
		seeks:     make(chan seekCall),
		done:      make(chan struct{}),
	}
}

// SessionID returns the id attached to the session's log records.
func (p *Player) SessionID() string { return p.session.ID }

// Done is closed when Run has returned.
func (p *Player) Done() <-chan struct{} { return p.done }

// Seek asks the running loop to seek to target. It blocks until the loop
// has made the seek, ctx is done, or the session ends.
func (p *Player) Seek(ctx context.Context, target time.Duration, flags pipeline.SeekFlags) (time.Duration, error) {
	call := seekCall{target: target, flags: flags, reply: make(chan seekReply, 1)}
	select {
	case p.seeks <- call:
	case <-p.done:
		return 0, ErrFinished
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case r := <-call.reply:
		return r.pos, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Run plays the pipeline until end of stream, an error, or ctx is done.
// The pipeline is set back to Idle before Run returns, whatever the
// outcome.
func (p *Player) Run(ctx context.Context) (res Result, err error) {
	s := p.session
	defer func() {
		res = p.teardown()
		close(p.done)
	}()

	p.log.Info("starting playback")
	if p.pipe.SetState(pipeline.StatePlaying) == pipeline.Failure {
		s.end(OutcomeStartupFailed)
		return Result{}, ErrStartup
	}

	bus := p.pipe.Bus()
	for !s.Terminate {
		if ctx.Err() != nil {
			p.log.Info("playback interrupted")
			s.end(OutcomeCancelled)
			break
		}
		ev, err := bus.Pop(p.opts.PollInterval, EventMask)
		if err != nil {
			// The bus only fails once closed; nothing more will arrive.
			s.end(OutcomeError)
			s.Err = pipeline.NewError("bus closed", "", err)
			s.ErrSource = p.pipe.Name()
			break
		}
		if ev != nil {
			p.dispatch.Handle(s, ev)
		} else if s.Playing {
			p.poll(s)
		}
		p.serveSeeks(s)
	}

	if s.Outcome == OutcomeError {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrPlayback, s.ErrSource, s.Err)
	}
	return Result{}, nil
}

func (p *Player) poll(s *Session) {
	pos, ok := p.transport.QueryPosition(s)
	if !ok {
		p.log.Debug("could not query current position")
	}
	dur, dok := p.transport.QueryDuration(s)
	if !dok {
		p.log.Debug("could not query current duration")
	}
	if p.opts.Status != nil {
		p.opts.Status.Render(pos, ok, dur, dok)
	}
	if p.opts.Policy == nil || !ok {
		return
	}
	req, fire := p.opts.Policy.Decide(s)
	if !fire {
		return
	}
	p.breakStatus()
	p.log.Info("reached seek point, performing seek", "position", pos, "target", req.Target)
	if _, err := p.transport.SeekOnce(s, req.Target, req.Flags); err != nil {
		p.log.Warn("seek failed", "target", req.Target, "error", err)
	}
}

func (p *Player) serveSeeks(s *Session) {
	select {
	case call := <-p.seeks:
		pos, err := p.transport.Seek(s, call.target, call.flags)
		call.reply <- seekReply{pos: pos, err: err}
	default:
	}
}

func (p *Player) breakStatus() {
	if p.opts.Status != nil {
		p.opts.Status.Break()
	}
}

// teardown sets the pipeline to Idle and saves the history entry.
func (p *Player) teardown() Result {
	s := p.session
	p.breakStatus()
	if s.Outcome == OutcomeEOS {
		// The stream may end before the first poll.
		p.transport.QueryDuration(s)
	}
	p.pipe.SetState(pipeline.StateIdle)

	res := Result{SessionID: s.ID, Outcome: s.Outcome}
	res.Position, _ = s.Position.Get()
	res.Duration, _ = s.Duration.Get()
	if s.Outcome == OutcomeEOS && res.Duration > 0 {
		res.Position = res.Duration
	}
	p.log.Info("playback finished", "outcome", s.Outcome, "position", res.Position)

	if p.opts.History == nil || p.opts.URI == "" || s.Outcome == OutcomeStartupFailed {
		return res
	}
	e := history.Entry{URI: p.opts.URI, Position: res.Position, Duration: res.Duration}
	if err := p.opts.History.Put(context.Background(), e); err != nil {
		p.log.Warn("saving history failed", "uri", p.opts.URI, "error", err)
	}
	return res
}
