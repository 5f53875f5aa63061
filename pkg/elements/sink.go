package elements

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/haivivi/gizplay/pkg/audio/pcm"
	"github.com/haivivi/gizplay/pkg/pipeline"
)

// chunkDuration is how much audio a sink renders per iteration.
const chunkDuration = 20 * time.Millisecond

// output is where a sink renders audio.
type output interface {
	Open(ctx context.Context, f pcm.Format) error
	io.Writer
	Close() error
}

// audioSink is the rendering engine shared by the sinks. It pulls audio from
// its sink port on its own goroutine, prerolls asynchronously, paces output
// against a clock when the sync property is set, and reports the position.
type audioSink struct {
	pipeline.Base
	out output

	// streamMu is held while reading from upstream, so that FlushStart can
	// wait for an in-flight read.
	streamMu sync.Mutex

	mu         sync.Mutex
	format     pcm.Format
	hasFormat  bool
	playing    bool
	flushing   bool
	segment    time.Duration // position of the first byte after the last flush
	segments   int           // flushes so far
	rendered   int64         // bytes rendered since segment
	clockBase  time.Duration
	clockStart time.Time
	wake       chan struct{}
	cancel     context.CancelFunc
	done       chan struct{}
}

func (s *audioSink) init(self pipeline.Element, kind, name string, out output, sync bool) {
	s.Init(self, kind, name)
	s.out = out
	s.wake = make(chan struct{})
	s.DeclareProperty("sync", sync, "render in real time against the clock")
	s.NewSinkPort("sink", pipeline.NewCaps(pipeline.MediaAudioRaw))
}

func (s *audioSink) ChangeState(t pipeline.Transition) pipeline.StateChangeReturn {
	switch t {
	case pipeline.ReadyToPaused:
		ctx, cancel := context.WithCancel(context.Background())
		s.mu.Lock()
		s.cancel = cancel
		s.done = make(chan struct{})
		done := s.done
		s.mu.Unlock()
		go func() {
			defer close(done)
			s.run(ctx)
		}()
		return pipeline.Async
	case pipeline.PausedToPlaying:
		s.mu.Lock()
		s.playing = true
		s.clockStart = time.Now()
		s.notifyLocked()
		s.mu.Unlock()
	case pipeline.PlayingToPaused:
		s.mu.Lock()
		s.clockBase = s.positionLocked()
		s.playing = false
		s.notifyLocked()
		s.mu.Unlock()
	case pipeline.PausedToReady:
		s.stop()
		if err := s.out.Close(); err != nil {
			s.Logger().Warn("closing output failed", "error", err)
		}
		s.mu.Lock()
		s.hasFormat = false
		s.segment, s.rendered, s.clockBase = 0, 0, 0
		s.flushing = false
		s.mu.Unlock()
	}
	return pipeline.Success
}

func (s *audioSink) stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.notifyLocked()
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

// run pulls from upstream until an error or ctx is done.
func (s *audioSink) run(ctx context.Context) {
	log := s.Logger()
	sink := s.Port("sink")
	r, err := sink.Pull(ctx)
	if err != nil {
		s.fail(ctx, true, "could not pull from upstream", err)
		return
	}
	caps, _ := sink.CurrentCaps()
	f, err := caps.AudioFormat()
	if err != nil {
		s.fail(ctx, true, "unsupported caps", err)
		return
	}
	if err := s.out.Open(ctx, f); err != nil {
		s.fail(ctx, true, "could not open output", err)
		return
	}
	s.mu.Lock()
	s.format, s.hasFormat = f, true
	s.mu.Unlock()
	log.Debug("sink started", "caps", caps.String())

	buf := make([]byte, max(f.BytesInDuration(chunkDuration), int64(f.FrameBytes())))
	prerolled := false
	for {
		n, err := s.read(r, buf)
		if errors.Is(err, errFlushing) {
			continue
		}
		first := !prerolled
		if first && (err == nil || errors.Is(err, io.EOF)) {
			// The first chunk, or the end of an empty stream, completes
			// the step to Paused.
			prerolled = true
			s.CommitState()
		}
		if n > 0 {
			if !s.waitRender(ctx) {
				if ctx.Err() != nil {
					return
				}
				continue
			}
			if _, werr := s.out.Write(buf[:n]); werr != nil {
				s.fail(ctx, false, "could not write output", werr)
				return
			}
			s.mu.Lock()
			if !s.flushing {
				s.rendered += int64(n)
			}
			s.mu.Unlock()
		}
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			if !s.waitEOS(ctx) {
				return
			}
			log.Debug("restarting after flush")
		default:
			s.fail(ctx, first, "internal data stream error", err)
			return
		}
	}
}

var errFlushing = errors.New("flushing")

// read reads one chunk unless a flush is in progress.
func (s *audioSink) read(r io.Reader, buf []byte) (int, error) {
	s.streamMu.Lock()
	defer s.streamMu.Unlock()
	if s.waitFlushDone() {
		return 0, errFlushing
	}
	return r.Read(buf)
}

// waitFlushDone blocks while a flush is in progress and reports whether
// there was one.
func (s *audioSink) waitFlushDone() bool {
	waited := false
	for {
		s.mu.Lock()
		flushing, wake := s.flushing, s.wake
		s.mu.Unlock()
		if !flushing {
			return waited
		}
		waited = true
		<-wake
	}
}

// waitRender blocks until more audio may be rendered: the sink is playing
// and, with sync set, the clock has caught up with the rendered position.
// It returns false when ctx is done or a flush started.
func (s *audioSink) waitRender(ctx context.Context) bool {
	sync := s.PropBool("sync")
	for {
		s.mu.Lock()
		flushing, playing, wake := s.flushing, s.playing, s.wake
		var ahead time.Duration
		if sync && playing {
			ahead = s.renderedLocked() - s.clockLocked()
		}
		s.mu.Unlock()

		if flushing {
			return false
		}
		if playing && ahead <= 0 {
			return true
		}
		var timer *time.Timer
		var expired <-chan time.Time
		if playing {
			timer = time.NewTimer(ahead)
			expired = timer.C
		}
		select {
		case <-ctx.Done():
		case <-wake:
		case <-expired:
		}
		if timer != nil {
			timer.Stop()
		}
		if ctx.Err() != nil {
			return false
		}
	}
}

// waitEOS posts EOS once the clock has played out the rendered audio, then
// waits for a flush to restart the stream. It returns false when ctx is
// done.
func (s *audioSink) waitEOS(ctx context.Context) bool {
	s.mu.Lock()
	seg := s.segments
	s.mu.Unlock()
	if s.waitRender(ctx) {
		s.Logger().Debug("end of stream")
		s.PostEOS()
	}
	for {
		s.mu.Lock()
		restarted, wake := s.segments != seg, s.wake
		s.mu.Unlock()
		if restarted {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-wake:
		}
	}
}

func (s *audioSink) fail(ctx context.Context, preroll bool, msg string, err error) {
	if ctx.Err() != nil {
		return
	}
	e := pipeline.NewError(msg, "element="+s.Name(), err)
	if preroll && s.Pending() != pipeline.StateNone {
		s.AbortState(e)
		return
	}
	s.Post(pipeline.NewErrorEvent(s, e))
}

// renderedLocked returns the position of the audio written so far.
func (s *audioSink) renderedLocked() time.Duration {
	return s.segment + s.format.Duration(s.rendered)
}

// clockLocked returns the running position of the sink clock.
func (s *audioSink) clockLocked() time.Duration {
	if !s.playing {
		return s.clockBase
	}
	return s.clockBase + time.Since(s.clockStart)
}

// positionLocked is what the listener hears: the rendered position, held
// back to the clock in sync mode.
func (s *audioSink) positionLocked() time.Duration {
	pos := s.renderedLocked()
	if s.PropBool("sync") {
		pos = min(pos, s.clockLocked())
	}
	return pos
}

func (s *audioSink) notifyLocked() {
	close(s.wake)
	s.wake = make(chan struct{})
}

// QueryPosition implements pipeline.PositionQuerier.
func (s *audioSink) QueryPosition() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasFormat {
		return 0, false
	}
	return s.positionLocked(), true
}

// FlushStart stops rendering and waits for an in-flight read to finish.
func (s *audioSink) FlushStart() {
	s.mu.Lock()
	s.flushing = true
	s.notifyLocked()
	s.mu.Unlock()
	s.streamMu.Lock()
	s.streamMu.Unlock()
}

// FlushStop restarts rendering at pos.
func (s *audioSink) FlushStop(pos time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushing = false
	s.segment, s.rendered = pos, 0
	s.segments++
	s.clockBase, s.clockStart = pos, time.Now()
	s.notifyLocked()
}

var (
	_ pipeline.PositionQuerier = (*audioSink)(nil)
	_ pipeline.Flusher         = (*audioSink)(nil)
)

// discard is an output that drops everything.
type discard struct{}

func (discard) Open(context.Context, pcm.Format) error { return nil }
func (discard) Write(p []byte) (int, error)            { return len(p), nil }
func (discard) Close() error                           { return nil }

// FakeSink consumes audio without output. With sync (the default) it
// consumes in real time, which makes it a stand-in for an audio device.
type FakeSink struct {
	audioSink
}

func NewFakeSink(name string) *FakeSink {
	s := &FakeSink{}
	s.init(s, KindFakeSink, name, discard{}, true)
	return s
}
