package player_test

import (
	"errors"
	"sync"
	"time"

	"github.com/haivivi/gizplay/pkg/pipeline"
)

type named string

func (n named) Name() string { return string(n) }

// fakePipeline plays a virtual stream: every position query while playing
// advances the clock by step, and EOS is posted once the clock reaches dur.
type fakePipeline struct {
	bus *pipeline.Bus

	mu        sync.Mutex
	startRet  pipeline.StateChangeReturn
	states    []pipeline.State
	playing   bool
	pos       time.Duration
	step      time.Duration
	dur       time.Duration
	durKnown  bool
	seekRange pipeline.SeekRange
	seekErr   error
	seeks     []seekCall
	durCalls  int
	eosSent   bool
	// onPoll runs after every position query with the new position.
	onPoll func(f *fakePipeline, pos time.Duration)
}

type seekCall struct {
	target time.Duration
	flags  pipeline.SeekFlags
}

func newFake(dur time.Duration) *fakePipeline {
	return &fakePipeline{
		bus:       pipeline.NewBus(),
		startRet:  pipeline.Success,
		step:      time.Second,
		dur:       dur,
		durKnown:  true,
		seekRange: pipeline.SeekRange{Seekable: true, End: dur},
	}
}

func (f *fakePipeline) Name() string       { return "fake-pipeline" }
func (f *fakePipeline) Bus() *pipeline.Bus { return f.bus }

func (f *fakePipeline) SetState(target pipeline.State) pipeline.StateChangeReturn {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, target)
	if target == pipeline.StatePlaying {
		if f.startRet == pipeline.Failure {
			return pipeline.Failure
		}
		f.playing = true
		f.bus.Post(pipeline.NewStateChangedEvent(f, pipeline.StatePaused, pipeline.StatePlaying, pipeline.StateNone))
		return f.startRet
	}
	f.playing = false
	return pipeline.Success
}

func (f *fakePipeline) QueryPosition() (time.Duration, bool) {
	f.mu.Lock()
	if !f.playing {
		f.mu.Unlock()
		return 0, false
	}
	f.pos = min(f.pos+f.step, f.dur)
	pos := f.pos
	if pos >= f.dur && !f.eosSent {
		f.eosSent = true
		f.bus.Post(pipeline.NewEOSEvent(f))
	}
	hook := f.onPoll
	f.mu.Unlock()
	if hook != nil {
		hook(f, pos)
	}
	return pos, true
}

func (f *fakePipeline) QueryDuration() (time.Duration, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durCalls++
	return f.dur, f.durKnown
}

func (f *fakePipeline) QuerySeeking() pipeline.SeekRange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.seekRange
}

func (f *fakePipeline) Seek(target time.Duration, flags pipeline.SeekFlags) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seeks = append(f.seeks, seekCall{target, flags})
	if f.seekErr != nil {
		return 0, f.seekErr
	}
	if !f.seekRange.Seekable {
		return 0, pipeline.ErrNotSeekable
	}
	f.pos = target
	return target, nil
}

func (f *fakePipeline) recorded() (states []pipeline.State, seeks []seekCall, durCalls int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pipeline.State(nil), f.states...), append([]seekCall(nil), f.seeks...), f.durCalls
}

func (f *fakePipeline) idleCount() int {
	states, _, _ := f.recorded()
	n := 0
	for _, s := range states {
		if s == pipeline.StateIdle {
			n++
		}
	}
	return n
}

var errSeekRejected = errors.New("seek rejected")
