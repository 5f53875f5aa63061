package elements

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/haivivi/gizplay/pkg/audio/pcm"
	"github.com/haivivi/gizplay/pkg/audio/resampler"
	"github.com/haivivi/gizplay/pkg/pipeline"
)

// audioFilter converts raw audio between formats. The param property (rate
// or channels) fixes one field of the output format; 0 passes the input
// value through.
type audioFilter struct {
	pipeline.Base
	param string

	mu     sync.Mutex
	in     pcm.Format
	out    pcm.Format
	hasFmt bool
	rs     *resampler.Resampler
}

func (f *audioFilter) init(self pipeline.Element, kind, name, param, doc string) {
	f.Init(self, kind, name)
	f.param = param
	f.DeclareProperty(param, 0, doc)
	f.NewSinkPort("sink", pipeline.NewCaps(pipeline.MediaAudioRaw))
	f.NewSrcPort("src", pipeline.NewCaps(pipeline.MediaAudioRaw))
}

// outputFormat derives the output format from in.
func (f *audioFilter) outputFormat(in pcm.Format) pcm.Format {
	out := in
	if v := f.PropInt(f.param); v > 0 {
		switch f.param {
		case "rate":
			out.SampleRate = v
		case "channels":
			out.Channels = v
		}
	}
	return out
}

// CapsChanged derives the src caps from the caps arriving on the sink port.
func (f *audioFilter) CapsChanged(_ *pipeline.Port, c pipeline.Caps) {
	in, err := c.AudioFormat()
	if err != nil {
		f.PostError("unsupported input caps", "caps="+c.String(), err)
		return
	}
	out := f.outputFormat(in)
	f.mu.Lock()
	f.in, f.out, f.hasFmt = in, out, true
	f.mu.Unlock()
	f.Logger().Debug("caps negotiated", "in", in, "out", out)
	f.Port("src").SetCaps(pipeline.AudioCaps(out))
}

// Produce returns the converted upstream audio.
func (f *audioFilter) Produce(ctx context.Context, _ *pipeline.Port) (io.Reader, error) {
	r, err := f.Port("sink").Pull(ctx)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.hasFmt {
		return nil, fmt.Errorf("%w: %s has no input caps", pipeline.ErrNotLinked, f.Name())
	}
	if f.in == f.out {
		return r, nil
	}
	rs, err := resampler.New(r, f.in, f.out)
	if err != nil {
		return nil, err
	}
	f.rs = rs
	return rs, nil
}

func (f *audioFilter) ChangeState(t pipeline.Transition) pipeline.StateChangeReturn {
	if t == pipeline.PausedToReady {
		f.mu.Lock()
		if f.rs != nil {
			f.rs.Close()
			f.rs = nil
		}
		f.mu.Unlock()
	}
	return pipeline.Success
}

// FlushStart implements pipeline.Flusher. Nothing is in flight once the
// sink has stopped pulling.
func (f *audioFilter) FlushStart() {}

// FlushStop drops converter state carried over from before the seek.
func (f *audioFilter) FlushStop(time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rs != nil {
		if err := f.rs.Reset(); err != nil {
			f.Logger().Warn("resampler reset failed", "error", err)
		}
	}
}

// AudioConvert converts the channel count (mono and stereo).
type AudioConvert struct {
	audioFilter
}

func NewAudioConvert(name string) *AudioConvert {
	c := &AudioConvert{}
	c.init(c, KindAudioConvert, name, "channels", "output channel count, 0 keeps the input")
	return c
}

// AudioResample converts the sample rate.
type AudioResample struct {
	audioFilter
}

func NewAudioResample(name string) *AudioResample {
	r := &AudioResample{}
	r.init(r, KindAudioResample, name, "rate", "output sample rate in Hz, 0 keeps the input")
	return r
}

var (
	_ pipeline.CapsObserver = (*AudioConvert)(nil)
	_ pipeline.Producer     = (*AudioResample)(nil)
	_ pipeline.Flusher      = (*AudioConvert)(nil)
)
