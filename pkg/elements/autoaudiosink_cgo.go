//go:build (linux && cgo) || windows || darwin

package elements

import (
	"context"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"

	"github.com/haivivi/gizplay/pkg/audio/pcm"
	"github.com/haivivi/gizplay/pkg/buffer"
)

// AudioAvailable reports whether autoaudiosink drives a real device in this
// build.
const AudioAvailable = true

var (
	speakerMu   sync.Mutex
	speakerRate beep.SampleRate
)

// initSpeaker opens the device once, at the rate of the first stream.
func initSpeaker(rate beep.SampleRate) (beep.SampleRate, error) {
	speakerMu.Lock()
	defer speakerMu.Unlock()
	if speakerRate != 0 {
		return speakerRate, nil
	}
	if err := speaker.Init(rate, rate.N(time.Second/10)); err != nil {
		return 0, err
	}
	speakerRate = rate
	return rate, nil
}

// speakerOutput feeds written audio to the speaker through a buffer that
// the speaker drains on its own goroutine.
type speakerOutput struct {
	buf *buffer.Buffer[byte]
}

func (o *speakerOutput) Open(_ context.Context, f pcm.Format) error {
	rate := beep.SampleRate(f.SampleRate)
	devRate, err := initSpeaker(rate)
	if err != nil {
		return err
	}
	o.buf = buffer.N[byte](f.BytesRate())
	var s beep.Streamer = pcm.NewStreamer(o.buf, f)
	if devRate != rate {
		s = beep.Resample(4, rate, devRate, s)
	}
	speaker.Play(s)
	return nil
}

func (o *speakerOutput) Write(p []byte) (int, error) {
	return o.buf.Write(p)
}

func (o *speakerOutput) Close() error {
	if o.buf == nil {
		return nil
	}
	// Closing the buffer first releases a speaker callback blocked on it.
	o.buf.Close()
	speaker.Clear()
	o.buf = nil
	return nil
}

// AutoAudioSink plays audio on the default output device.
type AutoAudioSink struct {
	audioSink
}

func NewAutoAudioSink(name string) *AutoAudioSink {
	s := &AutoAudioSink{}
	s.init(s, KindAutoAudioSink, name, &speakerOutput{}, true)
	return s
}
