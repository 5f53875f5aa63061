package pipeline

import (
	"fmt"

	"github.com/haivivi/gizplay/pkg/audio/pcm"
)

// AudioCaps returns raw audio caps for f.
func AudioCaps(f pcm.Format) Caps {
	return NewCaps(MediaAudioRaw,
		"format", pcm.SampleFormat,
		"rate", f.SampleRate,
		"channels", f.Channels,
	)
}

// AudioFormat extracts the PCM format from raw audio caps.
func (c Caps) AudioFormat() (pcm.Format, error) {
	if !c.HasKind(MediaAudioRaw) {
		return pcm.Format{}, fmt.Errorf("%w: %s is not raw audio", ErrIncompatibleCaps, c)
	}
	if v, ok := c.Get("format"); ok && fmt.Sprint(v) != pcm.SampleFormat {
		return pcm.Format{}, fmt.Errorf("%w: sample format %v", ErrIncompatibleCaps, v)
	}
	rate, _ := c.Int("rate")
	channels, _ := c.Int("channels")
	f := pcm.Format{SampleRate: rate, Channels: channels}
	if err := f.Validate(); err != nil {
		return pcm.Format{}, err
	}
	return f, nil
}
