package source

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/haivivi/gizplay/pkg/audio/pcm"
	"github.com/haivivi/gizplay/pkg/pipeline"
)

// Test tone defaults.
const (
	DefaultToneFreq     = 440.0
	DefaultToneDuration = 30 * time.Second
)

// toneVideoCaps is announced for test://tone?video=1. The stream carries no
// data; it lets tests check that only audio gets linked.
var toneVideoCaps = pipeline.NewCaps(pipeline.MediaVideoRaw,
	"format", "I420",
	"width", 320,
	"height", 240,
)

// openTest handles test://tone. A duration of 0 makes the tone endless.
func openTest(uri string, u *url.URL) (*Media, error) {
	if u.Host != "tone" {
		return nil, fmt.Errorf("%w: unknown test source %q", ErrBadURI, u.Host)
	}
	q := u.Query()
	f, err := rawFormat(q, DefaultRawFormat)
	if err != nil {
		return nil, err
	}
	freq := DefaultToneFreq
	if v := q.Get("freq"); v != "" {
		if freq, err = strconv.ParseFloat(v, 64); err != nil || freq <= 0 {
			return nil, fmt.Errorf("%w: freq=%q", ErrBadURI, v)
		}
	}
	d := DefaultToneDuration
	if v := q.Get("duration"); v != "" {
		if d, err = time.ParseDuration(v); err != nil || d < 0 {
			return nil, fmt.Errorf("%w: duration=%q", ErrBadURI, v)
		}
	}

	tone := pcm.NewTone(f, freq, d)
	m := newMedia(uri, f, tone)
	if d, ok := tone.Duration(); ok {
		m.setDuration(d)
	}
	m.seek = func(d time.Duration) (time.Duration, error) {
		if err := tone.Seek(d); err != nil {
			return 0, err
		}
		return tone.Position(), nil
	}
	if v, _ := strconv.ParseBool(q.Get("video")); v {
		m.streams = append(m.streams, Stream{Caps: toneVideoCaps})
	}
	return m, nil
}
