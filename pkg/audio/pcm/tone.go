package pcm

import (
	"encoding/binary"
	"io"
	"math"
	"sync"
	"time"
)

// toneAmplitude keeps generated tones well below full scale.
const toneAmplitude = 16000

// Tone generates a sine wave as S16LE PCM. It is seekable and, when created
// with a positive duration, ends with io.EOF after that much audio.
type Tone struct {
	format Format
	freq   float64
	total  int64 // frames, <0 for endless

	mu  sync.Mutex
	pos int64 // frames
}

// NewTone returns a tone of freq Hz in format f lasting d. A non-positive d
// makes the tone endless.
func NewTone(f Format, freq float64, d time.Duration) *Tone {
	total := int64(-1)
	if d > 0 {
		total = f.FramesInDuration(d)
	}
	return &Tone{format: f, freq: freq, total: total}
}

// Format returns the PCM format of the generated audio.
func (t *Tone) Format() Format {
	return t.format
}

// Duration returns the tone length. ok is false for endless tones.
func (t *Tone) Duration() (d time.Duration, ok bool) {
	if t.total < 0 {
		return 0, false
	}
	return time.Duration(t.total) * time.Second / time.Duration(t.format.SampleRate), true
}

// Position returns the playback time of the next frame Read will produce.
func (t *Tone) Position() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return time.Duration(t.pos) * time.Second / time.Duration(t.format.SampleRate)
}

// Seek moves the read position to d, clamped to the tone bounds.
func (t *Tone) Seek(d time.Duration) error {
	frame := t.format.FramesInDuration(d)
	if frame < 0 {
		frame = 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.total >= 0 && frame > t.total {
		frame = t.total
	}
	t.pos = frame
	return nil
}

// Read fills p with whole frames of the sine wave.
func (t *Tone) Read(p []byte) (int, error) {
	fb := t.format.FrameBytes()
	frames := int64(len(p) / fb)
	if frames == 0 {
		return 0, io.ErrShortBuffer
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.total >= 0 {
		if t.pos >= t.total {
			return 0, io.EOF
		}
		frames = min(frames, t.total-t.pos)
	}

	rate := float64(t.format.SampleRate)
	for i := range frames {
		at := float64(t.pos+i) / rate
		sample := uint16(int16(math.Sin(2*math.Pi*t.freq*at) * toneAmplitude))
		off := int(i) * fb
		for ch := range t.format.Channels {
			binary.LittleEndian.PutUint16(p[off+ch*bytesPerSample:], sample)
		}
	}
	t.pos += frames
	return int(frames) * fb, nil
}
