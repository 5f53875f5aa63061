package pcm

import (
	"errors"
	"fmt"
	"time"
)

// SampleFormat is the only sample layout carried between elements.
const SampleFormat = "S16LE"

// bytesPerSample is the size of one S16LE sample.
const bytesPerSample = 2

// ErrInvalidFormat is returned for formats with a non-positive rate or
// channel count.
var ErrInvalidFormat = errors.New("pcm: invalid format")

// Format describes an S16LE interleaved PCM stream.
type Format struct {
	SampleRate int `json:"rate" yaml:"rate"`
	Channels   int `json:"channels" yaml:"channels"`
}

// Validate reports whether the format can be used for byte arithmetic.
func (f Format) Validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return fmt.Errorf("%w: rate=%d channels=%d", ErrInvalidFormat, f.SampleRate, f.Channels)
	}
	return nil
}

// FrameBytes returns the size of one frame (one sample per channel).
func (f Format) FrameBytes() int {
	return f.Channels * bytesPerSample
}

// BytesRate returns the number of bytes per second of audio.
func (f Format) BytesRate() int {
	return f.SampleRate * f.FrameBytes()
}

// FramesInDuration returns the number of frames played in d.
func (f Format) FramesInDuration(d time.Duration) int64 {
	return int64(time.Duration(f.SampleRate) * d / time.Second)
}

// BytesInDuration returns the number of bytes played in d, always a whole
// number of frames.
func (f Format) BytesInDuration(d time.Duration) int64 {
	return f.FramesInDuration(d) * int64(f.FrameBytes())
}

// Duration returns the playback time of n bytes.
func (f Format) Duration(n int64) time.Duration {
	if f.SampleRate == 0 || f.Channels == 0 {
		return 0
	}
	frames := n / int64(f.FrameBytes())
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// AlignDown truncates n to a whole number of frames.
func (f Format) AlignDown(n int) int {
	fb := f.FrameBytes()
	return n / fb * fb
}

// String returns the format in caps notation.
func (f Format) String() string {
	return fmt.Sprintf("audio/x-raw, format=%s, rate=%d, channels=%d", SampleFormat, f.SampleRate, f.Channels)
}
