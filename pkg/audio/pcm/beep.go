package pcm

import (
	"encoding/binary"
	"io"
	"sync/atomic"

	"github.com/gopxl/beep/v2"
)

// maxStreamFrames bounds how many frames StreamReader pulls per call.
const maxStreamFrames = 1024

// StreamReader exposes a beep.Streamer as an S16LE byte stream. Beep always
// streams stereo frames; with one output channel only the left channel is
// kept.
type StreamReader struct {
	s        beep.Streamer
	channels int
	samples  [][2]float64
}

// NewStreamReader returns a reader producing channels-channel PCM from s.
// channels must be 1 or 2.
func NewStreamReader(s beep.Streamer, channels int) *StreamReader {
	return &StreamReader{
		s:        s,
		channels: channels,
		samples:  make([][2]float64, maxStreamFrames),
	}
}

// Read fills p with whole frames. It returns io.EOF once the streamer is
// drained, or the streamer's error if it stopped on one.
func (r *StreamReader) Read(p []byte) (int, error) {
	fb := r.channels * bytesPerSample
	frames := min(len(p)/fb, maxStreamFrames)
	if frames == 0 {
		return 0, io.ErrShortBuffer
	}
	n, ok := r.s.Stream(r.samples[:frames])
	if !ok && n == 0 {
		if err := r.s.Err(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}
	for i := range n {
		for ch := range r.channels {
			binary.LittleEndian.PutUint16(p[i*fb+ch*bytesPerSample:], uint16(floatToS16(r.samples[i][ch])))
		}
	}
	return n * fb, nil
}

// Streamer feeds an S16LE byte stream to beep, for example the speaker.
// Mono input is duplicated to both beep channels.
type Streamer struct {
	r      io.Reader
	format Format
	buf    []byte
	err    error
	frames atomic.Int64
}

// NewStreamer wraps r, which must produce PCM in format f.
func NewStreamer(r io.Reader, f Format) *Streamer {
	return &Streamer{r: r, format: f}
}

// Stream implements beep.Streamer.
func (s *Streamer) Stream(samples [][2]float64) (n int, ok bool) {
	if s.err != nil {
		return 0, false
	}
	fb := s.format.FrameBytes()
	want := len(samples) * fb
	if cap(s.buf) < want {
		s.buf = make([]byte, want)
	}
	rn, err := io.ReadFull(s.r, s.buf[:want])
	n = rn / fb
	for i := range n {
		off := i * fb
		left := s16ToFloat(int16(binary.LittleEndian.Uint16(s.buf[off:])))
		right := left
		if s.format.Channels > 1 {
			right = s16ToFloat(int16(binary.LittleEndian.Uint16(s.buf[off+bytesPerSample:])))
		}
		samples[i] = [2]float64{left, right}
	}
	s.frames.Add(int64(n))
	if err != nil {
		if err != io.EOF && err != io.ErrUnexpectedEOF {
			s.err = err
		} else {
			s.err = io.EOF
		}
		return n, n > 0
	}
	return n, true
}

// Err implements beep.Streamer. A clean end of stream is not an error.
func (s *Streamer) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}

// Frames returns the number of frames handed to beep so far.
func (s *Streamer) Frames() int64 {
	return s.frames.Load()
}

// ResetFrames sets the frame counter, used after a flushing seek.
func (s *Streamer) ResetFrames(n int64) {
	s.frames.Store(n)
}

func floatToS16(v float64) int16 {
	switch {
	case v >= 1:
		return 32767
	case v <= -1:
		return -32768
	}
	return int16(v * 32767)
}

func s16ToFloat(v int16) float64 {
	return float64(v) / 32768
}

var _ beep.Streamer = (*Streamer)(nil)
