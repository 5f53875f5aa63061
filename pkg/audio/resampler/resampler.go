package resampler

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/haivivi/gizplay/pkg/audio/pcm"
)

// ErrUnsupportedChannels is returned for channel layouts other than mono and
// stereo.
var ErrUnsupportedChannels = errors.New("resampler: only mono and stereo are supported")

// Resampler reads audio from a source in one format and returns it in
// another. Close releases the converter state.
type Resampler struct {
	srcFmt pcm.Format
	dstFmt pcm.Format
	src    *frameReader

	mu       sync.Mutex
	closeErr error
	conv     resampling.Resampler
	readBuf  []byte
	leftover []byte
}

// New returns a Resampler producing dstFmt audio from src, which must
// produce srcFmt audio.
func New(src io.Reader, srcFmt, dstFmt pcm.Format) (*Resampler, error) {
	for _, f := range []pcm.Format{srcFmt, dstFmt} {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if f.Channels > 2 {
			return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedChannels, f.Channels)
		}
	}
	r := &Resampler{
		srcFmt: srcFmt,
		dstFmt: dstFmt,
		src:    newFrameReader(src, srcFmt.FrameBytes()),
	}
	if err := r.newConverter(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Resampler) newConverter() error {
	r.conv = nil
	if r.srcFmt.SampleRate == r.dstFmt.SampleRate {
		return nil
	}
	conv, err := resampling.New(&resampling.Config{
		InputRate:  float64(r.srcFmt.SampleRate),
		OutputRate: float64(r.dstFmt.SampleRate),
		Channels:   r.dstFmt.Channels,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return fmt.Errorf("resampler: create converter: %w", err)
	}
	r.conv = conv
	return nil
}

// Source returns the input format.
func (r *Resampler) Source() pcm.Format { return r.srcFmt }

// Target returns the output format.
func (r *Resampler) Target() pcm.Format { return r.dstFmt }

// Read fills p with whole output frames. It is not safe for concurrent use
// with itself, but Reset and Close may be called from other goroutines.
func (r *Resampler) Read(p []byte) (int, error) {
	fb := r.dstFmt.FrameBytes()
	if len(p) == 0 {
		return 0, nil
	}
	if len(p) < fb {
		return 0, io.ErrShortBuffer
	}
	p = p[:r.dstFmt.AlignDown(len(p))]

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.leftover) > 0 {
		n := copy(p, r.leftover)
		r.leftover = r.leftover[n:]
		return n, nil
	}
	if r.closeErr != nil {
		return 0, r.closeErr
	}
	if r.conv == nil {
		return r.readChannels(p)
	}
	return r.readResampled(p)
}

// readChannels fills p with source frames converted to the output channel
// layout, at the source rate.
func (r *Resampler) readChannels(p []byte) (int, error) {
	frames := len(p) / r.dstFmt.FrameBytes()
	want := frames * r.srcFmt.FrameBytes()
	if cap(r.readBuf) < want {
		r.readBuf = make([]byte, want)
	}
	n, err := r.src.Read(r.readBuf[:want])
	n = r.srcFmt.AlignDown(n)
	if n == 0 {
		if err == nil {
			return 0, nil
		}
		return 0, err
	}
	return convertChannels(p, r.readBuf[:n], r.srcFmt.Channels, r.dstFmt.Channels), err
}

func (r *Resampler) readResampled(p []byte) (int, error) {
	ratio := float64(r.srcFmt.SampleRate) / float64(r.dstFmt.SampleRate)
	frames := int(float64(len(p)/r.dstFmt.FrameBytes())*ratio) + 4
	tmp := make([]byte, frames*r.dstFmt.FrameBytes())

	n, readErr := r.readChannels(tmp)
	if n == 0 {
		if readErr == nil {
			return 0, nil
		}
		return 0, readErr
	}

	input := make([]float64, n/2)
	for i := range input {
		input[i] = float64(int16(binary.LittleEndian.Uint16(tmp[i*2:]))) / 32768
	}
	output, err := r.conv.Process(input)
	if err != nil {
		return 0, fmt.Errorf("resampler: process: %w", err)
	}
	if len(output) == 0 {
		return 0, readErr
	}

	out := make([]byte, len(output)*2)
	for i, s := range output {
		var v int16
		switch {
		case s >= 1:
			v = 32767
		case s <= -1:
			v = -32768
		default:
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	out = out[:r.dstFmt.AlignDown(len(out))]

	c := copy(p, out)
	if c < len(out) {
		r.leftover = append(r.leftover, out[c:]...)
		// The source error surfaces once the leftover is drained.
		return c, nil
	}
	return c, readErr
}

// Reset drops buffered audio and converter history. Call it after the source
// was repositioned so no audio from before the jump leaks out.
func (r *Resampler) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leftover = nil
	r.src.reset()
	if r.closeErr != nil {
		return nil
	}
	return r.newConverter()
}

// Close is CloseWithError with io.ErrClosedPipe.
func (r *Resampler) Close() error {
	return r.CloseWithError(fmt.Errorf("resampler: %w", io.ErrClosedPipe))
}

// CloseWithError makes later reads return err once buffered output is
// drained.
func (r *Resampler) CloseWithError(err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closeErr == nil {
		r.closeErr = err
	}
	r.conv = nil
	return nil
}

// convertChannels writes the frames in src (srcCh channels) to dst with dstCh
// channels and returns the bytes written. dst must hold the converted frames.
func convertChannels(dst, src []byte, srcCh, dstCh int) int {
	if srcCh == dstCh {
		return copy(dst, src)
	}
	frames := len(src) / (srcCh * 2)
	for i := range frames {
		switch {
		case srcCh == 2 && dstCh == 1:
			l := int16(binary.LittleEndian.Uint16(src[i*4:]))
			rr := int16(binary.LittleEndian.Uint16(src[i*4+2:]))
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(int16((int32(l)+int32(rr))/2)))
		case srcCh == 1 && dstCh == 2:
			s := binary.LittleEndian.Uint16(src[i*2:])
			binary.LittleEndian.PutUint16(dst[i*4:], s)
			binary.LittleEndian.PutUint16(dst[i*4+2:], s)
		}
	}
	return frames * dstCh * 2
}
