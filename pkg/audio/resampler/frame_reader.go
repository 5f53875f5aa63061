package resampler

import "io"

// frameReader wraps an io.Reader so that every Read returns whole frames.
// A trailing partial frame is held back until the rest of it arrives.
type frameReader struct {
	r         io.Reader
	frameSize int
	carry     []byte
}

func newFrameReader(r io.Reader, frameSize int) *frameReader {
	return &frameReader{
		r:         r,
		frameSize: frameSize,
		carry:     make([]byte, 0, frameSize),
	}
}

// Read returns a multiple of frameSize bytes. A stream ending mid-frame
// returns the partial frame with io.ErrUnexpectedEOF.
func (fr *frameReader) Read(p []byte) (int, error) {
	if len(p) < fr.frameSize {
		return 0, io.ErrShortBuffer
	}
	p = p[:len(p)/fr.frameSize*fr.frameSize]

	n := copy(p, fr.carry)
	fr.carry = fr.carry[:0]
	rn, err := fr.r.Read(p[n:])
	n += rn

	rem := n % fr.frameSize
	if err != nil {
		if rem != 0 && err == io.EOF {
			return n, io.ErrUnexpectedEOF
		}
		return n, err
	}
	if rem != 0 {
		n -= rem
		fr.carry = append(fr.carry, p[n:n+rem]...)
	}
	return n, nil
}

// reset drops a held partial frame.
func (fr *frameReader) reset() {
	fr.carry = fr.carry[:0]
}
