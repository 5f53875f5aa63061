package source

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"

	"github.com/haivivi/gizplay/pkg/audio/pcm"
	"github.com/haivivi/gizplay/pkg/storage"
)

type container int

const (
	containerUnknown container = iota
	containerWAV
	containerMP3
)

func (c container) String() string {
	switch c {
	case containerWAV:
		return "wav"
	case containerMP3:
		return "mp3"
	}
	return "unknown"
}

// sniff identifies the container from its first bytes.
func sniff(head []byte) container {
	switch {
	case len(head) >= 12 && bytes.Equal(head[:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WAVE")):
		return containerWAV
	case len(head) >= 3 && bytes.Equal(head[:3], []byte("ID3")):
		return containerMP3
	case len(head) >= 2 && head[0] == 0xFF && head[1]&0xE0 == 0xE0:
		return containerMP3
	}
	return containerUnknown
}

// decode turns an opened object into Media. On success the Media owns obj.
func decode(uri string, u *url.URL, obj storage.Object) (*Media, error) {
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".pcm", ".raw":
		return decodeRaw(uri, u, obj)
	}

	head := make([]byte, 12)
	n, err := io.ReadFull(obj, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, fmt.Errorf("source: read %s: %w", uri, err)
	}
	if _, err := obj.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("source: rewind %s: %w", uri, err)
	}

	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	c := sniff(head[:n])
	switch c {
	case containerWAV:
		s, format, err = wav.Decode(obj)
	case containerMP3:
		s, format, err = mp3.Decode(obj)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownContainer, uri)
	}
	if err != nil {
		return nil, fmt.Errorf("source: decode %s %s: %w", c, uri, err)
	}
	return beepMedia(uri, s, format, c == containerMP3), nil
}

func beepMedia(uri string, s beep.StreamSeekCloser, format beep.Format, compressed bool) *Media {
	channels := min(max(format.NumChannels, 1), 2)
	f := pcm.Format{SampleRate: int(format.SampleRate), Channels: channels}
	m := newMedia(uri, f, pcm.NewStreamReader(s, channels))
	m.compressed = compressed
	m.closer = s
	if n := s.Len(); n > 0 {
		m.setDuration(format.SampleRate.D(n))
	}
	m.seek = func(d time.Duration) (time.Duration, error) {
		p := format.SampleRate.N(d)
		if n := s.Len(); n > 0 && p > n {
			p = n
		}
		if err := s.Seek(p); err != nil {
			return 0, err
		}
		return format.SampleRate.D(p), nil
	}
	return m
}

func decodeRaw(uri string, u *url.URL, obj storage.Object) (*Media, error) {
	f, err := rawFormat(u.Query(), DefaultRawFormat)
	if err != nil {
		return nil, err
	}
	m := newMedia(uri, f, obj)
	m.closer = obj
	if size := obj.Size(); size >= 0 {
		m.setDuration(f.Duration(size))
	}
	m.seek = func(d time.Duration) (time.Duration, error) {
		off := f.BytesInDuration(d)
		if _, err := obj.Seek(off, io.SeekStart); err != nil {
			return 0, err
		}
		return f.Duration(off), nil
	}
	return m, nil
}
