package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/haivivi/gizplay/pkg/audio/pcm"
	"github.com/haivivi/gizplay/pkg/pipeline"
	"github.com/haivivi/gizplay/pkg/storage"
)

var (
	ErrUnsupportedScheme = errors.New("source: unsupported URI scheme")
	ErrUnknownContainer  = errors.New("source: unknown container format")
	ErrNotSeekable       = errors.New("source: stream is not seekable")
	ErrBadURI            = errors.New("source: bad URI")
)

// Default raw PCM formats, used when the URI does not say.
var (
	DefaultRawFormat    = pcm.Format{SampleRate: 44100, Channels: 2}
	DefaultStreamFormat = pcm.Format{SampleRate: 16000, Channels: 1}
)

// Stream describes one elementary stream of a Media.
type Stream struct {
	Caps pipeline.Caps
	// Audio marks the stream whose samples Media.Read returns. Other
	// streams are announced but carry no data.
	Audio bool
}

// Media is an opened URI. Read returns the audio stream as interleaved S16LE
// in Format. Media is safe for one reader plus concurrent Seek calls.
type Media struct {
	uri        string
	streams    []Stream
	format     pcm.Format
	compressed bool
	duration   time.Duration
	hasDur     bool

	mu     sync.Mutex
	r      io.Reader
	seek   func(time.Duration) (time.Duration, error)
	closer io.Closer
	closed atomic.Bool
}

func newMedia(uri string, f pcm.Format, r io.Reader) *Media {
	return &Media{
		uri:     uri,
		format:  f,
		r:       r,
		streams: []Stream{{Caps: pipeline.AudioCaps(f), Audio: true}},
	}
}

func (m *Media) setDuration(d time.Duration) {
	m.duration, m.hasDur = d, true
}

// URI returns the URI the media was opened from.
func (m *Media) URI() string { return m.uri }

// Streams returns the streams in announcement order.
func (m *Media) Streams() []Stream { return m.streams }

// Format returns the PCM format of the audio stream.
func (m *Media) Format() pcm.Format { return m.format }

// Compressed reports whether the audio was decoded from a compressed
// container, in which case seeking is only frame accurate.
func (m *Media) Compressed() bool { return m.compressed }

// Duration returns the length of the media, if known.
func (m *Media) Duration() (time.Duration, bool) { return m.duration, m.hasDur }

// Seekable reports whether Seek can succeed.
func (m *Media) Seekable() bool { return m.seek != nil }

// Read reads interleaved S16LE audio.
func (m *Media) Read(p []byte) (int, error) {
	if m.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.r.Read(p)
}

// Seek moves the read position to d and returns the position reached.
func (m *Media) Seek(d time.Duration) (time.Duration, error) {
	if m.seek == nil {
		return 0, fmt.Errorf("%w: %s", ErrNotSeekable, m.uri)
	}
	if m.closed.Load() {
		return 0, io.ErrClosedPipe
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	if m.hasDur && d > m.duration {
		d = m.duration
	}
	return m.seek(d)
}

// Close releases the underlying object or connection. It does not wait for
// a blocked Read, which the closer wakes.
func (m *Media) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	if m.closer != nil {
		return m.closer.Close()
	}
	return nil
}

// Opener resolves URIs. The zero value opens local files, HTTP URLs,
// websockets and test tones; S3 needs a client.
type Opener struct {
	// Files opens file:// URIs and bare paths. Nil means the OS file
	// system.
	Files storage.Opener
	// HTTP opens http and https URLs. Nil means storage.HTTP with the
	// default client.
	HTTP storage.Opener
	// S3 is the client for s3:// URIs.
	S3 storage.S3Client
	// Dialer dials ws and wss URIs. Nil means websocket.DefaultDialer.
	Dialer *websocket.Dialer
	Logger *slog.Logger
}

func (o *Opener) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Open opens uri and prepares its audio stream for reading.
func (o *Opener) Open(ctx context.Context, uri string) (*Media, error) {
	u, err := parseURI(uri)
	if err != nil {
		return nil, err
	}
	log := o.logger().With("uri", uri)
	log.Debug("opening media", "scheme", u.Scheme)

	var m *Media
	switch strings.ToLower(u.Scheme) {
	case "", "file":
		m, err = o.openFile(ctx, uri, u)
	case "http", "https":
		m, err = o.openObject(ctx, uri, u, o.httpOpener(), uri)
	case "s3":
		m, err = o.openS3(ctx, uri, u)
	case "ws", "wss":
		m, err = o.openWebSocket(ctx, uri, u)
	case "test":
		m, err = openTest(uri, u)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme)
	}
	if err != nil {
		return nil, err
	}
	log.Debug("media opened", "format", m.format, "streams", len(m.streams),
		"seekable", m.Seekable(), "duration", m.duration)
	return m, nil
}

func (o *Opener) fileOpener() storage.Opener {
	if o.Files != nil {
		return o.Files
	}
	l, _ := storage.NewOS("")
	return l
}

func (o *Opener) httpOpener() storage.Opener {
	if o.HTTP != nil {
		return o.HTTP
	}
	return &storage.HTTP{}
}

// parseURI parses uri. Strings without "://" are file paths, taken
// literally up to an optional query.
func parseURI(uri string) (*url.URL, error) {
	if !strings.Contains(uri, "://") {
		path, query, _ := strings.Cut(uri, "?")
		q, err := url.ParseQuery(query)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrBadURI, uri, err)
		}
		return &url.URL{Path: path, RawQuery: q.Encode()}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrBadURI, uri, err)
	}
	return u, nil
}

func (o *Opener) openFile(ctx context.Context, uri string, u *url.URL) (*Media, error) {
	if u.Path == "" {
		return nil, fmt.Errorf("%w: %q has no path", ErrBadURI, uri)
	}
	return o.openObject(ctx, uri, u, o.fileOpener(), u.Path)
}

func (o *Opener) openS3(ctx context.Context, uri string, u *url.URL) (*Media, error) {
	if o.S3 == nil {
		return nil, fmt.Errorf("%w: s3 is not configured", ErrUnsupportedScheme)
	}
	bucket, key, err := storage.ParseS3URI(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadURI, err)
	}
	return o.openObject(ctx, uri, u, storage.NewS3(o.S3, bucket, ""), key)
}

func (o *Opener) openObject(ctx context.Context, uri string, u *url.URL, op storage.Opener, path string) (*Media, error) {
	obj, err := op.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("source: open %s: %w", uri, err)
	}
	m, err := decode(uri, u, obj)
	if err != nil {
		obj.Close()
		return nil, err
	}
	return m, nil
}

// rawFormat reads the rate and channels query parameters.
func rawFormat(q url.Values, def pcm.Format) (pcm.Format, error) {
	f := def
	if v := q.Get("rate"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("%w: rate=%q", ErrBadURI, v)
		}
		f.SampleRate = n
	}
	if v := q.Get("channels"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, fmt.Errorf("%w: channels=%q", ErrBadURI, v)
		}
		f.Channels = n
	}
	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("%w: %w", ErrBadURI, err)
	}
	return f, nil
}
