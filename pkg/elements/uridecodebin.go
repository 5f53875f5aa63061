package elements

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/haivivi/gizplay/pkg/pipeline"
	"github.com/haivivi/gizplay/pkg/source"
)

// DefaultLinkTimeout is how long uridecodebin waits for its audio port to be
// linked before posting a not-linked error.
const DefaultLinkTimeout = 5 * time.Second

// ErrNotLinked is the error of the not-linked Error event.
var ErrNotLinked = errors.New("elements: stream not linked")

// URIDecodeBin opens the uri property when going to Paused and announces one
// src port (src_0, src_1, ...) per stream it finds, with the stream caps
// already set. Ports are removed again when going back to Ready.
type URIDecodeBin struct {
	pipeline.Base
	opener *source.Opener

	mu     sync.Mutex
	media  *source.Media
	audio  *pipeline.Port
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewURIDecodeBin(name string, opener *source.Opener) *URIDecodeBin {
	d := &URIDecodeBin{opener: opener}
	d.Init(d, KindURIDecodeBin, name)
	d.DeclareProperty("uri", "", "URI to decode")
	d.DeclareProperty("link-timeout", DefaultLinkTimeout, "how long to wait for the audio stream to be linked")
	d.DeclarePortTemplate(pipeline.PortTemplate{
		Name:      "src_%u",
		Direction: pipeline.DirSrc,
		Presence:  pipeline.Sometimes,
		Caps:      pipeline.AnyCaps,
	})
	return d
}

func (d *URIDecodeBin) ChangeState(t pipeline.Transition) pipeline.StateChangeReturn {
	switch t {
	case pipeline.IdleToReady:
		if d.PropString("uri") == "" {
			d.PostError("no URI set", "element="+d.Name(), source.ErrBadURI)
			return pipeline.Failure
		}
	case pipeline.ReadyToPaused:
		ctx, cancel := context.WithCancel(context.Background())
		d.mu.Lock()
		d.cancel = cancel
		d.mu.Unlock()
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.open(ctx)
		}()
	case pipeline.PausedToReady:
		d.mu.Lock()
		cancel := d.cancel
		d.cancel = nil
		d.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		d.wg.Wait()
		d.mu.Lock()
		if d.media != nil {
			d.media.Close()
			d.media = nil
		}
		d.audio = nil
		d.mu.Unlock()
		d.RemovePorts(func(*pipeline.Port) bool { return true })
	}
	return pipeline.Success
}

// open runs on its own goroutine from Ready to Paused.
func (d *URIDecodeBin) open(ctx context.Context) {
	uri := d.PropString("uri")
	log := d.Logger().With("uri", uri)
	m, err := d.opener.Open(ctx, uri)
	if err != nil {
		if ctx.Err() == nil {
			d.PostError("could not open resource", "uri="+uri, err)
		}
		return
	}
	d.mu.Lock()
	d.media = m
	d.mu.Unlock()

	d.Post(pipeline.NewStreamStartEvent(d))
	if _, ok := m.Duration(); ok {
		d.PostDurationChanged()
	}

	streams := m.Streams()
	log.Info("streams found", "count", len(streams),
		"caps", lo.Map(streams, func(s source.Stream, _ int) string { return s.Caps.String() }))
	var audio *pipeline.Port
	for i, s := range streams {
		p := pipeline.NewPort(fmt.Sprintf("src_%d", i), pipeline.DirSrc, pipeline.AnyCaps)
		p.SetCaps(s.Caps)
		if s.Audio {
			audio = p
			d.mu.Lock()
			d.audio = p
			d.mu.Unlock()
		}
		if ctx.Err() != nil {
			return
		}
		if err := d.AddPort(p); err != nil {
			d.PostError("could not add port", "uri="+uri, err)
			return
		}
	}
	d.NoMorePorts()

	if audio == nil {
		return
	}
	timeout := d.PropDuration("link-timeout")
	if timeout <= 0 {
		return
	}
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := audio.WaitLinked(wctx); err != nil && ctx.Err() == nil {
		log.Warn("audio stream not linked", "timeout", timeout)
		d.PostError("not-linked", fmt.Sprintf("uri=%s port=%s timeout=%s", uri, audio.Name(), timeout), ErrNotLinked)
	}
}

// Produce returns the decoded audio for the audio port and an empty stream
// for the others. The media is closed when ctx ends, which releases a
// blocked read.
func (d *URIDecodeBin) Produce(ctx context.Context, src *pipeline.Port) (io.Reader, error) {
	d.mu.Lock()
	m, audio := d.media, d.audio
	d.mu.Unlock()
	if m == nil {
		return nil, fmt.Errorf("%w: %s has no media", pipeline.ErrNotLinked, d.Name())
	}
	if src != audio {
		return bytes.NewReader(nil), nil
	}
	context.AfterFunc(ctx, func() { m.Close() })
	return m, nil
}

func (d *URIDecodeBin) currentMedia() *source.Media {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.media
}

// QueryDuration implements pipeline.DurationQuerier.
func (d *URIDecodeBin) QueryDuration() (time.Duration, bool) {
	if m := d.currentMedia(); m != nil {
		return m.Duration()
	}
	return 0, false
}

// QuerySeeking implements pipeline.SeekingQuerier.
func (d *URIDecodeBin) QuerySeeking() pipeline.SeekRange {
	m := d.currentMedia()
	if m == nil {
		return pipeline.SeekRange{}
	}
	end, ok := m.Duration()
	if !ok {
		end = -1
	}
	return pipeline.SeekRange{Seekable: m.Seekable(), Start: 0, End: end}
}

// Seek repositions the media. Key-unit seeks on compressed media snap down
// to a whole second; other seeks are exact.
func (d *URIDecodeBin) Seek(target time.Duration, flags pipeline.SeekFlags) (time.Duration, error) {
	m := d.currentMedia()
	if m == nil || !m.Seekable() {
		return 0, fmt.Errorf("%w: %s", pipeline.ErrNotSeekable, d.Name())
	}
	if flags.Has(pipeline.SeekKeyUnit) && !flags.Has(pipeline.SeekAccurate) && m.Compressed() {
		target = target.Truncate(time.Second)
	}
	pos, err := m.Seek(target)
	if err != nil {
		return 0, err
	}
	d.Logger().Debug("seeked", "target", target, "position", pos, "flags", flags)
	return pos, nil
}

var (
	_ pipeline.Producer        = (*URIDecodeBin)(nil)
	_ pipeline.DurationQuerier = (*URIDecodeBin)(nil)
	_ pipeline.SeekingQuerier  = (*URIDecodeBin)(nil)
	_ pipeline.Seeker          = (*URIDecodeBin)(nil)
)
