package elements

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/haivivi/gizplay/pkg/pipeline"
)

// PlaybinOptions configures NewPlaybin. Zero values keep element defaults.
type PlaybinOptions struct {
	// Sink is the sink element kind. Empty means autoaudiosink.
	Sink string
	// SinkProps are applied to the sink after creation.
	SinkProps map[string]any
	// Rate and Channels fix the output format.
	Rate     int
	Channels int
	// LinkTimeout overrides the uridecodebin link-timeout property.
	LinkTimeout time.Duration
	Logger      *slog.Logger
}

// Playbin is a ready-made playback graph:
//
//	source (uridecodebin) ~> convert -> resample -> sink
//
// The source is linked at run time by a negotiator accepting raw audio.
type Playbin struct {
	Graph      *pipeline.Graph
	Source     pipeline.Element
	Convert    pipeline.Element
	Resample   pipeline.Element
	Sink       pipeline.Element
	Negotiator *pipeline.Negotiator

	stop func()
}

// NewPlaybin builds a Playbin named name playing uri, using f to create the
// elements. Any creation or static link failure is returned.
func NewPlaybin(f *pipeline.Factory, name, uri string, opts PlaybinOptions) (*Playbin, error) {
	if opts.Sink == "" {
		opts.Sink = KindAutoAudioSink
	}
	g := pipeline.NewGraph(name, pipeline.WithLogger(opts.Logger))
	p := &Playbin{Graph: g}

	var err error
	create := func(kind, elName string) pipeline.Element {
		if err != nil {
			return nil
		}
		var el pipeline.Element
		el, err = f.Make(kind, elName)
		return el
	}
	p.Source = create(KindURIDecodeBin, "source")
	p.Convert = create(KindAudioConvert, "convert")
	p.Resample = create(KindAudioResample, "resample")
	p.Sink = create(opts.Sink, "sink")
	if err != nil {
		return nil, err
	}

	props := []struct {
		el    pipeline.Element
		name  string
		value any
		set   bool
	}{
		{p.Source, "uri", uri, true},
		{p.Source, "link-timeout", opts.LinkTimeout, opts.LinkTimeout != 0},
		{p.Convert, "channels", opts.Channels, opts.Channels != 0},
		{p.Resample, "rate", opts.Rate, opts.Rate != 0},
	}
	for _, pr := range props {
		if !pr.set {
			continue
		}
		if err := pr.el.SetProperty(pr.name, pr.value); err != nil {
			return nil, fmt.Errorf("%s: %w", pr.el.Name(), err)
		}
	}
	for k, v := range opts.SinkProps {
		if err := p.Sink.SetProperty(k, v); err != nil {
			return nil, fmt.Errorf("%s: %w", p.Sink.Name(), err)
		}
	}

	if err := g.Add(p.Source, p.Convert, p.Resample, p.Sink); err != nil {
		return nil, err
	}
	if err := g.LinkMany(p.Convert, p.Resample, p.Sink); err != nil {
		return nil, err
	}

	p.Negotiator = pipeline.NewNegotiator(g, p.Convert.Port("sink"), pipeline.MediaAudioRaw)
	p.stop = p.Negotiator.Watch(context.Background(), p.Source)
	return p, nil
}

// Close stops the negotiator and tears the graph down.
func (p *Playbin) Close() error {
	p.stop()
	return p.Graph.Close()
}
