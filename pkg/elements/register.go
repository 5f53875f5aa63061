package elements

import (
	"log/slog"

	"github.com/haivivi/gizplay/pkg/pipeline"
	"github.com/haivivi/gizplay/pkg/source"
	"github.com/haivivi/gizplay/pkg/storage"
)

// Kind names.
const (
	KindURIDecodeBin  = "uridecodebin"
	KindAudioConvert  = "audioconvert"
	KindAudioResample = "audioresample"
	KindFakeSink      = "fakesink"
	KindFileSink      = "filesink"
	KindAutoAudioSink = "autoaudiosink"
)

// Options carries the dependencies elements need from outside.
type Options struct {
	// Opener resolves URIs for uridecodebin. Nil means a zero
	// source.Opener.
	Opener *source.Opener
	// S3 is used by filesink for s3:// locations.
	S3 storage.S3Client
	// Logger is used by the default Opener.
	Logger *slog.Logger
}

func (o Options) opener() *source.Opener {
	if o.Opener != nil {
		return o.Opener
	}
	return &source.Opener{Logger: o.Logger}
}

// Register adds every element kind to f.
func Register(f *pipeline.Factory, opts Options) error {
	kinds := []struct {
		kind string
		doc  string
		ctor pipeline.Constructor
	}{
		{KindURIDecodeBin, "Opens a URI and decodes it into raw streams", func(name string) (pipeline.Element, error) {
			return NewURIDecodeBin(name, opts.opener()), nil
		}},
		{KindAudioConvert, "Converts the channel count of raw audio", func(name string) (pipeline.Element, error) {
			return NewAudioConvert(name), nil
		}},
		{KindAudioResample, "Converts the sample rate of raw audio", func(name string) (pipeline.Element, error) {
			return NewAudioResample(name), nil
		}},
		{KindFakeSink, "Consumes raw audio without output", func(name string) (pipeline.Element, error) {
			return NewFakeSink(name), nil
		}},
		{KindFileSink, "Writes raw audio to a file or S3 object", func(name string) (pipeline.Element, error) {
			return NewFileSink(name, opts.S3), nil
		}},
		{KindAutoAudioSink, "Plays raw audio on the default output device", func(name string) (pipeline.Element, error) {
			return NewAutoAudioSink(name), nil
		}},
	}
	for _, k := range kinds {
		if err := f.Register(k.kind, k.doc, k.ctor); err != nil {
			return err
		}
	}
	return nil
}

// NewFactory returns a factory with every element kind registered.
func NewFactory(opts Options) *pipeline.Factory {
	f := pipeline.NewFactory()
	// Register only fails on duplicates, which a fresh factory cannot have.
	_ = Register(f, opts)
	return f
}
