package elements

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/haivivi/gizplay/pkg/audio/pcm"
	"github.com/haivivi/gizplay/pkg/storage"
)

// ErrNoLocation is returned when a filesink starts without a location.
var ErrNoLocation = errors.New("elements: filesink location not set")

// FileSink writes the raw S16LE audio it receives to the location property:
// a local path or an s3://bucket/key URI.
type FileSink struct {
	audioSink
}

// NewFileSink returns a filesink. s3 may be nil when no S3 locations are
// used.
func NewFileSink(name string, s3 storage.S3Client) *FileSink {
	s := &FileSink{}
	s.init(s, KindFileSink, name, &storeOutput{owner: s, s3: s3}, false)
	s.DeclareProperty("location", "", "local path or s3://bucket/key to write to")
	return s
}

type storeOutput struct {
	owner *FileSink
	s3    storage.S3Client
	w     io.WriteCloser
}

func (o *storeOutput) Open(ctx context.Context, _ pcm.Format) error {
	loc := o.owner.PropString("location")
	if loc == "" {
		return ErrNoLocation
	}
	store, path, err := o.store(loc)
	if err != nil {
		return err
	}
	// The upload must outlive the streaming goroutine, which is cancelled
	// before the output is closed.
	w, err := store.Create(context.WithoutCancel(ctx), path)
	if err != nil {
		return err
	}
	o.w = w
	o.owner.Logger().Info("writing audio", "location", loc)
	return nil
}

func (o *storeOutput) store(loc string) (storage.Store, string, error) {
	if strings.HasPrefix(loc, "s3://") {
		if o.s3 == nil {
			return nil, "", errors.New("elements: s3 is not configured")
		}
		bucket, key, err := storage.ParseS3URI(loc)
		if err != nil {
			return nil, "", err
		}
		return storage.NewS3(o.s3, bucket, ""), key, nil
	}
	local, err := storage.NewOS("")
	if err != nil {
		return nil, "", err
	}
	return local, strings.TrimPrefix(loc, "file://"), nil
}

func (o *storeOutput) Write(p []byte) (int, error) {
	if o.w == nil {
		return 0, io.ErrClosedPipe
	}
	return o.w.Write(p)
}

func (o *storeOutput) Close() error {
	if o.w == nil {
		return nil
	}
	err := o.w.Close()
	o.w = nil
	return err
}
