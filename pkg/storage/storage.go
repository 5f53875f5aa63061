// Package storage opens media objects for playback and creates objects for
// recorded output.
//
// Objects are byte streams that can be repositioned, which is what lets a
// decoder seek inside a file, an S3 object or an HTTP resource without
// downloading it first. Remote objects are read with ranged requests issued
// lazily after each Seek.
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrNotSeekable is returned by Seek when the target offset cannot be
	// computed, typically io.SeekEnd on an object of unknown size.
	ErrNotSeekable = errors.New("storage: object is not seekable")

	// ErrReadOnly is returned by stores that cannot create objects.
	ErrReadOnly = errors.New("storage: read-only store")
)

// Object is an opened media object.
type Object interface {
	io.ReadSeekCloser

	// Size returns the object length in bytes, or -1 if unknown.
	Size() int64
}

// Opener opens objects for reading.
type Opener interface {
	// Open opens the named object. If it does not exist, an error wrapping
	// os.ErrNotExist is returned.
	Open(ctx context.Context, path string) (Object, error)
}

// Store is an Opener that can also create and remove objects.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type Store interface {
	Opener

	// Create opens the named object for writing, truncating an existing one.
	// The caller must close the writer to commit the data.
	Create(ctx context.Context, path string) (io.WriteCloser, error)

	// Remove deletes the named object. Removing a missing object is not an
	// error.
	Remove(ctx context.Context, path string) error

	// Exists reports whether the named object exists.
	Exists(ctx context.Context, path string) (bool, error)
}
