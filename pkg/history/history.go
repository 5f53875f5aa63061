// Package history remembers where playback of each URI stopped, so a later
// run can resume there.
//
// Entries are keyed by URI and stored msgpack-encoded. The package includes
// a BadgerDB-backed implementation for persistent use and an in-memory
// implementation for tests and one-off runs.
package history

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	// ErrNotFound is returned when a URI has no entry.
	ErrNotFound = errors.New("history: not found")
	// ErrNoURI is returned by Put for entries without a URI.
	ErrNoURI = errors.New("history: entry has no URI")
)

// FinishedMargin is how close to the end a position must be for the entry
// to count as played to completion.
const FinishedMargin = time.Second

// Entry is the last known playback state of one URI.
type Entry struct {
	URI       string        `msgpack:"uri" json:"uri" yaml:"uri"`
	Position  time.Duration `msgpack:"pos" json:"position" yaml:"position"`
	Duration  time.Duration `msgpack:"dur,omitempty" json:"duration,omitempty" yaml:"duration,omitempty"`
	UpdatedAt time.Time     `msgpack:"at" json:"updated_at" yaml:"updated_at"`
}

// Finished reports whether playback reached the end of a stream of known
// duration.
func (e Entry) Finished() bool {
	return e.Duration > 0 && e.Position >= e.Duration-FinishedMargin
}

// Resumable reports whether resuming from Position makes sense.
func (e Entry) Resumable() bool {
	return e.Position > 0 && !e.Finished()
}

// Store is the interface for a playback history store.
type Store interface {
	// Get returns the entry for uri. Returns ErrNotFound if not present.
	Get(ctx context.Context, uri string) (Entry, error)

	// Put stores e, replacing any entry for the same URI. A zero UpdatedAt
	// is set to the current time.
	Put(ctx context.Context, e Entry) error

	// Delete removes the entry for uri. No error if there is none.
	Delete(ctx context.Context, uri string) error

	// List iterates over all entries in URI order.
	List(ctx context.Context) iter.Seq2[Entry, error]

	// Close releases any resources held by the store.
	Close() error
}

// keyPrefix namespaces history keys so the database can hold other data.
const keyPrefix = "history/"

func key(uri string) []byte {
	return []byte(keyPrefix + uri)
}

// prepare validates e and returns its key and encoding.
func prepare(e Entry) ([]byte, []byte, error) {
	if e.URI == "" {
		return nil, nil, ErrNoURI
	}
	if e.UpdatedAt.IsZero() {
		e.UpdatedAt = time.Now()
	}
	data, err := msgpack.Marshal(&e)
	if err != nil {
		return nil, nil, fmt.Errorf("history: encode %s: %w", e.URI, err)
	}
	return key(e.URI), data, nil
}

func decode(data []byte) (Entry, error) {
	var e Entry
	if err := msgpack.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("history: decode: %w", err)
	}
	return e, nil
}
