package history

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
)

// Memory is an in-memory Store. Entries go through the same encoding as on
// disk. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory Store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, uri string) (Entry, error) {
	m.mu.RLock()
	v, ok := m.data[string(key(uri))]
	m.mu.RUnlock()
	if !ok {
		return Entry{}, ErrNotFound
	}
	return decode(v)
}

func (m *Memory) Put(_ context.Context, e Entry) error {
	k, v, err := prepare(e)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[string(k)] = v
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(_ context.Context, uri string) error {
	m.mu.Lock()
	delete(m.data, string(key(uri)))
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(_ context.Context) iter.Seq2[Entry, error] {
	// Snapshot under read lock; values are never mutated in place.
	m.mu.RLock()
	keys := make([]string, 0, len(m.data))
	vals := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		if strings.HasPrefix(k, keyPrefix) {
			keys = append(keys, k)
			vals[k] = v
		}
	}
	m.mu.RUnlock()
	slices.Sort(keys)

	return func(yield func(Entry, error) bool) {
		for _, k := range keys {
			if !yield(decode(vals[k])) {
				return
			}
		}
	}
}

func (m *Memory) Close() error {
	return nil
}
