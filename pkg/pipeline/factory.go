package pipeline

import (
	"fmt"
	"slices"
	"sync"
)

// Constructor creates an element of a registered kind.
type Constructor func(name string) (Element, error)

// Description documents an element kind for inspection.
type Description struct {
	Kind       string         `json:"kind" yaml:"kind"`
	Doc        string         `json:"doc" yaml:"doc"`
	Ports      []PortTemplate `json:"ports" yaml:"ports"`
	Properties []PropertySpec `json:"properties" yaml:"properties"`
}

type registration struct {
	doc  string
	ctor Constructor
}

// Factory creates elements by kind name.
type Factory struct {
	mu    sync.RWMutex
	kinds map[string]registration
}

// DefaultFactory is the factory used by the package level functions.
var DefaultFactory = NewFactory()

// Register adds a kind to the default factory.
func Register(kind, doc string, ctor Constructor) error {
	return DefaultFactory.Register(kind, doc, ctor)
}

// Make creates an element from the default factory.
func Make(kind, name string) (Element, error) {
	return DefaultFactory.Make(kind, name)
}

// NewFactory returns an empty factory.
func NewFactory() *Factory {
	return &Factory{kinds: make(map[string]registration)}
}

// Register adds a kind. Registering a kind twice is an error.
func (f *Factory) Register(kind, doc string, ctor Constructor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.kinds[kind]; ok {
		return fmt.Errorf("pipeline: element kind %q already registered", kind)
	}
	f.kinds[kind] = registration{doc: doc, ctor: ctor}
	return nil
}

// Kinds returns the registered kind names, sorted.
func (f *Factory) Kinds() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	kinds := make([]string, 0, len(f.kinds))
	for k := range f.kinds {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// Make creates an element of the given kind. Unknown kinds and constructor
// failures return an error wrapping ErrElementCreation.
func (f *Factory) Make(kind, name string) (Element, error) {
	f.mu.RLock()
	reg, ok := f.kinds[kind]
	f.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q for %q", ErrElementCreation, kind, name)
	}
	if name == "" {
		name = kind
	}
	el, err := reg.ctor(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q: %w", ErrElementCreation, kind, name, err)
	}
	return el, nil
}

// Describe instantiates a throwaway element of kind and reports its ports
// and properties.
func (f *Factory) Describe(kind string) (Description, error) {
	el, err := f.Make(kind, kind)
	if err != nil {
		return Description{}, err
	}
	f.mu.RLock()
	doc := f.kinds[kind].doc
	f.mu.RUnlock()
	b := el.base()
	return Description{
		Kind:       kind,
		Doc:        doc,
		Ports:      b.Templates(),
		Properties: b.Properties(),
	}, nil
}
