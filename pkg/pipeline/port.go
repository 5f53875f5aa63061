package pipeline

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// Direction tells whether data leaves (Src) or enters (Sink) through a port.
type Direction int

const (
	DirSrc Direction = iota
	DirSink
)

func (d Direction) String() string {
	if d == DirSink {
		return "sink"
	}
	return "src"
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Presence tells whether a port exists for the whole life of an element or
// only appears once the element knows what it produces.
type Presence int

const (
	Always Presence = iota
	Sometimes
)

func (p Presence) String() string {
	if p == Sometimes {
		return "sometimes"
	}
	return "always"
}

func (p Presence) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// PortTemplate describes a port an element has or may create.
type PortTemplate struct {
	Name      string    `json:"name" yaml:"name"`
	Direction Direction `json:"direction" yaml:"direction"`
	Presence  Presence  `json:"presence" yaml:"presence"`
	Caps      Caps      `json:"caps" yaml:"caps"`
}

// CapsObserver is implemented by elements that react to caps arriving on
// their sink ports, typically to derive and set the caps of their src ports.
type CapsObserver interface {
	CapsChanged(p *Port, c Caps)
}

// Producer is implemented by elements that supply data on their src ports.
// Produce is called once per link, by the downstream element pulling data.
type Producer interface {
	Produce(ctx context.Context, src *Port) (io.Reader, error)
}

// Port is a connection point of an element. Ports are safe for concurrent
// use.
type Port struct {
	name     string
	dir      Direction
	template Caps
	owner    Element

	mu      sync.Mutex
	caps    Caps
	hasCaps bool
	peer    *Port
	linked  chan struct{}
}

// NewPort returns an unattached port. Elements register it with
// Base.NewSrcPort, Base.NewSinkPort or Base.AddPort.
func NewPort(name string, dir Direction, template Caps) *Port {
	return &Port{
		name:     name,
		dir:      dir,
		template: template,
		linked:   make(chan struct{}),
	}
}

func (p *Port) Name() string         { return p.name }
func (p *Port) Direction() Direction { return p.dir }
func (p *Port) Template() Caps       { return p.template }

// Element returns the element owning the port.
func (p *Port) Element() Element { return p.owner }

// FullName returns "element.port".
func (p *Port) FullName() string {
	if p.owner == nil {
		return p.name
	}
	return p.owner.Name() + "." + p.name
}

func (p *Port) String() string { return p.FullName() }

// CurrentCaps returns the negotiated caps. ok is false until the upstream
// element has announced what it produces.
func (p *Port) CurrentCaps() (c Caps, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.caps, p.hasCaps
}

// Caps returns the negotiated caps if known and the template otherwise.
func (p *Port) Caps() Caps {
	if c, ok := p.CurrentCaps(); ok {
		return c
	}
	return p.template
}

// Peer returns the port at the other end of the link, or nil.
func (p *Port) Peer() *Port {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peer
}

// IsLinked reports whether the port has a peer.
func (p *Port) IsLinked() bool {
	return p.Peer() != nil
}

// SetCaps records the caps of the data crossing the port. On a linked src
// port the caps are forwarded to the peer, whose element is told through
// CapsObserver.
func (p *Port) SetCaps(c Caps) {
	p.mu.Lock()
	p.caps, p.hasCaps = c, true
	peer := p.peer
	p.mu.Unlock()

	if p.dir == DirSrc {
		if peer != nil {
			peer.SetCaps(c)
		}
		return
	}
	if obs, ok := p.owner.(CapsObserver); ok {
		obs.CapsChanged(p, c)
	}
}

// WaitLinked blocks until the port is linked or ctx is done.
func (p *Port) WaitLinked(ctx context.Context) error {
	p.mu.Lock()
	ch := p.linked
	p.mu.Unlock()
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Pull returns a reader of the data arriving at sink port p, blocking until
// the port is linked.
func (p *Port) Pull(ctx context.Context) (io.Reader, error) {
	if p.dir != DirSink {
		return nil, fmt.Errorf("%w: pull from %s port %s", ErrDirection, p.dir, p.FullName())
	}
	if err := p.WaitLinked(ctx); err != nil {
		return nil, err
	}
	peer := p.Peer()
	if peer == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotLinked, p.FullName())
	}
	prod, ok := peer.owner.(Producer)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoProducer, peer.FullName())
	}
	return prod.Produce(ctx, peer)
}

// connect sets both peers. The caller holds the graph lock and has checked
// that neither side is linked.
func connect(src, sink *Port) {
	src.mu.Lock()
	src.peer = sink
	src.mu.Unlock()
	sink.mu.Lock()
	sink.peer = src
	sink.mu.Unlock()
}

// signalLinked wakes WaitLinked callers. It runs after caps propagation so
// that a woken reader sees the negotiated caps.
func (p *Port) signalLinked() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.peer == nil {
		return
	}
	select {
	case <-p.linked:
	default:
		close(p.linked)
	}
}

// disconnect clears the peer and rearms WaitLinked.
func (p *Port) disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.peer = nil
	select {
	case <-p.linked:
		p.linked = make(chan struct{})
	default:
	}
}
