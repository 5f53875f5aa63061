package pipeline

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// Link is a directed connection from a src port to a sink port.
type Link struct {
	Src  *Port
	Sink *Port
}

func (l Link) String() string {
	return l.Src.FullName() + " -> " + l.Sink.FullName()
}

// GraphOption configures a Graph.
type GraphOption func(*Graph)

// WithLogger sets the logger used by the graph and its elements.
func WithLogger(l *slog.Logger) GraphOption {
	return func(g *Graph) {
		if l != nil {
			g.log = l
		}
	}
}

// Graph owns a set of elements, the links between them and a bus. It is
// itself the source of graph-wide events such as the StateChanged event
// confirming a requested state.
type Graph struct {
	name string
	log  *slog.Logger
	bus  *Bus

	mu       sync.Mutex
	elements []Element
	byName   map[string]Element
	links    []Link
	watchers []*watcher
	eos      map[Element]bool

	stateMu sync.Mutex
	state   State
	target  State
	pending State
	last    StateChangeReturn
	waiting map[Element]bool
	changed chan struct{}
}

// NewGraph returns an empty graph in the Idle state.
func NewGraph(name string, opts ...GraphOption) *Graph {
	g := &Graph{
		name:    name,
		log:     slog.Default(),
		bus:     NewBus(),
		byName:  make(map[string]Element),
		eos:     make(map[Element]bool),
		state:   StateIdle,
		target:  StateIdle,
		last:    Success,
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.log = g.log.With("graph", name)
	return g
}

func (g *Graph) Name() string         { return g.name }
func (g *Graph) Bus() *Bus            { return g.bus }
func (g *Graph) Logger() *slog.Logger { return g.log }
func (g *Graph) logger() *slog.Logger { return g.log }
func (g *Graph) String() string       { return g.name }

// Add takes ownership of els. Names must be unique within the graph.
func (g *Graph) Add(els ...Element) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, el := range els {
		name := el.Name()
		if _, ok := g.byName[name]; ok || name == g.name {
			return fmt.Errorf("%w: %q", ErrDuplicateName, name)
		}
		if err := el.base().attach(g); err != nil {
			return err
		}
		g.byName[name] = el
		g.elements = append(g.elements, el)
		g.log.Debug("element added", "element", name, "kind", el.Kind())
	}
	return nil
}

// Element returns the named element, or nil.
func (g *Graph) Element(name string) Element {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.byName[name]
}

// Elements returns the elements in insertion order.
func (g *Graph) Elements() []Element {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.elements)
}

// Links returns a snapshot of the current links.
func (g *Graph) Links() []Link {
	g.mu.Lock()
	defer g.mu.Unlock()
	return slices.Clone(g.links)
}

// PortByRef resolves "element.port".
func (g *Graph) PortByRef(ref string) (*Port, error) {
	elName, portName, ok := strings.Cut(ref, ".")
	if !ok {
		return nil, fmt.Errorf("%w: %q is not element.port", ErrNoSuchPort, ref)
	}
	el := g.Element(elName)
	if el == nil {
		return nil, fmt.Errorf("%w: %q", ErrNotInGraph, elName)
	}
	p := el.Port(portName)
	if p == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoSuchPort, ref)
	}
	return p, nil
}

// Link connects src to sink. Linking a sink port that is already linked is
// a no-op and returns nil. Caps that cannot intersect fail with
// ErrIncompatibleCaps.
func (g *Graph) Link(src, sink *Port) error {
	_, err := g.TryLink(src, sink)
	return err
}

// TryLink is Link that also reports whether a new link was made.
func (g *Graph) TryLink(src, sink *Port) (bool, error) {
	if src.dir != DirSrc || sink.dir != DirSink {
		return false, fmt.Errorf("%w: %s -> %s", ErrDirection, src.FullName(), sink.FullName())
	}

	g.mu.Lock()
	for _, p := range []*Port{src, sink} {
		if p.owner == nil || g.byName[p.owner.Name()] != p.owner {
			g.mu.Unlock()
			return false, fmt.Errorf("%w: %s", ErrNotInGraph, p.FullName())
		}
	}
	if sink.IsLinked() {
		g.mu.Unlock()
		return false, nil
	}
	if src.IsLinked() {
		g.mu.Unlock()
		return false, fmt.Errorf("%w: %s", ErrPortInUse, src.FullName())
	}
	if !src.Caps().CanIntersect(sink.Caps()) {
		g.mu.Unlock()
		return false, fmt.Errorf("%w: %s (%s) -> %s (%s)", ErrIncompatibleCaps,
			src.FullName(), src.Caps(), sink.FullName(), sink.Caps())
	}
	connect(src, sink)
	g.links = append(g.links, Link{Src: src, Sink: sink})
	g.mu.Unlock()

	if c, ok := src.CurrentCaps(); ok {
		sink.SetCaps(c)
	}
	src.signalLinked()
	sink.signalLinked()
	g.log.Debug("linked", "src", src.FullName(), "sink", sink.FullName())
	return true, nil
}

// LinkElements links the first unlinked src port of src to the first
// unlinked, compatible sink port of sink.
func (g *Graph) LinkElements(src, sink Element) error {
	for _, sp := range src.Ports() {
		if sp.dir != DirSrc || sp.IsLinked() {
			continue
		}
		for _, dp := range sink.Ports() {
			if dp.dir != DirSink || dp.IsLinked() || !sp.Caps().CanIntersect(dp.Caps()) {
				continue
			}
			return g.Link(sp, dp)
		}
		return fmt.Errorf("%w: %s has no free sink port accepting %s", ErrIncompatibleCaps, sink.Name(), sp.Caps())
	}
	return fmt.Errorf("%w: %s has no free src port", ErrNoSuchPort, src.Name())
}

// LinkMany links each element to the next.
func (g *Graph) LinkMany(els ...Element) error {
	for i := 0; i+1 < len(els); i++ {
		if err := g.LinkElements(els[i], els[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// Unlink removes the link ending at sink.
func (g *Graph) Unlink(sink *Port) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := slices.IndexFunc(g.links, func(l Link) bool { return l.Sink == sink })
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrNotLinked, sink.FullName())
	}
	l := g.links[i]
	g.links = slices.Delete(g.links, i, i+1)
	l.Src.disconnect()
	l.Sink.disconnect()
	return nil
}

func (g *Graph) portsRemoved(ports []*Port) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.links = slices.DeleteFunc(g.links, func(l Link) bool {
		if slices.Contains(ports, l.Src) || slices.Contains(ports, l.Sink) {
			l.Src.disconnect()
			l.Sink.disconnect()
			return true
		}
		return false
	})
}

type watcher struct {
	el   Element
	ch   chan *Port
	done chan struct{}
	once sync.Once
}

// WatchPorts returns a channel receiving each port el creates at run time.
// Element goroutines block on delivery, so the receiver should keep reading
// until it calls stop.
func (g *Graph) WatchPorts(el Element) (ports <-chan *Port, stop func()) {
	w := &watcher{el: el, ch: make(chan *Port, 8), done: make(chan struct{})}
	g.mu.Lock()
	g.watchers = append(g.watchers, w)
	g.mu.Unlock()
	return w.ch, func() {
		w.once.Do(func() { close(w.done) })
		g.mu.Lock()
		g.watchers = slices.DeleteFunc(g.watchers, func(x *watcher) bool { return x == w })
		g.mu.Unlock()
	}
}

func (g *Graph) portAdded(el Element, p *Port) {
	g.mu.Lock()
	var ws []*watcher
	for _, w := range g.watchers {
		if w.el == el {
			ws = append(ws, w)
		}
	}
	g.mu.Unlock()

	caps, _ := p.CurrentCaps()
	g.log.Debug("port added", "port", p.FullName(), "caps", caps, "watchers", len(ws))
	for _, w := range ws {
		select {
		case w.ch <- p:
		case <-w.done:
		}
	}
}

// post forwards ev to the bus. EOS from elements is held back until every
// sink element has reported it and then posted once, from the graph.
func (g *Graph) post(ev Event) {
	if eos, ok := ev.(*EOSEvent); ok && eos.Source() != Object(g) {
		el, _ := eos.Source().(Element)
		if !g.collectEOS(el) {
			return
		}
		ev = NewEOSEvent(g)
	}
	if err := g.bus.Post(ev); err != nil {
		g.log.Debug("event dropped", "kind", ev.Kind(), "source", SourceName(ev))
	}
}

func (g *Graph) collectEOS(el Element) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.eos[el] = true
	for _, e := range g.elements {
		if isSink(e) && !g.eos[e] {
			return false
		}
	}
	return true
}

func (g *Graph) resetEOS() {
	g.mu.Lock()
	defer g.mu.Unlock()
	clear(g.eos)
}

// isSink reports whether el consumes data without producing any.
func isSink(el Element) bool {
	hasSink := false
	for _, p := range el.Ports() {
		if p.dir == DirSrc {
			return false
		}
		hasSink = true
	}
	return hasSink
}

// sourcesFirst orders elements so that every element comes after the
// elements linked upstream of it. Ties keep insertion order.
func (g *Graph) sourcesFirst() []Element {
	g.mu.Lock()
	els := slices.Clone(g.elements)
	links := slices.Clone(g.links)
	g.mu.Unlock()

	indeg := make(map[Element]int, len(els))
	down := make(map[Element][]Element, len(els))
	for _, l := range links {
		from, to := l.Src.owner, l.Sink.owner
		down[from] = append(down[from], to)
		indeg[to]++
	}
	order := make([]Element, 0, len(els))
	done := make(map[Element]bool, len(els))
	for len(order) < len(els) {
		progressed := false
		for _, el := range els {
			if done[el] || indeg[el] > 0 {
				continue
			}
			done[el] = true
			order = append(order, el)
			for _, d := range down[el] {
				indeg[d]--
			}
			progressed = true
		}
		if !progressed {
			// Cycle: fall back to insertion order for the rest.
			for _, el := range els {
				if !done[el] {
					done[el] = true
					order = append(order, el)
				}
			}
		}
	}
	return order
}

func (g *Graph) sinksFirst() []Element {
	order := g.sourcesFirst()
	slices.Reverse(order)
	return order
}

// Close tears the graph down to Idle unless it already rests there, stops
// port watchers and closes the bus.
func (g *Graph) Close() error {
	g.stateMu.Lock()
	settled := g.state == StateIdle && g.pending == StateNone
	g.stateMu.Unlock()
	if !settled {
		g.SetState(StateIdle)
	}
	g.mu.Lock()
	ws := g.watchers
	g.watchers = nil
	g.mu.Unlock()
	for _, w := range ws {
		w.once.Do(func() { close(w.done) })
	}
	return g.bus.Close()
}
