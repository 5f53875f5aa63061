package pipeline

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Element is a processing node. Implementations embed Base, which provides
// everything except the element specific behavior, and call Base.Init from
// their constructor.
//
// ChangeState is called by the graph for each lifecycle step, never
// concurrently with itself. Upward steps may return Async and complete later
// through Base.CommitState or Base.AbortState. Downward steps must complete
// before returning.
type Element interface {
	Object
	Kind() string
	Ports() []*Port
	Port(name string) *Port
	SetProperty(name string, v any) error
	Property(name string) (any, bool)
	ChangeState(t Transition) StateChangeReturn
	State() State

	base() *Base
}

// host is the graph side of an element. *Graph implements it.
type host interface {
	post(ev Event)
	portAdded(el Element, p *Port)
	asyncDone(el Element)
	asyncFailed(el Element)
	portsRemoved(ports []*Port)
	logger() *slog.Logger
}

// Base implements the bookkeeping shared by all elements.
type Base struct {
	self Element
	kind string
	name string

	mu        sync.Mutex
	specs     []PropertySpec
	props     map[string]any
	templates []PortTemplate
	ports     []*Port
	state     State
	pending   State
	host      host
	noMore    bool
}

// Init sets up b for the element self, which embeds b.
func (b *Base) Init(self Element, kind, name string) {
	b.self = self
	b.kind = kind
	b.name = name
	b.state = StateIdle
	b.props = make(map[string]any)
}

func (b *Base) base() *Base { return b }

func (b *Base) Name() string { return b.name }
func (b *Base) Kind() string { return b.kind }

// Logger returns the graph logger annotated with the element name.
func (b *Base) Logger() *slog.Logger {
	b.mu.Lock()
	h := b.host
	b.mu.Unlock()
	l := slog.Default()
	if h != nil {
		l = h.logger()
	}
	return l.With("element", b.name)
}

// ChangeState accepts every transition. Elements override it.
func (b *Base) ChangeState(Transition) StateChangeReturn {
	return Success
}

// State returns the current lifecycle state of the element.
func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Pending returns the state an asynchronous step is heading to, or
// StateNone.
func (b *Base) Pending() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pending
}

// DeclareProperty adds a property with its default value.
func (b *Base) DeclareProperty(name string, def any, doc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.specs = append(b.specs, PropertySpec{Name: name, Default: def, Doc: doc})
	b.props[name] = def
}

// Properties returns the declared properties.
func (b *Base) Properties() []PropertySpec {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.specs)
}

// SetProperty sets a declared property, converting v to the declared type.
func (b *Base) SetProperty(name string, v any) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := slices.IndexFunc(b.specs, func(s PropertySpec) bool { return s.Name == name })
	if i < 0 {
		return fmt.Errorf("pipeline: %s has no property %q", b.name, name)
	}
	cv, err := coerce(b.specs[i].Default, v)
	if err != nil {
		return fmt.Errorf("pipeline: set %s.%s: %w", b.name, name, err)
	}
	b.props[name] = cv
	return nil
}

// Property returns the current value of a property.
func (b *Base) Property(name string) (any, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.props[name]
	return v, ok
}

// PropString returns a string property, or "".
func (b *Base) PropString(name string) string {
	v, _ := b.Property(name)
	s, _ := v.(string)
	return s
}

// PropInt returns an int property, or 0.
func (b *Base) PropInt(name string) int {
	v, _ := b.Property(name)
	n, _ := v.(int)
	return n
}

// PropBool returns a bool property, or false.
func (b *Base) PropBool(name string) bool {
	v, _ := b.Property(name)
	t, _ := v.(bool)
	return t
}

// PropDuration returns a duration property, or 0.
func (b *Base) PropDuration(name string) time.Duration {
	v, _ := b.Property(name)
	d, _ := v.(time.Duration)
	return d
}

// PropFloat returns a float property, or 0.
func (b *Base) PropFloat(name string) float64 {
	v, _ := b.Property(name)
	f, _ := v.(float64)
	return f
}

// Templates returns the ports the element has or may create.
func (b *Base) Templates() []PortTemplate {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.templates)
}

// DeclarePortTemplate records a port the element creates at run time.
func (b *Base) DeclarePortTemplate(t PortTemplate) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.templates = append(b.templates, t)
}

// NewSrcPort creates and registers an always-present src port.
func (b *Base) NewSrcPort(name string, template Caps) *Port {
	return b.newStaticPort(name, DirSrc, template)
}

// NewSinkPort creates and registers an always-present sink port.
func (b *Base) NewSinkPort(name string, template Caps) *Port {
	return b.newStaticPort(name, DirSink, template)
}

func (b *Base) newStaticPort(name string, dir Direction, template Caps) *Port {
	p := NewPort(name, dir, template)
	p.owner = b.self
	b.mu.Lock()
	defer b.mu.Unlock()
	b.templates = append(b.templates, PortTemplate{Name: name, Direction: dir, Presence: Always, Caps: template})
	b.ports = append(b.ports, p)
	return p
}

// AddPort registers a port created at run time and announces it to the
// graph, which hands it to every Negotiator watching this element. AddPort
// blocks until they have received it, so it must not be called from
// ChangeState.
func (b *Base) AddPort(p *Port) error {
	b.mu.Lock()
	if slices.ContainsFunc(b.ports, func(q *Port) bool { return q.name == p.name }) {
		b.mu.Unlock()
		return fmt.Errorf("pipeline: %s already has a port named %q", b.name, p.name)
	}
	p.owner = b.self
	b.ports = append(b.ports, p)
	h := b.host
	b.mu.Unlock()

	if h != nil {
		h.portAdded(b.self, p)
	}
	return nil
}

// RemovePorts unregisters the ports matching match and unlinks them. Elements
// call it for their run-time ports when going back to Ready.
func (b *Base) RemovePorts(match func(*Port) bool) []*Port {
	b.mu.Lock()
	var removed []*Port
	b.ports = slices.DeleteFunc(b.ports, func(p *Port) bool {
		if match(p) {
			removed = append(removed, p)
			return true
		}
		return false
	})
	b.noMore = false
	h := b.host
	b.mu.Unlock()

	if h != nil && len(removed) > 0 {
		h.portsRemoved(removed)
	}
	return removed
}

// NoMorePorts tells the graph that the element will not add further ports.
func (b *Base) NoMorePorts() {
	b.mu.Lock()
	b.noMore = true
	b.mu.Unlock()
	b.Post(NewElementEvent(b.self, "no-more-ports", nil))
}

// Ports returns a snapshot of the element ports.
func (b *Base) Ports() []*Port {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.ports)
}

// Port returns the named port, or nil.
func (b *Base) Port(name string) *Port {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.ports {
		if p.name == name {
			return p
		}
	}
	return nil
}

// SrcPorts returns the src ports.
func (b *Base) SrcPorts() []*Port {
	return slices.DeleteFunc(b.Ports(), func(p *Port) bool { return p.dir != DirSrc })
}

// SinkPorts returns the sink ports.
func (b *Base) SinkPorts() []*Port {
	return slices.DeleteFunc(b.Ports(), func(p *Port) bool { return p.dir != DirSink })
}

// Post sends ev to the graph bus. Events posted before the element joins a
// graph are dropped.
func (b *Base) Post(ev Event) {
	b.mu.Lock()
	h := b.host
	b.mu.Unlock()
	if h != nil {
		h.post(ev)
	}
}

// PostError posts an ErrorEvent from the element.
func (b *Base) PostError(msg, debug string, err error) {
	b.Post(NewErrorEvent(b.self, NewError(msg, debug, err)))
}

// PostWarning posts a WarningEvent from the element.
func (b *Base) PostWarning(msg, debug string, err error) {
	b.Post(NewWarningEvent(b.self, NewError(msg, debug, err)))
}

// PostEOS reports that the element has consumed or produced all its data.
func (b *Base) PostEOS() {
	b.Post(NewEOSEvent(b.self))
}

// PostDurationChanged tells the application to query the duration again.
func (b *Base) PostDurationChanged() {
	b.Post(NewDurationChangedEvent(b.self))
}

// CommitState completes an asynchronous upward step. Calls without a step in
// progress are ignored, so an element may commit after its step was
// cancelled by a downward transition.
func (b *Base) CommitState() {
	b.mu.Lock()
	if b.pending == StateNone {
		b.mu.Unlock()
		return
	}
	old, cur := b.state, b.pending
	b.state, b.pending = cur, StateNone
	h := b.host
	b.mu.Unlock()

	b.Post(NewStateChangedEvent(b.self, old, cur, StateNone))
	if h != nil {
		go h.asyncDone(b.self)
	}
}

// AbortState fails an asynchronous upward step and posts err.
func (b *Base) AbortState(err *Error) {
	b.mu.Lock()
	if b.pending == StateNone {
		b.mu.Unlock()
		return
	}
	b.pending = StateNone
	h := b.host
	b.mu.Unlock()

	b.Post(NewErrorEvent(b.self, err))
	if h != nil {
		go h.asyncFailed(b.self)
	}
}

func (b *Base) attach(h host) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.host != nil {
		return fmt.Errorf("pipeline: %s already belongs to a graph", b.name)
	}
	b.host = h
	return nil
}

func (b *Base) setPending(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = s
}

func (b *Base) setState(s State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = s
	b.pending = StateNone
}
