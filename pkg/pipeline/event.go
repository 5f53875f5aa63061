package pipeline

import (
	"strings"
	"time"
)

// Object is anything that can be the source of an event: an Element or the
// Graph itself.
type Object interface {
	Name() string
}

// Kind identifies an event variant.
type Kind uint8

const (
	KindError Kind = iota
	KindWarning
	KindEOS
	KindStateChanged
	KindDurationChanged
	KindAsyncDone
	KindStreamStart
	KindElement

	numKinds
)

func (k Kind) String() string {
	switch k {
	case KindError:
		return "error"
	case KindWarning:
		return "warning"
	case KindEOS:
		return "eos"
	case KindStateChanged:
		return "state-changed"
	case KindDurationChanged:
		return "duration-changed"
	case KindAsyncDone:
		return "async-done"
	case KindStreamStart:
		return "stream-start"
	case KindElement:
		return "element"
	default:
		return "unknown"
	}
}

// KindSet is a set of event kinds, used to filter Bus.Pop.
type KindSet uint32

// AllKinds contains every kind.
const AllKinds KindSet = 1<<numKinds - 1

// Kinds returns the set containing ks.
func Kinds(ks ...Kind) KindSet {
	var s KindSet
	for _, k := range ks {
		s |= 1 << k
	}
	return s
}

// Has reports whether k is in s.
func (s KindSet) Has(k Kind) bool {
	return s&(1<<k) != 0
}

// Union returns the kinds in s or o.
func (s KindSet) Union(o KindSet) KindSet {
	return s | o
}

func (s KindSet) String() string {
	var names []string
	for k := range numKinds {
		if s.Has(k) {
			names = append(names, k.String())
		}
	}
	return strings.Join(names, "|")
}

// Event is a status notification posted to the Bus. The set of variants is
// closed: ErrorEvent, WarningEvent, EOSEvent, StateChangedEvent,
// DurationChangedEvent, AsyncDoneEvent, StreamStartEvent and ElementEvent.
type Event interface {
	Kind() Kind
	// Source is the element or graph that posted the event.
	Source() Object
	// Time is when the event was posted.
	Time() time.Time

	sealed()
}

type header struct {
	src Object
	ts  time.Time
}

func newHeader(src Object) header {
	return header{src: src, ts: time.Now()}
}

func (h header) Source() Object  { return h.src }
func (h header) Time() time.Time { return h.ts }
func (h header) sealed()         {}

// SourceName returns the name of the event source, or "unknown".
func SourceName(ev Event) string {
	if ev.Source() == nil {
		return "unknown"
	}
	return ev.Source().Name()
}

// ErrorEvent reports an unrecoverable error.
type ErrorEvent struct {
	header
	Err *Error
}

// NewErrorEvent returns an Error event. A nil err becomes an unknown error.
func NewErrorEvent(src Object, err *Error) *ErrorEvent {
	return &ErrorEvent{header: newHeader(src), Err: orUnknown(err)}
}

func (*ErrorEvent) Kind() Kind { return KindError }

// WarningEvent reports a problem that playback survives.
type WarningEvent struct {
	header
	Err *Error
}

func NewWarningEvent(src Object, err *Error) *WarningEvent {
	return &WarningEvent{header: newHeader(src), Err: orUnknown(err)}
}

func orUnknown(err *Error) *Error {
	if err == nil {
		return NewError("unknown error", "", nil)
	}
	return err
}

func (*WarningEvent) Kind() Kind { return KindWarning }

// EOSEvent reports the end of the stream.
type EOSEvent struct {
	header
}

func NewEOSEvent(src Object) *EOSEvent {
	return &EOSEvent{header: newHeader(src)}
}

func (*EOSEvent) Kind() Kind { return KindEOS }

// StateChangedEvent reports a completed lifecycle step. Pending is the
// state still being worked toward, or StateNone.
type StateChangedEvent struct {
	header
	Old, New, Pending State
}

func NewStateChangedEvent(src Object, old, cur, pending State) *StateChangedEvent {
	return &StateChangedEvent{header: newHeader(src), Old: old, New: cur, Pending: pending}
}

func (*StateChangedEvent) Kind() Kind { return KindStateChanged }

// DurationChangedEvent reports that a previously queried duration is stale.
type DurationChangedEvent struct {
	header
}

func NewDurationChangedEvent(src Object) *DurationChangedEvent {
	return &DurationChangedEvent{header: newHeader(src)}
}

func (*DurationChangedEvent) Kind() Kind { return KindDurationChanged }

// AsyncDoneEvent reports that an asynchronous state change completed.
type AsyncDoneEvent struct {
	header
}

func NewAsyncDoneEvent(src Object) *AsyncDoneEvent {
	return &AsyncDoneEvent{header: newHeader(src)}
}

func (*AsyncDoneEvent) Kind() Kind { return KindAsyncDone }

// StreamStartEvent reports that data started flowing.
type StreamStartEvent struct {
	header
}

func NewStreamStartEvent(src Object) *StreamStartEvent {
	return &StreamStartEvent{header: newHeader(src)}
}

func (*StreamStartEvent) Kind() Kind { return KindStreamStart }

// ElementEvent carries an element specific notification.
type ElementEvent struct {
	header
	Name string
	Data map[string]any
}

func NewElementEvent(src Object, name string, data map[string]any) *ElementEvent {
	return &ElementEvent{header: newHeader(src), Name: name, Data: data}
}

func (*ElementEvent) Kind() Kind { return KindElement }
