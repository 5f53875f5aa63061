package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

var (
	rawAudio    = MustParseCaps("audio/x-raw")
	quietLogger = slog.New(slog.DiscardHandler)
)

// testElement records the transitions it is asked to make. Transitions in
// async answer Async, those in fail answer Failure.
type testElement struct {
	Base

	mu          sync.Mutex
	transitions []Transition
	async       map[Transition]bool
	fail        map[Transition]bool
	log         *[]string
	data        []byte
}

func newTestElement(kind, name string, log *[]string) *testElement {
	e := &testElement{
		async: make(map[Transition]bool),
		fail:  make(map[Transition]bool),
		log:   log,
	}
	e.Init(e, kind, name)
	return e
}

func newTestSource(name string, log *[]string) *testElement {
	e := newTestElement("testsrc", name, log)
	e.NewSrcPort("src", rawAudio)
	return e
}

func newTestFilter(name string, log *[]string) *testElement {
	e := newTestElement("testfilter", name, log)
	e.NewSinkPort("sink", rawAudio)
	e.NewSrcPort("src", rawAudio)
	return e
}

func newTestSink(name string, log *[]string) *testElement {
	e := newTestElement("testsink", name, log)
	e.NewSinkPort("sink", rawAudio)
	return e
}

func (e *testElement) ChangeState(t Transition) StateChangeReturn {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.transitions = append(e.transitions, t)
	if e.log != nil {
		*e.log = append(*e.log, e.Name()+":"+t.String())
	}
	switch {
	case e.fail[t]:
		return Failure
	case e.async[t]:
		return Async
	}
	return Success
}

func (e *testElement) Transitions() []Transition {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Transition(nil), e.transitions...)
}

// CapsChanged forwards caps from the sink port to the src port, like a
// passthrough filter.
func (e *testElement) CapsChanged(p *Port, c Caps) {
	if src := e.Port("src"); src != nil {
		src.SetCaps(c)
	}
}

func (e *testElement) Produce(ctx context.Context, src *Port) (io.Reader, error) {
	if sink := e.Port("sink"); sink != nil {
		return sink.Pull(ctx)
	}
	return bytes.NewReader(e.data), nil
}

// newTestGraph builds src -> convert -> resample -> sink with the last two
// links made statically, the shape used by the playback examples.
func newTestGraph(t *testing.T) (g *Graph, src, convert, resample, sink *testElement) {
	t.Helper()
	g = NewGraph("test-pipeline", WithLogger(quietLogger))
	src = newTestSource("source", nil)
	convert = newTestFilter("convert", nil)
	resample = newTestFilter("resample", nil)
	sink = newTestSink("sink", nil)
	if err := g.Add(src, convert, resample, sink); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := g.LinkMany(convert, resample, sink); err != nil {
		t.Fatalf("LinkMany: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g, src, convert, resample, sink
}

// popKind pops the next event of kind k or fails the test.
func popKind(t *testing.T, g *Graph, k Kind) Event {
	t.Helper()
	ev, err := g.Bus().Pop(time.Second, Kinds(k))
	if err != nil {
		t.Fatalf("Pop(%s): %v", k, err)
	}
	if ev == nil {
		t.Fatalf("Pop(%s): timeout", k)
	}
	return ev
}

// graphStates pops the next n StateChanged events posted by the graph
// itself, skipping those of its elements.
func graphStates(t *testing.T, g *Graph, n int) []*StateChangedEvent {
	t.Helper()
	var out []*StateChangedEvent
	for len(out) < n {
		ev := popKind(t, g, KindStateChanged)
		if ev.Source() == Object(g) {
			out = append(out, ev.(*StateChangedEvent))
		}
	}
	return out
}
