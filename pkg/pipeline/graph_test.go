package pipeline

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/haivivi/gizplay/pkg/audio/pcm"
)

func TestGraph_AddDuplicateName(t *testing.T) {
	g := NewGraph("main", WithLogger(quietLogger))
	if err := g.Add(newTestSink("sink", nil)); err != nil {
		t.Fatal(err)
	}
	if err := g.Add(newTestSink("sink", nil)); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("Add duplicate = %v, want ErrDuplicateName", err)
	}
	if err := g.Add(newTestSink("main", nil)); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("Add graph name = %v, want ErrDuplicateName", err)
	}
	if g.Element("sink") == nil || len(g.Elements()) != 1 {
		t.Fatalf("Elements() = %v", g.Elements())
	}
}

func TestGraph_LinkErrors(t *testing.T) {
	g, src, convert, _, sink := newTestGraph(t)
	stranger := newTestSink("stranger", nil)

	tests := []struct {
		name      string
		src, sink *Port
		want      error
	}{
		{"reversed", sink.Port("sink"), src.Port("src"), ErrDirection},
		{"not in graph", src.Port("src"), stranger.Port("sink"), ErrNotInGraph},
		{"sink already linked", convert.Port("src"), sink.Port("sink"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := g.Link(tt.src, tt.sink)
			if tt.want == nil {
				// Relinking a linked sink is a no-op.
				if err != nil {
					t.Fatalf("Link = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("Link = %v, want %v", err, tt.want)
			}
		})
	}

	extra := newTestSink("extra", nil)
	if err := g.Add(extra); err != nil {
		t.Fatal(err)
	}
	if err := g.Link(convert.Port("src"), extra.Port("sink")); !errors.Is(err, ErrPortInUse) {
		t.Fatalf("Link from used src = %v, want ErrPortInUse", err)
	}
	if n := len(g.Links()); n != 2 {
		t.Fatalf("len(Links()) = %d, want 2", n)
	}
}

func TestGraph_LinkIncompatibleCaps(t *testing.T) {
	g := NewGraph("caps", WithLogger(quietLogger))
	src := newTestElement("testsrc", "src", nil)
	src.NewSrcPort("src", MustParseCaps("audio/x-raw, rate=16000"))
	sink := newTestElement("testsink", "sink", nil)
	sink.NewSinkPort("sink", MustParseCaps("audio/x-raw, rate=8000"))
	if err := g.Add(src, sink); err != nil {
		t.Fatal(err)
	}
	linked, err := g.TryLink(src.Port("src"), sink.Port("sink"))
	if linked || !errors.Is(err, ErrIncompatibleCaps) {
		t.Fatalf("TryLink = %v, %v; want false, ErrIncompatibleCaps", linked, err)
	}
	if err := g.LinkElements(src, sink); !errors.Is(err, ErrIncompatibleCaps) {
		t.Fatalf("LinkElements = %v, want ErrIncompatibleCaps", err)
	}
}

func TestGraph_CapsPropagateAlongLinks(t *testing.T) {
	g, src, convert, _, sink := newTestGraph(t)
	want := AudioCaps(pcm.Format{SampleRate: 44100, Channels: 2})

	src.Port("src").SetCaps(want)
	if _, ok := sink.Port("sink").CurrentCaps(); ok {
		t.Fatal("caps reached the sink before the source was linked")
	}
	if err := g.Link(src.Port("src"), convert.Port("sink")); err != nil {
		t.Fatal(err)
	}
	got, ok := sink.Port("sink").CurrentCaps()
	if !ok || !got.Equal(want) {
		t.Fatalf("sink caps = %v (%v), want %v", got, ok, want)
	}
}

func TestGraph_PullWaitsForLink(t *testing.T) {
	g, src, convert, _, sink := newTestGraph(t)
	src.data = []byte("hello")

	go func() {
		time.Sleep(10 * time.Millisecond)
		g.Link(src.Port("src"), convert.Port("sink"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	r, err := sink.Port("sink").Pull(ctx)
	if err != nil {
		t.Fatalf("Pull: %v", err)
	}
	b, err := io.ReadAll(r)
	if err != nil || string(b) != "hello" {
		t.Fatalf("ReadAll = %q, %v", b, err)
	}

	if _, err := src.Port("src").Pull(ctx); !errors.Is(err, ErrDirection) {
		t.Fatalf("Pull on src port = %v, want ErrDirection", err)
	}
}

func TestGraph_UnlinkRearmsWait(t *testing.T) {
	g, _, _, resample, sink := newTestGraph(t)
	if err := g.Unlink(sink.Port("sink")); err != nil {
		t.Fatal(err)
	}
	if sink.Port("sink").IsLinked() || resample.Port("src").IsLinked() {
		t.Fatal("ports still linked after Unlink")
	}
	if err := g.Unlink(sink.Port("sink")); !errors.Is(err, ErrNotLinked) {
		t.Fatalf("second Unlink = %v, want ErrNotLinked", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := sink.Port("sink").WaitLinked(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("WaitLinked after Unlink = %v", err)
	}
}

func TestGraph_PortByRef(t *testing.T) {
	g, _, convert, _, _ := newTestGraph(t)
	p, err := g.PortByRef("convert.src")
	if err != nil || p != convert.Port("src") {
		t.Fatalf("PortByRef = %v, %v", p, err)
	}
	for ref, want := range map[string]error{
		"convert":       ErrNoSuchPort,
		"nobody.src":    ErrNotInGraph,
		"convert.audio": ErrNoSuchPort,
	} {
		if _, err := g.PortByRef(ref); !errors.Is(err, want) {
			t.Errorf("PortByRef(%q) = %v, want %v", ref, err, want)
		}
	}
}

func TestGraph_Order(t *testing.T) {
	g := NewGraph("order", WithLogger(quietLogger))
	sink := newTestSink("sink", nil)
	filter := newTestFilter("filter", nil)
	src := newTestSource("src", nil)
	// Inserted backwards on purpose.
	if err := g.Add(sink, filter, src); err != nil {
		t.Fatal(err)
	}
	if err := g.LinkMany(src, filter, sink); err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, el := range g.sourcesFirst() {
		names = append(names, el.Name())
	}
	if got := names[0] + "," + names[1] + "," + names[2]; got != "src,filter,sink" {
		t.Fatalf("sourcesFirst = %s", got)
	}
	if first := g.sinksFirst()[0].Name(); first != "sink" {
		t.Fatalf("sinksFirst()[0] = %s", first)
	}
}

func TestGraph_EOSAggregation(t *testing.T) {
	g := NewGraph("eos", WithLogger(quietLogger))
	defer g.Close()
	srcA, sinkA := newTestSource("src-a", nil), newTestSink("sink-a", nil)
	srcB, sinkB := newTestSource("src-b", nil), newTestSink("sink-b", nil)
	if err := g.Add(srcA, sinkA, srcB, sinkB); err != nil {
		t.Fatal(err)
	}
	g.LinkMany(srcA, sinkA)
	g.LinkMany(srcB, sinkB)

	sinkA.PostEOS()
	srcB.PostEOS()
	if ev, _ := g.Bus().Pop(20*time.Millisecond, Kinds(KindEOS)); ev != nil {
		t.Fatalf("EOS posted before every sink finished: %v", SourceName(ev))
	}
	sinkB.PostEOS()
	ev := popKind(t, g, KindEOS)
	if ev.Source() != Object(g) {
		t.Fatalf("EOS source = %s, want the graph", SourceName(ev))
	}

	// Going to Paused again starts a new stream.
	g.SetState(StateReady)
	g.SetState(StatePaused)
	sinkA.PostEOS()
	if ev, _ := g.Bus().Pop(20*time.Millisecond, Kinds(KindEOS)); ev != nil {
		t.Fatal("EOS state survived Ready to Paused")
	}
}

func TestGraph_WatchPorts(t *testing.T) {
	g, src, _, _, _ := newTestGraph(t)
	ports, stop := g.WatchPorts(src)

	p := NewPort("src_0", DirSrc, AnyCaps)
	done := make(chan error, 1)
	go func() { done <- src.AddPort(p) }()

	select {
	case got := <-ports:
		if got != p || got.Element() != Element(src) {
			t.Fatalf("received %v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("port not delivered")
	}
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if err := src.AddPort(NewPort("src_0", DirSrc, AnyCaps)); err == nil {
		t.Fatal("AddPort accepted a duplicate name")
	}

	// After stop, AddPort must not block.
	stop()
	if err := src.AddPort(NewPort("src_1", DirSrc, AnyCaps)); err != nil {
		t.Fatal(err)
	}
}

func TestBase_RemovePortsUnlinks(t *testing.T) {
	g, src, convert, _, _ := newTestGraph(t)
	p := NewPort("src_0", DirSrc, AnyCaps)
	if err := src.AddPort(p); err != nil {
		t.Fatal(err)
	}
	if err := g.Link(p, convert.Port("sink")); err != nil {
		t.Fatal(err)
	}
	removed := src.RemovePorts(func(p *Port) bool { return p.Name() != "src" })
	if len(removed) != 1 || removed[0] != p {
		t.Fatalf("RemovePorts = %v", removed)
	}
	if convert.Port("sink").IsLinked() {
		t.Fatal("convert.sink still linked")
	}
	if n := len(g.Links()); n != 2 {
		t.Fatalf("len(Links()) = %d, want 2", n)
	}
}
