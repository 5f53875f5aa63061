package elements

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/haivivi/gizplay/pkg/audio/pcm"
	"github.com/haivivi/gizplay/pkg/pipeline"
	"github.com/haivivi/gizplay/pkg/source"
)

var quietLogger = slog.New(slog.DiscardHandler)

func testFactory() *pipeline.Factory {
	return NewFactory(Options{Logger: quietLogger})
}

func newTestPlaybin(t *testing.T, uri string, opts PlaybinOptions) *Playbin {
	t.Helper()
	if opts.Sink == "" {
		opts.Sink = KindFakeSink
	}
	opts.Logger = quietLogger
	p, err := NewPlaybin(testFactory(), "test-pipeline", uri, opts)
	if err != nil {
		t.Fatalf("NewPlaybin: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func play(t *testing.T, g *pipeline.Graph) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := g.SetStateAndWait(ctx, pipeline.StatePlaying); err != nil {
		t.Fatalf("SetStateAndWait(Playing): %v", err)
	}
}

// waitEvent pops the next event of the given kinds, failing on timeout.
func waitEvent(t *testing.T, g *pipeline.Graph, kinds pipeline.KindSet) pipeline.Event {
	t.Helper()
	ev, err := g.Bus().Pop(5*time.Second, kinds)
	if err != nil {
		t.Fatalf("Pop: %v", err)
	}
	if ev == nil {
		t.Fatalf("no %s event before timeout", kinds)
	}
	return ev
}

var endKinds = pipeline.Kinds(pipeline.KindEOS, pipeline.KindError)

func expectEOS(t *testing.T, g *pipeline.Graph) {
	t.Helper()
	switch ev := waitEvent(t, g, endKinds).(type) {
	case *pipeline.EOSEvent:
		if ev.Source() != pipeline.Object(g) {
			t.Fatalf("EOS source = %s, want the graph", pipeline.SourceName(ev))
		}
	case *pipeline.ErrorEvent:
		t.Fatalf("error from %s: %v", pipeline.SourceName(ev), ev.Err)
	}
}

func TestPlaybin_PlaysToEndOfStream(t *testing.T) {
	p := newTestPlaybin(t, "test://tone?duration=200ms&rate=8000&channels=1", PlaybinOptions{
		SinkProps: map[string]any{"sync": false},
	})
	play(t, p.Graph)
	expectEOS(t, p.Graph)

	if !p.Convert.Port("sink").IsLinked() {
		t.Fatal("convert.sink was not linked by the negotiator")
	}
	caps, ok := p.Sink.Port("sink").CurrentCaps()
	if !ok {
		t.Fatal("sink has no caps")
	}
	want := pipeline.AudioCaps(pcm.Format{SampleRate: 8000, Channels: 1})
	if !caps.Equal(want) {
		t.Fatalf("sink caps = %s, want %s", caps, want)
	}
}

func TestPlaybin_NegotiatesOutputFormat(t *testing.T) {
	p := newTestPlaybin(t, "test://tone?duration=100ms&rate=8000&channels=1", PlaybinOptions{
		SinkProps: map[string]any{"sync": false},
		Rate:      16000,
		Channels:  2,
	})
	play(t, p.Graph)
	expectEOS(t, p.Graph)

	tests := []struct {
		port string
		want pcm.Format
	}{
		{"convert.sink", pcm.Format{SampleRate: 8000, Channels: 1}},
		{"convert.src", pcm.Format{SampleRate: 8000, Channels: 2}},
		{"resample.src", pcm.Format{SampleRate: 16000, Channels: 2}},
		{"sink.sink", pcm.Format{SampleRate: 16000, Channels: 2}},
	}
	for _, tt := range tests {
		port, err := p.Graph.PortByRef(tt.port)
		if err != nil {
			t.Fatalf("PortByRef(%s): %v", tt.port, err)
		}
		caps, _ := port.CurrentCaps()
		got, err := caps.AudioFormat()
		if err != nil {
			t.Fatalf("%s: %v", tt.port, err)
		}
		if got != tt.want {
			t.Errorf("%s format = %v, want %v", tt.port, got, tt.want)
		}
	}
}

func TestPlaybin_IgnoresVideoStream(t *testing.T) {
	p := newTestPlaybin(t, "test://tone?duration=100ms&rate=8000&channels=1&video=1", PlaybinOptions{
		SinkProps: map[string]any{"sync": false},
	})
	var mu sync.Mutex
	outcomes := map[pipeline.Outcome]int{}
	p.Negotiator.OnOutcome = func(_ *pipeline.Port, o pipeline.Outcome, _ error) {
		mu.Lock()
		outcomes[o]++
		mu.Unlock()
	}
	play(t, p.Graph)
	expectEOS(t, p.Graph)

	mu.Lock()
	defer mu.Unlock()
	if outcomes[pipeline.OutcomeLinked] != 1 {
		t.Errorf("linked %d times, want 1", outcomes[pipeline.OutcomeLinked])
	}
	// src_1 is skipped either as video or because convert is taken.
	if n := outcomes[pipeline.OutcomeIgnoredKind] + outcomes[pipeline.OutcomeAlreadyLinked]; n != 1 {
		t.Errorf("skipped %d ports, want 1", n)
	}
	if p.Source.Port("src_1").IsLinked() {
		t.Error("video port was linked")
	}
}

func TestFakeSink_PrerollIsAsync(t *testing.T) {
	p := newTestPlaybin(t, "test://tone?duration=2s&rate=8000&channels=1", PlaybinOptions{})

	if ret := p.Graph.SetState(pipeline.StatePaused); ret != pipeline.Async {
		t.Fatalf("SetState(Paused) = %s, want async", ret)
	}
	ret, cur, pending := p.Graph.GetState(5 * time.Second)
	if ret != pipeline.Success || cur != pipeline.StatePaused || pending != pipeline.StateNone {
		t.Fatalf("GetState = (%s, %s, %s), want (success, paused, none)", ret, cur, pending)
	}
	pos, ok := p.Graph.QueryPosition()
	if !ok || pos != 0 {
		t.Fatalf("QueryPosition = (%v, %v), want (0, true)", pos, ok)
	}
}

func TestFakeSink_SyncPacesPlayback(t *testing.T) {
	p := newTestPlaybin(t, "test://tone?duration=300ms&rate=8000&channels=1", PlaybinOptions{})
	start := time.Now()
	play(t, p.Graph)
	expectEOS(t, p.Graph)
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Fatalf("EOS after %v, want at least the stream duration", elapsed)
	}
	pos, ok := p.Graph.QueryPosition()
	if !ok || pos != 300*time.Millisecond {
		t.Fatalf("QueryPosition at EOS = (%v, %v), want (300ms, true)", pos, ok)
	}
}

func TestPlaybin_QueriesAndSeek(t *testing.T) {
	p := newTestPlaybin(t, "test://tone?duration=10s&rate=8000&channels=1", PlaybinOptions{})
	play(t, p.Graph)

	if d, ok := p.Graph.QueryDuration(); !ok || d != 10*time.Second {
		t.Fatalf("QueryDuration = (%v, %v), want (10s, true)", d, ok)
	}
	r := p.Graph.QuerySeeking()
	if !r.Seekable || r.Start != 0 || r.End != 10*time.Second {
		t.Fatalf("QuerySeeking = %+v", r)
	}

	time.Sleep(50 * time.Millisecond)
	pos, err := p.Graph.Seek(5*time.Second, pipeline.SeekFlush|pipeline.SeekKeyUnit)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	// Tones are raw, so key-unit seeks are exact.
	if pos != 5*time.Second {
		t.Fatalf("Seek reached %v, want 5s", pos)
	}
	time.Sleep(50 * time.Millisecond)
	got, ok := p.Graph.QueryPosition()
	if !ok || got < 5*time.Second || got > 6*time.Second {
		t.Fatalf("QueryPosition after seek = (%v, %v), want about 5s", got, ok)
	}
}

func TestPlaybin_SeekPastEndReachesEOS(t *testing.T) {
	p := newTestPlaybin(t, "test://tone?duration=10s&rate=8000&channels=1", PlaybinOptions{})
	play(t, p.Graph)
	if _, err := p.Graph.Seek(time.Minute, pipeline.SeekFlush); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	expectEOS(t, p.Graph)
}

func TestFileSink_WritesLocalFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.pcm")
	p := newTestPlaybin(t, "test://tone?duration=200ms&rate=8000&channels=1", PlaybinOptions{
		Sink:      KindFileSink,
		SinkProps: map[string]any{"location": out},
		Channels:  2,
	})
	play(t, p.Graph)
	expectEOS(t, p.Graph)
	if ret := p.Graph.SetState(pipeline.StateIdle); ret != pipeline.Success {
		t.Fatalf("SetState(Idle) = %s", ret)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	// 200ms at 8000 Hz, upmixed to stereo S16LE.
	if len(data) != 1600*2*2 {
		t.Fatalf("wrote %d bytes, want %d", len(data), 1600*2*2)
	}
}

func TestFileSink_NoLocation(t *testing.T) {
	p := newTestPlaybin(t, "test://tone?duration=1s&rate=8000&channels=1", PlaybinOptions{
		Sink: KindFileSink,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.Graph.SetStateAndWait(ctx, pipeline.StatePlaying); !errors.Is(err, pipeline.ErrStateChange) {
		t.Fatalf("SetStateAndWait = %v, want ErrStateChange", err)
	}
	ev, ok := waitEvent(t, p.Graph, pipeline.Kinds(pipeline.KindError)).(*pipeline.ErrorEvent)
	if !ok {
		t.Fatal("expected an error event")
	}
	if !errors.Is(ev.Err, ErrNoLocation) {
		t.Fatalf("error = %v, want ErrNoLocation", ev.Err)
	}
	if pipeline.SourceName(ev) != "sink" {
		t.Fatalf("error source = %s, want sink", pipeline.SourceName(ev))
	}
}

func newDecodeBinGraph(t *testing.T, uri string) (*pipeline.Graph, *URIDecodeBin) {
	t.Helper()
	g := pipeline.NewGraph("test-pipeline", pipeline.WithLogger(quietLogger))
	d := NewURIDecodeBin("source", &source.Opener{Logger: quietLogger})
	if err := d.SetProperty("uri", uri); err != nil {
		t.Fatalf("SetProperty(uri): %v", err)
	}
	if err := g.Add(d); err != nil {
		t.Fatalf("Add: %v", err)
	}
	t.Cleanup(func() { g.Close() })
	return g, d
}

func TestURIDecodeBin_NotLinked(t *testing.T) {
	g, d := newDecodeBinGraph(t, "test://tone?duration=1s")
	if err := d.SetProperty("link-timeout", "50ms"); err != nil {
		t.Fatalf("SetProperty(link-timeout): %v", err)
	}
	if ret := g.SetState(pipeline.StatePaused); ret != pipeline.Success {
		t.Fatalf("SetState(Paused) = %s", ret)
	}
	ev := waitEvent(t, g, pipeline.Kinds(pipeline.KindError)).(*pipeline.ErrorEvent)
	if ev.Err.Message != "not-linked" || !errors.Is(ev.Err, ErrNotLinked) {
		t.Fatalf("error = %v, want not-linked", ev.Err)
	}
	if !strings.Contains(ev.Err.Debug, "src_0") {
		t.Fatalf("debug %q does not name the port", ev.Err.Debug)
	}
}

func TestURIDecodeBin_OpenFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.wav")
	g, _ := newDecodeBinGraph(t, missing)
	g.SetState(pipeline.StatePaused)

	ev := waitEvent(t, g, pipeline.Kinds(pipeline.KindError)).(*pipeline.ErrorEvent)
	if !errors.Is(ev.Err, os.ErrNotExist) {
		t.Fatalf("error = %v, want os.ErrNotExist", ev.Err)
	}
	if !strings.Contains(ev.Err.Debug, missing) {
		t.Fatalf("debug %q does not carry the URI", ev.Err.Debug)
	}
}

func TestURIDecodeBin_RequiresURI(t *testing.T) {
	g, _ := newDecodeBinGraph(t, "")
	if ret := g.SetState(pipeline.StateReady); ret != pipeline.Failure {
		t.Fatalf("SetState(Ready) = %s, want failure", ret)
	}
	ev := waitEvent(t, g, pipeline.Kinds(pipeline.KindError)).(*pipeline.ErrorEvent)
	if ev.Err.Message != "no URI set" {
		t.Fatalf("error message = %q", ev.Err.Message)
	}
}

func TestURIDecodeBin_PortsFollowState(t *testing.T) {
	g, d := newDecodeBinGraph(t, "test://tone?duration=1s&video=1")
	d.SetProperty("link-timeout", time.Duration(0))
	ports, stop := g.WatchPorts(d)
	defer stop()

	g.SetState(pipeline.StatePaused)
	var names []string
	for range 2 {
		select {
		case p := <-ports:
			names = append(names, p.Name())
		case <-time.After(5 * time.Second):
			t.Fatalf("ports announced so far: %v", names)
		}
	}
	if names[0] != "src_0" || names[1] != "src_1" {
		t.Fatalf("ports = %v, want [src_0 src_1]", names)
	}
	audio, _ := d.Port("src_0").CurrentCaps()
	video, _ := d.Port("src_1").CurrentCaps()
	if !audio.HasKind(pipeline.MediaAudioRaw) || !video.HasKind(pipeline.MediaVideoRaw) {
		t.Fatalf("caps = %s, %s", audio, video)
	}
	if d, ok := g.QueryDuration(); !ok || d != time.Second {
		t.Fatalf("QueryDuration = (%v, %v), want (1s, true)", d, ok)
	}

	if ret := g.SetState(pipeline.StateReady); ret != pipeline.Success {
		t.Fatalf("SetState(Ready) = %s", ret)
	}
	if n := len(d.Ports()); n != 0 {
		t.Fatalf("%d ports left after going to Ready", n)
	}
}

func TestAudioFilter_OutputFormat(t *testing.T) {
	in := pcm.Format{SampleRate: 8000, Channels: 1}
	tests := []struct {
		name  string
		el    *audioFilter
		value int
		want  pcm.Format
	}{
		{"convert passthrough", &NewAudioConvert("c").audioFilter, 0, in},
		{"convert to stereo", &NewAudioConvert("c").audioFilter, 2, pcm.Format{SampleRate: 8000, Channels: 2}},
		{"resample passthrough", &NewAudioResample("r").audioFilter, 0, in},
		{"resample to 48k", &NewAudioResample("r").audioFilter, 48000, pcm.Format{SampleRate: 48000, Channels: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.el.SetProperty(tt.el.param, tt.value); err != nil {
				t.Fatalf("SetProperty: %v", err)
			}
			if got := tt.el.outputFormat(in); got != tt.want {
				t.Fatalf("outputFormat = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewPlaybin_Errors(t *testing.T) {
	tests := []struct {
		name string
		opts PlaybinOptions
		want error
	}{
		{"unknown sink", PlaybinOptions{Sink: "nosuchsink"}, pipeline.ErrElementCreation},
		{"unknown sink property", PlaybinOptions{Sink: KindFakeSink, SinkProps: map[string]any{"volume": 1}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Logger = quietLogger
			_, err := NewPlaybin(testFactory(), "p", "test://tone", tt.opts)
			if err == nil {
				t.Fatal("NewPlaybin succeeded")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegister_Kinds(t *testing.T) {
	f := testFactory()
	want := []string{KindAudioConvert, KindAudioResample, KindAutoAudioSink, KindFakeSink, KindFileSink, KindURIDecodeBin}
	got := f.Kinds()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("Kinds() = %v, want %v", got, want)
	}
	if err := Register(f, Options{}); err == nil {
		t.Fatal("registering twice succeeded")
	}
}
