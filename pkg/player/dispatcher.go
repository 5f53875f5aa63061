package player

import (
	"log/slog"
	"time"

	"github.com/samber/mo"

	"github.com/haivivi/gizplay/pkg/pipeline"
)

// Dispatcher applies bus events to a Session.
type Dispatcher struct {
	pipe      Pipeline
	transport *Transport
	log       *slog.Logger

	// OnStateChanged, if set, is called for state changes of the pipeline
	// itself after the session is updated.
	OnStateChanged func(s *Session, ev *pipeline.StateChangedEvent)
}

func NewDispatcher(p Pipeline, t *Transport, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{pipe: p, transport: t, log: log}
}

// Handle updates s for ev.
func (d *Dispatcher) Handle(s *Session, ev pipeline.Event) {
	switch ev := ev.(type) {
	case *pipeline.ErrorEvent:
		src := pipeline.SourceName(ev)
		d.log.Error("error received from element", "element", src, "error", ev.Err.Error())
		d.log.Error("debugging information", "element", src, "debug", ev.Err.DebugOrNone())
		s.Err, s.ErrSource = ev.Err, src
		s.end(OutcomeError)

	case *pipeline.EOSEvent:
		d.log.Info("end of stream reached")
		s.end(OutcomeEOS)

	case *pipeline.DurationChangedEvent:
		d.log.Debug("duration changed", "element", pipeline.SourceName(ev))
		s.Duration = mo.None[time.Duration]()

	case *pipeline.StateChangedEvent:
		if ev.Source() != pipeline.Object(d.pipe) {
			return
		}
		d.log.Info("pipeline state changed", "old", ev.Old, "new", ev.New, "pending", ev.Pending)
		s.Playing = ev.New == pipeline.StatePlaying
		if s.Playing {
			d.querySeeking(s)
		}
		if d.OnStateChanged != nil {
			d.OnStateChanged(s, ev)
		}

	default:
		d.log.Warn("unexpected event received", "kind", ev.Kind(), "element", pipeline.SourceName(ev))
	}
}

func (d *Dispatcher) querySeeking(s *Session) {
	s.SeekEnabled, s.SeekStart, s.SeekEnd = d.transport.QuerySeekCapability()
	if !s.SeekEnabled {
		d.log.Info("seeking is disabled for this stream")
		return
	}
	d.log.Info("seeking is enabled", "from", s.SeekStart, "to", s.SeekEnd)
}
