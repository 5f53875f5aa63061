package pipeline

import (
	"context"
	"log/slog"
)

// Outcome is the result of offering a new port to a Negotiator.
type Outcome int

const (
	// OutcomeLinked means the port was linked to the sink.
	OutcomeLinked Outcome = iota
	// OutcomeAlreadyLinked means the sink already had a link.
	OutcomeAlreadyLinked
	// OutcomeNoCaps means the port had no caps yet.
	OutcomeNoCaps
	// OutcomeIgnoredKind means the port carries a media kind the sink does
	// not accept.
	OutcomeIgnoredKind
	// OutcomeLinkFailed means the kinds matched but the link was refused.
	OutcomeLinkFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeLinked:
		return "linked"
	case OutcomeAlreadyLinked:
		return "already-linked"
	case OutcomeNoCaps:
		return "no-caps"
	case OutcomeIgnoredKind:
		return "ignored-kind"
	case OutcomeLinkFailed:
		return "link-failed"
	default:
		return "unknown"
	}
}

// Negotiator links ports that appear at run time to a waiting sink port.
// Only the first suitable port is linked; the rest are ignored. None of the
// outcomes is an error for the graph.
//
// Negotiate is safe to call from any goroutine.
type Negotiator struct {
	graph  *Graph
	sink   *Port
	accept string
	log    *slog.Logger

	// OnOutcome, if set, is called after every negotiation.
	OnOutcome func(src *Port, o Outcome, err error)
}

// NewNegotiator returns a negotiator linking ports whose media kind starts
// with accept (for example "audio/x-raw") to sink.
func NewNegotiator(g *Graph, sink *Port, accept string) *Negotiator {
	return &Negotiator{
		graph:  g,
		sink:   sink,
		accept: accept,
		log:    g.Logger().With("target", sink.FullName()),
	}
}

// Sink returns the port the negotiator links to.
func (n *Negotiator) Sink() *Port { return n.sink }

// Accept returns the accepted media kind prefix.
func (n *Negotiator) Accept() string { return n.accept }

// Negotiate offers src to the sink.
func (n *Negotiator) Negotiate(src *Port) Outcome {
	var owner string
	if el := src.Element(); el != nil {
		owner = el.Name()
	}
	log := n.log.With("port", src.Name(), "element", owner)
	log.Info("received new port")

	if n.sink.IsLinked() {
		log.Info("already linked, ignoring")
		return n.report(src, OutcomeAlreadyLinked, nil)
	}
	caps, ok := src.CurrentCaps()
	if !ok {
		log.Info("port has no caps yet, ignoring")
		return n.report(src, OutcomeNoCaps, nil)
	}
	if !caps.HasKind(n.accept) {
		log.Info("port type not accepted, ignoring", "type", caps.Kind, "accept", n.accept)
		return n.report(src, OutcomeIgnoredKind, nil)
	}
	linked, err := n.graph.TryLink(src, n.sink)
	if err != nil {
		log.Warn("link failed", "type", caps.Kind, "caps", caps.String(), "error", err)
		return n.report(src, OutcomeLinkFailed, err)
	}
	if !linked {
		log.Info("already linked, ignoring")
		return n.report(src, OutcomeAlreadyLinked, nil)
	}
	log.Info("link succeeded", "type", caps.Kind, "caps", caps.String())
	return n.report(src, OutcomeLinked, nil)
}

func (n *Negotiator) report(src *Port, o Outcome, err error) Outcome {
	if n.OnOutcome != nil {
		n.OnOutcome(src, o, err)
	}
	return o
}

// Run negotiates every port received from ports until the channel is
// closed or ctx is done.
func (n *Negotiator) Run(ctx context.Context, ports <-chan *Port) {
	for {
		select {
		case <-ctx.Done():
			return
		case p, ok := <-ports:
			if !ok {
				return
			}
			n.Negotiate(p)
		}
	}
}

// Watch subscribes to the ports el creates and negotiates them on a new
// goroutine. stop ends the subscription and waits for the goroutine.
func (n *Negotiator) Watch(ctx context.Context, el Element) (stop func()) {
	ports, unwatch := n.graph.WatchPorts(el)
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		n.Run(ctx, ports)
	}()
	return func() {
		cancel()
		unwatch()
		<-done
	}
}
