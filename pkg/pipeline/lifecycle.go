package pipeline

import (
	"context"
	"fmt"
	"time"
)

// State returns the state the graph has fully reached.
func (g *Graph) State() State {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	return g.state
}

// SetState moves the graph toward target one step at a time. Each step is
// applied to the elements sinks first. A step is committed, and a
// StateChanged event naming the graph is posted, once every element has
// reached it.
//
// SetState returns Success when target was reached, Async when an element
// is still completing a step (the walk then resumes on its own), or Failure
// when an element refused a step. Requesting a lower state while an
// asynchronous step is in progress cancels that step.
func (g *Graph) SetState(target State) StateChangeReturn {
	if target < StateIdle || target > StatePlaying {
		return Failure
	}
	g.stateMu.Lock()
	defer g.stateMu.Unlock()

	g.log.Debug("set state", "state", g.state, "target", target, "pending", g.pending)
	if g.pending != StateNone {
		if target > g.state {
			g.target = target
			return Async
		}
		g.cancelAsyncLocked()
	}
	g.target = target
	g.settleLocked()
	return g.walkLocked()
}

// GetState waits up to timeout for a pending step to finish. It returns
// the result of the last state change, the current state and the pending
// state. A negative timeout waits forever.
func (g *Graph) GetState(timeout time.Duration) (StateChangeReturn, State, State) {
	var expired <-chan time.Time
	if timeout >= 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}
	for {
		g.stateMu.Lock()
		last, cur, pending, ch := g.last, g.state, g.pending, g.changed
		g.stateMu.Unlock()
		if pending == StateNone {
			return last, cur, StateNone
		}
		select {
		case <-ch:
		case <-expired:
			return Async, cur, pending
		}
	}
}

// SetStateAndWait requests target and blocks until the graph reaches it,
// a step fails, or ctx is done.
func (g *Graph) SetStateAndWait(ctx context.Context, target State) error {
	switch g.SetState(target) {
	case Success:
		return nil
	case Failure:
		return fmt.Errorf("%w: %s to %s", ErrStateChange, g.name, target)
	}
	for {
		g.stateMu.Lock()
		last, cur, pending, want, ch := g.last, g.state, g.pending, g.target, g.changed
		g.stateMu.Unlock()
		switch {
		case last == Failure:
			return fmt.Errorf("%w: %s to %s", ErrStateChange, g.name, target)
		case cur == target && pending == StateNone:
			return nil
		case want != target:
			return fmt.Errorf("%w: %s: target changed to %s", ErrStateChange, g.name, want)
		}
		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (g *Graph) walkLocked() StateChangeReturn {
	for g.state != g.target {
		next := stepToward(g.state, g.target)
		if r := g.stepLocked(next); r != Success {
			g.last = r
			g.notifyLocked()
			return r
		}
		g.commitLocked(next)
	}
	g.last = Success
	g.notifyLocked()
	return Success
}

// stepLocked asks every element to reach next. Elements answering Async
// are recorded; the step commits when the last of them calls CommitState.
func (g *Graph) stepLocked(next State) StateChangeReturn {
	if next == StatePaused && g.state == StateReady {
		g.resetEOS()
	}
	waiting := make(map[Element]bool)
	for _, el := range g.sinksFirst() {
		switch g.changeElementLocked(el, next) {
		case Failure:
			g.log.Warn("element failed to change state", "element", el.Name(), "target", next)
			for w := range waiting {
				w.base().setPending(StateNone)
			}
			return Failure
		case Async:
			waiting[el] = true
		}
	}
	if len(waiting) > 0 {
		g.pending = next
		g.waiting = waiting
		g.log.Debug("waiting for elements", "state", next, "count", len(waiting))
		return Async
	}
	return Success
}

// changeElementLocked walks el from its own state to next, which may take
// more than one step for an element that lags behind the graph.
func (g *Graph) changeElementLocked(el Element, next State) StateChangeReturn {
	b := el.base()
	for {
		cur := b.State()
		if cur == next {
			return Success
		}
		t := Transition{From: cur, To: stepToward(cur, next)}
		if t.Upward() {
			b.setPending(t.To)
		} else {
			b.setPending(StateNone)
		}
		switch el.ChangeState(t) {
		case Failure:
			b.setPending(StateNone)
			return Failure
		case Async:
			if t.Upward() {
				if b.State() == t.To {
					// Committed before ChangeState returned.
					continue
				}
				return Async
			}
		}
		b.setState(t.To)
		g.post(NewStateChangedEvent(el, t.From, t.To, StateNone))
	}
}

func (g *Graph) commitLocked(next State) {
	old := g.state
	g.state = next
	g.pending = StateNone
	g.waiting = nil
	pending := StateNone
	if next != g.target {
		pending = g.target
	}
	g.log.Debug("state changed", "old", old, "new", next, "pending", pending)
	g.post(NewStateChangedEvent(g, old, next, pending))
	g.notifyLocked()
}

// settleLocked brings elements that drifted from the graph state back to
// it, for example after a failed step left some of them one state higher.
func (g *Graph) settleLocked() {
	for _, el := range g.sinksFirst() {
		if el.State() == g.state {
			continue
		}
		if r := g.changeElementLocked(el, g.state); r == Failure {
			g.log.Warn("element failed to resync", "element", el.Name(), "state", g.state)
		}
	}
}

// cancelAsyncLocked abandons the pending step. Waiting elements are told to
// undo it through a downward transition.
func (g *Graph) cancelAsyncLocked() {
	for el := range g.waiting {
		el.base().setPending(StateNone)
		el.ChangeState(Transition{From: g.pending, To: g.state})
	}
	g.log.Debug("pending state cancelled", "pending", g.pending)
	g.pending = StateNone
	g.waiting = nil
	g.notifyLocked()
}

func (g *Graph) notifyLocked() {
	close(g.changed)
	g.changed = make(chan struct{})
}

func (g *Graph) asyncDone(el Element) {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	if !g.waiting[el] {
		return
	}
	delete(g.waiting, el)
	if len(g.waiting) > 0 {
		return
	}
	g.commitLocked(g.pending)
	g.post(NewAsyncDoneEvent(g))
	if g.walkLocked() == Failure {
		g.post(NewErrorEvent(g, NewError("state change failed",
			fmt.Sprintf("%s: %s to %s", g.name, g.state, g.target), ErrStateChange)))
	}
}

func (g *Graph) asyncFailed(el Element) {
	g.stateMu.Lock()
	defer g.stateMu.Unlock()
	if !g.waiting[el] {
		return
	}
	for w := range g.waiting {
		w.base().setPending(StateNone)
	}
	g.log.Warn("asynchronous state change failed", "element", el.Name(), "pending", g.pending)
	g.pending = StateNone
	g.waiting = nil
	g.last = Failure
	g.notifyLocked()
}
