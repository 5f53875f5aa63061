// Package pipeline assembles media elements into a graph and drives it.
//
// A Graph owns named Elements and the Links between their Ports. Ports carry
// Caps describing the media they transport. Links made while assembling the
// graph are static; ports that only appear once an element starts working
// (a decoder discovering the streams of a file) are linked later by a
// Negotiator that receives each new port over a channel.
//
// The graph moves through the lifecycle states Idle, Ready, Paused and
// Playing one step at a time. An element may finish a step asynchronously,
// in which case SetState returns Async and the graph posts a StateChanged
// event naming itself once every element has caught up.
//
// Everything the graph and its elements have to report is posted to the
// Bus. Pop waits for the next event whose kind is in a KindSet:
//
//	for {
//	    ev, err := g.Bus().Pop(100*time.Millisecond, pipeline.Kinds(pipeline.KindError, pipeline.KindEOS))
//	    if err != nil {
//	        return err
//	    }
//	    if ev == nil {
//	        continue // timeout
//	    }
//	    ...
//	}
//
// Data moves by pulling: a sink asks its input port for a reader, which
// resolves through the linked upstream elements to the source.
package pipeline
