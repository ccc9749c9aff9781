package fanout

import (
	"sync"

	"github.com/roach88/resultsets/internal/future"
)

// CollectInCompletionOrder dispatches one query per key and returns N
// futures in completion order: the future at position i settles no later
// than the one at i+1. Each future carries the outcome of whichever query
// landed in it, success or failure.
//
// Cancelling one returned future frees its position without touching the
// others. Once every remaining position is filled, the queries still in
// flight have nowhere to land and are cancelled.
func CollectInCompletionOrder[R any](exec Executor[R], query string, keys ...any) ([]*future.Future[R], error) {
	pending, err := Dispatch(exec, query, keys...)
	if err != nil {
		return nil, err
	}
	return InCompletionOrder(pending), nil
}

// InCompletionOrder reorders already-dispatched queries the way
// CollectInCompletionOrder does.
func InCompletionOrder[R any](pending []Pending[R]) []*future.Future[R] {
	m := &orderedMerge[R]{
		inputs:  pending,
		outputs: make([]*future.Promise[R], len(pending)),
	}
	out := make([]*future.Future[R], len(pending))
	for i := range m.outputs {
		p := future.NewPromise[R]()
		p.OnCancel(m.released)
		m.outputs[i] = p
		out[i] = p.Future()
	}
	for _, in := range pending {
		in.Future.OnSettle(m.place)
	}
	return out
}

// orderedMerge places each settled input into the next free output.
//
// Settled inputs are queued under mu and a single drainer settles outputs
// with mu released, so output callbacks may settle or cancel other inputs
// and outputs. A nested place only enqueues; the drainer picks it up, which
// keeps settle order equal to position order.
type orderedMerge[R any] struct {
	mu       sync.Mutex
	inputs   []Pending[R]
	outputs  []*future.Promise[R]
	next     int
	queue    []future.Result[R]
	draining bool
}

func (m *orderedMerge[R]) place(r future.Result[R]) {
	m.mu.Lock()
	m.queue = append(m.queue, r)
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true

	for len(m.queue) > 0 && m.next < len(m.outputs) {
		r := m.queue[0]
		m.queue = m.queue[1:]
		for m.next < len(m.outputs) {
			out := m.outputs[m.next]
			m.next++
			m.mu.Unlock()
			// A cancelled output refuses the result; try the next one.
			settled := out.Settle(r)
			m.mu.Lock()
			if settled {
				break
			}
		}
	}
	for m.next < len(m.outputs) && m.outputs[m.next].Future().IsDone() {
		m.next++
	}
	full := m.next == len(m.outputs)
	if full {
		m.queue = nil
	}
	m.draining = false
	m.mu.Unlock()

	if full {
		m.cancelStranded()
	}
}

// released is the cancel hook of every output.
func (m *orderedMerge[R]) released() {
	m.cancelStranded()
}

// cancelStranded cancels the inputs still in flight once no output is
// left to receive them.
func (m *orderedMerge[R]) cancelStranded() {
	for _, out := range m.outputs {
		if !out.Future().IsDone() {
			return
		}
	}
	for _, in := range m.inputs {
		in.Future.Cancel()
	}
}
