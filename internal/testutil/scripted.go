// Package testutil provides in-memory executors for exercising the fan-out
// combinators without a database.
package testutil

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/resultsets/internal/future"
)

// ErrUnscripted is returned for keys the executor has no outcome for.
var ErrUnscripted = errors.New("no scripted outcome for key")

type outcome[R any] struct {
	value R
	err   error
	delay time.Duration
}

// ScriptedExecutor implements fanout.Executor with per-key canned outcomes.
//
// By default each query settles on its own goroutine right after dispatch,
// or after the configured delay. In gated mode queries stay pending until
// Release is called for their key, which lets a test choose the exact
// completion order.
//
// Thread-safety: all methods are safe for concurrent use. The With* knobs
// are meant to be called before the executor is shared.
type ScriptedExecutor[R any] struct {
	mu           sync.Mutex
	outcomes     map[any]outcome[R]
	dispatchErrs map[int]error
	gated        bool
	gates        map[any][]*future.Promise[R]
	keys         []any
	queries      []string
	handles      []*future.Future[R]

	calls     atomic.Int32
	cancelled atomic.Int32
}

// NewScriptedExecutor creates an executor with no scripted outcomes.
func NewScriptedExecutor[R any]() *ScriptedExecutor[R] {
	return &ScriptedExecutor[R]{
		outcomes:     make(map[any]outcome[R]),
		dispatchErrs: make(map[int]error),
		gates:        make(map[any][]*future.Promise[R]),
	}
}

// WithValue makes queries for key succeed with v.
func (e *ScriptedExecutor[R]) WithValue(key any, v R) *ScriptedExecutor[R] {
	e.mu.Lock()
	defer e.mu.Unlock()
	o := e.outcomes[key]
	o.value, o.err = v, nil
	e.outcomes[key] = o
	return e
}

// WithFailure makes queries for key fail with err after dispatch.
func (e *ScriptedExecutor[R]) WithFailure(key any, err error) *ScriptedExecutor[R] {
	e.mu.Lock()
	defer e.mu.Unlock()
	o := e.outcomes[key]
	o.err = err
	e.outcomes[key] = o
	return e
}

// WithDelay delays settlement of queries for key. Ignored in gated mode.
func (e *ScriptedExecutor[R]) WithDelay(key any, d time.Duration) *ScriptedExecutor[R] {
	e.mu.Lock()
	defer e.mu.Unlock()
	o := e.outcomes[key]
	o.delay = d
	e.outcomes[key] = o
	return e
}

// WithDispatchError makes the call with the given zero-based index return
// err synchronously instead of a future.
func (e *ScriptedExecutor[R]) WithDispatchError(index int, err error) *ScriptedExecutor[R] {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dispatchErrs[index] = err
	return e
}

// Gated holds every query pending until Release is called for its key.
func (e *ScriptedExecutor[R]) Gated() *ScriptedExecutor[R] {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gated = true
	return e
}

// ExecuteAsync implements fanout.Executor.
func (e *ScriptedExecutor[R]) ExecuteAsync(query string, key any) (*future.Future[R], error) {
	index := int(e.calls.Add(1)) - 1

	e.mu.Lock()
	e.keys = append(e.keys, key)
	e.queries = append(e.queries, query)
	if err, ok := e.dispatchErrs[index]; ok {
		e.mu.Unlock()
		return nil, err
	}

	p := future.NewPromise[R]()
	p.OnCancel(func() { e.cancelled.Add(1) })
	e.handles = append(e.handles, p.Future())

	o, ok := e.outcomes[key]
	if !ok {
		o = outcome[R]{err: fmt.Errorf("%w: %v", ErrUnscripted, key)}
	}
	if e.gated {
		e.gates[key] = append(e.gates[key], p)
		e.mu.Unlock()
		return p.Future(), nil
	}
	e.mu.Unlock()

	settle := func() { settleOutcome(p, o) }
	if o.delay > 0 {
		time.AfterFunc(o.delay, settle)
	} else {
		go settle()
	}
	return p.Future(), nil
}

func settleOutcome[R any](p *future.Promise[R], o outcome[R]) {
	if o.err != nil {
		p.Reject(o.err)
		return
	}
	p.Resolve(o.value)
}

// Release settles the oldest gated query for key on the calling goroutine.
// Returns false if no query for key is waiting.
func (e *ScriptedExecutor[R]) Release(key any) bool {
	e.mu.Lock()
	waiting := e.gates[key]
	if len(waiting) == 0 {
		e.mu.Unlock()
		return false
	}
	p := waiting[0]
	e.gates[key] = waiting[1:]
	o, ok := e.outcomes[key]
	if !ok {
		o = outcome[R]{err: fmt.Errorf("%w: %v", ErrUnscripted, key)}
	}
	e.mu.Unlock()

	settleOutcome(p, o)
	return true
}

// Calls returns how many times ExecuteAsync was invoked, refused calls included.
func (e *ScriptedExecutor[R]) Calls() int {
	return int(e.calls.Load())
}

// Cancelled returns how many dispatched futures were cancelled.
func (e *ScriptedExecutor[R]) Cancelled() int {
	return int(e.cancelled.Load())
}

// Keys returns the keys in the order they were dispatched.
func (e *ScriptedExecutor[R]) Keys() []any {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]any(nil), e.keys...)
}

// Queries returns the query templates in dispatch order.
func (e *ScriptedExecutor[R]) Queries() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.queries...)
}

// Handles returns the futures handed out, in dispatch order.
func (e *ScriptedExecutor[R]) Handles() []*future.Future[R] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*future.Future[R](nil), e.handles...)
}

// Keys converts strings to the []any a fan-out call takes.
func Keys(keys ...string) []any {
	out := make([]any, len(keys))
	for i, k := range keys {
		out[i] = k
	}
	return out
}
