package future

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCancelled is the error a future settles with when Cancel wins.
// errors.Is(ErrCancelled, context.Canceled) holds.
var ErrCancelled = fmt.Errorf("future cancelled: %w", context.Canceled)

// ErrNilRejection replaces a nil error passed to Reject, so a rejected
// future never looks successful.
var ErrNilRejection = errors.New("future rejected with nil error")

// Result is the sum of the two outcomes a future can settle with.
// Exactly one of Value or Err is meaningful: Err == nil means success.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok reports whether the result is a success.
func (r Result[T]) Ok() bool {
	return r.Err == nil
}

// Get unpacks the result into the usual (value, error) pair.
func (r Result[T]) Get() (T, error) {
	return r.Value, r.Err
}

// Future is the read side of an asynchronous value.
//
// Thread-safety: all methods are safe for concurrent use.
type Future[T any] struct {
	mu        sync.Mutex
	done      chan struct{}
	result    Result[T]
	settled   bool
	cancelled bool
	callbacks []func(Result[T])
	cancelers []func()
}

// Promise is the write side of a Future.
type Promise[T any] struct {
	f *Future[T]
}

// NewPromise creates an unsettled promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{f: &Future[T]{done: make(chan struct{})}}
}

// Future returns the read side of the promise.
func (p *Promise[T]) Future() *Future[T] {
	return p.f
}

// Resolve settles the future with a value.
// Returns false if the future was already settled.
func (p *Promise[T]) Resolve(v T) bool {
	return p.f.settle(Result[T]{Value: v})
}

// Reject settles the future with an error.
// Returns false if the future was already settled.
func (p *Promise[T]) Reject(err error) bool {
	if err == nil {
		err = ErrNilRejection
	}
	return p.f.settle(Result[T]{Err: err})
}

// Settle settles the future with a prepared result.
// Returns false if the future was already settled.
func (p *Promise[T]) Settle(r Result[T]) bool {
	if r.Err != nil {
		return p.Reject(r.Err)
	}
	return p.Resolve(r.Value)
}

// OnCancel registers a hook run when the future is cancelled.
// Hooks registered after a cancellation run immediately. Hooks are
// dropped once the future settles any other way.
func (p *Promise[T]) OnCancel(fn func()) {
	f := p.f
	f.mu.Lock()
	if f.cancelled {
		f.mu.Unlock()
		fn()
		return
	}
	if f.settled {
		f.mu.Unlock()
		return
	}
	f.cancelers = append(f.cancelers, fn)
	f.mu.Unlock()
}

// Resolved returns a future already settled with v.
func Resolved[T any](v T) *Future[T] {
	p := NewPromise[T]()
	p.Resolve(v)
	return p.Future()
}

// Rejected returns a future already settled with err.
func Rejected[T any](err error) *Future[T] {
	p := NewPromise[T]()
	p.Reject(err)
	return p.Future()
}

func (f *Future[T]) settle(r Result[T]) bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.result = r
	callbacks := f.callbacks
	f.callbacks = nil
	f.cancelers = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(r)
	}
	return true
}

// Cancel settles a pending future with ErrCancelled and runs the
// registered cancel hooks, then the settle callbacks.
// Returns false if the future had already settled.
func (f *Future[T]) Cancel() bool {
	f.mu.Lock()
	if f.settled {
		f.mu.Unlock()
		return false
	}
	f.settled = true
	f.cancelled = true
	f.result = Result[T]{Err: ErrCancelled}
	r := f.result
	callbacks := f.callbacks
	cancelers := f.cancelers
	f.callbacks = nil
	f.cancelers = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range cancelers {
		fn()
	}
	for _, cb := range callbacks {
		cb(r)
	}
	return true
}

// Done returns a channel that is closed once the future settles.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// IsDone reports whether the future has settled.
func (f *Future[T]) IsDone() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// IsCancelled reports whether the future settled through Cancel.
func (f *Future[T]) IsCancelled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

// Peek returns the result without blocking.
// The boolean is false while the future is still pending.
func (f *Future[T]) Peek() (Result[T], bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.settled
}

// Await blocks until the future settles or ctx is done.
// A ctx deadline only stops the wait; it does not cancel the future.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		// result is immutable once done is closed.
		return f.result.Value, f.result.Err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// OnSettle registers fn to run once with the final result.
//
// fn runs on the goroutine that settles the future, or immediately on the
// calling goroutine if the future has already settled.
func (f *Future[T]) OnSettle(fn func(Result[T])) {
	f.mu.Lock()
	if f.settled {
		r := f.result
		f.mu.Unlock()
		fn(r)
		return
	}
	f.callbacks = append(f.callbacks, fn)
	f.mu.Unlock()
}

// Then returns a future holding fn applied to src's value.
// Errors from src pass through untouched. Cancelling the returned future
// cancels src.
func Then[T, U any](src *Future[T], fn func(T) (U, error)) *Future[U] {
	p := NewPromise[U]()
	p.OnCancel(func() { src.Cancel() })
	src.OnSettle(func(r Result[T]) {
		if r.Err != nil {
			p.Reject(r.Err)
			return
		}
		u, err := fn(r.Value)
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(u)
	})
	return p.Future()
}
