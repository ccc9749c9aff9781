package fanout

import (
	"sync/atomic"

	"github.com/roach88/resultsets/internal/future"
)

// Slot is the outcome of one query inside a Partial.
type Slot[R any] struct {
	Index int
	Key   any
	Value R
	Err   error
}

// Ok reports whether the query behind the slot succeeded.
func (s Slot[R]) Ok() bool {
	return s.Err == nil
}

// Partial is the best-effort aggregate of a fan-out: one slot per key, in
// input order. Failed queries keep their slot with Err set, so callers can
// tell "no rows" apart from "query failed".
type Partial[R any] struct {
	Slots []Slot[R]
}

// Len returns the number of slots, which equals the number of keys.
func (p Partial[R]) Len() int {
	return len(p.Slots)
}

// Values returns the successful results in input order.
func (p Partial[R]) Values() []R {
	values := make([]R, 0, len(p.Slots))
	for _, s := range p.Slots {
		if s.Ok() {
			values = append(values, s.Value)
		}
	}
	return values
}

// Failures returns how many queries failed.
func (p Partial[R]) Failures() int {
	n := 0
	for _, s := range p.Slots {
		if !s.Ok() {
			n++
		}
	}
	return n
}

// Errors returns the errors of the failed queries in input order.
func (p Partial[R]) Errors() []error {
	var errs []error
	for _, s := range p.Slots {
		if !s.Ok() {
			errs = append(errs, s.Err)
		}
	}
	return errs
}

// CollectAllOrPartial dispatches one query per key and returns a future
// that settles once every query has settled.
//
// The aggregate only fails if the caller cancels it. Cancelling it attempts
// to cancel every query still in flight.
func CollectAllOrPartial[R any](exec Executor[R], query string, keys ...any) (*future.Future[Partial[R]], error) {
	pending, err := Dispatch(exec, query, keys...)
	if err != nil {
		return nil, err
	}
	return AllOrPartial(pending), nil
}

// AllOrPartial combines already-dispatched queries the way
// CollectAllOrPartial does.
func AllOrPartial[R any](pending []Pending[R]) *future.Future[Partial[R]] {
	slots := make([]Slot[R], len(pending))
	for i, p := range pending {
		slots[i] = Slot[R]{Index: p.Index, Key: p.Key}
	}
	if len(pending) == 0 {
		return future.Resolved(Partial[R]{Slots: slots})
	}

	agg := future.NewPromise[Partial[R]]()
	agg.OnCancel(func() {
		for _, p := range pending {
			p.Future.Cancel()
		}
	})

	// Each callback owns its own slot; the atomic countdown orders every
	// slot write before the final Resolve.
	var remaining atomic.Int64
	remaining.Store(int64(len(pending)))
	for i, p := range pending {
		p.Future.OnSettle(func(r future.Result[R]) {
			slots[i].Value, slots[i].Err = r.Value, r.Err
			if remaining.Add(-1) == 0 {
				agg.Resolve(Partial[R]{Slots: slots})
			}
		})
	}
	return agg.Future()
}
