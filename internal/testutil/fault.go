package testutil

import (
	"fmt"
	"sync/atomic"

	"github.com/roach88/resultsets/internal/future"
)

// Executor has the same method set as fanout.Executor.
type Executor[R any] interface {
	ExecuteAsync(query string, key any) (*future.Future[R], error)
}

// InjectedFault is the error carried by a query failed on purpose.
type InjectedFault struct {
	Index   int
	Message string
}

// Error implements the error interface.
func (e *InjectedFault) Error() string {
	return fmt.Sprintf("injected fault at dispatch #%d: %s", e.Index, e.Message)
}

// FaultInjector wraps an executor and fails chosen dispatches.
//
// A faulted dispatch is still accepted (no synchronous error); its future
// is rejected on a separate goroutine, the way a real query failure would
// arrive. The wrapped executor is not called for faulted indexes.
type FaultInjector[R any] struct {
	inner  Executor[R]
	faults map[int]string
	next   atomic.Int64
}

// NewFaultInjector fails each dispatch whose zero-based index is a key of
// faults, using the mapped message.
func NewFaultInjector[R any](inner Executor[R], faults map[int]string) *FaultInjector[R] {
	if faults == nil {
		faults = map[int]string{}
	}
	return &FaultInjector[R]{inner: inner, faults: faults}
}

// ExecuteAsync implements fanout.Executor.
func (f *FaultInjector[R]) ExecuteAsync(query string, key any) (*future.Future[R], error) {
	index := int(f.next.Add(1)) - 1
	msg, faulted := f.faults[index]
	if !faulted {
		return f.inner.ExecuteAsync(query, key)
	}

	p := future.NewPromise[R]()
	go p.Reject(&InjectedFault{Index: index, Message: msg})
	return p.Future(), nil
}
