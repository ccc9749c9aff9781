package fanout

import (
	"reflect"

	"github.com/roach88/resultsets/internal/future"
)

// Executor runs one query with one bound parameter asynchronously.
//
// ExecuteAsync must not block and must be safe for concurrent use. A
// non-nil error means the request was never enqueued. Every returned
// future must eventually settle.
type Executor[R any] interface {
	ExecuteAsync(query string, key any) (*future.Future[R], error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc[R any] func(query string, key any) (*future.Future[R], error)

// ExecuteAsync calls f(query, key).
func (f ExecutorFunc[R]) ExecuteAsync(query string, key any) (*future.Future[R], error) {
	return f(query, key)
}

// Pending is one dispatched query: the key it was bound to, its position
// in the input, and the future for its result.
type Pending[R any] struct {
	Index  int
	Key    any
	Future *future.Future[R]
}

// Dispatch issues one request per key, in input order, and returns the
// pending results without waiting for any of them.
//
// On an executor error it stops immediately and returns the requests
// dispatched so far together with a *DispatchError. Those requests are not
// cancelled.
func Dispatch[R any](exec Executor[R], query string, keys ...any) ([]Pending[R], error) {
	if isNil(exec) {
		return nil, &ConfigError{Field: "executor", Message: "executor is nil"}
	}
	if query == "" {
		return nil, &ConfigError{Field: "query", Message: "query template is empty"}
	}

	pending := make([]Pending[R], 0, len(keys))
	for i, key := range keys {
		f, err := exec.ExecuteAsync(query, key)
		if err == nil && f == nil {
			err = errNilFuture
		}
		if err != nil {
			return pending, &DispatchError{Index: i, Key: key, Err: err}
		}
		pending = append(pending, Pending[R]{Index: i, Key: key, Future: f})
	}
	return pending, nil
}

// isNil reports whether exec is a nil interface or wraps a nil func,
// pointer, map, or channel.
func isNil(exec any) bool {
	if exec == nil {
		return true
	}
	v := reflect.ValueOf(exec)
	switch v.Kind() {
	case reflect.Func, reflect.Pointer, reflect.Map, reflect.Chan, reflect.Interface, reflect.Slice:
		return v.IsNil()
	}
	return false
}

// Futures returns the bare futures of pending, in the same order.
func Futures[R any](pending []Pending[R]) []*future.Future[R] {
	out := make([]*future.Future[R], len(pending))
	for i, p := range pending {
		out[i] = p.Future
	}
	return out
}
