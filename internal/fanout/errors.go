package fanout

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes fan-out errors.
type ErrorCode string

const (
	// ErrCodeConfig indicates a missing executor or query template.
	ErrCodeConfig ErrorCode = "CONFIG_ERROR"

	// ErrCodeDispatch indicates the executor refused to enqueue a request.
	ErrCodeDispatch ErrorCode = "DISPATCH_FAILED"
)

// errNilFuture is reported when an executor returns neither a future nor an error.
var errNilFuture = errors.New("executor returned a nil future")

// ConfigError reports an unusable fan-out call. It is always returned
// synchronously, before anything is dispatched.
type ConfigError struct {
	// Field names the offending argument.
	Field string

	// Message is a human-readable description.
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s (%s)", ErrCodeConfig, e.Message, e.Field)
}

// DispatchError reports that the executor could not enqueue the request
// for one key. Keys before Index were dispatched and are still in flight;
// keys after Index were never attempted.
type DispatchError struct {
	Index int
	Key   any
	Err   error
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s: key #%d (%v) not enqueued: %v", ErrCodeDispatch, e.Index, e.Key, e.Err)
}

// Unwrap returns the executor's error.
func (e *DispatchError) Unwrap() error {
	return e.Err
}

// IsConfigError returns true if the error is a ConfigError.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// IsDispatchError returns true if the error is a DispatchError.
// Uses errors.As to handle wrapped errors.
func IsDispatchError(err error) bool {
	var de *DispatchError
	return errors.As(err, &de)
}
