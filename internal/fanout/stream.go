package fanout

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/resultsets/internal/future"
)

// ErrorPolicy decides what a failed query does to a Stream.
type ErrorPolicy int

const (
	// ScopeErrors emits a failure as an ordinary event with Err set.
	// The stream completes after all N queries have emitted.
	ScopeErrors ErrorPolicy = iota

	// TerminateOnError emits the first failure, then closes the stream.
	// Err reports that failure. Queries still in flight keep running but
	// are no longer forwarded.
	TerminateOnError
)

// String returns the config spelling of the policy.
func (p ErrorPolicy) String() string {
	switch p {
	case ScopeErrors:
		return "scope"
	case TerminateOnError:
		return "terminate"
	default:
		return fmt.Sprintf("ErrorPolicy(%d)", int(p))
	}
}

// ParseErrorPolicy converts "scope" or "terminate" to an ErrorPolicy.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch s {
	case "scope", "":
		return ScopeErrors, nil
	case "terminate":
		return TerminateOnError, nil
	default:
		return ScopeErrors, fmt.Errorf("unknown error policy %q: must be scope or terminate", s)
	}
}

// Event is one settled query as seen by a stream consumer.
type Event[R any] struct {
	// Seq is the completion rank, starting at 0.
	Seq int

	// Index is the key's position in the dispatch input.
	Index int

	Key   any
	Value R
	Err   error
}

// Ok reports whether the event carries a value.
func (e Event[R]) Ok() bool {
	return e.Err == nil
}

// StreamOption configures StreamAsAvailable.
type StreamOption func(*streamConfig)

type streamConfig struct {
	policy ErrorPolicy
	logger *slog.Logger
}

// WithErrorPolicy selects how failures affect the stream.
func WithErrorPolicy(p ErrorPolicy) StreamOption {
	return func(c *streamConfig) { c.policy = p }
}

// WithStreamLogger logs each emission at debug level.
func WithStreamLogger(l *slog.Logger) StreamOption {
	return func(c *streamConfig) { c.logger = l }
}

// Stream is a push-based view over N pending queries. Events arrive on
// Events() in completion order; the channel is closed when the stream ends.
//
// Thread-safety: all methods are safe for concurrent use.
type Stream[R any] struct {
	mu           sync.Mutex
	events       chan Event[R]
	done         chan struct{}
	closed       bool
	unsubscribed bool
	seq          int
	remaining    int
	err          error
	policy       ErrorPolicy
	logger       *slog.Logger
}

// StreamAsAvailable dispatches one query per key and returns a stream that
// emits each result as soon as its query settles.
func StreamAsAvailable[R any](exec Executor[R], query string, keys []any, opts ...StreamOption) (*Stream[R], error) {
	pending, err := Dispatch(exec, query, keys...)
	if err != nil {
		return nil, err
	}
	return Merge(pending, opts...), nil
}

// Merge streams already-dispatched queries the way StreamAsAvailable does.
func Merge[R any](pending []Pending[R], opts ...StreamOption) *Stream[R] {
	cfg := streamConfig{policy: ScopeErrors}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Stream[R]{
		// One slot per query: emit never blocks.
		events:    make(chan Event[R], len(pending)),
		done:      make(chan struct{}),
		remaining: len(pending),
		policy:    cfg.policy,
		logger:    cfg.logger,
	}
	if len(pending) == 0 {
		s.closeLocked()
		return s
	}

	for _, p := range pending {
		p.Future.OnSettle(func(r future.Result[R]) {
			s.emit(p, r)
		})
	}
	return s
}

func (s *Stream[R]) emit(p Pending[R], r future.Result[R]) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	ev := Event[R]{Seq: s.seq, Index: p.Index, Key: p.Key, Value: r.Value, Err: r.Err}
	s.seq++
	s.remaining--
	s.events <- ev

	s.logger.Debug("stream emitted",
		"seq", ev.Seq,
		"index", ev.Index,
		"ok", ev.Ok(),
		"remaining", s.remaining,
	)

	if r.Err != nil && s.policy == TerminateOnError {
		s.err = r.Err
		s.closeLocked()
		return
	}
	if s.remaining == 0 {
		s.closeLocked()
	}
}

func (s *Stream[R]) closeLocked() {
	s.closed = true
	close(s.events)
	close(s.done)
}

// Events returns the event channel. It is closed once the stream ends:
// after the Nth emission, after a terminating failure, or on Unsubscribe.
func (s *Stream[R]) Events() <-chan Event[R] {
	return s.events
}

// Done returns a channel closed when the stream ends.
func (s *Stream[R]) Done() <-chan struct{} {
	return s.done
}

// Err returns the failure that terminated the stream under
// TerminateOnError, or nil.
func (s *Stream[R]) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Unsubscribed reports whether the consumer detached before the end.
func (s *Stream[R]) Unsubscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed
}

// Unsubscribe stops forwarding events and drops any still buffered.
// Queries already dispatched are not cancelled.
func (s *Stream[R]) Unsubscribe() {
	s.mu.Lock()
	if !s.closed {
		s.unsubscribed = true
		s.closeLocked()
	}
	s.mu.Unlock()

	for range s.events {
	}
}

// ForEach calls fn for every event until the stream ends, ctx is done or
// fn returns an error. Leaving early unsubscribes.
//
// Returns the stream's terminal error, ctx's error, or fn's error.
func (s *Stream[R]) ForEach(ctx context.Context, fn func(Event[R]) error) error {
	for {
		select {
		case ev, ok := <-s.events:
			if !ok {
				return s.Err()
			}
			if err := fn(ev); err != nil {
				s.Unsubscribe()
				return err
			}
		case <-ctx.Done():
			s.Unsubscribe()
			return ctx.Err()
		}
	}
}

// Collect gathers every event until the stream ends.
func (s *Stream[R]) Collect(ctx context.Context) ([]Event[R], error) {
	var events []Event[R]
	err := s.ForEach(ctx, func(ev Event[R]) error {
		events = append(events, ev)
		return nil
	})
	return events, err
}
