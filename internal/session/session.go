// Package session runs queries against the store asynchronously.
//
// A Session is the fan-out's executor: ExecuteAsync hands each query to an
// ants worker pool and returns a future at once. The pool bounds how many
// queries touch the database concurrently.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/roach88/resultsets/internal/future"
	"github.com/roach88/resultsets/internal/metrics"
	"github.com/roach88/resultsets/internal/querysql"
	"github.com/roach88/resultsets/internal/store"
)

// DefaultPoolSize is used when Config.PoolSize is zero.
const DefaultPoolSize = 8

// ErrClosed is returned for queries submitted after Close.
var ErrClosed = errors.New("session closed")

// Config tunes a Session.
type Config struct {
	// PoolSize bounds concurrently executing queries. Zero means DefaultPoolSize.
	PoolSize int

	// Nonblocking refuses a query synchronously (ants.ErrPoolOverload)
	// when every worker is busy. Otherwise the query waits for a worker
	// without blocking the caller.
	Nonblocking bool

	// QueryTimeout bounds each query. Zero means no deadline.
	QueryTimeout time.Duration

	// Logger receives dispatch and failure logs. Nil means slog.Default().
	Logger *slog.Logger

	// Metrics records execution metrics. Nil records nothing.
	Metrics *metrics.Collector
}

// Session executes queries on a worker pool.
//
// Thread-safety: all methods are safe for concurrent use.
type Session struct {
	store   *store.Store
	pool    *ants.Pool
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Collector
}

// New creates a session over st.
func New(st *store.Store, cfg Config) (*Session, error) {
	if st == nil {
		return nil, fmt.Errorf("session requires a store")
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.PoolSize < 0 {
		return nil, fmt.Errorf("invalid pool size %d", cfg.PoolSize)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	pool, err := ants.NewPool(cfg.PoolSize,
		ants.WithNonblocking(cfg.Nonblocking),
		ants.WithPanicHandler(func(v any) {
			logger.Error("query worker panic", "panic", v)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}

	return &Session{
		store:   st,
		pool:    pool,
		cfg:     cfg,
		logger:  logger,
		metrics: cfg.Metrics,
	}, nil
}

// ExecuteAsync binds key into query and runs it on the pool.
//
// The template is validated first; a bad template, a closed session or an
// overloaded nonblocking pool are returned synchronously. Cancelling the
// returned future cancels the query's context.
func (s *Session) ExecuteAsync(query string, key any) (*future.Future[*store.RowSet], error) {
	if err := querysql.Validate(query); err != nil {
		s.metrics.ObserveDispatchError()
		return nil, err
	}
	arg := bindKey(key)
	return submit(s, func(ctx context.Context) (*store.RowSet, error) {
		return s.store.Query(ctx, query, arg)
	}, "query", query)
}

// ReleaseVersionAsync reads the SQLite version on the pool.
func (s *Session) ReleaseVersionAsync() (*future.Future[string], error) {
	return submit(s, s.store.ReleaseVersion, "query", "SELECT sqlite_version()")
}

// Execute runs query synchronously on the caller's goroutine.
func (s *Session) Execute(ctx context.Context, query string, args ...any) (*store.RowSet, error) {
	return s.store.Query(ctx, query, args...)
}

// Store returns the underlying store.
func (s *Session) Store() *store.Store {
	return s.store
}

// Running returns the number of busy workers.
func (s *Session) Running() int {
	return s.pool.Running()
}

// Close stops accepting queries and waits up to 3s for running ones.
func (s *Session) Close() error {
	if s.pool.IsClosed() {
		return nil
	}
	if err := s.pool.ReleaseTimeout(3 * time.Second); err != nil {
		return fmt.Errorf("release worker pool: %w", err)
	}
	return nil
}

// submit schedules fn and wires its outcome into a future.
func submit[T any](s *Session, fn func(context.Context) (T, error), logKey, logValue string) (*future.Future[T], error) {
	if s.pool.IsClosed() {
		s.metrics.ObserveDispatchError()
		return nil, ErrClosed
	}

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if s.cfg.QueryTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), s.cfg.QueryTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	start := time.Now()
	p := future.NewPromise[T]()
	p.OnCancel(cancel)
	// Registered first, so metrics are in place before any fan-out
	// callback sees the result.
	p.Future().OnSettle(func(r future.Result[T]) {
		s.metrics.ObserveSettled(outcomeOf(p.Future(), r), time.Since(start))
	})

	task := func() {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				p.Reject(fmt.Errorf("query panicked: %v", r))
				panic(r)
			}
		}()

		// Cancelled while queued.
		if p.Future().IsDone() {
			return
		}

		v, err := fn(ctx)
		if err != nil {
			if p.Reject(err) {
				s.logger.Warn("query failed", logKey, logValue, "elapsed", time.Since(start), "error", err)
			}
			return
		}
		p.Resolve(v)
	}

	if s.cfg.Nonblocking {
		if err := s.pool.Submit(task); err != nil {
			cancel()
			s.metrics.ObserveDispatchError()
			return nil, fmt.Errorf("submit query: %w", err)
		}
	} else {
		// Submit blocks while every worker is busy; keep that off the
		// caller's goroutine.
		go func() {
			if err := s.pool.Submit(task); err != nil {
				cancel()
				p.Reject(fmt.Errorf("submit query: %w", err))
			}
		}()
	}

	s.metrics.ObserveDispatch()
	s.logger.Debug("query dispatched", logKey, logValue)
	return p.Future(), nil
}

func outcomeOf[T any](f *future.Future[T], r future.Result[T]) string {
	switch {
	case f.IsCancelled():
		return metrics.OutcomeCancelled
	case r.Err != nil:
		return metrics.OutcomeFailure
	default:
		return metrics.OutcomeSuccess
	}
}

// bindKey converts a partition key to a driver-friendly argument.
func bindKey(key any) any {
	switch k := key.(type) {
	case uuid.UUID:
		return k.String()
	case *uuid.UUID:
		if k == nil {
			return nil
		}
		return k.String()
	default:
		return key
	}
}
