package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/resultsets/internal/canonical"
	"github.com/roach88/resultsets/internal/fanout"
	"github.com/roach88/resultsets/internal/future"
	"github.com/roach88/resultsets/internal/metrics"
	"github.com/roach88/resultsets/internal/session"
	"github.com/roach88/resultsets/internal/store"
	"github.com/roach88/resultsets/internal/testutil"
)

// Option configures Run.
type Option func(*runConfig)

type runConfig struct {
	logger   *slog.Logger
	poolSize int
	policy   fanout.ErrorPolicy
	metrics  *metrics.Collector
}

// WithLogger routes session and stream logs to l. By default they are
// discarded.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// WithPoolSize sets the session's worker count.
func WithPoolSize(n int) Option {
	return func(c *runConfig) { c.poolSize = n }
}

// WithDefaultPolicy applies p to scenarios that leave policy unset.
func WithDefaultPolicy(p fanout.ErrorPolicy) Option {
	return func(c *runConfig) { c.policy = p }
}

// WithMetrics records session metrics in m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *runConfig) { c.metrics = m }
}

// Run executes sc against a fresh in-memory store.
//
// Execution flow:
//  1. Open a :memory: store and seed the scenario's users
//  2. Start a session over it
//  3. Run all three collection modes concurrently, each through its own
//     fault injector so dispatch indexes line up with the scenario's faults
//  4. Compare each mode's values and failures with the expectation
//
// An error is returned only when the run itself could not happen; a
// failed expectation is reported through Result.Pass.
func Run(ctx context.Context, sc *Scenario, opts ...Option) (*Result, error) {
	cfg := runConfig{poolSize: session.DefaultPoolSize, policy: fanout.ScopeErrors}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	policy := cfg.policy
	if sc.Policy != "" {
		p, err := fanout.ParseErrorPolicy(sc.Policy)
		if err != nil {
			return nil, err
		}
		policy = p
	}

	st, err := store.Open(store.MemoryPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.SeedUsers(ctx, sc.users()); err != nil {
		return nil, fmt.Errorf("failed to seed users: %w", err)
	}

	sess, err := session.New(st, session.Config{
		PoolSize: cfg.poolSize,
		Logger:   cfg.logger,
		Metrics:  cfg.metrics,
	})
	if err != nil {
		return nil, err
	}
	defer sess.Close()

	keys := sc.keys()
	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = k
	}
	faults := sc.faultMap()
	executor := func() fanout.Executor[*store.RowSet] {
		return testutil.NewFaultInjector[*store.RowSet](sess, faults)
	}

	results := make([]OperationResult, len(Operations))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := runAllOrPartial(gctx, executor(), sc.Query, args)
		results[0] = r
		return err
	})
	g.Go(func() error {
		r, err := runCompletionOrder(gctx, executor(), sc.Query, args)
		results[1] = r
		return err
	})
	g.Go(func() error {
		r, err := runStream(gctx, executor(), sc.Query, args, policy, cfg.logger)
		results[2] = r
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", sc.Name, err)
	}

	result := &Result{
		Scenario:   sc.Name,
		Policy:     policy.String(),
		Keys:       len(keys),
		Pass:       true,
		Operations: results,
	}
	for i := range result.Operations {
		op := &result.Operations[i]
		op.Mismatch = compare(op, sc.Expect, len(keys))
		op.Pass = len(op.Mismatch) == 0
		if !op.Pass {
			result.Pass = false
		}
	}
	return result, nil
}

func runAllOrPartial(ctx context.Context, exec fanout.Executor[*store.RowSet], query string, keys []any) (OperationResult, error) {
	r := OperationResult{Operation: OpAllOrPartial}

	agg, err := fanout.CollectAllOrPartial(exec, query, keys...)
	if err != nil {
		return r, err
	}
	partial, err := agg.Await(ctx)
	if err != nil {
		return r, err
	}

	r.Delivered = partial.Len()
	for _, slot := range partial.Slots {
		if slot.Ok() {
			r.Values = append(r.Values, rowValues(slot.Value)...)
		} else {
			r.Errors = append(r.Errors, slot.Err.Error())
		}
	}
	r.Failures = len(r.Errors)
	finish(&r)
	return r, nil
}

func runCompletionOrder(ctx context.Context, exec fanout.Executor[*store.RowSet], query string, keys []any) (OperationResult, error) {
	r := OperationResult{Operation: OpCompletionOrder}

	outputs, err := fanout.CollectInCompletionOrder(exec, query, keys...)
	if err != nil {
		return r, err
	}
	for _, out := range outputs {
		res, err := awaitResult(ctx, out)
		if err != nil {
			return r, err
		}
		r.Delivered++
		if res.Ok() {
			r.Values = append(r.Values, rowValues(res.Value)...)
		} else {
			r.Errors = append(r.Errors, res.Err.Error())
		}
	}
	r.Failures = len(r.Errors)
	finish(&r)
	return r, nil
}

func runStream(ctx context.Context, exec fanout.Executor[*store.RowSet], query string, keys []any, policy fanout.ErrorPolicy, logger *slog.Logger) (OperationResult, error) {
	r := OperationResult{Operation: OpStream}

	stream, err := fanout.StreamAsAvailable(exec, query, keys,
		fanout.WithErrorPolicy(policy),
		fanout.WithStreamLogger(logger),
	)
	if err != nil {
		return r, err
	}

	events, err := stream.Collect(ctx)
	if err != nil && stream.Err() == nil {
		return r, err
	}
	r.Terminated = stream.Err() != nil
	r.Delivered = len(events)
	for _, ev := range events {
		if ev.Ok() {
			r.Values = append(r.Values, rowValues(ev.Value)...)
		} else {
			r.Errors = append(r.Errors, ev.Err.Error())
		}
	}
	r.Failures = len(r.Errors)
	finish(&r)
	return r, nil
}

// awaitResult waits for f without treating its failure as a run error.
func awaitResult[T any](ctx context.Context, f *future.Future[T]) (future.Result[T], error) {
	select {
	case <-f.Done():
		res, _ := f.Peek()
		return res, nil
	case <-ctx.Done():
		return future.Result[T]{}, ctx.Err()
	}
}

// compare checks op against the expectation and returns mismatches.
func compare(op *OperationResult, want Expectation, keys int) []string {
	var mismatch []string

	expected := slices.Clone(want.Values)
	canonical.SortStrings(expected)

	if op.Terminated {
		// Stopped on the first failure: at least one failure, and every
		// value seen must be an expected one.
		if want.Failures == 0 {
			mismatch = append(mismatch, "stream terminated but no failures were expected")
		}
		if op.Failures != 1 {
			mismatch = append(mismatch, fmt.Sprintf("terminated stream carried %d failures, want 1", op.Failures))
		}
		if !subset(op.Values, expected) {
			mismatch = append(mismatch, fmt.Sprintf("values %v not within expected %v", op.Values, expected))
		}
		return mismatch
	}

	if op.Delivered != keys {
		mismatch = append(mismatch, fmt.Sprintf("delivered %d results, want %d", op.Delivered, keys))
	}
	if !slices.Equal(nonNil(op.Values), nonNil(expected)) {
		mismatch = append(mismatch, fmt.Sprintf("values %v, want %v", nonNil(op.Values), nonNil(expected)))
	}
	if op.Failures != want.Failures {
		mismatch = append(mismatch, fmt.Sprintf("failures %d, want %d", op.Failures, want.Failures))
	}
	return mismatch
}

// subset reports whether got is a sub-multiset of want.
func subset(got, want []string) bool {
	counts := make(map[string]int, len(want))
	for _, v := range want {
		counts[v]++
	}
	for _, v := range got {
		if counts[v] == 0 {
			return false
		}
		counts[v]--
	}
	return true
}

func finish(r *OperationResult) {
	canonical.SortStrings(r.Values)
	canonical.SortStrings(r.Errors)
}

// rowValues returns the first column of every row.
func rowValues(rs *store.RowSet) []string {
	if rs.Len() == 0 || len(rs.Columns) == 0 {
		return nil
	}
	values := make([]string, 0, rs.Len())
	for _, row := range rs.Rows {
		values = append(values, row.String(rs.Columns[0]))
	}
	return values
}
