package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/resultsets/internal/fanout"
	"github.com/roach88/resultsets/internal/future"
	"github.com/roach88/resultsets/internal/metrics"
	"github.com/roach88/resultsets/internal/querysql"
	"github.com/roach88/resultsets/internal/session"
	"github.com/roach88/resultsets/internal/store"
)

// Collection modes for the query command.
const (
	ModeList    = "list"
	ModeOrdered = "ordered"
	ModeStream  = "stream"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Mode   string
	Column string
	Strict bool
	Stats  bool
}

// QueryRow is one query's outcome.
type QueryRow struct {
	// Index is the key's input position for list and stream output. For
	// ordered output it is the completion rank.
	Index  int      `json:"index"`
	Key    string   `json:"key,omitempty"`
	Values []string `json:"values,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// QueryResult is the output of the query command.
type QueryResult struct {
	Mode       string         `json:"mode"`
	Query      string         `json:"query"`
	Keys       int            `json:"keys"`
	Rows       []QueryRow     `json:"rows"`
	Failures   int            `json:"failures"`
	Terminated bool           `json:"terminated,omitempty"`
	Stats      *metrics.Stats `json:"stats,omitempty"`

	// streamed is set when rows were already printed as they arrived.
	streamed bool
}

// RenderText implements TextRenderer.
func (r QueryResult) RenderText(w io.Writer) {
	if !r.streamed {
		for _, row := range r.Rows {
			renderRow(w, row)
		}
	}
	fmt.Fprintf(w, "%d keys, %d failed (%s)\n", r.Keys, r.Failures, r.Mode)
	if r.Terminated {
		fmt.Fprintln(w, "stream terminated on first failure")
	}
	if r.Stats != nil {
		fmt.Fprintf(w, "dispatched=%d succeeded=%d failed=%d cancelled=%d refused=%d\n",
			r.Stats.Dispatched, r.Stats.Succeeded, r.Stats.Failed, r.Stats.Cancelled, r.Stats.DispatchErrors)
	}
}

func renderRow(w io.Writer, row QueryRow) {
	label := fmt.Sprintf("#%d", row.Index)
	if row.Key != "" {
		label += " " + row.Key
	}
	if row.Error != "" {
		fmt.Fprintf(w, "%s  ERROR %s\n", label, row.Error)
		return
	}
	fmt.Fprintf(w, "%s  %s\n", label, strings.Join(row.Values, ", "))
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <template> [key...]",
		Short: "Run a query once per key",
		Long: `Bind each key into a single-placeholder query template and run all
queries concurrently. Without keys, every stored user id is used.

Modes:
  list     wait for all queries; one row per key in input order
  ordered  one row per query in the order queries finished
  stream   print each result as it arrives

Exit codes:
  0 - All queries ran (failures are reported unless --strict)
  1 - One or more queries failed with --strict
  2 - Command error (bad template, refused dispatch, bad config)

Examples:
  resultsets query "SELECT name FROM users WHERE id = ?"
  resultsets query "SELECT name FROM users WHERE id = ?" e6af74a8-4711-4609-a94f-2cbfab9695e5
  resultsets query "SELECT * FROM users WHERE id = ?" --mode stream --policy terminate`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Mode, "mode", ModeList, "collection mode (list|ordered|stream)")
	cmd.Flags().StringVar(&opts.Column, "column", "", "column to print (default: first column)")
	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "exit 1 when any query fails")
	cmd.Flags().BoolVar(&opts.Stats, "stats", false, "report execution counters")

	return cmd
}

func runQuery(opts *QueryOptions, query string, keyArgs []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	switch opts.Mode {
	case ModeList, ModeOrdered, ModeStream:
	default:
		return out.Fail(ExitCommandError, "invalid mode",
			fmt.Errorf("unknown mode %q: must be list, ordered or stream", opts.Mode))
	}
	if err := querysql.Validate(query); err != nil {
		return out.Fail(ExitCommandError, "invalid query template", err)
	}

	m := metrics.New(nil)
	sess, closeAll, err := opts.openSession(cmd, m)
	if err != nil {
		return err
	}
	defer closeAll()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	keys, err := resolveKeys(ctx, sess, keyArgs)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to list keys", err)
	}
	opts.logger(cmd).Debug("fanning out", "mode", opts.Mode, "keys", len(keys))

	result := QueryResult{Mode: opts.Mode, Query: query, Keys: len(keys), Rows: []QueryRow{}}
	switch opts.Mode {
	case ModeList:
		err = collectList(ctx, opts, sess, query, keys, &result)
	case ModeOrdered:
		err = collectOrdered(ctx, opts, sess, query, keys, &result)
	case ModeStream:
		err = collectStream(ctx, opts, cmd, out, sess, query, keys, &result)
	}
	if err != nil {
		if fanout.IsDispatchError(err) || fanout.IsConfigError(err) {
			return out.Fail(ExitCommandError, "dispatch failed", err)
		}
		return out.Fail(ExitFailure, "query interrupted", err)
	}

	if opts.Stats {
		stats := m.Snapshot()
		result.Stats = &stats
	}
	if result.Failures > 0 {
		msg := fmt.Sprintf("%d of %d queries failed", result.Failures, result.Keys)
		if err := out.Partial(result, CodeFailed, msg); err != nil {
			return err
		}
		if opts.Strict {
			return NewExitError(ExitFailure, msg)
		}
		return nil
	}
	return out.Success(result)
}

// resolveKeys returns keyArgs, or every stored user id when none are given.
// Arguments that parse as UUIDs are bound as uuid.UUID in canonical form;
// anything else is bound as given.
func resolveKeys(ctx context.Context, sess *session.Session, keyArgs []string) ([]any, error) {
	if len(keyArgs) > 0 {
		keys := make([]any, len(keyArgs))
		for i, k := range keyArgs {
			if id, err := uuid.Parse(k); err == nil {
				keys[i] = id
			} else {
				keys[i] = k
			}
		}
		return keys, nil
	}

	users, err := sess.Store().ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	keys := make([]any, len(users))
	for i, u := range users {
		keys[i] = u.ID
	}
	return keys, nil
}

func collectList(ctx context.Context, opts *QueryOptions, sess *session.Session, query string, keys []any, result *QueryResult) error {
	agg, err := fanout.CollectAllOrPartial[*store.RowSet](sess, query, keys...)
	if err != nil {
		return err
	}
	partial, err := agg.Await(ctx)
	if err != nil {
		agg.Cancel()
		return err
	}
	for _, slot := range partial.Slots {
		result.add(newRow(slot.Index, slot.Key, slot.Value, slot.Err, opts.Column))
	}
	return nil
}

func collectOrdered(ctx context.Context, opts *QueryOptions, sess *session.Session, query string, keys []any, result *QueryResult) error {
	outputs, err := fanout.CollectInCompletionOrder[*store.RowSet](sess, query, keys...)
	if err != nil {
		return err
	}
	for rank, out := range outputs {
		value, err := out.Await(ctx)
		if ctx.Err() != nil {
			cancelAll(outputs)
			return ctx.Err()
		}
		result.add(newRow(rank, nil, value, err, opts.Column))
	}
	return nil
}

func collectStream(ctx context.Context, opts *QueryOptions, cmd *cobra.Command, out *OutputFormatter, sess *session.Session, query string, keys []any, result *QueryResult) error {
	stream, err := fanout.StreamAsAvailable[*store.RowSet](sess, query, keys,
		fanout.WithErrorPolicy(opts.config().StreamPolicy()),
		fanout.WithStreamLogger(opts.logger(cmd)),
	)
	if err != nil {
		return err
	}

	text := out.Format != "json"
	err = stream.ForEach(ctx, func(ev fanout.Event[*store.RowSet]) error {
		row := newRow(ev.Index, ev.Key, ev.Value, ev.Err, opts.Column)
		result.add(row)
		if text {
			renderRow(out.Writer, row)
		}
		return nil
	})
	result.streamed = text
	if stream.Err() != nil {
		result.Terminated = true
		return nil
	}
	return err
}

func (r *QueryResult) add(row QueryRow) {
	if row.Error != "" {
		r.Failures++
	}
	r.Rows = append(r.Rows, row)
}

func newRow(index int, key any, rs *store.RowSet, err error, column string) QueryRow {
	row := QueryRow{Index: index}
	if key != nil {
		row.Key = fmt.Sprint(key)
	}
	if err != nil {
		row.Error = err.Error()
		return row
	}
	if rs.Len() == 0 {
		return row
	}
	col := column
	if col == "" {
		col = rs.Columns[0]
	}
	for _, r := range rs.Rows {
		row.Values = append(row.Values, r.String(col))
	}
	return row
}

func cancelAll[T any](futures []*future.Future[T]) {
	for _, f := range futures {
		f.Cancel()
	}
}
