package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/resultsets/internal/future"
)

// VersionOptions holds flags for the version command.
type VersionOptions struct {
	*RootOptions
	Wait time.Duration
}

// VersionResult is the output of the version command.
type VersionResult struct {
	Version string `json:"version"`
	SQLite  string `json:"sqlite"`
}

// RenderText implements TextRenderer.
func (r VersionResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "resultsets %s (sqlite %s)\n", r.Version, r.SQLite)
}

// NewVersionCommand creates the version command.
func NewVersionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VersionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the tool and database versions",
		Long: `Print the resultsets version and the SQLite release version.

The SQLite version is read asynchronously on the session pool and reported
from a completion callback. If it does not arrive within --wait the
request is cancelled.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersion(opts, cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Wait, "wait", 5*time.Second, "how long to wait for the database")

	return cmd
}

func runVersion(opts *VersionOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	sess, closeAll, err := opts.openSession(cmd, nil)
	if err != nil {
		return err
	}
	defer closeAll()

	f, err := sess.ReleaseVersionAsync()
	if err != nil {
		return out.Fail(ExitCommandError, "failed to submit version query", err)
	}

	settled := make(chan future.Result[string], 1)
	f.OnSettle(func(r future.Result[string]) {
		settled <- r
	})

	var timeout <-chan time.Time
	if opts.Wait > 0 {
		timer := time.NewTimer(opts.Wait)
		defer timer.Stop()
		timeout = timer.C
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	select {
	case r := <-settled:
		if r.Err != nil {
			return out.Fail(ExitFailure, "failed to read database version", r.Err)
		}
		return out.Success(VersionResult{Version: Version, SQLite: r.Value})
	case <-timeout:
		f.Cancel()
		_ = out.Error(CodeTimeout, fmt.Sprintf("no answer within %s", opts.Wait), nil)
		return NewExitError(ExitFailure, "version query timed out")
	case <-ctx.Done():
		f.Cancel()
		return WrapExitError(ExitFailure, "interrupted", ctx.Err())
	}
}
