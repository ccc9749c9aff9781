package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/resultsets/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	Filter    string // scenario name filter (glob pattern)
	GoldenDir string // defaults to <scenarios-dir>/golden
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

// ScenarioSummary holds the overall run result.
type ScenarioSummary struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// RenderText implements TextRenderer.
func (s ScenarioSummary) RenderText(w io.Writer) {
	if s.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, r := range s.Scenarios {
		mark := "✓"
		if !r.Pass {
			mark = "✗"
		}
		suffix := ""
		if r.Golden == string(harness.GoldenUpdated) {
			suffix = " (golden updated)"
		}
		fmt.Fprintf(w, "%s %s%s\n", mark, r.Name, suffix)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Scenario Summary: %d passed, %d failed, %d total\n", s.Passed, s.Failed, s.Total)
	if s.Failed == 0 {
		fmt.Fprintln(w, "✓ All scenarios passed")
	}
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <scenarios-dir>",
		Short: "Run fan-out scenarios",
		Long: `Run every scenario file in a directory against a fresh in-memory
database, exercising all three collection modes, and compare each trace
with its golden file.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, invalid scenario files)

Examples:
  resultsets scenario ./scenarios
  resultsets scenario ./scenarios --filter "partial_*"
  resultsets scenario ./scenarios --update
  resultsets scenario ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by name glob")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory (default <scenarios-dir>/golden)")

	return cmd
}

func runScenarios(opts *ScenarioOptions, dir string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	scenarios, err := harness.LoadDir(dir, opts.Filter)
	if err != nil {
		return out.Fail(ExitCommandError, "failed to load scenarios", err)
	}

	goldenDir := opts.GoldenDir
	if goldenDir == "" {
		goldenDir = filepath.Join(dir, "golden")
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	cfg := opts.config()
	runOpts := []harness.Option{
		harness.WithLogger(opts.logger(cmd)),
		harness.WithPoolSize(cfg.PoolSize),
		harness.WithDefaultPolicy(cfg.StreamPolicy()),
	}

	summary := ScenarioSummary{Scenarios: []ScenarioResult{}, Total: len(scenarios)}
	for _, sc := range scenarios {
		out.VerboseLog("running %s", sc.Name)
		r := runScenario(ctx, sc, goldenDir, opts.Update, runOpts)
		summary.Scenarios = append(summary.Scenarios, r)
		if r.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	if summary.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", summary.Failed)
		if err := out.Partial(summary, CodeScenarios, msg); err != nil {
			return err
		}
		return NewExitError(ExitFailure, msg)
	}
	return out.Success(summary)
}

func runScenario(ctx context.Context, sc *harness.Scenario, goldenDir string, update bool, runOpts []harness.Option) ScenarioResult {
	res := ScenarioResult{Name: sc.Name}

	result, err := harness.Run(ctx, sc, runOpts...)
	if err != nil {
		res.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return res
	}
	res.Errors = result.Errors()

	trace, err := result.Trace()
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("failed to marshal trace: %v", err))
		return res
	}

	status, err := harness.CompareGolden(goldenDir, sc.Name, trace, update)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("golden comparison failed: %v", err))
		return res
	}
	res.Golden = string(status)
	if status == harness.GoldenMismatch {
		res.Errors = append(res.Errors, "trace does not match golden file (run with --update to regenerate)")
	}

	res.Pass = len(res.Errors) == 0
	return res
}
