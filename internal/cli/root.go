package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/resultsets/internal/config"
	"github.com/roach88/resultsets/internal/metrics"
	"github.com/roach88/resultsets/internal/session"
	"github.com/roach88/resultsets/internal/store"
)

// Version is the resultsets release.
const Version = "0.1.0"

// RootOptions holds global flags and the resolved configuration.
type RootOptions struct {
	Verbose    bool
	ConfigFile string

	// Format mirrors Config.Format once flags are resolved.
	Format string

	// Config is resolved in PersistentPreRunE. Commands built directly in
	// tests may leave it nil; config.Default() is used then.
	Config *config.Config

	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the resultsets CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "resultsets",
		Short: "Fan out a query over many keys",
		Long: `Run one parameterised SQL query per partition key, concurrently, and
collect the results as a partial aggregate, in completion order, or as a
stream.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString(config.KeyFormat)
			if !isValidFormat(format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", format, ValidFormats))
			}

			cfg, err := config.Load(cmd.Flags(), opts.ConfigFile)
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid configuration", err)
			}
			opts.Config = cfg
			opts.Format = cfg.Format
			opts.Logger = opts.newLogger(cmd)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML config file")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewVersionCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

func (o *RootOptions) config() *config.Config {
	if o.Config == nil {
		o.Config = config.Default()
		if o.Format != "" {
			o.Config.Format = o.Format
		}
	}
	return o.Config
}

func (o *RootOptions) newLogger(cmd *cobra.Command) *slog.Logger {
	cfg := *o.config()
	if o.Verbose {
		cfg.LogLevel = "debug"
	}
	return cfg.Logger(cmd.ErrOrStderr())
}

func (o *RootOptions) logger(cmd *cobra.Command) *slog.Logger {
	if o.Logger == nil {
		o.Logger = o.newLogger(cmd)
	}
	return o.Logger
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.config().Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// openStore opens the configured database.
func (o *RootOptions) openStore(cmd *cobra.Command) (*store.Store, error) {
	path := o.config().Database
	o.logger(cmd).Debug("opening database", "path", path)
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// openSession opens the store and a session over it. close releases both.
func (o *RootOptions) openSession(cmd *cobra.Command, m *metrics.Collector) (*session.Session, func(), error) {
	st, err := o.openStore(cmd)
	if err != nil {
		return nil, nil, err
	}

	logger := o.logger(cmd)
	sc := o.config().SessionConfig(logger)
	sc.Metrics = m
	sess, err := session.New(st, sc)
	if err != nil {
		st.Close()
		return nil, nil, WrapExitError(ExitCommandError, "failed to start session", err)
	}

	closeAll := func() {
		if err := sess.Close(); err != nil {
			logger.Error("error closing session", "error", err)
		}
		if err := st.Close(); err != nil {
			logger.Error("error closing database", "error", err)
		}
	}
	return sess, closeAll, nil
}

// signalContext derives a context from the command's that is cancelled on
// SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
