package cli

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/resultsets/internal/store"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Generate int // random users to insert instead of the fixtures
}

// SeedResult is the output of the seed command.
type SeedResult struct {
	Database string       `json:"database"`
	Inserted int          `json:"inserted"`
	Users    []store.User `json:"users"`
}

// RenderText implements TextRenderer.
func (r SeedResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Seeded %d users into %s\n", r.Inserted, r.Database)
	for _, u := range r.Users {
		fmt.Fprintf(w, "  %s  %s\n", u.ID, u.Name)
	}
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the schema and insert users",
		Long: `Create the users table if needed and insert the five fixture users.

With --generate N, N users with random ids are inserted instead.

Examples:
  resultsets seed --db ./users.db
  resultsets seed --db ./users.db --generate 100`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Generate, "generate", 0, "insert N random users instead of the fixtures")

	return cmd
}

func runSeed(opts *SeedOptions, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	if opts.Generate < 0 {
		return out.Fail(ExitCommandError, "invalid --generate", fmt.Errorf("must not be negative, got %d", opts.Generate))
	}

	st, err := opts.openStore(cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	users := store.FixtureUsers()
	if opts.Generate > 0 {
		users = generateUsers(opts.Generate)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	if err := st.SeedUsers(ctx, users); err != nil {
		return out.Fail(ExitCommandError, "failed to seed users", err)
	}
	opts.logger(cmd).Info("seeded users", "count", len(users), "db", opts.config().Database)

	return out.Success(SeedResult{
		Database: opts.config().Database,
		Inserted: len(users),
		Users:    users,
	})
}

func generateUsers(n int) []store.User {
	users := make([]store.User, n)
	for i := range users {
		users[i] = store.User{ID: uuid.New(), Name: fmt.Sprintf("user-%04d", i+1)}
	}
	return users
}
