package fanout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/resultsets/internal/future"
	"github.com/roach88/resultsets/internal/testutil"
)

const usersQuery = "SELECT name FROM users WHERE id = ?"

var (
	fixtureKeys  = testutil.Keys("k1", "k2", "k3", "k4", "k5")
	fixtureNames = []string{"user1", "user2", "user3", "user4", "user5"}
)

// newFixtureExecutor scripts k1..k5 to return user1..user5.
func newFixtureExecutor(t *testing.T) *testutil.ScriptedExecutor[string] {
	t.Helper()
	ex := testutil.NewScriptedExecutor[string]()
	for i, k := range fixtureKeys {
		ex.WithValue(k, fixtureNames[i])
	}
	return ex
}

// awaitCtx bounds every wait in these tests.
func awaitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func awaitValue[R any](t *testing.T, f *future.Future[R]) R {
	t.Helper()
	v, err := f.Await(awaitCtx(t))
	require.NoError(t, err)
	return v
}
