package fanout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/resultsets/internal/future"
	"github.com/roach88/resultsets/internal/testutil"
)

func TestDispatch_InputOrder(t *testing.T) {
	ex := newFixtureExecutor(t).Gated()

	pending, err := Dispatch[string](ex, usersQuery, fixtureKeys...)
	require.NoError(t, err)
	require.Len(t, pending, len(fixtureKeys))

	assert.Equal(t, fixtureKeys, ex.Keys())
	for i, p := range pending {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, fixtureKeys[i], p.Key)
		assert.False(t, p.Future.IsDone(), "dispatch must not wait for results")
	}
	for _, q := range ex.Queries() {
		assert.Equal(t, usersQuery, q)
	}
}

func TestDispatch_NilExecutor(t *testing.T) {
	_, err := Dispatch[string](nil, usersQuery, fixtureKeys...)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Contains(t, err.Error(), "executor")
}

type pointerExecutor struct{ calls int }

func (e *pointerExecutor) ExecuteAsync(string, any) (*future.Future[int], error) {
	e.calls++
	return future.Resolved(e.calls), nil
}

func TestDispatch_TypedNilExecutor(t *testing.T) {
	tests := []struct {
		name string
		exec Executor[int]
	}{
		{"nil func", ExecutorFunc[int](nil)},
		{"nil pointer", (*pointerExecutor)(nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			require.NotPanics(t, func() {
				_, err = Dispatch(tt.exec, usersQuery, "k1")
			})
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
		})
	}

	for _, collect := range []func(Executor[int]) error{
		func(e Executor[int]) error { _, err := CollectAllOrPartial(e, usersQuery, "k1"); return err },
		func(e Executor[int]) error { _, err := CollectInCompletionOrder(e, usersQuery, "k1"); return err },
		func(e Executor[int]) error { _, err := StreamAsAvailable(e, usersQuery, []any{"k1"}); return err },
	} {
		assert.True(t, IsConfigError(collect(ExecutorFunc[int](nil))))
	}
}

func TestDispatch_EmptyQuery(t *testing.T) {
	ex := newFixtureExecutor(t)
	_, err := Dispatch[string](ex, "", fixtureKeys...)
	require.Error(t, err)
	assert.True(t, IsConfigError(err))
	assert.Equal(t, 0, ex.Calls(), "config errors are reported before any dispatch")
}

func TestDispatch_FailFast(t *testing.T) {
	refused := errors.New("pool overloaded")
	ex := newFixtureExecutor(t).Gated().WithDispatchError(2, refused)

	pending, err := Dispatch[string](ex, usersQuery, fixtureKeys...)
	require.Error(t, err)
	assert.True(t, IsDispatchError(err))
	assert.ErrorIs(t, err, refused)

	var de *DispatchError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, 2, de.Index)
	assert.Equal(t, "k3", de.Key)

	assert.Equal(t, 3, ex.Calls(), "no dispatch after the refused one")
	require.Len(t, pending, 2)
	assert.Equal(t, 0, ex.Cancelled(), "already-dispatched siblings are not cancelled")
	for _, p := range pending {
		assert.False(t, p.Future.IsDone())
	}
}

func TestDispatch_NilFutureIsDispatchError(t *testing.T) {
	exec := ExecutorFunc[int](func(string, any) (*future.Future[int], error) {
		return nil, nil
	})
	_, err := Dispatch[int](exec, usersQuery, "k1")
	require.Error(t, err)
	assert.True(t, IsDispatchError(err))
}

func TestDispatch_NoKeys(t *testing.T) {
	ex := testutil.NewScriptedExecutor[string]()
	pending, err := Dispatch[string](ex, usersQuery)
	require.NoError(t, err)
	assert.NotNil(t, pending)
	assert.Empty(t, pending)
}

func TestFutures_PreservesOrder(t *testing.T) {
	pending := []Pending[int]{
		{Index: 0, Future: future.Resolved(10)},
		{Index: 1, Future: future.Resolved(20)},
	}
	fs := Futures(pending)
	require.Len(t, fs, 2)
	assert.Same(t, pending[0].Future, fs[0])
	assert.Same(t, pending[1].Future, fs[1])
}

func TestErrors_Messages(t *testing.T) {
	ce := &ConfigError{Field: "query", Message: "query template is empty"}
	assert.Equal(t, "CONFIG_ERROR: query template is empty (query)", ce.Error())

	de := &DispatchError{Index: 1, Key: "k2", Err: errors.New("closed")}
	assert.Equal(t, "DISPATCH_FAILED: key #1 (k2) not enqueued: closed", de.Error())
	assert.False(t, IsConfigError(de))
	assert.False(t, IsDispatchError(errors.New("other")))
}
