package fanout

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/resultsets/internal/future"
	"github.com/roach88/resultsets/internal/testutil"
)

func TestCollectAllOrPartial_AllSucceed(t *testing.T) {
	ex := newFixtureExecutor(t)

	agg, err := CollectAllOrPartial[string](ex, usersQuery, fixtureKeys...)
	require.NoError(t, err)

	partial := awaitValue(t, agg)
	assert.Equal(t, len(fixtureKeys), partial.Len())
	assert.Equal(t, fixtureNames, partial.Values(), "values keep input order")
	assert.Zero(t, partial.Failures())
	assert.Empty(t, partial.Errors())
	for i, s := range partial.Slots {
		assert.Equal(t, i, s.Index)
		assert.Equal(t, fixtureKeys[i], s.Key)
	}
}

func TestCollectAllOrPartial_InputOrderDespiteCompletionOrder(t *testing.T) {
	ex := newFixtureExecutor(t).Gated()

	agg, err := CollectAllOrPartial[string](ex, usersQuery, fixtureKeys...)
	require.NoError(t, err)

	for _, k := range []string{"k5", "k3", "k1", "k4"} {
		require.True(t, ex.Release(k))
		assert.False(t, agg.IsDone(), "aggregate waits for every query")
	}
	require.True(t, ex.Release("k2"))

	partial := awaitValue(t, agg)
	assert.Equal(t, fixtureNames, partial.Values())
}

func TestCollectAllOrPartial_ToleratesFailures(t *testing.T) {
	boom := errors.New("read timeout")
	ex := newFixtureExecutor(t).WithFailure("k3", boom)

	agg, err := CollectAllOrPartial[string](ex, usersQuery, fixtureKeys...)
	require.NoError(t, err)

	partial, err := agg.Await(awaitCtx(t))
	require.NoError(t, err, "a failing query must not fail the aggregate")
	assert.Equal(t, []string{"user1", "user2", "user4", "user5"}, partial.Values())
	assert.Equal(t, 1, partial.Failures())
	assert.Equal(t, 5, partial.Len())

	slot := partial.Slots[2]
	assert.False(t, slot.Ok())
	assert.ErrorIs(t, slot.Err, boom)
	assert.Equal(t, "k3", slot.Key)
}

func TestCollectAllOrPartial_AllFail(t *testing.T) {
	ex := testutil.NewScriptedExecutor[string]()
	boom := errors.New("unavailable")
	for _, k := range fixtureKeys {
		ex.WithFailure(k, boom)
	}

	agg, err := CollectAllOrPartial[string](ex, usersQuery, fixtureKeys...)
	require.NoError(t, err)

	partial := awaitValue(t, agg)
	assert.Empty(t, partial.Values())
	assert.Equal(t, 5, partial.Failures())
	assert.Len(t, partial.Errors(), 5)
}

func TestCollectAllOrPartial_NoKeys(t *testing.T) {
	ex := testutil.NewScriptedExecutor[string]()

	agg, err := CollectAllOrPartial[string](ex, usersQuery)
	require.NoError(t, err)
	require.True(t, agg.IsDone(), "empty aggregate is already complete")

	partial := awaitValue(t, agg)
	assert.Zero(t, partial.Len())
	assert.Empty(t, partial.Values())
}

func TestCollectAllOrPartial_DispatchErrorIsSynchronous(t *testing.T) {
	ex := newFixtureExecutor(t).WithDispatchError(0, errors.New("closed"))

	agg, err := CollectAllOrPartial[string](ex, usersQuery, fixtureKeys...)
	assert.Nil(t, agg)
	assert.True(t, IsDispatchError(err))
}

func TestCollectAllOrPartial_CancelPropagates(t *testing.T) {
	ex := newFixtureExecutor(t).Gated()

	agg, err := CollectAllOrPartial[string](ex, usersQuery, fixtureKeys...)
	require.NoError(t, err)
	require.True(t, ex.Release("k1"))

	require.True(t, agg.Cancel())
	_, err = agg.Await(awaitCtx(t))
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 4, ex.Cancelled(), "only in-flight queries are cancelled")
	for _, h := range ex.Handles() {
		assert.True(t, h.IsDone())
	}
}

func TestAllOrPartial_AlreadySettledInputs(t *testing.T) {
	boom := errors.New("boom")
	pending := []Pending[int]{
		{Index: 0, Key: "a", Future: future.Resolved(1)},
		{Index: 1, Key: "b", Future: future.Rejected[int](boom)},
		{Index: 2, Key: "c", Future: future.Resolved(3)},
	}

	agg := AllOrPartial(pending)
	require.True(t, agg.IsDone())
	partial := awaitValue(t, agg)
	assert.Equal(t, []int{1, 3}, partial.Values())
	assert.Equal(t, []error{boom}, partial.Errors())
}
