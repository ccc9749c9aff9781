package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixtureUsers(t *testing.T) {
	users := FixtureUsers()
	require.Len(t, users, 5)

	seen := map[uuid.UUID]bool{}
	for i, u := range users {
		assert.Equal(t, "user"+string(rune('1'+i)), u.Name)
		assert.False(t, seen[u.ID], "duplicate fixture id %s", u.ID)
		seen[u.ID] = true
	}
}

func TestSeedUsers_ListOrdered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SeedUsers(ctx, FixtureUsers()))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, FixtureUsers(), users)
}

func TestSeedUsers_Upsert(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SeedUsers(ctx, FixtureUsers()))
	renamed := FixtureUsers()[:1]
	renamed[0].Name = "zed"
	require.NoError(t, s.SeedUsers(ctx, renamed))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 5)
	assert.Equal(t, "zed", users[4].Name)
}

func TestListUsers_Empty(t *testing.T) {
	s := createTestStore(t)

	users, err := s.ListUsers(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}
