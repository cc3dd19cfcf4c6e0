package users

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/villagekeeper/internal/common"
	"github.com/dmitrijs2005/villagekeeper/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRepository()

	alice, err := r.Create(ctx, &models.User{UserName: "alice", PasswordHash: "h1"})
	require.NoError(t, err)
	assert.NotEmpty(t, alice.ID)

	_, err = r.Create(ctx, &models.User{UserName: "alice", PasswordHash: "h2"})
	assert.ErrorIs(t, err, common.ErrDuplicateAccount)

	got, err := r.GetUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, got.ID)
	assert.Equal(t, "h1", got.PasswordHash)

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].PasswordHash)

	require.NoError(t, r.Delete(ctx, alice.ID))
	assert.ErrorIs(t, r.Delete(ctx, alice.ID), common.ErrorNotFound)
	_, err = r.GetUserByLogin(ctx, "alice")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}
