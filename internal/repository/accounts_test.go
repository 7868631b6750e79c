package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/starsky/internal/model"
)

func TestCreateAccount_Duplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	_, err := repo.CreateAccount(ctx, "luna", "Luna", []byte("h"))
	require.NoError(t, err)

	_, err = repo.CreateAccount(ctx, "luna", "Luna", []byte("h"))
	require.ErrorIs(t, err, ErrAccountExists)

	acc, err := repo.GetAccountByLogin(ctx, "luna")
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, acc.Role)
	assert.False(t, acc.UnlimitedCredits)

	_, err = repo.GetAccountByLogin(ctx, "sol")
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestIsAdmin(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	id := seedAccount(t, repo, "moderator", 0, false)

	admin, err := repo.IsAdmin(ctx, id)
	require.NoError(t, err)
	assert.False(t, admin)

	require.NoError(t, repo.SetRole(ctx, id, model.RoleAdmin))

	admin, err = repo.IsAdmin(ctx, id)
	require.NoError(t, err)
	assert.True(t, admin)

	require.ErrorIs(t, repo.SetRole(ctx, 424242, model.RoleAdmin), ErrAccountNotFound)
}

func TestCredits(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	id := seedAccount(t, repo, "saver", 0, false)

	credits, err := repo.GetCredits(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(0), credits.Credits)
	assert.Equal(t, 0, creditRows(t, repo, id))

	total, err := repo.AddCredits(ctx, id, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	total, err = repo.AddCredits(ctx, id, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)

	_, err = repo.AddCredits(ctx, id, 0)
	require.Error(t, err)

	_, err = repo.AddCredits(ctx, 424242, 1)
	require.ErrorIs(t, err, ErrAccountNotFound)

	_, err = repo.GetCredits(ctx, 424242)
	require.ErrorIs(t, err, ErrAccountNotFound)
}

func TestPurchases(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	buyer := seedAccount(t, repo, "buyer", 0, false)
	other := seedAccount(t, repo, "other", 0, false)

	already, err := repo.AddPurchase(ctx, buyer, "cs_test_1")
	require.NoError(t, err)
	assert.False(t, already)

	already, err = repo.AddPurchase(ctx, buyer, "cs_test_1")
	require.NoError(t, err)
	assert.True(t, already)

	_, err = repo.AddPurchase(ctx, other, "cs_test_1")
	require.ErrorIs(t, err, ErrPurchaseOwnedByAnother)

	pending, err := repo.GetPurchasesForFulfillment(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	require.NoError(t, repo.UpdatePurchaseStatus(ctx, "cs_test_1", model.PurchaseStatusPending))

	ok, err := repo.FulfillPurchase(ctx, "cs_test_1", 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.FulfillPurchase(ctx, "cs_test_1", 10)
	require.NoError(t, err)
	assert.False(t, ok)

	credits, err := repo.GetCredits(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, int64(10), credits.Credits)

	purchases, err := repo.GetPurchasesByAccount(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, model.PurchaseStatusFulfilled, purchases[0].Status)
	require.NotNil(t, purchases[0].Credits)
	assert.Equal(t, int64(10), *purchases[0].Credits)

	pending, err = repo.GetPurchasesForFulfillment(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
