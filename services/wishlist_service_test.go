package services

import (
	"context"
	"errors"
	"testing"

	"github.com/ironworks/storefront-api/models"
	"github.com/ironworks/storefront-api/tests/testdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWishlist(t *testing.T) {
	db := testdb.New(t)
	ctx := context.Background()
	svc := NewWishlistService(db)
	user := testdb.CreateUser(t, db, "auth0|wish", "wish@example.com", models.RoleCustomer)
	products := seedCatalog(t, db, "a", "b")
	hidden := testdb.CreateProduct(t, db, products[0].CategoryID, "hidden", testdb.Unpublished())

	require.NoError(t, svc.Add(ctx, user.ID, products[0].ID))
	require.NoError(t, svc.Add(ctx, user.ID, products[0].ID), "adding twice is harmless")
	require.NoError(t, svc.Add(ctx, user.ID, products[1].ID))
	assert.True(t, errors.Is(svc.Add(ctx, user.ID, hidden.ID), ErrNotFound))

	items, err := svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.NotNil(t, items[0].Product)

	require.NoError(t, svc.Remove(ctx, user.ID, products[0].ID))
	require.NoError(t, svc.Remove(ctx, user.ID, products[0].ID))
	items, err = svc.List(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, products[1].ID, items[0].ProductID)
}
