package service

import (
	"context"
	"testing"

	"github.com/safar/storefront/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartAddIsAdditive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.product(t, "Coffee", 2500, 10)

	_, err := env.cart.AddItem(ctx, "u1", p.ID, 2)
	require.NoError(t, err)
	cart, err := env.cart.AddItem(ctx, "u1", p.ID, 3)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	assert.Equal(t, 5, cart.Items[0].Quantity)
	assert.Equal(t, int64(12500), cart.Items[0].Subtotal)
	assert.Equal(t, int64(12500), cart.Total)
	assert.Equal(t, "Coffee", cart.Items[0].Name)
}

func TestCartRejectsQuantityAboveStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.product(t, "Coffee", 2500, 3)

	_, err := env.cart.AddItem(ctx, "u1", p.ID, 2)
	require.NoError(t, err)
	_, err = env.cart.AddItem(ctx, "u1", p.ID, 2)
	assertCode(t, err, apperr.CodeConflict)

	_, err = env.cart.SetQuantity(ctx, "u1", p.ID, 4)
	assertCode(t, err, apperr.CodeConflict)

	cart, err := env.cart.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, cart.Items[0].Quantity)
}

func TestCartUnknownProduct(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.cart.AddItem(context.Background(), "u1", "missing", 1)
	assertCode(t, err, apperr.CodeNotFound)
}

func TestCartNonPositiveQuantityRemovesLine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.product(t, "Coffee", 2500, 10)
	q := env.product(t, "Tea", 1500, 10)

	_, err := env.cart.AddItem(ctx, "u1", p.ID, 2)
	require.NoError(t, err)
	_, err = env.cart.AddItem(ctx, "u1", q.ID, 1)
	require.NoError(t, err)

	cart, err := env.cart.AddItem(ctx, "u1", p.ID, -2)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, q.ID, cart.Items[0].ProductID)

	cart, err = env.cart.SetQuantity(ctx, "u1", q.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, cart.Items)
	assert.Zero(t, cart.Total)

	_, err = env.cart.AddItem(ctx, "u1", p.ID, 0)
	assertCode(t, err, apperr.CodeValidation)
	_, err = env.cart.SetQuantity(ctx, "u1", p.ID, -1)
	assertCode(t, err, apperr.CodeValidation)
}

func TestCartRemoveIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.product(t, "Coffee", 2500, 10)

	_, err := env.cart.AddItem(ctx, "u1", p.ID, 1)
	require.NoError(t, err)

	removed, err := env.cart.RemoveItem(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = env.cart.RemoveItem(ctx, "u1", p.ID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestCartViewDropsDeletedProducts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.product(t, "Coffee", 2500, 10)
	q := env.product(t, "Tea", 1500, 10)

	_, err := env.cart.AddItem(ctx, "u1", p.ID, 1)
	require.NoError(t, err)
	_, err = env.cart.AddItem(ctx, "u1", q.ID, 2)
	require.NoError(t, err)
	require.NoError(t, env.catalog.Delete(ctx, p.ID))

	cart, err := env.cart.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	assert.Equal(t, int64(3000), cart.Total)
}

func TestCartClear(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.product(t, "Coffee", 2500, 10)

	_, err := env.cart.AddItem(ctx, "u1", p.ID, 1)
	require.NoError(t, err)
	_, err = env.cart.AddItem(ctx, "u2", p.ID, 1)
	require.NoError(t, err)

	n, err := env.cart.Clear(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	other, err := env.cart.Get(ctx, "u2")
	require.NoError(t, err)
	assert.Len(t, other.Items, 1)
}
