package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/marketplace/internal/apperr"
)

func TestCreateProductValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	farmerID := uuid.New()

	_, err := env.Catalog.CreateProduct(ctx, farmerID, ProductInput{Price: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = env.Catalog.CreateProduct(ctx, farmerID, ProductInput{
		Name:  "kale",
		Price: decimal.RequireFromString("-0.01"),
	})
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestPatchSoldOutLeavesQuantity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct("raspberries", "9.00", 12)

	soldOut := true
	patched, err := env.Catalog.PatchProduct(ctx, p.ID, ProductPatch{SoldOut: &soldOut})
	require.NoError(t, err)

	require.True(t, patched.SoldOut)
	require.Equal(t, uint(12), patched.Quantity)
}

func TestRecordSaleFlipsSoldOutAtZero(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct("leeks", "2.00", 3)

	updated, err := env.Catalog.RecordSale(ctx, p.ID, 2)
	require.NoError(t, err)
	require.Equal(t, uint(1), updated.Quantity)
	require.False(t, updated.SoldOut)

	updated, err = env.Catalog.RecordSale(ctx, p.ID, 1)
	require.NoError(t, err)
	require.Equal(t, uint(0), updated.Quantity)
	require.True(t, updated.SoldOut)
}

func TestRecordSaleInsufficientStock(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	p := env.seedProduct("chili", "3.00", 2)

	_, err := env.Catalog.RecordSale(ctx, p.ID, 5)
	require.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestDeleteProductMissing(t *testing.T) {
	env := newTestEnv(t)

	err := env.Catalog.DeleteProduct(context.Background(), uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestPaginateClamps(t *testing.T) {
	offset, limit := Paginate(0, 0)
	require.Equal(t, 0, offset)
	require.Equal(t, 10, limit)

	offset, limit = Paginate(3, 20)
	require.Equal(t, 40, offset)
	require.Equal(t, 20, limit)

	_, limit = Paginate(1, 1000)
	require.Equal(t, 10, limit)
}
