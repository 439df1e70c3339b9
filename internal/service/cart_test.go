package service

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/marketplace/internal/apperr"
	"github.com/agrilink/marketplace/internal/models"
)

func TestAddItemMergesDuplicateLines(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	p := env.seedProduct("tomatoes", "2.50", 100)

	_, err := env.Cart.AddItem(ctx, userID, p.ID, 2)
	require.NoError(t, err)

	cart, err := env.Cart.AddItem(ctx, userID, p.ID, 3)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	require.Equal(t, p.ID, cart.Items[0].ProductID)
	require.Equal(t, uint(5), cart.Items[0].Quantity)
}

func TestAddItemRejectsNonPositiveQuantity(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	p := env.seedProduct("eggs", "4.00", 30)

	for _, q := range []int{0, -1, -10} {
		_, err := env.Cart.AddItem(ctx, userID, p.ID, q)
		require.ErrorIs(t, err, apperr.ErrInvalidState)
	}

	cart, err := env.Cart.GetCart(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, cart.Items)
}

func TestAddItemUnknownProduct(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.Cart.AddItem(ctx, uuid.New(), uuid.New(), 1)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestAddItemJoinsProductData(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	p := env.seedProduct("honey", "12.00", 5)

	cart, err := env.Cart.AddItem(ctx, userID, p.ID, 1)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	require.NotNil(t, cart.Items[0].Product)
	require.Equal(t, "honey", cart.Items[0].Product.Name)
	requireDecimalEqual(t, "12.00", cart.Items[0].Product.Price)
}

func TestSetItemQuantitySets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	p := env.seedProduct("carrots", "1.20", 50)

	_, err := env.Cart.AddItem(ctx, userID, p.ID, 2)
	require.NoError(t, err)

	cart, err := env.Cart.SetItemQuantity(ctx, userID, p.ID, 7)
	require.NoError(t, err)

	require.Len(t, cart.Items, 1)
	require.Equal(t, uint(7), cart.Items[0].Quantity)
}

func TestSetItemQuantityZeroRemovesLine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	p := env.seedProduct("potatoes", "0.80", 200)

	for _, q := range []int{0, -3} {
		_, err := env.Cart.AddItem(ctx, userID, p.ID, 4)
		require.NoError(t, err)

		cart, err := env.Cart.SetItemQuantity(ctx, userID, p.ID, q)
		require.NoError(t, err)
		require.Empty(t, cart.Items)
	}
}

func TestSetItemQuantityMissingLine(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	p := env.seedProduct("apples", "3.00", 40)

	// no cart at all
	_, err := env.Cart.SetItemQuantity(ctx, userID, p.ID, 2)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	// cart exists, line does not
	other := env.seedProduct("pears", "3.50", 40)
	_, err = env.Cart.AddItem(ctx, userID, other.ID, 1)
	require.NoError(t, err)

	_, err = env.Cart.SetItemQuantity(ctx, userID, p.ID, 2)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRemoveItemIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	p := env.seedProduct("milk", "1.50", 20)

	_, err := env.Cart.AddItem(ctx, userID, p.ID, 1)
	require.NoError(t, err)

	cart, err := env.Cart.RemoveItem(ctx, userID, p.ID)
	require.NoError(t, err)
	require.Empty(t, cart.Items)

	// removing an absent line is not an error
	cart, err = env.Cart.RemoveItem(ctx, userID, p.ID)
	require.NoError(t, err)
	require.Empty(t, cart.Items)
}

func TestRemoveItemWithoutCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.Cart.RemoveItem(ctx, uuid.New(), uuid.New())
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetCartNeverNil(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cart, err := env.Cart.GetCart(ctx, uuid.New())
	require.NoError(t, err)
	require.NotNil(t, cart)
	require.NotNil(t, cart.Items)
	require.Empty(t, cart.Items)
}

func TestClearKeepsCartRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	p := env.seedProduct("cheese", "8.00", 10)

	_, err := env.Cart.AddItem(ctx, userID, p.ID, 3)
	require.NoError(t, err)

	cart, err := env.Cart.Clear(ctx, userID)
	require.NoError(t, err)
	require.Empty(t, cart.Items)

	var count int64
	require.NoError(t, env.DB.Model(&models.Cart{}).Where("user_id = ?", userID).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestClearWithoutCart(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cart, err := env.Cart.Clear(ctx, uuid.New())
	require.NoError(t, err)
	require.Empty(t, cart.Items)
}

func TestConcurrentAddsSameUser(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	userID := uuid.New()
	p := env.seedProduct("strawberries", "6.00", 500)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.Cart.AddItem(ctx, userID, p.ID, 1)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	cart, err := env.Cart.GetCart(ctx, userID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 1)
	require.Equal(t, uint(workers), cart.Items[0].Quantity)
}
