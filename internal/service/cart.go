package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrilink/marketplace/internal/apperr"
	"github.com/agrilink/marketplace/internal/events"
	"github.com/agrilink/marketplace/internal/logging"
	"github.com/agrilink/marketplace/internal/models"
	"github.com/agrilink/marketplace/internal/repo"
	"github.com/agrilink/marketplace/internal/userlock"
)

// CartService is the per-user cart store. Every mutation for a user is
// serialized through Locks; reads go straight to the repo.
type CartService struct {
	Repo   *repo.GormRepo
	Locks  *userlock.Locker
	Events events.Publisher
}

func NewCartService(r *repo.GormRepo, locks *userlock.Locker, pub events.Publisher) *CartService {
	return &CartService{Repo: r, Locks: locks, Events: pub}
}

func (s *CartService) publish(ctx context.Context, key string, event map[string]any) {
	if err := s.Events.Publish(ctx, events.TopicCartEvents, key, event); err != nil {
		logging.FromContext(ctx).Error("event publish failed", "topic", events.TopicCartEvents, "error", err)
	}
}

// AddItem merges quantity into the user's cart line for the product,
// creating the cart and the line as needed. The product must exist and the
// quantity must be a positive integer.
func (s *CartService) AddItem(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error) {
	if quantity < 1 {
		return nil, fmt.Errorf("quantity must be a positive integer: %w", apperr.ErrInvalidState)
	}
	if productID == uuid.Nil {
		return nil, fmt.Errorf("product id required: %w", apperr.ErrInvalidState)
	}

	unlock := s.Locks.Lock(userID)
	defer unlock()

	if _, err := s.Repo.ProductByID(ctx, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %s: %w", productID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("product lookup: %w", apperr.ErrStorage)
	}

	if err := s.Repo.UpsertCartItem(ctx, userID, productID, uint(quantity)); err != nil {
		return nil, fmt.Errorf("cart upsert: %w", apperr.ErrStorage)
	}

	s.publish(ctx, userID.String(), map[string]any{
		"type":       "cart_item_added",
		"user_id":    userID,
		"product_id": productID,
		"quantity":   quantity,
	})

	return s.getCart(ctx, userID)
}

// SetItemQuantity sets, not increments, a line's quantity. A quantity of
// zero or less removes the line.
func (s *CartService) SetItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) (*models.Cart, error) {
	unlock := s.Locks.Lock(userID)
	defer unlock()

	q := uint(0)
	if quantity > 0 {
		q = uint(quantity)
	}

	if err := s.Repo.SetCartItemQuantity(ctx, userID, productID, q); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cart line for product %s: %w", productID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("cart update: %w", apperr.ErrStorage)
	}

	s.publish(ctx, userID.String(), map[string]any{
		"type":       "cart_item_quantity_set",
		"user_id":    userID,
		"product_id": productID,
		"quantity":   quantity,
	})

	return s.getCart(ctx, userID)
}

// RemoveItem removes the line if present. Removing an absent line is not
// an error; a user without a cart gets NotFound.
func (s *CartService) RemoveItem(ctx context.Context, userID, productID uuid.UUID) (*models.Cart, error) {
	unlock := s.Locks.Lock(userID)
	defer unlock()

	if err := s.Repo.RemoveCartItem(ctx, userID, productID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("cart for user %s: %w", userID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("cart delete: %w", apperr.ErrStorage)
	}

	s.publish(ctx, userID.String(), map[string]any{
		"type":       "cart_item_removed",
		"user_id":    userID,
		"product_id": productID,
	})

	return s.getCart(ctx, userID)
}

// Clear empties the cart's item collection; the cart row survives. Clearing
// a user who never had a cart succeeds and returns the empty cart value.
func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	unlock := s.Locks.Lock(userID)
	defer unlock()

	cart, err := s.Repo.CartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyCart(userID), nil
		}
		return nil, fmt.Errorf("cart read: %w", apperr.ErrStorage)
	}

	if err := s.Repo.ClearCartItems(ctx, cart.ID); err != nil {
		return nil, fmt.Errorf("cart clear: %w", apperr.ErrStorage)
	}

	s.publish(ctx, userID.String(), map[string]any{
		"type":    "cart_cleared",
		"user_id": userID,
	})

	cart.Items = []models.CartItem{}
	return cart, nil
}

// GetCart returns the cart with product data joined into every line. A user
// without a cart gets an empty-items cart, never nil.
func (s *CartService) GetCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	return s.getCart(ctx, userID)
}

func (s *CartService) getCart(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	cart, err := s.Repo.CartByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return emptyCart(userID), nil
		}
		return nil, fmt.Errorf("cart read: %w", apperr.ErrStorage)
	}
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}
	return cart, nil
}

func emptyCart(userID uuid.UUID) *models.Cart {
	return &models.Cart{UserID: userID, Items: []models.CartItem{}}
}
