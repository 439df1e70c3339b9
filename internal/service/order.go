package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/agrilink/marketplace/internal/apperr"
	"github.com/agrilink/marketplace/internal/events"
	"github.com/agrilink/marketplace/internal/logging"
	"github.com/agrilink/marketplace/internal/models"
	"github.com/agrilink/marketplace/internal/repo"
	"github.com/agrilink/marketplace/internal/userlock"
)

// OrderService converts carts into immutable orders and drives the order
// status machine. PlaceOrder holds the user's lock across one transaction,
// so a checkout never interleaves with another checkout or cart mutation
// for the same user.
type OrderService struct {
	Repo   *repo.GormRepo
	Locks  *userlock.Locker
	Events events.Publisher
}

func NewOrderService(r *repo.GormRepo, locks *userlock.Locker, pub events.Publisher) *OrderService {
	return &OrderService{Repo: r, Locks: locks, Events: pub}
}

func (s *OrderService) publish(ctx context.Context, key string, event map[string]any) {
	if err := s.Events.Publish(ctx, events.TopicOrderEvents, key, event); err != nil {
		logging.FromContext(ctx).Error("event publish failed", "topic", events.TopicOrderEvents, "error", err)
	}
}

// PlaceOrder snapshots the user's cart into a Pending order priced at the
// live product prices, then clears the cart. All-or-nothing: any storage
// error rolls back both the order insert and the cart clear.
func (s *OrderService) PlaceOrder(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	unlock := s.Locks.Lock(userID)
	defer unlock()

	var order *models.Order

	txErr := s.Repo.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		r := s.Repo.WithTx(tx)

		cart, err := r.CartByUserForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("cart is empty: %w", apperr.ErrInvalidState)
			}
			return err
		}
		if len(cart.Items) == 0 {
			return fmt.Errorf("cart is empty: %w", apperr.ErrInvalidState)
		}

		total := decimal.Zero
		lines := make([]models.OrderLineItem, 0, len(cart.Items))
		for _, it := range cart.Items {
			p, err := r.ProductByID(ctx, it.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("product %s no longer exists: %w", it.ProductID, apperr.ErrNotFound)
				}
				return err
			}

			lineTotal := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
			lines = append(lines, models.OrderLineItem{
				ProductID: p.ID,
				Name:      p.Name,
				Quantity:  it.Quantity,
				UnitPrice: p.Price,
				LineTotal: lineTotal,
			})
			total = total.Add(lineTotal)
		}

		o := &models.Order{
			UserID: userID,
			Status: models.OrderStatusPending,
			Total:  total,
			Items:  lines,
		}
		if err := r.CreateOrder(ctx, o); err != nil {
			return err
		}

		if err := r.ClearCartItems(ctx, cart.ID); err != nil {
			return err
		}

		order = o
		return nil
	})
	if txErr != nil {
		if isKind(txErr) {
			return nil, txErr
		}
		return nil, fmt.Errorf("place order: %v: %w", txErr, apperr.ErrStorage)
	}

	s.publish(ctx, userID.String(), map[string]any{
		"type":     "order_created",
		"user_id":  userID,
		"order_id": order.ID,
		"total":    order.Total,
	})

	return order, nil
}

// GetOrder returns the order with its line snapshots. Only the owner may
// read it.
func (s *OrderService) GetOrder(ctx context.Context, orderID, requestingUserID uuid.UUID) (*models.Order, error) {
	order, err := s.ownedOrder(ctx, orderID, requestingUserID)
	if err != nil {
		return nil, err
	}
	return order, nil
}

// ListOrders returns the user's orders, newest first.
func (s *OrderService) ListOrders(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	orders, err := s.Repo.ListOrders(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", apperr.ErrStorage)
	}
	return orders, nil
}

// SetStatus moves the order to newStatus. Ownership is checked first;
// transitions out of a terminal status (delivered, cancelled) are rejected.
func (s *OrderService) SetStatus(ctx context.Context, orderID uuid.UUID, newStatus string, requestingUserID uuid.UUID) (*models.Order, error) {
	if !models.IsKnownStatus(newStatus) {
		return nil, fmt.Errorf("unknown status %q: %w", newStatus, apperr.ErrInvalidState)
	}

	order, err := s.ownedOrder(ctx, orderID, requestingUserID)
	if err != nil {
		return nil, err
	}

	if models.IsTerminalStatus(order.Status) {
		return nil, fmt.Errorf("order is already %s: %w", order.Status, apperr.ErrInvalidState)
	}

	if err := s.Repo.UpdateOrderStatus(ctx, orderID, newStatus); err != nil {
		return nil, fmt.Errorf("status update: %w", apperr.ErrStorage)
	}
	order.Status = newStatus

	s.publish(ctx, requestingUserID.String(), map[string]any{
		"type":     "order_status_changed",
		"order_id": orderID,
		"status":   newStatus,
	})

	return order, nil
}

// Cancel is SetStatus(cancelled) with a dedicated guard: a delivered order
// can never be cancelled.
func (s *OrderService) Cancel(ctx context.Context, orderID, requestingUserID uuid.UUID) (*models.Order, error) {
	order, err := s.ownedOrder(ctx, orderID, requestingUserID)
	if err != nil {
		return nil, err
	}

	if order.Status == models.OrderStatusDelivered {
		return nil, fmt.Errorf("delivered orders cannot be cancelled: %w", apperr.ErrInvalidState)
	}
	if order.Status == models.OrderStatusCancelled {
		return nil, fmt.Errorf("order is already cancelled: %w", apperr.ErrInvalidState)
	}

	if err := s.Repo.UpdateOrderStatus(ctx, orderID, models.OrderStatusCancelled); err != nil {
		return nil, fmt.Errorf("status update: %w", apperr.ErrStorage)
	}
	order.Status = models.OrderStatusCancelled

	s.publish(ctx, requestingUserID.String(), map[string]any{
		"type":     "order_cancelled",
		"order_id": orderID,
	})

	return order, nil
}

// Reorder merges the order's line snapshots back into the user's cart.
// Lines whose product has since been deleted are skipped rather than
// failing the whole call. The order's own status is untouched.
func (s *OrderService) Reorder(ctx context.Context, orderID, requestingUserID uuid.UUID) error {
	order, err := s.ownedOrder(ctx, orderID, requestingUserID)
	if err != nil {
		return err
	}

	unlock := s.Locks.Lock(requestingUserID)
	defer unlock()

	l := logging.FromContext(ctx)
	for _, line := range order.Items {
		if _, err := s.Repo.ProductByID(ctx, line.ProductID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				l.Warn("reorder skipping deleted product", "order_id", orderID, "product_id", line.ProductID)
				continue
			}
			return fmt.Errorf("product lookup: %w", apperr.ErrStorage)
		}
		if err := s.Repo.UpsertCartItem(ctx, requestingUserID, line.ProductID, line.Quantity); err != nil {
			return fmt.Errorf("cart upsert: %w", apperr.ErrStorage)
		}
	}

	s.publish(ctx, requestingUserID.String(), map[string]any{
		"type":     "order_reordered",
		"order_id": orderID,
	})

	return nil
}

func (s *OrderService) ownedOrder(ctx context.Context, orderID, requestingUserID uuid.UUID) (*models.Order, error) {
	order, err := s.Repo.OrderByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %s: %w", orderID, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("order read: %w", apperr.ErrStorage)
	}
	if order.UserID != requestingUserID {
		return nil, fmt.Errorf("order %s belongs to another user: %w", orderID, apperr.ErrForbidden)
	}
	return order, nil
}

func isKind(err error) bool {
	return errors.Is(err, apperr.ErrNotFound) ||
		errors.Is(err, apperr.ErrInvalidState) ||
		errors.Is(err, apperr.ErrForbidden) ||
		errors.Is(err, apperr.ErrStorage)
}
