package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrilink/marketplace/internal/models"
)

// CartByUser loads the user's cart with product data joined into every
// line. Returns gorm.ErrRecordNotFound when the cart was never created.
func (r *GormRepo) CartByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := r.DB.WithContext(ctx).
		Preload("Items.Product").
		First(&cart, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

// CartByUserForUpdate is CartByUser with the cart row locked for the
// duration of the surrounding transaction.
func (r *GormRepo) CartByUserForUpdate(ctx context.Context, userID uuid.UUID) (*models.Cart, error) {
	var cart models.Cart
	err := forUpdate(r.DB.WithContext(ctx)).
		First(&cart, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}
	if err := r.DB.WithContext(ctx).
		Preload("Product").
		Find(&cart.Items, "cart_id = ?", cart.ID).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// UpsertCartItem merges quantity into an existing (cart, product) line or
// appends a new one, creating the cart header on first use.
func (r *GormRepo) UpsertCartItem(ctx context.Context, userID, productID uuid.UUID, quantity uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart := models.Cart{UserID: userID}
		if err := tx.Where("user_id = ?", userID).FirstOrCreate(&cart).Error; err != nil {
			return err
		}

		res := tx.Model(&models.CartItem{}).
			Where("cart_id = ? AND product_id = ?", cart.ID, productID).
			Update("quantity", gorm.Expr("quantity + ?", quantity))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}

		item := models.CartItem{CartID: cart.ID, ProductID: productID, Quantity: quantity}
		return tx.Create(&item).Error
	})
}

// SetCartItemQuantity sets (not increments) a line's quantity, removing the
// line when quantity is zero. Returns gorm.ErrRecordNotFound when the cart
// or the line does not exist.
func (r *GormRepo) SetCartItemQuantity(ctx context.Context, userID, productID uuid.UUID, quantity uint) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		if err := tx.First(&cart, "user_id = ?", userID).Error; err != nil {
			return err
		}

		var item models.CartItem
		if err := forUpdate(tx).
			First(&item, "cart_id = ? AND product_id = ?", cart.ID, productID).Error; err != nil {
			return err
		}

		if quantity == 0 {
			return tx.Delete(&item).Error
		}
		return tx.Model(&item).Update("quantity", quantity).Error
	})
}

// RemoveCartItem deletes the line if present. Removing an absent line is
// not an error; a missing cart is gorm.ErrRecordNotFound.
func (r *GormRepo) RemoveCartItem(ctx context.Context, userID, productID uuid.UUID) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		if err := tx.First(&cart, "user_id = ?", userID).Error; err != nil {
			return err
		}
		return tx.Where("cart_id = ? AND product_id = ?", cart.ID, productID).
			Delete(&models.CartItem{}).Error
	})
}

// ClearCartItems empties the cart's item collection without deleting the
// cart row itself.
func (r *GormRepo) ClearCartItems(ctx context.Context, cartID uuid.UUID) error {
	return r.DB.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&models.CartItem{}).Error
}
