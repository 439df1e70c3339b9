package repo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/agrilink/marketplace/internal/models"
)

func (r *GormRepo) CreateUser(ctx context.Context, user *models.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *GormRepo) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) UserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *GormRepo) AddRefreshToken(ctx context.Context, jti string, userID uuid.UUID, expiresAt time.Time) error {
	rt := models.RefreshToken{JTI: jti, UserID: userID, ExpiresAt: expiresAt}
	return r.DB.WithContext(ctx).Create(&rt).Error
}

func (r *GormRepo) RefreshTokenByJTI(ctx context.Context, jti string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	if err := r.DB.WithContext(ctx).First(&rt, "jti = ?", jti).Error; err != nil {
		return nil, err
	}
	return &rt, nil
}

func (r *GormRepo) RevokeRefreshToken(ctx context.Context, jti string) error {
	return r.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("jti = ?", jti).
		Update("revoked", true).Error
}
