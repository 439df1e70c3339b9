package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/agrilink/marketplace/internal/apperr"
	"github.com/agrilink/marketplace/internal/hash"
	"github.com/agrilink/marketplace/internal/logging"
	"github.com/agrilink/marketplace/internal/models"
	"github.com/agrilink/marketplace/internal/repo"
	"github.com/agrilink/marketplace/internal/tokens"
)

const (
	accessTokenTTL  = 15 * time.Minute
	refreshTokenTTL = 7 * 24 * time.Hour
)

// ErrInvalidCredentials is deliberately not an apperr kind: the HTTP layer
// maps it to 401 without leaking which of username/password was wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

type AuthService struct {
	Repo          *repo.GormRepo
	JWTSecret     []byte
	RefreshSecret []byte
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

func NewAuthService(r *repo.GormRepo, jwtSecret, refreshSecret []byte) *AuthService {
	return &AuthService{Repo: r, JWTSecret: jwtSecret, RefreshSecret: refreshSecret}
}

func (s *AuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	l := logging.FromContext(ctx).With("svc", "auth.register")

	if username == "" || password == "" {
		return nil, fmt.Errorf("username and password required: %w", apperr.ErrInvalidState)
	}

	if _, err := s.Repo.UserByUsername(ctx, username); err == nil {
		return nil, fmt.Errorf("username already taken: %w", apperr.ErrInvalidState)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user lookup: %w", apperr.ErrStorage)
	}

	pwHash, err := hash.HashPassword(password)
	if err != nil {
		l.Error("password hash failed", "error", err)
		return nil, fmt.Errorf("password hash: %w", apperr.ErrStorage)
	}

	user := &models.User{Username: username, PasswordHash: pwHash, Role: "user"}
	if err := s.Repo.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("user create: %w", apperr.ErrStorage)
	}

	l.Info("user registered", "user_id", user.ID)
	return user, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	l := logging.FromContext(ctx).With("svc", "auth.login")

	user, err := s.Repo.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user lookup: %w", apperr.ErrStorage)
	}
	if !hash.CheckPassword(user.PasswordHash, password) {
		l.Warn("login failed", "username", username)
		return nil, ErrInvalidCredentials
	}

	return s.issueTokens(ctx, user)
}

// Refresh rotates the token pair: the presented refresh token is revoked
// and a new pair is issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	stored, err := s.Repo.RefreshTokenByJTI(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("token lookup: %w", apperr.ErrStorage)
	}
	if stored.Revoked || time.Now().After(stored.ExpiresAt) {
		return nil, ErrInvalidCredentials
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	user, err := s.Repo.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("user lookup: %w", apperr.ErrStorage)
	}

	if err := s.Repo.RevokeRefreshToken(ctx, claims.ID); err != nil {
		return nil, fmt.Errorf("token revoke: %w", apperr.ErrStorage)
	}

	return s.issueTokens(ctx, user)
}

func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := tokens.RefreshClaimsFromToken(refreshToken, s.RefreshSecret)
	if err != nil {
		return nil // nothing to revoke
	}
	if err := s.Repo.RevokeRefreshToken(ctx, claims.ID); err != nil {
		return fmt.Errorf("token revoke: %w", apperr.ErrStorage)
	}
	return nil
}

func (s *AuthService) issueTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(accessTokenTTL)
	refreshExp := now.Add(refreshTokenTTL)

	accessClaims := tokens.AccessClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(accessExp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(s.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("access token sign: %w", apperr.ErrStorage)
	}

	jti := tokens.NewJTI()
	refreshClaims := tokens.RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(s.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("refresh token sign: %w", apperr.ErrStorage)
	}

	if err := s.Repo.AddRefreshToken(ctx, jti, user.ID, refreshExp); err != nil {
		return nil, fmt.Errorf("refresh token store: %w", apperr.ErrStorage)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}
