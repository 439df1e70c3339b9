package service

import (
	"context"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agrilink/marketplace/internal/events"
	"github.com/agrilink/marketplace/internal/models"
	"github.com/agrilink/marketplace/internal/repo"
	"github.com/agrilink/marketplace/internal/userlock"
)

type testEnv struct {
	T       *testing.T
	DB      *gorm.DB
	Repo    *repo.GormRepo
	Cart    *CartService
	Orders  *OrderService
	Catalog *CatalogService
	Auth    *AuthService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.AutoMigrate(db))
	return db
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	r := repo.New(db)
	locks := userlock.New()
	pub := events.Noop{}

	return &testEnv{
		T:       t,
		DB:      db,
		Repo:    r,
		Cart:    NewCartService(r, locks, pub),
		Orders:  NewOrderService(r, locks, pub),
		Catalog: NewCatalogService(r, pub, nil),
		Auth:    NewAuthService(r, []byte("test-access-secret"), []byte("test-refresh-secret")),
	}
}

func (env *testEnv) seedProduct(name, price string, quantity uint) *models.Product {
	env.T.Helper()

	p := &models.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Quantity: quantity,
	}
	require.NoError(env.T, env.Repo.CreateProduct(context.Background(), p))
	return p
}

func requireDecimalEqual(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got),
		"expected %s, got %s", want, got.String())
}
