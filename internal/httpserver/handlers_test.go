package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/agrilink/marketplace/internal/events"
	"github.com/agrilink/marketplace/internal/hash"
	"github.com/agrilink/marketplace/internal/models"
	"github.com/agrilink/marketplace/internal/repo"
	"github.com/agrilink/marketplace/internal/service"
	"github.com/agrilink/marketplace/internal/userlock"
)

var testSecret = []byte("test-access-secret")

type testEnv struct {
	T    *testing.T
	E    *echo.Echo
	DB   *gorm.DB
	Repo *repo.GormRepo
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, models.AutoMigrate(db))

	r := repo.New(db)
	locks := userlock.New()
	pub := events.Noop{}

	deps := Deps{
		AuthHandler:    &AuthHTTP{Svc: service.NewAuthService(r, testSecret, []byte("test-refresh-secret"))},
		ProductHandler: &ProductHTTP{Svc: service.NewCatalogService(r, pub, nil)},
		CartHandler:    &CartHTTP{Svc: service.NewCartService(r, locks, pub)},
		OrderHandler:   &OrderHTTP{Svc: service.NewOrderService(r, locks, pub)},
		JWTSecret:      testSecret,
	}

	e := echo.New()
	Register(e, &deps)

	return &testEnv{T: t, E: e, DB: db, Repo: r}
}

func (env *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	env.T.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.E.ServeHTTP(rec, req)
	return rec
}

func (env *testEnv) registerAndLogin(username string) string {
	env.T.Helper()

	creds := map[string]string{"username": username, "password": "testpassword"}
	rec := env.do(http.MethodPost, "/api/v1/register", "", creds)
	require.Equal(env.T, http.StatusCreated, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/login", "", creds)
	require.Equal(env.T, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(env.T, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(env.T, resp.AccessToken)
	return resp.AccessToken
}

func (env *testEnv) loginAdmin() string {
	env.T.Helper()

	pwHash, err := hash.HashPassword("adminpassword")
	require.NoError(env.T, err)
	admin := &models.User{Username: "admin", PasswordHash: pwHash, Role: "admin"}
	require.NoError(env.T, env.Repo.CreateUser(context.Background(), admin))

	rec := env.do(http.MethodPost, "/api/v1/login", "", map[string]string{
		"username": "admin", "password": "adminpassword",
	})
	require.Equal(env.T, http.StatusOK, rec.Code)

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(env.T, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.AccessToken
}

func (env *testEnv) seedProduct(name, price string) *models.Product {
	env.T.Helper()

	p := &models.Product{Name: name, Price: decimal.RequireFromString(price), Quantity: 100}
	require.NoError(env.T, env.Repo.CreateProduct(context.Background(), p))
	return p
}

func TestCartRequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/api/v1/cart", "", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckoutFlow(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin("rosa")

	a := env.seedProduct("apples", "3.00")
	b := env.seedProduct("bread", "5.00")

	rec := env.do(http.MethodGet, "/api/v1/cart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/cart", token, map[string]any{
		"product_id": a.ID, "quantity": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/cart", token, map[string]any{
		"product_id": b.ID, "quantity": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var cart models.Cart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	require.Len(t, cart.Items, 2)

	rec = env.do(http.MethodPost, "/api/v1/orders", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	require.Equal(t, models.OrderStatusPending, order.Status)
	require.True(t, decimal.RequireFromString("11.00").Equal(order.Total))
	require.Len(t, order.Items, 2)

	rec = env.do(http.MethodGet, "/api/v1/cart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	require.Empty(t, cart.Items)

	rec = env.do(http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/cancel", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))
	require.Equal(t, models.OrderStatusCancelled, order.Status)
}

func TestAddUnknownProductIs404(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin("leo")

	rec := env.do(http.MethodPost, "/api/v1/cart", token, map[string]any{
		"product_id": uuid.New(), "quantity": 1,
	})
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmptyCartCheckoutIs422(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin("nina")

	rec := env.do(http.MethodPost, "/api/v1/orders", token, nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestForeignOrderIs403(t *testing.T) {
	env := newTestEnv(t)
	ownerToken := env.registerAndLogin("owner")
	strangerToken := env.registerAndLogin("stranger")

	p := env.seedProduct("squash", "4.00")
	rec := env.do(http.MethodPost, "/api/v1/cart", ownerToken, map[string]any{
		"product_id": p.ID, "quantity": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/orders", ownerToken, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))

	rec = env.do(http.MethodGet, "/api/v1/orders/"+order.ID.String(), strangerToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/cancel", strangerToken, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminProductCreate(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.loginAdmin()
	userToken := env.registerAndLogin("pete")

	body := map[string]any{"name": "zucchini", "price": "2.20", "quantity": 40}

	rec := env.do(http.MethodPost, "/api/v1/admin/products", userToken, body)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/admin/products", adminToken, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var p models.Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, "zucchini", p.Name)
	require.True(t, decimal.RequireFromString("2.20").Equal(p.Price))
}

func TestReorderEndpoint(t *testing.T) {
	env := newTestEnv(t)
	token := env.registerAndLogin("ella")
	p := env.seedProduct("beans", "1.50")

	rec := env.do(http.MethodPost, "/api/v1/cart", token, map[string]any{
		"product_id": p.ID, "quantity": 2,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(http.MethodPost, "/api/v1/orders", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var order models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &order))

	rec = env.do(http.MethodPost, "/api/v1/orders/"+order.ID.String()+"/reorder", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(http.MethodGet, "/api/v1/cart", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var cart models.Cart
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	require.Len(t, cart.Items, 1)
	require.Equal(t, uint(2), cart.Items[0].Quantity)
}
