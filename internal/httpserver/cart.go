package httpserver

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/agrilink/marketplace/internal/logging"
	"github.com/agrilink/marketplace/internal/service"
)

type CartHTTP struct {
	Svc *service.CartService
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.get")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	cart, err := h.Svc.GetCart(ctx, uid)
	if err != nil {
		l.Error("get_cart_error", "error", err)
		return kindError(err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHTTP) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	var req struct {
		ProductID uuid.UUID `json:"product_id"`
		Quantity  int       `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	cart, err := h.Svc.AddItem(ctx, uid, req.ProductID, req.Quantity)
	if err != nil {
		l.Warn("add_to_cart_error", "product_id", req.ProductID, "error", err)
		return kindError(err)
	}

	l.Info("cart_item_added", "product_id", req.ProductID, "quantity", req.Quantity)
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHTTP) UpdateCartItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.update")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	productID, err := uuid.Parse(c.Param("productID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	cart, err := h.Svc.SetItemQuantity(ctx, uid, productID, req.Quantity)
	if err != nil {
		l.Warn("update_cart_item_error", "product_id", productID, "error", err)
		return kindError(err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHTTP) RemoveFromCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	productID, err := uuid.Parse(c.Param("productID"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	cart, err := h.Svc.RemoveItem(ctx, uid, productID)
	if err != nil {
		l.Warn("remove_from_cart_error", "product_id", productID, "error", err)
		return kindError(err)
	}
	return c.JSON(http.StatusOK, cart)
}

func (h *CartHTTP) ClearCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.clear")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	cart, err := h.Svc.Clear(ctx, uid)
	if err != nil {
		l.Error("clear_cart_error", "error", err)
		return kindError(err)
	}

	l.Info("cart_cleared")
	return c.JSON(http.StatusOK, cart)
}
