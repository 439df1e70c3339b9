package httpserver

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/agrilink/marketplace/internal/logging"
	"github.com/agrilink/marketplace/internal/service"
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) PlaceOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.place")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	order, err := h.Svc.PlaceOrder(ctx, uid)
	if err != nil {
		l.Warn("place_order_error", "error", err)
		return kindError(err)
	}

	l.Info("order_placed", "order_id", order.ID, "total", order.Total)
	return c.JSON(http.StatusCreated, order)
}

func (h *OrderHTTP) ListOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	orders, err := h.Svc.ListOrders(ctx, uid, limit, offset)
	if err != nil {
		l.Error("list_orders_error", "error", err)
		return kindError(err)
	}
	return c.JSON(http.StatusOK, orders)
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	order, err := h.Svc.GetOrder(ctx, orderID, uid)
	if err != nil {
		l.Warn("get_order_error", "order_id", orderID, "error", err)
		return kindError(err)
	}
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) SetOrderStatus(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.set_status")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	order, err := h.Svc.SetStatus(ctx, orderID, req.Status, uid)
	if err != nil {
		l.Warn("set_order_status_error", "order_id", orderID, "status", req.Status, "error", err)
		return kindError(err)
	}

	l.Info("order_status_changed", "order_id", orderID, "status", req.Status)
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) CancelOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.cancel")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	order, err := h.Svc.Cancel(ctx, orderID, uid)
	if err != nil {
		l.Warn("cancel_order_error", "order_id", orderID, "error", err)
		return kindError(err)
	}

	l.Info("order_cancelled", "order_id", orderID)
	return c.JSON(http.StatusOK, order)
}

func (h *OrderHTTP) Reorder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.reorder")

	uid, err := userID(c)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid order id")
	}

	if err := h.Svc.Reorder(ctx, orderID, uid); err != nil {
		l.Warn("reorder_error", "order_id", orderID, "error", err)
		return kindError(err)
	}

	l.Info("order_reordered", "order_id", orderID)
	return c.NoContent(http.StatusNoContent)
}
