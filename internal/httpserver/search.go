package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/agrilink/marketplace/internal/logging"
	"github.com/agrilink/marketplace/internal/service"
)

type SearchHTTP struct {
	Svc *service.SearchService
}

func (h *SearchHTTP) Search(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "search")

	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query parameter q required")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), 10)

	total, hits, err := h.Svc.Search(ctx, query, page, size)
	if err != nil {
		l.Error("search_error", "query", query, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "search failed")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"total": total,
		"hits":  hits,
	})
}
