package httpserver

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/agrilink/marketplace/internal/logging"
	"github.com/agrilink/marketplace/internal/service"
)

type AuthHTTP struct {
	Svc *service.AuthService
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AuthHTTP) Register(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.register")

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	user, err := h.Svc.Register(ctx, req.Username, req.Password)
	if err != nil {
		l.Warn("register_error", "error", err)
		return kindError(err)
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *AuthHTTP) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var req credentialsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}

	pair, err := h.Svc.Login(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, err.Error())
		}
		l.Error("login_error", "error", err)
		return kindError(err)
	}

	setTokenCookies(c, pair)
	return c.JSON(http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (h *AuthHTTP) Refresh(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.refresh")

	refreshToken := refreshTokenFromRequest(c)
	if refreshToken == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing refresh token")
	}

	pair, err := h.Svc.Refresh(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid refresh token")
		}
		l.Error("refresh_error", "error", err)
		return kindError(err)
	}

	setTokenCookies(c, pair)
	return c.JSON(http.StatusOK, map[string]any{
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (h *AuthHTTP) Logout(c echo.Context) error {
	ctx := c.Request().Context()

	if refreshToken := refreshTokenFromRequest(c); refreshToken != "" {
		if err := h.Svc.Logout(ctx, refreshToken); err != nil {
			return kindError(err)
		}
	}

	c.SetCookie(expiredCookie("accessToken"))
	c.SetCookie(expiredCookie("refreshToken"))
	return c.NoContent(http.StatusNoContent)
}

func refreshTokenFromRequest(c echo.Context) string {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	if cookie, err := c.Cookie("refreshToken"); err == nil {
		return cookie.Value
	}
	return ""
}

func setTokenCookies(c echo.Context, pair *service.TokenPair) {
	c.SetCookie(&http.Cookie{
		Name:     "accessToken",
		Value:    pair.AccessToken,
		Path:     "/",
		Expires:  pair.AccessExp,
		HttpOnly: true,
	})
	c.SetCookie(&http.Cookie{
		Name:     "refreshToken",
		Value:    pair.RefreshToken,
		Path:     "/",
		Expires:  pair.RefreshExp,
		HttpOnly: true,
	})
}

func expiredCookie(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
	}
}
