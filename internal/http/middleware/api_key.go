package middleware

import (
	"net/http"
	"strings"

	echo "github.com/labstack/echo/v4"

	"github.com/jmehdipour/order-pipeline/internal/model"
	"github.com/jmehdipour/order-pipeline/internal/repository"
)

// ClientFromCtx extracts the authenticated client set by APIKeyMiddleware.
func ClientFromCtx(c echo.Context) (*model.Client, bool) {
	v := c.Get("client")
	cl, ok := v.(*model.Client)
	return cl, ok
}

// APIKeyMiddleware authenticates requests using the X-API-Key header and
// stores the client in context.
func APIKeyMiddleware(clients repository.ClientsRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := strings.TrimSpace(c.Request().Header.Get("X-API-Key"))
			if key == "" {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "missing api key"})
			}
			cl, err := clients.GetByAPIKey(c.Request().Context(), key)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, map[string]string{"error": "auth error"})
			}
			if cl == nil {
				return c.JSON(http.StatusUnauthorized, map[string]string{"error": "invalid api key"})
			}
			c.Set("client", cl)
			return next(c)
		}
	}
}

// RequireAdmin blocks clients without the ADMIN role. Must run after
// APIKeyMiddleware.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cl, ok := ClientFromCtx(c)
			if !ok || cl.Role != model.RoleAdmin {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "admin only"})
			}
			return next(c)
		}
	}
}
