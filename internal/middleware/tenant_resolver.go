package middleware

import (
	"errors"
	"net/http"
	"strings"

	"storefront/internal/repository"

	"github.com/labstack/echo/v4"
)

const TenantHeader = "X-Tenant"

// 公開API用。X-Tenantヘッダのslugからテナントを引いてcontextに入れる
func TenantResolver(tenants repository.TenantRepository) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			slug := strings.TrimSpace(c.Request().Header.Get(TenantHeader))
			if slug == "" {
				return c.JSON(http.StatusBadRequest, errorJSON("X-Tenant header required"))
			}

			t, err := tenants.FindBySlug(c.Request().Context(), slug)
			if errors.Is(err, repository.ErrNotFound) || (err == nil && !t.IsActive) {
				return c.JSON(http.StatusNotFound, errorJSON("tenant not found"))
			}
			if err != nil {
				return c.JSON(http.StatusInternalServerError, errorJSON("internal error"))
			}

			c.Set(CtxShopTenantKey, t)
			return next(c)
		}
	}
}
