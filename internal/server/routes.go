package server

import (
	"net/http"

	"storefront/internal/domain/model"
	"storefront/internal/handler"
	"storefront/internal/middleware"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ルーティング。グループごとに認証・ロールを付ける
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, handler.SuccessResponse{Message: "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	authed := []echo.MiddlewareFunc{
		middleware.AuthJWT(d.Config),
		middleware.TokenVersionGuard(d.Users),
	}
	customer := append(authed[:len(authed):len(authed)], middleware.RoleGuard(model.RoleUser))
	admin := append(authed[:len(authed):len(authed)], middleware.RoleGuard(model.RoleAdmin, model.RoleSuperAdmin))
	superadmin := append(authed[:len(authed):len(authed)], middleware.RoleGuard(model.RoleSuperAdmin))

	d.Handlers.Auth.RegisterRoutes(e.Group("/auth"), authed...)
	d.Handlers.Product.RegisterRoutes(e.Group("/products", middleware.TenantResolver(d.Tenants)))
	d.Handlers.Shipping.RegisterRoutes(e.Group("/shipping"))

	d.Handlers.Cart.RegisterRoutes(e.Group("/cart", customer...))
	d.Handlers.Address.RegisterRoutes(e.Group("/addresses", customer...))

	orders := e.Group("/orders", customer...)
	d.Handlers.Order.RegisterRoutes(orders)
	d.Handlers.Payment.RegisterOrderRoutes(orders)
	d.Handlers.Payment.RegisterRoutes(e.Group("/payments"), customer...)

	adminGroup := e.Group("/admin", admin...)
	d.Handlers.AdminProduct.RegisterRoutes(adminGroup)
	d.Handlers.AdminOrder.RegisterRoutes(adminGroup)
	d.Handlers.AdminUser.RegisterRoutes(adminGroup)
	d.Handlers.AuditLog.RegisterRoutes(adminGroup)

	d.Handlers.Tenant.RegisterRoutes(e.Group("/superadmin", superadmin...))
}
