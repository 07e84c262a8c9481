package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /superadmin 配下（SUPERADMIN限定）
type TenantHandler struct {
	uc *usecase.TenantUsecase
}

func NewTenantHandler(uc *usecase.TenantUsecase) *TenantHandler {
	return &TenantHandler{uc: uc}
}

type tenantCreateRequest struct {
	Name string `json:"name" validate:"required,max=255"`
	Slug string `json:"slug" validate:"required,slug"`
}

type tenantUpdateRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=255"`
	IsActive *bool   `json:"is_active"`
}

type adminCreateRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *TenantHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/tenants", h.listTenants)
	g.POST("/tenants", h.createTenant)
	g.PATCH("/tenants/:id", h.updateTenant)
	g.POST("/tenants/:id/admins", h.createAdmin)
	g.GET("/admins", h.listAdmins)
}

func (h *TenantHandler) listTenants(c echo.Context) error {
	list, err := h.uc.ListTenants(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"items": list})
}

func (h *TenantHandler) createTenant(c echo.Context) error {
	var req tenantCreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	t, err := h.uc.CreateTenant(c.Request().Context(), req.Name, req.Slug)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

func (h *TenantHandler) updateTenant(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req tenantUpdateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	t, err := h.uc.UpdateTenant(c.Request().Context(), id, usecase.TenantUpdateInput{
		Name:     req.Name,
		IsActive: req.IsActive,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *TenantHandler) createAdmin(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	tenantID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	var req adminCreateRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.CreateAdmin(c.Request().Context(), actor, tenantID, req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, out)
}

// ?tenant_id=で絞り込み
func (h *TenantHandler) listAdmins(c echo.Context) error {
	page, limit, err := pageParams(c)
	if err != nil {
		return writeError(c, err)
	}
	tenantID, ok := queryInt64Ptr(c, "tenant_id")
	if !ok {
		return badRequest(c, "invalid tenant_id")
	}

	out, err := h.uc.ListAdmins(c.Request().Context(), tenantID, page, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
