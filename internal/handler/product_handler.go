package handler

import (
	"net/http"
	"strings"

	"storefront/internal/domain/model"
	"storefront/internal/middleware"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /products の公開API（テナントはX-Tenantヘッダ）
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

// gはTenantResolver付きの/productsグループ
func (h *ProductHandler) RegisterRoutes(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/:id", h.detail)
}

// 公開一覧と管理一覧で共通のクエリ
func listProductsInput(c echo.Context) (usecase.ListProductsInput, error) {
	page, limit, err := pageParams(c)
	if err != nil {
		return usecase.ListProductsInput{}, err
	}
	minPrice, ok := queryInt64Ptr(c, "min_price")
	if !ok {
		return usecase.ListProductsInput{}, errBadRequest("invalid min_price")
	}
	maxPrice, ok := queryInt64Ptr(c, "max_price")
	if !ok {
		return usecase.ListProductsInput{}, errBadRequest("invalid max_price")
	}

	return usecase.ListProductsInput{
		Page:     page,
		Limit:    limit,
		Q:        strings.TrimSpace(c.QueryParam("q")),
		Category: strings.TrimSpace(c.QueryParam("category")),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
		Sort:     c.QueryParam("sort"),
	}, nil
}

func shopTenant(c echo.Context) (model.Tenant, bool) {
	t, ok := c.Get(middleware.CtxShopTenantKey).(model.Tenant)
	return t, ok
}

func (h *ProductHandler) list(c echo.Context) error {
	tenant, ok := shopTenant(c)
	if !ok {
		return badRequest(c, "X-Tenant header required")
	}

	in, err := listProductsInput(c)
	if err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.ListPublicProducts(c.Request().Context(), tenant.ID, in)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) detail(c echo.Context) error {
	tenant, ok := shopTenant(c)
	if !ok {
		return badRequest(c, "X-Tenant header required")
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	p, err := h.uc.GetProductDetail(c.Request().Context(), tenant.ID, id)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, p)
}
