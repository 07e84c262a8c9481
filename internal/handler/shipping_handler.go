package handler

import (
	"net/http"

	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ShippingHandler struct {
	uc *usecase.ShippingUsecase
}

func NewShippingHandler(uc *usecase.ShippingUsecase) *ShippingHandler {
	return &ShippingHandler{uc: uc}
}

func (h *ShippingHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/services", h.listServices)
}

func (h *ShippingHandler) listServices(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{"items": h.uc.ListServices()})
}
