package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"storefront/internal/domain/payment"
	"storefront/internal/usecase"

	"github.com/labstack/echo/v4"
)

// webhookの本文の上限
const maxNotificationBody = 64 << 10

type PaymentHandler struct {
	uc *usecase.PaymentUsecase
}

func NewPaymentHandler(uc *usecase.PaymentUsecase) *PaymentHandler {
	return &PaymentHandler{uc: uc}
}

type mockCompleteRequest struct {
	TransactionStatus string `json:"transaction_status" validate:"required"`
}

// gは/ordersグループ（JWT + token_version）
func (h *PaymentHandler) RegisterOrderRoutes(g *echo.Group) {
	g.POST("/:id/payment", h.createPayment)
	g.POST("/:id/payment/sync", h.sync)
}

// gは/payments。webhookは認証なし（署名で検証）、mock完了はprotectを付ける
func (h *PaymentHandler) RegisterRoutes(g *echo.Group, protect ...echo.MiddlewareFunc) {
	g.POST("/midtrans/notification", h.notification)
	g.POST("/mock/:order_number/complete", h.completeMock, protect...)
}

func (h *PaymentHandler) createPayment(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.CreatePayment(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// リダイレクト後にフロントが呼ぶ。クエリはヒントとして受け取るだけ
func (h *PaymentHandler) sync(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid id")
	}

	out, err := h.uc.Sync(c.Request().Context(), actor, id, usecase.SyncHint{
		StatusCode:        c.QueryParam("status_code"),
		TransactionStatus: c.QueryParam("transaction_status"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) notification(c echo.Context) error {
	//生の本文は通知履歴にそのまま残す
	raw, err := io.ReadAll(io.LimitReader(c.Request().Body, maxNotificationBody))
	if err != nil {
		return badRequest(c, "invalid body")
	}
	var n payment.Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		return badRequest(c, "invalid body")
	}

	out, err := h.uc.HandleNotification(c.Request().Context(), n, raw)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) completeMock(c echo.Context) error {
	actor, ok := actorFrom(c)
	if !ok {
		return unauthorized(c)
	}

	var req mockCompleteRequest
	if err := bindAndValidate(c, &req); err != nil {
		return writeError(c, err)
	}

	out, err := h.uc.CompleteMockPayment(c.Request().Context(), actor, c.Param("order_number"), req.TransactionStatus)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
