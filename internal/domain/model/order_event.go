package model

import "time"

type OrderEventType string

const (
	OrderEventCreated        OrderEventType = "order.created"
	OrderEventCancelled      OrderEventType = "order.cancelled"
	OrderEventPaid           OrderEventType = "order.paid"
	OrderEventPaymentFailed  OrderEventType = "order.payment_failed"
	OrderEventPaymentExpired OrderEventType = "order.payment_expired"
	OrderEventStatusChanged  OrderEventType = "order.status_changed"
)

// コミット後に外へ流す注文イベント
type OrderEvent struct {
	Type          OrderEventType `json:"type"`
	OrderID       int64          `json:"order_id"`
	OrderNumber   string         `json:"order_number"`
	TenantID      int64          `json:"tenant_id"`
	UserID        int64          `json:"user_id"`
	Status        OrderStatus    `json:"status"`
	PaymentStatus PaymentStatus  `json:"payment_status"`
	TotalAmount   int64          `json:"total_amount"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

func NewOrderEvent(t OrderEventType, o Order, now time.Time) OrderEvent {
	return OrderEvent{
		Type:          t,
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		TenantID:      o.TenantID,
		UserID:        o.UserID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		TotalAmount:   o.TotalAmount,
		OccurredAt:    now,
	}
}

// 決済結果に対応するイベント
func PaymentEventType(s PaymentStatus) (OrderEventType, bool) {
	switch s {
	case PaymentStatusPaid:
		return OrderEventPaid, true
	case PaymentStatusFailed:
		return OrderEventPaymentFailed, true
	case PaymentStatusExpired:
		return OrderEventPaymentExpired, true
	}
	return "", false
}
