package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type PaymentNotificationRepository interface {
	//同じ(transaction_id, transaction_status)が既にあればErrDuplicate
	Create(ctx context.Context, n model.PaymentNotification) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.PaymentNotification, error)
}
