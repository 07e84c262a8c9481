package usecase

import (
	"context"

	"storefront/internal/domain/model"
	"storefront/internal/domain/payment"
)

// 決済ゲートウェイ（Midtrans / mock）
type PaymentGateway interface {
	Mode() model.PaymentMode
	ClientKey() string
	CreateTransaction(ctx context.Context, req payment.CreateRequest) (payment.Session, error)
	CheckStatus(ctx context.Context, orderNumber string) (payment.Notification, error)
	VerifyNotification(n payment.Notification) bool
}

// mockの承認画面。mockモードのときだけ注入される
type MockPaymentCompleter interface {
	Complete(orderNumber, transactionStatus string, grossAmount int64) (payment.Notification, error)
}

// 注文イベントの送信先（RabbitMQ / ログ）
type EventPublisher interface {
	Publish(ctx context.Context, ev model.OrderEvent) error
}
