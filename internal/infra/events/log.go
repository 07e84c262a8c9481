package events

import (
	"context"

	"storefront/internal/domain/model"

	"go.uber.org/zap"
)

// RABBITMQ_URL未設定時。イベントはログに残すだけ
type LogPublisher struct {
	log *zap.Logger
}

func NewLogPublisher(log *zap.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(_ context.Context, ev model.OrderEvent) error {
	p.log.Info("order event",
		zap.String("type", string(ev.Type)),
		zap.Int64("order_id", ev.OrderID),
		zap.String("order_number", ev.OrderNumber),
		zap.String("status", string(ev.Status)),
		zap.String("payment_status", string(ev.PaymentStatus)),
	)
	return nil
}
