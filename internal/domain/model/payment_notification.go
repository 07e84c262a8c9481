package model

import "time"

// 受け付けた決済通知の記録。
// (transaction_id, transaction_status)がユニークなので、再送は保存時に弾かれる
type PaymentNotification struct {
	ID                int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID           int64     `gorm:"not null;index" json:"order_id"`
	TransactionID     string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_payment_notif_txn,priority:1" json:"transaction_id"`
	TransactionStatus string    `gorm:"type:varchar(30);not null;uniqueIndex:idx_payment_notif_txn,priority:2" json:"transaction_status"`
	StatusCode        string    `gorm:"type:varchar(10)" json:"status_code"`
	FraudStatus       string    `gorm:"type:varchar(20)" json:"fraud_status"`
	GrossAmount       string    `gorm:"type:varchar(30)" json:"gross_amount"`
	PaymentType       string    `gorm:"type:varchar(50)" json:"payment_type"`
	Result            string    `gorm:"type:varchar(20);not null" json:"result"`
	RawPayload        string    `gorm:"type:text" json:"-"`
	ProcessedAt       time.Time `gorm:"not null" json:"processed_at"`
}
