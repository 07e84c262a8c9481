package model

import "time"

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
	PaymentStatusExpired PaymentStatus = "expired"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusExpired:
		return true
	}
	return false
}

// pending以外は終端
func (s PaymentStatus) Terminal() bool {
	return s != PaymentStatusPending
}

// 決済モード。トークンの文字列で判定せず、サーバーが明示的に返す
type PaymentMode string

const (
	PaymentModeLive PaymentMode = "live"
	PaymentModeMock PaymentMode = "mock"
)

type Order struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber string `gorm:"type:varchar(40);not null;uniqueIndex" json:"order_number"`
	TenantID    int64  `gorm:"not null;index" json:"tenant_id"`
	UserID      int64  `gorm:"not null;index;uniqueIndex:idx_orders_user_idem,priority:1" json:"user_id"`

	//注文時点の住所コピー
	Shipping AddressSnapshot `gorm:"embedded;embeddedPrefix:shipping_" json:"shipping_address"`

	CourierCode  string `gorm:"type:varchar(50);not null" json:"courier_code"`
	CourierName  string `gorm:"type:varchar(100);not null" json:"courier_name"`
	CourierETD   string `gorm:"type:varchar(50)" json:"courier_etd"`
	ShippingCost int64  `gorm:"not null" json:"shipping_cost"`

	//明細の合計（送料抜き）
	Subtotal    int64 `gorm:"not null" json:"subtotal"`
	TotalAmount int64 `gorm:"not null" json:"total_amount"`

	Status        OrderStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	PaymentMethod string        `gorm:"type:varchar(50)" json:"payment_method"`

	PaymentMode          PaymentMode `gorm:"type:varchar(10)" json:"payment_mode,omitempty"`
	PaymentToken         *string     `gorm:"type:varchar(255)" json:"payment_token,omitempty"`
	PaymentRedirectURL   *string     `gorm:"type:varchar(1000)" json:"payment_redirect_url,omitempty"`
	GatewayTransactionID *string     `gorm:"type:varchar(100);index" json:"gateway_transaction_id,omitempty"`

	Notes *string `gorm:"type:text" json:"notes,omitempty"`

	//同じユーザー内でユニーク
	IdempotencyKey string `gorm:"type:varchar(255);not null;uniqueIndex:idx_orders_user_idem,priority:2" json:"-"`

	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
