package model

import "time"

// 在庫調整の履歴。管理者の手動調整と、注文キャンセルでの戻しを残す
type InventoryAdjustment struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64 `gorm:"not null;index" json:"product_id"`
	//操作者（システムによる戻しは0）
	ActorUserID int64 `gorm:"not null;index" json:"actor_user_id"`
	//注文起因のときだけ入る
	OrderID   *int64    `gorm:"index" json:"order_id,omitempty"`
	Delta     int64     `gorm:"not null" json:"delta"`
	Reason    string    `gorm:"type:varchar(255);not null" json:"reason"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
