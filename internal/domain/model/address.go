package model

import "time"

// 配送先住所（アドレス帳）
type Address struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index;uniqueIndex:uq_addresses_user_default,where:is_default = true" json:"user_id"`

	//「自宅」「会社」など
	Label string `gorm:"type:varchar(50)" json:"label"`

	//宛名
	RecipientName string `gorm:"type:varchar(255);not null" json:"recipient_name"`

	//電話番号
	Phone string `gorm:"type:varchar(30);not null" json:"phone"`

	//番地・建物名
	Street string `gorm:"type:varchar(500);not null" json:"street"`

	City       string `gorm:"type:varchar(255);not null" json:"city"`
	Province   string `gorm:"type:varchar(255);not null" json:"province"`
	PostalCode string `gorm:"type:varchar(20);not null" json:"postal_code"`

	//ユーザーごとにtrueは1件まで（部分ユニークインデックス）
	IsDefault bool `gorm:"not null;default:false" json:"is_default"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// 注文に埋め込む住所のコピー。住所を後で編集しても過去の注文は変わらない
type AddressSnapshot struct {
	RecipientName string `gorm:"type:varchar(255);not null" json:"recipient_name"`
	Phone         string `gorm:"type:varchar(30);not null" json:"phone"`
	Street        string `gorm:"type:varchar(500);not null" json:"street"`
	City          string `gorm:"type:varchar(255);not null" json:"city"`
	Province      string `gorm:"type:varchar(255);not null" json:"province"`
	PostalCode    string `gorm:"type:varchar(20);not null" json:"postal_code"`
}

func (a Address) Snapshot() AddressSnapshot {
	return AddressSnapshot{
		RecipientName: a.RecipientName,
		Phone:         a.Phone,
		Street:        a.Street,
		City:          a.City,
		Province:      a.Province,
		PostalCode:    a.PostalCode,
	}
}
