package model

import "time"

type Role string

const (
	RoleUser       Role = "USER"
	RoleAdmin      Role = "ADMIN"
	RoleSuperAdmin Role = "SUPERADMIN"
)

func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// superadminはテナントに属さない（TenantIDはnil）
type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	TenantID     *int64 `gorm:"index"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"column:password_hash;not null"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'USER'"`
	TokenVersion int    `gorm:"not null;default:0"`
	IsActive     bool   `gorm:"not null;default:true"`
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// テナントIDを0埋めで返す（superadminは0）
func (u User) TenantIDValue() int64 {
	if u.TenantID == nil {
		return 0
	}
	return *u.TenantID
}
