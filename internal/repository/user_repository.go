package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type UserListFilter struct {
	TenantID *int64
	Role     *model.Role
	Page     int
	Limit    int
}

// 見つからない場合はErrNotFound
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, userID int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context, f UserListFilter) ([]model.User, int64, error)
	// アクティブかどうか・最後のログイン更新など
	Update(ctx context.Context, user *model.User) error
	//トークンのバージョンを＋１
	IncrementTokenVersion(ctx context.Context, userID int64) (int, error)
}
