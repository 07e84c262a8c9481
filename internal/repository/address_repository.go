package repository

import (
	"context"

	"storefront/internal/domain/model"
)

// 住所(Address)を保存・取得する窓口
type AddressRepository interface {
	//作成後はaddress（IDなどが埋まったもの）を返す
	Create(ctx context.Context, address model.Address) (model.Address, error)

	//ユーザーが持つ住所一覧を返す（デフォルトが先頭）
	ListByUserID(ctx context.Context, userID int64) ([]model.Address, error)

	FindByID(ctx context.Context, addressID int64) (model.Address, error)

	Update(ctx context.Context, address model.Address) error

	//削除したのがデフォルトなら、残りの最古の住所をデフォルトにする
	Delete(ctx context.Context, userID, addressID int64) error

	CountByUserID(ctx context.Context, userID int64) (int64, error)

	//そのユーザーのデフォルトを全部外してから指定住所だけtrueにする
	SetDefault(ctx context.Context, userID, addressID int64) error
}
