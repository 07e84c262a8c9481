package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type InventoryRepository interface {
	// 在庫が足りるときだけ減算
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセルなど）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error

	// 在庫を現在値に更新し、調整履歴も残す
	SetStockWithAdjustment(ctx context.Context, actorUserID int64, productID int64, newStock int64, reason string) (before int64, err error)

	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
