package repository

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentNotificationGormRepository struct {
	db *gorm.DB
}

func NewPaymentNotificationGormRepository(db *gorm.DB) *PaymentNotificationGormRepository {
	return &PaymentNotificationGormRepository{db: db}
}

// ON CONFLICT DO NOTHINGなので、重複してもトランザクションは壊れない
func (r *PaymentNotificationGormRepository) Create(ctx context.Context, n model.PaymentNotification) error {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&n)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repo.ErrDuplicate
	}
	return nil
}

func (r *PaymentNotificationGormRepository) ListByOrderID(ctx context.Context, orderID int64) ([]model.PaymentNotification, error) {
	var list []model.PaymentNotification
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id asc").
		Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

var _ repo.PaymentNotificationRepository = (*PaymentNotificationGormRepository)(nil)
