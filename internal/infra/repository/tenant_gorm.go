package repository

import (
	"context"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"gorm.io/gorm"
)

type tenantGormRepository struct {
	db *gorm.DB
}

func NewTenantGormRepository(db *gorm.DB) repo.TenantRepository {
	return &tenantGormRepository{db: db}
}

func (r *tenantGormRepository) Create(ctx context.Context, t model.Tenant) (model.Tenant, error) {
	if err := r.db.WithContext(ctx).Create(&t).Error; err != nil {
		return model.Tenant{}, translate(err)
	}
	return t, nil
}

func (r *tenantGormRepository) FindByID(ctx context.Context, id int64) (model.Tenant, error) {
	var t model.Tenant
	if err := r.db.WithContext(ctx).First(&t, id).Error; err != nil {
		return model.Tenant{}, translate(err)
	}
	return t, nil
}

func (r *tenantGormRepository) FindBySlug(ctx context.Context, slug string) (model.Tenant, error) {
	var t model.Tenant
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&t).Error; err != nil {
		return model.Tenant{}, translate(err)
	}
	return t, nil
}

func (r *tenantGormRepository) List(ctx context.Context) ([]model.Tenant, error) {
	var list []model.Tenant
	if err := r.db.WithContext(ctx).Order("id asc").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *tenantGormRepository) Update(ctx context.Context, t model.Tenant) error {
	return affected(r.db.WithContext(ctx).
		Model(&model.Tenant{}).
		Where("id = ?", t.ID).
		Select("name", "is_active").
		Updates(t))
}
