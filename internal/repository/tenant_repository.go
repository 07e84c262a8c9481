package repository

import (
	"context"

	"storefront/internal/domain/model"
)

type TenantRepository interface {
	Create(ctx context.Context, t model.Tenant) (model.Tenant, error)
	FindByID(ctx context.Context, id int64) (model.Tenant, error)
	FindBySlug(ctx context.Context, slug string) (model.Tenant, error)
	List(ctx context.Context) ([]model.Tenant, error)
	Update(ctx context.Context, t model.Tenant) error
}
