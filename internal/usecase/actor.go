package usecase

import "storefront/internal/domain/model"

// リクエストしたユーザー（JWTのsub/role/tid）
type Actor struct {
	UserID   int64
	Role     model.Role
	TenantID int64
}

func (a Actor) IsSuperAdmin() bool {
	return a.Role == model.RoleSuperAdmin
}

// superadminは全テナントを見られる
func (a Actor) CanAccessTenant(tenantID int64) bool {
	return a.IsSuperAdmin() || (a.TenantID > 0 && a.TenantID == tenantID)
}

// 一覧の絞り込みに使うテナント（superadminはnil）
func (a Actor) TenantFilter() *int64 {
	if a.IsSuperAdmin() {
		return nil
	}
	id := a.TenantID
	return &id
}
