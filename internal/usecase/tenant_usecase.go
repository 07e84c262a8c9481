package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
	"storefront/internal/validator"
)

// superadminのテナント・管理者管理
type TenantUsecase struct {
	tenants repo.TenantRepository
	users   repo.UserRepository
	audit   repo.AuditLogRepository
	now     func() time.Time
}

func NewTenantUsecase(tenants repo.TenantRepository, users repo.UserRepository, audit repo.AuditLogRepository) *TenantUsecase {
	return &TenantUsecase{tenants: tenants, users: users, audit: audit, now: time.Now}
}

type TenantUpdateInput struct {
	Name     *string
	IsActive *bool
}

func (u *TenantUsecase) CreateTenant(ctx context.Context, name, slug string) (model.Tenant, error) {
	name = strings.TrimSpace(name)
	slug = strings.TrimSpace(slug)
	if name == "" {
		return model.Tenant{}, NewHTTPError(http.StatusBadRequest, "name required")
	}
	if !validator.IsSlug(slug) {
		return model.Tenant{}, NewHTTPError(http.StatusBadRequest, "invalid slug")
	}

	t, err := u.tenants.Create(ctx, model.Tenant{Name: name, Slug: slug, IsActive: true})
	if errors.Is(err, repo.ErrDuplicate) {
		return model.Tenant{}, NewHTTPError(http.StatusConflict, "slug already used")
	}
	if err != nil {
		return model.Tenant{}, errDB()
	}
	return t, nil
}

func (u *TenantUsecase) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	list, err := u.tenants.List(ctx)
	if err != nil {
		return nil, errDB()
	}
	return list, nil
}

func (u *TenantUsecase) UpdateTenant(ctx context.Context, tenantID int64, in TenantUpdateInput) (model.Tenant, error) {
	t, err := u.tenants.FindByID(ctx, tenantID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Tenant{}, errNotFound()
	}
	if err != nil {
		return model.Tenant{}, errDB()
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return model.Tenant{}, NewHTTPError(http.StatusBadRequest, "name required")
		}
		t.Name = name
	}
	if in.IsActive != nil {
		t.IsActive = *in.IsActive
	}
	if err := u.tenants.Update(ctx, t); err != nil {
		return model.Tenant{}, errDB()
	}
	return t, nil
}

// テナント管理者(ADMIN)を作る
func (u *TenantUsecase) CreateAdmin(ctx context.Context, actor Actor, tenantID int64, email, password string) (UserDTO, error) {
	if _, err := u.tenants.FindByID(ctx, tenantID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return UserDTO{}, NewHTTPError(http.StatusNotFound, "tenant not found")
		}
		return UserDTO{}, errDB()
	}
	email = normalizeEmail(email)
	if email == "" {
		return UserDTO{}, NewHTTPError(http.StatusBadRequest, "invalid email")
	}
	pwHash, err := hashPassword(password)
	if err != nil {
		return UserDTO{}, err
	}

	tid := tenantID
	user := &model.User{
		TenantID:     &tid,
		Email:        email,
		PasswordHash: pwHash,
		Role:         model.RoleAdmin,
		IsActive:     true,
	}
	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return UserDTO{}, NewHTTPError(http.StatusConflict, "email already registered")
		}
		return UserDTO{}, errDB()
	}

	if err := u.audit.Create(ctx, model.AuditLog{
		ActorUserID:  actor.UserID,
		TenantID:     tenantID,
		Action:       model.AuditActionCreateAdmin,
		ResourceType: model.AuditResourceTenant,
		ResourceID:   tenantID,
		AfterJSON:    fmt.Sprintf(`{"user_id":%d,"email":%q}`, user.ID, user.Email),
		CreatedAt:    u.now(),
	}); err != nil {
		return UserDTO{}, errDB()
	}
	return toUserDTO(user), nil
}

func (u *TenantUsecase) ListAdmins(ctx context.Context, tenantID *int64, page, limit int) (UserListOutput, error) {
	page, limit, err := normalizePage(page, limit, 50)
	if err != nil {
		return UserListOutput{}, err
	}
	role := model.RoleAdmin
	list, total, err := u.users.List(ctx, repo.UserListFilter{TenantID: tenantID, Role: &role, Page: page, Limit: limit})
	if err != nil {
		return UserListOutput{}, errDB()
	}
	out := make([]UserDTO, 0, len(list))
	for i := range list {
		out = append(out, toUserDTO(&list[i]))
	}
	return UserListOutput{Items: out, Total: total, Page: page, Limit: limit}, nil
}
