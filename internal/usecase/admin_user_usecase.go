package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type AdminUserUsecase struct {
	users repo.UserRepository
	audit repo.AuditLogRepository
	now   func() time.Time
}

func NewAdminUserUsecase(users repo.UserRepository, audit repo.AuditLogRepository) *AdminUserUsecase {
	return &AdminUserUsecase{users: users, audit: audit, now: time.Now}
}

type UserListOutput struct {
	Items []UserDTO `json:"items"`
	Total int64     `json:"total"`
	Page  int       `json:"page"`
	Limit int       `json:"limit"`
}

type ForceLogoutResponse struct {
	UserID          int64 `json:"user_id"`
	NewTokenVersion int   `json:"new_token_version"`
}

func (u *AdminUserUsecase) ListUsers(ctx context.Context, actor Actor, page, limit int) (UserListOutput, error) {
	page, limit, err := normalizePage(page, limit, 50)
	if err != nil {
		return UserListOutput{}, err
	}
	list, total, err := u.users.List(ctx, repo.UserListFilter{
		TenantID: actor.TenantFilter(),
		Page:     page,
		Limit:    limit,
	})
	if err != nil {
		return UserListOutput{}, errDB()
	}
	out := make([]UserDTO, 0, len(list))
	for i := range list {
		out = append(out, toUserDTO(&list[i]))
	}
	return UserListOutput{Items: out, Total: total, Page: page, Limit: limit}, nil
}

// 操作対象のユーザー。他テナント・superadminは触れない
func (u *AdminUserUsecase) target(ctx context.Context, actor Actor, userID int64) (*model.User, error) {
	if actor.UserID <= 0 {
		return nil, errUnauthorized()
	}
	if userID <= 0 {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	user, err := u.users.FindByID(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errNotFound()
	}
	if err != nil {
		return nil, errDB()
	}
	if !actor.IsSuperAdmin() {
		if user.TenantID == nil || !actor.CanAccessTenant(*user.TenantID) {
			return nil, errNotFound()
		}
		if user.Role == model.RoleSuperAdmin {
			return nil, errForbidden()
		}
	}
	return user, nil
}

// 無効化したらtoken_versionを上げて、発行済みトークンも使えなくする
func (u *AdminUserUsecase) SetActive(ctx context.Context, actor Actor, userID int64, active bool) (UserDTO, error) {
	user, err := u.target(ctx, actor, userID)
	if err != nil {
		return UserDTO{}, err
	}
	if user.ID == actor.UserID && !active {
		return UserDTO{}, NewHTTPError(http.StatusBadRequest, "cannot deactivate yourself")
	}
	if user.IsActive == active {
		return toUserDTO(user), nil
	}

	before := fmt.Sprintf(`{"is_active":%t}`, user.IsActive)
	user.IsActive = active
	if err := u.users.Update(ctx, user); err != nil {
		return UserDTO{}, errDB()
	}
	if !active {
		v, err := u.users.IncrementTokenVersion(ctx, user.ID)
		if err != nil {
			return UserDTO{}, errDB()
		}
		user.TokenVersion = v
	}

	if err := u.audit.Create(ctx, model.AuditLog{
		ActorUserID:  actor.UserID,
		TenantID:     user.TenantIDValue(),
		Action:       model.AuditActionUpdateUserActive,
		ResourceType: model.AuditResourceUser,
		ResourceID:   user.ID,
		BeforeJSON:   before,
		AfterJSON:    fmt.Sprintf(`{"is_active":%t}`, active),
		CreatedAt:    u.now(),
	}); err != nil {
		return UserDTO{}, errDB()
	}
	return toUserDTO(user), nil
}

func (u *AdminUserUsecase) ForceLogout(ctx context.Context, actor Actor, userID int64) (ForceLogoutResponse, error) {
	user, err := u.target(ctx, actor, userID)
	if err != nil {
		return ForceLogoutResponse{}, err
	}

	v, err := u.users.IncrementTokenVersion(ctx, user.ID)
	if errors.Is(err, repo.ErrNotFound) {
		return ForceLogoutResponse{}, errNotFound()
	}
	if err != nil {
		return ForceLogoutResponse{}, errDB()
	}

	if err := u.audit.Create(ctx, model.AuditLog{
		ActorUserID:  actor.UserID,
		TenantID:     user.TenantIDValue(),
		Action:       model.AuditActionForceLogout,
		ResourceType: model.AuditResourceUser,
		ResourceID:   user.ID,
		BeforeJSON:   fmt.Sprintf(`{"token_version":%d}`, user.TokenVersion),
		AfterJSON:    fmt.Sprintf(`{"token_version":%d}`, v),
		CreatedAt:    u.now(),
	}); err != nil {
		return ForceLogoutResponse{}, errDB()
	}
	return ForceLogoutResponse{UserID: user.ID, NewTokenVersion: v}, nil
}
