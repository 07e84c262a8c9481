package usecase

import (
	"context"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

type AuditLogUsecase struct {
	audit repo.AuditLogRepository
}

func NewAuditLogUsecase(audit repo.AuditLogRepository) *AuditLogUsecase {
	return &AuditLogUsecase{audit: audit}
}

type AuditLogListInput struct {
	Page         int
	Limit        int
	Action       string
	ResourceType string
	ResourceID   *int64
	From         *time.Time
	To           *time.Time
}

type AuditLogListOutput struct {
	Items []model.AuditLog `json:"items"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

// 管理者は自分の操作だけ、superadminは全件
func (u *AuditLogUsecase) List(ctx context.Context, actor Actor, in AuditLogListInput) (AuditLogListOutput, error) {
	if actor.UserID <= 0 {
		return AuditLogListOutput{}, errUnauthorized()
	}
	page, limit, err := normalizePage(in.Page, in.Limit, 50)
	if err != nil {
		return AuditLogListOutput{}, err
	}

	f := repo.AuditLogFilter{
		ResourceID:  in.ResourceID,
		CreatedFrom: in.From,
		CreatedTo:   in.To,
		Limit:       limit,
		Offset:      (page - 1) * limit,
	}
	if !actor.IsSuperAdmin() {
		f.TenantID = actor.TenantFilter()
		id := actor.UserID
		f.ActorUserID = &id
	}
	if in.Action != "" {
		a := model.AuditAction(in.Action)
		f.Action = &a
	}
	if in.ResourceType != "" {
		switch model.AuditResourceType(in.ResourceType) {
		case model.AuditResourceProduct, model.AuditResourceOrder, model.AuditResourceUser, model.AuditResourceTenant:
		default:
			return AuditLogListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid resource_type")
		}
		rt := model.AuditResourceType(in.ResourceType)
		f.ResourceType = &rt
	}

	list, err := u.audit.List(ctx, f)
	if err != nil {
		return AuditLogListOutput{}, errDB()
	}
	return AuditLogListOutput{Items: list, Page: page, Limit: limit}, nil
}
