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
)

type ProductUsecase struct {
	productRepo   repo.ProductRepository
	inventoryRepo repo.InventoryRepository
	auditRepo     repo.AuditLogRepository
	cache         repo.ProductCache
}

// DI
func NewProductUsecase(
	productRepo repo.ProductRepository,
	inventoryRepo repo.InventoryRepository,
	auditRepo repo.AuditLogRepository,
	cache repo.ProductCache,
) *ProductUsecase {
	return &ProductUsecase{
		productRepo:   productRepo,
		inventoryRepo: inventoryRepo,
		auditRepo:     auditRepo,
		cache:         cache,
	}
}

// GET /productsの入力DTO
type ListProductsInput struct {
	Page     int
	Limit    int
	Q        string
	Category string
	MinPrice *int64
	MaxPrice *int64
	Sort     string
}

type ProductListOutput struct {
	Items []model.Product `json:"items"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

func (u *ProductUsecase) validateList(in ListProductsInput) (ListProductsInput, error) {
	page, limit, err := normalizePage(in.Page, in.Limit, 20)
	if err != nil {
		return in, err
	}
	in.Page, in.Limit = page, limit
	if len(in.Q) > 100 {
		return in, NewHTTPError(http.StatusBadRequest, "q too long")
	}
	if in.MinPrice != nil && *in.MinPrice < 0 {
		return in, NewHTTPError(http.StatusBadRequest, "min_price must be >= 0")
	}
	if in.MaxPrice != nil && *in.MaxPrice < 0 {
		return in, NewHTTPError(http.StatusBadRequest, "max_price must be >= 0")
	}
	if in.MinPrice != nil && in.MaxPrice != nil && *in.MinPrice > *in.MaxPrice {
		return in, NewHTTPError(http.StatusBadRequest, "min_price must be <= max_price")
	}
	switch in.Sort {
	case "", "newest", "price_asc", "price_desc":
	default:
		return in, NewHTTPError(http.StatusBadRequest, "invalid sort")
	}
	return in, nil
}

func (u *ProductUsecase) list(ctx context.Context, tenantID int64, in ListProductsInput, includeInactive bool) (ProductListOutput, error) {
	in, err := u.validateList(in)
	if err != nil {
		return ProductListOutput{}, err
	}

	items, total, err := u.productRepo.List(ctx, repo.ProductListQuery{
		TenantID:        tenantID,
		Page:            in.Page,
		Limit:           in.Limit,
		Q:               strings.TrimSpace(in.Q),
		Category:        strings.TrimSpace(in.Category),
		MinPrice:        in.MinPrice,
		MaxPrice:        in.MaxPrice,
		Sort:            in.Sort,
		IncludeInactive: includeInactive,
	})
	if err != nil {
		return ProductListOutput{}, errDB()
	}

	return ProductListOutput{Items: items, Total: total, Page: in.Page, Limit: in.Limit}, nil
}

// 公開一覧（公開中の商品だけ）
func (u *ProductUsecase) ListPublicProducts(ctx context.Context, tenantID int64, in ListProductsInput) (ProductListOutput, error) {
	return u.list(ctx, tenantID, in, false)
}

// 詳細はキャッシュ→DBの順で読む
func (u *ProductUsecase) GetProductDetail(ctx context.Context, tenantID, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	p, ok := u.cache.Get(ctx, productID)
	if !ok {
		var err error
		p, err = u.productRepo.FindByID(ctx, productID)
		if errors.Is(err, repo.ErrNotFound) {
			return model.Product{}, errNotFound()
		}
		if err != nil {
			return model.Product{}, errDB()
		}
		u.cache.Set(ctx, p)
	}

	//他テナント・非公開は見せない
	if p.TenantID != tenantID || !p.IsActive {
		return model.Product{}, errNotFound()
	}
	return p, nil
}

type AdminProductInput struct {
	Name        string
	Description string
	Category    string
	Price       int64
	Stock       int64
	IsActive    bool
	Images      []string
}

func validateProductInput(in AdminProductInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return NewHTTPError(http.StatusBadRequest, "name required")
	}
	if in.Price < 0 {
		return NewHTTPError(http.StatusBadRequest, "price must be >= 0")
	}
	if in.Stock < 0 {
		return NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	if len(in.Images) > 10 {
		return NewHTTPError(http.StatusBadRequest, "too many images")
	}
	return nil
}

func toImages(urls []string) []model.ProductImage {
	images := make([]model.ProductImage, 0, len(urls))
	for i, url := range urls {
		if s := strings.TrimSpace(url); s != "" {
			images = append(images, model.ProductImage{URL: s, Position: i})
		}
	}
	return images
}

func (u *ProductUsecase) AdminListProducts(ctx context.Context, actor Actor, in ListProductsInput) (ProductListOutput, error) {
	return u.list(ctx, actor.TenantID, in, true)
}

// 自テナントの商品だけ触れる
func (u *ProductUsecase) findOwned(ctx context.Context, actor Actor, productID int64) (model.Product, error) {
	if productID <= 0 {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, errNotFound()
	}
	if err != nil {
		return model.Product{}, errDB()
	}
	if !actor.CanAccessTenant(p.TenantID) {
		return model.Product{}, errNotFound()
	}
	return p, nil
}

func (u *ProductUsecase) AdminGetProduct(ctx context.Context, actor Actor, productID int64) (model.Product, error) {
	return u.findOwned(ctx, actor, productID)
}

func (u *ProductUsecase) AdminCreateProduct(ctx context.Context, actor Actor, in AdminProductInput) (model.Product, error) {
	if actor.TenantID <= 0 {
		return model.Product{}, errForbidden()
	}
	if err := validateProductInput(in); err != nil {
		return model.Product{}, err
	}

	now := time.Now()
	p, err := u.productRepo.Create(ctx, model.Product{
		TenantID:    actor.TenantID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Price:       in.Price,
		Stock:       in.Stock,
		IsActive:    in.IsActive,
		Images:      toImages(in.Images),
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return model.Product{}, errDB()
	}
	return p, nil
}

// 在庫はAdminUpdateInventoryで変える（ここではstockを無視）
func (u *ProductUsecase) AdminUpdateProduct(ctx context.Context, actor Actor, productID int64, in AdminProductInput) error {
	current, err := u.findOwned(ctx, actor, productID)
	if err != nil {
		return err
	}
	in.Stock = current.Stock
	if err := validateProductInput(in); err != nil {
		return err
	}

	err = u.productRepo.Update(ctx, model.Product{
		ID:          productID,
		TenantID:    current.TenantID,
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Category:    strings.TrimSpace(in.Category),
		Price:       in.Price,
		IsActive:    in.IsActive,
		Images:      toImages(in.Images),
	})
	if errors.Is(err, repo.ErrNotFound) {
		return errNotFound()
	}
	if err != nil {
		return errDB()
	}
	u.cache.Delete(ctx, productID)
	return nil
}

func (u *ProductUsecase) AdminDeleteProduct(ctx context.Context, actor Actor, productID int64) error {
	if _, err := u.findOwned(ctx, actor, productID); err != nil {
		return err
	}
	err := u.productRepo.SoftDelete(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return errNotFound()
	}
	if err != nil {
		return errDB()
	}
	u.cache.Delete(ctx, productID)
	return nil
}

// 在庫の上書き。調整履歴と監査ログを残す
func (u *ProductUsecase) AdminUpdateInventory(ctx context.Context, actor Actor, productID int64, newStock int64, reason string) error {
	if newStock < 0 {
		return NewHTTPError(http.StatusBadRequest, "stock must be >= 0")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return NewHTTPError(http.StatusBadRequest, "reason required")
	}
	p, err := u.findOwned(ctx, actor, productID)
	if err != nil {
		return err
	}

	before, err := u.inventoryRepo.SetStockWithAdjustment(ctx, actor.UserID, productID, newStock, reason)
	if errors.Is(err, repo.ErrNotFound) {
		return errNotFound()
	}
	if err != nil {
		return errDB()
	}
	u.cache.Delete(ctx, productID)

	if err := u.auditRepo.Create(ctx, model.AuditLog{
		ActorUserID:  actor.UserID,
		TenantID:     p.TenantID,
		Action:       model.AuditActionUpdateStock,
		ResourceType: model.AuditResourceProduct,
		ResourceID:   productID,
		BeforeJSON:   fmt.Sprintf(`{"stock":%d}`, before),
		AfterJSON:    fmt.Sprintf(`{"stock":%d,"reason":%q}`, newStock, reason),
		CreatedAt:    time.Now(),
	}); err != nil {
		return errDB()
	}
	return nil
}
