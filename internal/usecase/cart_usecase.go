package usecase

import (
	"context"
	"errors"
	"net/http"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// /cart の業務ロジック
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartItemRepo repo.CartItemRepository
	productRepo  repo.ProductRepository
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartItemRepo repo.CartItemRepository,
	productRepo repo.ProductRepository,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartItemRepo: cartItemRepo,
		productRepo:  productRepo,
	}
}

// priceはunit_price_snapshot（追加時点の価格）
type CartItemResponse struct {
	ID        int64  `json:"id"`
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	Subtotal  int64  `json:"subtotal"`
	Stock     int64  `json:"stock"`
}

type CartResponse struct {
	ID    int64              `json:"id"`
	Items []CartItemResponse `json:"items"`
	Total int64              `json:"total"`
}

type AddCartInput struct {
	ProductID int64
	Quantity  int64
}

type UpdateCartItemInput struct {
	Quantity int64
}

// 無ければACTIVEを作って空を返す
func (u *CartUsecase) GetCart(ctx context.Context, actor Actor) (CartResponse, error) {
	if actor.UserID <= 0 {
		return CartResponse{}, errUnauthorized()
	}

	cart, err := u.cartRepo.GetOrCreateActiveByUserID(ctx, actor.UserID)
	if err != nil {
		return CartResponse{}, errDB()
	}
	return u.buildCartResponse(ctx, actor, cart.ID)
}

// 購入できる商品か（自テナント・公開中）
func (u *CartUsecase) findPurchasable(ctx context.Context, actor Actor, productID int64) (model.Product, error) {
	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product")
	}
	if err != nil {
		return model.Product{}, errDB()
	}
	if p.TenantID != actor.TenantID || !p.IsActive {
		return model.Product{}, NewHTTPError(http.StatusBadRequest, "invalid product")
	}
	return p, nil
}

// 同一商品は数量加算
func (u *CartUsecase) AddToCart(ctx context.Context, actor Actor, in AddCartInput) (CartResponse, error) {
	if actor.UserID <= 0 {
		return CartResponse{}, errUnauthorized()
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid product_id")
	}
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}

	cart, err := u.cartRepo.GetOrCreateActiveByUserID(ctx, actor.UserID)
	if err != nil {
		return CartResponse{}, errDB()
	}

	p, err := u.findPurchasable(ctx, actor, in.ProductID)
	if err != nil {
		return CartResponse{}, err
	}

	items, err := u.cartItemRepo.ListByCartID(ctx, cart.ID)
	if err != nil {
		return CartResponse{}, errDB()
	}
	var existingQty int64
	for _, it := range items {
		if it.ProductID == in.ProductID {
			existingQty = it.Quantity
			break
		}
	}
	if existingQty+in.Quantity > p.Stock {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "stock exceeded")
	}

	if err := u.cartItemRepo.UpsertByCartAndProduct(ctx, cart.ID, in.ProductID, in.Quantity, p.Price); err != nil {
		return CartResponse{}, errDB()
	}
	return u.buildCartResponse(ctx, actor, cart.ID)
}

// 所有チェックは明細→ACTIVEカート→ユーザーで行う
func (u *CartUsecase) ownedItem(ctx context.Context, actor Actor, cartItemID int64) (model.CartItem, error) {
	if actor.UserID <= 0 {
		return model.CartItem{}, errUnauthorized()
	}
	if cartItemID <= 0 {
		return model.CartItem{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	owned, err := u.cartItemRepo.IsOwnedByUser(ctx, cartItemID, actor.UserID)
	if err != nil {
		return model.CartItem{}, errDB()
	}
	if !owned {
		return model.CartItem{}, errNotFound()
	}
	item, err := u.cartItemRepo.FindByID(ctx, cartItemID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.CartItem{}, errNotFound()
	}
	if err != nil {
		return model.CartItem{}, errDB()
	}
	return item, nil
}

func (u *CartUsecase) UpdateCartItem(ctx context.Context, actor Actor, cartItemID int64, in UpdateCartItemInput) (CartResponse, error) {
	if in.Quantity < 1 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "invalid quantity")
	}
	item, err := u.ownedItem(ctx, actor, cartItemID)
	if err != nil {
		return CartResponse{}, err
	}

	p, err := u.findPurchasable(ctx, actor, item.ProductID)
	if err != nil {
		return CartResponse{}, err
	}
	if in.Quantity > p.Stock {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, "stock exceeded")
	}

	if err := u.cartItemRepo.UpdateQuantity(ctx, cartItemID, in.Quantity); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, errNotFound()
		}
		return CartResponse{}, errDB()
	}
	return u.buildCartResponse(ctx, actor, item.CartID)
}

func (u *CartUsecase) DeleteCartItem(ctx context.Context, actor Actor, cartItemID int64) (CartResponse, error) {
	item, err := u.ownedItem(ctx, actor, cartItemID)
	if err != nil {
		return CartResponse{}, err
	}

	if err := u.cartItemRepo.DeleteByID(ctx, cartItemID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return CartResponse{}, errNotFound()
		}
		return CartResponse{}, errDB()
	}
	return u.buildCartResponse(ctx, actor, item.CartID)
}

// 明細を全部消す（カート自体はACTIVEのまま）
func (u *CartUsecase) ClearCart(ctx context.Context, actor Actor) (CartResponse, error) {
	if actor.UserID <= 0 {
		return CartResponse{}, errUnauthorized()
	}
	cart, err := u.cartRepo.FindActiveByUserID(ctx, actor.UserID)
	if errors.Is(err, repo.ErrNotFound) {
		return CartResponse{Items: []CartItemResponse{}}, nil
	}
	if err != nil {
		return CartResponse{}, errDB()
	}
	if err := u.cartRepo.Clear(ctx, cart.ID); err != nil {
		return CartResponse{}, errDB()
	}
	return CartResponse{ID: cart.ID, Items: []CartItemResponse{}}, nil
}

// 非公開・削除済みになった商品の明細は一覧と合計から外す
func (u *CartUsecase) buildCartResponse(ctx context.Context, actor Actor, cartID int64) (CartResponse, error) {
	items, err := u.cartItemRepo.ListByCartID(ctx, cartID)
	if err != nil {
		return CartResponse{}, errDB()
	}

	respItems := make([]CartItemResponse, 0, len(items))
	var total int64
	for _, it := range items {
		p, err := u.productRepo.FindByID(ctx, it.ProductID)
		if err != nil || !p.IsActive || p.TenantID != actor.TenantID {
			continue
		}
		respItems = append(respItems, CartItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      p.Name,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal(),
			Stock:     p.Stock,
		})
		total += it.Subtotal()
	}

	return CartResponse{ID: cartID, Items: respItems, Total: total}, nil
}
