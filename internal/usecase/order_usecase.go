package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/metrics"
	repo "storefront/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OrderUsecase struct {
	tx         repo.TransactionManager
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	addresses  repo.AddressRepository
	shipping   *ShippingUsecase
	publisher  EventPublisher
	cache      repo.ProductCache
	log        *zap.Logger

	minPayable int64
	now        func() time.Time
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	addresses repo.AddressRepository,
	shipping *ShippingUsecase,
	publisher EventPublisher,
	cache repo.ProductCache,
	minPayable int64,
	log *zap.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		tx:         tx,
		orders:     orders,
		orderItems: orderItems,
		addresses:  addresses,
		shipping:   shipping,
		publisher:  publisher,
		cache:      cache,
		log:        log,
		minPayable: minPayable,
		now:        time.Now,
	}
}

type PlaceOrderInput struct {
	AddressID      int64
	CourierCode    string
	PaymentMethod  string
	Notes          string
	IdempotencyKey string
}

// 注文＋明細
type OrderOutput struct {
	model.Order
	Items []model.OrderItem `json:"items"`
}

type OrderListOutput struct {
	Items []model.Order `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

// ORD-YYYYMMDD-XXXXXXXX
func newOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("ORD-%s-%s", now.UTC().Format("20060102"), suffix)
}

// PlaceOrderはカートから注文を作る。同じ冪等キーなら既存の注文を返す（created=false）
func (u *OrderUsecase) PlaceOrder(ctx context.Context, actor Actor, in PlaceOrderInput) (OrderOutput, bool, error) {
	if actor.UserID <= 0 {
		return OrderOutput{}, false, errUnauthorized()
	}
	if actor.TenantID <= 0 {
		return OrderOutput{}, false, errForbidden()
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" || len(key) > 255 {
		return OrderOutput{}, false, NewHTTPError(http.StatusBadRequest, "invalid idempotency key")
	}
	if in.AddressID <= 0 {
		return OrderOutput{}, false, NewHTTPError(http.StatusBadRequest, "invalid address_id")
	}
	courier, ok := u.shipping.Resolve(in.CourierCode)
	if !ok {
		return OrderOutput{}, false, NewHTTPError(http.StatusBadRequest, "invalid courier_code")
	}
	method := strings.TrimSpace(in.PaymentMethod)
	if method == "" {
		method = "midtrans"
	}
	if len(method) > 50 {
		return OrderOutput{}, false, NewHTTPError(http.StatusBadRequest, "invalid payment_method")
	}
	notes := strings.TrimSpace(in.Notes)
	if len(notes) > 500 {
		return OrderOutput{}, false, NewHTTPError(http.StatusBadRequest, "notes too long")
	}

	// 同じキーなら同じ結果
	if out, found, err := u.findByIdempotencyKey(ctx, actor.UserID, key); err != nil || found {
		return out, false, err
	}

	//住所の存在確認＋所有チェック（他人の住所も404）
	addr, err := u.addresses.FindByID(ctx, in.AddressID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && addr.UserID != actor.UserID) {
		return OrderOutput{}, false, NewHTTPError(http.StatusNotFound, "address not found")
	}
	if err != nil {
		return OrderOutput{}, false, errDB()
	}

	now := u.now()
	order := model.Order{
		OrderNumber:    newOrderNumber(now),
		TenantID:       actor.TenantID,
		UserID:         actor.UserID,
		Shipping:       addr.Snapshot(),
		CourierCode:    courier.Code,
		CourierName:    courier.Name,
		CourierETD:     courier.ETD,
		ShippingCost:   courier.Cost,
		Status:         model.OrderStatusPending,
		PaymentStatus:  model.PaymentStatusPending,
		PaymentMethod:  method,
		IdempotencyKey: key,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if notes != "" {
		order.Notes = &notes
	}

	var items []model.OrderItem

	//在庫確保から注文作成・カートを空にするまで1トランザクション
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//カート行をロックしてから読む（別キーの同時注文で二重に使わせない）
		cart, err := r.Carts().FindActiveByUserIDForUpdate(ctx, actor.UserID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && cart.Status != model.CartStatusActive) {
			return NewHTTPError(http.StatusBadRequest, "cart empty")
		}
		if err != nil {
			return errDB()
		}
		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return errDB()
		}
		if len(cartItems) == 0 {
			return NewHTTPError(http.StatusBadRequest, "cart empty")
		}

		items = make([]model.OrderItem, 0, len(cartItems))
		var subtotal int64
		for _, ci := range cartItems {
			p, err := r.Products().FindByID(ctx, ci.ProductID)
			if errors.Is(err, repo.ErrNotFound) || (err == nil && (!p.IsActive || p.TenantID != actor.TenantID)) {
				return NewHTTPError(http.StatusBadRequest, "product unavailable")
			}
			if err != nil {
				return errDB()
			}

			//在庫が足りないならfalse
			ok, err := r.Inventory().DecreaseStockIfEnough(ctx, ci.ProductID, ci.Quantity)
			if err != nil {
				return errDB()
			}
			if !ok {
				return NewHTTPError(http.StatusBadRequest, fmt.Sprintf("out of stock: %s", p.Name))
			}

			//スナップショット（価格はカート追加時点）
			items = append(items, model.OrderItem{
				ProductID:           ci.ProductID,
				ProductNameSnapshot: p.Name,
				UnitPriceSnapshot:   ci.UnitPriceSnapshot,
				Quantity:            ci.Quantity,
				Subtotal:            ci.Subtotal(),
				CreatedAt:           now,
			})
			subtotal += ci.Subtotal()
		}

		order.Subtotal = subtotal
		order.TotalAmount = subtotal + order.ShippingCost
		if order.TotalAmount < u.minPayable {
			return NewHTTPError(http.StatusBadRequest, fmt.Sprintf("total below minimum payable amount %d", u.minPayable))
		}

		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			return err
		}
		order.ID = orderID

		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return errDB()
		}
		for i := range items {
			items[i].OrderID = orderID
		}

		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return errDB()
		}
		if err := r.Carts().UpdateStatus(ctx, cart.ID, model.CartStatusCheckedOut); err != nil {
			return errDB()
		}
		return nil
	})
	if errors.Is(err, repo.ErrDuplicate) {
		//同じキーで同時に作られた。勝った方を返す
		out, found, ferr := u.findByIdempotencyKey(ctx, actor.UserID, key)
		if ferr != nil {
			return OrderOutput{}, false, ferr
		}
		if !found {
			return OrderOutput{}, false, NewHTTPError(http.StatusConflict, "idempotency conflict")
		}
		return out, false, nil
	}
	if err != nil {
		if _, ok := AsHTTPError(err); ok {
			return OrderOutput{}, false, err
		}
		return OrderOutput{}, false, errDB()
	}

	invalidateProducts(ctx, u.cache, items)
	metrics.RecordOrderCreated()
	u.log.Info("order created",
		zap.String("order_number", order.OrderNumber),
		zap.Int64("user_id", order.UserID),
		zap.Int64("total_amount", order.TotalAmount),
	)
	u.publish(ctx, model.OrderEventCreated, order)

	return OrderOutput{Order: order, Items: items}, true, nil
}

func (u *OrderUsecase) findByIdempotencyKey(ctx context.Context, userID int64, key string) (OrderOutput, bool, error) {
	existing, found, err := u.orders.FindByIdempotencyKey(ctx, userID, key)
	if err != nil {
		return OrderOutput{}, false, errDB()
	}
	if !found {
		return OrderOutput{}, false, nil
	}
	items, err := u.orderItems.ListByOrderID(ctx, existing.ID)
	if err != nil {
		return OrderOutput{}, false, errDB()
	}
	return OrderOutput{Order: existing, Items: items}, true, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, actor Actor, page, limit int) (OrderListOutput, error) {
	if actor.UserID <= 0 {
		return OrderListOutput{}, errUnauthorized()
	}
	page, limit, err := normalizePage(page, limit, 20)
	if err != nil {
		return OrderListOutput{}, err
	}
	list, total, err := u.orders.ListByUserID(ctx, actor.UserID, page, limit)
	if err != nil {
		return OrderListOutput{}, errDB()
	}
	return OrderListOutput{Items: list, Total: total, Page: page, Limit: limit}, nil
}

func (u *OrderUsecase) withItems(ctx context.Context, o model.Order) (OrderOutput, error) {
	items, err := u.orderItems.ListByOrderID(ctx, o.ID)
	if err != nil {
		return OrderOutput{}, errDB()
	}
	return OrderOutput{Order: o, Items: items}, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, actor Actor, orderID int64) (OrderOutput, error) {
	o, err := findOwnOrder(ctx, u.orders, actor, orderID)
	if err != nil {
		return OrderOutput{}, err
	}
	return u.withItems(ctx, o)
}

// order_numberのユニークインデックスで引く
func (u *OrderUsecase) GetMyOrderByNumber(ctx context.Context, actor Actor, orderNumber string) (OrderOutput, error) {
	if actor.UserID <= 0 {
		return OrderOutput{}, errUnauthorized()
	}
	orderNumber = strings.TrimSpace(orderNumber)
	if orderNumber == "" || len(orderNumber) > 40 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid order number")
	}
	o, err := u.orders.FindByOrderNumber(ctx, orderNumber)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && o.UserID != actor.UserID) {
		return OrderOutput{}, errNotFound()
	}
	if err != nil {
		return OrderOutput{}, errDB()
	}
	return u.withItems(ctx, o)
}

// 未決済のpending注文だけキャンセルできる。在庫は同じトランザクションで戻す
func (u *OrderUsecase) CancelMyOrder(ctx context.Context, actor Actor, orderID int64) (model.Order, error) {
	if actor.UserID <= 0 {
		return model.Order{}, errUnauthorized()
	}
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var (
		order    model.Order
		restored []model.OrderItem
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && o.UserID != actor.UserID) {
			return errNotFound()
		}
		if err != nil {
			return errDB()
		}
		restored, err = cancelOrderInTx(ctx, r, &o, actor.UserID, u.now())
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}
	invalidateProducts(ctx, u.cache, restored)

	u.log.Info("order cancelled", zap.String("order_number", order.OrderNumber), zap.Int64("by_user_id", actor.UserID))
	u.publish(ctx, model.OrderEventCancelled, order)
	return order, nil
}

// 受け取り完了（shipped→delivered）
func (u *OrderUsecase) MarkReceived(ctx context.Context, actor Actor, orderID int64) (model.Order, error) {
	if actor.UserID <= 0 {
		return model.Order{}, errUnauthorized()
	}
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var order model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && o.UserID != actor.UserID) {
			return errNotFound()
		}
		if err != nil {
			return errDB()
		}
		if !o.CanMarkReceived() {
			return errInvalidTransition()
		}
		o.Status = model.OrderStatusDelivered
		o.UpdatedAt = u.now()
		if err := r.Orders().Save(ctx, o); err != nil {
			return errDB()
		}
		order = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	u.publish(ctx, model.OrderEventStatusChanged, order)
	return order, nil
}

func (u *OrderUsecase) publish(ctx context.Context, t model.OrderEventType, o model.Order) {
	publishOrderEvent(ctx, u.publisher, u.log, t, o, u.now())
}

func errInvalidTransition() error {
	return NewHTTPError(http.StatusConflict, model.ErrInvalidTransition.Error())
}

func findOwnOrder(ctx context.Context, orders repo.OrderRepository, actor Actor, orderID int64) (model.Order, error) {
	if actor.UserID <= 0 {
		return model.Order{}, errUnauthorized()
	}
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && o.UserID != actor.UserID) {
		return model.Order{}, errNotFound()
	}
	if err != nil {
		return model.Order{}, errDB()
	}
	return o, nil
}

// キャンセルして明細の数量を在庫に戻す（呼び出し側でFOR UPDATE済み）。戻した明細を返す
func cancelOrderInTx(ctx context.Context, r repo.TxRepos, o *model.Order, actorUserID int64, now time.Time) ([]model.OrderItem, error) {
	if err := o.Cancel(now); err != nil {
		return nil, errInvalidTransition()
	}
	items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
	if err != nil {
		return nil, errDB()
	}
	orderID := o.ID
	for _, it := range items {
		if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
			return nil, errDB()
		}
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   it.ProductID,
			ActorUserID: actorUserID,
			OrderID:     &orderID,
			Delta:       it.Quantity,
			Reason:      "order cancelled: " + o.OrderNumber,
			CreatedAt:   now,
		}); err != nil {
			return nil, errDB()
		}
	}
	if err := r.Orders().Save(ctx, *o); err != nil {
		return nil, errDB()
	}
	return items, nil
}

// 在庫が変わった商品のキャッシュを捨てる（コミット後に呼ぶ）
func invalidateProducts(ctx context.Context, cache repo.ProductCache, items []model.OrderItem) {
	if cache == nil {
		return
	}
	for _, it := range items {
		cache.Delete(ctx, it.ProductID)
	}
}

// 送信失敗は注文処理を失敗にしない（ログに残す）
func publishOrderEvent(ctx context.Context, p EventPublisher, log *zap.Logger, t model.OrderEventType, o model.Order, now time.Time) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, model.NewOrderEvent(t, o, now)); err != nil {
		log.Warn("publish order event failed",
			zap.String("type", string(t)),
			zap.String("order_number", o.OrderNumber),
			zap.Error(err),
		)
	}
}
