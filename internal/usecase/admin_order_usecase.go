package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

type AdminOrderUsecase struct {
	tx         repo.TransactionManager
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	publisher  EventPublisher
	cache      repo.ProductCache
	log        *zap.Logger
	now        func() time.Time
}

func NewAdminOrderUsecase(tx repo.TransactionManager, orders repo.OrderRepository, orderItems repo.OrderItemRepository, publisher EventPublisher, cache repo.ProductCache, log *zap.Logger) *AdminOrderUsecase {
	return &AdminOrderUsecase{tx: tx, orders: orders, orderItems: orderItems, publisher: publisher, cache: cache, log: log, now: time.Now}
}

type AdminOrderListInput struct {
	Page          int
	Limit         int
	Status        string
	PaymentStatus string
	UserID        *int64
	From          *time.Time
	To            *time.Time
}

// 管理者は自テナントだけ、superadminは全件
func (u *AdminOrderUsecase) ListOrders(ctx context.Context, actor Actor, in AdminOrderListInput) (OrderListOutput, error) {
	page, limit, err := normalizePage(in.Page, in.Limit, 50)
	if err != nil {
		return OrderListOutput{}, err
	}
	if in.Status != "" && !model.OrderStatus(in.Status).Valid() {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	if in.PaymentStatus != "" && !model.PaymentStatus(in.PaymentStatus).Valid() {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid payment_status")
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "from must be <= to")
	}

	list, total, err := u.orders.ListAdmin(ctx, repo.AdminOrderListFilter{
		TenantID:      actor.TenantFilter(),
		Page:          page,
		Limit:         limit,
		Status:        in.Status,
		PaymentStatus: in.PaymentStatus,
		UserID:        in.UserID,
		From:          in.From,
		To:            in.To,
	})
	if err != nil {
		return OrderListOutput{}, errDB()
	}
	return OrderListOutput{Items: list, Total: total, Page: page, Limit: limit}, nil
}

func (u *AdminOrderUsecase) GetOrder(ctx context.Context, actor Actor, orderID int64) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !actor.CanAccessTenant(o.TenantID)) {
		return OrderOutput{}, errNotFound()
	}
	if err != nil {
		return OrderOutput{}, errDB()
	}
	items, err := u.orderItems.ListByOrderID(ctx, o.ID)
	if err != nil {
		return OrderOutput{}, errDB()
	}
	return OrderOutput{Order: o, Items: items}, nil
}

type orderStatusSnapshot struct {
	Status        model.OrderStatus   `json:"status"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
}

// UpdateOrderStatusは状態遷移表にそって注文ステータスを変える。
// 同じステータスの指定は何もしない
func (u *AdminOrderUsecase) UpdateOrderStatus(ctx context.Context, actor Actor, orderID int64, status string) (model.Order, error) {
	if actor.UserID <= 0 {
		return model.Order{}, errUnauthorized()
	}
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	next := model.OrderStatus(status)
	if !next.Valid() {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}

	var (
		order    model.Order
		changed  bool
		restored []model.OrderItem
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByIDForUpdate(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) || (err == nil && !actor.CanAccessTenant(o.TenantID)) {
			return errNotFound()
		}
		if err != nil {
			return errDB()
		}
		order = o
		if o.Status == next {
			return nil
		}
		if err := o.CheckAdminTransition(next); err != nil {
			return errInvalidTransition()
		}

		before, _ := json.Marshal(orderStatusSnapshot{Status: o.Status, PaymentStatus: o.PaymentStatus})
		now := u.now()
		if next == model.OrderStatusCancelled {
			restored, err = cancelOrderInTx(ctx, r, &o, actor.UserID, now)
			if err != nil {
				return err
			}
		} else {
			o.Status = next
			o.UpdatedAt = now
			if err := r.Orders().Save(ctx, o); err != nil {
				return errDB()
			}
		}
		after, _ := json.Marshal(orderStatusSnapshot{Status: o.Status, PaymentStatus: o.PaymentStatus})

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorUserID:  actor.UserID,
			TenantID:     o.TenantID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   o.ID,
			BeforeJSON:   string(before),
			AfterJSON:    string(after),
			CreatedAt:    now,
		}); err != nil {
			return errDB()
		}
		order = o
		changed = true
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	invalidateProducts(ctx, u.cache, restored)
	if changed {
		u.log.Info("order status updated",
			zap.String("order_number", order.OrderNumber),
			zap.String("status", string(order.Status)),
			zap.Int64("by_user_id", actor.UserID),
		)
		t := model.OrderEventStatusChanged
		if order.Status == model.OrderStatusCancelled {
			t = model.OrderEventCancelled
		}
		publishOrderEvent(ctx, u.publisher, u.log, t, order, u.now())
	}
	return order, nil
}
