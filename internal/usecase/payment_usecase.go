package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/domain/payment"
	"storefront/internal/metrics"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

type PaymentConfig struct {
	MinPayableAmount int64
	ExpiryMinutes    int
	// 決済後の戻り先（フロント）
	FinishBaseURL string
}

type PaymentUsecase struct {
	tx         repo.TransactionManager
	orders     repo.OrderRepository
	orderItems repo.OrderItemRepository
	users      repo.UserRepository
	notifs     repo.PaymentNotificationRepository
	gateway    PaymentGateway
	mock       MockPaymentCompleter
	publisher  EventPublisher
	cfg        PaymentConfig
	log        *zap.Logger
	now        func() time.Time
}

// mockはmockモードのときだけ渡す（liveではnil）
func NewPaymentUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	orderItems repo.OrderItemRepository,
	users repo.UserRepository,
	notifs repo.PaymentNotificationRepository,
	gateway PaymentGateway,
	mock MockPaymentCompleter,
	publisher EventPublisher,
	cfg PaymentConfig,
	log *zap.Logger,
) *PaymentUsecase {
	return &PaymentUsecase{
		tx:         tx,
		orders:     orders,
		orderItems: orderItems,
		users:      users,
		notifs:     notifs,
		gateway:    gateway,
		mock:       mock,
		publisher:  publisher,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
	}
}

// payment_modeを明示して返す（トークンの形で判定させない）
type PaymentSessionOutput struct {
	OrderNumber string            `json:"order_number"`
	Token       string            `json:"token"`
	RedirectURL string            `json:"redirect_url"`
	PaymentMode model.PaymentMode `json:"payment_mode"`
	ClientKey   string            `json:"client_key,omitempty"`
}

type PaymentResult struct {
	OrderID       int64               `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	Status        model.OrderStatus   `json:"status"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
	Changed       bool                `json:"changed"`
}

func resultOf(o model.Order, changed bool) PaymentResult {
	return PaymentResult{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Changed:       changed,
	}
}

func (u *PaymentUsecase) sessionOf(o model.Order) PaymentSessionOutput {
	out := PaymentSessionOutput{
		OrderNumber: o.OrderNumber,
		PaymentMode: o.PaymentMode,
		ClientKey:   u.gateway.ClientKey(),
	}
	if o.PaymentToken != nil {
		out.Token = *o.PaymentToken
	}
	if o.PaymentRedirectURL != nil {
		out.RedirectURL = *o.PaymentRedirectURL
	}
	return out
}

func gatewayError(err error) error {
	if errors.Is(err, payment.ErrGatewayUnavailable) {
		return NewHTTPError(http.StatusServiceUnavailable, "payment gateway unavailable")
	}
	return NewHTTPError(http.StatusBadGateway, "payment gateway error")
}

// CreatePaymentは決済セッション（Snapトークン）を発行する。発行済みなら同じものを返す
func (u *PaymentUsecase) CreatePayment(ctx context.Context, actor Actor, orderID int64) (PaymentSessionOutput, error) {
	o, err := findOwnOrder(ctx, u.orders, actor, orderID)
	if err != nil {
		return PaymentSessionOutput{}, err
	}
	if !o.CanPay() {
		return PaymentSessionOutput{}, NewHTTPError(http.StatusConflict, "order cannot be paid")
	}
	if o.TotalAmount < u.cfg.MinPayableAmount {
		return PaymentSessionOutput{}, NewHTTPError(http.StatusBadRequest, fmt.Sprintf("total below minimum payable amount %d", u.cfg.MinPayableAmount))
	}
	if o.PaymentToken != nil && *o.PaymentToken != "" {
		return u.sessionOf(o), nil
	}

	req, err := u.buildCreateRequest(ctx, o)
	if err != nil {
		return PaymentSessionOutput{}, err
	}

	//ゲートウェイ呼び出しはトランザクションの外
	session, err := u.gateway.CreateTransaction(ctx, req)
	if err != nil {
		return PaymentSessionOutput{}, gatewayError(err)
	}

	var saved model.Order
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cur, err := r.Orders().FindByIDForUpdate(ctx, o.ID)
		if err != nil {
			return errDB()
		}
		//同時に発行された場合は先に保存された方を使う
		if cur.PaymentToken != nil && *cur.PaymentToken != "" {
			saved = cur
			return nil
		}
		if !cur.CanPay() {
			return NewHTTPError(http.StatusConflict, "order cannot be paid")
		}
		cur.PaymentMode = u.gateway.Mode()
		cur.PaymentToken = &session.Token
		cur.PaymentRedirectURL = &session.RedirectURL
		cur.UpdatedAt = u.now()
		if err := r.Orders().Save(ctx, cur); err != nil {
			return errDB()
		}
		saved = cur
		return nil
	})
	if err != nil {
		return PaymentSessionOutput{}, err
	}

	u.log.Info("payment session created",
		zap.String("order_number", saved.OrderNumber),
		zap.String("payment_mode", string(saved.PaymentMode)),
	)
	return u.sessionOf(saved), nil
}

// 明細+送料の合計がgross_amountと一致するように組む
func (u *PaymentUsecase) buildCreateRequest(ctx context.Context, o model.Order) (payment.CreateRequest, error) {
	items, err := u.orderItems.ListByOrderID(ctx, o.ID)
	if err != nil {
		return payment.CreateRequest{}, errDB()
	}
	reqItems := make([]payment.Item, 0, len(items)+1)
	for _, it := range items {
		reqItems = append(reqItems, payment.Item{
			ID:    strconv.FormatInt(it.ProductID, 10),
			Name:  it.ProductNameSnapshot,
			Price: it.UnitPriceSnapshot,
			Qty:   it.Quantity,
		})
	}
	if o.ShippingCost > 0 {
		reqItems = append(reqItems, payment.Item{
			ID:    "shipping-" + o.CourierCode,
			Name:  "Shipping " + o.CourierName,
			Price: o.ShippingCost,
			Qty:   1,
		})
	}

	customer := payment.Customer{
		Name:       o.Shipping.RecipientName,
		Phone:      o.Shipping.Phone,
		Street:     o.Shipping.Street,
		City:       o.Shipping.City,
		PostalCode: o.Shipping.PostalCode,
	}
	if user, err := u.users.FindByID(ctx, o.UserID); err == nil {
		customer.Email = user.Email
	}

	finish := ""
	if u.cfg.FinishBaseURL != "" {
		finish = fmt.Sprintf("%s/orders/%s/payment/finish", strings.TrimRight(u.cfg.FinishBaseURL, "/"), o.OrderNumber)
	}

	return payment.CreateRequest{
		OrderNumber:   o.OrderNumber,
		GrossAmount:   o.TotalAmount,
		Items:         reqItems,
		Customer:      customer,
		FinishURL:     finish,
		ExpiryMinutes: u.cfg.ExpiryMinutes,
	}, nil
}

// HandleNotificationはゲートウェイからの通知(webhook)を検証して反映する。
// 決済状態を書き換えるのはこの経路だけ
func (u *PaymentUsecase) HandleNotification(ctx context.Context, n payment.Notification, raw []byte) (PaymentResult, error) {
	if strings.TrimSpace(n.OrderID) == "" {
		return PaymentResult{}, NewHTTPError(http.StatusBadRequest, "order_id required")
	}
	if !u.gateway.VerifyNotification(n) {
		u.log.Warn("payment notification signature mismatch", zap.String("order_number", n.OrderID))
		return PaymentResult{}, NewHTTPError(http.StatusForbidden, "invalid signature")
	}
	return u.apply(ctx, n, raw)
}

func (u *PaymentUsecase) apply(ctx context.Context, n payment.Notification, raw []byte) (PaymentResult, error) {
	result, ok := payment.MapStatus(n.TransactionStatus, n.FraudStatus)
	if !ok {
		//refundなどはこのサービスでは扱わない
		u.log.Info("payment notification ignored",
			zap.String("order_number", n.OrderID),
			zap.String("transaction_status", n.TransactionStatus),
		)
		return PaymentResult{OrderNumber: n.OrderID}, nil
	}
	amount, err := payment.ParseAmount(n.GrossAmount)
	if err != nil {
		return PaymentResult{}, NewHTTPError(http.StatusBadRequest, "invalid gross_amount")
	}
	txnID := strings.TrimSpace(n.TransactionID)
	if txnID == "" {
		return PaymentResult{}, NewHTTPError(http.StatusBadRequest, "transaction_id required")
	}
	if len(raw) == 0 {
		raw, _ = json.Marshal(n)
	}

	now := u.now()
	var (
		order     model.Order
		changed   bool
		duplicate bool
	)
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByOrderNumberForUpdate(ctx, n.OrderID)
		if errors.Is(err, repo.ErrNotFound) {
			return errNotFound()
		}
		if err != nil {
			return errDB()
		}
		order = o

		if amount != o.TotalAmount {
			return NewHTTPError(http.StatusBadRequest, "gross amount mismatch")
		}

		//同じ(transaction_id, transaction_status)は一度だけ
		err = r.PaymentNotifications().Create(ctx, model.PaymentNotification{
			OrderID:           o.ID,
			TransactionID:     txnID,
			TransactionStatus: strings.ToLower(n.TransactionStatus),
			StatusCode:        n.StatusCode,
			FraudStatus:       n.FraudStatus,
			GrossAmount:       n.GrossAmount,
			PaymentType:       n.PaymentType,
			Result:            string(result),
			RawPayload:        string(raw),
			ProcessedAt:       now,
		})
		if errors.Is(err, repo.ErrDuplicate) {
			duplicate = true
			return nil
		}
		if err != nil {
			return errDB()
		}

		changed, err = o.ApplyPayment(result, now)
		if err != nil {
			//終端後やキャンセル後の通知は記録だけして受け流す
			u.log.Warn("payment result not applied",
				zap.String("order_number", o.OrderNumber),
				zap.String("status", string(o.Status)),
				zap.String("payment_status", string(o.PaymentStatus)),
				zap.String("result", string(result)),
				zap.Error(err),
			)
			return nil
		}
		if !changed {
			return nil
		}
		if o.GatewayTransactionID == nil {
			o.GatewayTransactionID = &txnID
		}
		if err := r.Orders().Save(ctx, o); err != nil {
			return errDB()
		}
		order = o
		return nil
	})
	if err != nil {
		return PaymentResult{}, err
	}

	if duplicate {
		u.log.Debug("duplicate payment notification", zap.String("order_number", n.OrderID), zap.String("transaction_status", n.TransactionStatus))
		return resultOf(order, false), nil
	}
	if changed {
		metrics.RecordPaymentProcessed(string(order.PaymentStatus))
		u.log.Info("payment applied",
			zap.String("order_number", order.OrderNumber),
			zap.String("status", string(order.Status)),
			zap.String("payment_status", string(order.PaymentStatus)),
		)
		if t, ok := model.PaymentEventType(order.PaymentStatus); ok {
			publishOrderEvent(ctx, u.publisher, u.log, t, order, now)
		}
	}
	return resultOf(order, changed), nil
}

// リダイレクトで戻ってきたときのヒント。URLの値では状態を変えない
type SyncHint struct {
	StatusCode        string
	TransactionStatus string
}

// Syncはゲートウェイに取引状態を問い合わせ、webhookと同じ経路で反映する
func (u *PaymentUsecase) Sync(ctx context.Context, actor Actor, orderID int64, hint SyncHint) (PaymentResult, error) {
	o, err := findOwnOrder(ctx, u.orders, actor, orderID)
	if err != nil {
		return PaymentResult{}, err
	}
	if hint.TransactionStatus != "" {
		u.log.Debug("payment redirect hint",
			zap.String("order_number", o.OrderNumber),
			zap.String("status_code", hint.StatusCode),
			zap.String("transaction_status", hint.TransactionStatus),
		)
	}
	if o.PaymentStatus.Terminal() {
		return resultOf(o, false), nil
	}

	n, err := u.gateway.CheckStatus(ctx, o.OrderNumber)
	if errors.Is(err, payment.ErrTransactionNotFound) {
		return resultOf(o, false), nil
	}
	if err != nil {
		return PaymentResult{}, gatewayError(err)
	}
	if n.OrderID == "" {
		n.OrderID = o.OrderNumber
	}
	if n.OrderID != o.OrderNumber {
		return PaymentResult{}, NewHTTPError(http.StatusBadGateway, "payment gateway error")
	}
	return u.apply(ctx, n, nil)
}

// mockの承認画面から呼ばれる。署名付き通知を作ってwebhookと同じ経路に流す
func (u *PaymentUsecase) CompleteMockPayment(ctx context.Context, actor Actor, orderNumber, transactionStatus string) (PaymentResult, error) {
	if u.mock == nil {
		return PaymentResult{}, errNotFound()
	}
	if actor.UserID <= 0 {
		return PaymentResult{}, errUnauthorized()
	}
	o, err := u.orders.FindByOrderNumber(ctx, strings.TrimSpace(orderNumber))
	if errors.Is(err, repo.ErrNotFound) || (err == nil && o.UserID != actor.UserID) {
		return PaymentResult{}, errNotFound()
	}
	if err != nil {
		return PaymentResult{}, errDB()
	}
	if o.PaymentToken == nil {
		return PaymentResult{}, NewHTTPError(http.StatusConflict, "payment not started")
	}

	n, err := u.mock.Complete(o.OrderNumber, transactionStatus, o.TotalAmount)
	if err != nil {
		return PaymentResult{}, NewHTTPError(http.StatusBadRequest, "invalid transaction_status")
	}
	raw, _ := json.Marshal(n)
	return u.HandleNotification(ctx, n, raw)
}

// 通知の履歴（管理画面用）
func (u *PaymentUsecase) ListNotifications(ctx context.Context, actor Actor, orderID int64) ([]model.PaymentNotification, error) {
	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) || (err == nil && !actor.CanAccessTenant(o.TenantID)) {
		return nil, errNotFound()
	}
	if err != nil {
		return nil, errDB()
	}
	list, err := u.notifs.ListByOrderID(ctx, o.ID)
	if err != nil {
		return nil, errDB()
	}
	return list, nil
}
