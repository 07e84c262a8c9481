package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/domain/model"
	"storefront/internal/domain/payment"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"go.uber.org/zap"
)

// Midtrans（Snap + Core API）を使う本番用ゲートウェイ
type MidtransGateway struct {
	serverKey string
	clientKey string
	snap      snap.Client
	core      coreapi.Client
	breaker   *CircuitBreaker
	log       *zap.Logger
}

func NewMidtransGateway(serverKey, clientKey string, production bool, log *zap.Logger) *MidtransGateway {
	env := midtrans.Sandbox
	if production {
		env = midtrans.Production
	}
	g := &MidtransGateway{
		serverKey: serverKey,
		clientKey: clientKey,
		breaker:   NewCircuitBreaker(5, 30*time.Second),
		log:       log,
	}
	g.snap.New(serverKey, env)
	g.core.New(serverKey, env)
	return g
}

func (g *MidtransGateway) Mode() model.PaymentMode { return model.PaymentModeLive }

func (g *MidtransGateway) ClientKey() string { return g.clientKey }

func (g *MidtransGateway) CreateTransaction(ctx context.Context, req payment.CreateRequest) (payment.Session, error) {
	if err := ctx.Err(); err != nil {
		return payment.Session{}, err
	}

	items := make([]midtrans.ItemDetails, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, midtrans.ItemDetails{
			ID:    it.ID,
			Name:  truncate(it.Name, 50),
			Price: it.Price,
			Qty:   int32(it.Qty),
		})
	}

	sreq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderNumber,
			GrossAmt: req.GrossAmount,
		},
		Items: &items,
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
			ShipAddr: &midtrans.CustomerAddress{
				FName:       req.Customer.Name,
				Phone:       req.Customer.Phone,
				Address:     req.Customer.Street,
				City:        req.Customer.City,
				Postcode:    req.Customer.PostalCode,
				CountryCode: "IDN",
			},
		},
	}
	if req.FinishURL != "" {
		sreq.Callbacks = &snap.Callbacks{Finish: req.FinishURL}
	}
	if req.ExpiryMinutes > 0 {
		sreq.Expiry = &snap.ExpiryDetails{Unit: "minute", Duration: int64(req.ExpiryMinutes)}
	}

	var res *snap.Response
	err := g.breaker.Execute(func() error {
		r, mErr := g.snap.CreateTransaction(sreq)
		if mErr != nil {
			return fmt.Errorf("snap create transaction: %s (status %d)", mErr.Message, mErr.StatusCode)
		}
		res = r
		return nil
	})
	if errors.Is(err, ErrCircuitOpen) {
		return payment.Session{}, payment.ErrGatewayUnavailable
	}
	if err != nil {
		g.log.Warn("midtrans create transaction failed", zap.String("order_number", req.OrderNumber), zap.Error(err))
		return payment.Session{}, err
	}

	return payment.Session{Token: res.Token, RedirectURL: res.RedirectURL}, nil
}

// Core APIで取引状態を照会する。取引がなければErrTransactionNotFound
func (g *MidtransGateway) CheckStatus(ctx context.Context, orderNumber string) (payment.Notification, error) {
	if err := ctx.Err(); err != nil {
		return payment.Notification{}, err
	}

	var res *coreapi.TransactionStatusResponse
	notFound := false
	err := g.breaker.Execute(func() error {
		r, mErr := g.core.CheckTransaction(orderNumber)
		if mErr != nil {
			//404は障害ではないのでブレーカーに数えない
			if mErr.StatusCode == http.StatusNotFound {
				notFound = true
				return nil
			}
			return fmt.Errorf("core check transaction: %s (status %d)", mErr.Message, mErr.StatusCode)
		}
		res = r
		return nil
	})
	if errors.Is(err, ErrCircuitOpen) {
		return payment.Notification{}, payment.ErrGatewayUnavailable
	}
	if err != nil {
		g.log.Warn("midtrans check transaction failed", zap.String("order_number", orderNumber), zap.Error(err))
		return payment.Notification{}, err
	}
	if notFound || res == nil || res.StatusCode == "404" {
		return payment.Notification{}, payment.ErrTransactionNotFound
	}

	return payment.Notification{
		OrderID:           res.OrderID,
		TransactionID:     res.TransactionID,
		TransactionStatus: res.TransactionStatus,
		StatusCode:        res.StatusCode,
		FraudStatus:       res.FraudStatus,
		GrossAmount:       res.GrossAmount,
		PaymentType:       res.PaymentType,
		SignatureKey:      res.SignatureKey,
	}, nil
}

func (g *MidtransGateway) VerifyNotification(n payment.Notification) bool {
	return payment.VerifySignature(n, g.serverKey)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
