package payment

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"storefront/internal/domain/model"
	"storefront/internal/domain/payment"

	"github.com/google/uuid"
)

// Midtransのキーがない環境用。取引状態はメモリに持つ
type MockGateway struct {
	serverKey   string
	redirectURL string

	mu   sync.Mutex
	txns map[string]payment.Notification
}

// redirectBaseは承認画面（フロント）のURL。
// serverKeyが空ならプロセスごとの乱数キーを使う（外から署名付き通知を作れない）
func NewMockGateway(serverKey, redirectBase string) *MockGateway {
	if serverKey == "" {
		serverKey = "mock-" + uuid.NewString()
	}
	return &MockGateway{
		serverKey:   serverKey,
		redirectURL: strings.TrimRight(redirectBase, "/"),
		txns:        make(map[string]payment.Notification),
	}
}

func (g *MockGateway) Mode() model.PaymentMode { return model.PaymentModeMock }

func (g *MockGateway) ClientKey() string { return "" }

func (g *MockGateway) CreateTransaction(ctx context.Context, req payment.CreateRequest) (payment.Session, error) {
	if err := ctx.Err(); err != nil {
		return payment.Session{}, err
	}
	token := "mock-" + uuid.NewString()
	q := url.Values{}
	q.Set("order_number", req.OrderNumber)
	q.Set("token", token)
	return payment.Session{
		Token:       token,
		RedirectURL: fmt.Sprintf("%s/payment/mock?%s", g.redirectURL, q.Encode()),
	}, nil
}

func (g *MockGateway) CheckStatus(ctx context.Context, orderNumber string) (payment.Notification, error) {
	if err := ctx.Err(); err != nil {
		return payment.Notification{}, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	n, ok := g.txns[orderNumber]
	if !ok {
		return payment.Notification{}, payment.ErrTransactionNotFound
	}
	return n, nil
}

func (g *MockGateway) VerifyNotification(n payment.Notification) bool {
	return payment.VerifySignature(n, g.serverKey)
}

var mockStatusCodes = map[string]string{
	"settlement": "200",
	"capture":    "200",
	"pending":    "201",
	"deny":       "202",
	"failure":    "202",
	"cancel":     "200",
	"expire":     "407",
}

// Completeは承認画面での選択を記録し、署名付きの通知を返す
func (g *MockGateway) Complete(orderNumber, transactionStatus string, grossAmount int64) (payment.Notification, error) {
	transactionStatus = strings.ToLower(strings.TrimSpace(transactionStatus))
	code, ok := mockStatusCodes[transactionStatus]
	if !ok {
		return payment.Notification{}, fmt.Errorf("unsupported transaction status %q", transactionStatus)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	txnID := "mock-txn-" + uuid.NewString()
	if prev, ok := g.txns[orderNumber]; ok {
		txnID = prev.TransactionID
	}
	n := payment.Notification{
		OrderID:           orderNumber,
		TransactionID:     txnID,
		TransactionStatus: transactionStatus,
		StatusCode:        code,
		GrossAmount:       payment.FormatAmount(grossAmount),
		PaymentType:       "mock",
	}
	if transactionStatus == "capture" {
		n.FraudStatus = "accept"
	}
	n.SignatureKey = payment.Signature(n.OrderID, n.StatusCode, n.GrossAmount, g.serverKey)
	g.txns[orderNumber] = n
	return n, nil
}
