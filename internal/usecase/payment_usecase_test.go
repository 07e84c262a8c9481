package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"storefront/internal/domain/model"
	"storefront/internal/domain/payment"
	paymentinfra "storefront/internal/infra/payment"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func (f *fixture) paymentUsecase(gw usecase.PaymentGateway, completer usecase.MockPaymentCompleter) *usecase.PaymentUsecase {
	s := f.store
	return usecase.NewPaymentUsecase(s, memOrders{s}, memOrderItems{s}, memUsers{s}, memNotifs{s}, gw, completer, f.pub,
		usecase.PaymentConfig{MinPayableAmount: 10000, ExpiryMinutes: 60, FinishBaseURL: "http://fe.test/"},
		zap.NewNop(),
	)
}

func signedNotification(orderNumber, txnID, status, code, gross string) payment.Notification {
	n := payment.Notification{
		OrderID:           orderNumber,
		TransactionID:     txnID,
		TransactionStatus: status,
		StatusCode:        code,
		GrossAmount:       gross,
		PaymentType:       "bank_transfer",
	}
	n.SignatureKey = payment.Signature(n.OrderID, n.StatusCode, n.GrossAmount, testServerKey)
	return n
}

// =====================
// CreatePayment
// =====================

func TestPaymentUsecase_CreatePayment_ReusesToken(t *testing.T) {
	f := newFixture(t)
	out := f.placeOrder(t, 2)

	gw := new(gatewayMock)
	gw.On("CreateTransaction", mock.Anything, mock.MatchedBy(func(req payment.CreateRequest) bool {
		var sum int64
		for _, it := range req.Items {
			sum += it.Price * it.Qty
		}
		return req.OrderNumber == out.OrderNumber &&
			req.GrossAmount == 115000 &&
			sum == req.GrossAmount &&
			req.Customer.Email == "buyer@example.com" &&
			req.FinishURL == "http://fe.test/orders/"+out.OrderNumber+"/payment/finish"
	})).Return(payment.Session{Token: "snap-token", RedirectURL: "https://app.midtrans.test/snap"}, nil).Once()

	uc := f.paymentUsecase(gw, nil)
	first, err := uc.CreatePayment(context.Background(), f.customerActor(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, "snap-token", first.Token)
	assert.Equal(t, model.PaymentModeLive, first.PaymentMode)
	assert.Equal(t, "client-key", first.ClientKey)

	second, err := uc.CreatePayment(context.Background(), f.customerActor(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	gw.AssertNumberOfCalls(t, "CreateTransaction", 1)
}

func TestPaymentUsecase_CreatePayment_GatewayUnavailable(t *testing.T) {
	f := newFixture(t)
	out := f.placeOrder(t, 1)

	gw := new(gatewayMock)
	gw.On("CreateTransaction", mock.Anything, mock.Anything).Return(nil, payment.ErrGatewayUnavailable)

	_, err := f.paymentUsecase(gw, nil).CreatePayment(context.Background(), f.customerActor(), out.ID)
	assertHTTPError(t, err, http.StatusServiceUnavailable, "unavailable")
	assert.Nil(t, f.store.orders[out.ID].PaymentToken)
}

func TestPaymentUsecase_CreatePayment_GatewayError(t *testing.T) {
	f := newFixture(t)
	out := f.placeOrder(t, 1)

	gw := new(gatewayMock)
	gw.On("CreateTransaction", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	_, err := f.paymentUsecase(gw, nil).CreatePayment(context.Background(), f.customerActor(), out.ID)
	assertHTTPError(t, err, http.StatusBadGateway, "")
}

func TestPaymentUsecase_CreatePayment_NotPayable(t *testing.T) {
	f := newFixture(t)
	out := f.placeOrder(t, 1)
	_, err := f.orderUsecase().CancelMyOrder(context.Background(), f.customerActor(), out.ID)
	require.NoError(t, err)

	gw := new(gatewayMock)
	_, err = f.paymentUsecase(gw, nil).CreatePayment(context.Background(), f.customerActor(), out.ID)
	assertHTTPError(t, err, http.StatusConflict, "cannot be paid")
	gw.AssertNotCalled(t, "CreateTransaction", mock.Anything, mock.Anything)
}

func TestPaymentUsecase_CreatePayment_OtherUsersOrder(t *testing.T) {
	f := newFixture(t)
	out := f.placeOrder(t, 1)

	stranger := usecase.Actor{UserID: f.admin.ID, Role: model.RoleUser, TenantID: f.tenant.ID}
	_, err := f.paymentUsecase(new(gatewayMock), nil).CreatePayment(context.Background(), stranger, out.ID)
	assertHTTPError(t, err, http.StatusNotFound, "")
}

func TestPaymentUsecase_CreatePayment_MockMode(t *testing.T) {
	f := newFixture(t)
	out := f.placeOrder(t, 1)
	gw := paymentinfra.NewMockGateway(testServerKey, "http://app.test")

	sess, err := f.paymentUsecase(gw, gw).CreatePayment(context.Background(), f.customerActor(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentModeMock, sess.PaymentMode)
	assert.True(t, strings.HasPrefix(sess.Token, "mock-"))
	assert.Contains(t, sess.RedirectURL, "order_number="+out.OrderNumber)
	assert.Equal(t, model.PaymentModeMock, f.store.orders[out.ID].PaymentMode)
}

// =====================
// HandleNotification
// =====================

func TestPaymentUsecase_HandleNotification_SettlementThenDuplicate(t *testing.T) {
	f := newFixture(t)
	out := f.placeOrder(t, 2)
	uc := f.paymentUsecase(new(gatewayMock), nil)
	n := signedNotification(out.OrderNumber, "txn-1", "settlement", "200", "115000.00")

	res, err := uc.HandleNotification(context.Background(), n, []byte(`{"raw":true}`))
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, model.PaymentStatusPaid, res.PaymentStatus)
	assert.Equal(t, model.OrderStatusProcessing, res.Status)

	o := f.store.orders[out.ID]
	assert.NotNil(t, o.PaidAt)
	require.NotNil(t, o.GatewayTransactionID)
	assert.Equal(t, "txn-1", *o.GatewayTransactionID)
	require.Len(t, f.store.notifs, 1)
	assert.Equal(t, `{"raw":true}`, f.store.notifs[0].RawPayload)

	//再送は何も変えない
	res, err = uc.HandleNotification(context.Background(), n, nil)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, model.PaymentStatusPaid, res.PaymentStatus)
	assert.Len(t, f.store.notifs, 1)
	assert.Equal(t, []model.OrderEventType{model.OrderEventCreated, model.OrderEventPaid}, f.pub.types())
}

func TestPaymentUsecase_HandleNotification_Rejections(t *testing.T) {
	f := newFixture(t)
	out := f.placeOrder(t, 2)
	uc := f.paymentUsecase(new(gatewayMock), nil)

	badSig := signedNotification(out.OrderNumber, "txn-1", "settlement", "200", "115000.00")
	badSig.SignatureKey = "nope"
	mismatch := signedNotification(out.OrderNumber, "txn-1", "settlement", "200", "1000.00")
	unknown := signedNotification("ORD-NOPE", "txn-1", "settlement", "200", "115000.00")
	noTxn := signedNotification(out.OrderNumber, "", "settlement", "200", "115000.00")

	tests := []struct {
		name   string
		n      payment.Notification
		status int
		msg    string
	}{
		{"bad signature", badSig, http.StatusForbidden, "invalid signature"},
		{"amount mismatch", mismatch, http.StatusBadRequest, "gross amount mismatch"},
		{"unknown order", unknown, http.StatusNotFound, ""},
		{"missing transaction id", noTxn, http.StatusBadRequest, "transaction_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.HandleNotification(context.Background(), tt.n, nil)
			assertHTTPError(t, err, tt.status, tt.msg)
		})
	}
	assert.Empty(t, f.store.notifs)
	assert.Equal(t, model.PaymentStatusPending, f.store.orders[out.ID].PaymentStatus)
}

func TestPaymentUsecase_HandleNotification_ExpireKeepsOrderCancellable(t *testing.T) {
	f := newFixture(t)
	out := f.placeOrder(t, 1)
	uc := f.paymentUsecase(new(gatewayMock), nil)

	res, err := uc.HandleNotification(context.Background(), signedNotification(out.OrderNumber, "txn-1", "expire", "407", "65000.00"), nil)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, model.PaymentStatusExpired, res.PaymentStatus)
	assert.Equal(t, model.OrderStatusPending, res.Status)

	//終端後のsettlementは記録だけ
	res, err = uc.HandleNotification(context.Background(), signedNotification(out.OrderNumber, "txn-1", "settlement", "200", "65000.00"), nil)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, model.PaymentStatusExpired, f.store.orders[out.ID].PaymentStatus)
	assert.Len(t, f.store.notifs, 2)

	_, err = f.orderUsecase().CancelMyOrder(context.Background(), f.customerActor(), out.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.OrderEventType{model.OrderEventCreated, model.OrderEventPaymentExpired, model.OrderEventCancelled}, f.pub.types())
}

func TestPaymentUsecase_HandleNotification_PaidAfterCancel(t *testing.T) {
	f := newFixture(t)
	out := f.placeOrder(t, 1)
	_, err := f.orderUsecase().CancelMyOrder(context.Background(), f.customerActor(), out.ID)
	require.NoError(t, err)

	res, err := f.paymentUsecase(new(gatewayMock), nil).HandleNotification(context.Background(),
		signedNotification(out.OrderNumber, "txn-1", "settlement", "200", "65000.00"), nil)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	o := f.store.orders[out.ID]
	assert.Equal(t, model.OrderStatusCancelled, o.Status)
	assert.Equal(t, model.PaymentStatusPending, o.PaymentStatus)
	assert.Len(t, f.store.notifs, 1)
	assert.NotContains(t, f.pub.types(), model.OrderEventPaid)
}

func TestPaymentUsecase_HandleNotification_PendingAndUnknownStatus(t *testing.T) {
	f := newFixture(t)
	out := f.placeOrder(t, 1)
	uc := f.paymentUsecase(new(gatewayMock), nil)

	res, err := uc.HandleNotification(context.Background(), signedNotification(out.OrderNumber, "txn-1", "pending", "201", "65000.00"), nil)
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Len(t, f.store.notifs, 1)

	_, err = uc.HandleNotification(context.Background(), signedNotification(out.OrderNumber, "txn-1", "refund", "200", "65000.00"), nil)
	require.NoError(t, err)
	assert.Len(t, f.store.notifs, 1)
	assert.Equal(t, model.PaymentStatusPending, f.store.orders[out.ID].PaymentStatus)
}

func TestPaymentUsecase_HandleNotification_CaptureFraudChallenge(t *testing.T) {
	f := newFixture(t)
	out := f.placeOrder(t, 1)
	uc := f.paymentUsecase(new(gatewayMock), nil)

	n := signedNotification(out.OrderNumber, "txn-1", "capture", "200", "65000.00")
	n.FraudStatus = "challenge"
	res, err := uc.HandleNotification(context.Background(), n, nil)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	n = signedNotification(out.OrderNumber, "txn-2", "capture", "200", "65000.00")
	n.FraudStatus = "accept"
	res, err = uc.HandleNotification(context.Background(), n, nil)
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, model.PaymentStatusPaid, res.PaymentStatus)
}

// =====================
// Sync / mock
// =====================

func TestPaymentUsecase_Sync_UsesGatewayStatus(t *testing.T) {
	f := newFixture(t)
	out := f.placeOrder(t, 1)

	gw := new(gatewayMock)
	gw.On("CheckStatus", mock.Anything, out.OrderNumber).
		Return(signedNotification(out.OrderNumber, "txn-1", "settlement", "200", "65000.00"), nil)

	//URLのヒントがfailureでもゲートウェイの答えを使う
	res, err := f.paymentUsecase(gw, nil).Sync(context.Background(), f.customerActor(), out.ID,
		usecase.SyncHint{StatusCode: "202", TransactionStatus: "failure"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, model.PaymentStatusPaid, res.PaymentStatus)
}

func TestPaymentUsecase_Sync_NoTransactionYet(t *testing.T) {
	f := newFixture(t)
	out := f.placeOrder(t, 1)

	gw := new(gatewayMock)
	gw.On("CheckStatus", mock.Anything, out.OrderNumber).Return(nil, payment.ErrTransactionNotFound)

	res, err := f.paymentUsecase(gw, nil).Sync(context.Background(), f.customerActor(), out.ID,
		usecase.SyncHint{StatusCode: "200", TransactionStatus: "settlement"})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, model.PaymentStatusPending, f.store.orders[out.ID].PaymentStatus)
}

func TestPaymentUsecase_Sync_TerminalSkipsGateway(t *testing.T) {
	f := newFixture(t)
	out := f.placeOrder(t, 1)
	o := f.store.orders[out.ID]
	o.PaymentStatus = model.PaymentStatusFailed
	f.store.orders[out.ID] = o

	gw := new(gatewayMock)
	res, err := f.paymentUsecase(gw, nil).Sync(context.Background(), f.customerActor(), out.ID, usecase.SyncHint{})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, res.PaymentStatus)
	gw.AssertNotCalled(t, "CheckStatus", mock.Anything, mock.Anything)
}

func TestPaymentUsecase_CompleteMockPayment(t *testing.T) {
	f := newFixture(t)
	out := f.placeOrder(t, 1)
	gw := paymentinfra.NewMockGateway(testServerKey, "http://app.test")
	uc := f.paymentUsecase(gw, gw)
	ctx := context.Background()

	_, err := uc.CompleteMockPayment(ctx, f.customerActor(), out.OrderNumber, "settlement")
	assertHTTPError(t, err, http.StatusConflict, "payment not started")

	_, err = uc.CreatePayment(ctx, f.customerActor(), out.ID)
	require.NoError(t, err)

	_, err = uc.CompleteMockPayment(ctx, f.customerActor(), out.OrderNumber, "bogus")
	assertHTTPError(t, err, http.StatusBadRequest, "transaction_status")

	res, err := uc.CompleteMockPayment(ctx, f.customerActor(), out.OrderNumber, "settlement")
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, model.PaymentStatusPaid, res.PaymentStatus)

	//syncしても同じ通知なので変化なし
	res, err = uc.Sync(ctx, f.customerActor(), out.ID, usecase.SyncHint{})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Len(t, f.store.notifs, 1)

	notifs, err := uc.ListNotifications(ctx, f.adminActor(), out.ID)
	require.NoError(t, err)
	assert.Len(t, notifs, 1)

	_, err = uc.ListNotifications(ctx, usecase.Actor{UserID: 1, Role: model.RoleAdmin, TenantID: 9999}, out.ID)
	assertHTTPError(t, err, http.StatusNotFound, "")
}

func TestPaymentUsecase_CompleteMockPayment_LiveMode(t *testing.T) {
	f := newFixture(t)
	out := f.placeOrder(t, 1)

	_, err := f.paymentUsecase(new(gatewayMock), nil).CompleteMockPayment(context.Background(), f.customerActor(), out.OrderNumber, "settlement")
	assertHTTPError(t, err, http.StatusNotFound, "")
}
