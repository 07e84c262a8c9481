package usecase_test

import (
	"context"
	"testing"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/domain/payment"
	"storefront/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =====================
// Mocks
// =====================

type publisherMock struct{ mock.Mock }

func (m *publisherMock) Publish(ctx context.Context, ev model.OrderEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// 送られたイベントの種類を順番に返す
func (m *publisherMock) types() []model.OrderEventType {
	var out []model.OrderEventType
	for _, c := range m.Calls {
		if ev, ok := c.Arguments.Get(1).(model.OrderEvent); ok {
			out = append(out, ev.Type)
		}
	}
	return out
}

type gatewayMock struct{ mock.Mock }

func (m *gatewayMock) Mode() model.PaymentMode { return model.PaymentModeLive }

func (m *gatewayMock) ClientKey() string { return "client-key" }

func (m *gatewayMock) CreateTransaction(ctx context.Context, req payment.CreateRequest) (payment.Session, error) {
	args := m.Called(ctx, req)
	s, _ := args.Get(0).(payment.Session)
	return s, args.Error(1)
}

func (m *gatewayMock) CheckStatus(ctx context.Context, orderNumber string) (payment.Notification, error) {
	args := m.Called(ctx, orderNumber)
	n, _ := args.Get(0).(payment.Notification)
	return n, args.Error(1)
}

func (m *gatewayMock) VerifyNotification(n payment.Notification) bool {
	return payment.VerifySignature(n, testServerKey)
}

const testServerKey = "test-server-key"

// =====================
// fixture
// =====================

var testCouriers = []config.Courier{
	{Code: "jne-reg", Name: "JNE REG", Cost: 15000, ETD: "2-3 days"},
	{Code: "jne-yes", Name: "JNE YES", Cost: 30000, ETD: "1 day"},
}

type fixture struct {
	store    *memStore
	cache    *memProductCache
	pub      *publisherMock
	tenant   model.Tenant
	customer model.User
	admin    model.User
	product  model.Product
	address  model.Address
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := newMemStore()

	tenant, err := memTenants{s}.Create(ctx, model.Tenant{Name: "Acme", Slug: "acme", IsActive: true})
	require.NoError(t, err)
	tid := tenant.ID

	customer := model.User{TenantID: &tid, Email: "buyer@example.com", Role: model.RoleUser, IsActive: true}
	require.NoError(t, memUsers{s}.Create(ctx, &customer))
	admin := model.User{TenantID: &tid, Email: "admin@example.com", Role: model.RoleAdmin, IsActive: true}
	require.NoError(t, memUsers{s}.Create(ctx, &admin))

	product, err := memProducts{s}.Create(ctx, model.Product{TenantID: tid, Name: "Coffee Beans", Price: 50000, Stock: 5, IsActive: true})
	require.NoError(t, err)

	address, err := memAddresses{s}.Create(ctx, model.Address{
		UserID:        customer.ID,
		RecipientName: "Budi",
		Phone:         "08123",
		Street:        "Jl. Merdeka 1",
		City:          "Jakarta",
		Province:      "DKI",
		PostalCode:    "10110",
		IsDefault:     true,
	})
	require.NoError(t, err)

	pub := new(publisherMock)
	pub.On("Publish", mock.Anything, mock.Anything).Return(nil)

	return &fixture{store: s, cache: newMemProductCache(), pub: pub, tenant: tenant, customer: customer, admin: admin, product: product, address: address}
}

func (f *fixture) customerActor() usecase.Actor {
	return usecase.Actor{UserID: f.customer.ID, Role: model.RoleUser, TenantID: f.tenant.ID}
}

func (f *fixture) adminActor() usecase.Actor {
	return usecase.Actor{UserID: f.admin.ID, Role: model.RoleAdmin, TenantID: f.tenant.ID}
}

func (f *fixture) orderUsecase() *usecase.OrderUsecase {
	s := f.store
	return usecase.NewOrderUsecase(s, memOrders{s}, memOrderItems{s}, memAddresses{s}, usecase.NewShippingUsecase(testCouriers), f.pub, f.cache, 10000, zap.NewNop())
}

// カートに商品を入れる
func (f *fixture) addToCart(t *testing.T, productID, qty int64) {
	t.Helper()
	s := f.store
	uc := usecase.NewCartUsecase(memCarts{s}, memCartItems{s}, memProducts{s})
	_, err := uc.AddToCart(context.Background(), f.customerActor(), usecase.AddCartInput{ProductID: productID, Quantity: qty})
	require.NoError(t, err)
}

// カートから注文を作る
func (f *fixture) placeOrder(t *testing.T, qty int64) usecase.OrderOutput {
	t.Helper()
	f.addToCart(t, f.product.ID, qty)
	out, created, err := f.orderUsecase().PlaceOrder(context.Background(), f.customerActor(), usecase.PlaceOrderInput{
		AddressID:      f.address.ID,
		CourierCode:    "jne-reg",
		IdempotencyKey: "key-" + f.product.Name,
	})
	require.NoError(t, err)
	require.True(t, created)
	return out
}

func (f *fixture) stockOf(id int64) int64 {
	return f.store.products[id].Stock
}

// HTTPErrorのステータスとメッセージを確認する
func assertHTTPError(t *testing.T, err error, status int, msg string) {
	t.Helper()
	he, ok := usecase.AsHTTPError(err)
	if assert.True(t, ok, "want HTTPError, got %v", err) {
		assert.Equal(t, status, he.Status)
		if msg != "" {
			assert.Contains(t, he.Message, msg)
		}
	}
}
