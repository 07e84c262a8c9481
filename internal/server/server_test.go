package server_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"storefront/internal/config"
	"storefront/internal/domain/model"
	"storefront/internal/handler"
	"storefront/internal/repository"
	"storefront/internal/server"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type userRepoMock struct {
	mock.Mock
	repository.UserRepository
}

func (m *userRepoMock) FindByID(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

type tenantRepoMock struct {
	mock.Mock
	repository.TenantRepository
}

const secret = "routes-secret"

func token(t *testing.T, sub int64, role model.Role, tid int64) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub, "role": string(role), "tid": tid, "tv": 0, "iat": 1, "exp": 9999999999,
	}).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return s
}

// usecaseまで届かないリクエストだけを流すのでhandlerの中身はnilでよい
func newServer(users *userRepoMock) http.Handler {
	return server.New(server.Deps{
		Config:  config.Config{JWTSecret: secret, FEURL: "http://fe.test"},
		Logger:  zap.NewNop(),
		Users:   users,
		Tenants: new(tenantRepoMock),
		Handlers: server.Handlers{
			Auth:         handler.NewAuthHandler(nil),
			Product:      handler.NewProductHandler(nil),
			Shipping:     handler.NewShippingHandler(nil),
			Cart:         handler.NewCartHandler(nil),
			Address:      handler.NewAddressHandler(nil),
			Order:        handler.NewOrderHandler(nil),
			Payment:      handler.NewPaymentHandler(nil),
			AdminProduct: handler.NewAdminProductHandler(nil),
			AdminOrder:   handler.NewAdminOrderHandler(nil, nil),
			AdminUser:    handler.NewAdminUserHandler(nil),
			AuditLog:     handler.NewAuditLogHandler(nil),
			Tenant:       handler.NewTenantHandler(nil),
		},
	})
}

func do(h http.Handler, method, path, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(""))
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes_Public(t *testing.T) {
	h := newServer(new(userRepoMock))

	rec := do(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = do(h, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	//X-Tenantなしの公開カタログ
	rec = do(h, http.MethodGet, "/products", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	//webhookは認証なしで届く（本文が壊れているので400）
	rec = do(h, http.MethodPost, "/payments/midtrans/notification", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(h, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoutes_RoleGroups(t *testing.T) {
	users := new(userRepoMock)
	users.On("FindByID", mock.Anything, int64(1)).Return(&model.User{ID: 1, Role: model.RoleUser, IsActive: true}, nil)
	users.On("FindByID", mock.Anything, int64(2)).Return(&model.User{ID: 2, Role: model.RoleAdmin, IsActive: true}, nil)
	h := newServer(users)

	customer := token(t, 1, model.RoleUser, 3)
	admin := token(t, 2, model.RoleAdmin, 3)

	tests := []struct {
		name   string
		method string
		path   string
		bearer string
		status int
	}{
		{"cart without token", http.MethodGet, "/cart", "", http.StatusUnauthorized},
		{"admin area as customer", http.MethodGet, "/admin/orders", customer, http.StatusForbidden},
		{"superadmin area as admin", http.MethodGet, "/superadmin/tenants", admin, http.StatusForbidden},
		{"cart as admin", http.MethodGet, "/cart", admin, http.StatusForbidden},
		{"mock complete without token", http.MethodPost, "/payments/mock/ORD-1/complete", "", http.StatusUnauthorized},
		{"me without token", http.MethodGet, "/auth/me", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, tt.method, tt.path, tt.bearer)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}
