package routes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/inventory"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubOrders struct {
	listCalls int
}

func (s *stubOrders) Create(context.Context, orders.CreateInput) (*models.Order, error) {
	return &models.Order{ID: uuid.New()}, nil
}

func (s *stubOrders) Get(_ context.Context, _ orders.Actor, id uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: id}, nil
}

func (s *stubOrders) List(context.Context, uuid.UUID, orders.ListQuery) (*orders.ListResult, error) {
	s.listCalls++
	return &orders.ListResult{}, nil
}

func (s *stubOrders) ListAll(context.Context, orders.ListQuery) (*orders.ListResult, error) {
	return &orders.ListResult{}, nil
}

func (s *stubOrders) Ship(_ context.Context, input orders.ShipInput) (*models.Order, error) {
	return &models.Order{ID: input.OrderID}, nil
}

func (s *stubOrders) Confirm(_ context.Context, _ orders.Actor, id uuid.UUID) (*models.Order, error) {
	return &models.Order{ID: id}, nil
}

func (s *stubOrders) Cancel(_ context.Context, input orders.CancelInput) (*models.Order, error) {
	return &models.Order{ID: input.OrderID}, nil
}

func (s *stubOrders) StockCheck(context.Context, uuid.UUID) (inventory.StockCheckResult, error) {
	return inventory.StockCheckResult{HasAllStock: true}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "identity"},
		HTTP: config.HTTPConfig{
			CORSOrigins:       []string{"http://localhost:3000"},
			RateLimitWindow:   time.Minute,
			CheckoutRateLimit: 10,
			WebhookRateLimit:  600,
		},
	}
}

func bearer(t *testing.T, cfg *config.Config, role enums.Role) string {
	t.Helper()
	token, err := auth.MintAccessToken(cfg.JWT, time.Now(), time.Hour, uuid.New(), role)
	require.NoError(t, err)
	return "Bearer " + token
}

func newTestRouter(svc *stubOrders) (http.Handler, *config.Config) {
	cfg := testConfig()
	return NewRouter(Params{
		Config:   cfg,
		DB:       stubPinger{},
		Gatherer: prometheus.NewRegistry(),
		Orders:   svc,
	}), cfg
}

func TestRouterRegistersEndpoints(t *testing.T) {
	handler, _ := newTestRouter(&stubOrders{})
	mux, ok := handler.(chi.Routes)
	require.True(t, ok)

	var got []string
	require.NoError(t, chi.Walk(mux, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		got = append(got, method+" "+strings.TrimSuffix(route, "/"))
		return nil
	}))
	sort.Strings(got)

	for _, want := range []string{
		"GET /health/live",
		"GET /health/ready",
		"POST /api/v1/webhooks/payment-gateway",
		"POST /api/v1/orders",
		"GET /api/v1/orders",
		"GET /api/v1/orders/{orderId}",
		"POST /api/v1/orders/{orderId}/cancel",
		"POST /api/v1/orders/{orderId}/confirm",
		"POST /api/v1/orders/{orderId}/payment-proofs",
		"GET /api/v1/admin/orders",
		"POST /api/v1/admin/orders/{orderId}/ship",
		"POST /api/v1/admin/orders/{orderId}/payment-proofs/{proofId}/verify",
		"GET /api/v1/admin/orders/{orderId}/stock-check",
		"POST /api/v1/admin/inventories",
		"GET /api/v1/admin/inventories/{inventoryId}",
		"POST /api/v1/admin/inventories/{inventoryId}/adjust",
	} {
		require.Contains(t, got, want)
	}
}

func TestOrdersRequireJWT(t *testing.T) {
	handler, _ := newTestRouter(&stubOrders{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOrdersSucceedWithJWT(t *testing.T) {
	svc := &stubOrders{}
	handler, cfg := newTestRouter(svc)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("Authorization", bearer(t, cfg, enums.RoleCustomer))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, svc.listCalls)
}

func TestAdminRoutesRequireStaff(t *testing.T) {
	handler, cfg := newTestRouter(&stubOrders{})
	cases := map[enums.Role]int{
		enums.RoleCustomer: http.StatusForbidden,
		enums.RoleAdmin:    http.StatusOK,
		enums.RoleSuper:    http.StatusOK,
	}
	for role, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/orders", nil)
		req.Header.Set("Authorization", bearer(t, cfg, role))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code, "role %s", role)
	}
}

func TestWebhookIsPublicAndAlways200(t *testing.T) {
	handler, _ := newTestRouter(&stubOrders{})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment-gateway", strings.NewReader(`{}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var ack map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
	require.Equal(t, "error", ack["status"])
}

type stubRedis struct {
	allow   bool
	rateErr error
}

func (stubRedis) Ping(context.Context) error {
	return nil
}

func (stubRedis) Get(context.Context, string) (string, error) {
	return "", nil
}

func (stubRedis) Set(context.Context, string, any, time.Duration) error {
	return nil
}

func (stubRedis) SetNX(context.Context, string, any, time.Duration) (bool, error) {
	return true, nil
}

func (stubRedis) Del(context.Context, ...string) error {
	return nil
}

func (stubRedis) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func (s stubRedis) FixedWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error) {
	if s.rateErr != nil {
		return false, 0, s.rateErr
	}
	if s.allow {
		return true, 1, nil
	}
	return false, 601, nil
}

type stubWebhooks struct {
	calls int
}

func (s *stubWebhooks) Handle(context.Context, []byte) (*payments.WebhookResult, error) {
	s.calls++
	return &payments.WebhookResult{Outcome: payments.OutcomeApplied}, nil
}

func TestWebhookAnswers200WhenRateLimiterRejectsOrFails(t *testing.T) {
	cases := map[string]struct {
		redis      stubRedis
		wantStatus string
		wantCalls  int
	}{
		"limited":       {redis: stubRedis{}, wantStatus: "error", wantCalls: 0},
		"store failing": {redis: stubRedis{rateErr: errors.New("connection refused")}, wantStatus: "ok", wantCalls: 1},
		"allowed":       {redis: stubRedis{allow: true}, wantStatus: "ok", wantCalls: 1},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			webhooks := &stubWebhooks{}
			handler := NewRouter(Params{
				Config:   testConfig(),
				DB:       stubPinger{},
				Redis:    tc.redis,
				Orders:   &stubOrders{},
				Webhooks: webhooks,
			})
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment-gateway", strings.NewReader(`{}`)))

			require.Equal(t, http.StatusOK, rec.Code)
			var ack map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ack))
			require.Equal(t, tc.wantStatus, ack["status"])
			require.Equal(t, tc.wantCalls, webhooks.calls)
			if tc.wantStatus == "error" {
				require.Equal(t, "rate limit exceeded", ack["message"])
			}
		})
	}
}

func TestCheckoutRateLimitStillAnswers429(t *testing.T) {
	cfg := testConfig()
	handler := NewRouter(Params{Config: cfg, DB: stubPinger{}, Redis: stubRedis{}, Orders: &stubOrders{}})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	req.Header.Set("Authorization", bearer(t, cfg, enums.RoleCustomer))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHealthAndMetrics(t *testing.T) {
	handler, _ := newTestRouter(&stubOrders{})
	for _, path := range []string{"/health/live", "/health/ready", "/metrics"} {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}
