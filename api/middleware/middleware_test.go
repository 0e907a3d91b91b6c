package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/auth"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "identity"}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	return payload.Error.Code
}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT, nil)(http.HandlerFunc(okHandler))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT, nil)(http.HandlerFunc(okHandler))

	foreign, err := auth.MintAccessToken(config.JWTConfig{Secret: "other", Issuer: "identity"}, time.Now(), time.Hour, uuid.New(), enums.RoleCustomer)
	require.NoError(t, err)
	expired, err := auth.MintAccessToken(testJWT, time.Now().Add(-2*time.Hour), time.Hour, uuid.New(), enums.RoleCustomer)
	require.NoError(t, err)

	for _, token := range []string{"invalid", foreign, expired} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 got %d", resp.Code)
		}
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	userID := uuid.New()
	token, err := auth.MintAccessToken(testJWT, time.Now(), time.Hour, userID, enums.RoleAdmin)
	require.NoError(t, err)

	var gotUser string
	var gotRole enums.Role
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotRole = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, userID.String(), gotUser)
	require.Equal(t, enums.RoleAdmin, gotRole)
}

func TestRequireStaff(t *testing.T) {
	handler := RequireStaff(nil)(http.HandlerFunc(okHandler))
	cases := map[enums.Role]int{
		enums.RoleCustomer: http.StatusForbidden,
		enums.RoleAdmin:    http.StatusOK,
		enums.RoleSuper:    http.StatusOK,
		"":                 http.StatusForbidden,
	}
	for role, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithActor(req.Context(), uuid.NewString(), role))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		require.Equal(t, want, resp.Code, "role %q", role)
	}
}

type fakeRateStore struct {
	mu     sync.Mutex
	counts map[string]int64
	err    error
}

func newFakeRateStore() *fakeRateStore {
	return &fakeRateStore{counts: map[string]int64{}}
}

func (f *fakeRateStore) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if f.err != nil {
		return false, 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[scope]++
	return f.counts[scope] <= limit, f.counts[scope], nil
}

func TestRateLimitPerUser(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewRateLimitPolicy("checkout", time.Minute, 2), store, nil)(http.HandlerFunc(okHandler))

	send := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil)
		req = req.WithContext(WithActor(req.Context(), user, enums.RoleCustomer))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, send("a").Code)
	require.Equal(t, http.StatusOK, send("a").Code)
	blocked := send("a")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	require.Equal(t, string(pkgerrors.CodeRateLimit), errorCode(t, blocked))
	require.Equal(t, "60", blocked.Header().Get("Retry-After"))
	require.Equal(t, http.StatusOK, send("b").Code)
}

func TestRateLimitFallsBackToClientIP(t *testing.T) {
	store := newFakeRateStore()
	handler := RateLimit(NewRateLimitPolicy("webhook", time.Minute, 1), store, nil)(http.HandlerFunc(okHandler))

	for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment-gateway", nil)
		req.RemoteAddr = "5.6.7.8:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, want, rec.Code, "request %d", i)
	}
	require.Contains(t, store.counts, "webhook:ip:5.6.7.8")
}

func TestRateLimitDependencyError(t *testing.T) {
	store := &fakeRateStore{err: errors.New("redis down")}
	handler := RateLimit(NewRateLimitPolicy("checkout", time.Minute, 1), store, nil)(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRateLimitFailOpenAndCustomReject(t *testing.T) {
	var rejected error
	opts := []RateLimitOption{
		FailOpen(),
		WithReject(func(w http.ResponseWriter, _ *http.Request, err error) {
			rejected = err
			w.WriteHeader(http.StatusOK)
		}),
	}

	down := &fakeRateStore{err: errors.New("redis down")}
	handler := RateLimit(NewRateLimitPolicy("webhook", time.Minute, 1), down, nil, opts...)(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Nil(t, rejected)

	handler = RateLimit(NewRateLimitPolicy("webhook", time.Minute, 1), newFakeRateStore(), nil, opts...)(http.HandlerFunc(okHandler))
	for range 2 {
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	require.True(t, pkgerrors.IsCode(rejected, pkgerrors.CodeRateLimit))
	require.Empty(t, rec.Header().Get("Retry-After"))
}

func TestRateLimitDisabledPolicyIsPassthrough(t *testing.T) {
	handler := RateLimit(NewRateLimitPolicy("off", 0, 0), nil, nil)(http.HandlerFunc(okHandler))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDEchoesOrGenerates(t *testing.T) {
	handler := RequestID(nil)(http.HandlerFunc(okHandler))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, "req-1", rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(rec.Header().Get("X-Request-Id"))
	require.NoError(t, err)
}

func TestRecovererReturnsInternalError(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, string(pkgerrors.CodeInternal), errorCode(t, rec))
}
