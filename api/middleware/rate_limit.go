package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/storefront-backend/api/responses"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront-backend/pkg/redis"
)

// RateLimitPolicy defines the throttling parameters for a traffic surface.
type RateLimitPolicy struct {
	name   string
	window time.Duration
	limit  int
}

// NewRateLimitPolicy builds a policy allowing limit requests per window.
func NewRateLimitPolicy(name string, window time.Duration, limit int) RateLimitPolicy {
	return RateLimitPolicy{
		name:   strings.ToLower(strings.TrimSpace(name)),
		window: window,
		limit:  limit,
	}
}

func (p RateLimitPolicy) enabled() bool {
	return p.window > 0 && p.limit > 0
}

// scope keys authenticated callers by user id and anonymous callers by IP.
func (p RateLimitPolicy) scope(r *http.Request) string {
	name := p.name
	if name == "" {
		name = "default"
	}
	if userID := UserIDFromContext(r.Context()); userID != "" {
		return name + ":user:" + userID
	}
	return name + ":ip:" + clientIP(r)
}

// RejectFunc writes the response for a request the limiter turned away.
type RejectFunc func(w http.ResponseWriter, r *http.Request, err error)

type rateLimitSettings struct {
	failOpen bool
	reject   RejectFunc
}

// RateLimitOption adjusts how RateLimit answers.
type RateLimitOption func(*rateLimitSettings)

// FailOpen lets requests through when the counter store is unavailable.
func FailOpen() RateLimitOption {
	return func(s *rateLimitSettings) { s.failOpen = true }
}

// WithReject replaces the default 429 response for limited callers.
func WithReject(fn RejectFunc) RateLimitOption {
	return func(s *rateLimitSettings) {
		if fn != nil {
			s.reject = fn
		}
	}
}

// RateLimit enforces a fixed-window counter per caller.
func RateLimit(policy RateLimitPolicy, store pkgredis.RateLimiter, logg *logger.Logger, opts ...RateLimitOption) func(http.Handler) http.Handler {
	settings := rateLimitSettings{
		reject: func(w http.ResponseWriter, r *http.Request, err error) {
			w.Header().Set("Retry-After", retryAfter(policy.window))
			responses.WriteError(r.Context(), nil, w, err)
		},
	}
	for _, opt := range opts {
		opt(&settings)
	}

	return func(next http.Handler) http.Handler {
		if !policy.enabled() || store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			scope := policy.scope(r)
			allowed, count, err := store.FixedWindowAllow(ctx, scope, int64(policy.limit), policy.window)
			if err != nil {
				if settings.failOpen {
					if logg != nil {
						logg.Warn(logg.WithFields(ctx, map[string]any{"scope": scope, "error": err.Error()}), "rate_limit.store_unavailable")
					}
					next.ServeHTTP(w, r)
					return
				}
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "rate limiting"))
				return
			}
			if !allowed {
				if logg != nil {
					logCtx := logg.WithFields(ctx, map[string]any{
						"scope":          scope,
						"attempts":       count,
						"limit":          policy.limit,
						"window_seconds": int(policy.window.Seconds()),
					})
					logg.Warn(logCtx, "rate_limit.blocked")
				}
				settings.reject(w, r, pkgerrors.New(pkgerrors.CodeRateLimit, "rate limit exceeded"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfter(window time.Duration) string {
	seconds := int(window.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return strconv.Itoa(seconds)
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if header := r.Header.Get("X-Forwarded-For"); header != "" {
		for _, part := range strings.Split(header, ",") {
			if ip := strings.TrimSpace(part); ip != "" {
				return ip
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
