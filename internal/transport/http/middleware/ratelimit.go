package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"

	"payledger/internal/transport/http/api"
)

// RateLimit throttles requests sharing a key to limit per sliding window.
// A non-positive limit disables throttling.
func RateLimit(limit int, window time.Duration, keyFn httprate.KeyFunc) func(http.Handler) http.Handler {
	if limit <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(limit, window,
		httprate.WithKeyFuncs(keyFn),
		httprate.WithLimitHandler(rateLimited),
	)
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	slog.Warn("rate limit exceeded", "path", r.URL.Path, "method", r.Method, "requestId", GetRequestID(r.Context()))
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
}

// SensitiveMutationRateLimit applies tighter limits to login attempts and to
// ledger mutations. Reads pass through untouched.
func SensitiveMutationRateLimit(baseLimit int, window time.Duration) func(http.Handler) http.Handler {
	authLimit := max(baseLimit/4, 1)
	mutationLimit := max(baseLimit/2, 1)
	if baseLimit <= 0 {
		authLimit, mutationLimit = 0, 0
	}
	authByIP := RateLimit(authLimit, window, KeyByClientIP)
	authByEmail := RateLimit(authLimit, window, KeyByLoginEmail)
	byActor := RateLimit(mutationLimit, window, KeyByActor)

	return func(next http.Handler) http.Handler {
		auth := authByIP(authByEmail(next))
		actor := byActor(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch sensitiveRateScope(r) {
			case sensitiveScopeAuth:
				auth.ServeHTTP(w, r)
			case sensitiveScopeActor:
				actor.ServeHTTP(w, r)
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// KeyByActor keys authenticated requests by tenant and user, others by IP.
func KeyByActor(r *http.Request) (string, error) {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.TenantID + ":" + user.UserID, nil
	}
	return KeyByClientIP(r)
}

// KeyByLoginEmail keys login attempts by the submitted email, falling back to IP.
func KeyByLoginEmail(r *http.Request) (string, error) {
	if email := loginEmail(r); email != "" {
		return "email:" + strings.ToLower(email), nil
	}
	return KeyByClientIP(r)
}

func KeyByClientIP(r *http.Request) (string, error) {
	if fwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return "ip:" + first, nil
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err != nil || host == "" {
		host = strings.TrimSpace(r.RemoteAddr)
	}
	return "ip:" + host, nil
}

// loginEmail peeks at the JSON body and restores it for the handler.
func loginEmail(r *http.Request) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return ""
	}
	raw, err := io.ReadAll(io.LimitReader(r.Body, 64*1024))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(bytes.NewReader(raw))
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return ""
	}
	return strings.TrimSpace(payload.Email)
}

type sensitiveScope int

const (
	sensitiveScopeNone sensitiveScope = iota
	sensitiveScopeAuth
	sensitiveScopeActor
)

func sensitiveRateScope(r *http.Request) sensitiveScope {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return sensitiveScopeNone
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v1")
	switch path {
	case "/auth/login":
		return sensitiveScopeAuth
	case "/payroll/uploads", "/payroll/ledger", "/payroll/settings/rates":
		return sensitiveScopeActor
	}
	if strings.HasPrefix(path, "/payroll/periods/") &&
		(strings.HasSuffix(path, "/pay") || strings.HasSuffix(path, "/pay-all") || strings.HasSuffix(path, "/payslips")) {
		return sensitiveScopeActor
	}
	return sensitiveScopeNone
}
