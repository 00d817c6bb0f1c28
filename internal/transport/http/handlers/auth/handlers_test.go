package authhandler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"payledger/internal/domain/auth"
	"payledger/internal/transport/http/middleware"
)

func newHandler(t *testing.T) *Handler {
	t.Helper()
	hash, err := auth.HashPassword("Correct-Horse-1")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return NewHandler(auth.Authenticator{
		Email:        "admin@example.com",
		PasswordHash: hash,
		TenantID:     "default",
		Secret:       "test-secret",
		TTL:          time.Hour,
	})
}

func TestHandleLogin(t *testing.T) {
	h := newHandler(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "valid", body: `{"email":"Admin@Example.com","password":"Correct-Horse-1"}`, want: http.StatusOK},
		{name: "wrong password", body: `{"email":"admin@example.com","password":"nope"}`, want: http.StatusUnauthorized},
		{name: "unknown email", body: `{"email":"someone@example.com","password":"Correct-Horse-1"}`, want: http.StatusUnauthorized},
		{name: "missing fields", body: `{}`, want: http.StatusBadRequest},
		{name: "malformed", body: `{`, want: http.StatusBadRequest},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleLogin(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(tc.body)))
			if rec.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandleLoginIssuesUsableToken(t *testing.T) {
	h := newHandler(t)
	rec := httptest.NewRecorder()
	h.HandleLogin(rec, httptest.NewRequest(http.MethodPost, "/api/v1/auth/login",
		strings.NewReader(`{"email":"admin@example.com","password":"Correct-Horse-1"}`)))

	var env struct {
		Data auth.Session `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	claims, err := auth.ParseToken("test-secret", env.Data.Token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.TenantID != "default" || claims.Role != auth.RoleAdmin {
		t.Fatalf("unexpected claims: %+v", claims)
	}

	me := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+env.Data.Token)
	middleware.Auth("test-secret", nil)(http.HandlerFunc(h.HandleMe)).ServeHTTP(me, req)
	if me.Code != http.StatusOK || !strings.Contains(me.Body.String(), `"role":"admin"`) {
		t.Fatalf("unexpected me response %d: %s", me.Code, me.Body.String())
	}
}

func TestHandleMeRequiresUser(t *testing.T) {
	rec := httptest.NewRecorder()
	newHandler(t).HandleMe(rec, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}
