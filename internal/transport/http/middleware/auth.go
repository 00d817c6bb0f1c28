package middleware

import (
	"net/http"
	"strings"

	"payledger/internal/domain/auth"
)

// Auth attaches the bearer token principal to the request. When fallback is
// non-nil, requests without a valid token run as that principal.
func Auth(secret string, fallback *auth.UserContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims := bearerClaims(secret, r); claims != nil {
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.User())))
				return
			}
			if fallback != nil {
				next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), *fallback)))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerClaims(secret string, r *http.Request) *auth.Claims {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || secret == "" {
		return nil
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return nil
	}
	claims, err := auth.ParseToken(secret, parts[1])
	if err != nil || claims.TenantID == "" {
		return nil
	}
	return claims
}
