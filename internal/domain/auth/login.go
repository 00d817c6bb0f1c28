package auth

import (
	"crypto/subtle"
	"errors"
	"strings"
	"time"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Authenticator issues tokens for the single configured administrator.
type Authenticator struct {
	Email        string
	PasswordHash string
	TenantID     string
	Secret       string
	TTL          time.Duration
}

type Session struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	TenantID  string    `json:"tenantId"`
	Role      string    `json:"role"`
}

func (a Authenticator) Login(email, password string) (Session, error) {
	if a.PasswordHash == "" {
		return Session{}, ErrInvalidCredentials
	}
	emailOK := subtle.ConstantTimeCompare(
		[]byte(strings.ToLower(strings.TrimSpace(email))),
		[]byte(strings.ToLower(a.Email)),
	) == 1
	if err := CheckPassword(a.PasswordHash, password); err != nil || !emailOK {
		return Session{}, ErrInvalidCredentials
	}
	claims := Claims{UserID: strings.ToLower(a.Email), TenantID: a.TenantID, Role: RoleAdmin}
	token, expires, err := GenerateToken(a.Secret, claims, a.TTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: expires, TenantID: a.TenantID, Role: RoleAdmin}, nil
}
