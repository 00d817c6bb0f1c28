package authhandler

import (
	"errors"
	"log/slog"
	"net/http"

	"payledger/internal/domain/auth"
	"payledger/internal/platform/requestctx"
	"payledger/internal/transport/http/api"
	"payledger/internal/transport/http/middleware"
	"payledger/internal/transport/http/shared"
)

type Handler struct {
	Auth auth.Authenticator
}

func NewHandler(authenticator auth.Authenticator) *Handler {
	return &Handler{Auth: authenticator}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var payload loginRequest
	v := shared.NewValidator()
	if shared.DecodeJSON(r, &payload, v) {
		api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestctx.GetRequestID(r.Context()))
		return
	}
	v.Required("email", payload.Email, "is required")
	v.Required("password", payload.Password, "is required")
	if v.Reject(w, requestctx.GetRequestID(r.Context())) {
		return
	}

	session, err := h.Auth.Login(payload.Email, payload.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		slog.Info("login rejected", "ip", shared.ClientIP(r))
		api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid credentials", requestctx.GetRequestID(r.Context()))
		return
	}
	if err != nil {
		slog.Error("issue token failed", "err", err)
		api.Fail(w, http.StatusInternalServerError, "token_error", "failed to issue token", requestctx.GetRequestID(r.Context()))
		return
	}
	api.Success(w, session, requestctx.GetRequestID(r.Context()))
}

func (h *Handler) HandleMe(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", requestctx.GetRequestID(r.Context()))
		return
	}
	api.Success(w, map[string]string{
		"id":       user.UserID,
		"tenantId": user.TenantID,
		"role":     user.Role,
	}, requestctx.GetRequestID(r.Context()))
}
