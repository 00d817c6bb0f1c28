package middleware

import (
	"context"

	"payledger/internal/domain/auth"
	"payledger/internal/platform/requestctx"
)

type ctxKey string

const ctxKeyUser ctxKey = "user"

func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}

func GetRequestID(ctx context.Context) string {
	return requestctx.GetRequestID(ctx)
}
