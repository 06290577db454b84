package httpx

import (
	"context"

	"github.com/aussiebroadwan/teamup/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyUserID ctxKey = "user_id"
	CtxKeyDomain ctxKey = "domain"
	CtxKeyClaims ctxKey = "claims"
)

func contextWithSession(ctx context.Context, c jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject)
	ctx = context.WithValue(ctx, CtxKeyDomain, c.Domain)
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return ctx
}

// UserIDFromContext returns the authenticated caller, or "" for anonymous
// requests.
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(CtxKeyUserID).(string)
	return v
}

// DomainFromContext returns the caller's domain claim.
func DomainFromContext(ctx context.Context) string {
	v, _ := ctx.Value(CtxKeyDomain).(string)
	return v
}

// ClaimsFromContext returns the full verified claims.
func ClaimsFromContext(ctx context.Context) (jwtx.Claims, bool) {
	c, ok := ctx.Value(CtxKeyClaims).(jwtx.Claims)
	return c, ok
}
