package authz

import "context"

type tenantSessionKey struct{}

// ContextWithTenantSession stores the resolved tenant session in context for
// downstream handlers.
func ContextWithTenantSession(ctx context.Context, sess *TenantSession) context.Context {
	return context.WithValue(ctx, tenantSessionKey{}, sess)
}

// TenantSessionFromContext extracts the tenant session from context.
func TenantSessionFromContext(ctx context.Context) *TenantSession {
	sess, _ := ctx.Value(tenantSessionKey{}).(*TenantSession)
	return sess
}
