// Package tenancy carries the widget tenant through request contexts.
package tenancy

import "context"

type ctxKey string

const tenantKey ctxKey = "omnitrix.tenant_id"

// WithTenantID stores the tenant id in context.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, tenantKey, tenantID)
}

// TenantIDFromContext extracts the tenant id if present.
func TenantIDFromContext(ctx context.Context) (string, bool) {
	tenantID, ok := ctx.Value(tenantKey).(string)
	return tenantID, ok && tenantID != ""
}
