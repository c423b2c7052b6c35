package tenant

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type contextKey string

const scopeKey contextKey = "tenant_scope"

// Context identifies who is acting and which school's rows they may touch.
// A zero TenantID is the platform (super-admin) context and is not filtered.
type Context struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
}

// For returns a context bound to a single tenant.
func For(tenantID, userID uuid.UUID) Context {
	return Context{TenantID: tenantID, UserID: userID}
}

// Platform returns an unscoped context.
func Platform(userID uuid.UUID) Context {
	return Context{UserID: userID}
}

func (c Context) IsPlatform() bool {
	return c.TenantID == uuid.Nil
}

// Filter appends the tenant predicate on column to args. The returned fragment
// is empty for the platform context.
func (c Context) Filter(column string, args []interface{}) (string, []interface{}) {
	if c.IsPlatform() {
		return "", args
	}
	args = append(args, c.TenantID)
	return fmt.Sprintf(" AND %s = $%d", column, len(args)), args
}

// Allows reports whether a row owned by owner is visible in this context.
func (c Context) Allows(owner uuid.UUID) bool {
	return c.IsPlatform() || owner == c.TenantID
}

// Stamp sets owner to the context tenant when the caller did not supply one.
func (c Context) Stamp(owner *uuid.UUID) {
	if *owner == uuid.Nil && !c.IsPlatform() {
		*owner = c.TenantID
	}
}

// CacheKey is a stable key segment for per-tenant cache entries.
func (c Context) CacheKey() string {
	if c.IsPlatform() {
		return "platform"
	}
	return c.TenantID.String()
}

// WithContext stores the scope on a request context. Only the HTTP layer uses
// this; services take the scope as an explicit argument.
func WithContext(ctx context.Context, c Context) context.Context {
	return context.WithValue(ctx, scopeKey, c)
}

// FromContext extracts the scope stored by WithContext.
func FromContext(ctx context.Context) (Context, bool) {
	c, ok := ctx.Value(scopeKey).(Context)
	return c, ok
}
