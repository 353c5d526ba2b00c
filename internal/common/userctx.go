package common

import (
	"context"
)

// UserContext holds the authenticated caller of a request, populated by the
// bearer token middleware. When absent (nil) the server runs single-tenant
// and every record is owned by DefaultUserID.
type UserContext struct {
	UserID string
	Email  string
	Role   string
}

const (
	// DefaultUserID owns everything created without a caller identity.
	DefaultUserID = "default"
	// SystemUserID owns work started by the server itself, such as
	// scheduled sweeps.
	SystemUserID = "system"
	// RoleAdmin may read and change every owner's records.
	RoleAdmin = "admin"
)

type contextKey int

const (
	userContextKey contextKey = iota
	lockHolderKey
)

// WithUserContext stores a UserContext in the request context.
func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, uc)
}

// UserContextFromContext retrieves the UserContext from context, or nil if absent.
func UserContextFromContext(ctx context.Context) *UserContext {
	uc, _ := ctx.Value(userContextKey).(*UserContext)
	return uc
}

// SystemContext returns ctx acting as the server itself.
func SystemContext(ctx context.Context) context.Context {
	return WithUserContext(ctx, &UserContext{UserID: SystemUserID})
}

// ResolveUserID returns the caller's id, or DefaultUserID when the request
// carries no identity.
func ResolveUserID(ctx context.Context) string {
	if uc := UserContextFromContext(ctx); uc != nil && uc.UserID != "" {
		return uc.UserID
	}
	return DefaultUserID
}

// IsAdmin reports whether the caller carries the admin role.
func IsAdmin(ctx context.Context) bool {
	uc := UserContextFromContext(ctx)
	return uc != nil && uc.Role == RoleAdmin
}

// Owns reports whether the caller may act on a record owned by ownerID.
func Owns(ctx context.Context, ownerID string) bool {
	return IsAdmin(ctx) || ResolveUserID(ctx) == ownerID
}
