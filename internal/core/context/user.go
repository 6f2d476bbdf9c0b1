// Package context carries who runs an operation, at which branch, and its
// trace ids.
package context

import (
	"context"
)

// UserContext identifies who runs an operation and at which branch.
// Fiscal entries and returns are tagged with these values.
type UserContext struct {
	UserID   string
	BranchID string
}

type userContextKey struct{}

// WithUser adds UserContext to context.
func WithUser(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// GetUser returns the UserContext of ctx or nil.
func GetUser(ctx context.Context) *UserContext {
	u, _ := ctx.Value(userContextKey{}).(*UserContext)
	return u
}

func GetUserID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.UserID
	}
	return ""
}

func GetBranchID(ctx context.Context) string {
	if u := GetUser(ctx); u != nil {
		return u.BranchID
	}
	return ""
}
