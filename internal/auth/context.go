package auth

import (
	"context"
	"fmt"

	"github.com/subwave/billing-service/internal/domain/models"
)

// Context keys for authentication data
type contextKey string

const (
	UserIDKey contextKey = "user_id"
	RoleKey   contextKey = "role"
)

// Identity is the authenticated caller extracted from a validated token
type Identity struct {
	UserID string
	Role   models.Role
}

// IsAdmin reports whether the caller holds the admin role
func (i Identity) IsAdmin() bool {
	return i.Role == models.RoleAdmin
}

// WithIdentity adds the authenticated caller to the context
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, identity.UserID)
	ctx = context.WithValue(ctx, RoleKey, string(identity.Role))
	return ctx
}

// IdentityFromContext extracts the authenticated caller from the context
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	if !ok || userID == "" {
		return Identity{}, false
	}

	identity := Identity{UserID: userID}
	if role, ok := ctx.Value(RoleKey).(string); ok {
		identity.Role = models.Role(role)
	}
	return identity, true
}

// GetUserID safely extracts the authenticated user ID from the context
func GetUserID(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(UserIDKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}
