package ports

import (
	"context"
	"time"

	"github.com/subwave/billing-service/internal/domain/models"
)

// SubscriptionRepository defines the interface for subscription persistence
type SubscriptionRepository interface {
	// Create creates a new subscription
	Create(ctx context.Context, tx DBTX, subscription *models.Subscription) error

	// GetByID retrieves a subscription by its ID
	GetByID(ctx context.Context, db DBTX, id string) (*models.Subscription, error)

	// GetMany lists subscriptions matching the given equality filters.
	// Nil filter values are ignored.
	GetMany(ctx context.Context, db DBTX, filters map[string]interface{}, limit, offset int32) ([]*models.Subscription, error)

	// Update updates subscription fields
	Update(ctx context.Context, tx DBTX, subscription *models.Subscription) error

	// GetCurrentByUser returns the user's pending or active subscription,
	// if one exists
	GetCurrentByUser(ctx context.Context, db DBTX, userID string) (*models.Subscription, error)

	// ListActiveDue lists active subscriptions whose paid period has
	// elapsed at dueDate
	ListActiveDue(ctx context.Context, db DBTX, dueDate time.Time, limit int32) ([]*models.Subscription, error)
}
