package ports

import (
	"context"

	"github.com/subwave/billing-service/internal/domain/models"
)

// PlanRepository defines the interface for subscription plan persistence
type PlanRepository interface {
	// Create inserts a new plan
	Create(ctx context.Context, tx DBTX, plan *models.SubscriptionPlan) error

	// GetByID retrieves a plan by its ID
	GetByID(ctx context.Context, db DBTX, id string) (*models.SubscriptionPlan, error)

	// GetMany lists plans matching the given equality filters.
	// Nil filter values are ignored.
	GetMany(ctx context.Context, db DBTX, filters map[string]interface{}, limit, offset int32) ([]*models.SubscriptionPlan, error)

	// Update updates plan fields
	Update(ctx context.Context, tx DBTX, plan *models.SubscriptionPlan) error

	// Delete removes a plan row
	Delete(ctx context.Context, tx DBTX, id string) error
}
