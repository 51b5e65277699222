package ports

import (
	"context"

	"github.com/subwave/billing-service/internal/domain/models"
)

// CreatePlanRequest carries the fields for a new subscription plan.
// Price is in minor currency units.
type CreatePlanRequest struct {
	Title        string
	Description  string
	Price        int64
	DurationDays int
}

// UpdatePlanRequest carries a partial plan update; nil fields are left
// unchanged
type UpdatePlanRequest struct {
	Title        *string
	Description  *string
	Price        *int64
	DurationDays *int
	IsArchive    *bool
}

// ListPlansQuery filters the plan listing. IncludeArchived is only
// honored for admin callers.
type ListPlansQuery struct {
	IncludeArchived bool
	Limit           int32
	Offset          int32
}

// PlanService defines the business logic for subscription plan operations
type PlanService interface {
	// Create adds a new plan. Duplicate titles are rejected.
	Create(ctx context.Context, req CreatePlanRequest) (*models.SubscriptionPlan, error)

	// Update applies a partial update. A title already used by another
	// plan is rejected.
	Update(ctx context.Context, id string, req UpdatePlanRequest) (*models.SubscriptionPlan, error)

	// List returns plans, newest first
	List(ctx context.Context, query ListPlansQuery) ([]*models.SubscriptionPlan, error)

	// Get retrieves a plan by ID
	Get(ctx context.Context, id string) (*models.SubscriptionPlan, error)

	// Archive soft-deletes a plan so it no longer appears to
	// non-admin callers
	Archive(ctx context.Context, id string) error
}
