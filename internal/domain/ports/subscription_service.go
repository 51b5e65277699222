package ports

import (
	"context"

	"github.com/subwave/billing-service/internal/domain/models"
)

// CreateSubscriptionRequest carries the fields for a new subscription
type CreateSubscriptionRequest struct {
	PlanID      string
	AutoRenewal bool
}

// ListSubscriptionsQuery scopes a subscription listing to the caller.
// Admin callers see every user's subscriptions.
type ListSubscriptionsQuery struct {
	CallerID string
	Admin    bool
	Limit    int32
	Offset   int32
}

// SubscriptionService defines the business logic for subscription
// lifecycle operations
type SubscriptionService interface {
	// Create writes a new PENDING subscription for the user. At most
	// one pending-or-active subscription may exist per user.
	Create(ctx context.Context, userID string, req CreateSubscriptionRequest) (*models.Subscription, error)

	// Get retrieves a subscription. Non-admin callers may only read
	// their own.
	Get(ctx context.Context, callerID string, admin bool, subscriptionID string) (*models.Subscription, error)

	// List returns subscriptions visible to the caller, newest first
	List(ctx context.Context, query ListSubscriptionsQuery) ([]*models.Subscription, error)

	// Cancel moves a pending or active subscription to CANCELLED,
	// clears auto-renewal and closes the paid period
	Cancel(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error)

	// Renew extends the paid period by the plan's duration without
	// changing status
	Renew(ctx context.Context, userID, subscriptionID, planID string) (*models.Subscription, error)

	// ToggleAutoRenewal flips the auto-renewal flag
	ToggleAutoRenewal(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error)

	// ChangeStatus applies a lifecycle transition, enforcing the
	// legality table. Requesting the current status returns the row
	// unchanged so webhook redeliveries converge.
	ChangeStatus(ctx context.Context, subscriptionID string, next models.SubscriptionStatus) (*models.Subscription, error)

	// PaymentAmount resolves the charge amount for a subscription from
	// its plan
	PaymentAmount(ctx context.Context, subscriptionID string) (int64, error)
}
