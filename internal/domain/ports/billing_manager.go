package ports

import (
	"context"

	"github.com/subwave/billing-service/internal/domain/models"
)

// Gateway payment event types HandlePaymentWebhook understands
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded   = "charge.refunded"
)

// PublishFailureHook receives events whose broker publish failed after
// the database change committed, so a re-emitter can replay them
type PublishFailureHook func(queue string, event interface{})

// BillingManager is the top-level orchestrator composing the
// subscription and payment state machines with outbound role-change and
// notification events. Database changes always precede publishes; a
// failed publish never fails the originating command.
type BillingManager interface {
	// CreateSubscription writes a PENDING subscription and notifies the
	// user
	CreateSubscription(ctx context.Context, userID string, req CreateSubscriptionRequest) (*models.Subscription, error)

	// InitiateSubscriptionPayment charges the given card (or the user's
	// default card when cardID is empty) for the subscription's plan
	// price
	InitiateSubscriptionPayment(ctx context.Context, userID, cardID, subscriptionID string) (*models.Transaction, error)

	// ActivateSubscription moves a subscription to ACTIVE, grants the
	// subscriber role and notifies the user
	ActivateSubscription(ctx context.Context, subscriptionID string) (*models.Subscription, error)

	// CancelSubscription cancels the subscription, downgrades the
	// user's role and notifies the user
	CancelSubscription(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error)

	// RenewSubscription extends the subscription by its plan duration
	// and charges the user's default card for the next period
	RenewSubscription(ctx context.Context, userID, subscriptionID, planID string) (*models.Transaction, error)

	// ToggleAutoRenewal flips the subscription's auto-renewal flag
	ToggleAutoRenewal(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error)

	// ProcessExpiry settles one due subscription: non-renewing ones are
	// expired with a role downgrade and notification; auto-renewing
	// ones are expired silently, replaced with a fresh PENDING
	// subscription on the same plan and charged against the default
	// card
	ProcessExpiry(ctx context.Context, subscriptionID string) error

	// HandlePaymentWebhook dispatches a gateway payment event to the
	// matching payment handler and follow-up lifecycle action
	HandlePaymentWebhook(ctx context.Context, eventType string, event PaymentEvent) error

	// SetPublishFailureHook installs the re-emit hook for failed
	// publishes
	SetPublishFailureHook(hook PublishFailureHook)
}
