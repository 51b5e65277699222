package ports

import (
	"context"

	"github.com/subwave/billing-service/internal/domain/models"
)

// ChargeSubscriptionRequest carries everything needed to charge a stored
// card for a subscription. Amount is in minor currency units.
type ChargeSubscriptionRequest struct {
	UserID         string
	CardID         string
	SubscriptionID string
	Amount         int64
	Currency       string
}

// PaymentEvent is a gateway payment webhook reduced to the fields the
// handlers need. SubscriptionID comes from the intent's metadata and may
// be empty for events the gateway sends without it.
type PaymentEvent struct {
	IntentID       string
	SubscriptionID string
}

// PaymentManager orchestrates payment intents against the gateway and
// reconciles their webhook outcomes with transaction records
type PaymentManager interface {
	// ChargeSubscription verifies the card, records a PENDING
	// transaction, creates a confirmed off-session payment intent and
	// attaches its ID to the transaction
	ChargeSubscription(ctx context.Context, req ChargeSubscriptionRequest) (*models.Transaction, error)

	// HandlePaymentSucceeded marks the transaction behind the intent
	// SUCCESS. Redeliveries against a settled transaction no-op.
	HandlePaymentSucceeded(ctx context.Context, event PaymentEvent) (*models.Transaction, error)

	// HandlePaymentFailed marks the transaction FAILED
	HandlePaymentFailed(ctx context.Context, event PaymentEvent) (*models.Transaction, error)

	// HandlePaymentRefunded marks the transaction REFUNDED
	HandlePaymentRefunded(ctx context.Context, event PaymentEvent) (*models.Transaction, error)

	// VoidPendingPayment cancels the gateway intent behind the
	// subscription's newest PENDING transaction, if any, and marks that
	// transaction FAILED. No pending transaction is a normal outcome.
	VoidPendingPayment(ctx context.Context, subscriptionID string) error
}
