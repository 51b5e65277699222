package ports

import (
	"context"

	"github.com/subwave/billing-service/internal/domain/models"
)

// Gateway card binding event types the webhook router dispatches to the
// CardsManager
const (
	EventCardAttached   = "payment_method.attached"
	EventSetupSucceeded = "setup_intent.succeeded"
	EventSetupFailed    = "setup_intent.setup_failed"
)

// CardAttachedEvent is the payment_method.attached webhook payload
// reduced to the fields the binding flow needs
type CardAttachedEvent struct {
	GatewayCustomerID string
	LastDigits        string
}

// SetupSucceededEvent is the setup_intent.succeeded webhook payload
type SetupSucceededEvent struct {
	GatewayCustomerID string
	PaymentMethod     string
}

// SetupFailedEvent is the setup_intent.setup_failed webhook payload
type SetupFailedEvent struct {
	GatewayCustomerID string
}

// CardsManager drives the card binding state machine. Bindings start in
// INIT and are resolved to SUCCESS or FAIL by gateway webhook events.
type CardsManager interface {
	// CreateBindingSession allocates a gateway customer on first use,
	// writes an INIT card row and returns the hosted binding URL
	CreateBindingSession(ctx context.Context, userID string) (string, error)

	// HandleCardAttached records the card's last digits on the newest
	// INIT row for the gateway customer
	HandleCardAttached(ctx context.Context, event CardAttachedEvent) error

	// HandleSetupSucceeded stores the payment method token, marks the
	// newest INIT row SUCCESS and makes it the user's default card
	HandleSetupSucceeded(ctx context.Context, event SetupSucceededEvent) error

	// HandleSetupFailed marks the newest INIT row FAIL
	HandleSetupFailed(ctx context.Context, event SetupFailedEvent) error

	// SetDefault makes the given card the user's default
	SetDefault(ctx context.Context, userID, cardID string) error

	// ListUserCards returns the user's successfully bound cards
	ListUserCards(ctx context.Context, userID string) ([]*models.UserCard, error)

	// DeleteCard detaches the card at the gateway, removes the row and
	// promotes the newest remaining bound card to default if needed
	DeleteCard(ctx context.Context, userID, cardID string) error
}
