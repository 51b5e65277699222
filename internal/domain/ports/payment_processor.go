package ports

import "context"

// PaymentIntentParams carries everything needed to create a payment intent.
// Amount is in minor currency units. PaymentMethod, when set, is charged
// off-session and confirmed immediately.
type PaymentIntentParams struct {
	Amount         int64
	Currency       string
	CustomerID     string
	PaymentMethod  string
	SubscriptionID string
	UserID         string
}

// PaymentIntentResult is the gateway's answer to intent creation
type PaymentIntentResult struct {
	IntentID     string
	ClientSecret string
}

// PaymentProcessor defines the interface for the payment gateway
type PaymentProcessor interface {
	// CreateCustomer registers a new customer at the gateway and returns
	// its gateway ID
	CreateCustomer(ctx context.Context) (string, error)

	// CreateCardBindingSession starts a hosted card setup session for the
	// customer and returns the redirect URL
	CreateCardBindingSession(ctx context.Context, customerID string) (string, error)

	// DetachCard unbinds a stored payment method token from its customer
	DetachCard(ctx context.Context, token string) error

	// CreatePaymentIntent creates (and, given a payment method, confirms)
	// a payment intent
	CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (*PaymentIntentResult, error)

	// CancelPaymentIntent cancels a not-yet-settled payment intent
	CancelPaymentIntent(ctx context.Context, intentID string) error
}
