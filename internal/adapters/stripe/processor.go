package stripe

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/checkout/session"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"github.com/stripe/stripe-go/v76/paymentmethod"
	"go.uber.org/zap"

	"github.com/subwave/billing-service/internal/domain/ports"
	pkgerrors "github.com/subwave/billing-service/pkg/errors"
)

// ProcessorConfig contains configuration for the Stripe payment processor
type ProcessorConfig struct {
	// Secret API key (sk_test_... or sk_live_...)
	APIKey string

	// Where Checkout redirects the user after card binding
	SuccessURL string
	CancelURL  string
}

// DefaultProcessorConfig returns default configuration with local redirect URLs
func DefaultProcessorConfig(apiKey string) *ProcessorConfig {
	return &ProcessorConfig{
		APIKey:     apiKey,
		SuccessURL: "http://localhost:8080/api/v1/cards/binding/success",
		CancelURL:  "http://localhost:8080/api/v1/cards/binding/cancel",
	}
}

// processor implements the PaymentProcessor port against the Stripe API
type processor struct {
	config *ProcessorConfig
	logger *zap.Logger
}

// NewProcessor creates a new Stripe payment processor.
// The stripe-go package-level client is configured once here.
func NewProcessor(config *ProcessorConfig, logger *zap.Logger) ports.PaymentProcessor {
	stripe.Key = config.APIKey

	return &processor{
		config: config,
		logger: logger,
	}
}

// CreateCustomer registers a new customer at the gateway and returns its ID
func (p *processor) CreateCustomer(ctx context.Context) (string, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx

	cust, err := customer.New(params)
	if err != nil {
		p.logger.Warn("Stripe customer creation failed", zap.Error(err))
		return "", p.wrapError("create customer", err)
	}

	return cust.ID, nil
}

// CreateCardBindingSession starts a hosted setup-mode Checkout session for
// the customer and returns the redirect URL
func (p *processor) CreateCardBindingSession(ctx context.Context, customerID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSetup)),
		Customer:           stripe.String(customerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		SuccessURL:         stripe.String(p.config.SuccessURL),
		CancelURL:          stripe.String(p.config.CancelURL),
	}
	params.Context = ctx

	sess, err := session.New(params)
	if err != nil {
		p.logger.Warn("Stripe checkout session creation failed",
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		return "", p.wrapError("create checkout session", err)
	}

	return sess.URL, nil
}

// DetachCard unbinds a stored payment method from its customer
func (p *processor) DetachCard(ctx context.Context, token string) error {
	params := &stripe.PaymentMethodDetachParams{}
	params.Context = ctx

	if _, err := paymentmethod.Detach(token, params); err != nil {
		p.logger.Warn("Stripe payment method detach failed", zap.Error(err))
		return p.wrapError("detach payment method", err)
	}

	return nil
}

// CreatePaymentIntent creates a payment intent. When a payment method is
// present the intent is confirmed immediately as an off-session charge.
func (p *processor) CreatePaymentIntent(ctx context.Context, intentParams ports.PaymentIntentParams) (*ports.PaymentIntentResult, error) {
	if err := validateIntentParams(intentParams); err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(intentParams.Amount),
		Currency: stripe.String(intentParams.Currency),
		Metadata: map[string]string{
			"subscription_id": intentParams.SubscriptionID,
			"user_id":         intentParams.UserID,
		},
	}
	params.Context = ctx

	if intentParams.CustomerID != "" {
		params.Customer = stripe.String(intentParams.CustomerID)
	}
	if intentParams.PaymentMethod != "" {
		params.PaymentMethod = stripe.String(intentParams.PaymentMethod)
		params.OffSession = stripe.Bool(true)
		params.Confirm = stripe.Bool(true)
	}

	intent, err := paymentintent.New(params)
	if err != nil {
		p.logger.Warn("Stripe payment intent creation failed",
			zap.String("subscription_id", intentParams.SubscriptionID),
			zap.Int64("amount", intentParams.Amount),
			zap.Error(err),
		)
		return nil, p.wrapError("create payment intent", err)
	}

	return &ports.PaymentIntentResult{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// CancelPaymentIntent cancels a not-yet-settled payment intent
func (p *processor) CancelPaymentIntent(ctx context.Context, intentID string) error {
	params := &stripe.PaymentIntentCancelParams{}
	params.Context = ctx

	if _, err := paymentintent.Cancel(intentID, params); err != nil {
		p.logger.Warn("Stripe payment intent cancel failed",
			zap.String("intent_id", intentID),
			zap.Error(err),
		)
		return p.wrapError("cancel payment intent", err)
	}

	return nil
}

func validateIntentParams(params ports.PaymentIntentParams) error {
	if params.Amount <= 0 {
		return pkgerrors.NewValidationError("amount", "must be positive")
	}
	if len(params.Currency) != 3 {
		return pkgerrors.NewValidationError("currency", "must be a 3-letter code")
	}
	return nil
}

// wrapError converts stripe-go and transport errors into PaymentError.
// Gateway 4xx responses are permanent; 5xx and network failures retriable.
func (p *processor) wrapError(op string, err error) *pkgerrors.PaymentError {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		retriable := stripeErr.HTTPStatusCode >= 500
		pe := pkgerrors.NewPaymentError("GATEWAY_ERROR", fmt.Sprintf("%s: %s", op, stripeErr.Code), categorize(stripeErr), retriable)
		return pe.WithGatewayMessage(stripeErr.Msg)
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return pkgerrors.NewPaymentError("NETWORK_ERROR", fmt.Sprintf("%s: failed to reach payment gateway", op), pkgerrors.CategoryNetworkError, true)
	}

	return pkgerrors.NewPaymentError("GATEWAY_ERROR", fmt.Sprintf("%s: %v", op, err), pkgerrors.CategoryGatewayError, true)
}

func categorize(err *stripe.Error) pkgerrors.ErrorCategory {
	switch err.Type {
	case stripe.ErrorTypeCard:
		return pkgerrors.CategoryCardDeclined
	case stripe.ErrorTypeInvalidRequest:
		return pkgerrors.CategoryInvalidRequest
	default:
		return pkgerrors.CategoryGatewayError
	}
}
