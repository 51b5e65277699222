package ports

import (
	"context"

	"github.com/subwave/billing-service/internal/domain/models"
)

// CreateTransactionRequest carries the fields for a new payment attempt
// record. Amount is in minor currency units.
type CreateTransactionRequest struct {
	SubscriptionID  string
	UserID          string
	UserCardID      string
	Amount          int64
	PaymentType     models.PaymentType
	GatewayIntentID *string
}

// UpdateTransactionRequest carries a partial transaction update; nil
// fields are left unchanged
type UpdateTransactionRequest struct {
	GatewayIntentID *string
	Status          *models.TransactionStatus
}

// ListTransactionsQuery scopes a transaction listing to the caller.
// Admin callers see every user's transactions and may filter by user.
type ListTransactionsQuery struct {
	CallerID string
	Admin    bool
	UserID   string
	Limit    int32
	Offset   int32
}

// TransactionService defines the business logic for payment attempt
// records
type TransactionService interface {
	// Create writes a new PENDING transaction
	Create(ctx context.Context, req CreateTransactionRequest) (*models.Transaction, error)

	// Update applies a partial update, used to attach the gateway
	// intent ID and to transition status
	Update(ctx context.Context, id string, req UpdateTransactionRequest) (*models.Transaction, error)

	// Get retrieves a transaction. Non-admin callers may only read
	// their own.
	Get(ctx context.Context, callerID string, admin bool, id string) (*models.Transaction, error)

	// List returns transactions visible to the caller, newest first
	List(ctx context.Context, query ListTransactionsQuery) ([]*models.Transaction, error)

	// GetByIntentID retrieves the transaction holding the given gateway
	// intent ID
	GetByIntentID(ctx context.Context, intentID string) (*models.Transaction, error)

	// GetNewestPendingBySubscription retrieves the newest PENDING
	// transaction for a subscription, used to re-attach an intent whose
	// attach write was lost
	GetNewestPendingBySubscription(ctx context.Context, subscriptionID string) (*models.Transaction, error)
}
