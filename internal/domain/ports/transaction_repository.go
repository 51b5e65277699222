package ports

import (
	"context"

	"github.com/subwave/billing-service/internal/domain/models"
)

// TransactionRepository defines the interface for transaction persistence
type TransactionRepository interface {
	// Create creates a new transaction
	Create(ctx context.Context, tx DBTX, transaction *models.Transaction) error

	// GetByID retrieves a transaction by its ID
	GetByID(ctx context.Context, db DBTX, id string) (*models.Transaction, error)

	// GetMany lists transactions matching the given equality filters.
	// Nil filter values are ignored.
	GetMany(ctx context.Context, db DBTX, filters map[string]interface{}, limit, offset int32) ([]*models.Transaction, error)

	// Update updates transaction fields
	Update(ctx context.Context, tx DBTX, transaction *models.Transaction) error

	// GetByIntentID retrieves a transaction by gateway payment intent ID.
	// Used for reconciling gateway webhooks with local state.
	GetByIntentID(ctx context.Context, db DBTX, intentID string) (*models.Transaction, error)
}
