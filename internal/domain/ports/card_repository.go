package ports

import (
	"context"

	"github.com/subwave/billing-service/internal/domain/models"
)

// CardRepository defines the interface for user card persistence
type CardRepository interface {
	// Create inserts a new card row
	Create(ctx context.Context, tx DBTX, card *models.UserCard) error

	// GetByID retrieves a card by its ID
	GetByID(ctx context.Context, db DBTX, id string) (*models.UserCard, error)

	// GetMany lists cards matching the given equality filters.
	// Nil filter values are ignored.
	GetMany(ctx context.Context, db DBTX, filters map[string]interface{}, limit, offset int32) ([]*models.UserCard, error)

	// Update updates card fields
	Update(ctx context.Context, tx DBTX, card *models.UserCard) error

	// Delete removes a card row
	Delete(ctx context.Context, tx DBTX, id string) error

	// GetDefaultByUser returns the user's default card, if any
	GetDefaultByUser(ctx context.Context, db DBTX, userID string) (*models.UserCard, error)

	// GetNewestInitByCustomer returns the most recently created card still
	// awaiting gateway confirmation for the given gateway customer
	GetNewestInitByCustomer(ctx context.Context, db DBTX, gatewayCustomerID string) (*models.UserCard, error)

	// GetNewestSuccessByUser returns the user's most recently bound
	// chargeable card, if any
	GetNewestSuccessByUser(ctx context.Context, db DBTX, userID string) (*models.UserCard, error)

	// ClearDefaultByUser unsets the default flag on all of the user's cards
	ClearDefaultByUser(ctx context.Context, tx DBTX, userID string) error
}
