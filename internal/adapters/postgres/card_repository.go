package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/subwave/billing-service/internal/domain"
	"github.com/subwave/billing-service/internal/domain/models"
	"github.com/subwave/billing-service/internal/domain/ports"
)

const cardColumns = "id, user_id, gateway_customer_id, token, last_digits, status, is_default, created_at, updated_at"

// CardRepository implements ports.CardRepository backed by the user_cards table
type CardRepository struct {
	repository[models.UserCard]
}

// NewCardRepository creates a new card repository
func NewCardRepository(db ports.DBPort) *CardRepository {
	return &CardRepository{
		repository: repository[models.UserCard]{
			db:       db,
			scanRow:  scanCard,
			notFound: domain.ErrCardNotFound,
			table:    "user_cards",
			columns:  cardColumns,
		},
	}
}

// Create inserts a new card row. The database generates the ID and timestamps.
func (r *CardRepository) Create(ctx context.Context, tx ports.DBTX, card *models.UserCard) error {
	query := `
		INSERT INTO user_cards (user_id, gateway_customer_id, token, last_digits, status, is_default)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.executor(tx).QueryRow(ctx, query,
		card.UserID,
		card.GatewayCustomerID,
		card.Token,
		card.LastDigits,
		string(card.Status),
		card.IsDefault,
	).Scan(&card.ID, &card.CreatedAt, &card.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create card: %w", err)
	}

	return nil
}

// Update updates card fields
func (r *CardRepository) Update(ctx context.Context, tx ports.DBTX, card *models.UserCard) error {
	query := `
		UPDATE user_cards
		SET token = $1, last_digits = $2, status = $3, is_default = $4, updated_at = now()
		WHERE id = $5
		RETURNING updated_at`

	err := r.executor(tx).QueryRow(ctx, query,
		card.Token,
		card.LastDigits,
		string(card.Status),
		card.IsDefault,
		card.ID,
	).Scan(&card.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrCardNotFound
		}
		return fmt.Errorf("update card: %w", err)
	}

	return nil
}

// GetDefaultByUser returns the user's default card.
// Absence is a normal outcome and returns (nil, nil).
func (r *CardRepository) GetDefaultByUser(ctx context.Context, db ports.DBTX, userID string) (*models.UserCard, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_cards
		WHERE user_id = $1 AND is_default
		LIMIT 1`, cardColumns)

	return r.queryOneOrNil(ctx, db, query, userID)
}

// GetNewestInitByCustomer returns the most recently created card still
// awaiting gateway confirmation for the given gateway customer.
// Absence is a normal outcome and returns (nil, nil).
func (r *CardRepository) GetNewestInitByCustomer(ctx context.Context, db ports.DBTX, gatewayCustomerID string) (*models.UserCard, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_cards
		WHERE gateway_customer_id = $1 AND status = 'init'
		ORDER BY created_at DESC
		LIMIT 1`, cardColumns)

	return r.queryOneOrNil(ctx, db, query, gatewayCustomerID)
}

// GetNewestSuccessByUser returns the user's most recently bound chargeable
// card. Absence is a normal outcome and returns (nil, nil).
func (r *CardRepository) GetNewestSuccessByUser(ctx context.Context, db ports.DBTX, userID string) (*models.UserCard, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM user_cards
		WHERE user_id = $1 AND status = 'success'
		ORDER BY created_at DESC
		LIMIT 1`, cardColumns)

	return r.queryOneOrNil(ctx, db, query, userID)
}

// ClearDefaultByUser unsets the default flag on all of the user's cards.
// Clearing when no default exists is a no-op.
func (r *CardRepository) ClearDefaultByUser(ctx context.Context, tx ports.DBTX, userID string) error {
	query := `
		UPDATE user_cards
		SET is_default = false, updated_at = now()
		WHERE user_id = $1 AND is_default`

	if _, err := r.executor(tx).Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("clear default card: %w", err)
	}

	return nil
}

func scanCard(s scanner) (*models.UserCard, error) {
	var (
		card   models.UserCard
		status string
	)
	err := s.Scan(
		&card.ID,
		&card.UserID,
		&card.GatewayCustomerID,
		&card.Token,
		&card.LastDigits,
		&status,
		&card.IsDefault,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	card.Status = models.CardStatus(status)
	return &card, nil
}
