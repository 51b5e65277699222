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

const transactionColumns = "id, subscription_id, user_id, user_card_id, gateway_intent_id, payment_type, status, amount, created_at, updated_at"

// TransactionRepository implements ports.TransactionRepository backed by
// the transactions table
type TransactionRepository struct {
	repository[models.Transaction]
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db ports.DBPort) *TransactionRepository {
	return &TransactionRepository{
		repository: repository[models.Transaction]{
			db:       db,
			scanRow:  scanTransaction,
			notFound: domain.ErrTransactionNotFound,
			table:    "transactions",
			columns:  transactionColumns,
		},
	}
}

// Create inserts a new transaction. The database generates the ID and
// timestamps.
func (r *TransactionRepository) Create(ctx context.Context, tx ports.DBTX, transaction *models.Transaction) error {
	query := `
		INSERT INTO transactions (subscription_id, user_id, user_card_id, gateway_intent_id, payment_type, status, amount)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := r.executor(tx).QueryRow(ctx, query,
		transaction.SubscriptionID,
		transaction.UserID,
		transaction.UserCardID,
		transaction.GatewayIntentID,
		string(transaction.PaymentType),
		string(transaction.Status),
		transaction.Amount,
	).Scan(&transaction.ID, &transaction.CreatedAt, &transaction.UpdatedAt)

	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	return nil
}

// Update updates the transaction status and gateway intent reference
func (r *TransactionRepository) Update(ctx context.Context, tx ports.DBTX, transaction *models.Transaction) error {
	query := `
		UPDATE transactions
		SET gateway_intent_id = $1, status = $2, updated_at = now()
		WHERE id = $3
		RETURNING updated_at`

	err := r.executor(tx).QueryRow(ctx, query,
		transaction.GatewayIntentID,
		string(transaction.Status),
		transaction.ID,
	).Scan(&transaction.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrTransactionNotFound
		}
		return fmt.Errorf("update transaction: %w", err)
	}

	return nil
}

// GetByIntentID retrieves a transaction by gateway payment intent ID.
// Used for reconciling gateway webhooks with local state.
func (r *TransactionRepository) GetByIntentID(ctx context.Context, db ports.DBTX, intentID string) (*models.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM transactions
		WHERE gateway_intent_id = $1`, transactionColumns)

	return r.queryOne(ctx, db, query, intentID)
}

func scanTransaction(s scanner) (*models.Transaction, error) {
	var (
		txn         models.Transaction
		paymentType string
		status      string
	)
	err := s.Scan(
		&txn.ID,
		&txn.SubscriptionID,
		&txn.UserID,
		&txn.UserCardID,
		&txn.GatewayIntentID,
		&paymentType,
		&status,
		&txn.Amount,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	txn.PaymentType = models.PaymentType(paymentType)
	txn.Status = models.TransactionStatus(status)
	return &txn, nil
}
