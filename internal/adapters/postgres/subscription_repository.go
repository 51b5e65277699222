package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/subwave/billing-service/internal/domain"
	"github.com/subwave/billing-service/internal/domain/models"
	"github.com/subwave/billing-service/internal/domain/ports"
)

const subscriptionColumns = "id, user_id, plan_id, status, start_date, end_date, auto_renewal, created_at, updated_at"

// SubscriptionRepository implements ports.SubscriptionRepository backed by
// the subscriptions table
type SubscriptionRepository struct {
	repository[models.Subscription]
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db ports.DBPort) *SubscriptionRepository {
	return &SubscriptionRepository{
		repository: repository[models.Subscription]{
			db:       db,
			scanRow:  scanSubscription,
			notFound: domain.ErrSubscriptionNotFound,
			table:    "subscriptions",
			columns:  subscriptionColumns,
		},
	}
}

// Create inserts a new subscription. The database generates the ID and
// timestamps. A second pending or active subscription for the same user
// violates the one-current-per-user index and maps to ErrActiveSubscription.
func (r *SubscriptionRepository) Create(ctx context.Context, tx ports.DBTX, subscription *models.Subscription) error {
	query := `
		INSERT INTO subscriptions (user_id, plan_id, status, start_date, end_date, auto_renewal)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.executor(tx).QueryRow(ctx, query,
		subscription.UserID,
		subscription.PlanID,
		string(subscription.Status),
		subscription.StartDate,
		subscription.EndDate,
		subscription.AutoRenewal,
	).Scan(&subscription.ID, &subscription.CreatedAt, &subscription.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err, "subscriptions_one_current_per_user") {
			return domain.ErrActiveSubscription
		}
		return fmt.Errorf("create subscription: %w", err)
	}

	return nil
}

// Update updates the mutable subscription fields. The plan reference is
// fixed at creation; renewals create a new row instead.
func (r *SubscriptionRepository) Update(ctx context.Context, tx ports.DBTX, subscription *models.Subscription) error {
	query := `
		UPDATE subscriptions
		SET status = $1, start_date = $2, end_date = $3, auto_renewal = $4, updated_at = now()
		WHERE id = $5
		RETURNING updated_at`

	err := r.executor(tx).QueryRow(ctx, query,
		string(subscription.Status),
		subscription.StartDate,
		subscription.EndDate,
		subscription.AutoRenewal,
		subscription.ID,
	).Scan(&subscription.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrSubscriptionNotFound
		}
		return fmt.Errorf("update subscription: %w", err)
	}

	return nil
}

// GetCurrentByUser returns the user's pending or active subscription.
// Absence is a normal outcome and returns (nil, nil).
func (r *SubscriptionRepository) GetCurrentByUser(ctx context.Context, db ports.DBTX, userID string) (*models.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE user_id = $1 AND status IN ('pending', 'active')
		ORDER BY created_at DESC
		LIMIT 1`, subscriptionColumns)

	return r.queryOneOrNil(ctx, db, query, userID)
}

// ListActiveDue lists active subscriptions whose paid period has elapsed
// at dueDate, oldest expiry first
func (r *SubscriptionRepository) ListActiveDue(ctx context.Context, db ports.DBTX, dueDate time.Time, limit int32) ([]*models.Subscription, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM subscriptions
		WHERE status = 'active' AND end_date <= $1
		ORDER BY end_date ASC
		LIMIT $2`, subscriptionColumns)

	rows, err := r.executor(db).Query(ctx, query, dueDate, limit)
	if err != nil {
		return nil, fmt.Errorf("list due subscriptions: %w", err)
	}
	defer rows.Close()

	return r.collect(rows)
}

func scanSubscription(s scanner) (*models.Subscription, error) {
	var (
		sub    models.Subscription
		status string
	)
	err := s.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.PlanID,
		&status,
		&sub.StartDate,
		&sub.EndDate,
		&sub.AutoRenewal,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	sub.Status = models.SubscriptionStatus(status)
	return &sub, nil
}
