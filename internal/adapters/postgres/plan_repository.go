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

const planColumns = "id, title, description, price, duration_days, is_archive, created_at, updated_at"

// PlanRepository implements ports.PlanRepository backed by the
// subscription_plans table
type PlanRepository struct {
	repository[models.SubscriptionPlan]
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db ports.DBPort) *PlanRepository {
	return &PlanRepository{
		repository: repository[models.SubscriptionPlan]{
			db:       db,
			scanRow:  scanPlan,
			notFound: domain.ErrPlanNotFound,
			table:    "subscription_plans",
			columns:  planColumns,
		},
	}
}

// Create inserts a new plan. The database generates the ID and timestamps.
func (r *PlanRepository) Create(ctx context.Context, tx ports.DBTX, plan *models.SubscriptionPlan) error {
	query := `
		INSERT INTO subscription_plans (title, description, price, duration_days, is_archive)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.executor(tx).QueryRow(ctx, query,
		plan.Title,
		plan.Description,
		plan.Price,
		plan.DurationDays,
		plan.IsArchive,
	).Scan(&plan.ID, &plan.CreatedAt, &plan.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err, "subscription_plans_title_key") {
			return domain.ErrPlanExists
		}
		return fmt.Errorf("create plan: %w", err)
	}

	return nil
}

// Update updates plan fields
func (r *PlanRepository) Update(ctx context.Context, tx ports.DBTX, plan *models.SubscriptionPlan) error {
	query := `
		UPDATE subscription_plans
		SET title = $1, description = $2, price = $3, duration_days = $4, is_archive = $5, updated_at = now()
		WHERE id = $6
		RETURNING updated_at`

	err := r.executor(tx).QueryRow(ctx, query,
		plan.Title,
		plan.Description,
		plan.Price,
		plan.DurationDays,
		plan.IsArchive,
		plan.ID,
	).Scan(&plan.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrPlanNotFound
		}
		if isUniqueViolation(err, "subscription_plans_title_key") {
			return domain.ErrPlanExists
		}
		return fmt.Errorf("update plan: %w", err)
	}

	return nil
}

func scanPlan(s scanner) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := s.Scan(
		&plan.ID,
		&plan.Title,
		&plan.Description,
		&plan.Price,
		&plan.DurationDays,
		&plan.IsArchive,
		&plan.CreatedAt,
		&plan.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &plan, nil
}
