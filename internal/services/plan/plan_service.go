package plan

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/subwave/billing-service/internal/domain"
	"github.com/subwave/billing-service/internal/domain/models"
	"github.com/subwave/billing-service/internal/domain/ports"
)

// Service implements ports.PlanService
type Service struct {
	db       ports.DBPort
	planRepo ports.PlanRepository
	logger   ports.Logger
}

// NewService creates a new plan service
func NewService(db ports.DBPort, planRepo ports.PlanRepository, logger ports.Logger) *Service {
	return &Service{
		db:       db,
		planRepo: planRepo,
		logger:   logger,
	}
}

// Create adds a new subscription plan
func (s *Service) Create(ctx context.Context, req ports.CreatePlanRequest) (*models.SubscriptionPlan, error) {
	if err := validatePlanFields(req.Title, req.Price, req.DurationDays); err != nil {
		return nil, err
	}

	plan := &models.SubscriptionPlan{
		Title:        req.Title,
		Description:  req.Description,
		Price:        req.Price,
		DurationDays: req.DurationDays,
	}

	// The title unique constraint settles duplicate-title races
	if err := s.planRepo.Create(ctx, nil, plan); err != nil {
		return nil, fmt.Errorf("create plan: %w", err)
	}

	s.logger.Info("plan created",
		ports.String("plan_id", plan.ID),
		ports.String("title", plan.Title),
		ports.Int64("price", plan.Price))

	return plan, nil
}

// Update applies a partial update to a plan
func (s *Service) Update(ctx context.Context, id string, req ports.UpdatePlanRequest) (*models.SubscriptionPlan, error) {
	var plan *models.SubscriptionPlan

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		plan, err = s.planRepo.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}

		if req.Title != nil {
			plan.Title = *req.Title
		}
		if req.Description != nil {
			plan.Description = *req.Description
		}
		if req.Price != nil {
			plan.Price = *req.Price
		}
		if req.DurationDays != nil {
			plan.DurationDays = *req.DurationDays
		}
		if req.IsArchive != nil {
			plan.IsArchive = *req.IsArchive
		}

		if err := validatePlanFields(plan.Title, plan.Price, plan.DurationDays); err != nil {
			return err
		}

		return s.planRepo.Update(ctx, tx, plan)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("plan updated", ports.String("plan_id", plan.ID))

	return plan, nil
}

// List returns plans, newest first. Archived plans are hidden unless
// requested.
func (s *Service) List(ctx context.Context, query ports.ListPlansQuery) ([]*models.SubscriptionPlan, error) {
	filters := map[string]interface{}{}
	if !query.IncludeArchived {
		filters["is_archive"] = false
	}

	return s.planRepo.GetMany(ctx, nil, filters, query.Limit, query.Offset)
}

// Get retrieves a plan by ID
func (s *Service) Get(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	return s.planRepo.GetByID(ctx, nil, id)
}

// Archive soft-deletes a plan. Existing subscriptions keep billing
// against it.
func (s *Service) Archive(ctx context.Context, id string) error {
	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		plan, err := s.planRepo.GetByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if plan.IsArchive {
			return nil
		}

		plan.IsArchive = true
		return s.planRepo.Update(ctx, tx, plan)
	})
	if err != nil {
		return err
	}

	s.logger.Info("plan archived", ports.String("plan_id", id))
	return nil
}

func validatePlanFields(title string, price int64, durationDays int) error {
	if title == "" {
		return domain.NewDomainError(domain.ErrorCodeValidationFailed, "plan title must not be empty")
	}
	if price < 0 {
		return domain.NewDomainError(domain.ErrorCodeValidationFailed, "plan price must not be negative")
	}
	if durationDays <= 0 {
		return domain.NewDomainError(domain.ErrorCodeValidationFailed, "plan duration must be positive")
	}
	return nil
}
