package subscription

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/subwave/billing-service/internal/domain"
	"github.com/subwave/billing-service/internal/domain/models"
	"github.com/subwave/billing-service/internal/domain/ports"
	"github.com/subwave/billing-service/pkg/observability"
	"github.com/subwave/billing-service/pkg/timeutil"
)

// Service implements ports.SubscriptionService
type Service struct {
	db       ports.DBPort
	subRepo  ports.SubscriptionRepository
	planRepo ports.PlanRepository
	logger   ports.Logger
}

// NewService creates a new subscription service
func NewService(
	db ports.DBPort,
	subRepo ports.SubscriptionRepository,
	planRepo ports.PlanRepository,
	logger ports.Logger,
) *Service {
	return &Service{
		db:       db,
		subRepo:  subRepo,
		planRepo: planRepo,
		logger:   logger,
	}
}

// Create writes a new PENDING subscription for the user. The paid period
// starts now and runs for the plan's duration.
func (s *Service) Create(ctx context.Context, userID string, req ports.CreateSubscriptionRequest) (*models.Subscription, error) {
	var subscription *models.Subscription

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		plan, err := s.planRepo.GetByID(ctx, tx, req.PlanID)
		if err != nil {
			return err
		}
		// Archived plans are hidden from users; do not let them
		// subscribe by ID either
		if plan.IsArchive {
			return domain.ErrPlanNotFound
		}

		current, err := s.subRepo.GetCurrentByUser(ctx, tx, userID)
		if err != nil {
			return fmt.Errorf("check current subscription: %w", err)
		}
		if current != nil {
			return domain.ErrActiveSubscription
		}

		start := timeutil.Now()
		subscription = &models.Subscription{
			UserID:      userID,
			PlanID:      plan.ID,
			Status:      models.SubscriptionStatusPending,
			StartDate:   start,
			EndDate:     timeutil.AddDays(start, plan.DurationDays),
			AutoRenewal: req.AutoRenewal,
		}

		// The partial unique index settles creation races; the loser
		// sees the same error as the existence check
		return s.subRepo.Create(ctx, tx, subscription)
	})
	if err != nil {
		return nil, err
	}

	observability.RecordSubscriptionCreated(subscription.AutoRenewal)
	s.logger.Info("subscription created",
		ports.String("subscription_id", subscription.ID),
		ports.String("user_id", userID),
		ports.String("plan_id", subscription.PlanID),
		ports.Bool("auto_renewal", subscription.AutoRenewal))

	return subscription, nil
}

// Get retrieves a subscription, enforcing ownership for non-admin callers
func (s *Service) Get(ctx context.Context, callerID string, admin bool, subscriptionID string) (*models.Subscription, error) {
	subscription, err := s.subRepo.GetByID(ctx, nil, subscriptionID)
	if err != nil {
		return nil, err
	}

	if !admin && subscription.UserID != callerID {
		return nil, domain.ErrAccessDenied
	}

	return subscription, nil
}

// List returns subscriptions visible to the caller, newest first
func (s *Service) List(ctx context.Context, query ports.ListSubscriptionsQuery) ([]*models.Subscription, error) {
	filters := map[string]interface{}{}
	if !query.Admin {
		filters["user_id"] = query.CallerID
	}

	return s.subRepo.GetMany(ctx, nil, filters, query.Limit, query.Offset)
}

// Cancel moves a pending or active subscription to CANCELLED. The paid
// period is closed immediately and auto-renewal cleared.
func (s *Service) Cancel(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	var subscription *models.Subscription
	var from models.SubscriptionStatus

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		subscription, err = s.subRepo.GetByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}

		if subscription.UserID != userID {
			return domain.ErrAccessDenied
		}
		if !subscription.Status.CanTransitionTo(models.SubscriptionStatusCancelled) {
			return domain.ErrSubscriptionCancel
		}

		from = subscription.Status
		subscription.Status = models.SubscriptionStatusCancelled
		subscription.AutoRenewal = false
		subscription.EndDate = timeutil.Now()

		return s.subRepo.Update(ctx, tx, subscription)
	})
	if err != nil {
		return nil, err
	}

	observability.RecordSubscriptionTransition(string(from), string(models.SubscriptionStatusCancelled))
	s.logger.Info("subscription cancelled",
		ports.String("subscription_id", subscription.ID),
		ports.String("user_id", userID))

	return subscription, nil
}

// Renew extends an active subscription by the plan's duration. Status is
// untouched; payment is the caller's concern.
func (s *Service) Renew(ctx context.Context, userID, subscriptionID, planID string) (*models.Subscription, error) {
	var subscription *models.Subscription

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		subscription, err = s.subRepo.GetByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}

		if subscription.UserID != userID {
			return domain.ErrAccessDenied
		}
		if subscription.Status != models.SubscriptionStatusActive {
			return domain.ErrSubscriptionNotActive
		}

		plan, err := s.planRepo.GetByID(ctx, tx, planID)
		if err != nil {
			return err
		}

		subscription.EndDate = timeutil.AddDays(subscription.EndDate, plan.DurationDays)

		return s.subRepo.Update(ctx, tx, subscription)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription renewed",
		ports.String("subscription_id", subscription.ID),
		ports.String("user_id", userID),
		ports.String("end_date", subscription.EndDate.Format("2006-01-02")))

	return subscription, nil
}

// ToggleAutoRenewal flips the auto-renewal flag. Terminal subscriptions
// stay non-renewing.
func (s *Service) ToggleAutoRenewal(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	var subscription *models.Subscription

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		subscription, err = s.subRepo.GetByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}

		if subscription.UserID != userID {
			return domain.ErrAccessDenied
		}
		if subscription.Status.IsTerminal() {
			return domain.ErrInvalidStatusChange
		}

		subscription.AutoRenewal = !subscription.AutoRenewal

		return s.subRepo.Update(ctx, tx, subscription)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("subscription auto-renewal toggled",
		ports.String("subscription_id", subscription.ID),
		ports.Bool("auto_renewal", subscription.AutoRenewal))

	return subscription, nil
}

// ChangeStatus applies a lifecycle transition. Requesting the current
// status returns the row unchanged so webhook redeliveries converge.
func (s *Service) ChangeStatus(ctx context.Context, subscriptionID string, next models.SubscriptionStatus) (*models.Subscription, error) {
	var subscription *models.Subscription
	var from models.SubscriptionStatus
	changed := false

	err := s.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		subscription, err = s.subRepo.GetByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}

		if subscription.Status == next {
			return nil
		}
		if !subscription.Status.CanTransitionTo(next) {
			return domain.ErrInvalidStatusChange
		}

		from = subscription.Status
		subscription.Status = next
		if next.IsTerminal() {
			subscription.AutoRenewal = false
		}
		changed = true

		return s.subRepo.Update(ctx, tx, subscription)
	})
	if err != nil {
		return nil, err
	}

	if changed {
		observability.RecordSubscriptionTransition(string(from), string(next))
		s.logger.Info("subscription status changed",
			ports.String("subscription_id", subscription.ID),
			ports.String("from", string(from)),
			ports.String("to", string(next)))
	}

	return subscription, nil
}

// PaymentAmount resolves the charge amount for a subscription from its
// plan. Both reads share one snapshot so a concurrent price change
// cannot land between them.
func (s *Service) PaymentAmount(ctx context.Context, subscriptionID string) (int64, error) {
	var amount int64

	err := s.db.WithReadOnlyTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		subscription, err := s.subRepo.GetByID(ctx, tx, subscriptionID)
		if err != nil {
			return err
		}

		plan, err := s.planRepo.GetByID(ctx, tx, subscription.PlanID)
		if err != nil {
			return err
		}

		amount = plan.Price
		return nil
	})
	if err != nil {
		return 0, err
	}

	return amount, nil
}
