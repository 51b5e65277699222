package billing

import (
	"context"
	"fmt"
	"sync"

	"github.com/subwave/billing-service/internal/domain"
	"github.com/subwave/billing-service/internal/domain/models"
	"github.com/subwave/billing-service/internal/domain/ports"
	"github.com/subwave/billing-service/pkg/observability"
	"github.com/subwave/billing-service/pkg/timeutil"
)

// Gateway payment event types the webhook dispatcher understands
const (
	EventPaymentSucceeded = ports.EventPaymentSucceeded
	EventPaymentFailed    = ports.EventPaymentFailed
	EventChargeRefunded   = ports.EventChargeRefunded
)

// Manager implements ports.BillingManager. It composes the subscription
// and payment state machines and emits role-change and notification
// events after the database change commits. A failed publish never fails
// the originating command; the event goes to the re-emit hook instead.
type Manager struct {
	subscriptions ports.SubscriptionService
	payments      ports.PaymentManager
	cardRepo      ports.CardRepository
	authEvents    ports.AuthEventPublisher
	notifications ports.NotificationPublisher
	logger        ports.Logger
	currency      string

	mu   sync.RWMutex
	hook ports.PublishFailureHook
}

// NewManager creates a new billing manager. currency is the ISO currency
// code every charge is denominated in.
func NewManager(
	subscriptions ports.SubscriptionService,
	payments ports.PaymentManager,
	cardRepo ports.CardRepository,
	authEvents ports.AuthEventPublisher,
	notifications ports.NotificationPublisher,
	currency string,
	logger ports.Logger,
) *Manager {
	return &Manager{
		subscriptions: subscriptions,
		payments:      payments,
		cardRepo:      cardRepo,
		authEvents:    authEvents,
		notifications: notifications,
		currency:      currency,
		logger:        logger,
	}
}

// SetPublishFailureHook installs the re-emit hook for failed publishes
func (m *Manager) SetPublishFailureHook(hook ports.PublishFailureHook) {
	m.mu.Lock()
	m.hook = hook
	m.mu.Unlock()
}

// CreateSubscription writes a PENDING subscription and notifies the user
func (m *Manager) CreateSubscription(ctx context.Context, userID string, req ports.CreateSubscriptionRequest) (*models.Subscription, error) {
	sub, err := m.subscriptions.Create(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	m.notify(ctx, userID, models.TopicSubscription, string(sub.Status))

	return sub, nil
}

// InitiateSubscriptionPayment charges the given card for the
// subscription's plan price. An empty cardID selects the user's default
// card.
func (m *Manager) InitiateSubscriptionPayment(ctx context.Context, userID, cardID, subscriptionID string) (*models.Transaction, error) {
	if _, err := m.subscriptions.Get(ctx, userID, false, subscriptionID); err != nil {
		return nil, err
	}

	amount, err := m.subscriptions.PaymentAmount(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}

	if cardID == "" {
		card, err := m.cardRepo.GetDefaultByUser(ctx, nil, userID)
		if err != nil {
			return nil, fmt.Errorf("resolve default card: %w", err)
		}
		if card == nil {
			return nil, domain.ErrCardNotFound
		}
		cardID = card.ID
	}

	return m.payments.ChargeSubscription(ctx, ports.ChargeSubscriptionRequest{
		UserID:         userID,
		CardID:         cardID,
		SubscriptionID: subscriptionID,
		Amount:         amount,
		Currency:       m.currency,
	})
}

// ActivateSubscription moves a subscription to ACTIVE, grants the
// subscriber role and notifies the user. An already-active subscription
// is returned as-is without publishing again, so webhook redeliveries do
// not emit a second set of events.
func (m *Manager) ActivateSubscription(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	current, err := m.subscriptions.Get(ctx, "", true, subscriptionID)
	if err != nil {
		return nil, err
	}
	if current.Status == models.SubscriptionStatusActive {
		return current, nil
	}

	sub, err := m.subscriptions.ChangeStatus(ctx, subscriptionID, models.SubscriptionStatusActive)
	if err != nil {
		return nil, err
	}

	m.publishRole(ctx, sub.UserID, models.RoleSubscriber)
	m.notify(ctx, sub.UserID, models.TopicSubscription, string(models.SubscriptionStatusActive))

	return sub, nil
}

// CancelSubscription cancels the subscription, voids any open payment
// intent for it, downgrades the user's role and notifies the user
func (m *Manager) CancelSubscription(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	sub, err := m.subscriptions.Cancel(ctx, userID, subscriptionID)
	if err != nil {
		return nil, err
	}

	if err := m.payments.VoidPendingPayment(ctx, sub.ID); err != nil {
		m.logger.Warn("void pending payment",
			ports.String("subscription_id", sub.ID),
			ports.Err(err))
	}

	m.publishRole(ctx, sub.UserID, models.RoleBasicUser)
	m.notify(ctx, sub.UserID, models.TopicSubscription, string(models.SubscriptionStatusCancelled))

	return sub, nil
}

// RenewSubscription extends the subscription by the plan's duration and
// charges the user's default card for the next period
func (m *Manager) RenewSubscription(ctx context.Context, userID, subscriptionID, planID string) (*models.Transaction, error) {
	if _, err := m.subscriptions.Renew(ctx, userID, subscriptionID, planID); err != nil {
		return nil, err
	}

	return m.InitiateSubscriptionPayment(ctx, userID, "", subscriptionID)
}

// ToggleAutoRenewal flips the subscription's auto-renewal flag
func (m *Manager) ToggleAutoRenewal(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	return m.subscriptions.ToggleAutoRenewal(ctx, userID, subscriptionID)
}

// ProcessExpiry settles one due subscription. Non-renewing subscriptions
// expire with a role downgrade and notification. Auto-renewing ones
// expire silently and a fresh PENDING subscription on the same plan takes
// over, charged against the default card; its payment webhook re-grants
// the role.
func (m *Manager) ProcessExpiry(ctx context.Context, subscriptionID string) error {
	sub, err := m.subscriptions.Get(ctx, "", true, subscriptionID)
	if err != nil {
		return err
	}

	// Re-check under current state; a concurrent cancel or renew between
	// listing and processing wins.
	if sub.Status != models.SubscriptionStatusActive {
		return nil
	}
	if sub.EndDate.After(timeutil.Now()) {
		return nil
	}

	if !sub.AutoRenewal {
		if _, err := m.subscriptions.ChangeStatus(ctx, subscriptionID, models.SubscriptionStatusExpired); err != nil {
			return err
		}

		observability.RecordSweeperExpiration(false)

		m.publishRole(ctx, sub.UserID, models.RoleBasicUser)
		m.notify(ctx, sub.UserID, models.TopicSubscription, string(models.SubscriptionStatusExpired))

		return nil
	}

	if _, err := m.subscriptions.ChangeStatus(ctx, subscriptionID, models.SubscriptionStatusExpired); err != nil {
		return err
	}

	renewed, err := m.subscriptions.Create(ctx, sub.UserID, ports.CreateSubscriptionRequest{
		PlanID:      sub.PlanID,
		AutoRenewal: true,
	})
	if err != nil {
		return fmt.Errorf("create renewal subscription: %w", err)
	}

	observability.RecordSweeperExpiration(true)

	m.logger.Info("subscription rolled over",
		ports.String("expired_id", subscriptionID),
		ports.String("renewal_id", renewed.ID),
		ports.String("user_id", sub.UserID))

	if _, err := m.InitiateSubscriptionPayment(ctx, sub.UserID, "", renewed.ID); err != nil {
		// The renewal stays PENDING; the user can still pay it manually.
		return fmt.Errorf("charge renewal subscription: %w", err)
	}

	return nil
}

// HandlePaymentWebhook dispatches a gateway payment event to the matching
// payment handler and follow-up lifecycle action. Replayed events that
// find their lifecycle action already applied converge to a no-op.
func (m *Manager) HandlePaymentWebhook(ctx context.Context, eventType string, event ports.PaymentEvent) error {
	switch eventType {
	case EventPaymentSucceeded:
		txn, err := m.payments.HandlePaymentSucceeded(ctx, event)
		if err != nil {
			return err
		}
		if _, err := m.ActivateSubscription(ctx, txn.SubscriptionID); err != nil {
			if domain.IsConflictError(err) {
				m.logger.Warn("skipping activation of settled subscription",
					ports.String("subscription_id", txn.SubscriptionID),
					ports.Err(err))
				return nil
			}
			return err
		}
		return nil

	case EventPaymentFailed:
		txn, err := m.payments.HandlePaymentFailed(ctx, event)
		if err != nil {
			return err
		}
		m.notify(ctx, txn.UserID, models.TopicTransaction, "failed")
		return nil

	case EventChargeRefunded:
		txn, err := m.payments.HandlePaymentRefunded(ctx, event)
		if err != nil {
			return err
		}
		if _, err := m.CancelSubscription(ctx, txn.UserID, txn.SubscriptionID); err != nil {
			if domain.IsConflictError(err) {
				m.logger.Warn("skipping cancellation of settled subscription",
					ports.String("subscription_id", txn.SubscriptionID),
					ports.Err(err))
				return nil
			}
			return err
		}
		return nil

	default:
		m.logger.Warn("unhandled payment event", ports.String("event_type", eventType))
		return nil
	}
}

func (m *Manager) publishRole(ctx context.Context, userID string, role models.Role) {
	event := models.AuthEvent{UserID: userID, Role: role}

	if err := m.authEvents.PublishRoleChange(ctx, event); err != nil {
		m.logger.Error("publish role change",
			ports.String("user_id", userID),
			ports.String("role", string(role)),
			ports.Err(err))
		m.callHook(ports.QueueAuthEvents, event)
	}
}

func (m *Manager) notify(ctx context.Context, userID string, topic models.NotificationTopic, status string) {
	event := models.NotificationEvent{
		UserID: userID,
		NotificationData: models.NotificationData{
			Topic:  topic,
			Status: status,
		},
	}

	if err := m.notifications.PublishNotification(ctx, event); err != nil {
		m.logger.Error("publish notification",
			ports.String("user_id", userID),
			ports.String("topic", string(topic)),
			ports.String("status", status),
			ports.Err(err))
		m.callHook(ports.QueueNotificationEvents, event)
	}
}

func (m *Manager) callHook(queue string, event interface{}) {
	m.mu.RLock()
	hook := m.hook
	m.mu.RUnlock()

	if hook != nil {
		hook(queue, event)
	}
}
