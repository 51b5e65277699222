package cards

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/subwave/billing-service/internal/domain"
	"github.com/subwave/billing-service/internal/domain/models"
	"github.com/subwave/billing-service/internal/domain/ports"
)

// Manager implements ports.CardsManager. A binding starts as an INIT row
// created alongside the hosted session; the gateway's webhook events then
// resolve it to SUCCESS or FAIL.
type Manager struct {
	db            ports.DBPort
	cardRepo      ports.CardRepository
	processor     ports.PaymentProcessor
	notifications ports.NotificationPublisher
	logger        ports.Logger
}

// NewManager creates a new cards manager
func NewManager(
	db ports.DBPort,
	cardRepo ports.CardRepository,
	processor ports.PaymentProcessor,
	notifications ports.NotificationPublisher,
	logger ports.Logger,
) *Manager {
	return &Manager{
		db:            db,
		cardRepo:      cardRepo,
		processor:     processor,
		notifications: notifications,
		logger:        logger,
	}
}

// CreateBindingSession writes an INIT card row and returns the hosted
// binding URL. The first binding allocates a gateway customer; later
// bindings reuse the one recorded on any of the user's existing rows.
func (m *Manager) CreateBindingSession(ctx context.Context, userID string) (string, error) {
	existing, err := m.cardRepo.GetMany(ctx, nil, map[string]interface{}{"user_id": userID}, 1, 0)
	if err != nil {
		return "", fmt.Errorf("look up user cards: %w", err)
	}

	var customerID string
	if len(existing) > 0 {
		customerID = existing[0].GatewayCustomerID
	} else {
		customerID, err = m.processor.CreateCustomer(ctx)
		if err != nil {
			return "", fmt.Errorf("create gateway customer: %w", err)
		}
	}

	card := &models.UserCard{
		UserID:            userID,
		GatewayCustomerID: customerID,
		Status:            models.CardStatusInit,
	}
	if err := m.cardRepo.Create(ctx, nil, card); err != nil {
		return "", fmt.Errorf("create card row: %w", err)
	}

	redirectURL, err := m.processor.CreateCardBindingSession(ctx, customerID)
	if err != nil {
		return "", fmt.Errorf("create binding session: %w", err)
	}

	m.logger.Info("card binding session created",
		ports.String("user_id", userID),
		ports.String("card_id", card.ID))

	return redirectURL, nil
}

// HandleCardAttached records the card's last digits on the newest INIT row
// for the gateway customer. Events that match no row are logged and dropped;
// the binding session may have expired or the row may belong to a replay.
func (m *Manager) HandleCardAttached(ctx context.Context, event ports.CardAttachedEvent) error {
	if event.GatewayCustomerID == "" || event.LastDigits == "" {
		m.logger.Warn("card attached event missing fields",
			ports.String("gateway_customer_id", event.GatewayCustomerID))
		return nil
	}

	card, err := m.cardRepo.GetNewestInitByCustomer(ctx, nil, event.GatewayCustomerID)
	if err != nil {
		return fmt.Errorf("find card awaiting binding: %w", err)
	}
	if card == nil {
		m.logger.Warn("no card awaiting binding for customer",
			ports.String("gateway_customer_id", event.GatewayCustomerID))
		return nil
	}

	card.LastDigits = &event.LastDigits
	if err := m.cardRepo.Update(ctx, nil, card); err != nil {
		return fmt.Errorf("record card digits: %w", err)
	}

	return nil
}

// HandleSetupSucceeded stores the payment method token, marks the newest
// INIT row SUCCESS and makes it the user's default card. The default swap
// happens in one transaction so the one-default-per-user index holds.
func (m *Manager) HandleSetupSucceeded(ctx context.Context, event ports.SetupSucceededEvent) error {
	if event.GatewayCustomerID == "" || event.PaymentMethod == "" {
		m.logger.Warn("setup succeeded event missing fields",
			ports.String("gateway_customer_id", event.GatewayCustomerID))
		return nil
	}

	var card *models.UserCard
	err := m.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		card, err = m.cardRepo.GetNewestInitByCustomer(ctx, tx, event.GatewayCustomerID)
		if err != nil {
			return err
		}
		if card == nil {
			return nil
		}

		if err := m.cardRepo.ClearDefaultByUser(ctx, tx, card.UserID); err != nil {
			return err
		}

		card.Token = &event.PaymentMethod
		card.Status = models.CardStatusSuccess
		card.IsDefault = true
		return m.cardRepo.Update(ctx, tx, card)
	})
	if err != nil {
		return fmt.Errorf("confirm card binding: %w", err)
	}
	if card == nil {
		m.logger.Warn("no card awaiting binding for customer",
			ports.String("gateway_customer_id", event.GatewayCustomerID))
		return nil
	}

	m.logger.Info("card bound",
		ports.String("card_id", card.ID),
		ports.String("user_id", card.UserID))

	m.notifyCardStatus(ctx, card.UserID, "success")
	return nil
}

// HandleSetupFailed marks the newest INIT row FAIL
func (m *Manager) HandleSetupFailed(ctx context.Context, event ports.SetupFailedEvent) error {
	if event.GatewayCustomerID == "" {
		m.logger.Warn("setup failed event missing customer")
		return nil
	}

	card, err := m.cardRepo.GetNewestInitByCustomer(ctx, nil, event.GatewayCustomerID)
	if err != nil {
		return fmt.Errorf("find card awaiting binding: %w", err)
	}
	if card == nil {
		m.logger.Warn("no card awaiting binding for customer",
			ports.String("gateway_customer_id", event.GatewayCustomerID))
		return nil
	}

	card.Status = models.CardStatusFail
	if err := m.cardRepo.Update(ctx, nil, card); err != nil {
		return fmt.Errorf("mark card binding failed: %w", err)
	}

	m.logger.Info("card binding failed",
		ports.String("card_id", card.ID),
		ports.String("user_id", card.UserID))

	m.notifyCardStatus(ctx, card.UserID, "fail")
	return nil
}

// SetDefault makes the given card the user's default. Cards that never
// finished binding are not selectable.
func (m *Manager) SetDefault(ctx context.Context, userID, cardID string) error {
	err := m.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		card, err := m.cardRepo.GetByID(ctx, tx, cardID)
		if err != nil {
			return err
		}
		if card.UserID != userID {
			return domain.ErrCardNotOwner
		}
		if card.Status != models.CardStatusSuccess {
			return domain.ErrCardNotFound
		}
		if card.IsDefault {
			return domain.ErrCardAlreadyDefault
		}

		if err := m.cardRepo.ClearDefaultByUser(ctx, tx, userID); err != nil {
			return err
		}

		card.IsDefault = true
		return m.cardRepo.Update(ctx, tx, card)
	})
	if err != nil {
		return err
	}

	m.logger.Info("default card changed",
		ports.String("user_id", userID),
		ports.String("card_id", cardID))

	return nil
}

// ListUserCards returns the user's successfully bound cards, newest first
func (m *Manager) ListUserCards(ctx context.Context, userID string) ([]*models.UserCard, error) {
	filters := map[string]interface{}{
		"user_id": userID,
		"status":  string(models.CardStatusSuccess),
	}

	cards, err := m.cardRepo.GetMany(ctx, nil, filters, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list user cards: %w", err)
	}
	if len(cards) == 0 {
		return nil, domain.ErrCardsNotFound
	}

	return cards, nil
}

// DeleteCard detaches the card at the gateway, removes the row and promotes
// the newest remaining bound card to default if the deleted one held it.
// The gateway detach comes first; a failed detach leaves the row in place.
func (m *Manager) DeleteCard(ctx context.Context, userID, cardID string) error {
	card, err := m.cardRepo.GetByID(ctx, nil, cardID)
	if err != nil {
		return err
	}
	if card.UserID != userID {
		return domain.ErrCardNotOwner
	}

	if card.Token != nil {
		if err := m.processor.DetachCard(ctx, *card.Token); err != nil {
			m.logger.Error("detach card at gateway",
				ports.String("card_id", cardID),
				ports.Err(err))
			return domain.WrapError(domain.ErrorCodeCardDetachFailed, "Sorry try again later", err)
		}
	}

	err = m.db.WithTransaction(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := m.cardRepo.Delete(ctx, tx, cardID); err != nil {
			return err
		}
		if !card.IsDefault {
			return nil
		}

		next, err := m.cardRepo.GetNewestSuccessByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}

		next.IsDefault = true
		return m.cardRepo.Update(ctx, tx, next)
	})
	if err != nil {
		return err
	}

	m.logger.Info("card deleted",
		ports.String("user_id", userID),
		ports.String("card_id", cardID))

	return nil
}

func (m *Manager) notifyCardStatus(ctx context.Context, userID, status string) {
	event := models.NotificationEvent{
		UserID: userID,
		NotificationData: models.NotificationData{
			Topic:  models.TopicCard,
			Status: status,
		},
	}

	if err := m.notifications.PublishNotification(ctx, event); err != nil {
		m.logger.Error("publish card notification",
			ports.String("user_id", userID),
			ports.String("status", status),
			ports.Err(err))
	}
}
