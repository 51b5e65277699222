package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/subwave/billing-service/internal/domain"
	"github.com/subwave/billing-service/internal/domain/models"
	"github.com/subwave/billing-service/internal/domain/ports"
	pkgerrors "github.com/subwave/billing-service/pkg/errors"
	"github.com/subwave/billing-service/pkg/observability"
)

// Manager implements ports.PaymentManager. A charge is recorded as a
// PENDING transaction before the gateway call so every intent has a row,
// then the intent ID is attached once the gateway answers. Webhook events
// settle the final status.
type Manager struct {
	transactions ports.TransactionService
	cardRepo     ports.CardRepository
	processor    ports.PaymentProcessor
	logger       ports.Logger
}

// NewManager creates a new payment manager
func NewManager(
	transactions ports.TransactionService,
	cardRepo ports.CardRepository,
	processor ports.PaymentProcessor,
	logger ports.Logger,
) *Manager {
	return &Manager{
		transactions: transactions,
		cardRepo:     cardRepo,
		processor:    processor,
		logger:       logger,
	}
}

// ChargeSubscription verifies the card, records a PENDING transaction and
// creates a confirmed off-session payment intent for it
func (m *Manager) ChargeSubscription(ctx context.Context, req ports.ChargeSubscriptionRequest) (*models.Transaction, error) {
	card, err := m.cardRepo.GetByID(ctx, nil, req.CardID)
	if err != nil {
		return nil, err
	}
	if card.UserID != req.UserID {
		return nil, domain.ErrCardNotOwner
	}
	if !card.IsChargeable() {
		return nil, domain.ErrCardNotFound
	}

	txn, err := m.transactions.Create(ctx, ports.CreateTransactionRequest{
		SubscriptionID: req.SubscriptionID,
		UserID:         req.UserID,
		UserCardID:     card.ID,
		Amount:         req.Amount,
		PaymentType:    models.PaymentTypeStripe,
	})
	if err != nil {
		return nil, fmt.Errorf("record pending transaction: %w", err)
	}

	start := time.Now()
	result, err := m.processor.CreatePaymentIntent(ctx, ports.PaymentIntentParams{
		Amount:         req.Amount,
		Currency:       req.Currency,
		CustomerID:     card.GatewayCustomerID,
		PaymentMethod:  *card.Token,
		SubscriptionID: req.SubscriptionID,
		UserID:         req.UserID,
	})
	duration := time.Since(start).Seconds()

	if err != nil {
		observability.RecordPaymentIntent("failed", req.Amount, duration)

		failed := models.TransactionStatusFailed
		if _, updateErr := m.transactions.Update(ctx, txn.ID, ports.UpdateTransactionRequest{Status: &failed}); updateErr != nil {
			m.logger.Error("mark transaction failed",
				ports.String("transaction_id", txn.ID),
				ports.Err(updateErr))
		}

		m.logger.Error("create payment intent",
			ports.String("transaction_id", txn.ID),
			ports.String("subscription_id", req.SubscriptionID),
			ports.Bool("retriable", pkgerrors.IsRetriable(err)),
			ports.Err(err))

		return nil, domain.WrapError(domain.ErrorCodePaymentCreate, "Payment creation failed", err)
	}

	observability.RecordPaymentIntent("succeeded", req.Amount, duration)

	updated, err := m.transactions.Update(ctx, txn.ID, ports.UpdateTransactionRequest{GatewayIntentID: &result.IntentID})
	if err != nil {
		// The intent exists at the gateway. Its webhook re-attaches the
		// ID through the subscription metadata, so the charge stands.
		m.logger.Error("attach intent to transaction",
			ports.String("transaction_id", txn.ID),
			ports.String("intent_id", result.IntentID),
			ports.Err(err))
		return nil, fmt.Errorf("attach intent to transaction: %w", err)
	}

	m.logger.Info("payment intent created",
		ports.String("transaction_id", updated.ID),
		ports.String("intent_id", result.IntentID),
		ports.String("subscription_id", req.SubscriptionID),
		ports.Int64("amount", req.Amount))

	return updated, nil
}

// HandlePaymentSucceeded marks the transaction behind the intent SUCCESS
func (m *Manager) HandlePaymentSucceeded(ctx context.Context, event ports.PaymentEvent) (*models.Transaction, error) {
	return m.settle(ctx, event, models.TransactionStatusSuccess)
}

// HandlePaymentFailed marks the transaction FAILED
func (m *Manager) HandlePaymentFailed(ctx context.Context, event ports.PaymentEvent) (*models.Transaction, error) {
	return m.settle(ctx, event, models.TransactionStatusFailed)
}

// HandlePaymentRefunded marks the transaction REFUNDED. Refunds land on
// already-settled transactions, so SUCCESS is a valid starting state here.
func (m *Manager) HandlePaymentRefunded(ctx context.Context, event ports.PaymentEvent) (*models.Transaction, error) {
	txn, err := m.resolveTransaction(ctx, event)
	if err != nil {
		return nil, err
	}
	if txn.Status == models.TransactionStatusRefunded {
		return txn, nil
	}
	if txn.Status == models.TransactionStatusFailed {
		m.logger.Warn("dropping refund for failed transaction",
			ports.String("transaction_id", txn.ID),
			ports.String("intent_id", event.IntentID))
		return txn, nil
	}

	return m.transition(ctx, txn, models.TransactionStatusRefunded)
}

// VoidPendingPayment cancels the gateway intent behind the subscription's
// newest PENDING transaction and marks it FAILED. When the intent refuses
// to cancel (it may already be settling) the transaction stays PENDING
// for its webhook to finish.
func (m *Manager) VoidPendingPayment(ctx context.Context, subscriptionID string) error {
	txn, err := m.transactions.GetNewestPendingBySubscription(ctx, subscriptionID)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrorCodeTxnNotFound) {
			return nil
		}
		return err
	}

	if txn.GatewayIntentID != nil {
		if err := m.processor.CancelPaymentIntent(ctx, *txn.GatewayIntentID); err != nil {
			m.logger.Warn("cancel payment intent",
				ports.String("transaction_id", txn.ID),
				ports.String("intent_id", *txn.GatewayIntentID),
				ports.Err(err))
			return nil
		}
	}

	failed := models.TransactionStatusFailed
	if _, err := m.transactions.Update(ctx, txn.ID, ports.UpdateTransactionRequest{Status: &failed}); err != nil {
		return fmt.Errorf("mark voided transaction failed: %w", err)
	}

	m.logger.Info("pending payment voided",
		ports.String("transaction_id", txn.ID),
		ports.String("subscription_id", subscriptionID))

	return nil
}

// settle moves a PENDING transaction to the given terminal status.
// Redeliveries find the transaction already settled and no-op.
func (m *Manager) settle(ctx context.Context, event ports.PaymentEvent, target models.TransactionStatus) (*models.Transaction, error) {
	txn, err := m.resolveTransaction(ctx, event)
	if err != nil {
		return nil, err
	}
	if txn.Status == target {
		return txn, nil
	}
	if txn.Status.IsTerminal() {
		m.logger.Warn("dropping payment event for settled transaction",
			ports.String("transaction_id", txn.ID),
			ports.String("intent_id", event.IntentID),
			ports.String("status", string(txn.Status)),
			ports.String("target", string(target)))
		return txn, nil
	}

	return m.transition(ctx, txn, target)
}

// resolveTransaction finds the transaction for a payment event. When the
// intent ID was never attached (the attach write was lost), the newest
// PENDING transaction for the intent's subscription takes the event.
func (m *Manager) resolveTransaction(ctx context.Context, event ports.PaymentEvent) (*models.Transaction, error) {
	txn, err := m.transactions.GetByIntentID(ctx, event.IntentID)
	if err == nil {
		return txn, nil
	}
	if !domain.IsDomainError(err, domain.ErrorCodeTxnNotFound) || event.SubscriptionID == "" {
		return nil, err
	}

	txn, err = m.transactions.GetNewestPendingBySubscription(ctx, event.SubscriptionID)
	if err != nil {
		return nil, err
	}

	m.logger.Warn("re-attaching intent to transaction",
		ports.String("transaction_id", txn.ID),
		ports.String("intent_id", event.IntentID),
		ports.String("subscription_id", event.SubscriptionID))

	return m.transactions.Update(ctx, txn.ID, ports.UpdateTransactionRequest{GatewayIntentID: &event.IntentID})
}

func (m *Manager) transition(ctx context.Context, txn *models.Transaction, target models.TransactionStatus) (*models.Transaction, error) {
	updated, err := m.transactions.Update(ctx, txn.ID, ports.UpdateTransactionRequest{Status: &target})
	if err != nil {
		return nil, fmt.Errorf("update transaction status: %w", err)
	}

	m.logger.Info("transaction settled",
		ports.String("transaction_id", updated.ID),
		ports.String("status", string(target)))

	return updated, nil
}
