package transaction

import (
	"context"
	"fmt"

	"github.com/subwave/billing-service/internal/domain"
	"github.com/subwave/billing-service/internal/domain/models"
	"github.com/subwave/billing-service/internal/domain/ports"
)

// Service implements ports.TransactionService
type Service struct {
	db      ports.DBPort
	txnRepo ports.TransactionRepository
	logger  ports.Logger
}

// NewService creates a new transaction service
func NewService(db ports.DBPort, txnRepo ports.TransactionRepository, logger ports.Logger) *Service {
	return &Service{
		db:      db,
		txnRepo: txnRepo,
		logger:  logger,
	}
}

// Create writes a new PENDING transaction
func (s *Service) Create(ctx context.Context, req ports.CreateTransactionRequest) (*models.Transaction, error) {
	if req.Amount <= 0 {
		return nil, domain.NewDomainError(domain.ErrorCodeValidationFailed, "transaction amount must be positive")
	}

	paymentType := req.PaymentType
	if paymentType == "" {
		paymentType = models.PaymentTypeStripe
	}

	txn := &models.Transaction{
		SubscriptionID:  req.SubscriptionID,
		UserID:          req.UserID,
		UserCardID:      req.UserCardID,
		Amount:          req.Amount,
		PaymentType:     paymentType,
		Status:          models.TransactionStatusPending,
		GatewayIntentID: req.GatewayIntentID,
	}

	if err := s.txnRepo.Create(ctx, nil, txn); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	s.logger.Info("transaction created",
		ports.String("transaction_id", txn.ID),
		ports.String("subscription_id", txn.SubscriptionID),
		ports.Int64("amount", txn.Amount))

	return txn, nil
}

// Update applies a partial update to a transaction
func (s *Service) Update(ctx context.Context, id string, req ports.UpdateTransactionRequest) (*models.Transaction, error) {
	txn, err := s.txnRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	if req.GatewayIntentID != nil {
		txn.GatewayIntentID = req.GatewayIntentID
	}
	if req.Status != nil {
		txn.Status = *req.Status
	}

	if err := s.txnRepo.Update(ctx, nil, txn); err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}

	return txn, nil
}

// Get retrieves a transaction, enforcing ownership for non-admin callers
func (s *Service) Get(ctx context.Context, callerID string, admin bool, id string) (*models.Transaction, error) {
	txn, err := s.txnRepo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	if !admin && txn.UserID != callerID {
		return nil, domain.ErrAccessDenied
	}

	return txn, nil
}

// List returns transactions visible to the caller, newest first
func (s *Service) List(ctx context.Context, query ports.ListTransactionsQuery) ([]*models.Transaction, error) {
	filters := map[string]interface{}{}
	switch {
	case !query.Admin:
		filters["user_id"] = query.CallerID
	case query.UserID != "":
		filters["user_id"] = query.UserID
	}

	return s.txnRepo.GetMany(ctx, nil, filters, query.Limit, query.Offset)
}

// GetByIntentID retrieves the transaction holding the given gateway
// intent ID
func (s *Service) GetByIntentID(ctx context.Context, intentID string) (*models.Transaction, error) {
	return s.txnRepo.GetByIntentID(ctx, nil, intentID)
}

// GetNewestPendingBySubscription retrieves the newest PENDING transaction
// for a subscription
func (s *Service) GetNewestPendingBySubscription(ctx context.Context, subscriptionID string) (*models.Transaction, error) {
	filters := map[string]interface{}{
		"subscription_id": subscriptionID,
		"status":          string(models.TransactionStatusPending),
	}

	txns, err := s.txnRepo.GetMany(ctx, nil, filters, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(txns) == 0 {
		return nil, domain.ErrTransactionNotFound
	}

	return txns[0], nil
}
