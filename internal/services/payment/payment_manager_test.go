package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/subwave/billing-service/internal/domain"
	"github.com/subwave/billing-service/internal/domain/models"
	"github.com/subwave/billing-service/internal/domain/ports"
	"github.com/subwave/billing-service/pkg/observability"
)

// MockTransactionService mocks the transaction service
type MockTransactionService struct {
	mock.Mock
}

func (m *MockTransactionService) Create(ctx context.Context, req ports.CreateTransactionRequest) (*models.Transaction, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionService) Update(ctx context.Context, id string, req ports.UpdateTransactionRequest) (*models.Transaction, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionService) Get(ctx context.Context, callerID string, admin bool, id string) (*models.Transaction, error) {
	args := m.Called(ctx, callerID, admin, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionService) List(ctx context.Context, query ports.ListTransactionsQuery) ([]*models.Transaction, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionService) GetByIntentID(ctx context.Context, intentID string) (*models.Transaction, error) {
	args := m.Called(ctx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionService) GetNewestPendingBySubscription(ctx context.Context, subscriptionID string) (*models.Transaction, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

// MockCardRepository mocks the card repository
type MockCardRepository struct {
	mock.Mock
}

func (m *MockCardRepository) Create(ctx context.Context, tx ports.DBTX, card *models.UserCard) error {
	args := m.Called(ctx, tx, card)
	return args.Error(0)
}

func (m *MockCardRepository) GetByID(ctx context.Context, db ports.DBTX, id string) (*models.UserCard, error) {
	args := m.Called(ctx, db, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserCard), args.Error(1)
}

func (m *MockCardRepository) GetMany(ctx context.Context, db ports.DBTX, filters map[string]interface{}, limit, offset int32) ([]*models.UserCard, error) {
	args := m.Called(ctx, db, filters, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UserCard), args.Error(1)
}

func (m *MockCardRepository) Update(ctx context.Context, tx ports.DBTX, card *models.UserCard) error {
	args := m.Called(ctx, tx, card)
	return args.Error(0)
}

func (m *MockCardRepository) Delete(ctx context.Context, tx ports.DBTX, id string) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func (m *MockCardRepository) GetDefaultByUser(ctx context.Context, db ports.DBTX, userID string) (*models.UserCard, error) {
	args := m.Called(ctx, db, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserCard), args.Error(1)
}

func (m *MockCardRepository) GetNewestInitByCustomer(ctx context.Context, db ports.DBTX, gatewayCustomerID string) (*models.UserCard, error) {
	args := m.Called(ctx, db, gatewayCustomerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserCard), args.Error(1)
}

func (m *MockCardRepository) GetNewestSuccessByUser(ctx context.Context, db ports.DBTX, userID string) (*models.UserCard, error) {
	args := m.Called(ctx, db, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserCard), args.Error(1)
}

func (m *MockCardRepository) ClearDefaultByUser(ctx context.Context, tx ports.DBTX, userID string) error {
	args := m.Called(ctx, tx, userID)
	return args.Error(0)
}

// MockPaymentProcessor mocks the payment gateway
type MockPaymentProcessor struct {
	mock.Mock
}

func (m *MockPaymentProcessor) CreateCustomer(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentProcessor) CreateCardBindingSession(ctx context.Context, customerID string) (string, error) {
	args := m.Called(ctx, customerID)
	return args.String(0), args.Error(1)
}

func (m *MockPaymentProcessor) DetachCard(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

func (m *MockPaymentProcessor) CreatePaymentIntent(ctx context.Context, params ports.PaymentIntentParams) (*ports.PaymentIntentResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ports.PaymentIntentResult), args.Error(1)
}

func (m *MockPaymentProcessor) CancelPaymentIntent(ctx context.Context, intentID string) error {
	args := m.Called(ctx, intentID)
	return args.Error(0)
}

func chargeableCard() *models.UserCard {
	token := "pm_1"
	return &models.UserCard{
		ID:                "card-1",
		UserID:            "user-1",
		GatewayCustomerID: "cus_1",
		Token:             &token,
		Status:            models.CardStatusSuccess,
		IsDefault:         true,
	}
}

func chargeRequest() ports.ChargeSubscriptionRequest {
	return ports.ChargeSubscriptionRequest{
		UserID:         "user-1",
		CardID:         "card-1",
		SubscriptionID: "sub-1",
		Amount:         29900,
		Currency:       "usd",
	}
}

func newTestManager(transactions *MockTransactionService, cardRepo *MockCardRepository, processor *MockPaymentProcessor) *Manager {
	return NewManager(transactions, cardRepo, processor, observability.NewZapLogger(zap.NewNop()))
}

func TestChargeSubscription(t *testing.T) {
	cardRepo := new(MockCardRepository)
	transactions := new(MockTransactionService)
	processor := new(MockPaymentProcessor)

	cardRepo.On("GetByID", mock.Anything, nil, "card-1").Return(chargeableCard(), nil)
	transactions.On("Create", mock.Anything, ports.CreateTransactionRequest{
		SubscriptionID: "sub-1",
		UserID:         "user-1",
		UserCardID:     "card-1",
		Amount:         29900,
		PaymentType:    models.PaymentTypeStripe,
	}).Return(&models.Transaction{ID: "txn-1", Status: models.TransactionStatusPending}, nil)
	processor.On("CreatePaymentIntent", mock.Anything, ports.PaymentIntentParams{
		Amount:         29900,
		Currency:       "usd",
		CustomerID:     "cus_1",
		PaymentMethod:  "pm_1",
		SubscriptionID: "sub-1",
		UserID:         "user-1",
	}).Return(&ports.PaymentIntentResult{IntentID: "pi_1"}, nil)
	transactions.On("Update", mock.Anything, "txn-1", mock.MatchedBy(func(req ports.UpdateTransactionRequest) bool {
		return req.GatewayIntentID != nil && *req.GatewayIntentID == "pi_1" && req.Status == nil
	})).Return(&models.Transaction{ID: "txn-1", Status: models.TransactionStatusPending}, nil)

	mgr := newTestManager(transactions, cardRepo, processor)

	txn, err := mgr.ChargeSubscription(context.Background(), chargeRequest())

	require.NoError(t, err)
	assert.Equal(t, "txn-1", txn.ID)
	transactions.AssertExpectations(t)
	processor.AssertExpectations(t)
}

func TestChargeSubscriptionCardNotOwner(t *testing.T) {
	card := chargeableCard()
	card.UserID = "user-2"

	cardRepo := new(MockCardRepository)
	cardRepo.On("GetByID", mock.Anything, nil, "card-1").Return(card, nil)

	transactions := new(MockTransactionService)

	mgr := newTestManager(transactions, cardRepo, new(MockPaymentProcessor))

	_, err := mgr.ChargeSubscription(context.Background(), chargeRequest())

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeCardNotOwner))
	transactions.AssertNotCalled(t, "Create")
}

func TestChargeSubscriptionUnboundCard(t *testing.T) {
	card := chargeableCard()
	card.Status = models.CardStatusInit
	card.Token = nil

	cardRepo := new(MockCardRepository)
	cardRepo.On("GetByID", mock.Anything, nil, "card-1").Return(card, nil)

	mgr := newTestManager(new(MockTransactionService), cardRepo, new(MockPaymentProcessor))

	_, err := mgr.ChargeSubscription(context.Background(), chargeRequest())

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeCardNotFound))
}

func TestChargeSubscriptionGatewayFails(t *testing.T) {
	cardRepo := new(MockCardRepository)
	transactions := new(MockTransactionService)
	processor := new(MockPaymentProcessor)

	cardRepo.On("GetByID", mock.Anything, nil, "card-1").Return(chargeableCard(), nil)
	transactions.On("Create", mock.Anything, mock.Anything).
		Return(&models.Transaction{ID: "txn-1", Status: models.TransactionStatusPending}, nil)
	processor.On("CreatePaymentIntent", mock.Anything, mock.Anything).
		Return(nil, errors.New("card declined"))
	transactions.On("Update", mock.Anything, "txn-1", mock.MatchedBy(func(req ports.UpdateTransactionRequest) bool {
		return req.Status != nil && *req.Status == models.TransactionStatusFailed
	})).Return(&models.Transaction{ID: "txn-1", Status: models.TransactionStatusFailed}, nil)

	mgr := newTestManager(transactions, cardRepo, processor)

	_, err := mgr.ChargeSubscription(context.Background(), chargeRequest())

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodePaymentCreate))
	transactions.AssertExpectations(t)
}

func TestHandlePaymentSucceeded(t *testing.T) {
	intentID := "pi_1"
	pending := &models.Transaction{ID: "txn-1", GatewayIntentID: &intentID, Status: models.TransactionStatusPending}

	transactions := new(MockTransactionService)
	transactions.On("GetByIntentID", mock.Anything, "pi_1").Return(pending, nil)
	transactions.On("Update", mock.Anything, "txn-1", mock.MatchedBy(func(req ports.UpdateTransactionRequest) bool {
		return req.Status != nil && *req.Status == models.TransactionStatusSuccess
	})).Return(&models.Transaction{ID: "txn-1", Status: models.TransactionStatusSuccess}, nil)

	mgr := newTestManager(transactions, new(MockCardRepository), new(MockPaymentProcessor))

	txn, err := mgr.HandlePaymentSucceeded(context.Background(), ports.PaymentEvent{IntentID: "pi_1"})

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, txn.Status)
}

func TestHandlePaymentSucceededRedelivery(t *testing.T) {
	intentID := "pi_1"
	settled := &models.Transaction{ID: "txn-1", GatewayIntentID: &intentID, Status: models.TransactionStatusSuccess}

	transactions := new(MockTransactionService)
	transactions.On("GetByIntentID", mock.Anything, "pi_1").Return(settled, nil)

	mgr := newTestManager(transactions, new(MockCardRepository), new(MockPaymentProcessor))

	txn, err := mgr.HandlePaymentSucceeded(context.Background(), ports.PaymentEvent{IntentID: "pi_1"})

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, txn.Status)
	transactions.AssertNotCalled(t, "Update")
}

func TestHandlePaymentSucceededReattachesLostIntent(t *testing.T) {
	transactions := new(MockTransactionService)
	transactions.On("GetByIntentID", mock.Anything, "pi_1").Return(nil, domain.ErrTransactionNotFound)
	transactions.On("GetNewestPendingBySubscription", mock.Anything, "sub-1").
		Return(&models.Transaction{ID: "txn-1", SubscriptionID: "sub-1", Status: models.TransactionStatusPending}, nil)
	transactions.On("Update", mock.Anything, "txn-1", mock.MatchedBy(func(req ports.UpdateTransactionRequest) bool {
		return req.GatewayIntentID != nil && *req.GatewayIntentID == "pi_1"
	})).Return(&models.Transaction{ID: "txn-1", SubscriptionID: "sub-1", Status: models.TransactionStatusPending}, nil).Once()
	transactions.On("Update", mock.Anything, "txn-1", mock.MatchedBy(func(req ports.UpdateTransactionRequest) bool {
		return req.Status != nil && *req.Status == models.TransactionStatusSuccess
	})).Return(&models.Transaction{ID: "txn-1", Status: models.TransactionStatusSuccess}, nil).Once()

	mgr := newTestManager(transactions, new(MockCardRepository), new(MockPaymentProcessor))

	txn, err := mgr.HandlePaymentSucceeded(context.Background(), ports.PaymentEvent{IntentID: "pi_1", SubscriptionID: "sub-1"})

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, txn.Status)
	transactions.AssertExpectations(t)
}

func TestHandlePaymentSucceededUnknownIntent(t *testing.T) {
	transactions := new(MockTransactionService)
	transactions.On("GetByIntentID", mock.Anything, "pi_foreign").Return(nil, domain.ErrTransactionNotFound)

	mgr := newTestManager(transactions, new(MockCardRepository), new(MockPaymentProcessor))

	_, err := mgr.HandlePaymentSucceeded(context.Background(), ports.PaymentEvent{IntentID: "pi_foreign"})

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTxnNotFound))
}

func TestHandlePaymentFailedDropsAfterSuccess(t *testing.T) {
	intentID := "pi_1"
	settled := &models.Transaction{ID: "txn-1", GatewayIntentID: &intentID, Status: models.TransactionStatusSuccess}

	transactions := new(MockTransactionService)
	transactions.On("GetByIntentID", mock.Anything, "pi_1").Return(settled, nil)

	mgr := newTestManager(transactions, new(MockCardRepository), new(MockPaymentProcessor))

	txn, err := mgr.HandlePaymentFailed(context.Background(), ports.PaymentEvent{IntentID: "pi_1"})

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusSuccess, txn.Status)
	transactions.AssertNotCalled(t, "Update")
}

func TestHandlePaymentRefunded(t *testing.T) {
	intentID := "pi_1"
	settled := &models.Transaction{ID: "txn-1", GatewayIntentID: &intentID, Status: models.TransactionStatusSuccess}

	transactions := new(MockTransactionService)
	transactions.On("GetByIntentID", mock.Anything, "pi_1").Return(settled, nil)
	transactions.On("Update", mock.Anything, "txn-1", mock.MatchedBy(func(req ports.UpdateTransactionRequest) bool {
		return req.Status != nil && *req.Status == models.TransactionStatusRefunded
	})).Return(&models.Transaction{ID: "txn-1", Status: models.TransactionStatusRefunded}, nil)

	mgr := newTestManager(transactions, new(MockCardRepository), new(MockPaymentProcessor))

	txn, err := mgr.HandlePaymentRefunded(context.Background(), ports.PaymentEvent{IntentID: "pi_1"})

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusRefunded, txn.Status)
}

func TestHandlePaymentRefundedDropsFailedTransaction(t *testing.T) {
	intentID := "pi_1"
	failed := &models.Transaction{ID: "txn-1", GatewayIntentID: &intentID, Status: models.TransactionStatusFailed}

	transactions := new(MockTransactionService)
	transactions.On("GetByIntentID", mock.Anything, "pi_1").Return(failed, nil)

	mgr := newTestManager(transactions, new(MockCardRepository), new(MockPaymentProcessor))

	txn, err := mgr.HandlePaymentRefunded(context.Background(), ports.PaymentEvent{IntentID: "pi_1"})

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusFailed, txn.Status)
	transactions.AssertNotCalled(t, "Update")
}

func TestVoidPendingPayment(t *testing.T) {
	intentID := "pi_1"
	pending := &models.Transaction{ID: "txn-1", GatewayIntentID: &intentID, Status: models.TransactionStatusPending}

	transactions := new(MockTransactionService)
	processor := new(MockPaymentProcessor)
	transactions.On("GetNewestPendingBySubscription", mock.Anything, "sub-1").Return(pending, nil)
	processor.On("CancelPaymentIntent", mock.Anything, "pi_1").Return(nil)
	transactions.On("Update", mock.Anything, "txn-1", mock.MatchedBy(func(req ports.UpdateTransactionRequest) bool {
		return req.Status != nil && *req.Status == models.TransactionStatusFailed
	})).Return(&models.Transaction{ID: "txn-1", Status: models.TransactionStatusFailed}, nil)

	mgr := newTestManager(transactions, new(MockCardRepository), processor)

	err := mgr.VoidPendingPayment(context.Background(), "sub-1")

	require.NoError(t, err)
	transactions.AssertExpectations(t)
	processor.AssertExpectations(t)
}

func TestVoidPendingPaymentNothingPending(t *testing.T) {
	transactions := new(MockTransactionService)
	transactions.On("GetNewestPendingBySubscription", mock.Anything, "sub-1").
		Return(nil, domain.ErrTransactionNotFound)

	processor := new(MockPaymentProcessor)
	mgr := newTestManager(transactions, new(MockCardRepository), processor)

	err := mgr.VoidPendingPayment(context.Background(), "sub-1")

	require.NoError(t, err)
	processor.AssertNotCalled(t, "CancelPaymentIntent")
}

func TestVoidPendingPaymentCancelRefusedLeavesPending(t *testing.T) {
	intentID := "pi_1"
	pending := &models.Transaction{ID: "txn-1", GatewayIntentID: &intentID, Status: models.TransactionStatusPending}

	transactions := new(MockTransactionService)
	processor := new(MockPaymentProcessor)
	transactions.On("GetNewestPendingBySubscription", mock.Anything, "sub-1").Return(pending, nil)
	processor.On("CancelPaymentIntent", mock.Anything, "pi_1").Return(errors.New("intent already captured"))

	mgr := newTestManager(transactions, new(MockCardRepository), processor)

	err := mgr.VoidPendingPayment(context.Background(), "sub-1")

	require.NoError(t, err)
	transactions.AssertNotCalled(t, "Update")
}

func TestVoidPendingPaymentWithoutIntentJustFails(t *testing.T) {
	pending := &models.Transaction{ID: "txn-1", Status: models.TransactionStatusPending}

	transactions := new(MockTransactionService)
	processor := new(MockPaymentProcessor)
	transactions.On("GetNewestPendingBySubscription", mock.Anything, "sub-1").Return(pending, nil)
	transactions.On("Update", mock.Anything, "txn-1", mock.MatchedBy(func(req ports.UpdateTransactionRequest) bool {
		return req.Status != nil && *req.Status == models.TransactionStatusFailed
	})).Return(&models.Transaction{ID: "txn-1", Status: models.TransactionStatusFailed}, nil)

	mgr := newTestManager(transactions, new(MockCardRepository), processor)

	err := mgr.VoidPendingPayment(context.Background(), "sub-1")

	require.NoError(t, err)
	processor.AssertNotCalled(t, "CancelPaymentIntent")
	transactions.AssertExpectations(t)
}
