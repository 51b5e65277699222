package transaction

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/subwave/billing-service/internal/domain"
	"github.com/subwave/billing-service/internal/domain/models"
	"github.com/subwave/billing-service/internal/domain/ports"
	"github.com/subwave/billing-service/pkg/observability"
)

// MockDBPort mocks the database port
type MockDBPort struct {
	mock.Mock
}

func (m *MockDBPort) GetDB() *pgxpool.Pool {
	return nil
}

func (m *MockDBPort) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

func (m *MockDBPort) WithReadOnlyTransaction(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	return fn(ctx, nil)
}

// MockTransactionRepository mocks the transaction repository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, tx ports.DBTX, txn *models.Transaction) error {
	args := m.Called(ctx, tx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, tx ports.DBTX, id string) (*models.Transaction, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetMany(ctx context.Context, tx ports.DBTX, filters map[string]interface{}, limit, offset int32) ([]*models.Transaction, error) {
	args := m.Called(ctx, tx, filters, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Update(ctx context.Context, tx ports.DBTX, txn *models.Transaction) error {
	args := m.Called(ctx, tx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByIntentID(ctx context.Context, tx ports.DBTX, intentID string) (*models.Transaction, error) {
	args := m.Called(ctx, tx, intentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func newTestService(repo *MockTransactionRepository) *Service {
	return NewService(new(MockDBPort), repo, observability.NewZapLogger(zap.NewNop()))
}

func TestCreateTransaction(t *testing.T) {
	repo := new(MockTransactionRepository)
	repo.On("Create", mock.Anything, nil, mock.MatchedBy(func(txn *models.Transaction) bool {
		return txn.Status == models.TransactionStatusPending && txn.PaymentType == models.PaymentTypeStripe
	})).Return(nil)

	svc := newTestService(repo)

	txn, err := svc.Create(context.Background(), ports.CreateTransactionRequest{
		SubscriptionID: "sub-1",
		UserID:         "user-1",
		UserCardID:     "card-1",
		Amount:         29900,
	})

	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
	repo.AssertExpectations(t)
}

func TestCreateTransactionRejectsNonPositiveAmount(t *testing.T) {
	svc := newTestService(new(MockTransactionRepository))

	_, err := svc.Create(context.Background(), ports.CreateTransactionRequest{
		SubscriptionID: "sub-1",
		UserID:         "user-1",
		Amount:         0,
	})

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeValidationFailed))
}

func TestUpdateTransactionAttachesIntent(t *testing.T) {
	existing := &models.Transaction{ID: "txn-1", Status: models.TransactionStatusPending}

	repo := new(MockTransactionRepository)
	repo.On("GetByID", mock.Anything, nil, "txn-1").Return(existing, nil)
	repo.On("Update", mock.Anything, nil, mock.MatchedBy(func(txn *models.Transaction) bool {
		return txn.GatewayIntentID != nil && *txn.GatewayIntentID == "pi_123"
	})).Return(nil)

	svc := newTestService(repo)

	intentID := "pi_123"
	txn, err := svc.Update(context.Background(), "txn-1", ports.UpdateTransactionRequest{GatewayIntentID: &intentID})

	require.NoError(t, err)
	require.NotNil(t, txn.GatewayIntentID)
	assert.Equal(t, "pi_123", *txn.GatewayIntentID)
}

func TestGetTransactionOwnership(t *testing.T) {
	txn := &models.Transaction{ID: "txn-1", UserID: "user-1"}

	repo := new(MockTransactionRepository)
	repo.On("GetByID", mock.Anything, nil, "txn-1").Return(txn, nil)

	svc := newTestService(repo)

	t.Run("owner reads own", func(t *testing.T) {
		got, err := svc.Get(context.Background(), "user-1", false, "txn-1")
		require.NoError(t, err)
		assert.Equal(t, "txn-1", got.ID)
	})

	t.Run("non-owner denied", func(t *testing.T) {
		_, err := svc.Get(context.Background(), "user-2", false, "txn-1")
		require.Error(t, err)
		assert.True(t, domain.IsDomainError(err, domain.ErrorCodeAuthAccessDenied))
	})

	t.Run("admin reads any", func(t *testing.T) {
		got, err := svc.Get(context.Background(), "admin-1", true, "txn-1")
		require.NoError(t, err)
		assert.Equal(t, "txn-1", got.ID)
	})
}

func TestListTransactionsScoping(t *testing.T) {
	repo := new(MockTransactionRepository)

	svc := newTestService(repo)

	t.Run("non-admin scoped to self", func(t *testing.T) {
		repo.On("GetMany", mock.Anything, nil, map[string]interface{}{"user_id": "user-1"}, int32(50), int32(0)).
			Return([]*models.Transaction{{ID: "txn-1"}}, nil).Once()

		txns, err := svc.List(context.Background(), ports.ListTransactionsQuery{CallerID: "user-1", Limit: 50})
		require.NoError(t, err)
		assert.Len(t, txns, 1)
	})

	t.Run("admin sees all", func(t *testing.T) {
		repo.On("GetMany", mock.Anything, nil, map[string]interface{}{}, int32(50), int32(0)).
			Return([]*models.Transaction{{ID: "txn-1"}, {ID: "txn-2"}}, nil).Once()

		txns, err := svc.List(context.Background(), ports.ListTransactionsQuery{CallerID: "admin-1", Admin: true, Limit: 50})
		require.NoError(t, err)
		assert.Len(t, txns, 2)
	})

	t.Run("admin filters by user", func(t *testing.T) {
		repo.On("GetMany", mock.Anything, nil, map[string]interface{}{"user_id": "user-2"}, int32(50), int32(0)).
			Return([]*models.Transaction{}, nil).Once()

		_, err := svc.List(context.Background(), ports.ListTransactionsQuery{CallerID: "admin-1", Admin: true, UserID: "user-2", Limit: 50})
		require.NoError(t, err)
	})
}

func TestGetByIntentID(t *testing.T) {
	repo := new(MockTransactionRepository)
	repo.On("GetByIntentID", mock.Anything, nil, "pi_404").Return(nil, domain.ErrTransactionNotFound)

	svc := newTestService(repo)

	_, err := svc.GetByIntentID(context.Background(), "pi_404")
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTxnNotFound))
}

func TestGetNewestPendingBySubscription(t *testing.T) {
	repo := new(MockTransactionRepository)
	repo.On("GetMany", mock.Anything, nil, map[string]interface{}{
		"subscription_id": "sub-1",
		"status":          "pending",
	}, int32(1), int32(0)).
		Return([]*models.Transaction{{ID: "txn-1", SubscriptionID: "sub-1"}}, nil)

	svc := newTestService(repo)

	txn, err := svc.GetNewestPendingBySubscription(context.Background(), "sub-1")

	require.NoError(t, err)
	assert.Equal(t, "txn-1", txn.ID)
}

func TestGetNewestPendingBySubscriptionNone(t *testing.T) {
	repo := new(MockTransactionRepository)
	repo.On("GetMany", mock.Anything, nil, mock.Anything, int32(1), int32(0)).
		Return([]*models.Transaction{}, nil)

	svc := newTestService(repo)

	_, err := svc.GetNewestPendingBySubscription(context.Background(), "sub-1")

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeTxnNotFound))
}
