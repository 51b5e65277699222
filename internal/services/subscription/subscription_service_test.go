package subscription

import (
	"context"
	"testing"
	"time"

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

// MockSubscriptionRepository mocks the subscription repository
type MockSubscriptionRepository struct {
	mock.Mock
}

func (m *MockSubscriptionRepository) Create(ctx context.Context, tx ports.DBTX, sub *models.Subscription) error {
	args := m.Called(ctx, tx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) GetByID(ctx context.Context, tx ports.DBTX, id string) (*models.Subscription, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) GetMany(ctx context.Context, tx ports.DBTX, filters map[string]interface{}, limit, offset int32) ([]*models.Subscription, error) {
	args := m.Called(ctx, tx, filters, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) Update(ctx context.Context, tx ports.DBTX, sub *models.Subscription) error {
	args := m.Called(ctx, tx, sub)
	return args.Error(0)
}

func (m *MockSubscriptionRepository) GetCurrentByUser(ctx context.Context, tx ports.DBTX, userID string) (*models.Subscription, error) {
	args := m.Called(ctx, tx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionRepository) ListActiveDue(ctx context.Context, tx ports.DBTX, dueDate time.Time, limit int32) ([]*models.Subscription, error) {
	args := m.Called(ctx, tx, dueDate, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

// MockPlanRepository mocks the plan repository
type MockPlanRepository struct {
	mock.Mock
}

func (m *MockPlanRepository) Create(ctx context.Context, tx ports.DBTX, plan *models.SubscriptionPlan) error {
	args := m.Called(ctx, tx, plan)
	return args.Error(0)
}

func (m *MockPlanRepository) GetByID(ctx context.Context, tx ports.DBTX, id string) (*models.SubscriptionPlan, error) {
	args := m.Called(ctx, tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionPlan), args.Error(1)
}

func (m *MockPlanRepository) GetMany(ctx context.Context, tx ports.DBTX, filters map[string]interface{}, limit, offset int32) ([]*models.SubscriptionPlan, error) {
	args := m.Called(ctx, tx, filters, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SubscriptionPlan), args.Error(1)
}

func (m *MockPlanRepository) Update(ctx context.Context, tx ports.DBTX, plan *models.SubscriptionPlan) error {
	args := m.Called(ctx, tx, plan)
	return args.Error(0)
}

func (m *MockPlanRepository) Delete(ctx context.Context, tx ports.DBTX, id string) error {
	args := m.Called(ctx, tx, id)
	return args.Error(0)
}

func testPlan() *models.SubscriptionPlan {
	return &models.SubscriptionPlan{
		ID:           "plan-1",
		Title:        "monthly",
		Price:        29900,
		DurationDays: 30,
	}
}

func newTestService(subRepo *MockSubscriptionRepository, planRepo *MockPlanRepository) *Service {
	return NewService(new(MockDBPort), subRepo, planRepo, observability.NewZapLogger(zap.NewNop()))
}

func TestCreateSubscription(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	planRepo := new(MockPlanRepository)

	planRepo.On("GetByID", mock.Anything, nil, "plan-1").Return(testPlan(), nil)
	subRepo.On("GetCurrentByUser", mock.Anything, nil, "user-1").Return(nil, nil)
	subRepo.On("Create", mock.Anything, nil, mock.MatchedBy(func(sub *models.Subscription) bool {
		return sub.Status == models.SubscriptionStatusPending && sub.AutoRenewal
	})).Return(nil)

	svc := newTestService(subRepo, planRepo)

	sub, err := svc.Create(context.Background(), "user-1", ports.CreateSubscriptionRequest{
		PlanID:      "plan-1",
		AutoRenewal: true,
	})

	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusPending, sub.Status)
	assert.WithinDuration(t, sub.StartDate.AddDate(0, 0, 30), sub.EndDate, time.Second)
	subRepo.AssertExpectations(t)
}

func TestCreateSubscriptionActiveExists(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	planRepo := new(MockPlanRepository)

	planRepo.On("GetByID", mock.Anything, nil, "plan-1").Return(testPlan(), nil)
	subRepo.On("GetCurrentByUser", mock.Anything, nil, "user-1").
		Return(&models.Subscription{ID: "sub-0", Status: models.SubscriptionStatusActive}, nil)

	svc := newTestService(subRepo, planRepo)

	_, err := svc.Create(context.Background(), "user-1", ports.CreateSubscriptionRequest{PlanID: "plan-1"})

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeSubActiveExists))
	subRepo.AssertNotCalled(t, "Create")
}

func TestCreateSubscriptionRaceLoserMapsToActiveExists(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	planRepo := new(MockPlanRepository)

	planRepo.On("GetByID", mock.Anything, nil, "plan-1").Return(testPlan(), nil)
	subRepo.On("GetCurrentByUser", mock.Anything, nil, "user-1").Return(nil, nil)
	// The unique index fires for the request that loses the race
	subRepo.On("Create", mock.Anything, nil, mock.Anything).Return(domain.ErrActiveSubscription)

	svc := newTestService(subRepo, planRepo)

	_, err := svc.Create(context.Background(), "user-1", ports.CreateSubscriptionRequest{PlanID: "plan-1"})

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeSubActiveExists))
}

func TestCreateSubscriptionArchivedPlan(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	planRepo := new(MockPlanRepository)

	archived := testPlan()
	archived.IsArchive = true
	planRepo.On("GetByID", mock.Anything, nil, "plan-1").Return(archived, nil)

	svc := newTestService(subRepo, planRepo)

	_, err := svc.Create(context.Background(), "user-1", ports.CreateSubscriptionRequest{PlanID: "plan-1"})

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodePlanNotFound))
}

func TestCancelSubscription(t *testing.T) {
	active := &models.Subscription{
		ID:          "sub-1",
		UserID:      "user-1",
		Status:      models.SubscriptionStatusActive,
		AutoRenewal: true,
		EndDate:     time.Now().AddDate(0, 0, 20),
	}

	subRepo := new(MockSubscriptionRepository)
	subRepo.On("GetByID", mock.Anything, nil, "sub-1").Return(active, nil)
	subRepo.On("Update", mock.Anything, nil, mock.MatchedBy(func(sub *models.Subscription) bool {
		return sub.Status == models.SubscriptionStatusCancelled && !sub.AutoRenewal
	})).Return(nil)

	svc := newTestService(subRepo, new(MockPlanRepository))

	sub, err := svc.Cancel(context.Background(), "user-1", "sub-1")

	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, sub.Status)
	assert.False(t, sub.AutoRenewal)
	assert.WithinDuration(t, time.Now(), sub.EndDate, 5*time.Second)
}

func TestCancelSubscriptionNotOwner(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	subRepo.On("GetByID", mock.Anything, nil, "sub-1").
		Return(&models.Subscription{ID: "sub-1", UserID: "user-1", Status: models.SubscriptionStatusActive}, nil)

	svc := newTestService(subRepo, new(MockPlanRepository))

	_, err := svc.Cancel(context.Background(), "user-2", "sub-1")

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeAuthAccessDenied))
}

func TestCancelSubscriptionTerminal(t *testing.T) {
	for _, status := range []models.SubscriptionStatus{
		models.SubscriptionStatusCancelled,
		models.SubscriptionStatusExpired,
	} {
		t.Run(string(status), func(t *testing.T) {
			subRepo := new(MockSubscriptionRepository)
			subRepo.On("GetByID", mock.Anything, nil, "sub-1").
				Return(&models.Subscription{ID: "sub-1", UserID: "user-1", Status: status}, nil)

			svc := newTestService(subRepo, new(MockPlanRepository))

			_, err := svc.Cancel(context.Background(), "user-1", "sub-1")

			require.Error(t, err)
			assert.True(t, domain.IsDomainError(err, domain.ErrorCodeSubCancelFailed))
		})
	}
}

func TestRenewSubscription(t *testing.T) {
	endDate := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	active := &models.Subscription{
		ID:      "sub-1",
		UserID:  "user-1",
		PlanID:  "plan-1",
		Status:  models.SubscriptionStatusActive,
		EndDate: endDate,
	}

	subRepo := new(MockSubscriptionRepository)
	planRepo := new(MockPlanRepository)
	subRepo.On("GetByID", mock.Anything, nil, "sub-1").Return(active, nil)
	planRepo.On("GetByID", mock.Anything, nil, "plan-1").Return(testPlan(), nil)
	subRepo.On("Update", mock.Anything, nil, mock.Anything).Return(nil)

	svc := newTestService(subRepo, planRepo)

	sub, err := svc.Renew(context.Background(), "user-1", "sub-1", "plan-1")

	require.NoError(t, err)
	assert.Equal(t, endDate.AddDate(0, 0, 30), sub.EndDate)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
}

func TestRenewSubscriptionNotActive(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	subRepo.On("GetByID", mock.Anything, nil, "sub-1").
		Return(&models.Subscription{ID: "sub-1", UserID: "user-1", Status: models.SubscriptionStatusPending}, nil)

	svc := newTestService(subRepo, new(MockPlanRepository))

	_, err := svc.Renew(context.Background(), "user-1", "sub-1", "plan-1")

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeSubRenewRejected))
}

func TestToggleAutoRenewal(t *testing.T) {
	active := &models.Subscription{
		ID:          "sub-1",
		UserID:      "user-1",
		Status:      models.SubscriptionStatusActive,
		AutoRenewal: false,
	}

	subRepo := new(MockSubscriptionRepository)
	subRepo.On("GetByID", mock.Anything, nil, "sub-1").Return(active, nil)
	subRepo.On("Update", mock.Anything, nil, mock.Anything).Return(nil)

	svc := newTestService(subRepo, new(MockPlanRepository))

	sub, err := svc.ToggleAutoRenewal(context.Background(), "user-1", "sub-1")

	require.NoError(t, err)
	assert.True(t, sub.AutoRenewal)
}

func TestToggleAutoRenewalTerminalRejected(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	subRepo.On("GetByID", mock.Anything, nil, "sub-1").
		Return(&models.Subscription{ID: "sub-1", UserID: "user-1", Status: models.SubscriptionStatusCancelled}, nil)

	svc := newTestService(subRepo, new(MockPlanRepository))

	_, err := svc.ToggleAutoRenewal(context.Background(), "user-1", "sub-1")

	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeSubInvalidState))
}

func TestChangeStatusLegalTransitions(t *testing.T) {
	cases := []struct {
		from models.SubscriptionStatus
		to   models.SubscriptionStatus
	}{
		{models.SubscriptionStatusPending, models.SubscriptionStatusActive},
		{models.SubscriptionStatusPending, models.SubscriptionStatusCancelled},
		{models.SubscriptionStatusPending, models.SubscriptionStatusExpired},
		{models.SubscriptionStatusActive, models.SubscriptionStatusCancelled},
		{models.SubscriptionStatusActive, models.SubscriptionStatusExpired},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			subRepo := new(MockSubscriptionRepository)
			subRepo.On("GetByID", mock.Anything, nil, "sub-1").
				Return(&models.Subscription{ID: "sub-1", Status: tc.from, AutoRenewal: true}, nil)
			subRepo.On("Update", mock.Anything, nil, mock.Anything).Return(nil)

			svc := newTestService(subRepo, new(MockPlanRepository))

			sub, err := svc.ChangeStatus(context.Background(), "sub-1", tc.to)

			require.NoError(t, err)
			assert.Equal(t, tc.to, sub.Status)
			if tc.to.IsTerminal() {
				assert.False(t, sub.AutoRenewal)
			}
		})
	}
}

func TestChangeStatusIllegalTransitions(t *testing.T) {
	cases := []struct {
		from models.SubscriptionStatus
		to   models.SubscriptionStatus
	}{
		{models.SubscriptionStatusActive, models.SubscriptionStatusPending},
		{models.SubscriptionStatusCancelled, models.SubscriptionStatusActive},
		{models.SubscriptionStatusExpired, models.SubscriptionStatusActive},
		{models.SubscriptionStatusCancelled, models.SubscriptionStatusExpired},
	}

	for _, tc := range cases {
		t.Run(string(tc.from)+"_to_"+string(tc.to), func(t *testing.T) {
			subRepo := new(MockSubscriptionRepository)
			subRepo.On("GetByID", mock.Anything, nil, "sub-1").
				Return(&models.Subscription{ID: "sub-1", Status: tc.from}, nil)

			svc := newTestService(subRepo, new(MockPlanRepository))

			_, err := svc.ChangeStatus(context.Background(), "sub-1", tc.to)

			require.Error(t, err)
			assert.True(t, domain.IsDomainError(err, domain.ErrorCodeSubInvalidState))
			subRepo.AssertNotCalled(t, "Update")
		})
	}
}

func TestChangeStatusSameStateNoOp(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	subRepo.On("GetByID", mock.Anything, nil, "sub-1").
		Return(&models.Subscription{ID: "sub-1", Status: models.SubscriptionStatusActive}, nil)

	svc := newTestService(subRepo, new(MockPlanRepository))

	sub, err := svc.ChangeStatus(context.Background(), "sub-1", models.SubscriptionStatusActive)

	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	subRepo.AssertNotCalled(t, "Update")
}

func TestGetSubscriptionOwnership(t *testing.T) {
	sub := &models.Subscription{ID: "sub-1", UserID: "user-1"}

	subRepo := new(MockSubscriptionRepository)
	subRepo.On("GetByID", mock.Anything, nil, "sub-1").Return(sub, nil)

	svc := newTestService(subRepo, new(MockPlanRepository))

	_, err := svc.Get(context.Background(), "user-2", false, "sub-1")
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrorCodeAuthAccessDenied))

	got, err := svc.Get(context.Background(), "user-2", true, "sub-1")
	require.NoError(t, err)
	assert.Equal(t, "sub-1", got.ID)
}

func TestListSubscriptionsScoping(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	subRepo.On("GetMany", mock.Anything, nil, map[string]interface{}{"user_id": "user-1"}, int32(50), int32(0)).
		Return([]*models.Subscription{{ID: "sub-1"}}, nil).Once()
	subRepo.On("GetMany", mock.Anything, nil, map[string]interface{}{}, int32(50), int32(0)).
		Return([]*models.Subscription{{ID: "sub-1"}, {ID: "sub-2"}}, nil).Once()

	svc := newTestService(subRepo, new(MockPlanRepository))

	own, err := svc.List(context.Background(), ports.ListSubscriptionsQuery{CallerID: "user-1", Limit: 50})
	require.NoError(t, err)
	assert.Len(t, own, 1)

	all, err := svc.List(context.Background(), ports.ListSubscriptionsQuery{CallerID: "admin", Admin: true, Limit: 50})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPaymentAmount(t *testing.T) {
	subRepo := new(MockSubscriptionRepository)
	planRepo := new(MockPlanRepository)
	subRepo.On("GetByID", mock.Anything, nil, "sub-1").
		Return(&models.Subscription{ID: "sub-1", PlanID: "plan-1"}, nil)
	planRepo.On("GetByID", mock.Anything, nil, "plan-1").Return(testPlan(), nil)

	svc := newTestService(subRepo, planRepo)

	amount, err := svc.PaymentAmount(context.Background(), "sub-1")

	require.NoError(t, err)
	assert.Equal(t, int64(29900), amount)
}
