package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/subwave/billing-service/internal/auth"
	"github.com/subwave/billing-service/internal/domain/models"
	"github.com/subwave/billing-service/internal/domain/ports"
	"github.com/subwave/billing-service/internal/middleware"
)

const testSigningKey = "handler-test-signing-key"

// MockPlanService mocks ports.PlanService
type MockPlanService struct {
	mock.Mock
}

func (m *MockPlanService) Create(ctx context.Context, req ports.CreatePlanRequest) (*models.SubscriptionPlan, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionPlan), args.Error(1)
}

func (m *MockPlanService) Update(ctx context.Context, id string, req ports.UpdatePlanRequest) (*models.SubscriptionPlan, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionPlan), args.Error(1)
}

func (m *MockPlanService) List(ctx context.Context, query ports.ListPlansQuery) ([]*models.SubscriptionPlan, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.SubscriptionPlan), args.Error(1)
}

func (m *MockPlanService) Get(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubscriptionPlan), args.Error(1)
}

func (m *MockPlanService) Archive(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

// MockSubscriptionService mocks ports.SubscriptionService
type MockSubscriptionService struct {
	mock.Mock
}

func (m *MockSubscriptionService) Create(ctx context.Context, userID string, req ports.CreateSubscriptionRequest) (*models.Subscription, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionService) Get(ctx context.Context, callerID string, admin bool, subscriptionID string) (*models.Subscription, error) {
	args := m.Called(ctx, callerID, admin, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionService) List(ctx context.Context, query ports.ListSubscriptionsQuery) ([]*models.Subscription, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionService) Cancel(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionService) Renew(ctx context.Context, userID, subscriptionID, planID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID, subscriptionID, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionService) ToggleAutoRenewal(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionService) ChangeStatus(ctx context.Context, subscriptionID string, next models.SubscriptionStatus) (*models.Subscription, error) {
	args := m.Called(ctx, subscriptionID, next)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockSubscriptionService) PaymentAmount(ctx context.Context, subscriptionID string) (int64, error) {
	args := m.Called(ctx, subscriptionID)
	return args.Get(0).(int64), args.Error(1)
}

// MockTransactionService mocks ports.TransactionService
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

// MockCardsManager mocks ports.CardsManager
type MockCardsManager struct {
	mock.Mock
}

func (m *MockCardsManager) CreateBindingSession(ctx context.Context, userID string) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}

func (m *MockCardsManager) HandleCardAttached(ctx context.Context, event ports.CardAttachedEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockCardsManager) HandleSetupSucceeded(ctx context.Context, event ports.SetupSucceededEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockCardsManager) HandleSetupFailed(ctx context.Context, event ports.SetupFailedEvent) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockCardsManager) SetDefault(ctx context.Context, userID, cardID string) error {
	return m.Called(ctx, userID, cardID).Error(0)
}

func (m *MockCardsManager) ListUserCards(ctx context.Context, userID string) ([]*models.UserCard, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.UserCard), args.Error(1)
}

func (m *MockCardsManager) DeleteCard(ctx context.Context, userID, cardID string) error {
	return m.Called(ctx, userID, cardID).Error(0)
}

// MockBillingManager mocks ports.BillingManager
type MockBillingManager struct {
	mock.Mock
}

func (m *MockBillingManager) CreateSubscription(ctx context.Context, userID string, req ports.CreateSubscriptionRequest) (*models.Subscription, error) {
	args := m.Called(ctx, userID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockBillingManager) InitiateSubscriptionPayment(ctx context.Context, userID, cardID, subscriptionID string) (*models.Transaction, error) {
	args := m.Called(ctx, userID, cardID, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockBillingManager) ActivateSubscription(ctx context.Context, subscriptionID string) (*models.Subscription, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockBillingManager) CancelSubscription(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockBillingManager) RenewSubscription(ctx context.Context, userID, subscriptionID, planID string) (*models.Transaction, error) {
	args := m.Called(ctx, userID, subscriptionID, planID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockBillingManager) ToggleAutoRenewal(ctx context.Context, userID, subscriptionID string) (*models.Subscription, error) {
	args := m.Called(ctx, userID, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Subscription), args.Error(1)
}

func (m *MockBillingManager) ProcessExpiry(ctx context.Context, subscriptionID string) error {
	return m.Called(ctx, subscriptionID).Error(0)
}

func (m *MockBillingManager) HandlePaymentWebhook(ctx context.Context, eventType string, event ports.PaymentEvent) error {
	return m.Called(ctx, eventType, event).Error(0)
}

func (m *MockBillingManager) SetPublishFailureHook(hook ports.PublishFailureHook) {
	m.Called(hook)
}

// routerMocks collects the service mocks behind a test router
type routerMocks struct {
	plans         *MockPlanService
	subscriptions *MockSubscriptionService
	transactions  *MockTransactionService
	cards         *MockCardsManager
	billing       *MockBillingManager
}

// newTestRouter builds the real router over mocked services so requests
// travel the full middleware stack
func newTestRouter(t *testing.T) (*gin.Engine, *routerMocks) {
	t.Helper()
	return newTestRouterWithLimits(t, 1000, 1000)
}

func newTestRouterWithLimits(t *testing.T, rps, burst int) (*gin.Engine, *routerMocks) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mocks := &routerMocks{
		plans:         new(MockPlanService),
		subscriptions: new(MockSubscriptionService),
		transactions:  new(MockTransactionService),
		cards:         new(MockCardsManager),
		billing:       new(MockBillingManager),
	}

	tokens, err := auth.NewTokenManager(testSigningKey, "HS256")
	require.NoError(t, err)

	logger := zap.NewNop()
	engine := NewRouter(RouterConfig{
		Plans:         mocks.plans,
		Subscriptions: mocks.subscriptions,
		Transactions:  mocks.transactions,
		Cards:         mocks.cards,
		Billing:       mocks.billing,
		Auth:          middleware.NewAuthMiddleware(tokens, logger),
		RateLimiter:   middleware.NewRateLimiter(rps, burst),
		Security:      middleware.NewSecurityHeaders(true),
		Logger:        logger,
	})
	return engine, mocks
}

// bearerToken issues a signed token for the given user. User IDs must be
// UUIDs to pass token validation.
func bearerToken(t *testing.T, userID string, role models.Role) string {
	t.Helper()

	tokens, err := auth.NewTokenManager(testSigningKey, "HS256")
	require.NoError(t, err)
	token, err := tokens.GenerateToken(userID, role, time.Hour)
	require.NoError(t, err)
	return "Bearer " + token
}

// doRequest performs a request against the engine. A non-nil body is
// JSON encoded.
func doRequest(t *testing.T, engine *gin.Engine, method, target, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

func planFixture(id, title string) *models.SubscriptionPlan {
	now := time.Now().UTC()
	return &models.SubscriptionPlan{
		ID:           id,
		Title:        title,
		Description:  "Full catalog access",
		Price:        29900,
		DurationDays: 30,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func subscriptionFixture(id, userID string, status models.SubscriptionStatus) *models.Subscription {
	now := time.Now().UTC()
	return &models.Subscription{
		ID:          id,
		UserID:      userID,
		PlanID:      "plan-1",
		Status:      status,
		AutoRenewal: true,
		StartDate:   now,
		EndDate:     now.AddDate(0, 0, 30),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func transactionFixture(id, userID string) *models.Transaction {
	now := time.Now().UTC()
	intentID := "pi_" + id
	return &models.Transaction{
		ID:              id,
		SubscriptionID:  "sub-1",
		UserID:          userID,
		UserCardID:      "card-1",
		PaymentType:     models.PaymentTypeStripe,
		Status:          models.TransactionStatusPending,
		Amount:          29900,
		GatewayIntentID: &intentID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func cardFixture(id, userID string) *models.UserCard {
	now := time.Now().UTC()
	token := "pm_" + id
	digits := "4242"
	return &models.UserCard{
		ID:                id,
		UserID:            userID,
		GatewayCustomerID: "cus_1",
		Token:             &token,
		LastDigits:        &digits,
		Status:            models.CardStatusSuccess,
		IsDefault:         true,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}
