package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/thrivewithai/thrive-backend/internal/billing"
	"github.com/thrivewithai/thrive-backend/internal/config"
	"github.com/thrivewithai/thrive-backend/internal/crm"
	"github.com/thrivewithai/thrive-backend/internal/entitlement"
	"github.com/thrivewithai/thrive-backend/internal/models"
	"github.com/thrivewithai/thrive-backend/internal/store"
	"github.com/thrivewithai/thrive-backend/internal/testutil"
	"gorm.io/gorm"
)

type mockMailer struct {
	mock.Mock
}

func (m *mockMailer) SendFeedbackNotification(fb *models.Feedback) error {
	return m.Called(fb).Error(0)
}

func (m *mockMailer) SendFeedbackResponse(fb *models.Feedback) error {
	return m.Called(fb).Error(0)
}

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Name() string { return "mock" }

func (m *mockBackend) Forward(ctx context.Context, fb *models.Feedback) (crm.ExternalRef, error) {
	args := m.Called(ctx, fb)
	return args.Get(0).(crm.ExternalRef), args.Error(1)
}

func (m *mockBackend) UpdateStatus(ctx context.Context, fb *models.Feedback) error {
	return m.Called(ctx, fb).Error(0)
}

type mockBillingClient struct {
	mock.Mock
}

func (m *mockBillingClient) Configured() bool { return true }

func (m *mockBillingClient) ListOfferings(ctx context.Context, appUserID string) ([]billing.Offering, error) {
	args := m.Called(ctx, appUserID)
	offerings, _ := args.Get(0).([]billing.Offering)
	return offerings, args.Error(1)
}

func (m *mockBillingClient) Purchase(ctx context.Context, appUserID string, pkg billing.Package, fetchToken string) (*billing.Snapshot, error) {
	args := m.Called(ctx, appUserID, pkg, fetchToken)
	snap, _ := args.Get(0).(*billing.Snapshot)
	return snap, args.Error(1)
}

func (m *mockBillingClient) Restore(ctx context.Context, appUserID string) (*billing.Snapshot, error) {
	args := m.Called(ctx, appUserID)
	snap, _ := args.Get(0).(*billing.Snapshot)
	return snap, args.Error(1)
}

func (m *mockBillingClient) GetCustomerInfo(ctx context.Context, appUserID string) (*billing.Snapshot, error) {
	args := m.Called(ctx, appUserID)
	snap, _ := args.Get(0).(*billing.Snapshot)
	return snap, args.Error(1)
}

type testEnv struct {
	db    *gorm.DB
	store *store.GormStore
	cfg   *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	return &testEnv{
		db:    db,
		store: store.NewGormStore(db),
		cfg: &config.Config{
			JWTSecret:        "test-secret-that-is-long-enough-123",
			JWTAccessExpiry:  15 * time.Minute,
			JWTRefreshExpiry: 24 * time.Hour,
		},
	}
}

func (e *testEnv) authService() *AuthService {
	return NewAuthService(e.store, e.db, e.cfg, nil, entitlement.NewGate(true))
}

func (e *testEnv) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Name: "Test User"}
	if err := e.store.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}
