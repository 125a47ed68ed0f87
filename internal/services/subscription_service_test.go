package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/thrivewithai/thrive-backend/internal/billing"
	"github.com/thrivewithai/thrive-backend/internal/dto"
	"github.com/thrivewithai/thrive-backend/internal/metrics"
	"github.com/thrivewithai/thrive-backend/internal/models"
	"github.com/thrivewithai/thrive-backend/internal/session"
)

var testOfferings = []billing.Offering{{
	ID:      "default",
	Current: true,
	Packages: []billing.Package{
		{ID: "$rc_monthly", ProductID: "premium_monthly"},
	},
}}

func newSubscriptionFixture(t *testing.T) (*testEnv, *mockBillingClient, *SubscriptionService, *models.User) {
	t.Helper()
	env := newTestEnv(t)
	client := &mockBillingClient{}
	svc := NewSubscriptionService(env.store, client, metrics.New())
	user := env.createUser(t, "buyer@example.com")
	return env, client, svc, user
}

func TestSubscriptionService_Purchase_NoOfferingsMakesNoCalls(t *testing.T) {
	_, client, svc, user := newSubscriptionFixture(t)

	_, err := svc.Purchase(context.Background(), session.FromUser(user), &dto.PurchaseRequest{PackageID: "premium_monthly", FetchToken: "cs_1"})
	assert.ErrorIs(t, err, billing.ErrNoPlans)
	assert.EqualError(t, err, "no plans available")
	client.AssertNotCalled(t, "Purchase", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "ListOfferings", mock.Anything, mock.Anything)
}

func TestSubscriptionService_Purchase_SyncsEntitlement(t *testing.T) {
	env, client, svc, user := newSubscriptionFixture(t)
	sess := session.FromUser(user)
	ctx := context.Background()

	client.On("ListOfferings", mock.Anything, user.ID.String()).Return(testOfferings, nil).Once()
	_, err := svc.Offerings(ctx, sess)
	require.NoError(t, err)

	pkg := billing.Package{ID: "$rc_monthly", ProductID: "premium_monthly"}
	client.On("Purchase", mock.Anything, user.ID.String(), pkg, "cs_1").
		Return(&billing.Snapshot{CustomerID: user.ID.String(), HadEntitlement: true, Active: true}, nil).Once()

	resp, err := svc.Purchase(ctx, sess, &dto.PurchaseRequest{PackageID: "premium_monthly", FetchToken: "cs_1"})
	require.NoError(t, err)
	assert.True(t, resp.HasPremiumAccess)
	assert.Equal(t, "purchased", resp.Status)

	stored, err := env.store.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasPremiumAccess())
	require.NotNil(t, stored.BillingCustomerID)
	assert.Equal(t, user.ID.String(), *stored.BillingCustomerID)
}

func TestSubscriptionService_Purchase_Cancelled(t *testing.T) {
	env, client, svc, user := newSubscriptionFixture(t)
	sess := session.FromUser(user)
	svc.catalog.Store(testOfferings)

	client.On("Purchase", mock.Anything, mock.Anything, mock.Anything, "").Return(nil, billing.ErrUserCancelled).Once()

	_, err := svc.Purchase(context.Background(), sess, &dto.PurchaseRequest{PackageID: "$rc_monthly"})
	assert.ErrorIs(t, err, billing.ErrUserCancelled)

	stored, err := env.store.FindUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusFree, stored.SubscriptionStatus)
}

func TestSubscriptionService_Purchase_UnknownPackage(t *testing.T) {
	_, client, svc, user := newSubscriptionFixture(t)
	svc.catalog.Store(testOfferings)

	_, err := svc.Purchase(context.Background(), session.FromUser(user), &dto.PurchaseRequest{PackageID: "lifetime", FetchToken: "cs_1"})
	assert.ErrorIs(t, err, billing.ErrPackageNotFound)
	client.AssertNotCalled(t, "Purchase", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSubscriptionService_Refresh_LapsedDowngrades(t *testing.T) {
	env, client, svc, user := newSubscriptionFixture(t)
	ctx := context.Background()
	require.NoError(t, env.db.Model(&models.User{}).Where("id = ?", user.ID).
		Updates(map[string]interface{}{"subscription_status": models.SubscriptionStatusActive, "subscription_tier": models.SubscriptionTierPremium}).Error)

	client.On("GetCustomerInfo", mock.Anything, user.ID.String()).
		Return(&billing.Snapshot{HadEntitlement: true, Active: false}, nil).Once()

	resp, err := svc.Refresh(ctx, session.FromUser(user))
	require.NoError(t, err)
	assert.False(t, resp.HasPremiumAccess)

	stored, err := env.store.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusExpired, stored.SubscriptionStatus)
	assert.Equal(t, models.SubscriptionTierFree, stored.SubscriptionTier)
}

func TestSubscriptionService_Restore_ProviderDown(t *testing.T) {
	_, client, svc, user := newSubscriptionFixture(t)
	client.On("Restore", mock.Anything, user.ID.String()).Return(nil, billing.ErrUnavailable).Once()

	_, err := svc.Restore(context.Background(), session.FromUser(user))
	assert.ErrorIs(t, err, billing.ErrUnavailable)
}

func TestSubscriptionService_SyncEntitlement_CancelledContext(t *testing.T) {
	env, _, svc, user := newSubscriptionFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc.SyncEntitlement(ctx, user.ID, &billing.Snapshot{HadEntitlement: true, Active: true}, SyncTriggerPurchase)

	stored, err := env.store.FindUserByID(context.Background(), user.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasPremiumAccess())
}

func TestSubscriptionService_HandleWebhookEvent(t *testing.T) {
	tests := []struct {
		eventType  string
		wantStatus string
		wantTier   string
	}{
		{"INITIAL_PURCHASE", models.SubscriptionStatusActive, models.SubscriptionTierPremium},
		{"RENEWAL", models.SubscriptionStatusActive, models.SubscriptionTierPremium},
		{"UNCANCELLATION", models.SubscriptionStatusActive, models.SubscriptionTierPremium},
		{"PRODUCT_CHANGE", models.SubscriptionStatusActive, models.SubscriptionTierPremium},
		{"CANCELLATION", models.SubscriptionStatusCancelled, models.SubscriptionTierPremium},
		{"EXPIRATION", models.SubscriptionStatusExpired, models.SubscriptionTierFree},
		{"BILLING_ISSUE", models.SubscriptionStatusFree, models.SubscriptionTierFree},
		{"TEST", models.SubscriptionStatusFree, models.SubscriptionTierFree},
	}
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			env, _, svc, user := newSubscriptionFixture(t)
			ctx := context.Background()

			err := svc.HandleWebhookEvent(ctx, &dto.RevenueCatEvent{Type: tt.eventType, AppUserID: user.ID.String()})
			require.NoError(t, err)

			stored, err := env.store.FindUserByID(ctx, user.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, stored.SubscriptionStatus)
			assert.Equal(t, tt.wantTier, stored.SubscriptionTier)
		})
	}
}

func TestSubscriptionService_Refresh_AfterCancellationKeepsCancelled(t *testing.T) {
	env, client, svc, user := newSubscriptionFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.HandleWebhookEvent(ctx, &dto.RevenueCatEvent{Type: "CANCELLATION", AppUserID: user.ID.String()}))
	client.On("GetCustomerInfo", mock.Anything, user.ID.String()).
		Return(&billing.Snapshot{HadEntitlement: true, Active: true, Unsubscribed: true}, nil).Once()

	_, err := svc.Refresh(ctx, session.FromUser(user))
	require.NoError(t, err)

	stored, err := env.store.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusCancelled, stored.SubscriptionStatus)
	assert.Equal(t, models.SubscriptionTierPremium, stored.SubscriptionTier)
}

func TestSubscriptionService_HandleWebhookEvent_ResolvesByCustomerID(t *testing.T) {
	env, _, svc, user := newSubscriptionFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.HandleWebhookEvent(ctx, &dto.RevenueCatEvent{
		Type:              "INITIAL_PURCHASE",
		AppUserID:         user.ID.String(),
		OriginalAppUserID: "$RCAnonymousID:abc",
	}))

	// A later event only carries the provider's original id.
	require.NoError(t, svc.HandleWebhookEvent(ctx, &dto.RevenueCatEvent{
		Type:      "EXPIRATION",
		AppUserID: "$RCAnonymousID:abc",
	}))

	stored, err := env.store.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusExpired, stored.SubscriptionStatus)
}

func TestSubscriptionService_HandleWebhookEvent_UnknownUser(t *testing.T) {
	_, _, svc, _ := newSubscriptionFixture(t)
	err := svc.HandleWebhookEvent(context.Background(), &dto.RevenueCatEvent{Type: "RENEWAL", AppUserID: "nobody"})
	assert.Error(t, err)
}

func TestSubscriptionService_SetSubscription(t *testing.T) {
	env, _, svc, user := newSubscriptionFixture(t)
	ctx := context.Background()

	err := svc.SetSubscription(ctx, user.ID, &dto.SetSubscriptionRequest{SubscriptionStatus: "gold", SubscriptionTier: "premium"})
	assert.ErrorIs(t, err, ErrInvalidSubscription)

	require.NoError(t, svc.SetSubscription(ctx, user.ID, &dto.SetSubscriptionRequest{
		SubscriptionStatus: models.SubscriptionStatusActive,
		SubscriptionTier:   models.SubscriptionTierPremium,
	}))
	stored, err := env.store.FindUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.HasPremiumAccess())
}
