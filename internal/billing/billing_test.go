package billing

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thrivewithai/thrive-backend/internal/models"
)

func newTestRevenueCat(t *testing.T, handler http.HandlerFunc) (*RevenueCat, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client := New(RevenueCatConfig{
		APIKey:        "sk_test",
		APIURL:        srv.URL,
		EntitlementID: "premium",
		Platform:      "stripe",
		Timeout:       time.Second,
	})
	rc, ok := client.(*RevenueCat)
	require.True(t, ok)
	return rc, &calls
}

func TestNew_WithoutKeyIsDisabled(t *testing.T) {
	client := New(RevenueCatConfig{})
	assert.False(t, client.Configured())

	_, err := client.GetCustomerInfo(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestFindPackage_NoOfferings(t *testing.T) {
	_, err := FindPackage(nil, "premium_monthly")
	assert.ErrorIs(t, err, ErrNoPlans)
	assert.EqualError(t, err, "no plans available")
}

func TestFindPackage_MatchesIDOrProduct(t *testing.T) {
	offerings := []Offering{{ID: "default", Packages: []Package{
		{ID: "$rc_monthly", ProductID: "premium_monthly"},
		{ID: "$rc_annual", ProductID: "premium_annual"},
	}}}

	pkg, err := FindPackage(offerings, "premium_monthly")
	require.NoError(t, err)
	assert.Equal(t, "$rc_monthly", pkg.ID)

	pkg, err = FindPackage(offerings, "$rc_annual")
	require.NoError(t, err)
	assert.Equal(t, "premium_annual", pkg.ProductID)

	_, err = FindPackage(offerings, "lifetime")
	assert.ErrorIs(t, err, ErrPackageNotFound)
}

func TestCatalog_StoreAndFind(t *testing.T) {
	var c Catalog
	_, err := c.Find("premium_monthly")
	assert.ErrorIs(t, err, ErrNoPlans)
	assert.True(t, c.LoadedAt().IsZero())

	c.Store([]Offering{{ID: "default", Packages: []Package{{ID: "$rc_monthly", ProductID: "premium_monthly"}}}})
	pkg, err := c.Find("premium_monthly")
	require.NoError(t, err)
	assert.Equal(t, "$rc_monthly", pkg.ID)
	assert.False(t, c.LoadedAt().IsZero())
}

func TestSnapshot_Fields(t *testing.T) {
	tests := []struct {
		name       string
		snap       Snapshot
		wantStatus string
		wantTier   string
	}{
		{"active", Snapshot{HadEntitlement: true, Active: true}, models.SubscriptionStatusActive, models.SubscriptionTierPremium},
		{"unsubscribed before expiry", Snapshot{HadEntitlement: true, Active: true, Unsubscribed: true}, models.SubscriptionStatusCancelled, models.SubscriptionTierPremium},
		{"unsubscribed and expired", Snapshot{HadEntitlement: true, Unsubscribed: true}, models.SubscriptionStatusExpired, models.SubscriptionTierFree},
		{"lapsed", Snapshot{HadEntitlement: true}, models.SubscriptionStatusExpired, models.SubscriptionTierFree},
		{"never subscribed", Snapshot{}, models.SubscriptionStatusFree, models.SubscriptionTierFree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, tier := tt.snap.Fields()
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantTier, tier)
		})
	}
}

func TestRevenueCat_GetCustomerInfo_Active(t *testing.T) {
	expires := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	rc, _ := newTestRevenueCat(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscribers/user-1", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))
		assert.Equal(t, "stripe", r.Header.Get("X-Platform"))
		_, _ = w.Write([]byte(`{"subscriber":{"original_app_user_id":"user-1","entitlements":{"premium":{"expires_date":"` + expires + `","product_identifier":"premium_monthly"}}}}`))
	})

	snap, err := rc.GetCustomerInfo(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, snap.Active)
	assert.Equal(t, "premium_monthly", snap.ProductID)
	assert.Equal(t, "user-1", snap.CustomerID)
}

func TestRevenueCat_GetCustomerInfo_UnsubscribedStaysCancelled(t *testing.T) {
	expires := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	rc, _ := newTestRevenueCat(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"subscriber":{"original_app_user_id":"user-1",` +
			`"entitlements":{"premium":{"expires_date":"` + expires + `","product_identifier":"premium_monthly"}},` +
			`"subscriptions":{"premium_monthly":{"unsubscribe_detected_at":"2026-01-02T00:00:00Z"}}}}`))
	})

	snap, err := rc.GetCustomerInfo(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, snap.Active)
	assert.True(t, snap.Unsubscribed)

	status, tier := snap.Fields()
	assert.Equal(t, models.SubscriptionStatusCancelled, status)
	assert.Equal(t, models.SubscriptionTierPremium, tier)
}

func TestRevenueCat_GetCustomerInfo_Expired(t *testing.T) {
	rc, _ := newTestRevenueCat(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"subscriber":{"original_app_user_id":"user-1","entitlements":{"premium":{"expires_date":"2020-01-01T00:00:00Z","product_identifier":"premium_monthly"}}}}`))
	})

	snap, err := rc.GetCustomerInfo(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, snap.Active)
	assert.True(t, snap.HadEntitlement)
}

func TestRevenueCat_ListOfferings(t *testing.T) {
	rc, _ := newTestRevenueCat(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscribers/user-1/offerings", r.URL.Path)
		_, _ = w.Write([]byte(`{"current_offering_id":"default","offerings":[{"identifier":"default","description":"Premium","packages":[{"identifier":"$rc_monthly","platform_product_identifier":"premium_monthly"}]}]}`))
	})

	offerings, err := rc.ListOfferings(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, offerings, 1)
	assert.True(t, offerings[0].Current)
	assert.Equal(t, []Package{{ID: "$rc_monthly", ProductID: "premium_monthly"}}, offerings[0].Packages)
}

func TestRevenueCat_Purchase_PostsReceipt(t *testing.T) {
	rc, _ := newTestRevenueCat(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/receipts", r.URL.Path)

		var body rcReceiptRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "user-1", body.AppUserID)
		assert.Equal(t, "cs_test_123", body.FetchToken)
		assert.Equal(t, "premium_monthly", body.ProductID)

		_, _ = w.Write([]byte(`{"subscriber":{"original_app_user_id":"user-1","entitlements":{"premium":{"expires_date":null,"product_identifier":"premium_monthly"}}}}`))
	})

	snap, err := rc.Purchase(context.Background(), "user-1", Package{ID: "$rc_monthly", ProductID: "premium_monthly"}, "cs_test_123")
	require.NoError(t, err)
	assert.True(t, snap.Active)
}

func TestRevenueCat_Purchase_EmptyTokenIsCancelled(t *testing.T) {
	rc, calls := newTestRevenueCat(t, func(w http.ResponseWriter, r *http.Request) {})

	_, err := rc.Purchase(context.Background(), "user-1", Package{ID: "$rc_monthly"}, "")
	assert.ErrorIs(t, err, ErrUserCancelled)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestRevenueCat_ErrorStatusIsUnavailable(t *testing.T) {
	rc, _ := newTestRevenueCat(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message":"boom"}`))
	})

	_, err := rc.GetCustomerInfo(context.Background(), "user-1")
	assert.ErrorIs(t, err, ErrUnavailable)
}
