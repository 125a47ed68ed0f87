package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thrivewithai/thrive-backend/internal/billing"
	"github.com/thrivewithai/thrive-backend/internal/config"
	"github.com/thrivewithai/thrive-backend/internal/crm"
	"github.com/thrivewithai/thrive-backend/internal/entitlement"
	"github.com/thrivewithai/thrive-backend/internal/handlers"
	"github.com/thrivewithai/thrive-backend/internal/metrics"
	"github.com/thrivewithai/thrive-backend/internal/models"
	"github.com/thrivewithai/thrive-backend/internal/oauth"
	"github.com/thrivewithai/thrive-backend/internal/routes"
	"github.com/thrivewithai/thrive-backend/internal/services"
	"github.com/thrivewithai/thrive-backend/internal/store"
	"github.com/thrivewithai/thrive-backend/internal/testutil"
	"gorm.io/gorm"
)

const (
	webhookSecret = "Bearer rc-webhook-secret"
	adminToken    = "admin-token-for-tests"
)

type stubBilling struct {
	offerings []billing.Offering
	snapshot  *billing.Snapshot
	err       error
}

func (s *stubBilling) Configured() bool { return true }

func (s *stubBilling) ListOfferings(context.Context, string) ([]billing.Offering, error) {
	return s.offerings, s.err
}

func (s *stubBilling) Purchase(_ context.Context, appUserID string, _ billing.Package, _ string) (*billing.Snapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	snap := *s.snapshot
	snap.CustomerID = appUserID
	return &snap, nil
}

func (s *stubBilling) Restore(ctx context.Context, appUserID string) (*billing.Snapshot, error) {
	return s.Purchase(ctx, appUserID, billing.Package{}, "")
}

func (s *stubBilling) GetCustomerInfo(ctx context.Context, appUserID string) (*billing.Snapshot, error) {
	return s.Purchase(ctx, appUserID, billing.Package{}, "")
}

type countingMailer struct {
	mu            sync.Mutex
	notifications int
	responses     int
}

func (m *countingMailer) SendFeedbackNotification(*models.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications++
	return nil
}

func (m *countingMailer) SendFeedbackResponse(*models.Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses++
	return nil
}

type countingBackend struct {
	mu       sync.Mutex
	forwards int
	updates  int
}

func (b *countingBackend) Name() string { return "counting" }

func (b *countingBackend) Forward(context.Context, *models.Feedback) (crm.ExternalRef, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.forwards++
	return crm.ExternalRef{ExternalID: "ticket-1", ContactID: "contact-1"}, nil
}

func (b *countingBackend) UpdateStatus(context.Context, *models.Feedback) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.updates++
	return errors.New("crm down")
}

type fakeProvider struct {
	info *oauth.UserInfo
}

func (p fakeProvider) Name() string { return "google" }

func (p fakeProvider) GetConsentURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (p fakeProvider) ExchangeCode(_ context.Context, code string) (*oauth.UserInfo, error) {
	if code != "good-code" {
		return nil, errors.New("bad code")
	}
	return p.info, nil
}

type fixture struct {
	app     *fiber.App
	db      *gorm.DB
	store   *store.GormStore
	billing *stubBilling
	mailer  *countingMailer
	backend *countingBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	s := store.NewGormStore(db)
	cfg := &config.Config{
		JWTSecret:             "handlers-test-secret-0123456789",
		JWTAccessExpiry:       15 * time.Minute,
		JWTRefreshExpiry:      24 * time.Hour,
		AdminToken:            adminToken,
		RevenueCatWebhookAuth: webhookSecret,
	}

	f := &fixture{
		db:    db,
		store: s,
		billing: &stubBilling{
			offerings: []billing.Offering{{ID: "default", Current: true, Packages: []billing.Package{{ID: "$rc_monthly", ProductID: "premium_monthly"}}}},
			snapshot:  &billing.Snapshot{HadEntitlement: true, Active: true},
		},
		mailer:  &countingMailer{},
		backend: &countingBackend{},
	}

	m := metrics.New()
	gate := entitlement.NewGate(true)
	authService := services.NewAuthService(s, db, cfg, nil, gate)
	subscriptionService := services.NewSubscriptionService(s, f.billing, m)
	feedbackService := services.NewFeedbackService(s, f.mailer, f.backend, services.NewModerationService(), m, 5*time.Second)
	contentService := services.NewContentService(db, gate, m)
	provider := fakeProvider{info: &oauth.UserInfo{
		Email: "oauth@example.com", EmailVerified: true, Name: "OAuth User", ID: "g-123", Provider: "google",
	}}

	f.app = fiber.New()
	routes.Setup(f.app, cfg, s, routes.Handlers{
		Auth:         handlers.NewAuthHandler(authService),
		OAuth:        handlers.NewOAuthHandler(authService, oauth.NewMemoryStateStore(), "https://site.test", provider),
		Subscription: handlers.NewSubscriptionHandler(subscriptionService),
		Webhook:      handlers.NewWebhookHandler(subscriptionService, cfg.RevenueCatWebhookAuth),
		Content:      handlers.NewContentHandler(contentService),
		Feedback:     handlers.NewFeedbackHandler(feedbackService),
		Admin:        handlers.NewAdminHandler(subscriptionService),
		Health:       handlers.NewHealthHandler(func() error { return nil }, "postgres", nil, true, f.backend.Name()),
	}, m.Handler())
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, headers ...string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]interface{}{}
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

// register creates a user through the API and returns its access token and id.
func (f *fixture) register(t *testing.T, email string) (string, string) {
	t.Helper()
	resp, body := f.do(t, fiber.MethodPost, "/api/auth/register", map[string]string{
		"email": email, "password": "correct-horse-1", "name": "Dana Example",
	})
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	user := body["user"].(map[string]interface{})
	return body["access_token"].(string), user["id"].(string)
}

func bearer(token string) []string {
	return []string{"Authorization", "Bearer " + token}
}

func TestAuthHandler_Register(t *testing.T) {
	f := newFixture(t)
	f.register(t, "dana@example.com")

	resp, body := f.do(t, fiber.MethodPost, "/api/auth/register", map[string]string{
		"email": "Dana@Example.com", "password": "another-pass-1",
	})
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, true, body["error"])

	resp, _ = f.do(t, fiber.MethodPost, "/api/auth/register", map[string]string{
		"email": "short@example.com", "password": "short",
	})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestAuthHandler_Login(t *testing.T) {
	f := newFixture(t)
	f.register(t, "dana@example.com")

	resp, _ := f.do(t, fiber.MethodPost, "/api/auth/login", map[string]string{
		"email": "dana@example.com", "password": "wrong-password",
	})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, body := f.do(t, fiber.MethodPost, "/api/auth/login", map[string]string{
		"email": "dana@example.com", "password": "correct-horse-1",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["access_token"])
	assert.NotEmpty(t, body["refresh_token"])
}

func TestAuthHandler_Me(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, fiber.MethodGet, "/api/me", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	token, _ := f.register(t, "dana@example.com")
	resp, body := f.do(t, fiber.MethodGet, "/api/me", nil, bearer(token)...)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "dana@example.com", body["email"])
	assert.Equal(t, false, body["has_premium_access"])
}

func TestSubscriptionHandler_Purchase(t *testing.T) {
	f := newFixture(t)
	token, _ := f.register(t, "dana@example.com")
	purchase := map[string]string{"package_id": "$rc_monthly", "fetch_token": "cs_test_1"}

	// Nothing is purchasable until offerings have loaded.
	resp, body := f.do(t, fiber.MethodPost, "/api/subscription/purchase", purchase, bearer(token)...)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
	assert.Equal(t, "no plans available", body["message"])

	resp, body = f.do(t, fiber.MethodGet, "/api/subscription/offerings", nil, bearer(token)...)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, body["offerings"], 1)

	resp, body = f.do(t, fiber.MethodPost, "/api/subscription/purchase", map[string]string{"package_id": "$rc_yearly"}, bearer(token)...)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, body = f.do(t, fiber.MethodPost, "/api/subscription/purchase", purchase, bearer(token)...)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "purchased", body["status"])
	assert.Equal(t, true, body["has_premium_access"])

	_, body = f.do(t, fiber.MethodGet, "/api/me", nil, bearer(token)...)
	assert.Equal(t, true, body["has_premium_access"])
}

func TestSubscriptionHandler_Purchase_Cancelled(t *testing.T) {
	f := newFixture(t)
	token, _ := f.register(t, "dana@example.com")
	f.do(t, fiber.MethodGet, "/api/subscription/offerings", nil, bearer(token)...)

	f.billing.err = billing.ErrUserCancelled
	resp, body := f.do(t, fiber.MethodPost, "/api/subscription/purchase", map[string]string{"package_id": "$rc_monthly"}, bearer(token)...)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "cancelled", body["status"])

	_, body = f.do(t, fiber.MethodGet, "/api/me", nil, bearer(token)...)
	assert.Equal(t, models.SubscriptionStatusFree, body["subscription_status"])
}

func TestSubscriptionHandler_ProviderDown(t *testing.T) {
	f := newFixture(t)
	token, _ := f.register(t, "dana@example.com")

	f.billing.err = errors.New("revenuecat: 502 bad gateway")
	resp, body := f.do(t, fiber.MethodPost, "/api/subscription/restore", nil, bearer(token)...)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "payment system unavailable", body["message"])
}

func TestWebhookHandler_HandleRevenueCat(t *testing.T) {
	f := newFixture(t)
	_, userID := f.register(t, "dana@example.com")
	event := map[string]interface{}{
		"api_version": "1.0",
		"event":       map[string]interface{}{"type": "INITIAL_PURCHASE", "app_user_id": userID, "original_app_user_id": userID},
	}

	resp, _ := f.do(t, fiber.MethodPost, "/api/webhooks/revenuecat", event)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodPost, "/api/webhooks/revenuecat", event, "Authorization", "Bearer wrong")
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, body := f.do(t, fiber.MethodPost, "/api/webhooks/revenuecat", event, "Authorization", webhookSecret)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["received"])

	user, err := f.store.FindUserByEmail(context.Background(), "dana@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, user.SubscriptionStatus)
	assert.Equal(t, models.SubscriptionTierPremium, user.SubscriptionTier)
}

func TestWebhookHandler_UnknownUser(t *testing.T) {
	f := newFixture(t)
	event := map[string]interface{}{
		"event": map[string]interface{}{"type": "RENEWAL", "app_user_id": "$RCAnonymousID:abc"},
	}

	resp, body := f.do(t, fiber.MethodPost, "/api/webhooks/revenuecat", event, "Authorization", webhookSecret)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["matched"])
}

func TestWebhookHandler_NotConfigured(t *testing.T) {
	app := fiber.New()
	app.Post("/hook", handlers.NewWebhookHandler(nil, "").HandleRevenueCat)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodPost, "/hook", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func seedContent(t *testing.T, db *gorm.DB) {
	t.Helper()
	jobs := []models.Job{
		{ContentBase: models.ContentBase{Slug: "data-analyst", Title: "Data Analyst", Summary: "Crunches numbers", Body: "premium insight", IsPremium: true}, Industry: "finance"},
		{ContentBase: models.ContentBase{Slug: "nurse", Title: "Nurse", Summary: "Cares for patients", Body: "free insight"}, Industry: "healthcare"},
	}
	require.NoError(t, db.Create(&jobs).Error)
}

func TestContentHandler_Get(t *testing.T) {
	f := newFixture(t)
	seedContent(t, f.db)

	resp, body := f.do(t, fiber.MethodGet, "/api/content/jobs/data-analyst", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, string(entitlement.OutcomeSignInPrompt), body["outcome"])
	assert.Equal(t, true, body["locked"])
	item := body["item"].(map[string]interface{})
	assert.NotContains(t, item, "body")

	token, userID := f.register(t, "dana@example.com")
	resp, body = f.do(t, fiber.MethodGet, "/api/content/jobs/data-analyst?mode=card", nil, bearer(token)...)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, string(entitlement.OutcomeUpgradeCard), body["outcome"])

	_, body = f.do(t, fiber.MethodPut, "/api/admin/users/"+userID+"/subscription", map[string]string{
		"subscription_status": models.SubscriptionStatusActive,
		"subscription_tier":   models.SubscriptionTierPremium,
	}, "X-Admin-Token", adminToken)
	assert.Equal(t, "Subscription updated", body["message"])

	_, body = f.do(t, fiber.MethodGet, "/api/content/jobs/data-analyst", nil, bearer(token)...)
	assert.Equal(t, string(entitlement.OutcomeFullContent), body["outcome"])
	item = body["item"].(map[string]interface{})
	assert.Equal(t, "premium insight", item["body"])
}

func TestContentHandler_List(t *testing.T) {
	f := newFixture(t)
	seedContent(t, f.db)
	token, _ := f.register(t, "dana@example.com")

	resp, body := f.do(t, fiber.MethodGet, "/api/content/jobs?mode=suppress", nil, bearer(token)...)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := body["data"].([]interface{})
	require.Len(t, data, 1)
	assert.Equal(t, "nurse", data[0].(map[string]interface{})["item"].(map[string]interface{})["slug"])

	resp, _ = f.do(t, fiber.MethodGet, "/api/content/jobs?mode=sparkle", nil)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodGet, "/api/content/recipes", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestContentHandler_Upsert(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, fiber.MethodPut, "/api/admin/content/tools/chatbot", map[string]interface{}{"title": "Chatbot"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, body := f.do(t, fiber.MethodPut, "/api/admin/content/tools/chatbot", map[string]interface{}{
		"title": "Chatbot", "vendor": "Acme", "is_premium": true,
	}, "X-Admin-Token", adminToken)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "chatbot", body["slug"])

	resp, _ = f.do(t, fiber.MethodPut, "/api/admin/content/tools/empty", map[string]interface{}{"vendor": "Acme"}, "X-Admin-Token", adminToken)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestFeedbackHandler_Submit(t *testing.T) {
	f := newFixture(t)
	token, _ := f.register(t, "dana@example.com")

	resp, body := f.do(t, fiber.MethodPost, "/api/feedback", map[string]interface{}{
		"type": "review", "category": "content_quality", "title": "Great", "description": "Loved it",
	}, bearer(token)...)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["fields"], "rating")
	assert.Zero(t, f.mailer.notifications)
	assert.Zero(t, f.backend.forwards)

	resp, body = f.do(t, fiber.MethodPost, "/api/feedback", map[string]interface{}{
		"type": "feature_request", "category": "search", "title": "Filter by industry", "description": "Please add it",
	}, bearer(token)...)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, models.FeedbackStatusPending, body["status"])
	assert.Equal(t, 1, f.mailer.notifications)
	assert.Equal(t, 1, f.backend.forwards)

	resp, body = f.do(t, fiber.MethodGet, "/api/feedback/mine", nil, bearer(token)...)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total"])
}

func TestFeedbackHandler_Submit_RequiresSession(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, fiber.MethodPost, "/api/feedback", map[string]interface{}{"type": "issue"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestFeedbackHandler_Public(t *testing.T) {
	f := newFixture(t)
	token, _ := f.register(t, "dana@example.com")

	resp, _ := f.do(t, fiber.MethodPost, "/api/feedback", map[string]interface{}{
		"type": "review", "category": "overall_experience", "title": "Helpful", "description": "Clear and useful", "rating": 5, "is_public": true,
	}, bearer(token)...)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, body := f.do(t, fiber.MethodGet, "/api/feedback/public", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	data := body["data"].([]interface{})
	require.Len(t, data, 1)
	review := data[0].(map[string]interface{})
	assert.Equal(t, "Dana", review["submitter_name"])
	assert.NotContains(t, review, "submitter_email")
}

func TestFeedbackHandler_Respond(t *testing.T) {
	f := newFixture(t)
	token, _ := f.register(t, "dana@example.com")
	_, created := f.do(t, fiber.MethodPost, "/api/feedback", map[string]interface{}{
		"type": "bug_report", "category": "search", "title": "Search breaks", "description": "Empty results", "priority": "high",
	}, bearer(token)...)
	id := created["id"].(string)
	respond := map[string]string{"response": "Fix is on the way", "status": models.FeedbackStatusInProgress}

	resp, _ := f.do(t, fiber.MethodPut, "/api/admin/feedback/"+id, respond, bearer(token)...)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, body := f.do(t, fiber.MethodPut, "/api/admin/feedback/"+id, respond, "X-Admin-Token", adminToken)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, models.FeedbackStatusInProgress, body["status"])
	assert.Equal(t, 1, f.mailer.responses)
	// The CRM update fails, the response still succeeds.
	assert.Equal(t, 1, f.backend.updates)

	resp, _ = f.do(t, fiber.MethodPut, "/api/admin/feedback/"+id, map[string]string{
		"response": "Back to the queue", "status": models.FeedbackStatusPending,
	}, "X-Admin-Token", adminToken)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodPut, "/api/admin/feedback/not-a-uuid", respond, "X-Admin-Token", adminToken)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, fiber.MethodGet, "/api/admin/feedback?status=in_progress", nil, "X-Admin-Token", adminToken)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["total"])
}

func TestAdminHandler_SetSubscription(t *testing.T) {
	f := newFixture(t)
	_, userID := f.register(t, "dana@example.com")

	resp, _ := f.do(t, fiber.MethodPut, "/api/admin/users/"+userID+"/subscription", map[string]string{
		"subscription_status": "gold", "subscription_tier": "premium",
	}, "X-Admin-Token", adminToken)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodPut, "/api/admin/users/00000000-0000-0000-0000-000000000001/subscription", map[string]string{
		"subscription_status": "active", "subscription_tier": "premium",
	}, "X-Admin-Token", adminToken)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestOAuthHandler_Flow(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, fiber.MethodGet, "/api/auth/oauth/google", nil)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	consent, err := http.NewRequest(http.MethodGet, body["url"].(string), nil)
	require.NoError(t, err)
	state := consent.URL.Query().Get("state")
	require.NotEmpty(t, state)

	resp, _ = f.do(t, fiber.MethodGet, "/api/auth/oauth/google/callback?code=good-code&state=wrong", nil)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://site.test/auth/callback?error=invalid_state", resp.Header.Get("Location"))

	// The failed attempt above did not consume the real state.
	resp, _ = f.do(t, fiber.MethodGet, "/api/auth/oauth/google/callback?code=good-code&state="+url.QueryEscape(state), nil)
	require.Equal(t, fiber.StatusFound, resp.StatusCode)
	location, err := http.NewRequest(http.MethodGet, resp.Header.Get("Location"), nil)
	require.NoError(t, err)
	code := location.URL.Query().Get("code")
	require.NotEmpty(t, code)

	resp, body = f.do(t, fiber.MethodPost, "/api/auth/oauth/exchange", map[string]string{"code": code})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "oauth@example.com", body["user"].(map[string]interface{})["email"])

	resp, _ = f.do(t, fiber.MethodPost, "/api/auth/oauth/exchange", map[string]string{"code": code})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodGet, "/api/auth/oauth/facebook", nil)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestMetricsRoute_RequiresAdmin(t *testing.T) {
	f := newFixture(t)
	token, _ := f.register(t, "viewer@example.com")

	resp, _ := f.do(t, fiber.MethodGet, "/metrics", nil)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodGet, "/metrics", nil, bearer(token)...)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	resp, _ = f.do(t, fiber.MethodGet, "/metrics", nil, "X-Admin-Token", adminToken)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestHealthHandler_Check(t *testing.T) {
	tests := []struct {
		name       string
		pingDB     func() error
		pingDocs   func(context.Context) error
		wantStatus int
		wantDocs   string
	}{
		{"healthy", func() error { return nil }, nil, fiber.StatusOK, "postgres"},
		{"db down", func() error { return errors.New("connection refused") }, nil, fiber.StatusServiceUnavailable, "postgres"},
		{"mongo down", func() error { return nil }, func(context.Context) error { return errors.New("no primary") }, fiber.StatusServiceUnavailable, "mongo unhealthy: no primary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docsName := "postgres"
			if tt.pingDocs != nil {
				docsName = "mongo"
			}
			app := fiber.New()
			app.Get("/health", handlers.NewHealthHandler(tt.pingDB, docsName, tt.pingDocs, false, "none").Check)

			resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/health", nil))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var body map[string]string
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.wantDocs, body["document_store"])
			assert.Equal(t, "disabled", body["billing"])
			assert.Equal(t, "none", body["crm"])
		})
	}
}
