package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/thrivewithai/thrive-backend/internal/billing"
	"github.com/thrivewithai/thrive-backend/internal/dto"
	"github.com/thrivewithai/thrive-backend/internal/metrics"
	"github.com/thrivewithai/thrive-backend/internal/models"
	"github.com/thrivewithai/thrive-backend/internal/session"
	"github.com/thrivewithai/thrive-backend/internal/store"
)

var ErrInvalidSubscription = errors.New("invalid subscription status or tier")

const (
	SyncTriggerPurchase = "purchase"
	SyncTriggerRestore  = "restore"
	SyncTriggerRefresh  = "refresh"
	SyncTriggerWebhook  = "webhook"

	syncTimeout = 5 * time.Second
)

// SubscriptionService keeps the cached subscription fields in step with the
// billing provider. The provider's app user id is the user's UUID.
type SubscriptionService struct {
	users   store.UserStore
	client  billing.Client
	catalog *billing.Catalog
	metrics *metrics.Metrics
}

func NewSubscriptionService(users store.UserStore, client billing.Client, m *metrics.Metrics) *SubscriptionService {
	return &SubscriptionService{
		users:   users,
		client:  client,
		catalog: &billing.Catalog{},
		metrics: m,
	}
}

func (s *SubscriptionService) Available() bool {
	return s.client.Configured()
}

// Offerings loads the offerings from the provider and keeps them as the
// catalog purchases are resolved against.
func (s *SubscriptionService) Offerings(ctx context.Context, sess *session.Session) ([]billing.Offering, error) {
	offerings, err := s.client.ListOfferings(ctx, sess.UserID.String())
	if err != nil {
		return nil, err
	}
	s.catalog.Store(offerings)
	return offerings, nil
}

// WarmCatalog loads offerings once at startup. Failure leaves the catalog
// empty, so purchases answer "no plans available" until offerings load.
func (s *SubscriptionService) WarmCatalog(ctx context.Context) {
	if !s.client.Configured() {
		return
	}
	offerings, err := s.client.ListOfferings(ctx, "catalog-warmup")
	if err != nil {
		slog.Warn("failed to preload offerings", "error", err)
		return
	}
	s.catalog.Store(offerings)
}

// Purchase resolves the package from the loaded catalog before any network
// call. A cancelled checkout comes back as billing.ErrUserCancelled.
func (s *SubscriptionService) Purchase(ctx context.Context, sess *session.Session, req *dto.PurchaseRequest) (*dto.SubscriptionResponse, error) {
	if !s.client.Configured() {
		return nil, billing.ErrUnavailable
	}

	pkg, err := s.catalog.Find(req.PackageID)
	if err != nil {
		return nil, err
	}

	snap, err := s.client.Purchase(ctx, sess.UserID.String(), pkg, req.FetchToken)
	if err != nil {
		return nil, err
	}

	s.SyncEntitlement(ctx, sess.UserID, snap, SyncTriggerPurchase)
	return s.response("purchased", snap), nil
}

func (s *SubscriptionService) Restore(ctx context.Context, sess *session.Session) (*dto.SubscriptionResponse, error) {
	snap, err := s.client.Restore(ctx, sess.UserID.String())
	if err != nil {
		return nil, err
	}
	s.SyncEntitlement(ctx, sess.UserID, snap, SyncTriggerRestore)
	return s.response("restored", snap), nil
}

func (s *SubscriptionService) Refresh(ctx context.Context, sess *session.Session) (*dto.SubscriptionResponse, error) {
	snap, err := s.client.GetCustomerInfo(ctx, sess.UserID.String())
	if err != nil {
		return nil, err
	}
	s.SyncEntitlement(ctx, sess.UserID, snap, SyncTriggerRefresh)
	return s.response("refreshed", snap), nil
}

// SyncEntitlement writes the snapshot to the cached user fields. It never
// fails the caller: an error is logged and the next refresh reconciles.
func (s *SubscriptionService) SyncEntitlement(ctx context.Context, userID uuid.UUID, snap *billing.Snapshot, trigger string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), syncTimeout)
	defer cancel()

	status, tier := snap.Fields()
	update := store.SubscriptionUpdate{Status: status, Tier: tier}
	if snap.CustomerID != "" {
		update.CustomerID = &snap.CustomerID
	}

	if err := s.users.UpdateSubscription(ctx, userID, update); err != nil {
		s.metrics.EntitlementSync(trigger, metrics.ResultFailed)
		reportIntegrationFailure(ctx, "entitlement_sync", err,
			"user_id", userID.String(), "trigger", trigger, "status", status)
		return
	}
	s.metrics.EntitlementSync(trigger, metrics.ResultOK)
	slog.Info("entitlement synced", "user_id", userID.String(), "trigger", trigger, "status", status, "tier", tier)
}

func (s *SubscriptionService) response(outcome string, snap *billing.Snapshot) *dto.SubscriptionResponse {
	status, tier := snap.Fields()
	return &dto.SubscriptionResponse{
		Status:             outcome,
		SubscriptionStatus: status,
		SubscriptionTier:   tier,
		HasPremiumAccess:   status == models.SubscriptionStatusActive && tier == models.SubscriptionTierPremium,
	}
}

// SetSubscription is the administrative override of the cached fields.
func (s *SubscriptionService) SetSubscription(ctx context.Context, userID uuid.UUID, req *dto.SetSubscriptionRequest) error {
	if !models.IsValidSubscriptionStatus(req.SubscriptionStatus) || !models.IsValidSubscriptionTier(req.SubscriptionTier) {
		return ErrInvalidSubscription
	}
	err := s.users.UpdateSubscription(ctx, userID, store.SubscriptionUpdate{
		Status: req.SubscriptionStatus,
		Tier:   req.SubscriptionTier,
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	slog.Info("subscription set by admin", "user_id", userID.String(), "status", req.SubscriptionStatus, "tier", req.SubscriptionTier)
	return nil
}

// HandleWebhookEvent applies a billing provider event to the cached fields.
// Unknown event types are acknowledged and ignored.
func (s *SubscriptionService) HandleWebhookEvent(ctx context.Context, event *dto.RevenueCatEvent) error {
	var status, tier string
	switch event.Type {
	case "INITIAL_PURCHASE", "RENEWAL", "UNCANCELLATION", "PRODUCT_CHANGE", "NON_RENEWING_PURCHASE":
		status, tier = models.SubscriptionStatusActive, models.SubscriptionTierPremium
	case "CANCELLATION":
		status, tier = models.SubscriptionStatusCancelled, models.SubscriptionTierPremium
	case "EXPIRATION":
		status, tier = models.SubscriptionStatusExpired, models.SubscriptionTierFree
	case "BILLING_ISSUE":
		slog.Warn("billing issue reported", "app_user_id", event.AppUserID, "product_id", event.ProductID)
		s.metrics.WebhookEvent(event.Type, metrics.ResultSkipped)
		return nil
	default:
		s.metrics.WebhookEvent(event.Type, metrics.ResultSkipped)
		return nil
	}

	user, err := s.findEventUser(ctx, event)
	if err != nil {
		s.metrics.WebhookEvent(event.Type, metrics.ResultFailed)
		return fmt.Errorf("user not found for webhook event: %w", err)
	}

	customerID := event.OriginalAppUserID
	update := store.SubscriptionUpdate{Status: status, Tier: tier}
	if customerID != "" {
		update.CustomerID = &customerID
	}
	if err := s.users.UpdateSubscription(ctx, user.ID, update); err != nil {
		s.metrics.WebhookEvent(event.Type, metrics.ResultFailed)
		return err
	}

	s.metrics.WebhookEvent(event.Type, metrics.ResultOK)
	s.metrics.EntitlementSync(SyncTriggerWebhook, metrics.ResultOK)
	return nil
}

func (s *SubscriptionService) findEventUser(ctx context.Context, event *dto.RevenueCatEvent) (*models.User, error) {
	candidates := append([]string{event.AppUserID, event.OriginalAppUserID}, event.Aliases...)
	for _, id := range candidates {
		if userID, err := uuid.Parse(id); err == nil {
			if user, err := s.users.FindUserByID(ctx, userID); err == nil {
				return user, nil
			}
		}
	}
	for _, id := range candidates {
		if id == "" {
			continue
		}
		if user, err := s.users.FindUserByCustomerID(ctx, id); err == nil {
			return user, nil
		}
	}
	return nil, store.ErrNotFound
}
