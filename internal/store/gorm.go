package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/thrivewithai/thrive-backend/internal/models"
	"gorm.io/gorm"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Preload("Identities").First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Preload("Identities").
		Where("email = ?", models.NormalizeEmail(email)).First(&user).Error
	if err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) FindUserByIdentity(ctx context.Context, provider, accountID string) (*models.User, error) {
	var identity models.LinkedIdentity
	err := s.db.WithContext(ctx).
		Where("provider = ? AND provider_account_id = ?", provider, accountID).
		First(&identity).Error
	if err != nil {
		return nil, translate(err)
	}
	return s.FindUserByID(ctx, identity.UserID)
}

func (s *GormStore) FindUserByCustomerID(ctx context.Context, customerID string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("billing_customer_id = ?", customerID).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *GormStore) CreateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", translate(err))
	}
	return nil
}

func (s *GormStore) LinkIdentity(ctx context.Context, userID uuid.UUID, identity *models.LinkedIdentity) error {
	identity.UserID = userID
	if err := s.db.WithContext(ctx).Create(identity).Error; err != nil {
		return fmt.Errorf("failed to link identity: %w", translate(err))
	}
	return nil
}

func (s *GormStore) UpdateSubscription(ctx context.Context, userID uuid.UUID, update SubscriptionUpdate) error {
	fields := map[string]interface{}{
		"subscription_status": update.Status,
		"subscription_tier":   update.Tier,
	}
	if update.CustomerID != nil {
		fields["billing_customer_id"] = *update.CustomerID
	}

	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Updates(fields)
	if result.Error != nil {
		return fmt.Errorf("failed to update subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("last_login_at", at).Error
}

func (s *GormStore) CreateFeedback(ctx context.Context, fb *models.Feedback) error {
	if err := s.db.WithContext(ctx).Create(fb).Error; err != nil {
		return fmt.Errorf("failed to create feedback: %w", translate(err))
	}
	return nil
}

func (s *GormStore) FindFeedback(ctx context.Context, id uuid.UUID) (*models.Feedback, error) {
	var fb models.Feedback
	if err := s.db.WithContext(ctx).First(&fb, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &fb, nil
}

func (s *GormStore) ListFeedback(ctx context.Context, filter FeedbackFilter) ([]models.Feedback, int64, error) {
	var items []models.Feedback
	var total int64

	query := s.db.WithContext(ctx).Model(&models.Feedback{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.PublicOnly {
		query = query.Where("is_public = ? AND type = ?", true, models.FeedbackTypeReview)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if err := query.Order("created_at DESC").Limit(limit).Offset(filter.Offset).Find(&items).Error; err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (s *GormStore) ApplyAdminResponse(ctx context.Context, id uuid.UUID, resp AdminResponse) (*models.Feedback, error) {
	fields := map[string]interface{}{
		"admin_response": resp.Response,
		"status":         resp.Status,
		"responded_at":   resp.RespondedAt,
	}
	if resp.InternalNotes != nil {
		fields["internal_notes"] = *resp.InternalNotes
	}

	result := s.db.WithContext(ctx).Model(&models.Feedback{}).
		Where("id = ? AND status = ?", id, resp.ExpectedStatus).
		Updates(fields)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to apply admin response: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		if _, err := s.FindFeedback(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrConflict
	}
	return s.FindFeedback(ctx, id)
}

func (s *GormStore) SetExternalRef(ctx context.Context, id uuid.UUID, externalID, contactID string) error {
	fields := map[string]interface{}{}
	if externalID != "" {
		fields["external_id"] = externalID
	}
	if contactID != "" {
		fields["contact_id"] = contactID
	}
	if len(fields) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Model(&models.Feedback{}).Where("id = ?", id).Updates(fields).Error
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
