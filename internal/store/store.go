// Package store defines persistence for the two document-shaped records,
// users and feedback, with a GORM implementation and a MongoDB one.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/thrivewithai/thrive-backend/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("record already exists")
	ErrConflict  = errors.New("record changed concurrently")
)

type UserStore interface {
	FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByIdentity(ctx context.Context, provider, accountID string) (*models.User, error)
	FindUserByCustomerID(ctx context.Context, customerID string) (*models.User, error)
	CreateUser(ctx context.Context, user *models.User) error
	LinkIdentity(ctx context.Context, userID uuid.UUID, identity *models.LinkedIdentity) error
	UpdateSubscription(ctx context.Context, userID uuid.UUID, update SubscriptionUpdate) error
	TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
}

// SubscriptionUpdate carries the two cached entitlement fields. CustomerID is
// only written when non-nil.
type SubscriptionUpdate struct {
	Status     string
	Tier       string
	CustomerID *string
}

type FeedbackStore interface {
	CreateFeedback(ctx context.Context, fb *models.Feedback) error
	FindFeedback(ctx context.Context, id uuid.UUID) (*models.Feedback, error)
	ListFeedback(ctx context.Context, filter FeedbackFilter) ([]models.Feedback, int64, error)
	ApplyAdminResponse(ctx context.Context, id uuid.UUID, resp AdminResponse) (*models.Feedback, error)
	SetExternalRef(ctx context.Context, id uuid.UUID, externalID, contactID string) error
}

type FeedbackFilter struct {
	Status     string
	Type       string
	UserID     *uuid.UUID
	PublicOnly bool
	Limit      int
	Offset     int
}

// AdminResponse is applied in one write, guarded by ExpectedStatus so two
// admins cannot move the same item backwards.
type AdminResponse struct {
	Response       string
	Status         string
	InternalNotes  *string
	RespondedAt    time.Time
	ExpectedStatus string
}
