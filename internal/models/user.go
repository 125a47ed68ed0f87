package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	SubscriptionStatusFree      = "free"
	SubscriptionStatusActive    = "active"
	SubscriptionStatusExpired   = "expired"
	SubscriptionStatusCancelled = "cancelled"

	SubscriptionTierFree    = "free"
	SubscriptionTierPremium = "premium"

	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the account record plus the locally cached entitlement fields.
// SubscriptionStatus and SubscriptionTier are written only by entitlement sync
// or by an admin.
type User struct {
	ID                 uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id" bson:"_id"`
	Email              string           `gorm:"not null;size:255;uniqueIndex" json:"email" bson:"email"`
	Name               string           `gorm:"size:255" json:"name" bson:"name"`
	Image              *string          `gorm:"size:1024" json:"image,omitempty" bson:"image,omitempty"`
	PasswordHash       *string          `gorm:"size:255" json:"-" bson:"password_hash,omitempty"`
	Role               string           `gorm:"size:20;default:'user'" json:"role" bson:"role"`
	SubscriptionStatus string           `gorm:"size:20;not null;default:'free'" json:"subscription_status" bson:"subscription_status"`
	SubscriptionTier   string           `gorm:"size:20;not null;default:'free'" json:"subscription_tier" bson:"subscription_tier"`
	BillingCustomerID  *string          `gorm:"size:255;index" json:"-" bson:"billing_customer_id,omitempty"`
	Identities         []LinkedIdentity `gorm:"foreignKey:UserID" json:"identities,omitempty" bson:"identities,omitempty"`
	LastLoginAt        *time.Time       `json:"last_login_at,omitempty" bson:"last_login_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at" bson:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.Email = NormalizeEmail(u.Email)
	if u.SubscriptionStatus == "" {
		u.SubscriptionStatus = SubscriptionStatusFree
	}
	if u.SubscriptionTier == "" {
		u.SubscriptionTier = SubscriptionTierFree
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	return nil
}

// HasPremiumAccess is the entitlement snapshot: premium tier with an active status.
func (u *User) HasPremiumAccess() bool {
	return u.SubscriptionTier == SubscriptionTierPremium && u.SubscriptionStatus == SubscriptionStatusActive
}

// HasIdentity reports whether the user already has a linked identity for provider.
func (u *User) HasIdentity(provider string) bool {
	for _, id := range u.Identities {
		if id.Provider == provider {
			return true
		}
	}
	return false
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func IsValidSubscriptionStatus(s string) bool {
	switch s {
	case SubscriptionStatusFree, SubscriptionStatusActive, SubscriptionStatusExpired, SubscriptionStatusCancelled:
		return true
	}
	return false
}

func IsValidSubscriptionTier(t string) bool {
	return t == SubscriptionTierFree || t == SubscriptionTierPremium
}
