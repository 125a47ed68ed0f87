package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ProviderCredentials = "credentials"
	ProviderGoogle      = "google"
	ProviderGitHub      = "github"
	ProviderApple       = "apple"
)

// LinkedIdentity ties a user to one external identity provider account.
// (provider, provider_account_id) is globally unique and a user holds at most
// one identity per provider.
type LinkedIdentity struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id" bson:"id"`
	UserID            uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_identity_user_provider,priority:1" json:"-" bson:"-"`
	Provider          string    `gorm:"size:50;not null;uniqueIndex:idx_identity_user_provider,priority:2;uniqueIndex:idx_identity_provider_account,priority:1" json:"provider" bson:"provider"`
	ProviderAccountID string    `gorm:"size:255;not null;uniqueIndex:idx_identity_provider_account,priority:2" json:"-" bson:"provider_account_id"`
	CreatedAt         time.Time `json:"created_at" bson:"created_at"`
}

func (li *LinkedIdentity) BeforeCreate(tx *gorm.DB) error {
	if li.ID == uuid.Nil {
		li.ID = uuid.New()
	}
	return nil
}
