// Package billing talks to the external subscription provider.
package billing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/thrivewithai/thrive-backend/internal/models"
)

var (
	ErrUserCancelled   = errors.New("purchase cancelled by user")
	ErrUnavailable     = errors.New("payment system unavailable")
	ErrNoPlans         = errors.New("no plans available")
	ErrPackageNotFound = errors.New("package not found")
)

// Client is the billing provider. Purchase never runs for a package that
// was not resolved from the loaded catalog first.
type Client interface {
	Configured() bool
	ListOfferings(ctx context.Context, appUserID string) ([]Offering, error)
	Purchase(ctx context.Context, appUserID string, pkg Package, fetchToken string) (*Snapshot, error)
	Restore(ctx context.Context, appUserID string) (*Snapshot, error)
	GetCustomerInfo(ctx context.Context, appUserID string) (*Snapshot, error)
}

type Offering struct {
	ID          string    `json:"id"`
	Description string    `json:"description"`
	Current     bool      `json:"current"`
	Packages    []Package `json:"packages"`
}

type Package struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
}

// Snapshot is the provider's view of one customer's entitlement.
type Snapshot struct {
	CustomerID string
	ProductID  string
	// HadEntitlement is true when the entitlement exists at all, even expired.
	HadEntitlement bool
	Active         bool
	// Unsubscribed is set once the customer turned off renewal. The
	// entitlement stays Active until ExpiresAt.
	Unsubscribed bool
	ExpiresAt    *time.Time
}

// Fields maps the snapshot onto the cached user fields. An unsubscribed but
// unexpired entitlement maps to cancelled, the same value a CANCELLATION
// webhook writes, so a refresh never flips it back to active.
func (s *Snapshot) Fields() (status, tier string) {
	switch {
	case s.Active && s.Unsubscribed:
		return models.SubscriptionStatusCancelled, models.SubscriptionTierPremium
	case s.Active:
		return models.SubscriptionStatusActive, models.SubscriptionTierPremium
	case s.HadEntitlement:
		return models.SubscriptionStatusExpired, models.SubscriptionTierFree
	default:
		return models.SubscriptionStatusFree, models.SubscriptionTierFree
	}
}

// Catalog holds the last loaded offerings.
type Catalog struct {
	mu        sync.RWMutex
	offerings []Offering
	loadedAt  time.Time
}

func (c *Catalog) Store(offerings []Offering) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offerings = offerings
	c.loadedAt = time.Now()
}

func (c *Catalog) Offerings() []Offering {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offerings
}

func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

func (c *Catalog) Find(packageID string) (Package, error) {
	return FindPackage(c.Offerings(), packageID)
}

// FindPackage resolves packageID against offerings. Matching is on the
// package id or the store product id.
func FindPackage(offerings []Offering, packageID string) (Package, error) {
	if len(offerings) == 0 {
		return Package{}, ErrNoPlans
	}
	for _, o := range offerings {
		for _, p := range o.Packages {
			if p.ID == packageID || p.ProductID == packageID {
				return p, nil
			}
		}
	}
	return Package{}, ErrPackageNotFound
}

// Disabled is used when no provider is configured. Every call fails with
// ErrUnavailable.
type Disabled struct{}

func (Disabled) Configured() bool { return false }

func (Disabled) ListOfferings(context.Context, string) ([]Offering, error) {
	return nil, ErrUnavailable
}

func (Disabled) Purchase(context.Context, string, Package, string) (*Snapshot, error) {
	return nil, ErrUnavailable
}

func (Disabled) Restore(context.Context, string) (*Snapshot, error) {
	return nil, ErrUnavailable
}

func (Disabled) GetCustomerInfo(context.Context, string) (*Snapshot, error) {
	return nil, ErrUnavailable
}
