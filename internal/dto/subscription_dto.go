package dto

import "github.com/thrivewithai/thrive-backend/internal/billing"

type OfferingsResponse struct {
	Offerings []billing.Offering `json:"offerings"`
}

type PurchaseRequest struct {
	PackageID string `json:"package_id"`
	// FetchToken identifies the completed checkout; empty when the user left
	// checkout without paying.
	FetchToken string `json:"fetch_token"`
}

type SubscriptionResponse struct {
	Status             string `json:"status"`
	SubscriptionStatus string `json:"subscription_status"`
	SubscriptionTier   string `json:"subscription_tier"`
	HasPremiumAccess   bool   `json:"has_premium_access"`
}

type SetSubscriptionRequest struct {
	SubscriptionStatus string `json:"subscription_status"`
	SubscriptionTier   string `json:"subscription_tier"`
}
