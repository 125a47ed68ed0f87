package dto

import "github.com/thrivewithai/thrive-backend/internal/entitlement"

// GatedContent wraps one catalog item with the gate's decision. Item is nil
// when the outcome hides the region; for non-full outcomes the body is
// stripped before it is sent.
type GatedContent struct {
	Outcome entitlement.Outcome `json:"outcome"`
	Locked  bool                `json:"locked"`
	Item    interface{}         `json:"item,omitempty"`
}
