// Package entitlement decides what a content region exposes to a session.
//
// The gate is pure. It reads only the cached subscription fields on the
// session and never performs I/O.
package entitlement

import (
	"github.com/thrivewithai/thrive-backend/internal/models"
	"github.com/thrivewithai/thrive-backend/internal/session"
)

// Mode controls what a non-entitled session sees for a premium region.
type Mode string

const (
	ModeBlur        Mode = "blur"
	ModeUpgradeCard Mode = "card"
	ModeSuppress    Mode = "suppress"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeBlur, ModeUpgradeCard, ModeSuppress:
		return Mode(s), true
	case "":
		return ModeBlur, true
	}
	return "", false
}

type Outcome string

const (
	OutcomeFullContent    Outcome = "full_content"
	OutcomeSignInPrompt   Outcome = "sign_in_prompt"
	OutcomeFallback       Outcome = "fallback"
	OutcomeBlurredUpgrade Outcome = "blurred_upgrade"
	OutcomeUpgradeCard    Outcome = "upgrade_card"
	OutcomeHidden         Outcome = "hidden"
)

// ExposesBody reports whether the region's full body may be sent.
func (o Outcome) ExposesBody() bool {
	return o == OutcomeFullContent
}

type Region struct {
	RequiresPremium bool
	Mode            Mode
	HasFallback     bool
}

// Gate evaluates regions. When Available is false the billing provider could
// not be set up and every premium check answers "not entitled".
type Gate struct {
	Available bool
}

func NewGate(available bool) *Gate {
	return &Gate{Available: available}
}

func (g *Gate) HasPremiumAccess(s *session.Session) bool {
	if s == nil || !g.Available {
		return false
	}
	return s.SubscriptionTier == models.SubscriptionTierPremium &&
		s.SubscriptionStatus == models.SubscriptionStatusActive
}

// Evaluate applies the rules in order; the first match wins. An anonymous
// session is always asked to sign in before any upgrade prompt.
func (g *Gate) Evaluate(s *session.Session, r Region) Outcome {
	if !r.RequiresPremium {
		return OutcomeFullContent
	}
	if s == nil {
		return OutcomeSignInPrompt
	}
	if g.HasPremiumAccess(s) {
		return OutcomeFullContent
	}
	if r.HasFallback {
		return OutcomeFallback
	}

	switch r.Mode {
	case ModeUpgradeCard:
		return OutcomeUpgradeCard
	case ModeSuppress:
		return OutcomeHidden
	default:
		return OutcomeBlurredUpgrade
	}
}
