// Package session carries the signed-in user, if any, through a request.
package session

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/thrivewithai/thrive-backend/internal/models"
)

const localsKey = "session"

// Session is the view of a user that request handling is allowed to see.
// The subscription fields are the locally cached ones.
type Session struct {
	UserID             uuid.UUID
	Email              string
	Name               string
	Role               string
	SubscriptionStatus string
	SubscriptionTier   string
}

func FromUser(u *models.User) *Session {
	return &Session{
		UserID:             u.ID,
		Email:              u.Email,
		Name:               u.Name,
		Role:               u.Role,
		SubscriptionStatus: u.SubscriptionStatus,
		SubscriptionTier:   u.SubscriptionTier,
	}
}

// FromContext returns nil for anonymous requests.
func FromContext(c *fiber.Ctx) *Session {
	s, _ := c.Locals(localsKey).(*Session)
	return s
}

func Set(c *fiber.Ctx, s *Session) {
	c.Locals(localsKey, s)
}

// GetUserID extracts the user UUID from JWT claims in context.
func GetUserID(c *fiber.Ctx) (uuid.UUID, error) {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return uuid.Nil, errors.New("invalid token in context")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, errors.New("invalid claims")
	}

	sub, ok := claims["sub"].(string)
	if !ok {
		return uuid.Nil, errors.New("missing sub claim")
	}

	return uuid.Parse(sub)
}
