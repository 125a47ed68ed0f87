package middleware

import (
	"errors"
	"log/slog"
	"strings"

	jwtware "github.com/gofiber/contrib/jwt"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/thrivewithai/thrive-backend/internal/config"
	"github.com/thrivewithai/thrive-backend/internal/dto"
	"github.com/thrivewithai/thrive-backend/internal/session"
	"github.com/thrivewithai/thrive-backend/internal/store"
)

// jwtLocalsKey is where jwtware leaves the parsed token.
const jwtLocalsKey = "user"

func JWTProtected(cfg *config.Config) fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey: jwtware.SigningKey{Key: []byte(cfg.JWTSecret)},
		ContextKey: jwtLocalsKey,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error:   true,
				Message: "Unauthorized: invalid or expired token",
			})
		},
	})
}

// LoadSession runs after JWTProtected and resolves the token's subject to
// the stored user, so handlers see the current cached subscription fields
// rather than whatever the token was minted with.
func LoadSession(users store.UserStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := session.GetUserID(c)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Unauthorized",
			})
		}

		user, err := users.FindUserByID(c.UserContext(), userID)
		if errors.Is(err, store.ErrNotFound) {
			return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
				Error: true, Message: "Account no longer exists",
			})
		}
		if err != nil {
			slog.ErrorContext(c.UserContext(), "failed to load session user", "user_id", userID.String(), "error", err)
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
				Error: true, Message: "Failed to load account",
			})
		}

		session.Set(c, session.FromUser(user))
		return c.Next()
	}
}

// OptionalSession loads the session when a valid bearer token is present and
// otherwise lets the request through as anonymous.
func OptionalSession(cfg *config.Config, users store.UserStore) fiber.Handler {
	key := []byte(cfg.JWTSecret)
	return func(c *fiber.Ctx) error {
		raw, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || raw == "" {
			return c.Next()
		}

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !token.Valid {
			return c.Next()
		}
		c.Locals(jwtLocalsKey, token)

		userID, err := session.GetUserID(c)
		if err != nil {
			return c.Next()
		}
		if user, err := users.FindUserByID(c.UserContext(), userID); err == nil {
			session.Set(c, session.FromUser(user))
		}
		return c.Next()
	}
}
