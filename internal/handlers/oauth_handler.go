package handlers

import (
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/thrivewithai/thrive-backend/internal/dto"
	"github.com/thrivewithai/thrive-backend/internal/oauth"
	"github.com/thrivewithai/thrive-backend/internal/services"
)

const (
	stateTTL     = 10 * time.Minute
	loginCodeTTL = 2 * time.Minute
)

// OAuthHandler runs the redirect flow for web sign-in. The callback never
// puts tokens in a URL: it hands the site a one-time code that is exchanged
// for tokens with a POST.
type OAuthHandler struct {
	authService *services.AuthService
	providers   map[string]oauth.Provider
	states      oauth.StateStore
	siteURL     string
}

func NewOAuthHandler(authService *services.AuthService, states oauth.StateStore, siteURL string, providers ...oauth.Provider) *OAuthHandler {
	byName := make(map[string]oauth.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &OAuthHandler{
		authService: authService,
		providers:   byName,
		states:      states,
		siteURL:     strings.TrimRight(siteURL, "/"),
	}
}

func (h *OAuthHandler) ConsentURL(c *fiber.Ctx) error {
	provider, ok := h.providers[c.Params("provider")]
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: "Unknown sign-in provider",
		})
	}

	state, err := oauth.GenerateState()
	if err != nil {
		return internalError(c)
	}
	if err := h.states.Put(c.UserContext(), "state:"+state, provider.Name(), stateTTL); err != nil {
		slog.ErrorContext(c.UserContext(), "failed to store oauth state", "provider", provider.Name(), "error", err)
		return internalError(c)
	}

	return c.JSON(dto.ConsentURLResponse{URL: provider.GetConsentURL(state)})
}

func (h *OAuthHandler) Callback(c *fiber.Ctx) error {
	ctx := c.UserContext()
	name := c.Params("provider")
	provider, ok := h.providers[name]
	if !ok {
		return h.redirectError(c, "unknown_provider")
	}
	if c.Query("error") != "" {
		return h.redirectError(c, "access_denied")
	}

	stored, found, err := h.states.Take(ctx, "state:"+c.Query("state"))
	if err != nil || !found || stored != name {
		return h.redirectError(c, "invalid_state")
	}

	info, err := provider.ExchangeCode(ctx, c.Query("code"))
	if err != nil {
		slog.WarnContext(ctx, "oauth code exchange failed", "provider", name, "error", err)
		return h.redirectError(c, "exchange_failed")
	}

	resp, err := h.authService.SignInExternal(ctx, info)
	if err != nil {
		slog.WarnContext(ctx, "external sign-in rejected", "provider", name, "error", err)
		return h.redirectError(c, "sign_in_rejected")
	}

	code, err := oauth.GenerateState()
	if err != nil {
		return h.redirectError(c, "server_error")
	}
	if err := h.states.Put(ctx, "code:"+code, resp.User.ID.String(), loginCodeTTL); err != nil {
		slog.ErrorContext(ctx, "failed to store login code", "error", err)
		return h.redirectError(c, "server_error")
	}

	return c.Redirect(h.siteURL+"/auth/callback?code="+url.QueryEscape(code), fiber.StatusFound)
}

// Exchange trades a one-time login code for a token pair.
func (h *OAuthHandler) Exchange(c *fiber.Ctx) error {
	var req dto.ExchangeCodeRequest
	if err := c.BodyParser(&req); err != nil || req.Code == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	value, found, err := h.states.Take(c.UserContext(), "code:"+req.Code)
	if err != nil {
		return internalError(c)
	}
	userID, parseErr := uuid.Parse(value)
	if !found || parseErr != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid or expired code",
		})
	}

	resp, err := h.authService.IssueTokens(c.UserContext(), userID)
	if err != nil {
		return internalError(c)
	}
	return c.JSON(resp)
}

func (h *OAuthHandler) redirectError(c *fiber.Ctx, reason string) error {
	return c.Redirect(h.siteURL+"/auth/callback?error="+reason, fiber.StatusFound)
}
