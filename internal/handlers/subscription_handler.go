package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/thrivewithai/thrive-backend/internal/billing"
	"github.com/thrivewithai/thrive-backend/internal/dto"
	"github.com/thrivewithai/thrive-backend/internal/services"
	"github.com/thrivewithai/thrive-backend/internal/session"
)

type SubscriptionHandler struct {
	subscriptionService *services.SubscriptionService
}

func NewSubscriptionHandler(subscriptionService *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptionService: subscriptionService}
}

func (h *SubscriptionHandler) Offerings(c *fiber.Ctx) error {
	sess := session.FromContext(c)
	if sess == nil {
		return unauthorized(c)
	}

	offerings, err := h.subscriptionService.Offerings(c.UserContext(), sess)
	if err != nil {
		return billingError(c, "offerings", err)
	}
	return c.JSON(dto.OfferingsResponse{Offerings: offerings})
}

func (h *SubscriptionHandler) Purchase(c *fiber.Ctx) error {
	sess := session.FromContext(c)
	if sess == nil {
		return unauthorized(c)
	}

	var req dto.PurchaseRequest
	if err := c.BodyParser(&req); err != nil || req.PackageID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "package_id is required",
		})
	}

	resp, err := h.subscriptionService.Purchase(c.UserContext(), sess, &req)
	if err != nil {
		return billingError(c, "purchase", err)
	}
	return c.JSON(resp)
}

func (h *SubscriptionHandler) Restore(c *fiber.Ctx) error {
	sess := session.FromContext(c)
	if sess == nil {
		return unauthorized(c)
	}

	resp, err := h.subscriptionService.Restore(c.UserContext(), sess)
	if err != nil {
		return billingError(c, "restore", err)
	}
	return c.JSON(resp)
}

func (h *SubscriptionHandler) Refresh(c *fiber.Ctx) error {
	sess := session.FromContext(c)
	if sess == nil {
		return unauthorized(c)
	}

	resp, err := h.subscriptionService.Refresh(c.UserContext(), sess)
	if err != nil {
		return billingError(c, "refresh", err)
	}
	return c.JSON(resp)
}

// billingError keeps provider details out of responses: anything that is
// not a cancellation or a catalog miss is "payment system unavailable".
func billingError(c *fiber.Ctx, op string, err error) error {
	switch {
	case errors.Is(err, billing.ErrUserCancelled):
		return c.JSON(fiber.Map{"status": "cancelled"})
	case errors.Is(err, billing.ErrNoPlans):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, billing.ErrPackageNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}

	slog.WarnContext(c.UserContext(), "billing provider call failed", "op", op, "error", err)
	return c.Status(fiber.StatusServiceUnavailable).JSON(dto.ErrorResponse{
		Error: true, Message: billing.ErrUnavailable.Error(),
	})
}
