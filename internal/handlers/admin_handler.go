package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/thrivewithai/thrive-backend/internal/dto"
	"github.com/thrivewithai/thrive-backend/internal/services"
)

type AdminHandler struct {
	subscriptionService *services.SubscriptionService
}

func NewAdminHandler(subscriptionService *services.SubscriptionService) *AdminHandler {
	return &AdminHandler{subscriptionService: subscriptionService}
}

// SetSubscription overrides a user's cached subscription fields.
func (h *AdminHandler) SetSubscription(c *fiber.Ctx) error {
	userID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid user id",
		})
	}

	var req dto.SetSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	if err := h.subscriptionService.SetSubscription(c.UserContext(), userID, &req); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidSubscription):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
				Error: true, Message: err.Error(),
			})
		case errors.Is(err, services.ErrUserNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
				Error: true, Message: "User not found",
			})
		}
		return internalError(c)
	}

	return c.JSON(fiber.Map{"message": "Subscription updated"})
}
