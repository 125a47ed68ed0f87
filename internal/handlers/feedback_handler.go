package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/thrivewithai/thrive-backend/internal/dto"
	"github.com/thrivewithai/thrive-backend/internal/services"
	"github.com/thrivewithai/thrive-backend/internal/session"
	"github.com/thrivewithai/thrive-backend/internal/store"
)

type FeedbackHandler struct {
	feedbackService *services.FeedbackService
}

func NewFeedbackHandler(feedbackService *services.FeedbackService) *FeedbackHandler {
	return &FeedbackHandler{feedbackService: feedbackService}
}

// Submit answers once the item is stored and both notifications have been
// attempted. Notification failures never change the response.
func (h *FeedbackHandler) Submit(c *fiber.Ctx) error {
	sess := session.FromContext(c)
	if sess == nil {
		return unauthorized(c)
	}

	var req dto.CreateFeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	fb, err := h.feedbackService.Submit(c.UserContext(), sess, &req)
	if err != nil {
		return feedbackError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fb)
}

func (h *FeedbackHandler) Mine(c *fiber.Ctx) error {
	sess := session.FromContext(c)
	if sess == nil {
		return unauthorized(c)
	}

	limit, offset := pagination(c)
	items, total, err := h.feedbackService.ListMine(c.UserContext(), sess, limit, offset)
	if err != nil {
		return internalError(c)
	}
	return c.JSON(dto.PageResponse{Data: items, Total: total, Limit: limit, Offset: offset})
}

func (h *FeedbackHandler) Public(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	reviews, total, err := h.feedbackService.PublicReviews(c.UserContext(), limit, offset)
	if err != nil {
		return internalError(c)
	}
	return c.JSON(dto.PageResponse{Data: reviews, Total: total, Limit: limit, Offset: offset})
}

func (h *FeedbackHandler) List(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	items, total, err := h.feedbackService.List(c.UserContext(), store.FeedbackFilter{
		Status: c.Query("status"),
		Type:   c.Query("type"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return internalError(c)
	}
	return c.JSON(dto.PageResponse{Data: items, Total: total, Limit: limit, Offset: offset})
}

func (h *FeedbackHandler) Get(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return feedbackError(c, services.ErrInvalidFeedbackID)
	}

	fb, err := h.feedbackService.Get(c.UserContext(), id)
	if err != nil {
		return feedbackError(c, err)
	}
	return c.JSON(fb)
}

func (h *FeedbackHandler) Respond(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return feedbackError(c, services.ErrInvalidFeedbackID)
	}

	var req dto.RespondFeedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Invalid request body",
		})
	}

	fb, err := h.feedbackService.Respond(c.UserContext(), id, &req)
	if err != nil {
		return feedbackError(c, err)
	}
	return c.JSON(fb)
}

func feedbackError(c *fiber.Ctx, err error) error {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: "Validation failed", Fields: verr.Fields,
		})
	case errors.Is(err, services.ErrInvalidFeedbackID):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, services.ErrFeedbackNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, services.ErrInvalidTransition):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, services.ErrFeedbackConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}
	return internalError(c)
}
