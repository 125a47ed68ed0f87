package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/thrivewithai/thrive-backend/internal/dto"
	"github.com/thrivewithai/thrive-backend/internal/entitlement"
	"github.com/thrivewithai/thrive-backend/internal/services"
	"github.com/thrivewithai/thrive-backend/internal/session"
)

type ContentHandler struct {
	contentService *services.ContentService
}

func NewContentHandler(contentService *services.ContentService) *ContentHandler {
	return &ContentHandler{contentService: contentService}
}

// List serves one catalog kind. Premium items go through the gate with the
// presentation chosen by ?mode=blur|card|suppress.
func (h *ContentHandler) List(c *fiber.Ctx) error {
	mode, ok := entitlement.ParseMode(c.Query("mode"))
	if !ok {
		return invalidMode(c)
	}

	limit, offset := pagination(c)
	items, total, err := h.contentService.List(c.UserContext(), c.Params("kind"), services.ContentFilter{
		Query:    c.Query("q"),
		Industry: c.Query("industry"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		return contentError(c, err)
	}

	return c.JSON(dto.PageResponse{
		Data:   h.contentService.PresentAll(session.FromContext(c), items, mode),
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (h *ContentHandler) Get(c *fiber.Ctx) error {
	mode, ok := entitlement.ParseMode(c.Query("mode"))
	if !ok {
		return invalidMode(c)
	}

	item, err := h.contentService.Get(c.UserContext(), c.Params("kind"), c.Params("slug"))
	if err != nil {
		return contentError(c, err)
	}
	return c.JSON(h.contentService.Present(session.FromContext(c), item, mode))
}

// Upsert is the admin write path; the body is the item's JSON.
func (h *ContentHandler) Upsert(c *fiber.Ctx) error {
	item, err := h.contentService.Upsert(c.UserContext(), c.Params("kind"), c.Params("slug"), c.Body())
	if err != nil {
		return contentError(c, err)
	}
	return c.JSON(item)
}

func contentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrUnknownContentKind), errors.Is(err, services.ErrContentNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	case errors.Is(err, services.ErrInvalidContent):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
			Error: true, Message: err.Error(),
		})
	}
	return internalError(c)
}

func invalidMode(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{
		Error: true, Message: "mode must be blur, card or suppress",
	})
}

func pagination(c *fiber.Ctx) (limit, offset int) {
	limit = c.QueryInt("limit", 20)
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset = c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
