package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/thrivewithai/thrive-backend/internal/dto"
)

type HealthHandler struct {
	pingDB    func() error
	pingDocs  func(ctx context.Context) error
	docsName  string
	billingOn bool
	crmName   string
}

// NewHealthHandler takes pingDocs only when users and feedback live outside
// the relational database.
func NewHealthHandler(pingDB func() error, docsName string, pingDocs func(ctx context.Context) error, billingConfigured bool, crmName string) *HealthHandler {
	return &HealthHandler{
		pingDB:    pingDB,
		pingDocs:  pingDocs,
		docsName:  docsName,
		billingOn: billingConfigured,
		crmName:   crmName,
	}
}

func (h *HealthHandler) Check(c *fiber.Ctx) error {
	status := "ok"

	dbStatus := "ok"
	if err := h.pingDB(); err != nil {
		dbStatus = "unhealthy: " + err.Error()
		status = "degraded"
	}

	docsStatus := h.docsName
	if h.pingDocs != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := h.pingDocs(ctx); err != nil {
			docsStatus = h.docsName + " unhealthy: " + err.Error()
			status = "degraded"
		} else {
			docsStatus = h.docsName + " ok"
		}
	}

	billingStatus := "disabled"
	if h.billingOn {
		billingStatus = "configured"
	}

	code := fiber.StatusOK
	if status != "ok" {
		code = fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(dto.HealthResponse{
		Status:        status,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		DB:            dbStatus,
		DocumentStore: docsStatus,
		Billing:       billingStatus,
		CRM:           h.crmName,
	})
}
