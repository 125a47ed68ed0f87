// Package crm forwards feedback to the one CRM or CMS chosen at startup.
package crm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/thrivewithai/thrive-backend/internal/config"
	"github.com/thrivewithai/thrive-backend/internal/models"
)

const (
	BackendHubSpot  = "hubspot"
	BackendAirtable = "airtable"
	BackendNotion   = "notion"
	BackendStrapi   = "strapi"
	BackendWebhook  = "webhook"
	BackendNone     = "none"
)

// ExternalRef points at the records a backend created for one feedback item.
type ExternalRef struct {
	ExternalID string
	ContactID  string
}

// Backend is one forwarding target. Callers treat every error as
// best-effort: it is logged and never undoes the local record.
type Backend interface {
	Name() string
	Forward(ctx context.Context, fb *models.Feedback) (ExternalRef, error)
	// UpdateStatus mirrors an admin response. fb carries the new status and
	// response plus the ExternalID/ContactID stored by Forward.
	UpdateStatus(ctx context.Context, fb *models.Feedback) error
}

// New selects the backend named by cfg.CRMBackend. cache may be nil.
func New(cfg *config.Config, cache ContactCache) (Backend, error) {
	httpClient := &http.Client{Timeout: cfg.CRMTimeout}

	switch strings.ToLower(cfg.CRMBackend) {
	case BackendHubSpot:
		if cfg.HubSpotToken == "" {
			return nil, fmt.Errorf("crm backend %q requires HUBSPOT_ACCESS_TOKEN", BackendHubSpot)
		}
		return NewHubSpot(HubSpotConfig{
			Token:          cfg.HubSpotToken,
			APIURL:         cfg.HubSpotAPIURL,
			FeedbackObject: cfg.HubSpotFeedbackObj,
			Pipeline:       cfg.HubSpotPipeline,
		}, cache, httpClient), nil
	case BackendAirtable:
		if cfg.AirtableToken == "" || cfg.AirtableBaseID == "" {
			return nil, fmt.Errorf("crm backend %q requires AIRTABLE_TOKEN and AIRTABLE_BASE_ID", BackendAirtable)
		}
		return NewAirtable(cfg.AirtableToken, cfg.AirtableBaseID, cfg.AirtableTable, httpClient), nil
	case BackendNotion:
		if cfg.NotionToken == "" || cfg.NotionDatabaseID == "" {
			return nil, fmt.Errorf("crm backend %q requires NOTION_TOKEN and NOTION_DATABASE_ID", BackendNotion)
		}
		return NewNotion(cfg.NotionToken, cfg.NotionDatabaseID, httpClient), nil
	case BackendStrapi:
		if cfg.StrapiURL == "" {
			return nil, fmt.Errorf("crm backend %q requires STRAPI_URL", BackendStrapi)
		}
		return NewStrapi(cfg.StrapiURL, cfg.StrapiToken, httpClient), nil
	case BackendWebhook:
		if cfg.FeedbackWebhookURL == "" {
			return nil, fmt.Errorf("crm backend %q requires FEEDBACK_WEBHOOK_URL", BackendWebhook)
		}
		return NewWebhook(cfg.FeedbackWebhookURL, httpClient), nil
	case BackendNone, "":
		return None{}, nil
	default:
		return nil, fmt.Errorf("unknown crm backend %q", cfg.CRMBackend)
	}
}

// None forwards nothing.
type None struct{}

func (None) Name() string { return BackendNone }

func (None) Forward(context.Context, *models.Feedback) (ExternalRef, error) {
	return ExternalRef{}, nil
}

func (None) UpdateStatus(context.Context, *models.Feedback) error { return nil }

func ratingValue(fb *models.Feedback) interface{} {
	if fb.Rating == nil {
		return nil
	}
	return *fb.Rating
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
