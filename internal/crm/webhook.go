package crm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/thrivewithai/thrive-backend/internal/models"
)

const (
	EventFeedbackCreated   = "feedback.created"
	EventFeedbackResponded = "feedback.responded"
)

// Webhook posts every event as JSON to one URL.
type Webhook struct {
	api *jsonClient
}

func NewWebhook(url string, httpClient *http.Client) *Webhook {
	return &Webhook{api: &jsonClient{baseURL: url, httpClient: httpClient}}
}

func (w *Webhook) Name() string { return BackendWebhook }

type webhookPayload struct {
	Event     string           `json:"event"`
	SentAt    time.Time        `json:"sent_at"`
	Feedback  *models.Feedback `json:"feedback"`
	Response  string           `json:"admin_response,omitempty"`
	Submitter webhookSubmitter `json:"submitter"`
}

type webhookSubmitter struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (w *Webhook) send(ctx context.Context, event string, fb *models.Feedback) error {
	payload := webhookPayload{
		Event:     event,
		SentAt:    time.Now().UTC(),
		Feedback:  fb,
		Response:  stringValue(fb.AdminResponse),
		Submitter: webhookSubmitter{Name: fb.SubmitterName, Email: fb.SubmitterEmail},
	}
	if err := w.api.do(ctx, http.MethodPost, "", payload, nil); err != nil {
		return fmt.Errorf("webhook %s: %w", event, err)
	}
	return nil
}

func (w *Webhook) Forward(ctx context.Context, fb *models.Feedback) (ExternalRef, error) {
	return ExternalRef{}, w.send(ctx, EventFeedbackCreated, fb)
}

func (w *Webhook) UpdateStatus(ctx context.Context, fb *models.Feedback) error {
	return w.send(ctx, EventFeedbackResponded, fb)
}
