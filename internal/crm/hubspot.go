package crm

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/thrivewithai/thrive-backend/internal/models"
)

// HubSpot association type ids (HUBSPOT_DEFINED).
const (
	assocTicketToContact = 16
	assocNoteToContact   = 202
	assocNoteToTicket    = 228
)

// stageByStatus maps feedback status onto the default HubSpot support
// pipeline stages.
var stageByStatus = map[string]string{
	models.FeedbackStatusPending:    "1",
	models.FeedbackStatusInReview:   "2",
	models.FeedbackStatusInProgress: "3",
	models.FeedbackStatusResolved:   "4",
	models.FeedbackStatusClosed:     "4",
}

var priorityByFeedback = map[string]string{
	models.PriorityLow:    "LOW",
	models.PriorityMedium: "MEDIUM",
	models.PriorityHigh:   "HIGH",
	models.PriorityUrgent: "HIGH",
}

type HubSpotConfig struct {
	Token          string
	APIURL         string
	FeedbackObject string
	Pipeline       string
}

type HubSpot struct {
	api            *jsonClient
	cache          ContactCache
	feedbackObject string
	pipeline       string
}

func NewHubSpot(cfg HubSpotConfig, cache ContactCache, httpClient *http.Client) *HubSpot {
	return &HubSpot{
		api: &jsonClient{
			baseURL:    strings.TrimRight(cfg.APIURL, "/"),
			headers:    map[string]string{"Authorization": "Bearer " + cfg.Token},
			httpClient: httpClient,
		},
		cache:          cache,
		feedbackObject: cfg.FeedbackObject,
		pipeline:       cfg.Pipeline,
	}
}

func (h *HubSpot) Name() string { return BackendHubSpot }

type hsObject struct {
	ID string `json:"id"`
}

type hsAssociation struct {
	To    hsObject            `json:"to"`
	Types []hsAssociationType `json:"types"`
}

type hsAssociationType struct {
	Category string `json:"associationCategory"`
	TypeID   int    `json:"associationTypeId"`
}

type hsCreateRequest struct {
	Properties   map[string]interface{} `json:"properties"`
	Associations []hsAssociation        `json:"associations,omitempty"`
}

func associate(id string, typeID int) []hsAssociation {
	return []hsAssociation{{
		To:    hsObject{ID: id},
		Types: []hsAssociationType{{Category: "HUBSPOT_DEFINED", TypeID: typeID}},
	}}
}

// Forward runs contact, ticket, then the structured feedback object. When
// the feedback object cannot be created a formatted note is attached to the
// contact instead.
func (h *HubSpot) Forward(ctx context.Context, fb *models.Feedback) (ExternalRef, error) {
	contactID, err := h.findOrCreateContact(ctx, fb.SubmitterEmail, fb.SubmitterName)
	if err != nil {
		return ExternalRef{}, fmt.Errorf("hubspot contact: %w", err)
	}
	ref := ExternalRef{ContactID: contactID}

	ticketID, err := h.createTicket(ctx, fb, contactID)
	if err != nil {
		return ref, fmt.Errorf("hubspot ticket: %w", err)
	}
	ref.ExternalID = ticketID

	if err := h.createFeedbackObject(ctx, fb, contactID); err != nil {
		slog.Warn("hubspot feedback object failed, attaching note",
			"feedback_id", fb.ID.String(), "error", err)
		if noteErr := h.createNote(ctx, formatFeedbackNote(fb), associate(contactID, assocNoteToContact)); noteErr != nil {
			return ref, fmt.Errorf("hubspot fallback note: %w", noteErr)
		}
	}
	return ref, nil
}

// UpdateStatus moves the ticket to the stage for the new status and records
// the response as a note on the ticket.
func (h *HubSpot) UpdateStatus(ctx context.Context, fb *models.Feedback) error {
	ticketID := stringValue(fb.ExternalID)
	if ticketID == "" {
		return errors.New("hubspot: feedback has no ticket id")
	}

	if stage, ok := stageByStatus[fb.Status]; ok {
		req := map[string]interface{}{"properties": map[string]interface{}{"hs_pipeline_stage": stage}}
		if err := h.api.do(ctx, http.MethodPatch, "/crm/v3/objects/tickets/"+ticketID, req, nil); err != nil {
			return fmt.Errorf("hubspot ticket stage: %w", err)
		}
	}

	body := fmt.Sprintf("<p><strong>Admin response</strong> (status: %s)</p><p>%s</p>",
		fb.Status, html.EscapeString(stringValue(fb.AdminResponse)))
	if err := h.createNote(ctx, body, associate(ticketID, assocNoteToTicket)); err != nil {
		return fmt.Errorf("hubspot response note: %w", err)
	}
	return nil
}

func (h *HubSpot) findOrCreateContact(ctx context.Context, email, name string) (string, error) {
	email = models.NormalizeEmail(email)
	if h.cache != nil {
		if id, ok, err := h.cache.Get(ctx, email); err == nil && ok {
			return id, nil
		} else if err != nil {
			slog.Warn("contact cache read failed", "error", err)
		}
	}

	id, err := h.searchContact(ctx, email)
	if err != nil {
		return "", err
	}
	if id == "" {
		id, err = h.createContact(ctx, email, name)
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.Status == http.StatusConflict {
			// Created concurrently by another submission.
			id, err = h.searchContact(ctx, email)
		}
		if err != nil {
			return "", err
		}
		if id == "" {
			return "", errors.New("contact not found after conflict")
		}
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, email, id); err != nil {
			slog.Warn("contact cache write failed", "error", err)
		}
	}
	return id, nil
}

func (h *HubSpot) searchContact(ctx context.Context, email string) (string, error) {
	req := map[string]interface{}{
		"filterGroups": []map[string]interface{}{{
			"filters": []map[string]string{{"propertyName": "email", "operator": "EQ", "value": email}},
		}},
		"properties": []string{"email"},
		"limit":      1,
	}
	var resp struct {
		Total   int        `json:"total"`
		Results []hsObject `json:"results"`
	}
	if err := h.api.do(ctx, http.MethodPost, "/crm/v3/objects/contacts/search", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "", nil
	}
	return resp.Results[0].ID, nil
}

func (h *HubSpot) createContact(ctx context.Context, email, name string) (string, error) {
	first, last := splitName(name)
	req := hsCreateRequest{Properties: map[string]interface{}{
		"email":     email,
		"firstname": first,
		"lastname":  last,
	}}
	var resp hsObject
	if err := h.api.do(ctx, http.MethodPost, "/crm/v3/objects/contacts", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (h *HubSpot) createTicket(ctx context.Context, fb *models.Feedback, contactID string) (string, error) {
	req := hsCreateRequest{
		Properties: map[string]interface{}{
			"subject":            fmt.Sprintf("[%s] %s", fb.Type, fb.Title),
			"content":            fb.Description,
			"hs_pipeline":        h.pipeline,
			"hs_pipeline_stage":  stageByStatus[models.FeedbackStatusPending],
			"hs_ticket_priority": priorityByFeedback[fb.Priority],
			"hs_ticket_category": fb.Category,
		},
		Associations: associate(contactID, assocTicketToContact),
	}
	var resp hsObject
	if err := h.api.do(ctx, http.MethodPost, "/crm/v3/objects/tickets", req, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (h *HubSpot) createFeedbackObject(ctx context.Context, fb *models.Feedback, contactID string) error {
	if h.feedbackObject == "" {
		return errors.New("no feedback object type configured")
	}

	props := map[string]interface{}{
		"feedback_id":   fb.ID.String(),
		"feedback_type": fb.Type,
		"category":      fb.Category,
		"title":         fb.Title,
		"description":   fb.Description,
		"priority":      fb.Priority,
		"status":        fb.Status,
		"page_path":     fb.PagePath,
		"is_public":     fb.IsPublic,
		"tags":          strings.Join(fb.Tags, ";"),
	}
	if fb.Rating != nil {
		props["rating"] = *fb.Rating
	}

	var created hsObject
	if err := h.api.do(ctx, http.MethodPost, "/crm/v3/objects/"+h.feedbackObject, hsCreateRequest{Properties: props}, &created); err != nil {
		return err
	}

	path := fmt.Sprintf("/crm/v4/objects/%s/%s/associations/default/contacts/%s", h.feedbackObject, created.ID, contactID)
	return h.api.do(ctx, http.MethodPut, path, nil, nil)
}

func (h *HubSpot) createNote(ctx context.Context, body string, assoc []hsAssociation) error {
	req := hsCreateRequest{
		Properties: map[string]interface{}{
			"hs_timestamp": time.Now().UTC().Format(time.RFC3339),
			"hs_note_body": body,
		},
		Associations: assoc,
	}
	return h.api.do(ctx, http.MethodPost, "/crm/v3/objects/notes", req, nil)
}

func formatFeedbackNote(fb *models.Feedback) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<p><strong>%s feedback: %s</strong></p>", html.EscapeString(fb.Type), html.EscapeString(fb.Title))
	fmt.Fprintf(&b, "<p>Category: %s<br>Priority: %s", html.EscapeString(fb.Category), html.EscapeString(fb.Priority))
	if fb.Rating != nil {
		fmt.Fprintf(&b, "<br>Rating: %d/5", *fb.Rating)
	}
	if fb.PagePath != "" {
		fmt.Fprintf(&b, "<br>Page: %s", html.EscapeString(fb.PagePath))
	}
	b.WriteString("</p>")
	fmt.Fprintf(&b, "<p>%s</p>", html.EscapeString(fb.Description))
	fmt.Fprintf(&b, "<p>Feedback ID: %s</p>", fb.ID)
	return b.String()
}

func splitName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
