package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/thrivewithai/thrive-backend/internal/models"
)

// Strapi stores feedback in a "feedbacks" collection type.
type Strapi struct {
	api *jsonClient
}

func NewStrapi(baseURL, token string, httpClient *http.Client) *Strapi {
	headers := map[string]string{}
	if token != "" {
		headers["Authorization"] = "Bearer " + token
	}
	return &Strapi{api: &jsonClient{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api",
		headers:    headers,
		httpClient: httpClient,
	}}
}

func (s *Strapi) Name() string { return BackendStrapi }

func (s *Strapi) Forward(ctx context.Context, fb *models.Feedback) (ExternalRef, error) {
	req := map[string]interface{}{"data": map[string]interface{}{
		"feedbackId":     fb.ID.String(),
		"type":           fb.Type,
		"category":       fb.Category,
		"title":          fb.Title,
		"description":    fb.Description,
		"rating":         ratingValue(fb),
		"priority":       fb.Priority,
		"status":         fb.Status,
		"submitterName":  fb.SubmitterName,
		"submitterEmail": fb.SubmitterEmail,
		"pagePath":       fb.PagePath,
		"isPublic":       fb.IsPublic,
		"tags":           []string(fb.Tags),
	}}

	// Strapi 4 answers a numeric id, Strapi 5 a documentId.
	var resp struct {
		Data struct {
			ID         json.Number `json:"id"`
			DocumentID string      `json:"documentId"`
		} `json:"data"`
	}
	if err := s.api.do(ctx, http.MethodPost, "/feedbacks", req, &resp); err != nil {
		return ExternalRef{}, fmt.Errorf("strapi create: %w", err)
	}

	id := resp.Data.DocumentID
	if id == "" {
		id = resp.Data.ID.String()
	}
	return ExternalRef{ExternalID: id}, nil
}

func (s *Strapi) UpdateStatus(ctx context.Context, fb *models.Feedback) error {
	id := stringValue(fb.ExternalID)
	if id == "" {
		return errors.New("strapi: feedback has no entry id")
	}
	req := map[string]interface{}{"data": map[string]interface{}{
		"status":        fb.Status,
		"adminResponse": stringValue(fb.AdminResponse),
	}}
	if err := s.api.do(ctx, http.MethodPut, "/feedbacks/"+id, req, nil); err != nil {
		return fmt.Errorf("strapi update: %w", err)
	}
	return nil
}
