package crm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/thrivewithai/thrive-backend/internal/models"
)

const airtableAPIURL = "https://api.airtable.com/v0"

// Airtable appends one record per feedback item to a table.
type Airtable struct {
	api   *jsonClient
	table string
}

func NewAirtable(token, baseID, table string, httpClient *http.Client) *Airtable {
	return &Airtable{
		api: &jsonClient{
			baseURL:    airtableAPIURL + "/" + baseID,
			headers:    map[string]string{"Authorization": "Bearer " + token},
			httpClient: httpClient,
		},
		table: table,
	}
}

func (a *Airtable) Name() string { return BackendAirtable }

func (a *Airtable) tablePath() string {
	return "/" + url.PathEscape(a.table)
}

func (a *Airtable) Forward(ctx context.Context, fb *models.Feedback) (ExternalRef, error) {
	fields := map[string]interface{}{
		"Feedback ID": fb.ID.String(),
		"Type":        fb.Type,
		"Category":    fb.Category,
		"Title":       fb.Title,
		"Description": fb.Description,
		"Priority":    fb.Priority,
		"Status":      fb.Status,
		"Name":        fb.SubmitterName,
		"Email":       fb.SubmitterEmail,
		"Page":        fb.PagePath,
		"Public":      fb.IsPublic,
		"Tags":        strings.Join(fb.Tags, ", "),
		"Created":     fb.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if r := ratingValue(fb); r != nil {
		fields["Rating"] = r
	}

	req := map[string]interface{}{
		"records":  []map[string]interface{}{{"fields": fields}},
		"typecast": true,
	}
	var resp struct {
		Records []struct {
			ID string `json:"id"`
		} `json:"records"`
	}
	if err := a.api.do(ctx, http.MethodPost, a.tablePath(), req, &resp); err != nil {
		return ExternalRef{}, fmt.Errorf("airtable create: %w", err)
	}
	if len(resp.Records) == 0 {
		return ExternalRef{}, errors.New("airtable create: no record returned")
	}
	return ExternalRef{ExternalID: resp.Records[0].ID}, nil
}

func (a *Airtable) UpdateStatus(ctx context.Context, fb *models.Feedback) error {
	recordID := stringValue(fb.ExternalID)
	if recordID == "" {
		return errors.New("airtable: feedback has no record id")
	}
	req := map[string]interface{}{
		"fields": map[string]interface{}{
			"Status":         fb.Status,
			"Admin Response": stringValue(fb.AdminResponse),
		},
		"typecast": true,
	}
	if err := a.api.do(ctx, http.MethodPatch, a.tablePath()+"/"+recordID, req, nil); err != nil {
		return fmt.Errorf("airtable update: %w", err)
	}
	return nil
}
