package crm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/thrivewithai/thrive-backend/internal/models"
)

const (
	notionAPIURL  = "https://api.notion.com/v1"
	notionVersion = "2022-06-28"
	// Notion rejects rich text blocks over 2000 characters.
	notionTextLimit = 2000
)

// Notion creates one page per feedback item in a database.
type Notion struct {
	api        *jsonClient
	databaseID string
}

func NewNotion(token, databaseID string, httpClient *http.Client) *Notion {
	return &Notion{
		api: &jsonClient{
			baseURL: notionAPIURL,
			headers: map[string]string{
				"Authorization":  "Bearer " + token,
				"Notion-Version": notionVersion,
			},
			httpClient: httpClient,
		},
		databaseID: databaseID,
	}
}

func (n *Notion) Name() string { return BackendNotion }

func richText(s string) []map[string]interface{} {
	if len(s) > notionTextLimit {
		s = s[:notionTextLimit]
	}
	return []map[string]interface{}{{"type": "text", "text": map[string]string{"content": s}}}
}

func selectValue(s string) map[string]interface{} {
	return map[string]interface{}{"select": map[string]string{"name": s}}
}

func (n *Notion) Forward(ctx context.Context, fb *models.Feedback) (ExternalRef, error) {
	props := map[string]interface{}{
		"Title":    map[string]interface{}{"title": richText(fb.Title)},
		"Type":     selectValue(fb.Type),
		"Category": selectValue(fb.Category),
		"Priority": selectValue(fb.Priority),
		"Status":   selectValue(fb.Status),
		"Email":    map[string]interface{}{"email": fb.SubmitterEmail},
		"Name":     map[string]interface{}{"rich_text": richText(fb.SubmitterName)},
		"Feedback ID": map[string]interface{}{
			"rich_text": richText(fb.ID.String()),
		},
	}
	if fb.Rating != nil {
		props["Rating"] = map[string]interface{}{"number": *fb.Rating}
	}

	req := map[string]interface{}{
		"parent":     map[string]string{"database_id": n.databaseID},
		"properties": props,
		"children": []map[string]interface{}{{
			"object":    "block",
			"type":      "paragraph",
			"paragraph": map[string]interface{}{"rich_text": richText(fb.Description)},
		}},
	}

	var resp struct {
		ID string `json:"id"`
	}
	if err := n.api.do(ctx, http.MethodPost, "/pages", req, &resp); err != nil {
		return ExternalRef{}, fmt.Errorf("notion create: %w", err)
	}
	return ExternalRef{ExternalID: resp.ID}, nil
}

func (n *Notion) UpdateStatus(ctx context.Context, fb *models.Feedback) error {
	pageID := stringValue(fb.ExternalID)
	if pageID == "" {
		return errors.New("notion: feedback has no page id")
	}
	req := map[string]interface{}{
		"properties": map[string]interface{}{
			"Status":         selectValue(fb.Status),
			"Admin Response": map[string]interface{}{"rich_text": richText(stringValue(fb.AdminResponse))},
		},
	}
	if err := n.api.do(ctx, http.MethodPatch, "/pages/"+pageID, req, nil); err != nil {
		return fmt.Errorf("notion update: %w", err)
	}
	return nil
}
