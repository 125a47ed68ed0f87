package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateFeedbackRequest struct {
	Type        string     `json:"type" validate:"required"`
	Category    string     `json:"category" validate:"required"`
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description" validate:"required,max=5000"`
	Rating      *int       `json:"rating,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	PagePath    string     `json:"page_path,omitempty" validate:"max=500"`
	JobID       *uuid.UUID `json:"job_id,omitempty"`
	ToolID      *uuid.UUID `json:"tool_id,omitempty"`
	IsPublic    bool       `json:"is_public,omitempty"`
	Tags        []string   `json:"tags,omitempty" validate:"max=10,dive,max=50"`
}

type RespondFeedbackRequest struct {
	Response      string  `json:"response" validate:"required,max=5000"`
	Status        string  `json:"status" validate:"required"`
	InternalNotes *string `json:"internal_notes,omitempty"`
}

// PublicReview is what anonymous visitors see of a review.
type PublicReview struct {
	ID            uuid.UUID  `json:"id"`
	Category      string     `json:"category"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	Rating        int        `json:"rating"`
	SubmitterName string     `json:"submitter_name"`
	AdminResponse *string    `json:"admin_response,omitempty"`
	RespondedAt   *time.Time `json:"responded_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}
