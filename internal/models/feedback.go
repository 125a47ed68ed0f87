package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	FeedbackTypeReview         = "review"
	FeedbackTypeIssue          = "issue"
	FeedbackTypeContentRequest = "content_request"
	FeedbackTypeFeatureRequest = "feature_request"
	FeedbackTypeBugReport      = "bug_report"

	FeedbackStatusPending    = "pending"
	FeedbackStatusInReview   = "in_review"
	FeedbackStatusInProgress = "in_progress"
	FeedbackStatusResolved   = "resolved"
	FeedbackStatusClosed     = "closed"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// CategoriesByType is the fixed category set accepted for each feedback type.
var CategoriesByType = map[string][]string{
	FeedbackTypeReview:         {"overall_experience", "content_quality", "tool_recommendations", "job_insights", "premium_value"},
	FeedbackTypeIssue:          {"account", "billing", "content_error", "broken_link", "accessibility", "other"},
	FeedbackTypeContentRequest: {"new_job", "new_tool", "new_use_case", "glossary_term", "guide", "other"},
	FeedbackTypeFeatureRequest: {"search", "personalization", "notifications", "integrations", "premium_feature", "other"},
	FeedbackTypeBugReport:      {"ui", "performance", "search", "authentication", "payment", "other"},
}

var validPriorities = map[string]bool{
	PriorityLow: true, PriorityMedium: true, PriorityHigh: true, PriorityUrgent: true,
}

// feedbackTransitions lists the forward moves allowed from each status.
// resolved and closed are terminal.
var feedbackTransitions = map[string][]string{
	FeedbackStatusPending:    {FeedbackStatusInReview, FeedbackStatusInProgress, FeedbackStatusResolved, FeedbackStatusClosed},
	FeedbackStatusInReview:   {FeedbackStatusInProgress, FeedbackStatusResolved, FeedbackStatusClosed},
	FeedbackStatusInProgress: {FeedbackStatusResolved, FeedbackStatusClosed},
}

type Feedback struct {
	ID             uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id" bson:"_id"`
	UserID         uuid.UUID                   `gorm:"type:uuid;not null;index" json:"user_id" bson:"user_id"`
	Type           string                      `gorm:"size:30;not null;index" json:"type" bson:"type"`
	Category       string                      `gorm:"size:50;not null" json:"category" bson:"category"`
	Title          string                      `gorm:"size:200;not null" json:"title" bson:"title"`
	Description    string                      `gorm:"type:text;not null" json:"description" bson:"description"`
	Rating         *int                        `json:"rating,omitempty" bson:"rating,omitempty"`
	Priority       string                      `gorm:"size:10;not null;default:'medium'" json:"priority" bson:"priority"`
	Status         string                      `gorm:"size:20;not null;default:'pending';index" json:"status" bson:"status"`
	SubmitterName  string                      `gorm:"size:255" json:"submitter_name" bson:"submitter_name"`
	SubmitterEmail string                      `gorm:"size:255;not null" json:"submitter_email" bson:"submitter_email"`
	PagePath       string                      `gorm:"size:500" json:"page_path,omitempty" bson:"page_path,omitempty"`
	JobID          *uuid.UUID                  `gorm:"type:uuid" json:"job_id,omitempty" bson:"job_id,omitempty"`
	ToolID         *uuid.UUID                  `gorm:"type:uuid" json:"tool_id,omitempty" bson:"tool_id,omitempty"`
	IsPublic       bool                        `gorm:"default:false" json:"is_public" bson:"is_public"`
	Tags           datatypes.JSONSlice[string] `json:"tags,omitempty" bson:"tags,omitempty"`
	AdminResponse  *string                     `gorm:"type:text" json:"admin_response,omitempty" bson:"admin_response,omitempty"`
	InternalNotes  *string                     `gorm:"type:text" json:"-" bson:"internal_notes,omitempty"`
	RespondedAt    *time.Time                  `json:"responded_at,omitempty" bson:"responded_at,omitempty"`
	ExternalID     *string                     `gorm:"size:255" json:"-" bson:"external_id,omitempty"`
	ContactID      *string                     `gorm:"size:255" json:"-" bson:"contact_id,omitempty"`
	CreatedAt      time.Time                   `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time                   `json:"updated_at" bson:"updated_at"`
}

func (f *Feedback) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// IsResponded is one-way: once an admin response exists the item stays responded.
func (f *Feedback) IsResponded() bool {
	return f.RespondedAt != nil
}

// CanTransitionTo reports whether status may move from the current status to
// next. Re-asserting the current status is allowed so a response can be edited
// without a status change.
func (f *Feedback) CanTransitionTo(next string) bool {
	if next == f.Status {
		return IsValidFeedbackStatus(next)
	}
	for _, s := range feedbackTransitions[f.Status] {
		if s == next {
			return true
		}
	}
	return false
}

func IsValidFeedbackType(t string) bool {
	_, ok := CategoriesByType[t]
	return ok
}

func IsValidCategory(feedbackType, category string) bool {
	for _, c := range CategoriesByType[feedbackType] {
		if c == category {
			return true
		}
	}
	return false
}

func IsValidPriority(p string) bool {
	return validPriorities[p]
}

func IsValidFeedbackStatus(s string) bool {
	switch s {
	case FeedbackStatusPending, FeedbackStatusInReview, FeedbackStatusInProgress, FeedbackStatusResolved, FeedbackStatusClosed:
		return true
	}
	return false
}

// AllowsPriority reports whether the submitter may choose a priority for the type.
func AllowsPriority(feedbackType string) bool {
	return feedbackType == FeedbackTypeIssue || feedbackType == FeedbackTypeBugReport
}
