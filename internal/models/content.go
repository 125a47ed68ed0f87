package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ContentKindJobs     = "jobs"
	ContentKindTools    = "tools"
	ContentKindUseCases = "use-cases"
	ContentKindGlossary = "glossary"
)

// ContentBase holds the columns shared by every catalog entity. Premium rows
// are passed through the entitlement gate before their Body is exposed; Teaser
// is what signed-in users without premium see instead.
type ContentBase struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Slug      string    `gorm:"size:255;not null;uniqueIndex" json:"slug"`
	Title     string    `gorm:"size:255;not null" json:"title"`
	Summary   string    `gorm:"type:text" json:"summary"`
	Body      string    `gorm:"type:text" json:"body,omitempty"`
	Teaser    string    `gorm:"type:text" json:"teaser,omitempty"`
	IsPremium bool      `gorm:"default:false;index" json:"is_premium"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (c *ContentBase) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type Job struct {
	ContentBase
	Industry       string                      `gorm:"size:100;index" json:"industry"`
	AIImpactScore  int                         `json:"ai_impact_score"`
	Skills         datatypes.JSONSlice[string] `json:"skills,omitempty"`
	RelatedToolIDs datatypes.JSONSlice[string] `json:"related_tool_ids,omitempty"`
}

type Tool struct {
	ContentBase
	Vendor      string                      `gorm:"size:100" json:"vendor"`
	Website     string                      `gorm:"size:500" json:"website"`
	PricingTier string                      `gorm:"size:50" json:"pricing_tier"`
	Categories  datatypes.JSONSlice[string] `json:"categories,omitempty"`
}

type UseCase struct {
	ContentBase
	Industry   string                      `gorm:"size:100;index" json:"industry"`
	Difficulty string                      `gorm:"size:20" json:"difficulty"`
	ToolSlugs  datatypes.JSONSlice[string] `json:"tool_slugs,omitempty"`
}

type GlossaryTerm struct {
	ContentBase
	Term        string `gorm:"size:255;not null" json:"term"`
	Acronym     string `gorm:"size:50" json:"acronym,omitempty"`
	SeeAlsoSlug string `gorm:"size:255" json:"see_also,omitempty"`
}

func (GlossaryTerm) TableName() string {
	return "glossary_terms"
}

// ContentItem is implemented by every catalog entity.
type ContentItem interface {
	Base() *ContentBase
}

func (j *Job) Base() *ContentBase          { return &j.ContentBase }
func (t *Tool) Base() *ContentBase         { return &t.ContentBase }
func (u *UseCase) Base() *ContentBase      { return &u.ContentBase }
func (g *GlossaryTerm) Base() *ContentBase { return &g.ContentBase }

func IsValidContentKind(kind string) bool {
	switch kind {
	case ContentKindJobs, ContentKindTools, ContentKindUseCases, ContentKindGlossary:
		return true
	}
	return false
}
