package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/thrivewithai/thrive-backend/internal/dto"
	"github.com/thrivewithai/thrive-backend/internal/entitlement"
	"github.com/thrivewithai/thrive-backend/internal/metrics"
	"github.com/thrivewithai/thrive-backend/internal/models"
	"github.com/thrivewithai/thrive-backend/internal/session"
	"gorm.io/gorm"
)

var (
	ErrUnknownContentKind = errors.New("unknown content kind")
	ErrContentNotFound    = errors.New("content not found")
	ErrInvalidContent     = errors.New("invalid content payload")
)

type ContentFilter struct {
	Query    string
	Industry string
	Limit    int
	Offset   int
}

// ContentService serves the job, tool, use case and glossary catalog. Every
// item leaves through Present, which applies the entitlement gate.
type ContentService struct {
	db      *gorm.DB
	gate    *entitlement.Gate
	metrics *metrics.Metrics
}

func NewContentService(db *gorm.DB, gate *entitlement.Gate, m *metrics.Metrics) *ContentService {
	return &ContentService{db: db, gate: gate, metrics: m}
}

func newContentItem(kind string) (models.ContentItem, error) {
	switch kind {
	case models.ContentKindJobs:
		return &models.Job{}, nil
	case models.ContentKindTools:
		return &models.Tool{}, nil
	case models.ContentKindUseCases:
		return &models.UseCase{}, nil
	case models.ContentKindGlossary:
		return &models.GlossaryTerm{}, nil
	}
	return nil, ErrUnknownContentKind
}

func listKind[T any, P interface {
	*T
	models.ContentItem
}](query *gorm.DB, limit, offset int) ([]models.ContentItem, int64, error) {
	var total int64
	if err := query.Model(new(T)).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []T
	if err := query.Order("title ASC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	items := make([]models.ContentItem, len(rows))
	for i := range rows {
		items[i] = P(&rows[i])
	}
	return items, total, nil
}

func (s *ContentService) List(ctx context.Context, kind string, filter ContentFilter) ([]models.ContentItem, int64, error) {
	if !models.IsValidContentKind(kind) {
		return nil, 0, ErrUnknownContentKind
	}
	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	query := s.db.WithContext(ctx)
	if q := strings.TrimSpace(filter.Query); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(summary) LIKE ?", like, like)
	}
	if filter.Industry != "" && (kind == models.ContentKindJobs || kind == models.ContentKindUseCases) {
		query = query.Where("industry = ?", filter.Industry)
	}

	switch kind {
	case models.ContentKindJobs:
		return listKind[models.Job](query, limit, filter.Offset)
	case models.ContentKindTools:
		return listKind[models.Tool](query, limit, filter.Offset)
	case models.ContentKindUseCases:
		return listKind[models.UseCase](query, limit, filter.Offset)
	case models.ContentKindGlossary:
		return listKind[models.GlossaryTerm](query.Order("term ASC"), limit, filter.Offset)
	}
	return nil, 0, ErrUnknownContentKind
}

func (s *ContentService) Get(ctx context.Context, kind, slug string) (models.ContentItem, error) {
	item, err := newContentItem(kind)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}
	return item, nil
}

// Upsert creates or replaces the item at slug from a JSON document shaped
// like the kind's model.
func (s *ContentService) Upsert(ctx context.Context, kind, slug string, raw []byte) (models.ContentItem, error) {
	item, err := newContentItem(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, item); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	base := item.Base()
	base.Slug = slug
	if strings.TrimSpace(base.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidContent)
	}
	if g, ok := item.(*models.GlossaryTerm); ok && g.Term == "" {
		g.Term = g.Title
	}

	existing, err := s.Get(ctx, kind, slug)
	switch {
	case err == nil:
		base.ID = existing.Base().ID
		base.CreatedAt = existing.Base().CreatedAt
		err = s.db.WithContext(ctx).Save(item).Error
	case errors.Is(err, ErrContentNotFound):
		base.ID = uuid.Nil
		err = s.db.WithContext(ctx).Create(item).Error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to save %s/%s: %w", kind, slug, err)
	}
	return item, nil
}

// Present runs one item through the gate. The body is dropped for every
// outcome other than full content, and hidden items carry nothing. A teaser,
// when set, is the fallback view for signed-in users without premium.
func (s *ContentService) Present(sess *session.Session, item models.ContentItem, mode entitlement.Mode) dto.GatedContent {
	base := item.Base()
	outcome := s.gate.Evaluate(sess, entitlement.Region{
		RequiresPremium: base.IsPremium,
		Mode:            mode,
		HasFallback:     strings.TrimSpace(base.Teaser) != "",
	})
	s.metrics.GateOutcome(string(outcome))

	if outcome == entitlement.OutcomeHidden {
		return dto.GatedContent{Outcome: outcome, Locked: true}
	}
	if !outcome.ExposesBody() {
		base.Body = ""
	}
	return dto.GatedContent{
		Outcome: outcome,
		Locked:  !outcome.ExposesBody(),
		Item:    item,
	}
}

func (s *ContentService) PresentAll(sess *session.Session, items []models.ContentItem, mode entitlement.Mode) []dto.GatedContent {
	out := make([]dto.GatedContent, 0, len(items))
	for _, item := range items {
		gated := s.Present(sess, item, mode)
		// Suppressed regions are left out of listings entirely.
		if gated.Outcome == entitlement.OutcomeHidden {
			continue
		}
		out = append(out, gated)
	}
	return out
}
