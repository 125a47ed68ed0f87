package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator"
	"github.com/google/uuid"
	"github.com/thrivewithai/thrive-backend/internal/crm"
	"github.com/thrivewithai/thrive-backend/internal/dto"
	"github.com/thrivewithai/thrive-backend/internal/metrics"
	"github.com/thrivewithai/thrive-backend/internal/models"
	"github.com/thrivewithai/thrive-backend/internal/session"
	"github.com/thrivewithai/thrive-backend/internal/store"
)

var (
	ErrFeedbackNotFound   = errors.New("feedback not found")
	ErrInvalidTransition  = errors.New("status change not allowed")
	ErrFeedbackConflict   = errors.New("feedback was updated by someone else, reload and retry")
	ErrInvalidFeedbackID  = errors.New("invalid feedback id")
	errFanOutStepCanceled = errors.New("fan-out deadline exceeded")
)

const (
	stepEmail = "email"
	stepCRM   = "crm"
)

// ValidationError lists every failing field of a rejected submission.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Mailer sends the two feedback emails.
type Mailer interface {
	SendFeedbackNotification(fb *models.Feedback) error
	SendFeedbackResponse(fb *models.Feedback) error
}

type FeedbackService struct {
	feedback      store.FeedbackStore
	mailer        Mailer
	crm           crm.Backend
	moderation    *ModerationService
	metrics       *metrics.Metrics
	validate      *validator.Validate
	fanOutTimeout time.Duration
}

func NewFeedbackService(feedback store.FeedbackStore, mailer Mailer, backend crm.Backend, moderation *ModerationService, m *metrics.Metrics, fanOutTimeout time.Duration) *FeedbackService {
	if backend == nil {
		backend = crm.None{}
	}
	if fanOutTimeout <= 0 {
		fanOutTimeout = 30 * time.Second
	}
	return &FeedbackService{
		feedback:      feedback,
		mailer:        mailer,
		crm:           backend,
		moderation:    moderation,
		metrics:       m,
		validate:      validator.New(),
		fanOutTimeout: fanOutTimeout,
	}
}

// Validate checks a submission without touching any store or integration.
func (s *FeedbackService) Validate(req *dto.CreateFeedbackRequest) error {
	fields := map[string]string{}

	req.Title = strings.TrimSpace(req.Title)
	req.Description = strings.TrimSpace(req.Description)

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			fields[jsonField(fe.Field())] = describeTag(fe.Tag(), fe.Param())
		}
	}

	if req.Type != "" && !models.IsValidFeedbackType(req.Type) {
		fields["type"] = "must be one of review, issue, content_request, feature_request, bug_report"
	} else if req.Type != "" && !models.IsValidCategory(req.Type, req.Category) {
		fields["category"] = "must be one of " + strings.Join(models.CategoriesByType[req.Type], ", ")
	}

	if req.Type == models.FeedbackTypeReview {
		if req.Rating == nil || *req.Rating < 1 || *req.Rating > 5 {
			fields["rating"] = "reviews need a rating from 1 to 5"
		}
	} else if req.Rating != nil {
		fields["rating"] = "only reviews carry a rating"
	}

	if req.Priority != "" && models.AllowsPriority(req.Type) && !models.IsValidPriority(req.Priority) {
		fields["priority"] = "must be one of low, medium, high, urgent"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Submit persists the feedback, then notifies by email and forwards to the
// CRM concurrently. Only the persist step can fail the call.
func (s *FeedbackService) Submit(ctx context.Context, sess *session.Session, req *dto.CreateFeedbackRequest) (*models.Feedback, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}

	fb := s.buildFeedback(sess, req)
	if err := s.feedback.CreateFeedback(ctx, fb); err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}
	slog.Info("feedback submitted", "feedback_id", fb.ID.String(), "user_id", sess.UserID.String(), "type", fb.Type)

	s.fanOut(ctx, fb)
	return fb, nil
}

func (s *FeedbackService) buildFeedback(sess *session.Session, req *dto.CreateFeedbackRequest) *models.Feedback {
	priority := models.PriorityMedium
	if models.AllowsPriority(req.Type) && req.Priority != "" {
		priority = req.Priority
	}

	isPublic := false
	if req.Type == models.FeedbackTypeReview && req.IsPublic {
		isPublic = true
		if ok, reason := s.moderation.FilterContent(req.Title + "\n" + req.Description); !ok {
			slog.Info("public review held back by content filter", "user_id", sess.UserID.String(), "reason", reason)
			isPublic = false
		}
	}

	var rating *int
	if req.Type == models.FeedbackTypeReview {
		rating = req.Rating
	}

	return &models.Feedback{
		UserID:         sess.UserID,
		Type:           req.Type,
		Category:       req.Category,
		Title:          req.Title,
		Description:    req.Description,
		Rating:         rating,
		Priority:       priority,
		Status:         models.FeedbackStatusPending,
		SubmitterName:  sess.Name,
		SubmitterEmail: sess.Email,
		PagePath:       req.PagePath,
		JobID:          req.JobID,
		ToolID:         req.ToolID,
		IsPublic:       isPublic,
		Tags:           req.Tags,
	}
}

// fanOut runs the email and CRM steps side by side on a context detached
// from the request, so a client disconnect does not abort them.
func (s *FeedbackService) fanOut(ctx context.Context, fb *models.Feedback) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fanOutTimeout)
	defer cancel()

	snapshot := *fb
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s.runStep(ctx, stepEmail, fb, func() error {
			return s.mailer.SendFeedbackNotification(&snapshot)
		})
	}()

	go func() {
		defer wg.Done()
		if _, ok := s.crm.(crm.None); ok {
			s.metrics.FanOutStep(stepCRM, metrics.ResultSkipped)
			return
		}
		s.runStep(ctx, stepCRM, fb, func() error {
			ref, err := s.crm.Forward(ctx, &snapshot)
			if ref.ExternalID != "" || ref.ContactID != "" {
				if serr := s.feedback.SetExternalRef(ctx, fb.ID, ref.ExternalID, ref.ContactID); serr != nil {
					reportIntegrationFailure(ctx, "feedback_external_ref", serr, "feedback_id", fb.ID.String())
				} else {
					if ref.ExternalID != "" {
						fb.ExternalID = &ref.ExternalID
					}
					if ref.ContactID != "" {
						fb.ContactID = &ref.ContactID
					}
				}
			}
			return err
		})
	}()

	wg.Wait()
}

func (s *FeedbackService) runStep(ctx context.Context, step string, fb *models.Feedback, fn func() error) {
	err := safeCall(fn)
	if err == nil && ctx.Err() != nil {
		err = errFanOutStepCanceled
	}
	if err != nil {
		s.metrics.FanOutStep(step, metrics.ResultFailed)
		reportIntegrationFailure(ctx, "feedback_"+step, err,
			"feedback_id", fb.ID.String(), "crm_backend", s.crm.Name())
		return
	}
	s.metrics.FanOutStep(step, metrics.ResultOK)
}

// safeCall turns a panic inside an integration into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// Respond applies an admin response in one guarded write, then emails the
// submitter once and mirrors the change to the CRM. Neither follow-up can
// undo the local update.
func (s *FeedbackService) Respond(ctx context.Context, id uuid.UUID, req *dto.RespondFeedbackRequest) (*models.Feedback, error) {
	req.Response = strings.TrimSpace(req.Response)
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := map[string]string{}
			for _, fe := range verrs {
				fields[jsonField(fe.Field())] = describeTag(fe.Tag(), fe.Param())
			}
			return nil, &ValidationError{Fields: fields}
		}
		return nil, err
	}
	if !models.IsValidFeedbackStatus(req.Status) {
		return nil, &ValidationError{Fields: map[string]string{"status": "unknown status"}}
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.CanTransitionTo(req.Status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, current.Status, req.Status)
	}

	updated, err := s.feedback.ApplyAdminResponse(ctx, id, store.AdminResponse{
		Response:       req.Response,
		Status:         req.Status,
		InternalNotes:  req.InternalNotes,
		RespondedAt:    time.Now().UTC(),
		ExpectedStatus: current.Status,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		return nil, ErrFeedbackNotFound
	case errors.Is(err, store.ErrConflict):
		return nil, ErrFeedbackConflict
	case err != nil:
		return nil, err
	}
	slog.Info("feedback responded", "feedback_id", id.String(), "from", current.Status, "to", updated.Status)

	s.notifyResponse(ctx, updated)
	return updated, nil
}

func (s *FeedbackService) notifyResponse(ctx context.Context, fb *models.Feedback) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fanOutTimeout)
	defer cancel()

	snapshot := *fb
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.runStep(ctx, stepEmail, fb, func() error {
			return s.mailer.SendFeedbackResponse(&snapshot)
		})
	}()
	go func() {
		defer wg.Done()
		if _, ok := s.crm.(crm.None); ok || fb.ExternalID == nil {
			s.metrics.FanOutStep(stepCRM, metrics.ResultSkipped)
			return
		}
		s.runStep(ctx, stepCRM, fb, func() error {
			return s.crm.UpdateStatus(ctx, &snapshot)
		})
	}()
	wg.Wait()
}

func (s *FeedbackService) Get(ctx context.Context, id uuid.UUID) (*models.Feedback, error) {
	fb, err := s.feedback.FindFeedback(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrFeedbackNotFound
	}
	return fb, err
}

func (s *FeedbackService) List(ctx context.Context, filter store.FeedbackFilter) ([]models.Feedback, int64, error) {
	return s.feedback.ListFeedback(ctx, filter)
}

// ListMine returns the caller's own submissions.
func (s *FeedbackService) ListMine(ctx context.Context, sess *session.Session, limit, offset int) ([]models.Feedback, int64, error) {
	userID := sess.UserID
	return s.feedback.ListFeedback(ctx, store.FeedbackFilter{UserID: &userID, Limit: limit, Offset: offset})
}

// PublicReviews returns published reviews without any submitter contact data.
func (s *FeedbackService) PublicReviews(ctx context.Context, limit, offset int) ([]dto.PublicReview, int64, error) {
	items, total, err := s.feedback.ListFeedback(ctx, store.FeedbackFilter{PublicOnly: true, Limit: limit, Offset: offset})
	if err != nil {
		return nil, 0, err
	}
	reviews := make([]dto.PublicReview, 0, len(items))
	for _, fb := range items {
		rating := 0
		if fb.Rating != nil {
			rating = *fb.Rating
		}
		reviews = append(reviews, dto.PublicReview{
			ID:            fb.ID,
			Category:      fb.Category,
			Title:         fb.Title,
			Description:   fb.Description,
			Rating:        rating,
			SubmitterName: firstName(fb.SubmitterName),
			AdminResponse: fb.AdminResponse,
			RespondedAt:   fb.RespondedAt,
			CreatedAt:     fb.CreatedAt,
		})
	}
	return reviews, total, nil
}

func firstName(name string) string {
	if parts := strings.Fields(name); len(parts) > 0 {
		return parts[0]
	}
	return "Anonymous"
}

func jsonField(structField string) string {
	switch structField {
	case "PagePath":
		return "page_path"
	case "InternalNotes":
		return "internal_notes"
	}
	return strings.ToLower(structField)
}

func describeTag(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + param + " long"
	default:
		return "is not valid"
	}
}
