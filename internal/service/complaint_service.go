package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sns-grievance-api/internal/dto"
	"github.com/noah-isme/sns-grievance-api/internal/models"
	appErrors "github.com/noah-isme/sns-grievance-api/pkg/errors"
)

type complaintStore interface {
	CreateWithHistory(ctx context.Context, complaint *models.Complaint, entry *models.ComplaintHistoryEntry) error
	GetByID(ctx context.Context, id string) (*models.Complaint, error)
	ListHistory(ctx context.Context, complaintID string) ([]models.ComplaintHistoryEntry, error)
	List(ctx context.Context, filter models.ComplaintFilter) ([]models.Complaint, error)
	CountByStatus(ctx context.Context, filter models.ComplaintFilter) ([]models.ComplaintStatusCount, error)
	UpdateWithHistory(ctx context.Context, complaint *models.Complaint, expectedVersion int64, entry *models.ComplaintHistoryEntry) error
}

type complaintNumberAllocator interface {
	Allocate(ctx context.Context, at time.Time) (string, error)
}

type complaintEventPublisher interface {
	Publish(event models.ComplaintEvent)
}

// SLAPolicy maps priorities to the response window recorded as a complaint's deadline.
type SLAPolicy map[models.ComplaintPriority]time.Duration

// Deadline returns submittedAt plus the window for priority, or nil when no window is configured.
func (p SLAPolicy) Deadline(priority models.ComplaintPriority, submittedAt time.Time) *time.Time {
	window, ok := p[priority]
	if !ok || window <= 0 {
		return nil
	}
	deadline := submittedAt.Add(window)
	return &deadline
}

// ComplaintService owns complaint intake, retrieval and lifecycle changes.
type ComplaintService struct {
	repo      complaintStore
	allocator complaintNumberAllocator
	lifecycle *ComplaintLifecycle
	validator *validator.Validate
	events    complaintEventPublisher
	metrics   *MetricsService
	logger    *zap.Logger
	sla       SLAPolicy
	now       func() time.Time
}

// ComplaintServiceOption configures the service.
type ComplaintServiceOption func(*ComplaintService)

// WithComplaintClock overrides the time source.
func WithComplaintClock(now func() time.Time) ComplaintServiceOption {
	return func(s *ComplaintService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithSLAPolicy sets the per-priority response windows.
func WithSLAPolicy(policy SLAPolicy) ComplaintServiceOption {
	return func(s *ComplaintService) {
		s.sla = policy
	}
}

// WithComplaintEvents sets the notification publisher.
func WithComplaintEvents(events complaintEventPublisher) ComplaintServiceOption {
	return func(s *ComplaintService) {
		s.events = events
	}
}

// WithComplaintMetrics enables domain metrics.
func WithComplaintMetrics(metrics *MetricsService) ComplaintServiceOption {
	return func(s *ComplaintService) {
		s.metrics = metrics
	}
}

// NewComplaintService constructs the service with defaults.
func NewComplaintService(repo complaintStore, allocator complaintNumberAllocator, validate *validator.Validate, logger *zap.Logger, opts ...ComplaintServiceOption) *ComplaintService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &ComplaintService{
		repo:      repo,
		allocator: allocator,
		lifecycle: NewComplaintLifecycle(),
		validator: validate,
		logger:    logger,
		sla:       SLAPolicy{},
		now:       time.Now,
	}
	_ = svc.validator.RegisterValidation("complaint_category", func(fl validator.FieldLevel) bool {
		return models.ComplaintCategory(fl.Field().String()).Valid()
	})
	_ = svc.validator.RegisterValidation("complaint_priority", func(fl validator.FieldLevel) bool {
		return models.ComplaintPriority(fl.Field().String()).Valid()
	})
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Create validates a citizen draft, assigns its number and persists it as SUBMITTED.
func (s *ComplaintService) Create(ctx context.Context, draft models.ComplaintDraft, actor models.Actor) (*models.Complaint, error) {
	if actor.ID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleCitizen {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only citizens can file complaints")
	}

	draft.Title = strings.TrimSpace(draft.Title)
	draft.Description = strings.TrimSpace(draft.Description)
	draft.Address = strings.TrimSpace(draft.Address)
	if draft.Priority == "" {
		draft.Priority = models.PriorityMedium
	}
	if err := s.validateDraft(draft); err != nil {
		return nil, err
	}

	submittedAt := s.now().UTC()
	number, err := s.allocator.Allocate(ctx, submittedAt)
	if err != nil {
		return nil, err
	}

	complaint := &models.Complaint{
		ID:              uuid.NewString(),
		ComplaintNumber: number,
		Title:           draft.Title,
		Description:     draft.Description,
		CategoryName:    draft.CategoryName,
		Latitude:        draft.Latitude,
		Longitude:       draft.Longitude,
		Address:         draft.Address,
		Status:          models.StatusSubmitted,
		Priority:        draft.Priority,
		SubmittedAt:     submittedAt,
		SLADeadline:     s.sla.Deadline(draft.Priority, submittedAt),
		CitizenID:       actor.ID,
		CitizenName:     actor.FullName,
		EvidenceRef:     draft.EvidenceRef,
		Version:         1,
		UpdatedAt:       submittedAt,
	}
	entry := &models.ComplaintHistoryEntry{
		ID:          uuid.NewString(),
		ComplaintID: complaint.ID,
		ToStatus:    models.StatusSubmitted,
		ActorID:     actor.ID,
		ActorRole:   actor.Role,
		Note:        "complaint submitted",
		CreatedAt:   submittedAt,
	}

	start := time.Now()
	err = s.repo.CreateWithHistory(ctx, complaint, entry)
	s.metrics.ObserveDBQuery("complaint_create", time.Since(start))
	if err != nil {
		s.logger.Error("failed to persist complaint", zap.String("complaint_number", number), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create complaint")
	}

	s.metrics.RecordComplaintCreated(complaint.CategoryName)
	s.logger.Info("complaint submitted",
		zap.String("complaint_id", complaint.ID),
		zap.String("complaint_number", complaint.ComplaintNumber),
		zap.String("citizen_id", complaint.CitizenID))
	s.publish(models.ComplaintEventSubmitted, complaint, "", entry)
	return complaint, nil
}

// Get returns a complaint with its history. Citizens only see their own complaints.
func (s *ComplaintService) Get(ctx context.Context, id string, actor models.Actor) (*models.ComplaintDetail, error) {
	complaint, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	history, err := s.repo.ListHistory(ctx, complaint.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint history")
	}
	if history == nil {
		history = []models.ComplaintHistoryEntry{}
	}
	return &models.ComplaintDetail{Complaint: *complaint, History: history}, nil
}

// List returns complaints matching filter, newest first. Citizens are always scoped to their own.
func (s *ComplaintService) List(ctx context.Context, filter models.ComplaintFilter, actor models.Actor) ([]models.Complaint, *models.Pagination, error) {
	filter, err := s.scope(filter, actor)
	if err != nil {
		return nil, nil, err
	}
	start := time.Now()
	complaints, err := s.repo.List(ctx, filter)
	s.metrics.ObserveDBQuery("complaint_list", time.Since(start))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list complaints")
	}
	if complaints == nil {
		complaints = []models.Complaint{}
	}
	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	return complaints, &models.Pagination{Limit: limit, Offset: maxInt(filter.Offset, 0), Count: len(complaints)}, nil
}

// Count aggregates matching complaints per status; every status is present in the result.
func (s *ComplaintService) Count(ctx context.Context, filter models.ComplaintFilter, actor models.Actor) (map[models.ComplaintStatus]int, error) {
	filter, err := s.scope(filter, actor)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.CountByStatus(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count complaints")
	}
	counts := make(map[models.ComplaintStatus]int, len(models.ComplaintStatuses))
	for _, status := range models.ComplaintStatuses {
		counts[status] = 0
	}
	for _, row := range rows {
		counts[row.Status] = row.Total
	}
	return counts, nil
}

// Transition moves a complaint along one lifecycle edge. Concurrent writers are serialised by the
// stored version: a writer whose snapshot went stale receives ConcurrentModification.
func (s *ComplaintService) Transition(ctx context.Context, id string, cmd models.TransitionCommand) (*models.Complaint, error) {
	current, err := s.load(ctx, id, cmd.Actor)
	if err != nil {
		return nil, err
	}

	next, entry, err := s.lifecycle.Apply(*current, cmd, s.now())
	if err != nil {
		s.metrics.RecordTransition(cmd.Target, appErrors.FromError(err).Code)
		return nil, err
	}

	if err := s.repo.UpdateWithHistory(ctx, next, current.Version, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordTransition(cmd.Target, appErrors.ErrConcurrentModification.Code)
			return nil, appErrors.ErrConcurrentModification
		}
		s.logger.Error("failed to persist complaint transition", zap.String("complaint_id", id), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update complaint status")
	}

	s.metrics.RecordTransition(cmd.Target, "ok")
	s.logger.Info("complaint status changed",
		zap.String("complaint_id", next.ID),
		zap.String("from", string(entry.FromStatus)),
		zap.String("to", string(entry.ToStatus)),
		zap.String("actor_id", entry.ActorID))
	s.publish(models.ComplaintEventStatusChanged, next, entry.FromStatus, entry)
	return next, nil
}

// ConfirmClosure lets the owning citizen close a RESOLVED complaint.
func (s *ComplaintService) ConfirmClosure(ctx context.Context, id string, req dto.ConfirmClosureRequest, actor models.Actor) (*models.Complaint, error) {
	return s.Transition(ctx, id, models.TransitionCommand{
		Target:          models.StatusClosed,
		Note:            req.Note,
		ExpectedVersion: req.ExpectedVersion,
		Actor:           actor,
	})
}

// UpdatePriority changes triage priority of an open complaint and recomputes its SLA deadline.
func (s *ComplaintService) UpdatePriority(ctx context.Context, id string, req dto.UpdatePriorityRequest, actor models.Actor) (*models.Complaint, error) {
	if !actor.IsStaff() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only staff can change complaint priority")
	}
	priority := models.ComplaintPriority(strings.ToUpper(strings.TrimSpace(req.Priority)))
	if !priority.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown priority %q", req.Priority))
	}

	current, err := s.load(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if current.Status.IsTerminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("complaint is %s", current.Status))
	}
	if req.ExpectedVersion != nil && *req.ExpectedVersion != current.Version {
		return nil, appErrors.Clone(appErrors.ErrConcurrentModification, "complaint was modified since it was read")
	}

	now := s.now().UTC()
	next := current.Clone()
	next.Priority = priority
	next.SLADeadline = s.sla.Deadline(priority, current.SubmittedAt)
	next.Version = current.Version + 1
	next.UpdatedAt = now

	if err := s.repo.UpdateWithHistory(ctx, &next, current.Version, nil); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrConcurrentModification
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update complaint priority")
	}
	s.publish(models.ComplaintEventPriority, &next, next.Status, &models.ComplaintHistoryEntry{ActorID: actor.ID, ActorRole: actor.Role, CreatedAt: now})
	return &next, nil
}

// FilterFromQuery translates listing query parameters into a filter.
func FilterFromQuery(q dto.ComplaintQuery, actor models.Actor) (models.ComplaintFilter, error) {
	parts := make([]models.ComplaintFilter, 0, 5)

	switch strings.ToLower(strings.TrimSpace(q.Scope)) {
	case "", "all":
	case "mine":
		parts = append(parts, models.ByOwner(actor.ID))
	case "active":
		parts = append(parts, models.ActiveOnly())
	case "resolved":
		parts = append(parts, models.ResolvedOnly())
	default:
		return models.ComplaintFilter{}, appErrors.Clone(appErrors.ErrValidation, "scope must be one of mine, active, resolved, all")
	}

	if raw := splitCSV(q.Status); len(raw) > 0 {
		statuses := make([]models.ComplaintStatus, 0, len(raw))
		for _, value := range raw {
			status := models.ComplaintStatus(strings.ToUpper(value))
			if !status.Valid() {
				return models.ComplaintFilter{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", value))
			}
			statuses = append(statuses, status)
		}
		parts = append(parts, models.ByStatusSet(statuses...))
	}

	if raw := splitCSV(q.Priority); len(raw) > 0 {
		priorities := make([]models.ComplaintPriority, 0, len(raw))
		for _, value := range raw {
			priority := models.ComplaintPriority(strings.ToUpper(value))
			if !priority.Valid() {
				return models.ComplaintFilter{}, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown priority %q", value))
			}
			priorities = append(priorities, priority)
		}
		parts = append(parts, models.ByPriority(priorities...))
	}

	if q.BBox != "" {
		raw := splitCSV(q.BBox)
		if len(raw) != 4 {
			return models.ComplaintFilter{}, appErrors.Clone(appErrors.ErrValidation, "bbox must be latMin,lonMin,latMax,lonMax")
		}
		values := make([]float64, 4)
		for i, value := range raw {
			parsed, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return models.ComplaintFilter{}, appErrors.Clone(appErrors.ErrValidation, "bbox values must be numbers")
			}
			values[i] = parsed
		}
		box := models.ByBoundingBox(values[0], values[2], values[1], values[3])
		if err := box.Validate(); err != nil {
			return models.ComplaintFilter{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		parts = append(parts, box)
	}

	if citizenID := strings.TrimSpace(q.CitizenID); citizenID != "" {
		if !actor.IsStaff() && citizenID != actor.ID {
			return models.ComplaintFilter{}, appErrors.Clone(appErrors.ErrForbidden, "citizens can only list their own complaints")
		}
		parts = append(parts, models.ByOwner(citizenID))
	}

	if q.Offset < 0 {
		return models.ComplaintFilter{}, appErrors.Clone(appErrors.ErrValidation, "offset must not be negative")
	}

	return models.NewComplaintFilter(parts...).WithPage(q.Limit, q.Offset), nil
}

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

func (s *ComplaintService) scope(filter models.ComplaintFilter, actor models.Actor) (models.ComplaintFilter, error) {
	if actor.ID == "" {
		return models.ComplaintFilter{}, appErrors.ErrUnauthorized
	}
	if err := filter.Validate(); err != nil {
		return models.ComplaintFilter{}, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if !actor.IsStaff() {
		filter = filter.And(models.ByOwner(actor.ID))
	}
	return filter, nil
}

func (s *ComplaintService) load(ctx context.Context, id string, actor models.Actor) (*models.Complaint, error) {
	if actor.ID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(id) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "complaint id is required")
	}
	// ids are UUIDs; anything else can never match and would fail the cast in SQL
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
	}
	complaint, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load complaint")
	}
	if !actor.IsStaff() && complaint.CitizenID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "complaint not found")
	}
	return complaint, nil
}

func (s *ComplaintService) validateDraft(draft models.ComplaintDraft) error {
	if !models.ValidLatitude(draft.Latitude) || !models.ValidLongitude(draft.Longitude) {
		return appErrors.Clone(appErrors.ErrValidation, "coordinates out of range")
	}
	if err := s.validator.Struct(draft); err != nil {
		return appErrors.Clone(appErrors.ErrValidation, validationMessage(err))
	}
	return nil
}

func (s *ComplaintService) publish(eventType models.ComplaintEventType, complaint *models.Complaint, from models.ComplaintStatus, entry *models.ComplaintHistoryEntry) {
	if s.events == nil {
		return
	}
	s.events.Publish(models.ComplaintEvent{
		Type:            eventType,
		ComplaintID:     complaint.ID,
		ComplaintNumber: complaint.ComplaintNumber,
		Title:           complaint.Title,
		CitizenID:       complaint.CitizenID,
		FromStatus:      from,
		ToStatus:        complaint.Status,
		Priority:        complaint.Priority,
		ActorID:         entry.ActorID,
		ActorRole:       entry.ActorRole,
		Note:            entry.Note,
		OccurredAt:      entry.CreatedAt,
	})
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		switch fe.Tag() {
		case "required":
			return fmt.Sprintf("%s is required", strings.ToLower(fe.Field()))
		case "complaint_category":
			return fmt.Sprintf("unknown category %q", fe.Value())
		case "complaint_priority":
			return fmt.Sprintf("unknown priority %q", fe.Value())
		default:
			return fmt.Sprintf("%s failed %s validation", strings.ToLower(fe.Field()), fe.Tag())
		}
	}
	return err.Error()
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
