package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/plugcu/backend/internal/middleware"
	"github.com/plugcu/backend/internal/models"
	"github.com/plugcu/backend/pkg/response"
)

// Store is the event persistence the org handler needs.
type Store interface {
	Create(ctx context.Context, e *models.Event) (*models.Event, error)
	GetForOrg(ctx context.Context, id, orgID uuid.UUID) (*models.Event, error)
	ListForOrg(ctx context.Context, orgID uuid.UUID) ([]*models.Event, error)
	Update(ctx context.Context, e *models.Event) (*models.Event, error)
	UpdateStatus(ctx context.Context, id, orgID uuid.UUID, from, to models.EventStatus) (*models.Event, error)
}

// OrgLookup resolves the caller's organization.
type OrgLookup interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Organization, error)
}

// Recomputer schedules match recomputation for an event.
type Recomputer interface {
	EnqueueRecomputeEvent(ctx context.Context, eventID uuid.UUID, reason string) error
}

// Handler handles org-side event management.
type Handler struct {
	repo   Store
	orgs   OrgLookup
	jobs   Recomputer
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(repo Store, orgs OrgLookup, jobs Recomputer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, orgs: orgs, jobs: jobs, logger: logger}
}

// CreateEventRequest is the body for POST /api/org/events.
type CreateEventRequest struct {
	Title                string     `json:"title" binding:"required,max=255"`
	Description          string     `json:"description" binding:"required"`
	EventDate            *time.Time `json:"event_date"`
	ApplicationDeadline  *time.Time `json:"application_deadline"`
	Venue                string     `json:"venue" binding:"max=255"`
	EventType            string     `json:"event_type" binding:"max=100"`
	ExpectedAttendance   *int       `json:"expected_attendance" binding:"omitempty,min=0"`
	SponsorshipMinAmount *int64     `json:"sponsorship_min_amount" binding:"omitempty,min=0"`
	SponsorshipMaxAmount *int64     `json:"sponsorship_max_amount" binding:"omitempty,min=0"`
	SponsorshipBenefits  []string   `json:"sponsorship_benefits"`
	Tags                 []string   `json:"tags" binding:"max=30"`
}

// UpdateEventRequest is the body for PATCH /api/org/events/:id. Absent fields are unchanged.
type UpdateEventRequest struct {
	Title                *string    `json:"title" binding:"omitempty,min=1,max=255"`
	Description          *string    `json:"description"`
	EventDate            *time.Time `json:"event_date"`
	ApplicationDeadline  *time.Time `json:"application_deadline"`
	Venue                *string    `json:"venue"`
	EventType            *string    `json:"event_type"`
	ExpectedAttendance   *int       `json:"expected_attendance" binding:"omitempty,min=0"`
	SponsorshipMinAmount *int64     `json:"sponsorship_min_amount" binding:"omitempty,min=0"`
	SponsorshipMaxAmount *int64     `json:"sponsorship_max_amount" binding:"omitempty,min=0"`
	SponsorshipBenefits  *[]string  `json:"sponsorship_benefits"`
	Tags                 *[]string  `json:"tags"`
}

// StatusRequest is the body for POST /api/org/events/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

func validate(e *models.Event) error {
	if strings.TrimSpace(e.Title) == "" {
		return errors.New("title required")
	}
	if e.SponsorshipMinAmount != nil && e.SponsorshipMaxAmount != nil && *e.SponsorshipMinAmount > *e.SponsorshipMaxAmount {
		return errors.New("sponsorship_min_amount must not exceed sponsorship_max_amount")
	}
	if e.EventDate != nil && e.ApplicationDeadline != nil && e.ApplicationDeadline.After(*e.EventDate) {
		return errors.New("application_deadline must be on or before event_date")
	}
	return nil
}

// List handles GET /api/org/events.
func (h *Handler) List(c *gin.Context) {
	org, ok := h.callerOrg(c)
	if !ok {
		return
	}
	list, err := h.repo.ListForOrg(c.Request.Context(), org.ID)
	if err != nil {
		response.Internal(c, "failed to load events")
		return
	}
	response.OK(c, list)
}

// Create handles POST /api/org/events. New events start as drafts.
func (h *Handler) Create(c *gin.Context) {
	org, ok := h.callerOrg(c)
	if !ok {
		return
	}
	var body CreateEventRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e := &models.Event{
		OrgID:                org.ID,
		Title:                strings.TrimSpace(body.Title),
		Description:          strings.TrimSpace(body.Description),
		EventDate:            body.EventDate,
		ApplicationDeadline:  body.ApplicationDeadline,
		Venue:                strings.TrimSpace(body.Venue),
		EventType:            strings.TrimSpace(body.EventType),
		ExpectedAttendance:   body.ExpectedAttendance,
		SponsorshipMinAmount: body.SponsorshipMinAmount,
		SponsorshipMaxAmount: body.SponsorshipMaxAmount,
		SponsorshipBenefits:  models.CleanTags(body.SponsorshipBenefits),
		Tags:                 models.CleanTags(body.Tags),
	}
	if err := validate(e); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	created, err := h.repo.Create(c.Request.Context(), e)
	if err != nil {
		h.logger.Error("create event failed", zap.String("org_id", org.ID.String()), zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	response.Created(c, created)
}

// Get handles GET /api/org/events/:id.
func (h *Handler) Get(c *gin.Context) {
	org, ok := h.callerOrg(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	e, err := h.repo.GetForOrg(c.Request.Context(), id, org.ID)
	if err != nil {
		notFoundOrInternal(c, err, "event not found")
		return
	}
	response.OK(c, e)
}

// Update handles PATCH /api/org/events/:id.
func (h *Handler) Update(c *gin.Context) {
	org, ok := h.callerOrg(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var body UpdateEventRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	e, err := h.repo.GetForOrg(c.Request.Context(), id, org.ID)
	if err != nil {
		notFoundOrInternal(c, err, "event not found")
		return
	}
	if e.Status == models.EventClosed {
		response.Conflict(c, "closed events cannot be edited")
		return
	}
	body.apply(e)
	if err := validate(e); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	updated, err := h.repo.Update(c.Request.Context(), e)
	if err != nil {
		notFoundOrInternal(c, err, "event not found")
		return
	}
	if updated.Status == models.EventPublished {
		h.recompute(c, updated.ID, "event_updated")
	}
	response.OK(c, updated)
}

func (r *UpdateEventRequest) apply(e *models.Event) {
	if r.Title != nil {
		e.Title = strings.TrimSpace(*r.Title)
	}
	if r.Description != nil {
		e.Description = strings.TrimSpace(*r.Description)
	}
	if r.EventDate != nil {
		e.EventDate = r.EventDate
	}
	if r.ApplicationDeadline != nil {
		e.ApplicationDeadline = r.ApplicationDeadline
	}
	if r.Venue != nil {
		e.Venue = strings.TrimSpace(*r.Venue)
	}
	if r.EventType != nil {
		e.EventType = strings.TrimSpace(*r.EventType)
	}
	if r.ExpectedAttendance != nil {
		e.ExpectedAttendance = r.ExpectedAttendance
	}
	if r.SponsorshipMinAmount != nil {
		e.SponsorshipMinAmount = r.SponsorshipMinAmount
	}
	if r.SponsorshipMaxAmount != nil {
		e.SponsorshipMaxAmount = r.SponsorshipMaxAmount
	}
	if r.SponsorshipBenefits != nil {
		e.SponsorshipBenefits = models.CleanTags(*r.SponsorshipBenefits)
	}
	if r.Tags != nil {
		e.Tags = models.CleanTags(*r.Tags)
	}
}

// SetStatus handles POST /api/org/events/:id/status. Publishing and closing reschedule matching.
func (h *Handler) SetStatus(c *gin.Context) {
	org, ok := h.callerOrg(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var body StatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "status required")
		return
	}
	next := models.EventStatus(strings.ToLower(strings.TrimSpace(body.Status)))

	e, err := h.repo.GetForOrg(c.Request.Context(), id, org.ID)
	if err != nil {
		notFoundOrInternal(c, err, "event not found")
		return
	}
	if !e.Status.CanTransition(next) {
		response.Conflict(c, "cannot move event from "+string(e.Status)+" to "+string(next))
		return
	}
	updated, err := h.repo.UpdateStatus(c.Request.Context(), id, org.ID, e.Status, next)
	if errors.Is(err, pgx.ErrNoRows) {
		response.Conflict(c, "event status changed concurrently, reload and retry")
		return
	}
	if err != nil {
		response.Internal(c, "failed to update event status")
		return
	}
	h.logger.Info("event status changed", zap.String("event_id", id.String()),
		zap.String("from", string(e.Status)), zap.String("to", string(next)))
	h.recompute(c, id, "event_"+string(next))
	response.OK(c, updated)
}

// recompute schedules matching for an event. Failures are logged; the periodic run catches up.
func (h *Handler) recompute(c *gin.Context, eventID uuid.UUID, reason string) {
	if h.jobs == nil {
		return
	}
	if err := h.jobs.EnqueueRecomputeEvent(c.Request.Context(), eventID, reason); err != nil {
		h.logger.Warn("enqueue event recompute failed", zap.String("event_id", eventID.String()), zap.Error(err))
	}
}

func (h *Handler) callerOrg(c *gin.Context) (*models.Organization, bool) {
	s := middleware.SessionFrom(c)
	org, err := h.orgs.GetByUserID(c.Request.Context(), s.IdentityID)
	if errors.Is(err, pgx.ErrNoRows) {
		response.NotFound(c, "create the organization profile first")
		return nil, false
	}
	if err != nil {
		response.Internal(c, "failed to load organization")
		return nil, false
	}
	return org, true
}

func notFoundOrInternal(c *gin.Context, err error, msg string) {
	if errors.Is(err, pgx.ErrNoRows) {
		response.NotFound(c, msg)
		return
	}
	response.Internal(c, "database error")
}
