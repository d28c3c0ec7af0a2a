package admin

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/plugcu/backend/internal/middleware"
	"github.com/plugcu/backend/internal/models"
	"github.com/plugcu/backend/pkg/response"
)

const (
	defaultMatchLimit = 50
	maxMatchLimit     = 200
)

// UserLister lists identities.
type UserLister interface {
	List(ctx context.Context) ([]models.UserPublic, error)
}

// OrgModerator lists organizations and sets their verification status.
type OrgModerator interface {
	List(ctx context.Context) ([]*models.Organization, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.VerificationStatus) (*models.Organization, error)
}

// BrandModerator lists brands and sets their verification status.
type BrandModerator interface {
	List(ctx context.Context) ([]*models.Brand, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.VerificationStatus) (*models.Brand, error)
}

// EventMatches reads the stored matches of one event.
type EventMatches interface {
	ListForEvent(ctx context.Context, eventID uuid.UUID, limit int) ([]models.MatchView, error)
}

// Recomputer schedules match recomputation.
type Recomputer interface {
	EnqueueRecomputeAll(ctx context.Context, reason string) error
	EnqueueRecomputeBrand(ctx context.Context, brandID uuid.UUID, reason string) error
}

// Handler handles platform moderation.
type Handler struct {
	users   UserLister
	orgs    OrgModerator
	brands  BrandModerator
	matches EventMatches
	jobs    Recomputer
	logger  *zap.Logger
}

// NewHandler creates an admin handler.
func NewHandler(users UserLister, orgs OrgModerator, brands BrandModerator, matches EventMatches, jobs Recomputer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, orgs: orgs, brands: brands, matches: matches, jobs: jobs, logger: logger}
}

// StatusRequest is the body for the verification status endpoints.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// ListUsers handles GET /api/admin/users.
func (h *Handler) ListUsers(c *gin.Context) {
	list, err := h.users.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to load users")
		return
	}
	response.OK(c, list)
}

// ListOrgs handles GET /api/admin/orgs.
func (h *Handler) ListOrgs(c *gin.Context) {
	list, err := h.orgs.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to load organizations")
		return
	}
	response.OK(c, list)
}

// ListBrands handles GET /api/admin/brands.
func (h *Handler) ListBrands(c *gin.Context) {
	list, err := h.brands.List(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to load brands")
		return
	}
	response.OK(c, list)
}

// SetOrgStatus handles PATCH /api/admin/orgs/:id/status.
func (h *Handler) SetOrgStatus(c *gin.Context) {
	id, status, ok := statusParams(c)
	if !ok {
		return
	}
	org, err := h.orgs.UpdateStatus(c.Request.Context(), id, status)
	if err != nil {
		notFoundOrInternal(c, err, "organization not found")
		return
	}
	h.audit(c, "organization", id, status)
	response.OK(c, org)
}

// SetBrandStatus handles PATCH /api/admin/brands/:id/status.
// Any change alters the brand's eligibility for matching, so its matches are recomputed.
func (h *Handler) SetBrandStatus(c *gin.Context) {
	id, status, ok := statusParams(c)
	if !ok {
		return
	}
	brand, err := h.brands.UpdateStatus(c.Request.Context(), id, status)
	if err != nil {
		notFoundOrInternal(c, err, "brand not found")
		return
	}
	h.audit(c, "brand", id, status)
	if h.jobs != nil {
		if err := h.jobs.EnqueueRecomputeBrand(c.Request.Context(), id, "brand_"+string(status)); err != nil {
			h.logger.Warn("enqueue brand recompute failed", zap.String("brand_id", id.String()), zap.Error(err))
		}
	}
	response.OK(c, brand)
}

// Recompute handles POST /api/admin/matches/recompute by scheduling a full run.
func (h *Handler) Recompute(c *gin.Context) {
	if h.jobs == nil {
		response.ServiceUnavailable(c, "job queue is not configured")
		return
	}
	if err := h.jobs.EnqueueRecomputeAll(c.Request.Context(), "admin_request"); err != nil {
		h.logger.Error("enqueue full recompute failed", zap.Error(err))
		response.ServiceUnavailable(c, "could not schedule recompute")
		return
	}
	c.JSON(http.StatusAccepted, response.Body{Success: true, Data: gin.H{"scheduled": true}})
}

// EventMatches handles GET /api/admin/events/:id/matches?limit=.
func (h *Handler) EventMatches(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	limit := defaultMatchLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.BadRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(n, maxMatchLimit)
	}
	list, err := h.matches.ListForEvent(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.Error("list event matches failed", zap.String("event_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to load matches")
		return
	}
	response.OK(c, list)
}

func (h *Handler) audit(c *gin.Context, kind string, id uuid.UUID, status models.VerificationStatus) {
	fields := []zap.Field{zap.String("kind", kind), zap.String("id", id.String()), zap.String("status", string(status))}
	if s := middleware.SessionFrom(c); s != nil {
		fields = append(fields, zap.String("admin_id", s.IdentityID.String()))
	}
	h.logger.Info("verification status changed", fields...)
}

func statusParams(c *gin.Context) (uuid.UUID, models.VerificationStatus, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return uuid.Nil, "", false
	}
	var body StatusRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "status required")
		return uuid.Nil, "", false
	}
	status, ok := models.ParseVerificationStatus(strings.ToLower(strings.TrimSpace(body.Status)))
	if !ok {
		response.BadRequest(c, "status must be pending, verified or rejected")
		return uuid.Nil, "", false
	}
	return id, status, true
}

func notFoundOrInternal(c *gin.Context, err error, msg string) {
	if errors.Is(err, pgx.ErrNoRows) {
		response.NotFound(c, msg)
		return
	}
	response.Internal(c, "database error")
}
