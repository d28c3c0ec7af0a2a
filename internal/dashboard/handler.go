package dashboard

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/plugcu/backend/internal/events"
	"github.com/plugcu/backend/internal/gate"
	"github.com/plugcu/backend/internal/middleware"
	"github.com/plugcu/backend/internal/models"
	"github.com/plugcu/backend/pkg/response"
)

const recentEvents = 3

// OrgSource reads organization profiles.
type OrgSource interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Organization, error)
	CountByStatus(ctx context.Context) (map[models.VerificationStatus]int, error)
}

// BrandSource reads brand profiles.
type BrandSource interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Brand, error)
	CountByStatus(ctx context.Context) (map[models.VerificationStatus]int, error)
}

// EventSource reads events for summaries.
type EventSource interface {
	CountByStatusForOrg(ctx context.Context, orgID uuid.UUID) (map[models.EventStatus]int, error)
	Discover(ctx context.Context, f events.Filter) ([]*models.EventWithOrg, error)
}

// MatchCounter counts a brand's stored matches.
type MatchCounter interface {
	CountForBrand(ctx context.Context, brandID uuid.UUID) (int, error)
}

// UserCounter counts identities per role.
type UserCounter interface {
	CountByRole(ctx context.Context) (map[models.Role]int, error)
}

// Handler serves the role home summaries.
type Handler struct {
	users   UserCounter
	orgs    OrgSource
	brands  BrandSource
	events  EventSource
	matches MatchCounter
	logger  *zap.Logger
}

// NewHandler creates a dashboard handler.
func NewHandler(users UserCounter, orgs OrgSource, brands BrandSource, evs EventSource, matches MatchCounter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, orgs: orgs, brands: brands, events: evs, matches: matches, logger: logger}
}

// OrgSummary is the org home payload. Organization is nil until the profile is created.
type OrgSummary struct {
	Organization *models.Organization       `json:"organization"`
	EventCounts  map[models.EventStatus]int `json:"event_counts"`
}

// BrandSummary is the brand home payload. Brand is nil until the profile is created.
type BrandSummary struct {
	Brand        *models.Brand          `json:"brand"`
	MatchCount   int                    `json:"match_count"`
	RecentEvents []*models.EventWithOrg `json:"recent_events"`
}

// AdminSummary is the admin home payload.
type AdminSummary struct {
	Users         map[models.Role]int               `json:"users"`
	Organizations map[models.VerificationStatus]int `json:"organizations"`
	Brands        map[models.VerificationStatus]int `json:"brands"`
}

// Home handles GET /dashboard by redirecting to the caller's role home.
func (h *Handler) Home(c *gin.Context) {
	s := middleware.SessionFrom(c)
	if s == nil {
		c.Redirect(http.StatusFound, gate.LoginPath)
		return
	}
	c.Redirect(http.StatusFound, gate.HomeFor(s.Role))
}

// Org handles GET /dashboard/org.
func (h *Handler) Org(c *gin.Context) {
	s := middleware.SessionFrom(c)
	ctx := c.Request.Context()
	out := OrgSummary{EventCounts: map[models.EventStatus]int{}}

	org, err := h.orgs.GetByUserID(ctx, s.IdentityID)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		response.OK(c, out)
		return
	case err != nil:
		h.logger.Error("load org failed", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	out.Organization = org
	if out.EventCounts, err = h.events.CountByStatusForOrg(ctx, org.ID); err != nil {
		h.logger.Error("count org events failed", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	response.OK(c, out)
}

// Brand handles GET /dashboard/brand.
func (h *Handler) Brand(c *gin.Context) {
	s := middleware.SessionFrom(c)
	ctx := c.Request.Context()
	out := BrandSummary{RecentEvents: []*models.EventWithOrg{}}

	brand, err := h.brands.GetByUserID(ctx, s.IdentityID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		h.logger.Error("load brand failed", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	out.Brand = brand

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := h.events.Discover(gctx, events.Filter{Limit: recentEvents})
		if err == nil {
			out.RecentEvents = list
		}
		return err
	})
	if brand != nil {
		g.Go(func() error {
			n, err := h.matches.CountForBrand(gctx, brand.ID)
			out.MatchCount = n
			return err
		})
	}
	if err := g.Wait(); err != nil {
		h.logger.Error("load brand dashboard failed", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	response.OK(c, out)
}

// Admin handles GET /dashboard/admin.
func (h *Handler) Admin(c *gin.Context) {
	var out AdminSummary
	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() (err error) {
		out.Users, err = h.users.CountByRole(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.Organizations, err = h.orgs.CountByStatus(ctx)
		return err
	})
	g.Go(func() (err error) {
		out.Brands, err = h.brands.CountByStatus(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.logger.Error("load admin dashboard failed", zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	response.OK(c, out)
}
