package brands

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/plugcu/backend/internal/events"
	"github.com/plugcu/backend/internal/middleware"
	"github.com/plugcu/backend/internal/models"
	"github.com/plugcu/backend/pkg/response"
	"github.com/plugcu/backend/pkg/storage"
)

const (
	defaultPageSize  = 20
	maxDiscoverLimit = 50
	maxMatchesLimit  = 100
)

// ProfileStore is the brand persistence the handler needs.
type ProfileStore interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Brand, error)
	Upsert(ctx context.Context, b *models.Brand) (*models.Brand, error)
	SetLogo(ctx context.Context, id uuid.UUID, url string) error
}

// EventFinder searches published events.
type EventFinder interface {
	Discover(ctx context.Context, f events.Filter) ([]*models.EventWithOrg, error)
}

// MatchLister reads stored matches.
type MatchLister interface {
	ListForBrand(ctx context.Context, brandID uuid.UUID, minScore float64, limit int) ([]models.MatchView, error)
}

// Recomputer schedules match recomputation for a brand.
type Recomputer interface {
	EnqueueRecomputeBrand(ctx context.Context, brandID uuid.UUID, reason string) error
}

// AssetSigner issues pre-signed upload URLs and cleans up replaced logos.
type AssetSigner interface {
	PresignAssetUpload(ctx context.Context, key, contentType string) (string, error)
	AssetURL(key string) string
	PresignExpire() time.Duration
	KeyForURL(url string) (string, bool)
	DeleteAsset(ctx context.Context, key string) error
}

// Handler handles brand self-service, discovery and matches.
type Handler struct {
	repo    ProfileStore
	events  EventFinder
	matches MatchLister
	jobs    Recomputer
	assets  AssetSigner
	logger  *zap.Logger
}

// NewHandler creates a brands handler. assets may be nil when S3 is not configured.
func NewHandler(repo ProfileStore, finder EventFinder, matches MatchLister, jobs Recomputer, assets AssetSigner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, events: finder, matches: matches, jobs: jobs, assets: assets, logger: logger}
}

// ProfileRequest is the body for PUT /api/brand/profile.
type ProfileRequest struct {
	CompanyName         string   `json:"company_name" binding:"required,max=255"`
	Description         string   `json:"description" binding:"max=5000"`
	Industry            string   `json:"industry" binding:"max=100"`
	CompanySize         string   `json:"company_size" binding:"max=50"`
	WebsiteURL          string   `json:"website_url" binding:"omitempty,url"`
	LogoURL             string   `json:"logo_url" binding:"omitempty,url"`
	ContactEmail        string   `json:"contact_email" binding:"omitempty,email"`
	TargetDemographics  []string `json:"target_demographics" binding:"max=30"`
	PreferredEventTypes []string `json:"preferred_event_types" binding:"max=30"`
	BudgetRangeMin      *int64   `json:"budget_range_min" binding:"omitempty,min=0"`
	BudgetRangeMax      *int64   `json:"budget_range_max" binding:"omitempty,min=0"`
	GeographicFocus     []string `json:"geographic_focus" binding:"max=30"`
}

// UploadRequest is the body for POST /api/brand/profile/logo-upload-url.
type UploadRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"content_type"`
}

// UploadResponse carries a pre-signed PUT URL and the object's eventual URL.
type UploadResponse struct {
	UploadURL string `json:"upload_url"`
	FileURL   string `json:"file_url"`
	ExpiresIn int    `json:"expires_in"`
}

// GetProfile handles GET /api/brand/profile.
func (h *Handler) GetProfile(c *gin.Context) {
	brand, ok := h.callerBrand(c)
	if !ok {
		return
	}
	response.OK(c, brand)
}

// PutProfile handles PUT /api/brand/profile. Creates the profile on first call and reschedules matching.
func (h *Handler) PutProfile(c *gin.Context) {
	s := middleware.SessionFrom(c)
	var body ProfileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	name := strings.TrimSpace(body.CompanyName)
	if name == "" {
		response.BadRequest(c, "company_name required")
		return
	}
	if body.BudgetRangeMin != nil && body.BudgetRangeMax != nil && *body.BudgetRangeMin > *body.BudgetRangeMax {
		response.BadRequest(c, "budget_range_min must not exceed budget_range_max")
		return
	}
	brand, err := h.repo.Upsert(c.Request.Context(), &models.Brand{
		UserID:              s.IdentityID,
		CompanyName:         name,
		Description:         strings.TrimSpace(body.Description),
		Industry:            strings.TrimSpace(body.Industry),
		CompanySize:         strings.TrimSpace(body.CompanySize),
		WebsiteURL:          body.WebsiteURL,
		LogoURL:             body.LogoURL,
		ContactEmail:        body.ContactEmail,
		TargetDemographics:  models.CleanTags(body.TargetDemographics),
		PreferredEventTypes: models.CleanTags(body.PreferredEventTypes),
		BudgetRangeMin:      body.BudgetRangeMin,
		BudgetRangeMax:      body.BudgetRangeMax,
		GeographicFocus:     models.CleanTags(body.GeographicFocus),
	})
	if err != nil {
		h.logger.Error("upsert brand failed", zap.String("user_id", s.IdentityID.String()), zap.Error(err))
		response.Internal(c, "failed to save brand")
		return
	}
	if h.jobs != nil {
		if err := h.jobs.EnqueueRecomputeBrand(c.Request.Context(), brand.ID, "profile_updated"); err != nil {
			h.logger.Warn("enqueue brand recompute failed", zap.String("brand_id", brand.ID.String()), zap.Error(err))
		}
	}
	response.OK(c, brand)
}

// LogoUploadURL handles POST /api/brand/profile/logo-upload-url.
func (h *Handler) LogoUploadURL(c *gin.Context) {
	if h.assets == nil {
		response.ServiceUnavailable(c, "file uploads are not configured")
		return
	}
	var body UploadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "filename required")
		return
	}
	if !storage.ValidateFileType(storage.AssetLogo, body.ContentType, body.Filename) {
		response.BadRequest(c, "logo must be a JPEG, PNG, WebP or SVG image")
		return
	}
	brand, ok := h.callerBrand(c)
	if !ok {
		return
	}
	key := storage.LogoKey(brand.ID.String(), body.Filename, time.Now())
	url, err := h.assets.PresignAssetUpload(c.Request.Context(), key, storage.ContentTypeForFilename(storage.AssetLogo, body.Filename))
	if err != nil {
		h.logger.Error("presign logo upload failed", zap.Error(err))
		response.ServiceUnavailable(c, "could not prepare upload")
		return
	}
	fileURL := h.assets.AssetURL(key)
	previous := brand.LogoURL
	if err := h.repo.SetLogo(c.Request.Context(), brand.ID, fileURL); err != nil {
		response.Internal(c, "failed to record logo")
		return
	}
	// Only objects in our bucket are removed; external logo URLs are left alone.
	if old, ok := h.assets.KeyForURL(previous); ok && previous != fileURL {
		if err := h.assets.DeleteAsset(c.Request.Context(), old); err != nil {
			h.logger.Warn("delete replaced logo failed", zap.String("key", old), zap.Error(err))
		}
	}
	response.OK(c, UploadResponse{UploadURL: url, FileURL: fileURL, ExpiresIn: int(h.assets.PresignExpire().Seconds())})
}

// DiscoverEvents handles GET /api/brand/events.
// Query: search, min_budget, max_budget, university, event_type, limit (max 50).
func (h *Handler) DiscoverEvents(c *gin.Context) {
	f := events.Filter{
		Search:     c.Query("search"),
		University: c.Query("university"),
		EventType:  c.Query("event_type"),
		Limit:      defaultPageSize,
	}
	var err error
	if f.MinBudget, err = optionalAmount(c.Query("min_budget")); err != nil {
		response.BadRequest(c, "min_budget must be a non-negative integer")
		return
	}
	if f.MaxBudget, err = optionalAmount(c.Query("max_budget")); err != nil {
		response.BadRequest(c, "max_budget must be a non-negative integer")
		return
	}
	if f.Limit, err = limitParam(c.Query("limit"), maxDiscoverLimit); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	list, err := h.events.Discover(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("discover events failed", zap.Error(err))
		response.Internal(c, "failed to load events")
		return
	}
	response.OK(c, list)
}

// Matches handles GET /api/brand/matches?min_score=&limit=.
func (h *Handler) Matches(c *gin.Context) {
	minScore := 0.0
	if v := c.Query("min_score"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			response.BadRequest(c, "min_score must be between 0 and 1")
			return
		}
		minScore = f
	}
	limit, err := limitParam(c.Query("limit"), maxMatchesLimit)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	brand, ok := h.callerBrand(c)
	if !ok {
		return
	}
	list, err := h.matches.ListForBrand(c.Request.Context(), brand.ID, minScore, limit)
	if err != nil {
		h.logger.Error("list matches failed", zap.String("brand_id", brand.ID.String()), zap.Error(err))
		response.Internal(c, "failed to load matches")
		return
	}
	response.OK(c, list)
}

func (h *Handler) callerBrand(c *gin.Context) (*models.Brand, bool) {
	s := middleware.SessionFrom(c)
	brand, err := h.repo.GetByUserID(c.Request.Context(), s.IdentityID)
	if errors.Is(err, pgx.ErrNoRows) {
		response.NotFound(c, "brand profile not created yet")
		return nil, false
	}
	if err != nil {
		response.Internal(c, "failed to load brand")
		return nil, false
	}
	return brand, true
}

func optionalAmount(v string) (*int64, error) {
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return nil, errors.New("invalid amount")
	}
	return &n, nil
}

func limitParam(v string, max int) (int, error) {
	if v == "" {
		return defaultPageSize, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.New("limit must be a positive integer")
	}
	if n > max {
		n = max
	}
	return n, nil
}
