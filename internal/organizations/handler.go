package organizations

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
	"github.com/plugcu/backend/pkg/storage"
)

// ProfileStore is the organization persistence the handler needs.
type ProfileStore interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Organization, error)
	Upsert(ctx context.Context, o *models.Organization) (*models.Organization, error)
	SetVerificationDocument(ctx context.Context, id uuid.UUID, url string) error
}

// AssetSigner issues pre-signed upload URLs.
type AssetSigner interface {
	PresignAssetUpload(ctx context.Context, key, contentType string) (string, error)
	AssetURL(key string) string
	PresignExpire() time.Duration
}

// Handler handles organization self-service endpoints.
type Handler struct {
	repo   ProfileStore
	assets AssetSigner
	logger *zap.Logger
}

// NewHandler creates an organizations handler. assets may be nil when S3 is not configured.
func NewHandler(repo ProfileStore, assets AssetSigner, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, assets: assets, logger: logger}
}

// ProfileRequest is the body for PUT /api/org/profile.
type ProfileRequest struct {
	Name         string   `json:"name" binding:"required,max=255"`
	Description  string   `json:"description" binding:"max=5000"`
	University   string   `json:"university" binding:"required,max=255"`
	Category     string   `json:"category" binding:"max=100"`
	WebsiteURL   string   `json:"website_url" binding:"omitempty,url"`
	LogoURL      string   `json:"logo_url" binding:"omitempty,url"`
	ContactEmail string   `json:"contact_email" binding:"omitempty,email"`
	MemberCount  *int     `json:"member_count" binding:"omitempty,min=0"`
	Tags         []string `json:"tags" binding:"max=30"`
}

// UploadRequest is the body for pre-signed upload endpoints.
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

// GetProfile handles GET /api/org/profile.
func (h *Handler) GetProfile(c *gin.Context) {
	s := middleware.SessionFrom(c)
	org, err := h.repo.GetByUserID(c.Request.Context(), s.IdentityID)
	if errors.Is(err, pgx.ErrNoRows) {
		response.NotFound(c, "organization profile not created yet")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load organization")
		return
	}
	response.OK(c, org)
}

// PutProfile handles PUT /api/org/profile. Creates the profile on first call.
func (h *Handler) PutProfile(c *gin.Context) {
	s := middleware.SessionFrom(c)
	var body ProfileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	name := strings.TrimSpace(body.Name)
	university := strings.TrimSpace(body.University)
	if name == "" || university == "" {
		response.BadRequest(c, "name and university required")
		return
	}
	org, err := h.repo.Upsert(c.Request.Context(), &models.Organization{
		UserID:       s.IdentityID,
		Name:         name,
		Description:  strings.TrimSpace(body.Description),
		University:   university,
		Category:     strings.TrimSpace(body.Category),
		WebsiteURL:   body.WebsiteURL,
		LogoURL:      body.LogoURL,
		ContactEmail: body.ContactEmail,
		MemberCount:  body.MemberCount,
		Tags:         models.CleanTags(body.Tags),
	})
	if err != nil {
		h.logger.Error("upsert organization failed", zap.String("user_id", s.IdentityID.String()), zap.Error(err))
		response.Internal(c, "failed to save organization")
		return
	}
	response.OK(c, org)
}

// VerificationUploadURL handles POST /api/org/profile/verification-upload-url.
func (h *Handler) VerificationUploadURL(c *gin.Context) {
	if h.assets == nil {
		response.ServiceUnavailable(c, "file uploads are not configured")
		return
	}
	s := middleware.SessionFrom(c)
	var body UploadRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "filename required")
		return
	}
	if !storage.ValidateFileType(storage.AssetVerificationDocument, body.ContentType, body.Filename) {
		response.BadRequest(c, "verification document must be a PDF, JPEG or PNG")
		return
	}
	org, err := h.repo.GetByUserID(c.Request.Context(), s.IdentityID)
	if errors.Is(err, pgx.ErrNoRows) {
		response.NotFound(c, "create the organization profile first")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load organization")
		return
	}

	key := storage.VerificationDocumentKey(org.ID.String(), body.Filename, time.Now())
	contentType := storage.ContentTypeForFilename(storage.AssetVerificationDocument, body.Filename)
	url, err := h.assets.PresignAssetUpload(c.Request.Context(), key, contentType)
	if err != nil {
		h.logger.Error("presign verification upload failed", zap.Error(err))
		response.ServiceUnavailable(c, "could not prepare upload")
		return
	}
	fileURL := h.assets.AssetURL(key)
	if err := h.repo.SetVerificationDocument(c.Request.Context(), org.ID, fileURL); err != nil {
		response.Internal(c, "failed to record verification document")
		return
	}
	response.OK(c, UploadResponse{UploadURL: url, FileURL: fileURL, ExpiresIn: int(h.assets.PresignExpire().Seconds())})
}
