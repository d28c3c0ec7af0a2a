package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/plugcu/backend/internal/middleware"
	"github.com/plugcu/backend/internal/models"
	"github.com/plugcu/backend/internal/realtime"
	"github.com/plugcu/backend/pkg/response"
)

const maxMessageLength = 5000

// Store is the thread persistence the handler needs.
type Store interface {
	StartThread(ctx context.Context, t *models.Thread, senderID uuid.UUID, opening string) (*models.Thread, bool, error)
	GetForParticipant(ctx context.Context, threadID, userID uuid.UUID) (*models.Thread, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]models.ThreadSummary, error)
	ListMessages(ctx context.Context, threadID, userID uuid.UUID) ([]models.Message, error)
	AppendMessage(ctx context.Context, threadID, senderID uuid.UUID, content string) (*models.Message, error)
}

// BrandLookup resolves the caller's brand.
type BrandLookup interface {
	GetByUserID(ctx context.Context, userID uuid.UUID) (*models.Brand, error)
}

// EventLookup loads an event with its organization.
type EventLookup interface {
	GetWithOrg(ctx context.Context, id uuid.UUID) (*models.EventWithOrg, error)
}

// Live pushes thread events to connected clients and serves thread WebSockets.
type Live interface {
	Publish(threadID uuid.UUID, event string, payload interface{})
	Serve(c *gin.Context, threadID, userID uuid.UUID)
}

// Handler handles sponsorship conversations.
type Handler struct {
	repo   Store
	brands BrandLookup
	events EventLookup
	live   Live
	logger *zap.Logger
}

// NewHandler creates a messaging handler. live may be nil, in which case messages are only persisted.
func NewHandler(repo Store, brands BrandLookup, events EventLookup, live Live, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, brands: brands, events: events, live: live, logger: logger}
}

// ContactRequest is the optional body for POST /api/brand/events/:id/contact.
type ContactRequest struct {
	Message string `json:"message" binding:"max=5000"`
}

// MessageRequest is the body for POST /api/threads/:id/messages.
type MessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func openingMessage(title string) string {
	return fmt.Sprintf("Hi! I'm interested in learning more about sponsorship opportunities for %q. Could we discuss the details?", title)
}

// Contact handles POST /api/brand/events/:id/contact. Returns the existing thread for the
// brand, organization and event, or creates it with an opening message.
func (h *Handler) Contact(c *gin.Context) {
	s := middleware.SessionFrom(c)
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var body ContactRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	brand, err := h.brands.GetByUserID(c.Request.Context(), s.IdentityID)
	if errors.Is(err, pgx.ErrNoRows) {
		response.NotFound(c, "brand profile not created yet")
		return
	}
	if err != nil {
		response.Internal(c, "failed to load brand")
		return
	}
	event, err := h.events.GetWithOrg(c.Request.Context(), eventID)
	if err != nil || event.Status != models.EventPublished {
		if err == nil || errors.Is(err, pgx.ErrNoRows) {
			response.NotFound(c, "event not found")
			return
		}
		response.Internal(c, "failed to load event")
		return
	}

	opening := strings.TrimSpace(body.Message)
	if opening == "" {
		opening = openingMessage(event.Title)
	}
	thread, created, err := h.repo.StartThread(c.Request.Context(), &models.Thread{
		BrandID: brand.ID,
		OrgID:   event.OrgID,
		EventID: &event.ID,
		Subject: "Sponsorship Inquiry: " + event.Title,
	}, s.IdentityID, opening)
	if err != nil {
		h.logger.Error("start thread failed", zap.String("brand_id", brand.ID.String()),
			zap.String("event_id", event.ID.String()), zap.Error(err))
		response.Internal(c, "failed to start conversation")
		return
	}
	if created {
		h.logger.Info("thread started", zap.String("thread_id", thread.ID.String()), zap.String("brand_id", brand.ID.String()))
		response.Created(c, thread)
		return
	}
	response.OK(c, thread)
}

// ListThreads handles GET /api/threads.
func (h *Handler) ListThreads(c *gin.Context) {
	s := middleware.SessionFrom(c)
	list, err := h.repo.ListForUser(c.Request.Context(), s.IdentityID)
	if err != nil {
		h.logger.Error("list threads failed", zap.Error(err))
		response.Internal(c, "failed to load conversations")
		return
	}
	if list == nil {
		list = []models.ThreadSummary{}
	}
	response.OK(c, list)
}

// ListMessages handles GET /api/threads/:id/messages.
func (h *Handler) ListMessages(c *gin.Context) {
	s := middleware.SessionFrom(c)
	threadID, ok := threadParam(c)
	if !ok {
		return
	}
	list, err := h.repo.ListMessages(c.Request.Context(), threadID, s.IdentityID)
	if err != nil {
		notFoundOrInternal(c, err)
		return
	}
	if list == nil {
		list = []models.Message{}
	}
	response.OK(c, list)
}

// PostMessage handles POST /api/threads/:id/messages and pushes the message to live subscribers.
func (h *Handler) PostMessage(c *gin.Context) {
	s := middleware.SessionFrom(c)
	threadID, ok := threadParam(c)
	if !ok {
		return
	}
	var body MessageRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "content required")
		return
	}
	content := strings.TrimSpace(body.Content)
	if content == "" || len(content) > maxMessageLength {
		response.BadRequest(c, fmt.Sprintf("content must be 1 to %d characters", maxMessageLength))
		return
	}
	msg, err := h.repo.AppendMessage(c.Request.Context(), threadID, s.IdentityID, content)
	if err != nil {
		notFoundOrInternal(c, err)
		return
	}
	if h.live != nil {
		h.live.Publish(threadID, realtime.EventMessage, msg)
	}
	response.Created(c, msg)
}

// Stream handles GET /ws/threads/:id.
func (h *Handler) Stream(c *gin.Context) {
	s := middleware.SessionFrom(c)
	threadID, ok := threadParam(c)
	if !ok {
		return
	}
	if h.live == nil {
		response.ServiceUnavailable(c, "live updates are not available")
		return
	}
	if _, err := h.repo.GetForParticipant(c.Request.Context(), threadID, s.IdentityID); err != nil {
		notFoundOrInternal(c, err)
		return
	}
	h.live.Serve(c, threadID, s.IdentityID)
}

func threadParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid thread id")
		return uuid.Nil, false
	}
	return id, true
}

func notFoundOrInternal(c *gin.Context, err error) {
	if errors.Is(err, pgx.ErrNoRows) {
		response.NotFound(c, "conversation not found")
		return
	}
	response.Internal(c, "database error")
}
