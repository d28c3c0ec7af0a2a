package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/plugcu/backend/config"
	"github.com/plugcu/backend/internal/gate"
	"github.com/plugcu/backend/internal/middleware"
	"github.com/plugcu/backend/internal/models"
	"github.com/plugcu/backend/pkg/response"
	"github.com/plugcu/backend/pkg/utils"
)

// UserStore is the user persistence the auth handler needs.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, email, passwordHash, fullName string, role models.Role) (*models.User, error)
}

// SignupRequest is the body for POST /auth/signup.
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	FullName string `json:"full_name" binding:"required"`
	Role     string `json:"role"` // org (or student_org) and brand; defaults to org
}

// LoginRequest is the body for POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is the auth response with the session token.
type TokenResponse struct {
	Token    string            `json:"token"`
	User     models.UserPublic `json:"user"`
	Redirect string            `json:"redirect"`
}

// Handler handles the auth surface.
type Handler struct {
	users    UserStore
	sessions *SessionService
	cookie   config.ServerConfig
	logger   *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(users UserStore, sessions *SessionService, cookie config.ServerConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{users: users, sessions: sessions, cookie: cookie, logger: logger}
}

// Signup handles POST /auth/signup.
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	role := models.ParseRole(req.Role)
	if role == models.RoleAdmin {
		response.BadRequest(c, "role must be org or brand")
		return
	}

	if _, err := h.users.GetByEmail(c.Request.Context(), req.Email); err == nil {
		response.Conflict(c, "email already registered")
		return
	}

	hash, err := utils.HashPassword(req.Password)
	if errors.Is(err, utils.ErrPasswordLength) {
		response.BadRequest(c, err.Error())
		return
	}
	if err != nil {
		response.Internal(c, "failed to hash password")
		return
	}
	user, err := h.users.Create(c.Request.Context(), req.Email, hash, strings.TrimSpace(req.FullName), role)
	if err != nil {
		h.logger.Error("create user failed", zap.Error(err))
		response.Internal(c, "failed to create user")
		return
	}
	h.logger.Info("user signed up", zap.String("user_id", user.ID.String()), zap.String("role", string(role)))
	h.startSession(c, user, http.StatusCreated)
}

// Login handles POST /auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	user, err := h.users.GetByEmail(c.Request.Context(), req.Email)
	if err != nil || !utils.CheckPassword(req.Password, user.Password) {
		response.Unauthorized(c, "invalid email or password")
		return
	}
	h.startSession(c, user, http.StatusOK)
}

// Callback handles GET /auth/callback, the landing point after an email confirmation link.
func (h *Handler) Callback(c *gin.Context) {
	if c.Query("code") == "" {
		c.Redirect(http.StatusFound, gate.LoginPath)
		return
	}
	c.Redirect(http.StatusFound, gate.DashboardPath)
}

// Logout handles POST /logout. It revokes the caller's token and clears the cookie.
func (h *Handler) Logout(c *gin.Context) {
	if token := middleware.RequestToken(c, h.cookie.CookieName); token != "" {
		if err := h.sessions.SignOut(c.Request.Context(), token); err != nil {
			h.logger.Error("sign out failed", zap.Error(err))
			response.ServiceUnavailable(c, "could not sign out, try again")
			return
		}
	}
	h.setCookie(c, "", -1)
	response.OK(c, gin.H{"redirect": gate.LoginPath})
}

func (h *Handler) startSession(c *gin.Context, user *models.User, status int) {
	token, err := h.sessions.Issue(user)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	h.setCookie(c, token, int(h.sessions.jwt.TTL().Seconds()))
	c.JSON(status, response.Body{Success: true, Data: TokenResponse{
		Token:    token,
		User:     user.ToPublic(),
		Redirect: gate.HomeFor(user.Role),
	}})
}

func (h *Handler) setCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.CookieName, value, maxAge, "/", h.cookie.CookieDomain, h.cookie.CookieSecure, true)
}
