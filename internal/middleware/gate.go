package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/plugcu/backend/internal/gate"
	"github.com/plugcu/backend/pkg/response"
)

// ContextSession is the key for the resolved *gate.Session in gin context.
const ContextSession = "session"

// SessionProvider resolves a session token to the caller's session.
// A nil session with a nil error means the token is absent, invalid or revoked.
type SessionProvider interface {
	GetSession(ctx context.Context, token string) (*gate.Session, error)
}

// Gate returns a middleware that resolves the caller once and applies gate.Decide.
// Page routes are redirected; /api and /ws routes get 401/403 JSON instead.
func Gate(provider SessionProvider, cookieName string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		var session *gate.Session
		if token := RequestToken(c, cookieName); token != "" {
			s, err := provider.GetSession(c.Request.Context(), token)
			if err != nil {
				logger.Warn("session lookup failed, treating request as anonymous",
					zap.String("path", c.Request.URL.Path), zap.Error(err))
			} else {
				session = s
			}
		}

		d := gate.Decide(c.Request.URL.Path, session)
		if d.Allow {
			if session != nil {
				c.Set(ContextSession, session)
			}
			c.Next()
			return
		}

		if isJSONRoute(c.Request.URL.Path) {
			switch d.Reason {
			case gate.ReasonUnauthenticated:
				response.Unauthorized(c, "authentication required")
			default:
				response.Forbidden(c, "insufficient permissions")
			}
			c.Abort()
			return
		}
		c.Redirect(http.StatusFound, d.RedirectTo)
		c.Abort()
	}
}

// SessionFrom returns the session stored by Gate, or nil.
func SessionFrom(c *gin.Context) *gate.Session {
	v, ok := c.Get(ContextSession)
	if !ok {
		return nil
	}
	s, _ := v.(*gate.Session)
	return s
}

// RequestToken returns the bearer token from the Authorization header, falling back to the session cookie.
func RequestToken(c *gin.Context, cookieName string) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
	}
	if cookieName == "" {
		return ""
	}
	if v, err := c.Cookie(cookieName); err == nil {
		return v
	}
	return ""
}

func isJSONRoute(p string) bool {
	for _, prefix := range []string{"/api", "/ws"} {
		if p == prefix || strings.HasPrefix(p, prefix+"/") {
			return true
		}
	}
	return false
}
