package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugcu/backend/internal/gate"
	"github.com/plugcu/backend/internal/models"
)

const testCookie = "plugcu_session"

type fakeProvider struct {
	sessions map[string]*gate.Session
	err      error
	calls    int
}

func (f *fakeProvider) GetSession(_ context.Context, token string) (*gate.Session, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.sessions[token], nil
}

func newRouter(p SessionProvider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Gate(p, testCookie, nil))
	ok := func(c *gin.Context) {
		s := SessionFrom(c)
		if s == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, string(s.Role))
	}
	for _, p := range []string{"/", "/auth/login", "/dashboard", "/dashboard/org", "/dashboard/brand",
		"/api/brand/matches", "/api/threads", "/api/admin/users", "/ws/threads/x"} {
		r.GET(p, ok)
	}
	return r
}

func providerWith(role models.Role) *fakeProvider {
	return &fakeProvider{sessions: map[string]*gate.Session{
		"tok": {IdentityID: uuid.New(), Email: "x@cu.edu", Role: role},
	}}
}

func do(r http.Handler, path string, mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if mutate != nil {
		mutate(req)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func withCookie(req *http.Request) {
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "tok"})
}

func withBearer(req *http.Request) {
	req.Header.Set("Authorization", "Bearer tok")
}

func TestGateRedirectsAnonymousPageRequests(t *testing.T) {
	r := newRouter(&fakeProvider{})

	w := do(r, "/dashboard/org", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, gate.LoginPath, w.Header().Get("Location"))

	w = do(r, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())
}

func TestGateRejectsAnonymousAPIRequestsWithJSON(t *testing.T) {
	r := newRouter(&fakeProvider{})

	w := do(r, "/api/threads", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)

	w = do(r, "/ws/threads/x", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGateRoleMismatch(t *testing.T) {
	r := newRouter(providerWith(models.RoleOrg))

	w := do(r, "/dashboard/brand", withCookie)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, gate.DashboardPath, w.Header().Get("Location"))

	w = do(r, "/api/admin/users", withBearer)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGateAllowsMatchingRoleAndStoresSession(t *testing.T) {
	r := newRouter(providerWith(models.RoleBrand))

	w := do(r, "/api/brand/matches", withBearer)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "brand", w.Body.String())

	w = do(r, "/dashboard/brand", withCookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGateBouncesAuthenticatedAwayFromAuthPages(t *testing.T) {
	r := newRouter(providerWith(models.RoleAdmin))

	w := do(r, "/auth/login", withCookie)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, gate.DashboardPath, w.Header().Get("Location"))
}

func TestGateFailsClosedOnProviderError(t *testing.T) {
	p := &fakeProvider{err: errors.New("redis down")}
	r := newRouter(p)

	w := do(r, "/dashboard", withCookie)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, gate.LoginPath, w.Header().Get("Location"))
	assert.Equal(t, 1, p.calls)

	// The auth surface stays reachable so the user can sign in again.
	w = do(r, "/auth/login", withCookie)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGateSkipsProviderWithoutToken(t *testing.T) {
	p := &fakeProvider{}
	r := newRouter(p)
	do(r, "/", nil)
	assert.Equal(t, 0, p.calls)
}

func TestRequestTokenPrefersBearer(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: testCookie, Value: "cookie-token"})
	c.Request = req
	require.Equal(t, "header-token", RequestToken(c, testCookie))

	req.Header.Set("Authorization", "Basic abc")
	assert.Equal(t, "cookie-token", RequestToken(c, testCookie))
}

func TestCORS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, "/", func(req *http.Request) { req.Header.Set("Origin", "http://localhost:3000") })
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = do(r, "/", func(req *http.Request) { req.Header.Set("Origin", "http://evil.test") })
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
