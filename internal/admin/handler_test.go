package admin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugcu/backend/internal/models"
)

type memUsers []models.UserPublic

func (m memUsers) List(context.Context) ([]models.UserPublic, error) { return m, nil }

type memOrgs map[uuid.UUID]*models.Organization

func (m memOrgs) List(context.Context) ([]*models.Organization, error) {
	out := []*models.Organization{}
	for _, o := range m {
		out = append(out, o)
	}
	return out, nil
}

func (m memOrgs) UpdateStatus(_ context.Context, id uuid.UUID, s models.VerificationStatus) (*models.Organization, error) {
	o, ok := m[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	o.Status = s
	return o, nil
}

type memBrands map[uuid.UUID]*models.Brand

func (m memBrands) List(context.Context) ([]*models.Brand, error) {
	out := []*models.Brand{}
	for _, b := range m {
		out = append(out, b)
	}
	return out, nil
}

func (m memBrands) UpdateStatus(_ context.Context, id uuid.UUID, s models.VerificationStatus) (*models.Brand, error) {
	b, ok := m[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	b.Status = s
	return b, nil
}

type spyMatches struct {
	eventID uuid.UUID
	limit   int
}

func (s *spyMatches) ListForEvent(_ context.Context, eventID uuid.UUID, limit int) ([]models.MatchView, error) {
	s.eventID, s.limit = eventID, limit
	return []models.MatchView{}, nil
}

type spyJobs struct {
	all    []string
	brands []string
	err    error
}

func (s *spyJobs) EnqueueRecomputeAll(_ context.Context, reason string) error {
	if s.err != nil {
		return s.err
	}
	s.all = append(s.all, reason)
	return nil
}

func (s *spyJobs) EnqueueRecomputeBrand(_ context.Context, id uuid.UUID, reason string) error {
	s.brands = append(s.brands, id.String()+":"+reason)
	return s.err
}

type fixture struct {
	router  *gin.Engine
	orgs    memOrgs
	brands  memBrands
	matches *spyMatches
	jobs    *spyJobs
}

func newFixture() *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{orgs: memOrgs{}, brands: memBrands{}, matches: &spyMatches{}, jobs: &spyJobs{}}
	users := memUsers{{ID: uuid.New(), Email: "a@cu.edu", Role: models.RoleOrg}}
	h := NewHandler(users, f.orgs, f.brands, f.matches, f.jobs, nil)
	r := gin.New()
	r.GET("/api/admin/users", h.ListUsers)
	r.GET("/api/admin/orgs", h.ListOrgs)
	r.GET("/api/admin/brands", h.ListBrands)
	r.PATCH("/api/admin/orgs/:id/status", h.SetOrgStatus)
	r.PATCH("/api/admin/brands/:id/status", h.SetBrandStatus)
	r.POST("/api/admin/matches/recompute", h.Recompute)
	r.GET("/api/admin/events/:id/matches", h.EventMatches)
	f.router = r
	return f
}

func (f *fixture) send(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestListings(t *testing.T) {
	f := newFixture()
	for _, path := range []string{"/api/admin/users", "/api/admin/orgs", "/api/admin/brands"} {
		w := f.send(http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
	w := f.send(http.MethodGet, "/api/admin/users", "")
	assert.NotContains(t, w.Body.String(), "password")
}

func TestVerifyBrandEnqueuesRecompute(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	f.brands[id] = &models.Brand{ID: id, Status: models.StatusPending}

	w := f.send(http.MethodPatch, "/api/admin/brands/"+id.String()+"/status", `{"status":"Verified"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusVerified, f.brands[id].Status)
	assert.Equal(t, []string{id.String() + ":brand_verified"}, f.jobs.brands)

	w = f.send(http.MethodPatch, "/api/admin/brands/"+id.String()+"/status", `{"status":"approved"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.send(http.MethodPatch, "/api/admin/brands/"+uuid.NewString()+"/status", `{"status":"rejected"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Len(t, f.jobs.brands, 1)
}

func TestBrandStatusSurvivesQueueOutage(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	f.brands[id] = &models.Brand{ID: id, Status: models.StatusVerified}
	f.jobs.err = errors.New("redis down")

	w := f.send(http.MethodPatch, "/api/admin/brands/"+id.String()+"/status", `{"status":"rejected"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusRejected, f.brands[id].Status)
}

func TestSetOrgStatus(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	f.orgs[id] = &models.Organization{ID: id, Status: models.StatusPending}

	w := f.send(http.MethodPatch, "/api/admin/orgs/"+id.String()+"/status", `{"status":"rejected"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusRejected, f.orgs[id].Status)
	assert.Empty(t, f.jobs.brands)

	w = f.send(http.MethodPatch, "/api/admin/orgs/bad/status", `{"status":"rejected"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecompute(t *testing.T) {
	f := newFixture()
	w := f.send(http.MethodPost, "/api/admin/matches/recompute", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"admin_request"}, f.jobs.all)

	f.jobs.err = errors.New("redis down")
	w = f.send(http.MethodPost, "/api/admin/matches/recompute", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestEventMatchesLimit(t *testing.T) {
	f := newFixture()
	id := uuid.New()

	w := f.send(http.MethodGet, "/api/admin/events/"+id.String()+"/matches", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, f.matches.eventID)
	assert.Equal(t, defaultMatchLimit, f.matches.limit)

	f.send(http.MethodGet, "/api/admin/events/"+id.String()+"/matches?limit=5000", "")
	assert.Equal(t, maxMatchLimit, f.matches.limit)

	w = f.send(http.MethodGet, "/api/admin/events/"+id.String()+"/matches?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
