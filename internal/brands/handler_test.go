package brands

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugcu/backend/internal/events"
	"github.com/plugcu/backend/internal/gate"
	"github.com/plugcu/backend/internal/middleware"
	"github.com/plugcu/backend/internal/models"
)

type memBrands struct {
	byUser map[uuid.UUID]*models.Brand
}

func (m *memBrands) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Brand, error) {
	if b, ok := m.byUser[userID]; ok {
		return b, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *memBrands) Upsert(_ context.Context, b *models.Brand) (*models.Brand, error) {
	if cur, ok := m.byUser[b.UserID]; ok {
		b.ID, b.Status = cur.ID, cur.Status
	} else {
		b.ID, b.Status = uuid.New(), models.StatusPending
	}
	m.byUser[b.UserID] = b
	return b, nil
}

func (m *memBrands) SetLogo(_ context.Context, id uuid.UUID, url string) error {
	for _, b := range m.byUser {
		if b.ID == id {
			b.LogoURL = url
		}
	}
	return nil
}

const bucketURL = "https://assets.test/"

type fakeAssets struct{ deleted []string }

func (f *fakeAssets) PresignAssetUpload(_ context.Context, key, _ string) (string, error) {
	return bucketURL + key + "?signed", nil
}

func (f *fakeAssets) AssetURL(key string) string { return bucketURL + key }

func (f *fakeAssets) PresignExpire() time.Duration { return 15 * time.Minute }

func (f *fakeAssets) KeyForURL(u string) (string, bool) {
	if !strings.HasPrefix(u, bucketURL) {
		return "", false
	}
	return strings.TrimPrefix(u, bucketURL), true
}

func (f *fakeAssets) DeleteAsset(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

type spyFinder struct{ got events.Filter }

func (s *spyFinder) Discover(_ context.Context, f events.Filter) ([]*models.EventWithOrg, error) {
	s.got = f
	return []*models.EventWithOrg{}, nil
}

type spyMatches struct {
	brandID  uuid.UUID
	minScore float64
	limit    int
}

func (s *spyMatches) ListForBrand(_ context.Context, brandID uuid.UUID, minScore float64, limit int) ([]models.MatchView, error) {
	s.brandID, s.minScore, s.limit = brandID, minScore, limit
	return []models.MatchView{}, nil
}

type spyJobs struct{ brands []uuid.UUID }

func (s *spyJobs) EnqueueRecomputeBrand(_ context.Context, id uuid.UUID, _ string) error {
	s.brands = append(s.brands, id)
	return nil
}

type fixture struct {
	router  *gin.Engine
	repo    *memBrands
	finder  *spyFinder
	matches *spyMatches
	jobs    *spyJobs
	userID  uuid.UUID
}

func newFixture() *fixture {
	gin.SetMode(gin.TestMode)
	f := &fixture{
		repo:    &memBrands{byUser: map[uuid.UUID]*models.Brand{}},
		finder:  &spyFinder{},
		matches: &spyMatches{},
		jobs:    &spyJobs{},
		userID:  uuid.New(),
	}
	h := NewHandler(f.repo, f.finder, f.matches, f.jobs, nil, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextSession, &gate.Session{IdentityID: f.userID, Role: models.RoleBrand})
	})
	r.GET("/api/brand/profile", h.GetProfile)
	r.PUT("/api/brand/profile", h.PutProfile)
	r.POST("/api/brand/profile/logo-upload-url", h.LogoUploadURL)
	r.GET("/api/brand/events", h.DiscoverEvents)
	r.GET("/api/brand/matches", h.Matches)
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

func TestPutProfileEnqueuesRecompute(t *testing.T) {
	f := newFixture()

	w := f.send(http.MethodPut, "/api/brand/profile",
		`{"company_name":"Red Bull","preferred_event_types":["sports","Sports"],"budget_range_min":1000,"budget_range_max":5000}`)
	require.Equal(t, http.StatusOK, w.Code)

	b := f.repo.byUser[f.userID]
	require.NotNil(t, b)
	assert.Equal(t, []string{"sports"}, b.PreferredEventTypes)
	assert.Equal(t, []uuid.UUID{b.ID}, f.jobs.brands)

	w = f.send(http.MethodPut, "/api/brand/profile", `{"company_name":"Red Bull","budget_range_min":9000,"budget_range_max":10}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, f.jobs.brands, 1)
}

func TestDiscoverEventsFilters(t *testing.T) {
	f := newFixture()

	w := f.send(http.MethodGet, "/api/brand/events?search=hack&min_budget=500&university=Columbia&event_type=tech&limit=500", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hack", f.finder.got.Search)
	assert.Equal(t, int64(500), *f.finder.got.MinBudget)
	assert.Nil(t, f.finder.got.MaxBudget)
	assert.Equal(t, "Columbia", f.finder.got.University)
	assert.Equal(t, 50, f.finder.got.Limit)

	w = f.send(http.MethodGet, "/api/brand/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 20, f.finder.got.Limit)

	w = f.send(http.MethodGet, "/api/brand/events?max_budget=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMatchesForCallerBrand(t *testing.T) {
	f := newFixture()

	w := f.send(http.MethodGet, "/api/brand/matches", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	brand, _ := f.repo.Upsert(context.Background(), &models.Brand{UserID: f.userID, CompanyName: "Nike"})

	w = f.send(http.MethodGet, "/api/brand/matches?min_score=0.5&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, brand.ID, f.matches.brandID)
	assert.Equal(t, 0.5, f.matches.minScore)
	assert.Equal(t, 10, f.matches.limit)

	w = f.send(http.MethodGet, "/api/brand/matches?min_score=1.5", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLogoUploadWithoutStorage(t *testing.T) {
	f := newFixture()
	w := f.send(http.MethodPost, "/api/brand/profile/logo-upload-url", `{"filename":"logo.png"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestLogoReplacementDeletesPreviousObject(t *testing.T) {
	f := newFixture()
	assets := &fakeAssets{}
	h := NewHandler(f.repo, f.finder, f.matches, f.jobs, assets, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextSession, &gate.Session{IdentityID: f.userID, Role: models.RoleBrand})
	})
	r.POST("/logo", h.LogoUploadURL)
	upload := func() int {
		req := httptest.NewRequest(http.MethodPost, "/logo", strings.NewReader(`{"filename":"logo.png"}`))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	brand, _ := f.repo.Upsert(context.Background(), &models.Brand{
		UserID: f.userID, CompanyName: "Nike", LogoURL: "https://cdn.example.com/nike.png",
	})
	require.Equal(t, http.StatusOK, upload())
	assert.Empty(t, assets.deleted, "external logos are not ours to delete")
	require.True(t, strings.HasPrefix(brand.LogoURL, bucketURL))

	brand.LogoURL = bucketURL + "logos/" + brand.ID.String() + "/1-old.png"
	require.Equal(t, http.StatusOK, upload())
	assert.Equal(t, []string{"logos/" + brand.ID.String() + "/1-old.png"}, assets.deleted)
}
