package messaging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plugcu/backend/internal/gate"
	"github.com/plugcu/backend/internal/middleware"
	"github.com/plugcu/backend/internal/models"
)

// memStore mirrors the participant scoping of Repository.
type memStore struct {
	owners   map[uuid.UUID]uuid.UUID // brand or org id -> owner user id
	threads  map[uuid.UUID]*models.Thread
	messages []models.Message
	clock    time.Time
}

func newMemStore() *memStore {
	return &memStore{
		owners:  map[uuid.UUID]uuid.UUID{},
		threads: map[uuid.UUID]*models.Thread{},
		clock:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Minute)
	return m.clock
}

func (m *memStore) participates(t *models.Thread, userID uuid.UUID) bool {
	return m.owners[t.BrandID] == userID || m.owners[t.OrgID] == userID
}

func (m *memStore) StartThread(_ context.Context, t *models.Thread, senderID uuid.UUID, opening string) (*models.Thread, bool, error) {
	for _, cur := range m.threads {
		if cur.BrandID == t.BrandID && cur.OrgID == t.OrgID && *cur.EventID == *t.EventID {
			return cur, false, nil
		}
	}
	cp := *t
	cp.ID = uuid.New()
	cp.CreatedAt = m.tick()
	cp.UpdatedAt = cp.CreatedAt
	m.threads[cp.ID] = &cp
	m.messages = append(m.messages, models.Message{ID: uuid.New(), ThreadID: cp.ID, SenderID: senderID, Content: opening, CreatedAt: cp.CreatedAt})
	return &cp, true, nil
}

func (m *memStore) GetForParticipant(_ context.Context, threadID, userID uuid.UUID) (*models.Thread, error) {
	t, ok := m.threads[threadID]
	if !ok || !m.participates(t, userID) {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

func (m *memStore) ListForUser(_ context.Context, userID uuid.UUID) ([]models.ThreadSummary, error) {
	var out []models.ThreadSummary
	for _, t := range m.threads {
		if !m.participates(t, userID) {
			continue
		}
		s := models.ThreadSummary{Thread: *t}
		for i := range m.messages {
			msg := m.messages[i]
			if msg.ThreadID != t.ID {
				continue
			}
			s.LatestMessage = &msg
			if msg.SenderID != userID && msg.ReadAt == nil {
				s.UnreadCount++
			}
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *memStore) ListMessages(ctx context.Context, threadID, userID uuid.UUID) ([]models.Message, error) {
	if _, err := m.GetForParticipant(ctx, threadID, userID); err != nil {
		return nil, err
	}
	out := []models.Message{}
	now := m.clock
	for i := range m.messages {
		if m.messages[i].ThreadID != threadID {
			continue
		}
		if m.messages[i].SenderID != userID && m.messages[i].ReadAt == nil {
			m.messages[i].ReadAt = &now
		}
		out = append(out, m.messages[i])
	}
	return out, nil
}

func (m *memStore) AppendMessage(ctx context.Context, threadID, senderID uuid.UUID, content string) (*models.Message, error) {
	t, err := m.GetForParticipant(ctx, threadID, senderID)
	if err != nil {
		return nil, err
	}
	msg := models.Message{ID: uuid.New(), ThreadID: threadID, SenderID: senderID, Content: content, CreatedAt: m.tick()}
	m.messages = append(m.messages, msg)
	t.UpdatedAt = msg.CreatedAt
	return &msg, nil
}

type staticBrands map[uuid.UUID]*models.Brand

func (s staticBrands) GetByUserID(_ context.Context, userID uuid.UUID) (*models.Brand, error) {
	if b, ok := s[userID]; ok {
		return b, nil
	}
	return nil, pgx.ErrNoRows
}

type staticEvents map[uuid.UUID]*models.EventWithOrg

func (s staticEvents) GetWithOrg(_ context.Context, id uuid.UUID) (*models.EventWithOrg, error) {
	if e, ok := s[id]; ok {
		return e, nil
	}
	return nil, pgx.ErrNoRows
}

type published struct {
	threadID uuid.UUID
	event    string
}

type spyLive struct {
	published []published
	served    []uuid.UUID
}

func (s *spyLive) Publish(threadID uuid.UUID, event string, _ interface{}) {
	s.published = append(s.published, published{threadID, event})
}

func (s *spyLive) Serve(c *gin.Context, threadID, _ uuid.UUID) {
	s.served = append(s.served, threadID)
	c.Status(http.StatusSwitchingProtocols)
}

type fixture struct {
	router    *gin.Engine
	store     *memStore
	live      *spyLive
	brandUser uuid.UUID
	orgUser   uuid.UUID
	event     *models.EventWithOrg
	draft     uuid.UUID
	caller    *uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{store: newMemStore(), live: &spyLive{}, brandUser: uuid.New(), orgUser: uuid.New()}
	brand := &models.Brand{ID: uuid.New(), UserID: f.brandUser, CompanyName: "Red Bull"}
	org := models.Organization{ID: uuid.New(), UserID: f.orgUser, Name: "CU Hackers", University: "Columbia"}
	f.event = &models.EventWithOrg{
		Event: models.Event{ID: uuid.New(), OrgID: org.ID, Title: "Hack Night", Status: models.EventPublished},
		Org:   org,
	}
	draft := &models.EventWithOrg{Event: models.Event{ID: uuid.New(), OrgID: org.ID, Title: "Draft", Status: models.EventDraft}, Org: org}
	f.draft = draft.ID
	f.store.owners[brand.ID] = f.brandUser
	f.store.owners[org.ID] = f.orgUser
	caller := f.brandUser
	f.caller = &caller

	h := NewHandler(f.store, staticBrands{f.brandUser: brand},
		staticEvents{f.event.ID: f.event, draft.ID: draft}, f.live, nil)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		role := models.RoleBrand
		if *f.caller == f.orgUser {
			role = models.RoleOrg
		}
		c.Set(middleware.ContextSession, &gate.Session{IdentityID: *f.caller, Role: role})
	})
	r.POST("/api/brand/events/:id/contact", h.Contact)
	r.GET("/api/threads", h.ListThreads)
	r.GET("/api/threads/:id/messages", h.ListMessages)
	r.POST("/api/threads/:id/messages", h.PostMessage)
	r.GET("/ws/threads/:id", h.Stream)
	f.router = r
	return f
}

func (f *fixture) as(userID uuid.UUID) *fixture {
	*f.caller = userID
	return f
}

func (f *fixture) send(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env.Data
}

func (f *fixture) contact(t *testing.T) uuid.UUID {
	t.Helper()
	w := f.as(f.brandUser).send(http.MethodPost, "/api/brand/events/"+f.event.ID.String()+"/contact", "")
	require.Contains(t, []int{http.StatusOK, http.StatusCreated}, w.Code)
	return decode[models.Thread](t, w).ID
}

func TestContactCreatesThreadOnce(t *testing.T) {
	f := newFixture(t)

	w := f.send(http.MethodPost, "/api/brand/events/"+f.event.ID.String()+"/contact", "")
	require.Equal(t, http.StatusCreated, w.Code)
	thread := decode[models.Thread](t, w)
	assert.Equal(t, "Sponsorship Inquiry: Hack Night", thread.Subject)
	assert.Equal(t, f.event.OrgID, thread.OrgID)
	require.Len(t, f.store.messages, 1)
	assert.Contains(t, f.store.messages[0].Content, `"Hack Night"`)

	w = f.send(http.MethodPost, "/api/brand/events/"+f.event.ID.String()+"/contact", `{"message":"again"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, thread.ID, decode[models.Thread](t, w).ID)
	assert.Len(t, f.store.messages, 1)
}

func TestContactRequiresPublishedEventAndBrand(t *testing.T) {
	f := newFixture(t)

	w := f.send(http.MethodPost, "/api/brand/events/"+f.draft.String()+"/contact", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "drafts are not contactable")

	w = f.send(http.MethodPost, "/api/brand/events/"+uuid.NewString()+"/contact", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.send(http.MethodPost, "/api/brand/events/not-a-uuid/contact", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.as(f.orgUser).send(http.MethodPost, "/api/brand/events/"+f.event.ID.String()+"/contact", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "callers without a brand profile cannot start threads")
	assert.Empty(t, f.store.threads)
}

func TestConversationFlow(t *testing.T) {
	f := newFixture(t)
	threadID := f.contact(t)
	path := "/api/threads/" + threadID.String() + "/messages"

	w := f.as(f.orgUser).send(http.MethodGet, "/api/threads", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]models.ThreadSummary](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].UnreadCount)

	w = f.send(http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	msgs := decode[[]models.Message](t, w)
	require.Len(t, msgs, 1)
	assert.NotNil(t, msgs[0].ReadAt, "opening message is read once the org opens the thread")

	w = f.send(http.MethodPost, path, `{"content":"  Happy to talk!  "}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Happy to talk!", decode[models.Message](t, w).Content)
	assert.Equal(t, []published{{threadID, "message"}}, f.live.published)

	w = f.as(f.brandUser).send(http.MethodGet, "/api/threads", "")
	list = decode[[]models.ThreadSummary](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, 1, list[0].UnreadCount)
	assert.Equal(t, "Happy to talk!", list[0].LatestMessage.Content)

	w = f.send(http.MethodGet, path, "")
	msgs = decode[[]models.Message](t, w)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].CreatedAt.Before(msgs[1].CreatedAt))
}

func TestOutsidersCannotReadOrWrite(t *testing.T) {
	f := newFixture(t)
	threadID := f.contact(t)
	path := "/api/threads/" + threadID.String() + "/messages"

	f.as(uuid.New())
	assert.Equal(t, http.StatusNotFound, f.send(http.MethodGet, path, "").Code)
	assert.Equal(t, http.StatusNotFound, f.send(http.MethodPost, path, `{"content":"hi"}`).Code)
	assert.Equal(t, http.StatusNotFound, f.send(http.MethodGet, "/ws/threads/"+threadID.String(), "").Code)
	assert.Empty(t, f.live.served)
	assert.Empty(t, f.live.published)

	w := f.send(http.MethodGet, "/api/threads", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
}

func TestPostMessageValidation(t *testing.T) {
	f := newFixture(t)
	threadID := f.contact(t)
	path := "/api/threads/" + threadID.String() + "/messages"

	assert.Equal(t, http.StatusBadRequest, f.send(http.MethodPost, path, `{"content":"   "}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.send(http.MethodPost, path, `{}`).Code)
	long := strings.Repeat("a", maxMessageLength+1)
	assert.Equal(t, http.StatusBadRequest, f.send(http.MethodPost, path, `{"content":"`+long+`"}`).Code)
}

func TestStreamServesParticipants(t *testing.T) {
	f := newFixture(t)
	threadID := f.contact(t)

	f.as(f.orgUser).send(http.MethodGet, "/ws/threads/"+threadID.String(), "")
	assert.Equal(t, []uuid.UUID{threadID}, f.live.served)
}
