package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/validation"
)

type memStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Event
}

func newMemStore() *memStore { return &memStore{rows: map[uuid.UUID]*models.Event{}} }

func (m *memStore) Create(ctx context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	cp := *e
	m.rows[e.ID] = &cp
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.rows[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (m *memStore) GetBySlug(ctx context.Context, s string) (*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rows {
		if e.Slug == s {
			cp := *e
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memStore) List(ctx context.Context, f ListFilter, now time.Time) ([]*models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.Event{}
	for _, e := range m.rows {
		if f.Status != "" && string(e.EffectiveStatus(now)) != f.Status {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) Update(ctx context.Context, e *models.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	m.rows[e.ID] = &cp
	return nil
}

func (m *memStore) UpdateStatus(ctx context.Context, id uuid.UUID, s models.EventStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return database.ErrNotFound
	}
	e.Status = s
	return nil
}

func (m *memStore) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

func setup() (*gin.Engine, *memStore) {
	gin.SetMode(gin.TestMode)
	validation.RegisterGin()
	store := newMemStore()
	h := NewHandler(store, nil)
	r := gin.New()
	r.GET("/api/events", h.List)
	r.GET("/api/events/:id", h.Get)
	r.POST("/api/events", h.Create)
	r.PUT("/api/events/:id", h.Update)
	r.PATCH("/api/events/:id/status", h.SetStatus)
	r.DELETE("/api/events/:id", h.Delete)
	return r, store
}

func send(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestCreateAndGetBySlug(t *testing.T) {
	r, _ := setup()
	start := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	w := send(r, http.MethodPost, "/api/events", `{"title":"Go Meetup Hà Nội","starts_at":"`+start+`","price":500000,"online_link":"https://meet.example/go"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var body struct {
		Data models.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "go-meetup-ha-noi", body.Data.Slug)
	assert.Equal(t, models.EventUpcoming, body.Data.Status)

	w = send(r, http.MethodGet, "/api/events/go-meetup-ha-noi", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCreateValidation(t *testing.T) {
	r, _ := setup()
	assert.Equal(t, http.StatusBadRequest, send(r, http.MethodPost, "/api/events", `{"title":"x"}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(r, http.MethodPost, "/api/events", `{"title":"x","starts_at":"tomorrow"}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(r, http.MethodPost, "/api/events",
		`{"title":"x","starts_at":"2030-01-02T10:00:00Z","ends_at":"2030-01-01T10:00:00Z"}`).Code)
	assert.Equal(t, http.StatusBadRequest, send(r, http.MethodPost, "/api/events",
		`{"title":"x","starts_at":"2030-01-02T10:00:00Z","price":-1}`).Code)
}

func TestListAppliesEffectiveStatus(t *testing.T) {
	r, store := setup()
	ctx := context.Background()
	require.NoError(t, store.Create(ctx, &models.Event{Title: "old", Status: models.EventUpcoming, StartsAt: time.Now().Add(-72 * time.Hour)}))
	require.NoError(t, store.Create(ctx, &models.Event{Title: "new", Status: models.EventUpcoming, StartsAt: time.Now().Add(72 * time.Hour)}))

	w := send(r, http.MethodGet, "/api/events?status=past", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []models.Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, "old", body.Data[0].Title)
	assert.Equal(t, models.EventPast, body.Data[0].Status)

	assert.Equal(t, http.StatusBadRequest, send(r, http.MethodGet, "/api/events?status=soon", "").Code)
}

func TestUpdateRejectsCapacityBelowRegistrations(t *testing.T) {
	r, store := setup()
	e := &models.Event{Title: "full", Status: models.EventUpcoming, StartsAt: time.Now().Add(time.Hour), Capacity: 10}
	require.NoError(t, store.Create(context.Background(), e))
	store.rows[e.ID].Registrations = 5

	start := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	w := send(r, http.MethodPut, "/api/events/"+e.ID.String(), `{"title":"full","starts_at":"`+start+`","capacity":3}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	w = send(r, http.MethodPut, "/api/events/"+e.ID.String(), `{"title":"full","starts_at":"`+start+`","capacity":5}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestStatusAndDelete(t *testing.T) {
	r, store := setup()
	e := &models.Event{Title: "x", Status: models.EventUpcoming, StartsAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Create(context.Background(), e))

	assert.Equal(t, http.StatusBadRequest, send(r, http.MethodPatch, "/api/events/"+e.ID.String()+"/status", `{"status":"archived"}`).Code)
	assert.Equal(t, http.StatusOK, send(r, http.MethodPatch, "/api/events/"+e.ID.String()+"/status", `{"status":"cancelled"}`).Code)
	assert.Equal(t, models.EventCancelled, store.rows[e.ID].Status)

	assert.Equal(t, http.StatusNoContent, send(r, http.MethodDelete, "/api/events/"+e.ID.String(), "").Code)
	assert.Equal(t, http.StatusNotFound, send(r, http.MethodDelete, "/api/events/"+e.ID.String(), "").Code)
}
