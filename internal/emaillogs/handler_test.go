package emaillogs

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

	"github.com/communityhub/backend/internal/middleware"
	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/queue"
)

type memStore struct {
	logs       []*models.EmailLog
	lastFilter ListFilter
}

func (m *memStore) List(ctx context.Context, f ListFilter) ([]*models.EmailLog, error) {
	m.lastFilter = f
	return m.logs, nil
}

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error) {
	for _, l := range m.logs {
		if l.ID == id {
			return l, nil
		}
	}
	return nil, database.ErrNotFound
}

type fakeQueue struct {
	payloads []queue.EmailResendPayload
	err      error
}

func (q *fakeQueue) EnqueueEmailResend(ctx context.Context, p queue.EmailResendPayload) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	q.payloads = append(q.payloads, p)
	return "job-1", nil
}

func newRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextIdentity, middleware.Identity{Email: "ops@example.com", Role: "admin"})
	})
	r.GET("/emails", h.List)
	r.POST("/emails/:id/resend", h.Resend)
	return r
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestListPassesFilters(t *testing.T) {
	store := &memStore{logs: []*models.EmailLog{{ID: uuid.New(), Status: models.EmailLogStatusFailed}}}
	r := newRouter(NewHandler(store, &fakeQueue{}, nil))

	entity := uuid.New()
	w := do(r, http.MethodGet, "/emails?status=failed&limit=20&entity_id="+entity.String())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "failed", store.lastFilter.Status)
	assert.Equal(t, 20, store.lastFilter.Limit)
	require.NotNil(t, store.lastFilter.EntityID)
	assert.Equal(t, entity, *store.lastFilter.EntityID)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/emails?entity_id=nope").Code)
}

func TestResendQueuesJob(t *testing.T) {
	log := &models.EmailLog{ID: uuid.New(), Status: models.EmailLogStatusFailed}
	q := &fakeQueue{}
	r := newRouter(NewHandler(&memStore{logs: []*models.EmailLog{log}}, q, nil))

	w := do(r, http.MethodPost, "/emails/"+log.ID.String()+"/resend")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "job-1")
	require.Len(t, q.payloads, 1)
	assert.Equal(t, log.ID, q.payloads[0].EmailLogID)
	assert.Equal(t, "ops@example.com", q.payloads[0].RequestedBy)

	assert.Equal(t, http.StatusNotFound, do(r, http.MethodPost, "/emails/"+uuid.NewString()+"/resend").Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/emails/x/resend").Code)
}

func TestResendWithoutQueue(t *testing.T) {
	log := &models.EmailLog{ID: uuid.New()}
	store := &memStore{logs: []*models.EmailLog{log}}

	r := newRouter(NewHandler(store, nil, nil))
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodPost, "/emails/"+log.ID.String()+"/resend").Code)

	r = newRouter(NewHandler(store, &fakeQueue{err: errors.New("redis down")}, nil))
	assert.Equal(t, http.StatusServiceUnavailable, do(r, http.MethodPost, "/emails/"+log.ID.String()+"/resend").Code)
}
