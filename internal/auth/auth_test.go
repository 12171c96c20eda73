package auth

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

	"github.com/communityhub/backend/internal/middleware"
	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/database"
)

type memAdmins struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Admin
}

func (m *memAdmins) GetByID(ctx context.Context, id uuid.UUID) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.rows[id]; ok {
		cp := *a
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (m *memAdmins) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.rows {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, database.ErrNotFound
}

func (m *memAdmins) Count(ctx context.Context) (int, error) { return len(m.rows), nil }

func (m *memAdmins) Create(ctx context.Context, email, hash, name string, role models.Role) (*models.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &models.Admin{ID: uuid.New(), Email: email, Password: hash, FullName: name, Role: role}
	m.rows[a.ID] = a
	return a, nil
}

func (m *memAdmins) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[id].Password = hash
	return nil
}

func (m *memAdmins) TouchLogin(ctx context.Context, id uuid.UUID) error { return nil }

type memSessions struct {
	mu   sync.Mutex
	rows map[string]Session
}

func (m *memSessions) Create(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[s.ID] = s
	return nil
}

func (m *memSessions) Exists(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.rows[id]
	return ok, nil
}

func (m *memSessions) List(ctx context.Context, adminID uuid.UUID) ([]Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Session
	for _, s := range m.rows {
		if s.AdminID == adminID {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memSessions) Revoke(ctx context.Context, adminID uuid.UUID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.rows[id]
	if !ok || s.AdminID != adminID {
		return false, nil
	}
	delete(m.rows, id)
	return true, nil
}

func (m *memSessions) RevokeAllExcept(ctx context.Context, adminID uuid.UUID, keep string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.rows {
		if s.AdminID == adminID && id != keep {
			delete(m.rows, id)
			n++
		}
	}
	return n, nil
}

type memThrottle struct {
	mu       sync.Mutex
	failures map[string]int
}

func (m *memThrottle) Locked(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures[email] >= MaxLoginFailures, nil
}

func (m *memThrottle) Fail(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[email]++
	return nil
}

func (m *memThrottle) Reset(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.failures, email)
	return nil
}

func newTestService(t *testing.T) (*Service, *memSessions) {
	t.Helper()
	sessions := &memSessions{rows: map[string]Session{}}
	svc := NewService(&memAdmins{rows: map[uuid.UUID]*models.Admin{}}, NewJWTService("test-secret", 1), sessions,
		&memThrottle{failures: map[string]int{}}, nil)
	require.NoError(t, svc.Bootstrap(context.Background(), "Admin@Example.com", "correct-horse", ""))
	return svc, sessions
}

func TestBootstrapOnlyWhenEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.Bootstrap(context.Background(), "other@example.com", "another-pass", "Other"))
	n, _ := svc.admins.Count(context.Background())
	assert.Equal(t, 1, n)
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	res, err := svc.Login(ctx, "admin@example.com", "correct-horse", "1.2.3.4", "test")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, res.Admin.Role)

	id, err := svc.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", id.Email)

	require.NoError(t, svc.Logout(ctx, *id))
	_, err = svc.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, ErrSessionRevoked)
}

func TestLoginLockout(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	for i := 0; i < MaxLoginFailures; i++ {
		_, err := svc.Login(ctx, "admin@example.com", "wrong", "", "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}
	_, err := svc.Login(ctx, "admin@example.com", "correct-horse", "", "")
	assert.ErrorIs(t, err, ErrLoginLocked)
}

func TestChangePasswordRevokesOtherSessions(t *testing.T) {
	svc, sessions := newTestService(t)
	ctx := context.Background()
	first, err := svc.Login(ctx, "admin@example.com", "correct-horse", "", "")
	require.NoError(t, err)
	second, err := svc.Login(ctx, "admin@example.com", "correct-horse", "", "")
	require.NoError(t, err)

	id, err := svc.Authenticate(ctx, second.Token)
	require.NoError(t, err)

	_, err = svc.ChangePassword(ctx, *id, "correct-horse", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)
	_, err = svc.ChangePassword(ctx, *id, "nope-nope", "battery-staple")
	assert.ErrorIs(t, err, ErrWrongPassword)

	n, err := svc.ChangePassword(ctx, *id, "correct-horse", "battery-staple")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, sessions.rows, 1)

	_, err = svc.Authenticate(ctx, first.Token)
	assert.ErrorIs(t, err, ErrSessionRevoked)
	_, err = svc.Login(ctx, "admin@example.com", "battery-staple", "", "")
	assert.NoError(t, err)
}

func TestRevokeForeignSession(t *testing.T) {
	svc, sessions := newTestService(t)
	ctx := context.Background()
	_, err := svc.Login(ctx, "admin@example.com", "correct-horse", "", "")
	require.NoError(t, err)

	stranger := middleware.Identity{AdminID: uuid.New()}
	for id := range sessions.rows {
		assert.ErrorIs(t, svc.RevokeSession(ctx, stranger, id), ErrSessionNotFound)
	}
}

func TestJWTRejectsTampered(t *testing.T) {
	j := NewJWTService("a", 1)
	tok, _, err := j.Generate(uuid.New(), "x@y.z", "admin")
	require.NoError(t, err)
	_, err = NewJWTService("b", 1).Validate(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLoginHandler(t *testing.T) {
	svc, _ := newTestService(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewHandler(svc, nil)
	r.POST("/login", h.Login)
	admin := r.Group("/admin", middleware.JWT(svc.Authenticate))
	admin.GET("/me", h.Me)

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusBadRequest, post(`{"email":"bad"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, post(`{"email":"admin@example.com","password":"nope"}`).Code)

	w := post(`{"email":"admin@example.com","password":"correct-horse"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data LoginResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Data.ExpiresAt.After(time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/admin/me", nil)
	req.Header.Set("Authorization", "Bearer "+body.Data.Token)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "admin@example.com")
}
