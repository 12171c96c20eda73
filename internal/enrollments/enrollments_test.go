package enrollments

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

	"github.com/communityhub/backend/internal/mailer"
	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/internal/payments"
	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/validation"
)

type memStore struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.CourseEnrollment
}

func (m *memStore) Create(ctx context.Context, e *models.CourseEnrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	cp := *e
	m.rows[e.ID] = &cp
	return nil
}

func (m *memStore) GetByID(ctx context.Context, id uuid.UUID) (*models.CourseEnrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.rows[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (m *memStore) List(ctx context.Context, f ListFilter) ([]*models.CourseEnrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*models.CourseEnrollment{}
	for _, e := range m.rows {
		if f.CourseID != nil && e.CourseID != *f.CourseID {
			continue
		}
		if f.PaymentStatus != "" && string(e.PaymentStatus) != f.PaymentStatus {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memStore) UpdateState(ctx context.Context, id uuid.UUID, st payments.State, confirmedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return database.ErrNotFound
	}
	e.Status, e.PaymentStatus = st.Status, st.PaymentStatus
	if e.ConfirmedAt == nil {
		e.ConfirmedAt = confirmedAt
	}
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

type memCourses struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.Course
	enr  *memStore
}

func (m *memCourses) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.rows[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, database.ErrNotFound
}

func (m *memCourses) TitlesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[uuid.UUID]string{}
	for _, id := range ids {
		if c, ok := m.rows[id]; ok {
			out[id] = c.Title
		}
	}
	return out, nil
}

func (m *memCourses) RecountEnrollments(ctx context.Context, id uuid.UUID) (int, error) {
	list, _ := m.enr.List(ctx, ListFilter{CourseID: &id})
	n := 0
	for _, e := range list {
		if e.Status != models.StatusCancelled {
			n++
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok {
		return 0, database.ErrNotFound
	}
	c.EnrolledCount = n
	return n, nil
}

func (m *memCourses) add(c *models.Course) *models.Course {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New()
	if c.Status == "" {
		c.Status = models.CoursePublished
	}
	m.rows[c.ID] = c
	return c
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []mailer.Envelope
}

func (f *fakeTransport) Send(ctx context.Context, cfg mailer.SMTPConfig, env mailer.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, env)
	return nil
}

type nopBroadcaster struct{}

func (nopBroadcaster) Notify(string, interface{}) {}

func newService() (*Service, *memStore, *memCourses, *fakeTransport) {
	store := &memStore{rows: map[uuid.UUID]*models.CourseEnrollment{}}
	courses := &memCourses{rows: map[uuid.UUID]*models.Course{}, enr: store}
	tr := &fakeTransport{}
	mail := mailer.NewService(tr, nil, nil, mailer.SMTPConfig{Host: "smtp.test", From: "noreply@test"}, "Community Hub", nil)
	return NewService(store, courses, mail, nopBroadcaster{}, nil), store, courses, tr
}

func TestEnrollChargesEffectivePrice(t *testing.T) {
	svc, _, courses, tr := newService()
	pct := 25.0
	course := courses.add(&models.Course{
		Title: "Kubernetes 101", Price: 2000000, IsDiscountActive: true, DiscountPercentage: &pct,
		AccessLink: "https://learn.example.com/k8s",
	})

	res, err := svc.Enroll(context.Background(), Intake{
		CourseID: course.ID, FullName: "Hoa", Email: "hoa@example.com", PaymentMethod: "bank_transfer", TransactionID: "FT123",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1500000), res.Enrollment.Amount)
	assert.Equal(t, models.PaymentPendingVerification, res.Enrollment.PaymentStatus)
	assert.Equal(t, models.EmailTypeEnrollmentPending, res.EmailType)
	assert.Equal(t, 1, courses.rows[course.ID].EnrolledCount)
	require.Len(t, tr.sent, 1)
	assert.NotContains(t, tr.sent[0].HTML, "learn.example.com")

	_, err = svc.VerifyPayment(context.Background(), res.Enrollment.ID, true)
	require.NoError(t, err)
	require.Len(t, tr.sent, 2)
	assert.Contains(t, tr.sent[1].HTML, "https://learn.example.com/k8s")
}

func TestEnrollFreeCourse(t *testing.T) {
	svc, store, courses, _ := newService()
	amount := int64(900000)
	course := courses.add(&models.Course{Title: "Free after discount", Price: 500000, IsDiscountActive: true, DiscountAmount: &amount})

	res, err := svc.Enroll(context.Background(), Intake{CourseID: course.ID, FullName: "An", Email: "an@x.io"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, res.Enrollment.Status)
	assert.Equal(t, models.PaymentPaid, res.Enrollment.PaymentStatus)
	assert.Empty(t, res.Enrollment.TransactionID)
	assert.Len(t, store.rows, 1)
}

func TestEnrollRejections(t *testing.T) {
	svc, _, courses, _ := newService()
	draft := courses.add(&models.Course{Title: "Draft", Status: models.CourseDraft})
	paid := courses.add(&models.Course{Title: "Paid", Price: 100})

	_, err := svc.Enroll(context.Background(), Intake{CourseID: uuid.New(), FullName: "X", Email: "x@x.io"})
	assert.ErrorIs(t, err, ErrCourseNotFound)
	_, err = svc.Enroll(context.Background(), Intake{CourseID: draft.ID, FullName: "X", Email: "x@x.io"})
	assert.ErrorIs(t, err, ErrCourseNotFound)
	_, err = svc.Enroll(context.Background(), Intake{CourseID: paid.ID, FullName: "X", Email: "x@x.io", PaymentMethod: "momo"})
	assert.ErrorIs(t, err, payments.ErrTransactionRequired)
}

func TestEnrollmentHandlers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	validation.RegisterGin()
	svc, _, courses, _ := newService()
	course := courses.add(&models.Course{Title: "Go", Price: 300000})
	h := NewHandler(svc, nil)
	r := gin.New()
	r.POST("/api/course-enrollments", h.Create)
	r.GET("/api/course-enrollments", h.List)
	r.PATCH("/api/course-enrollments/:id", h.Update)
	r.DELETE("/api/course-enrollments/:id", h.Delete)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/course-enrollments", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := post(`{"course_id":"` + course.ID.String() + `","full_name":"Lam","email":"lam@x.io"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, "paid course needs a payment method")

	w = post(`{"course_id":"` + course.ID.String() + `","full_name":"Lam","email":"lam@x.io","payment_method":"momo","transaction_id":"MM1"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var env struct {
		Data Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	id := env.Data.Enrollment.ID

	req := httptest.NewRequest(http.MethodPatch, "/api/course-enrollments/"+id.String(), strings.NewReader(`{"status":"confirmed"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	got, err := svc.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentPaid, got.PaymentStatus, "confirming marks the enrollment paid")

	req = httptest.NewRequest(http.MethodGet, "/api/course-enrollments?course_id=nope", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/course-enrollments/"+id.String(), nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, courses.rows[course.ID].EnrolledCount)
}
