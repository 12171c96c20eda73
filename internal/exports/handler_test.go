package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/communityhub/backend/internal/contacts"
	"github.com/communityhub/backend/internal/enrollments"
	"github.com/communityhub/backend/internal/events"
	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/internal/registrations"
	"github.com/communityhub/backend/internal/users"
)

type regList struct{ last registrations.ListFilter }

func (l *regList) List(ctx context.Context, f registrations.ListFilter) ([]*models.Registration, error) {
	l.last = f
	confirmed := time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC)
	return []*models.Registration{{
		ID: uuid.New(), EventTitle: "Go Meetup", FullName: "Nguyen, An", Email: "an@x.io",
		Status: models.StatusConfirmed, PaymentStatus: models.PaymentPaid, PaymentMethod: "momo",
		TransactionID: "ABC123", Amount: 500000, ConfirmedAt: &confirmed, CreatedAt: confirmed,
	}}, nil
}

type enrList struct{}

func (enrList) List(ctx context.Context, f enrollments.ListFilter) ([]*models.CourseEnrollment, error) {
	return []*models.CourseEnrollment{{ID: uuid.New(), CourseTitle: "Go 101", FullName: "Binh", Email: "b@x.io"}}, nil
}

type contactList struct{}

func (contactList) List(ctx context.Context, f contacts.ListFilter) ([]*models.Contact, error) {
	return []*models.Contact{{ID: uuid.New(), Name: "Chi", Email: "c@x.io", Notes: []models.ContactNote{
		{Text: "called", Author: "admin@x.io"}, {Text: "sent deck", Author: "admin@x.io"},
	}}}, nil
}

type memberList struct{}

func (memberList) List(ctx context.Context, f users.ListFilter) ([]*models.Member, error) {
	return []*models.Member{{ID: uuid.New(), FullName: "Dung", Email: "d@x.io", Status: models.MemberActive}}, nil
}

type eventPages struct {
	total int
	calls int
}

func (e *eventPages) List(ctx context.Context, f events.ListFilter, now time.Time) ([]*models.Event, error) {
	e.calls++
	var out []*models.Event
	for i := f.Offset; i < e.total && i < f.Offset+f.Limit; i++ {
		out = append(out, &models.Event{ID: uuid.New(), Title: "Event", StartsAt: now.Add(time.Hour), Status: models.EventUpcoming})
	}
	return out, nil
}

func setup(evs *eventPages, regs *regList) *gin.Engine {
	gin.SetMode(gin.TestMode)
	loc := time.FixedZone("ICT", 7*3600)
	h := NewHandler(Sources{
		Registrations: regs,
		Enrollments:   enrList{},
		Contacts:      contactList{},
		Members:       memberList{},
		Events:        evs,
	}, loc, nil)
	h.now = func() time.Time { return time.Date(2026, 5, 2, 0, 0, 0, 0, time.UTC) }
	r := gin.New()
	r.GET("/api/admin/export/:resource", h.Export)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestExportRegistrationsCSV(t *testing.T) {
	regs := &regList{}
	r := setup(&eventPages{}, regs)
	eventID := uuid.New()

	w := get(r, "/api/admin/export/registrations?format=csv&payment_status=paid&event_id="+eventID.String())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="registrations-20260502-0700.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "paid", regs.last.PaymentStatus)
	require.NotNil(t, regs.last.EventID)
	assert.Equal(t, eventID, *regs.last.EventID)

	body := strings.TrimPrefix(w.Body.String(), "\xEF\xBB\xBF")
	rows, err := csv.NewReader(strings.NewReader(body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Event", rows[0][1])
	assert.Equal(t, "Nguyen, An", rows[1][2])
	assert.Equal(t, "500000", rows[1][10])
	assert.Equal(t, "2026-05-01 10:00", rows[1][11])
}

func TestExportContactsXLSX(t *testing.T) {
	r := setup(&eventPages{}, &regList{})
	w := get(r, "/api/admin/export/contacts")
	require.Equal(t, http.StatusOK, w.Code)

	f, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Contacts")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Chi", rows[1][1])
	assert.Contains(t, rows[1][10], "called")
	assert.Contains(t, rows[1][10], "sent deck")
}

func TestExportEventsPages(t *testing.T) {
	evs := &eventPages{total: 450}
	r := setup(evs, &regList{})
	w := get(r, "/api/admin/export/events?format=csv")
	require.Equal(t, http.StatusOK, w.Code)
	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(w.Body.String(), "\xEF\xBB\xBF"))).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 451)
	assert.Equal(t, 3, evs.calls)
}

func TestExportOtherResources(t *testing.T) {
	r := setup(&eventPages{}, &regList{})
	assert.Equal(t, http.StatusOK, get(r, "/api/admin/export/enrollments?format=csv").Code)
	assert.Equal(t, http.StatusOK, get(r, "/api/admin/export/users?format=xlsx").Code)
}

func TestExportRejects(t *testing.T) {
	r := setup(&eventPages{}, &regList{})
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/admin/export/users?format=pdf").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/api/admin/export/settings").Code)
	assert.Equal(t, http.StatusBadRequest, get(r, "/api/admin/export/registrations?event_id=nope").Code)
}
