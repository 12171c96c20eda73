// Package exports serves admin list views as CSV or XLSX downloads.
package exports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communityhub/backend/internal/contacts"
	"github.com/communityhub/backend/internal/enrollments"
	"github.com/communityhub/backend/internal/events"
	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/internal/registrations"
	"github.com/communityhub/backend/internal/users"
	"github.com/communityhub/backend/pkg/export"
	"github.com/communityhub/backend/pkg/response"
)

type RegistrationLister interface {
	List(ctx context.Context, f registrations.ListFilter) ([]*models.Registration, error)
}

type EnrollmentLister interface {
	List(ctx context.Context, f enrollments.ListFilter) ([]*models.CourseEnrollment, error)
}

type ContactLister interface {
	List(ctx context.Context, f contacts.ListFilter) ([]*models.Contact, error)
}

type MemberLister interface {
	List(ctx context.Context, f users.ListFilter) ([]*models.Member, error)
}

type EventLister interface {
	List(ctx context.Context, f events.ListFilter, now time.Time) ([]*models.Event, error)
}

// Sources are the lists that can be exported.
type Sources struct {
	Registrations RegistrationLister
	Enrollments   EnrollmentLister
	Contacts      ContactLister
	Members       MemberLister
	Events        EventLister
}

var errBadFilter = errors.New("bad filter")

const (
	timeLayout    = "2006-01-02 15:04"
	eventPageSize = 200
)

// Handler handles GET /api/admin/export/:resource.
type Handler struct {
	src    Sources
	loc    *time.Location
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates an export handler. Times are written in loc (UTC when nil).
func NewHandler(src Sources, loc *time.Location, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{src: src, loc: loc, now: time.Now, logger: logger}
}

func (h *Handler) ts(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(h.loc).Format(timeLayout)
}

func (h *Handler) tsPtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return h.ts(*t)
}

func optionalUUID(c *gin.Context, name string) (*uuid.UUID, error) {
	v := c.Query(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s", errBadFilter, name)
	}
	return &id, nil
}

// Export handles GET /api/admin/export/:resource?format=csv|xlsx. Resources: registrations,
// enrollments, contacts, users, events. The list filters of each resource apply.
func (h *Handler) Export(c *gin.Context) {
	format, err := export.ParseFormat(c.Query("format"))
	if err != nil {
		response.BadRequest(c, "format must be csv or xlsx")
		return
	}
	resource := c.Param("resource")
	build := map[string]func(*gin.Context) (export.Table, error){
		"registrations": h.registrationsTable,
		"enrollments":   h.enrollmentsTable,
		"contacts":      h.contactsTable,
		"users":         h.membersTable,
		"events":        h.eventsTable,
	}[resource]
	if build == nil {
		response.NotFound(c, "unknown export resource")
		return
	}

	table, err := build(c)
	if err != nil {
		if errors.Is(err, errBadFilter) {
			response.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("export", zap.String("resource", resource), zap.Error(err))
		response.Internal(c, "failed to export "+resource)
		return
	}
	var buf bytes.Buffer
	if err := export.Write(&buf, format, table); err != nil {
		h.logger.Error("render export", zap.String("resource", resource), zap.Error(err))
		response.Internal(c, "failed to export "+resource)
		return
	}
	filename := fmt.Sprintf("%s-%s.%s", resource, h.now().In(h.loc).Format("20060102-1504"), format)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	h.logger.Info("export generated", zap.String("resource", resource), zap.Int("rows", len(table.Rows)), zap.String("format", string(format)))
	c.Data(200, format.ContentType(), buf.Bytes())
}

func (h *Handler) registrationsTable(c *gin.Context) (export.Table, error) {
	eventID, err := optionalUUID(c, "event_id")
	if err != nil {
		return export.Table{}, err
	}
	list, err := h.src.Registrations.List(c.Request.Context(), registrations.ListFilter{
		EventID:       eventID,
		Status:        c.Query("status"),
		PaymentStatus: c.Query("payment_status"),
		Search:        c.Query("search"),
	})
	if err != nil {
		return export.Table{}, err
	}
	t := export.Table{
		Sheet: "Registrations",
		Headers: []string{"ID", "Event", "Full name", "Email", "Phone", "Organization", "Status",
			"Payment status", "Payment method", "Transaction ID", "Amount", "Confirmed at", "Created at"},
	}
	for _, r := range list {
		t.Rows = append(t.Rows, []string{r.ID.String(), r.EventTitle, r.FullName, r.Email, r.Phone, r.Organization,
			string(r.Status), string(r.PaymentStatus), r.PaymentMethod, r.TransactionID,
			strconv.FormatInt(r.Amount, 10), h.tsPtr(r.ConfirmedAt), h.ts(r.CreatedAt)})
	}
	return t, nil
}

func (h *Handler) enrollmentsTable(c *gin.Context) (export.Table, error) {
	courseID, err := optionalUUID(c, "course_id")
	if err != nil {
		return export.Table{}, err
	}
	list, err := h.src.Enrollments.List(c.Request.Context(), enrollments.ListFilter{
		CourseID:      courseID,
		Status:        c.Query("status"),
		PaymentStatus: c.Query("payment_status"),
		Search:        c.Query("search"),
	})
	if err != nil {
		return export.Table{}, err
	}
	t := export.Table{
		Sheet: "Enrollments",
		Headers: []string{"ID", "Course", "Full name", "Email", "Phone", "Status", "Payment status",
			"Payment method", "Transaction ID", "Amount", "Confirmed at", "Created at"},
	}
	for _, e := range list {
		t.Rows = append(t.Rows, []string{e.ID.String(), e.CourseTitle, e.FullName, e.Email, e.Phone,
			string(e.Status), string(e.PaymentStatus), e.PaymentMethod, e.TransactionID,
			strconv.FormatInt(e.Amount, 10), h.tsPtr(e.ConfirmedAt), h.ts(e.CreatedAt)})
	}
	return t, nil
}

func (h *Handler) contactsTable(c *gin.Context) (export.Table, error) {
	list, err := h.src.Contacts.List(c.Request.Context(), contacts.ListFilter{
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Search:   c.Query("search"),
	})
	if err != nil {
		return export.Table{}, err
	}
	t := export.Table{
		Sheet:   "Contacts",
		Headers: []string{"ID", "Name", "Email", "Phone", "Company", "Type", "Subject", "Message", "Status", "Priority", "Notes", "Created at"},
	}
	for _, ct := range list {
		notes := make([]string, 0, len(ct.Notes))
		for _, n := range ct.Notes {
			notes = append(notes, fmt.Sprintf("[%s] %s: %s", h.ts(n.CreatedAt), n.Author, n.Text))
		}
		t.Rows = append(t.Rows, []string{ct.ID.String(), ct.Name, ct.Email, ct.Phone, ct.Company, ct.Type,
			ct.Subject, ct.Message, string(ct.Status), string(ct.Priority), strings.Join(notes, "\n"), h.ts(ct.CreatedAt)})
	}
	return t, nil
}

func (h *Handler) membersTable(c *gin.Context) (export.Table, error) {
	list, err := h.src.Members.List(c.Request.Context(), users.ListFilter{
		Status: c.Query("status"),
		Search: c.Query("search"),
	})
	if err != nil {
		return export.Table{}, err
	}
	t := export.Table{
		Sheet:   "Users",
		Headers: []string{"ID", "Full name", "Email", "Phone", "Organization", "Position", "Status", "Joined at"},
	}
	for _, m := range list {
		t.Rows = append(t.Rows, []string{m.ID.String(), m.FullName, m.Email, m.Phone, m.Organization,
			m.Position, string(m.Status), h.ts(m.JoinedAt)})
	}
	return t, nil
}

// eventsTable pages through the event list, which is capped per request.
func (h *Handler) eventsTable(c *gin.Context) (export.Table, error) {
	t := export.Table{
		Sheet:   "Events",
		Headers: []string{"ID", "Title", "Starts at", "Ends at", "Location", "Capacity", "Registrations", "Price", "Status"},
	}
	now := h.now()
	for offset := 0; ; offset += eventPageSize {
		page, err := h.src.Events.List(c.Request.Context(), events.ListFilter{
			Status: c.Query("status"),
			Search: c.Query("search"),
			Limit:  eventPageSize,
			Offset: offset,
		}, now)
		if err != nil {
			return export.Table{}, err
		}
		for _, e := range page {
			t.Rows = append(t.Rows, []string{e.ID.String(), e.Title, h.ts(e.StartsAt), h.tsPtr(e.EndsAt), e.Location,
				strconv.Itoa(e.Capacity), strconv.Itoa(e.Registrations), strconv.FormatInt(e.Price, 10),
				string(e.EffectiveStatus(now))})
		}
		if len(page) < eventPageSize {
			return t, nil
		}
	}
}
