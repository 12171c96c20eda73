// Package stats serves the admin dashboard totals.
package stats

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/communityhub/backend/pkg/response"
)

// Source computes a Summary.
type Source interface {
	Summary(ctx context.Context, now time.Time) (*Summary, error)
}

// Breakdown is a total with per-status counts.
type Breakdown struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"by_status,omitempty"`
	ByPaymentStatus map[string]int `json:"by_payment_status,omitempty"`
}

// Summary is the JSON shape of GET /api/stats. Money is in VND.
type Summary struct {
	Events        Breakdown `json:"events"`
	Registrations Breakdown `json:"registrations"`
	Enrollments   Breakdown `json:"enrollments"`
	Courses       struct {
		Total     int `json:"total"`
		Published int `json:"published"`
		Draft     int `json:"draft"`
	} `json:"courses"`
	Contacts struct {
		Total int `json:"total"`
		New   int `json:"new"`
	} `json:"contacts"`
	Users struct {
		Total  int `json:"total"`
		Active int `json:"active"`
	} `json:"users"`
	Revenue struct {
		Registrations int64 `json:"registrations"`
		Enrollments   int64 `json:"enrollments"`
		Total         int64 `json:"total"`
	} `json:"revenue"`
	PendingVerification int      `json:"pending_verification"`
	PaidRate            *float64 `json:"paid_rate,omitempty"`
}

func sum(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}

// finish derives totals from the breakdowns.
func (s *Summary) finish() {
	s.Events.Total = sum(s.Events.ByStatus)
	s.Registrations.Total = sum(s.Registrations.ByPaymentStatus)
	s.Enrollments.Total = sum(s.Enrollments.ByPaymentStatus)
	s.Courses.Total = s.Courses.Published + s.Courses.Draft
	s.Revenue.Total = s.Revenue.Registrations + s.Revenue.Enrollments
	s.PendingVerification = s.Registrations.ByPaymentStatus["pending_verification"] +
		s.Enrollments.ByPaymentStatus["pending_verification"]
	if all := s.Registrations.Total + s.Enrollments.Total; all > 0 {
		paid := s.Registrations.ByPaymentStatus["paid"] + s.Enrollments.ByPaymentStatus["paid"]
		rate := float64(paid) / float64(all)
		s.PaidRate = &rate
	}
}

// Handler handles GET /api/stats.
type Handler struct {
	source Source
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates a stats handler.
func NewHandler(source Source, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{source: source, now: time.Now, logger: logger}
}

// Get handles GET /api/stats. Admin access is enforced by route middleware.
func (h *Handler) Get(c *gin.Context) {
	s, err := h.source.Summary(c.Request.Context(), h.now())
	if err != nil {
		h.logger.Error("load stats", zap.Error(err))
		response.Internal(c, "failed to load stats")
		return
	}
	response.OK(c, s)
}
