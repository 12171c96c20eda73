package payments

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/response"
)

// Kinds of payable records.
const (
	KindRegistration = "registrations"
	KindEnrollment   = "enrollments"
)

// PendingItem is a claimed payment waiting for an admin decision.
type PendingItem struct {
	Kind          string    `json:"kind"`
	ID            uuid.UUID `json:"id"`
	TargetID      uuid.UUID `json:"target_id"`
	TargetTitle   string    `json:"target_title"`
	FullName      string    `json:"full_name"`
	Email         string    `json:"email"`
	Amount        int64     `json:"amount"`
	PaymentMethod string    `json:"payment_method"`
	TransactionID string    `json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Outcome is the result of a verification.
type Outcome struct {
	Record    interface{} `json:"record"`
	EmailSent bool        `json:"email_sent"`
}

// Source is a payable record store (registrations or enrollments).
type Source interface {
	PendingPayments(ctx context.Context) ([]PendingItem, error)
	VerifyPayment(ctx context.Context, id uuid.UUID, approved bool) (*Outcome, error)
}

// Handler serves the admin payment verification queue.
type Handler struct {
	sources map[string]Source
	logger  *zap.Logger
}

// NewHandler creates a payments handler over the registration and enrollment sources.
func NewHandler(registrations, enrollments Source, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		sources: map[string]Source{KindRegistration: registrations, KindEnrollment: enrollments},
		logger:  logger,
	}
}

// ListPending handles GET /api/admin/payments/pending.
func (h *Handler) ListPending(c *gin.Context) {
	var all []PendingItem
	for _, kind := range []string{KindRegistration, KindEnrollment} {
		items, err := h.sources[kind].PendingPayments(c.Request.Context())
		if err != nil {
			h.logger.Error("list pending payments", zap.String("kind", kind), zap.Error(err))
			response.Internal(c, "failed to list pending payments")
			return
		}
		all = append(all, items...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if all == nil {
		all = []PendingItem{}
	}
	response.OK(c, all)
}

// VerifyRequest is the body for POST /api/admin/payments/:kind/:id/verify.
type VerifyRequest struct {
	Approved *bool `json:"approved" binding:"required"`
}

// Verify handles POST /api/admin/payments/:kind/:id/verify.
func (h *Handler) Verify(c *gin.Context) {
	src, ok := h.sources[c.Param("kind")]
	if !ok {
		response.NotFound(c, "unknown payment kind")
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	out, err := src.VerifyPayment(c.Request.Context(), id, *req.Approved)
	if err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			response.NotFound(c, "record not found")
		case errors.Is(err, ErrNotAwaitingVerification), errors.Is(err, ErrInvalidTransition):
			response.Conflict(c, err.Error())
		default:
			h.logger.Error("verify payment", zap.String("id", id.String()), zap.Error(err))
			response.Internal(c, "failed to verify payment")
		}
		return
	}
	if !out.EmailSent && *req.Approved {
		response.OKWithWarning(c, out, "confirmation email could not be sent")
		return
	}
	response.OK(c, out)
}
