package emaillogs

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communityhub/backend/internal/middleware"
	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/queue"
	"github.com/communityhub/backend/pkg/response"
)

// Store is the subset of Repository used by the handler.
type Store interface {
	List(ctx context.Context, f ListFilter) ([]*models.EmailLog, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error)
}

// Enqueuer queues resend jobs for the worker.
type Enqueuer interface {
	EnqueueEmailResend(ctx context.Context, payload queue.EmailResendPayload) (string, error)
}

// Handler handles email log HTTP endpoints.
type Handler struct {
	store  Store
	queue  Enqueuer
	logger *zap.Logger
}

// NewHandler creates an email logs handler. q may be nil when Redis is unavailable.
func NewHandler(store Store, q Enqueuer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, queue: q, logger: logger}
}

// List handles GET /api/admin/emails.
func (h *Handler) List(c *gin.Context) {
	f := ListFilter{Status: c.Query("status")}
	if v := c.Query("entity_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid entity_id")
			return
		}
		f.EntityID = &id
	}
	if v := c.Query("limit"); v != "" {
		f.Limit, _ = strconv.Atoi(v)
	}
	logs, err := h.store.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list email logs", zap.Error(err))
		response.Internal(c, "failed to load email logs")
		return
	}
	response.OK(c, logs)
}

// Resend handles POST /api/admin/emails/:id/resend by queueing a worker job.
func (h *Handler) Resend(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid email log id")
		return
	}
	if _, err := h.store.GetByID(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "email log not found")
			return
		}
		response.Internal(c, "failed to load email log")
		return
	}
	if h.queue == nil {
		response.ServiceUnavailable(c, "email queue is not available")
		return
	}
	jobID, err := h.queue.EnqueueEmailResend(c.Request.Context(), queue.EmailResendPayload{
		EmailLogID:  id,
		RequestedBy: middleware.CurrentIdentity(c).Email,
	})
	if err != nil {
		h.logger.Error("enqueue email resend", zap.String("email_log_id", id.String()), zap.Error(err))
		response.ServiceUnavailable(c, "failed to queue resend")
		return
	}
	response.OK(c, gin.H{"message": "resend queued", "job_id": jobID})
}
