package registrations

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/internal/payments"
	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/response"
	"github.com/communityhub/backend/pkg/validation"
)

// CreateRequest is the body for POST /api/registrations.
type CreateRequest struct {
	EventID       string `json:"event_id" binding:"required,uuid"`
	FullName      string `json:"full_name" binding:"required,notblank,max=200"`
	Email         string `json:"email" binding:"required,email"`
	Phone         string `json:"phone" binding:"max=30"`
	Organization  string `json:"organization" binding:"max=200"`
	Note          string `json:"note" binding:"max=2000"`
	PaymentMethod string `json:"payment_method" binding:"omitempty,payment_method"`
	TransactionID string `json:"transaction_id" binding:"max=100"`
}

// UpdateRequest is the body for PATCH /api/registrations/:id.
type UpdateRequest struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
}

// Change converts the request into a state machine change.
func (r UpdateRequest) Change() payments.Change {
	var ch payments.Change
	if r.Status != nil {
		s := models.RegistrationStatus(*r.Status)
		ch.Status = &s
	}
	if r.PaymentStatus != nil {
		p := models.PaymentStatus(*r.PaymentStatus)
		ch.PaymentStatus = &p
	}
	return ch
}

// Handler handles registration HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a registrations handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /api/registrations.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.Register(c.Request.Context(), Intake{
		EventID:       uuid.MustParse(req.EventID),
		FullName:      req.FullName,
		Email:         req.Email,
		Phone:         req.Phone,
		Organization:  req.Organization,
		Note:          req.Note,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEventNotFound):
			response.NotFound(c, err.Error())
		case errors.Is(err, ErrEventClosed), errors.Is(err, ErrEventFull):
			response.Conflict(c, err.Error())
		case payments.IsBadInput(err):
			response.BadRequest(c, err.Error())
		default:
			h.logger.Error("create registration", zap.String("event_id", req.EventID), zap.Error(err))
			response.Internal(c, "failed to register")
		}
		return
	}
	if !res.EmailSent {
		response.CreatedWithWarning(c, res, "registration saved but the email could not be sent")
		return
	}
	response.Created(c, res)
}

// List handles GET /api/registrations. Query: event_id, status, payment_status, search, limit, offset.
func (h *Handler) List(c *gin.Context) {
	f := ListFilter{
		Status:        c.Query("status"),
		PaymentStatus: c.Query("payment_status"),
		Search:        c.Query("search"),
	}
	if f.Status != "" && !models.RegistrationStatus(f.Status).Valid() {
		response.BadRequest(c, "invalid status filter")
		return
	}
	if f.PaymentStatus != "" && !models.PaymentStatus(f.PaymentStatus).Valid() {
		response.BadRequest(c, "invalid payment_status filter")
		return
	}
	if v := c.Query("event_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid event_id")
			return
		}
		f.EventID = &id
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))
	list, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list registrations", zap.Error(err))
		response.Internal(c, "failed to list registrations")
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/registrations/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	reg, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to load registration")
		return
	}
	response.OK(c, reg)
}

// Update handles PATCH /api/registrations/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.Update(c.Request.Context(), id, req.Change())
	if err != nil {
		h.writeError(c, err, "failed to update registration")
		return
	}
	if res.EmailType != "" && !res.EmailSent {
		response.OKWithWarning(c, res, "registration updated but the confirmation email could not be sent")
		return
	}
	response.OK(c, res)
}

// Delete handles DELETE /api/registrations/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err, "failed to delete registration")
		return
	}
	response.NoContent(c)
}

func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		response.NotFound(c, "registration not found")
	case payments.IsBadInput(err):
		response.BadRequest(c, err.Error())
	case errors.Is(err, payments.ErrInvalidTransition):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error(msg, zap.Error(err))
		response.Internal(c, msg)
	}
}
