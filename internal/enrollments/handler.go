package enrollments

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

// CreateRequest is the body for POST /api/course-enrollments.
type CreateRequest struct {
	CourseID      string `json:"course_id" binding:"required,uuid"`
	FullName      string `json:"full_name" binding:"required,notblank,max=200"`
	Email         string `json:"email" binding:"required,email"`
	Phone         string `json:"phone" binding:"max=30"`
	Note          string `json:"note" binding:"max=2000"`
	PaymentMethod string `json:"payment_method" binding:"omitempty,payment_method"`
	TransactionID string `json:"transaction_id" binding:"max=100"`
}

// UpdateRequest is the body for PATCH /api/course-enrollments/:id.
type UpdateRequest struct {
	Status        *string `json:"status"`
	PaymentStatus *string `json:"payment_status"`
}

func (r UpdateRequest) change() payments.Change {
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

// Handler handles enrollment HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Create handles POST /api/course-enrollments.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.Enroll(c.Request.Context(), Intake{
		CourseID:      uuid.MustParse(req.CourseID),
		FullName:      req.FullName,
		Email:         req.Email,
		Phone:         req.Phone,
		Note:          req.Note,
		PaymentMethod: req.PaymentMethod,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrCourseNotFound):
			response.NotFound(c, err.Error())
		case payments.IsBadInput(err):
			response.BadRequest(c, err.Error())
		default:
			h.logger.Error("create enrollment", zap.String("course_id", req.CourseID), zap.Error(err))
			response.Internal(c, "failed to enroll")
		}
		return
	}
	if !res.EmailSent {
		response.CreatedWithWarning(c, res, "enrollment saved but the email could not be sent")
		return
	}
	response.Created(c, res)
}

// List handles GET /api/course-enrollments. Query: course_id, status, payment_status, search, limit, offset.
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
	if v := c.Query("course_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			response.BadRequest(c, "invalid course_id")
			return
		}
		f.CourseID = &id
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))
	list, err := h.svc.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list enrollments", zap.Error(err))
		response.Internal(c, "failed to list enrollments")
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/course-enrollments/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid enrollment id")
		return
	}
	e, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to load enrollment")
		return
	}
	response.OK(c, e)
}

// Update handles PATCH /api/course-enrollments/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid enrollment id")
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.Update(c.Request.Context(), id, req.change())
	if err != nil {
		h.writeError(c, err, "failed to update enrollment")
		return
	}
	if res.EmailType != "" && !res.EmailSent {
		response.OKWithWarning(c, res, "enrollment updated but the confirmation email could not be sent")
		return
	}
	response.OK(c, res)
}

// Delete handles DELETE /api/course-enrollments/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid enrollment id")
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err, "failed to delete enrollment")
		return
	}
	response.NoContent(c)
}

func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		response.NotFound(c, "enrollment not found")
	case payments.IsBadInput(err):
		response.BadRequest(c, err.Error())
	case errors.Is(err, payments.ErrInvalidTransition):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error(msg, zap.Error(err))
		response.Internal(c, msg)
	}
}
