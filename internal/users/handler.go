package users

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/response"
	"github.com/communityhub/backend/pkg/utils"
	"github.com/communityhub/backend/pkg/validation"
)

// Store is the member persistence used by the handler.
type Store interface {
	Create(ctx context.Context, m *models.Member) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Member, error)
	List(ctx context.Context, f ListFilter) ([]*models.Member, error)
	Update(ctx context.Context, m *models.Member) error
	SetStatus(ctx context.Context, id uuid.UUID, status models.MemberStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// MemberRequest is the body for POST and PUT /api/users.
type MemberRequest struct {
	FullName     string `json:"full_name" binding:"required,notblank,max=200"`
	Email        string `json:"email" binding:"required,email"`
	Phone        string `json:"phone" binding:"max=30"`
	Organization string `json:"organization" binding:"max=200"`
	Position     string `json:"position" binding:"max=200"`
	Bio          string `json:"bio" binding:"max=5000"`
	Status       string `json:"status" binding:"omitempty,oneof=active inactive"`
}

func (req *MemberRequest) apply(m *models.Member) {
	m.FullName = strings.TrimSpace(req.FullName)
	m.Email = utils.NormalizeEmail(req.Email)
	m.Phone = strings.TrimSpace(req.Phone)
	m.Organization = strings.TrimSpace(req.Organization)
	m.Position = strings.TrimSpace(req.Position)
	m.Bio = req.Bio
	if req.Status != "" {
		m.Status = models.MemberStatus(req.Status)
	}
	if m.Status == "" {
		m.Status = models.MemberActive
	}
}

// StatusRequest is the body for PATCH /api/users/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required,oneof=active inactive"`
}

// Handler handles community member endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a users handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// List handles GET /api/users. Query: status, search, limit, offset.
func (h *Handler) List(c *gin.Context) {
	f := ListFilter{Status: c.Query("status"), Search: c.Query("search")}
	if f.Status != "" && !models.MemberStatus(f.Status).Valid() {
		response.BadRequest(c, "invalid status filter")
		return
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))
	list, err := h.store.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list users", zap.Error(err))
		response.Internal(c, "failed to list users")
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/users/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := memberID(c)
	if !ok {
		return
	}
	m, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to load user")
		return
	}
	response.OK(c, m)
}

// Create handles POST /api/users.
func (h *Handler) Create(c *gin.Context) {
	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	m := &models.Member{}
	req.apply(m)
	if err := h.store.Create(c.Request.Context(), m); err != nil {
		h.writeError(c, err, "failed to create user")
		return
	}
	h.logger.Info("user created", zap.String("user_id", m.ID.String()))
	response.Created(c, m)
}

// Update handles PUT /api/users/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := memberID(c)
	if !ok {
		return
	}
	var req MemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	m, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to load user")
		return
	}
	req.apply(m)
	if err := h.store.Update(c.Request.Context(), m); err != nil {
		h.writeError(c, err, "failed to update user")
		return
	}
	response.OK(c, m)
}

// SetStatus handles PATCH /api/users/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	id, ok := memberID(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	status := models.MemberStatus(req.Status)
	if err := h.store.SetStatus(c.Request.Context(), id, status); err != nil {
		h.writeError(c, err, "failed to update user status")
		return
	}
	response.OK(c, gin.H{"id": id, "status": status})
}

// Delete handles DELETE /api/users/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := memberID(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err, "failed to delete user")
		return
	}
	response.NoContent(c)
}

func memberID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid user id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		response.NotFound(c, "user not found")
	case errors.Is(err, database.ErrDuplicate):
		response.Conflict(c, "a user with this email already exists")
	default:
		h.logger.Error(msg, zap.Error(err))
		response.Internal(c, msg)
	}
}
