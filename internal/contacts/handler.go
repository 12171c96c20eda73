package contacts

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communityhub/backend/internal/middleware"
	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/internal/realtime"
	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/response"
	"github.com/communityhub/backend/pkg/utils"
	"github.com/communityhub/backend/pkg/validation"
)

// Store is the contact persistence used by the handler.
type Store interface {
	Create(ctx context.Context, c *models.Contact) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	List(ctx context.Context, f ListFilter) ([]*models.Contact, error)
	UpdateTriage(ctx context.Context, id uuid.UUID, status models.ContactStatus, priority models.ContactPriority) error
	AppendNote(ctx context.Context, id uuid.UUID, note models.ContactNote) ([]models.ContactNote, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Broadcaster pushes dashboard events.
type Broadcaster interface {
	Notify(event string, payload interface{})
}

// Contact types accepted by the public form.
const (
	TypeSupport     = "support"
	TypePartnership = "partnership"
)

// CreateRequest is the body for POST /api/contacts.
type CreateRequest struct {
	Name    string `json:"name" binding:"required,notblank,max=200"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone" binding:"max=30"`
	Company string `json:"company" binding:"max=200"`
	Subject string `json:"subject" binding:"max=300"`
	Message string `json:"message" binding:"required,notblank,max=5000"`
	Type    string `json:"type" binding:"omitempty,oneof=support partnership"`
}

// UpdateRequest is the body for PATCH /api/contacts/:id.
type UpdateRequest struct {
	Status   *string `json:"status"`
	Priority *string `json:"priority"`
}

// NoteRequest is the body for POST /api/contacts/:id/notes.
type NoteRequest struct {
	Text string `json:"text" binding:"required,notblank,max=5000"`
}

// Handler handles contact HTTP endpoints.
type Handler struct {
	store  Store
	notify Broadcaster
	logger *zap.Logger
}

// NewHandler creates a contacts handler.
func NewHandler(store Store, notify Broadcaster, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, notify: notify, logger: logger}
}

// Create handles POST /api/contacts.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	contact := &models.Contact{
		Name:     strings.TrimSpace(req.Name),
		Email:    utils.NormalizeEmail(req.Email),
		Phone:    strings.TrimSpace(req.Phone),
		Company:  strings.TrimSpace(req.Company),
		Subject:  strings.TrimSpace(req.Subject),
		Message:  req.Message,
		Type:     req.Type,
		Status:   models.ContactNew,
		Priority: models.PriorityMedium,
	}
	if contact.Type == "" {
		contact.Type = TypeSupport
	}
	if err := h.store.Create(c.Request.Context(), contact); err != nil {
		h.logger.Error("create contact", zap.Error(err))
		response.Internal(c, "failed to submit contact")
		return
	}
	h.logger.Info("contact created", zap.String("contact_id", contact.ID.String()), zap.String("type", contact.Type))
	h.notify.Notify(realtime.EventContactCreated, contact)
	response.Created(c, contact)
}

// List handles GET /api/contacts. Query: status, priority, search, limit, offset.
func (h *Handler) List(c *gin.Context) {
	f := ListFilter{Status: c.Query("status"), Priority: c.Query("priority"), Search: c.Query("search")}
	if f.Status != "" && !models.ContactStatus(f.Status).Valid() {
		response.BadRequest(c, "invalid status filter")
		return
	}
	if f.Priority != "" && !models.ContactPriority(f.Priority).Valid() {
		response.BadRequest(c, "invalid priority filter")
		return
	}
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "100"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))
	list, err := h.store.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list contacts", zap.Error(err))
		response.Internal(c, "failed to list contacts")
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/contacts/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}
	contact, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to load contact")
		return
	}
	response.OK(c, contact)
}

// Update handles PATCH /api/contacts/:id. Omitted fields keep their value.
func (h *Handler) Update(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	if req.Status == nil && req.Priority == nil {
		response.BadRequest(c, "status or priority is required")
		return
	}
	contact, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to load contact")
		return
	}
	if req.Status != nil {
		s := models.ContactStatus(*req.Status)
		if !s.Valid() {
			response.BadRequest(c, "status must be one of new, in_progress, in_negotiation, resolved, closed")
			return
		}
		contact.Status = s
	}
	if req.Priority != nil {
		p := models.ContactPriority(*req.Priority)
		if !p.Valid() {
			response.BadRequest(c, "priority must be one of high, medium, low")
			return
		}
		contact.Priority = p
	}
	if err := h.store.UpdateTriage(c.Request.Context(), id, contact.Status, contact.Priority); err != nil {
		h.writeError(c, err, "failed to update contact")
		return
	}
	response.OK(c, contact)
}

// AddNote handles POST /api/contacts/:id/notes. The author is the signed-in admin.
func (h *Handler) AddNote(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}
	var req NoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	note := models.ContactNote{
		Text:      strings.TrimSpace(req.Text),
		Author:    middleware.CurrentIdentity(c).Email,
		CreatedAt: time.Now().UTC(),
	}
	notes, err := h.store.AppendNote(c.Request.Context(), id, note)
	if err != nil {
		h.writeError(c, err, "failed to add note")
		return
	}
	response.Created(c, notes)
}

// Delete handles DELETE /api/contacts/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := contactID(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err, "failed to delete contact")
		return
	}
	response.NoContent(c)
}

func contactID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid contact id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	if errors.Is(err, database.ErrNotFound) {
		response.NotFound(c, "contact not found")
		return
	}
	h.logger.Error(msg, zap.Error(err))
	response.Internal(c, msg)
}
