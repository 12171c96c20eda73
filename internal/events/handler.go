package events

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/zap"

	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/response"
	"github.com/communityhub/backend/pkg/validation"
)

// Store is the event persistence used by the handler.
type Store interface {
	Create(ctx context.Context, e *models.Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	GetBySlug(ctx context.Context, slug string) (*models.Event, error)
	List(ctx context.Context, f ListFilter, now time.Time) ([]*models.Event, error)
	Update(ctx context.Context, e *models.Event) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.EventStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// EventRequest is the body for POST and PUT /api/events.
type EventRequest struct {
	Title       string  `json:"title" binding:"required,notblank,max=200"`
	Description string  `json:"description"`
	StartsAt    string  `json:"starts_at" binding:"required"`
	EndsAt      *string `json:"ends_at"`
	Location    string  `json:"location"`
	Capacity    int     `json:"capacity" binding:"gte=0"`
	Price       int64   `json:"price" binding:"gte=0"`
	OnlineLink  string  `json:"online_link" binding:"omitempty,url"`
	ImageURL    string  `json:"image_url" binding:"omitempty,url"`
	Status      string  `json:"status"`
}

// StatusRequest is the body for PATCH /api/events/:id/status.
type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// Handler handles event HTTP endpoints.
type Handler struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates an event handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, now: time.Now, logger: logger}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(s))
}

func (req *EventRequest) apply(e *models.Event) string {
	startsAt, err := parseTime(req.StartsAt)
	if err != nil {
		return "starts_at must be an RFC3339 timestamp"
	}
	var endsAt *time.Time
	if req.EndsAt != nil && *req.EndsAt != "" {
		t, err := parseTime(*req.EndsAt)
		if err != nil {
			return "ends_at must be an RFC3339 timestamp"
		}
		if t.Before(startsAt) {
			return "ends_at must not be before starts_at"
		}
		endsAt = &t
	}
	status := models.EventUpcoming
	if req.Status != "" {
		status = models.EventStatus(req.Status)
		if !status.Valid() {
			return "status must be one of upcoming, past, cancelled"
		}
	}
	e.Title = strings.TrimSpace(req.Title)
	e.Slug = slug.Make(e.Title)
	e.Description = req.Description
	e.StartsAt = startsAt
	e.EndsAt = endsAt
	e.Location = req.Location
	e.Capacity = req.Capacity
	e.Price = req.Price
	e.OnlineLink = req.OnlineLink
	e.ImageURL = req.ImageURL
	e.Status = status
	return ""
}

func (h *Handler) present(e *models.Event) *models.Event {
	e.Status = e.EffectiveStatus(h.now())
	return e
}

// List handles GET /api/events. Query: status, search, limit, offset.
func (h *Handler) List(c *gin.Context) {
	f := ListFilter{Status: c.Query("status"), Search: c.Query("search")}
	if f.Status != "" && !models.EventStatus(f.Status).Valid() {
		response.BadRequest(c, "invalid status filter")
		return
	}
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))
	list, err := h.store.List(c.Request.Context(), f, h.now())
	if err != nil {
		h.logger.Error("list events", zap.Error(err))
		response.Internal(c, "failed to list events")
		return
	}
	for _, e := range list {
		h.present(e)
	}
	response.OK(c, list)
}

// Get handles GET /api/events/:id, accepting an id or a slug.
func (h *Handler) Get(c *gin.Context) {
	key := c.Param("id")
	var (
		e   *models.Event
		err error
	)
	if id, perr := uuid.Parse(key); perr == nil {
		e, err = h.store.GetByID(c.Request.Context(), id)
	} else {
		e, err = h.store.GetBySlug(c.Request.Context(), key)
	}
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("get event", zap.String("key", key), zap.Error(err))
		response.Internal(c, "failed to load event")
		return
	}
	response.OK(c, h.present(e))
}

// Create handles POST /api/events.
func (h *Handler) Create(c *gin.Context) {
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	e := &models.Event{}
	if msg := req.apply(e); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	if err := h.store.Create(c.Request.Context(), e); err != nil {
		h.logger.Error("create event", zap.Error(err))
		response.Internal(c, "failed to create event")
		return
	}
	h.logger.Info("event created", zap.String("event_id", e.ID.String()))
	response.Created(c, h.present(e))
}

// Update handles PUT /api/events/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	e, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		response.Internal(c, "failed to load event")
		return
	}
	if msg := req.apply(e); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	if e.Capacity > 0 && e.Registrations > e.Capacity {
		response.Conflict(c, "capacity is below the current number of registrations")
		return
	}
	if err := h.store.Update(c.Request.Context(), e); err != nil {
		h.logger.Error("update event", zap.String("event_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to update event")
		return
	}
	response.OK(c, h.present(e))
}

// SetStatus handles PATCH /api/events/:id/status.
func (h *Handler) SetStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	status := models.EventStatus(req.Status)
	if !status.Valid() {
		response.BadRequest(c, "status must be one of upcoming, past, cancelled")
		return
	}
	if err := h.store.UpdateStatus(c.Request.Context(), id, status); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("update event status", zap.String("event_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to update status")
		return
	}
	response.OK(c, gin.H{"id": id, "status": status})
}

// Delete handles DELETE /api/events/:id. Registrations of the event are left in place.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "event not found")
			return
		}
		h.logger.Error("delete event", zap.String("event_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to delete event")
		return
	}
	h.logger.Info("event deleted", zap.String("event_id", id.String()))
	response.NoContent(c)
}
