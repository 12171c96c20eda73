package videos

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/response"
	"github.com/communityhub/backend/pkg/validation"
	"github.com/communityhub/backend/pkg/youtube"
)

// AccessRequest is the body for POST /api/videos/:id/access.
type AccessRequest struct {
	Email    string `json:"email" binding:"required,email"`
	ViewerID string `json:"viewer_id" binding:"max=100"`
}

// TokenRequest is the body for POST /api/videos/validate.
type TokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// TrackRequest is the body for POST /api/videos/track.
type TrackRequest struct {
	Token                string  `json:"token" binding:"required"`
	ViewDuration         int     `json:"viewDuration" binding:"gte=0"`
	CompletionPercentage float64 `json:"completionPercentage" binding:"gte=0,lte=100"`
}

// VideoRequest is the body for POST and PUT /api/admin/videos.
type VideoRequest struct {
	CourseID        string `json:"course_id" binding:"required,uuid"`
	Title           string `json:"title" binding:"max=300"`
	Description     string `json:"description"`
	YouTube         string `json:"youtube" binding:"required"`
	DurationSeconds int    `json:"duration_seconds" binding:"gte=0"`
	Position        int    `json:"position" binding:"gte=0"`
	IsPreview       bool   `json:"is_preview"`
}

func (r *VideoRequest) input() VideoInput {
	return VideoInput{
		CourseID:        uuid.MustParse(r.CourseID),
		Title:           r.Title,
		Description:     r.Description,
		YouTube:         r.YouTube,
		DurationSeconds: r.DurationSeconds,
		Position:        r.Position,
		IsPreview:       r.IsPreview,
	}
}

// Handler handles course video endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a videos handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

func parseID(c *gin.Context, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid "+what+" id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, ErrVideoNotFound), errors.Is(err, database.ErrNotFound):
		response.NotFound(c, ErrVideoNotFound.Error())
	case errors.Is(err, ErrCourseNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrAccessDenied), errors.Is(err, ErrViewLimitReached), errors.Is(err, ErrIPMismatch):
		response.Forbidden(c, err.Error())
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		response.Unauthorized(c, err.Error())
	case errors.Is(err, database.ErrMissingReference):
		response.BadRequest(c, "course does not exist")
	case errors.Is(err, youtube.ErrInvalidVideoID):
		response.BadRequest(c, "youtube must be a YouTube URL or video id")
	default:
		h.logger.Error(msg, zap.Error(err))
		response.Internal(c, msg)
	}
}

// ListByCourse handles GET /api/courses/:id/videos.
func (h *Handler) ListByCourse(c *gin.Context) {
	h.listByCourse(c, false)
}

// AdminListByCourse handles GET /api/admin/courses/:id/videos.
func (h *Handler) AdminListByCourse(c *gin.Context) {
	h.listByCourse(c, true)
}

func (h *Handler) listByCourse(c *gin.Context, full bool) {
	courseID, ok := parseID(c, "course")
	if !ok {
		return
	}
	list, err := h.svc.List(c.Request.Context(), courseID, full)
	if err != nil {
		h.writeError(c, err, "failed to list videos")
		return
	}
	response.OK(c, list)
}

// Access handles POST /api/videos/:id/access.
func (h *Handler) Access(c *gin.Context) {
	id, ok := parseID(c, "video")
	if !ok {
		return
	}
	var req AccessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	grant, err := h.svc.GrantAccess(c.Request.Context(), id, req.Email, req.ViewerID, c.ClientIP())
	if err != nil {
		h.writeError(c, err, "failed to grant video access")
		return
	}
	response.Created(c, grant)
}

// Validate handles POST /api/videos/validate.
func (h *Handler) Validate(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	acc, err := h.svc.Validate(c.Request.Context(), req.Token, c.ClientIP())
	if err != nil {
		h.writeError(c, err, "failed to validate token")
		return
	}
	response.OK(c, acc)
}

// Track handles POST /api/videos/track.
func (h *Handler) Track(c *gin.Context) {
	var req TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	acc, err := h.svc.Track(c.Request.Context(), TrackInput{
		Token:                req.Token,
		ViewDuration:         req.ViewDuration,
		CompletionPercentage: req.CompletionPercentage,
		IP:                   c.ClientIP(),
		UserAgent:            c.Request.UserAgent(),
	})
	if err != nil {
		h.writeError(c, err, "failed to track view")
		return
	}
	response.OK(c, acc)
}

// Views handles GET /api/videos/:id/views. Query: limit.
func (h *Handler) Views(c *gin.Context) {
	id, ok := parseID(c, "video")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	report, err := h.svc.Views(c.Request.Context(), id, limit)
	if err != nil {
		h.writeError(c, err, "failed to load video views")
		return
	}
	response.OK(c, report)
}

// Get handles GET /api/admin/videos/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c, "video")
	if !ok {
		return
	}
	v, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to load video")
		return
	}
	response.OK(c, v)
}

// Create handles POST /api/admin/videos.
func (h *Handler) Create(c *gin.Context) {
	var req VideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	v, warning, err := h.svc.Save(c.Request.Context(), nil, req.input())
	if err != nil {
		h.writeError(c, err, "failed to create video")
		return
	}
	if warning != "" {
		response.CreatedWithWarning(c, v, warning)
		return
	}
	response.Created(c, v)
}

// Update handles PUT /api/admin/videos/:id. The course of a video cannot change.
func (h *Handler) Update(c *gin.Context) {
	id, ok := parseID(c, "video")
	if !ok {
		return
	}
	var req VideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	existing, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to load video")
		return
	}
	v, warning, err := h.svc.Save(c.Request.Context(), existing, req.input())
	if err != nil {
		h.writeError(c, err, "failed to update video")
		return
	}
	if warning != "" {
		response.OKWithWarning(c, v, warning)
		return
	}
	response.OK(c, v)
}

// Delete handles DELETE /api/admin/videos/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c, "video")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err, "failed to delete video")
		return
	}
	response.NoContent(c)
}
