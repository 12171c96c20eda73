package courses

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

// Store is the course persistence used by the handler.
type Store interface {
	Create(ctx context.Context, c *models.Course) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
	GetBySlug(ctx context.Context, slug string) (*models.Course, error)
	List(ctx context.Context, f ListFilter) ([]*models.Course, error)
	Update(ctx context.Context, c *models.Course) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// LessonRequest is one curriculum entry.
type LessonRequest struct {
	Title       string `json:"title" binding:"required,notblank,max=200"`
	Duration    string `json:"duration"`
	Description string `json:"description"`
	VideoID     string `json:"video_id" binding:"omitempty,uuid"`
	IsFree      bool   `json:"is_free"`
}

// CourseRequest is the body for POST and PUT /api/admin/courses.
type CourseRequest struct {
	Title              string          `json:"title" binding:"required,notblank,max=200"`
	Slug               string          `json:"slug" binding:"max=200"`
	Summary            string          `json:"summary" binding:"max=500"`
	Description        string          `json:"description"`
	Instructor         string          `json:"instructor" binding:"max=200"`
	ThumbnailURL       string          `json:"thumbnail_url" binding:"omitempty,url"`
	Level              string          `json:"level" binding:"max=50"`
	Duration           string          `json:"duration" binding:"max=50"`
	Price              int64           `json:"price" binding:"gte=0"`
	DiscountPercentage *float64        `json:"discount_percentage"`
	DiscountAmount     *int64          `json:"discount_amount"`
	IsDiscountActive   bool            `json:"is_discount_active"`
	DiscountStartDate  *time.Time      `json:"discount_start_date"`
	DiscountEndDate    *time.Time      `json:"discount_end_date"`
	Curriculum         []LessonRequest `json:"curriculum" binding:"dive"`
	AccessLink         string          `json:"access_link" binding:"omitempty,url"`
	Status             string          `json:"status"`
}

func (req *CourseRequest) apply(c *models.Course) error {
	status := models.CourseDraft
	if req.Status != "" {
		status = models.CourseStatus(req.Status)
		if !status.Valid() {
			return errors.New("status must be one of draft, published")
		}
	}
	c.Title = strings.TrimSpace(req.Title)
	c.Slug = slug.Make(req.Slug)
	if c.Slug == "" {
		c.Slug = slug.Make(c.Title)
	}
	c.Summary = req.Summary
	c.Description = req.Description
	c.Instructor = strings.TrimSpace(req.Instructor)
	c.ThumbnailURL = req.ThumbnailURL
	c.Level = req.Level
	c.Duration = req.Duration
	c.Price = req.Price
	c.DiscountPercentage = req.DiscountPercentage
	c.DiscountAmount = req.DiscountAmount
	c.IsDiscountActive = req.IsDiscountActive
	c.DiscountStartDate = req.DiscountStartDate
	c.DiscountEndDate = req.DiscountEndDate
	c.AccessLink = req.AccessLink
	c.Status = status
	c.Curriculum = make([]models.Lesson, 0, len(req.Curriculum))
	for _, l := range req.Curriculum {
		lesson := models.Lesson{
			Title:       strings.TrimSpace(l.Title),
			Duration:    l.Duration,
			Description: l.Description,
			IsFree:      l.IsFree,
		}
		if l.VideoID != "" {
			id := uuid.MustParse(l.VideoID)
			lesson.VideoID = &id
		}
		c.Curriculum = append(c.Curriculum, lesson)
	}
	return c.ValidateDiscount()
}

// Handler handles course HTTP endpoints.
type Handler struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates a course handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, now: time.Now, logger: logger}
}

// publicView hides the access link, which is only sent to confirmed learners.
func (h *Handler) publicView(c *models.Course) *models.Course {
	c.ApplyPricing(h.now())
	c.AccessLink = ""
	return c
}

func (h *Handler) list(c *gin.Context, f ListFilter, public bool) {
	f.Search = c.Query("search")
	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))
	list, err := h.store.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list courses", zap.Error(err))
		response.Internal(c, "failed to list courses")
		return
	}
	now := h.now()
	for _, course := range list {
		if public {
			h.publicView(course)
		} else {
			course.ApplyPricing(now)
		}
	}
	response.OK(c, list)
}

// List handles GET /api/courses: published courses only.
func (h *Handler) List(c *gin.Context) {
	h.list(c, ListFilter{Status: string(models.CoursePublished)}, true)
}

// AdminList handles GET /api/admin/courses. Query: status, search, limit, offset.
func (h *Handler) AdminList(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !models.CourseStatus(status).Valid() {
		response.BadRequest(c, "invalid status filter")
		return
	}
	h.list(c, ListFilter{Status: status}, false)
}

func (h *Handler) lookup(c *gin.Context, key string) (*models.Course, bool) {
	var (
		course *models.Course
		err    error
	)
	if id, perr := uuid.Parse(key); perr == nil {
		course, err = h.store.GetByID(c.Request.Context(), id)
	} else {
		course, err = h.store.GetBySlug(c.Request.Context(), key)
	}
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "course not found")
			return nil, false
		}
		h.logger.Error("get course", zap.String("key", key), zap.Error(err))
		response.Internal(c, "failed to load course")
		return nil, false
	}
	return course, true
}

// Get handles GET /api/courses/:id, accepting an id or a slug. Drafts are not found.
func (h *Handler) Get(c *gin.Context) {
	course, ok := h.lookup(c, c.Param("id"))
	if !ok {
		return
	}
	if course.Status != models.CoursePublished {
		response.NotFound(c, "course not found")
		return
	}
	response.OK(c, h.publicView(course))
}

// AdminGet handles GET /api/admin/courses/:id.
func (h *Handler) AdminGet(c *gin.Context) {
	course, ok := h.lookup(c, c.Param("id"))
	if !ok {
		return
	}
	course.ApplyPricing(h.now())
	response.OK(c, course)
}

// Create handles POST /api/admin/courses.
func (h *Handler) Create(c *gin.Context) {
	var req CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	course := &models.Course{}
	if err := req.apply(course); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.store.Create(c.Request.Context(), course); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			response.Conflict(c, "a course with this slug already exists")
			return
		}
		h.logger.Error("create course", zap.Error(err))
		response.Internal(c, "failed to create course")
		return
	}
	h.logger.Info("course created", zap.String("course_id", course.ID.String()), zap.String("slug", course.Slug))
	course.ApplyPricing(h.now())
	response.Created(c, course)
}

// Update handles PUT /api/admin/courses/:id.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	var req CourseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	course, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "course not found")
			return
		}
		h.logger.Error("load course", zap.String("course_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to load course")
		return
	}
	if err := req.apply(course); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.store.Update(c.Request.Context(), course); err != nil {
		switch {
		case errors.Is(err, database.ErrNotFound):
			response.NotFound(c, "course not found")
		case errors.Is(err, database.ErrDuplicate):
			response.Conflict(c, "a course with this slug already exists")
		default:
			h.logger.Error("update course", zap.String("course_id", id.String()), zap.Error(err))
			response.Internal(c, "failed to update course")
		}
		return
	}
	course.ApplyPricing(h.now())
	response.OK(c, course)
}

// Delete handles DELETE /api/admin/courses/:id. Enrollments are left in place.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid course id")
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			response.NotFound(c, "course not found")
			return
		}
		h.logger.Error("delete course", zap.String("course_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to delete course")
		return
	}
	h.logger.Info("course deleted", zap.String("course_id", id.String()))
	response.NoContent(c)
}
