package news

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

	"github.com/communityhub/backend/internal/middleware"
	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/response"
	"github.com/communityhub/backend/pkg/validation"
)

// Store is the news persistence used by the handler.
type Store interface {
	Create(ctx context.Context, n *models.News) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.News, error)
	GetBySlug(ctx context.Context, slug string) (*models.News, error)
	List(ctx context.Context, f ListFilter) ([]*models.News, error)
	Update(ctx context.Context, n *models.News) error
	IncrementViews(ctx context.Context, id uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ArticleRequest is the body for POST and PUT /api/admin/news.
type ArticleRequest struct {
	Title    string `json:"title" binding:"required,notblank,max=300"`
	Slug     string `json:"slug" binding:"max=300"`
	Summary  string `json:"summary" binding:"max=1000"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url" binding:"omitempty,url"`
	Category string `json:"category" binding:"omitempty,oneof=news blog"`
	Author   string `json:"author" binding:"max=200"`
	Status   string `json:"status" binding:"omitempty,oneof=draft published"`
}

// Handler handles news and blog endpoints.
type Handler struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates a news handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, now: time.Now, logger: logger}
}

// apply copies the request onto n. The first transition to published stamps published_at.
func (h *Handler) apply(c *gin.Context, req *ArticleRequest, n *models.News) {
	n.Title = strings.TrimSpace(req.Title)
	n.Slug = slug.Make(req.Slug)
	if n.Slug == "" {
		n.Slug = slug.Make(n.Title)
	}
	n.Summary = req.Summary
	n.Content = req.Content
	n.ImageURL = req.ImageURL
	n.Category = models.CategoryNews
	if req.Category != "" {
		n.Category = models.NewsCategory(req.Category)
	}
	n.Author = strings.TrimSpace(req.Author)
	if n.Author == "" && n.ID == uuid.Nil {
		n.Author = middleware.CurrentIdentity(c).Email
	}
	n.Status = models.PublishDraft
	if req.Status != "" {
		n.Status = models.PublishStatus(req.Status)
	}
	if n.Status == models.PublishPublished && n.PublishedAt == nil {
		now := h.now().UTC()
		n.PublishedAt = &now
	}
}

func (h *Handler) list(c *gin.Context, status string) {
	f := ListFilter{Status: status, Category: c.Query("category"), Search: c.Query("search")}
	if f.Category != "" && !models.NewsCategory(f.Category).Valid() {
		response.BadRequest(c, "invalid category filter")
		return
	}
	f.Limit, _ = strconv.Atoi(c.Query("limit"))
	f.Offset, _ = strconv.Atoi(c.Query("offset"))
	list, err := h.store.List(c.Request.Context(), f)
	if err != nil {
		h.logger.Error("list news", zap.Error(err))
		response.Internal(c, "failed to list news")
		return
	}
	if status == string(models.PublishPublished) {
		for _, n := range list {
			n.Content = ""
		}
	}
	response.OK(c, list)
}

// List handles GET /api/news: published articles only, without bodies. Query: category, search.
func (h *Handler) List(c *gin.Context) {
	h.list(c, string(models.PublishPublished))
}

// AdminList handles GET /api/admin/news. Query: status, category, search.
func (h *Handler) AdminList(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !models.PublishStatus(status).Valid() {
		response.BadRequest(c, "invalid status filter")
		return
	}
	h.list(c, status)
}

// Get handles GET /api/news/:slug and counts the view.
func (h *Handler) Get(c *gin.Context) {
	n, err := h.store.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		h.writeError(c, err, "failed to load article")
		return
	}
	if n.Status != models.PublishPublished {
		response.NotFound(c, "article not found")
		return
	}
	views, err := h.store.IncrementViews(c.Request.Context(), n.ID)
	if err != nil {
		h.logger.Warn("increment news views", zap.String("news_id", n.ID.String()), zap.Error(err))
	} else {
		n.Views = views
	}
	response.OK(c, n)
}

// AdminGet handles GET /api/admin/news/:id.
func (h *Handler) AdminGet(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	n, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to load article")
		return
	}
	response.OK(c, n)
}

// Create handles POST /api/admin/news.
func (h *Handler) Create(c *gin.Context) {
	var req ArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	n := &models.News{}
	h.apply(c, &req, n)
	if err := h.store.Create(c.Request.Context(), n); err != nil {
		h.writeError(c, err, "failed to create article")
		return
	}
	h.logger.Info("news created", zap.String("news_id", n.ID.String()), zap.String("status", string(n.Status)))
	response.Created(c, n)
}

// Update handles PUT /api/admin/news/:id.
func (h *Handler) Update(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	var req ArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	n, err := h.store.GetByID(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err, "failed to load article")
		return
	}
	author := n.Author
	h.apply(c, &req, n)
	if n.Author == "" {
		n.Author = author
	}
	if err := h.store.Update(c.Request.Context(), n); err != nil {
		h.writeError(c, err, "failed to update article")
		return
	}
	response.OK(c, n)
}

// Delete handles DELETE /api/admin/news/:id.
func (h *Handler) Delete(c *gin.Context) {
	id, ok := articleID(c)
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), id); err != nil {
		h.writeError(c, err, "failed to delete article")
		return
	}
	response.NoContent(c)
}

func articleID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid article id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, database.ErrNotFound):
		response.NotFound(c, "article not found")
	case errors.Is(err, database.ErrDuplicate):
		response.Conflict(c, "an article with this slug already exists")
	default:
		h.logger.Error(msg, zap.Error(err))
		response.Internal(c, msg)
	}
}
