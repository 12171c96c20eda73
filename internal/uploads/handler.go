// Package uploads issues S3 upload URLs for dashboard images.
package uploads

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/communityhub/backend/pkg/response"
	"github.com/communityhub/backend/pkg/storage"
	"github.com/communityhub/backend/pkg/validation"
)

// Storage is the media bucket. *storage.S3 implements it.
type Storage interface {
	GeneratePresignedUploadURL(ctx context.Context, key, contentType string) (string, error)
	PresignExpire() time.Duration
	PublicObjectURL(key string) string
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// PresignRequest is the body for POST /api/admin/uploads/presign.
type PresignRequest struct {
	Filename    string `json:"filename" binding:"required,max=255"`
	ContentType string `json:"content_type"`
	Folder      string `json:"folder" binding:"required"`
	FileSize    int64  `json:"file_size" binding:"gte=0"`
}

// DeleteRequest is the body for DELETE /api/admin/uploads.
type DeleteRequest struct {
	Key string `json:"key" binding:"required"`
}

// Handler handles media upload endpoints.
type Handler struct {
	store  Storage
	now    func() time.Time
	logger *zap.Logger
}

// NewHandler creates an uploads handler. store is nil when S3 is not configured.
func NewHandler(store Storage, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, now: time.Now, logger: logger}
}

func (h *Handler) available(c *gin.Context) bool {
	if h.store == nil {
		response.ServiceUnavailable(c, "media storage is not configured")
		return false
	}
	return true
}

func checkFolder(c *gin.Context, folder string) bool {
	if !storage.AllowedFolders[folder] {
		response.BadRequest(c, "folder must be one of events, news, courses, users")
		return false
	}
	return true
}

const badType = "only jpeg, png, webp and gif images are allowed"

// Presign handles POST /api/admin/uploads/presign.
func (h *Handler) Presign(c *gin.Context) {
	if !h.available(c) {
		return
	}
	var req PresignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	if !checkFolder(c, req.Folder) {
		return
	}
	if req.FileSize > storage.MaxImageSize {
		response.BadRequest(c, "file size exceeds 5MB limit")
		return
	}
	contentType := storage.ImageContentType(req.Filename, req.ContentType)
	if contentType == "" {
		response.BadRequest(c, badType)
		return
	}

	key := storage.MediaKey(req.Folder, req.Filename, h.now())
	url, err := h.store.GeneratePresignedUploadURL(c.Request.Context(), key, contentType)
	if err != nil {
		h.logger.Error("generate presigned upload URL failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "S3 upload unavailable")
		return
	}
	response.OK(c, gin.H{
		"upload_url":   url,
		"key":          key,
		"public_url":   h.store.PublicObjectURL(key),
		"content_type": contentType,
		"expires_in":   int(h.store.PresignExpire().Seconds()),
	})
}

// Upload handles POST /api/admin/uploads (multipart form: file, folder). The server
// streams the file to the bucket for clients that cannot PUT to S3 directly.
func (h *Handler) Upload(c *gin.Context) {
	if !h.available(c) {
		return
	}
	folder := c.PostForm("folder")
	if !checkFolder(c, folder) {
		return
	}
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "missing file (form field: file)")
		return
	}
	if file.Size > storage.MaxImageSize {
		response.BadRequest(c, "file size exceeds 5MB limit")
		return
	}
	contentType := storage.ImageContentType(file.Filename, file.Header.Get("Content-Type"))
	if contentType == "" {
		response.BadRequest(c, badType)
		return
	}

	rc, err := file.Open()
	if err != nil {
		h.logger.Error("open uploaded file failed", zap.Error(err))
		response.Internal(c, "failed to read file")
		return
	}
	defer rc.Close()

	key := storage.MediaKey(folder, file.Filename, h.now())
	url, err := h.store.Upload(c.Request.Context(), key, contentType, rc)
	if err != nil {
		h.logger.Error("S3 upload failed", zap.Error(err), zap.String("key", key))
		response.Internal(c, "failed to upload file to storage")
		return
	}
	response.Created(c, gin.H{
		"key":          key,
		"public_url":   url,
		"content_type": contentType,
		"file_size":    file.Size,
	})
}

// Delete handles DELETE /api/admin/uploads. Only keys under a media folder are accepted.
func (h *Handler) Delete(c *gin.Context) {
	if !h.available(c) {
		return
	}
	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	folder, _, _ := strings.Cut(req.Key, "/")
	if !storage.AllowedFolders[folder] || strings.Contains(req.Key, "..") {
		response.BadRequest(c, "invalid key")
		return
	}
	if err := h.store.DeleteObject(c.Request.Context(), req.Key); err != nil {
		h.logger.Error("S3 delete failed", zap.Error(err), zap.String("key", req.Key))
		response.Internal(c, "failed to delete file")
		return
	}
	response.NoContent(c)
}
