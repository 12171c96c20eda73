package settings

import (
	"context"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/response"
	"github.com/communityhub/backend/pkg/utils"
	"github.com/communityhub/backend/pkg/validation"
)

// Store is the settings persistence used by the handler.
type Store interface {
	Values(ctx context.Context, keys ...string) (map[string]string, error)
	List(ctx context.Context) ([]*models.Setting, error)
	BulkUpsert(ctx context.Context, list []*models.Setting) error
}

var keyPattern = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// IsSecretKey reports whether a key holds a credential that must never be returned in clear.
func IsSecretKey(key string) bool {
	return key == models.SettingSMTPPassword ||
		strings.HasSuffix(key, "_password") ||
		strings.HasSuffix(key, "_secret") ||
		strings.HasSuffix(key, "_api_key")
}

// Entry is one key/value pair of a bulk update.
type Entry struct {
	Key   string `json:"key" binding:"required,max=64"`
	Value string `json:"value" binding:"max=2000"`
}

// UpdateRequest is the body for PUT /api/admin/settings.
type UpdateRequest struct {
	Settings []Entry `json:"settings" binding:"required,min=1,max=100,dive"`
}

// Handler handles settings endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a settings handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

func masked(list []*models.Setting) []*models.Setting {
	for _, s := range list {
		if s.IsSecret {
			s.Value = utils.MaskSecret(s.Value)
		}
	}
	return list
}

// List handles GET /api/admin/settings.
func (h *Handler) List(c *gin.Context) {
	list, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list settings", zap.Error(err))
		response.Internal(c, "failed to list settings")
		return
	}
	response.OK(c, masked(list))
}

// Update handles PUT /api/admin/settings. A secret sent back in its masked form is
// left unchanged, so the dashboard can round-trip the list it was given.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	ctx := c.Request.Context()

	var secretKeys []string
	for _, e := range req.Settings {
		if !keyPattern.MatchString(e.Key) {
			response.BadRequest(c, "invalid setting key: "+e.Key)
			return
		}
		if IsSecretKey(e.Key) {
			secretKeys = append(secretKeys, e.Key)
		}
	}
	current := map[string]string{}
	if len(secretKeys) > 0 {
		var err error
		if current, err = h.store.Values(ctx, secretKeys...); err != nil {
			h.logger.Error("read secret settings", zap.Error(err))
			response.Internal(c, "failed to update settings")
			return
		}
	}

	batch := make([]*models.Setting, 0, len(req.Settings))
	for _, e := range req.Settings {
		secret := IsSecretKey(e.Key)
		if old, ok := current[e.Key]; secret && ok && old != "" && e.Value == utils.MaskSecret(old) {
			continue
		}
		batch = append(batch, &models.Setting{Key: e.Key, Value: strings.TrimSpace(e.Value), IsSecret: secret})
	}
	if err := h.store.BulkUpsert(ctx, batch); err != nil {
		h.logger.Error("upsert settings", zap.Error(err))
		response.Internal(c, "failed to update settings")
		return
	}
	h.logger.Info("settings updated", zap.Int("count", len(batch)))

	list, err := h.store.List(ctx)
	if err != nil {
		h.logger.Error("list settings", zap.Error(err))
		response.Internal(c, "failed to list settings")
		return
	}
	response.OK(c, masked(list))
}
