package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/communityhub/backend/internal/middleware"
	"github.com/communityhub/backend/pkg/response"
	"github.com/communityhub/backend/pkg/validation"
)

// LoginRequest is the body for POST /api/admin/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// ChangePasswordRequest is the body for POST /api/admin/security/password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

// Handler handles admin auth, session and security endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Login handles POST /api/admin/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	res, err := h.svc.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP(), c.Request.UserAgent())
	switch {
	case errors.Is(err, ErrLoginLocked):
		response.TooManyRequests(c, err.Error())
	case errors.Is(err, ErrInvalidCredentials):
		response.Unauthorized(c, err.Error())
	case err != nil:
		h.logger.Error("admin login", zap.Error(err))
		response.Internal(c, "failed to log in")
	default:
		response.OK(c, res)
	}
}

// Me handles GET /api/admin/auth/me.
func (h *Handler) Me(c *gin.Context) {
	admin, err := h.svc.Me(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		response.Unauthorized(c, "admin not found")
		return
	}
	response.OK(c, admin.ToPublic())
}

// Logout handles POST /api/admin/auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.svc.Logout(c.Request.Context(), middleware.CurrentIdentity(c)); err != nil {
		h.logger.Error("admin logout", zap.Error(err))
		response.Internal(c, "failed to log out")
		return
	}
	response.OK(c, gin.H{"message": "logged out"})
}

// ListSessions handles GET /api/admin/sessions.
func (h *Handler) ListSessions(c *gin.Context) {
	list, err := h.svc.Sessions(c.Request.Context(), middleware.CurrentIdentity(c))
	if err != nil {
		h.logger.Error("list sessions", zap.Error(err))
		response.Internal(c, "failed to list sessions")
		return
	}
	response.OK(c, list)
}

// RevokeSession handles DELETE /api/admin/sessions/:id.
func (h *Handler) RevokeSession(c *gin.Context) {
	err := h.svc.RevokeSession(c.Request.Context(), middleware.CurrentIdentity(c), c.Param("id"))
	switch {
	case errors.Is(err, ErrSessionNotFound):
		response.NotFound(c, err.Error())
	case err != nil:
		h.logger.Error("revoke session", zap.Error(err))
		response.Internal(c, "failed to revoke session")
	default:
		response.NoContent(c)
	}
}

// ChangePassword handles POST /api/admin/security/password.
func (h *Handler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, validation.Message(err))
		return
	}
	n, err := h.svc.ChangePassword(c.Request.Context(), middleware.CurrentIdentity(c), req.CurrentPassword, req.NewPassword)
	switch {
	case errors.Is(err, ErrWeakPassword), errors.Is(err, ErrWrongPassword):
		response.BadRequest(c, err.Error())
	case err != nil:
		h.logger.Error("change password", zap.Error(err))
		response.Internal(c, "failed to change password")
	default:
		response.OK(c, gin.H{"message": "password changed", "revoked_sessions": n})
	}
}
