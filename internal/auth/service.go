package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communityhub/backend/internal/middleware"
	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrLoginLocked        = errors.New("too many failed login attempts, try again later")
	ErrSessionRevoked     = errors.New("session revoked")
	ErrSessionNotFound    = errors.New("session not found")
	ErrWrongPassword      = errors.New("current password is incorrect")
	ErrWeakPassword       = fmt.Errorf("new password must be at least %d characters", utils.MinPasswordLength)
)

// AdminStore persists admins.
type AdminStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Admin, error)
	GetByEmail(ctx context.Context, email string) (*models.Admin, error)
	Count(ctx context.Context) (int, error)
	Create(ctx context.Context, email, passwordHash, fullName string, role models.Role) (*models.Admin, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	TouchLogin(ctx context.Context, id uuid.UUID) error
}

// SessionStore tracks live admin sessions.
type SessionStore interface {
	Create(ctx context.Context, s Session) error
	Exists(ctx context.Context, id string) (bool, error)
	List(ctx context.Context, adminID uuid.UUID) ([]Session, error)
	Revoke(ctx context.Context, adminID uuid.UUID, id string) (bool, error)
	RevokeAllExcept(ctx context.Context, adminID uuid.UUID, keep string) (int, error)
}

// Throttle limits failed logins per email.
type Throttle interface {
	Locked(ctx context.Context, email string) (bool, error)
	Fail(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}

// Service implements admin login, session and password operations.
type Service struct {
	admins   AdminStore
	jwt      *JWTService
	sessions SessionStore
	throttle Throttle
	logger   *zap.Logger
}

// NewService creates an auth service.
func NewService(admins AdminStore, jwt *JWTService, sessions SessionStore, throttle Throttle, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{admins: admins, jwt: jwt, sessions: sessions, throttle: throttle, logger: logger}
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
	Admin     models.AdminPublic `json:"admin"`
}

// Login checks credentials, issues a token and opens a session.
func (s *Service) Login(ctx context.Context, email, password, ip, userAgent string) (*LoginResult, error) {
	email = utils.NormalizeEmail(email)
	locked, err := s.throttle.Locked(ctx, email)
	if err != nil {
		s.logger.Warn("login throttle unavailable", zap.Error(err))
	}
	if locked {
		return nil, ErrLoginLocked
	}

	admin, err := s.admins.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("load admin: %w", err)
	}
	if admin == nil || !utils.CheckPassword(password, admin.Password) {
		if ferr := s.throttle.Fail(ctx, email); ferr != nil {
			s.logger.Warn("record login failure", zap.Error(ferr))
		}
		return nil, ErrInvalidCredentials
	}
	_ = s.throttle.Reset(ctx, email)

	token, claims, err := s.jwt.Generate(admin.ID, admin.Email, string(admin.Role))
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}
	sess := Session{
		ID:        claims.ID,
		AdminID:   admin.ID,
		IP:        ip,
		UserAgent: userAgent,
		CreatedAt: claims.IssuedAt.Time,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := s.admins.TouchLogin(ctx, admin.ID); err != nil {
		s.logger.Warn("touch last login", zap.String("admin_id", admin.ID.String()), zap.Error(err))
	}
	now := time.Now()
	admin.LastLoginAt = &now
	s.logger.Info("admin logged in", zap.String("admin_id", admin.ID.String()), zap.String("ip", ip))
	return &LoginResult{Token: token, ExpiresAt: sess.ExpiresAt, Admin: admin.ToPublic()}, nil
}

// Authenticate validates a token and its session. It satisfies middleware.Authenticator.
func (s *Service) Authenticate(ctx context.Context, token string) (*middleware.Identity, error) {
	claims, err := s.jwt.Validate(token)
	if err != nil {
		return nil, err
	}
	ok, err := s.sessions.Exists(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if !ok {
		return nil, ErrSessionRevoked
	}
	return &middleware.Identity{AdminID: claims.AdminID, Email: claims.Email, Role: claims.Role, SessionID: claims.ID}, nil
}

// Me returns the admin behind an identity.
func (s *Service) Me(ctx context.Context, id middleware.Identity) (*models.Admin, error) {
	return s.admins.GetByID(ctx, id.AdminID)
}

// Logout revokes the current session.
func (s *Service) Logout(ctx context.Context, id middleware.Identity) error {
	_, err := s.sessions.Revoke(ctx, id.AdminID, id.SessionID)
	return err
}

// Sessions lists the admin's sessions and marks the current one.
func (s *Service) Sessions(ctx context.Context, id middleware.Identity) ([]Session, error) {
	list, err := s.sessions.List(ctx, id.AdminID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		list[i].Current = list[i].ID == id.SessionID
	}
	return list, nil
}

// RevokeSession revokes one of the admin's own sessions.
func (s *Service) RevokeSession(ctx context.Context, id middleware.Identity, sessionID string) error {
	ok, err := s.sessions.Revoke(ctx, id.AdminID, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

// ChangePassword verifies the current password, stores the new one and signs out
// every other session. It returns the number of revoked sessions.
func (s *Service) ChangePassword(ctx context.Context, id middleware.Identity, current, next string) (int, error) {
	if len(next) < utils.MinPasswordLength {
		return 0, ErrWeakPassword
	}
	admin, err := s.admins.GetByID(ctx, id.AdminID)
	if err != nil {
		return 0, err
	}
	if !utils.CheckPassword(current, admin.Password) {
		return 0, ErrWrongPassword
	}
	hash, err := utils.HashPassword(next)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	if err := s.admins.UpdatePassword(ctx, admin.ID, hash); err != nil {
		return 0, fmt.Errorf("update password: %w", err)
	}
	n, err := s.sessions.RevokeAllExcept(ctx, admin.ID, id.SessionID)
	if err != nil {
		return n, fmt.Errorf("revoke sessions: %w", err)
	}
	s.logger.Info("admin password changed", zap.String("admin_id", admin.ID.String()), zap.Int("revoked_sessions", n))
	return n, nil
}

// Bootstrap creates the first admin when the table is empty and credentials are configured.
func (s *Service) Bootstrap(ctx context.Context, email, password, fullName string) error {
	email = utils.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil
	}
	n, err := s.admins.Count(ctx)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if n > 0 {
		return nil
	}
	if len(password) < utils.MinPasswordLength {
		return ErrWeakPassword
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	if strings.TrimSpace(fullName) == "" {
		fullName = "Administrator"
	}
	admin, err := s.admins.Create(ctx, email, hash, fullName, models.RoleAdmin)
	if err != nil {
		return fmt.Errorf("create bootstrap admin: %w", err)
	}
	s.logger.Info("bootstrap admin created", zap.String("email", admin.Email))
	return nil
}
