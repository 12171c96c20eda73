// Package mailer renders notification emails, delivers them over SMTP and records
// every attempt in email_logs.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communityhub/backend/internal/models"
)

var (
	ErrUnknownTemplate = errors.New("unknown email template")
	ErrNotConfigured   = errors.New("smtp is not configured")
)

// SMTPConfig is the resolved delivery configuration for one send.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// Envelope is a rendered message ready for delivery.
type Envelope struct {
	To      string
	Subject string
	HTML    string
}

// Transport delivers an envelope.
type Transport interface {
	Send(ctx context.Context, cfg SMTPConfig, env Envelope) error
}

// LogStore persists email_logs rows.
type LogStore interface {
	Create(ctx context.Context, l *models.EmailLog) error
	MarkResult(ctx context.Context, id uuid.UUID, status, errMsg string, sentAt *time.Time) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error)
}

// SettingsReader returns dashboard-managed settings by key.
type SettingsReader interface {
	Values(ctx context.Context, keys ...string) (map[string]string, error)
}

// Message is a notification to render and send.
type Message struct {
	Type       string
	To         string
	Data       TemplateData
	EntityKind string
	EntityID   uuid.UUID
}

// Service sends notification emails.
type Service struct {
	transport Transport
	logs      LogStore
	settings  SettingsReader
	defaults  SMTPConfig
	siteName  string
	logger    *zap.Logger
}

// NewService creates a mailer. logs and settings may be nil.
func NewService(transport Transport, logs LogStore, settings SettingsReader, defaults SMTPConfig, siteName string, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{transport: transport, logs: logs, settings: settings, defaults: defaults, siteName: siteName, logger: logger}
}

// Send renders msg, delivers it and records the attempt. The returned error reports a
// delivery failure; the attempt is logged either way.
func (s *Service) Send(ctx context.Context, msg Message) error {
	if msg.Data.SiteName == "" {
		msg.Data.SiteName = s.siteName
	}
	subject, body, err := Render(msg.Type, msg.Data)
	if err != nil {
		return err
	}
	entry := &models.EmailLog{
		EntityKind:     msg.EntityKind,
		EmailType:      msg.Type,
		RecipientEmail: msg.To,
		Subject:        subject,
		BodyHTML:       body,
		Status:         models.EmailLogStatusPending,
	}
	if msg.EntityID != uuid.Nil {
		id := msg.EntityID
		entry.EntityID = &id
	}
	if s.logs != nil {
		if err := s.logs.Create(ctx, entry); err != nil {
			s.logger.Warn("create email log failed", zap.String("email_type", msg.Type), zap.Error(err))
		}
	}
	return s.deliver(ctx, entry)
}

// Resend delivers a previously logged email again.
func (s *Service) Resend(ctx context.Context, logID uuid.UUID) error {
	if s.logs == nil {
		return errors.New("email log store not configured")
	}
	entry, err := s.logs.GetByID(ctx, logID)
	if err != nil {
		return fmt.Errorf("load email log: %w", err)
	}
	return s.deliver(ctx, entry)
}

func (s *Service) deliver(ctx context.Context, entry *models.EmailLog) error {
	cfg := s.resolveConfig(ctx)
	var sendErr error
	if cfg.Host == "" || cfg.From == "" {
		sendErr = ErrNotConfigured
	} else {
		sendErr = s.transport.Send(ctx, cfg, Envelope{To: entry.RecipientEmail, Subject: entry.Subject, HTML: entry.BodyHTML})
	}

	status, errMsg := models.EmailLogStatusSent, ""
	var sentAt *time.Time
	if sendErr != nil {
		status, errMsg = models.EmailLogStatusFailed, sendErr.Error()
		s.logger.Error("send email failed",
			zap.String("email_type", entry.EmailType),
			zap.String("recipient", entry.RecipientEmail),
			zap.Error(sendErr))
	} else {
		now := time.Now()
		sentAt = &now
		s.logger.Info("email sent", zap.String("email_type", entry.EmailType), zap.String("recipient", entry.RecipientEmail))
	}
	if s.logs != nil && entry.ID != uuid.Nil {
		if err := s.logs.MarkResult(ctx, entry.ID, status, errMsg, sentAt); err != nil {
			s.logger.Warn("update email log failed", zap.String("email_log_id", entry.ID.String()), zap.Error(err))
		}
	}
	return sendErr
}

// resolveConfig overlays SMTP settings rows on the environment defaults.
func (s *Service) resolveConfig(ctx context.Context) SMTPConfig {
	cfg := s.defaults
	if s.settings == nil {
		return cfg
	}
	vals, err := s.settings.Values(ctx,
		models.SettingSMTPHost, models.SettingSMTPPort, models.SettingSMTPUsername,
		models.SettingSMTPPassword, models.SettingSMTPFrom)
	if err != nil {
		s.logger.Warn("load smtp settings failed, using environment", zap.Error(err))
		return cfg
	}
	if v := vals[models.SettingSMTPHost]; v != "" {
		cfg.Host = v
	}
	if v := vals[models.SettingSMTPPort]; v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			cfg.Port = p
		}
	}
	if v := vals[models.SettingSMTPUsername]; v != "" {
		cfg.Username = v
	}
	if v := vals[models.SettingSMTPPassword]; v != "" {
		cfg.Password = v
	}
	if v := vals[models.SettingSMTPFrom]; v != "" {
		cfg.From = v
	}
	return cfg
}
