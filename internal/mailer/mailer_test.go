package mailer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/communityhub/backend/internal/models"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent []Envelope
	cfgs []SMTPConfig
	err  error
}

func (f *fakeTransport) Send(ctx context.Context, cfg SMTPConfig, env Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, env)
	f.cfgs = append(f.cfgs, cfg)
	return nil
}

type memLogs struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*models.EmailLog
}

func newMemLogs() *memLogs { return &memLogs{rows: map[uuid.UUID]*models.EmailLog{}} }

func (m *memLogs) Create(ctx context.Context, l *models.EmailLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.ID = uuid.New()
	l.CreatedAt = time.Now()
	cp := *l
	m.rows[l.ID] = &cp
	return nil
}

func (m *memLogs) MarkResult(ctx context.Context, id uuid.UUID, status, errMsg string, sentAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return errors.New("missing")
	}
	r.Status, r.ErrorMessage, r.SentAt = status, errMsg, sentAt
	return nil
}

func (m *memLogs) GetByID(ctx context.Context, id uuid.UUID) (*models.EmailLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, errors.New("missing")
	}
	cp := *r
	return &cp, nil
}

func (m *memLogs) only(t *testing.T) *models.EmailLog {
	t.Helper()
	require.Len(t, m.rows, 1)
	for _, r := range m.rows {
		return r
	}
	return nil
}

type staticSettings map[string]string

func (s staticSettings) Values(ctx context.Context, keys ...string) (map[string]string, error) {
	return s, nil
}

var envDefaults = SMTPConfig{Host: "smtp.env.local", Port: 587, From: "noreply@env.local", FromName: "Community"}

func TestRenderTemplates(t *testing.T) {
	data := TemplateData{SiteName: "Hub", FullName: "Lan", Title: "Go Meetup", OnlineLink: "https://meet.example/abc", Amount: 500000, PaymentMethod: "momo", TransactionID: "ABC123"}

	subject, body, err := Render(models.EmailTypeRegistrationPending, data)
	require.NoError(t, err)
	assert.Equal(t, "Registration received: Go Meetup", subject)
	assert.Contains(t, body, "ABC123")
	assert.Contains(t, body, "500.000 ₫")
	assert.NotContains(t, body, "https://meet.example/abc")

	_, body, err = Render(models.EmailTypeRegistrationConfirm, data)
	require.NoError(t, err)
	assert.Contains(t, body, "https://meet.example/abc")

	_, body, err = Render(models.EmailTypeEnrollmentConfirm, TemplateData{Title: "Go 101", AccessLink: "https://lms.example/go101"})
	require.NoError(t, err)
	assert.Contains(t, body, "https://lms.example/go101")

	_, _, err = Render("newsletter", data)
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestRenderEscapesInput(t *testing.T) {
	_, body, err := Render(models.EmailTypeRegistrationPending, TemplateData{FullName: "<script>x</script>", Title: "T", Amount: 1})
	require.NoError(t, err)
	assert.NotContains(t, body, "<script>")
}

func TestFormatVND(t *testing.T) {
	assert.Equal(t, "0 ₫", FormatVND(0))
	assert.Equal(t, "999 ₫", FormatVND(999))
	assert.Equal(t, "500.000 ₫", FormatVND(500000))
	assert.Equal(t, "1.250.000 ₫", FormatVND(1250000))
}

func TestSendRecordsSuccess(t *testing.T) {
	tr := &fakeTransport{}
	logs := newMemLogs()
	svc := NewService(tr, logs, nil, envDefaults, "Hub", nil)
	entity := uuid.New()

	err := svc.Send(context.Background(), Message{
		Type: models.EmailTypeRegistrationConfirm, To: "lan@example.com",
		Data: TemplateData{FullName: "Lan", Title: "Go Meetup"}, EntityKind: models.EntityRegistration, EntityID: entity,
	})
	require.NoError(t, err)
	require.Len(t, tr.sent, 1)
	assert.Equal(t, "lan@example.com", tr.sent[0].To)

	row := logs.only(t)
	assert.Equal(t, models.EmailLogStatusSent, row.Status)
	assert.NotNil(t, row.SentAt)
	assert.Equal(t, entity, *row.EntityID)
}

func TestSendRecordsFailure(t *testing.T) {
	tr := &fakeTransport{err: errors.New("connection refused")}
	logs := newMemLogs()
	svc := NewService(tr, logs, nil, envDefaults, "Hub", nil)

	err := svc.Send(context.Background(), Message{Type: models.EmailTypeEnrollmentPending, To: "a@b.c", Data: TemplateData{Title: "X", Amount: 10}})
	require.Error(t, err)
	row := logs.only(t)
	assert.Equal(t, models.EmailLogStatusFailed, row.Status)
	assert.Contains(t, row.ErrorMessage, "connection refused")
}

func TestSendWithoutSMTPHost(t *testing.T) {
	tr := &fakeTransport{}
	svc := NewService(tr, nil, nil, SMTPConfig{}, "Hub", nil)
	err := svc.Send(context.Background(), Message{Type: models.EmailTypeRegistrationConfirm, To: "a@b.c"})
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Empty(t, tr.sent)
}

func TestSettingsOverrideEnvironment(t *testing.T) {
	tr := &fakeTransport{}
	settings := staticSettings{models.SettingSMTPHost: "smtp.db.local", models.SettingSMTPPort: "2525", models.SettingSMTPFrom: "hello@db.local"}
	svc := NewService(tr, nil, settings, envDefaults, "Hub", nil)

	require.NoError(t, svc.Send(context.Background(), Message{Type: models.EmailTypeRegistrationConfirm, To: "a@b.c"}))
	require.Len(t, tr.cfgs, 1)
	assert.Equal(t, "smtp.db.local", tr.cfgs[0].Host)
	assert.Equal(t, 2525, tr.cfgs[0].Port)
	assert.Equal(t, "hello@db.local", tr.cfgs[0].From)
	assert.Equal(t, "Community", tr.cfgs[0].FromName)
}

func TestResendUsesStoredBody(t *testing.T) {
	tr := &fakeTransport{err: errors.New("down")}
	logs := newMemLogs()
	svc := NewService(tr, logs, nil, envDefaults, "Hub", nil)
	require.Error(t, svc.Send(context.Background(), Message{Type: models.EmailTypeRegistrationConfirm, To: "a@b.c", Data: TemplateData{Title: "Meetup"}}))
	row := logs.only(t)

	tr.err = nil
	require.NoError(t, svc.Resend(context.Background(), row.ID))
	require.Len(t, tr.sent, 1)
	assert.Equal(t, row.Subject, tr.sent[0].Subject)
	assert.Equal(t, models.EmailLogStatusSent, logs.only(t).Status)
}
