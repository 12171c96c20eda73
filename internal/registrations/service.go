package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/communityhub/backend/internal/mailer"
	"github.com/communityhub/backend/internal/models"
	"github.com/communityhub/backend/internal/payments"
	"github.com/communityhub/backend/internal/realtime"
	"github.com/communityhub/backend/pkg/database"
	"github.com/communityhub/backend/pkg/utils"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrEventClosed   = errors.New("event is not open for registration")
	ErrEventFull     = errors.New("event is full")
)

// Store persists registrations.
type Store interface {
	Create(ctx context.Context, reg *models.Registration) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Registration, error)
	List(ctx context.Context, f ListFilter) ([]*models.Registration, error)
	UpdateState(ctx context.Context, id uuid.UUID, st payments.State, confirmedAt *time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// EventStore is the part of the events repository registrations depend on.
type EventStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Event, error)
	TitlesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	RecountRegistrations(ctx context.Context, id uuid.UUID) (int, error)
}

// Sender sends notification emails.
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Broadcaster pushes dashboard events.
type Broadcaster interface {
	Notify(event string, payload interface{})
}

// Intake is a public registration submission.
type Intake struct {
	EventID       uuid.UUID
	FullName      string
	Email         string
	Phone         string
	Organization  string
	Note          string
	PaymentMethod string
	TransactionID string
}

// Result is a registration with the outcome of the email it triggered.
type Result struct {
	Registration *models.Registration `json:"registration"`
	EmailSent    bool                 `json:"email_sent"`
	EmailType    string               `json:"email_type,omitempty"`
}

// Service implements registration intake and admin management.
type Service struct {
	store  Store
	events EventStore
	mail   Sender
	notify Broadcaster
	now    func() time.Time
	logger *zap.Logger
}

// NewService creates a registrations service.
func NewService(store Store, events EventStore, mail Sender, notify Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, events: events, mail: mail, notify: notify, now: time.Now, logger: logger}
}

// Register validates an intake against its event and stores it. An email failure
// does not undo the registration; it is reported in Result.EmailSent.
func (s *Service) Register(ctx context.Context, in Intake) (*Result, error) {
	event, err := s.events.GetByID(ctx, in.EventID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("load event: %w", err)
	}
	if event.EffectiveStatus(s.now()) != models.EventUpcoming {
		return nil, ErrEventClosed
	}
	if event.IsFull() {
		return nil, ErrEventFull
	}

	state, err := payments.Intake(event.Price, in.PaymentMethod, in.TransactionID)
	if err != nil {
		return nil, err
	}
	reg := &models.Registration{
		EventID:       event.ID,
		EventTitle:    event.Title,
		FullName:      strings.TrimSpace(in.FullName),
		Email:         utils.NormalizeEmail(in.Email),
		Phone:         strings.TrimSpace(in.Phone),
		Organization:  strings.TrimSpace(in.Organization),
		Note:          in.Note,
		Status:        state.Status,
		PaymentStatus: state.PaymentStatus,
		Amount:        state.Amount,
	}
	if !event.IsFree() {
		reg.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
		reg.TransactionID = strings.TrimSpace(in.TransactionID)
	}
	if reg.Status == models.StatusConfirmed {
		now := s.now()
		reg.ConfirmedAt = &now
	}
	if err := s.store.Create(ctx, reg); err != nil {
		return nil, fmt.Errorf("create registration: %w", err)
	}
	s.recount(ctx, event.ID)
	s.logger.Info("registration created",
		zap.String("registration_id", reg.ID.String()),
		zap.String("event_id", event.ID.String()),
		zap.String("payment_status", string(reg.PaymentStatus)))

	emailType := models.EmailTypeRegistrationPending
	if reg.Status == models.StatusConfirmed {
		emailType = models.EmailTypeRegistrationConfirm
	}
	sent := s.sendEmail(ctx, emailType, reg, event)
	s.notify.Notify(realtime.EventRegistrationCreated, reg)
	return &Result{Registration: reg, EmailSent: sent, EmailType: emailType}, nil
}

// List returns registrations with event titles; orphans get a placeholder title.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*models.Registration, error) {
	list, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := s.fillTitles(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// Get returns one registration with its event title.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Registration, error) {
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.fillTitles(ctx, []*models.Registration{reg}); err != nil {
		return nil, err
	}
	return reg, nil
}

// Update applies an admin status change through the payment state machine. A transition
// into confirmed sends the confirmation email.
func (s *Service) Update(ctx context.Context, id uuid.UUID, ch payments.Change) (*Result, error) {
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := payments.State{Status: reg.Status, PaymentStatus: reg.PaymentStatus, Amount: reg.Amount}
	next, err := payments.Apply(prev, ch)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, reg, prev, next)
}

// VerifyPayment approves or rejects a claimed payment. It implements payments.Source.
func (s *Service) VerifyPayment(ctx context.Context, id uuid.UUID, approved bool) (*payments.Outcome, error) {
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := payments.State{Status: reg.Status, PaymentStatus: reg.PaymentStatus, Amount: reg.Amount}
	next, err := payments.Verify(prev, approved)
	if err != nil {
		return nil, err
	}
	res, err := s.commit(ctx, reg, prev, next)
	if err != nil {
		return nil, err
	}
	s.notify.Notify(realtime.EventPaymentVerified, map[string]interface{}{
		"kind": payments.KindRegistration, "id": reg.ID, "approved": approved,
	})
	return &payments.Outcome{Record: res.Registration, EmailSent: res.EmailSent}, nil
}

// PendingPayments lists registrations awaiting payment verification. It implements payments.Source.
func (s *Service) PendingPayments(ctx context.Context) ([]payments.PendingItem, error) {
	list, err := s.List(ctx, ListFilter{PaymentStatus: string(models.PaymentPendingVerification)})
	if err != nil {
		return nil, err
	}
	out := make([]payments.PendingItem, 0, len(list))
	for _, r := range list {
		if r.Status == models.StatusCancelled {
			continue
		}
		out = append(out, payments.PendingItem{
			Kind:          payments.KindRegistration,
			ID:            r.ID,
			TargetID:      r.EventID,
			TargetTitle:   r.EventTitle,
			FullName:      r.FullName,
			Email:         r.Email,
			Amount:        r.Amount,
			PaymentMethod: r.PaymentMethod,
			TransactionID: r.TransactionID,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out, nil
}

// Delete removes a registration and recounts its event.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	reg, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.recount(ctx, reg.EventID)
	s.notify.Notify(realtime.EventRegistrationDeleted, map[string]uuid.UUID{"id": id, "event_id": reg.EventID})
	return nil
}

func (s *Service) commit(ctx context.Context, reg *models.Registration, prev, next payments.State) (*Result, error) {
	var confirmedAt *time.Time
	if payments.BecameConfirmed(prev, next) {
		now := s.now()
		confirmedAt = &now
	}
	if err := s.store.UpdateState(ctx, reg.ID, next, confirmedAt); err != nil {
		return nil, err
	}
	reg.Status, reg.PaymentStatus = next.Status, next.PaymentStatus
	if reg.ConfirmedAt == nil {
		reg.ConfirmedAt = confirmedAt
	}
	s.recount(ctx, reg.EventID)

	event, err := s.events.GetByID(ctx, reg.EventID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		s.logger.Warn("load event for registration", zap.String("event_id", reg.EventID.String()), zap.Error(err))
	}
	if event != nil {
		reg.EventTitle = event.Title
	} else {
		reg.EventTitle = models.UnknownEventTitle
	}

	res := &Result{Registration: reg}
	if payments.BecameConfirmed(prev, next) {
		res.EmailType = models.EmailTypeRegistrationConfirm
		res.EmailSent = s.sendEmail(ctx, res.EmailType, reg, event)
	}
	s.notify.Notify(realtime.EventRegistrationUpdated, reg)
	return res, nil
}

func (s *Service) sendEmail(ctx context.Context, emailType string, reg *models.Registration, event *models.Event) bool {
	data := mailer.TemplateData{
		FullName:      reg.FullName,
		Title:         reg.EventTitle,
		Amount:        reg.Amount,
		PaymentMethod: reg.PaymentMethod,
		TransactionID: reg.TransactionID,
	}
	if event != nil {
		data.Title = event.Title
		data.StartsAt = event.StartsAt.Format("02/01/2006 15:04")
		data.Location = event.Location
		if emailType == models.EmailTypeRegistrationConfirm {
			data.OnlineLink = event.OnlineLink
		}
	}
	err := s.mail.Send(ctx, mailer.Message{
		Type:       emailType,
		To:         reg.Email,
		Data:       data,
		EntityKind: models.EntityRegistration,
		EntityID:   reg.ID,
	})
	if err != nil {
		s.logger.Warn("registration email not sent",
			zap.String("registration_id", reg.ID.String()),
			zap.String("email_type", emailType),
			zap.Error(err))
		return false
	}
	return true
}

func (s *Service) recount(ctx context.Context, eventID uuid.UUID) {
	if _, err := s.events.RecountRegistrations(ctx, eventID); err != nil && !errors.Is(err, database.ErrNotFound) {
		s.logger.Error("recount registrations", zap.String("event_id", eventID.String()), zap.Error(err))
	}
}

func (s *Service) fillTitles(ctx context.Context, list []*models.Registration) error {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, r := range list {
		if !seen[r.EventID] {
			seen[r.EventID] = true
			ids = append(ids, r.EventID)
		}
	}
	titles, err := s.events.TitlesByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load event titles: %w", err)
	}
	for _, r := range list {
		if t, ok := titles[r.EventID]; ok {
			r.EventTitle = t
		} else {
			r.EventTitle = models.UnknownEventTitle
		}
	}
	return nil
}
