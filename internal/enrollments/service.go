package enrollments

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

// ErrCourseNotFound is returned for missing and unpublished courses alike.
var ErrCourseNotFound = errors.New("course not found")

// Store persists enrollments.
type Store interface {
	Create(ctx context.Context, e *models.CourseEnrollment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.CourseEnrollment, error)
	List(ctx context.Context, f ListFilter) ([]*models.CourseEnrollment, error)
	UpdateState(ctx context.Context, id uuid.UUID, st payments.State, confirmedAt *time.Time) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// CourseStore is the part of the courses repository enrollments depend on.
type CourseStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
	TitlesByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	RecountEnrollments(ctx context.Context, id uuid.UUID) (int, error)
}

// Sender sends notification emails.
type Sender interface {
	Send(ctx context.Context, msg mailer.Message) error
}

// Broadcaster pushes dashboard events.
type Broadcaster interface {
	Notify(event string, payload interface{})
}

// Intake is a public enrollment submission.
type Intake struct {
	CourseID      uuid.UUID
	FullName      string
	Email         string
	Phone         string
	Note          string
	PaymentMethod string
	TransactionID string
}

// Result is an enrollment with the outcome of the email it triggered.
type Result struct {
	Enrollment *models.CourseEnrollment `json:"enrollment"`
	EmailSent  bool                     `json:"email_sent"`
	EmailType  string                   `json:"email_type,omitempty"`
}

// Service implements course enrollment intake and admin management.
type Service struct {
	store   Store
	courses CourseStore
	mail    Sender
	notify  Broadcaster
	now     func() time.Time
	logger  *zap.Logger
}

// NewService creates an enrollments service.
func NewService(store Store, courses CourseStore, mail Sender, notify Broadcaster, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, courses: courses, mail: mail, notify: notify, now: time.Now, logger: logger}
}

// Enroll stores an enrollment priced at the course's effective price at intake time.
func (s *Service) Enroll(ctx context.Context, in Intake) (*Result, error) {
	course, err := s.courses.GetByID(ctx, in.CourseID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("load course: %w", err)
	}
	if course.Status != models.CoursePublished {
		return nil, ErrCourseNotFound
	}

	now := s.now()
	state, err := payments.Intake(course.PriceAt(now), in.PaymentMethod, in.TransactionID)
	if err != nil {
		return nil, err
	}
	e := &models.CourseEnrollment{
		CourseID:      course.ID,
		CourseTitle:   course.Title,
		FullName:      strings.TrimSpace(in.FullName),
		Email:         utils.NormalizeEmail(in.Email),
		Phone:         strings.TrimSpace(in.Phone),
		Note:          in.Note,
		Status:        state.Status,
		PaymentStatus: state.PaymentStatus,
		Amount:        state.Amount,
	}
	if state.Amount > 0 {
		e.PaymentMethod = strings.TrimSpace(in.PaymentMethod)
		e.TransactionID = strings.TrimSpace(in.TransactionID)
	}
	if e.Status == models.StatusConfirmed {
		e.ConfirmedAt = &now
	}
	if err := s.store.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("create enrollment: %w", err)
	}
	s.recount(ctx, course.ID)
	s.logger.Info("enrollment created",
		zap.String("enrollment_id", e.ID.String()),
		zap.String("course_id", course.ID.String()),
		zap.Int64("amount", e.Amount))

	emailType := models.EmailTypeEnrollmentPending
	if e.Status == models.StatusConfirmed {
		emailType = models.EmailTypeEnrollmentConfirm
	}
	sent := s.sendEmail(ctx, emailType, e, course)
	s.notify.Notify(realtime.EventEnrollmentCreated, e)
	return &Result{Enrollment: e, EmailSent: sent, EmailType: emailType}, nil
}

// List returns enrollments with course titles; orphans get a placeholder title.
func (s *Service) List(ctx context.Context, f ListFilter) ([]*models.CourseEnrollment, error) {
	list, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := s.fillTitles(ctx, list); err != nil {
		return nil, err
	}
	return list, nil
}

// Get returns one enrollment with its course title.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.CourseEnrollment, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.fillTitles(ctx, []*models.CourseEnrollment{e}); err != nil {
		return nil, err
	}
	return e, nil
}

// Update applies an admin status change through the payment state machine.
func (s *Service) Update(ctx context.Context, id uuid.UUID, ch payments.Change) (*Result, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := payments.State{Status: e.Status, PaymentStatus: e.PaymentStatus, Amount: e.Amount}
	next, err := payments.Apply(prev, ch)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, e, prev, next)
}

// VerifyPayment implements payments.Source.
func (s *Service) VerifyPayment(ctx context.Context, id uuid.UUID, approved bool) (*payments.Outcome, error) {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := payments.State{Status: e.Status, PaymentStatus: e.PaymentStatus, Amount: e.Amount}
	next, err := payments.Verify(prev, approved)
	if err != nil {
		return nil, err
	}
	res, err := s.commit(ctx, e, prev, next)
	if err != nil {
		return nil, err
	}
	s.notify.Notify(realtime.EventPaymentVerified, map[string]interface{}{
		"kind": payments.KindEnrollment, "id": e.ID, "approved": approved,
	})
	return &payments.Outcome{Record: res.Enrollment, EmailSent: res.EmailSent}, nil
}

// PendingPayments implements payments.Source.
func (s *Service) PendingPayments(ctx context.Context) ([]payments.PendingItem, error) {
	list, err := s.List(ctx, ListFilter{PaymentStatus: string(models.PaymentPendingVerification)})
	if err != nil {
		return nil, err
	}
	out := make([]payments.PendingItem, 0, len(list))
	for _, e := range list {
		if e.Status == models.StatusCancelled {
			continue
		}
		out = append(out, payments.PendingItem{
			Kind:          payments.KindEnrollment,
			ID:            e.ID,
			TargetID:      e.CourseID,
			TargetTitle:   e.CourseTitle,
			FullName:      e.FullName,
			Email:         e.Email,
			Amount:        e.Amount,
			PaymentMethod: e.PaymentMethod,
			TransactionID: e.TransactionID,
			CreatedAt:     e.CreatedAt,
		})
	}
	return out, nil
}

// Delete removes an enrollment and recounts its course.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	e, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.recount(ctx, e.CourseID)
	s.notify.Notify(realtime.EventEnrollmentDeleted, map[string]uuid.UUID{"id": id, "course_id": e.CourseID})
	return nil
}

func (s *Service) commit(ctx context.Context, e *models.CourseEnrollment, prev, next payments.State) (*Result, error) {
	var confirmedAt *time.Time
	if payments.BecameConfirmed(prev, next) {
		now := s.now()
		confirmedAt = &now
	}
	if err := s.store.UpdateState(ctx, e.ID, next, confirmedAt); err != nil {
		return nil, err
	}
	e.Status, e.PaymentStatus = next.Status, next.PaymentStatus
	if e.ConfirmedAt == nil {
		e.ConfirmedAt = confirmedAt
	}
	s.recount(ctx, e.CourseID)

	course, err := s.courses.GetByID(ctx, e.CourseID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		s.logger.Warn("load course for enrollment", zap.String("course_id", e.CourseID.String()), zap.Error(err))
	}
	if course != nil {
		e.CourseTitle = course.Title
	} else {
		e.CourseTitle = models.UnknownCourseTitle
	}

	res := &Result{Enrollment: e}
	if payments.BecameConfirmed(prev, next) {
		res.EmailType = models.EmailTypeEnrollmentConfirm
		res.EmailSent = s.sendEmail(ctx, res.EmailType, e, course)
	}
	s.notify.Notify(realtime.EventEnrollmentUpdated, e)
	return res, nil
}

func (s *Service) sendEmail(ctx context.Context, emailType string, e *models.CourseEnrollment, course *models.Course) bool {
	data := mailer.TemplateData{
		FullName:      e.FullName,
		Title:         e.CourseTitle,
		Amount:        e.Amount,
		PaymentMethod: e.PaymentMethod,
		TransactionID: e.TransactionID,
	}
	if course != nil {
		data.Title = course.Title
		if emailType == models.EmailTypeEnrollmentConfirm {
			data.AccessLink = course.AccessLink
		}
	}
	err := s.mail.Send(ctx, mailer.Message{
		Type:       emailType,
		To:         e.Email,
		Data:       data,
		EntityKind: models.EntityEnrollment,
		EntityID:   e.ID,
	})
	if err != nil {
		s.logger.Warn("enrollment email not sent",
			zap.String("enrollment_id", e.ID.String()),
			zap.String("email_type", emailType),
			zap.Error(err))
		return false
	}
	return true
}

func (s *Service) recount(ctx context.Context, courseID uuid.UUID) {
	if _, err := s.courses.RecountEnrollments(ctx, courseID); err != nil && !errors.Is(err, database.ErrNotFound) {
		s.logger.Error("recount enrollments", zap.String("course_id", courseID.String()), zap.Error(err))
	}
}

func (s *Service) fillTitles(ctx context.Context, list []*models.CourseEnrollment) error {
	seen := map[uuid.UUID]bool{}
	var ids []uuid.UUID
	for _, e := range list {
		if !seen[e.CourseID] {
			seen[e.CourseID] = true
			ids = append(ids, e.CourseID)
		}
	}
	titles, err := s.courses.TitlesByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("load course titles: %w", err)
	}
	for _, e := range list {
		if t, ok := titles[e.CourseID]; ok {
			e.CourseTitle = t
		} else {
			e.CourseTitle = models.UnknownCourseTitle
		}
	}
	return nil
}
