package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-scheduling-api/internal/dto"
	"github.com/noah-isme/edu-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
	"github.com/noah-isme/edu-scheduling-api/pkg/observability"
	"github.com/noah-isme/edu-scheduling-api/pkg/payment"
)

const reconcileBatchSize = 100

type enrollmentCourseRepository interface {
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error)
	ListByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) ([]models.Course, error)
}

type enrollmentRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) (bool, error)
	Exists(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (bool, error)
	CountByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) (int, error)
}

type paymentRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error
	FindByReferenceForUpdate(ctx context.Context, exec sqlx.ExtContext, reference string) (*models.Payment, error)
	MarkPaid(ctx context.Context, exec sqlx.ExtContext, id string, refundRequired bool, at time.Time) (bool, error)
	CountHolds(ctx context.Context, exec sqlx.ExtContext, courseID, excludeStudentID string, since time.Time) (int, error)
	ListPending(ctx context.Context, from, to time.Time, limit int) ([]models.Payment, error)
}

type enrollmentInstitutionRepository interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Institution, error)
	AddStudent(ctx context.Context, exec sqlx.ExtContext, institutionID, studentID string) error
}

type accountReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type enrollmentNotifier interface {
	EnrollmentConfirmed(ctx context.Context, studentID, courseTitle string)
}

// EnrollmentConfig tunes admission control and payment confirmation.
type EnrollmentConfig struct {
	Currency               string
	SuccessURL             string
	CancelURL              string
	ProviderTimeout        time.Duration
	SeatHoldTTL            time.Duration
	ReconcileAfter         time.Duration
	ReconcileWindow        time.Duration
	EnforceStudentSchedule bool
}

// EnrollmentService drives a seat from checkout to a confirmed enrollment.
//
// Admission locks the course row, counts enrollments plus unexpired holds of other students,
// and persists the pending payment before the checkout URL is returned. Confirmation locks the
// payment row so duplicate deliveries of the same event are absorbed.
type EnrollmentService struct {
	tx           txProvider
	courses      enrollmentCourseRepository
	enrollments  enrollmentRepository
	payments     paymentRepository
	institutions enrollmentInstitutionRepository
	accounts     accountReader
	provider     payment.Provider
	notifier     enrollmentNotifier
	cache        *CacheService
	metrics      *MetricsService
	logger       *zap.Logger
	cfg          EnrollmentConfig
	now          func() time.Time
}

// NewEnrollmentService constructs the enrollment workflow.
func NewEnrollmentService(
	tx txProvider,
	courses enrollmentCourseRepository,
	enrollments enrollmentRepository,
	payments paymentRepository,
	institutions enrollmentInstitutionRepository,
	accounts accountReader,
	provider payment.Provider,
	notifier enrollmentNotifier,
	cache *CacheService,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg EnrollmentConfig,
) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 10 * time.Second
	}
	if cfg.SeatHoldTTL <= 0 {
		cfg.SeatHoldTTL = 35 * time.Minute
	}
	// A hold shorter than the checkout session would let a student pay for a seat no longer reserved.
	if cfg.SeatHoldTTL < payment.MinSessionTTL {
		cfg.SeatHoldTTL = payment.MinSessionTTL
	}
	if cfg.ReconcileAfter <= 0 {
		cfg.ReconcileAfter = 5 * time.Minute
	}
	if cfg.ReconcileWindow <= 0 {
		cfg.ReconcileWindow = 24 * time.Hour
	}
	return &EnrollmentService{
		tx:           tx,
		courses:      courses,
		enrollments:  enrollments,
		payments:     payments,
		institutions: institutions,
		accounts:     accounts,
		provider:     provider,
		notifier:     notifier,
		cache:        cache,
		metrics:      metrics,
		logger:       logger,
		cfg:          cfg,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Enroll reserves a seat for the calling student and returns the provider checkout URL.
// Rejections leave no payment behind.
func (s *EnrollmentService) Enroll(ctx context.Context, courseID string, claims *models.JWTClaims) (*dto.EnrollResponse, error) {
	if claims == nil || claims.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can enroll")
	}
	student, err := s.accounts.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	var record *models.Payment
	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		course, err := s.courses.FindByIDForUpdate(ctx, tx, courseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock course")
		}
		if err := s.admit(ctx, tx, course, student.ID); err != nil {
			return err
		}

		institution, err := s.institutions.FindByID(ctx, tx, course.InstitutionID)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution")
		}
		if !institution.HasPayoutDestination() {
			s.metrics.RecordAdmission("no_payout")
			return appErrors.Clone(appErrors.ErrPayoutUnavailable, "institution cannot receive payments yet")
		}

		session, err := s.createCheckout(ctx, course, student, *institution.PayoutAccountID)
		if err != nil {
			return err
		}

		record = &models.Payment{
			StudentID:         student.ID,
			CourseID:          course.ID,
			ProviderReference: session.Reference,
			CheckoutURL:       session.URL,
			Amount:            course.AmountMinor(),
			Currency:          s.cfg.Currency,
		}
		if err := s.payments.Create(ctx, tx, record); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordAdmission("checkout")
	s.logger.Info("checkout created",
		zap.String("course_id", courseID),
		zap.String("student_id", student.ID),
		zap.String("payment_id", record.ID),
	)
	return &dto.EnrollResponse{
		PaymentID:   record.ID,
		CheckoutURL: record.CheckoutURL,
		Amount:      record.Amount,
		Currency:    record.Currency,
	}, nil
}

// admit applies the duplicate, capacity and optional timetable rules to a locked course.
func (s *EnrollmentService) admit(ctx context.Context, tx sqlx.ExtContext, course *models.Course, studentID string) error {
	enrolled, err := s.enrollments.Exists(ctx, tx, studentID, course.ID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if enrolled {
		s.metrics.RecordAdmission("duplicate")
		return appErrors.Clone(appErrors.ErrConflict, "already enrolled in this course")
	}

	if !course.Unlimited() {
		count, err := s.enrollments.CountByCourse(ctx, tx, course.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
		}
		holds, err := s.payments.CountHolds(ctx, tx, course.ID, studentID, s.now().Add(-s.cfg.SeatHoldTTL))
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count seat holds")
		}
		if count+holds >= course.Capacity {
			s.metrics.RecordAdmission("full")
			return appErrors.Clone(appErrors.ErrConflict, "course is full")
		}
	}

	if s.cfg.EnforceStudentSchedule {
		current, err := s.courses.ListByStudent(ctx, tx, studentID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student schedule")
		}
		if existing, ok := findCourseConflict(course.Booking(), current, course.ID); ok {
			s.metrics.RecordAdmission("schedule_conflict")
			return scheduleConflictError(models.ConflictScopeStudent, existing)
		}
	}
	return nil
}

func (s *EnrollmentService) createCheckout(ctx context.Context, course *models.Course, student *models.User, destination string) (*payment.CheckoutSession, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
	defer cancel()

	start := time.Now()
	session, err := s.provider.CreateCheckoutSession(callCtx, payment.CheckoutRequest{
		CustomerEmail:     student.Email,
		AmountMinor:       course.AmountMinor(),
		Currency:          s.cfg.Currency,
		ProductName:       course.Title,
		PayoutDestination: destination,
		SuccessURL:        s.cfg.SuccessURL,
		CancelURL:         s.cfg.CancelURL,
		ExpiresAt:         s.now().Add(s.cfg.SeatHoldTTL),
		Metadata: map[string]string{
			"course_id":  course.ID,
			"student_id": student.ID,
		},
	})
	s.metrics.ObserveProviderCall(time.Since(start))
	if err != nil {
		s.metrics.RecordAdmission("provider_error")
		s.logger.Error("checkout session failed", zap.String("course_id", course.ID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrPayment.Code, appErrors.ErrPayment.Status, "failed to create checkout session")
	}
	return session, nil
}

// HandleWebhook verifies a provider notification and applies it. Unknown references and
// unrelated event types are acknowledged without side effects.
func (s *EnrollmentService) HandleWebhook(ctx context.Context, payload []byte, signature string) (models.ConfirmationOutcome, error) {
	event, err := s.provider.ParseWebhook(payload, signature)
	if err != nil {
		if errors.Is(err, payment.ErrInvalidSignature) {
			return "", appErrors.Wrap(err, appErrors.ErrInvalidSignature.Code, appErrors.ErrInvalidSignature.Status, appErrors.ErrInvalidSignature.Message)
		}
		return "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "malformed webhook payload")
	}
	if event.Type != payment.EventCheckoutCompleted {
		s.logger.Debug("webhook event ignored", zap.String("event_id", event.ID), zap.String("type", event.Type))
		s.metrics.RecordConfirmation("webhook", string(models.ConfirmationIgnored))
		return models.ConfirmationIgnored, nil
	}

	outcome, err := s.ConfirmReference(ctx, event.Reference, "webhook")
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) && appErr.Code == appErrors.ErrUnknownEvent.Code {
			s.logger.Warn("webhook for unknown payment", zap.String("event_id", event.ID), zap.String("reference", event.Reference))
			return models.ConfirmationUnknown, nil
		}
		return "", err
	}
	return outcome, nil
}

// ConfirmReference marks the payment paid and creates the enrollment in one transaction.
// A payment already marked paid is reported as a duplicate. When the course filled up after
// admission the payment is kept with refund_required and no enrollment is written.
func (s *EnrollmentService) ConfirmReference(ctx context.Context, reference, source string) (models.ConfirmationOutcome, error) {
	var (
		outcome models.ConfirmationOutcome
		record  *models.Payment
		course  *models.Course
	)
	err := withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		var err error
		record, err = s.payments.FindByReferenceForUpdate(ctx, tx, reference)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				outcome = models.ConfirmationUnknown
				return appErrors.Clone(appErrors.ErrUnknownEvent, "no payment for reference")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock payment")
		}
		if record.Paid {
			outcome = models.ConfirmationDuplicate
			return nil
		}

		course, err = s.courses.FindByIDForUpdate(ctx, tx, record.CourseID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock course")
		}
		refund, err := s.seatLost(ctx, tx, course, record.StudentID)
		if err != nil {
			return err
		}

		marked, err := s.payments.MarkPaid(ctx, tx, record.ID, refund, s.now())
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark payment paid")
		}
		if !marked {
			outcome = models.ConfirmationDuplicate
			return nil
		}
		if refund {
			outcome = models.ConfirmationRefundRequired
			return nil
		}

		if _, err := s.enrollments.Create(ctx, tx, &models.Enrollment{
			StudentID: record.StudentID,
			CourseID:  record.CourseID,
			PaymentID: record.ID,
		}); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
		}
		if err := s.institutions.AddStudent(ctx, tx, course.InstitutionID, record.StudentID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add student to institution")
		}
		outcome = models.ConfirmationEnrolled
		return nil
	})
	if err != nil {
		if outcome == models.ConfirmationUnknown {
			s.metrics.RecordConfirmation(source, string(outcome))
			return outcome, err
		}
		s.logger.Error("payment confirmation failed", zap.String("reference", reference), zap.Error(err))
		observability.CaptureErr(err, "component", "enrollment", "source", source)
		s.metrics.RecordConfirmation(source, "error")
		return "", err
	}

	s.metrics.RecordConfirmation(source, string(outcome))
	switch outcome {
	case models.ConfirmationEnrolled:
		s.logger.Info("enrollment confirmed",
			zap.String("payment_id", record.ID),
			zap.String("course_id", record.CourseID),
			zap.String("student_id", record.StudentID),
		)
		if s.cache != nil {
			_ = s.cache.Invalidate(ctx, progressCacheKey(record.CourseID))
		}
		if s.notifier != nil {
			s.notifier.EnrollmentConfirmed(ctx, record.StudentID, course.Title)
		}
	case models.ConfirmationRefundRequired:
		s.logger.Warn("payment received for a full course",
			zap.String("payment_id", record.ID),
			zap.String("course_id", record.CourseID),
		)
		observability.CaptureWarning("payment requires refund", map[string]string{
			"payment_id": record.ID,
			"course_id":  record.CourseID,
		})
	case models.ConfirmationDuplicate:
		s.logger.Debug("duplicate payment confirmation", zap.String("reference", reference))
	}
	return outcome, nil
}

// seatLost reports whether the student can no longer take a seat: the course filled up
// after admission or the student was enrolled through another payment.
func (s *EnrollmentService) seatLost(ctx context.Context, tx sqlx.ExtContext, course *models.Course, studentID string) (bool, error) {
	enrolled, err := s.enrollments.Exists(ctx, tx, studentID, course.ID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if enrolled {
		return true, nil
	}
	if course.Unlimited() {
		return false, nil
	}
	count, err := s.enrollments.CountByCourse(ctx, tx, course.ID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
	}
	return count >= course.Capacity, nil
}

// Reconcile asks the provider about pending payments whose webhook may have been lost and
// confirms the paid ones. It returns the number of payments confirmed.
func (s *EnrollmentService) Reconcile(ctx context.Context) (int, error) {
	now := s.now()
	pending, err := s.payments.ListPending(ctx, now.Add(-s.cfg.ReconcileWindow), now.Add(-s.cfg.ReconcileAfter), reconcileBatchSize)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending payments")
	}

	confirmed := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return confirmed, ctx.Err()
		}
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderTimeout)
		paid, err := s.provider.IsPaid(callCtx, p.ProviderReference)
		cancel()
		if err != nil {
			s.logger.Warn("payment status lookup failed", zap.String("payment_id", p.ID), zap.Error(err))
			continue
		}
		if !paid {
			continue
		}
		outcome, err := s.ConfirmReference(ctx, p.ProviderReference, "reconciler")
		if err != nil {
			continue
		}
		if outcome == models.ConfirmationEnrolled || outcome == models.ConfirmationRefundRequired {
			confirmed++
		}
	}
	if confirmed > 0 {
		s.logger.Info("payments reconciled", zap.Int("confirmed", confirmed), zap.Int("checked", len(pending)))
	}
	return confirmed, nil
}
