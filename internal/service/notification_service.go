package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-scheduling-api/internal/models"
	"github.com/noah-isme/edu-scheduling-api/pkg/jobs"
	"github.com/noah-isme/edu-scheduling-api/pkg/mail"
)

const (
	jobGradePosted         = "grade_posted"
	jobEnrollmentConfirmed = "enrollment_confirmed"
)

type contactReader interface {
	StudentContact(ctx context.Context, studentID string) (*models.StudentContact, error)
}

// NotificationConfig sizes the delivery worker pool.
type NotificationConfig struct {
	Workers    int
	BufferSize int
	Retries    int
	RetryDelay time.Duration
	// SendTimeout bounds one delivery attempt, contact lookup included.
	SendTimeout time.Duration
}

type notification struct {
	StudentID string
	Subject   string
	Body      string
}

// NotificationService delivers best-effort email to students and their guardians.
// Callers never wait on delivery and never see its failures.
type NotificationService struct {
	queue    *jobs.Queue
	mailer   mail.Mailer
	contacts contactReader
	metrics  *MetricsService
	logger   *zap.Logger
	timeout  time.Duration
}

// NewNotificationService builds the service and its worker queue. Call Start before use.
func NewNotificationService(mailer mail.Mailer, contacts contactReader, metrics *MetricsService, logger *zap.Logger, cfg NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	s := &NotificationService{mailer: mailer, contacts: contacts, metrics: metrics, logger: logger, timeout: cfg.SendTimeout}
	s.queue = jobs.NewQueue("notifications", s.deliver, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.Retries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
		OnDiscard: func(job jobs.Job, err error) {
			s.metrics.RecordNotification("discarded")
		},
	})
	return s
}

// Start launches the delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for in-flight deliveries to finish. Queued messages are dropped.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// GradePosted tells a student about a new or changed grade.
func (s *NotificationService) GradePosted(ctx context.Context, studentID string, exam *models.Exam, score float64) {
	s.enqueue(jobGradePosted, notification{
		StudentID: studentID,
		Subject:   fmt.Sprintf("New grade: %s", exam.Title),
		Body: fmt.Sprintf("A grade of %s out of %s has been recorded for %s.",
			formatScore(score), formatScore(exam.MaxScore), exam.Title),
	})
}

// EnrollmentConfirmed tells a student their payment went through.
func (s *NotificationService) EnrollmentConfirmed(ctx context.Context, studentID, courseTitle string) {
	s.enqueue(jobEnrollmentConfirmed, notification{
		StudentID: studentID,
		Subject:   fmt.Sprintf("Enrollment confirmed: %s", courseTitle),
		Body:      fmt.Sprintf("Your payment was received and you are now enrolled in %s.", courseTitle),
	})
}

func (s *NotificationService) enqueue(jobType string, n notification) {
	if err := s.queue.Offer(jobs.NewJob(jobType, n)); err != nil {
		s.metrics.RecordNotification("dropped")
		s.logger.Warn("notification dropped", zap.String("type", jobType), zap.String("student_id", n.StudentID), zap.Error(err))
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	n, ok := job.Payload.(notification)
	if !ok {
		s.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	contact, err := s.contacts.StudentContact(ctx, n.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("notification recipient missing", zap.String("student_id", n.StudentID))
			return nil
		}
		return err
	}
	if err := s.mailer.Send(ctx, mail.Message{To: contact.Recipients(), Subject: n.Subject, Body: n.Body}); err != nil {
		s.metrics.RecordNotification("failed")
		return err
	}
	s.metrics.RecordNotification("sent")
	return nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
