package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-scheduling-api/internal/dto"
	"github.com/noah-isme/edu-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
)

type gradeRepository interface {
	CreateExam(ctx context.Context, exam *models.Exam) error
	FindExam(ctx context.Context, id string) (*models.Exam, error)
	Upsert(ctx context.Context, grade *models.Grade) error
	ListByExam(ctx context.Context, examID string) ([]models.Grade, error)
}

type gradeNotifier interface {
	GradePosted(ctx context.Context, studentID string, exam *models.Exam, score float64)
}

// GradeService manages exams and their bounded scores.
type GradeService struct {
	courses   courseReader
	repo      gradeRepository
	roster    rosterReader
	notifier  gradeNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs the grade service.
func NewGradeService(courses courseReader, repo gradeRepository, roster rosterReader, notifier gradeNotifier, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{courses: courses, repo: repo, roster: roster, notifier: notifier, validator: validate, logger: logger}
}

// CreateExam adds an exam to a course managed by the caller.
func (s *GradeService) CreateExam(ctx context.Context, courseID string, req dto.CreateExamRequest, claims *models.JWTClaims) (*models.Exam, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam payload")
	}
	course, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return nil, err
	}
	if !canManageCourse(course, claims, true) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to add exams to this course")
	}

	exam := &models.Exam{CourseID: course.ID, Title: req.Title, MaxScore: req.MaxScore}
	if req.HeldOn != "" {
		heldOn, err := time.Parse(dateLayout, req.HeldOn)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid held_on")
		}
		exam.HeldOn = &heldOn
	}
	if err := s.repo.CreateExam(ctx, exam); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam")
	}
	return exam, nil
}

// Grade upserts a batch of scores. Malformed student ids, out-of-range scores and students outside the course are
// skipped and reported. Each stored grade queues a notification; delivery never affects the write.
func (s *GradeService) Grade(ctx context.Context, examID string, req dto.GradeBatchRequest, claims *models.JWTClaims) (*models.GradeBatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}
	exam, course, err := s.loadExam(ctx, examID, claims)
	if err != nil {
		return nil, err
	}

	enrolled, err := s.roster.EnrolledAmong(ctx, course.ID, wellFormedIDs(req.Records, func(r dto.GradeRecord) string { return r.StudentID }))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course roster")
	}

	result := &models.GradeBatchResult{ExamID: exam.ID, Applied: []models.Grade{}, Skipped: []models.BatchSkip{}}
	gradedBy := claims.UserID
	for _, rec := range req.Records {
		if !isUUID(rec.StudentID) {
			result.Skipped = append(result.Skipped, models.BatchSkip{StudentID: rec.StudentID, Reason: models.SkipInvalidStudent})
			continue
		}
		if rec.Score < 0 || rec.Score > exam.MaxScore {
			result.Skipped = append(result.Skipped, models.BatchSkip{StudentID: rec.StudentID, Reason: models.SkipScoreRange})
			continue
		}
		if !enrolled[rec.StudentID] {
			result.Skipped = append(result.Skipped, models.BatchSkip{StudentID: rec.StudentID, Reason: models.SkipNotEnrolled})
			continue
		}
		grade := &models.Grade{ExamID: exam.ID, StudentID: rec.StudentID, Score: rec.Score, GradedBy: &gradedBy}
		if err := s.repo.Upsert(ctx, grade); err != nil {
			s.logger.Error("grade upsert failed", zap.String("exam_id", exam.ID), zap.String("student_id", rec.StudentID), zap.Error(err))
			result.Skipped = append(result.Skipped, models.BatchSkip{StudentID: rec.StudentID, Reason: models.SkipWriteFailed})
			continue
		}
		result.Applied = append(result.Applied, *grade)
		if s.notifier != nil {
			s.notifier.GradePosted(ctx, grade.StudentID, exam, grade.Score)
		}
	}
	return result, nil
}

// ListGrades returns the grades recorded for an exam.
func (s *GradeService) ListGrades(ctx context.Context, examID string, claims *models.JWTClaims) ([]models.Grade, error) {
	exam, _, err := s.loadExam(ctx, examID, claims)
	if err != nil {
		return nil, err
	}
	grades, err := s.repo.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grades")
	}
	return grades, nil
}

func (s *GradeService) loadExam(ctx context.Context, examID string, claims *models.JWTClaims) (*models.Exam, *models.Course, error) {
	exam, err := s.repo.FindExam(ctx, examID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "exam not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam")
	}
	course, err := loadCourse(ctx, s.courses, exam.CourseID)
	if err != nil {
		return nil, nil, err
	}
	if !canManageCourse(course, claims, true) {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to grade this exam")
	}
	return exam, course, nil
}
