package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-scheduling-api/internal/dto"
	"github.com/noah-isme/edu-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
)

type courseReader interface {
	FindByID(ctx context.Context, id string) (*models.Course, error)
}

type attendanceRepository interface {
	Upsert(ctx context.Context, record *models.Attendance) error
	ListByLecture(ctx context.Context, courseID string, lecture int) ([]models.Attendance, error)
}

type rosterReader interface {
	EnrolledAmong(ctx context.Context, courseID string, studentIDs []string) (map[string]bool, error)
}

// AttendanceService records per-lecture attendance bounded by the course's lecture count.
type AttendanceService struct {
	courses   courseReader
	repo      attendanceRepository
	roster    rosterReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(courses courseReader, repo attendanceRepository, roster rosterReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{courses: courses, repo: repo, roster: roster, cache: cache, validator: validate, logger: logger}
}

// Mark upserts a batch of statuses for one lecture. Records with a malformed student id, for students
// outside the course or with an unknown status are skipped and reported; the rest are applied.
func (s *AttendanceService) Mark(ctx context.Context, courseID string, req dto.MarkAttendanceRequest, claims *models.JWTClaims) (*models.AttendanceBatchResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}
	course, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return nil, err
	}
	if !canManageCourse(course, claims, true) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to mark attendance for this course")
	}
	if req.LectureNumber < 1 || req.LectureNumber > course.TotalLectures {
		return nil, appErrors.Clone(appErrors.ErrValidation,
			fmt.Sprintf("lecture_number must be between 1 and %d", course.TotalLectures))
	}

	enrolled, err := s.roster.EnrolledAmong(ctx, course.ID, wellFormedIDs(req.Records, func(r dto.AttendanceRecord) string { return r.StudentID }))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course roster")
	}

	result := &models.AttendanceBatchResult{
		CourseID:      course.ID,
		LectureNumber: req.LectureNumber,
		Applied:       []models.Attendance{},
		Skipped:       []models.BatchSkip{},
	}
	markedBy := claims.UserID
	for _, rec := range req.Records {
		if !isUUID(rec.StudentID) {
			result.Skipped = append(result.Skipped, models.BatchSkip{StudentID: rec.StudentID, Reason: models.SkipInvalidStudent})
			continue
		}
		status := models.AttendanceStatus(strings.ToLower(strings.TrimSpace(rec.Status)))
		if !status.Valid() {
			result.Skipped = append(result.Skipped, models.BatchSkip{StudentID: rec.StudentID, Reason: models.SkipInvalidStatus})
			continue
		}
		if !enrolled[rec.StudentID] {
			result.Skipped = append(result.Skipped, models.BatchSkip{StudentID: rec.StudentID, Reason: models.SkipNotEnrolled})
			continue
		}
		record := &models.Attendance{
			CourseID:      course.ID,
			StudentID:     rec.StudentID,
			LectureNumber: req.LectureNumber,
			Status:        status,
			MarkedBy:      &markedBy,
		}
		if err := s.repo.Upsert(ctx, record); err != nil {
			s.logger.Error("attendance upsert failed",
				zap.String("course_id", course.ID),
				zap.String("student_id", rec.StudentID),
				zap.Int("lecture", req.LectureNumber),
				zap.Error(err),
			)
			result.Skipped = append(result.Skipped, models.BatchSkip{StudentID: rec.StudentID, Reason: models.SkipWriteFailed})
			continue
		}
		result.Applied = append(result.Applied, *record)
	}

	if len(result.Applied) > 0 && s.cache != nil {
		_ = s.cache.Invalidate(ctx, progressCacheKey(course.ID))
	}
	return result, nil
}

// ListLecture returns the recorded statuses for one lecture.
func (s *AttendanceService) ListLecture(ctx context.Context, courseID string, lecture int, claims *models.JWTClaims) ([]models.Attendance, error) {
	course, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return nil, err
	}
	if !canManageCourse(course, claims, true) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view attendance for this course")
	}
	records, err := s.repo.ListByLecture(ctx, course.ID, lecture)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	return records, nil
}

// wellFormedIDs keeps the student ids that parse as UUIDs so one bad record cannot fail the roster query.
func wellFormedIDs[T any](records []T, id func(T) string) []string {
	ids := make([]string, 0, len(records))
	for _, rec := range records {
		if v := id(rec); isUUID(v) {
			ids = append(ids, v)
		}
	}
	return ids
}

func isUUID(v string) bool {
	_, err := uuid.Parse(v)
	return err == nil
}

func loadCourse(ctx context.Context, courses courseReader, id string) (*models.Course, error) {
	course, err := courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}
