package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-scheduling-api/internal/dto"
	"github.com/noah-isme/edu-scheduling-api/internal/models"
	"github.com/noah-isme/edu-scheduling-api/internal/scheduling"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
	"github.com/noah-isme/edu-scheduling-api/pkg/response"
)

const dateLayout = "2006-01-02"

type courseRepository interface {
	Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
	Update(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error
	Delete(ctx context.Context, id string) error
	FindByID(ctx context.Context, id string) (*models.Course, error)
	FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	ListByLecturer(ctx context.Context, exec sqlx.ExtContext, lecturerID string) ([]models.Course, error)
	HasPayments(ctx context.Context, courseID string) (bool, error)
	HasAttendance(ctx context.Context, courseID string) (bool, error)
}

type lecturerLocker interface {
	LockLecturer(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type lecturerMembership interface {
	AddLecturer(ctx context.Context, exec sqlx.ExtContext, institutionID, lecturerID string) error
}

// CourseService manages course lifecycles and freezes their lecture counts.
type CourseService struct {
	tx          txProvider
	courses     courseRepository
	lecturers   lecturerLocker
	memberships lecturerMembership
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(tx txProvider, courses courseRepository, lecturers lecturerLocker, memberships lecturerMembership, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseService{
		tx:          tx,
		courses:     courses,
		lecturers:   lecturers,
		memberships: memberships,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// Create stores a new course owned by the calling institution.
func (s *CourseService) Create(ctx context.Context, req dto.CourseRequest, claims *models.JWTClaims) (*models.Course, error) {
	if claims == nil || claims.Role != models.RoleInstitution {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only institutions can create courses")
	}
	course, err := s.buildCourse(req)
	if err != nil {
		return nil, err
	}
	course.InstitutionID = claims.UserID

	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		if course.LecturerID != nil {
			if err := s.ensureLecturerFree(ctx, tx, course); err != nil {
				return err
			}
		}
		if err := s.courses.Create(ctx, tx, course); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
		}
		return s.addLecturerMembership(ctx, tx, course)
	})
	if err != nil {
		return nil, err
	}
	s.invalidateSchedule(ctx, course.InstitutionID)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.Int("total_lectures", course.TotalLectures))
	return course, nil
}

// Update replaces a course. Schedule changes recompute total_lectures and are refused once
// attendance has been recorded.
func (s *CourseService) Update(ctx context.Context, id string, req dto.CourseRequest, claims *models.JWTClaims) (*models.Course, error) {
	if claims == nil || claims.Role != models.RoleInstitution {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only institutions can update courses")
	}
	next, err := s.buildCourse(req)
	if err != nil {
		return nil, err
	}

	var updated *models.Course
	err = withTx(ctx, s.tx, func(tx *sqlx.Tx) error {
		current, err := s.courses.FindByIDForUpdate(ctx, tx, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "course not found")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
		}
		if current.InstitutionID != claims.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "course belongs to another institution")
		}

		if scheduleChanged(current, next) {
			marked, err := s.courses.HasAttendance(ctx, id)
			if err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check attendance")
			}
			if marked {
				return appErrors.Clone(appErrors.ErrConflict, "course schedule cannot change after attendance has been recorded")
			}
		}

		next.ID = current.ID
		next.InstitutionID = current.InstitutionID
		next.CreatedAt = current.CreatedAt
		if next.LecturerID != nil && (slotChanged(current, next) || !sameLecturer(current.LecturerID, next.LecturerID)) {
			if err := s.ensureLecturerFree(ctx, tx, next); err != nil {
				return err
			}
		}
		if err := s.courses.Update(ctx, tx, next); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
		}
		updated = next
		return s.addLecturerMembership(ctx, tx, next)
	})
	if err != nil {
		return nil, err
	}
	s.invalidateSchedule(ctx, updated.InstitutionID)
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, progressCacheKey(updated.ID))
	}
	return updated, nil
}

// Delete removes a course that has never taken a payment. Attendance, exams and grades cascade.
func (s *CourseService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	course, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if claims == nil || claims.Role != models.RoleInstitution || course.InstitutionID != claims.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "course belongs to another institution")
	}
	paid, err := s.courses.HasPayments(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check course payments")
	}
	if paid {
		return appErrors.Clone(appErrors.ErrConflict, "course with payments cannot be deleted")
	}
	if err := s.courses.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.invalidateSchedule(ctx, course.InstitutionID)
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, progressCacheKey(id))
	}
	return nil
}

// Get returns a course by id.
func (s *CourseService) Get(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// List returns a page of courses matching filter.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, *response.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	return courses, &response.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Mine lists the caller's courses: owned, taught or enrolled depending on role.
func (s *CourseService) Mine(ctx context.Context, claims *models.JWTClaims, page, size int) ([]models.Course, *response.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing user context")
	}
	filter := models.CourseFilter{Page: page, PageSize: size}
	switch claims.Role {
	case models.RoleInstitution:
		filter.InstitutionID = claims.UserID
	case models.RoleLecturer:
		filter.LecturerID = claims.UserID
	case models.RoleStudent:
		filter.StudentID = claims.UserID
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "unsupported role")
	}
	return s.List(ctx, filter)
}

func (s *CourseService) buildCourse(req dto.CourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	start, err := time.Parse(dateLayout, req.StartingDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid starting_date")
	}
	end, err := time.Parse(dateLayout, req.EndingDate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid ending_date")
	}
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ending_date must not be before starting_date")
	}
	slot, err := parseSlot(req.Days, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	return &models.Course{
		LecturerID:    req.LecturerID,
		Title:         req.Title,
		Description:   req.Description,
		StartingDate:  start,
		EndingDate:    end,
		Days:          pq.StringArray(scheduling.Strings(slot.Days)),
		StartTime:     slot.Start.String(),
		EndTime:       slot.End.String(),
		Capacity:      req.Capacity,
		Price:         req.Price,
		TotalLectures: scheduling.LectureCount(start, end, slot.Days),
	}, nil
}

// ensureLecturerFree locks the lecturer and checks the course against every course they teach,
// across institutions.
func (s *CourseService) ensureLecturerFree(ctx context.Context, tx sqlx.ExtContext, course *models.Course) error {
	lecturerID := *course.LecturerID
	if err := s.lecturers.LockLecturer(ctx, tx, lecturerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "lecturer not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock lecturer")
	}
	assigned, err := s.courses.ListByLecturer(ctx, tx, lecturerID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lecturer schedule")
	}
	if existing, ok := findCourseConflict(course.Booking(), assigned, course.ID); ok {
		return scheduleConflictError(models.ConflictScopeLecturer, existing)
	}
	return nil
}

func (s *CourseService) addLecturerMembership(ctx context.Context, tx sqlx.ExtContext, course *models.Course) error {
	if course.LecturerID == nil || s.memberships == nil {
		return nil
	}
	if err := s.memberships.AddLecturer(ctx, tx, course.InstitutionID, *course.LecturerID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add lecturer to institution")
	}
	return nil
}

func (s *CourseService) invalidateSchedule(ctx context.Context, institutionID string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, scheduleCacheKey(institutionID))
}

func scheduleChanged(current, next *models.Course) bool {
	if !current.StartingDate.Equal(next.StartingDate) || !current.EndingDate.Equal(next.EndingDate) {
		return true
	}
	return !sameDays(current.Days, next.Days)
}

func slotChanged(current, next *models.Course) bool {
	return current.StartTime != next.StartTime || current.EndTime != next.EndTime || !sameDays(current.Days, next.Days)
}

func sameDays(a, b pq.StringArray) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, d := range a {
		seen[d] = struct{}{}
	}
	for _, d := range b {
		if _, ok := seen[d]; !ok {
			return false
		}
	}
	return true
}

func sameLecturer(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// canManageCourse reports whether claims may operate on course. Lecturers qualify only when
// allowLecturer is set and they are assigned to it.
func canManageCourse(course *models.Course, claims *models.JWTClaims, allowLecturer bool) bool {
	if course == nil || claims == nil {
		return false
	}
	switch claims.Role {
	case models.RoleInstitution:
		return course.InstitutionID == claims.UserID
	case models.RoleLecturer:
		return allowLecturer && course.LecturerID != nil && *course.LecturerID == claims.UserID
	default:
		return false
	}
}
