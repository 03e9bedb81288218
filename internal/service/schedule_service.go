package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-scheduling-api/internal/dto"
	"github.com/noah-isme/edu-scheduling-api/internal/models"
	"github.com/noah-isme/edu-scheduling-api/internal/scheduling"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
)

type scheduleCourseReader interface {
	ListByLecturer(ctx context.Context, exec sqlx.ExtContext, lecturerID string) ([]models.Course, error)
	ListByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) ([]models.Course, error)
}

// ScheduleService answers conflict checks for a caller's weekly timetable.
type ScheduleService struct {
	courses   scheduleCourseReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewScheduleService constructs the conflict check service.
func NewScheduleService(courses scheduleCourseReader, validate *validator.Validate, logger *zap.Logger) *ScheduleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{courses: courses, validator: validate, logger: logger}
}

// Check reports the first course of the relevant timetable that collides with the requested slot.
// Students are checked against their enrollments, lecturers against their assignments and
// institutions against the lecturer named in the request.
func (s *ScheduleService) Check(ctx context.Context, req dto.ConflictCheckRequest, claims *models.JWTClaims) (*dto.ConflictCheckResponse, error) {
	if claims == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing user context")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid conflict check payload")
	}
	candidate, err := parseSlot(req.Days, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	var courses []models.Course
	switch claims.Role {
	case models.RoleStudent:
		courses, err = s.courses.ListByStudent(ctx, nil, claims.UserID)
	case models.RoleLecturer:
		courses, err = s.courses.ListByLecturer(ctx, nil, claims.UserID)
	case models.RoleInstitution:
		if req.LecturerID == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "lecturer_id is required for institution checks")
		}
		courses, err = s.courses.ListByLecturer(ctx, nil, req.LecturerID)
	default:
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot check schedules")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}

	existing, ok := findCourseConflict(candidate, courses, req.ExcludeCourseID)
	if !ok {
		return &dto.ConflictCheckResponse{Conflict: false}, nil
	}
	return &dto.ConflictCheckResponse{
		Conflict:  true,
		CourseID:  existing.ID,
		Title:     existing.Title,
		Days:      []string(existing.Days),
		StartTime: existing.StartTime,
		EndTime:   existing.EndTime,
	}, nil
}

// parseSlot validates a weekly slot: known days and end strictly after start.
func parseSlot(days []string, start, end string) (scheduling.Booking, error) {
	parsedDays, err := scheduling.ParseDays(days)
	if err != nil {
		return scheduling.Booking{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	if len(parsedDays) == 0 {
		return scheduling.Booking{}, appErrors.Clone(appErrors.ErrValidation, "days must not be empty")
	}
	startClock, err := scheduling.ParseClock(start)
	if err != nil {
		return scheduling.Booking{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid start_time")
	}
	endClock, err := scheduling.ParseClock(end)
	if err != nil {
		return scheduling.Booking{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid end_time")
	}
	if endClock <= startClock {
		return scheduling.Booking{}, appErrors.Clone(appErrors.ErrValidation, "end_time must be after start_time")
	}
	return scheduling.Booking{Days: parsedDays, Start: startClock, End: endClock}, nil
}

// findCourseConflict returns the first course in courses overlapping candidate, skipping excludeID.
func findCourseConflict(candidate scheduling.Booking, courses []models.Course, excludeID string) (models.Course, bool) {
	bookings := make([]scheduling.Booking, 0, len(courses))
	byID := make(map[string]models.Course, len(courses))
	for _, course := range courses {
		if excludeID != "" && course.ID == excludeID {
			continue
		}
		bookings = append(bookings, course.Booking())
		byID[course.ID] = course
	}
	hit, ok := scheduling.FindConflict(candidate, bookings)
	if !ok {
		return models.Course{}, false
	}
	return byID[hit.ID], true
}

func scheduleConflictError(scope string, existing models.Course) error {
	detail := &models.ScheduleConflictError{
		Scope: scope,
		Message: fmt.Sprintf("%s already scheduled for %q on %s %s-%s", scope, existing.Title,
			strings.Join(existing.Days, ","), existing.StartTime, existing.EndTime),
		Conflict: models.ScheduleConflict{
			CourseID:  existing.ID,
			Title:     existing.Title,
			Days:      []string(existing.Days),
			StartTime: existing.StartTime,
			EndTime:   existing.EndTime,
		},
	}
	conflict := appErrors.WithDetails(appErrors.ErrConflict, detail)
	conflict.Message = "schedule conflict detected"
	conflict.Err = detail
	return conflict
}
