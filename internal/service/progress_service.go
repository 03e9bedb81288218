package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
	"github.com/noah-isme/edu-scheduling-api/pkg/export"
)

type progressRepository interface {
	PresentCounts(ctx context.Context, courseID string) ([]models.StudentProgress, error)
}

// ProgressService aggregates attendance into completion percentages.
type ProgressService struct {
	courses    courseReader
	attendance progressRepository
	roster     rosterReader
	cache      *CacheService
	ttl        time.Duration
	logger     *zap.Logger
}

// NewProgressService constructs the progress aggregator.
func NewProgressService(courses courseReader, attendance progressRepository, roster rosterReader, cache *CacheService, ttl time.Duration, logger *zap.Logger) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProgressService{courses: courses, attendance: attendance, roster: roster, cache: cache, ttl: ttl, logger: logger}
}

// Progress returns the course report. Students only see their own row; the class figures are
// left intact. The boolean reports whether the report came from cache.
func (s *ProgressService) Progress(ctx context.Context, courseID string, claims *models.JWTClaims) (*models.CourseProgress, bool, error) {
	course, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return nil, false, err
	}
	studentView, err := s.authorize(ctx, course, claims)
	if err != nil {
		return nil, false, err
	}
	report, hit, err := s.report(ctx, course)
	if err != nil {
		return nil, false, err
	}
	if studentView {
		own := make([]models.StudentProgress, 0, 1)
		for _, row := range report.Students {
			if row.StudentID == claims.UserID {
				own = append(own, row)
			}
		}
		report.Students = own
	}
	return report, hit, nil
}

// Export renders the full course report for staff.
func (s *ProgressService) Export(ctx context.Context, courseID string, format export.Format, claims *models.JWTClaims) ([]byte, error) {
	course, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return nil, err
	}
	if !canManageCourse(course, claims, true) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to export this course")
	}
	report, _, err := s.report(ctx, course)
	if err != nil {
		return nil, err
	}

	doc := export.Report{
		Title: fmt.Sprintf("Progress - %s", report.CourseTitle),
		Summary: [][2]string{
			{"Total lectures", strconv.Itoa(report.TotalLectures)},
			{"Enrolled students", strconv.Itoa(report.EnrolledCount)},
			{"Class average (%)", formatPercent(report.ClassAverage)},
		},
		Columns: []string{"Student ID", "Student", "Present", "Progress (%)"},
	}
	for _, row := range report.Students {
		doc.Rows = append(doc.Rows, []string{row.StudentID, row.StudentName, strconv.Itoa(row.PresentCount), formatPercent(row.ProgressPercentage)})
	}
	out, err := export.RendererFor(format).Render(doc)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render progress report")
	}
	return out, nil
}

func (s *ProgressService) authorize(ctx context.Context, course *models.Course, claims *models.JWTClaims) (bool, error) {
	if canManageCourse(course, claims, true) {
		return false, nil
	}
	if claims != nil && claims.Role == models.RoleStudent {
		enrolled, err := s.roster.EnrolledAmong(ctx, course.ID, []string{claims.UserID})
		if err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
		}
		if enrolled[claims.UserID] {
			return true, nil
		}
	}
	return false, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this course")
}

func (s *ProgressService) report(ctx context.Context, course *models.Course) (*models.CourseProgress, bool, error) {
	key := progressCacheKey(course.ID)
	var cached models.CourseProgress
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached, true, nil
	}

	rows, err := s.attendance.PresentCounts(ctx, course.ID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate attendance")
	}
	report := ComputeProgress(course, rows)
	if err := s.cache.Set(ctx, key, report, s.ttl); err != nil {
		s.logger.Debug("progress cache write skipped", zap.String("course_id", course.ID), zap.Error(err))
	}
	return report, false, nil
}

// ComputeProgress derives per-student and class percentages from present counts.
// Percentages are rounded to two decimals; a course without lectures or students reports 0.
func ComputeProgress(course *models.Course, rows []models.StudentProgress) *models.CourseProgress {
	report := &models.CourseProgress{
		CourseID:      course.ID,
		CourseTitle:   course.Title,
		TotalLectures: course.TotalLectures,
		EnrolledCount: len(rows),
		Students:      make([]models.StudentProgress, 0, len(rows)),
	}
	for _, row := range rows {
		row.ProgressPercentage = percentage(row.PresentCount, course.TotalLectures)
		report.TotalPresent += row.PresentCount
		report.Students = append(report.Students, row)
	}
	report.ClassAverage = percentage(report.TotalPresent, report.EnrolledCount*course.TotalLectures)
	return report
}

func percentage(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*100*100) / 100
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
