package service

import (
	"context"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-scheduling-api/internal/dto"
	"github.com/noah-isme/edu-scheduling-api/internal/models"
	"github.com/noah-isme/edu-scheduling-api/internal/repository"
	"github.com/noah-isme/edu-scheduling-api/internal/scheduling"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
)

type dashboardRepository interface {
	Stats(ctx context.Context, institutionID string, day time.Time) (*models.InstitutionStats, error)
	ScheduleCourses(ctx context.Context, institutionID string) ([]repository.ScheduleRow, error)
	SetPayoutAccount(ctx context.Context, id, accountID string) (bool, error)
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Repo        dashboardRepository
	Cache       *CacheService
	ScheduleTTL time.Duration
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// DashboardService serves an institution's headline numbers, weekly timetable and payout settings.
type DashboardService struct {
	repo        dashboardRepository
	cache       *CacheService
	scheduleTTL time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewDashboardService constructs the institution dashboard service.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	if params.Validator == nil {
		params.Validator = validator.New()
	}
	if params.Logger == nil {
		params.Logger = zap.NewNop()
	}
	return &DashboardService{
		repo:        params.Repo,
		cache:       params.Cache,
		scheduleTTL: params.ScheduleTTL,
		validator:   params.Validator,
		logger:      params.Logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Stats returns member totals and how many of them have a course running today.
func (s *DashboardService) Stats(ctx context.Context, claims *models.JWTClaims) (*models.InstitutionStats, error) {
	if err := requireInstitution(claims); err != nil {
		return nil, err
	}
	stats, err := s.repo.Stats(ctx, claims.UserID, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution stats")
	}
	return stats, nil
}

// WeeklySchedule groups the institution's courses by weekday, each day ordered by start time.
func (s *DashboardService) WeeklySchedule(ctx context.Context, claims *models.JWTClaims) (models.WeeklySchedule, bool, error) {
	if err := requireInstitution(claims); err != nil {
		return nil, false, err
	}
	key := scheduleCacheKey(claims.UserID)
	var cached models.WeeklySchedule
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, true, nil
	}

	rows, err := s.repo.ScheduleCourses(ctx, claims.UserID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schedule")
	}
	schedule := buildWeeklySchedule(rows)
	_ = s.cache.Set(ctx, key, schedule, s.scheduleTTL)
	return schedule, false, nil
}

// SetPayout stores the account that receives the institution's course payments.
func (s *DashboardService) SetPayout(ctx context.Context, req dto.PayoutRequest, claims *models.JWTClaims) error {
	if err := requireInstitution(claims); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payout payload")
	}
	ok, err := s.repo.SetPayoutAccount(ctx, claims.UserID, req.PayoutAccountID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payout account")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "institution profile not found")
	}
	s.logger.Info("payout account updated", zap.String("institution_id", claims.UserID))
	return nil
}

func buildWeeklySchedule(rows []repository.ScheduleRow) models.WeeklySchedule {
	schedule := make(models.WeeklySchedule, len(scheduling.Week))
	for _, day := range scheduling.Week {
		schedule[string(day)] = []models.WeeklySlot{}
	}
	for _, row := range rows {
		for _, day := range row.ScheduleDays() {
			schedule[string(day)] = append(schedule[string(day)], models.WeeklySlot{
				CourseID:     row.ID,
				Title:        row.Title,
				StartTime:    row.StartTime,
				EndTime:      row.EndTime,
				LecturerName: row.LecturerName,
			})
		}
	}
	for day := range schedule {
		slots := schedule[day]
		sort.SliceStable(slots, func(i, j int) bool {
			return slots[i].StartTime < slots[j].StartTime
		})
	}
	return schedule
}

func requireInstitution(claims *models.JWTClaims) error {
	if claims == nil {
		return appErrors.Clone(appErrors.ErrUnauthorized, "missing user context")
	}
	if claims.Role != models.RoleInstitution {
		return appErrors.Clone(appErrors.ErrForbidden, "institution access required")
	}
	return nil
}
