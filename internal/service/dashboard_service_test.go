package service

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-scheduling-api/internal/dto"
	"github.com/noah-isme/edu-scheduling-api/internal/models"
	"github.com/noah-isme/edu-scheduling-api/internal/repository"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
)

type fakeDashboardRepo struct {
	stats       *models.InstitutionStats
	statsDay    time.Time
	rows        []repository.ScheduleRow
	scheduleHit int
	payouts     map[string]string
}

func (f *fakeDashboardRepo) Stats(ctx context.Context, institutionID string, day time.Time) (*models.InstitutionStats, error) {
	f.statsDay = day
	return f.stats, nil
}

func (f *fakeDashboardRepo) ScheduleCourses(ctx context.Context, institutionID string) ([]repository.ScheduleRow, error) {
	f.scheduleHit++
	return f.rows, nil
}

func (f *fakeDashboardRepo) SetPayoutAccount(ctx context.Context, id, accountID string) (bool, error) {
	if _, ok := f.payouts[id]; !ok {
		return false, nil
	}
	f.payouts[id] = accountID
	return true, nil
}

func scheduleRow(id, start string, days ...string) repository.ScheduleRow {
	return repository.ScheduleRow{Course: models.Course{ID: id, Title: id, Days: pq.StringArray(days), StartTime: start, EndTime: "23:00"}}
}

func TestDashboardWeeklyScheduleGroupsAndSorts(t *testing.T) {
	repo := &fakeDashboardRepo{rows: []repository.ScheduleRow{
		scheduleRow("late", "14:00", "monday", "friday"),
		scheduleRow("early", "08:00", "monday"),
	}}
	repo.rows[1].LecturerName = strPtr("Dr. Ada")
	svc := NewDashboardService(DashboardServiceParams{Repo: repo, Cache: NewCacheService(newMemCache(), nil, 0, nil, true)})
	claims := claimsFor("inst-1", models.RoleInstitution)

	schedule, hit, err := svc.WeeklySchedule(context.Background(), claims)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Len(t, schedule, 7)
	require.Len(t, schedule["monday"], 2)
	assert.Equal(t, "early", schedule["monday"][0].CourseID)
	assert.Equal(t, "Dr. Ada", *schedule["monday"][0].LecturerName)
	assert.Equal(t, "late", schedule["monday"][1].CourseID)
	assert.Len(t, schedule["friday"], 1)
	assert.Empty(t, schedule["sunday"])

	_, hit, err = svc.WeeklySchedule(context.Background(), claims)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, repo.scheduleHit)
}

func TestDashboardStatsUsesToday(t *testing.T) {
	repo := &fakeDashboardRepo{stats: &models.InstitutionStats{TotalStudents: 4, ActiveStudents: 2}}
	svc := NewDashboardService(DashboardServiceParams{Repo: repo})
	svc.now = func() time.Time { return date(2024, 3, 6) }

	stats, err := svc.Stats(context.Background(), claimsFor("inst-1", models.RoleInstitution))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ActiveStudents)
	assert.Equal(t, date(2024, 3, 6), repo.statsDay)

	_, err = svc.Stats(context.Background(), claimsFor(studentA, models.RoleStudent))
	requireAppError(t, err, http.StatusForbidden, appErrors.ErrForbidden.Code)
}

func TestDashboardSetPayout(t *testing.T) {
	repo := &fakeDashboardRepo{payouts: map[string]string{"inst-1": ""}}
	svc := NewDashboardService(DashboardServiceParams{Repo: repo})

	err := svc.SetPayout(context.Background(), dto.PayoutRequest{PayoutAccountID: "acct_42"}, claimsFor("inst-1", models.RoleInstitution))
	require.NoError(t, err)
	assert.Equal(t, "acct_42", repo.payouts["inst-1"])

	err = svc.SetPayout(context.Background(), dto.PayoutRequest{PayoutAccountID: "bank-42"}, claimsFor("inst-1", models.RoleInstitution))
	requireAppError(t, err, http.StatusBadRequest, appErrors.ErrValidation.Code)

	err = svc.SetPayout(context.Background(), dto.PayoutRequest{PayoutAccountID: "acct_1"}, claimsFor("inst-9", models.RoleInstitution))
	requireAppError(t, err, http.StatusNotFound, appErrors.ErrNotFound.Code)
}
