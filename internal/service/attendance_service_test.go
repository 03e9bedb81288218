package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-scheduling-api/internal/dto"
	"github.com/noah-isme/edu-scheduling-api/internal/models"
	appErrors "github.com/noah-isme/edu-scheduling-api/pkg/errors"
)

func newAttendanceFixture() (*AttendanceService, *memStore, *memCache) {
	store := newMemStore()
	store.addCourse(models.Course{ID: "course-1", InstitutionID: "inst-1", LecturerID: strPtr(lecturerA), Title: "Algebra", TotalLectures: 10})
	store.enroll(studentA, "course-1")
	store.enroll(studentB, "course-1")
	repo := newMemCache()
	cache := NewCacheService(repo, nil, 0, nil, true)
	svc := NewAttendanceService(memCourses{store}, memAttendance{store}, memEnrollments{store}, cache, nil, nil)
	return svc, store, repo
}

func markRequest(lecture int, records ...dto.AttendanceRecord) dto.MarkAttendanceRequest {
	return dto.MarkAttendanceRequest{LectureNumber: lecture, Records: records}
}

func TestAttendanceMarkRejectsLectureOutsideCourse(t *testing.T) {
	svc, store, _ := newAttendanceFixture()
	claims := claimsFor(lecturerA, models.RoleLecturer)

	for _, lecture := range []int{11, -1} {
		_, err := svc.Mark(context.Background(), "course-1", markRequest(lecture, dto.AttendanceRecord{StudentID: studentA, Status: "present"}), claims)
		requireAppError(t, err, http.StatusBadRequest, appErrors.ErrValidation.Code)
	}
	assert.Empty(t, store.attendance)
}

func TestAttendanceMarkSkipsBadRecords(t *testing.T) {
	svc, _, _ := newAttendanceFixture()

	result, err := svc.Mark(context.Background(), "course-1", markRequest(1,
		dto.AttendanceRecord{StudentID: studentA, Status: "Present"},
		dto.AttendanceRecord{StudentID: studentB, Status: "sleeping"},
		dto.AttendanceRecord{StudentID: studentC, Status: "present"},
	), claimsFor("inst-1", models.RoleInstitution))
	require.NoError(t, err)

	require.Len(t, result.Applied, 1)
	assert.Equal(t, models.AttendancePresent, result.Applied[0].Status)
	assert.Equal(t, []models.BatchSkip{
		{StudentID: studentB, Reason: models.SkipInvalidStatus},
		{StudentID: studentC, Reason: models.SkipNotEnrolled},
	}, result.Skipped)
}

type recordingRoster struct {
	inner rosterReader
	asked [][]string
}

func (r *recordingRoster) EnrolledAmong(ctx context.Context, courseID string, studentIDs []string) (map[string]bool, error) {
	r.asked = append(r.asked, studentIDs)
	return r.inner.EnrolledAmong(ctx, courseID, studentIDs)
}

func TestAttendanceMarkMalformedRecordDoesNotFailBatch(t *testing.T) {
	store := newMemStore()
	store.addCourse(models.Course{ID: "course-1", InstitutionID: "inst-1", LecturerID: strPtr(lecturerA), Title: "Algebra", TotalLectures: 10})
	store.enroll(studentA, "course-1")
	store.enroll(studentB, "course-1")
	roster := &recordingRoster{inner: memEnrollments{store}}
	svc := NewAttendanceService(memCourses{store}, memAttendance{store}, roster, nil, nil, nil)

	result, err := svc.Mark(context.Background(), "course-1", markRequest(3,
		dto.AttendanceRecord{StudentID: "student-42", Status: "present"},
		dto.AttendanceRecord{StudentID: studentB, Status: ""},
		dto.AttendanceRecord{StudentID: studentA, Status: "late"},
	), claimsFor(lecturerA, models.RoleLecturer))
	require.NoError(t, err)

	require.Len(t, result.Applied, 1)
	assert.Equal(t, studentA, result.Applied[0].StudentID)
	assert.Equal(t, []models.BatchSkip{
		{StudentID: "student-42", Reason: models.SkipInvalidStudent},
		{StudentID: studentB, Reason: models.SkipInvalidStatus},
	}, result.Skipped)
	require.Len(t, roster.asked, 1)
	assert.ElementsMatch(t, []string{studentA, studentB}, roster.asked[0])
}

func TestAttendanceRemarkOverwrites(t *testing.T) {
	svc, store, _ := newAttendanceFixture()
	claims := claimsFor(lecturerA, models.RoleLecturer)

	_, err := svc.Mark(context.Background(), "course-1", markRequest(1, dto.AttendanceRecord{StudentID: studentA, Status: "present"}), claims)
	require.NoError(t, err)
	_, err = svc.Mark(context.Background(), "course-1", markRequest(1, dto.AttendanceRecord{StudentID: studentA, Status: "absent"}), claims)
	require.NoError(t, err)

	records, err := svc.ListLecture(context.Background(), "course-1", 1, claims)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.AttendanceAbsent, records[0].Status)
	assert.Len(t, store.attendance, 1)
}

func TestAttendanceMarkRequiresCourseStaff(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	req := markRequest(1, dto.AttendanceRecord{StudentID: studentA, Status: "present"})

	_, err := svc.Mark(context.Background(), "course-1", req, claimsFor(studentA, models.RoleStudent))
	requireAppError(t, err, http.StatusForbidden, appErrors.ErrForbidden.Code)

	_, err = svc.Mark(context.Background(), "course-1", req, claimsFor("inst-2", models.RoleInstitution))
	requireAppError(t, err, http.StatusForbidden, appErrors.ErrForbidden.Code)

	_, err = svc.Mark(context.Background(), "missing", req, claimsFor(lecturerA, models.RoleLecturer))
	requireAppError(t, err, http.StatusNotFound, appErrors.ErrNotFound.Code)
}

func TestAttendanceMarkInvalidatesProgress(t *testing.T) {
	svc, _, cache := newAttendanceFixture()
	require.NoError(t, cache.Set(context.Background(), progressCacheKey("course-1"), models.CourseProgress{CourseID: "course-1"}, 0))

	_, err := svc.Mark(context.Background(), "course-1", markRequest(2, dto.AttendanceRecord{StudentID: studentA, Status: "late"}), claimsFor(lecturerA, models.RoleLecturer))
	require.NoError(t, err)
	assert.False(t, cache.has(progressCacheKey("course-1")))
}
