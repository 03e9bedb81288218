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

func newGradeFixture(t *testing.T) (*GradeService, *memStore, *recordingNotifier, *models.Exam) {
	t.Helper()
	store := newMemStore()
	store.addCourse(models.Course{ID: "course-1", InstitutionID: "inst-1", LecturerID: strPtr(lecturerA), TotalLectures: 10})
	store.enroll(studentA, "course-1")
	notifier := &recordingNotifier{}
	svc := NewGradeService(memCourses{store}, memGrades{store}, memEnrollments{store}, notifier, nil, nil)

	exam, err := svc.CreateExam(context.Background(), "course-1", dto.CreateExamRequest{Title: "Midterm", MaxScore: 100, HeldOn: "2024-03-20"}, claimsFor(lecturerA, models.RoleLecturer))
	require.NoError(t, err)
	return svc, store, notifier, exam
}

func TestGradeCreateExam(t *testing.T) {
	_, store, _, exam := newGradeFixture(t)
	assert.Equal(t, "course-1", exam.CourseID)
	require.NotNil(t, exam.HeldOn)
	assert.Equal(t, date(2024, 3, 20), *exam.HeldOn)
	assert.Contains(t, store.exams, exam.ID)
}

func TestGradeCreateExamRequiresStaff(t *testing.T) {
	svc, _, _, _ := newGradeFixture(t)
	_, err := svc.CreateExam(context.Background(), "course-1", dto.CreateExamRequest{Title: "Final", MaxScore: 50}, claimsFor(studentA, models.RoleStudent))
	requireAppError(t, err, http.StatusForbidden, appErrors.ErrForbidden.Code)

	_, err = svc.CreateExam(context.Background(), "course-1", dto.CreateExamRequest{Title: "Final", MaxScore: -5}, claimsFor(lecturerA, models.RoleLecturer))
	requireAppError(t, err, http.StatusBadRequest, appErrors.ErrValidation.Code)
}

func TestGradeBatchSkipsMalformedStudentID(t *testing.T) {
	svc, _, notifier, exam := newGradeFixture(t)

	result, err := svc.Grade(context.Background(), exam.ID, dto.GradeBatchRequest{Records: []dto.GradeRecord{
		{StudentID: "", Score: 40},
		{StudentID: "not-a-student", Score: 40},
		{StudentID: studentA, Score: 40},
	}}, claimsFor(lecturerA, models.RoleLecturer))
	require.NoError(t, err)

	require.Len(t, result.Applied, 1)
	assert.Equal(t, studentA, result.Applied[0].StudentID)
	assert.Equal(t, []models.BatchSkip{
		{StudentID: "", Reason: models.SkipInvalidStudent},
		{StudentID: "not-a-student", Reason: models.SkipInvalidStudent},
	}, result.Skipped)
	assert.Equal(t, []string{studentA}, notifier.graded)
}

func TestGradeBatchBoundsScores(t *testing.T) {
	svc, _, notifier, exam := newGradeFixture(t)

	result, err := svc.Grade(context.Background(), exam.ID, dto.GradeBatchRequest{Records: []dto.GradeRecord{
		{StudentID: studentA, Score: 150},
		{StudentID: studentA, Score: 85},
		{StudentID: studentB, Score: 70},
		{StudentID: studentA, Score: -1},
	}}, claimsFor(lecturerA, models.RoleLecturer))
	require.NoError(t, err)

	require.Len(t, result.Applied, 1)
	assert.Equal(t, 85.0, result.Applied[0].Score)
	assert.Equal(t, []models.BatchSkip{
		{StudentID: studentA, Reason: models.SkipScoreRange},
		{StudentID: studentB, Reason: models.SkipNotEnrolled},
		{StudentID: studentA, Reason: models.SkipScoreRange},
	}, result.Skipped)
	assert.Equal(t, []string{studentA}, notifier.graded)

	grades, err := svc.ListGrades(context.Background(), exam.ID, claimsFor("inst-1", models.RoleInstitution))
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, 85.0, grades[0].Score)
}

func TestGradeEditKeepsOneRow(t *testing.T) {
	svc, _, _, exam := newGradeFixture(t)
	claims := claimsFor(lecturerA, models.RoleLecturer)

	for _, score := range []float64{60, 100} {
		_, err := svc.Grade(context.Background(), exam.ID, dto.GradeBatchRequest{Records: []dto.GradeRecord{{StudentID: studentA, Score: score}}}, claims)
		require.NoError(t, err)
	}
	grades, err := svc.ListGrades(context.Background(), exam.ID, claims)
	require.NoError(t, err)
	require.Len(t, grades, 1)
	assert.Equal(t, 100.0, grades[0].Score)
}

func TestGradeUnknownExam(t *testing.T) {
	svc, _, _, _ := newGradeFixture(t)
	_, err := svc.Grade(context.Background(), "missing", dto.GradeBatchRequest{Records: []dto.GradeRecord{{StudentID: studentA, Score: 1}}}, claimsFor(lecturerA, models.RoleLecturer))
	requireAppError(t, err, http.StatusNotFound, appErrors.ErrNotFound.Code)
}
