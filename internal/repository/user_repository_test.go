package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-scheduling-api/internal/models"
)

func TestUserRepositoryCreateInTransaction(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO students")).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	tx, err := db.BeginTxx(context.Background(), nil)
	require.NoError(t, err)
	user := &models.User{ID: "stu-1", Email: "s@edu.test", FullName: "Stu", Role: models.RoleStudent}
	require.NoError(t, repo.Create(context.Background(), tx, user))
	require.NoError(t, repo.CreateStudent(context.Background(), tx, &models.Student{UserID: "stu-1"}))
	require.NoError(t, tx.Commit())
	assert.False(t, user.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryStudentContact(t *testing.T) {
	db, mock := newRepoMock(t)
	guardian := "parent@edu.test"
	mock.ExpectQuery(regexp.QuoteMeta("FROM students s JOIN users u ON u.id = s.user_id WHERE s.user_id = $1")).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "email", "full_name", "guardian_email"}).
			AddRow("stu-1", "s@edu.test", "Stu", guardian))

	contact, err := NewUserRepository(db).StudentContact(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s@edu.test", guardian}, contact.Recipients())
}

func TestUserRepositoryLockLecturerMissing(t *testing.T) {
	db, mock := newRepoMock(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT user_id FROM lecturers WHERE user_id = $1 FOR UPDATE")).
		WithArgs("lec-9").
		WillReturnError(sql.ErrNoRows)

	err := NewUserRepository(db).LockLecturer(context.Background(), nil, "lec-9")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestInstitutionRepositoryStats(t *testing.T) {
	db, mock := newRepoMock(t)
	day := time.Date(2024, 3, 6, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("(SELECT COUNT(*) FROM institution_students WHERE institution_id = $1) AS total_students")).
		WithArgs("inst-1", "2024-03-06").
		WillReturnRows(sqlmock.NewRows([]string{"total_students", "active_students", "total_lecturers", "active_lecturers", "total_courses"}).
			AddRow(10, 4, 3, 1, 5))

	stats, err := NewInstitutionRepository(db).Stats(context.Background(), "inst-1", day)
	require.NoError(t, err)
	assert.Equal(t, models.InstitutionStats{TotalStudents: 10, ActiveStudents: 4, TotalLecturers: 3, ActiveLecturers: 1, TotalCourses: 5}, *stats)
}

func TestInstitutionRepositoryAddStudentKeepsExistingMembership(t *testing.T) {
	db, mock := newRepoMock(t)
	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (institution_id, student_id) DO NOTHING")).
		WithArgs("inst-1", "stu-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, NewInstitutionRepository(db).AddStudent(context.Background(), nil, "inst-1", "stu-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInstitutionRepositorySetPayoutAccountMissing(t *testing.T) {
	db, mock := newRepoMock(t)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE institutions SET payout_account_id = $2")).
		WithArgs("inst-x", "acct_1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := NewInstitutionRepository(db).SetPayoutAccount(context.Background(), "inst-x", "acct_1")
	require.NoError(t, err)
	assert.False(t, ok)
}
