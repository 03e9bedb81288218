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

func TestPaymentRepositoryMarkPaidOnlyOnce(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewPaymentRepository(db)
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	query := regexp.QuoteMeta("UPDATE payments SET paid = TRUE, refund_required = $2, paid_at = $3, updated_at = $3") + `\s+` +
		regexp.QuoteMeta("WHERE id = $1 AND paid = FALSE")
	mock.ExpectExec(query).WithArgs("pay-1", false, at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("pay-1", false, at).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkPaid(context.Background(), nil, "pay-1", false, at)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkPaid(context.Background(), nil, "pay-1", false, at)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentRepositoryFindByReferenceForUpdate(t *testing.T) {
	db, mock := newRepoMock(t)
	repo := NewPaymentRepository(db)
	now := time.Now()

	mock.ExpectQuery(`FROM payments WHERE provider_reference = \$1 FOR UPDATE`).
		WithArgs("cs_1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "student_id", "course_id", "provider_reference", "checkout_url", "amount",
			"currency", "paid", "refund_required", "paid_at", "created_at", "updated_at"}).
			AddRow("pay-1", "stu-1", "course-1", "cs_1", "https://pay", 1000, "usd", false, false, nil, now, now))
	mock.ExpectQuery(`FROM payments WHERE provider_reference = \$1 FOR UPDATE`).
		WithArgs("cs_missing").
		WillReturnError(sql.ErrNoRows)

	payment, err := repo.FindByReferenceForUpdate(context.Background(), nil, "cs_1")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), payment.Amount)
	assert.False(t, payment.Paid)

	_, err = repo.FindByReferenceForUpdate(context.Background(), nil, "cs_missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestPaymentRepositoryCountHolds(t *testing.T) {
	db, mock := newRepoMock(t)
	since := time.Now().Add(-30 * time.Minute)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(DISTINCT student_id) FROM payments")).
		WithArgs("course-1", "stu-1", since).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	n, err := NewPaymentRepository(db).CountHolds(context.Background(), nil, "course-1", "stu-1", since)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestPaymentRepositoryCreate(t *testing.T) {
	db, mock := newRepoMock(t)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO payments")).WillReturnResult(sqlmock.NewResult(0, 1))

	payment := &models.Payment{StudentID: "stu-1", CourseID: "course-1", ProviderReference: "cs_1", Amount: 1000, Currency: "usd"}
	require.NoError(t, NewPaymentRepository(db).Create(context.Background(), nil, payment))
	assert.NotEmpty(t, payment.ID)
	assert.False(t, payment.CreatedAt.IsZero())
}
