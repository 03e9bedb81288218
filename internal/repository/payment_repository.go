package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-scheduling-api/internal/models"
)

const paymentColumns = `id, student_id, course_id, provider_reference, checkout_url, amount, currency, paid, refund_required,
        paid_at, created_at, updated_at`

// PaymentRepository persists checkout payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an unpaid payment.
func (r *PaymentRepository) Create(ctx context.Context, exec sqlx.ExtContext, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	payment.CreatedAt = now
	payment.UpdatedAt = now
	const query = `INSERT INTO payments (id, student_id, course_id, provider_reference, checkout_url, amount, currency, paid,
        refund_required, created_at, updated_at)
        VALUES (:id, :student_id, :course_id, :provider_reference, :checkout_url, :amount, :currency, :paid,
        :refund_required, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, payment); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// FindByReferenceForUpdate locks the payment carrying the provider reference.
func (r *PaymentRepository) FindByReferenceForUpdate(ctx context.Context, exec sqlx.ExtContext, reference string) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider_reference = $1 FOR UPDATE`
	var payment models.Payment
	if err := sqlx.GetContext(ctx, r.exec(exec), &payment, query, reference); err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkPaid flips an unpaid payment to paid. It reports false when the payment was already paid.
func (r *PaymentRepository) MarkPaid(ctx context.Context, exec sqlx.ExtContext, id string, refundRequired bool, at time.Time) (bool, error) {
	const query = `UPDATE payments SET paid = TRUE, refund_required = $2, paid_at = $3, updated_at = $3
        WHERE id = $1 AND paid = FALSE`
	res, err := r.exec(exec).ExecContext(ctx, query, id, refundRequired, at)
	if err != nil {
		return false, fmt.Errorf("mark payment paid: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark payment paid: %w", err)
	}
	return n == 1, nil
}

// CountHolds counts unpaid payments for the course created after since, excluding one student.
func (r *PaymentRepository) CountHolds(ctx context.Context, exec sqlx.ExtContext, courseID, excludeStudentID string, since time.Time) (int, error) {
	const query = `SELECT COUNT(DISTINCT student_id) FROM payments
        WHERE course_id = $1 AND paid = FALSE AND student_id <> $2 AND created_at > $3`
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, query, courseID, excludeStudentID, since); err != nil {
		return 0, fmt.Errorf("count seat holds: %w", err)
	}
	return count, nil
}

// ListPending returns unpaid payments created within (from, to], oldest first.
func (r *PaymentRepository) ListPending(ctx context.Context, from, to time.Time, limit int) ([]models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
        WHERE paid = FALSE AND created_at > $1 AND created_at <= $2 ORDER BY created_at LIMIT $3`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, from, to, limit); err != nil {
		return nil, fmt.Errorf("list pending payments: %w", err)
	}
	return payments, nil
}
