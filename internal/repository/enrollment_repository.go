package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/edu-scheduling-api/internal/models"
)

// EnrollmentRepository handles persistence of enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs the repository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

func (r *EnrollmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts an enrollment. It reports false when the student was already enrolled.
func (r *EnrollmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, enrollment *models.Enrollment) (bool, error) {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	enrollment.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO enrollments (id, student_id, course_id, payment_id, created_at)
        VALUES ($1, $2, $3, $4, $5) ON CONFLICT (student_id, course_id) DO NOTHING`
	res, err := r.exec(exec).ExecContext(ctx, query, enrollment.ID, enrollment.StudentID, enrollment.CourseID, enrollment.PaymentID, enrollment.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert enrollment: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert enrollment: %w", err)
	}
	return n == 1, nil
}

// Exists reports whether the student is enrolled in the course.
func (r *EnrollmentRepository) Exists(ctx context.Context, exec sqlx.ExtContext, studentID, courseID string) (bool, error) {
	var exists bool
	const query = `SELECT EXISTS (SELECT 1 FROM enrollments WHERE student_id = $1 AND course_id = $2)`
	if err := sqlx.GetContext(ctx, r.exec(exec), &exists, query, studentID, courseID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// CountByCourse returns the number of enrolled students.
func (r *EnrollmentRepository) CountByCourse(ctx context.Context, exec sqlx.ExtContext, courseID string) (int, error) {
	var count int
	if err := sqlx.GetContext(ctx, r.exec(exec), &count, `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`, courseID); err != nil {
		return 0, fmt.Errorf("count enrollments: %w", err)
	}
	return count, nil
}

// EnrolledAmong returns the subset of studentIDs enrolled in the course.
func (r *EnrollmentRepository) EnrolledAmong(ctx context.Context, courseID string, studentIDs []string) (map[string]bool, error) {
	out := make(map[string]bool, len(studentIDs))
	if len(studentIDs) == 0 {
		return out, nil
	}
	var ids []string
	const query = `SELECT student_id FROM enrollments WHERE course_id = $1 AND student_id = ANY($2)`
	if err := r.db.SelectContext(ctx, &ids, query, courseID, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("list enrolled students: %w", err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
