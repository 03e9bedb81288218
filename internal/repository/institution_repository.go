package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-scheduling-api/internal/models"
)

// InstitutionRepository reads institution profiles, memberships and dashboard aggregates.
type InstitutionRepository struct {
	db *sqlx.DB
}

// NewInstitutionRepository constructs the repository.
func NewInstitutionRepository(db *sqlx.DB) *InstitutionRepository {
	return &InstitutionRepository{db: db}
}

func (r *InstitutionRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns an institution profile.
func (r *InstitutionRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Institution, error) {
	const query = `SELECT user_id, name, payout_account_id, created_at, updated_at FROM institutions WHERE user_id = $1`
	var inst models.Institution
	if err := sqlx.GetContext(ctx, r.exec(exec), &inst, query, id); err != nil {
		return nil, err
	}
	return &inst, nil
}

// SetPayoutAccount stores the payout destination. It reports false when the institution does not exist.
func (r *InstitutionRepository) SetPayoutAccount(ctx context.Context, id, accountID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE institutions SET payout_account_id = $2, updated_at = $3 WHERE user_id = $1`, id, accountID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("update payout account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update payout account: %w", err)
	}
	return n > 0, nil
}

// AddStudent records institution membership for a student. Existing membership is kept.
func (r *InstitutionRepository) AddStudent(ctx context.Context, exec sqlx.ExtContext, institutionID, studentID string) error {
	const query = `INSERT INTO institution_students (institution_id, student_id, created_at) VALUES ($1, $2, $3)
        ON CONFLICT (institution_id, student_id) DO NOTHING`
	if _, err := r.exec(exec).ExecContext(ctx, query, institutionID, studentID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add institution student: %w", err)
	}
	return nil
}

// AddLecturer records institution membership for a lecturer. Existing membership is kept.
func (r *InstitutionRepository) AddLecturer(ctx context.Context, exec sqlx.ExtContext, institutionID, lecturerID string) error {
	const query = `INSERT INTO institution_lecturers (institution_id, lecturer_id, created_at) VALUES ($1, $2, $3)
        ON CONFLICT (institution_id, lecturer_id) DO NOTHING`
	if _, err := r.exec(exec).ExecContext(ctx, query, institutionID, lecturerID, time.Now().UTC()); err != nil {
		return fmt.Errorf("add institution lecturer: %w", err)
	}
	return nil
}

// Stats counts members and those attending or teaching a course running on day.
func (r *InstitutionRepository) Stats(ctx context.Context, institutionID string, day time.Time) (*models.InstitutionStats, error) {
	const query = `SELECT
        (SELECT COUNT(*) FROM institution_students WHERE institution_id = $1) AS total_students,
        (SELECT COUNT(DISTINCT e.student_id) FROM enrollments e JOIN courses c ON c.id = e.course_id
            WHERE c.institution_id = $1 AND c.starting_date <= $2 AND c.ending_date >= $2) AS active_students,
        (SELECT COUNT(*) FROM institution_lecturers WHERE institution_id = $1) AS total_lecturers,
        (SELECT COUNT(DISTINCT c.lecturer_id) FROM courses c
            WHERE c.institution_id = $1 AND c.lecturer_id IS NOT NULL AND c.starting_date <= $2 AND c.ending_date >= $2) AS active_lecturers,
        (SELECT COUNT(*) FROM courses WHERE institution_id = $1) AS total_courses`
	var stats models.InstitutionStats
	if err := r.db.GetContext(ctx, &stats, query, institutionID, day.Format("2006-01-02")); err != nil {
		return nil, fmt.Errorf("institution stats: %w", err)
	}
	return &stats, nil
}

// ScheduleRow is a course with its lecturer's display name.
type ScheduleRow struct {
	models.Course
	LecturerName *string `db:"lecturer_name"`
}

// ScheduleCourses lists the institution's courses with lecturer names, ordered by start time.
func (r *InstitutionRepository) ScheduleCourses(ctx context.Context, institutionID string) ([]ScheduleRow, error) {
	query := `SELECT ` + courseColumns + `, u.full_name AS lecturer_name
        FROM courses c LEFT JOIN users u ON u.id = c.lecturer_id
        WHERE c.institution_id = $1 ORDER BY c.start_time, c.id`
	var rows []ScheduleRow
	if err := r.db.SelectContext(ctx, &rows, query, institutionID); err != nil {
		return nil, fmt.Errorf("list schedule courses: %w", err)
	}
	return rows, nil
}
