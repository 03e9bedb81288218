package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-scheduling-api/internal/models"
)

// AttendanceRepository persists per-lecture attendance marks.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Upsert writes a mark keyed by (course, student, lecture_number). Re-marking overwrites the status.
func (r *AttendanceRepository) Upsert(ctx context.Context, record *models.Attendance) error {
	now := time.Now().UTC()
	const query = `INSERT INTO attendance (id, course_id, student_id, lecture_number, status, marked_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
        ON CONFLICT (course_id, student_id, lecture_number)
        DO UPDATE SET status = EXCLUDED.status, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at
        RETURNING id, created_at, updated_at`
	row := r.db.QueryRowxContext(ctx, query, uuid.NewString(), record.CourseID, record.StudentID, record.LectureNumber,
		record.Status, record.MarkedBy, now)
	if err := row.Scan(&record.ID, &record.CreatedAt, &record.UpdatedAt); err != nil {
		return fmt.Errorf("upsert attendance: %w", err)
	}
	return nil
}

// ListByLecture returns the marks for one lecture ordered by student.
func (r *AttendanceRepository) ListByLecture(ctx context.Context, courseID string, lecture int) ([]models.Attendance, error) {
	const query = `SELECT id, course_id, student_id, lecture_number, status, marked_by, created_at, updated_at
        FROM attendance WHERE course_id = $1 AND lecture_number = $2 ORDER BY student_id`
	var rows []models.Attendance
	if err := r.db.SelectContext(ctx, &rows, query, courseID, lecture); err != nil {
		return nil, fmt.Errorf("list attendance: %w", err)
	}
	return rows, nil
}

// PresentCounts returns one row per enrolled student with the number of in-range lectures marked present.
func (r *AttendanceRepository) PresentCounts(ctx context.Context, courseID string) ([]models.StudentProgress, error) {
	const query = `SELECT e.student_id, u.full_name AS student_name,
        COUNT(a.id) FILTER (WHERE a.status = 'present' AND a.lecture_number <= c.total_lectures) AS present_count
        FROM enrollments e
        JOIN courses c ON c.id = e.course_id
        JOIN users u ON u.id = e.student_id
        LEFT JOIN attendance a ON a.course_id = e.course_id AND a.student_id = e.student_id
        WHERE e.course_id = $1
        GROUP BY e.student_id, u.full_name
        ORDER BY u.full_name, e.student_id`
	var rows []models.StudentProgress
	if err := r.db.SelectContext(ctx, &rows, query, courseID); err != nil {
		return nil, fmt.Errorf("count present lectures: %w", err)
	}
	return rows, nil
}
