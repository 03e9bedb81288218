package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-scheduling-api/internal/models"
)

const courseColumns = `c.id, c.institution_id, c.lecturer_id, c.title, c.description, c.starting_date, c.ending_date, c.days,
        to_char(c.start_time, 'HH24:MI') AS start_time, to_char(c.end_time, 'HH24:MI') AS end_time,
        c.capacity, c.price, c.total_lectures, c.created_at, c.updated_at`

// CourseRepository persists courses.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// Create inserts a course assigning an id when missing.
func (r *CourseRepository) Create(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	course.CreatedAt = now
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, institution_id, lecturer_id, title, description, starting_date, ending_date, days,
        start_time, end_time, capacity, price, total_lectures, created_at, updated_at)
        VALUES (:id, :institution_id, :lecturer_id, :title, :description, :starting_date, :ending_date, :days,
        :start_time, :end_time, :capacity, :price, :total_lectures, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, course); err != nil {
		return fmt.Errorf("insert course: %w", err)
	}
	return nil
}

// Update replaces the mutable fields of a course.
func (r *CourseRepository) Update(ctx context.Context, exec sqlx.ExtContext, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET lecturer_id = :lecturer_id, title = :title, description = :description,
        starting_date = :starting_date, ending_date = :ending_date, days = :days, start_time = :start_time,
        end_time = :end_time, capacity = :capacity, price = :price, total_lectures = :total_lectures,
        updated_at = :updated_at WHERE id = :id`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Delete removes a course. Attendance, exams and grades cascade.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// FindByID returns a course by id.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses c WHERE c.id = $1`
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// FindByIDForUpdate locks the course row for the rest of the transaction.
func (r *CourseRepository) FindByIDForUpdate(ctx context.Context, exec sqlx.ExtContext, id string) (*models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses c WHERE c.id = $1 FOR UPDATE`
	var course models.Course
	if err := sqlx.GetContext(ctx, r.exec(exec), &course, query, id); err != nil {
		return nil, err
	}
	return &course, nil
}

// List returns a page of courses matching filter ordered by starting date.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	var conditions []string
	var args []interface{}

	if filter.InstitutionID != "" {
		args = append(args, filter.InstitutionID)
		conditions = append(conditions, fmt.Sprintf("c.institution_id = $%d", len(args)))
	}
	if filter.LecturerID != "" {
		args = append(args, filter.LecturerID)
		conditions = append(conditions, fmt.Sprintf("c.lecturer_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM enrollments e WHERE e.course_id = c.id AND e.student_id = $%d)", len(args)))
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}

	query := fmt.Sprintf(`SELECT %s FROM courses c%s ORDER BY c.starting_date DESC, c.id LIMIT %d OFFSET %d`,
		courseColumns, clause, size, (page-1)*size)
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM courses c`+clause, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// ListByLecturer returns every course the lecturer teaches in any institution, ordered by id.
func (r *CourseRepository) ListByLecturer(ctx context.Context, exec sqlx.ExtContext, lecturerID string) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses c WHERE c.lecturer_id = $1 ORDER BY c.id`
	var courses []models.Course
	if err := sqlx.SelectContext(ctx, r.exec(exec), &courses, query, lecturerID); err != nil {
		return nil, fmt.Errorf("list lecturer courses: %w", err)
	}
	return courses, nil
}

// ListByStudent returns every course the student is enrolled in, ordered by id.
func (r *CourseRepository) ListByStudent(ctx context.Context, exec sqlx.ExtContext, studentID string) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses c
        JOIN enrollments e ON e.course_id = c.id WHERE e.student_id = $1 ORDER BY c.id`
	var courses []models.Course
	if err := sqlx.SelectContext(ctx, r.exec(exec), &courses, query, studentID); err != nil {
		return nil, fmt.Errorf("list student courses: %w", err)
	}
	return courses, nil
}

// HasPayments reports whether any payment references the course.
func (r *CourseRepository) HasPayments(ctx context.Context, courseID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM payments WHERE course_id = $1)`, courseID); err != nil {
		return false, fmt.Errorf("check course payments: %w", err)
	}
	return exists, nil
}

// HasAttendance reports whether attendance was marked for the course.
func (r *CourseRepository) HasAttendance(ctx context.Context, courseID string) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM attendance WHERE course_id = $1)`, courseID); err != nil {
		return false, fmt.Errorf("check course attendance: %w", err)
	}
	return exists, nil
}
