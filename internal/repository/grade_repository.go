package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-scheduling-api/internal/models"
)

// GradeRepository persists exams and their grades.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository constructs the repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// CreateExam inserts an exam.
func (r *GradeRepository) CreateExam(ctx context.Context, exam *models.Exam) error {
	if exam.ID == "" {
		exam.ID = uuid.NewString()
	}
	exam.CreatedAt = time.Now().UTC()
	const query = `INSERT INTO exams (id, course_id, title, max_score, held_on, created_at)
        VALUES (:id, :course_id, :title, :max_score, :held_on, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, exam); err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}
	return nil
}

// FindExam returns an exam by id.
func (r *GradeRepository) FindExam(ctx context.Context, id string) (*models.Exam, error) {
	const query = `SELECT id, course_id, title, max_score, held_on, created_at FROM exams WHERE id = $1`
	var exam models.Exam
	if err := r.db.GetContext(ctx, &exam, query, id); err != nil {
		return nil, err
	}
	return &exam, nil
}

// Upsert writes a grade keyed by (exam, student). Re-grading overwrites the score.
func (r *GradeRepository) Upsert(ctx context.Context, grade *models.Grade) error {
	now := time.Now().UTC()
	const query = `INSERT INTO grades (id, exam_id, student_id, score, graded_by, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $6)
        ON CONFLICT (exam_id, student_id)
        DO UPDATE SET score = EXCLUDED.score, graded_by = EXCLUDED.graded_by, updated_at = EXCLUDED.updated_at
        RETURNING id, created_at, updated_at`
	row := r.db.QueryRowxContext(ctx, query, uuid.NewString(), grade.ExamID, grade.StudentID, grade.Score, grade.GradedBy, now)
	if err := row.Scan(&grade.ID, &grade.CreatedAt, &grade.UpdatedAt); err != nil {
		return fmt.Errorf("upsert grade: %w", err)
	}
	return nil
}

// ListByExam returns the grades of an exam ordered by student.
func (r *GradeRepository) ListByExam(ctx context.Context, examID string) ([]models.Grade, error) {
	const query = `SELECT id, exam_id, student_id, score, graded_by, created_at, updated_at
        FROM grades WHERE exam_id = $1 ORDER BY student_id`
	var grades []models.Grade
	if err := r.db.SelectContext(ctx, &grades, query, examID); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return grades, nil
}
