package models

import "time"

// Exam is an assessment within a course.
type Exam struct {
	ID        string     `db:"id" json:"id"`
	CourseID  string     `db:"course_id" json:"course_id"`
	Title     string     `db:"title" json:"title"`
	MaxScore  float64    `db:"max_score" json:"max_score"`
	HeldOn    *time.Time `db:"held_on" json:"held_on,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

// Grade is a student's score on an exam.
type Grade struct {
	ID        string    `db:"id" json:"id"`
	ExamID    string    `db:"exam_id" json:"exam_id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Score     float64   `db:"score" json:"score"`
	GradedBy  *string   `db:"graded_by" json:"graded_by,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// GradeBatchResult summarises an add-or-edit grades call.
type GradeBatchResult struct {
	ExamID  string      `json:"exam_id"`
	Applied []Grade     `json:"applied"`
	Skipped []BatchSkip `json:"skipped"`
}
