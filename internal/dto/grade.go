package dto

// CreateExamRequest adds an exam to a course.
type CreateExamRequest struct {
	Title    string  `json:"title" validate:"required,max=200"`
	MaxScore float64 `json:"max_score" validate:"gte=0"`
	HeldOn   string  `json:"held_on" validate:"omitempty,datetime=2006-01-02"`
}

// GradeRecord is one student's score.
type GradeRecord struct {
	StudentID string  `json:"student_id"`
	Score     float64 `json:"score"`
}

// GradeBatchRequest adds or edits grades for an exam.
type GradeBatchRequest struct {
	Records []GradeRecord `json:"records" validate:"required,min=1"`
}
