package models

// StudentProgress is a student's attendance completion for one course.
type StudentProgress struct {
	StudentID          string  `db:"student_id" json:"student_id"`
	StudentName        string  `db:"student_name" json:"student_name"`
	PresentCount       int     `db:"present_count" json:"present_count"`
	ProgressPercentage float64 `db:"-" json:"progress_percentage"`
}

// CourseProgress aggregates attendance completion across enrolled students.
type CourseProgress struct {
	CourseID      string            `json:"course_id"`
	CourseTitle   string            `json:"course_title"`
	TotalLectures int               `json:"total_lectures"`
	EnrolledCount int               `json:"enrolled_count"`
	TotalPresent  int               `json:"total_present"`
	ClassAverage  float64           `json:"class_average_percentage"`
	Students      []StudentProgress `json:"students"`
}
