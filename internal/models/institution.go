package models

// InstitutionStats are the dashboard headline numbers.
type InstitutionStats struct {
	TotalStudents   int `db:"total_students" json:"total_students"`
	ActiveStudents  int `db:"active_students" json:"active_students"`
	TotalLecturers  int `db:"total_lecturers" json:"total_lecturers"`
	ActiveLecturers int `db:"active_lecturers" json:"active_lecturers"`
	TotalCourses    int `db:"total_courses" json:"total_courses"`
}

// DocumentCheck is the result of classifying an uploaded identity document.
type DocumentCheck struct {
	DocumentPercentage    float64 `json:"document_percentage"`
	NonDocumentPercentage float64 `json:"non_document_percentage"`
	IsDocument            bool    `json:"is_document"`
}
