package dto

// AttendanceRecord is one student's mark for a lecture.
type AttendanceRecord struct {
	StudentID string `json:"student_id"`
	Status    string `json:"status"`
}

// MarkAttendanceRequest marks a batch of students for one lecture.
type MarkAttendanceRequest struct {
	LectureNumber int                `json:"lecture_number" validate:"required"`
	Records       []AttendanceRecord `json:"records" validate:"required,min=1"`
}
