package models

import "time"

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceLate    AttendanceStatus = "late"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceLate:
		return true
	default:
		return false
	}
}

// Attendance is one student's status for one lecture of a course.
type Attendance struct {
	ID            string           `db:"id" json:"id"`
	CourseID      string           `db:"course_id" json:"course_id"`
	StudentID     string           `db:"student_id" json:"student_id"`
	LectureNumber int              `db:"lecture_number" json:"lecture_number"`
	Status        AttendanceStatus `db:"status" json:"status"`
	MarkedBy      *string          `db:"marked_by" json:"marked_by,omitempty"`
	CreatedAt     time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time        `db:"updated_at" json:"updated_at"`
}

// Reasons a batch record can be skipped.
const (
	SkipInvalidStudent = "invalid_student"
	SkipNotEnrolled    = "not_enrolled"
	SkipInvalidStatus  = "invalid_status"
	SkipScoreRange     = "score_out_of_range"
	SkipWriteFailed    = "write_failed"
)

// BatchSkip reports a record left out of a batch write.
type BatchSkip struct {
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
}

// AttendanceBatchResult summarises a mark-attendance call.
type AttendanceBatchResult struct {
	CourseID      string       `json:"course_id"`
	LectureNumber int          `json:"lecture_number"`
	Applied       []Attendance `json:"applied"`
	Skipped       []BatchSkip  `json:"skipped"`
}
