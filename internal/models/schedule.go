package models

// ScheduleConflict identifies the existing course a candidate slot collides with.
type ScheduleConflict struct {
	CourseID  string   `json:"course_id"`
	Title     string   `json:"title"`
	Days      []string `json:"days"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
}

// ScheduleConflictError is returned when a schedule collides with an existing one.
type ScheduleConflictError struct {
	Scope    string           `json:"scope"`
	Message  string           `json:"message"`
	Conflict ScheduleConflict `json:"conflict"`
}

// Error implements the error interface for conflict errors.
func (e *ScheduleConflictError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// Conflict scopes.
const (
	ConflictScopeStudent  = "student"
	ConflictScopeLecturer = "lecturer"
	ConflictScopeCheck    = "check"
)

// WeeklySlot is a course placed on one weekday.
type WeeklySlot struct {
	CourseID     string  `json:"course_id"`
	Title        string  `json:"title"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	LecturerName *string `json:"lecturer_name,omitempty"`
}

// WeeklySchedule maps day tags (monday..sunday) to slots ordered by start time.
type WeeklySchedule map[string][]WeeklySlot
