package dto

// CourseRequest creates or replaces a course. Dates are YYYY-MM-DD; times are HH:MM.
type CourseRequest struct {
	Title        string   `json:"title" validate:"required,max=200"`
	Description  string   `json:"description" validate:"max=5000"`
	LecturerID   *string  `json:"lecturer_id" validate:"omitempty,uuid"`
	StartingDate string   `json:"starting_date" validate:"required,datetime=2006-01-02"`
	EndingDate   string   `json:"ending_date" validate:"required,datetime=2006-01-02"`
	Days         []string `json:"days" validate:"required,min=1,dive,required"`
	StartTime    string   `json:"start_time" validate:"required"`
	EndTime      string   `json:"end_time" validate:"required"`
	Capacity     int      `json:"capacity" validate:"gte=0"`
	Price        float64  `json:"price" validate:"gte=0"`
}

// ConflictCheckRequest asks whether a slot collides with the caller's courses.
type ConflictCheckRequest struct {
	Days      []string `json:"days" validate:"required,min=1,dive,required"`
	StartTime string   `json:"start_time" validate:"required"`
	EndTime   string   `json:"end_time" validate:"required"`
	// LecturerID selects whose courses an institution checks against.
	LecturerID string `json:"lecturer_id" validate:"omitempty,uuid"`
	// ExcludeCourseID leaves one course out, for checks while editing it.
	ExcludeCourseID string `json:"exclude_course_id" validate:"omitempty,uuid"`
}

// ConflictCheckResponse reports the first colliding course, if any.
type ConflictCheckResponse struct {
	Conflict  bool     `json:"conflict"`
	CourseID  string   `json:"course_id,omitempty"`
	Title     string   `json:"title,omitempty"`
	Days      []string `json:"days,omitempty"`
	StartTime string   `json:"start_time,omitempty"`
	EndTime   string   `json:"end_time,omitempty"`
}
