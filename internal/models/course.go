package models

import (
	"math"
	"time"

	"github.com/lib/pq"

	"github.com/noah-isme/edu-scheduling-api/internal/scheduling"
)

// Course is a recurring weekly class offered by an institution.
type Course struct {
	ID            string         `db:"id" json:"id"`
	InstitutionID string         `db:"institution_id" json:"institution_id"`
	LecturerID    *string        `db:"lecturer_id" json:"lecturer_id,omitempty"`
	Title         string         `db:"title" json:"title"`
	Description   string         `db:"description" json:"description"`
	StartingDate  time.Time      `db:"starting_date" json:"starting_date"`
	EndingDate    time.Time      `db:"ending_date" json:"ending_date"`
	Days          pq.StringArray `db:"days" json:"days"`
	StartTime     string         `db:"start_time" json:"start_time"`
	EndTime       string         `db:"end_time" json:"end_time"`
	Capacity      int            `db:"capacity" json:"capacity"`
	Price         float64        `db:"price" json:"price"`
	TotalLectures int            `db:"total_lectures" json:"total_lectures"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// ScheduleDays converts the stored tags. Unknown tags are dropped.
func (c *Course) ScheduleDays() []scheduling.Day {
	out := make([]scheduling.Day, 0, len(c.Days))
	for _, raw := range c.Days {
		if d, err := scheduling.ParseDay(raw); err == nil {
			out = append(out, d)
		}
	}
	return out
}

// Booking returns the course's weekly slot for conflict detection.
func (c *Course) Booking() scheduling.Booking {
	start, _ := scheduling.ParseClock(c.StartTime)
	end, _ := scheduling.ParseClock(c.EndTime)
	return scheduling.Booking{ID: c.ID, Label: c.Title, Days: c.ScheduleDays(), Start: start, End: end}
}

// AmountMinor returns the price in minor currency units.
func (c *Course) AmountMinor() int64 {
	return int64(math.Round(c.Price * 100))
}

// Unlimited reports whether the course accepts any number of students.
func (c *Course) Unlimited() bool {
	return c.Capacity == 0
}

// ActiveOn reports whether day falls within the course's date range.
func (c *Course) ActiveOn(day time.Time) bool {
	y, m, d := day.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return !today.Before(c.StartingDate) && !today.After(c.EndingDate)
}

// CourseFilter scopes course listings.
type CourseFilter struct {
	InstitutionID string
	LecturerID    string
	StudentID     string
	Page          int
	PageSize      int
}
