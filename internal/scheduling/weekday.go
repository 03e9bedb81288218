// Package scheduling derives lecture counts and detects overlapping weekly bookings.
package scheduling

import (
	"fmt"
	"strings"
	"time"
)

// Day is a lower-case weekday tag such as "monday".
type Day string

const (
	Monday    Day = "monday"
	Tuesday   Day = "tuesday"
	Wednesday Day = "wednesday"
	Thursday  Day = "thursday"
	Friday    Day = "friday"
	Saturday  Day = "saturday"
	Sunday    Day = "sunday"
)

// Week lists the day tags starting on Monday.
var Week = []Day{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var dayToWeekday = map[Day]time.Weekday{
	Monday:    time.Monday,
	Tuesday:   time.Tuesday,
	Wednesday: time.Wednesday,
	Thursday:  time.Thursday,
	Friday:    time.Friday,
	Saturday:  time.Saturday,
	Sunday:    time.Sunday,
}

// ParseDay accepts a day tag in any case.
func ParseDay(raw string) (Day, error) {
	d := Day(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := dayToWeekday[d]; !ok {
		return "", fmt.Errorf("unknown day %q", raw)
	}
	return d, nil
}

// ParseDays normalises tags and drops duplicates, preserving the input order.
func ParseDays(raw []string) ([]Day, error) {
	out := make([]Day, 0, len(raw))
	seen := make(map[Day]struct{}, len(raw))
	for _, r := range raw {
		d, err := ParseDay(r)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out, nil
}

// DayOf returns the tag for t's weekday.
func DayOf(t time.Time) Day {
	return Week[(int(t.Weekday())+6)%7]
}

// Strings converts tags back to plain strings.
func Strings(days []Day) []string {
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = string(d)
	}
	return out
}
