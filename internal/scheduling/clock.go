package scheduling

import (
	"fmt"
	"time"
)

// Clock is a time of day in minutes after midnight.
type Clock int

// ParseClock accepts "15:04" or "15:04:05". Schedules have minute precision, so non-zero seconds are rejected.
func ParseClock(raw string) (Clock, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, raw); err == nil {
			if t.Second() != 0 {
				return 0, fmt.Errorf("time of day %q must be on a whole minute", raw)
			}
			return Clock(t.Hour()*60 + t.Minute()), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", raw)
}

// String renders HH:MM.
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}
