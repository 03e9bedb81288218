package scheduling

import "time"

// LectureCount returns how many dates in [start, end] fall on one of days.
// Both bounds are inclusive and only their calendar dates matter.
func LectureCount(start, end time.Time, days []Day) int {
	if len(days) == 0 {
		return 0
	}
	start = dateOnly(start)
	end = dateOnly(end)
	if end.Before(start) {
		return 0
	}

	var wanted [7]bool
	for _, d := range days {
		if wd, ok := dayToWeekday[d]; ok {
			wanted[wd] = true
		}
	}

	totalDays := int(end.Sub(start).Hours()/24) + 1
	fullWeeks, rest := totalDays/7, totalDays%7

	count := 0
	for _, on := range wanted {
		if on {
			count += fullWeeks
		}
	}
	first := start.Weekday()
	for i := 0; i < rest; i++ {
		if wanted[(int(first)+i)%7] {
			count++
		}
	}
	return count
}

// LectureDates lists the scheduled dates in order. Lecture n is element n-1.
func LectureDates(start, end time.Time, days []Day) []time.Time {
	start = dateOnly(start)
	end = dateOnly(end)
	if len(days) == 0 || end.Before(start) {
		return nil
	}
	set := make(map[Day]struct{}, len(days))
	for _, d := range days {
		set[d] = struct{}{}
	}
	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if _, ok := set[DayOf(d)]; ok {
			out = append(out, d)
		}
	}
	return out
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
