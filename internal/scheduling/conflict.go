package scheduling

// Booking is a weekly recurring time slot. ID identifies it in conflict reports.
type Booking struct {
	ID    string
	Label string
	Days  []Day
	Start Clock
	End   Clock
}

// Overlaps reports whether a and b share a day and their [start, end) intervals intersect.
// Back-to-back slots do not overlap.
func Overlaps(a, b Booking) bool {
	if !(a.Start < b.End && b.Start < a.End) {
		return false
	}
	return sharesDay(a.Days, b.Days)
}

func sharesDay(a, b []Day) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// FindConflict returns the first booking in existing that overlaps candidate.
func FindConflict(candidate Booking, existing []Booking) (Booking, bool) {
	for _, b := range existing {
		if Overlaps(candidate, b) {
			return b, true
		}
	}
	return Booking{}, false
}
