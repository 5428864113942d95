package payments

import "time"

func dateOnly(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// addMonthClamped rolls a date forward one calendar month, keeping the
// day-of-month and clamping to the last valid day when the target month is
// shorter.
func addMonthClamped(d time.Time) time.Time {
	year, month, day := d.Date()
	month++
	if month > time.December {
		month = time.January
		year++
	}
	if dim := daysInMonth(year, month); day > dim {
		day = dim
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// nextDayOfMonth returns the first date with the given day-of-month
// strictly after the reference date, walking day by day.
func nextDayOfMonth(after time.Time, day int) time.Time {
	d := dateOnly(after).AddDate(0, 0, 1)
	for d.Day() != day {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// dayOfMonthOnOrAfter is nextDayOfMonth but inclusive of the reference
// date itself.
func dayOfMonthOnOrAfter(from time.Time, day int) time.Time {
	d := dateOnly(from)
	for d.Day() != day {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
