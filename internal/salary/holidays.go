package salary

import "time"

// ukBankHolidays returns the England & Wales bank holidays for a year,
// including weekend substitute days, keyed by ISO date.
func ukBankHolidays(year int) map[string]bool {
	holidays := make(map[string]bool)

	addSubstituted(holidays, time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC))

	easter := easterSunday(year)
	add(holidays, easter.AddDate(0, 0, -2)) // Good Friday
	add(holidays, easter.AddDate(0, 0, 1))  // Easter Monday

	add(holidays, firstMonday(year, time.May))
	add(holidays, lastMonday(year, time.May))
	add(holidays, lastMonday(year, time.August))

	addSubstituted(holidays, time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC))
	addSubstituted(holidays, time.Date(year, time.December, 26, 0, 0, 0, 0, time.UTC))

	return holidays
}

func add(holidays map[string]bool, d time.Time) {
	holidays[d.Format("2006-01-02")] = true
}

// addSubstituted moves a fixed-date holiday forward past weekends and past
// days already taken by another substitute.
func addSubstituted(holidays map[string]bool, d time.Time) {
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday || holidays[d.Format("2006-01-02")] {
		d = d.AddDate(0, 0, 1)
	}
	add(holidays, d)
}

// easterSunday computes Easter for a Gregorian year (anonymous algorithm).
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func firstMonday(year int, month time.Month) time.Time {
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

func lastMonday(year int, month time.Month) time.Time {
	d := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	for d.Weekday() != time.Monday {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// IsBankHoliday reports whether a date is a UK bank holiday (England &
// Wales set, substitutes included).
func IsBankHoliday(d time.Time) bool {
	return ukBankHolidays(d.Year())[d.Format("2006-01-02")]
}
