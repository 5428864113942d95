package salary

import (
	"errors"
	"time"

	"potwatch/internal/repositories"
)

// ErrSalaryNotFound is returned when no transaction in the history looks
// like a salary deposit; the report cannot run without that anchor date.
var ErrSalaryNotFound = errors.New("salary transaction not found")

// lookbackDays widens the day-of-month window to catch salaries paid early
// ahead of a weekend or holiday.
const lookbackDays = 4

// Calculator derives the salary-cycle boundary dates that every payment is
// evaluated against.
type Calculator struct {
	txRepo       repositories.TransactionRepository
	accountIDs   []int64
	descriptions []string
	minimum      float64
	payday       int
	bankHolidays bool
	exemptDates  map[string]bool
}

func NewCalculator(
	txRepo repositories.TransactionRepository,
	accountIDs []int64,
	descriptions []string,
	minimum float64,
	payday int,
	bankHolidays bool,
	exemptDates []time.Time,
) *Calculator {
	exempt := make(map[string]bool, len(exemptDates))
	for _, d := range exemptDates {
		exempt[d.Format("2006-01-02")] = true
	}
	return &Calculator{
		txRepo:       txRepo,
		accountIDs:   accountIDs,
		descriptions: descriptions,
		minimum:      minimum,
		payday:       payday,
		bankHolidays: bankHolidays,
		exemptDates:  exempt,
	}
}

// LastSalaryDate scans the account history newest first and returns the
// first credit at or above the configured minimum whose description matches
// and whose day-of-month falls within [payday-4, payday].
func (c *Calculator) LastSalaryDate() (time.Time, error) {
	minimum := c.minimum
	transactions, err := c.txRepo.FindTransactions(repositories.TransactionCriteria{
		AccountIDs:   c.accountIDs,
		MoneyIn:      true,
		Descriptions: c.descriptions,
		MinAmount:    &minimum,
	})
	if err != nil {
		return time.Time{}, err
	}

	for _, t := range transactions {
		day := t.Date.Day()
		if day >= c.payday-lookbackDays && day <= c.payday {
			return truncate(t.Date), nil
		}
	}
	return time.Time{}, ErrSalaryNotFound
}

// NextSalaryDate returns the salary date of the cycle after the given one:
// the next nominal payday, rolled back over weekends and, when enabled,
// bank holidays and exempt dates.
func (c *Calculator) NextSalaryDate(from time.Time) time.Time {
	d := truncate(from)
	for d.Day() != c.payday {
		d = d.AddDate(0, 0, 1)
	}

	d = d.AddDate(0, 0, 1)
	for d.Day() != c.payday {
		d = d.AddDate(0, 0, 1)
	}

	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, -1)
	}

	if c.bankHolidays {
		for IsBankHoliday(d) || c.exemptDates[d.Format("2006-01-02")] ||
			d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			d = d.AddDate(0, 0, -1)
		}
	}

	return d
}

// Boundaries returns the three dates framing the current and next salary
// cycles: last payday, the next one, and the one after that.
func (c *Calculator) Boundaries() (last, next, following time.Time, err error) {
	last, err = c.LastSalaryDate()
	if err != nil {
		return
	}
	next = c.NextSalaryDate(last)
	following = c.NextSalaryDate(next)
	return
}

func truncate(d time.Time) time.Time {
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
}
