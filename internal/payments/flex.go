package payments

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"potwatch/internal/config"
	"potwatch/internal/models"
)

// Flex is one purchase financed through the provider's own instalment
// product. Its schedule comes from the configured Flex payment day and the
// item's start date, not from transaction matching; the matched
// consolidated repayment is shared across items by the summary.
type Flex struct {
	basePayment
}

// flexInstalments ceiling-splits a total into pence instalments, capping
// the final one so the running total never exceeds the total. This is
// deliberately the opposite rounding convention to financeInstalments.
func flexInstalments(amount float64, months int) []int64 {
	if months <= 0 {
		return nil
	}
	total := int64(math.Round(amount * 100))
	per := (total + int64(months) - 1) / int64(months)
	instalments := make([]int64, months)
	remaining := total
	for i := range instalments {
		if per < remaining {
			instalments[i] = per
		} else {
			instalments[i] = remaining
		}
		remaining -= instalments[i]
	}
	return instalments
}

func newFlex(kind Kind, cfg config.PaymentConfig, deps Deps) (Payment, error) {
	b, err := newBase(kind, cfg, deps, false, nil, false)
	if err != nil {
		return nil, err
	}
	return &Flex{basePayment: *b}, nil
}

// SetLastPayment shares the consolidated repayment found by the summary,
// so individual items do not each re-derive it.
func (f *Flex) SetLastPayment(t *models.Transaction) {
	f.lastPayment = t
}

func (f *Flex) flexDay() int {
	return f.deps.FlexPaymentDay
}

// scheduleDates returns every instalment's scheduled date: the first Flex
// payment day on or after the start date, then one calendar month apart.
func (f *Flex) scheduleDates() []time.Time {
	if f.cfg.StartDate == nil || f.cfg.Months <= 0 {
		return nil
	}
	dates := make([]time.Time, f.cfg.Months)
	d := dayOfMonthOnOrAfter(*f.cfg.StartDate, f.flexDay())
	for i := range dates {
		dates[i] = d
		d = addMonthClamped(d)
	}
	return dates
}

// AmountForPeriod sums the instalments scheduled strictly after from and
// no later than to. An item starting on or after to contributes nothing.
func (f *Flex) AmountForPeriod(from, to time.Time) float64 {
	if f.cfg.StartDate != nil && !dateOnly(*f.cfg.StartDate).Before(dateOnly(to)) {
		return 0
	}
	instalments := flexInstalments(f.cfg.Amount, f.cfg.Months)
	var pence int64
	for i, d := range f.scheduleDates() {
		if d.After(dateOnly(from)) && !d.After(dateOnly(to)) {
			pence += instalments[i]
		}
	}
	return float64(pence) / 100
}

func (f *Flex) NumPaid() int {
	today := dateOnly(f.deps.Cycle.Today)
	n := 0
	for _, d := range f.scheduleDates() {
		if !d.After(today) {
			n++
		}
	}
	return n
}

func (f *Flex) Remaining() *float64 {
	instalments := flexInstalments(f.cfg.Amount, f.cfg.Months)
	var paid int64
	for i := 0; i < f.NumPaid() && i < len(instalments); i++ {
		paid += instalments[i]
	}
	remaining := decimal.NewFromFloat(f.cfg.Amount).
		Sub(decimal.New(paid, -2)).
		Round(2).
		InexactFloat64()
	return &remaining
}

func (f *Flex) Suffix() string {
	if f.cfg.Months <= 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d", f.NumPaid(), f.cfg.Months)
}

func (f *Flex) DueDate() *time.Time {
	if f.lastPayment != nil {
		d := nextDayOfMonth(f.lastPayment.Date, f.flexDay())
		return &d
	}
	if dates := f.scheduleDates(); len(dates) > 0 && dates[0].After(dateOnly(f.deps.Cycle.Today)) {
		return &dates[0]
	}
	d := nextDayOfMonth(f.deps.Cycle.Today, f.flexDay())
	return &d
}

func (f *Flex) Status() string {
	return f.statusWith(f.DueDate())
}

func (f *Flex) DisplayAmount() float64 {
	if override, ok := f.deps.Ctx.AmountOverride(f.cfg.Name); ok {
		return override
	}
	return f.AmountForPeriod(f.deps.Cycle.Last, f.deps.Cycle.Next)
}

func (f *Flex) NextMonthAmount() float64 {
	return f.AmountForPeriod(f.deps.Cycle.Next, f.deps.Cycle.Following)
}

func (f *Flex) DueNextMonth() bool {
	due := f.DueDate()
	return due != nil && due.Before(f.deps.Cycle.Following)
}

// flexPaymentTolerance bounds how far the consolidated repayment may sit
// from the summed item charges before a candidate is rejected.
const flexPaymentTolerance = 10.0

// FlexSummary aggregates every Flex item for the cycle and locates the one
// real-world consolidated repayment covering them. The provider settles
// that repayment on a fixed day, and its amount can differ slightly from
// the displayed component sum, so matching is nearest-amount rather than
// exact.
type FlexSummary struct {
	deps        Deps
	items       []*Flex
	lastPayment *models.Transaction
}

func NewFlexSummary(items []*Flex, deps Deps) (*FlexSummary, error) {
	s := &FlexSummary{deps: deps, items: items}

	charge := s.chargeForPeriod(deps.Cycle.Last, deps.Cycle.Next)
	settleDay := nextDayOfMonth(deps.Cycle.Last, deps.FlexSettlementDay)

	candidates, err := deps.Lookup.SettledOn(deps.Account.ID, []string{"Flex"}, settleDay)
	if err != nil {
		return nil, err
	}

	best := flexPaymentTolerance
	for _, t := range candidates {
		delta := math.Abs(charge - t.MoneyIn.Float64)
		if delta < best {
			best = delta
			s.lastPayment = t
		}
	}

	for _, item := range items {
		item.SetLastPayment(s.lastPayment)
	}
	return s, nil
}

func (s *FlexSummary) chargeForPeriod(from, to time.Time) float64 {
	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(decimal.NewFromFloat(item.AmountForPeriod(from, to)))
	}
	return total.InexactFloat64()
}

func (s *FlexSummary) Name() string { return "Flex" }
func (s *FlexSummary) Kind() Kind   { return KindFlexSummary }

func (s *FlexSummary) LastDate() *time.Time {
	if s.lastPayment == nil {
		return nil
	}
	d := dateOnly(s.lastPayment.Date)
	return &d
}

func (s *FlexSummary) DueDate() *time.Time {
	if s.lastPayment != nil {
		d := nextDayOfMonth(s.lastPayment.Date, s.deps.FlexPaymentDay)
		return &d
	}
	d := nextDayOfMonth(s.deps.Cycle.Today, s.deps.FlexPaymentDay)
	return &d
}

func (s *FlexSummary) Status() string {
	if last := s.LastDate(); last != nil && !last.Before(s.deps.Cycle.Last) {
		return models.StatusPaid
	}
	if due := s.DueDate(); due != nil && !due.Before(s.deps.Cycle.Next) {
		return models.StatusSkipped
	}
	return models.StatusDue
}

func (s *FlexSummary) DisplayAmount() float64 {
	if s.lastPayment != nil && s.Status() == models.StatusPaid {
		return s.lastPayment.MoneyIn.Float64
	}
	return s.chargeForPeriod(s.deps.Cycle.Last, s.deps.Cycle.Next)
}

func (s *FlexSummary) NextMonthAmount() float64 {
	return s.chargeForPeriod(s.deps.Cycle.Next, s.deps.Cycle.Following)
}

func (s *FlexSummary) Remaining() *float64 {
	total := decimal.Zero
	for _, item := range s.items {
		if r := item.Remaining(); r != nil {
			total = total.Add(decimal.NewFromFloat(*r))
		}
	}
	remaining := total.InexactFloat64()
	return &remaining
}

func (s *FlexSummary) Suffix() string { return "" }

func (s *FlexSummary) DueNextMonth() bool {
	due := s.DueDate()
	return due != nil && due.Before(s.deps.Cycle.Following)
}
