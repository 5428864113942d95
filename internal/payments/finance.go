package payments

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"potwatch/internal/config"
	"potwatch/internal/models"
)

// financePayment is an amortized N-month purchase: the configured total is
// split into equal instalments with the final one absorbing the rounding
// remainder, so the sum always equals the total exactly.
type financePayment struct {
	basePayment

	// transactions are the matched instalments, oldest first.
	transactions []*models.Transaction
}

// financeInstalments floor-splits a total into pence instalments. The
// final instalment takes the remainder. Flex uses the opposite convention,
// see flexInstalments.
func financeInstalments(amount float64, months int) []int64 {
	total := int64(math.Round(amount * 100))
	per := total / int64(months)
	instalments := make([]int64, months)
	for i := range instalments {
		instalments[i] = per
	}
	instalments[months-1] = total - per*int64(months-1)
	return instalments
}

// matchableAmounts returns the distinct instalment values in major units:
// the regular amount plus the (possibly different) final one.
func matchableAmounts(amount float64, months int) []float64 {
	instalments := financeInstalments(amount, months)
	regular := float64(instalments[0]) / 100
	final := float64(instalments[months-1]) / 100
	if final == regular {
		return []float64{regular}
	}
	return []float64{regular, final}
}

func newFinance(kind Kind, cfg config.PaymentConfig, deps Deps) (Payment, error) {
	f, err := buildFinance(kind, cfg, deps)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func buildFinance(kind Kind, cfg config.PaymentConfig, deps Deps) (*financePayment, error) {
	var amounts []float64
	if !cfg.SinglePayment && cfg.Months > 0 {
		amounts = matchableAmounts(cfg.Amount, cfg.Months)
	}

	b, err := newBase(kind, cfg, deps, false, amounts, true)
	if err != nil {
		return nil, err
	}

	transactions, err := deps.Lookup.AllTransactions(deps.Account.ID, cfg, false, amounts)
	if err != nil {
		return nil, err
	}

	return &financePayment{basePayment: *b, transactions: transactions}, nil
}

func (f *financePayment) NumPaid() int {
	return len(f.transactions)
}

func (f *financePayment) Remaining() *float64 {
	paid := decimal.Zero
	for _, t := range f.transactions {
		paid = paid.Add(decimal.NewFromFloat(t.MoneyOut.Float64))
	}
	remaining := decimal.NewFromFloat(f.cfg.Amount).Sub(paid).Round(2).InexactFloat64()
	return &remaining
}

func (f *financePayment) Suffix() string {
	if f.cfg.Months <= 0 {
		return ""
	}
	return fmt.Sprintf("%d/%d", f.NumPaid(), f.cfg.Months)
}

func (f *financePayment) DisplayAmount() float64 {
	if override, ok := f.deps.Ctx.AmountOverride(f.cfg.Name); ok {
		return override
	}
	if f.cfg.SinglePayment || f.cfg.Months <= 0 {
		return f.cfg.Amount
	}
	if f.lastPayment != nil {
		return f.transactionAmount(f.lastPayment)
	}
	instalments := financeInstalments(f.cfg.Amount, f.cfg.Months)
	return float64(instalments[0]) / 100
}

func (f *financePayment) NextMonthAmount() float64 {
	if f.cfg.SinglePayment || f.cfg.Months <= 0 {
		return f.cfg.Amount
	}
	// One instalment left means the final, remainder-bearing amount.
	instalments := financeInstalments(f.cfg.Amount, f.cfg.Months)
	if f.NumPaid() >= f.cfg.Months-1 {
		return float64(instalments[f.cfg.Months-1]) / 100
	}
	return float64(instalments[0]) / 100
}

// amazonPayment is a finance schedule whose due date is pinned to a fixed
// day of the month rather than rolled from the last payment.
type amazonPayment struct {
	financePayment
}

func newAmazonPayments(kind Kind, cfg config.PaymentConfig, deps Deps) (Payment, error) {
	f, err := buildFinance(kind, cfg, deps)
	if err != nil {
		return nil, err
	}
	return &amazonPayment{financePayment: *f}, nil
}

func (a *amazonPayment) paymentDay() int {
	if a.cfg.PaymentDay > 0 {
		return a.cfg.PaymentDay
	}
	return a.deps.Cycle.Today.Day()
}

func (a *amazonPayment) DueDate() *time.Time {
	anchor := dateOnly(a.deps.Cycle.Today)
	if last := a.LastDate(); last != nil {
		anchor = *last
	}
	d := nextDayOfMonth(anchor, a.paymentDay())
	return &d
}

func (a *amazonPayment) Status() string {
	return a.statusWith(a.DueDate())
}

func (a *amazonPayment) DueNextMonth() bool {
	due := a.DueDate()
	return due != nil && due.Before(a.deps.Cycle.Following)
}
