package payments

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"potwatch/internal/config"
	"potwatch/internal/models"
)

// Kind is the closed set of payment behaviors. List types in the
// configuration map onto these names directly.
type Kind string

const (
	KindPayment        Kind = "payment"
	KindDirectDebit    Kind = "direct_debit"
	KindStandingOrder  Kind = "standing_order"
	KindCardPayment    Kind = "card_payment"
	KindFinance        Kind = "finance"
	KindAmazonPayments Kind = "amazon_payments"
	KindFlex           Kind = "flex"
	KindFlexSummary    Kind = "flex_summary"
	KindRefund         Kind = "refund"
)

var kindLabels = map[Kind]string{
	KindPayment:        "Payment",
	KindDirectDebit:    "Direct Debit",
	KindStandingOrder:  "Standing Order",
	KindCardPayment:    "Card Payment",
	KindFinance:        "Finance",
	KindAmazonPayments: "Amazon Payments",
	KindFlex:           "Flex",
	KindFlexSummary:    "Flex Summary",
	KindRefund:         "Refund",
}

func (k Kind) Label() string {
	if label, ok := kindLabels[k]; ok {
		return label
	}
	return string(k)
}

// Cycle holds the salary boundaries a report run is evaluated against.
// Today is passed in rather than read from the clock so every derived
// value is deterministic.
type Cycle struct {
	Today     time.Time
	Last      time.Time
	Next      time.Time
	Following time.Time
}

// Payment is one configured recurring payment with its state for the
// current cycle. Implementations compute everything from the transaction
// history loaded at construction; all methods are pure after that.
type Payment interface {
	Name() string
	Kind() Kind
	Status() string
	DueDate() *time.Time
	LastDate() *time.Time
	DisplayAmount() float64
	NextMonthAmount() float64
	Remaining() *float64
	Suffix() string
	DueNextMonth() bool
}

// Deps is everything a payment needs beyond its own config.
type Deps struct {
	Lookup            *Lookup
	Ctx               *Context
	Cycle             Cycle
	Account           *models.Account
	Rates             map[string]float64
	FlexPaymentDay    int
	FlexSettlementDay int
}

type constructor func(kind Kind, cfg config.PaymentConfig, deps Deps) (Payment, error)

var constructors = map[Kind]constructor{
	KindPayment:        newGeneric,
	KindDirectDebit:    newGeneric,
	KindStandingOrder:  newGeneric,
	KindCardPayment:    newGeneric,
	KindFinance:        newFinance,
	KindAmazonPayments: newAmazonPayments,
	KindFlex:           newFlex,
	KindRefund:         newRefund,
}

// New builds the concrete payment for a kind. Unknown kinds are a
// configuration error.
func New(kind Kind, cfg config.PaymentConfig, deps Deps) (Payment, error) {
	ctor, ok := constructors[kind]
	if !ok {
		return nil, fmt.Errorf("unknown payment kind %q", kind)
	}
	p, err := ctor(kind, cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("building payment %q: %w", cfg.Name, err)
	}
	return p, nil
}

// basePayment implements the shared state machine. Variants embed it and
// override the pieces that differ.
type basePayment struct {
	kind    Kind
	cfg     config.PaymentConfig
	deps    Deps
	moneyIn bool

	lastPayment      *models.Transaction
	olderLastPayment *models.Transaction

	dueDateSet       bool
	dueDate          *time.Time
	displayAmountSet bool
	displayAmount    float64
}

// newBase loads the payment's matching transactions. The last-payment scan
// claims its winner in the run context, so construction order decides who
// wins a contested transaction. The older lookup only runs when the
// primary scan found nothing.
func newBase(kind Kind, cfg config.PaymentConfig, deps Deps, moneyIn bool, amounts []float64, loadLast bool) (*basePayment, error) {
	b := &basePayment{kind: kind, cfg: cfg, deps: deps, moneyIn: moneyIn}

	var err error
	if loadLast {
		b.lastPayment, err = deps.Lookup.LastPayment(deps.Account.ID, cfg, moneyIn, amounts)
		if err != nil {
			return nil, err
		}
	}
	if b.lastPayment == nil {
		b.olderLastPayment, err = deps.Lookup.OlderLastPayment(deps.Account.ID, cfg, moneyIn, amounts)
		if err != nil {
			return nil, err
		}
	}
	return b, nil
}

func newGeneric(kind Kind, cfg config.PaymentConfig, deps Deps) (Payment, error) {
	var amounts []float64
	if cfg.Fixed {
		amounts = []float64{cfg.Amount}
	}
	return newBase(kind, cfg, deps, false, amounts, true)
}

func (b *basePayment) Name() string { return b.cfg.Name }
func (b *basePayment) Kind() Kind   { return b.kind }

func (b *basePayment) LastDate() *time.Time {
	if b.lastPayment != nil {
		d := dateOnly(b.lastPayment.Date)
		return &d
	}
	if b.olderLastPayment != nil {
		d := dateOnly(b.olderLastPayment.Date)
		return &d
	}
	return nil
}

func (b *basePayment) yearly() bool {
	return b.cfg.YearlyMonth > 0 && b.cfg.YearlyDay > 0
}

func (b *basePayment) excludedMonth(m time.Month) bool {
	for _, excluded := range b.cfg.ExcludeMonths {
		if int(m) == excluded {
			return true
		}
	}
	return false
}

func (b *basePayment) DueDate() *time.Time {
	if !b.dueDateSet {
		b.dueDate = b.computeDueDate()
		b.dueDateSet = true
	}
	return b.dueDate
}

func (b *basePayment) computeDueDate() *time.Time {
	if b.yearly() {
		return b.yearlyDueDate()
	}

	last := b.LastDate()
	if last == nil {
		if b.cfg.StartDate == nil {
			return nil
		}
		d := dateOnly(*b.cfg.StartDate)
		return &d
	}

	d := addMonthClamped(*last)
	if b.cfg.StartDate != nil && d.Before(dateOnly(*b.cfg.StartDate)) {
		d = dateOnly(*b.cfg.StartDate)
	}
	for b.excludedMonth(d.Month()) {
		d = addMonthClamped(d)
	}
	return &d
}

// yearlyDueDate walks forward from tomorrow to the configured month/day.
// A payment that landed within the last 90 days pushes the anniversary a
// further year out, so it does not re-fire immediately after being paid a
// few days early.
func (b *basePayment) yearlyDueDate() *time.Time {
	d := dateOnly(b.deps.Cycle.Today).AddDate(0, 0, 1)
	for int(d.Month()) != b.cfg.YearlyMonth || d.Day() != b.cfg.YearlyDay {
		d = d.AddDate(0, 0, 1)
	}
	if last := b.LastDate(); last != nil && d.Sub(*last) < 90*24*time.Hour {
		d = d.AddDate(1, 0, 0)
	}
	return &d
}

// statusWith evaluates the priority rules against a due date supplied by
// the concrete type, first match wins.
func (b *basePayment) statusWith(due *time.Time) string {
	cycle := b.deps.Cycle

	if b.cfg.StartDate != nil && cycle.Next.Before(dateOnly(*b.cfg.StartDate)) {
		return models.StatusSkipped
	}
	if b.yearly() && !(due != nil && due.Before(cycle.Next)) {
		return models.StatusSkipped
	}
	if b.cfg.RenewDate != nil && cycle.Next.Before(dateOnly(*b.cfg.RenewDate)) {
		return models.StatusSkipped
	}
	if b.excludedMonth(cycle.Today.Month()) {
		return models.StatusSkipped
	}
	if last := b.LastDate(); last != nil && !last.Before(cycle.Last) {
		return models.StatusPaid
	}
	if due != nil && !due.Before(cycle.Next) {
		return models.StatusSkipped
	}
	return models.StatusDue
}

func (b *basePayment) Status() string {
	return b.statusWith(b.DueDate())
}

func (b *basePayment) sign() float64 {
	if b.moneyIn {
		return -1
	}
	return 1
}

func (b *basePayment) DisplayAmount() float64 {
	if !b.displayAmountSet {
		b.displayAmount = b.computeDisplayAmount()
		b.displayAmountSet = true
	}
	return b.displayAmount
}

func (b *basePayment) computeDisplayAmount() float64 {
	if override, ok := b.deps.Ctx.AmountOverride(b.cfg.Name); ok {
		return override
	}

	cycle := b.deps.Cycle
	if r := b.cfg.Renewal; r != nil {
		renewDate := dateOnly(r.Date)
		if renewDate.Before(cycle.Next) || b.Status() == models.StatusPaid {
			if !renewDate.Before(cycle.Last) && r.FirstPayment > 0 {
				return b.sign() * r.FirstPayment
			}
			return b.sign() * r.Amount
		}
	}

	if b.lastPayment != nil {
		return b.sign() * b.transactionAmount(b.lastPayment)
	}
	return b.sign() * b.cfg.Amount
}

// transactionAmount mirrors the matched transaction's value, converting
// from the configured foreign currency when the transaction settled in it.
func (b *basePayment) transactionAmount(t *models.Transaction) float64 {
	amount := t.MoneyOut.Float64
	if b.moneyIn {
		amount = t.MoneyIn.Float64
	}
	if b.cfg.Currency != "" && t.LocalCurrency == b.cfg.Currency {
		if rate, ok := b.deps.Rates[b.cfg.Currency]; ok && rate > 0 {
			amount = decimal.NewFromFloat(t.LocalAmount).
				Div(decimal.NewFromFloat(rate)).
				Round(2).
				InexactFloat64()
		}
	}
	return amount
}

func (b *basePayment) NextMonthAmount() float64 {
	if r := b.cfg.Renewal; r != nil && dateOnly(r.Date).Before(b.deps.Cycle.Following) {
		return b.sign() * r.Amount
	}
	if b.cfg.Amount > 0 {
		return b.sign() * b.cfg.Amount
	}
	return b.DisplayAmount()
}

func (b *basePayment) DueNextMonth() bool {
	if b.cfg.RenewDate != nil && dateOnly(*b.cfg.RenewDate).Before(b.deps.Cycle.Following) {
		return true
	}
	due := b.DueDate()
	if due == nil {
		return true
	}
	return due.Before(b.deps.Cycle.Following)
}

func (b *basePayment) Remaining() *float64 { return nil }
func (b *basePayment) Suffix() string      { return "" }
