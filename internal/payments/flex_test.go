package payments

import (
	"database/sql"
	"testing"
	"time"

	"potwatch/internal/config"
	"potwatch/internal/models"
)

func TestFlexInstalmentsCeilingWithCappedFinal(t *testing.T) {
	tests := []struct {
		amount float64
		months int
		want   []int64
	}{
		{100, 3, []int64{3334, 3334, 3332}},
		{90, 3, []int64{3000, 3000, 3000}},
		{0.05, 3, []int64{2, 2, 1}},
	}
	for _, tt := range tests {
		got := flexInstalments(tt.amount, tt.months)
		var sum int64
		for i, pence := range got {
			sum += pence
			if pence != tt.want[i] {
				t.Errorf("flexInstalments(%v, %d)[%d] = %d, want %d",
					tt.amount, tt.months, i, pence, tt.want[i])
			}
		}
		if want := int64(tt.amount*100 + 0.5); sum != want {
			t.Errorf("flexInstalments(%v, %d) sums to %d pence, want %d",
				tt.amount, tt.months, sum, want)
		}
	}
}

func TestFlexZeroMonthsProducesNoInstalments(t *testing.T) {
	if got := flexInstalments(100, 0); len(got) != 0 {
		t.Errorf("flexInstalments(100, 0) = %v, want empty", got)
	}

	// A months-less item must evaluate to zero, not panic, even though
	// Validate rejects it at load time.
	deps := testDeps(&fakeTransactionRepo{})
	f := newTestFlex(t, config.PaymentConfig{
		Name:      "Broken",
		Amount:    100,
		StartDate: datePtr(2025, time.May, 10),
	}, deps)
	if got := f.DisplayAmount(); got != 0 {
		t.Errorf("DisplayAmount() = %v, want 0", got)
	}
	if got := f.NextMonthAmount(); got != 0 {
		t.Errorf("NextMonthAmount() = %v, want 0", got)
	}
}

func newTestFlex(t *testing.T, cfg config.PaymentConfig, deps Deps) *Flex {
	t.Helper()
	p, err := New(KindFlex, cfg, deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p.(*Flex)
}

func TestFlexScheduleAndPeriodAmounts(t *testing.T) {
	deps := testDeps(&fakeTransactionRepo{})
	f := newTestFlex(t, config.PaymentConfig{
		Name:      "Headphones",
		Amount:    100,
		Months:    3,
		StartDate: datePtr(2025, time.May, 10),
	}, deps)

	// Schedule: 2025-06-01, 2025-07-01, 2025-08-01 with payment day 1.
	if got := f.AmountForPeriod(deps.Cycle.Last, deps.Cycle.Next); got != 33.34 {
		t.Errorf("AmountForPeriod(this cycle) = %v, want 33.34", got)
	}
	if got := f.NextMonthAmount(); got != 33.34 {
		t.Errorf("NextMonthAmount() = %v, want 33.34", got)
	}
	if got := f.NumPaid(); got != 1 {
		t.Errorf("NumPaid() = %d, want 1", got)
	}
	if r := f.Remaining(); r == nil || *r != 66.66 {
		t.Errorf("Remaining() = %v, want 66.66", r)
	}
	if got := f.Suffix(); got != "1/3" {
		t.Errorf("Suffix() = %q, want 1/3", got)
	}
}

func TestFlexItemStartingNextCycleContributesNothing(t *testing.T) {
	deps := testDeps(&fakeTransactionRepo{})
	f := newTestFlex(t, config.PaymentConfig{
		Name:      "Future buy",
		Amount:    60,
		Months:    3,
		StartDate: datePtr(2025, time.July, 1),
	}, deps)

	if got := f.AmountForPeriod(deps.Cycle.Last, deps.Cycle.Next); got != 0 {
		t.Errorf("AmountForPeriod(this cycle) = %v, want 0", got)
	}
	// First instalment lands in the following cycle instead.
	if got := f.NextMonthAmount(); got != 20 {
		t.Errorf("NextMonthAmount() = %v, want 20", got)
	}
}

func TestFlexSummaryMatchesNearestRepayment(t *testing.T) {
	// Settlement day 16 after the last payday lands on 2025-06-16.
	settled := credit(1, date(2025, time.June, 16), "Flex", 33.30)
	settled.Settled = sql.NullString{String: "2025-06-16T04:00:00Z", Valid: true}
	farOff := credit(1, date(2025, time.June, 16), "Flex", 95)
	farOff.Settled = sql.NullString{String: "2025-06-16T04:00:00Z", Valid: true}
	repo := &fakeTransactionRepo{transactions: []*models.Transaction{settled, farOff}}

	deps := testDeps(repo)
	item := newTestFlex(t, config.PaymentConfig{
		Name:      "Headphones",
		Amount:    100,
		Months:    3,
		StartDate: datePtr(2025, time.May, 10),
	}, deps)

	summary, err := NewFlexSummary([]*Flex{item}, deps)
	if err != nil {
		t.Fatalf("NewFlexSummary: %v", err)
	}

	if last := summary.LastDate(); last == nil || !last.Equal(date(2025, time.June, 16)) {
		t.Errorf("LastDate() = %v, want 2025-06-16", last)
	}
	if got := summary.Status(); got != models.StatusPaid {
		t.Errorf("Status() = %q, want %q", got, models.StatusPaid)
	}
	// Paid summaries mirror the real repayment, not the component sum.
	if got := summary.DisplayAmount(); got != 33.30 {
		t.Errorf("DisplayAmount() = %v, want 33.30", got)
	}
	// The matched repayment is shared with the items.
	if last := item.LastDate(); last == nil || !last.Equal(date(2025, time.June, 16)) {
		t.Errorf("item LastDate() = %v, want 2025-06-16", last)
	}
}

func TestFlexSummaryUnmatchedStaysDue(t *testing.T) {
	deps := testDeps(&fakeTransactionRepo{})
	// A mid-cycle payment day keeps the unmatched repayment due rather
	// than pushed past the next payday.
	deps.FlexPaymentDay = 16
	item := newTestFlex(t, config.PaymentConfig{
		Name:      "Headphones",
		Amount:    100,
		Months:    3,
		StartDate: datePtr(2025, time.May, 10),
	}, deps)

	summary, err := NewFlexSummary([]*Flex{item}, deps)
	if err != nil {
		t.Fatalf("NewFlexSummary: %v", err)
	}

	if got := summary.Status(); got != models.StatusDue {
		t.Errorf("Status() = %q, want %q", got, models.StatusDue)
	}
	if got := summary.DisplayAmount(); got != 33.34 {
		t.Errorf("DisplayAmount() = %v, want 33.34", got)
	}
	if r := summary.Remaining(); r == nil || *r != 66.66 {
		t.Errorf("Remaining() = %v, want 66.66", r)
	}
}

func TestFlexSummaryRejectsCandidateOutsideTolerance(t *testing.T) {
	farOff := credit(1, date(2025, time.June, 16), "Flex", 95)
	farOff.Settled = sql.NullString{String: "2025-06-16T04:00:00Z", Valid: true}
	repo := &fakeTransactionRepo{transactions: []*models.Transaction{farOff}}

	deps := testDeps(repo)
	item := newTestFlex(t, config.PaymentConfig{
		Name:      "Headphones",
		Amount:    100,
		Months:    3,
		StartDate: datePtr(2025, time.May, 10),
	}, deps)

	summary, err := NewFlexSummary([]*Flex{item}, deps)
	if err != nil {
		t.Fatalf("NewFlexSummary: %v", err)
	}

	if last := summary.LastDate(); last != nil {
		t.Errorf("LastDate() = %v, want nil for out-of-tolerance candidate", last)
	}
}
