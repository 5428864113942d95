package payments

import (
	"testing"
	"time"

	"potwatch/internal/config"
	"potwatch/internal/models"
)

func TestFinanceInstalmentsSumExactly(t *testing.T) {
	tests := []struct {
		amount float64
		months int
		want   []int64
	}{
		{100, 3, []int64{3333, 3333, 3334}},
		{123, 5, []int64{2460, 2460, 2460, 2460, 2460}},
		{99.99, 2, []int64{4999, 5000}},
	}
	for _, tt := range tests {
		got := financeInstalments(tt.amount, tt.months)
		var sum int64
		for i, pence := range got {
			sum += pence
			if pence != tt.want[i] {
				t.Errorf("financeInstalments(%v, %d)[%d] = %d, want %d",
					tt.amount, tt.months, i, pence, tt.want[i])
			}
		}
		if want := int64(tt.amount*100 + 0.5); sum != want {
			t.Errorf("financeInstalments(%v, %d) sums to %d pence, want %d",
				tt.amount, tt.months, sum, want)
		}
	}
}

func TestMatchableAmounts(t *testing.T) {
	if got := matchableAmounts(123, 5); len(got) != 1 || got[0] != 24.6 {
		t.Errorf("matchableAmounts(123, 5) = %v, want [24.6]", got)
	}
	if got := matchableAmounts(100, 3); len(got) != 2 || got[0] != 33.33 || got[1] != 33.34 {
		t.Errorf("matchableAmounts(100, 3) = %v, want [33.33 33.34]", got)
	}
}

func TestFinancePaymentProgress(t *testing.T) {
	repo := &fakeTransactionRepo{transactions: []*models.Transaction{
		debit(1, date(2025, time.April, 5), "SOFA CO", 33.33),
		debit(1, date(2025, time.May, 5), "SOFA CO", 33.33),
	}}
	p, err := New(KindFinance, config.PaymentConfig{
		Name:   "Sofa",
		Amount: 100,
		Months: 3,
		Desc:   config.StringList{"SOFA CO"},
	}, testDeps(repo))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := p.Suffix(); got != "2/3" {
		t.Errorf("Suffix() = %q, want 2/3", got)
	}
	if r := p.Remaining(); r == nil || *r != 33.34 {
		t.Errorf("Remaining() = %v, want 33.34", r)
	}
	// Last payment was May 5, before the cycle, so the next instalment is due.
	if got := p.Status(); got != models.StatusDue {
		t.Errorf("Status() = %q, want %q", got, models.StatusDue)
	}
	if due := p.DueDate(); due == nil || !due.Equal(date(2025, time.June, 5)) {
		t.Errorf("DueDate() = %v, want 2025-06-05", due)
	}
	// Two of three paid, so next month carries the remainder-bearing final.
	if got := p.NextMonthAmount(); got != 33.34 {
		t.Errorf("NextMonthAmount() = %v, want 33.34", got)
	}
}

func TestFinanceFreshStartDisplaysRegularInstalment(t *testing.T) {
	p, err := New(KindFinance, config.PaymentConfig{
		Name:   "Laptop",
		Amount: 123,
		Months: 5,
	}, testDeps(&fakeTransactionRepo{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := p.DisplayAmount(); got != 24.6 {
		t.Errorf("DisplayAmount() = %v, want 24.6", got)
	}
	if got := p.Suffix(); got != "0/5" {
		t.Errorf("Suffix() = %q, want 0/5", got)
	}
	if r := p.Remaining(); r == nil || *r != 123 {
		t.Errorf("Remaining() = %v, want 123", r)
	}
	if got := p.Status(); got != models.StatusDue {
		t.Errorf("Status() = %q, want %q", got, models.StatusDue)
	}
}

func TestFinanceSinglePaymentDisplaysTotal(t *testing.T) {
	p, err := New(KindFinance, config.PaymentConfig{
		Name:          "Fridge",
		Amount:        350,
		SinglePayment: true,
	}, testDeps(&fakeTransactionRepo{}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if got := p.DisplayAmount(); got != 350 {
		t.Errorf("DisplayAmount() = %v, want 350", got)
	}
}

func TestAmazonPaymentsDueDatePinnedToPaymentDay(t *testing.T) {
	repo := &fakeTransactionRepo{transactions: []*models.Transaction{
		debit(1, date(2025, time.June, 1), "AMZN INSTALMENT", 20),
	}}
	p, err := New(KindAmazonPayments, config.PaymentConfig{
		Name:       "Amazon monitor",
		Amount:     100,
		Months:     5,
		Desc:       config.StringList{"AMZN INSTALMENT"},
		PaymentDay: 5,
	}, testDeps(repo))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if due := p.DueDate(); due == nil || !due.Equal(date(2025, time.June, 5)) {
		t.Errorf("DueDate() = %v, want 2025-06-05", due)
	}
	// Paid June 1, inside the cycle.
	if got := p.Status(); got != models.StatusPaid {
		t.Errorf("Status() = %q, want %q", got, models.StatusPaid)
	}
}
