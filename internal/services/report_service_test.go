package services

import (
	"database/sql"
	"sort"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"potwatch/internal/config"
	"potwatch/internal/models"
	"potwatch/internal/payments"
	"potwatch/internal/repositories"
)

type fakeAccountRepo struct {
	accounts []*models.Account
}

func (r *fakeAccountRepo) GetAccountByName(name string) (*models.Account, error) {
	for _, a := range r.accounts {
		if a.Name == name {
			return a, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeAccountRepo) GetAccountByExternalID(accountID string) (*models.Account, error) {
	for _, a := range r.accounts {
		if a.AccountID == accountID {
			return a, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakeAccountRepo) ListAccounts() ([]*models.Account, error) {
	return r.accounts, nil
}

func (r *fakeAccountRepo) UpsertAccount(tx *sql.Tx, a *models.Account) error {
	return nil
}

type fakePotRepo struct {
	pots []*models.Pot
}

func (r *fakePotRepo) GetPotByName(accountID int64, name string) (*models.Pot, error) {
	for _, p := range r.pots {
		if p.AccountID == accountID && p.Name == name {
			return p, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *fakePotRepo) ListPots(accountID int64) ([]*models.Pot, error) {
	return r.pots, nil
}

func (r *fakePotRepo) UpsertPot(tx *sql.Tx, p *models.Pot) error {
	return nil
}

func (r *fakePotRepo) UpdatePotBalance(potID int64, balance float64) error {
	return nil
}

type fakeTxRepo struct {
	transactions []*models.Transaction
}

func (r *fakeTxRepo) FindTransactions(c repositories.TransactionCriteria) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for _, t := range r.transactions {
		amount := t.MoneyOut.Float64
		valid := t.MoneyOut.Valid
		if c.MoneyIn {
			amount = t.MoneyIn.Float64
			valid = t.MoneyIn.Valid
		}
		if !valid || amount <= 0 || t.Declined {
			continue
		}
		if len(c.Descriptions) > 0 && !matchesAny(t.Description, c.Descriptions) {
			continue
		}
		if c.MinAmount != nil && amount < *c.MinAmount {
			continue
		}
		if c.StartDate != nil && t.Date.Before(*c.StartDate) {
			continue
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c.OldestFirst {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

func matchesAny(description string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(description, n) {
			return true
		}
	}
	return false
}

func (r *fakeTxRepo) UpsertTransaction(tx *sql.Tx, t *models.Transaction) error {
	return nil
}

func (r *fakeTxRepo) UpsertMetadata(tx *sql.Tx, transactionID int64, key, value string) error {
	return nil
}

func reportTestConfig() *config.Config {
	return &config.Config{
		Report: config.ReportConfig{
			Account:           "Current",
			SalaryDescription: config.StringList{"ACME"},
			SalaryMinimum:     1000,
			SalaryPaymentDay:  28,
			Pot:               "Bills",
			FlexSettlementDay: 16,
		},
		PaymentLists: []config.PaymentList{
			{
				Name: "Subscriptions",
				Type: "payment",
				Payments: []config.PaymentConfig{
					{Name: "Netflix", Amount: 100},
				},
			},
		},
	}
}

func TestBuildReportComputesCredit(t *testing.T) {
	accountRepo := &fakeAccountRepo{accounts: []*models.Account{
		{ID: 1, Name: "Current", AccountID: "acc_1"},
	}}
	potRepo := &fakePotRepo{pots: []*models.Pot{
		{ID: 1, AccountID: 1, PotID: "pot_1", Name: "Bills", Balance: 455},
	}}
	txRepo := &fakeTxRepo{transactions: []*models.Transaction{
		{
			ID:          1,
			AccountID:   1,
			Date:        time.Date(2025, time.May, 27, 9, 0, 0, 0, time.UTC),
			Description: "ACME PAYROLL",
			MoneyIn:     sql.NullFloat64{Float64: 2500, Valid: true},
		},
	}}

	svc := NewReportService(reportTestConfig(), accountRepo, potRepo, txRepo, zap.NewNop())
	report, err := svc.BuildReport(time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}

	if report.Due != 100 {
		t.Errorf("Due = %v, want 100", report.Due)
	}
	if report.Balance != 455 {
		t.Errorf("Balance = %v, want 455", report.Balance)
	}
	if report.Credit != 355 {
		t.Errorf("Credit = %v, want 355", report.Credit)
	}
	if report.Shortfall != 0 {
		t.Errorf("Shortfall = %v, want 0", report.Shortfall)
	}
	if len(report.Payments) != 1 {
		t.Fatalf("Payments = %d entries, want 1", len(report.Payments))
	}
	row := report.Payments[0]
	if row.Status != models.StatusDue || row.Name != "Netflix" || row.Amount != 100 {
		t.Errorf("row = %+v, want DUE Netflix 100", row)
	}
}

func TestBuildReportComputesShortfall(t *testing.T) {
	accountRepo := &fakeAccountRepo{accounts: []*models.Account{
		{ID: 1, Name: "Current", AccountID: "acc_1"},
	}}
	potRepo := &fakePotRepo{pots: []*models.Pot{
		{ID: 1, AccountID: 1, PotID: "pot_1", Name: "Bills", Balance: 74.50},
	}}
	txRepo := &fakeTxRepo{transactions: []*models.Transaction{
		{
			ID:          1,
			AccountID:   1,
			Date:        time.Date(2025, time.May, 27, 9, 0, 0, 0, time.UTC),
			Description: "ACME PAYROLL",
			MoneyIn:     sql.NullFloat64{Float64: 2500, Valid: true},
		},
	}}

	svc := NewReportService(reportTestConfig(), accountRepo, potRepo, txRepo, zap.NewNop())
	report, err := svc.BuildReport(time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("BuildReport: %v", err)
	}

	if report.Shortfall != 25.50 {
		t.Errorf("Shortfall = %v, want 25.50", report.Shortfall)
	}
	if report.Credit != 0 {
		t.Errorf("Credit = %v, want 0", report.Credit)
	}
}

func TestBuildReportFailsWithoutSalary(t *testing.T) {
	accountRepo := &fakeAccountRepo{accounts: []*models.Account{
		{ID: 1, Name: "Current", AccountID: "acc_1"},
	}}
	potRepo := &fakePotRepo{}
	txRepo := &fakeTxRepo{}

	svc := NewReportService(reportTestConfig(), accountRepo, potRepo, txRepo, zap.NewNop())
	if _, err := svc.BuildReport(time.Now()); err == nil {
		t.Fatal("BuildReport with no salary history, want error")
	}
}

// fakeReportPayment drives accumulate directly.
type fakeReportPayment struct {
	name      string
	kind      payments.Kind
	status    string
	amount    float64
	nextMonth float64
	dueNext   bool
	due       *time.Time
}

func (p *fakeReportPayment) Name() string            { return p.name }
func (p *fakeReportPayment) Kind() payments.Kind     { return p.kind }
func (p *fakeReportPayment) Status() string          { return p.status }
func (p *fakeReportPayment) DueDate() *time.Time     { return p.due }
func (p *fakeReportPayment) LastDate() *time.Time    { return nil }
func (p *fakeReportPayment) DisplayAmount() float64  { return p.amount }
func (p *fakeReportPayment) NextMonthAmount() float64 { return p.nextMonth }
func (p *fakeReportPayment) Remaining() *float64     { return nil }
func (p *fakeReportPayment) Suffix() string          { return "" }
func (p *fakeReportPayment) DueNextMonth() bool      { return p.dueNext }

func TestAccumulateTotals(t *testing.T) {
	svc := &ReportService{logger: zap.NewNop()}
	report := &Report{}

	svc.accumulate(report, []payments.Payment{
		&fakeReportPayment{name: "a", kind: payments.KindPayment, status: models.StatusDue, amount: 10.10, nextMonth: 10.10, dueNext: true},
		&fakeReportPayment{name: "b", kind: payments.KindPayment, status: models.StatusPaid, amount: 20.20, nextMonth: 20.20, dueNext: true},
		&fakeReportPayment{name: "c", kind: payments.KindPayment, status: models.StatusSkipped, amount: 99, nextMonth: 30, dueNext: true},
		// A skipped refund contributes nothing to next month.
		&fakeReportPayment{name: "d", kind: payments.KindRefund, status: models.StatusSkipped, amount: -50, nextMonth: -50, dueNext: true},
	})

	if report.Due != 10.10 {
		t.Errorf("Due = %v, want 10.10", report.Due)
	}
	if report.TotalThisMonth != 30.30 {
		t.Errorf("TotalThisMonth = %v, want 30.30", report.TotalThisMonth)
	}
	if report.TotalNextMonth != 60.30 {
		t.Errorf("TotalNextMonth = %v, want 60.30", report.TotalNextMonth)
	}
	if len(report.Payments) != 4 {
		t.Errorf("Payments = %d rows, want 4", len(report.Payments))
	}
}

func TestSortByDueDateNilFirstAndStable(t *testing.T) {
	d1 := time.Date(2025, time.June, 5, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2025, time.June, 20, 0, 0, 0, 0, time.UTC)
	list := []payments.Payment{
		&fakeReportPayment{name: "late", due: &d2},
		&fakeReportPayment{name: "unknown", due: nil},
		&fakeReportPayment{name: "early", due: &d1},
		&fakeReportPayment{name: "also-late", due: &d2},
	}

	sortByDueDate(list)

	want := []string{"unknown", "early", "late", "also-late"}
	for i, name := range want {
		if list[i].Name() != name {
			t.Errorf("list[%d] = %q, want %q", i, list[i].Name(), name)
		}
	}
}
