package services

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"potwatch/internal/config"
	"potwatch/internal/models"
	"potwatch/internal/payments"
	"potwatch/internal/repositories"
	"potwatch/internal/salary"
)

// ReportService expands the configured payment lists into concrete
// payments for the current salary cycle and aggregates the totals the
// reconciler acts on.
type ReportService struct {
	cfg         *config.Config
	accountRepo repositories.AccountRepository
	potRepo     repositories.PotRepository
	txRepo      repositories.TransactionRepository
	logger      *zap.Logger
}

func NewReportService(
	cfg *config.Config,
	accountRepo repositories.AccountRepository,
	potRepo repositories.PotRepository,
	txRepo repositories.TransactionRepository,
	logger *zap.Logger,
) *ReportService {
	return &ReportService{
		cfg:         cfg,
		accountRepo: accountRepo,
		potRepo:     potRepo,
		txRepo:      txRepo,
		logger:      logger,
	}
}

// ReportPayment is one row of the produced report.
type ReportPayment struct {
	Status      string   `json:"status"`
	PaymentType string   `json:"payment_type"`
	Name        string   `json:"name"`
	Suffix      string   `json:"suffix,omitempty"`
	Amount      float64  `json:"amount"`
	Remaining   *float64 `json:"remaining,omitempty"`
	LastDate    string   `json:"last_date,omitempty"`
	DueDate     string   `json:"due_date,omitempty"`
}

// Report is the machine-mode document; Account and Pot ride along for the
// reconciler but stay out of the JSON.
type Report struct {
	Balance        float64         `json:"balance"`
	Due            float64         `json:"due"`
	TotalThisMonth float64         `json:"total_this_month"`
	TotalNextMonth float64         `json:"total_next_month"`
	Payments       []ReportPayment `json:"payments"`
	Shortfall      float64         `json:"shortfall"`
	Credit         float64         `json:"credit"`

	Account *models.Account `json:"-"`
	Pot     *models.Pot     `json:"-"`
}

// BuildReport runs one full report for the given evaluation time. All
// de-duplication state is scoped to this call.
func (s *ReportService) BuildReport(now time.Time) (*Report, error) {
	runID := uuid.NewString()

	account, err := s.accountRepo.GetAccountByName(s.cfg.Report.Account)
	if err != nil {
		return nil, fmt.Errorf("account %q: %w", s.cfg.Report.Account, err)
	}

	salaryAccount := account
	if s.cfg.Report.SalaryAccount != "" {
		salaryAccount, err = s.accountRepo.GetAccountByName(s.cfg.Report.SalaryAccount)
		if err != nil {
			return nil, fmt.Errorf("salary account %q: %w", s.cfg.Report.SalaryAccount, err)
		}
	}

	calculator := salary.NewCalculator(
		s.txRepo,
		[]int64{salaryAccount.ID},
		s.cfg.Report.SalaryDescription,
		s.cfg.Report.SalaryMinimum,
		s.cfg.Report.SalaryPaymentDay,
		s.cfg.Report.BankHolidays,
		s.cfg.Report.ExemptDates,
	)
	last, next, following, err := calculator.Boundaries()
	if err != nil {
		return nil, err
	}

	accountsByName, err := s.accountIndex()
	if err != nil {
		return nil, err
	}

	ctx := payments.NewContext()
	lookup := payments.NewLookup(s.txRepo, ctx, func(name string) (int64, bool) {
		id, ok := accountsByName[name]
		return id, ok
	})

	deps := payments.Deps{
		Lookup: lookup,
		Ctx:    ctx,
		Cycle: payments.Cycle{
			Today:     now,
			Last:      last,
			Next:      next,
			Following: following,
		},
		Account:           account,
		Rates:             s.cfg.ExchangeRates,
		FlexPaymentDay:    s.cfg.Report.FlexPaymentDay,
		FlexSettlementDay: s.cfg.Report.FlexSettlementDay,
	}

	var all []payments.Payment
	for _, list := range s.cfg.PaymentLists {
		built, err := s.buildList(list, deps)
		if err != nil {
			return nil, fmt.Errorf("payment list %q: %w", list.Name, err)
		}
		all = append(all, built...)
	}

	report := &Report{Account: account}
	s.accumulate(report, all)

	pot, err := s.potRepo.GetPotByName(account.ID, s.cfg.Report.Pot)
	if err != nil {
		return nil, fmt.Errorf("pot %q: %w", s.cfg.Report.Pot, err)
	}
	report.Pot = pot
	report.Balance = pot.Balance

	duePence := int64(decimal.NewFromFloat(report.Due).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	potPence := int64(decimal.NewFromFloat(pot.Balance).Mul(decimal.NewFromInt(100)).Round(0).IntPart())
	if duePence > potPence {
		report.Shortfall = float64(duePence-potPence) / 100
	} else {
		report.Credit = float64(potPence-duePence) / 100
	}

	s.logger.Info("report built",
		zap.String("run_id", runID),
		zap.Time("last_salary", last),
		zap.Time("next_salary", next),
		zap.Int("payments", len(report.Payments)),
		zap.Float64("due", report.Due),
		zap.Float64("shortfall", report.Shortfall),
		zap.Float64("credit", report.Credit))
	return report, nil
}

func (s *ReportService) accountIndex() (map[string]int64, error) {
	accounts, err := s.accountRepo.ListAccounts()
	if err != nil {
		return nil, err
	}
	index := make(map[string]int64, len(accounts))
	for _, a := range accounts {
		index[a.Name] = a.ID
	}
	return index, nil
}

// buildList expands one configured list: monthly-cadence payments first,
// then annual ones, each group in ascending due-date order. Flex lists get
// a synthesized summary item ahead of the individual purchases, sharing
// the consolidated repayment so each item does not re-derive it.
func (s *ReportService) buildList(list config.PaymentList, deps payments.Deps) ([]payments.Payment, error) {
	if list.Type == string(payments.KindFlex) {
		var items []*payments.Flex
		for _, cfg := range list.Payments {
			p, err := payments.New(payments.KindFlex, cfg, deps)
			if err != nil {
				return nil, err
			}
			items = append(items, p.(*payments.Flex))
		}
		summary, err := payments.NewFlexSummary(items, deps)
		if err != nil {
			return nil, err
		}
		flexPayments := make([]payments.Payment, 0, len(items))
		for _, item := range items {
			flexPayments = append(flexPayments, item)
		}
		sortByDueDate(flexPayments)
		return append([]payments.Payment{summary}, flexPayments...), nil
	}

	kind := payments.Kind(list.Type)
	var monthly, annual []payments.Payment
	for _, cfg := range list.Payments {
		p, err := payments.New(kind, cfg, deps)
		if err != nil {
			return nil, err
		}
		if cfg.Annual() {
			annual = append(annual, p)
		} else {
			monthly = append(monthly, p)
		}
	}
	sortByDueDate(monthly)
	sortByDueDate(annual)
	return append(monthly, annual...), nil
}

// sortByDueDate sorts ascending by due date, stable so equal dates keep
// configuration order. Payments with no computable due date sort first.
func sortByDueDate(list []payments.Payment) {
	sort.SliceStable(list, func(i, j int) bool {
		di, dj := list[i].DueDate(), list[j].DueDate()
		if di == nil {
			return dj != nil
		}
		if dj == nil {
			return false
		}
		return di.Before(*dj)
	})
}

func (s *ReportService) accumulate(report *Report, all []payments.Payment) {
	due := decimal.Zero
	thisMonth := decimal.Zero
	nextMonth := decimal.Zero

	for _, p := range all {
		status := p.Status()

		switch status {
		case models.StatusDue:
			due = due.Add(decimal.NewFromFloat(p.DisplayAmount()))
			thisMonth = thisMonth.Add(decimal.NewFromFloat(p.DisplayAmount()))
		case models.StatusPaid:
			thisMonth = thisMonth.Add(decimal.NewFromFloat(p.DisplayAmount()))
		}

		skippedRefund := p.Kind() == payments.KindRefund && status == models.StatusSkipped
		if p.DueNextMonth() && !skippedRefund {
			nextMonth = nextMonth.Add(decimal.NewFromFloat(p.NextMonthAmount()))
		}

		report.Payments = append(report.Payments, ReportPayment{
			Status:      status,
			PaymentType: p.Kind().Label(),
			Name:        p.Name(),
			Suffix:      p.Suffix(),
			Amount:      p.DisplayAmount(),
			Remaining:   p.Remaining(),
			LastDate:    formatDate(p.LastDate()),
			DueDate:     formatDate(p.DueDate()),
		})
	}

	report.Due = due.Round(2).InexactFloat64()
	report.TotalThisMonth = thisMonth.Round(2).InexactFloat64()
	report.TotalNextMonth = nextMonth.Round(2).InexactFloat64()
}

func formatDate(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format("2006-01-02")
}

// RenderTable writes the human-mode fixed-width report.
func (r *Report) RenderTable(w io.Writer) {
	fmt.Fprintf(w, "%-8s  %-16s  %-32s  %-7s  %10s  %10s  %-12s  %-12s\n",
		"STATUS", "TYPE", "NAME", "PAID", "AMOUNT", "REMAINING", "LAST DATE", "DUE DATE")

	for _, p := range r.Payments {
		remaining := ""
		if p.Remaining != nil {
			remaining = fmt.Sprintf("%.2f", *p.Remaining)
		}
		fmt.Fprintf(w, "%-8s  %-16s  %-32s  %-7s  %10.2f  %10s  %-12s  %-12s\n",
			p.Status, p.PaymentType, p.Name, p.Suffix, p.Amount, remaining, p.LastDate, p.DueDate)
	}

	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "%-18s %10.2f\n", "Pot balance:", r.Balance)
	fmt.Fprintf(w, "%-18s %10.2f\n", "Due:", r.Due)
	fmt.Fprintf(w, "%-18s %10.2f\n", "Total this month:", r.TotalThisMonth)
	fmt.Fprintf(w, "%-18s %10.2f\n", "Total next month:", r.TotalNextMonth)
	if r.Shortfall > 0 {
		fmt.Fprintf(w, "%-18s %10.2f\n", "Shortfall:", r.Shortfall)
	}
	if r.Credit > 0 {
		fmt.Fprintf(w, "%-18s %10.2f\n", "Credit:", r.Credit)
	}
}
