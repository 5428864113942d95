package payments

import (
	"time"

	"potwatch/internal/config"
	"potwatch/internal/models"
	"potwatch/internal/repositories"
)

// Lookup builds transaction-matching criteria for a payment and runs them
// through the repository, applying the run context's de-duplication when
// claiming a last payment.
type Lookup struct {
	repo repositories.TransactionRepository
	ctx  *Context

	// resolveAccount maps a configured account name to a local account id,
	// used for other_accounts entries.
	resolveAccount func(name string) (int64, bool)
}

func NewLookup(repo repositories.TransactionRepository, ctx *Context, resolveAccount func(string) (int64, bool)) *Lookup {
	if resolveAccount == nil {
		resolveAccount = func(string) (int64, bool) { return 0, false }
	}
	return &Lookup{repo: repo, ctx: ctx, resolveAccount: resolveAccount}
}

func (l *Lookup) accountIDs(accountID int64, cfg config.PaymentConfig) []int64 {
	ids := []int64{accountID}
	for _, name := range cfg.OtherAccounts {
		if id, ok := l.resolveAccount(name); ok {
			ids = append(ids, id)
		}
	}
	return ids
}

func (l *Lookup) criteria(accountID int64, cfg config.PaymentConfig, moneyIn bool, amounts []float64, withStartDate bool) repositories.TransactionCriteria {
	c := repositories.TransactionCriteria{
		AccountIDs:   l.accountIDs(accountID, cfg),
		MoneyIn:      moneyIn,
		Descriptions: cfg.Desc,
		Metadata:     cfg.Metadata,
		Amounts:      amounts,
	}
	if withStartDate && cfg.StartDate != nil {
		c.StartDate = cfg.StartDate
	}
	return c
}

// LastPayment scans newest first and returns the first candidate not yet
// claimed by another payment this run, claiming it.
func (l *Lookup) LastPayment(accountID int64, cfg config.PaymentConfig, moneyIn bool, amounts []float64) (*models.Transaction, error) {
	return l.scanUnclaimed(l.criteria(accountID, cfg, moneyIn, amounts, true))
}

// OlderLastPayment repeats the last-payment scan without the start-date
// floor, so history predating a reconfigured start date is still found.
func (l *Lookup) OlderLastPayment(accountID int64, cfg config.PaymentConfig, moneyIn bool, amounts []float64) (*models.Transaction, error) {
	return l.scanUnclaimed(l.criteria(accountID, cfg, moneyIn, amounts, false))
}

func (l *Lookup) scanUnclaimed(c repositories.TransactionCriteria) (*models.Transaction, error) {
	transactions, err := l.repo.FindTransactions(c)
	if err != nil {
		return nil, err
	}
	for _, t := range transactions {
		if l.ctx.Claim(t.ID) {
			return t, nil
		}
	}
	return nil, nil
}

// AllTransactions returns every match oldest first, for walking a
// multi-instalment schedule.
func (l *Lookup) AllTransactions(accountID int64, cfg config.PaymentConfig, moneyIn bool, amounts []float64) ([]*models.Transaction, error) {
	c := l.criteria(accountID, cfg, moneyIn, amounts, true)
	c.OldestFirst = true
	return l.repo.FindTransactions(c)
}

// SettledOn returns credits settled on the given calendar day whose
// description matches, newest first. Used to locate the consolidated Flex
// repayment.
func (l *Lookup) SettledOn(accountID int64, descriptions []string, day time.Time) ([]*models.Transaction, error) {
	settled := day
	return l.repo.FindTransactions(repositories.TransactionCriteria{
		AccountIDs:   []int64{accountID},
		MoneyIn:      true,
		Descriptions: descriptions,
		SettledOn:    &settled,
	})
}
