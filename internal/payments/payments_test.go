package payments

import (
	"database/sql"
	"sort"
	"strings"
	"time"

	"potwatch/internal/models"
	"potwatch/internal/repositories"
)

// fakeTransactionRepo evaluates criteria against an in-memory slice, close
// enough to the SQL semantics for payment matching: polarity, substring
// descriptions, exact amounts, start-date floor, settled-day filter, and
// date ordering.
type fakeTransactionRepo struct {
	transactions []*models.Transaction
}

func (r *fakeTransactionRepo) FindTransactions(c repositories.TransactionCriteria) ([]*models.Transaction, error) {
	var out []*models.Transaction
	for _, t := range r.transactions {
		if !matchesCriteria(t, c) {
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
	if c.Limit > 0 && len(out) > c.Limit {
		out = out[:c.Limit]
	}
	return out, nil
}

func (r *fakeTransactionRepo) UpsertTransaction(tx *sql.Tx, t *models.Transaction) error {
	return nil
}

func (r *fakeTransactionRepo) UpsertMetadata(tx *sql.Tx, transactionID int64, key, value string) error {
	return nil
}

func matchesCriteria(t *models.Transaction, c repositories.TransactionCriteria) bool {
	if len(c.AccountIDs) > 0 {
		found := false
		for _, id := range c.AccountIDs {
			if t.AccountID == id {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	amount := t.MoneyOut.Float64
	valid := t.MoneyOut.Valid
	if c.MoneyIn {
		amount = t.MoneyIn.Float64
		valid = t.MoneyIn.Valid
	}
	if !valid || amount <= 0 || t.Declined {
		return false
	}
	if len(c.Descriptions) > 0 {
		found := false
		for _, d := range c.Descriptions {
			if strings.Contains(t.Description, d) {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if c.StartDate != nil && t.Date.Before(*c.StartDate) {
		return false
	}
	if len(c.Amounts) > 0 {
		found := false
		for _, a := range c.Amounts {
			if amount == a {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	if c.MinAmount != nil && amount < *c.MinAmount {
		return false
	}
	if c.SettledOn != nil {
		if !t.Settled.Valid || !strings.HasPrefix(t.Settled.String, c.SettledOn.Format("2006-01-02")) {
			return false
		}
	}
	return true
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := date(y, m, d)
	return &t
}

var nextTxID int64

func debit(accountID int64, day time.Time, description string, amount float64) *models.Transaction {
	nextTxID++
	return &models.Transaction{
		ID:          nextTxID,
		AccountID:   accountID,
		Date:        day,
		Type:        models.TransactionDebit,
		Description: description,
		MoneyOut:    sql.NullFloat64{Float64: amount, Valid: true},
	}
}

func credit(accountID int64, day time.Time, description string, amount float64) *models.Transaction {
	nextTxID++
	return &models.Transaction{
		ID:          nextTxID,
		AccountID:   accountID,
		Date:        day,
		Type:        models.TransactionCredit,
		Description: description,
		MoneyIn:     sql.NullFloat64{Float64: amount, Valid: true},
	}
}

// testDeps wires a Deps against the fake repository with a fixed cycle of
// 2025-05-28 / 2025-06-27 paydays, evaluated on 2025-06-10.
func testDeps(repo *fakeTransactionRepo) Deps {
	ctx := NewContext()
	return Deps{
		Lookup: NewLookup(repo, ctx, nil),
		Ctx:    ctx,
		Cycle: Cycle{
			Today:     date(2025, time.June, 10),
			Last:      date(2025, time.May, 28),
			Next:      date(2025, time.June, 27),
			Following: date(2025, time.July, 28),
		},
		Account:           &models.Account{ID: 1, Name: "Current"},
		FlexPaymentDay:    1,
		FlexSettlementDay: 16,
	}
}
