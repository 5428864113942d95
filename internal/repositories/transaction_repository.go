package repositories

import (
	"database/sql"
	"strings"
	"time"

	"potwatch/internal/models"
)

// TransactionCriteria is the closed set of clauses payment matching needs.
// It compiles to one parameterized WHERE clause; it is not a general query
// builder.
type TransactionCriteria struct {
	// AccountIDs restricts the scan to these local account ids.
	AccountIDs []int64

	// MoneyIn selects the polarity: money_in > 0 when true, money_out > 0
	// otherwise. Declined transactions are always excluded.
	MoneyIn bool

	// Descriptions are OR-combined case-sensitive substring matches.
	Descriptions []string

	// Metadata, when set, is an AND-block of structured key/value matches
	// OR'd with the description clause.
	Metadata map[string]string

	// StartDate floors the transaction date when set.
	StartDate *time.Time

	// Amounts, when non-empty, is an exact-match OR-list against the
	// polarity column.
	Amounts []float64

	// MinAmount floors the polarity column when set.
	MinAmount *float64

	// SettledOn restricts to transactions settled on that calendar day.
	SettledOn *time.Time

	// OldestFirst flips the default newest-first date ordering.
	OldestFirst bool

	Limit int
}

type TransactionRepository interface {
	FindTransactions(c TransactionCriteria) ([]*models.Transaction, error)
	UpsertTransaction(tx *sql.Tx, t *models.Transaction) error
	UpsertMetadata(tx *sql.Tx, transactionID int64, key, value string) error
}

type transactionRepository struct {
	db *sql.DB
}

func NewTransactionRepository(db *sql.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

const transactionColumns = `
	t.id, t.account_id, t.transaction_id, t.date, t.type, t.description,
	t.ref, t.money_in, t.money_out, t.pending, t.currency, t.local_currency,
	t.local_amount, t.merchant_id, t.notes, t.originator, t.scheme,
	t.settled, t.declined, t.decline_reason, t.counterparty_id, t.pot_id,
	t.created_at, t.updated_at
`

// Compile turns the criteria into a WHERE clause and its positional
// parameters.
func (c TransactionCriteria) Compile() (string, []interface{}) {
	var clauses []string
	var params []interface{}

	if len(c.AccountIDs) > 0 {
		clauses = append(clauses, "t.account_id IN ("+placeholders(len(c.AccountIDs))+")")
		for _, id := range c.AccountIDs {
			params = append(params, id)
		}
	}

	column := "t.money_out"
	if c.MoneyIn {
		column = "t.money_in"
	}
	clauses = append(clauses, column+" > 0")
	clauses = append(clauses, "t.declined = 0")

	var matchParts []string
	if len(c.Descriptions) > 0 {
		var descParts []string
		for _, d := range c.Descriptions {
			descParts = append(descParts, "t.description LIKE BINARY CONCAT('%', ?, '%')")
			params = append(params, d)
		}
		matchParts = append(matchParts, "("+strings.Join(descParts, " OR ")+")")
	}
	if len(c.Metadata) > 0 {
		var metaParts []string
		for key, value := range c.Metadata {
			metaParts = append(metaParts,
				"EXISTS (SELECT 1 FROM transaction_metadata m WHERE m.transaction_id = t.id AND m.`key` = ? AND m.value = ?)")
			params = append(params, key, value)
		}
		matchParts = append(matchParts, "("+strings.Join(metaParts, " AND ")+")")
	}
	if len(matchParts) > 0 {
		clauses = append(clauses, "("+strings.Join(matchParts, " OR ")+")")
	}

	if c.StartDate != nil {
		clauses = append(clauses, "t.date >= ?")
		params = append(params, c.StartDate.Format("2006-01-02"))
	}

	if len(c.Amounts) > 0 {
		clauses = append(clauses, column+" IN ("+placeholders(len(c.Amounts))+")")
		for _, a := range c.Amounts {
			params = append(params, a)
		}
	}

	if c.MinAmount != nil {
		clauses = append(clauses, column+" >= ?")
		params = append(params, *c.MinAmount)
	}

	if c.SettledOn != nil {
		clauses = append(clauses, "DATE(t.settled) = ?")
		params = append(params, c.SettledOn.Format("2006-01-02"))
	}

	return strings.Join(clauses, " AND "), params
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (r *transactionRepository) FindTransactions(c TransactionCriteria) ([]*models.Transaction, error) {
	where, params := c.Compile()

	order := " ORDER BY t.date DESC, t.id DESC"
	if c.OldestFirst {
		order = " ORDER BY t.date ASC, t.id ASC"
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions t WHERE ` + where + order
	if c.Limit > 0 {
		query += " LIMIT ?"
		params = append(params, c.Limit)
	}

	rows, err := r.db.Query(query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		t := &models.Transaction{}
		err := rows.Scan(
			&t.ID,
			&t.AccountID,
			&t.TransactionID,
			&t.Date,
			&t.Type,
			&t.Description,
			&t.Ref,
			&t.MoneyIn,
			&t.MoneyOut,
			&t.Pending,
			&t.Currency,
			&t.LocalCurrency,
			&t.LocalAmount,
			&t.MerchantID,
			&t.Notes,
			&t.Originator,
			&t.Scheme,
			&t.Settled,
			&t.Declined,
			&t.DeclineReason,
			&t.CounterpartyID,
			&t.PotID,
			&t.CreatedAt,
			&t.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return transactions, nil
}

// upsertTransactionQuery reassigns id through LAST_INSERT_ID on the
// duplicate branch, so LastInsertId reports the existing row's id instead
// of 0 and callers can attach metadata on re-sync.
const upsertTransactionQuery = `
		INSERT INTO transactions (
			account_id, transaction_id, date, type, description, ref,
			money_in, money_out, pending, currency, local_currency,
			local_amount, merchant_id, notes, originator, scheme, settled,
			declined, decline_reason, counterparty_id, pot_id
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			id = LAST_INSERT_ID(id),
			date = VALUES(date),
			type = VALUES(type),
			description = VALUES(description),
			ref = VALUES(ref),
			money_in = VALUES(money_in),
			money_out = VALUES(money_out),
			pending = VALUES(pending),
			currency = VALUES(currency),
			local_currency = VALUES(local_currency),
			local_amount = VALUES(local_amount),
			merchant_id = VALUES(merchant_id),
			notes = VALUES(notes),
			originator = VALUES(originator),
			scheme = VALUES(scheme),
			settled = VALUES(settled),
			declined = VALUES(declined),
			decline_reason = VALUES(decline_reason),
			counterparty_id = VALUES(counterparty_id),
			pot_id = VALUES(pot_id),
			updated_at = CURRENT_TIMESTAMP
	`

func (r *transactionRepository) UpsertTransaction(tx *sql.Tx, t *models.Transaction) error {
	result, err := tx.Exec(upsertTransactionQuery,
		t.AccountID,
		t.TransactionID,
		t.Date,
		t.Type,
		t.Description,
		t.Ref,
		t.MoneyIn,
		t.MoneyOut,
		t.Pending,
		t.Currency,
		t.LocalCurrency,
		t.LocalAmount,
		t.MerchantID,
		t.Notes,
		t.Originator,
		t.Scheme,
		t.Settled,
		t.Declined,
		t.DeclineReason,
		t.CounterpartyID,
		t.PotID,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	if id > 0 {
		t.ID = id
	}
	return nil
}

func (r *transactionRepository) UpsertMetadata(tx *sql.Tx, transactionID int64, key, value string) error {
	query := "INSERT INTO transaction_metadata (transaction_id, `key`, value) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE value = VALUES(value)"
	_, err := tx.Exec(query, transactionID, key, value)
	return err
}
