package repositories

import (
	"database/sql"
	"errors"

	"potwatch/internal/models"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

type AccountRepository interface {
	GetAccountByName(name string) (*models.Account, error)
	GetAccountByExternalID(accountID string) (*models.Account, error)
	ListAccounts() ([]*models.Account, error)
	UpsertAccount(tx *sql.Tx, a *models.Account) error
}

type accountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) AccountRepository {
	return &accountRepository{db: db}
}

const accountColumns = `
	id, provider_id, name, account_id, type, balance, available,
	sortcode, account_no, credit_limit, created_at, updated_at
`

func scanAccount(row interface{ Scan(...interface{}) error }) (*models.Account, error) {
	a := &models.Account{}
	err := row.Scan(
		&a.ID,
		&a.ProviderID,
		&a.Name,
		&a.AccountID,
		&a.Type,
		&a.Balance,
		&a.Available,
		&a.SortCode,
		&a.AccountNo,
		&a.CreditLimit,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *accountRepository) GetAccountByName(name string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE name = ?`
	return scanAccount(r.db.QueryRow(query, name))
}

func (r *accountRepository) GetAccountByExternalID(accountID string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE account_id = ?`
	return scanAccount(r.db.QueryRow(query, accountID))
}

func (r *accountRepository) ListAccounts() ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY id`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *accountRepository) UpsertAccount(tx *sql.Tx, a *models.Account) error {
	query := `
		INSERT INTO accounts (
			provider_id, name, account_id, type, balance, available,
			sortcode, account_no, credit_limit
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			name = VALUES(name),
			type = VALUES(type),
			balance = VALUES(balance),
			available = VALUES(available),
			sortcode = VALUES(sortcode),
			account_no = VALUES(account_no),
			credit_limit = VALUES(credit_limit),
			updated_at = CURRENT_TIMESTAMP
	`
	result, err := tx.Exec(query,
		a.ProviderID,
		a.Name,
		a.AccountID,
		a.Type,
		a.Balance,
		a.Available,
		a.SortCode,
		a.AccountNo,
		a.CreditLimit,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	if id > 0 {
		a.ID = id
	}
	return nil
}
