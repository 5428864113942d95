package repositories

import (
	"database/sql"

	"potwatch/internal/models"
)

type PotRepository interface {
	GetPotByName(accountID int64, name string) (*models.Pot, error)
	ListPots(accountID int64) ([]*models.Pot, error)
	UpsertPot(tx *sql.Tx, p *models.Pot) error
	UpdatePotBalance(potID int64, balance float64) error
}

type potRepository struct {
	db *sql.DB
}

func NewPotRepository(db *sql.DB) PotRepository {
	return &potRepository{db: db}
}

const potColumns = `
	id, account_id, pot_id, name, balance, deleted,
	last_monthly_transfer_date, created_at, updated_at
`

func scanPot(row interface{ Scan(...interface{}) error }) (*models.Pot, error) {
	p := &models.Pot{}
	err := row.Scan(
		&p.ID,
		&p.AccountID,
		&p.PotID,
		&p.Name,
		&p.Balance,
		&p.Deleted,
		&p.LastMonthlyTransferDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *potRepository) GetPotByName(accountID int64, name string) (*models.Pot, error) {
	query := `SELECT ` + potColumns + ` FROM pots WHERE account_id = ? AND name = ? AND deleted = 0`
	return scanPot(r.db.QueryRow(query, accountID, name))
}

func (r *potRepository) ListPots(accountID int64) ([]*models.Pot, error) {
	query := `SELECT ` + potColumns + ` FROM pots WHERE account_id = ? AND deleted = 0 ORDER BY name`
	rows, err := r.db.Query(query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pots []*models.Pot
	for rows.Next() {
		p, err := scanPot(rows)
		if err != nil {
			return nil, err
		}
		pots = append(pots, p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return pots, nil
}

// upsertPotQuery reassigns id through LAST_INSERT_ID on the duplicate
// branch so re-synced pots keep reporting their row id.
const upsertPotQuery = `
		INSERT INTO pots (account_id, pot_id, name, balance, deleted)
		VALUES (?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			id = LAST_INSERT_ID(id),
			name = VALUES(name),
			balance = VALUES(balance),
			deleted = VALUES(deleted),
			updated_at = CURRENT_TIMESTAMP
	`

func (r *potRepository) UpsertPot(tx *sql.Tx, p *models.Pot) error {
	result, err := tx.Exec(upsertPotQuery, p.AccountID, p.PotID, p.Name, p.Balance, p.Deleted)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	if id > 0 {
		p.ID = id
	}
	return nil
}

func (r *potRepository) UpdatePotBalance(potID int64, balance float64) error {
	query := `UPDATE pots SET balance = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	result, err := r.db.Exec(query, balance, potID)
	if err != nil {
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
