package models

import (
	"database/sql"
	"time"
)

// Account mirrors one provider account. Credit-account balances are stored
// as a positive "amount owed" (the provider's raw balance negated).
type Account struct {
	ID          int64           `db:"id" json:"id"`
	ProviderID  int64           `db:"provider_id" json:"provider_id"`
	Name        string          `db:"name" json:"name"`
	AccountID   string          `db:"account_id" json:"account_id"`
	Type        string          `db:"type" json:"type"`
	Balance     float64         `db:"balance" json:"balance"`
	Available   float64         `db:"available" json:"available"`
	SortCode    sql.NullString  `db:"sortcode" json:"sortcode,omitempty"`
	AccountNo   sql.NullString  `db:"account_no" json:"account_no,omitempty"`
	CreditLimit sql.NullFloat64 `db:"credit_limit" json:"credit_limit,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"-"`
	UpdatedAt   time.Time       `db:"updated_at" json:"-"`
}

// Pot is a savings envelope attached to an account.
type Pot struct {
	ID                      int64          `db:"id" json:"id"`
	AccountID               int64          `db:"account_id" json:"account_id"`
	PotID                   string         `db:"pot_id" json:"pot_id"`
	Name                    string         `db:"name" json:"name"`
	Balance                 float64        `db:"balance" json:"balance"`
	Deleted                 bool           `db:"deleted" json:"deleted"`
	LastMonthlyTransferDate sql.NullString `db:"last_monthly_transfer_date" json:"last_monthly_transfer_date,omitempty"`
	CreatedAt               time.Time      `db:"created_at" json:"-"`
	UpdatedAt               time.Time      `db:"updated_at" json:"-"`
}

// Transaction mirrors one provider transaction. Written only by the sync
// pass; unique on (account_id, transaction_id).
type Transaction struct {
	ID             int64           `db:"id" json:"id"`
	AccountID      int64           `db:"account_id" json:"account_id"`
	TransactionID  string          `db:"transaction_id" json:"transaction_id"`
	Date           time.Time       `db:"date" json:"date"`
	Type           string          `db:"type" json:"type"`
	Description    string          `db:"description" json:"description"`
	Ref            string          `db:"ref" json:"ref"`
	MoneyIn        sql.NullFloat64 `db:"money_in" json:"money_in"`
	MoneyOut       sql.NullFloat64 `db:"money_out" json:"money_out"`
	Pending        bool            `db:"pending" json:"pending"`
	Currency       string          `db:"currency" json:"currency"`
	LocalCurrency  string          `db:"local_currency" json:"local_currency"`
	LocalAmount    float64         `db:"local_amount" json:"local_amount"`
	MerchantID     sql.NullInt64   `db:"merchant_id" json:"merchant_id,omitempty"`
	Notes          string          `db:"notes" json:"notes"`
	Originator     string          `db:"originator" json:"originator"`
	Scheme         string          `db:"scheme" json:"scheme"`
	Settled        sql.NullString  `db:"settled" json:"settled,omitempty"`
	Declined       bool            `db:"declined" json:"declined"`
	DeclineReason  string          `db:"decline_reason" json:"decline_reason"`
	CounterpartyID sql.NullInt64   `db:"counterparty_id" json:"counterparty_id,omitempty"`
	PotID          sql.NullInt64   `db:"pot_id" json:"pot_id,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"-"`
	UpdatedAt      time.Time       `db:"updated_at" json:"-"`
}

// TransactionMetadata holds one structured key/value pair attached to a
// transaction by the provider.
type TransactionMetadata struct {
	ID            int64  `db:"id" json:"id"`
	TransactionID int64  `db:"transaction_id" json:"transaction_id"`
	Key           string `db:"key" json:"key"`
	Value         string `db:"value" json:"value"`
}

// Account type constants
const (
	AccountTypeBank   = "bank"
	AccountTypeCredit = "credit"
)

// Transaction type constants
const (
	TransactionCredit = "credit"
	TransactionDebit  = "debit"
)

// Payment status constants: a payment is always exactly one of these,
// recomputed fresh on every report run and never persisted.
const (
	StatusDue     = "DUE"
	StatusPaid    = "PAID"
	StatusSkipped = "SKIPPED"
)
