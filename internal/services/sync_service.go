package services

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"potwatch/internal/models"
	"potwatch/internal/provider"
	"potwatch/internal/repositories"
)

// SyncClient is the slice of the provider API the sync pass reads from.
type SyncClient interface {
	Accounts() ([]provider.Account, error)
	Balance(accountID string) (*provider.Balance, error)
	Pots(accountID string) ([]provider.Pot, error)
	Transactions(accountID string, since time.Time) ([]provider.Transaction, error)
}

// SyncService mirrors provider accounts, pots, and transactions into the
// local store. Upserts are keyed on the provider's external ids, so a
// re-run is idempotent.
type SyncService struct {
	db          *sql.DB
	client      SyncClient
	accountRepo repositories.AccountRepository
	potRepo     repositories.PotRepository
	txRepo      repositories.TransactionRepository
	logger      *zap.Logger
}

func NewSyncService(
	db *sql.DB,
	client SyncClient,
	accountRepo repositories.AccountRepository,
	potRepo repositories.PotRepository,
	txRepo repositories.TransactionRepository,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		db:          db,
		client:      client,
		accountRepo: accountRepo,
		potRepo:     potRepo,
		txRepo:      txRepo,
		logger:      logger,
	}
}

type SyncResult struct {
	BatchID      string   `json:"batch_id"`
	Accounts     int      `json:"accounts"`
	Pots         int      `json:"pots"`
	Transactions int      `json:"transactions"`
	Errors       []string `json:"errors,omitempty"`
}

// Sync refreshes the local mirror from the provider. Per-record failures
// are accumulated rather than aborting the batch.
func (s *SyncService) Sync() (*SyncResult, error) {
	result := &SyncResult{BatchID: uuid.NewString()}

	accounts, err := s.client.Accounts()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch accounts: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	for _, pa := range accounts {
		if pa.Closed {
			continue
		}
		if err := s.syncAccount(tx, pa, result); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("account %s: %v", pa.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit sync batch: %v", err)
	}

	s.logger.Info("sync complete",
		zap.String("batch_id", result.BatchID),
		zap.Int("accounts", result.Accounts),
		zap.Int("pots", result.Pots),
		zap.Int("transactions", result.Transactions),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

func (s *SyncService) syncAccount(tx *sql.Tx, pa provider.Account, result *SyncResult) error {
	balance, err := s.client.Balance(pa.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch balance: %w", err)
	}

	account := &models.Account{
		ProviderID: 1,
		Name:       pa.Description,
		AccountID:  pa.ID,
		Type:       accountType(pa.Type),
		Balance:    float64(balance.Balance) / 100,
		Available:  float64(balance.TotalBalance) / 100,
	}
	if pa.SortCode != "" {
		account.SortCode = sql.NullString{String: pa.SortCode, Valid: true}
	}
	if pa.AccountNo != "" {
		account.AccountNo = sql.NullString{String: pa.AccountNo, Valid: true}
	}
	// Credit accounts store a positive "amount owed".
	if account.Type == models.AccountTypeCredit {
		account.Balance = -account.Balance
	}

	if err := s.accountRepo.UpsertAccount(tx, account); err != nil {
		return fmt.Errorf("failed to upsert account: %w", err)
	}
	if account.ID == 0 {
		existing, err := s.accountRepo.GetAccountByExternalID(pa.ID)
		if err != nil {
			return fmt.Errorf("failed to reload account: %w", err)
		}
		account.ID = existing.ID
	}
	result.Accounts++

	pots, err := s.client.Pots(pa.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch pots: %w", err)
	}
	potIDs := make(map[string]int64, len(pots))
	for _, pp := range pots {
		pot := &models.Pot{
			AccountID: account.ID,
			PotID:     pp.ID,
			Name:      pp.Name,
			Balance:   float64(pp.Balance) / 100,
			Deleted:   pp.Deleted,
		}
		if err := s.potRepo.UpsertPot(tx, pot); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("pot %s: %v", pp.ID, err))
			continue
		}
		potIDs[pp.ID] = pot.ID
		result.Pots++
	}

	transactions, err := s.client.Transactions(pa.ID, time.Time{})
	if err != nil {
		return fmt.Errorf("failed to fetch transactions: %w", err)
	}
	for _, pt := range transactions {
		t := convertTransaction(account.ID, potIDs, pt)
		if err := s.txRepo.UpsertTransaction(tx, t); err != nil {
			result.Errors = append(result.Errors,
				fmt.Sprintf("transaction %s: %v", pt.ID, err))
			continue
		}
		for key, value := range pt.Metadata {
			if err := s.txRepo.UpsertMetadata(tx, t.ID, key, value); err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("transaction %s metadata %s: %v", pt.ID, key, err))
			}
		}
		result.Transactions++
	}

	return nil
}

func accountType(providerType string) string {
	if strings.Contains(providerType, "flex") || strings.Contains(providerType, "loan") {
		return models.AccountTypeCredit
	}
	return models.AccountTypeBank
}

// convertTransaction maps a provider transaction onto the local row.
// Pot-internal transfers carry the pot's external id in metadata; potIDs
// resolves it to the local pot row.
func convertTransaction(accountID int64, potIDs map[string]int64, pt provider.Transaction) *models.Transaction {
	t := &models.Transaction{
		AccountID:     accountID,
		TransactionID: pt.ID,
		Date:          pt.Created,
		Description:   pt.Description,
		Notes:         pt.Notes,
		Scheme:        pt.Scheme,
		Currency:      pt.Currency,
		LocalCurrency: pt.LocalCurrency,
		LocalAmount:   float64(abs64(pt.LocalAmount)) / 100,
		Pending:       pt.Settled == "",
		Declined:      pt.DeclineReason != "",
		DeclineReason: pt.DeclineReason,
	}
	if pt.Amount >= 0 {
		t.Type = models.TransactionCredit
		t.MoneyIn = sql.NullFloat64{Float64: float64(pt.Amount) / 100, Valid: true}
	} else {
		t.Type = models.TransactionDebit
		t.MoneyOut = sql.NullFloat64{Float64: float64(-pt.Amount) / 100, Valid: true}
	}
	if pt.Settled != "" {
		t.Settled = sql.NullString{String: pt.Settled, Valid: true}
	}
	if potID, ok := potIDs[pt.Metadata["pot_id"]]; ok {
		t.PotID = sql.NullInt64{Int64: potID, Valid: true}
	}
	return t
}

func abs64(n int64) int64 {
	if n < 0 {
		return -n
	}
	return n
}
