package services

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"potwatch/internal/config"
)

// MoneyMover is the slice of the provider API that moves money between the
// account and a pot. Both calls retry internally and report success as a
// bool; a failed transfer is never fatal to the report.
type MoneyMover interface {
	DepositToPot(accountID, potID string, amount float64) bool
	WithdrawFromPot(accountID, potID string, amount float64) bool
}

type ReconcileNotifier interface {
	Notify(title, message string)
}

type Syncer interface {
	Sync() (*SyncResult, error)
}

// ReconcileService compares the report's due total against the funding
// pot and decides whether to move money, prompt, or notify. Automatic
// transfers are debounced: the shortfall or credit must hold steady for
// the configured delay before real money moves.
type ReconcileService struct {
	cfg      *config.Config
	client   MoneyMover
	notifier ReconcileNotifier
	syncer   Syncer
	logger   *zap.Logger

	stdin  io.Reader
	stdout io.Writer
}

func NewReconcileService(
	cfg *config.Config,
	client MoneyMover,
	notifier ReconcileNotifier,
	syncer Syncer,
	logger *zap.Logger,
) *ReconcileService {
	return &ReconcileService{
		cfg:      cfg,
		client:   client,
		notifier: notifier,
		syncer:   syncer,
		logger:   logger,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
	}
}

// Reconcile acts on the report's shortfall or credit. interactive selects
// prompting over automatic/notify behavior.
func (s *ReconcileService) Reconcile(report *Report, interactive bool) error {
	switch {
	case report.Shortfall > 0:
		return s.handleShortfall(report, interactive)
	case report.Credit > 0:
		return s.handleCredit(report, interactive)
	}
	return nil
}

func (s *ReconcileService) handleShortfall(report *Report, interactive bool) error {
	amount := report.Shortfall

	if interactive {
		if s.confirm(fmt.Sprintf("Shortfall of %.2f: deposit into %s pot?", amount, report.Pot.Name)) {
			s.performTransfer(report, "deposit", amount)
		}
		return nil
	}

	if s.cfg.Report.AutoDeposit {
		due, err := s.transferDue(report.Account.AccountID, "deposit", amount)
		if err != nil {
			return err
		}
		if !due {
			s.logger.Info("shortfall transfer waiting on debounce",
				zap.Float64("amount", amount))
			return nil
		}
		s.performTransfer(report, "deposit", amount)
		return nil
	}

	if s.notifier != nil {
		s.notifier.Notify("Shortfall detected",
			fmt.Sprintf("Payments due %.2f exceed pot balance %.2f by %.2f",
				report.Due, report.Balance, amount))
	}
	return nil
}

func (s *ReconcileService) handleCredit(report *Report, interactive bool) error {
	amount := report.Credit

	if interactive {
		if s.confirm(fmt.Sprintf("Credit of %.2f: withdraw from %s pot?", amount, report.Pot.Name)) {
			s.performTransfer(report, "withdraw", amount)
		}
		return nil
	}

	if s.cfg.Report.AutoWithdraw {
		due, err := s.transferDue(report.Account.AccountID, "withdraw", amount)
		if err != nil {
			return err
		}
		if !due {
			s.logger.Info("credit transfer waiting on debounce",
				zap.Float64("amount", amount))
			return nil
		}
		s.performTransfer(report, "withdraw", amount)
		return nil
	}

	if s.notifier != nil {
		s.notifier.Notify("Credit detected",
			fmt.Sprintf("Pot balance %.2f exceeds payments due %.2f by %.2f",
				report.Balance, report.Due, amount))
	}
	return nil
}

// performTransfer executes the pot movement. Success clears the debounce
// tracker; failure leaves it in place so the next run retries without a
// fresh debounce window. The sync pass runs afterward either way to pick
// up the new balances.
func (s *ReconcileService) performTransfer(report *Report, direction string, amount float64) {
	var ok bool
	if direction == "deposit" {
		ok = s.client.DepositToPot(report.Account.AccountID, report.Pot.PotID, amount)
	} else {
		ok = s.client.WithdrawFromPot(report.Account.AccountID, report.Pot.PotID, amount)
	}

	if ok {
		s.clearTracker(report.Account.AccountID, direction)
		s.logger.Info("pot transfer complete",
			zap.String("direction", direction), zap.Float64("amount", amount))
		if s.notifier != nil {
			s.notifier.Notify("Pot transfer complete",
				fmt.Sprintf("%s of %.2f to %s pot", direction, amount, report.Pot.Name))
		}
	} else {
		s.logger.Error("pot transfer failed",
			zap.String("direction", direction), zap.Float64("amount", amount))
		if s.notifier != nil {
			s.notifier.Notify("Pot transfer failed",
				fmt.Sprintf("%s of %.2f to %s pot failed", direction, amount, report.Pot.Name))
		}
	}

	if s.syncer != nil {
		if _, err := s.syncer.Sync(); err != nil {
			s.logger.Warn("post-transfer sync failed", zap.Error(err))
		}
	}
}

// transferDue implements the debounce: a changed amount (or missing file)
// rewrites the tracker and resets the timer; an unchanged amount is
// authorized once the tracker file is old enough.
func (s *ReconcileService) transferDue(accountID, direction string, amount float64) (bool, error) {
	path := s.trackerPath(accountID, direction)
	want := strconv.FormatInt(int64(math.Round(amount*100)), 10)

	data, err := os.ReadFile(path)
	if err != nil || strings.TrimSpace(string(data)) != want {
		if werr := os.WriteFile(path, []byte(want), 0600); werr != nil {
			return false, fmt.Errorf("error writing tracker file: %w", werr)
		}
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("error reading tracker file: %w", err)
	}

	delay := time.Duration(s.cfg.Report.TransferDelayMinutes) * time.Minute
	return time.Since(info.ModTime()) >= delay, nil
}

func (s *ReconcileService) clearTracker(accountID, direction string) {
	if err := os.Remove(s.trackerPath(accountID, direction)); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("error clearing tracker file", zap.Error(err))
	}
}

func (s *ReconcileService) trackerPath(accountID, direction string) string {
	return filepath.Join(s.cfg.Report.TrackerDir, fmt.Sprintf("%s_%s.tracker", accountID, direction))
}

func (s *ReconcileService) confirm(message string) bool {
	fmt.Fprintf(s.stdout, "%s [y/N] ", message)
	scanner := bufio.NewScanner(s.stdin)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}
