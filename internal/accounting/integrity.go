package accounting

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// EntryImbalance is a journal entry whose lines do not balance or that has fewer than two lines.
type EntryImbalance struct {
	EntryID   int64           `json:"entryId"`
	Number    int64           `json:"number"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	LineCount int             `json:"lineCount"`
}

// AccountDrift is an account whose cached balance disagrees with its lines.
type AccountDrift struct {
	AccountID int64           `json:"accountId"`
	Code      string          `json:"code"`
	Cached    decimal.Decimal `json:"cached"`
	Computed  decimal.Decimal `json:"computed"`
}

// IntegrityReport summarises a full ledger consistency check.
type IntegrityReport struct {
	CheckedAt         time.Time        `json:"checkedAt"`
	TotalDebit        decimal.Decimal  `json:"totalDebit"`
	TotalCredit       decimal.Decimal  `json:"totalCredit"`
	UnbalancedEntries []EntryImbalance `json:"unbalancedEntries"`
	BalanceDrift      []AccountDrift   `json:"balanceDrift"`
}

// Healthy reports whether no discrepancy was found.
func (r IntegrityReport) Healthy() bool {
	return r.TotalDebit.Equal(r.TotalCredit) && len(r.UnbalancedEntries) == 0 && len(r.BalanceDrift) == 0
}

// CheckIntegrity verifies global debit/credit equality, per-entry balance and
// the cached account balances, all inside one snapshot.
func (s *Service) CheckIntegrity(ctx context.Context) (IntegrityReport, error) {
	report := IntegrityReport{CheckedAt: s.now().UTC()}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		report.TotalDebit, report.TotalCredit, err = tx.LedgerTotals(ctx)
		if err != nil {
			return err
		}
		if report.UnbalancedEntries, err = tx.UnbalancedEntries(ctx); err != nil {
			return err
		}
		report.BalanceDrift, err = tx.BalanceDrift(ctx)
		return err
	})
	if err != nil {
		return IntegrityReport{}, err
	}
	return report, nil
}
