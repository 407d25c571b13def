package accounting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/pharmadist/pharmadist-erp/internal/platform/db"
)

// RepositoryPort abstracts transactional repository behaviour.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// CacheInvalidator drops derived report caches after the ledger changes.
type CacheInvalidator interface {
	Bump(ctx context.Context) error
}

// Service coordinates posting and reversing journal entries and maintains the chart of accounts.
type Service struct {
	repo        RepositoryPort
	invalidator CacheInvalidator
	logger      *slog.Logger
	now         func() time.Time
}

// NewService constructs the ledger service. invalidator may be nil.
func NewService(repo RepositoryPort, invalidator CacheInvalidator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, invalidator: invalidator, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PostJournal validates and persists a new journal entry.
func (s *Service) PostJournal(ctx context.Context, input PostingInput) (JournalEntry, error) {
	var entry JournalEntry
	err := db.RetryTx(ctx, func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			entry, err = s.PostInTx(ctx, tx, input)
			return err
		})
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.Invalidate(ctx)
	return entry, nil
}

// PostInTx validates and writes the entry on a caller-owned transaction.
// Callers must invoke Invalidate after their transaction commits.
func (s *Service) PostInTx(ctx context.Context, tx TxRepository, input PostingInput) (JournalEntry, error) {
	if input.SourceID == uuid.Nil {
		input.SourceID = uuid.New()
	}
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	inserted, err := tx.InsertJournalEntry(ctx, input)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("insert journal entry: %w", err)
	}
	lines, err := tx.InsertJournalLines(ctx, inserted.ID, input.Lines)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := tx.LinkSource(ctx, input.SourceModule, input.SourceID, inserted.ID); err != nil {
		if errors.Is(err, ErrSourceConflict) {
			return JournalEntry{}, ErrSourceAlreadyLinked
		}
		return JournalEntry{}, err
	}
	if err := tx.ApplyBalances(ctx, input.Lines); err != nil {
		return JournalEntry{}, err
	}
	inserted.Lines = lines
	s.logger.Info("journal posted",
		slog.Int64("entry_id", inserted.ID),
		slog.Int64("number", inserted.Number),
		slog.String("source_module", input.SourceModule))
	return inserted, nil
}

// Invalidate bumps the report cache version. Failures only leave stale
// reports until TTL expiry, so they are logged and swallowed.
func (s *Service) Invalidate(ctx context.Context) {
	if s.invalidator == nil {
		return
	}
	if err := s.invalidator.Bump(ctx); err != nil {
		s.logger.Warn("report cache bump failed", slog.Any("error", err))
	}
}

// ReverseJournal creates a reversing journal entry. The original is left untouched.
func (s *Service) ReverseJournal(ctx context.Context, input ReverseInput) (JournalEntry, error) {
	if input.EntryID <= 0 {
		return JournalEntry{}, fmt.Errorf("%w: entry id required", ErrInvalidPosting)
	}
	var reversal JournalEntry
	err := db.RetryTx(ctx, func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			original, err := tx.GetJournalWithLines(ctx, input.EntryID)
			if err != nil {
				return err
			}
			targetDate := s.today()
			if input.TargetDate != nil {
				targetDate = *input.TargetDate
			}
			posting := PostingInput{
				Date:         targetDate,
				Description:  defaultReversalDescription(input.Description, original.Number),
				Reference:    fmt.Sprintf("JE-%d", original.Number),
				SourceModule: original.SourceModule + ":REVERSAL",
				SourceID:     original.SourceID,
				Lines:        reverseLines(original.Lines),
			}
			reversal, err = s.PostInTx(ctx, tx, posting)
			if errors.Is(err, ErrSourceAlreadyLinked) {
				return fmt.Errorf("%w: entry %d already reversed", ErrSourceAlreadyLinked, original.Number)
			}
			return err
		})
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.Invalidate(ctx)
	return reversal, nil
}

// GetJournal loads an entry with its lines.
func (s *Service) GetJournal(ctx context.Context, id int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		entry, err = tx.GetJournalWithLines(ctx, id)
		return err
	})
	return entry, err
}

// CreateAccount adds an account to the chart after checking its code bucket.
func (s *Service) CreateAccount(ctx context.Context, input CreateAccountInput) (Account, error) {
	if err := input.Validate(); err != nil {
		return Account{}, err
	}
	var acct Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		acct, err = tx.InsertAccount(ctx, input)
		return err
	})
	if err != nil {
		return Account{}, err
	}
	s.Invalidate(ctx)
	return acct, nil
}

// GetAccount returns a single account.
func (s *Service) GetAccount(ctx context.Context, id int64) (Account, error) {
	var acct Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		acct, err = tx.GetAccount(ctx, id)
		return err
	})
	return acct, err
}

// ListAccounts retrieves chart of accounts entries, optionally by type.
func (s *Service) ListAccounts(ctx context.Context, accountType *AccountType) ([]Account, error) {
	var accounts []Account
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		accounts, err = tx.ListAccounts(ctx, accountType)
		return err
	})
	return accounts, err
}

// ResolveAccount looks up the account mapped to module/key on the caller's transaction.
func (s *Service) ResolveAccount(ctx context.Context, tx TxRepository, module, key string) (int64, error) {
	mapping, err := tx.GetMapping(ctx, module, key)
	if err != nil {
		return 0, err
	}
	return mapping.AccountID, nil
}

func (s *Service) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func reverseLines(lines []JournalLine) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
			Memo:      line.Memo,
		})
	}
	return out
}

func defaultReversalDescription(desc string, number int64) string {
	if desc != "" {
		return desc
	}
	return fmt.Sprintf("Reversal of JE %d", number)
}
