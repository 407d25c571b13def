package expenses

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pharmadist/pharmadist-erp/internal/accounting"
	"github.com/pharmadist/pharmadist-erp/internal/platform/db"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// LedgerPoster writes journals on the caller's transaction.
type LedgerPoster interface {
	PostInTx(ctx context.Context, tx accounting.TxRepository, input accounting.PostingInput) (accounting.JournalEntry, error)
	ResolveAccount(ctx context.Context, tx accounting.TxRepository, module, key string) (int64, error)
	Invalidate(ctx context.Context)
}

type Service struct {
	repo   Repository
	ledger LedgerPoster
	logger *slog.Logger
}

func NewService(repo Repository, ledger LedgerPoster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, logger: logger}
}

// CreateExpense stores the expense and posts Dr expense / Cr cash atomically.
func (s *Service) CreateExpense(ctx context.Context, input CreateExpenseInput) (Expense, error) {
	input.Category = strings.TrimSpace(input.Category)
	input.Description = strings.TrimSpace(input.Description)
	if input.Date.IsZero() {
		return Expense{}, fmt.Errorf("%w: date required", ErrInvalidExpense)
	}
	if input.Description == "" {
		return Expense{}, fmt.Errorf("%w: description required", ErrInvalidExpense)
	}
	if !input.Amount.IsPositive() {
		return Expense{}, fmt.Errorf("%w: amount must be positive", ErrInvalidExpense)
	}
	if !input.Amount.Equal(input.Amount.Round(2)) {
		return Expense{}, fmt.Errorf("%w: amount has more than 2 decimal places", ErrInvalidExpense)
	}

	var created Expense
	err := db.RetryTx(ctx, func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			expense, err := tx.Insert(ctx, Expense{
				Date:        input.Date,
				Category:    input.Category,
				Description: input.Description,
				Amount:      input.Amount,
			})
			if err != nil {
				return fmt.Errorf("insert expense: %w", err)
			}
			ledger := tx.Ledger()
			expenseAccount, err := s.expenseAccount(ctx, ledger, expense.Category)
			if err != nil {
				return err
			}
			cashAccount, err := s.ledger.ResolveAccount(ctx, ledger, MappingModule, KeyPayment)
			if err != nil {
				return err
			}
			entry, err := s.ledger.PostInTx(ctx, ledger, accounting.PostingInput{
				Date:         expense.Date,
				Description:  "Expense: " + expense.Description,
				Reference:    fmt.Sprintf("EXP-%d", expense.ID),
				SourceModule: SourceModule,
				SourceID:     SourceID(expense.ID),
				Lines: []accounting.PostingLineInput{
					{AccountID: expenseAccount, Debit: expense.Amount, Credit: decimal.Zero, Memo: expense.Category},
					{AccountID: cashAccount, Debit: decimal.Zero, Credit: expense.Amount},
				},
			})
			if err != nil {
				return err
			}
			if err := tx.SetJournal(ctx, expense.ID, entry.ID); err != nil {
				return err
			}
			expense.JournalEntryID = &entry.ID
			created = expense
			return nil
		})
	})
	if err != nil {
		return Expense{}, err
	}
	s.ledger.Invalidate(ctx)
	s.logger.Info("expense recorded",
		slog.Int64("expense_id", created.ID),
		slog.String("category", created.Category),
		slog.String("amount", created.Amount.StringFixed(2)))
	return created, nil
}

// expenseAccount resolves EXPENSES/<CATEGORY>, falling back to EXPENSES/DEFAULT.
func (s *Service) expenseAccount(ctx context.Context, tx accounting.TxRepository, category string) (int64, error) {
	if key := mappingKey(category); key != "" {
		id, err := s.ledger.ResolveAccount(ctx, tx, MappingModule, key)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, accounting.ErrMappingNotFound) {
			return 0, err
		}
	}
	return s.ledger.ResolveAccount(ctx, tx, MappingModule, KeyDefault)
}

func mappingKey(category string) string {
	return strings.ToUpper(strings.Join(strings.Fields(category), "_"))
}

// SourceID derives the ledger source reference of an expense.
func SourceID(expenseID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("pharmadist:expense:%d", expenseID)))
}

// ListExpenses returns a page of expenses with the match count and amount sum.
func (s *Service) ListExpenses(ctx context.Context, filter ListFilter) (ListResponse, error) {
	if filter.Start != nil && filter.End != nil && filter.Start.After(*filter.End) {
		return ListResponse{}, fmt.Errorf("%w: startDate must not be after endDate", ErrInvalidExpense)
	}
	filter.Category = strings.TrimSpace(filter.Category)
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	resp := ListResponse{Limit: filter.Limit, Offset: filter.Offset}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		resp.Expenses, resp.Total, resp.Amount, err = tx.List(ctx, filter)
		return err
	})
	if err != nil {
		return ListResponse{}, err
	}
	if resp.Expenses == nil {
		resp.Expenses = []Expense{}
	}
	return resp, nil
}
