package sales

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

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

// Service records sales and their settlements.
type Service struct {
	repo   Repository
	ledger LedgerPoster
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, ledger LedgerPoster, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, ledger: ledger, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateSale stores the invoice with its items and posts the sale journal in
// the same transaction.
func (s *Service) CreateSale(ctx context.Context, input CreateSaleInput) (Sale, error) {
	input.InvoiceNumber = strings.TrimSpace(input.InvoiceNumber)
	if err := input.Validate(); err != nil {
		return Sale{}, err
	}
	var created Sale
	err := db.RetryTx(ctx, func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			var err error
			created, err = s.createInTx(ctx, tx, input)
			return err
		})
	})
	if err != nil {
		return Sale{}, err
	}
	s.ledger.Invalidate(ctx)
	s.logger.Info("sale recorded",
		slog.Int64("sale_id", created.ID),
		slog.String("invoice", created.InvoiceNumber),
		slog.String("grand_total", created.GrandTotal.StringFixed(2)))
	return created, nil
}

func (s *Service) createInTx(ctx context.Context, tx TxRepository, input CreateSaleInput) (Sale, error) {
	customerName, err := tx.CustomerName(ctx, input.CustomerID)
	if err != nil {
		return Sale{}, err
	}
	generated := input.InvoiceNumber == ""
	if generated {
		seq, err := tx.NextInvoiceSeq(ctx, InvoicePrefix(input.Date))
		if err != nil {
			return Sale{}, fmt.Errorf("next invoice number: %w", err)
		}
		input.InvoiceNumber = FormatInvoiceNumber(input.Date, seq)
	}

	sale, err := tx.InsertSale(ctx, BuildSale(input))
	if err != nil {
		if generated && errors.Is(err, ErrDuplicateInvoice) {
			return Sale{}, fmt.Errorf("%w: %w", db.ErrRetryTx, err)
		}
		return Sale{}, err
	}
	items, err := tx.InsertItems(ctx, sale.ID, sale.Items)
	if err != nil {
		return Sale{}, fmt.Errorf("insert sale items: %w", err)
	}
	sale.Items = items
	sale.CustomerName = customerName

	if sale.GrandTotal.IsPositive() {
		entry, err := s.postSale(ctx, tx, sale, input.PaymentMethod)
		if err != nil {
			return Sale{}, err
		}
		if err := tx.SetJournal(ctx, sale.ID, entry.ID); err != nil {
			return Sale{}, err
		}
		sale.JournalEntryID = &entry.ID
	}
	return sale, nil
}

func (s *Service) postSale(ctx context.Context, tx TxRepository, sale Sale, method PaymentMethod) (accounting.JournalEntry, error) {
	debitKey := KeyReceivable
	if method == PaymentMethodCash {
		debitKey = KeyCash
	}
	ledger := tx.Ledger()
	debitAccount, err := s.ledger.ResolveAccount(ctx, ledger, MappingModule, debitKey)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	revenueAccount, err := s.ledger.ResolveAccount(ctx, ledger, MappingModule, KeyRevenue)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	lines := []accounting.PostingLineInput{
		{AccountID: debitAccount, Debit: sale.GrandTotal, Credit: decimal.Zero, Memo: sale.CustomerName},
	}
	if net := sale.NetRevenue(); net.IsPositive() {
		lines = append(lines, accounting.PostingLineInput{AccountID: revenueAccount, Debit: decimal.Zero, Credit: net, Memo: "Sales revenue"})
	}
	if sale.TaxTotal.IsPositive() {
		taxAccount, err := s.ledger.ResolveAccount(ctx, ledger, MappingModule, KeyTax)
		if err != nil {
			return accounting.JournalEntry{}, err
		}
		lines = append(lines, accounting.PostingLineInput{AccountID: taxAccount, Debit: decimal.Zero, Credit: sale.TaxTotal, Memo: "Output VAT"})
	}
	return s.ledger.PostInTx(ctx, ledger, accounting.PostingInput{
		Date:         sale.Date,
		Description:  fmt.Sprintf("Sale %s to %s", sale.InvoiceNumber, sale.CustomerName),
		Reference:    sale.InvoiceNumber,
		SourceModule: SourceModule,
		SourceID:     SourceID(sale.ID),
		Lines:        lines,
	})
}

// MarkPaid settles an unpaid credit sale. paidAt defaults to today.
func (s *Service) MarkPaid(ctx context.Context, id int64, paidAt *time.Time) (Sale, error) {
	var updated Sale
	err := db.RetryTx(ctx, func() error {
		return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			sale, err := tx.GetSale(ctx, id, true)
			if err != nil {
				return err
			}
			if sale.PaymentStatus == PaymentStatusPaid {
				return fmt.Errorf("%w: %s", ErrAlreadyPaid, sale.InvoiceNumber)
			}
			date := s.today()
			if paidAt != nil {
				date = *paidAt
			}
			if date.Before(sale.Date) {
				return fmt.Errorf("%w: payment date %s precedes sale date %s", ErrInvalidSale,
					date.Format(time.DateOnly), sale.Date.Format(time.DateOnly))
			}

			var entryID *int64
			if sale.GrandTotal.IsPositive() {
				ledger := tx.Ledger()
				cash, err := s.ledger.ResolveAccount(ctx, ledger, MappingModule, KeyCash)
				if err != nil {
					return err
				}
				receivable, err := s.ledger.ResolveAccount(ctx, ledger, MappingModule, KeyReceivable)
				if err != nil {
					return err
				}
				entry, err := s.ledger.PostInTx(ctx, ledger, accounting.PostingInput{
					Date:         date,
					Description:  fmt.Sprintf("Payment for %s", sale.InvoiceNumber),
					Reference:    sale.InvoiceNumber,
					SourceModule: PaymentSourceModule,
					SourceID:     SourceID(sale.ID),
					Lines: []accounting.PostingLineInput{
						{AccountID: cash, Debit: sale.GrandTotal, Credit: decimal.Zero, Memo: sale.CustomerName},
						{AccountID: receivable, Debit: decimal.Zero, Credit: sale.GrandTotal, Memo: sale.CustomerName},
					},
				})
				if err != nil {
					if errors.Is(err, accounting.ErrSourceAlreadyLinked) {
						return fmt.Errorf("%w: %s", ErrAlreadyPaid, sale.InvoiceNumber)
					}
					return err
				}
				entryID = &entry.ID
			}
			if err := tx.MarkPaid(ctx, sale.ID, date, entryID); err != nil {
				return err
			}
			sale.PaymentStatus = PaymentStatusPaid
			sale.PaidAt = &date
			sale.PaymentEntryID = entryID
			updated = sale
			return nil
		})
	})
	if err != nil {
		return Sale{}, err
	}
	s.ledger.Invalidate(ctx)
	s.logger.Info("sale paid", slog.Int64("sale_id", updated.ID), slog.String("invoice", updated.InvoiceNumber))
	return updated, nil
}

// GetSale loads a sale with its items.
func (s *Service) GetSale(ctx context.Context, id int64) (Sale, error) {
	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		sale, err = tx.GetSale(ctx, id, false)
		return err
	})
	return sale, err
}

// ListSales returns a page of sale headers, newest first, with the total match count.
func (s *Service) ListSales(ctx context.Context, filter ListFilter) ([]Sale, int, error) {
	if filter.Start != nil && filter.End != nil && filter.Start.After(*filter.End) {
		return nil, 0, fmt.Errorf("%w: startDate must not be after endDate", ErrInvalidSale)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	var (
		list  []Sale
		total int
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		list, total, err = tx.ListSales(ctx, filter)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	if list == nil {
		list = []Sale{}
	}
	return list, total, nil
}

func (s *Service) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
