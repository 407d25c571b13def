package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/pharmadist/pharmadist-erp/internal/accounting"
)

// Report names used in cache keys, metrics and export routes.
const (
	ReportTrialBalance         = "trial-balance"
	ReportProfitLoss           = "profit-loss"
	ReportBalanceSheet         = "balance-sheet"
	ReportAging                = "aging-analysis"
	ReportChartOfAccounts      = "chart-of-accounts"
	ReportJournalEntries       = "journal-entries"
	ReportGeneralLedger        = "general-ledger"
	ReportAccountSummary       = "account-summary"
	ReportCustomerDistribution = "customer-distribution"
)

// defaultBuildTimeout bounds a shared build once it no longer follows the
// context of the caller that started it.
const defaultBuildTimeout = 30 * time.Second

// Service assembles reports from repository rows and caches the results.
type Service struct {
	repo         Repository
	cache        *Cache
	group        singleflight.Group
	logger       *slog.Logger
	now          func() time.Time
	buildTimeout time.Duration
}

// NewService constructs the report service. cache may be nil.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger, now: time.Now, buildTimeout: defaultBuildTimeout}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Bump invalidates every cached report.
func (s *Service) Bump(ctx context.Context) error {
	return s.cache.Bump(ctx)
}

// TrialBalance lists every account's debits and credits inside the window.
func (s *Service) TrialBalance(ctx context.Context, filter TrialBalanceFilter) (TrialBalance, error) {
	if err := filter.Normalize(); err != nil {
		return TrialBalance{}, err
	}
	return load(ctx, s, ReportTrialBalance, []string{filter.token(), filter.AccountFilter}, func(ctx context.Context) (TrialBalance, error) {
		activity, err := s.repo.AccountActivity(ctx, filter.DateRange)
		if err != nil {
			return TrialBalance{}, fmt.Errorf("account activity: %w", err)
		}
		return BuildTrialBalance(activity, filter), nil
	})
}

// ProfitAndLoss reports sales revenue against grouped expenses.
func (s *Service) ProfitAndLoss(ctx context.Context, window DateRange) (ProfitAndLoss, error) {
	if err := window.Validate(); err != nil {
		return ProfitAndLoss{}, err
	}
	return load(ctx, s, ReportProfitLoss, []string{window.token()}, func(ctx context.Context) (ProfitAndLoss, error) {
		var (
			revenue  decimal.Decimal
			count    int
			expenses []ExpenseGroup
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			revenue, count, err = s.repo.SalesRevenue(gctx, window)
			if err != nil {
				return fmt.Errorf("sales revenue: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			var err error
			expenses, err = s.repo.ExpensesByCategory(gctx, window)
			if err != nil {
				return fmt.Errorf("expenses: %w", err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return ProfitAndLoss{}, err
		}
		return BuildProfitAndLoss(revenue, count, expenses, window), nil
	})
}

// BalanceSheet reports the financial position as of a date. A nil asOf
// covers every posted entry.
func (s *Service) BalanceSheet(ctx context.Context, asOf *time.Time) (BalanceSheet, error) {
	window := DateRange{End: asOf}
	return load(ctx, s, ReportBalanceSheet, []string{window.token()}, func(ctx context.Context) (BalanceSheet, error) {
		activity, err := s.repo.AccountActivity(ctx, window)
		if err != nil {
			return BalanceSheet{}, fmt.Errorf("account activity: %w", err)
		}
		return BuildBalanceSheet(activity, asOf), nil
	})
}

// Aging buckets unpaid sales by age. A nil asOf means today.
func (s *Service) Aging(ctx context.Context, asOf *time.Time) (AgingReport, error) {
	day := truncateDay(s.now())
	if asOf != nil {
		day = truncateDay(*asOf)
	}
	return load(ctx, s, ReportAging, []string{day.Format(dateLayout)}, func(ctx context.Context) (AgingReport, error) {
		invoices, err := s.repo.OpenInvoices(ctx, day)
		if err != nil {
			return AgingReport{}, fmt.Errorf("open invoices: %w", err)
		}
		return BuildAging(invoices, day), nil
	})
}

// ChartOfAccounts lists accounts with all-time activity, optionally by type.
func (s *Service) ChartOfAccounts(ctx context.Context, accountType *accounting.AccountType) (ChartOfAccounts, error) {
	typeToken := "all"
	if accountType != nil {
		typeToken = string(*accountType)
	}
	return load(ctx, s, ReportChartOfAccounts, []string{typeToken}, func(ctx context.Context) (ChartOfAccounts, error) {
		activity, err := s.repo.AccountActivity(ctx, DateRange{})
		if err != nil {
			return ChartOfAccounts{}, fmt.Errorf("account activity: %w", err)
		}
		return BuildChartOfAccounts(activity, accountType), nil
	})
}

// JournalEntries lists entries with their lines, newest first.
func (s *Service) JournalEntries(ctx context.Context, filter LedgerFilter) (JournalListing, error) {
	if err := filter.Validate(); err != nil {
		return JournalListing{}, err
	}
	return load(ctx, s, ReportJournalEntries, []string{filter.token()}, func(ctx context.Context) (JournalListing, error) {
		if filter.AccountID != nil {
			ok, err := s.repo.AccountExists(ctx, *filter.AccountID)
			if err != nil {
				return JournalListing{}, fmt.Errorf("account lookup: %w", err)
			}
			if !ok {
				return JournalListing{}, fmt.Errorf("%w: account %d not found", ErrInvalidFilter, *filter.AccountID)
			}
		}
		rows, err := s.repo.EntryRows(ctx, filter)
		if err != nil {
			return JournalListing{}, fmt.Errorf("journal rows: %w", err)
		}
		return BuildJournalListing(rows, filter.DateRange), nil
	})
}

// GeneralLedger lists postings per account with opening and running balances.
func (s *Service) GeneralLedger(ctx context.Context, filter LedgerFilter) (GeneralLedger, error) {
	if err := filter.Validate(); err != nil {
		return GeneralLedger{}, err
	}
	return load(ctx, s, ReportGeneralLedger, []string{filter.token()}, func(ctx context.Context) (GeneralLedger, error) {
		var (
			rows     []LedgerRow
			opening  = map[int64]decimal.Decimal{}
			accounts []AccountActivity
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			rows, err = s.repo.LedgerRows(gctx, filter)
			if err != nil {
				return fmt.Errorf("ledger rows: %w", err)
			}
			return nil
		})
		if filter.Start != nil {
			g.Go(func() error {
				var err error
				opening, err = s.repo.OpeningBalances(gctx, filter.AccountID, *filter.Start)
				if err != nil {
					return fmt.Errorf("opening balances: %w", err)
				}
				return nil
			})
		}
		g.Go(func() error {
			var err error
			accounts, err = s.repo.AccountActivity(gctx, DateRange{})
			if err != nil {
				return fmt.Errorf("account activity: %w", err)
			}
			return nil
		})
		if err := g.Wait(); err != nil {
			return GeneralLedger{}, err
		}
		if filter.AccountID == nil {
			return BuildGeneralLedger(rows, opening, accounts, filter.DateRange, false), nil
		}
		selected := accounts[:0:0]
		for _, a := range accounts {
			if a.AccountID == *filter.AccountID {
				selected = append(selected, a)
			}
		}
		if len(selected) == 0 {
			return GeneralLedger{}, fmt.Errorf("%w: account %d not found", ErrInvalidFilter, *filter.AccountID)
		}
		return BuildGeneralLedger(rows, opening, selected, filter.DateRange, true), nil
	})
}

// AccountSummary totals activity per account type.
func (s *Service) AccountSummary(ctx context.Context, window DateRange) (AccountSummary, error) {
	if err := window.Validate(); err != nil {
		return AccountSummary{}, err
	}
	return load(ctx, s, ReportAccountSummary, []string{window.token()}, func(ctx context.Context) (AccountSummary, error) {
		activity, err := s.repo.AccountActivity(ctx, window)
		if err != nil {
			return AccountSummary{}, fmt.Errorf("account activity: %w", err)
		}
		return BuildAccountSummary(activity, window), nil
	})
}

// CustomerDistribution groups customers and their sales by sector and region.
func (s *Service) CustomerDistribution(ctx context.Context, window DateRange) (CustomerDistribution, error) {
	if err := window.Validate(); err != nil {
		return CustomerDistribution{}, err
	}
	return load(ctx, s, ReportCustomerDistribution, []string{window.token()}, func(ctx context.Context) (CustomerDistribution, error) {
		rows, err := s.repo.CustomerSales(ctx, window)
		if err != nil {
			return CustomerDistribution{}, fmt.Errorf("customer sales: %w", err)
		}
		return BuildCustomerDistribution(rows, window), nil
	})
}

// load serves a report from cache, building it at most once per key across
// concurrent callers. The shared build runs detached from any one caller so a
// cancelled request only abandons its own wait. Cache failures degrade to an
// uncached build.
func load[T any](ctx context.Context, s *Service, report string, parts []string, build func(context.Context) (T, error)) (T, error) {
	var zero T
	key, err := s.cache.BuildKey(ctx, append([]string{report}, parts...)...)
	if err != nil {
		s.logger.Warn("report cache unavailable", slog.String("report", report), slog.Any("error", err))
		return timedBuild(ctx, report, build)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.buildTimeout)
		defer cancel()
		var (
			built    T
			buildErr error
			ran      bool
			out      T
		)
		hit, err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			ran = true
			built, buildErr = timedBuild(ctx, report, build)
			return built, buildErr
		})
		switch {
		case err == nil:
			if hit {
				recordCacheHit(report)
			} else {
				recordCacheMiss(report)
			}
			return out, nil
		case ran && buildErr != nil:
			return zero, buildErr
		case ran:
			s.logger.Warn("report cache write failed", slog.String("key", key), slog.Any("error", err))
			return built, nil
		default:
			s.logger.Warn("report cache read failed", slog.String("key", key), slog.Any("error", err))
			return timedBuild(ctx, report, build)
		}
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

func timedBuild[T any](ctx context.Context, report string, build func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	v, err := build(ctx)
	observeBuild(report, time.Since(start))
	return v, err
}

// IsFilterError reports whether err stems from caller input.
func IsFilterError(err error) bool {
	return errors.Is(err, ErrInvalidFilter)
}

func int64Token(v *int64) string {
	if v == nil {
		return "all"
	}
	return strconv.FormatInt(*v, 10)
}
