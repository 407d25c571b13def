package reports

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	mu        sync.Mutex
	activity  []AccountActivity
	revenue   decimal.Decimal
	salesN    int
	expenses  []ExpenseGroup
	invoices  []OpenInvoice
	ledger    []LedgerRow
	opening   map[int64]decimal.Decimal
	customers []CustomerSales
	err       error

	calls      map[string]int
	lastWindow DateRange
	lastAsOf   time.Time

	// gate holds AccountActivity until closed; entered signals each wait.
	gate    chan struct{}
	entered chan struct{}
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{activity: sampleActivity(), calls: map[string]int{}}
}

func (f *fakeRepo) hit(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeRepo) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeRepo) AccountActivity(ctx context.Context, window DateRange) ([]AccountActivity, error) {
	f.hit("activity")
	if f.gate != nil {
		f.entered <- struct{}{}
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	f.lastWindow = window
	f.mu.Unlock()
	return f.activity, f.err
}

func (f *fakeRepo) SalesRevenue(ctx context.Context, window DateRange) (decimal.Decimal, int, error) {
	f.hit("revenue")
	return f.revenue, f.salesN, f.err
}

func (f *fakeRepo) ExpensesByCategory(ctx context.Context, window DateRange) ([]ExpenseGroup, error) {
	f.hit("expenses")
	return f.expenses, f.err
}

func (f *fakeRepo) OpenInvoices(ctx context.Context, asOf time.Time) ([]OpenInvoice, error) {
	f.hit("invoices")
	f.mu.Lock()
	f.lastAsOf = asOf
	f.mu.Unlock()
	return f.invoices, f.err
}

func (f *fakeRepo) LedgerRows(ctx context.Context, filter LedgerFilter) ([]LedgerRow, error) {
	f.hit("ledger")
	return f.ledger, f.err
}

func (f *fakeRepo) EntryRows(ctx context.Context, filter LedgerFilter) ([]LedgerRow, error) {
	f.hit("entries")
	return f.ledger, f.err
}

func (f *fakeRepo) OpeningBalances(ctx context.Context, accountID *int64, before time.Time) (map[int64]decimal.Decimal, error) {
	f.hit("opening")
	return f.opening, f.err
}

func (f *fakeRepo) CustomerSales(ctx context.Context, window DateRange) ([]CustomerSales, error) {
	f.hit("customers")
	return f.customers, f.err
}

func (f *fakeRepo) AccountExists(ctx context.Context, id int64) (bool, error) {
	f.hit("exists")
	for _, a := range f.activity {
		if a.AccountID == id {
			return true, f.err
		}
	}
	return false, f.err
}

func newTestService(t *testing.T, repo Repository) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewService(repo, NewCache(client, time.Minute), nil)
}

func TestTrialBalanceCachesUntilBump(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	first, err := svc.TrialBalance(ctx, TrialBalanceFilter{})
	require.NoError(t, err)
	second, err := svc.TrialBalance(ctx, TrialBalanceFilter{AccountFilter: "all"})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.count("activity"))
	assert.True(t, first.TotalDebits.Equal(second.TotalDebits))
	assert.True(t, second.IsBalanced)

	require.NoError(t, svc.Bump(ctx))
	_, err = svc.TrialBalance(ctx, TrialBalanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.count("activity"))
}

func TestTrialBalanceDistinctFiltersUseDistinctKeys(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.TrialBalance(ctx, TrialBalanceFilter{})
	require.NoError(t, err)
	tb, err := svc.TrialBalance(ctx, TrialBalanceFilter{AccountFilter: "asset"})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.count("activity"))
	assert.Len(t, tb.Accounts, 1)
}

func TestTrialBalanceRejectsInvalidFilter(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)

	_, err := svc.TrialBalance(context.Background(), TrialBalanceFilter{AccountFilter: "nope"})
	require.Error(t, err)
	assert.True(t, IsFilterError(err))
	assert.Zero(t, repo.count("activity"))
}

func TestCancelledCallerLeavesSharedBuildRunning(t *testing.T) {
	repo := newFakeRepo()
	repo.gate = make(chan struct{})
	repo.entered = make(chan struct{}, 4)
	svc := newTestService(t, repo)

	first, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.TrialBalance(first, TrialBalanceFilter{})
		firstErr <- err
	}()
	<-repo.entered

	type result struct {
		tb  TrialBalance
		err error
	}
	second := make(chan result, 1)
	go func() {
		tb, err := svc.TrialBalance(context.Background(), TrialBalanceFilter{})
		second <- result{tb, err}
	}()
	// let the second caller join the in-flight build
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(repo.gate)

	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.True(t, res.tb.IsBalanced)
	case <-time.After(2 * time.Second):
		t.Fatal("second caller did not finish")
	}

	_, err := svc.TrialBalance(context.Background(), TrialBalanceFilter{})
	require.NoError(t, err)
	assert.LessOrEqual(t, repo.count("activity"), 2)
}

func TestProfitAndLossLoadsConcurrently(t *testing.T) {
	repo := newFakeRepo()
	repo.revenue = d("15000")
	repo.salesN = 4
	repo.expenses = []ExpenseGroup{{Category: "RENT", Amount: d("9000"), Count: 1}}
	svc := newTestService(t, repo)

	pl, err := svc.ProfitAndLoss(context.Background(), DateRange{})
	require.NoError(t, err)
	assert.True(t, pl.NetIncome.Equal(d("6000")))
	assert.True(t, pl.ProfitMargin.Equal(d("40")))
	assert.Equal(t, 1, repo.count("revenue"))
	assert.Equal(t, 1, repo.count("expenses"))
}

func TestBuildErrorsAreNotCached(t *testing.T) {
	repo := newFakeRepo()
	repo.err = errors.New("db down")
	svc := newTestService(t, repo)
	ctx := context.Background()

	_, err := svc.AccountSummary(ctx, DateRange{})
	require.Error(t, err)

	repo.err = nil
	summary, err := svc.AccountSummary(ctx, DateRange{})
	require.NoError(t, err)
	assert.NotEmpty(t, summary.Types)
	assert.Equal(t, 2, repo.count("activity"))
}

func TestAgingDefaultsToToday(t *testing.T) {
	repo := newFakeRepo()
	repo.invoices = []OpenInvoice{{SaleID: 1, InvoiceNumber: "INV-202506-0001", Date: day("2025-05-01"), Amount: d("120")}}
	svc := newTestService(t, repo)
	svc.WithNow(func() time.Time { return time.Date(2025, 6, 30, 15, 4, 0, 0, time.UTC) })

	report, err := svc.Aging(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-30", report.AsOfDate)
	assert.Equal(t, day("2025-06-30"), repo.lastAsOf)
	assert.Equal(t, 1, report.Buckets.Days31To60.Count)
}

func TestBalanceSheetUsesAsOfAsWindowEnd(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	asOf := day("2025-03-31")

	_, err := svc.BalanceSheet(context.Background(), &asOf)
	require.NoError(t, err)
	require.NotNil(t, repo.lastWindow.End)
	assert.Nil(t, repo.lastWindow.Start)
	assert.Equal(t, asOf, *repo.lastWindow.End)
}

func TestGeneralLedgerUnknownAccount(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(t, repo)
	missing := int64(999)

	_, err := svc.GeneralLedger(context.Background(), LedgerFilter{AccountID: &missing})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestJournalEntriesUnknownAccount(t *testing.T) {
	repo := newFakeRepo()
	repo.ledger = ledgerRows()
	svc := newTestService(t, repo)
	ctx := context.Background()

	missing := int64(999)
	_, err := svc.JournalEntries(ctx, LedgerFilter{AccountID: &missing})
	assert.ErrorIs(t, err, ErrInvalidFilter)
	assert.Zero(t, repo.count("entries"))

	known := repo.activity[0].AccountID
	listing, err := svc.JournalEntries(ctx, LedgerFilter{AccountID: &known})
	require.NoError(t, err)
	assert.NotEmpty(t, listing.Entries)
}

func TestGeneralLedgerSkipsOpeningWithoutStart(t *testing.T) {
	repo := newFakeRepo()
	repo.ledger = ledgerRows()
	svc := newTestService(t, repo)

	gl, err := svc.GeneralLedger(context.Background(), LedgerFilter{})
	require.NoError(t, err)
	assert.Zero(t, repo.count("opening"))
	assert.NotEmpty(t, gl.Accounts)
}

func TestServiceWithoutCache(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	_, err := svc.ChartOfAccounts(ctx, nil)
	require.NoError(t, err)
	_, err = svc.ChartOfAccounts(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.count("activity"))
	assert.NoError(t, svc.Bump(ctx))
}

func TestCacheListenForInvalidation(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewCache(client, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan int64, 1)
	require.NoError(t, cache.ListenForInvalidation(ctx, func(v int64) { got <- v }))

	before, err := cache.Version(ctx)
	require.NoError(t, err)
	require.NoError(t, cache.Bump(ctx))

	select {
	case v := <-got:
		assert.Equal(t, before+1, v)
	case <-time.After(2 * time.Second):
		t.Fatal("bump not received")
	}
	key, err := cache.BuildKey(ctx, "trial-balance", "-_-", "all")
	require.NoError(t, err)
	assert.Equal(t, "reports:trial-balance:-_-:all:2", key)
}
