package reports

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmadist/pharmadist-erp/internal/accounting"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func day(s string) time.Time {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func sampleActivity() []AccountActivity {
	return []AccountActivity{
		{AccountID: 3, Code: "2100", Name: "Accounts Payable", Type: accounting.AccountTypeLiability, Debit: d("0"), Credit: d("3000")},
		{AccountID: 1, Code: "1100", Name: "Cash and Bank", Type: accounting.AccountTypeAsset, Debit: d("5000"), Credit: d("2000")},
	}
}

func TestBuildTrialBalanceBalanced(t *testing.T) {
	tb := BuildTrialBalance(sampleActivity(), TrialBalanceFilter{AccountFilter: AccountFilterAll})

	require.Len(t, tb.Accounts, 2)
	assert.Equal(t, "1100", tb.Accounts[0].Code)
	assert.True(t, tb.TotalDebits.Equal(d("5000")))
	assert.True(t, tb.TotalCredits.Equal(d("5000")))
	assert.True(t, tb.IsBalanced)
	assert.True(t, tb.Accounts[0].Balance.Equal(d("3000")))
}

func TestBuildTrialBalanceTypeFilter(t *testing.T) {
	tb := BuildTrialBalance(sampleActivity(), TrialBalanceFilter{AccountFilter: string(accounting.AccountTypeAsset)})

	require.Len(t, tb.Accounts, 1)
	assert.Equal(t, "1100", tb.Accounts[0].Code)
	assert.False(t, tb.IsBalanced)
	assert.True(t, tb.Difference.Equal(d("3000")))
}

func TestIsBalancedTolerance(t *testing.T) {
	assert.True(t, isBalanced(d("0.009")))
	assert.True(t, isBalanced(d("-0.009")))
	assert.False(t, isBalanced(d("0.01")))
	assert.False(t, isBalanced(d("-0.01")))
}

func TestTrialBalanceFilterNormalize(t *testing.T) {
	f := TrialBalanceFilter{AccountFilter: "ALL"}
	require.NoError(t, f.Normalize())
	assert.Equal(t, AccountFilterAll, f.AccountFilter)

	f = TrialBalanceFilter{AccountFilter: "Revenue"}
	require.NoError(t, f.Normalize())
	assert.Equal(t, string(accounting.AccountTypeRevenue), f.AccountFilter)

	f = TrialBalanceFilter{AccountFilter: "bogus"}
	assert.ErrorIs(t, f.Normalize(), ErrInvalidFilter)

	start, end := day("2025-02-01"), day("2025-01-01")
	f = TrialBalanceFilter{DateRange: DateRange{Start: &start, End: &end}}
	assert.ErrorIs(t, f.Normalize(), ErrInvalidFilter)
}

func TestBuildProfitAndLoss(t *testing.T) {
	pl := BuildProfitAndLoss(d("15000"), 3, []ExpenseGroup{
		{Category: "RENT", Amount: d("4000"), Count: 1},
		{Category: "SALARIES", Amount: d("5000"), Count: 2},
	}, DateRange{})

	assert.True(t, pl.Expenses.Total.Equal(d("9000")))
	assert.True(t, pl.NetIncome.Equal(d("6000")))
	assert.True(t, pl.ProfitMargin.Equal(d("40")))
	require.Len(t, pl.Expenses.Categories, 2)
	assert.Equal(t, "SALARIES", pl.Expenses.Categories[0].Category)
	assert.Equal(t, 3, pl.Revenue.SalesCount)
}

func TestProfitMarginZeroRevenue(t *testing.T) {
	pl := BuildProfitAndLoss(decimal.Zero, 0, []ExpenseGroup{{Category: "RENT", Amount: d("100"), Count: 1}}, DateRange{})
	assert.True(t, pl.ProfitMargin.IsZero())
	assert.True(t, pl.NetIncome.Equal(d("-100")))
}

func TestProfitMarginRounding(t *testing.T) {
	assert.Equal(t, "33.33", ProfitMargin(d("1"), d("3")).StringFixed(2))
}

func TestBuildBalanceSheetIncludesCurrentEarnings(t *testing.T) {
	activity := []AccountActivity{
		{AccountID: 1, Code: "1100", Name: "Cash", Type: accounting.AccountTypeAsset, Debit: d("11000"), Credit: d("0")},
		{AccountID: 2, Code: "3100", Name: "Owner Capital", Type: accounting.AccountTypeEquity, Debit: d("0"), Credit: d("10000")},
		{AccountID: 3, Code: "4100", Name: "Sales", Type: accounting.AccountTypeRevenue, Debit: d("0"), Credit: d("1500")},
		{AccountID: 4, Code: "5200", Name: "Opex", Type: accounting.AccountTypeExpense, Debit: d("500"), Credit: d("0")},
	}
	asOf := day("2025-03-31")
	bs := BuildBalanceSheet(activity, &asOf)

	assert.Equal(t, "2025-03-31", bs.AsOfDate)
	assert.True(t, bs.Assets.Total.Equal(d("11000")))
	assert.True(t, bs.CurrentEarnings.Equal(d("1000")))
	assert.True(t, bs.Equity.Total.Equal(d("11000")))
	assert.True(t, bs.IsBalanced)
	last := bs.Equity.Accounts[len(bs.Equity.Accounts)-1]
	assert.Equal(t, CurrentEarningsLabel, last.Name)
}

func TestAgingBuckets(t *testing.T) {
	asOf := day("2025-06-30")
	cases := map[int]string{
		0:   BucketCurrent,
		30:  BucketCurrent,
		31:  BucketDays31To60,
		60:  BucketDays31To60,
		61:  BucketDays61To90,
		90:  BucketDays61To90,
		91:  BucketOver90,
		400: BucketOver90,
	}
	for age, want := range cases {
		invoiceDate := asOf.AddDate(0, 0, -age)
		got := AgeInDays(invoiceDate, asOf)
		assert.Equal(t, age, got)
		assert.Equal(t, want, BucketFor(got), "age %d", age)
	}
	assert.Equal(t, 0, AgeInDays(asOf.AddDate(0, 0, 5), asOf))
}

func TestBuildAging(t *testing.T) {
	asOf := day("2025-06-30")
	report := BuildAging([]OpenInvoice{
		{SaleID: 1, InvoiceNumber: "INV-202506-0001", Date: day("2025-06-20"), Amount: d("100")},
		{SaleID: 2, InvoiceNumber: "INV-202504-0001", Date: day("2025-04-15"), Amount: d("250")},
		{SaleID: 3, InvoiceNumber: "INV-202501-0001", Date: day("2025-01-02"), Amount: d("50")},
	}, asOf)

	assert.Equal(t, 3, report.TotalCount)
	assert.True(t, report.TotalOutstanding.Equal(d("400")))
	assert.Equal(t, 1, report.Buckets.Current.Count)
	assert.Equal(t, 1, report.Buckets.Days61To90.Count)
	assert.Equal(t, 1, report.Buckets.Over90.Count)
	assert.True(t, report.Buckets.Days31To60.Amount.IsZero())
	require.Len(t, report.Invoices, 3)
	assert.Equal(t, int64(3), report.Invoices[0].SaleID)
}

func ledgerRows() []LedgerRow {
	return []LedgerRow{
		{LineID: 1, EntryID: 1, EntryNumber: 1, Date: day("2025-01-05"), AccountID: 1, AccountCode: "1100", AccountName: "Cash", AccountType: accounting.AccountTypeAsset, Debit: d("1000"), Credit: d("0")},
		{LineID: 3, EntryID: 2, EntryNumber: 2, Date: day("2025-01-10"), AccountID: 1, AccountCode: "1100", AccountName: "Cash", AccountType: accounting.AccountTypeAsset, Debit: d("0"), Credit: d("300")},
		{LineID: 2, EntryID: 1, EntryNumber: 1, Date: day("2025-01-05"), AccountID: 3, AccountCode: "4100", AccountName: "Sales", AccountType: accounting.AccountTypeRevenue, Debit: d("0"), Credit: d("1000")},
		{LineID: 4, EntryID: 2, EntryNumber: 2, Date: day("2025-01-10"), AccountID: 4, AccountCode: "5200", AccountName: "Opex", AccountType: accounting.AccountTypeExpense, Debit: d("300"), Credit: d("0")},
	}
}

func TestBuildGeneralLedgerRunningBalance(t *testing.T) {
	opening := map[int64]decimal.Decimal{1: d("200")}
	gl := BuildGeneralLedger(ledgerRows(), opening, nil, DateRange{}, false)

	require.Len(t, gl.Accounts, 3)
	cash := gl.Accounts[0]
	assert.Equal(t, "1100", cash.Code)
	assert.True(t, cash.OpeningBalance.Equal(d("200")))
	require.Len(t, cash.Lines, 2)
	assert.True(t, cash.Lines[0].RunningBalance.Equal(d("1200")))
	assert.True(t, cash.Lines[1].RunningBalance.Equal(d("900")))
	assert.True(t, cash.ClosingBalance.Equal(d("900")))
}

func TestBuildGeneralLedgerIdleAccounts(t *testing.T) {
	accounts := []AccountActivity{
		{AccountID: 9, Code: "1300", Name: "Inventory", Type: accounting.AccountTypeAsset},
		{AccountID: 8, Code: "2100", Name: "Payables", Type: accounting.AccountTypeLiability},
	}
	opening := map[int64]decimal.Decimal{8: d("-50")}

	gl := BuildGeneralLedger(nil, opening, accounts, DateRange{}, false)
	require.Len(t, gl.Accounts, 1)
	assert.Equal(t, "2100", gl.Accounts[0].Code)
	assert.True(t, gl.Accounts[0].ClosingBalance.Equal(d("-50")))

	gl = BuildGeneralLedger(nil, nil, accounts[:1], DateRange{}, true)
	require.Len(t, gl.Accounts, 1)
	assert.Empty(t, gl.Accounts[0].Lines)
}

func TestChartBalanceMatchesLedgerClosing(t *testing.T) {
	rows := ledgerRows()
	activity := map[int64]*AccountActivity{}
	for _, r := range rows {
		a, ok := activity[r.AccountID]
		if !ok {
			a = &AccountActivity{AccountID: r.AccountID, Code: r.AccountCode, Name: r.AccountName, Type: r.AccountType, Debit: decimal.Zero, Credit: decimal.Zero}
			activity[r.AccountID] = a
		}
		a.Debit = a.Debit.Add(r.Debit)
		a.Credit = a.Credit.Add(r.Credit)
	}
	flat := make([]AccountActivity, 0, len(activity))
	for _, a := range activity {
		flat = append(flat, *a)
	}

	chart := BuildChartOfAccounts(flat, nil)
	gl := BuildGeneralLedger(rows, nil, nil, DateRange{}, false)
	require.Equal(t, chart.Count, len(gl.Accounts))
	for i := range gl.Accounts {
		assert.Equal(t, chart.Accounts[i].Code, gl.Accounts[i].Code)
		assert.True(t, chart.Accounts[i].Balance.Equal(gl.Accounts[i].ClosingBalance), gl.Accounts[i].Code)
	}
}

func TestBuildJournalListingTotals(t *testing.T) {
	listing := BuildJournalListing(ledgerRows(), DateRange{})
	require.Equal(t, 2, listing.Count)
	for _, e := range listing.Entries {
		assert.True(t, e.TotalDebit.Equal(e.TotalCredit), "entry %d", e.Number)
		assert.Len(t, e.Lines, 2)
	}
}

func TestBuildAccountSummaryListsEveryType(t *testing.T) {
	summary := BuildAccountSummary(sampleActivity(), DateRange{})
	require.Len(t, summary.Types, len(accounting.AccountTypes))
	for _, ts := range summary.Types {
		if ts.Type == accounting.AccountTypeAsset {
			assert.Equal(t, 1, ts.AccountCount)
			assert.True(t, ts.Balance.Equal(d("3000")))
		}
		if ts.Type == accounting.AccountTypeEquity {
			assert.Zero(t, ts.AccountCount)
		}
	}
}

func TestBuildCustomerDistribution(t *testing.T) {
	dist := BuildCustomerDistribution([]CustomerSales{
		{CustomerID: 1, Sector: "Hospital", Region: "North", SalesCount: 2, SalesTotal: d("500")},
		{CustomerID: 2, Sector: "Hospital", Region: "", SalesCount: 1, SalesTotal: d("100")},
		{CustomerID: 3, Sector: "Pharmacy", Region: "North", SalesCount: 0, SalesTotal: d("0")},
	}, DateRange{})

	bySector := map[string]DistributionRow{}
	for _, r := range dist.BySector {
		bySector[r.Key] = r
	}
	assert.Equal(t, 2, bySector["Hospital"].CustomerCount)
	assert.True(t, bySector["Hospital"].SalesTotal.Equal(d("600")))
	assert.Equal(t, 1, bySector["Pharmacy"].CustomerCount)

	byRegion := map[string]DistributionRow{}
	for _, r := range dist.ByRegion {
		byRegion[r.Key] = r
	}
	assert.Equal(t, 1, byRegion[UnassignedKey].CustomerCount)
	assert.Equal(t, 2, byRegion["North"].CustomerCount)
}
