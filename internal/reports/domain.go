// Package reports builds the financial statements and ledger listings served
// under /api/reports. Builders are pure functions over repository rows; the
// Service adds caching and duplicate suppression around them.
package reports

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmadist/pharmadist-erp/internal/accounting"
)

const dateLayout = "2006-01-02"

// AccountFilterAll disables the trial balance type filter.
const AccountFilterAll = "all"

// balanceTolerance is the largest difference still considered balanced (exclusive).
var balanceTolerance = decimal.New(1, -2)

var (
	// ErrInvalidFilter marks malformed report parameters.
	ErrInvalidFilter = errors.New("reports: invalid filter")
	// ErrUnknownReport is returned for export requests of unsupported reports.
	ErrUnknownReport = errors.New("reports: unknown report")
)

// DateRange bounds a report window. Nil bounds are open; End is inclusive.
type DateRange struct {
	Start *time.Time
	End   *time.Time
}

// Validate rejects inverted ranges.
func (r DateRange) Validate() error {
	if r.Start != nil && r.End != nil && r.End.Before(*r.Start) {
		return fmt.Errorf("%w: endDate %s before startDate %s", ErrInvalidFilter, r.End.Format(dateLayout), r.Start.Format(dateLayout))
	}
	return nil
}

func (r DateRange) startString() string { return formatDatePtr(r.Start) }
func (r DateRange) endString() string   { return formatDatePtr(r.End) }

func (r DateRange) token() string {
	start, end := r.startString(), r.endString()
	if start == "" {
		start = "-"
	}
	if end == "" {
		end = "-"
	}
	return start + "_" + end
}

// TrialBalanceFilter scopes a trial balance.
type TrialBalanceFilter struct {
	DateRange
	AccountFilter string
}

// Normalize lower-cases "all" and validates a type filter.
func (f *TrialBalanceFilter) Normalize() error {
	raw := strings.TrimSpace(f.AccountFilter)
	if raw == "" || strings.EqualFold(raw, AccountFilterAll) {
		f.AccountFilter = AccountFilterAll
		return f.Validate()
	}
	t, err := accounting.ParseAccountType(raw)
	if err != nil {
		return fmt.Errorf("%w: accountFilter %q", ErrInvalidFilter, raw)
	}
	f.AccountFilter = string(t)
	return f.Validate()
}

// LedgerFilter scopes general ledger and journal listings.
type LedgerFilter struct {
	DateRange
	AccountID *int64
}

func (f LedgerFilter) token() string {
	return f.DateRange.token() + "_" + int64Token(f.AccountID)
}

// AccountActivity is one account with its debit and credit sums over a window.
type AccountActivity struct {
	AccountID     int64
	Code          string
	Name          string
	Type          accounting.AccountType
	IsActive      bool
	Debit         decimal.Decimal
	Credit        decimal.Decimal
	CachedBalance decimal.Decimal
}

// ExpenseGroup is a raw expense aggregate by pseudo-category.
type ExpenseGroup struct {
	Category string
	Amount   decimal.Decimal
	Count    int
}

// OpenInvoice is an unpaid sale considered for aging.
type OpenInvoice struct {
	SaleID        int64
	InvoiceNumber string
	CustomerName  string
	Date          time.Time
	Amount        decimal.Decimal
}

// LedgerRow is one journal line joined with its entry and account.
type LedgerRow struct {
	LineID       int64
	EntryID      int64
	EntryNumber  int64
	Date         time.Time
	Description  string
	Reference    string
	SourceModule string
	AccountID    int64
	AccountCode  string
	AccountName  string
	AccountType  accounting.AccountType
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	Memo         string
}

// CustomerSales aggregates one customer's sales over a window.
type CustomerSales struct {
	CustomerID int64
	Sector     string
	Region     string
	SalesCount int
	SalesTotal decimal.Decimal
}

// TrialBalanceRow is a single account line of the trial balance.
type TrialBalanceRow struct {
	AccountID int64                  `json:"accountId"`
	Code      string                 `json:"code"`
	Name      string                 `json:"name"`
	Type      accounting.AccountType `json:"type"`
	Debit     decimal.Decimal        `json:"debit"`
	Credit    decimal.Decimal        `json:"credit"`
	Balance   decimal.Decimal        `json:"balance"`
}

// TrialBalance is the trial balance response.
type TrialBalance struct {
	Accounts      []TrialBalanceRow `json:"accounts"`
	TotalDebits   decimal.Decimal   `json:"totalDebits"`
	TotalCredits  decimal.Decimal   `json:"totalCredits"`
	Difference    decimal.Decimal   `json:"difference"`
	IsBalanced    bool              `json:"isBalanced"`
	AccountFilter string            `json:"accountFilter"`
	StartDate     string            `json:"startDate,omitempty"`
	EndDate       string            `json:"endDate,omitempty"`
}

// RevenueSection summarises sales revenue.
type RevenueSection struct {
	Total      decimal.Decimal `json:"total"`
	SalesCount int             `json:"salesCount"`
}

// ExpenseCategory is one expense group in the P&L.
type ExpenseCategory struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
	Count    int             `json:"count"`
}

// ExpenseSection summarises expenses.
type ExpenseSection struct {
	Total      decimal.Decimal   `json:"total"`
	Categories []ExpenseCategory `json:"categories"`
}

// ProfitAndLoss is the P&L response.
type ProfitAndLoss struct {
	Revenue      RevenueSection  `json:"revenue"`
	Expenses     ExpenseSection  `json:"expenses"`
	NetIncome    decimal.Decimal `json:"netIncome"`
	ProfitMargin decimal.Decimal `json:"profitMargin"`
	StartDate    string          `json:"startDate,omitempty"`
	EndDate      string          `json:"endDate,omitempty"`
}

// BalanceSheetLine is one account on the balance sheet.
type BalanceSheetLine struct {
	AccountID int64           `json:"accountId"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
}

// BalanceSheetSection groups accounts of one side.
type BalanceSheetSection struct {
	Accounts []BalanceSheetLine `json:"accounts"`
	Total    decimal.Decimal    `json:"total"`
}

// BalanceSheet is the balance sheet response.
type BalanceSheet struct {
	AsOfDate                  string              `json:"asOfDate,omitempty"`
	Assets                    BalanceSheetSection `json:"assets"`
	Liabilities               BalanceSheetSection `json:"liabilities"`
	Equity                    BalanceSheetSection `json:"equity"`
	CurrentEarnings           decimal.Decimal     `json:"currentEarnings"`
	TotalLiabilitiesAndEquity decimal.Decimal     `json:"totalLiabilitiesAndEquity"`
	Difference                decimal.Decimal     `json:"difference"`
	IsBalanced                bool                `json:"isBalanced"`
}

// Aging bucket identifiers.
const (
	BucketCurrent    = "current"
	BucketDays31To60 = "days31To60"
	BucketDays61To90 = "days61To90"
	BucketOver90     = "over90"
)

// AgingBucket carries the count and amount of one bucket.
type AgingBucket struct {
	Count  int             `json:"count"`
	Amount decimal.Decimal `json:"amount"`
}

// AgingBuckets holds the four fixed buckets.
type AgingBuckets struct {
	Current    AgingBucket `json:"current"`
	Days31To60 AgingBucket `json:"days31To60"`
	Days61To90 AgingBucket `json:"days61To90"`
	Over90     AgingBucket `json:"over90"`
}

// AgingInvoice is one unpaid sale with its computed age.
type AgingInvoice struct {
	SaleID        int64           `json:"saleId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	CustomerName  string          `json:"customerName"`
	Date          string          `json:"date"`
	Amount        decimal.Decimal `json:"amount"`
	AgeDays       int             `json:"ageDays"`
	Bucket        string          `json:"bucket"`
}

// AgingReport is the receivables aging response.
type AgingReport struct {
	AsOfDate         string          `json:"asOfDate"`
	Buckets          AgingBuckets    `json:"buckets"`
	TotalOutstanding decimal.Decimal `json:"totalOutstanding"`
	TotalCount       int             `json:"totalCount"`
	Invoices         []AgingInvoice  `json:"invoices"`
}

// ChartAccount is an account with its all-time activity.
type ChartAccount struct {
	AccountID     int64                  `json:"accountId"`
	Code          string                 `json:"code"`
	Name          string                 `json:"name"`
	Type          accounting.AccountType `json:"type"`
	IsActive      bool                   `json:"isActive"`
	TotalDebit    decimal.Decimal        `json:"totalDebit"`
	TotalCredit   decimal.Decimal        `json:"totalCredit"`
	Balance       decimal.Decimal        `json:"balance"`
	CachedBalance decimal.Decimal        `json:"cachedBalance"`
}

// ChartOfAccounts is the chart listing response.
type ChartOfAccounts struct {
	Accounts []ChartAccount `json:"accounts"`
	Count    int            `json:"count"`
	Type     string         `json:"type,omitempty"`
}

// JournalLineView is a journal line with its account labels.
type JournalLineView struct {
	LineID      int64           `json:"lineId"`
	AccountID   int64           `json:"accountId"`
	AccountCode string          `json:"accountCode"`
	AccountName string          `json:"accountName"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Memo        string          `json:"memo,omitempty"`
}

// JournalEntryView is a journal entry with lines and totals.
type JournalEntryView struct {
	EntryID      int64             `json:"entryId"`
	Number       int64             `json:"number"`
	Date         string            `json:"date"`
	Description  string            `json:"description"`
	Reference    string            `json:"reference,omitempty"`
	SourceModule string            `json:"sourceModule"`
	Lines        []JournalLineView `json:"lines"`
	TotalDebit   decimal.Decimal   `json:"totalDebit"`
	TotalCredit  decimal.Decimal   `json:"totalCredit"`
}

// JournalListing is the journal entries response.
type JournalListing struct {
	Entries   []JournalEntryView `json:"entries"`
	Count     int                `json:"count"`
	StartDate string             `json:"startDate,omitempty"`
	EndDate   string             `json:"endDate,omitempty"`
}

// LedgerLine is one general ledger posting with its running balance.
type LedgerLine struct {
	LineID         int64           `json:"lineId"`
	EntryID        int64           `json:"entryId"`
	EntryNumber    int64           `json:"entryNumber"`
	Date           string          `json:"date"`
	Description    string          `json:"description"`
	Reference      string          `json:"reference,omitempty"`
	Memo           string          `json:"memo,omitempty"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	RunningBalance decimal.Decimal `json:"runningBalance"`
}

// LedgerAccount groups the lines of one account.
type LedgerAccount struct {
	AccountID      int64                  `json:"accountId"`
	Code           string                 `json:"code"`
	Name           string                 `json:"name"`
	Type           accounting.AccountType `json:"type"`
	OpeningBalance decimal.Decimal        `json:"openingBalance"`
	Lines          []LedgerLine           `json:"lines"`
	TotalDebit     decimal.Decimal        `json:"totalDebit"`
	TotalCredit    decimal.Decimal        `json:"totalCredit"`
	ClosingBalance decimal.Decimal        `json:"closingBalance"`
}

// GeneralLedger is the general ledger response.
type GeneralLedger struct {
	Accounts  []LedgerAccount `json:"accounts"`
	StartDate string          `json:"startDate,omitempty"`
	EndDate   string          `json:"endDate,omitempty"`
}

// TypeSummary totals activity for one account type.
type TypeSummary struct {
	Type         accounting.AccountType `json:"type"`
	AccountCount int                    `json:"accountCount"`
	TotalDebit   decimal.Decimal        `json:"totalDebit"`
	TotalCredit  decimal.Decimal        `json:"totalCredit"`
	Balance      decimal.Decimal        `json:"balance"`
}

// AccountSummary is the per-type summary response.
type AccountSummary struct {
	Types     []TypeSummary `json:"types"`
	StartDate string        `json:"startDate,omitempty"`
	EndDate   string        `json:"endDate,omitempty"`
}

// DistributionRow aggregates customers and sales for one sector or region.
type DistributionRow struct {
	Key           string          `json:"key"`
	CustomerCount int             `json:"customerCount"`
	SalesCount    int             `json:"salesCount"`
	SalesTotal    decimal.Decimal `json:"salesTotal"`
}

// CustomerDistribution is the distribution response.
type CustomerDistribution struct {
	BySector  []DistributionRow `json:"bySector"`
	ByRegion  []DistributionRow `json:"byRegion"`
	StartDate string            `json:"startDate,omitempty"`
	EndDate   string            `json:"endDate,omitempty"`
}

func formatDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func isBalanced(diff decimal.Decimal) bool {
	return diff.Abs().LessThan(balanceTolerance)
}
