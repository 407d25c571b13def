package reports

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/pharmadist/pharmadist-erp/internal/accounting"
)

// BuildGeneralLedger groups rows per account and threads a running balance
// (debit - credit) through them, seeded with each account's opening balance.
// Rows must arrive ordered by account, date, entry number and line id.
// Accounts without rows in the window appear when they carry an opening
// balance, or always when includeIdle is set.
func BuildGeneralLedger(rows []LedgerRow, opening map[int64]decimal.Decimal, accounts []AccountActivity, window DateRange, includeIdle bool) GeneralLedger {
	gl := GeneralLedger{
		Accounts:  []LedgerAccount{},
		StartDate: window.startString(),
		EndDate:   window.endString(),
	}
	byID := make(map[int64]*LedgerAccount)
	order := make([]int64, 0)
	ensure := func(id int64, code, name string, typ accounting.AccountType) *LedgerAccount {
		if acc, ok := byID[id]; ok {
			return acc
		}
		open := opening[id]
		acc := &LedgerAccount{
			AccountID:      id,
			Code:           code,
			Name:           name,
			Type:           typ,
			OpeningBalance: open,
			Lines:          []LedgerLine{},
			TotalDebit:     decimal.Zero,
			TotalCredit:    decimal.Zero,
			ClosingBalance: open,
		}
		byID[id] = acc
		order = append(order, id)
		return acc
	}

	for _, row := range rows {
		acc := ensure(row.AccountID, row.AccountCode, row.AccountName, row.AccountType)
		acc.ClosingBalance = acc.ClosingBalance.Add(row.Debit).Sub(row.Credit)
		acc.TotalDebit = acc.TotalDebit.Add(row.Debit)
		acc.TotalCredit = acc.TotalCredit.Add(row.Credit)
		acc.Lines = append(acc.Lines, LedgerLine{
			LineID:         row.LineID,
			EntryID:        row.EntryID,
			EntryNumber:    row.EntryNumber,
			Date:           row.Date.Format(dateLayout),
			Description:    row.Description,
			Reference:      row.Reference,
			Memo:           row.Memo,
			Debit:          row.Debit,
			Credit:         row.Credit,
			RunningBalance: acc.ClosingBalance,
		})
	}
	for _, a := range accounts {
		if _, seen := byID[a.AccountID]; seen {
			continue
		}
		if open := opening[a.AccountID]; includeIdle || !open.IsZero() {
			ensure(a.AccountID, a.Code, a.Name, a.Type)
		}
	}

	for _, id := range order {
		gl.Accounts = append(gl.Accounts, *byID[id])
	}
	sort.SliceStable(gl.Accounts, func(i, j int) bool { return gl.Accounts[i].Code < gl.Accounts[j].Code })
	return gl
}

// BuildJournalListing folds ledger rows back into entries with per-entry totals.
func BuildJournalListing(rows []LedgerRow, window DateRange) JournalListing {
	listing := JournalListing{
		Entries:   []JournalEntryView{},
		StartDate: window.startString(),
		EndDate:   window.endString(),
	}
	index := make(map[int64]int)
	for _, row := range rows {
		pos, ok := index[row.EntryID]
		if !ok {
			listing.Entries = append(listing.Entries, JournalEntryView{
				EntryID:      row.EntryID,
				Number:       row.EntryNumber,
				Date:         row.Date.Format(dateLayout),
				Description:  row.Description,
				Reference:    row.Reference,
				SourceModule: row.SourceModule,
				Lines:        []JournalLineView{},
				TotalDebit:   decimal.Zero,
				TotalCredit:  decimal.Zero,
			})
			pos = len(listing.Entries) - 1
			index[row.EntryID] = pos
		}
		entry := &listing.Entries[pos]
		entry.Lines = append(entry.Lines, JournalLineView{
			LineID:      row.LineID,
			AccountID:   row.AccountID,
			AccountCode: row.AccountCode,
			AccountName: row.AccountName,
			Debit:       row.Debit,
			Credit:      row.Credit,
			Memo:        row.Memo,
		})
		entry.TotalDebit = entry.TotalDebit.Add(row.Debit)
		entry.TotalCredit = entry.TotalCredit.Add(row.Credit)
	}
	listing.Count = len(listing.Entries)
	return listing
}

// BuildChartOfAccounts lists accounts with balance = sum(debit) - sum(credit).
func BuildChartOfAccounts(activity []AccountActivity, accountType *accounting.AccountType) ChartOfAccounts {
	chart := ChartOfAccounts{Accounts: make([]ChartAccount, 0, len(activity))}
	if accountType != nil {
		chart.Type = string(*accountType)
	}
	for _, acc := range activity {
		if accountType != nil && acc.Type != *accountType {
			continue
		}
		chart.Accounts = append(chart.Accounts, ChartAccount{
			AccountID:     acc.AccountID,
			Code:          acc.Code,
			Name:          acc.Name,
			Type:          acc.Type,
			IsActive:      acc.IsActive,
			TotalDebit:    acc.Debit,
			TotalCredit:   acc.Credit,
			Balance:       acc.Debit.Sub(acc.Credit),
			CachedBalance: acc.CachedBalance,
		})
	}
	sort.SliceStable(chart.Accounts, func(i, j int) bool { return chart.Accounts[i].Code < chart.Accounts[j].Code })
	chart.Count = len(chart.Accounts)
	return chart
}

// BuildAccountSummary totals activity per account type in chart order.
// Types without accounts are still listed with zeros.
func BuildAccountSummary(activity []AccountActivity, window DateRange) AccountSummary {
	byType := make(map[accounting.AccountType]*TypeSummary, len(accounting.AccountTypes))
	summary := AccountSummary{StartDate: window.startString(), EndDate: window.endString()}
	for _, t := range accounting.AccountTypes {
		byType[t] = &TypeSummary{Type: t, TotalDebit: decimal.Zero, TotalCredit: decimal.Zero, Balance: decimal.Zero}
	}
	for _, acc := range activity {
		ts, ok := byType[acc.Type]
		if !ok {
			continue
		}
		ts.AccountCount++
		ts.TotalDebit = ts.TotalDebit.Add(acc.Debit)
		ts.TotalCredit = ts.TotalCredit.Add(acc.Credit)
		ts.Balance = ts.TotalDebit.Sub(ts.TotalCredit)
	}
	for _, t := range accounting.AccountTypes {
		summary.Types = append(summary.Types, *byType[t])
	}
	return summary
}

// UnassignedKey labels customers without a sector or region.
const UnassignedKey = "Unassigned"

// BuildCustomerDistribution aggregates customers and their sales per sector and per region.
func BuildCustomerDistribution(rows []CustomerSales, window DateRange) CustomerDistribution {
	return CustomerDistribution{
		BySector:  distribute(rows, func(r CustomerSales) string { return r.Sector }),
		ByRegion:  distribute(rows, func(r CustomerSales) string { return r.Region }),
		StartDate: window.startString(),
		EndDate:   window.endString(),
	}
}

func distribute(rows []CustomerSales, keyOf func(CustomerSales) string) []DistributionRow {
	acc := make(map[string]*DistributionRow)
	for _, row := range rows {
		key := keyOf(row)
		if key == "" {
			key = UnassignedKey
		}
		d, ok := acc[key]
		if !ok {
			d = &DistributionRow{Key: key, SalesTotal: decimal.Zero}
			acc[key] = d
		}
		d.CustomerCount++
		d.SalesCount += row.SalesCount
		d.SalesTotal = d.SalesTotal.Add(row.SalesTotal)
	}
	out := make([]DistributionRow, 0, len(acc))
	for _, d := range acc {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SalesTotal.Equal(out[j].SalesTotal) {
			return out[i].SalesTotal.GreaterThan(out[j].SalesTotal)
		}
		return out[i].Key < out[j].Key
	})
	return out
}
