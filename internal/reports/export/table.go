// Package export turns report payloads into PDF and Excel documents.
package export

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/pharmadist/pharmadist-erp/internal/reports"
)

// Cell is a table value. Amount cells keep their decimal so spreadsheets get numbers.
type Cell struct {
	Text     string
	Amount   decimal.Decimal
	IsAmount bool
}

func text(s string) Cell            { return Cell{Text: s} }
func amount(v decimal.Decimal) Cell { return Cell{Amount: v, IsAmount: true} }

// Section is one titled table in a document.
type Section struct {
	Title   string
	Headers []string
	Rows    [][]Cell
	Totals  []Cell
}

// Document is a report flattened for rendering.
type Document struct {
	Name     string
	Title    string
	Period   string
	Sections []Section
	Notes    []string
}

func period(start, end string) string {
	switch {
	case start == "" && end == "":
		return "All dates"
	case start == "":
		return "Up to " + end
	case end == "":
		return "From " + start
	default:
		return start + " to " + end
	}
}

// TrialBalanceDocument flattens a trial balance.
func TrialBalanceDocument(tb reports.TrialBalance) Document {
	sec := Section{Headers: []string{"Code", "Account", "Type", "Debit", "Credit", "Balance"}}
	for _, row := range tb.Accounts {
		sec.Rows = append(sec.Rows, []Cell{text(row.Code), text(row.Name), text(string(row.Type)), amount(row.Debit), amount(row.Credit), amount(row.Balance)})
	}
	sec.Totals = []Cell{text(""), text("Total"), text(""), amount(tb.TotalDebits), amount(tb.TotalCredits), amount(tb.Difference)}
	doc := Document{
		Name:     reports.ReportTrialBalance,
		Title:    "Trial Balance",
		Period:   period(tb.StartDate, tb.EndDate),
		Sections: []Section{sec},
	}
	if tb.AccountFilter != reports.AccountFilterAll {
		doc.Notes = append(doc.Notes, "Account type: "+tb.AccountFilter)
	}
	doc.Notes = append(doc.Notes, balancedNote(tb.IsBalanced))
	return doc
}

// ProfitLossDocument flattens a profit and loss statement.
func ProfitLossDocument(pl reports.ProfitAndLoss) Document {
	revenue := Section{
		Title:   "Revenue",
		Headers: []string{"Line", "Count", "Amount"},
		Rows:    [][]Cell{{text("Sales"), text(strconv.Itoa(pl.Revenue.SalesCount)), amount(pl.Revenue.Total)}},
	}
	expenses := Section{Title: "Expenses", Headers: []string{"Category", "Count", "Amount"}}
	for _, c := range pl.Expenses.Categories {
		expenses.Rows = append(expenses.Rows, []Cell{text(c.Category), text(strconv.Itoa(c.Count)), amount(c.Amount)})
	}
	expenses.Totals = []Cell{text("Total expenses"), text(""), amount(pl.Expenses.Total)}
	summary := Section{
		Title:   "Result",
		Headers: []string{"Measure", "", "Value"},
		Rows: [][]Cell{
			{text("Net income"), text(""), amount(pl.NetIncome)},
			{text("Profit margin %"), text(""), amount(pl.ProfitMargin)},
		},
	}
	return Document{
		Name:     reports.ReportProfitLoss,
		Title:    "Profit and Loss",
		Period:   period(pl.StartDate, pl.EndDate),
		Sections: []Section{revenue, expenses, summary},
	}
}

// BalanceSheetDocument flattens a balance sheet.
func BalanceSheetDocument(bs reports.BalanceSheet) Document {
	side := func(title string, s reports.BalanceSheetSection) Section {
		sec := Section{Title: title, Headers: []string{"Code", "Account", "Amount"}}
		for _, l := range s.Accounts {
			sec.Rows = append(sec.Rows, []Cell{text(l.Code), text(l.Name), amount(l.Amount)})
		}
		sec.Totals = []Cell{text(""), text("Total " + title), amount(s.Total)}
		return sec
	}
	asOf := "All dates"
	if bs.AsOfDate != "" {
		asOf = "As of " + bs.AsOfDate
	}
	return Document{
		Name:   reports.ReportBalanceSheet,
		Title:  "Balance Sheet",
		Period: asOf,
		Sections: []Section{
			side("Assets", bs.Assets),
			side("Liabilities", bs.Liabilities),
			side("Equity", bs.Equity),
		},
		Notes: []string{
			"Total liabilities and equity: " + bs.TotalLiabilitiesAndEquity.StringFixed(2),
			balancedNote(bs.IsBalanced),
		},
	}
}

// AgingDocument flattens a receivables aging report.
func AgingDocument(ar reports.AgingReport) Document {
	buckets := Section{
		Title:   "Buckets",
		Headers: []string{"Bucket", "Count", "Amount"},
		Rows: [][]Cell{
			{text("0-30 days"), text(strconv.Itoa(ar.Buckets.Current.Count)), amount(ar.Buckets.Current.Amount)},
			{text("31-60 days"), text(strconv.Itoa(ar.Buckets.Days31To60.Count)), amount(ar.Buckets.Days31To60.Amount)},
			{text("61-90 days"), text(strconv.Itoa(ar.Buckets.Days61To90.Count)), amount(ar.Buckets.Days61To90.Amount)},
			{text("Over 90 days"), text(strconv.Itoa(ar.Buckets.Over90.Count)), amount(ar.Buckets.Over90.Amount)},
		},
		Totals: []Cell{text("Total"), text(strconv.Itoa(ar.TotalCount)), amount(ar.TotalOutstanding)},
	}
	invoices := Section{Title: "Invoices", Headers: []string{"Invoice", "Customer", "Date", "Age", "Amount"}}
	for _, inv := range ar.Invoices {
		invoices.Rows = append(invoices.Rows, []Cell{text(inv.InvoiceNumber), text(inv.CustomerName), text(inv.Date), text(strconv.Itoa(inv.AgeDays)), amount(inv.Amount)})
	}
	return Document{
		Name:     reports.ReportAging,
		Title:    "Receivables Aging",
		Period:   "As of " + ar.AsOfDate,
		Sections: []Section{buckets, invoices},
	}
}

// GeneralLedgerDocument flattens a general ledger, one section per account.
func GeneralLedgerDocument(gl reports.GeneralLedger) Document {
	doc := Document{
		Name:   reports.ReportGeneralLedger,
		Title:  "General Ledger",
		Period: period(gl.StartDate, gl.EndDate),
	}
	for _, acc := range gl.Accounts {
		sec := Section{
			Title:   fmt.Sprintf("%s %s", acc.Code, acc.Name),
			Headers: []string{"Date", "Entry", "Description", "Debit", "Credit", "Balance"},
			Rows:    [][]Cell{{text(""), text(""), text("Opening balance"), text(""), text(""), amount(acc.OpeningBalance)}},
		}
		for _, l := range acc.Lines {
			sec.Rows = append(sec.Rows, []Cell{text(l.Date), text(strconv.FormatInt(l.EntryNumber, 10)), text(l.Description), amount(l.Debit), amount(l.Credit), amount(l.RunningBalance)})
		}
		sec.Totals = []Cell{text(""), text(""), text("Closing balance"), amount(acc.TotalDebit), amount(acc.TotalCredit), amount(acc.ClosingBalance)}
		doc.Sections = append(doc.Sections, sec)
	}
	return doc
}

func balancedNote(ok bool) string {
	if ok {
		return "Balanced"
	}
	return "NOT BALANCED"
}
