package reports

import (
	"sort"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// BuildProfitAndLoss derives net income from sales revenue and grouped
// expenses. The margin is a percentage rounded to two places and is zero
// when there is no revenue.
func BuildProfitAndLoss(revenue decimal.Decimal, salesCount int, expenses []ExpenseGroup, window DateRange) ProfitAndLoss {
	pl := ProfitAndLoss{
		Revenue:   RevenueSection{Total: revenue, SalesCount: salesCount},
		Expenses:  ExpenseSection{Total: decimal.Zero, Categories: make([]ExpenseCategory, 0, len(expenses))},
		StartDate: window.startString(),
		EndDate:   window.endString(),
	}
	for _, grp := range expenses {
		pl.Expenses.Categories = append(pl.Expenses.Categories, ExpenseCategory{
			Category: grp.Category,
			Amount:   grp.Amount,
			Count:    grp.Count,
		})
		pl.Expenses.Total = pl.Expenses.Total.Add(grp.Amount)
	}
	sort.SliceStable(pl.Expenses.Categories, func(i, j int) bool {
		a, b := pl.Expenses.Categories[i], pl.Expenses.Categories[j]
		if !a.Amount.Equal(b.Amount) {
			return a.Amount.GreaterThan(b.Amount)
		}
		return a.Category < b.Category
	})
	pl.NetIncome = revenue.Sub(pl.Expenses.Total)
	pl.ProfitMargin = ProfitMargin(pl.NetIncome, revenue)
	return pl
}

// ProfitMargin returns net/revenue*100 rounded to 2 places, or 0 for zero revenue.
func ProfitMargin(net, revenue decimal.Decimal) decimal.Decimal {
	if revenue.IsZero() {
		return decimal.Zero
	}
	return net.Mul(hundred).DivRound(revenue, 2)
}
