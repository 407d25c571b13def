package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pharmadist/pharmadist-erp/internal/accounting"
)

// CurrentEarningsLabel names the synthetic equity line for unclosed income.
const CurrentEarningsLabel = "Current period earnings"

// BuildBalanceSheet partitions accounts by code bucket. Assets carry
// debit-credit, liabilities and equity carry credit-debit. Revenue and
// expense activity that has not been closed into equity is added to equity
// as a single current-earnings line so the accounting equation can hold.
func BuildBalanceSheet(activity []AccountActivity, asOf *time.Time) BalanceSheet {
	bs := BalanceSheet{
		AsOfDate:        formatDatePtr(asOf),
		Assets:          BalanceSheetSection{Accounts: []BalanceSheetLine{}, Total: decimal.Zero},
		Liabilities:     BalanceSheetSection{Accounts: []BalanceSheetLine{}, Total: decimal.Zero},
		Equity:          BalanceSheetSection{Accounts: []BalanceSheetLine{}, Total: decimal.Zero},
		CurrentEarnings: decimal.Zero,
	}
	for _, acc := range activity {
		bucket, ok := accounting.ClassifyCode(acc.Code)
		if !ok {
			bucket = acc.Type
		}
		amount := bucket.NaturalBalance(acc.Debit, acc.Credit)
		switch bucket {
		case accounting.AccountTypeAsset:
			bs.Assets.add(acc, amount)
		case accounting.AccountTypeLiability:
			bs.Liabilities.add(acc, amount)
		case accounting.AccountTypeEquity:
			bs.Equity.add(acc, amount)
		case accounting.AccountTypeRevenue, accounting.AccountTypeExpense:
			bs.CurrentEarnings = bs.CurrentEarnings.Add(acc.Credit.Sub(acc.Debit))
		}
	}
	for _, section := range []*BalanceSheetSection{&bs.Assets, &bs.Liabilities, &bs.Equity} {
		sort.SliceStable(section.Accounts, func(i, j int) bool {
			return section.Accounts[i].Code < section.Accounts[j].Code
		})
	}
	if !bs.CurrentEarnings.IsZero() {
		bs.Equity.Accounts = append(bs.Equity.Accounts, BalanceSheetLine{Name: CurrentEarningsLabel, Amount: bs.CurrentEarnings})
		bs.Equity.Total = bs.Equity.Total.Add(bs.CurrentEarnings)
	}
	bs.TotalLiabilitiesAndEquity = bs.Liabilities.Total.Add(bs.Equity.Total)
	bs.Difference = bs.Assets.Total.Sub(bs.TotalLiabilitiesAndEquity)
	bs.IsBalanced = isBalanced(bs.Difference)
	return bs
}

func (s *BalanceSheetSection) add(acc AccountActivity, amount decimal.Decimal) {
	s.Accounts = append(s.Accounts, BalanceSheetLine{
		AccountID: acc.AccountID,
		Code:      acc.Code,
		Name:      acc.Name,
		Amount:    amount,
	})
	s.Total = s.Total.Add(amount)
}
