package reports

import (
	"sort"

	"github.com/shopspring/decimal"
)

// BuildTrialBalance sums debit and credit columns across accounts. The
// filter is either AccountFilterAll or an account type. Totals come from the
// raw columns, so the report exposes imbalances instead of hiding them.
func BuildTrialBalance(activity []AccountActivity, filter TrialBalanceFilter) TrialBalance {
	result := TrialBalance{
		Accounts:      make([]TrialBalanceRow, 0, len(activity)),
		TotalDebits:   decimal.Zero,
		TotalCredits:  decimal.Zero,
		AccountFilter: filter.AccountFilter,
		StartDate:     filter.startString(),
		EndDate:       filter.endString(),
	}
	if result.AccountFilter == "" {
		result.AccountFilter = AccountFilterAll
	}
	for _, acc := range activity {
		if result.AccountFilter != AccountFilterAll && string(acc.Type) != result.AccountFilter {
			continue
		}
		result.Accounts = append(result.Accounts, TrialBalanceRow{
			AccountID: acc.AccountID,
			Code:      acc.Code,
			Name:      acc.Name,
			Type:      acc.Type,
			Debit:     acc.Debit,
			Credit:    acc.Credit,
			Balance:   acc.Debit.Sub(acc.Credit),
		})
		result.TotalDebits = result.TotalDebits.Add(acc.Debit)
		result.TotalCredits = result.TotalCredits.Add(acc.Credit)
	}
	sort.SliceStable(result.Accounts, func(i, j int) bool {
		return result.Accounts[i].Code < result.Accounts[j].Code
	})
	result.Difference = result.TotalDebits.Sub(result.TotalCredits)
	result.IsBalanced = isBalanced(result.Difference)
	return result
}
