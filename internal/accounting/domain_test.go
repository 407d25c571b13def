package accounting

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func validPosting() PostingInput {
	return PostingInput{
		Date:         time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Description:  "Cash sale",
		SourceModule: "MANUAL",
		Lines: []PostingLineInput{
			{AccountID: 1, Debit: dec("150.25")},
			{AccountID: 3, Credit: dec("150.25")},
		},
	}
}

func TestPostingValidate(t *testing.T) {
	require.NoError(t, validPosting().Validate())

	cases := map[string]struct {
		mutate func(*PostingInput)
		want   error
	}{
		"single line":          {func(p *PostingInput) { p.Lines = p.Lines[:1] }, ErrTooFewLines},
		"unbalanced by a cent": {func(p *PostingInput) { p.Lines[1].Credit = dec("150.24") }, ErrUnbalanced},
		"both sides":           {func(p *PostingInput) { p.Lines[0].Credit = dec("1") }, ErrInvalidLine},
		"neither side":         {func(p *PostingInput) { p.Lines[0].Debit = decimal.Zero }, ErrInvalidLine},
		"negative":             {func(p *PostingInput) { p.Lines[0].Debit = dec("-150.25") }, ErrInvalidLine},
		"sub-cent": {func(p *PostingInput) {
			p.Lines[0].Debit = dec("150.251")
			p.Lines[1].Credit = dec("150.251")
		}, ErrInvalidLine},
		"missing account": {func(p *PostingInput) { p.Lines[0].AccountID = 0 }, ErrInvalidLine},
		"missing date":    {func(p *PostingInput) { p.Date = time.Time{} }, ErrInvalidPosting},
		"missing module":  {func(p *PostingInput) { p.SourceModule = "" }, ErrInvalidPosting},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p := validPosting()
			p.Lines = append([]PostingLineInput(nil), p.Lines...)
			tc.mutate(&p)
			assert.ErrorIs(t, p.Validate(), tc.want)
		})
	}
}

func TestPostingValidateExactDecimalBalance(t *testing.T) {
	p := validPosting()
	p.Lines = []PostingLineInput{
		{AccountID: 1, Debit: dec("0.10")},
		{AccountID: 2, Debit: dec("0.20")},
		{AccountID: 3, Credit: dec("0.30")},
	}
	require.NoError(t, p.Validate())

	d, c := p.Totals()
	assert.True(t, d.Equal(dec("0.30")))
	assert.True(t, c.Equal(dec("0.30")))
}

func TestClassifyCode(t *testing.T) {
	cases := map[string]AccountType{
		"1000": AccountTypeAsset,
		"1999": AccountTypeAsset,
		"2100": AccountTypeLiability,
		"3200": AccountTypeEquity,
		"4100": AccountTypeRevenue,
		"5999": AccountTypeExpense,
	}
	for code, want := range cases {
		got, ok := ClassifyCode(code)
		assert.True(t, ok, code)
		assert.Equal(t, want, got, code)
	}
	for _, code := range []string{"999", "6000", "abc", ""} {
		_, ok := ClassifyCode(code)
		assert.False(t, ok, code)
	}
}

func TestNaturalBalanceFollowsNormalSide(t *testing.T) {
	debit, credit := dec("500"), dec("200")
	assert.True(t, AccountTypeAsset.NaturalBalance(debit, credit).Equal(dec("300")))
	assert.True(t, AccountTypeExpense.NaturalBalance(debit, credit).Equal(dec("300")))
	assert.True(t, AccountTypeLiability.NaturalBalance(debit, credit).Equal(dec("-300")))
	assert.True(t, AccountTypeEquity.NaturalBalance(credit, debit).Equal(dec("300")))
	assert.True(t, AccountTypeRevenue.NaturalBalance(credit, debit).Equal(dec("300")))
}

func TestParseAccountTypeIgnoresCase(t *testing.T) {
	got, err := ParseAccountType(" liability ")
	require.NoError(t, err)
	assert.Equal(t, AccountTypeLiability, got)

	_, err = ParseAccountType("income")
	assert.ErrorIs(t, err, ErrUnknownAccountType)
}

func TestCreateAccountValidateChecksBucket(t *testing.T) {
	assert.NoError(t, CreateAccountInput{Code: "1400", Name: "Prepaid", Type: AccountTypeAsset}.Validate())
	assert.ErrorIs(t, CreateAccountInput{Code: "1400", Name: "Prepaid", Type: AccountTypeExpense}.Validate(), ErrInvalidAccount)
	assert.ErrorIs(t, CreateAccountInput{Code: "7000", Name: "Other", Type: AccountTypeExpense}.Validate(), ErrInvalidAccount)
}
