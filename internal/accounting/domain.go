package accounting

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountType enumerates CoA categories.
type AccountType string

const (
	AccountTypeAsset     AccountType = "ASSET"
	AccountTypeLiability AccountType = "LIABILITY"
	AccountTypeEquity    AccountType = "EQUITY"
	AccountTypeRevenue   AccountType = "REVENUE"
	AccountTypeExpense   AccountType = "EXPENSE"
)

// AccountTypes lists every account type in chart order.
var AccountTypes = []AccountType{
	AccountTypeAsset,
	AccountTypeLiability,
	AccountTypeEquity,
	AccountTypeRevenue,
	AccountTypeExpense,
}

// ParseAccountType accepts any letter case.
func ParseAccountType(raw string) (AccountType, error) {
	t := AccountType(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range AccountTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAccountType, raw)
}

// DebitNormal reports whether balances of this type grow on the debit side.
func (t AccountType) DebitNormal() bool {
	return t == AccountTypeAsset || t == AccountTypeExpense
}

// NaturalBalance nets debit and credit so the normal side is positive.
func (t AccountType) NaturalBalance(debit, credit decimal.Decimal) decimal.Decimal {
	if t.DebitNormal() {
		return debit.Sub(credit)
	}
	return credit.Sub(debit)
}

// ClassifyCode maps a numeric account code onto its chart bucket:
// 1xxx asset, 2xxx liability, 3xxx equity, 4xxx revenue, 5xxx expense.
func ClassifyCode(code string) (AccountType, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(code))
	if err != nil {
		return "", false
	}
	switch {
	case n >= 1000 && n < 2000:
		return AccountTypeAsset, true
	case n >= 2000 && n < 3000:
		return AccountTypeLiability, true
	case n >= 3000 && n < 4000:
		return AccountTypeEquity, true
	case n >= 4000 && n < 5000:
		return AccountTypeRevenue, true
	case n >= 5000 && n < 6000:
		return AccountTypeExpense, true
	default:
		return "", false
	}
}

// Account models a chart of accounts node. Balance is the cached
// sum(debit) - sum(credit) of the account's journal lines.
type Account struct {
	ID        int64           `json:"id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      AccountType     `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	IsActive  bool            `json:"isActive"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID           int64         `json:"id"`
	Number       int64         `json:"number"`
	Date         time.Time     `json:"date"`
	Description  string        `json:"description"`
	Reference    string        `json:"reference"`
	SourceModule string        `json:"sourceModule"`
	SourceID     uuid.UUID     `json:"sourceId"`
	CreatedAt    time.Time     `json:"createdAt"`
	Lines        []JournalLine `json:"lines"`
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID        int64           `json:"id"`
	EntryID   int64           `json:"entryId"`
	AccountID int64           `json:"accountId"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
	Memo      string          `json:"memo,omitempty"`
}

// AccountMapping links integration keys to ledger accounts.
type AccountMapping struct {
	Module    string
	Key       string
	AccountID int64
}

// PostingLineInput describes a journal line for posting request.
type PostingLineInput struct {
	AccountID int64
	Debit     decimal.Decimal
	Credit    decimal.Decimal
	Memo      string
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	Date         time.Time
	Description  string
	Reference    string
	SourceModule string
	SourceID     uuid.UUID
	Lines        []PostingLineInput
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	EntryID     int64
	Description string
	TargetDate  *time.Time
}

// CreateAccountInput carries a new chart of accounts node.
type CreateAccountInput struct {
	Code string
	Name string
	Type AccountType
}

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("accounting: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("accounting: journal requires at least two lines")
	// ErrInvalidLine covers malformed individual lines.
	ErrInvalidLine = errors.New("accounting: invalid journal line")
	// ErrInvalidPosting covers missing header fields.
	ErrInvalidPosting = errors.New("accounting: invalid posting")
	// ErrSourceAlreadyLinked indicates idempotency conflict.
	ErrSourceAlreadyLinked = errors.New("accounting: source already linked")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("accounting: journal entry not found")
	// ErrAccountNotFound indicates a missing or inactive account.
	ErrAccountNotFound = errors.New("accounting: account not found")
	// ErrDuplicateAccount indicates the account code is taken.
	ErrDuplicateAccount = errors.New("accounting: account code already exists")
	// ErrInvalidAccount indicates an account definition that breaks chart rules.
	ErrInvalidAccount = errors.New("accounting: invalid account")
	// ErrUnknownAccountType indicates an unrecognised account type.
	ErrUnknownAccountType = errors.New("accounting: unknown account type")
	// ErrMappingNotFound indicates account mapping missing.
	ErrMappingNotFound = errors.New("accounting: account mapping not found")
	// ErrSourceConflict is returned by repositories when the source link exists.
	ErrSourceConflict = errors.New("accounting: source link conflict")
)

// Validate enforces double entry before anything is written: at least two
// lines, each strictly one-sided and non-negative with cent precision, and
// debits equal to credits.
func (in PostingInput) Validate() error {
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date required", ErrInvalidPosting)
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: description required", ErrInvalidPosting)
	}
	if in.SourceModule == "" {
		return fmt.Errorf("%w: source module required", ErrInvalidPosting)
	}
	if len(in.Lines) < 2 {
		return ErrTooFewLines
	}
	debit, credit := decimal.Zero, decimal.Zero
	for idx, line := range in.Lines {
		if line.AccountID <= 0 {
			return fmt.Errorf("%w: line %d missing account", ErrInvalidLine, idx)
		}
		if line.Debit.IsNegative() || line.Credit.IsNegative() {
			return fmt.Errorf("%w: line %d negative amount", ErrInvalidLine, idx)
		}
		if line.Debit.IsPositive() == line.Credit.IsPositive() {
			return fmt.Errorf("%w: line %d must carry exactly one of debit or credit", ErrInvalidLine, idx)
		}
		if !hasCentPrecision(line.Debit) || !hasCentPrecision(line.Credit) {
			return fmt.Errorf("%w: line %d has more than 2 decimal places", ErrInvalidLine, idx)
		}
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	if !debit.Equal(credit) {
		return fmt.Errorf("%w: debit %s credit %s", ErrUnbalanced, debit.StringFixed(2), credit.StringFixed(2))
	}
	return nil
}

// Totals returns the debit and credit sums of the posting.
func (in PostingInput) Totals() (decimal.Decimal, decimal.Decimal) {
	debit, credit := decimal.Zero, decimal.Zero
	for _, line := range in.Lines {
		debit = debit.Add(line.Debit)
		credit = credit.Add(line.Credit)
	}
	return debit, credit
}

// Validate checks the code bucket agrees with the declared type.
func (in CreateAccountInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name required", ErrInvalidAccount)
	}
	bucket, ok := ClassifyCode(in.Code)
	if !ok {
		return fmt.Errorf("%w: code %q outside 1000-5999", ErrInvalidAccount, in.Code)
	}
	if bucket != in.Type {
		return fmt.Errorf("%w: code %s belongs to %s, not %s", ErrInvalidAccount, in.Code, bucket, in.Type)
	}
	return nil
}

func hasCentPrecision(d decimal.Decimal) bool {
	return d.Equal(d.Round(2))
}
