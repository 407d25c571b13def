// Package expenses records operating costs and posts them against cash.
package expenses

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SourceModule  = "EXPENSES"
	MappingModule = "EXPENSES"
	KeyPayment    = "PAYMENT"
	KeyDefault    = "DEFAULT"
)

var (
	ErrInvalidExpense = errors.New("expenses: invalid expense")
	ErrNotFound       = errors.New("expenses: expense not found")
)

type Expense struct {
	ID             int64           `json:"id"`
	Date           time.Time       `json:"date"`
	Category       string          `json:"category"`
	Description    string          `json:"description"`
	Amount         decimal.Decimal `json:"amount"`
	JournalEntryID *int64          `json:"journalEntryId,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type CreateExpenseInput struct {
	Date        time.Time
	Category    string
	Description string
	Amount      decimal.Decimal
}

type ListFilter struct {
	Start    *time.Time
	End      *time.Time
	Category string
	Limit    int
	Offset   int
}

type ListResponse struct {
	Expenses []Expense       `json:"expenses"`
	Total    int             `json:"total"`
	Amount   decimal.Decimal `json:"amount"`
	Limit    int             `json:"limit"`
	Offset   int             `json:"offset"`
}
