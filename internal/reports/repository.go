package reports

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// Repository exposes the read queries reports are built from.
type Repository interface {
	AccountActivity(ctx context.Context, window DateRange) ([]AccountActivity, error)
	SalesRevenue(ctx context.Context, window DateRange) (decimal.Decimal, int, error)
	ExpensesByCategory(ctx context.Context, window DateRange) ([]ExpenseGroup, error)
	OpenInvoices(ctx context.Context, asOf time.Time) ([]OpenInvoice, error)
	LedgerRows(ctx context.Context, filter LedgerFilter) ([]LedgerRow, error)
	EntryRows(ctx context.Context, filter LedgerFilter) ([]LedgerRow, error)
	OpeningBalances(ctx context.Context, accountID *int64, before time.Time) (map[int64]decimal.Decimal, error)
	CustomerSales(ctx context.Context, window DateRange) ([]CustomerSales, error)
	AccountExists(ctx context.Context, id int64) (bool, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PGRepository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// AccountActivity returns every account with its debit and credit sums for
// entries inside the window. Accounts without activity come back with zeros.
func (r *PGRepository) AccountActivity(ctx context.Context, window DateRange) ([]AccountActivity, error) {
	rows, err := r.pool.Query(ctx, `
SELECT a.id, a.code, a.name, a.type, a.is_active, a.balance,
       COALESCE(SUM(jl.debit) FILTER (WHERE je.id IS NOT NULL), 0) AS debit,
       COALESCE(SUM(jl.credit) FILTER (WHERE je.id IS NOT NULL), 0) AS credit
FROM accounts a
LEFT JOIN journal_lines jl ON jl.account_id = a.id
LEFT JOIN journal_entries je ON je.id = jl.entry_id
      AND ($1::date IS NULL OR je.date >= $1)
      AND ($2::date IS NULL OR je.date <= $2)
GROUP BY a.id, a.code, a.name, a.type, a.is_active, a.balance
ORDER BY a.code`, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (AccountActivity, error) {
		var a AccountActivity
		err := row.Scan(&a.AccountID, &a.Code, &a.Name, &a.Type, &a.IsActive, &a.CachedBalance, &a.Debit, &a.Credit)
		return a, err
	})
}

// SalesRevenue sums sales.grand_total inside the window.
func (r *PGRepository) SalesRevenue(ctx context.Context, window DateRange) (decimal.Decimal, int, error) {
	var total decimal.Decimal
	var count int
	err := r.pool.QueryRow(ctx, `
SELECT COALESCE(SUM(grand_total), 0), COUNT(*)
FROM sales
WHERE ($1::date IS NULL OR date >= $1) AND ($2::date IS NULL OR date <= $2)`, window.Start, window.End).Scan(&total, &count)
	return total, count, err
}

// ExpensesByCategory groups expenses by category, falling back to the
// description for rows recorded without one.
func (r *PGRepository) ExpensesByCategory(ctx context.Context, window DateRange) ([]ExpenseGroup, error) {
	rows, err := r.pool.Query(ctx, `
SELECT COALESCE(NULLIF(TRIM(category), ''), description) AS grp, SUM(amount), COUNT(*)
FROM expenses
WHERE ($1::date IS NULL OR date >= $1) AND ($2::date IS NULL OR date <= $2)
GROUP BY grp
ORDER BY grp`, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (ExpenseGroup, error) {
		var g ExpenseGroup
		err := row.Scan(&g.Category, &g.Amount, &g.Count)
		return g, err
	})
}

// OpenInvoices lists unpaid sales dated on or before asOf.
func (r *PGRepository) OpenInvoices(ctx context.Context, asOf time.Time) ([]OpenInvoice, error) {
	rows, err := r.pool.Query(ctx, `
SELECT s.id, s.invoice_number, c.name, s.date, s.grand_total
FROM sales s
JOIN customers c ON c.id = s.customer_id
WHERE s.payment_status = 'unpaid' AND s.date <= $1
ORDER BY s.date, s.invoice_number`, asOf)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (OpenInvoice, error) {
		var inv OpenInvoice
		err := row.Scan(&inv.SaleID, &inv.InvoiceNumber, &inv.CustomerName, &inv.Date, &inv.Amount)
		return inv, err
	})
}

const ledgerRowColumns = `jl.id, je.id, je.number, je.date, je.description, je.reference, je.source_module,
       a.id, a.code, a.name, a.type, jl.debit, jl.credit, jl.memo`

// LedgerRows returns lines inside the window ordered for running balances.
func (r *PGRepository) LedgerRows(ctx context.Context, filter LedgerFilter) ([]LedgerRow, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+ledgerRowColumns+`
FROM journal_lines jl
JOIN journal_entries je ON je.id = jl.entry_id
JOIN accounts a ON a.id = jl.account_id
WHERE ($1::date IS NULL OR je.date >= $1)
  AND ($2::date IS NULL OR je.date <= $2)
  AND ($3::bigint IS NULL OR jl.account_id = $3)
ORDER BY a.code, je.date, je.number, jl.id`, filter.Start, filter.End, filter.AccountID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanLedgerRow)
}

// EntryRows returns every line of the entries inside the window. With an
// account filter, entries touching that account are returned whole.
func (r *PGRepository) EntryRows(ctx context.Context, filter LedgerFilter) ([]LedgerRow, error) {
	rows, err := r.pool.Query(ctx, `
SELECT `+ledgerRowColumns+`
FROM journal_entries je
JOIN journal_lines jl ON jl.entry_id = je.id
JOIN accounts a ON a.id = jl.account_id
WHERE ($1::date IS NULL OR je.date >= $1)
  AND ($2::date IS NULL OR je.date <= $2)
  AND ($3::bigint IS NULL OR EXISTS (
        SELECT 1 FROM journal_lines x WHERE x.entry_id = je.id AND x.account_id = $3))
ORDER BY je.date DESC, je.number DESC, jl.id`, filter.Start, filter.End, filter.AccountID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanLedgerRow)
}

// OpeningBalances sums debit - credit per account for entries dated before the cut-off.
func (r *PGRepository) OpeningBalances(ctx context.Context, accountID *int64, before time.Time) (map[int64]decimal.Decimal, error) {
	rows, err := r.pool.Query(ctx, `
SELECT jl.account_id, SUM(jl.debit - jl.credit)
FROM journal_lines jl
JOIN journal_entries je ON je.id = jl.entry_id
WHERE je.date < $1 AND ($2::bigint IS NULL OR jl.account_id = $2)
GROUP BY jl.account_id`, before, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]decimal.Decimal)
	for rows.Next() {
		var id int64
		var bal decimal.Decimal
		if err := rows.Scan(&id, &bal); err != nil {
			return nil, err
		}
		out[id] = bal
	}
	return out, rows.Err()
}

// CustomerSales aggregates each customer's sales inside the window. Customers
// without sales are included with zero totals.
func (r *PGRepository) CustomerSales(ctx context.Context, window DateRange) ([]CustomerSales, error) {
	rows, err := r.pool.Query(ctx, `
SELECT c.id, c.sector, c.region, COUNT(s.id), COALESCE(SUM(s.grand_total), 0)
FROM customers c
LEFT JOIN sales s ON s.customer_id = c.id
      AND ($1::date IS NULL OR s.date >= $1)
      AND ($2::date IS NULL OR s.date <= $2)
GROUP BY c.id, c.sector, c.region
ORDER BY c.id`, window.Start, window.End)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (CustomerSales, error) {
		var cs CustomerSales
		err := row.Scan(&cs.CustomerID, &cs.Sector, &cs.Region, &cs.SalesCount, &cs.SalesTotal)
		return cs, err
	})
}

// AccountExists reports whether the chart holds an account with id.
func (r *PGRepository) AccountExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

func scanLedgerRow(row pgx.CollectableRow) (LedgerRow, error) {
	var l LedgerRow
	err := row.Scan(&l.LineID, &l.EntryID, &l.EntryNumber, &l.Date, &l.Description, &l.Reference, &l.SourceModule,
		&l.AccountID, &l.AccountCode, &l.AccountName, &l.AccountType, &l.Debit, &l.Credit, &l.Memo)
	return l, err
}
