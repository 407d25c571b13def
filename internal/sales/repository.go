package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmadist/pharmadist-erp/internal/accounting"
	"github.com/pharmadist/pharmadist-erp/internal/platform/db"
)

// Repository opens transactions for the sales service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// TxRepository is sales persistence bound to one transaction. Ledger exposes
// the same transaction to the accounting service.
type TxRepository interface {
	CustomerName(ctx context.Context, id int64) (string, error)
	NextInvoiceSeq(ctx context.Context, prefix string) (int, error)
	InsertSale(ctx context.Context, sale Sale) (Sale, error)
	InsertItems(ctx context.Context, saleID int64, items []SaleItem) ([]SaleItem, error)
	SetJournal(ctx context.Context, saleID, entryID int64) error
	GetSale(ctx context.Context, id int64, forUpdate bool) (Sale, error)
	MarkPaid(ctx context.Context, saleID int64, paidAt time.Time, entryID *int64) error
	ListSales(ctx context.Context, filter ListFilter) ([]Sale, int, error)
	Ledger() accounting.TxRepository
}

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("sales repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{db: tx, ledger: accounting.BindTx(tx)})
	})
}

type txRepo struct {
	db     dbtx
	ledger accounting.TxRepository
}

func (q *txRepo) Ledger() accounting.TxRepository { return q.ledger }

func (q *txRepo) CustomerName(ctx context.Context, id int64) (string, error) {
	var name string
	err := q.db.QueryRow(ctx, `SELECT name FROM customers WHERE id = $1`, id).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("%w: id %d", ErrCustomerNotFound, id)
	}
	return name, err
}

// NextInvoiceSeq returns one past the highest numeric suffix under prefix.
func (q *txRepo) NextInvoiceSeq(ctx context.Context, prefix string) (int, error) {
	var last int
	err := q.db.QueryRow(ctx, `SELECT COALESCE(MAX(substring(invoice_number FROM length($1) + 1)::int), 0)
FROM sales
WHERE invoice_number LIKE $1 || '%' AND substring(invoice_number FROM length($1) + 1) ~ '^[0-9]+$'`, prefix).Scan(&last)
	if err != nil {
		return 0, err
	}
	return last + 1, nil
}

func (q *txRepo) InsertSale(ctx context.Context, sale Sale) (Sale, error) {
	err := q.db.QueryRow(ctx, `INSERT INTO sales
(invoice_number, customer_id, date, subtotal, discount_total, tax_total, grand_total, payment_status, paid_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id, created_at`,
		sale.InvoiceNumber, sale.CustomerID, sale.Date, sale.Subtotal, sale.DiscountTotal, sale.TaxTotal,
		sale.GrandTotal, sale.PaymentStatus, sale.PaidAt).Scan(&sale.ID, &sale.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Sale{}, fmt.Errorf("%w: %s", ErrDuplicateInvoice, sale.InvoiceNumber)
		}
		if db.IsForeignKeyViolation(err) {
			return Sale{}, fmt.Errorf("%w: id %d", ErrCustomerNotFound, sale.CustomerID)
		}
		return Sale{}, err
	}
	return sale, nil
}

func (q *txRepo) InsertItems(ctx context.Context, saleID int64, items []SaleItem) ([]SaleItem, error) {
	out := make([]SaleItem, 0, len(items))
	for _, item := range items {
		item.SaleID = saleID
		err := q.db.QueryRow(ctx, `INSERT INTO sale_items
(sale_id, product_name, batch_number, quantity, unit_price, discount_pct, tax_pct, discount_amount, tax_amount, line_total)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING id`,
			saleID, item.ProductName, item.BatchNumber, item.Quantity, item.UnitPrice, item.DiscountPct, item.TaxPct,
			item.DiscountAmount, item.TaxAmount, item.LineTotal).Scan(&item.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

func (q *txRepo) SetJournal(ctx context.Context, saleID, entryID int64) error {
	_, err := q.db.Exec(ctx, `UPDATE sales SET journal_entry_id = $2, updated_at = NOW() WHERE id = $1`, saleID, entryID)
	return err
}

const saleColumns = `s.id, s.invoice_number, s.customer_id, c.name, s.date, s.subtotal, s.discount_total, s.tax_total,
       s.grand_total, s.payment_status, s.paid_at, s.journal_entry_id, s.payment_entry_id, s.created_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.InvoiceNumber, &s.CustomerID, &s.CustomerName, &s.Date, &s.Subtotal, &s.DiscountTotal,
		&s.TaxTotal, &s.GrandTotal, &s.PaymentStatus, &s.PaidAt, &s.JournalEntryID, &s.PaymentEntryID, &s.CreatedAt)
	return s, err
}

func (q *txRepo) GetSale(ctx context.Context, id int64, forUpdate bool) (Sale, error) {
	query := `SELECT ` + saleColumns + ` FROM sales s JOIN customers c ON c.id = s.customer_id WHERE s.id = $1`
	if forUpdate {
		query += ` FOR UPDATE OF s`
	}
	sale, err := scanSale(q.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Sale{}, ErrSaleNotFound
		}
		return Sale{}, err
	}
	rows, err := q.db.Query(ctx, `SELECT id, sale_id, product_name, batch_number, quantity, unit_price, discount_pct, tax_pct,
       discount_amount, tax_amount, line_total
FROM sale_items WHERE sale_id = $1 ORDER BY id`, id)
	if err != nil {
		return Sale{}, err
	}
	sale.Items, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (SaleItem, error) {
		var it SaleItem
		err := row.Scan(&it.ID, &it.SaleID, &it.ProductName, &it.BatchNumber, &it.Quantity, &it.UnitPrice,
			&it.DiscountPct, &it.TaxPct, &it.DiscountAmount, &it.TaxAmount, &it.LineTotal)
		return it, err
	})
	if err != nil {
		return Sale{}, err
	}
	return sale, nil
}

func (q *txRepo) MarkPaid(ctx context.Context, saleID int64, paidAt time.Time, entryID *int64) error {
	tag, err := q.db.Exec(ctx, `UPDATE sales SET payment_status = 'paid', paid_at = $2, payment_entry_id = $3, updated_at = NOW()
WHERE id = $1 AND payment_status = 'unpaid'`, saleID, paidAt, entryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyPaid
	}
	return nil
}

func (q *txRepo) ListSales(ctx context.Context, filter ListFilter) ([]Sale, int, error) {
	var conditions []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conditions = append(conditions, fmt.Sprintf(cond, len(args)))
	}
	if filter.Start != nil {
		add("s.date >= $%d", *filter.Start)
	}
	if filter.End != nil {
		add("s.date <= $%d", *filter.End)
	}
	if filter.Status != nil {
		add("s.payment_status = $%d", string(*filter.Status))
	}
	if filter.CustomerID != nil {
		add("s.customer_id = $%d", *filter.CustomerID)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM sales s`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM sales s JOIN customers c ON c.id = s.customer_id%s
ORDER BY s.date DESC, s.id DESC LIMIT $%d OFFSET $%d`, saleColumns, where, len(args)+1, len(args)+2)
	rows, err := q.db.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, err
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Sale, error) {
		return scanSale(row)
	})
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}
