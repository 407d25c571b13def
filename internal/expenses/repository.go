package expenses

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pharmadist/pharmadist-erp/internal/accounting"
	"github.com/pharmadist/pharmadist-erp/internal/platform/db"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

type TxRepository interface {
	Insert(ctx context.Context, e Expense) (Expense, error)
	SetJournal(ctx context.Context, id, entryID int64) error
	List(ctx context.Context, filter ListFilter) ([]Expense, int, decimal.Decimal, error)
	Ledger() accounting.TxRepository
}

type dbtx interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r.pool == nil {
		return errors.New("expenses repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{db: tx, ledger: accounting.BindTx(tx)})
	})
}

type txRepository struct {
	db     dbtx
	ledger accounting.TxRepository
}

func (q *txRepository) Ledger() accounting.TxRepository { return q.ledger }

func (q *txRepository) Insert(ctx context.Context, e Expense) (Expense, error) {
	err := q.db.QueryRow(ctx, `INSERT INTO expenses (date, category, description, amount)
VALUES ($1,$2,$3,$4) RETURNING id, created_at`, e.Date, e.Category, e.Description, e.Amount).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return Expense{}, err
	}
	return e, nil
}

func (q *txRepository) SetJournal(ctx context.Context, id, entryID int64) error {
	tag, err := q.db.Exec(ctx, `UPDATE expenses SET journal_entry_id = $2 WHERE id = $1`, id, entryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *txRepository) List(ctx context.Context, filter ListFilter) ([]Expense, int, decimal.Decimal, error) {
	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.Start != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", argPos))
		args = append(args, *filter.Start)
		argPos++
	}
	if filter.End != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", argPos))
		args = append(args, *filter.End)
		argPos++
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(category) = LOWER($%d)", argPos))
		args = append(args, filter.Category)
		argPos++
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	var sum decimal.Decimal
	if err := q.db.QueryRow(ctx, "SELECT COUNT(*), COALESCE(SUM(amount), 0) FROM expenses "+where, args...).Scan(&total, &sum); err != nil {
		return nil, 0, decimal.Zero, err
	}

	query := fmt.Sprintf(`SELECT id, date, category, description, amount, journal_entry_id, created_at
FROM expenses %s ORDER BY date DESC, id DESC LIMIT $%d OFFSET $%d`, where, argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)
	rows, err := q.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, decimal.Zero, err
	}
	list, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Expense, error) {
		var e Expense
		err := row.Scan(&e.ID, &e.Date, &e.Category, &e.Description, &e.Amount, &e.JournalEntryID, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, 0, decimal.Zero, err
	}
	return list, total, sum, nil
}
