package accounting

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pharmadist/pharmadist-erp/internal/platform/db"
)

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// TxRepository exposes ledger persistence bound to one connection or transaction.
type TxRepository interface {
	InsertJournalEntry(ctx context.Context, in PostingInput) (JournalEntry, error)
	InsertJournalLines(ctx context.Context, entryID int64, lines []PostingLineInput) ([]JournalLine, error)
	LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error
	ApplyBalances(ctx context.Context, lines []PostingLineInput) error
	GetJournalWithLines(ctx context.Context, entryID int64) (JournalEntry, error)

	InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	ListAccounts(ctx context.Context, accountType *AccountType) ([]Account, error)
	GetMapping(ctx context.Context, module, key string) (AccountMapping, error)

	LedgerTotals(ctx context.Context) (decimal.Decimal, decimal.Decimal, error)
	UnbalancedEntries(ctx context.Context) ([]EntryImbalance, error)
	BalanceDrift(ctx context.Context) ([]AccountDrift, error)
}

// Repository persists accounting entities.
type Repository struct {
	pool *pgxpool.Pool
	*queries
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, queries: &queries{db: pool}}
}

// WithTx executes fn within repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("accounting repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, BindTx(tx))
	})
}

// BindTx exposes ledger writes on a transaction owned by another module, so
// sales and expenses post their journals atomically with their own rows.
func BindTx(tx pgx.Tx) TxRepository {
	return &queries{db: tx}
}

type queries struct {
	db dbtx
}

func (q *queries) InsertJournalEntry(ctx context.Context, in PostingInput) (JournalEntry, error) {
	entry := JournalEntry{
		Date:         in.Date,
		Description:  in.Description,
		Reference:    in.Reference,
		SourceModule: in.SourceModule,
		SourceID:     in.SourceID,
	}
	err := q.db.QueryRow(ctx, `INSERT INTO journal_entries (date, description, reference, source_module, source_id)
VALUES ($1,$2,$3,$4,$5) RETURNING id, number, created_at`,
		in.Date, in.Description, in.Reference, in.SourceModule, in.SourceID).
		Scan(&entry.ID, &entry.Number, &entry.CreatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (q *queries) InsertJournalLines(ctx context.Context, entryID int64, lines []PostingLineInput) ([]JournalLine, error) {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		stored := JournalLine{
			EntryID:   entryID,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
			Memo:      line.Memo,
		}
		err := q.db.QueryRow(ctx, `INSERT INTO journal_lines (entry_id, account_id, debit, credit, memo)
VALUES ($1,$2,$3,$4,$5) RETURNING id`, entryID, line.AccountID, line.Debit, line.Credit, line.Memo).Scan(&stored.ID)
		if err != nil {
			if db.IsForeignKeyViolation(err) {
				return nil, fmt.Errorf("%w: id %d", ErrAccountNotFound, line.AccountID)
			}
			return nil, err
		}
		out = append(out, stored)
	}
	return out, nil
}

func (q *queries) LinkSource(ctx context.Context, module string, ref uuid.UUID, entryID int64) error {
	_, err := q.db.Exec(ctx, `INSERT INTO source_links (module, ref_id, entry_id) VALUES ($1,$2,$3)`, module, ref, entryID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return ErrSourceConflict
		}
		return err
	}
	return nil
}

// ApplyBalances moves each account's cached balance by debit - credit.
func (q *queries) ApplyBalances(ctx context.Context, lines []PostingLineInput) error {
	for _, line := range lines {
		delta := line.Debit.Sub(line.Credit)
		tag, err := q.db.Exec(ctx, `UPDATE accounts SET balance = balance + $2, updated_at = NOW() WHERE id = $1 AND is_active`, line.AccountID, delta)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: id %d", ErrAccountNotFound, line.AccountID)
		}
	}
	return nil
}

func (q *queries) GetJournalWithLines(ctx context.Context, entryID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := q.db.QueryRow(ctx, `SELECT id, number, date, description, reference, source_module, source_id, created_at
FROM journal_entries WHERE id=$1`, entryID).
		Scan(&entry.ID, &entry.Number, &entry.Date, &entry.Description, &entry.Reference, &entry.SourceModule, &entry.SourceID, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	rows, err := q.db.Query(ctx, `SELECT id, entry_id, account_id, debit, credit, memo
FROM journal_lines WHERE entry_id=$1 ORDER BY id ASC`, entryID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.AccountID, &line.Debit, &line.Credit, &line.Memo); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	if err := rows.Err(); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (q *queries) InsertAccount(ctx context.Context, in CreateAccountInput) (Account, error) {
	acct := Account{Code: in.Code, Name: in.Name, Type: in.Type, Balance: decimal.Zero, IsActive: true}
	err := q.db.QueryRow(ctx, `INSERT INTO accounts (code, name, type) VALUES ($1,$2,$3)
RETURNING id, created_at, updated_at`, in.Code, in.Name, in.Type).Scan(&acct.ID, &acct.CreatedAt, &acct.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Account{}, fmt.Errorf("%w: %s", ErrDuplicateAccount, in.Code)
		}
		return Account{}, err
	}
	return acct, nil
}

func (q *queries) GetAccount(ctx context.Context, id int64) (Account, error) {
	var a Account
	err := q.db.QueryRow(ctx, `SELECT id, code, name, type, balance, is_active, created_at, updated_at FROM accounts WHERE id=$1`, id).
		Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Balance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (q *queries) ListAccounts(ctx context.Context, accountType *AccountType) ([]Account, error) {
	var filter any
	if accountType != nil {
		filter = string(*accountType)
	}
	rows, err := q.db.Query(ctx, `SELECT id, code, name, type, balance, is_active, created_at, updated_at
FROM accounts WHERE ($1::text IS NULL OR type = $1) ORDER BY code`, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		var a Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Balance, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (q *queries) GetMapping(ctx context.Context, module, key string) (AccountMapping, error) {
	if module == "" || key == "" {
		return AccountMapping{}, errors.New("accounting: module and key required")
	}
	mapping := AccountMapping{Module: strings.ToUpper(module), Key: strings.ToUpper(key)}
	err := q.db.QueryRow(ctx, `SELECT account_id FROM account_mappings WHERE module=$1 AND key=$2`, mapping.Module, mapping.Key).
		Scan(&mapping.AccountID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, fmt.Errorf("%w: %s/%s", ErrMappingNotFound, mapping.Module, mapping.Key)
		}
		return AccountMapping{}, err
	}
	return mapping, nil
}

func (q *queries) LedgerTotals(ctx context.Context) (decimal.Decimal, decimal.Decimal, error) {
	var debit, credit decimal.Decimal
	err := q.db.QueryRow(ctx, `SELECT COALESCE(SUM(debit),0), COALESCE(SUM(credit),0) FROM journal_lines`).Scan(&debit, &credit)
	return debit, credit, err
}

func (q *queries) UnbalancedEntries(ctx context.Context) ([]EntryImbalance, error) {
	rows, err := q.db.Query(ctx, `SELECT je.id, je.number, COALESCE(SUM(jl.debit),0), COALESCE(SUM(jl.credit),0), COUNT(jl.id)
FROM journal_entries je
LEFT JOIN journal_lines jl ON jl.entry_id = je.id
GROUP BY je.id, je.number
HAVING COALESCE(SUM(jl.debit),0) <> COALESCE(SUM(jl.credit),0) OR COUNT(jl.id) < 2
ORDER BY je.number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []EntryImbalance
	for rows.Next() {
		var e EntryImbalance
		if err := rows.Scan(&e.EntryID, &e.Number, &e.Debit, &e.Credit, &e.LineCount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (q *queries) BalanceDrift(ctx context.Context) ([]AccountDrift, error) {
	rows, err := q.db.Query(ctx, `SELECT a.id, a.code, a.balance, COALESCE(SUM(jl.debit - jl.credit),0) AS computed
FROM accounts a
LEFT JOIN journal_lines jl ON jl.account_id = a.id
GROUP BY a.id, a.code, a.balance
HAVING a.balance <> COALESCE(SUM(jl.debit - jl.credit),0)
ORDER BY a.code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountDrift
	for rows.Next() {
		var d AccountDrift
		if err := rows.Scan(&d.AccountID, &d.Code, &d.Cached, &d.Computed); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
