package accounting

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// memLedger is an in-memory TxRepository. WithTx works on a copy and only
// publishes it when fn succeeds, mirroring rollback semantics.
type memLedger struct {
	mu       sync.Mutex
	accounts map[int64]Account
	entries  map[int64]JournalEntry
	links    map[string]int64
	mappings map[string]int64
	nextID   int64
	bumps    int
	// conflicts counts ApplyBalances calls that fail with a serialization
	// failure; shared with every snapshot.
	conflicts *int
}

func newMemLedger() *memLedger {
	m := &memLedger{
		accounts: map[int64]Account{},
		entries:  map[int64]JournalEntry{},
		links:    map[string]int64{},
		mappings: map[string]int64{},
	}
	for _, a := range []Account{
		{ID: 1, Code: "1100", Name: "Cash", Type: AccountTypeAsset},
		{ID: 2, Code: "1200", Name: "Receivable", Type: AccountTypeAsset},
		{ID: 3, Code: "4100", Name: "Sales", Type: AccountTypeRevenue},
		{ID: 4, Code: "5200", Name: "Opex", Type: AccountTypeExpense},
	} {
		a.IsActive = true
		a.Balance = decimal.Zero
		m.accounts[a.ID] = a
	}
	m.mappings["SALES/REVENUE"] = 3
	m.nextID = 100
	m.conflicts = new(int)
	return m
}

func (m *memLedger) Bump(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bumps++
	return nil
}

func (m *memLedger) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot := m.clone()
	if err := fn(ctx, snapshot); err != nil {
		return err
	}
	m.accounts, m.entries, m.links, m.nextID = snapshot.accounts, snapshot.entries, snapshot.links, snapshot.nextID
	return nil
}

func (m *memLedger) clone() *memLedger {
	c := &memLedger{
		accounts:  map[int64]Account{},
		entries:   map[int64]JournalEntry{},
		links:     map[string]int64{},
		mappings:  m.mappings,
		nextID:    m.nextID,
		conflicts: m.conflicts,
	}
	for k, v := range m.accounts {
		c.accounts[k] = v
	}
	for k, v := range m.entries {
		c.entries[k] = v
	}
	for k, v := range m.links {
		c.links[k] = v
	}
	return c
}

func (m *memLedger) InsertJournalEntry(_ context.Context, in PostingInput) (JournalEntry, error) {
	m.nextID++
	entry := JournalEntry{
		ID: m.nextID, Number: m.nextID, Date: in.Date, Description: in.Description,
		Reference: in.Reference, SourceModule: in.SourceModule, SourceID: in.SourceID, CreatedAt: time.Now(),
	}
	m.entries[entry.ID] = entry
	return entry, nil
}

func (m *memLedger) InsertJournalLines(_ context.Context, entryID int64, lines []PostingLineInput) ([]JournalLine, error) {
	entry := m.entries[entryID]
	for _, l := range lines {
		if _, ok := m.accounts[l.AccountID]; !ok {
			return nil, fmt.Errorf("%w: id %d", ErrAccountNotFound, l.AccountID)
		}
		m.nextID++
		entry.Lines = append(entry.Lines, JournalLine{ID: m.nextID, EntryID: entryID, AccountID: l.AccountID, Debit: l.Debit, Credit: l.Credit, Memo: l.Memo})
	}
	m.entries[entryID] = entry
	return entry.Lines, nil
}

func (m *memLedger) LinkSource(_ context.Context, module string, ref uuid.UUID, entryID int64) error {
	key := module + "/" + ref.String()
	if _, ok := m.links[key]; ok {
		return ErrSourceConflict
	}
	m.links[key] = entryID
	return nil
}

func (m *memLedger) ApplyBalances(_ context.Context, lines []PostingLineInput) error {
	if *m.conflicts > 0 {
		*m.conflicts--
		return &pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}
	}
	for _, l := range lines {
		a, ok := m.accounts[l.AccountID]
		if !ok {
			return ErrAccountNotFound
		}
		a.Balance = a.Balance.Add(l.Debit.Sub(l.Credit))
		m.accounts[l.AccountID] = a
	}
	return nil
}

func (m *memLedger) GetJournalWithLines(_ context.Context, id int64) (JournalEntry, error) {
	e, ok := m.entries[id]
	if !ok {
		return JournalEntry{}, ErrJournalNotFound
	}
	return e, nil
}

func (m *memLedger) InsertAccount(_ context.Context, in CreateAccountInput) (Account, error) {
	for _, a := range m.accounts {
		if a.Code == in.Code {
			return Account{}, ErrDuplicateAccount
		}
	}
	m.nextID++
	a := Account{ID: m.nextID, Code: in.Code, Name: in.Name, Type: in.Type, IsActive: true, Balance: decimal.Zero}
	m.accounts[a.ID] = a
	return a, nil
}

func (m *memLedger) GetAccount(_ context.Context, id int64) (Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return a, nil
}

func (m *memLedger) ListAccounts(_ context.Context, t *AccountType) ([]Account, error) {
	var out []Account
	for _, a := range m.accounts {
		if t == nil || a.Type == *t {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (m *memLedger) GetMapping(_ context.Context, module, key string) (AccountMapping, error) {
	id, ok := m.mappings[module+"/"+key]
	if !ok {
		return AccountMapping{}, ErrMappingNotFound
	}
	return AccountMapping{Module: module, Key: key, AccountID: id}, nil
}

func (m *memLedger) LedgerTotals(context.Context) (decimal.Decimal, decimal.Decimal, error) {
	d, c := decimal.Zero, decimal.Zero
	for _, e := range m.entries {
		for _, l := range e.Lines {
			d = d.Add(l.Debit)
			c = c.Add(l.Credit)
		}
	}
	return d, c, nil
}

func (m *memLedger) UnbalancedEntries(context.Context) ([]EntryImbalance, error) {
	var out []EntryImbalance
	for _, e := range m.entries {
		d, c := decimal.Zero, decimal.Zero
		for _, l := range e.Lines {
			d = d.Add(l.Debit)
			c = c.Add(l.Credit)
		}
		if !d.Equal(c) || len(e.Lines) < 2 {
			out = append(out, EntryImbalance{EntryID: e.ID, Number: e.Number, Debit: d, Credit: c, LineCount: len(e.Lines)})
		}
	}
	return out, nil
}

func (m *memLedger) BalanceDrift(context.Context) ([]AccountDrift, error) {
	computed := map[int64]decimal.Decimal{}
	for _, e := range m.entries {
		for _, l := range e.Lines {
			computed[l.AccountID] = computed[l.AccountID].Add(l.Debit.Sub(l.Credit))
		}
	}
	var out []AccountDrift
	for _, a := range m.accounts {
		if !a.Balance.Equal(computed[a.ID]) {
			out = append(out, AccountDrift{AccountID: a.ID, Code: a.Code, Cached: a.Balance, Computed: computed[a.ID]})
		}
	}
	return out, nil
}
