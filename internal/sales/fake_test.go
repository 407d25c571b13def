package sales

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pharmadist/pharmadist-erp/internal/accounting"
)

// memSales keeps sales in memory. WithTx mutates a copy and publishes it only
// when fn succeeds.
type memSales struct {
	mu        sync.Mutex
	customers map[int64]string
	sales     map[int64]Sale
	nextID    int64
	failItems bool
	// staleSeqs makes NextInvoiceSeq answer 1 as if a concurrent sale were
	// not yet visible.
	staleSeqs int
}

func newMemSales() *memSales {
	return &memSales{
		customers: map[int64]string{1: "Apotek Sehat", 2: "RS Harapan"},
		sales:     map[int64]Sale{},
		nextID:    1,
	}
}

func (m *memSales) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := &memSales{customers: m.customers, sales: map[int64]Sale{}, nextID: m.nextID, failItems: m.failItems, staleSeqs: m.staleSeqs}
	for k, v := range m.sales {
		snap.sales[k] = v
	}
	err := fn(ctx, snap)
	m.staleSeqs = snap.staleSeqs
	if err != nil {
		return err
	}
	m.sales, m.nextID = snap.sales, snap.nextID
	return nil
}

func (m *memSales) Ledger() accounting.TxRepository { return nil }

func (m *memSales) CustomerName(_ context.Context, id int64) (string, error) {
	name, ok := m.customers[id]
	if !ok {
		return "", fmt.Errorf("%w: id %d", ErrCustomerNotFound, id)
	}
	return name, nil
}

func (m *memSales) NextInvoiceSeq(_ context.Context, prefix string) (int, error) {
	if m.staleSeqs > 0 {
		m.staleSeqs--
		return 1, nil
	}
	last := 0
	for _, s := range m.sales {
		var n int
		if strings.HasPrefix(s.InvoiceNumber, prefix) {
			if _, err := fmt.Sscanf(strings.TrimPrefix(s.InvoiceNumber, prefix), "%d", &n); err == nil && n > last {
				last = n
			}
		}
	}
	return last + 1, nil
}

func (m *memSales) InsertSale(_ context.Context, sale Sale) (Sale, error) {
	for _, s := range m.sales {
		if s.InvoiceNumber == sale.InvoiceNumber {
			return Sale{}, fmt.Errorf("%w: %s", ErrDuplicateInvoice, sale.InvoiceNumber)
		}
	}
	sale.ID = m.nextID
	m.nextID++
	sale.CreatedAt = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	sale.CustomerName = m.customers[sale.CustomerID]
	m.sales[sale.ID] = sale
	return sale, nil
}

func (m *memSales) InsertItems(_ context.Context, saleID int64, items []SaleItem) ([]SaleItem, error) {
	if m.failItems {
		return nil, fmt.Errorf("disk full")
	}
	out := make([]SaleItem, len(items))
	for i, it := range items {
		it.ID = int64(i + 1)
		it.SaleID = saleID
		out[i] = it
	}
	s := m.sales[saleID]
	s.Items = out
	m.sales[saleID] = s
	return out, nil
}

func (m *memSales) SetJournal(_ context.Context, saleID, entryID int64) error {
	s := m.sales[saleID]
	s.JournalEntryID = &entryID
	m.sales[saleID] = s
	return nil
}

func (m *memSales) GetSale(_ context.Context, id int64, _ bool) (Sale, error) {
	s, ok := m.sales[id]
	if !ok {
		return Sale{}, ErrSaleNotFound
	}
	return s, nil
}

func (m *memSales) MarkPaid(_ context.Context, saleID int64, paidAt time.Time, entryID *int64) error {
	s := m.sales[saleID]
	if s.PaymentStatus == PaymentStatusPaid {
		return ErrAlreadyPaid
	}
	s.PaymentStatus = PaymentStatusPaid
	s.PaidAt = &paidAt
	s.PaymentEntryID = entryID
	m.sales[saleID] = s
	return nil
}

func (m *memSales) ListSales(_ context.Context, filter ListFilter) ([]Sale, int, error) {
	var out []Sale
	for _, s := range m.sales {
		if filter.Status != nil && s.PaymentStatus != *filter.Status {
			continue
		}
		if filter.CustomerID != nil && s.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Start != nil && s.Date.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && s.Date.After(*filter.End) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	total := len(out)
	if filter.Offset >= len(out) {
		return nil, total, nil
	}
	out = out[filter.Offset:]
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, total, nil
}

// fakePoster records postings and rejects a second posting per module/source.
type fakePoster struct {
	accounts    map[string]int64
	posted      []accounting.PostingInput
	links       map[string]bool
	nextEntry   int64
	invalidated int
	failNext    []error
}

func newFakePoster() *fakePoster {
	return &fakePoster{
		accounts: map[string]int64{
			"SALES/RECEIVABLE": 11,
			"SALES/CASH":       10,
			"SALES/REVENUE":    40,
			"SALES/TAX":        21,
		},
		links:     map[string]bool{},
		nextEntry: 500,
	}
}

func (p *fakePoster) ResolveAccount(_ context.Context, _ accounting.TxRepository, module, key string) (int64, error) {
	id, ok := p.accounts[module+"/"+key]
	if !ok {
		return 0, fmt.Errorf("%w: %s/%s", accounting.ErrMappingNotFound, module, key)
	}
	return id, nil
}

func (p *fakePoster) PostInTx(_ context.Context, _ accounting.TxRepository, input accounting.PostingInput) (accounting.JournalEntry, error) {
	if len(p.failNext) > 0 {
		err := p.failNext[0]
		p.failNext = p.failNext[1:]
		return accounting.JournalEntry{}, err
	}
	if err := input.Validate(); err != nil {
		return accounting.JournalEntry{}, err
	}
	link := input.SourceModule + "/" + input.SourceID.String()
	if p.links[link] {
		return accounting.JournalEntry{}, accounting.ErrSourceAlreadyLinked
	}
	p.links[link] = true
	p.posted = append(p.posted, input)
	p.nextEntry++
	return accounting.JournalEntry{ID: p.nextEntry, Date: input.Date, SourceModule: input.SourceModule}, nil
}

func (p *fakePoster) Invalidate(context.Context) { p.invalidated++ }
