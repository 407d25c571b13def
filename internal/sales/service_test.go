package sales

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/pharmadist/pharmadist-erp/internal/accounting"
	"github.com/pharmadist/pharmadist-erp/internal/platform/db"
)

type SalesServiceSuite struct {
	suite.Suite
	repo    *memSales
	poster  *fakePoster
	service *Service
	ctx     context.Context
}

func TestSalesServiceSuite(t *testing.T) {
	suite.Run(t, new(SalesServiceSuite))
}

func (s *SalesServiceSuite) SetupTest() {
	s.repo = newMemSales()
	s.poster = newFakePoster()
	s.service = NewService(s.repo, s.poster, nil)
	s.service.WithNow(func() time.Time { return time.Date(2025, 3, 20, 14, 0, 0, 0, time.UTC) })
	s.ctx = context.Background()
}

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func (s *SalesServiceSuite) creditSale() CreateSaleInput {
	return CreateSaleInput{
		CustomerID: 1,
		Date:       date(2025, 3, 5),
		Items: []ItemInput{
			{ProductName: "Paracetamol 500mg", BatchNumber: "B-01", Quantity: d("3"), UnitPrice: d("1000"), DiscountPct: d("10"), TaxPct: d("11")},
			{ProductName: "Amoxicillin 250mg", Quantity: d("2"), UnitPrice: d("500")},
		},
	}
}

func (s *SalesServiceSuite) TestCreateSalePostsBalancedJournal() {
	sale, err := s.service.CreateSale(s.ctx, s.creditSale())
	s.Require().NoError(err)

	s.Equal("INV-202503-0001", sale.InvoiceNumber)
	s.Equal("Apotek Sehat", sale.CustomerName)
	s.Equal(PaymentStatusUnpaid, sale.PaymentStatus)
	s.Equal("4000.00", sale.Subtotal.StringFixed(2))
	s.Equal("300.00", sale.DiscountTotal.StringFixed(2))
	s.Equal("297.00", sale.TaxTotal.StringFixed(2))
	s.Equal("3997.00", sale.GrandTotal.StringFixed(2))
	s.Len(sale.Items, 2)
	s.Require().NotNil(sale.JournalEntryID)

	s.Require().Len(s.poster.posted, 1)
	posting := s.poster.posted[0]
	s.Equal(SourceModule, posting.SourceModule)
	s.Equal(SourceID(sale.ID), posting.SourceID)
	s.Equal("INV-202503-0001", posting.Reference)
	debit, credit := posting.Totals()
	s.True(debit.Equal(credit))
	s.Equal(int64(11), posting.Lines[0].AccountID)
	s.Equal("3997.00", posting.Lines[0].Debit.StringFixed(2))
	s.Equal("3700.00", posting.Lines[1].Credit.StringFixed(2))
	s.Equal("297.00", posting.Lines[2].Credit.StringFixed(2))
	s.Equal(1, s.poster.invalidated)
}

func (s *SalesServiceSuite) TestInvoiceNumbersIncrementWithinMonth() {
	first, err := s.service.CreateSale(s.ctx, s.creditSale())
	s.Require().NoError(err)
	second, err := s.service.CreateSale(s.ctx, s.creditSale())
	s.Require().NoError(err)
	april := s.creditSale()
	april.Date = date(2025, 4, 1)
	third, err := s.service.CreateSale(s.ctx, april)
	s.Require().NoError(err)

	s.Equal("INV-202503-0001", first.InvoiceNumber)
	s.Equal("INV-202503-0002", second.InvoiceNumber)
	s.Equal("INV-202504-0001", third.InvoiceNumber)
}

func (s *SalesServiceSuite) TestDuplicateInvoiceRejected() {
	in := s.creditSale()
	in.InvoiceNumber = "INV-MANUAL-1"
	_, err := s.service.CreateSale(s.ctx, in)
	s.Require().NoError(err)

	_, err = s.service.CreateSale(s.ctx, in)
	s.ErrorIs(err, ErrDuplicateInvoice)
	s.False(errors.Is(err, db.ErrRetryTx))
	s.Len(s.poster.posted, 1)
}

func (s *SalesServiceSuite) TestCreateSaleRetriesSerializationFailure() {
	s.poster.failNext = []error{&pgconn.PgError{Code: "40001", Message: "could not serialize access due to concurrent update"}}

	sale, err := s.service.CreateSale(s.ctx, s.creditSale())
	s.Require().NoError(err)
	s.Equal("INV-202503-0001", sale.InvoiceNumber)
	s.Len(s.poster.posted, 1)
	s.Len(s.repo.sales, 1)
	s.Equal(1, s.poster.invalidated)
}

func (s *SalesServiceSuite) TestGeneratedInvoiceNumberRetriesAfterRace() {
	_, err := s.service.CreateSale(s.ctx, s.creditSale())
	s.Require().NoError(err)

	s.repo.staleSeqs = 1
	second, err := s.service.CreateSale(s.ctx, s.creditSale())
	s.Require().NoError(err)
	s.Equal("INV-202503-0002", second.InvoiceNumber)
	s.Len(s.repo.sales, 2)
}

func (s *SalesServiceSuite) TestMarkPaidRetriesSerializationFailure() {
	sale, err := s.service.CreateSale(s.ctx, s.creditSale())
	s.Require().NoError(err)

	s.poster.failNext = []error{&pgconn.PgError{Code: "40001"}}
	paid, err := s.service.MarkPaid(s.ctx, sale.ID, nil)
	s.Require().NoError(err)
	s.Equal(PaymentStatusPaid, paid.PaymentStatus)
	s.Len(s.poster.posted, 2)
}

func (s *SalesServiceSuite) TestCashSaleIsPaidOnSaleDate() {
	in := s.creditSale()
	in.PaymentMethod = PaymentMethodCash
	sale, err := s.service.CreateSale(s.ctx, in)
	s.Require().NoError(err)

	s.Equal(PaymentStatusPaid, sale.PaymentStatus)
	s.Require().NotNil(sale.PaidAt)
	s.Equal(in.Date, *sale.PaidAt)
	s.Equal(int64(10), s.poster.posted[0].Lines[0].AccountID)

	_, err = s.service.MarkPaid(s.ctx, sale.ID, nil)
	s.ErrorIs(err, ErrAlreadyPaid)
}

func (s *SalesServiceSuite) TestUnknownCustomerRejected() {
	in := s.creditSale()
	in.CustomerID = 99
	_, err := s.service.CreateSale(s.ctx, in)
	s.ErrorIs(err, ErrCustomerNotFound)
	s.Empty(s.poster.posted)
	s.Zero(s.poster.invalidated)
}

func (s *SalesServiceSuite) TestInvalidInputRejected() {
	cases := map[string]func(*CreateSaleInput){
		"no items":          func(in *CreateSaleInput) { in.Items = nil },
		"zero quantity":     func(in *CreateSaleInput) { in.Items[0].Quantity = decimal.Zero },
		"negative price":    func(in *CreateSaleInput) { in.Items[0].UnitPrice = d("-1") },
		"discount over 100": func(in *CreateSaleInput) { in.Items[0].DiscountPct = d("101") },
		"blank product":     func(in *CreateSaleInput) { in.Items[1].ProductName = "  " },
		"unknown method":    func(in *CreateSaleInput) { in.PaymentMethod = "barter" },
		"missing date":      func(in *CreateSaleInput) { in.Date = time.Time{} },
	}
	for name, mutate := range cases {
		s.Run(name, func() {
			in := s.creditSale()
			mutate(&in)
			_, err := s.service.CreateSale(s.ctx, in)
			s.ErrorIs(err, ErrInvalidSale)
		})
	}
}

func (s *SalesServiceSuite) TestFreeSaleSkipsJournal() {
	in := s.creditSale()
	in.Items = []ItemInput{{ProductName: "Sample", Quantity: d("1"), UnitPrice: decimal.Zero}}
	sale, err := s.service.CreateSale(s.ctx, in)
	s.Require().NoError(err)
	s.Nil(sale.JournalEntryID)
	s.Empty(s.poster.posted)
}

func (s *SalesServiceSuite) TestMissingMappingRollsBack() {
	delete(s.poster.accounts, "SALES/TAX")
	_, err := s.service.CreateSale(s.ctx, s.creditSale())
	s.ErrorIs(err, accounting.ErrMappingNotFound)

	list, total, err := s.service.ListSales(s.ctx, ListFilter{})
	s.Require().NoError(err)
	s.Zero(total)
	s.Empty(list)
}

func (s *SalesServiceSuite) TestItemFailureRollsBack() {
	s.repo.failItems = true
	_, err := s.service.CreateSale(s.ctx, s.creditSale())
	s.Error(err)
	s.Empty(s.repo.sales)
	s.Zero(s.poster.invalidated)
}

func (s *SalesServiceSuite) TestMarkPaidPostsSettlement() {
	sale, err := s.service.CreateSale(s.ctx, s.creditSale())
	s.Require().NoError(err)

	paidAt := date(2025, 3, 15)
	paid, err := s.service.MarkPaid(s.ctx, sale.ID, &paidAt)
	s.Require().NoError(err)
	s.Equal(PaymentStatusPaid, paid.PaymentStatus)
	s.Equal(paidAt, *paid.PaidAt)
	s.Require().NotNil(paid.PaymentEntryID)

	s.Require().Len(s.poster.posted, 2)
	settlement := s.poster.posted[1]
	s.Equal(PaymentSourceModule, settlement.SourceModule)
	s.Equal(paidAt, settlement.Date)
	s.Equal(int64(10), settlement.Lines[0].AccountID)
	s.Equal(int64(11), settlement.Lines[1].AccountID)
	s.Equal("3997.00", settlement.Lines[1].Credit.StringFixed(2))
	s.Equal(2, s.poster.invalidated)

	_, err = s.service.MarkPaid(s.ctx, sale.ID, &paidAt)
	s.ErrorIs(err, ErrAlreadyPaid)
}

func (s *SalesServiceSuite) TestMarkPaidDefaultsToToday() {
	sale, err := s.service.CreateSale(s.ctx, s.creditSale())
	s.Require().NoError(err)
	paid, err := s.service.MarkPaid(s.ctx, sale.ID, nil)
	s.Require().NoError(err)
	s.Equal(date(2025, 3, 20), *paid.PaidAt)
}

func (s *SalesServiceSuite) TestMarkPaidBeforeSaleDateRejected() {
	sale, err := s.service.CreateSale(s.ctx, s.creditSale())
	s.Require().NoError(err)
	early := date(2025, 3, 1)
	_, err = s.service.MarkPaid(s.ctx, sale.ID, &early)
	s.ErrorIs(err, ErrInvalidSale)

	stored, err := s.service.GetSale(s.ctx, sale.ID)
	s.Require().NoError(err)
	s.Equal(PaymentStatusUnpaid, stored.PaymentStatus)
}

func (s *SalesServiceSuite) TestMarkPaidUnknownSale() {
	_, err := s.service.MarkPaid(s.ctx, 404, nil)
	s.ErrorIs(err, ErrSaleNotFound)
}

func (s *SalesServiceSuite) TestListSalesFiltersAndPages() {
	for i := 0; i < 3; i++ {
		_, err := s.service.CreateSale(s.ctx, s.creditSale())
		s.Require().NoError(err)
	}
	other := s.creditSale()
	other.CustomerID = 2
	other.PaymentMethod = PaymentMethodCash
	_, err := s.service.CreateSale(s.ctx, other)
	s.Require().NoError(err)

	unpaid := PaymentStatusUnpaid
	list, total, err := s.service.ListSales(s.ctx, ListFilter{Status: &unpaid, Limit: 2})
	s.Require().NoError(err)
	s.Equal(3, total)
	s.Len(list, 2)

	customer := int64(2)
	list, total, err = s.service.ListSales(s.ctx, ListFilter{CustomerID: &customer})
	s.Require().NoError(err)
	s.Equal(1, total)
	s.Equal("RS Harapan", list[0].CustomerName)

	start, end := date(2025, 4, 1), date(2025, 3, 1)
	_, _, err = s.service.ListSales(s.ctx, ListFilter{Start: &start, End: &end})
	s.ErrorIs(err, ErrInvalidSale)
}
