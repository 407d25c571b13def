// Package sales records invoices to customers and posts them to the ledger.
package sales

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pharmadist/pharmadist-erp/internal/sales/shared"
)

// PaymentStatus of a sale.
type PaymentStatus string

const (
	PaymentStatusUnpaid PaymentStatus = "unpaid"
	PaymentStatusPaid   PaymentStatus = "paid"
)

// PaymentMethod decides which account the sale debits.
type PaymentMethod string

const (
	// PaymentMethodCredit books a receivable to be settled with MarkPaid.
	PaymentMethodCredit PaymentMethod = "credit"
	// PaymentMethodCash is settled on the sale date.
	PaymentMethodCash PaymentMethod = "cash"
)

// Ledger wiring.
const (
	SourceModule        = "SALES"
	PaymentSourceModule = "SALES:PAYMENT"
	MappingModule       = "SALES"
	KeyReceivable       = "RECEIVABLE"
	KeyCash             = "CASH"
	KeyRevenue          = "REVENUE"
	KeyTax              = "TAX"
)

var (
	ErrSaleNotFound     = errors.New("sales: sale not found")
	ErrCustomerNotFound = errors.New("sales: customer not found")
	ErrInvalidSale      = errors.New("sales: invalid sale")
	ErrAlreadyPaid      = errors.New("sales: sale already paid")
	ErrDuplicateInvoice = errors.New("sales: invoice number already exists")
)

var maxPercent = decimal.NewFromInt(100)

type Sale struct {
	ID             int64           `json:"id"`
	InvoiceNumber  string          `json:"invoiceNumber"`
	CustomerID     int64           `json:"customerId"`
	CustomerName   string          `json:"customerName,omitempty"`
	Date           time.Time       `json:"date"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DiscountTotal  decimal.Decimal `json:"discountTotal"`
	TaxTotal       decimal.Decimal `json:"taxTotal"`
	GrandTotal     decimal.Decimal `json:"grandTotal"`
	PaymentStatus  PaymentStatus   `json:"paymentStatus"`
	PaidAt         *time.Time      `json:"paidAt,omitempty"`
	JournalEntryID *int64          `json:"journalEntryId,omitempty"`
	PaymentEntryID *int64          `json:"paymentEntryId,omitempty"`
	Items          []SaleItem      `json:"items,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

type SaleItem struct {
	ID             int64           `json:"id"`
	SaleID         int64           `json:"saleId"`
	ProductName    string          `json:"productName"`
	BatchNumber    string          `json:"batchNumber,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	DiscountPct    decimal.Decimal `json:"discountPct"`
	TaxPct         decimal.Decimal `json:"taxPct"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	TaxAmount      decimal.Decimal `json:"taxAmount"`
	LineTotal      decimal.Decimal `json:"lineTotal"`
}

// ItemInput is one requested invoice line.
type ItemInput struct {
	ProductName string
	BatchNumber string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	DiscountPct decimal.Decimal
	TaxPct      decimal.Decimal
}

// CreateSaleInput is a validated-on-use sale request.
type CreateSaleInput struct {
	InvoiceNumber string
	CustomerID    int64
	Date          time.Time
	PaymentMethod PaymentMethod
	Items         []ItemInput
}

// Validate checks the request before any database work.
func (in *CreateSaleInput) Validate() error {
	if in.CustomerID <= 0 {
		return fmt.Errorf("%w: customer required", ErrInvalidSale)
	}
	if in.Date.IsZero() {
		return fmt.Errorf("%w: date required", ErrInvalidSale)
	}
	switch in.PaymentMethod {
	case "":
		in.PaymentMethod = PaymentMethodCredit
	case PaymentMethodCredit, PaymentMethodCash:
	default:
		return fmt.Errorf("%w: unknown payment method %q", ErrInvalidSale, in.PaymentMethod)
	}
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: at least one item required", ErrInvalidSale)
	}
	for i, item := range in.Items {
		if strings.TrimSpace(item.ProductName) == "" {
			return fmt.Errorf("%w: item %d: product name required", ErrInvalidSale, i+1)
		}
		if !item.Quantity.IsPositive() {
			return fmt.Errorf("%w: item %d: quantity must be positive", ErrInvalidSale, i+1)
		}
		if item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d: unit price must not be negative", ErrInvalidSale, i+1)
		}
		if !inPercentRange(item.DiscountPct) || !inPercentRange(item.TaxPct) {
			return fmt.Errorf("%w: item %d: percentages must be between 0 and 100", ErrInvalidSale, i+1)
		}
	}
	return nil
}

func inPercentRange(v decimal.Decimal) bool {
	return !v.IsNegative() && v.LessThanOrEqual(maxPercent)
}

// BuildSale computes line amounts and header totals.
func BuildSale(in CreateSaleInput) Sale {
	sale := Sale{
		InvoiceNumber: in.InvoiceNumber,
		CustomerID:    in.CustomerID,
		Date:          in.Date,
		Subtotal:      decimal.Zero,
		DiscountTotal: decimal.Zero,
		TaxTotal:      decimal.Zero,
		GrandTotal:    decimal.Zero,
		PaymentStatus: PaymentStatusUnpaid,
		Items:         make([]SaleItem, 0, len(in.Items)),
	}
	for _, item := range in.Items {
		amounts := shared.CalculateLineTotals(item.Quantity, item.UnitPrice, item.DiscountPct, item.TaxPct)
		sale.Items = append(sale.Items, SaleItem{
			ProductName:    strings.TrimSpace(item.ProductName),
			BatchNumber:    strings.TrimSpace(item.BatchNumber),
			Quantity:       item.Quantity,
			UnitPrice:      item.UnitPrice,
			DiscountPct:    item.DiscountPct,
			TaxPct:         item.TaxPct,
			DiscountAmount: amounts.Discount,
			TaxAmount:      amounts.Tax,
			LineTotal:      amounts.Total,
		})
		sale.Subtotal = sale.Subtotal.Add(amounts.Gross)
		sale.DiscountTotal = sale.DiscountTotal.Add(amounts.Discount)
		sale.TaxTotal = sale.TaxTotal.Add(amounts.Tax)
		sale.GrandTotal = sale.GrandTotal.Add(amounts.Total)
	}
	if in.PaymentMethod == PaymentMethodCash {
		paid := in.Date
		sale.PaymentStatus = PaymentStatusPaid
		sale.PaidAt = &paid
	}
	return sale
}

// NetRevenue is the amount credited to revenue: subtotal less discounts.
func (s Sale) NetRevenue() decimal.Decimal {
	return s.Subtotal.Sub(s.DiscountTotal)
}

// InvoicePrefix returns INV-YYYYMM- for the sale month.
func InvoicePrefix(date time.Time) string {
	return "INV-" + date.Format("200601") + "-"
}

// FormatInvoiceNumber renders INV-YYYYMM-NNNN.
func FormatInvoiceNumber(date time.Time, seq int) string {
	return fmt.Sprintf("%s%04d", InvoicePrefix(date), seq)
}

// SourceID derives the ledger source reference of a sale. Sale and payment
// postings share it under different modules.
func SourceID(saleID int64) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("pharmadist:sale:%d", saleID)))
}

// ListFilter narrows ListSales.
type ListFilter struct {
	Start      *time.Time
	End        *time.Time
	Status     *PaymentStatus
	CustomerID *int64
	Limit      int
	Offset     int
}

// ParsePaymentStatus accepts unpaid or paid in any case.
func ParsePaymentStatus(raw string) (PaymentStatus, error) {
	switch PaymentStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case PaymentStatusUnpaid:
		return PaymentStatusUnpaid, nil
	case PaymentStatusPaid:
		return PaymentStatusPaid, nil
	}
	return "", fmt.Errorf("%w: unknown payment status %q", ErrInvalidSale, raw)
}
