package reports

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// AgeInDays counts whole days between the invoice date and asOf, both
// truncated to UTC calendar days. Future-dated invoices age as 0.
func AgeInDays(invoiceDate, asOf time.Time) int {
	from := truncateDay(invoiceDate)
	to := truncateDay(asOf)
	days := int(to.Sub(from).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// BucketFor maps an age onto its bucket: <=30 current, 31-60, 61-90, >90.
func BucketFor(ageDays int) string {
	switch {
	case ageDays <= 30:
		return BucketCurrent
	case ageDays <= 60:
		return BucketDays31To60
	case ageDays <= 90:
		return BucketDays61To90
	default:
		return BucketOver90
	}
}

// BuildAging places every open invoice in exactly one bucket.
func BuildAging(invoices []OpenInvoice, asOf time.Time) AgingReport {
	report := AgingReport{
		AsOfDate:         truncateDay(asOf).Format(dateLayout),
		TotalOutstanding: decimal.Zero,
		Invoices:         make([]AgingInvoice, 0, len(invoices)),
	}
	report.Buckets = AgingBuckets{
		Current:    AgingBucket{Amount: decimal.Zero},
		Days31To60: AgingBucket{Amount: decimal.Zero},
		Days61To90: AgingBucket{Amount: decimal.Zero},
		Over90:     AgingBucket{Amount: decimal.Zero},
	}
	for _, inv := range invoices {
		age := AgeInDays(inv.Date, asOf)
		bucket := BucketFor(age)
		target := report.Buckets.slot(bucket)
		target.Count++
		target.Amount = target.Amount.Add(inv.Amount)

		report.TotalOutstanding = report.TotalOutstanding.Add(inv.Amount)
		report.TotalCount++
		report.Invoices = append(report.Invoices, AgingInvoice{
			SaleID:        inv.SaleID,
			InvoiceNumber: inv.InvoiceNumber,
			CustomerName:  inv.CustomerName,
			Date:          inv.Date.Format(dateLayout),
			Amount:        inv.Amount,
			AgeDays:       age,
			Bucket:        bucket,
		})
	}
	sort.SliceStable(report.Invoices, func(i, j int) bool {
		if report.Invoices[i].AgeDays != report.Invoices[j].AgeDays {
			return report.Invoices[i].AgeDays > report.Invoices[j].AgeDays
		}
		return report.Invoices[i].InvoiceNumber < report.Invoices[j].InvoiceNumber
	})
	return report
}

func (b *AgingBuckets) slot(name string) *AgingBucket {
	switch name {
	case BucketCurrent:
		return &b.Current
	case BucketDays31To60:
		return &b.Days31To60
	case BucketDays61To90:
		return &b.Days61To90
	default:
		return &b.Over90
	}
}

func truncateDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
