package export

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Formatter renders amounts for human-facing documents.
type Formatter struct {
	printer *message.Printer
	unit    currency.Unit
}

// NewFormatter builds a formatter for an ISO 4217 currency code.
func NewFormatter(code string) (Formatter, error) {
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		return Formatter{}, fmt.Errorf("export: currency %q: %w", code, err)
	}
	return Formatter{printer: message.NewPrinter(language.English), unit: unit}, nil
}

// Amount formats v with grouping and two decimals. Digits come from the
// decimal itself so large amounts keep every cent.
func (f Formatter) Amount(v decimal.Decimal) string {
	fixed := v.StringFixed(2)
	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	return sign + f.group(whole) + "." + frac
}

func (f Formatter) group(digits string) string {
	if f.printer != nil && len(digits) <= 18 {
		if n, err := strconv.ParseInt(digits, 10, 64); err == nil {
			return f.printer.Sprint(number.Decimal(n))
		}
	}
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Money prefixes Amount with the currency code.
func (f Formatter) Money(v decimal.Decimal) string {
	if f.printer == nil {
		return f.Amount(v)
	}
	return f.unit.String() + " " + f.Amount(v)
}

// Currency returns the ISO code.
func (f Formatter) Currency() string {
	return f.unit.String()
}
