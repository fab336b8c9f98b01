// Package money holds the currency and share-fraction helpers used by the
// engine and the settlement calculator.
//
// Amounts are whole Colombian pesos represented as decimal.Decimal so that
// sums of item totals stay exact. Share fractions are float64: they are
// always 1/n and are compared against FractionTolerance.
package money

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/mmynk/tabsplit/internal/apperrors"
)

// FractionTolerance is the maximum allowed deviation of an item's summed
// share fractions from 1.
const FractionTolerance = 1e-9

var (
	hundred    = decimal.NewFromInt(100)
	nonNumeric = regexp.MustCompile(`[^\d.,]`)
	copPrinter = message.NewPrinter(language.MustParse("es-CO"))
)

// EqualShare returns the fraction each of n holders gets under an equal split.
func EqualShare(n int) float64 {
	if n <= 0 {
		return 0
	}
	return 1.0 / float64(n)
}

// FractionSum adds up share fractions.
func FractionSum(fractions []float64) float64 {
	var sum float64
	for _, f := range fractions {
		sum += f
	}
	return sum
}

// FractionsBalanced reports whether fractions sum to 1 within tolerance.
// An empty set is balanced: the item is simply unassigned.
func FractionsBalanced(fractions []float64) bool {
	if len(fractions) == 0 {
		return true
	}
	return math.Abs(FractionSum(fractions)-1) <= FractionTolerance
}

// LineTotal returns quantity × unit price.
func LineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// Share returns the portion of amount owned by fraction. A fraction within
// FractionTolerance of 1/n is treated as exactly 1/n, so an equal split
// divides the amount instead of multiplying by a rounded float.
func Share(amount decimal.Decimal, fraction float64) decimal.Decimal {
	if fraction > 0 {
		n := math.Round(1 / fraction)
		if n >= 1 && math.Abs(fraction*n-1) <= FractionTolerance {
			return amount.Div(decimal.NewFromInt(int64(n)))
		}
	}
	return amount.Mul(decimal.NewFromFloat(fraction))
}

// Extras is the tip/tax breakdown for a subtotal.
type Extras struct {
	Tip   decimal.Decimal
	Tax   decimal.Decimal
	Total decimal.Decimal
}

// TotalWithExtras computes tip = subtotal × pct/100, a flat tax, and the
// grand total.
func TotalWithExtras(subtotal, tipPercentage, taxAmount decimal.Decimal) Extras {
	tip := subtotal.Mul(tipPercentage).Div(hundred)
	return Extras{
		Tip:   tip,
		Tax:   taxAmount,
		Total: subtotal.Add(tip).Add(taxAmount),
	}
}

// Parse reads a price typed by a user. It accepts COP notation ("$45.000",
// "45.000,50") where '.' groups thousands and ',' marks decimals, and plain
// "45000.5" when there is a single '.' followed by one or two digits.
// Unparseable input yields zero.
func Parse(value string) decimal.Decimal {
	cleaned := nonNumeric.ReplaceAllString(value, "")
	if cleaned == "" {
		return decimal.Zero
	}

	var normalized string
	switch {
	case strings.Contains(cleaned, ","):
		normalized = strings.ReplaceAll(cleaned, ".", "")
		normalized = strings.Replace(normalized, ",", ".", 1)
		normalized = strings.ReplaceAll(normalized, ",", "")
	case strings.Count(cleaned, ".") == 1 && len(cleaned)-strings.Index(cleaned, ".") <= 3:
		normalized = cleaned
	default:
		normalized = strings.ReplaceAll(cleaned, ".", "")
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// FormatCOP renders a whole-peso amount, e.g. 45000 -> "$45.000".
func FormatCOP(amount decimal.Decimal) string {
	return copPrinter.Sprintf("$%d", amount.Round(0).IntPart())
}

// ValidateQuantity rejects non-positive quantities.
func ValidateQuantity(quantity int) error {
	if quantity <= 0 {
		return apperrors.Validation("quantity", "must be a positive integer")
	}
	return nil
}

// ValidatePrice rejects negative unit prices.
func ValidatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return apperrors.Validation("unit_price", "cannot be negative")
	}
	return nil
}

// ValidateTipPercentage requires a tip between 0 and 100 inclusive.
func ValidateTipPercentage(pct decimal.Decimal) error {
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return apperrors.Validation("tip_percentage", "must be between 0 and 100")
	}
	return nil
}

// ValidateTax rejects a negative tax amount.
func ValidateTax(tax decimal.Decimal) error {
	if tax.IsNegative() {
		return apperrors.Validation("tax_amount", "cannot be negative")
	}
	return nil
}
