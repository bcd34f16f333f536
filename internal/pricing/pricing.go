// Package pricing derives order money totals. It performs no I/O.
package pricing

import (
	"fmt"

	"store_api/internal/apperr"

	"github.com/shopspring/decimal"
)

// Line is one priced cart line.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// Totals is the result of a calculation. LineTotals is index-aligned with the input lines.
type Totals struct {
	LineTotals []decimal.Decimal
	Subtotal   decimal.Decimal
	Tax        decimal.Decimal
	Discount   decimal.Decimal
	Total      decimal.Decimal
}

// Calculator computes totals. The zero value is ready to use.
type Calculator struct{}

// Calculate returns subtotal = Σ(unit × qty) and total = subtotal + tax − discount.
// A nil tax or discount counts as zero.
func (Calculator) Calculate(lines []Line, tax, discount *decimal.Decimal) (Totals, error) {
	t := Totals{
		LineTotals: make([]decimal.Decimal, len(lines)),
		Subtotal:   decimal.Zero,
		Tax:        orZero(tax),
		Discount:   orZero(discount),
	}
	if t.Tax.IsNegative() {
		return Totals{}, apperr.Invalid("tax", "must be at least 0")
	}
	if t.Discount.IsNegative() {
		return Totals{}, apperr.Invalid("discount", "must be at least 0")
	}

	for i, l := range lines {
		if l.Quantity <= 0 {
			return Totals{}, apperr.Invalid(fmt.Sprintf("order_items.%d.quantity", i), "must be at least 1")
		}
		if l.UnitPrice.IsNegative() {
			return Totals{}, apperr.Invalid(fmt.Sprintf("order_items.%d.price", i), "must be at least 0")
		}
		lt := l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))).Round(2)
		t.LineTotals[i] = lt
		t.Subtotal = t.Subtotal.Add(lt)
	}

	return t.withTotal()
}

// Retotal recomputes the grand total for an existing subtotal, as used when tax or
// discount of a placed order are edited.
func (Calculator) Retotal(subtotal decimal.Decimal, tax, discount *decimal.Decimal) (Totals, error) {
	t := Totals{Subtotal: subtotal, Tax: orZero(tax), Discount: orZero(discount)}
	if t.Tax.IsNegative() {
		return Totals{}, apperr.Invalid("tax", "must be at least 0")
	}
	if t.Discount.IsNegative() {
		return Totals{}, apperr.Invalid("discount", "must be at least 0")
	}
	return t.withTotal()
}

func (t Totals) withTotal() (Totals, error) {
	t.Tax = t.Tax.Round(2)
	t.Discount = t.Discount.Round(2)
	t.Total = t.Subtotal.Add(t.Tax).Sub(t.Discount).Round(2)
	if t.Total.IsNegative() {
		return Totals{}, apperr.Invalid("discount", "must not exceed subtotal plus tax")
	}
	return t, nil
}

func orZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
