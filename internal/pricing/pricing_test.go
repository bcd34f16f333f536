package pricing

import (
	"errors"
	"testing"

	"store_api/internal/apperr"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ptr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func TestCalculate(t *testing.T) {
	tests := []struct {
		name     string
		lines    []Line
		tax      *decimal.Decimal
		discount *decimal.Decimal
		subtotal string
		total    string
	}{
		{
			name:     "single line no tax",
			lines:    []Line{{UnitPrice: dec("10.00"), Quantity: 3}},
			subtotal: "30",
			total:    "30",
		},
		{
			name: "tax and discount",
			lines: []Line{
				{UnitPrice: dec("19.99"), Quantity: 2},
				{UnitPrice: dec("5.50"), Quantity: 1},
			},
			tax:      ptr("4.55"),
			discount: ptr("10"),
			subtotal: "45.48",
			total:    "40.03",
		},
		{
			name:     "free item",
			lines:    []Line{{UnitPrice: decimal.Zero, Quantity: 4}},
			subtotal: "0",
			total:    "0",
		},
		{
			name:     "no lines",
			subtotal: "0",
			total:    "0",
		},
	}

	var calc Calculator
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.Calculate(tt.lines, tt.tax, tt.discount)
			require.NoError(t, err)
			assert.True(t, dec(tt.subtotal).Equal(got.Subtotal), "subtotal %s", got.Subtotal)
			assert.True(t, dec(tt.total).Equal(got.Total), "total %s", got.Total)

			sum := decimal.Zero
			for i, lt := range got.LineTotals {
				assert.True(t, tt.lines[i].UnitPrice.Mul(decimal.NewFromInt(int64(tt.lines[i].Quantity))).Equal(lt))
				sum = sum.Add(lt)
			}
			assert.True(t, sum.Equal(got.Subtotal))
			assert.True(t, got.Subtotal.Add(got.Tax).Sub(got.Discount).Equal(got.Total))
		})
	}
}

func TestCalculateRejectsBadInput(t *testing.T) {
	var calc Calculator
	tests := []struct {
		name     string
		lines    []Line
		tax      *decimal.Decimal
		discount *decimal.Decimal
		field    string
	}{
		{"zero quantity", []Line{{UnitPrice: dec("1"), Quantity: 0}}, nil, nil, "order_items.0.quantity"},
		{"negative quantity", []Line{{UnitPrice: dec("1"), Quantity: 1}, {UnitPrice: dec("1"), Quantity: -2}}, nil, nil, "order_items.1.quantity"},
		{"negative tax", []Line{{UnitPrice: dec("1"), Quantity: 1}}, ptr("-0.01"), nil, "tax"},
		{"negative discount", []Line{{UnitPrice: dec("1"), Quantity: 1}}, nil, ptr("-1"), "discount"},
		{"discount above total", []Line{{UnitPrice: dec("1"), Quantity: 1}}, nil, ptr("2"), "discount"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := calc.Calculate(tt.lines, tt.tax, tt.discount)
			var ve *apperr.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
}

func TestRetotal(t *testing.T) {
	var calc Calculator
	got, err := calc.Retotal(dec("100"), ptr("8.25"), ptr("15"))
	require.NoError(t, err)
	assert.Equal(t, "93.25", got.Total.StringFixed(2))

	_, err = calc.Retotal(dec("100"), nil, ptr("-1"))
	assert.Error(t, err)
}
