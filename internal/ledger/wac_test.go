package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestBlendIntoEmptyBalance(t *testing.T) {
	wac, err := Blend(decimal.Zero, decimal.Zero, d("100"), d("5.00"))
	require.NoError(t, err)
	require.True(t, wac.Equal(d("5.00")), "got %s", wac)

	// Stale cost on a zero balance must not leak into the new WAC.
	wac, err = Blend(decimal.Zero, d("9.99"), d("10"), d("3.25"))
	require.NoError(t, err)
	require.True(t, wac.Equal(d("3.25")), "got %s", wac)
}

func TestBlendWeightedAverage(t *testing.T) {
	// (100×5 + 50×6) / 150 = 5.3333...
	wac, err := Blend(d("100"), d("5.00"), d("50"), d("6.00"))
	require.NoError(t, err)
	require.True(t, wac.Equal(d("5.3333")), "got %s", wac)
}

func TestBlendRoundsHalfUp(t *testing.T) {
	// (1×1 + 2×1.00005)/3 = 1.0000333... -> 1.0000
	wac, err := Blend(d("1"), d("1"), d("2"), d("1.00005"))
	require.NoError(t, err)
	require.True(t, wac.Equal(d("1.0000")), "got %s", wac)

	// 0.00005 exactly at the half boundary rounds up.
	wac, err = Blend(decimal.Zero, decimal.Zero, d("1"), d("0.00005"))
	require.NoError(t, err)
	require.True(t, wac.Equal(d("0.0001")), "got %s", wac)
}

func TestBlendCommutativeWithinRounding(t *testing.T) {
	// Receipt order must not change the final average beyond rounding noise.
	receipts := []struct{ qty, price string }{
		{"100", "5.00"}, {"50", "6.00"}, {"25", "4.75"}, {"10", "7.3333"},
	}
	forward := decimal.Zero
	qty := decimal.Zero
	for _, r := range receipts {
		var err error
		forward, err = Blend(qty, forward, d(r.qty), d(r.price))
		require.NoError(t, err)
		qty = qty.Add(d(r.qty))
	}
	backward := decimal.Zero
	qty = decimal.Zero
	for i := len(receipts) - 1; i >= 0; i-- {
		var err error
		backward, err = Blend(qty, backward, d(receipts[i].qty), d(receipts[i].price))
		require.NoError(t, err)
		qty = qty.Add(d(receipts[i].qty))
	}
	tolerance := d("0.0002")
	require.True(t, forward.Sub(backward).Abs().LessThanOrEqual(tolerance),
		"forward=%s backward=%s", forward, backward)
}

func TestBlendRejectsInvalidInput(t *testing.T) {
	_, err := Blend(d("10"), d("5"), decimal.Zero, d("1"))
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = Blend(d("10"), d("5"), d("-1"), d("1"))
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = Blend(d("10"), d("5"), d("1"), d("-0.01"))
	require.ErrorIs(t, err, ErrInvalidUnitCost)

	_, err = Blend(d("-1"), d("5"), d("1"), d("1"))
	require.ErrorIs(t, err, ErrNegativeState)
}
