package ledger

import "github.com/shopspring/decimal"

// Precision is the fixed number of fractional digits carried by quantities,
// unit costs, and the weighted-average cost. The final blended cost is
// rounded half-up once; intermediate products are exact.
const Precision = 4

// Blend computes the new weighted-average cost after receiving incomingQty
// units priced at incomingUnitPrice into a balance of currentQty units at
// currentWAC.
//
// The zero-balance case degenerates to the incoming price: whatever cost a
// stale row carries is irrelevant once on-hand is zero.
func Blend(currentQty, currentWAC, incomingQty, incomingUnitPrice decimal.Decimal) (decimal.Decimal, error) {
	if incomingQty.Sign() <= 0 {
		return decimal.Zero, ErrInvalidQuantity
	}
	if incomingUnitPrice.Sign() < 0 {
		return decimal.Zero, ErrInvalidUnitCost
	}
	if currentQty.Sign() < 0 || currentWAC.Sign() < 0 {
		return decimal.Zero, ErrNegativeState
	}
	if currentQty.IsZero() {
		return incomingUnitPrice.Round(Precision), nil
	}
	totalValue := currentQty.Mul(currentWAC).Add(incomingQty.Mul(incomingUnitPrice))
	totalQty := currentQty.Add(incomingQty)
	return totalValue.DivRound(totalQty, Precision), nil
}
