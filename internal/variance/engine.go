// Package variance classifies delivery prices against period-locked price
// points. Detection is pure: NCR creation is the delivery orchestrator's job,
// which keeps the policy testable without a database.
package variance

import "github.com/shopspring/decimal"

// Result describes a detected price variance on a single delivery line.
type Result struct {
	PeriodPrice   decimal.Decimal
	ActualPrice   decimal.Decimal
	AbsoluteDelta decimal.Decimal
	PercentDelta  decimal.Decimal
	TotalImpact   decimal.Decimal
}

// Detector applies the variance policy. The zero value reports every
// non-zero delta (zero-tolerance default); a positive threshold suppresses
// variances whose absolute percentage falls below it.
type Detector struct {
	ThresholdPercent decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Detect compares the actual unit price of qty delivered units against the
// locked period price. A nil periodPrice means no price point exists for the
// (item, period) pair: no check is possible and no variance is reported.
// Missing prices are a price-setting problem, not a delivery problem.
func (d Detector) Detect(periodPrice *decimal.Decimal, qty, actualUnitPrice decimal.Decimal) *Result {
	if periodPrice == nil {
		return nil
	}
	delta := actualUnitPrice.Sub(*periodPrice)
	if delta.IsZero() {
		return nil
	}
	var pct decimal.Decimal
	if periodPrice.IsZero() {
		// Any paid price against a zero locked price is a full overrun.
		pct = hundred
	} else {
		pct = delta.Div(*periodPrice).Mul(hundred).Round(2)
	}
	if !d.ThresholdPercent.IsZero() && pct.Abs().LessThan(d.ThresholdPercent) {
		return nil
	}
	return &Result{
		PeriodPrice:   *periodPrice,
		ActualPrice:   actualUnitPrice,
		AbsoluteDelta: delta,
		PercentDelta:  pct,
		TotalImpact:   delta.Mul(qty).Round(2),
	}
}
