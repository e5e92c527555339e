// Package margin implements the margin evaluation shared by the position
// monitor and the liquidation executor.
//
// Every function here is pure: given a position snapshot and a mark price it
// computes unrealized PnL, notional value and margin ratio. The monitor and
// the executor both call Evaluate, so an observed at-risk position and an
// executed liquidation can never disagree for the same inputs.
//
// Products of size and price are formed in shopspring/decimal, which is
// arbitrary precision, so size*price cannot overflow int64 at any leverage or
// price scale. Only the final ratio is converted to float64.
package margin

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/atmx/liquidation-engine/internal/model"
)

var (
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
	minInt64 = decimal.NewFromInt(-math.MaxInt64)
)

// tier maps an inclusive leverage range to its maintenance margin ratio.
type tier struct {
	min, max uint16
	ratio    float64
}

// maintenanceTiers is ordered by leverage. Higher leverage tolerates a
// thinner margin before liquidation.
var maintenanceTiers = []tier{
	{1, 20, 0.025},
	{21, 50, 0.01},
	{51, 100, 0.005},
	{101, 500, 0.0025},
	{501, 1000, 0.001},
}

// DefaultMaintenanceRatio applies to leverage outside every defined tier. It
// is the most conservative tier.
const DefaultMaintenanceRatio = 0.025

// MaintenanceRatio returns the maintenance margin ratio for a leverage tier.
func MaintenanceRatio(leverage uint16) float64 {
	for _, t := range maintenanceTiers {
		if leverage >= t.min && leverage <= t.max {
			return t.ratio
		}
	}
	return DefaultMaintenanceRatio
}

// UnrealizedPnL returns size*(mark-entry) for longs and size*(entry-mark)
// for shorts, in scaled units.
func UnrealizedPnL(p model.Position, mark int64) decimal.Decimal {
	diff := decimal.NewFromInt(mark).Sub(decimal.NewFromInt(p.EntryPrice))
	if !p.IsLong() {
		diff = diff.Neg()
	}
	return decimal.NewFromInt(p.Size).Mul(diff)
}

// Notional returns size*mark.
func Notional(size, mark int64) decimal.Decimal {
	return decimal.NewFromInt(size).Mul(decimal.NewFromInt(mark))
}

// Equity returns margin + unrealized PnL.
func Equity(p model.Position, mark int64) decimal.Decimal {
	return decimal.NewFromInt(p.Margin).Add(UnrealizedPnL(p, mark))
}

// Ratio divides equity by notional in floating point. ok is false when the
// notional is not positive and the ratio is undefined.
func Ratio(equity, notional decimal.Decimal) (ratio float64, ok bool) {
	if notional.Sign() <= 0 {
		return 0, false
	}
	return equity.InexactFloat64() / notional.InexactFloat64(), true
}

// Evaluation is the result of pricing one position against one mark.
type Evaluation struct {
	Mark          int64
	UnrealizedPnL decimal.Decimal
	Notional      decimal.Decimal
	Equity        decimal.Decimal
	Ratio         float64
	Maintenance   float64
}

// Liquidatable reports whether the margin ratio is strictly below the
// maintenance ratio for the position's leverage.
func (e Evaluation) Liquidatable() bool {
	return e.Ratio < e.Maintenance
}

// Evaluate prices p at mark. ok is false when the position cannot be
// evaluated this cycle (non-positive notional).
func Evaluate(p model.Position, mark int64) (ev Evaluation, ok bool) {
	pnl := UnrealizedPnL(p, mark)
	notional := Notional(p.Size, mark)
	equity := decimal.NewFromInt(p.Margin).Add(pnl)

	ratio, ok := Ratio(equity, notional)
	if !ok {
		return Evaluation{}, false
	}
	return Evaluation{
		Mark:          mark,
		UnrealizedPnL: pnl,
		Notional:      notional,
		Equity:        equity,
		Ratio:         ratio,
		Maintenance:   MaintenanceRatio(p.Leverage),
	}, true
}

// ClampInt64 truncates d toward zero and saturates it to [-MaxInt64, MaxInt64]
// so the result can always be negated safely.
func ClampInt64(d decimal.Decimal) int64 {
	if d.GreaterThan(maxInt64) {
		return math.MaxInt64
	}
	if d.LessThan(minInt64) {
		return -math.MaxInt64
	}
	return d.IntPart()
}
