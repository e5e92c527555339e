// Package insurance implements the insurance fund ledger that absorbs
// liquidation deficits.
package insurance

import (
	"math"
	"sync"

	"github.com/atmx/liquidation-engine/internal/metrics"
	"github.com/atmx/liquidation-engine/internal/model"
)

// Fund is a singleton ledger of available capital and cumulative bad-debt
// coverage. Its balance never goes negative: coverage is capped at the
// available balance.
type Fund struct {
	mu     sync.Mutex
	ledger model.FundLedger
}

// NewFund creates a fund whose balance and contributions both start at
// initial. Negative values are treated as zero.
func NewFund(initial int64) *Fund {
	initial = max(initial, 0)
	metrics.InsuranceFundBalance.Set(float64(initial))
	return &Fund{ledger: model.FundLedger{
		Balance:            initial,
		TotalContributions: initial,
	}}
}

// Cover debits min(deficit, balance) and returns the amount covered. The
// remaining deficit-covered is uncovered bad debt. A non-positive deficit
// covers nothing.
func (f *Fund) Cover(deficit int64) (covered int64) {
	if deficit <= 0 {
		return 0
	}

	f.mu.Lock()
	covered = min(deficit, f.ledger.Balance)
	f.ledger.Balance = saturatingSub(f.ledger.Balance, covered)
	f.ledger.TotalBadDebtCovered = saturatingAdd(f.ledger.TotalBadDebtCovered, covered)
	balance := f.ledger.Balance
	f.mu.Unlock()

	metrics.InsuranceFundBalance.Set(float64(balance))
	return covered
}

// Snapshot returns a consistent copy of the ledger.
func (f *Fund) Snapshot() model.FundLedger {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ledger
}

// saturatingSub returns a-b floored at zero. Both operands are non-negative.
func saturatingSub(a, b int64) int64 {
	if b >= a {
		return 0
	}
	return a - b
}

// saturatingAdd returns a+b capped at MaxInt64. Both operands are non-negative.
func saturatingAdd(a, b int64) int64 {
	if s := a + b; s >= a {
		return s
	}
	return math.MaxInt64
}
