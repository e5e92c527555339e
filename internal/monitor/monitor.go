// Package monitor surfaces at-risk positions without acting on them.
package monitor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/atmx/liquidation-engine/internal/book"
	"github.com/atmx/liquidation-engine/internal/margin"
	"github.com/atmx/liquidation-engine/internal/metrics"
	"github.com/atmx/liquidation-engine/internal/model"
)

// PriceSource serves the latest mark per symbol.
type PriceSource interface {
	MarkPrice(symbol string) (int64, bool)
}

// AtRisk is a position observed below its maintenance margin.
type AtRisk struct {
	Position    model.Position `json:"position"`
	MarkPrice   int64          `json:"mark_price"`
	MarginRatio float64        `json:"margin_ratio"`
	Maintenance float64        `json:"maintenance_ratio"`
}

// Monitor periodically scans open positions and reports the liquidatable
// ones. It never mutates the book, the fund, or storage.
type Monitor struct {
	book   *book.Book
	prices PriceSource

	mu     sync.RWMutex
	latest []AtRisk
}

// New creates a monitor over b priced by prices.
func New(b *book.Book, prices PriceSource) *Monitor {
	return &Monitor{book: b, prices: prices}
}

// Scan evaluates a snapshot of the open positions and returns the at-risk
// ones. Positions with no mark or a non-positive notional are skipped.
func (m *Monitor) Scan() []AtRisk {
	positions := m.book.OpenSnapshot()

	flagged := make([]AtRisk, 0)
	for _, p := range positions {
		mark, ok := m.prices.MarkPrice(p.Symbol)
		if !ok {
			continue
		}
		ev, ok := margin.Evaluate(p, mark)
		if !ok || !ev.Liquidatable() {
			continue
		}

		flagged = append(flagged, AtRisk{
			Position:    p,
			MarkPrice:   mark,
			MarginRatio: ev.Ratio,
			Maintenance: ev.Maintenance,
		})
		slog.Warn("position liquidatable",
			"position_id", p.ID,
			"owner", p.Owner,
			"symbol", p.Symbol,
			"ratio", ev.Ratio,
			"maintenance", ev.Maintenance,
		)
	}

	m.mu.Lock()
	m.latest = flagged
	m.mu.Unlock()
	metrics.AtRiskPositions.Set(float64(len(flagged)))

	return flagged
}

// RunCycle adapts Scan to the schedule.Loop signature.
func (m *Monitor) RunCycle(context.Context) {
	m.Scan()
}

// Latest returns a copy of the result of the most recent scan.
func (m *Monitor) Latest() []AtRisk {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]AtRisk, len(m.latest))
	copy(out, m.latest)
	return out
}
