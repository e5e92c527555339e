// Package oracle holds the latest mark price per symbol.
//
// The oracle's own refresh loop is the only writer; everyone else reads.
// Reads never block on computation and return the last committed value.
package oracle

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/atmx/liquidation-engine/internal/metrics"
)

type feed struct {
	price int64 // scaled
	drift int64 // scaled change applied per refresh
}

// PriceOracle maps symbols to scaled mark prices behind a reader/writer lock.
type PriceOracle struct {
	mu    sync.RWMutex
	feeds map[string]*feed
}

// New creates an oracle with no tracked symbols.
func New() *PriceOracle {
	return &PriceOracle{feeds: make(map[string]*feed)}
}

// Track registers symbol at price with a fixed per-refresh drift. Tracking an
// existing symbol replaces both values.
func (o *PriceOracle) Track(symbol string, price, drift int64) {
	o.mu.Lock()
	o.feeds[symbol] = &feed{price: price, drift: drift}
	o.mu.Unlock()
	metrics.MarkPrice.WithLabelValues(symbol).Set(float64(price))
}

// Set overrides the mark for symbol, keeping its drift. Unknown symbols are
// tracked with zero drift.
func (o *PriceOracle) Set(symbol string, price int64) {
	o.mu.Lock()
	if f, ok := o.feeds[symbol]; ok {
		f.price = price
	} else {
		o.feeds[symbol] = &feed{price: price}
	}
	o.mu.Unlock()
	metrics.MarkPrice.WithLabelValues(symbol).Set(float64(price))
}

// MarkPrice returns the last committed mark for symbol. ok is false for an
// unknown symbol, which is a legitimate no-data result rather than a failure.
func (o *PriceOracle) MarkPrice(symbol string) (price int64, ok bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	f, ok := o.feeds[symbol]
	if !ok {
		return 0, false
	}
	return f.price, true
}

// Snapshot returns a copy of every tracked mark.
func (o *PriceOracle) Snapshot() map[string]int64 {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make(map[string]int64, len(o.feeds))
	for sym, f := range o.feeds {
		out[sym] = f.price
	}
	return out
}

// Refresh advances every tracked symbol by its drift. Prices saturate at
// zero and at MaxInt64 instead of wrapping.
func (o *PriceOracle) Refresh() {
	o.mu.Lock()
	updated := make(map[string]int64, len(o.feeds))
	for sym, f := range o.feeds {
		f.price = advance(f.price, f.drift)
		updated[sym] = f.price
	}
	o.mu.Unlock()

	for sym, price := range updated {
		metrics.MarkPrice.WithLabelValues(sym).Set(float64(price))
		slog.Debug("oracle price updated", "symbol", sym, "price", price)
	}
}

// RunCycle adapts Refresh to the schedule.Loop signature.
func (o *PriceOracle) RunCycle(context.Context) {
	o.Refresh()
}

func advance(price, drift int64) int64 {
	switch {
	case drift > 0 && price > math.MaxInt64-drift:
		return math.MaxInt64
	case drift < 0 && price < math.MinInt64-drift:
		return 0
	}
	next := price + drift
	if next < 0 {
		return 0
	}
	return next
}
