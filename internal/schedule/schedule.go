// Package schedule drives the engine's periodic loops.
//
// Loops receive ticks through the Ticker interface so tests can advance time
// by hand with a ManualTicker instead of sleeping.
package schedule

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/atmx/liquidation-engine/internal/metrics"
)

// Ticker delivers ticks on C until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type realTicker struct {
	t *time.Ticker
}

// NewTicker wraps time.NewTicker.
func NewTicker(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

// ManualTicker is a Ticker advanced explicitly with Tick. Its channel is
// unbuffered: Tick returns once a loop has accepted the tick, which also
// means every earlier cycle of that loop has finished.
type ManualTicker struct {
	ch chan time.Time
}

// NewManualTicker creates a ticker that only fires on Tick.
func NewManualTicker() *ManualTicker {
	return &ManualTicker{ch: make(chan time.Time)}
}

// Tick blocks until the consuming loop receives the tick.
func (m *ManualTicker) Tick() {
	m.ch <- time.Now()
}

func (m *ManualTicker) C() <-chan time.Time { return m.ch }
func (m *ManualTicker) Stop()               {}

// Loop calls fn once per tick until ctx is cancelled. Cancellation is only
// observed between cycles; a running cycle sees a context that is never
// cancelled, so it always runs to completion. A panic inside fn is recovered
// and logged and the loop keeps ticking.
func Loop(ctx context.Context, name string, t Ticker, fn func(context.Context)) error {
	defer t.Stop()
	cycleCtx := context.WithoutCancel(ctx)

	slog.Info("loop started", "loop", name)
	for {
		select {
		case <-ctx.Done():
			slog.Info("loop stopped", "loop", name)
			return nil
		case <-t.C():
			runCycle(cycleCtx, name, fn)
		}
	}
}

func runCycle(ctx context.Context, name string, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			metrics.LoopPanics.WithLabelValues(name).Inc()
			slog.Error("loop cycle panicked",
				"loop", name,
				"panic", r,
				"stack", string(debug.Stack()),
			)
		}
	}()

	start := time.Now()
	fn(ctx)
	metrics.CycleDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}
