// Package engine owns the shared risk state and runs the three periodic
// loops over it: oracle refresh, position monitor and liquidation executor.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/atmx/liquidation-engine/internal/book"
	"github.com/atmx/liquidation-engine/internal/config"
	"github.com/atmx/liquidation-engine/internal/events"
	"github.com/atmx/liquidation-engine/internal/insurance"
	"github.com/atmx/liquidation-engine/internal/liquidation"
	"github.com/atmx/liquidation-engine/internal/monitor"
	"github.com/atmx/liquidation-engine/internal/oracle"
	"github.com/atmx/liquidation-engine/internal/schedule"
	"github.com/atmx/liquidation-engine/internal/store"
)

// Loop names, used as log and metric labels.
const (
	LoopOracle   = "oracle"
	LoopMonitor  = "monitor"
	LoopExecutor = "executor"
)

// Engine holds explicitly owned resources. Every loop receives them at
// construction; nothing is a package-level singleton.
type Engine struct {
	Oracle   *oracle.PriceOracle
	Book     *book.Book
	Fund     *insurance.Fund
	Bus      *events.Bus
	Monitor  *monitor.Monitor
	Executor *liquidation.Executor
	Store    store.Store

	cfg config.EngineConfig
}

// Tickers drive the three loops. Tests substitute schedule.ManualTicker.
type Tickers struct {
	Oracle   schedule.Ticker
	Monitor  schedule.Ticker
	Executor schedule.Ticker
}

// New builds an engine and seeds the oracle and the position book. Seeding
// happens before any loop runs and fails as a whole.
func New(cfg config.EngineConfig, seed config.Seed, st store.Store, opts ...liquidation.Option) (*Engine, error) {
	e := &Engine{
		Oracle: oracle.New(),
		Book:   book.New(),
		Fund:   insurance.NewFund(cfg.InsuranceFund),
		Bus:    events.New(cfg.EventBuffer),
		Store:  st,
		cfg:    cfg,
	}
	e.Monitor = monitor.New(e.Book, e.Oracle)
	e.Executor = liquidation.New(e.Book, e.Oracle, e.Fund, st, e.Bus, opts...)

	for _, sp := range seed.Prices {
		e.Oracle.Track(sp.Symbol, sp.Price, sp.Drift)
	}
	added, err := e.Book.Seed(seed.Positions...)
	if err != nil {
		return nil, fmt.Errorf("seed positions: %w", err)
	}

	slog.Info("engine seeded",
		"symbols", len(seed.Prices),
		"positions", len(added),
		"insurance_fund", cfg.InsuranceFund,
	)
	return e, nil
}

// Run starts the loops on real tickers using the configured intervals and
// blocks until ctx is cancelled and every in-flight cycle has finished.
func (e *Engine) Run(ctx context.Context) error {
	return e.RunWith(ctx, Tickers{
		Oracle:   schedule.NewTicker(e.cfg.OracleInterval),
		Monitor:  schedule.NewTicker(e.cfg.MonitorInterval),
		Executor: schedule.NewTicker(e.cfg.ExecutorInterval),
	})
}

// RunWith is Run with caller-supplied tickers.
func (e *Engine) RunWith(ctx context.Context, t Tickers) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return schedule.Loop(gctx, LoopOracle, t.Oracle, e.Oracle.RunCycle)
	})
	g.Go(func() error {
		return schedule.Loop(gctx, LoopMonitor, t.Monitor, e.Monitor.RunCycle)
	})
	g.Go(func() error {
		return schedule.Loop(gctx, LoopExecutor, t.Executor, func(ctx context.Context) {
			e.Executor.RunCycle(ctx)
		})
	})
	return g.Wait()
}
