// Package liquidation implements the executor: the only component that
// mutates positions and the insurance fund.
//
// Each cycle prices every open position. A liquidatable position is first
// halved (partial liquidation, at least one unit). If that leaves it empty or
// with negative equity, the cycle escalates to a full closure in which the
// insurance fund covers as much of the deficit as its balance allows.
//
// Mutations happen under the position book lock on a copy of each position,
// committed only when its state machine finishes. Records are persisted and
// published only after the lock is released, in the order they were made.
package liquidation

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/atmx/liquidation-engine/internal/book"
	"github.com/atmx/liquidation-engine/internal/margin"
	"github.com/atmx/liquidation-engine/internal/metrics"
	"github.com/atmx/liquidation-engine/internal/model"
)

// RewardRate is the liquidator reward as a fraction of liquidated notional.
// The reward is recorded but not debited from any account.
var RewardRate = decimal.New(25, -3)

// Prices supplies a consistent copy of all marks for one cycle.
type Prices interface {
	Snapshot() map[string]int64
}

// Fund absorbs deficits. Cover returns the amount actually covered.
type Fund interface {
	Cover(deficit int64) (covered int64)
}

// Sink persists liquidation records.
type Sink interface {
	InsertLiquidation(ctx context.Context, rec *model.LiquidationRecord) error
}

// Publisher broadcasts liquidation events without blocking.
type Publisher interface {
	Publish(ev model.LiquidationEvent) int
}

// Executor performs partial and full liquidations.
type Executor struct {
	book   *book.Book
	prices Prices
	fund   Fund
	sink   Sink
	bus    Publisher
	now    func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithClock overrides the timestamp source for records.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// New creates an executor. The lock order is fixed: the book lock is always
// taken before the fund's.
func New(b *book.Book, prices Prices, fund Fund, sink Sink, bus Publisher, opts ...Option) *Executor {
	e := &Executor{
		book:   b,
		prices: prices,
		fund:   fund,
		sink:   sink,
		bus:    bus,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunCycle performs one scan-and-mutate pass and returns the records it
// produced. Persistence failures are logged and never undo the mutation.
func (e *Executor) RunCycle(ctx context.Context) []model.LiquidationRecord {
	marks := e.prices.Snapshot()

	var records []model.LiquidationRecord
	e.book.Update(func(p *model.Position) {
		mark, ok := marks[p.Symbol]
		if !ok {
			return
		}
		records = append(records, e.step(p, mark)...)
	})

	for i := range records {
		e.emit(ctx, records[i])
	}
	return records
}

// step liquidates a copy of p and writes it back only on success. A panic
// skips the position for this cycle, leaving it untouched, while the records
// of positions already processed are still emitted.
func (e *Executor) step(p *model.Position, mark int64) (records []model.LiquidationRecord) {
	defer func() {
		if r := recover(); r != nil {
			metrics.LiquidationPanics.WithLabelValues(p.Symbol).Inc()
			slog.Error("liquidation panicked, position skipped",
				"position_id", p.ID,
				"symbol", p.Symbol,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			records = nil
		}
	}()

	next := *p
	records = e.liquidate(&next, mark)
	*p = next
	return records
}

// liquidate runs the per-position state machine on p. The book lock is held
// by the caller. Fund cover is the last call that can fail, so a panic never
// leaves the fund debited for a discarded copy.
func (e *Executor) liquidate(p *model.Position, mark int64) []model.LiquidationRecord {
	ev, ok := margin.Evaluate(*p, mark)
	if !ok || !ev.Liquidatable() {
		return nil
	}

	reduction := max(p.Size/2, 1)
	reward := margin.ClampInt64(margin.Notional(reduction, mark).Mul(RewardRate))
	marginBefore := margin.ClampInt64(ev.Equity)

	p.Size -= reduction
	if p.Size <= 0 {
		p.Open = false
	}
	marginAfter := margin.ClampInt64(margin.Equity(*p, mark))

	records := []model.LiquidationRecord{
		e.record(p, model.KindPartial, reduction, mark, marginBefore, marginAfter, reward, 0, 0),
	}

	if p.Size > 0 && marginAfter >= 0 {
		return records
	}

	full := e.record(p, model.KindFull, p.Size, mark, marginAfter, 0, 0, 0, 0)

	// ClampInt64 keeps marginAfter > MinInt64, so the negation is safe.
	if marginAfter < 0 {
		deficit := -marginAfter
		full.BadDebt = e.fund.Cover(deficit)
		full.UncoveredDebt = deficit - full.BadDebt
	}
	records = append(records, full)

	p.Size = 0
	p.Margin = 0
	p.Open = false
	return records
}

func (e *Executor) record(p *model.Position, kind model.LiquidationKind, size, mark, before, after, reward, badDebt, uncovered int64) model.LiquidationRecord {
	return model.LiquidationRecord{
		ID:               uuid.New(),
		PositionID:       p.ID,
		PositionOwner:    p.Owner,
		Liquidator:       model.SystemLiquidator,
		Symbol:           p.Symbol,
		Kind:             kind,
		LiquidatedSize:   size,
		LiquidationPrice: mark,
		MarginBefore:     before,
		MarginAfter:      after,
		LiquidatorReward: reward,
		BadDebt:          badDebt,
		UncoveredDebt:    uncovered,
		Timestamp:        e.now(),
	}
}

// emit persists and publishes one record outside the book lock. rec is the
// executor's private copy.
func (e *Executor) emit(ctx context.Context, rec model.LiquidationRecord) {
	if err := e.sink.InsertLiquidation(ctx, &rec); err != nil {
		metrics.PersistFailures.Inc()
		slog.Error("liquidation persist failed",
			"liquidation_id", rec.ID,
			"position_id", rec.PositionID,
			"kind", rec.Kind,
			"err", err,
		)
	}

	e.bus.Publish(model.LiquidationEvent{Record: rec})

	metrics.LiquidationsTotal.WithLabelValues(string(rec.Kind), rec.Symbol).Inc()
	metrics.LiquidatedSize.WithLabelValues(rec.Symbol).Add(float64(rec.LiquidatedSize))
	if rec.BadDebt > 0 {
		metrics.BadDebtCovered.Add(float64(rec.BadDebt))
	}
	if rec.UncoveredDebt > 0 {
		metrics.BadDebtUncovered.Add(float64(rec.UncoveredDebt))
		slog.Warn("bad debt exceeds insurance fund",
			"position_id", rec.PositionID,
			"covered", rec.BadDebt,
			"uncovered", rec.UncoveredDebt,
		)
	}

	slog.Info("liquidation executed",
		"liquidation_id", rec.ID,
		"position_id", rec.PositionID,
		"owner", rec.PositionOwner,
		"symbol", rec.Symbol,
		"kind", rec.Kind,
		"size", rec.LiquidatedSize,
		"price", rec.LiquidationPrice,
		"margin_before", rec.MarginBefore,
		"margin_after", rec.MarginAfter,
		"reward", rec.LiquidatorReward,
		"bad_debt", rec.BadDebt,
	)
}
