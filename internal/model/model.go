// Package model defines the core domain types shared across the liquidation engine.
// All monetary values are fixed-point int64 scaled by PriceScale, never float64.
package model

import (
	"time"

	"github.com/google/uuid"
)

// PriceScale is the fixed-point factor applied to prices (1.0 == 1_000_000).
const PriceScale int64 = 1_000_000

// Leverage bounds accepted at position creation.
const (
	MinLeverage uint16 = 1
	MaxLeverage uint16 = 1000
)

// SystemLiquidator identifies the engine itself as the liquidating party.
const SystemLiquidator = "executor"

// Side is the direction of a leveraged exposure.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == Long || s == Short
}

// Position is one leveraged exposure. Once Open is false the position is
// terminal and is never mutated again; closed positions remain as history.
type Position struct {
	ID         uuid.UUID `json:"id"`
	Owner      string    `json:"owner"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Size       int64     `json:"size"`        // units, >= 0 while open
	EntryPrice int64     `json:"entry_price"` // scaled
	Margin     int64     `json:"margin"`      // scaled collateral
	Leverage   uint16    `json:"leverage"`
	Open       bool      `json:"open"`
}

// IsLong reports whether the position profits from a rising mark.
func (p Position) IsLong() bool {
	return p.Side == Long
}

// FundLedger is a point-in-time copy of the insurance fund.
type FundLedger struct {
	Balance             int64 `json:"balance"`
	TotalContributions  int64 `json:"total_contributions"`
	TotalBadDebtCovered int64 `json:"total_bad_debt_covered"`
}

// LiquidationKind distinguishes the partial step from the full-closure escalation.
type LiquidationKind string

const (
	KindPartial LiquidationKind = "partial"
	KindFull    LiquidationKind = "full"
)

// LiquidationRecord is an immutable audit entry for one liquidation action.
// Once created, records are never modified or deleted.
type LiquidationRecord struct {
	ID               uuid.UUID       `json:"id"`
	PositionID       uuid.UUID       `json:"position_id"`
	PositionOwner    string          `json:"position_owner"`
	Liquidator       string          `json:"liquidator"`
	Symbol           string          `json:"symbol"`
	Kind             LiquidationKind `json:"kind"`
	LiquidatedSize   int64           `json:"liquidated_size"`
	LiquidationPrice int64           `json:"liquidation_price"`
	MarginBefore     int64           `json:"margin_before"`
	MarginAfter      int64           `json:"margin_after"`
	LiquidatorReward int64           `json:"liquidator_reward"`
	BadDebt          int64           `json:"bad_debt"`       // covered by the insurance fund
	UncoveredDebt    int64           `json:"uncovered_debt"` // deficit the fund could not absorb
	Timestamp        time.Time       `json:"timestamp"`
}

// LiquidationEvent wraps a record for broadcast to subscribers.
type LiquidationEvent struct {
	Record LiquidationRecord `json:"record"`
}
