// Package store defines the persistence sink for liquidation history.
// Implementations include PostgreSQL (source of truth), Redis (read-through
// cache), and in-memory (for testing and development).
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/atmx/liquidation-engine/internal/model"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: record not found")

// MaxListLimit caps how many records one list call returns.
const MaxListLimit = 500

// Store is the append-only liquidation history. Records are never updated
// or deleted once inserted.
type Store interface {
	// InsertLiquidation appends an immutable liquidation record.
	InsertLiquidation(ctx context.Context, rec *model.LiquidationRecord) error

	// GetLiquidation retrieves one record by id.
	GetLiquidation(ctx context.Context, id uuid.UUID) (*model.LiquidationRecord, error)

	// ListLiquidations returns up to limit records, newest first.
	ListLiquidations(ctx context.Context, limit int) ([]model.LiquidationRecord, error)

	// ListLiquidationsByPosition returns every record for one position,
	// oldest first.
	ListLiquidationsByPosition(ctx context.Context, positionID uuid.UUID) ([]model.LiquidationRecord, error)
}

// clampLimit bounds limit to [1, MaxListLimit].
func clampLimit(limit int) int {
	if limit <= 0 {
		return 1
	}
	return min(limit, MaxListLimit)
}
