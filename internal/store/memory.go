package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/atmx/liquidation-engine/internal/model"
)

// MemoryStore implements Store with an in-memory slice. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu      sync.RWMutex
	history []model.LiquidationRecord
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) InsertLiquidation(_ context.Context, rec *model.LiquidationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.history {
		if existing.ID == rec.ID {
			return fmt.Errorf("liquidation %s already exists", rec.ID)
		}
	}
	s.history = append(s.history, *rec)
	return nil
}

func (s *MemoryStore) GetLiquidation(_ context.Context, id uuid.UUID) (*model.LiquidationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.history {
		if r.ID == id {
			rec := r
			return &rec, nil
		}
	}
	return nil, fmt.Errorf("liquidation %s: %w", id, ErrNotFound)
}

// ListLiquidations walks the history backwards so the newest insert comes
// first.
func (s *MemoryStore) ListLiquidations(_ context.Context, limit int) ([]model.LiquidationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = clampLimit(limit)
	result := make([]model.LiquidationRecord, 0, min(limit, len(s.history)))
	for i := len(s.history) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, s.history[i])
	}
	return result, nil
}

func (s *MemoryStore) ListLiquidationsByPosition(_ context.Context, positionID uuid.UUID) ([]model.LiquidationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.LiquidationRecord
	for _, r := range s.history {
		if r.PositionID == positionID {
			result = append(result, r)
		}
	}
	return result, nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}
