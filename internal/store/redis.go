package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/atmx/liquidation-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache. Inserts go to the primary store and invalidate the affected keys;
// reads check Redis first then fall back to the primary. A Redis outage
// degrades to primary-only reads.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (s *CachedStore) InsertLiquidation(ctx context.Context, rec *model.LiquidationRecord) error {
	if err := s.primary.InsertLiquidation(ctx, rec); err != nil {
		return err
	}
	s.rdb.Del(ctx, recentKey(), positionKey(rec.PositionID))
	return nil
}

// --- Read-through (check cache first) ---

func (s *CachedStore) GetLiquidation(ctx context.Context, id uuid.UUID) (*model.LiquidationRecord, error) {
	data, err := s.rdb.Get(ctx, recordKey(id)).Bytes()
	if err == nil {
		var r model.LiquidationRecord
		if json.Unmarshal(data, &r) == nil {
			return &r, nil
		}
	}

	r, err := s.primary.GetLiquidation(ctx, id)
	if err != nil {
		return nil, err
	}
	// Records are immutable, so this entry never needs invalidation.
	s.cache(ctx, recordKey(id), r)
	return r, nil
}

// ListLiquidations caches the newest MaxListLimit records under one key and
// slices it per request.
func (s *CachedStore) ListLiquidations(ctx context.Context, limit int) ([]model.LiquidationRecord, error) {
	limit = clampLimit(limit)

	data, err := s.rdb.Get(ctx, recentKey()).Bytes()
	if err == nil {
		var recent []model.LiquidationRecord
		if json.Unmarshal(data, &recent) == nil {
			return recent[:min(limit, len(recent))], nil
		}
	}

	recent, err := s.primary.ListLiquidations(ctx, MaxListLimit)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, recentKey(), recent)
	return recent[:min(limit, len(recent))], nil
}

func (s *CachedStore) ListLiquidationsByPosition(ctx context.Context, positionID uuid.UUID) ([]model.LiquidationRecord, error) {
	data, err := s.rdb.Get(ctx, positionKey(positionID)).Bytes()
	if err == nil {
		var records []model.LiquidationRecord
		if json.Unmarshal(data, &records) == nil {
			return records, nil
		}
	}

	records, err := s.primary.ListLiquidationsByPosition(ctx, positionID)
	if err != nil {
		return nil, err
	}
	s.cache(ctx, positionKey(positionID), records)
	return records, nil
}

// --- Cache helpers ---

func (s *CachedStore) cache(ctx context.Context, key string, v any) {
	if data, err := json.Marshal(v); err == nil {
		s.rdb.Set(ctx, key, data, s.ttl)
	}
}

func recentKey() string               { return "liquidations:recent" }
func recordKey(id uuid.UUID) string   { return fmt.Sprintf("liquidation:%s", id) }
func positionKey(id uuid.UUID) string { return fmt.Sprintf("liquidations:position:%s", id) }
