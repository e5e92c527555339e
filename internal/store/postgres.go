package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/atmx/liquidation-engine/internal/model"
)

// DB is the subset of *pgxpool.Pool the store uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Schema creates the liquidation_history table. Monetary columns hold
// scaled integers. seq records insert order and breaks created_at ties,
// since records from one cycle can share a microsecond.
const Schema = `
CREATE TABLE IF NOT EXISTS liquidation_history (
	seq               BIGSERIAL   NOT NULL,
	id                UUID PRIMARY KEY,
	position_id       UUID        NOT NULL,
	position_owner    TEXT        NOT NULL,
	liquidator        TEXT        NOT NULL,
	symbol            TEXT        NOT NULL,
	kind              TEXT        NOT NULL,
	liquidated_size   BIGINT      NOT NULL,
	liquidation_price BIGINT      NOT NULL,
	margin_before     BIGINT      NOT NULL,
	margin_after      BIGINT      NOT NULL,
	liquidator_reward BIGINT      NOT NULL,
	bad_debt          BIGINT      NOT NULL,
	uncovered_debt    BIGINT      NOT NULL DEFAULT 0,
	created_at        TIMESTAMPTZ NOT NULL
);
ALTER TABLE liquidation_history ADD COLUMN IF NOT EXISTS seq BIGSERIAL;
DROP INDEX IF EXISTS liquidation_history_position_idx;
DROP INDEX IF EXISTS liquidation_history_created_idx;
CREATE INDEX IF NOT EXISTS liquidation_history_position_seq_idx ON liquidation_history (position_id, created_at, seq);
CREATE INDEX IF NOT EXISTS liquidation_history_created_seq_idx ON liquidation_history (created_at DESC, seq DESC);
`

// History ordering. seq keeps insert order among equal timestamps.
const (
	orderNewestFirst = `ORDER BY created_at DESC, seq DESC`
	orderOldestFirst = `ORDER BY created_at, seq`
)

const selectColumns = `id, position_id, position_owner, liquidator, symbol, kind,
	        liquidated_size, liquidation_price, margin_before, margin_after,
	        liquidator_reward, bad_debt, uncovered_debt, created_at`

// PostgresStore implements Store using PostgreSQL as the source of truth.
type PostgresStore struct {
	db DB
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the history table and indexes if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertLiquidation(ctx context.Context, r *model.LiquidationRecord) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO liquidation_history (
			id, position_id, position_owner, liquidator, symbol, kind,
			liquidated_size, liquidation_price, margin_before, margin_after,
			liquidator_reward, bad_debt, uncovered_debt, created_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		r.ID, r.PositionID, r.PositionOwner, r.Liquidator, r.Symbol, string(r.Kind),
		r.LiquidatedSize, r.LiquidationPrice, r.MarginBefore, r.MarginAfter,
		r.LiquidatorReward, r.BadDebt, r.UncoveredDebt, r.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert liquidation %s: %w", r.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetLiquidation(ctx context.Context, id uuid.UUID) (*model.LiquidationRecord, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+selectColumns+`
		 FROM liquidation_history WHERE id = $1`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("liquidation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get liquidation %s: %w", id, err)
	}
	return &rec, nil
}

func (s *PostgresStore) ListLiquidations(ctx context.Context, limit int) ([]model.LiquidationRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+selectColumns+`
		 FROM liquidation_history
		 `+orderNewestFirst+`
		 LIMIT $1`, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (s *PostgresStore) ListLiquidationsByPosition(ctx context.Context, positionID uuid.UUID) ([]model.LiquidationRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+selectColumns+`
		 FROM liquidation_history
		 WHERE position_id = $1
		 `+orderOldestFirst, positionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanRecords(rows)
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (model.LiquidationRecord, error) {
	var r model.LiquidationRecord
	var kind string
	err := row.Scan(&r.ID, &r.PositionID, &r.PositionOwner, &r.Liquidator, &r.Symbol, &kind,
		&r.LiquidatedSize, &r.LiquidationPrice, &r.MarginBefore, &r.MarginAfter,
		&r.LiquidatorReward, &r.BadDebt, &r.UncoveredDebt, &r.Timestamp)
	r.Kind = model.LiquidationKind(kind)
	return r, err
}

// pgxRows is the part of pgx.Rows scanRecords needs.
type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecords(rows pgxRows) ([]model.LiquidationRecord, error) {
	var records []model.LiquidationRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
