// Package api provides the HTTP handlers that read the engine's shared state
// and the WebSocket hub that streams liquidation events.
//
// Every handler reads a point-in-time copy; none of them touch positions.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/atmx/liquidation-engine/internal/book"
	"github.com/atmx/liquidation-engine/internal/engine"
	"github.com/atmx/liquidation-engine/internal/model"
	"github.com/atmx/liquidation-engine/internal/monitor"
	"github.com/atmx/liquidation-engine/internal/oracle"
	"github.com/atmx/liquidation-engine/internal/store"
)

// DefaultListLimit applies when ?limit is absent.
const DefaultListLimit = 50

// FundReader exposes the insurance ledger without its write path. Only the
// executor covers deficits.
type FundReader interface {
	Snapshot() model.FundLedger
}

// Service serves snapshots of the engine state and liquidation history.
type Service struct {
	book    *book.Book
	oracle  *oracle.PriceOracle
	fund    FundReader
	monitor *monitor.Monitor
	store   store.Store
}

// NewService creates a service over the engine's resources.
func NewService(e *engine.Engine) *Service {
	return &Service{
		book:    e.Book,
		oracle:  e.Oracle,
		fund:    e.Fund,
		monitor: e.Monitor,
		store:   e.Store,
	}
}

// Routes registers the read-only handlers on r.
func (s *Service) Routes(r chi.Router) {
	// Insurance fund.
	r.Get("/insurance", s.GetInsurance)

	// Position book snapshots.
	r.Get("/positions", s.ListPositions)
	r.Get("/positions/at-risk", s.ListAtRisk)
	r.Get("/positions/{positionID}", s.GetPosition)
	r.Get("/positions/{positionID}/liquidations", s.GetPositionLiquidations)

	// Oracle marks.
	r.Get("/prices", s.ListPrices)
	r.Get("/prices/{symbol}", s.GetPrice)

	// Liquidation history.
	r.Get("/liquidations", s.ListLiquidations)
}

// --- Request/Response types ---

// PriceResponse is one symbol's mark.
type PriceResponse struct {
	Symbol string `json:"symbol"`
	Price  int64  `json:"price"` // scaled
}

// --- HTTP Handlers ---

// GetInsurance handles GET /api/v1/insurance
func (s *Service) GetInsurance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.fund.Snapshot())
}

// ListPositions handles GET /api/v1/positions
// Returns every position, or only open ones with ?open=true.
func (s *Service) ListPositions(w http.ResponseWriter, r *http.Request) {
	var positions []model.Position
	if open, _ := strconv.ParseBool(r.URL.Query().Get("open")); open {
		positions = s.book.OpenSnapshot()
	} else {
		positions = s.book.Snapshot()
	}
	writeJSON(w, http.StatusOK, positions)
}

// GetPosition handles GET /api/v1/positions/{positionID}
func (s *Service) GetPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := positionID(w, r)
	if !ok {
		return
	}

	pos, err := s.book.Get(id)
	if err != nil {
		writeError(w, "position not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, pos)
}

// ListAtRisk handles GET /api/v1/positions/at-risk
// Returns the monitor's most recent scan result.
func (s *Service) ListAtRisk(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.monitor.Latest())
}

// ListPrices handles GET /api/v1/prices
func (s *Service) ListPrices(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.oracle.Snapshot())
}

// GetPrice handles GET /api/v1/prices/{symbol}
func (s *Service) GetPrice(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")

	price, ok := s.oracle.MarkPrice(symbol)
	if !ok {
		writeError(w, "unknown symbol: "+symbol, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, PriceResponse{Symbol: symbol, Price: price})
}

// ListLiquidations handles GET /api/v1/liquidations
// Returns newest-first history, ?limit=N (default 50, max 500).
func (s *Service) ListLiquidations(w http.ResponseWriter, r *http.Request) {
	limit := DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, store.MaxListLimit)
	}

	records, err := s.store.ListLiquidations(r.Context(), limit)
	if err != nil {
		slog.Error("list liquidations failed", "err", err)
		writeError(w, "failed to list liquidations", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.LiquidationRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// GetPositionLiquidations handles GET /api/v1/positions/{positionID}/liquidations
func (s *Service) GetPositionLiquidations(w http.ResponseWriter, r *http.Request) {
	id, ok := positionID(w, r)
	if !ok {
		return
	}
	if _, err := s.book.Get(id); errors.Is(err, book.ErrNotFound) {
		writeError(w, "position not found", http.StatusNotFound)
		return
	}

	records, err := s.store.ListLiquidationsByPosition(r.Context(), id)
	if err != nil {
		slog.Error("list position liquidations failed", "position_id", id, "err", err)
		writeError(w, "failed to get liquidation history", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []model.LiquidationRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func positionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "positionID"))
	if err != nil {
		writeError(w, "invalid position id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
