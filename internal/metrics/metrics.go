// Package metrics provides Prometheus instrumentation for the liquidation engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// LiquidationsTotal counts liquidation records produced, partitioned by kind.
	LiquidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atmx_liquidations_total",
		Help: "Total liquidation actions executed",
	}, []string{"kind", "symbol"})

	// LiquidatedSize tracks cumulative liquidated units per symbol.
	LiquidatedSize = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atmx_liquidated_size_total",
		Help: "Cumulative liquidated position size in units",
	}, []string{"symbol"})

	// BadDebtCovered accumulates deficits absorbed by the insurance fund (scaled units).
	BadDebtCovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atmx_bad_debt_covered_total",
		Help: "Bad debt covered by the insurance fund, scaled units",
	})

	// BadDebtUncovered accumulates deficits beyond the fund's balance (scaled units).
	BadDebtUncovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atmx_bad_debt_uncovered_total",
		Help: "Bad debt the insurance fund could not cover, scaled units",
	})

	// InsuranceFundBalance tracks the fund's available balance.
	InsuranceFundBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atmx_insurance_fund_balance",
		Help: "Available insurance fund balance, scaled units",
	})

	// AtRiskPositions is the number of liquidatable positions seen by the last monitor scan.
	AtRiskPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atmx_at_risk_positions",
		Help: "Positions below maintenance margin at the last monitor scan",
	})

	// OpenPositions tracks open positions in the book.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atmx_open_positions",
		Help: "Number of open positions",
	})

	// MarkPrice exposes the oracle's latest scaled mark per symbol.
	MarkPrice = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "atmx_mark_price",
		Help: "Latest oracle mark price, scaled units",
	}, []string{"symbol"})

	// PersistFailures counts liquidation records the sink failed to store.
	PersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atmx_liquidation_persist_failures_total",
		Help: "Liquidation records that failed to persist",
	})

	// EventsDropped counts events dropped for slow or closed subscribers.
	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "atmx_events_dropped_total",
		Help: "Liquidation events dropped because a subscriber queue was full",
	})

	// LiquidationPanics counts positions skipped because liquidating them
	// panicked.
	LiquidationPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atmx_liquidation_panics_total",
		Help: "Positions skipped in a cycle after a recovered liquidation panic",
	}, []string{"symbol"})

	// LoopPanics counts recovered panics per engine loop.
	LoopPanics = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atmx_loop_panics_total",
		Help: "Recovered panics per engine loop",
	}, []string{"loop"})

	// CycleDuration tracks how long one loop cycle takes.
	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atmx_loop_cycle_seconds",
		Help:    "Engine loop cycle duration in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
	}, []string{"loop"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "atmx_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "atmx_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "atmx_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		path := r.URL.Path
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
