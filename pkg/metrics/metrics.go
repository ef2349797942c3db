// Package metrics provides Prometheus metrics for the betting system.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// BettingMetrics collects and exposes betting-related Prometheus metrics.
type BettingMetrics struct {
	registry *prometheus.Registry

	// Bet flow metrics
	BetsTotal     *prometheus.CounterVec
	BetAmount     *prometheus.HistogramVec
	FlowDuration  *prometheus.HistogramVec
	StageLatency  *prometheus.HistogramVec
	StageFailures *prometheus.CounterVec

	// Approval metrics
	ApprovalsTotal *prometheus.CounterVec

	// Chain metrics
	TxConfirmLatency *prometheus.HistogramVec
	TokenBalance     *prometheus.GaugeVec
	ActiveMarkets    *prometheus.GaugeVec

	// Backend metrics
	BackendRequests   *prometheus.CounterVec
	PredictionFetches *prometheus.CounterVec
	PredictionLatency *prometheus.HistogramVec

	// Streaming metrics
	ConnectedClients *prometheus.GaugeVec
}

// NewBettingMetrics creates a new betting metrics collector.
func NewBettingMetrics() *BettingMetrics {
	registry := prometheus.NewRegistry()

	bm := &BettingMetrics{
		registry: registry,

		BetsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragebet_bets_total",
				Help: "Total number of bet placement attempts",
			},
			[]string{"side", "status"},
		),
		BetAmount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragebet_bet_amount_rage",
				Help:    "Bet stake in whole RAGE tokens",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
			},
			[]string{"side"},
		),
		FlowDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragebet_flow_duration_seconds",
				Help:    "Total bet flow duration from validation to refresh",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 12), // 100ms to ~400s
			},
			[]string{"status"},
		),
		StageLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragebet_stage_latency_seconds",
				Help:    "Individual bet flow stage latency",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"stage"},
		),
		StageFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragebet_stage_failures_total",
				Help: "Bet flow aborts by stage",
			},
			[]string{"stage"},
		),

		ApprovalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragebet_approvals_total",
				Help: "Token approval transactions",
			},
			[]string{"mode", "status"},
		),

		TxConfirmLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragebet_tx_confirm_latency_seconds",
				Help:    "Time from submission to first confirmation",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 500ms to ~4m
			},
			[]string{"method"},
		),
		TokenBalance: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ragebet_token_balance_rage",
				Help: "Last observed RAGE balance in whole tokens",
			},
			[]string{"account"},
		),
		ActiveMarkets: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ragebet_active_markets",
				Help: "Number of open markets being tracked",
			},
			[]string{},
		),

		BackendRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragebet_backend_requests_total",
				Help: "Backend API requests",
			},
			[]string{"route", "status"},
		),
		PredictionFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ragebet_prediction_fetches_total",
				Help: "AI prediction fetch attempts",
			},
			[]string{"status"},
		),
		PredictionLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ragebet_prediction_latency_seconds",
				Help:    "AI prediction generation latency",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~100s
			},
			[]string{},
		),

		ConnectedClients: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ragebet_ws_clients",
				Help: "Connected WebSocket clients",
			},
			[]string{},
		),
	}

	bm.registerAll()

	return bm
}

func (bm *BettingMetrics) registerAll() {
	bm.registry.MustRegister(
		bm.BetsTotal,
		bm.BetAmount,
		bm.FlowDuration,
		bm.StageLatency,
		bm.StageFailures,
		bm.ApprovalsTotal,
		bm.TxConfirmLatency,
		bm.TokenBalance,
		bm.ActiveMarkets,
		bm.BackendRequests,
		bm.PredictionFetches,
		bm.PredictionLatency,
		bm.ConnectedClients,
	)
}

// Registry returns the prometheus registry.
func (bm *BettingMetrics) Registry() *prometheus.Registry {
	return bm.registry
}

// --- Helper methods for recording metrics ---

// RecordBet records a bet placement attempt.
func (bm *BettingMetrics) RecordBet(side, status string, amountRage float64) {
	bm.BetsTotal.WithLabelValues(side, status).Inc()
	if amountRage > 0 {
		bm.BetAmount.WithLabelValues(side).Observe(amountRage)
	}
}

// RecordFlow records a completed bet flow run.
func (bm *BettingMetrics) RecordFlow(status string, durationSec float64) {
	if durationSec > 0 {
		bm.FlowDuration.WithLabelValues(status).Observe(durationSec)
	}
}

// RecordStage records a stage execution.
func (bm *BettingMetrics) RecordStage(stage string, durationSec float64) {
	bm.StageLatency.WithLabelValues(stage).Observe(durationSec)
}

// RecordStageFailure records a flow abort in a stage.
func (bm *BettingMetrics) RecordStageFailure(stage string) {
	bm.StageFailures.WithLabelValues(stage).Inc()
}

// RecordApproval records an approval transaction.
func (bm *BettingMetrics) RecordApproval(mode, status string) {
	bm.ApprovalsTotal.WithLabelValues(mode, status).Inc()
}

// RecordConfirmation records transaction confirmation latency.
func (bm *BettingMetrics) RecordConfirmation(method string, latencySec float64) {
	bm.TxConfirmLatency.WithLabelValues(method).Observe(latencySec)
}

// UpdateBalance updates the observed token balance.
func (bm *BettingMetrics) UpdateBalance(account string, balanceRage float64) {
	bm.TokenBalance.WithLabelValues(account).Set(balanceRage)
}

// UpdateActiveMarkets updates the open markets count.
func (bm *BettingMetrics) UpdateActiveMarkets(count int) {
	bm.ActiveMarkets.WithLabelValues().Set(float64(count))
}

// RecordBackendRequest records a backend API request.
func (bm *BettingMetrics) RecordBackendRequest(route, status string) {
	bm.BackendRequests.WithLabelValues(route, status).Inc()
}

// RecordPrediction records a prediction fetch.
func (bm *BettingMetrics) RecordPrediction(status string, latencySec float64) {
	bm.PredictionFetches.WithLabelValues(status).Inc()
	if latencySec > 0 {
		bm.PredictionLatency.WithLabelValues().Observe(latencySec)
	}
}

// UpdateConnectedClients updates the WebSocket client count.
func (bm *BettingMetrics) UpdateConnectedClients(count int) {
	bm.ConnectedClients.WithLabelValues().Set(float64(count))
}

// --- Decimal helpers ---

// DecimalToFloat64 safely converts decimal.Decimal to float64 for metrics.
func DecimalToFloat64(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// Global instance for convenience
var defaultMetrics *BettingMetrics
var once sync.Once

// Default returns the default global metrics instance.
func Default() *BettingMetrics {
	once.Do(func() {
		defaultMetrics = NewBettingMetrics()
	})
	return defaultMetrics
}
