package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	signalsTotal   *prometheus.CounterVec
	gateRejections *prometheus.CounterVec
	ordersTotal    *prometheus.CounterVec
	openTrades     prometheus.Gauge
	breakerState   *prometheus.GaugeVec
	latency        *prometheus.HistogramVec
	errorsTotal    *prometheus.CounterVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		signalsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_signals_total",
				Help: "Total number of combined signals produced",
			},
			[]string{"pair", "direction"},
		),
		gateRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_gate_rejections_total",
				Help: "Total number of execution-gate rejections",
			},
			[]string{"reason"},
		),
		ordersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_orders_total",
				Help: "Total number of routed orders by outcome",
			},
			[]string{"broker", "outcome"},
		),
		openTrades: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tradegate_open_trades",
				Help: "Number of currently open trades",
			},
		),
		breakerState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradegate_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tradegate_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradegate_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordSignal records a combined signal by pair and direction.
func (r *Recorder) RecordSignal(pair, direction string) {
	r.signalsTotal.WithLabelValues(pair, direction).Inc()
}

// RecordGateRejection records an execution-gate rejection.
func (r *Recorder) RecordGateRejection(reason string) {
	r.gateRejections.WithLabelValues(reason).Inc()
}

// RecordOrder records a routed order outcome.
func (r *Recorder) RecordOrder(broker, outcome string) {
	r.ordersTotal.WithLabelValues(broker, outcome).Inc()
}

// SetOpenTrades records the current open-trade count.
func (r *Recorder) SetOpenTrades(n int) {
	r.openTrades.Set(float64(n))
}

// SetBreakerState records a breaker's state gauge.
func (r *Recorder) SetBreakerState(name string, state float64) {
	r.breakerState.WithLabelValues(name).Set(state)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
