package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the verification service.
type Metrics struct {
	SessionsStarted   *prometheus.CounterVec
	SessionsCancelled *prometheus.CounterVec
	NotesLogged       prometheus.Counter
	HomebaseVerified  prometheus.Counter
	StageFailures     *prometheus.CounterVec
	GatewayCallMs     *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flowswitch_verification_sessions_started_total",
			Help: "Verification sessions started, by session type",
		}, []string{"session"}),
		SessionsCancelled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flowswitch_verification_sessions_cancelled_total",
			Help: "Verification sessions cancelled or declined, by session type",
		}, []string{"session"}),
		NotesLogged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flowswitch_cash_notes_logged_total",
			Help: "Cash notes successfully logged to the ledger",
		}),
		HomebaseVerified: promauto.NewCounter(prometheus.CounterOpts{
			Name: "flowswitch_homebase_verifications_total",
			Help: "Successful home-base location verifications",
		}),
		StageFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "flowswitch_verification_stage_failures_total",
			Help: "Session stage failures, by stage (validate, upload, record, geolocate, update)",
		}, []string{"stage"}),
		GatewayCallMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "flowswitch_gateway_call_duration_ms",
			Help:    "Latency of Remote Gateway calls in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"operation"}),
	}
}

// NewNop returns unregistered metrics for tests so parallel suites do not
// collide on the default registry.
func NewNop() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		SessionsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowswitch_verification_sessions_started_total",
		}, []string{"session"}),
		SessionsCancelled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowswitch_verification_sessions_cancelled_total",
		}, []string{"session"}),
		NotesLogged: f.NewCounter(prometheus.CounterOpts{
			Name: "flowswitch_cash_notes_logged_total",
		}),
		HomebaseVerified: f.NewCounter(prometheus.CounterOpts{
			Name: "flowswitch_homebase_verifications_total",
		}),
		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowswitch_verification_stage_failures_total",
		}, []string{"stage"}),
		GatewayCallMs: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "flowswitch_gateway_call_duration_ms",
		}, []string{"operation"}),
	}
}
