package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the server's Prometheus instruments. Construction
// takes a Registerer so tests can use an isolated registry.
type Metrics struct {
	SessionsCreated prometheus.Counter
	SessionsLive    prometheus.Gauge
	Asks            *prometheus.CounterVec
	Tells           prometheus.Counter
	RequestErrors   *prometheus.CounterVec
	AskDuration     prometheus.Histogram
}

// NewMetrics registers the server metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blackbox",
			Name:      "sessions_created_total",
			Help:      "Optimization sessions created.",
		}),
		SessionsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "blackbox",
			Name:      "sessions_live",
			Help:      "Optimization sessions currently held in memory.",
		}),
		Asks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blackbox",
			Name:      "asks_total",
			Help:      "Proposals served, by controller phase.",
		}, []string{"phase"}),
		Tells: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "blackbox",
			Name:      "tells_total",
			Help:      "Observations recorded.",
		}),
		RequestErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "blackbox",
			Name:      "request_errors_total",
			Help:      "Failed API requests, by error kind.",
		}, []string{"kind"}),
		AskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "blackbox",
			Name:      "ask_duration_seconds",
			Help:      "Latency of proposal computation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	reg.MustRegister(
		m.SessionsCreated,
		m.SessionsLive,
		m.Asks,
		m.Tells,
		m.RequestErrors,
		m.AskDuration,
	)
	return m
}
