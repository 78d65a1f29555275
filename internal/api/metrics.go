package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the HTTP and trading collectors
type Metrics struct {
	requests *prometheus.HistogramVec
	trades   *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		requests: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "paper_trader",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		trades: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paper_trader",
			Name:      "trades_total",
			Help:      "Trade requests by side and outcome.",
		}, []string{"side", "outcome"}),
	}
}

func (m *Metrics) observeTrade(side, outcome string) {
	if m == nil {
		return
	}
	m.trades.WithLabelValues(side, outcome).Inc()
}
