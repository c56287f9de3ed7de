package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Latency: длительность одного вызова API
	RequestDuration *prometheus.HistogramVec

	// Итоги по записям
	OutcomesTotal *prometheus.CounterVec

	// Saturation: сколько вызовов сейчас в полете (не больше лимита диспетчера)
	InFlight prometheus.Gauge

	// Квота: сколько доступов срезано по приложениям
	QuotaClipped *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "migrate_request_duration_seconds",
			Help:    "Histogram of provisioning API call latencies.",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"workflow"}),

		OutcomesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "migrate_outcomes_total",
			Help: "Total number of dispatched records by outcome.",
		}, []string{"workflow", "status"}),

		InFlight: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "migrate_inflight_requests",
			Help: "Number of provisioning API calls currently in flight.",
		}),

		QuotaClipped: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "migrate_quota_clipped_total",
			Help: "Number of application grants denied by the per-run quota.",
		}, []string{"application"}),
	}
}
