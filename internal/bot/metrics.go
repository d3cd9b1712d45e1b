package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics структура для метрик Prometheus
type Metrics struct {
	CommandsProcessed    *prometheus.CounterVec
	ErrorsTotal          prometheus.Counter
	UpdateProcessingTime prometheus.Histogram
}

// NewMetrics registers the bot metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CommandsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "barbershop_bot_commands_total",
			Help: "Bot commands handled, by command",
		}, []string{"command"}),

		ErrorsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "barbershop_bot_errors_total",
			Help: "Panics recovered while handling updates",
		}),

		UpdateProcessingTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "barbershop_bot_update_processing_time_seconds",
			Help:    "Time spent processing updates",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
