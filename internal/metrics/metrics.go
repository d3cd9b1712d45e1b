package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "barbershop"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	slotsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_generated_total",
			Help:      "Bookable slots returned to callers.",
		},
	)

	slotChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_checks_total",
			Help:      "Conflict checks by outcome.",
		},
		[]string{"reason"},
	)

	appointments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_total",
			Help:      "Appointment writes by resulting status.",
		},
		[]string{"status"},
	)

	reservationConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservation_conflicts_total",
			Help:      "Bookings lost to a concurrent writer, by reservation mode.",
		},
		[]string{"mode"},
	)

	dayCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "day_cache_total",
			Help:      "Resolved day cache lookups.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, slotsGenerated, slotChecks, appointments, reservationConflicts, dayCache)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func AddSlotsGenerated(n int) {
	slotsGenerated.Add(float64(n))
}

func IncSlotCheck(reason string) {
	slotChecks.WithLabelValues(reason).Inc()
}

func IncAppointment(status string) {
	appointments.WithLabelValues(status).Inc()
}

func IncReservationConflict(mode string) {
	reservationConflicts.WithLabelValues(mode).Inc()
}

// IncDayCache records a cache "hit", "miss", "error" or "stale" (resolved day discarded).
func IncDayCache(result string) {
	dayCache.WithLabelValues(result).Inc()
}
