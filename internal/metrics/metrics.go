// Package metrics Prometheus-метрики сервиса расписания.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lesson_scheduler"

var Registry = prometheus.NewRegistry()

var (
	BookingsCreated = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bookings_created_total",
		Help:      "Bookings accepted by the ledger.",
	})

	BookingConflicts = promauto.With(Registry).NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_conflicts_total",
		Help:      "Booking attempts rejected because the window was taken or outside availability.",
	})

	BookingTransitions = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_transitions_total",
		Help:      "Booking status transitions by target status.",
	}, []string{"status"})

	SlotGenerationSeconds = promauto.With(Registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "slot_generation_seconds",
		Help:      "Time spent generating slots for one tutor and date.",
		Buckets:   prometheus.DefBuckets,
	})

	SlotCacheLookups = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "slot_cache_lookups_total",
		Help:      "Slot cache lookups by result.",
	}, []string{"result"})

	PaymentProviderErrors = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_provider_errors_total",
		Help:      "Failed payment provider calls by operation.",
	}, []string{"operation"})

	NotificationsSent = promauto.With(Registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Notification deliveries by channel and result.",
	}, []string{"channel", "result"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler отдаёт реестр в текстовом формате Prometheus.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
