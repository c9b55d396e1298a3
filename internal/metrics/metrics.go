package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/segyhp/rent-ledger/pkg/response"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rent_ledger_http_requests_total",
			Help: "HTTP requests by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rent_ledger_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	ProcessorEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rent_ledger_processor_events_total",
			Help: "Processor events by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	ObligationsGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rent_ledger_obligations_generated_total",
		Help: "Rent obligations inserted by the generator",
	})

	LateFeesAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rent_ledger_late_fees_applied_total",
		Help: "Late fees charged",
	})

	LateFeeFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rent_ledger_late_fee_failures_total",
		Help: "Obligations the late fee batch could not charge",
	})

	ConsistencyErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rent_ledger_consistency_errors_total",
		Help: "Ledger invariant violations detected",
	})

	StaleIntentsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rent_ledger_stale_payment_intents",
		Help: "Pending payment intents older than the stale timeout at the last check",
	})

	RemindersSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rent_ledger_reminders_sent_total",
			Help: "Rent reminders dispatched",
		},
		[]string{"kind"},
	)
)

// Middleware records request counts and latency per route template
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := response.NewRecorder(w)
		next.ServeHTTP(recorder, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(recorder.StatusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
