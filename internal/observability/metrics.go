package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	notificationsFired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grind_tracker",
		Subsystem: "scheduler",
		Name:      "notifications_fired_total",
		Help:      "Notifications emitted by the scheduler, by type.",
	}, []string{"type"})
	staleFires = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "grind_tracker",
		Subsystem: "scheduler",
		Name:      "stale_fires_total",
		Help:      "Timer callbacks discarded because the key was already notified or its record was gone.",
	})
	timersInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "grind_tracker",
		Subsystem: "scheduler",
		Name:      "timers_in_flight",
		Help:      "One-shot expiry timers currently scheduled.",
	})
	sideEffectFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grind_tracker",
		Subsystem: "scheduler",
		Name:      "side_effect_failures_total",
		Help:      "Swallowed failures of notification side effects, by sink.",
	}, []string{"sink"})
	refreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "grind_tracker",
		Subsystem: "refresh",
		Name:      "duration_seconds",
		Help:      "Duration of refresh passes.",
		Buckets:   prometheus.DefBuckets,
	})
	refreshErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "grind_tracker",
		Subsystem: "refresh",
		Name:      "errors_total",
		Help:      "Refresh passes that failed to read or prune the store.",
	})
	recordsPruned = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grind_tracker",
		Subsystem: "refresh",
		Name:      "records_pruned_total",
		Help:      "Expired records removed by the refresh loop, by kind.",
	}, []string{"kind"})
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grind_tracker",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by route pattern and status class.",
	}, []string{"route", "status"})
	httpPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "grind_tracker",
		Subsystem: "http",
		Name:      "panics_total",
		Help:      "Handler panics caught by the recovery middleware.",
	})
)

func init() {
	prometheus.MustRegister(
		notificationsFired,
		staleFires,
		timersInFlight,
		sideEffectFailures,
		refreshDuration,
		refreshErrors,
		recordsPruned,
		httpRequests,
		httpPanics,
	)
}

// RecordNotificationFired counts one emitted notification.
func RecordNotificationFired(notificationType string) {
	notificationsFired.WithLabelValues(notificationType).Inc()
}

// RecordStaleFire counts a discarded timer callback.
func RecordStaleFire() {
	staleFires.Inc()
}

// SetTimersInFlight updates the in-flight timer gauge.
func SetTimersInFlight(n int) {
	timersInFlight.Set(float64(n))
}

// RecordSideEffectFailure counts a swallowed sink failure.
func RecordSideEffectFailure(sink string) {
	sideEffectFailures.WithLabelValues(sink).Inc()
}

// ObserveRefresh records a refresh pass.
func ObserveRefresh(d time.Duration, err error) {
	refreshDuration.Observe(d.Seconds())
	if err != nil {
		refreshErrors.Inc()
	}
}

// RecordPruned counts expired records removed by a refresh pass.
func RecordPruned(kind string, n int) {
	if n <= 0 {
		return
	}
	recordsPruned.WithLabelValues(kind).Add(float64(n))
}

// RecordRequest counts one served request. Status codes are grouped by
// class ("2xx", "4xx") to keep the label set small.
func RecordRequest(route string, status int) {
	if route == "" {
		route = "unmatched"
	}
	httpRequests.WithLabelValues(route, strconv.Itoa(status/100)+"xx").Inc()
}

// RecordPanic counts a recovered handler panic.
func RecordPanic() {
	httpPanics.Inc()
}
