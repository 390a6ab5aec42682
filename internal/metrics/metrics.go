// Package metrics exposes Prometheus collectors for the ingestion pipeline and the
// HTTP API.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "shared_album"

// Ingestion outcomes.
const (
	OutcomeProcessed   = "processed"
	OutcomeDuplicate   = "duplicate"
	OutcomeIgnored     = "ignored"
	OutcomeUnsupported = "unsupported"
	OutcomeFailed      = "failed"
)

// Metrics holds the registered collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	eventsTotal    *prometheus.CounterVec
	eventDuration  *prometheus.HistogramVec
	visionFailures prometheus.Counter
	httpRequests   *prometheus.CounterVec
}

// MustNewMetrics registers the collectors with reg, reusing collectors already
// registered under the same names. Any other registration error panics.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	return &Metrics{
		eventsTotal: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "events_total",
				Help:      "Storage notifications handled, by event type and outcome.",
			},
			[]string{"event_type", "outcome"},
		)),
		eventDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "event_duration_seconds",
				Help:      "Time spent processing a storage notification.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"event_type"},
		)),
		visionFailures: register(reg, prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "ingest",
				Name:      "vision_failures_total",
				Help:      "Label detection calls that failed; the photo kept its filename labels.",
			},
		)),
		httpRequests: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests served, by method, route pattern and status.",
			},
			[]string{"method", "route", "status"},
		)),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObserveEvent records one handled notification.
func (m *Metrics) ObserveEvent(eventType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(eventType, outcome).Inc()
	m.eventDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// IncVisionFailure counts a failed label detection call.
func (m *Metrics) IncVisionFailure() {
	if m == nil {
		return
	}
	m.visionFailures.Inc()
}

// ObserveRequest counts one HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
