package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fixora_client"

var (
	once sync.Once

	apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "API requests by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	listFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_fetches_total",
			Help:      "Booking list fetches by surface and outcome.",
		},
		[]string{"surface", "outcome"},
	)

	staleResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_total",
			Help:      "Fetch results dropped because a newer request superseded them.",
		},
		[]string{"surface"},
	)

	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Status transition submissions by target status and outcome.",
		},
		[]string{"status", "outcome"},
	)

	pushEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_events_total",
			Help:      "Realtime events by type and how they were applied.",
		},
		[]string{"event", "result"},
	)

	realtimeConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "realtime_connections",
			Help:      "Open realtime channel connections.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(apiRequests, listFetches, staleResponses, transitions, pushEvents, realtimeConnections)
	})
}

func IncAPIRequest(operation, outcome string) {
	apiRequests.WithLabelValues(operation, outcome).Inc()
}

func IncListFetch(surface, outcome string) {
	listFetches.WithLabelValues(surface, outcome).Inc()
}

func IncStaleResponse(surface string) {
	staleResponses.WithLabelValues(surface).Inc()
}

func IncTransition(status, outcome string) {
	transitions.WithLabelValues(status, outcome).Inc()
}

func IncPushEvent(event, result string) {
	pushEvents.WithLabelValues(event, result).Inc()
}

func SetRealtimeConnections(n int) {
	realtimeConnections.Set(float64(n))
}
