package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	GatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpms_gateway_requests_total",
			Help: "Outbound calls to the parking API by method, route and status",
		},
		[]string{"method", "route", "status"},
	)

	GatewayDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vpms_gateway_request_duration_seconds",
			Help:    "Latency of outbound calls to the parking API",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	BusPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpms_bus_published_total",
			Help: "Notifications published per channel",
		},
		[]string{"channel"},
	)

	BusHandlerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpms_bus_handler_failures_total",
			Help: "Subscriber errors and panics recovered while publishing",
		},
		[]string{"channel"},
	)

	PollFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpms_poll_fetches_total",
			Help: "Fetches run by view polling loops by outcome",
		},
		[]string{"view", "outcome"},
	)

	MountedViews = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vpms_mounted_views",
		Help: "Views currently mounted by the router",
	})

	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpms_cache_lookups_total",
			Help: "Entity cache lookups by result",
		},
		[]string{"entity", "result"},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vpms_http_requests_total",
			Help: "Requests served by the local console API",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vpms_http_request_duration_seconds",
			Help:    "Latency of requests served by the local console API",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	WebSocketClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vpms_ws_clients",
		Help: "Connected notification relay clients",
	})
)

// Registry holds the console collectors. Kept separate from the default
// registry so tests can build several consoles in one process.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		GatewayRequests,
		GatewayDuration,
		BusPublished,
		BusHandlerFailures,
		PollFetches,
		MountedViews,
		CacheLookups,
		HTTPRequests,
		HTTPDuration,
		WebSocketClients,
		collectors.NewGoCollector(),
	)
}

// ObserveRequest records one outbound call. status is 0 for transport failures.
func ObserveRequest(method, route string, status int, elapsed time.Duration) {
	code := "error"
	if status > 0 {
		code = strconv.Itoa(status)
	}
	GatewayRequests.WithLabelValues(method, route, code).Inc()
	GatewayDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
