package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "salon"

// CartMetrics exposes counters for cart changes and booking handoffs.
type CartMetrics struct {
	togglesTotal  *prometheus.CounterVec
	bookingsTotal *prometheus.CounterVec
	purgedTotal   prometheus.Counter
}

func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	m := &CartMetrics{
		togglesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "toggles_total",
			Help:      "Service add/remove requests by result",
		}, []string{"result"}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "booking_handoffs_total",
			Help:      "Booking handoff attempts by outcome",
		}, []string{"outcome"}),
		purgedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "expired_entries_purged_total",
			Help:      "Per-salon cart entries dropped after the TTL",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.togglesTotal, m.bookingsTotal, m.purgedTotal)
	return m
}

func (m *CartMetrics) ObserveToggle(result string) {
	if m == nil {
		return
	}
	m.togglesTotal.WithLabelValues(result).Inc()
}

func (m *CartMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(outcome).Inc()
}

func (m *CartMetrics) ObservePurged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.purgedTotal.Add(float64(n))
}

// SupportMetrics counts inbox and widget poll cycles.
type SupportMetrics struct {
	pollsTotal *prometheus.CounterVec
}

func NewSupportMetrics(reg prometheus.Registerer) *SupportMetrics {
	m := &SupportMetrics{
		pollsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "support",
			Name:      "polls_total",
			Help:      "Support poll cycles by component and outcome",
		}, []string{"component", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.pollsTotal)
	return m
}

func (m *SupportMetrics) ObservePoll(component, outcome string) {
	if m == nil {
		return
	}
	m.pollsTotal.WithLabelValues(component, outcome).Inc()
}

// HTTPMetrics tracks request latency per route pattern.
type HTTPMetrics struct {
	requestLatency *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	m := &HTTPMetrics{
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Latency of storefront HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.requestLatency)
	return m
}

func (m *HTTPMetrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.requestLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
