package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCartMetrics(reg)
	m.ObserveToggle("added")
	m.ObserveToggle("added")
	m.ObserveToggle("rejected")
	m.ObserveBooking("redirected")
	m.ObservePurged(3)
	m.ObservePurged(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.togglesTotal.WithLabelValues("added")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.togglesTotal.WithLabelValues("rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.bookingsTotal.WithLabelValues("redirected")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.purgedTotal))
}

func TestSupportMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSupportMetrics(reg)
	m.ObservePoll("inbox", "ok")
	m.ObservePoll("widget", "skipped")

	assert.Equal(t, 2, testutil.CollectAndCount(m.pollsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pollsTotal.WithLabelValues("widget", "skipped")))
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.ObserveRequest("GET", "/salons/{salonID}/cart/", 200, 250*time.Millisecond)
	m.ObserveRequest("GET", "", 404, time.Millisecond)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, dto.MetricType_HISTOGRAM, families[0].GetType())

	routes := map[string]uint64{}
	for _, metric := range families[0].GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "route" {
				routes[label.GetValue()] = metric.GetHistogram().GetSampleCount()
			}
		}
	}
	assert.Equal(t, map[string]uint64{"/salons/{salonID}/cart/": 1, "unmatched": 1}, routes)
}

func TestMetricsDefaultRegistry(t *testing.T) {
	m := NewSupportMetrics(nil)
	m.ObservePoll("inbox", "error")
}

func TestMetricsNilSafe(t *testing.T) {
	var c *CartMetrics
	c.ObserveToggle("added")
	c.ObserveBooking("empty")
	c.ObservePurged(1)

	var s *SupportMetrics
	s.ObservePoll("inbox", "ok")

	var h *HTTPMetrics
	h.ObserveRequest("GET", "/", 200, time.Second)
}
