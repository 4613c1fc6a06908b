package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/middlefiddle/middlefiddle/pkg/chain"
	"github.com/middlefiddle/middlefiddle/pkg/common"
	"github.com/middlefiddle/middlefiddle/pkg/mcontext"
)

// Metrics holds all middlefiddle Prometheus metrics.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all middlefiddle metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "middlefiddle_requests_total",
				Help: "Total number of requests completed per route.",
			},
			[]string{"route", "method", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "middlefiddle_request_duration_seconds",
				Help: "Request duration in seconds.",
				// Buckets: 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route"},
		),
	}

	reg.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
	)

	return m
}

// MetricsHandler returns the HTTP handler for the /metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// CollectMetrics returns an after unit that records one observation per
// completed request: a count labeled by route, method, and status, and a
// duration sample labeled by route. The route label comes from the mcontext
// container; requests bound outside a named route are labeled "unknown".
func CollectMetrics(m *Metrics) chain.Unit {
	return chain.AfterFunc(func(w http.ResponseWriter, r *http.Request) error {
		route := "unknown"
		if name, ok := mcontext.GetRouteNameFromRequest(r); ok && name != "" {
			route = name
		}

		status := http.StatusOK
		if rec, ok := w.(*common.StatusRecorder); ok {
			status = rec.Status()
		}

		m.RequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(status)).Inc()
		if start, ok := mcontext.GetStartTimeFromRequest(r); ok {
			m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
		}
		return nil
	})
}
