package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hejijunhao/mailsort/internal/model"
)

// metrics holds the server's collectors on a private registry so several
// servers can coexist in one process.
type metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	outcomes  *prometheus.CounterVec
	batchSize prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailsort",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mailsort",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mailsort",
			Name:      "predictions_total",
			Help:      "Predictions by category, or by failure kind when unsuccessful.",
		}, []string{"category", "failure_kind"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mailsort",
			Name:      "batch_size",
			Help:      "Emails per batch request.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100},
		}),
	}
	m.registry.MustRegister(
		m.requests, m.latency, m.outcomes, m.batchSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func (m *metrics) observe(res model.PredictionResult) {
	if res.Success {
		m.outcomes.WithLabelValues(res.Category, "").Inc()
		return
	}
	m.outcomes.WithLabelValues("", string(res.Kind)).Inc()
}
