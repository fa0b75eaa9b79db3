// Package metrics exposes relay counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	reg *prometheus.Registry

	Requests    *prometheus.CounterVec
	Latency     *prometheus.HistogramVec
	Writes      prometheus.Counter
	RateLimited prometheus.Counter
	FanoutIn    prometheus.Counter
	FanoutErrs  prometheus.Counter
}

// New builds a registry holding the relay metrics plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "groupsync",
			Subsystem: "relay",
			Name:      "requests_total",
			Help:      "gRPC requests by method and status code.",
		}, []string{"method", "code"}),
		Latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "groupsync",
			Subsystem: "relay",
			Name:      "request_duration_seconds",
			Help:      "Unary gRPC request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		Writes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groupsync",
			Subsystem: "relay",
			Name:      "writes_total",
			Help:      "Nodes written by clients.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groupsync",
			Subsystem: "relay",
			Name:      "rate_limited_total",
			Help:      "Writes rejected by the per-user limiter.",
		}),
		FanoutIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groupsync",
			Subsystem: "relay",
			Name:      "fanout_received_total",
			Help:      "Writes received from other relay instances.",
		}),
		FanoutErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "groupsync",
			Subsystem: "relay",
			Name:      "fanout_publish_errors_total",
			Help:      "Writes that could not be announced to other instances.",
		}),
	}

	m.reg.MustRegister(
		m.Requests, m.Latency, m.Writes, m.RateLimited, m.FanoutIn, m.FanoutErrs,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRequest records one finished call.
func (m *Metrics) ObserveRequest(method, code string, elapsed time.Duration) {
	m.Requests.WithLabelValues(method, code).Inc()
	m.Latency.WithLabelValues(method).Observe(elapsed.Seconds())
}

// GaugeFunc registers a gauge read from fn at scrape time.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) {
	m.reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "groupsync",
		Subsystem: "relay",
		Name:      name,
		Help:      help,
	}, fn))
}

// CounterFunc registers a monotonically increasing value read from fn.
func (m *Metrics) CounterFunc(name, help string, fn func() float64) {
	m.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: "groupsync",
		Subsystem: "relay",
		Name:      name,
		Help:      help,
	}, fn))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.reg
}
