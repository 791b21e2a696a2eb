// Package metrics records response outcomes in Prometheus and serves them
// in the text exposition format.
//
//	m := metrics.New()
//	fin := response.NewFinalizer(response.WithObserver(m))
//	r := router.New(tr, router.WithFinalizer(fin))
//	_ = r.AddResource("/metrics", m)
package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"

	"github.com/dmitrymomot/relay/core/request"
	"github.com/dmitrymomot/relay/core/response"
	"github.com/dmitrymomot/relay/core/router"
)

const DefaultNamespace = "relay"

// DurationBuckets covers in-process dispatch latencies from 1ms to 10s.
var DurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Collector implements response.Observer and router.Resource.
type Collector struct {
	registry *prometheus.Registry
	format   expfmt.Format

	responses *prometheus.CounterVec
	duration  *prometheus.HistogramVec
	bytes     *prometheus.CounterVec
}

// Option configures a Collector.
type Option func(*options)

type options struct {
	namespace      string
	registry       *prometheus.Registry
	runtimeMetrics bool
}

// WithNamespace prefixes every metric name.
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithRegistry registers the collectors on reg instead of a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		if reg != nil {
			o.registry = reg
		}
	}
}

// WithRuntimeMetrics adds the Go runtime and process collectors.
func WithRuntimeMetrics() Option {
	return func(o *options) {
		o.runtimeMetrics = true
	}
}

// New creates a Collector on a private registry.
func New(opts ...Option) *Collector {
	o := options{namespace: DefaultNamespace}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	c := &Collector{
		registry: o.registry,
		format:   expfmt.NewFormat(expfmt.TypeTextPlain),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "responses_total",
			Help:      "Terminal response writes by method, status class and outcome.",
		}, []string{"method", "status_class", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: o.namespace,
			Name:      "response_duration_seconds",
			Help:      "Time from dispatch to the terminal write.",
			Buckets:   DurationBuckets,
		}, []string{"method", "status_class"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: o.namespace,
			Name:      "response_bytes_total",
			Help:      "Response body bytes written.",
		}, []string{"method"}),
	}

	c.registry.MustRegister(c.responses, c.duration, c.bytes)
	if o.runtimeMetrics {
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return c
}

// Registry returns the registry the collector writes to.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// ObserveResponse records one terminal write or one suppressed write.
func (c *Collector) ObserveResponse(method string, status int, outcome response.Outcome, size int, elapsed time.Duration) {
	class := statusClass(status)
	c.responses.WithLabelValues(method, class, string(outcome)).Inc()
	if outcome != response.OutcomeWritten {
		return
	}
	c.duration.WithLabelValues(method, class).Observe(elapsed.Seconds())
	c.bytes.WithLabelValues(method).Add(float64(size))
}

// Register mounts the exposition endpoint on GET.
func (c *Collector) Register(v *router.Verbs) {
	v.Get(c.serve)
}

func (c *Collector) serve(res *response.Handle, _ *request.Context) error {
	families, err := c.registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, c.format)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}

	return res.Send(http.StatusOK, buf.Bytes(),
		response.WithContentType(string(c.format)),
		response.WithCache(0),
	)
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
