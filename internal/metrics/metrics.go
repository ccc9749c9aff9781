// Package metrics exposes Prometheus collectors for query execution.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Outcome labels for settled queries.
const (
	OutcomeSuccess   = "success"
	OutcomeFailure   = "failure"
	OutcomeCancelled = "cancelled"
)

// Collector groups the execution metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	Dispatched     prometheus.Counter
	Settled        *prometheus.CounterVec
	DispatchErrors prometheus.Counter
	Duration       prometheus.Histogram
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which suits tests.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		Dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resultsets_queries_dispatched_total",
			Help: "Total number of queries accepted for asynchronous execution",
		}),
		Settled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "resultsets_queries_settled_total",
				Help: "Total number of queries settled, by outcome",
			},
			[]string{"outcome"},
		),
		DispatchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "resultsets_dispatch_errors_total",
			Help: "Total number of queries refused before dispatch",
		}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "resultsets_query_duration_seconds",
			Help:    "Query execution latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(c.Dispatched, c.Settled, c.DispatchErrors, c.Duration)
	}
	return c
}

// ObserveDispatch counts an accepted query.
func (c *Collector) ObserveDispatch() {
	if c == nil {
		return
	}
	c.Dispatched.Inc()
}

// ObserveDispatchError counts a refused query.
func (c *Collector) ObserveDispatchError() {
	if c == nil {
		return
	}
	c.DispatchErrors.Inc()
}

// ObserveSettled counts a settled query and records its latency.
func (c *Collector) ObserveSettled(outcome string, elapsed time.Duration) {
	if c == nil {
		return
	}
	c.Settled.WithLabelValues(outcome).Inc()
	c.Duration.Observe(elapsed.Seconds())
}

// Stats is a point-in-time reading of the counters.
type Stats struct {
	Dispatched     int `json:"dispatched"`
	DispatchErrors int `json:"dispatch_errors"`
	Succeeded      int `json:"succeeded"`
	Failed         int `json:"failed"`
	Cancelled      int `json:"cancelled"`
}

// Snapshot reads the current counter values. A nil Collector reads zero.
func (c *Collector) Snapshot() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Dispatched:     counterValue(c.Dispatched),
		DispatchErrors: counterValue(c.DispatchErrors),
		Succeeded:      counterValue(c.Settled.WithLabelValues(OutcomeSuccess)),
		Failed:         counterValue(c.Settled.WithLabelValues(OutcomeFailure)),
		Cancelled:      counterValue(c.Settled.WithLabelValues(OutcomeCancelled)),
	}
}

func counterValue(c prometheus.Counter) int {
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		return 0
	}
	return int(m.GetCounter().GetValue())
}
