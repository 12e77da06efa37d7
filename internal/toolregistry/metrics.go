package toolregistry

import (
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
)

// Metrics exports dispatcher counters to Prometheus.
type Metrics struct {
	executionsTotal   *promclient.CounterVec
	executionDuration *promclient.HistogramVec
}

// NewMetrics registers the dispatcher metrics on the given registerer.
// A nil registerer uses the process-wide default.
func NewMetrics(namespace string, reg promclient.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = "otto_dispatcher"
	}
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}
	m := &Metrics{
		executionsTotal: promclient.NewCounterVec(promclient.CounterOpts{
			Namespace: namespace,
			Name:      "executions_total",
			Help:      "Count of dispatched tool executions by outcome.",
		}, []string{"tool", "outcome"}),
		executionDuration: promclient.NewHistogramVec(promclient.HistogramOpts{
			Namespace: namespace,
			Name:      "execution_duration_seconds",
			Help:      "Latency of tool executions.",
			Buckets:   promclient.DefBuckets,
		}, []string{"tool"}),
	}
	if err := reg.Register(m.executionsTotal); err != nil {
		if are, ok := err.(promclient.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*promclient.CounterVec); ok {
				m.executionsTotal = existing
			} else {
				return nil, fmt.Errorf("register dispatcher counter: %w", err)
			}
		} else {
			return nil, fmt.Errorf("register dispatcher counter: %w", err)
		}
	}
	if err := reg.Register(m.executionDuration); err != nil {
		if are, ok := err.(promclient.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*promclient.HistogramVec); ok {
				m.executionDuration = existing
			} else {
				return nil, fmt.Errorf("register dispatcher histogram: %w", err)
			}
		} else {
			return nil, fmt.Errorf("register dispatcher histogram: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) observe(tool, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.executionsTotal.WithLabelValues(tool, outcome).Inc()
	m.executionDuration.WithLabelValues(tool).Observe(elapsed.Seconds())
}
