package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/constellation-allocator/core"
)

// AllocationCollector exposes allocator-specific Prometheus metrics.
type AllocationCollector struct {
	gatherer prometheus.Gatherer

	RunsTotal     *prometheus.CounterVec
	RunDuration   *prometheus.HistogramVec
	Allocated     *prometheus.GaugeVec
	Unallocated   *prometheus.GaugeVec
	SearchNodes   *prometheus.CounterVec
	SearchPruned  *prometheus.CounterVec
	OptimalityGap prometheus.Gauge
}

// NewAllocationCollector registers allocator metrics against the provided
// registerer.
func NewAllocationCollector(reg prometheus.Registerer) (*AllocationCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocator_runs_total",
		Help: "Allocation runs, labeled by allocator and outcome (ok or error).",
	}, []string{"allocator", "outcome"}), "allocator_runs_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocator_run_duration_seconds",
		Help:    "Wall time of a single allocation run.",
		Buckets: []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
	}, []string{"allocator"}), "allocator_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	allocated, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "allocator_applications_allocated",
		Help: "Applications placed by the most recent run of each allocator.",
	}, []string{"allocator"}), "allocator_applications_allocated")
	if err != nil {
		return nil, err
	}

	unallocated, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "allocator_applications_unallocated",
		Help: "Applications left without a satellite by the most recent run of each allocator.",
	}, []string{"allocator"}), "allocator_applications_unallocated")
	if err != nil {
		return nil, err
	}

	nodes, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocator_search_nodes_total",
		Help: "Search tree nodes visited by the allocators.",
	}, []string{"allocator"}), "allocator_search_nodes_total")
	if err != nil {
		return nil, err
	}

	pruned, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocator_search_pruned_total",
		Help: "Subtrees cut by the exact allocator's bound.",
	}, []string{"allocator"}), "allocator_search_pruned_total")
	if err != nil {
		return nil, err
	}

	gap, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "allocator_optimality_gap",
		Help: "Exact minus greedy allocation count for the most recent compared step.",
	}), "allocator_optimality_gap")
	if err != nil {
		return nil, err
	}

	return &AllocationCollector{
		gatherer:      gatherer,
		RunsTotal:     runs,
		RunDuration:   duration,
		Allocated:     allocated,
		Unallocated:   unallocated,
		SearchNodes:   nodes,
		SearchPruned:  pruned,
		OptimalityGap: gap,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *AllocationCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveResult records a successful run.
func (c *AllocationCollector) ObserveResult(res *core.Result, d time.Duration) {
	if c == nil || res == nil {
		return
	}
	c.RunsTotal.WithLabelValues(res.Allocator, "ok").Inc()
	c.RunDuration.WithLabelValues(res.Allocator).Observe(d.Seconds())
	c.Allocated.WithLabelValues(res.Allocator).Set(float64(res.Allocated))
	c.Unallocated.WithLabelValues(res.Allocator).Set(float64(len(res.Unallocated)))
	c.SearchNodes.WithLabelValues(res.Allocator).Add(float64(res.Stats.NodesVisited))
	c.SearchPruned.WithLabelValues(res.Allocator).Add(float64(res.Stats.Pruned))
}

// ObserveFailure records a run that returned an error.
func (c *AllocationCollector) ObserveFailure(allocator string) {
	if c == nil {
		return
	}
	c.RunsTotal.WithLabelValues(allocator, "error").Inc()
}

// SetOptimalityGap records how far greedy fell short of exact.
func (c *AllocationCollector) SetOptimalityGap(exact, greedy *core.Result) {
	if c == nil || exact == nil || greedy == nil {
		return
	}
	c.OptimalityGap.Set(float64(exact.Allocated - greedy.Allocated))
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
