package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/signalsfoundry/constellation-allocator/core"
)

func TestAllocationCollectorObserveResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewAllocationCollector(reg)
	if err != nil {
		t.Fatalf("NewAllocationCollector: %v", err)
	}

	res := &core.Result{
		Allocator:   core.ExactName,
		Step:        1,
		Allocated:   2,
		Unallocated: []string{"app3"},
		Stats:       core.SearchStats{NodesVisited: 17, Pruned: 4},
	}
	c.ObserveResult(res, 3*time.Millisecond)
	c.ObserveResult(res, 5*time.Millisecond)

	if got := testutil.ToFloat64(c.RunsTotal.WithLabelValues("exact", "ok")); got != 2 {
		t.Fatalf("allocator_runs_total{ok} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Allocated.WithLabelValues("exact")); got != 2 {
		t.Fatalf("allocated gauge = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.Unallocated.WithLabelValues("exact")); got != 1 {
		t.Fatalf("unallocated gauge = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.SearchNodes.WithLabelValues("exact")); got != 34 {
		t.Fatalf("search nodes = %v, want 34", got)
	}
	if got := testutil.ToFloat64(c.SearchPruned.WithLabelValues("exact")); got != 8 {
		t.Fatalf("search pruned = %v, want 8", got)
	}
	if count := histogramSampleCount(t, reg, "allocator_run_duration_seconds", map[string]string{"allocator": "exact"}); count != 2 {
		t.Fatalf("duration sample_count = %d, want 2", count)
	}
}

func TestAllocationCollectorFailureAndGap(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewAllocationCollector(reg)
	if err != nil {
		t.Fatalf("NewAllocationCollector: %v", err)
	}

	c.ObserveFailure(core.GreedyName)
	if got := testutil.ToFloat64(c.RunsTotal.WithLabelValues("greedy", "error")); got != 1 {
		t.Fatalf("allocator_runs_total{error} = %v, want 1", got)
	}

	c.SetOptimalityGap(&core.Result{Allocated: 2}, &core.Result{Allocated: 1})
	if got := testutil.ToFloat64(c.OptimalityGap); got != 1 {
		t.Fatalf("optimality gap = %v, want 1", got)
	}
	if c.Gatherer() != reg {
		t.Fatalf("Gatherer did not return the registry")
	}
}

func TestNilAllocationCollectorIsSafe(t *testing.T) {
	var c *AllocationCollector
	c.ObserveResult(&core.Result{Allocator: "exact"}, time.Millisecond)
	c.ObserveFailure("exact")
	c.SetOptimalityGap(&core.Result{}, &core.Result{})
	if c.Gatherer() != nil {
		t.Fatalf("nil collector Gatherer should be nil")
	}
}
