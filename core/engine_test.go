package core

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/constellation-allocator/model"
)

type fakeSource struct {
	sats      []*model.Satellite
	apps      []*model.Application
	snapshots int
}

func (f *fakeSource) Snapshot(limits Limits) (*Snapshot, error) {
	f.snapshots++
	return NewSnapshot(f.sats, limits)
}

func (f *fakeSource) ListApplications() []*model.Application { return f.apps }

func TestEngineRunsEveryAllocatorOnFreshSnapshot(t *testing.T) {
	src := &fakeSource{
		sats: []*model.Satellite{
			stationary("A", 4, 4, 10, 0, 0, 2),
			stationary("B", 6, 6, 10, 0, 0, 2),
		},
		apps: []*model.Application{
			app("X", 4, 4, 0, 0),
			app("Y", 6, 6, 0, 0),
		},
	}

	eng := NewEngine(src, Limits{}, NewGreedyAllocator(), NewExactAllocator(DefaultExactConfig()))
	var seen []*StepReport
	eng.RegisterStepListener(func(r *StepReport) { seen = append(seen, r) })

	report, err := eng.RunStep(1)
	if err != nil {
		t.Fatalf("RunStep: %v", err)
	}
	if src.snapshots != 2 {
		t.Fatalf("snapshots taken = %d, want one per allocator", src.snapshots)
	}
	if len(report.Results) != 2 || len(report.Durations) != 2 {
		t.Fatalf("report = %+v", report)
	}
	if got := report.Result(GreedyName).Allocated; got != 1 {
		t.Fatalf("greedy allocated %d, want 1", got)
	}
	if got := report.Result(ExactName).Allocated; got != 2 {
		t.Fatalf("exact allocated %d, want 2", got)
	}
	if report.Result("nope") != nil {
		t.Fatalf("unknown allocator should have no result")
	}
	if len(seen) != 1 || seen[0] != report {
		t.Fatalf("listener not called with the report")
	}
	if len(eng.Allocators()) != 2 {
		t.Fatalf("Allocators() = %d, want 2", len(eng.Allocators()))
	}
}

func TestEngineStepErrorNamesAllocator(t *testing.T) {
	src := &fakeSource{
		sats: []*model.Satellite{stationary("A", 4, 4, 10, 0, 0, 2)},
		apps: []*model.Application{app("X", 1, 1, 0, 0)},
	}
	eng := NewEngine(src, Limits{}, NewExactAllocator(DefaultExactConfig()))
	called := false
	eng.RegisterStepListener(func(*StepReport) { called = true })

	_, err := eng.RunStep(5)
	var se *StepError
	if !errors.As(err, &se) {
		t.Fatalf("RunStep error = %v, want *StepError", err)
	}
	if se.Allocator != ExactName || se.Step != 5 {
		t.Fatalf("StepError = %+v", se)
	}
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("StepError should unwrap to ErrOutOfRange, got %v", err)
	}
	if called {
		t.Fatalf("listener must not run for a failed step")
	}
}
