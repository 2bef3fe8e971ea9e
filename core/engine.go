package core

import (
	"fmt"
	"time"

	"github.com/signalsfoundry/constellation-allocator/model"
)

// Source supplies the constellation and the applications to place.
// *kb.KnowledgeBase satisfies it.
type Source interface {
	Snapshot(limits Limits) (*Snapshot, error)
	ListApplications() []*model.Application
}

// StepReport collects every allocator's result for one step, in the order
// the allocators were registered.
type StepReport struct {
	Step      int
	Results   []*Result
	Durations []time.Duration
}

// Result returns the result produced by the named allocator, or nil.
func (r *StepReport) Result(name string) *Result {
	for _, res := range r.Results {
		if res.Allocator == name {
			return res
		}
	}
	return nil
}

// StepError reports which allocator failed at which step.
type StepError struct {
	Allocator string
	Step      int
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s allocator at step %d: %v", e.Allocator, e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Engine runs a fixed set of allocators against a Source, one step at a
// time. Each allocator sees its own fresh snapshot, so greedy mutations
// never leak into the exact search.
type Engine struct {
	source     Source
	limits     Limits
	allocators []Allocator
	listeners  []func(*StepReport)
}

func NewEngine(src Source, limits Limits, allocators ...Allocator) *Engine {
	return &Engine{
		source:     src,
		limits:     limits,
		allocators: allocators,
	}
}

// Allocators returns the registered allocators.
func (e *Engine) Allocators() []Allocator { return e.allocators }

// RegisterStepListener adds fn to the callbacks run after every successful
// step.
func (e *Engine) RegisterStepListener(fn func(*StepReport)) {
	e.listeners = append(e.listeners, fn)
}

// RunStep allocates at step with every registered allocator. The first
// failure aborts the step and is returned as a *StepError.
func (e *Engine) RunStep(step int) (*StepReport, error) {
	apps := e.source.ListApplications()
	report := &StepReport{Step: step}

	for _, alloc := range e.allocators {
		snap, err := e.source.Snapshot(e.limits)
		if err != nil {
			return nil, &StepError{Allocator: alloc.Name(), Step: step, Err: err}
		}

		start := time.Now()
		res, err := alloc.Allocate(snap, apps, step)
		if err != nil {
			return nil, &StepError{Allocator: alloc.Name(), Step: step, Err: err}
		}
		report.Results = append(report.Results, res)
		report.Durations = append(report.Durations, time.Since(start))
	}

	for _, fn := range e.listeners {
		fn(report)
	}
	return report, nil
}
