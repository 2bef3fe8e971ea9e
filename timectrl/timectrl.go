package timectrl

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// StepClock exposes the step a sweep is currently evaluating.
type StepClock interface {
	// Current returns the step being processed, or 0 before the first one.
	Current() int
}

// Mode describes how the StepController advances between steps.
type Mode int

const (
	// Accelerated moves to the next step as soon as listeners return.
	Accelerated Mode = iota
	// Paced waits Tick between steps, e.g. to follow a live constellation.
	Paced
)

func (m Mode) String() string {
	if m == Paced {
		return "paced"
	}
	return "accelerated"
}

// StepController walks the discrete steps From..To (inclusive) and hands
// each one to the registered listeners in order. It implements StepClock.
type StepController struct {
	mu   sync.RWMutex
	From int
	To   int
	Tick time.Duration

	current   int
	listeners []func(ctx context.Context, step int) error
}

// NewStepController constructs a controller. A zero tick runs accelerated.
func NewStepController(from, to int, tick time.Duration) (*StepController, error) {
	if from < 1 {
		return nil, fmt.Errorf("first step must be >= 1, got %d", from)
	}
	if to < from {
		return nil, fmt.Errorf("last step %d before first step %d", to, from)
	}
	return &StepController{From: from, To: to, Tick: tick}, nil
}

// Mode reports whether steps are paced by Tick.
func (sc *StepController) Mode() Mode {
	if sc.Tick > 0 {
		return Paced
	}
	return Accelerated
}

// Current returns the step being processed. Implements StepClock.
func (sc *StepController) Current() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.current
}

// AddListener registers a callback invoked once per step.
func (sc *StepController) AddListener(fn func(ctx context.Context, step int) error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.listeners = append(sc.listeners, fn)
}

// Run sweeps every step. It stops at the first listener error or when ctx
// is cancelled, returning that error.
func (sc *StepController) Run(ctx context.Context) error {
	sc.mu.RLock()
	listeners := append([]func(context.Context, int) error(nil), sc.listeners...)
	sc.mu.RUnlock()

	var ticker *time.Ticker
	if sc.Tick > 0 {
		ticker = time.NewTicker(sc.Tick)
		defer ticker.Stop()
	}

	for step := sc.From; step <= sc.To; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ticker != nil && step > sc.From {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}

		sc.mu.Lock()
		sc.current = step
		sc.mu.Unlock()

		for _, fn := range listeners {
			if err := fn(ctx, step); err != nil {
				return fmt.Errorf("step %d: %w", step, err)
			}
		}
	}
	return nil
}

// Start runs the sweep in a separate goroutine. The returned channel
// receives Run's result and is then closed.
func (sc *StepController) Start(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- sc.Run(ctx)
	}()
	return done
}
