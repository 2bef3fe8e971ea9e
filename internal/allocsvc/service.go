package allocsvc

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/constellation-allocator/core"
	"github.com/signalsfoundry/constellation-allocator/internal/logging"
	"github.com/signalsfoundry/constellation-allocator/internal/observability"
	"github.com/signalsfoundry/constellation-allocator/internal/store"
	"github.com/signalsfoundry/constellation-allocator/kb"
)

// Service implements AllocationServiceServer on top of a knowledge base.
// Every Allocate call works on fresh snapshots, so concurrent calls never
// observe each other's ledger state.
type Service struct {
	kb      *kb.KnowledgeBase
	limits  core.Limits
	exact   core.ExactConfig
	metrics *observability.AllocationCollector
	history *store.Store
	log     logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLimits bounds the instance size accepted per call.
func WithLimits(l core.Limits) Option {
	return func(s *Service) { s.limits = l }
}

// WithExactConfig sets the default exact allocator configuration. Requests
// may override mode and parallelism.
func WithExactConfig(cfg core.ExactConfig) Option {
	return func(s *Service) { s.exact = cfg.ApplyDefaults() }
}

// WithMetrics records every run on c.
func WithMetrics(c *observability.AllocationCollector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithHistory persists every successful run to st.
func WithHistory(st *store.Store) Option {
	return func(s *Service) { s.history = st }
}

// WithLogger sets the fallback logger used when the request context has none.
func WithLogger(l logging.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService constructs a Service bound to base.
func NewService(base *kb.KnowledgeBase, opts ...Option) *Service {
	s := &Service{
		kb:    base,
		exact: core.DefaultExactConfig(),
		log:   logging.Noop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allocate runs the requested allocators at one step.
func (s *Service) Allocate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	req, err := requestFromStruct(in)
	if err != nil {
		return nil, ToStatusError(err)
	}
	ctx, runID := logging.EnsureRunID(ctx)

	resp, err := s.Run(ctx, req)
	if err != nil {
		return nil, ToStatusError(err)
	}
	resp.RunID = runID

	out, err := responseToStruct(resp)
	if err != nil {
		return nil, ToStatusError(fmt.Errorf("encode response: %w", err))
	}
	return out, nil
}

// Run is the transport-independent body of Allocate.
func (s *Service) Run(ctx context.Context, req AllocateRequest) (*AllocateResponse, error) {
	log := s.logger(ctx)

	allocs, mode, err := s.allocators(req)
	if err != nil {
		return nil, err
	}

	selection := req.Allocator
	if selection == "" {
		selection = SelectBoth
	}
	ctx, span := observability.Tracer().Start(ctx, "allocate.step")
	defer span.End()
	span.SetAttributes(observability.AllocationAttributes(selection, req.Step, len(s.kb.ListApplications()))...)
	span.SetAttributes(attribute.String("allocator.mode", mode))

	engine := core.NewEngine(s.kb, s.limits, allocs...)
	report, err := engine.RunStep(req.Step)
	if err != nil {
		var se *core.StepError
		if errors.As(err, &se) {
			s.metrics.ObserveFailure(se.Allocator)
		}
		span.RecordError(err)
		log.Warn(ctx, "allocation failed", logging.Int("step", req.Step), logging.Err(err))
		return nil, err
	}

	for i, res := range report.Results {
		s.metrics.ObserveResult(res, report.Durations[i])
		log.Info(ctx, "allocation complete",
			logging.String("allocator", res.Allocator),
			logging.Int("step", res.Step),
			logging.Int("allocated", res.Allocated),
			logging.Int("unallocated", len(res.Unallocated)),
			logging.Duration("duration", report.Durations[i]),
		)
	}
	if exact, greedy := report.Result(core.ExactName), report.Result(core.GreedyName); exact != nil && greedy != nil {
		s.metrics.SetOptimalityGap(exact, greedy)
	}
	s.record(ctx, mode, report)

	return &AllocateResponse{
		RunID:   logging.RunIDFromContext(ctx),
		Dataset: s.kb.Dataset(),
		Report:  report,
	}, nil
}

// Describe reports the loaded scenario.
func (s *Service) Describe(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	out, err := descriptionToStruct(s.Description())
	if err != nil {
		return nil, ToStatusError(fmt.Errorf("encode description: %w", err))
	}
	return out, nil
}

// Description is the transport-independent body of Describe.
func (s *Service) Description() *Description {
	d := &Description{
		Dataset:      s.kb.Dataset(),
		Steps:        s.kb.StepCount(),
		Applications: len(s.kb.ListApplications()),
	}
	for _, sat := range s.kb.ListSatellites() {
		d.Satellites = append(d.Satellites, SatelliteInfo{
			ID:             sat.ID,
			CPU:            sat.CPU,
			Memory:         sat.Memory,
			CoverageRadius: sat.CoverageRadius,
		})
	}
	return d
}

func (s *Service) allocators(req AllocateRequest) ([]core.Allocator, string, error) {
	cfg := s.exact
	if req.Mode != "" {
		mode, err := core.ParseSearchMode(req.Mode)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		cfg.Mode = mode
	}
	if req.Parallelism < 0 {
		return nil, "", fmt.Errorf("%w: parallel must not be negative", ErrBadRequest)
	}
	if req.Parallelism > 0 {
		cfg.Parallelism = req.Parallelism
	}

	exact := core.NewExactAllocator(cfg)
	greedy := core.NewGreedyAllocator()
	mode := cfg.Mode.String()

	switch req.Allocator {
	case "", SelectBoth:
		return []core.Allocator{exact, greedy}, mode, nil
	case SelectExact:
		return []core.Allocator{exact}, mode, nil
	case SelectGreedy:
		return []core.Allocator{greedy}, "", nil
	default:
		return nil, "", fmt.Errorf("%w: unknown allocator %q", ErrBadRequest, req.Allocator)
	}
}

// record writes the report to history. A history failure is logged, never
// returned: the allocation itself succeeded.
func (s *Service) record(ctx context.Context, mode string, report *core.StepReport) {
	if s.history == nil {
		return
	}
	runID := logging.RunIDFromContext(ctx)
	for i, res := range report.Results {
		m := mode
		if res.Allocator == core.GreedyName {
			m = ""
		}
		rec := store.RecordFromResult(runID, s.kb.Dataset(), m, res, report.Durations[i])
		if err := s.history.SaveRun(rec); err != nil {
			s.logger(ctx).Warn(ctx, "failed to record run", logging.String("allocator", res.Allocator), logging.Err(err))
		}
	}
}

func (s *Service) logger(ctx context.Context) logging.Logger {
	return logging.FromContextOr(ctx, s.log)
}
