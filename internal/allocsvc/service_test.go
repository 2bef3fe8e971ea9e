package allocsvc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/signalsfoundry/constellation-allocator/core"
	"github.com/signalsfoundry/constellation-allocator/internal/logging"
	"github.com/signalsfoundry/constellation-allocator/internal/observability"
	"github.com/signalsfoundry/constellation-allocator/internal/store"
	"github.com/signalsfoundry/constellation-allocator/kb"
	"github.com/signalsfoundry/constellation-allocator/model"
)

func fixed(id string, cpu, mem int, radius, x, y float64) *model.Satellite {
	return &model.Satellite{
		ID: id, CPU: cpu, Memory: mem, CoverageRadius: radius,
		Track: []model.Sample{
			{Step: 1, Position: model.Point{X: x, Y: y}},
			{Step: 2, Position: model.Point{X: x, Y: y}},
		},
	}
}

// trapKB is a scenario where greedy places one application and exact two.
func trapKB(t *testing.T) *kb.KnowledgeBase {
	t.Helper()
	base := kb.NewKnowledgeBase()
	sc := &core.Scenario{
		Dataset: "trap",
		Satellites: []*model.Satellite{
			fixed("A", 10, 10, 10, 0, 0),
			fixed("B", 5, 5, 10, 20, 0),
		},
		Applications: []*model.Application{
			{ID: "X", CPU: 5, Memory: 5, Position: model.Point{X: 10}},
			{ID: "Y", CPU: 8, Memory: 8, Position: model.Point{X: -5}},
		},
	}
	if err := base.LoadScenario(sc); err != nil {
		t.Fatalf("LoadScenario: %v", err)
	}
	return base
}

func newBufconnClient(t *testing.T, svc *Service, interceptors ...grpc.UnaryServerInterceptor) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	RegisterAllocationServiceServer(server, svc)
	go func() { _ = server.Serve(lis) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(RunIDUnaryClientInterceptor()),
	)
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewClient(conn)
}

func TestAllocateBothOverGRPC(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewAllocationCollector(reg)
	if err != nil {
		t.Fatalf("NewAllocationCollector: %v", err)
	}
	history, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer history.Close()

	svc := NewService(trapKB(t), WithMetrics(metrics), WithHistory(history))
	client := newBufconnClient(t, svc, RunIDUnaryServerInterceptor(logging.Noop()), TracingUnaryServerInterceptor())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ctx = logging.ContextWithRunID(ctx, "client-run")

	resp, err := client.Allocate(ctx, AllocateRequest{Step: 1})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if resp.RunID != "client-run" {
		t.Fatalf("RunID = %q, want the client's run id", resp.RunID)
	}
	if resp.Dataset != "trap" || resp.Report.Step != 1 {
		t.Fatalf("response header = %+v", resp)
	}

	exact := resp.Report.Result(core.ExactName)
	greedy := resp.Report.Result(core.GreedyName)
	if exact == nil || greedy == nil {
		t.Fatalf("expected both results, got %+v", resp.Report.Results)
	}
	if exact.Allocated != 2 || greedy.Allocated != 1 {
		t.Fatalf("exact=%d greedy=%d, want 2 and 1", exact.Allocated, greedy.Allocated)
	}
	if exact.SatelliteFor("X") != "B" || exact.SatelliteFor("Y") != "A" {
		t.Fatalf("exact witness = %+v", exact.Assignments)
	}
	if len(greedy.Unallocated) != 1 || greedy.Unallocated[0] != "Y" {
		t.Fatalf("greedy unallocated = %v, want [Y]", greedy.Unallocated)
	}
	if exact.Stats.NodesVisited == 0 {
		t.Fatalf("exact stats lost in transit")
	}

	if got := testutil.ToFloat64(metrics.OptimalityGap); got != 1 {
		t.Fatalf("optimality gap = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("exact", "ok")); got != 1 {
		t.Fatalf("exact runs = %v, want 1", got)
	}

	runs, err := history.ListRuns("trap", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("recorded %d runs, want 2", len(runs))
	}
	for _, r := range runs {
		if r.RunID != "client-run" {
			t.Fatalf("history run id = %q, want client-run", r.RunID)
		}
	}
}

func TestAllocateLeavesKnowledgeBaseUntouched(t *testing.T) {
	base := trapKB(t)
	svc := NewService(base)

	for i := 0; i < 3; i++ {
		resp, err := svc.Run(context.Background(), AllocateRequest{Step: 2, Allocator: SelectGreedy})
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		if got := resp.Report.Results[0].Allocated; got != 1 {
			t.Fatalf("run %d: greedy allocated %d, want 1", i, got)
		}
	}
	if sat := base.GetSatellite("A"); sat.CPU != 10 || len(sat.Allocated) != 0 {
		t.Fatalf("knowledge base satellite mutated: %+v", sat)
	}
}

func TestAllocateFirstFitMode(t *testing.T) {
	svc := NewService(trapKB(t))
	resp, err := svc.Run(context.Background(), AllocateRequest{Step: 1, Allocator: SelectExact, Mode: "first-fit"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(resp.Report.Results) != 1 || resp.Report.Results[0].Allocated != 1 {
		t.Fatalf("first-fit results = %+v", resp.Report.Results)
	}
}

func TestAllocateErrorsMapToStatusCodes(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewAllocationCollector(reg)
	if err != nil {
		t.Fatalf("NewAllocationCollector: %v", err)
	}
	client := newBufconnClient(t, NewService(trapKB(t), WithMetrics(metrics)))
	ctx := context.Background()

	cases := []struct {
		name string
		req  AllocateRequest
		code codes.Code
	}{
		{"step beyond track", AllocateRequest{Step: 3}, codes.OutOfRange},
		{"step zero", AllocateRequest{Step: 0, Allocator: SelectGreedy}, codes.OutOfRange},
		{"unknown allocator", AllocateRequest{Step: 1, Allocator: "annealing"}, codes.InvalidArgument},
		{"unknown mode", AllocateRequest{Step: 1, Mode: "random"}, codes.InvalidArgument},
		{"negative parallelism", AllocateRequest{Step: 1, Parallelism: -2}, codes.InvalidArgument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := client.Allocate(ctx, tc.req)
			if code := status.Code(err); code != tc.code {
				t.Fatalf("Allocate(%+v) code = %v (%v), want %v", tc.req, code, err, tc.code)
			}
		})
	}

	if got := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("exact", "error")); got != 1 {
		t.Fatalf("exact failures = %v, want 1", got)
	}
}

func TestAllocateRejectsMalformedStruct(t *testing.T) {
	svc := NewService(trapKB(t))
	cases := map[string]map[string]any{
		"missing step":  {"allocator": "exact"},
		"unknown field": {"step": 1, "steps": 2},
		"string step":   {"step": "1"},
		"fraction step": {"step": 1.5},
	}
	for name, fields := range cases {
		in, err := structpb.NewStruct(fields)
		if err != nil {
			t.Fatalf("%s: NewStruct: %v", name, err)
		}
		_, err = svc.Allocate(context.Background(), in)
		if status.Code(err) != codes.InvalidArgument {
			t.Errorf("%s: code = %v, want InvalidArgument", name, status.Code(err))
		}
	}
}

func TestDescribeOverGRPC(t *testing.T) {
	client := newBufconnClient(t, NewService(trapKB(t)))
	d, err := client.Describe(context.Background())
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if d.Dataset != "trap" || d.Steps != 2 || d.Applications != 2 {
		t.Fatalf("Describe = %+v", d)
	}
	if len(d.Satellites) != 2 || d.Satellites[0] != (SatelliteInfo{ID: "A", CPU: 10, Memory: 10, CoverageRadius: 10}) {
		t.Fatalf("Describe satellites = %+v", d.Satellites)
	}
}

func TestToStatusError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		code    codes.Code
		wantNil bool
	}{
		{name: "nil", err: nil, wantNil: true},
		{name: "status passthrough", err: status.Error(codes.PermissionDenied, "denied"), code: codes.PermissionDenied},
		{name: "out of range", err: &core.StepError{Allocator: "exact", Step: 9, Err: core.ErrOutOfRange}, code: codes.OutOfRange},
		{name: "invalid demand", err: fmt.Errorf("wrap: %w", core.ErrInvalidDemand), code: codes.InvalidArgument},
		{name: "duplicate id", err: core.ErrDuplicateID, code: codes.InvalidArgument},
		{name: "limit", err: core.ErrLimitExceeded, code: codes.InvalidArgument},
		{name: "bad request", err: ErrBadRequest, code: codes.InvalidArgument},
		{name: "not found", err: kb.ErrSatelliteNotFound, code: codes.NotFound},
		{name: "already exists", err: kb.ErrApplicationExists, code: codes.AlreadyExists},
		{name: "fallback", err: errors.New("boom"), code: codes.Internal},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := ToStatusError(tc.err)
			if tc.wantNil {
				if got != nil {
					t.Fatalf("ToStatusError(nil) = %v, want nil", got)
				}
				return
			}
			if code := status.Code(got); code != tc.code {
				t.Fatalf("ToStatusError(%v) code = %v, want %v", tc.err, code, tc.code)
			}
		})
	}
}
