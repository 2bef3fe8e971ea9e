package main

import (
	"context"
	"net"
	"path/filepath"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/signalsfoundry/constellation-allocator/internal/allocsvc"
	"github.com/signalsfoundry/constellation-allocator/internal/logging"
	"github.com/signalsfoundry/constellation-allocator/internal/store"
)

func TestAllocatorServerStartupSmoke(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}

	db := filepath.Join(t.TempDir(), "history.db")
	cfg := Config{
		ListenAddress: lis.Addr().String(),
		ScenarioPath:  "../../examples/scenario.json",
		DBPath:        db,
		Mode:          "exhaustive",
		Parallelism:   2,
	}
	log := logging.New(logging.Config{Level: "warn", Format: "text"})

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, cfg, log, lis)
	}()

	conn, err := grpc.NewClient(cfg.ListenAddress, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("grpc.NewClient: %v", err)
	}
	defer conn.Close()

	hc := healthpb.NewHealthClient(conn)
	var hresp *healthpb.HealthCheckResponse
	for {
		hresp, err = hc.Check(ctx, &healthpb.HealthCheckRequest{Service: allocsvc.ServiceName})
		if err == nil || ctx.Err() != nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("health check: %v", err)
	}
	if hresp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("health status = %v, want SERVING", hresp.GetStatus())
	}

	client := allocsvc.NewClient(conn)
	d, err := client.Describe(ctx)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if d.Dataset != "demo" || d.Steps != 3 {
		t.Fatalf("Describe = %+v", d)
	}

	resp, err := client.Allocate(ctx, allocsvc.AllocateRequest{Step: 3})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if got := resp.Report.Result("exact").Allocated; got != 1 {
		t.Fatalf("exact at step 3 = %d, want 1", got)
	}
	if resp.RunID == "" {
		t.Fatalf("server did not assign a run id")
	}

	if _, err := client.Allocate(ctx, allocsvc.AllocateRequest{Step: 7}); status.Code(err) != codes.OutOfRange {
		t.Fatalf("Allocate(step 7) code = %v, want OutOfRange", status.Code(err))
	}

	cancel()
	if err := <-errCh; err != nil {
		t.Fatalf("server returned error: %v", err)
	}

	st, err := store.New(db)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer st.Close()
	runs, err := st.ListRuns("demo", 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("history = %d runs, want 2", len(runs))
	}
	for _, r := range runs {
		if r.RunID != resp.RunID {
			t.Fatalf("history run id = %q, want %q", r.RunID, resp.RunID)
		}
	}
}

func TestRunRejectsUnknownMode(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer lis.Close()
	if err := run(context.Background(), Config{Mode: "sideways"}, logging.Noop(), lis); err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestRunRejectsMissingScenario(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	defer lis.Close()
	cfg := Config{ScenarioPath: filepath.Join(t.TempDir(), "nope.json")}
	if err := run(context.Background(), cfg, logging.Noop(), lis); err == nil {
		t.Fatal("expected error for missing scenario")
	}
}
