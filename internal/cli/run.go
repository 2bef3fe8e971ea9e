package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/signalsfoundry/constellation-allocator/core"
	"github.com/signalsfoundry/constellation-allocator/internal/allocsvc"
	"github.com/signalsfoundry/constellation-allocator/internal/logging"
	"github.com/signalsfoundry/constellation-allocator/internal/observability"
)

var (
	runStep      int
	runAllocator string
	runMode      string
	runParallel  int
	runRemote    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Allocate applications at a single time step",
	Long: `Run the selected allocators against the scenario at one time step and
print the number of applications placed together with one assignment.

With --remote the request is sent to a running allocator-server instead of
being computed locally; --scenario and --db are then ignored.`,
	Example: `  # Compare exact and greedy at step 3
  allocator run --step 3

  # Exact search only, first-fit branching, 4 parallel branches
  allocator run --allocator exact --mode first-fit --parallel 4

  # Ask a server
  allocator run --remote localhost:50061 --step 2`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runStep, "step", 1, "time step to allocate (1-based)")
	addAllocatorFlags(runCmd, &runAllocator, &runMode, &runParallel)
	runCmd.Flags().StringVar(&runRemote, "remote", "", "allocator-server address; allocate remotely when set")

	RootCmd.AddCommand(runCmd)
}

func addAllocatorFlags(cmd *cobra.Command, allocator, mode *string, parallel *int) {
	cmd.Flags().StringVar(allocator, "allocator", allocsvc.SelectBoth, "allocator to run: exact, greedy or both")
	cmd.Flags().StringVar(mode, "mode", core.ModeExhaustive.String(), "exact search mode: exhaustive or first-fit")
	cmd.Flags().IntVar(parallel, "parallel", 1, "top-level branches the exact search explores concurrently")
}

// exactConfig validates the shared allocator flags.
func exactConfig(mode string, parallel int) (core.ExactConfig, error) {
	m, err := core.ParseSearchMode(mode)
	if err != nil {
		return core.ExactConfig{}, err
	}
	if parallel < 1 {
		return core.ExactConfig{}, fmt.Errorf("invalid parallel: %d (must be at least 1)", parallel)
	}
	return core.ExactConfig{Mode: m, Parallelism: parallel}, nil
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := exactConfig(runMode, runParallel)
	if err != nil {
		return err
	}
	ctx, log := logging.WithRunLogger(cmd.Context(), newLogger())
	ctx, span := observability.Tracer().Start(ctx, "cli.run")
	defer span.End()

	req := allocsvc.AllocateRequest{
		Step:        runStep,
		Allocator:   runAllocator,
		Mode:        cfg.Mode.String(),
		Parallelism: cfg.Parallelism,
	}

	var resp *allocsvc.AllocateResponse
	if runRemote != "" {
		resp, err = allocateRemote(ctx, runRemote, req)
	} else {
		resp, err = allocateLocal(ctx, log, cfg, req)
	}
	if err != nil {
		span.RecordError(err)
		return err
	}

	renderReport(cmd.OutOrStdout(), resp)
	return nil
}

func allocateLocal(ctx context.Context, log logging.Logger, cfg core.ExactConfig, req allocsvc.AllocateRequest) (*allocsvc.AllocateResponse, error) {
	svc, _, closeFn, err := newLocalService(log, cfg)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return svc.Run(ctx, req)
}

func dialRemote(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
		grpc.WithUnaryInterceptor(allocsvc.RunIDUnaryClientInterceptor()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	return conn, nil
}

func allocateRemote(ctx context.Context, addr string, req allocsvc.AllocateRequest) (*allocsvc.AllocateResponse, error) {
	conn, err := dialRemote(addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	return allocsvc.NewClient(conn).Allocate(ctx, req)
}
